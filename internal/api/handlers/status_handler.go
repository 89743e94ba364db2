// internal/api/handlers/status_handler.go
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fawad-mazhar/statusboard/internal/history"
)

type StatusHandler struct {
	dashboard Dashboard
}

func NewStatusHandler(dashboard Dashboard) *StatusHandler {
	return &StatusHandler{
		dashboard: dashboard,
	}
}

type capacityBody struct {
	Capacity int `json:"capacity"`
}

func (h *StatusHandler) GetBoard(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(h.dashboard.Board().View())
}

func (h *StatusHandler) GetBoardText(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(h.dashboard.Board().Render()))
}

func (h *StatusHandler) GetCapacity(w http.ResponseWriter, r *http.Request) {
	capacity, err := h.dashboard.Capacity(r.Context())
	if err != nil {
		writeDashboardError(w, err)
		return
	}
	json.NewEncoder(w).Encode(capacityBody{Capacity: capacity})
}

// SetCapacity changes how many past executions each strip shows. The history
// shown so far is cleared.
func (h *StatusHandler) SetCapacity(w http.ResponseWriter, r *http.Request) {
	var body capacityBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.dashboard.SetCapacity(r.Context(), body.Capacity); err != nil {
		if errors.Is(err, history.ErrInvalidCapacity) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeDashboardError(w, err)
		return
	}

	json.NewEncoder(w).Encode(body)
}
