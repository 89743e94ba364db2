// internal/api/handlers/job_handler.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fawad-mazhar/statusboard/internal/dashboard"
	"github.com/fawad-mazhar/statusboard/internal/orchestrator"
	"github.com/fawad-mazhar/statusboard/internal/surface"
)

const maxSnapshotSize = 1 << 20

// Dashboard is the part of the ingest loop the HTTP surface drives
type Dashboard interface {
	Board() *surface.Board
	Ingest(ctx context.Context, payload []byte) error
	Capacity(ctx context.Context) (int, error)
	SetCapacity(ctx context.Context, capacity int) error
	SetActive(ctx context.Context, job string, active bool) error
}

// Toggler flips job schedules on the orchestrator
type Toggler interface {
	Configured() bool
	Toggle(ctx context.Context, job string) (bool, error)
}

type JobHandler struct {
	dashboard Dashboard
	toggler   Toggler
}

func NewJobHandler(dashboard Dashboard, toggler Toggler) *JobHandler {
	return &JobHandler{
		dashboard: dashboard,
		toggler:   toggler,
	}
}

type activeRequest struct {
	Active *bool `json:"active"`
}

type toggleResponse struct {
	Job     string `json:"job"`
	Success bool   `json:"success"`
	Active  bool   `json:"active"`
}

// ToggleJob flips the schedule on the orchestrator and shows the outcome on
// the job's badge
func (h *JobHandler) ToggleJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	if h.toggler == nil || !h.toggler.Configured() {
		http.Error(w, "orchestrator is not configured", http.StatusServiceUnavailable)
		return
	}

	active, err := h.toggler.Toggle(r.Context(), name)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, orchestrator.ErrJobNotFound) {
			status = http.StatusNotFound
		}
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(toggleResponse{Job: name})
		return
	}

	if err := h.dashboard.SetActive(r.Context(), name, active); err != nil {
		writeDashboardError(w, err)
		return
	}

	json.NewEncoder(w).Encode(toggleResponse{Job: name, Success: true, Active: active})
}

// SetActive shows a schedule state reported by someone else
func (h *JobHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var req activeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Active == nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.dashboard.SetActive(r.Context(), name, *req.Active); err != nil {
		writeDashboardError(w, err)
		return
	}

	json.NewEncoder(w).Encode(toggleResponse{Job: name, Success: true, Active: *req.Active})
}

// IngestSnapshot accepts one pushed execution snapshot. The body is queued
// as is; undecodable snapshots are dropped by the ingest loop.
func (h *JobHandler) IngestSnapshot(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxSnapshotSize))
	if err != nil || len(payload) == 0 {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.dashboard.Ingest(r.Context(), payload); err != nil {
		writeDashboardError(w, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{
		"message": "Snapshot queued",
	})
}

func writeDashboardError(w http.ResponseWriter, err error) {
	if errors.Is(err, dashboard.ErrStopped) {
		http.Error(w, "dashboard is stopped", http.StatusServiceUnavailable)
		return
	}
	http.Error(w, "failed to update dashboard", http.StatusInternalServerError)
}
