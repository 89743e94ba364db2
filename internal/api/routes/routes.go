// internal/api/routes/routes.go
package routes

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fawad-mazhar/statusboard/internal/api/handlers"
)

func SetupRouter(dashboard handlers.Dashboard, toggler handlers.Toggler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	// Initialize handlers
	jobHandler := handlers.NewJobHandler(dashboard, toggler)
	statusHandler := handlers.NewStatusHandler(dashboard)

	// Routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				next.ServeHTTP(w, r)
			})
		})

		// Board endpoints
		r.Route("/board", func(r chi.Router) {
			r.Get("/", statusHandler.GetBoard)
			r.Get("/text", statusHandler.GetBoardText)
		})

		// Display control endpoints
		r.Route("/display", func(r chi.Router) {
			r.Get("/capacity", statusHandler.GetCapacity)
			r.Put("/capacity", statusHandler.SetCapacity)
		})

		// Job endpoints
		r.Route("/jobs", func(r chi.Router) {
			r.Post("/{name}/toggle", jobHandler.ToggleJob)
			r.Put("/{name}/active", jobHandler.SetActive)
		})

		r.Post("/snapshots", jobHandler.IngestSnapshot)
	})

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
