package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/btouchard/taskmux/internal/service"
)

// NewRouter builds the HTTP surface over the task service. authToken, if
// non-empty, gates everything under /v1 (and /mcp) behind a pre-shared
// bearer token. mcpHandler, if non-nil, is mounted at /mcp.
func NewRouter(svc *service.Service, authToken string, mcpHandler http.Handler) http.Handler {
	h := &handlers{svc: svc}

	r := chi.NewRouter()
	r.Use(SecurityHeaders)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if mcpHandler != nil {
		r.Group(func(r chi.Router) {
			if authToken != "" {
				r.Use(BearerAuth(authToken))
			}
			r.Handle("/mcp", mcpHandler)
		})
	}

	r.Route("/v1", func(r chi.Router) {
		if authToken != "" {
			r.Use(BearerAuth(authToken))
		}

		r.Get("/tasks", h.listTasks)
		r.Post("/tasks", h.submitTask)
		r.Get("/queue", h.queueView)
		r.Get("/stream", h.streamAll)

		r.Route("/tasks/{taskID}", func(r chi.Router) {
			r.Get("/", h.getTask)
			r.Delete("/", h.removeTask)
			r.Post("/cancel", h.cancelTask)
			r.Get("/stream", h.streamTask)
		})
	})

	return r
}
