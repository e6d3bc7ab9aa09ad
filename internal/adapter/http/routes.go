package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MountRoutes registers all API routes on the given chi router. wsHandler
// serves the event-stream upgrade endpoint.
func MountRoutes(r chi.Router, h *Handlers, wsHandler http.HandlerFunc) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"version":"0.1.0"}`))
		})

		r.Get("/health", h.HandleHealth)

		// Agent
		r.Post("/turn", h.HandleRunTurn)
		r.Post("/reset", h.HandleReset)
		r.Get("/tools", h.HandleListTools)
		r.Get("/models", h.HandleListModels)

		// Sessions
		r.Get("/sessions", h.HandleListSessions)
		r.Post("/sessions", h.HandleCreateSession)
		r.Get("/sessions/{id}", h.HandleGetSession)
		r.Delete("/sessions/{id}", h.HandleDeleteSession)
	})

	// WebSocket event stream
	r.Get("/ws", wsHandler)
}
