package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter constructs the chi mux with all routes wired.
func (g *Gateway) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Public, no auth required.
	r.Get("/health", g.handleHealth())
	r.Handle("/metrics", g.metrics.Handler())

	r.Post("/v1/sessions", g.handleCreateSession())
	r.Post("/v1/sessions/{id}/messages", g.handleSendMessage())
	r.Get("/ws/chat", g.handleChatSocket())

	// Admin endpoints behind bearer auth. Not mounted when no token is configured.
	if g.config.AdminToken != "" {
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware(g.config.AdminToken))
			r.Route("/api", func(r chi.Router) {
				r.Get("/sessions", g.handleListSessions())
				r.Delete("/sessions/{id}", g.handleDeleteSession())
			})
		})
	}

	return r
}
