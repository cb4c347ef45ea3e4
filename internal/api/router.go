package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(h *Handler, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Fabric data.
	r.Get("/tables", h.ListTables)
	r.Post("/query", h.ReadQuery)

	// Insights memo.
	r.Get("/insights", h.ListInsights)
	r.Post("/insights", h.AppendInsight)
	r.Get("/memo", h.Memo)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
