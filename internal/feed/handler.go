package feed

import (
	"net/http"

	"foodrankr-web/internal/session"
	"foodrankr-web/internal/views"
)

// Handler serves the feed screen.
type Handler struct {
	svc   *Service
	views *views.Renderer
}

func NewHandler(svc *Service, v *views.Renderer) *Handler {
	return &Handler{svc: svc, views: v}
}

// Show renders the feed for the company_id query filter.
func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	sess, _ := session.FromContext(r.Context())
	view := h.svc.Load(r.Context(), r.URL.Query().Get("company_id"))
	h.views.Render(w, http.StatusOK, views.Feed, views.NewPage("Feed", sess, view))
}
