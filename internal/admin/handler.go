package admin

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"foodrankr-web/internal/session"
	"foodrankr-web/internal/views"
)

// Handler serves the admin screen.
type Handler struct {
	svc   *Service
	views *views.Renderer
}

func NewHandler(svc *Service, v *views.Renderer) *Handler {
	return &Handler{svc: svc, views: v}
}

// Routes returns a chi.Router for the /admin mount point.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.Show)
	r.Post("/companies/{id}/approve", h.decide(true))
	r.Post("/companies/{id}/reject", h.decide(false))
	return r
}

// Show renders stats and pending companies. The backend enforces the admin
// role; a non-admin simply sees both sections unavailable.
func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	sess, _ := session.FromContext(r.Context())
	h.render(w, http.StatusOK, sess, h.svc.Load(r.Context(), sess))
}

func (h *Handler) decide(approved bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, _ := session.FromContext(r.Context())
		err := h.svc.Decide(r.Context(), sess, chi.URLParam(r, "id"), approved)
		view := h.svc.Load(r.Context(), sess)
		status := http.StatusOK
		if err != nil {
			view.Message = MsgDecisionFailed
			status = http.StatusBadGateway
		}
		h.render(w, status, sess, view)
	}
}

func (h *Handler) render(w http.ResponseWriter, status int, sess *session.Session, v View) {
	h.views.Render(w, status, views.Admin, views.NewPage("Admin", sess, v))
}
