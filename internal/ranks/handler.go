package ranks

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"foodrankr-web/internal/session"
	"foodrankr-web/internal/views"
)

// Handler serves the rank screen.
type Handler struct {
	svc   *Service
	views *views.Renderer
	now   func() time.Time
}

func NewHandler(svc *Service, v *views.Renderer) *Handler {
	return &Handler{svc: svc, views: v, now: time.Now}
}

// Routes returns a chi.Router for the /rank mount point.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.Show)
	r.Post("/", h.Submit)
	return r
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	sess, _ := session.FromContext(r.Context())
	h.render(w, http.StatusOK, sess, View{Form: NewForm(h.now())})
}

func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	sess, _ := session.FromContext(r.Context())
	rating, _ := strconv.Atoi(r.PostFormValue("rating"))
	form := Form{
		Date:     r.PostFormValue("date"),
		Dish:     r.PostFormValue("dish"),
		Rating:   rating,
		Comment:  r.PostFormValue("comment"),
		ImageURL: r.PostFormValue("image_url"),
	}

	fields, err := h.svc.Submit(r.Context(), sess, form)
	switch {
	case err == nil:
		h.render(w, http.StatusOK, sess, View{Form: form.Reset(), Message: MsgSaved})
	case fields != nil:
		h.render(w, http.StatusUnprocessableEntity, sess, View{Form: form, Message: MsgError, Errors: fields})
	default:
		h.render(w, http.StatusBadGateway, sess, View{Form: form, Message: MsgError})
	}
}

func (h *Handler) render(w http.ResponseWriter, status int, sess *session.Session, v View) {
	h.views.Render(w, status, views.Rank, views.NewPage("Rank Today", sess, v))
}
