package auth

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"foodrankr-web/internal/backend"
	"foodrankr-web/internal/session"
	"foodrankr-web/internal/views"
)

// Where each successful action lands.
const (
	AfterLogin    = "/feed"
	AfterRegister = "/onboarding"
	AfterLogout   = "/"
)

// Handler serves the auth gate and its form posts.
type Handler struct {
	svc      *Service
	sessions *session.Manager
	views    *views.Renderer
	limiter  *Limiter
	logger   *zap.Logger
}

func NewHandler(svc *Service, sessions *session.Manager, v *views.Renderer, limiter *Limiter, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, sessions: sessions, views: v, limiter: limiter, logger: logger.Named("auth")}
}

// Mount registers the public auth routes on r.
func (h *Handler) Mount(r chi.Router) {
	r.Group(func(r chi.Router) {
		if h.limiter != nil {
			r.Use(h.limiter.Middleware(h.tooMany))
		}
		r.Post("/login", h.Login)
		r.Post("/register", h.Register)
	})
	r.Post("/logout", h.Logout)
	r.Post("/session/retry", h.Retry)
}

// Gate renders the sign-in and registration screen. It is the only screen
// shown while the session is not Authenticated.
func (h *Handler) Gate(w http.ResponseWriter, r *http.Request) {
	sess, _ := session.FromContext(r.Context())
	h.render(w, http.StatusOK, sess, GateView{})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	sess, err := session.Require(r.Context())
	if err != nil {
		http.Error(w, "no session", http.StatusInternalServerError)
		return
	}
	form := LoginForm{
		Email:    clean(r.PostFormValue("email")),
		Password: r.PostFormValue("password"),
	}
	next, err := h.svc.Login(r.Context(), sess.ID, form)
	if err != nil {
		h.render(w, failureStatus(err), sess, GateView{
			Login:   form.redacted(),
			Message: MsgLoginFailed,
			Errors:  fieldErrors(err),
		})
		return
	}
	h.sessions.SetCookie(w, next.ID)
	http.Redirect(w, r, AfterLogin, http.StatusSeeOther)
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	sess, err := session.Require(r.Context())
	if err != nil {
		http.Error(w, "no session", http.StatusInternalServerError)
		return
	}
	form := RegisterForm{
		Email:    clean(r.PostFormValue("email")),
		Password: r.PostFormValue("password"),
		FullName: clean(r.PostFormValue("full_name")),
		Country:  clean(r.PostFormValue("country")),
		Company:  clean(r.PostFormValue("company")),
		CafeName: clean(r.PostFormValue("cafe_name")),
	}
	next, err := h.svc.Register(r.Context(), sess.ID, form)
	if err != nil {
		h.render(w, failureStatus(err), sess, GateView{
			Register: form.redacted(),
			Message:  MsgRegisterFailed,
			Errors:   fieldErrors(err),
		})
		return
	}
	h.sessions.SetCookie(w, next.ID)
	http.Redirect(w, r, AfterRegister, http.StatusSeeOther)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if sess, ok := session.FromContext(r.Context()); ok {
		if err := h.svc.Logout(r.Context(), sess.ID); err != nil {
			h.logger.Error("logout failed", zap.String("session", sess.ID), zap.Error(err))
		}
	}
	http.Redirect(w, r, AfterLogout, http.StatusSeeOther)
}

// Retry resolves the session's token again after a backend failure.
func (h *Handler) Retry(w http.ResponseWriter, r *http.Request) {
	if sess, ok := session.FromContext(r.Context()); ok {
		h.sessions.Revalidate(r.Context(), sess)
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) tooMany(w http.ResponseWriter, r *http.Request) {
	sess, _ := session.FromContext(r.Context())
	h.logger.Info("credential submission throttled", zap.String("path", r.URL.Path))
	h.render(w, http.StatusTooManyRequests, sess, GateView{Message: MsgTooManyTries})
}

func (h *Handler) render(w http.ResponseWriter, status int, sess *session.Session, gv GateView) {
	gv.Unverified = sess != nil && sess.State == session.Error
	h.views.Render(w, status, views.Gate, views.NewPage("Sign in", nil, gv))
}

func failureStatus(err error) int {
	var invalid *InvalidError
	if errors.As(err, &invalid) {
		return http.StatusUnprocessableEntity
	}
	var se *backend.StatusError
	if errors.As(err, &se) && se.Code < 500 {
		return http.StatusUnauthorized
	}
	return http.StatusBadGateway
}

func fieldErrors(err error) map[string]string {
	var invalid *InvalidError
	if errors.As(err, &invalid) {
		return invalid.Fields
	}
	return nil
}
