// Package web assembles the HTTP surface: public routes, the auth gate and
// the authenticated screens.
package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"foodrankr-web/internal/admin"
	"foodrankr-web/internal/auth"
	"foodrankr-web/internal/feed"
	"foodrankr-web/internal/ranks"
	"foodrankr-web/internal/session"
)

// Handlers are the screen handlers the router dispatches to.
type Handlers struct {
	Sessions *session.Manager
	Auth     *auth.Handler
	Feed     *feed.Handler
	Hub      *feed.Hub
	Ranks    *ranks.Handler
	Admin    *admin.Handler
}

// RequireAuthenticated renders gate instead of next for any session that is
// not Authenticated, so protected markup is never produced for it.
func RequireAuthenticated(gate http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, ok := session.FromContext(r.Context())
			if !ok || !sess.Authenticated() {
				gate(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// NewRouter builds the route table.
func NewRouter(h Handlers, logger *zap.Logger) chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(RequestLogger(logger.Named("http")))
	r.Use(chimw.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"foodrankr-web"}`))
	})

	gated := RequireAuthenticated(h.Auth.Gate)

	r.Group(func(r chi.Router) {
		r.Use(h.Sessions.Middleware)
		h.Auth.Mount(r)

		r.Group(func(r chi.Router) {
			r.Use(gated)
			r.Get("/", h.Feed.Show)
			r.Get("/feed", h.Feed.Show)
			r.Get("/ws/feed", h.Hub.HandleWS)
			r.Mount("/rank", h.Ranks.Routes())
			r.Mount("/admin", h.Admin.Routes())
		})
	})

	// Unknown paths, /onboarding included, fall back to the feed behind the gate.
	fallback := h.Sessions.Middleware(gated(http.HandlerFunc(h.Feed.Show)))
	r.NotFound(fallback.ServeHTTP)
	r.MethodNotAllowed(fallback.ServeHTTP)

	return r
}

// Handler wraps the router with server-side tracing.
func Handler(h Handlers, logger *zap.Logger) http.Handler {
	return otelhttp.NewHandler(NewRouter(h, logger), "foodrankr-web")
}
