package session

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CookieName names the browser session cookie.
const CookieName = "foodrankr_sid"

// ErrNoSession is returned by Require when the request did not pass through Middleware.
var ErrNoSession = errors.New("session: no session in context")

type contextKey struct{}

// WithSession returns a copy of ctx carrying sess.
func WithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, sess)
}

// FromContext returns the session stored by Middleware.
func FromContext(ctx context.Context) (*Session, bool) {
	sess, ok := ctx.Value(contextKey{}).(*Session)
	return sess, ok && sess != nil
}

// Require is FromContext for callers that treat a missing session as an error.
func Require(ctx context.Context) (*Session, error) {
	sess, ok := FromContext(ctx)
	if !ok {
		return nil, ErrNoSession
	}
	return sess, nil
}

// Middleware loads the browser's session before the next handler runs. A
// browser without a valid cookie gets a fresh session id. A token store
// failure yields an Error session rather than failing the request. A request
// that already carries a session is passed through unchanged.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := FromContext(r.Context()); ok {
			next.ServeHTTP(w, r)
			return
		}
		id, fresh := m.sessionID(r)
		if fresh {
			m.SetCookie(w, id)
		}

		var sess *Session
		if fresh {
			sess = &Session{ID: id, State: Unauthenticated}
		} else {
			loaded, err := m.Load(r.Context(), id)
			if err != nil {
				m.logger.Error("session load failed", zap.String("session", id), zap.Error(err))
				loaded = &Session{ID: id, State: Error, Reason: ReasonStore}
			}
			sess = loaded
		}

		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
	})
}

// SetCookie writes the session cookie for id.
func (m *Manager) SetCookie(w http.ResponseWriter, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (m *Manager) sessionID(r *http.Request) (string, bool) {
	c, err := r.Cookie(CookieName)
	if err == nil {
		if id, err := uuid.Parse(c.Value); err == nil {
			return id.String(), false
		}
	}
	return uuid.New().String(), true
}
