package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"foodrankr-web/internal/backend"
	"foodrankr-web/internal/events"
	"foodrankr-web/pkg/jwt"
	"foodrankr-web/pkg/kafka"
)

// IdentityResolver exchanges a token for the current user's profile.
type IdentityResolver interface {
	Me(ctx context.Context, token string) (*backend.User, error)
}

// Options tune a Manager.
type Options struct {
	// TokenTTL bounds how long an opaque (non-JWT) token is persisted. Zero means 24h.
	TokenTTL time.Duration
	// IdentityCacheTTL is how long a resolved identity is reused before
	// /auth/me is asked again. Zero disables the cache.
	IdentityCacheTTL time.Duration
	CookieSecure     bool
	Events           events.Publisher
}

// Manager owns every browser session's token lifecycle. It is the only writer
// of the token store.
type Manager struct {
	store    TokenStore
	resolver IdentityResolver
	logger   *zap.Logger
	opts     Options
	now      func() time.Time

	mu        sync.Mutex
	cache     map[string]cachedIdentity
	lastSweep time.Time
}

type cachedIdentity struct {
	token   string
	user    *backend.User
	expires time.Time
}

func NewManager(store TokenStore, resolver IdentityResolver, logger *zap.Logger, opts Options) *Manager {
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = 24 * time.Hour
	}
	if opts.IdentityCacheTTL < 0 {
		opts.IdentityCacheTTL = 0
	}
	return &Manager{
		store:    store,
		resolver: resolver,
		logger:   logger.Named("session"),
		opts:     opts,
		now:      time.Now,
		cache:    make(map[string]cachedIdentity),
	}
}

// Load reads the persisted token for id and resolves it. A session without a
// token is Unauthenticated without any network call.
func (m *Manager) Load(ctx context.Context, id string) (*Session, error) {
	sess := &Session{ID: id, State: Unauthenticated}
	token, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("session: load %s: %w", id, err)
	}
	if token == "" {
		return sess, nil
	}
	sess.Token = token
	m.apply(sess, EventTokenSet)

	if user, ok := m.cached(id, token); ok {
		sess.User = user
		m.apply(sess, EventIdentityOK)
		return sess, nil
	}
	m.resolve(ctx, sess)
	if sess.State == Unauthenticated {
		m.publish(sess)
	}
	return sess, nil
}

// SetToken installs token for the session. An empty token erases the persisted
// value and returns an Unauthenticated session synchronously. A non-empty token
// is persisted and then resolved exactly once.
func (m *Manager) SetToken(ctx context.Context, id, token string) (*Session, error) {
	m.forget(id)
	sess := &Session{ID: id, State: Unauthenticated}

	if token == "" {
		if err := m.store.Delete(ctx, id); err != nil {
			return nil, fmt.Errorf("session: clear %s: %w", id, err)
		}
		sess.Reason = ReasonLoggedOut
		m.apply(sess, EventTokenCleared)
		m.publish(sess)
		return sess, nil
	}

	ttl := jwt.TTL(token, m.now(), m.opts.TokenTTL)
	if ttl <= 0 {
		sess.Reason = ReasonExpired
		if err := m.store.Delete(ctx, id); err != nil {
			return nil, fmt.Errorf("session: clear %s: %w", id, err)
		}
		m.publish(sess)
		return sess, nil
	}
	if err := m.store.Set(ctx, id, token, ttl); err != nil {
		return nil, fmt.Errorf("session: persist %s: %w", id, err)
	}

	sess.Token = token
	m.apply(sess, EventTokenSet)
	m.resolve(ctx, sess)
	m.publish(sess)
	return sess, nil
}

// Rotate installs token on a freshly minted session id and clears oldID, so a
// session id known before sign-in never becomes authenticated. The caller
// must send the returned session's ID as the new cookie.
func (m *Manager) Rotate(ctx context.Context, oldID, token string) (*Session, error) {
	sess, err := m.SetToken(ctx, uuid.New().String(), token)
	if err != nil {
		return nil, err
	}
	if oldID != "" && oldID != sess.ID {
		if _, err := m.SetToken(ctx, oldID, ""); err != nil {
			m.logger.Warn("failed to clear pre-login session", zap.String("session", oldID), zap.Error(err))
		}
	}
	return sess, nil
}

// Revalidate drops any cached identity and resolves the session's token again.
func (m *Manager) Revalidate(ctx context.Context, sess *Session) *Session {
	m.forget(sess.ID)
	if sess.Token == "" {
		return sess
	}
	next := &Session{ID: sess.ID, Token: sess.Token, State: sess.State}
	if _, err := Next(next.State, EventRevalidate); err != nil {
		next.State = Unauthenticated
		m.apply(next, EventTokenSet)
	} else {
		m.apply(next, EventRevalidate)
	}
	m.resolve(ctx, next)
	return next
}

// resolve moves an Authenticating session to Authenticated, Unauthenticated
// (rejected token, which is also erased) or Error (backend unreachable; the
// token is kept so a later request can succeed).
func (m *Manager) resolve(ctx context.Context, sess *Session) {
	if jwt.Expired(sess.Token, m.now()) {
		m.reject(ctx, sess, "token exp claim is in the past")
		return
	}

	user, err := m.resolver.Me(ctx, sess.Token)
	switch {
	case err == nil:
		sess.User = user
		sess.Reason = ""
		m.apply(sess, EventIdentityOK)
		m.remember(sess.ID, sess.Token, user)
	case backend.IsUnauthorized(err):
		m.reject(ctx, sess, err.Error())
	default:
		m.logger.Warn("identity resolution failed",
			zap.String("session", sess.ID),
			zap.String("cause", backend.Cause(err)),
			zap.Error(err))
		sess.User = nil
		sess.Reason = ReasonUnavailable
		m.apply(sess, EventIdentityFailed)
	}
}

func (m *Manager) reject(ctx context.Context, sess *Session, why string) {
	m.logger.Info("token rejected, clearing session",
		zap.String("session", sess.ID), zap.String("why", why))
	if err := m.store.Delete(ctx, sess.ID); err != nil && !errors.Is(err, context.Canceled) {
		m.logger.Warn("failed to erase rejected token", zap.String("session", sess.ID), zap.Error(err))
	}
	sess.Token = ""
	sess.User = nil
	sess.Reason = ReasonExpired
	m.apply(sess, EventIdentityRejected)
}

func (m *Manager) apply(sess *Session, ev Event) {
	next, err := Next(sess.State, ev)
	if err != nil {
		m.logger.Error("dropping illegal session transition", zap.String("session", sess.ID), zap.Error(err))
		return
	}
	sess.State = next
}

func (m *Manager) publish(sess *Session) {
	events.Emit(m.logger, m.opts.Events, kafka.TopicSessionChanged, sess.ID, events.SessionChangedEvent{
		EventID:   events.NewID(),
		SessionID: sess.ID,
		State:     sess.State.String(),
		Reason:    sess.Reason,
		ChangedAt: events.Now(),
	})
}

func (m *Manager) cached(id, token string) (*backend.User, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cache[id]
	if !ok || c.token != token || !m.now().Before(c.expires) {
		delete(m.cache, id)
		return nil, false
	}
	return c.user, true
}

func (m *Manager) remember(id, token string, user *backend.User) {
	if m.opts.IdentityCacheTTL == 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if now.Sub(m.lastSweep) >= m.opts.IdentityCacheTTL {
		for k, c := range m.cache {
			if !now.Before(c.expires) {
				delete(m.cache, k)
			}
		}
		m.lastSweep = now
	}
	m.cache[id] = cachedIdentity{token: token, user: user, expires: now.Add(m.opts.IdentityCacheTTL)}
}

func (m *Manager) cacheSize() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.cache)
}

func (m *Manager) forget(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cache, id)
}
