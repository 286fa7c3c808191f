package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"foodrankr-web/internal/backend"
	"foodrankr-web/internal/backend/backendtest"
)

type fakeResolver struct {
	mu     sync.Mutex
	user   *backend.User
	err    error
	tokens []string
}

func (f *fakeResolver) Me(_ context.Context, token string) (*backend.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens = append(f.tokens, token)
	if f.err != nil {
		return nil, f.err
	}
	return f.user, nil
}

func (f *fakeResolver) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tokens)
}

type failingStore struct{ MemoryStore }

func (*failingStore) Get(context.Context, string) (string, error) {
	return "", errors.New("store down")
}

func newManager(store TokenStore, res IdentityResolver, cacheTTL time.Duration) *Manager {
	return NewManager(store, res, zap.NewNop(), Options{IdentityCacheTTL: cacheTTL})
}

func jwtToken(t *testing.T, exp time.Time) string {
	t.Helper()
	raw, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, gojwt.RegisteredClaims{
		Subject:   "user@x.com",
		ExpiresAt: gojwt.NewNumericDate(exp),
	}).SignedString([]byte("backend-secret"))
	require.NoError(t, err)
	return raw
}

func TestSetTokenAuthenticates(t *testing.T) {
	defer goleak.VerifyNone(t)

	res := &fakeResolver{user: &backend.User{Email: "user@x.com"}}
	m := newManager(NewMemoryStore(), res, 0)

	sess, err := m.SetToken(context.Background(), "s1", "tok")
	require.NoError(t, err)
	assert.Equal(t, Authenticated, sess.State)
	assert.True(t, sess.Authenticated())
	assert.Equal(t, "user@x.com", sess.User.Email)
	assert.Equal(t, []string{"tok"}, res.tokens)
}

func TestEmptyTokenIsUnauthenticatedWithoutNetwork(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := NewMemoryStore()
	res := &fakeResolver{user: &backend.User{Email: "user@x.com"}}
	m := newManager(store, res, time.Minute)
	ctx := context.Background()

	_, err := m.SetToken(ctx, "s1", "tok")
	require.NoError(t, err)

	sess, err := m.SetToken(ctx, "s1", "")
	require.NoError(t, err)
	assert.Equal(t, Unauthenticated, sess.State)
	assert.Nil(t, sess.User)
	assert.Empty(t, sess.Token)
	assert.Equal(t, ReasonLoggedOut, sess.Reason)

	stored, _ := store.Get(ctx, "s1")
	assert.Empty(t, stored)

	loaded, err := m.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, Unauthenticated, loaded.State)
	assert.Equal(t, 1, res.calls())
}

func TestLoadWithoutTokenSkipsResolver(t *testing.T) {
	res := &fakeResolver{}
	m := newManager(NewMemoryStore(), res, 0)

	sess, err := m.Load(context.Background(), "fresh")
	require.NoError(t, err)
	assert.Equal(t, Unauthenticated, sess.State)
	assert.Equal(t, 0, res.calls())
}

func TestRejectedTokenIsCleared(t *testing.T) {
	for _, code := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		t.Run(fmt.Sprint(code), func(t *testing.T) {
			store := NewMemoryStore()
			res := &fakeResolver{err: &backend.StatusError{Method: "GET", Path: "/auth/me", Code: code}}
			m := newManager(store, res, 0)

			sess, err := m.SetToken(context.Background(), "s1", "stale")
			require.NoError(t, err)
			assert.Equal(t, Unauthenticated, sess.State)
			assert.Equal(t, ReasonExpired, sess.Reason)
			assert.Empty(t, sess.Token)

			stored, _ := store.Get(context.Background(), "s1")
			assert.Empty(t, stored)
		})
	}
}

func TestBackendFailureKeepsToken(t *testing.T) {
	for name, err := range map[string]error{
		"server":    &backend.StatusError{Method: "GET", Path: "/auth/me", Code: http.StatusBadGateway},
		"transport": fmt.Errorf("%w: connection refused", backend.ErrTransport),
		"malformed": fmt.Errorf("%w: empty body", backend.ErrMalformed),
	} {
		t.Run(name, func(t *testing.T) {
			store := NewMemoryStore()
			m := newManager(store, &fakeResolver{err: err}, 0)

			sess, err := m.SetToken(context.Background(), "s1", "tok")
			require.NoError(t, err)
			assert.Equal(t, Error, sess.State)
			assert.Equal(t, ReasonUnavailable, sess.Reason)
			assert.Nil(t, sess.User)
			assert.False(t, sess.Authenticated())

			stored, _ := store.Get(context.Background(), "s1")
			assert.Equal(t, "tok", stored)
		})
	}
}

func TestIdentityCache(t *testing.T) {
	res := &fakeResolver{user: &backend.User{Email: "user@x.com"}}
	m := newManager(NewMemoryStore(), res, time.Minute)
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	_, err := m.SetToken(ctx, "s1", "tok")
	require.NoError(t, err)

	sess, err := m.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, Authenticated, sess.State)
	assert.Equal(t, 1, res.calls())

	now = now.Add(2 * time.Minute)
	_, err = m.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, res.calls())
}

func TestRevalidateBypassesCache(t *testing.T) {
	res := &fakeResolver{user: &backend.User{Email: "user@x.com"}}
	m := newManager(NewMemoryStore(), res, time.Hour)

	sess, err := m.SetToken(context.Background(), "s1", "tok")
	require.NoError(t, err)

	res.mu.Lock()
	res.err = &backend.StatusError{Code: http.StatusUnauthorized}
	res.mu.Unlock()

	next := m.Revalidate(context.Background(), sess)
	assert.Equal(t, Unauthenticated, next.State)
	assert.Equal(t, 2, res.calls())
}

func TestRevalidateRecoversFromError(t *testing.T) {
	res := &fakeResolver{err: &backend.StatusError{Code: http.StatusServiceUnavailable}}
	m := newManager(NewMemoryStore(), res, 0)

	sess, err := m.SetToken(context.Background(), "s1", "tok")
	require.NoError(t, err)
	require.Equal(t, Error, sess.State)

	res.mu.Lock()
	res.err, res.user = nil, &backend.User{Email: "user@x.com"}
	res.mu.Unlock()

	next := m.Revalidate(context.Background(), sess)
	assert.Equal(t, Authenticated, next.State)
}

func TestExpiredJWTNeverReachesBackend(t *testing.T) {
	store := NewMemoryStore()
	res := &fakeResolver{user: &backend.User{Email: "user@x.com"}}
	m := newManager(store, res, 0)

	sess, err := m.SetToken(context.Background(), "s1", jwtToken(t, time.Now().Add(-time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, Unauthenticated, sess.State)
	assert.Equal(t, ReasonExpired, sess.Reason)
	assert.Equal(t, 0, res.calls())

	stored, _ := store.Get(context.Background(), "s1")
	assert.Empty(t, stored)
}

func TestJWTExpiryBoundsPersistence(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now()
	store.now = func() time.Time { return now }
	m := newManager(store, &fakeResolver{user: &backend.User{Email: "user@x.com"}}, 0)

	token := jwtToken(t, now.Add(30*time.Minute))
	_, err := m.SetToken(context.Background(), "s1", token)
	require.NoError(t, err)

	now = now.Add(31 * time.Minute)
	stored, _ := store.Get(context.Background(), "s1")
	assert.Empty(t, stored)
}

func TestLoadStoreFailure(t *testing.T) {
	m := newManager(&failingStore{}, &fakeResolver{}, 0)
	_, err := m.Load(context.Background(), "s1")
	assert.ErrorContains(t, err, "store down")
}

func TestIdentityResolvedWithBearerHeaderOnce(t *testing.T) {
	srv := backendtest.NewServer()
	t.Cleanup(srv.Close)
	token := srv.AddUser("user@x.com", "pw", false)

	client := backend.NewClient(srv.URL, 2*time.Second, zap.NewNop())
	m := newManager(NewMemoryStore(), client, time.Minute)

	sess, err := m.SetToken(context.Background(), "s1", token)
	require.NoError(t, err)
	assert.Equal(t, Authenticated, sess.State)

	calls := srv.Calls("/auth/me")
	require.Len(t, calls, 1)
	assert.Equal(t, "Bearer "+token, calls[0].Authorization)
}

func TestRotateMintsFreshSessionID(t *testing.T) {
	store := NewMemoryStore()
	res := &fakeResolver{user: &backend.User{Email: "user@x.com"}}
	m := newManager(store, res, time.Minute)
	ctx := context.Background()
	planted := "11111111-1111-1111-1111-111111111111"

	sess, err := m.Rotate(ctx, planted, "tok")
	require.NoError(t, err)
	assert.NotEqual(t, planted, sess.ID)
	assert.True(t, sess.Authenticated())

	old, err := m.Load(ctx, planted)
	require.NoError(t, err)
	assert.Equal(t, Unauthenticated, old.State)

	stored, _ := store.Get(ctx, sess.ID)
	assert.Equal(t, "tok", stored)
}

func TestIdentityCacheSweepsExpiredEntries(t *testing.T) {
	res := &fakeResolver{user: &backend.User{Email: "user@x.com"}}
	m := newManager(NewMemoryStore(), res, time.Minute)
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		_, err := m.SetToken(ctx, fmt.Sprintf("s%d", i), "tok")
		require.NoError(t, err)
	}
	assert.Equal(t, 100, m.cacheSize())

	now = now.Add(24 * time.Hour)
	_, err := m.SetToken(ctx, "late", "tok")
	require.NoError(t, err)
	assert.Equal(t, 1, m.cacheSize())
}
