package feed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"foodrankr-web/internal/backend"
	"foodrankr-web/internal/events"
	"foodrankr-web/internal/views"
	"foodrankr-web/pkg/kafka"
)

type fakeSource struct {
	mu      sync.Mutex
	ratings []backend.Rating
	delay   map[string]time.Duration
	err     error
}

func (f *fakeSource) Companies(context.Context, string, *bool) ([]backend.Company, error) {
	return []backend.Company{{ID: "C1", Name: "One"}, {ID: "C2", Name: "Two"}}, nil
}

func (f *fakeSource) Ratings(ctx context.Context, companyID string) ([]backend.Rating, error) {
	f.mu.Lock()
	d, fail := f.delay[companyID], f.err
	var out []backend.Rating
	for _, r := range f.ratings {
		if companyID == "" || r.CompanyID == companyID {
			out = append(out, r)
		}
	}
	f.mu.Unlock()
	select {
	case <-time.After(d):
		if fail != nil {
			return nil, fail
		}
		return out, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *fakeSource) fail(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func (f *fakeSource) add(r backend.Rating) {
	f.mu.Lock()
	f.ratings = append(f.ratings, r)
	f.mu.Unlock()
}

// newHub returns a stop func instead of using t.Cleanup so the server is gone
// before goleak looks.
func newHub(t *testing.T, src Source) (*Hub, *websocket.Conn, func()) {
	t.Helper()
	logger := zap.NewNop()
	renderer, err := views.New(logger)
	require.NoError(t, err)
	hub := NewHub(NewService(src, logger), renderer, logger)

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		srv.Close()
		t.Fatal(err)
	}
	return hub, conn, func() {
		conn.Close()
		srv.Close()
	}
}

func readUpdate(t *testing.T, conn *websocket.Conn, wait time.Duration) (Update, error) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(wait))
	var u Update
	err := conn.ReadJSON(&u)
	return u, err
}

func TestLatestFilterWins(t *testing.T) {
	defer goleak.VerifyNone(t)

	src := &fakeSource{
		ratings: []backend.Rating{
			{Dish: "Soup", Rating: 2, CompanyID: "C1"},
			{Dish: "Pasta", Rating: 5, CompanyID: "C2"},
		},
		delay: map[string]time.Duration{"C1": 200 * time.Millisecond},
	}
	_, conn, stop := newHub(t, src)
	defer stop()

	require.NoError(t, conn.WriteJSON(filterRequest{CompanyID: "C1"}))
	require.NoError(t, conn.WriteJSON(filterRequest{CompanyID: "C2"}))

	u, err := readUpdate(t, conn, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "C2", u.CompanyID)
	require.Len(t, u.Ratings, 1)
	assert.Equal(t, "Pasta", u.Ratings[0].Dish)
	assert.Contains(t, u.HTML, "Pasta")

	// the superseded C1 response must never arrive
	_, err = readUpdate(t, conn, 400*time.Millisecond)
	assert.Error(t, err)
}

func TestRatingEventRefreshesMatchingClients(t *testing.T) {
	defer goleak.VerifyNone(t)

	src := &fakeSource{}
	hub, conn, stop := newHub(t, src)
	defer stop()
	bus := events.NewLocalBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub.Listen(ctx, bus, "test")

	require.NoError(t, conn.WriteJSON(filterRequest{CompanyID: "C1"}))
	first, err := readUpdate(t, conn, 2*time.Second)
	require.NoError(t, err)
	assert.Empty(t, first.Ratings)
	assert.Contains(t, first.HTML, "No ratings yet")

	src.add(backend.Rating{Dish: "Curry", Rating: 4, CompanyID: "C1"})
	require.NoError(t, bus.Publish(ctx, kafka.TopicRatingSubmitted, "r1", events.RatingSubmittedEvent{Dish: "Curry", CompanyID: "C1"}))

	next, err := readUpdate(t, conn, 2*time.Second)
	require.NoError(t, err)
	assert.Greater(t, next.Generation, first.Generation)
	require.Len(t, next.Ratings, 1)
	assert.Equal(t, "Curry", next.Ratings[0].Dish)

	// another company's rating leaves this client alone
	require.NoError(t, bus.Publish(ctx, kafka.TopicRatingSubmitted, "r2", events.RatingSubmittedEvent{CompanyID: "C9"}))
	_, err = readUpdate(t, conn, 200*time.Millisecond)
	assert.Error(t, err)

	conn.Close()
	cancel()
	assert.Eventually(t, func() bool { return hub.Count() == 0 }, time.Second, 10*time.Millisecond)
}

func TestFailedRefreshSendsNotice(t *testing.T) {
	defer goleak.VerifyNone(t)

	src := &fakeSource{ratings: []backend.Rating{{Dish: "Soup", Rating: 2, CompanyID: "C1"}}}
	_, conn, stop := newHub(t, src)
	defer stop()

	require.NoError(t, conn.WriteJSON(filterRequest{CompanyID: "C1"}))
	first, err := readUpdate(t, conn, 2*time.Second)
	require.NoError(t, err)
	assert.Contains(t, first.HTML, "Soup")

	src.fail(errors.New("backend down"))
	require.NoError(t, conn.WriteJSON(filterRequest{CompanyID: "C1"}))
	u, err := readUpdate(t, conn, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "unavailable", u.Error)
	assert.Empty(t, u.Ratings)
	assert.Contains(t, u.HTML, "Ratings are unavailable right now.")
	assert.NotContains(t, u.HTML, "No ratings yet")
}
