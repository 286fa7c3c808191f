package ranks

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"foodrankr-web/internal/backend"
	"foodrankr-web/internal/backend/backendtest"
	"foodrankr-web/internal/events"
	"foodrankr-web/internal/session"
	"foodrankr-web/internal/views"
	"foodrankr-web/pkg/kafka"
)

type fixture struct {
	handler http.Handler
	api     *backendtest.Server
	sess    *session.Session

	mu        sync.Mutex
	published []events.RatingSubmittedEvent
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	api := backendtest.NewServer()
	t.Cleanup(api.Close)
	token := api.AddUser("user@x.com", "pw", false)

	f := &fixture{
		api: api,
		sess: &session.Session{
			ID: "s1", Token: token, State: session.Authenticated,
			User: &backend.User{Email: "user@x.com", CompanyID: "C1"},
		},
	}

	bus := events.NewLocalBus()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	bus.Subscribe(ctx, kafka.TopicRatingSubmitted, "test", func(data []byte) error {
		var ev events.RatingSubmittedEvent
		require.NoError(t, json.Unmarshal(data, &ev))
		f.mu.Lock()
		f.published = append(f.published, ev)
		f.mu.Unlock()
		return nil
	})

	logger := zap.NewNop()
	renderer, err := views.New(logger)
	require.NoError(t, err)
	h := NewHandler(NewService(backend.NewClient(api.URL, 2*time.Second, logger), bus, logger), renderer)
	h.now = func() time.Time { return time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC) }
	f.handler = h.Routes()
	return f
}

func (f *fixture) do(method string, form url.Values) *httptest.ResponseRecorder {
	var req *http.Request
	if method == http.MethodPost {
		req = httptest.NewRequest(method, "/", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, "/", nil)
	}
	req = req.WithContext(session.WithSession(req.Context(), f.sess))
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) events() []events.RatingSubmittedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]events.RatingSubmittedEvent(nil), f.published...)
}

func TestShowDefaults(t *testing.T) {
	f := newFixture(t)
	body := f.do(http.MethodGet, nil).Body.String()
	assert.Contains(t, body, `value="2026-10-16"`)
	assert.Contains(t, body, `<option value="3" selected>`)
}

func TestSubmitResetsFormButKeepsDate(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, url.Values{
		"date": {"2026-10-14"}, "dish": {"Pasta"}, "rating": {"5"}, "comment": {"al dente"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, MsgSaved)
	assert.Contains(t, body, `value="2026-10-14"`)
	assert.Contains(t, body, `<option value="3" selected>`)
	assert.NotContains(t, body, `value="Pasta"`)
	assert.NotContains(t, body, "al dente")

	calls := f.api.Calls("/ranks")
	require.Len(t, calls, 1)
	assert.Equal(t, "Bearer "+f.sess.Token, calls[0].Authorization)
	assert.JSONEq(t, `{"date":"2026-10-14","dish":"Pasta","rating":5,"comment":"al dente","image_url":""}`, calls[0].Body)

	assert.Eventually(t, func() bool { return len(f.events()) == 1 }, time.Second, 10*time.Millisecond)
	ev := f.events()[0]
	assert.Equal(t, "Pasta", ev.Dish)
	assert.Equal(t, "user@x.com", ev.SubmittedBy)
	assert.NotEmpty(t, ev.RatingID)
}

func TestSubmitInvalidSkipsBackend(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, url.Values{"date": {"2026-10-16"}, "dish": {""}, "rating": {"9"}})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), MsgError)
	assert.Empty(t, f.api.Calls("/ranks"))
}

func TestSubmitBackendFailureKeepsForm(t *testing.T) {
	f := newFixture(t)
	f.api.Force("/ranks", http.StatusInternalServerError)

	rec := f.do(http.MethodPost, url.Values{"date": {"2026-10-16"}, "dish": {"Soup"}, "rating": {"2"}})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, MsgError)
	assert.Contains(t, body, `value="Soup"`)
	assert.Len(t, f.api.Calls("/ranks"), 1)

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, f.events())
}
