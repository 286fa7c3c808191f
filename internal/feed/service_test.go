package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"foodrankr-web/internal/backend"
	"foodrankr-web/internal/backend/backendtest"
	"foodrankr-web/internal/session"
	"foodrankr-web/internal/views"
)

func newService(t *testing.T) (*Service, *backendtest.Server) {
	t.Helper()
	api := backendtest.NewServer()
	t.Cleanup(api.Close)
	api.AddCompany(backend.Company{ID: "C1", Name: "Acme", Country: "US", Approved: true})
	api.AddCompany(backend.Company{ID: "C2", Name: "Globex"})
	api.AddRating(backend.Rating{Dish: "Soup", Rating: 2, CompanyID: "C1", CafeName: "North", Country: "NL", Date: "2026-10-15"})
	api.AddRating(backend.Rating{Dish: "Pasta", Rating: 5, CompanyID: "C2", CafeName: "South", Country: "DE", Date: "2026-10-16"})
	return NewService(backend.NewClient(api.URL, 2*time.Second, zap.NewNop()), zap.NewNop()), api
}

func TestLoadFetchesCompaniesAndRatings(t *testing.T) {
	svc, api := newService(t)

	v := svc.Load(context.Background(), "C2")
	assert.Len(t, v.Companies, 2)
	require.Len(t, v.Ratings, 1)
	assert.Equal(t, "Pasta", v.Ratings[0].Dish)
	assert.False(t, v.Unavailable)

	assert.Equal(t, "", api.Calls("/companies")[0].Query)
	assert.Equal(t, "company_id=C2", api.Calls("/ranks")[0].Query)
}

func TestLoadMarksRatingsUnavailable(t *testing.T) {
	svc, api := newService(t)
	api.Force("/ranks", http.StatusInternalServerError)

	v := svc.Load(context.Background(), "")
	assert.True(t, v.Unavailable)
	assert.Empty(t, v.Ratings)
	assert.Len(t, v.Companies, 2)
}

func TestShowRendersFilter(t *testing.T) {
	svc, _ := newService(t)
	renderer, err := views.New(zap.NewNop())
	require.NoError(t, err)
	h := NewHandler(svc, renderer)

	req := httptest.NewRequest(http.MethodGet, "/feed?company_id=C1", nil)
	req = req.WithContext(session.WithSession(req.Context(), &session.Session{
		ID: "s", Token: "t", State: session.Authenticated, User: &backend.User{Email: "u@x.com"},
	}))
	rec := httptest.NewRecorder()
	h.Show(rec, req)

	body := rec.Body.String()
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, body, `<option value="C1" selected>Acme • US</option>`)
	assert.Contains(t, body, "Soup")
	assert.NotContains(t, body, "Pasta")
	assert.Contains(t, body, "North • NL • 2026-10-15")
}
