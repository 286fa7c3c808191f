// Package backendtest provides an in-process fake of the backend API for tests.
package backendtest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"foodrankr-web/internal/backend"
)

// Call records one request received by the fake.
type Call struct {
	Method        string
	Path          string
	Query         string
	Authorization string
	ContentType   string
	Body          string
}

// Server is a fake backend speaking the same contract as the real API.
type Server struct {
	*httptest.Server

	mu          sync.Mutex
	calls       []Call
	passwords   map[string]string
	users       map[string]*backend.User
	companies   []backend.Company
	ratings     []backend.Rating
	forced      map[string]int
	ratingDelay func(companyID string) time.Duration
	nextID      int
}

// NewServer starts a fake backend. Close it with t.Cleanup(srv.Close).
func NewServer() *Server {
	s := &Server{
		passwords: make(map[string]string),
		users:     make(map[string]*backend.User),
		forced:    make(map[string]int),
	}
	r := chi.NewRouter()
	r.Use(s.record)
	r.Get("/auth/me", s.me)
	r.Post("/auth/login", s.login)
	r.Post("/auth/register", s.register)
	r.Get("/companies", s.listCompanies)
	r.Get("/ranks", s.listRatings)
	r.Post("/ranks", s.createRating)
	r.Get("/admin/stats", s.stats)
	r.Post("/admin/companies/approve", s.approve)
	s.Server = httptest.NewServer(r)
	return s
}

// TokenFor returns the access token the fake issues for email.
func TokenFor(email string) string { return "token-" + email }

// AddUser registers credentials and returns the user's access token.
func (s *Server) AddUser(email, password string, admin bool) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addUserLocked(backend.User{Email: email, FullName: email, IsAdmin: admin}, password)
}

func (s *Server) addUserLocked(u backend.User, password string) string {
	s.nextID++
	u.ID = fmt.Sprintf("u%d", s.nextID)
	token := TokenFor(u.Email)
	s.passwords[u.Email] = password
	s.users[token] = &u
	return token
}

// AddCompany seeds a company.
func (s *Server) AddCompany(c backend.Company) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.companies = append(s.companies, c)
}

// AddRating seeds a rating.
func (s *Server) AddRating(r backend.Rating) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == "" {
		s.nextID++
		r.ID = fmt.Sprintf("r%d", s.nextID)
	}
	s.ratings = append(s.ratings, r)
}

// Force makes every request to path answer with status.
func (s *Server) Force(path string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forced[path] = status
}

// DelayRatings delays GET /ranks responses per company filter.
func (s *Server) DelayRatings(fn func(companyID string) time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ratingDelay = fn
}

// Calls returns the requests received so far for path ("" for all).
func (s *Server) Calls(path string) []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Call
	for _, c := range s.calls {
		if path == "" || c.Path == path {
			out = append(out, c)
		}
	}
	return out
}

// Ratings returns the stored ratings.
func (s *Server) Ratings() []backend.Rating {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]backend.Rating(nil), s.ratings...)
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body []byte
		if r.Body != nil {
			body, _ = io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewReader(body))
		}
		s.mu.Lock()
		s.calls = append(s.calls, Call{
			Method:        r.Method,
			Path:          r.URL.Path,
			Query:         r.URL.RawQuery,
			Authorization: r.Header.Get("Authorization"),
			ContentType:   r.Header.Get("Content-Type"),
			Body:          string(body),
		})
		status, forced := s.forced[r.URL.Path]
		s.mu.Unlock()
		if forced {
			writeJSON(w, status, map[string]string{"detail": "forced"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) userFor(r *http.Request) *backend.User {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[token]
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	u := s.userFor(r)
	if u == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "invalid token"})
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "invalid form"})
		return
	}
	email, password := r.PostForm.Get("username"), r.PostForm.Get("password")
	s.mu.Lock()
	want, ok := s.passwords[email]
	s.mu.Unlock()
	if !ok || want != password {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "invalid credentials"})
		return
	}
	writeJSON(w, http.StatusOK, backend.TokenResponse{AccessToken: TokenFor(email), TokenType: "bearer"})
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req backend.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "invalid body"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.passwords[req.Email]; exists {
		writeJSON(w, http.StatusConflict, map[string]string{"detail": "email already exists"})
		return
	}
	token := s.addUserLocked(backend.User{
		Email: req.Email, FullName: req.FullName, Country: req.Country, CafeName: req.CafeName,
	}, req.Password)
	writeJSON(w, http.StatusCreated, backend.TokenResponse{AccessToken: token, TokenType: "bearer"})
}

func (s *Server) listCompanies(w http.ResponseWriter, r *http.Request) {
	filter := r.URL.Query().Get("approved")
	s.mu.Lock()
	out := []backend.Company{}
	for _, c := range s.companies {
		if filter == "" || fmt.Sprint(c.Approved) == filter {
			out = append(out, c)
		}
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) listRatings(w http.ResponseWriter, r *http.Request) {
	companyID := r.URL.Query().Get("company_id")
	s.mu.Lock()
	delay := s.ratingDelay
	out := []backend.Rating{}
	for _, rt := range s.ratings {
		if companyID == "" || rt.CompanyID == companyID {
			out = append(out, rt)
		}
	}
	s.mu.Unlock()
	if delay != nil {
		select {
		case <-time.After(delay(companyID)):
		case <-r.Context().Done():
			return
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createRating(w http.ResponseWriter, r *http.Request) {
	u := s.userFor(r)
	if u == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "invalid token"})
		return
	}
	var in backend.RatingInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Rating < 1 || in.Rating > 5 || in.Dish == "" {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "invalid rating"})
		return
	}
	s.mu.Lock()
	s.nextID++
	rt := backend.Rating{
		ID: fmt.Sprintf("r%d", s.nextID), Dish: in.Dish, Rating: in.Rating, Comment: in.Comment,
		ImageURL: in.ImageURL, Date: in.Date, CafeName: u.CafeName, Country: u.Country, CompanyID: u.CompanyID,
	}
	s.ratings = append(s.ratings, rt)
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, rt)
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	u := s.userFor(r)
	if !u.Admin() {
		writeJSON(w, http.StatusForbidden, map[string]string{"detail": "admin only"})
		return
	}
	s.mu.Lock()
	pending := 0
	for _, c := range s.companies {
		if !c.Approved {
			pending++
		}
	}
	out := backend.Stats{
		"users":             float64(len(s.users)),
		"companies":         float64(len(s.companies)),
		"ratings":           float64(len(s.ratings)),
		"pending_companies": float64(pending),
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) approve(w http.ResponseWriter, r *http.Request) {
	u := s.userFor(r)
	if !u.Admin() {
		writeJSON(w, http.StatusForbidden, map[string]string{"detail": "admin only"})
		return
	}
	var req backend.ApproveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "invalid body"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range s.companies {
		if c.ID != req.CompanyID {
			continue
		}
		if req.Approved {
			s.companies[i].Approved = true
		} else {
			s.companies = append(s.companies[:i], s.companies[i+1:]...)
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"detail": "company not found"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
