package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const maxBody = 4 << 20

// Client issues authenticated and unauthenticated calls to the backend API.
// It never retries; every failure is returned to the caller classified as a
// transport, status or malformed-body error.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// NewClient creates a backend client. The transport is instrumented with otelhttp.
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger.Named("backend"),
	}
}

type request struct {
	method      string
	path        string
	query       url.Values
	token       string
	body        io.Reader
	contentType string
}

func (c *Client) do(ctx context.Context, req request, out any) error {
	target := c.baseURL + req.path
	if len(req.query) > 0 {
		target += "?" + req.query.Encode()
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method, target, req.body)
	if err != nil {
		return fmt.Errorf("backend: build %s %s: %w", req.method, req.path, err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.contentType != "" {
		httpReq.Header.Set("Content-Type", req.contentType)
	}
	if req.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.token)
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.logger.Debug("request failed",
			zap.String("method", req.method), zap.String("path", req.path), zap.Error(err))
		return fmt.Errorf("%w: %s %s: %w", ErrTransport, req.method, req.path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	c.logger.Debug("request done",
		zap.String("method", req.method),
		zap.String("path", req.path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)))
	if err != nil {
		return fmt.Errorf("%w: %s %s: read body: %w", ErrTransport, req.method, req.path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Method: req.method, Path: req.path, Code: resp.StatusCode, Body: string(raw)}
	}
	if out == nil {
		return nil
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return fmt.Errorf("%w: %s %s: empty body", ErrMalformed, req.method, req.path)
	}
	if err := json.Unmarshal(trimmed, out); err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrMalformed, req.method, req.path, err)
	}
	return nil
}

func jsonBody(v any) (io.Reader, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("backend: encode body: %w", err)
	}
	return bytes.NewReader(data), nil
}

// Me resolves a token to the current user's identity.
func (c *Client) Me(ctx context.Context, token string) (*User, error) {
	var u User
	if err := c.do(ctx, request{method: http.MethodGet, path: "/auth/me", token: token}, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Login exchanges form-encoded credentials for an access token.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	form := url.Values{}
	form.Set("username", email)
	form.Set("password", password)
	var resp TokenResponse
	err := c.do(ctx, request{
		method:      http.MethodPost,
		path:        "/auth/login",
		body:        strings.NewReader(form.Encode()),
		contentType: "application/x-www-form-urlencoded",
	}, &resp)
	if err != nil {
		return "", err
	}
	return accessToken(resp, "/auth/login")
}

// Register creates an account and returns its access token.
func (c *Client) Register(ctx context.Context, in RegisterRequest) (string, error) {
	body, err := jsonBody(in)
	if err != nil {
		return "", err
	}
	var resp TokenResponse
	err = c.do(ctx, request{
		method:      http.MethodPost,
		path:        "/auth/register",
		body:        body,
		contentType: "application/json",
	}, &resp)
	if err != nil {
		return "", err
	}
	return accessToken(resp, "/auth/register")
}

func accessToken(resp TokenResponse, path string) (string, error) {
	if resp.AccessToken == "" {
		return "", fmt.Errorf("%w: POST %s: missing access_token", ErrMalformed, path)
	}
	return resp.AccessToken, nil
}

// Companies lists companies. A nil approved lists all of them; token is optional.
func (c *Client) Companies(ctx context.Context, token string, approved *bool) ([]Company, error) {
	q := url.Values{}
	if approved != nil {
		q.Set("approved", strconv.FormatBool(*approved))
	}
	var out []Company
	if err := c.do(ctx, request{method: http.MethodGet, path: "/companies", query: q, token: token}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Ratings lists ratings, optionally for one company.
func (c *Client) Ratings(ctx context.Context, companyID string) ([]Rating, error) {
	q := url.Values{}
	if companyID != "" {
		q.Set("company_id", companyID)
	}
	var out []Rating
	if err := c.do(ctx, request{method: http.MethodGet, path: "/ranks", query: q}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateRating submits a rating for the token's user. The created record is
// returned when the backend echoes one.
func (c *Client) CreateRating(ctx context.Context, token string, in RatingInput) (*Rating, error) {
	body, err := jsonBody(in)
	if err != nil {
		return nil, err
	}
	var created Rating
	err = c.do(ctx, request{
		method:      http.MethodPost,
		path:        "/ranks",
		token:       token,
		body:        body,
		contentType: "application/json",
	}, &created)
	if errors.Is(err, ErrMalformed) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// AdminStats returns the aggregate counters shown on the admin panel.
func (c *Client) AdminStats(ctx context.Context, token string) (Stats, error) {
	var out Stats
	if err := c.do(ctx, request{method: http.MethodGet, path: "/admin/stats", token: token}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DecideCompany approves or rejects a pending company.
func (c *Client) DecideCompany(ctx context.Context, token, companyID string, approved bool) error {
	body, err := jsonBody(ApproveRequest{CompanyID: companyID, Approved: approved})
	if err != nil {
		return err
	}
	return c.do(ctx, request{
		method:      http.MethodPost,
		path:        "/admin/companies/approve",
		token:       token,
		body:        body,
		contentType: "application/json",
	}, nil)
}
