package auth

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"foodrankr-web/internal/backend"
	"foodrankr-web/internal/session"
	"foodrankr-web/pkg/validation"
)

// InvalidError carries field messages for a form that failed validation
// before any backend call.
type InvalidError struct {
	Fields validation.Errors
}

func (e *InvalidError) Error() string {
	return fmt.Sprintf("auth: %d invalid field(s)", len(e.Fields))
}

// Gateway is the part of the backend API that issues tokens.
type Gateway interface {
	Login(ctx context.Context, email, password string) (string, error)
	Register(ctx context.Context, in backend.RegisterRequest) (string, error)
}

// Service submits credentials and installs the resulting token.
type Service struct {
	api      Gateway
	sessions *session.Manager
	logger   *zap.Logger
}

func NewService(api Gateway, sessions *session.Manager, logger *zap.Logger) *Service {
	return &Service{api: api, sessions: sessions, logger: logger.Named("auth")}
}

// Login exchanges credentials for a token and installs it on a new session
// that replaces sessionID. On failure the session is left untouched.
func (s *Service) Login(ctx context.Context, sessionID string, f LoginForm) (*session.Session, error) {
	if errs := f.validate(); !errs.Empty() {
		return nil, &InvalidError{Fields: errs}
	}
	token, err := s.api.Login(ctx, f.Email, f.Password)
	if err != nil {
		s.logFailure("login", err)
		return nil, err
	}
	return s.sessions.Rotate(ctx, sessionID, token)
}

// Register creates the account and installs its token on a new session that
// replaces sessionID.
func (s *Service) Register(ctx context.Context, sessionID string, f RegisterForm) (*session.Session, error) {
	if errs := f.validate(); !errs.Empty() {
		return nil, &InvalidError{Fields: errs}
	}
	token, err := s.api.Register(ctx, backend.RegisterRequest{
		Email:    f.Email,
		Password: f.Password,
		FullName: f.FullName,
		Country:  f.Country,
		Company:  f.Company,
		CafeName: f.CafeName,
	})
	if err != nil {
		s.logFailure("register", err)
		return nil, err
	}
	return s.sessions.Rotate(ctx, sessionID, token)
}

// Logout erases the session's token.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	_, err := s.sessions.SetToken(ctx, sessionID, "")
	return err
}

func (s *Service) logFailure(op string, err error) {
	var se *backend.StatusError
	if errors.As(err, &se) && se.Code < 500 {
		s.logger.Info(op+" rejected", zap.Int("status", se.Code))
		return
	}
	s.logger.Warn(op+" failed", zap.String("cause", backend.Cause(err)), zap.Error(err))
}
