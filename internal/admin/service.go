package admin

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"foodrankr-web/internal/backend"
	"foodrankr-web/internal/events"
	"foodrankr-web/internal/session"
	"foodrankr-web/internal/views"
	"foodrankr-web/pkg/kafka"
)

// MsgDecisionFailed is shown when approve/reject does not go through.
const MsgDecisionFailed = "Could not update company"

// API is the admin part of the backend API.
type API interface {
	AdminStats(ctx context.Context, token string) (backend.Stats, error)
	Companies(ctx context.Context, token string, approved *bool) ([]backend.Company, error)
	DecideCompany(ctx context.Context, token, companyID string, approved bool) error
}

// View is what the admin screen renders.
type View struct {
	Stats              []views.StatCard
	StatsUnavailable   bool
	Pending            []backend.Company
	PendingUnavailable bool
	Message            string
}

type Service struct {
	api    API
	events events.Publisher
	logger *zap.Logger
}

func NewService(api API, pub events.Publisher, logger *zap.Logger) *Service {
	return &Service{api: api, events: pub, logger: logger.Named("admin")}
}

// Load fetches stats and pending companies concurrently. Either half may be
// unavailable without hiding the other.
func (s *Service) Load(ctx context.Context, sess *session.Session) View {
	var v View
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		stats, err := s.api.AdminStats(gctx, sess.Token)
		if err != nil {
			s.logger.Warn("stats unavailable", zap.String("cause", backend.Cause(err)), zap.Error(err))
			v.StatsUnavailable = true
			return nil
		}
		v.Stats = views.StatCards(stats)
		return nil
	})
	g.Go(func() error {
		pending, err := s.Pending(gctx, sess)
		if err != nil {
			s.logger.Warn("pending companies unavailable", zap.String("cause", backend.Cause(err)), zap.Error(err))
			v.PendingUnavailable = true
			return nil
		}
		v.Pending = pending
		return nil
	})
	_ = g.Wait()
	return v
}

// Pending lists companies awaiting approval.
func (s *Service) Pending(ctx context.Context, sess *session.Session) ([]backend.Company, error) {
	approved := false
	return s.api.Companies(ctx, sess.Token, &approved)
}

// Decide approves or rejects companyID. The caller re-renders from a fresh
// Load; nothing is updated optimistically.
func (s *Service) Decide(ctx context.Context, sess *session.Session, companyID string, approved bool) error {
	if err := s.api.DecideCompany(ctx, sess.Token, companyID, approved); err != nil {
		s.logger.Warn("company decision failed",
			zap.String("company_id", companyID), zap.Bool("approved", approved),
			zap.String("cause", backend.Cause(err)), zap.Error(err))
		return fmt.Errorf("admin: decide %s: %w", companyID, err)
	}
	s.logger.Info("company decided", zap.String("company_id", companyID), zap.Bool("approved", approved))
	ev := events.CompanyDecidedEvent{
		EventID:   events.NewID(),
		CompanyID: companyID,
		Approved:  approved,
		DecidedBy: sess.User.Email,
		DecidedAt: events.Now(),
	}
	events.Emit(s.logger, s.events, kafka.TopicCompanyDecided, companyID, ev)
	return nil
}
