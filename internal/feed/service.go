package feed

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"foodrankr-web/internal/backend"
)

// Source is the read side of the backend API the feed needs.
type Source interface {
	Companies(ctx context.Context, token string, approved *bool) ([]backend.Company, error)
	Ratings(ctx context.Context, companyID string) ([]backend.Rating, error)
}

// View is what the feed screen renders.
type View struct {
	Companies   []backend.Company
	CompanyID   string
	Ratings     []backend.Rating
	Unavailable bool
}

type Service struct {
	api    Source
	logger *zap.Logger
}

func NewService(api Source, logger *zap.Logger) *Service {
	return &Service{api: api, logger: logger.Named("feed")}
}

// Companies lists every company for the filter, unfiltered by approval.
func (s *Service) Companies(ctx context.Context) ([]backend.Company, error) {
	return s.api.Companies(ctx, "", nil)
}

// Ratings lists ratings, optionally for one company.
func (s *Service) Ratings(ctx context.Context, companyID string) ([]backend.Rating, error) {
	list, err := s.api.Ratings(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("feed: ratings for %q: %w", companyID, err)
	}
	return list, nil
}

// Load fetches the company filter and the ratings concurrently. A failed
// company list leaves the filter empty; a failed ratings list marks the view
// unavailable. Neither fails the page.
func (s *Service) Load(ctx context.Context, companyID string) View {
	v := View{CompanyID: companyID}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		list, err := s.Companies(gctx)
		if err != nil {
			s.logger.Warn("company list unavailable", zap.String("cause", backend.Cause(err)), zap.Error(err))
			return nil
		}
		v.Companies = list
		return nil
	})
	g.Go(func() error {
		list, err := s.Ratings(gctx, companyID)
		if err != nil {
			s.logger.Warn("ratings unavailable", zap.String("company_id", companyID),
				zap.String("cause", backend.Cause(err)), zap.Error(err))
			v.Unavailable = true
			return nil
		}
		v.Ratings = list
		return nil
	})
	_ = g.Wait()
	return v
}
