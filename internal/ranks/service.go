package ranks

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"foodrankr-web/internal/backend"
	"foodrankr-web/internal/events"
	"foodrankr-web/internal/session"
	"foodrankr-web/pkg/kafka"
	"foodrankr-web/pkg/validation"
)

// ErrInvalid is returned when the form fails validation.
var ErrInvalid = errors.New("ranks: invalid rating")

// Submitter is the write side of the backend API for ratings.
type Submitter interface {
	CreateRating(ctx context.Context, token string, in backend.RatingInput) (*backend.Rating, error)
}

type Service struct {
	api    Submitter
	events events.Publisher
	logger *zap.Logger
}

func NewService(api Submitter, pub events.Publisher, logger *zap.Logger) *Service {
	return &Service{api: api, events: pub, logger: logger.Named("ranks")}
}

// Submit validates f and posts it with the session's token. Nothing is sent
// when validation fails; the field messages are returned with ErrInvalid.
func (s *Service) Submit(ctx context.Context, sess *session.Session, f Form) (validation.Errors, error) {
	if errs := f.Validate(); !errs.Empty() {
		return errs, ErrInvalid
	}
	in := f.input()
	created, err := s.api.CreateRating(ctx, sess.Token, in)
	if err != nil {
		s.logger.Warn("rating submission failed",
			zap.String("session", sess.ID), zap.String("cause", backend.Cause(err)), zap.Error(err))
		return nil, fmt.Errorf("ranks: submit: %w", err)
	}

	ev := events.RatingSubmittedEvent{
		EventID:     events.NewID(),
		Dish:        in.Dish,
		Rating:      in.Rating,
		Date:        in.Date,
		CompanyID:   sess.User.CompanyID,
		SubmittedBy: sess.User.Email,
		SubmittedAt: events.Now(),
	}
	if created != nil {
		ev.RatingID = created.ID
		if created.CompanyID != "" {
			ev.CompanyID = created.CompanyID
		}
	}
	events.Emit(s.logger, s.events, kafka.TopicRatingSubmitted, ev.EventID, ev)
	return nil, nil
}
