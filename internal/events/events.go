package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RatingSubmittedEvent is published to rating.submitted.
type RatingSubmittedEvent struct {
	EventID     string `json:"event_id"`
	RatingID    string `json:"rating_id,omitempty"`
	Dish        string `json:"dish"`
	Rating      int    `json:"rating"`
	Date        string `json:"date"`
	CompanyID   string `json:"company_id,omitempty"`
	SubmittedBy string `json:"submitted_by"`
	SubmittedAt string `json:"submitted_at"`
}

// CompanyDecidedEvent is published to company.decided.
type CompanyDecidedEvent struct {
	EventID   string `json:"event_id"`
	CompanyID string `json:"company_id"`
	Approved  bool   `json:"approved"`
	DecidedBy string `json:"decided_by"`
	DecidedAt string `json:"decided_at"`
}

// SessionChangedEvent is published to session.changed. It never carries the token.
type SessionChangedEvent struct {
	EventID   string `json:"event_id"`
	SessionID string `json:"session_id"`
	State     string `json:"state"`
	Reason    string `json:"reason,omitempty"`
	ChangedAt string `json:"changed_at"`
}

// Publisher sends a JSON-serialised value to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, value any) error
}

// Bus is a Publisher that can also deliver a topic's messages to a handler.
type Bus interface {
	Publisher
	Subscribe(ctx context.Context, topic, groupID string, handler func([]byte) error)
}

// NewID returns a fresh event id.
func NewID() string { return uuid.New().String() }

// Now formats the current time the way every event timestamp is written.
func Now() string { return time.Now().UTC().Format(time.RFC3339) }

// Emit publishes in the background so request handling never waits on the broker.
func Emit(logger *zap.Logger, pub Publisher, topic, key string, value any) {
	if pub == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := pub.Publish(ctx, topic, key, value); err != nil {
			logger.Warn("failed to publish event", zap.String("topic", topic), zap.Error(err))
			return
		}
		logger.Debug("published event", zap.String("topic", topic), zap.String("key", key))
	}()
}
