package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Well-known topic names.
const (
	TopicRatingSubmitted = "rating.submitted"
	TopicCompanyDecided  = "company.decided"
	TopicSessionChanged  = "session.changed"
)

// Client wraps Kafka operations.
type Client struct {
	brokers []string
	writer  *kafkago.Writer
	logger  *zap.Logger
}

// NewClient returns a Client for the given brokers. A single writer is shared
// by all topics; the topic is set per message.
func NewClient(brokers []string, logger *zap.Logger) *Client {
	return &Client{
		brokers: brokers,
		writer: &kafkago.Writer{
			Addr:         kafkago.TCP(brokers...),
			Balancer:     &kafkago.LeastBytes{},
			BatchTimeout: 50 * time.Millisecond,
		},
		logger: logger,
	}
}

// EnsureTopics creates topics if they don't already exist (with retry).
func (c *Client) EnsureTopics(ctx context.Context, topics ...string) error {
	for attempt := 1; attempt <= 20; attempt++ {
		conn, err := kafkago.DialContext(ctx, "tcp", c.brokers[0])
		if err != nil {
			c.logger.Info("kafka not ready, retrying", zap.Int("attempt", attempt), zap.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(3 * time.Second):
			}
			continue
		}

		configs := make([]kafkago.TopicConfig, len(topics))
		for i, t := range topics {
			configs[i] = kafkago.TopicConfig{
				Topic:             t,
				NumPartitions:     3,
				ReplicationFactor: 1,
			}
		}

		err = conn.CreateTopics(configs...)
		conn.Close()
		if err != nil {
			c.logger.Info("topic creation returned (may already exist)", zap.Error(err))
		}
		c.logger.Info("kafka topics ensured", zap.Strings("topics", topics))
		return nil
	}
	return fmt.Errorf("kafka: could not connect after 20 attempts")
}

// Publish sends a JSON-serialised message to a topic.
func (c *Client) Publish(ctx context.Context, topic, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.writer.WriteMessages(ctx, kafkago.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: data,
	})
}

// Subscribe starts a background goroutine that reads from a topic until ctx is done.
func (c *Client) Subscribe(ctx context.Context, topic, groupID string, handler func([]byte) error) {
	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:  c.brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})

	go func() {
		defer r.Close()
		for {
			msg, err := r.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				c.logger.Warn("kafka read error", zap.String("topic", topic), zap.Error(err))
				time.Sleep(time.Second)
				continue
			}
			if err := handler(msg.Value); err != nil {
				c.logger.Warn("kafka handler error", zap.String("topic", topic), zap.Error(err))
			}
		}
	}()
}

// Close flushes and closes the shared writer.
func (c *Client) Close() error { return c.writer.Close() }
