package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const tokenField = "token"

// Client wraps the Redis connection used as the browser-session token store.
type Client struct {
	rdb *goredis.Client
}

// NewClient connects to Redis with retry.
func NewClient(ctx context.Context, addr string, logger *zap.Logger) (*Client, error) {
	rdb := goredis.NewClient(&goredis.Options{Addr: addr})
	for i := 0; i < 20; i++ {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err == nil {
			logger.Info("connected to redis", zap.String("addr", addr))
			return &Client{rdb: rdb}, nil
		}
		logger.Info("waiting for redis", zap.Int("attempt", i+1), zap.Error(err))
		select {
		case <-ctx.Done():
			_ = rdb.Close()
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
	_ = rdb.Close()
	return nil, fmt.Errorf("redis: failed to connect after 20 attempts")
}

func sessionKey(sessionID string) string { return "session:" + sessionID }

// Get returns the stored token for a session, or "" when there is none.
func (c *Client) Get(ctx context.Context, sessionID string) (string, error) {
	v, err := c.rdb.HGet(ctx, sessionKey(sessionID), tokenField).Result()
	if errors.Is(err, goredis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("redis: get token: %w", err)
	}
	return v, nil
}

// Set stores the token in the session hash and expires the hash after ttl.
func (c *Client) Set(ctx context.Context, sessionID, token string, ttl time.Duration) error {
	key := sessionKey(sessionID)
	pipe := c.rdb.TxPipeline()
	pipe.HSet(ctx, key, tokenField, token)
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set token: %w", err)
	}
	return nil
}

// Delete erases the session hash.
func (c *Client) Delete(ctx context.Context, sessionID string) error {
	if err := c.rdb.Del(ctx, sessionKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("redis: delete token: %w", err)
	}
	return nil
}

// Close tears down the Redis connection.
func (c *Client) Close() error { return c.rdb.Close() }
