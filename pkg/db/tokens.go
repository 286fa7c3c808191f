package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// Get returns the stored token for a session, or "" when there is none or it
// has expired.
func (d *DB) Get(ctx context.Context, sessionID string) (string, error) {
	var token string
	err := d.Pool.QueryRow(ctx,
		`SELECT token FROM web_sessions WHERE id=$1 AND expires_at > NOW()`, sessionID).Scan(&token)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("postgres: get token: %w", err)
	}
	return token, nil
}

// Set upserts the session's token.
func (d *DB) Set(ctx context.Context, sessionID, token string, ttl time.Duration) error {
	_, err := d.Pool.Exec(ctx,
		`INSERT INTO web_sessions (id, token, expires_at, updated_at)
		 VALUES ($1, $2, $3, NOW())
		 ON CONFLICT (id) DO UPDATE SET token=EXCLUDED.token, expires_at=EXCLUDED.expires_at, updated_at=NOW()`,
		sessionID, token, time.Now().Add(ttl))
	if err != nil {
		return fmt.Errorf("postgres: set token: %w", err)
	}
	return nil
}

// Delete removes the session row.
func (d *DB) Delete(ctx context.Context, sessionID string) error {
	if _, err := d.Pool.Exec(ctx, `DELETE FROM web_sessions WHERE id=$1`, sessionID); err != nil {
		return fmt.Errorf("postgres: delete token: %w", err)
	}
	return nil
}

// PurgeExpired deletes expired rows and returns how many were removed.
func (d *DB) PurgeExpired(ctx context.Context) (int64, error) {
	tag, err := d.Pool.Exec(ctx, `DELETE FROM web_sessions WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, fmt.Errorf("postgres: purge sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}
