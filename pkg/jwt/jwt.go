package jwt

import (
	"errors"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
)

// ErrNotJWT is returned when an access token is opaque rather than a JWT.
var ErrNotJWT = errors.New("jwt: token is not a JWT")

// Claims is the subset of the backend's access-token payload the web tier reads.
// The signature is never checked here: the backend owns the key and remains the
// authority through /auth/me.
type Claims struct {
	gojwt.RegisteredClaims
}

var parser = gojwt.NewParser()

// Inspect decodes a raw access token without verifying it.
func Inspect(raw string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := parser.ParseUnverified(raw, claims); err != nil {
		return nil, ErrNotJWT
	}
	return claims, nil
}

// Expired reports whether the token carries an exp claim in the past.
// Opaque tokens and tokens without exp are never considered expired.
func Expired(raw string, now time.Time) bool {
	claims, err := Inspect(raw)
	if err != nil || claims.ExpiresAt == nil {
		return false
	}
	return !now.Before(claims.ExpiresAt.Time)
}

// TTL returns how long the token should be persisted: until its exp claim when
// present, otherwise fallback.
func TTL(raw string, now time.Time, fallback time.Duration) time.Duration {
	claims, err := Inspect(raw)
	if err != nil || claims.ExpiresAt == nil {
		return fallback
	}
	ttl := claims.ExpiresAt.Time.Sub(now)
	if ttl <= 0 {
		return 0
	}
	return ttl
}
