package session

import "foodrankr-web/internal/backend"

// Reasons attached to a session that is not Authenticated.
const (
	ReasonExpired     = "expired"
	ReasonUnavailable = "unavailable"
	ReasonStore       = "store"
	ReasonLoggedOut   = "logged_out"
)

// Session is the per-browser value object handed to every screen.
// User is set only in the Authenticated state, which requires a non-empty Token.
type Session struct {
	ID     string
	Token  string
	User   *backend.User
	State  State
	Reason string
}

// Authenticated reports whether screens behind the gate may be shown.
func (s *Session) Authenticated() bool {
	return s != nil && s.State == Authenticated && s.Token != "" && s.User != nil
}

// Admin reports whether the resolved identity is an administrator.
func (s *Session) Admin() bool {
	return s.Authenticated() && s.User.Admin()
}
