package session

import (
	"errors"
	"fmt"
)

// State is where a browser session stands in the authentication lifecycle.
type State int

const (
	Unauthenticated State = iota
	Authenticating
	Authenticated
	Error
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	case Error:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Event drives a State change.
type Event int

const (
	EventTokenSet Event = iota
	EventTokenCleared
	EventIdentityOK
	EventIdentityRejected
	EventIdentityFailed
	EventRevalidate
)

func (e Event) String() string {
	switch e {
	case EventTokenSet:
		return "token_set"
	case EventTokenCleared:
		return "token_cleared"
	case EventIdentityOK:
		return "identity_ok"
	case EventIdentityRejected:
		return "identity_rejected"
	case EventIdentityFailed:
		return "identity_failed"
	case EventRevalidate:
		return "revalidate"
	default:
		return fmt.Sprintf("event(%d)", int(e))
	}
}

// ErrIllegalTransition is returned by Next for an event the state does not accept.
var ErrIllegalTransition = errors.New("session: illegal transition")

// Identity results are only accepted while Authenticating; clearing the token
// is accepted everywhere and always lands in Unauthenticated.
var transitions = map[State]map[Event]State{
	Unauthenticated: {
		EventTokenSet:     Authenticating,
		EventTokenCleared: Unauthenticated,
	},
	Authenticating: {
		EventTokenSet:         Authenticating,
		EventTokenCleared:     Unauthenticated,
		EventIdentityOK:       Authenticated,
		EventIdentityRejected: Unauthenticated,
		EventIdentityFailed:   Error,
	},
	Authenticated: {
		EventTokenSet:     Authenticating,
		EventTokenCleared: Unauthenticated,
		EventRevalidate:   Authenticating,
	},
	Error: {
		EventTokenSet:     Authenticating,
		EventTokenCleared: Unauthenticated,
		EventRevalidate:   Authenticating,
	},
}

// Next returns the state reached from `from` on ev.
func Next(from State, ev Event) (State, error) {
	to, ok := transitions[from][ev]
	if !ok {
		return from, fmt.Errorf("%w: %s on %s", ErrIllegalTransition, from, ev)
	}
	return to, nil
}
