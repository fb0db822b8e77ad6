// Package session owns the authenticated session: a tagged-union state
// machine, the manager that drives it through the auth API, Google OAuth
// sign-in with a loopback callback server, and durable token persistence.
package session

import "github.com/KshitijGomber/arrow3-sub001/internal/domain"

// Status is the session lifecycle phase.
type Status int

const (
	StatusAnonymous Status = iota
	StatusAuthenticating
	StatusAuthenticated
	StatusRefreshing
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusAnonymous:
		return "anonymous"
	case StatusAuthenticating:
		return "authenticating"
	case StatusAuthenticated:
		return "authenticated"
	case StatusRefreshing:
		return "refreshing"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// State is an immutable snapshot of the session. Values are built through
// the constructors below, which keep the user/status pairing consistent: a
// user is carried if and only if the status is authenticated or refreshing.
type State struct {
	status  Status
	user    *domain.User
	loading bool
	message string
}

// starting is the state before Bootstrap has run: anonymous, still loading.
func starting() State {
	return State{status: StatusAnonymous, loading: true}
}

// Anonymous returns the signed-out state.
func Anonymous() State {
	return State{status: StatusAnonymous}
}

// Authenticating returns the state during an in-flight login or register.
func Authenticating() State {
	return State{status: StatusAuthenticating}
}

// Authenticated returns the signed-in state for user. A nil user degrades
// to Anonymous rather than producing an inconsistent snapshot.
func Authenticated(user *domain.User) State {
	if user == nil {
		return Anonymous()
	}
	return State{status: StatusAuthenticated, user: user}
}

// Refreshing returns the state during a token refresh. The previously known
// user, if any, stays visible while the refresh is in flight.
func Refreshing(user *domain.User) State {
	return State{status: StatusRefreshing, user: user}
}

// Errored returns the failed state carrying a user-facing message.
func Errored(message string) State {
	return State{status: StatusError, message: message}
}

// Status returns the lifecycle phase.
func (s State) Status() Status { return s.status }

// User returns the signed-in user, or nil.
func (s State) User() *domain.User { return s.user }

// Loading reports whether the startup hydration is still in progress.
func (s State) Loading() bool { return s.loading }

// Message returns the error message for StatusError states.
func (s State) Message() string { return s.message }

// IsAuthenticated reports whether a user is signed in.
func (s State) IsAuthenticated() bool { return s.status == StatusAuthenticated }

// withUser returns a copy of s with the user replaced. Only meaningful for
// statuses that carry a user.
func (s State) withUser(user *domain.User) State {
	s.user = user
	return s
}
