package auth

import "fmt"

// Status is the lifecycle stage of an account, distinct from its role. It
// gates whether the account may use the system at all.
type Status string

const (
	StatusPending   Status = "pending"
	StatusVerified  Status = "verified"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusSuspended Status = "suspended"
)

// statusTransitions lists the allowed edges. Only the email-verification
// action (pending -> verified) and explicit administrative actions may move
// an account along these edges.
var statusTransitions = map[Status][]Status{
	StatusPending:   {StatusVerified},
	StatusVerified:  {StatusApproved, StatusRejected},
	StatusApproved:  {StatusSuspended},
	StatusSuspended: {StatusApproved},
	StatusRejected:  {},
}

// ValidStatus reports whether the value is one of the five account statuses.
func ValidStatus(s Status) bool {
	_, ok := statusTransitions[s]
	return ok
}

// CanTransition reports whether from -> to is an allowed edge.
func CanTransition(from, to Status) bool {
	for _, next := range statusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition validates and applies a status change on the account.
func (a *Account) Transition(to Status) error {
	if !ValidStatus(to) {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, to)
	}
	if !CanTransition(a.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, a.Status, to)
	}
	a.Status = to
	return nil
}
