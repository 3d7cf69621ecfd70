package payroll

import "fmt"

// The run lifecycle:
//
//	draft → calculating → calculated → reviewing → approved → posted → paid
//
// with void reachable from every state before posted, and calculated →
// calculating allowed so a run can be recomputed until it is approved.
// Posting is one-way: posted runs only ever move to paid.

// IsTerminal reports whether no further transition can leave the status.
func IsTerminal(status string) bool {
	switch status {
	case StatusPaid, StatusVoid:
		return true
	default:
		return false
	}
}

func ValidStatus(status string) bool {
	switch status {
	case StatusDraft, StatusCalculating, StatusCalculated, StatusReviewing,
		StatusApproved, StatusPosted, StatusPaid, StatusVoid:
		return true
	default:
		return false
	}
}

func allowedTransition(from, to string) bool {
	if to == StatusVoid {
		return from != StatusPosted && from != StatusPaid && from != StatusVoid
	}
	switch from {
	case StatusDraft:
		return to == StatusCalculating
	case StatusCalculating:
		return to == StatusCalculated
	case StatusCalculated:
		return to == StatusCalculating || to == StatusReviewing || to == StatusApproved
	case StatusReviewing:
		return to == StatusApproved
	case StatusApproved:
		return to == StatusPosted
	case StatusPosted:
		return to == StatusPaid
	default:
		return false
	}
}

// CheckTransition validates a requested status change and names the
// violated guard when it is not allowed. Callers re-check the current
// status inside the transaction that writes the change.
func CheckTransition(from, to string) error {
	if !ValidStatus(from) || !ValidStatus(to) {
		return fmt.Errorf("%w: unknown status %q -> %q", ErrInvalidTransition, from, to)
	}
	if !allowedTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}
