package auth

import (
	"errors"
	"testing"
)

func TestStatusTransitions(t *testing.T) {
	allowed := []struct{ from, to Status }{
		{StatusPending, StatusVerified},
		{StatusVerified, StatusApproved},
		{StatusVerified, StatusRejected},
		{StatusApproved, StatusSuspended},
		{StatusSuspended, StatusApproved},
	}
	for _, tc := range allowed {
		if !CanTransition(tc.from, tc.to) {
			t.Fatalf("expected %s -> %s to be allowed", tc.from, tc.to)
		}
	}

	denied := []struct{ from, to Status }{
		{StatusPending, StatusApproved},
		{StatusPending, StatusRejected},
		{StatusApproved, StatusVerified},
		{StatusRejected, StatusApproved},
		{StatusRejected, StatusVerified},
		{StatusSuspended, StatusVerified},
		{StatusApproved, StatusApproved},
	}
	for _, tc := range denied {
		if CanTransition(tc.from, tc.to) {
			t.Fatalf("expected %s -> %s to be denied", tc.from, tc.to)
		}
	}
}

func TestAccountTransition(t *testing.T) {
	acct := &Account{ID: "acc-1", Status: StatusPending}
	if err := acct.Transition(StatusVerified); err != nil {
		t.Fatalf("pending -> verified failed: %v", err)
	}
	if acct.Status != StatusVerified {
		t.Fatalf("status not applied, got %s", acct.Status)
	}

	err := acct.Transition(StatusSuspended)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if acct.Status != StatusVerified {
		t.Fatalf("failed transition must not mutate status, got %s", acct.Status)
	}

	if err := acct.Transition("archived"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("unknown target status must be rejected, got %v", err)
	}
}
