package payroll

import (
	"errors"
	"testing"
)

func TestCheckTransitionLifecycle(t *testing.T) {
	path := []string{StatusDraft, StatusCalculating, StatusCalculated, StatusReviewing, StatusApproved, StatusPosted, StatusPaid}
	for i := 0; i < len(path)-1; i++ {
		if err := CheckTransition(path[i], path[i+1]); err != nil {
			t.Fatalf("expected %s -> %s to be allowed: %v", path[i], path[i+1], err)
		}
	}
}

func TestCheckTransitionRecalculate(t *testing.T) {
	if err := CheckTransition(StatusCalculated, StatusCalculating); err != nil {
		t.Fatalf("expected recalculation of a calculated run: %v", err)
	}
	if err := CheckTransition(StatusApproved, StatusCalculating); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected approved run to refuse recalculation, got %v", err)
	}
}

func TestCheckTransitionSkipReview(t *testing.T) {
	if err := CheckTransition(StatusCalculated, StatusApproved); err != nil {
		t.Fatalf("expected calculated -> approved: %v", err)
	}
}

func TestCheckTransitionVoid(t *testing.T) {
	for _, from := range []string{StatusDraft, StatusCalculating, StatusCalculated, StatusReviewing, StatusApproved} {
		if err := CheckTransition(from, StatusVoid); err != nil {
			t.Fatalf("expected %s -> void to be allowed: %v", from, err)
		}
	}
	for _, from := range []string{StatusPosted, StatusPaid, StatusVoid} {
		if err := CheckTransition(from, StatusVoid); !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("expected %s -> void to be refused, got %v", from, err)
		}
	}
}

func TestCheckTransitionPostedIsOneWay(t *testing.T) {
	for _, to := range []string{StatusDraft, StatusCalculating, StatusCalculated, StatusReviewing, StatusApproved} {
		if err := CheckTransition(StatusPosted, to); !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("expected posted -> %s to be refused, got %v", to, err)
		}
	}
}

func TestCheckTransitionUnknownStatus(t *testing.T) {
	if err := CheckTransition("archived", StatusVoid); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected unknown status to be refused, got %v", err)
	}
}

func TestIsTerminal(t *testing.T) {
	if !IsTerminal(StatusPaid) || !IsTerminal(StatusVoid) {
		t.Fatal("expected paid and void to be terminal")
	}
	if IsTerminal(StatusPosted) {
		t.Fatal("expected posted to allow paying")
	}
}
