package domain

import "testing"

func TestCanTransitionTo(t *testing.T) {
	legal := []struct {
		from, to Status
	}{
		{StatusDraft, StatusPending},
		{StatusPending, StatusReviewed},
		{StatusPending, StatusUnderReview},
		{StatusPending, StatusCancelled},
		{StatusReviewed, StatusApproved},
		{StatusReviewed, StatusRejected},
		{StatusReviewed, StatusCancelled},
		{StatusUnderReview, StatusApproved},
		{StatusUnderReview, StatusRejected},
		{StatusUnderReview, StatusCancelled},
		{StatusApproved, StatusPartiallyReceived},
		{StatusPartiallyReceived, StatusCompleted},
	}
	for _, tc := range legal {
		if !tc.from.CanTransitionTo(tc.to) {
			t.Errorf("expected %s -> %s to be legal", tc.from, tc.to)
		}
	}

	illegal := []struct {
		from, to Status
	}{
		{StatusDraft, StatusApproved},
		{StatusDraft, StatusCancelled},
		{StatusPending, StatusApproved},
		{StatusApproved, StatusCancelled},
		{StatusApproved, StatusCompleted},
		{StatusRejected, StatusPending},
		{StatusCancelled, StatusDraft},
		{StatusCompleted, StatusPartiallyReceived},
		{StatusPartiallyReceived, StatusCancelled},
	}
	for _, tc := range illegal {
		if tc.from.CanTransitionTo(tc.to) {
			t.Errorf("expected %s -> %s to be illegal", tc.from, tc.to)
		}
	}
}

func TestTerminalStates(t *testing.T) {
	for _, status := range []Status{StatusRejected, StatusCancelled, StatusCompleted} {
		if !status.Terminal() {
			t.Errorf("expected %s to be terminal", status)
		}
	}
	for _, status := range []Status{StatusDraft, StatusPending, StatusReviewed, StatusUnderReview, StatusApproved, StatusPartiallyReceived} {
		if status.Terminal() {
			t.Errorf("expected %s to be non-terminal", status)
		}
	}
}

func TestAwaitingDecision(t *testing.T) {
	for _, status := range []Status{StatusPending, StatusReviewed, StatusUnderReview} {
		if !status.AwaitingDecision() {
			t.Errorf("expected %s to accept decisions", status)
		}
	}
	for _, status := range []Status{StatusDraft, StatusApproved, StatusRejected, StatusCancelled, StatusPartiallyReceived, StatusCompleted} {
		if status.AwaitingDecision() {
			t.Errorf("expected %s to refuse decisions", status)
		}
	}
}

func TestValidStatus(t *testing.T) {
	if !ValidStatus("PENDING") {
		t.Fatal("PENDING should be valid")
	}
	if ValidStatus("pending") {
		t.Fatal("status names are case sensitive")
	}
	if ValidStatus("UNKNOWN") {
		t.Fatal("UNKNOWN should be invalid")
	}
}
