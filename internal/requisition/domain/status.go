package domain

// Status is the canonical requisition lifecycle state. Values outside this
// set are rejected at the boundary.
type Status string

const (
	StatusDraft             Status = "DRAFT"
	StatusPending           Status = "PENDING"
	StatusReviewed          Status = "REVIEWED"
	StatusUnderReview       Status = "UNDER_REVIEW"
	StatusApproved          Status = "APPROVED"
	StatusRejected          Status = "REJECTED"
	StatusCancelled         Status = "CANCELLED"
	StatusPartiallyReceived Status = "PARTIALLY_RECEIVED"
	StatusCompleted         Status = "COMPLETED"
)

// transitions is the full legal transition graph. Anything absent here is
// an invalid transition, reported and never applied.
var transitions = map[Status]map[Status]struct{}{
	StatusDraft: {
		StatusPending: {},
	},
	StatusPending: {
		StatusReviewed:    {},
		StatusUnderReview: {},
		StatusCancelled:   {},
	},
	StatusReviewed: {
		StatusApproved:  {},
		StatusRejected:  {},
		StatusCancelled: {},
	},
	StatusUnderReview: {
		StatusApproved:  {},
		StatusRejected:  {},
		StatusCancelled: {},
	},
	StatusApproved: {
		StatusPartiallyReceived: {},
	},
	StatusPartiallyReceived: {
		StatusCompleted: {},
	},
}

// CanTransitionTo reports whether moving from s to target is legal.
func (s Status) CanTransitionTo(target Status) bool {
	targets, ok := transitions[s]
	if !ok {
		return false
	}
	_, ok = targets[target]
	return ok
}

// Terminal reports whether the status ends the lifecycle. CANCELLED cannot
// be applied retroactively once a terminal state is reached.
func (s Status) Terminal() bool {
	switch s {
	case StatusRejected, StatusCancelled, StatusCompleted:
		return true
	default:
		return false
	}
}

// AwaitingDecision reports whether the requisition sits in a state where
// approval decisions are accepted.
func (s Status) AwaitingDecision() bool {
	switch s {
	case StatusPending, StatusReviewed, StatusUnderReview:
		return true
	default:
		return false
	}
}

// ValidStatus reports whether raw names a known status.
func ValidStatus(raw string) bool {
	switch Status(raw) {
	case StatusDraft, StatusPending, StatusReviewed, StatusUnderReview,
		StatusApproved, StatusRejected, StatusCancelled,
		StatusPartiallyReceived, StatusCompleted:
		return true
	default:
		return false
	}
}
