package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Service interface {
	// RecordDecision stores the approver's stance and evaluates chain
	// completion atomically with the status transition it may trigger.
	RecordDecision(ctx context.Context, requisitionID, approverID snowflake.ID, req DecisionRequest) (*ApprovalDecision, error)
	ListDecisions(ctx context.Context, requisitionID snowflake.ID) ([]ApprovalDecision, error)
	Chain(ctx context.Context, requisitionID snowflake.ID) (*ChainStatus, error)
}

type DecisionRequest struct {
	Decision string
	Comment  string
}

type Repository interface {
	GetByApprover(ctx context.Context, db *gorm.DB, requisitionID, approverID snowflake.ID) (*ApprovalDecision, error)
	Insert(ctx context.Context, db *gorm.DB, decision *ApprovalDecision) error
	Update(ctx context.Context, db *gorm.DB, decision *ApprovalDecision) error
	ListByRequisition(ctx context.Context, db *gorm.DB, requisitionID snowflake.ID) ([]ApprovalDecision, error)
	CountByDecision(ctx context.Context, db *gorm.DB, requisitionID snowflake.ID, decision string) (int64, error)
}

var (
	ErrChainAlreadyResolved = errors.New("chain_already_resolved")
	ErrRoleNotEligible      = errors.New("role_not_eligible")
	ErrInvalidDecision      = errors.New("invalid_decision")
	ErrNoWorkflowBound      = errors.New("no_workflow_bound")
	ErrDecisionNotFound     = errors.New("decision_not_found")
)
