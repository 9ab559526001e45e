package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type Service interface {
	Create(ctx context.Context, req CreateWorkflowRequest) (*ApprovalWorkflow, error)
	List(ctx context.Context) ([]ApprovalWorkflow, error)
	GetByID(ctx context.Context, id snowflake.ID) (*ApprovalWorkflow, error)
	SetActive(ctx context.Context, id snowflake.ID, active bool) error

	// Resolve selects the workflow applying to an amount for the caller's
	// org. No match is a hard stop; the caller must not fall back to a
	// default.
	Resolve(ctx context.Context, amount decimal.Decimal) (*ApprovalWorkflow, error)
}

type CreateWorkflowRequest struct {
	Name                   string
	AmountThresholdMin     decimal.Decimal
	AmountThresholdMax     *decimal.Decimal
	RequiredApproversCount int
	ApprovalRoles          []string
	Priority               int
}

var (
	ErrInvalidName           = errors.New("invalid_name")
	ErrInvalidThresholds     = errors.New("invalid_thresholds")
	ErrInvalidApproverCount  = errors.New("invalid_approver_count")
	ErrInvalidApprovalRoles  = errors.New("invalid_approval_roles")
	ErrNotFound              = errors.New("workflow_not_found")
	ErrNoApplicableWorkflow  = errors.New("no_applicable_workflow")
	ErrInvalidAmount         = errors.New("invalid_amount")
)
