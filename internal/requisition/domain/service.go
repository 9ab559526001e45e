package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Service interface {
	CreateDraft(ctx context.Context, req CreateRequisitionRequest) (*Requisition, error)
	GetByID(ctx context.Context, id snowflake.ID) (*Requisition, []RequisitionItem, error)
	List(ctx context.Context, status string) ([]Requisition, error)

	AddItem(ctx context.Context, requisitionID snowflake.ID, req ItemRequest) (*RequisitionItem, error)
	UpdateItem(ctx context.Context, requisitionID, itemID snowflake.ID, req ItemRequest) (*RequisitionItem, error)
	RemoveItem(ctx context.Context, requisitionID, itemID snowflake.ID) error

	// Submit moves DRAFT to PENDING, binding the resolved approval
	// workflow to the requisition.
	Submit(ctx context.Context, requisitionID, actorID snowflake.ID) (*Requisition, error)

	// Cancel is legal from PENDING, REVIEWED and UNDER_REVIEW, by the
	// owner or an admin. Never legal once a terminal state is reached.
	Cancel(ctx context.Context, requisitionID, actorID snowflake.ID) (*Requisition, error)

	// StartReview moves PENDING to REVIEWED or UNDER_REVIEW depending on
	// the workflow stage semantics the reviewer chose.
	StartReview(ctx context.Context, requisitionID, actorID snowflake.ID, target Status) (*Requisition, error)

	// Receive records a receiving event: APPROVED to PARTIALLY_RECEIVED,
	// then PARTIALLY_RECEIVED to COMPLETED when final. One-way.
	Receive(ctx context.Context, requisitionID, actorID snowflake.ID, final bool) (*Requisition, error)
}

type CreateRequisitionRequest struct {
	ProjectID  snowflake.ID
	Title      string
	RequiredBy *time.Time
}

type ItemRequest struct {
	ExpenseAccountID *snowflake.ID
	Description      string
	Quantity         decimal.Decimal
	UnitPrice        decimal.Decimal
}

type Repository interface {
	Create(ctx context.Context, db *gorm.DB, requisition *Requisition) error
	GetByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Requisition, error)

	// GetByIDForUpdate reads the requisition under a row lock so writers
	// evaluating chain completion serialize on the parent row.
	GetByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Requisition, error)

	List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, status string) ([]Requisition, error)

	ListItems(ctx context.Context, db *gorm.DB, requisitionID snowflake.ID) ([]RequisitionItem, error)
	GetItem(ctx context.Context, db *gorm.DB, requisitionID, itemID snowflake.ID) (*RequisitionItem, error)
	InsertItem(ctx context.Context, db *gorm.DB, item *RequisitionItem) error
	UpdateItem(ctx context.Context, db *gorm.DB, item *RequisitionItem) error
	DeleteItem(ctx context.Context, db *gorm.DB, requisitionID, itemID snowflake.ID) error

	// RecomputeTotal resets the parent total from its items inside the
	// caller's transaction, keeping the sum invariant.
	RecomputeTotal(ctx context.Context, db *gorm.DB, requisitionID snowflake.ID, at time.Time) (decimal.Decimal, error)

	// TransitionStatus applies a compare-and-swap on the status column.
	// Zero rows affected means the status moved underneath the caller.
	TransitionStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from, to Status, at time.Time, updates map[string]any) error
}

var (
	ErrNotFound            = errors.New("requisition_not_found")
	ErrInvalidTransition   = errors.New("invalid_transition")
	ErrEmptyLineItems      = errors.New("empty_line_items")
	ErrZeroTotalAmount     = errors.New("zero_total_amount")
	ErrNotDraft            = errors.New("not_editable")
	ErrNotOwner            = errors.New("not_owner")
	ErrItemNotFound        = errors.New("item_not_found")
	ErrInvalidQuantity     = errors.New("invalid_quantity")
	ErrInvalidUnitPrice    = errors.New("invalid_unit_price")
	ErrInvalidTitle        = errors.New("invalid_title")
	ErrInvalidStatusFilter = errors.New("invalid_status_filter")
	ErrConcurrentUpdate    = errors.New("concurrent_update")
	ErrBudgetExceeded      = errors.New("budget_exceeded")
)
