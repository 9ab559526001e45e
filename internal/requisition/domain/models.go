// Package domain contains the requisition model and its status state machine.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Requisition is a purchase request progressing from draft through approval
// to fulfillment. Rows are never deleted; cancellation is a terminal status.
type Requisition struct {
	ID          snowflake.ID    `gorm:"primaryKey" json:"id"`
	OrgID       snowflake.ID    `gorm:"not null;index:idx_requisitions_org_status,priority:1;index:idx_requisitions_org_project,priority:1" json:"org_id"`
	ProjectID   snowflake.ID    `gorm:"not null;index:idx_requisitions_org_project,priority:2" json:"project_id"`
	WorkflowID  *snowflake.ID   `json:"workflow_id,omitempty"`
	Status      Status          `gorm:"type:text;not null;index:idx_requisitions_org_status,priority:2" json:"status"`
	Title       string          `gorm:"type:text;not null" json:"title"`
	TotalAmount decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"total_amount"`
	SubmittedBy snowflake.ID    `gorm:"not null;index" json:"submitted_by"`
	SubmittedAt *time.Time      `json:"submitted_at,omitempty"`
	RequiredBy  *time.Time      `json:"required_by,omitempty"`
	CreatedAt   time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Requisition) TableName() string { return "requisitions" }

// RequisitionItem is one line of a requisition. The parent's total_amount
// equals the sum of item totals at all times; mutations recompute it in the
// same transaction.
type RequisitionItem struct {
	ID               snowflake.ID    `gorm:"primaryKey" json:"id"`
	RequisitionID    snowflake.ID    `gorm:"not null;index" json:"requisition_id"`
	ExpenseAccountID *snowflake.ID   `json:"expense_account_id,omitempty"`
	Description      string          `gorm:"type:text;not null" json:"description"`
	Quantity         decimal.Decimal `gorm:"type:numeric(12,3);not null" json:"quantity"`
	UnitPrice        decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"unit_price"`
	TotalPrice       decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"total_price"`
	CreatedAt        time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (RequisitionItem) TableName() string { return "requisition_items" }
