// Package domain contains the expense account model.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// ExpenseAccount categorizes requisition line items. Independent of Project.
type ExpenseAccount struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID     snowflake.ID `gorm:"not null;index;uniqueIndex:ux_expense_accounts_org_code,priority:1" json:"org_id"`
	Code      string       `gorm:"type:text;not null;uniqueIndex:ux_expense_accounts_org_code,priority:2" json:"code"`
	Name      string       `gorm:"type:text;not null" json:"name"`
	IsActive  bool         `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (ExpenseAccount) TableName() string { return "expense_accounts" }

type Service interface {
	Create(ctx context.Context, code, name string) (*ExpenseAccount, error)
	GetByID(ctx context.Context, id snowflake.ID) (*ExpenseAccount, error)
	List(ctx context.Context) ([]ExpenseAccount, error)
}

var (
	ErrInvalidCode = errors.New("invalid_code")
	ErrInvalidName = errors.New("invalid_name")
	ErrCodeTaken   = errors.New("code_taken")
	ErrNotFound    = errors.New("expense_account_not_found")
)
