// Package domain contains persistence models for the project service.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Project carries a fixed budget that the ledger measures requisitions
// against. Requisitions referencing a project must share its org.
type Project struct {
	ID        snowflake.ID    `gorm:"primaryKey" json:"id"`
	OrgID     snowflake.ID    `gorm:"not null;index;index:idx_projects_org_active,priority:1" json:"org_id"`
	Name      string          `gorm:"type:text;not null" json:"name"`
	Budget    decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"budget"`
	IsActive  bool            `gorm:"not null;default:true;index:idx_projects_org_active,priority:2" json:"is_active"`
	CreatedAt time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Project) TableName() string { return "projects" }
