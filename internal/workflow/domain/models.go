// Package domain contains the approval workflow policy model and the
// resolver's selection rule.
package domain

import (
	"sort"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// ApprovalWorkflow maps an amount range to a required approver count and
// the roles eligible to approve. Ranges may overlap; priority breaks ties.
type ApprovalWorkflow struct {
	ID                     snowflake.ID                 `gorm:"primaryKey" json:"id"`
	OrgID                  snowflake.ID                 `gorm:"not null;index;index:idx_approval_workflows_org_active,priority:1" json:"org_id"`
	Name                   string                       `gorm:"type:text;not null" json:"name"`
	AmountThresholdMin     decimal.Decimal              `gorm:"type:numeric(18,2);not null" json:"amount_threshold_min"`
	AmountThresholdMax     *decimal.Decimal             `gorm:"type:numeric(18,2)" json:"amount_threshold_max"`
	RequiredApproversCount int                          `gorm:"not null" json:"required_approvers_count"`
	ApprovalRoles          datatypes.JSONSlice[string]  `gorm:"not null" json:"approval_roles"`
	Priority               int                          `gorm:"not null" json:"priority"`
	IsActive               bool                         `gorm:"not null;default:true;index:idx_approval_workflows_org_active,priority:2" json:"is_active"`
	CreatedAt              time.Time                    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (ApprovalWorkflow) TableName() string { return "approval_workflows" }

// Matches reports whether amount falls inside the workflow's range. A nil
// max means unbounded.
func (w ApprovalWorkflow) Matches(amount decimal.Decimal) bool {
	if amount.LessThan(w.AmountThresholdMin) {
		return false
	}
	if w.AmountThresholdMax != nil && amount.GreaterThan(*w.AmountThresholdMax) {
		return false
	}
	return true
}

// RoleEligible reports whether the role may approve under this workflow.
func (w ApprovalWorkflow) RoleEligible(role string) bool {
	for _, r := range w.ApprovalRoles {
		if r == role {
			return true
		}
	}
	return false
}

// Select picks the applicable workflow for an amount. Lowest priority wins;
// ties break by smallest range width (unbounded counts as infinite), then
// earliest created_at, then lowest ID. The order is total, so resolution is
// reproducible for identical inputs and configuration.
func Select(workflows []ApprovalWorkflow, amount decimal.Decimal) *ApprovalWorkflow {
	matches := make([]ApprovalWorkflow, 0, len(workflows))
	for _, w := range workflows {
		if w.IsActive && w.Matches(amount) {
			matches = append(matches, w)
		}
	}
	if len(matches) == 0 {
		return nil
	}

	sort.Slice(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		aw, awBounded := a.rangeWidth()
		bw, bwBounded := b.rangeWidth()
		if awBounded != bwBounded {
			return awBounded
		}
		if awBounded && bwBounded && !aw.Equal(bw) {
			return aw.LessThan(bw)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})

	selected := matches[0]
	return &selected
}

func (w ApprovalWorkflow) rangeWidth() (decimal.Decimal, bool) {
	if w.AmountThresholdMax == nil {
		return decimal.Zero, false
	}
	return w.AmountThresholdMax.Sub(w.AmountThresholdMin), true
}
