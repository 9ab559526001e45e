// Package domain contains persistence models for the organization service.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Status tracks the tenant lifecycle. Organizations are never hard-deleted;
// billing events move them to suspended or cancelled.
type Status string

const (
	StatusTrial     Status = "trial"
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusCancelled Status = "cancelled"
)

// Plan tiers with their numeric limits.
const (
	PlanFree     = "free"
	PlanStandard = "standard"
	PlanBusiness = "business"
)

const (
	RoleOwner     = "OWNER"
	RoleAdmin     = "ADMIN"
	RoleApprover  = "APPROVER"
	RoleSubmitter = "SUBMITTER"
	RoleViewer    = "VIEWER"
)

// Organization represents a tenant. Every other row in the system is scoped
// to exactly one organization.
type Organization struct {
	ID                      snowflake.ID      `gorm:"primaryKey" json:"id"`
	Name                    string            `gorm:"type:text;not null" json:"name"`
	Slug                    string            `gorm:"type:text;not null;uniqueIndex:ux_organizations_slug" json:"slug"`
	Status                  Status            `gorm:"type:text;not null" json:"status"`
	Plan                    string            `gorm:"type:text;not null" json:"plan"`
	MaxUsers                int               `gorm:"not null" json:"max_users"`
	MaxProjects             int               `gorm:"not null" json:"max_projects"`
	MaxRequisitionsPerMonth int               `gorm:"not null" json:"max_requisitions_per_month"`
	Metadata                datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"metadata"`
	CreatedAt               time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt               time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Organization) TableName() string { return "organizations" }

// PlanLimits returns the numeric limits for a plan tier.
func PlanLimits(plan string) (maxUsers, maxProjects, maxRequisitionsPerMonth int) {
	switch plan {
	case PlanBusiness:
		return 250, 100, 5000
	case PlanStandard:
		return 50, 25, 1000
	default:
		return 5, 3, 50
	}
}

// OrganizationMember represents membership of a user in an organization.
type OrganizationMember struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID     snowflake.ID `gorm:"not null;index;uniqueIndex:ux_org_user,priority:1" json:"org_id"`
	UserID    snowflake.ID `gorm:"not null;index;uniqueIndex:ux_org_user,priority:2" json:"user_id"`
	Role      string       `gorm:"type:text;not null" json:"role"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (OrganizationMember) TableName() string { return "organization_members" }

// ValidRole reports whether role is one of the closed role set. Unknown
// values are rejected at the boundary.
func ValidRole(role string) bool {
	switch role {
	case RoleOwner, RoleAdmin, RoleApprover, RoleSubmitter, RoleViewer:
		return true
	default:
		return false
	}
}
