// Package domain contains the audit event model and service contract.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Severity classifies audit events. Critical events are exempt from the
// retention sweep.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Known event types recorded by the core services.
const (
	EventIsolationViolation   = "tenant.isolation_violation"
	EventSignupRateLimited    = "signup.rate_limited"
	EventRequisitionSubmitted = "requisition.submitted"
	EventRequisitionCancelled = "requisition.cancelled"
	EventRequisitionReceived  = "requisition.received"
	EventDecisionRecorded     = "approval.decision_recorded"
	EventOrganizationCreated  = "organization.created"
)

// AuditEvent is an append-only record. Rows are never updated; deletion
// happens only through the retention sweep, which skips critical events.
type AuditEvent struct {
	ID           snowflake.ID      `gorm:"primaryKey" json:"id"`
	OrgID        *snowflake.ID     `gorm:"index:idx_audit_events_org_created,priority:1" json:"org_id"`
	ActorID      *string           `gorm:"type:text" json:"actor_id"`
	EventType    string            `gorm:"type:text;not null;index" json:"event_type"`
	Severity     Severity          `gorm:"type:text;not null" json:"severity"`
	TargetOrgID  *snowflake.ID     `json:"target_org_id,omitempty"`
	ResourceType string            `gorm:"type:text;not null" json:"resource_type"`
	ResourceID   *string           `gorm:"type:text" json:"resource_id"`
	IPAddress    *string           `gorm:"type:text" json:"ip_address,omitempty"`
	UserAgent    *string           `gorm:"type:text" json:"user_agent,omitempty"`
	Metadata     datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"metadata"`
	CreatedAt    time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP;index:idx_audit_events_org_created,priority:2" json:"created_at"`
}

// TableName sets the database table name.
func (AuditEvent) TableName() string { return "audit_events" }

// AuditCursor orders listing pages by (created_at, id) descending.
type AuditCursor struct {
	ID        snowflake.ID
	CreatedAt time.Time
}

// ListFilter narrows a listing query. OrgID is mandatory.
type ListFilter struct {
	OrgID     snowflake.ID
	EventType string
	Severity  string
	StartAt   *time.Time
	EndAt     *time.Time
	Cursor    *AuditCursor
	Limit     int
}
