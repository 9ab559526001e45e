// Package domain contains the approval decision model and chain state.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"

	reqdomain "github.com/openprocure/procura/internal/requisition/domain"
)

const (
	DecisionApprove = "approve"
	DecisionReject  = "reject"
)

// ValidDecision reports whether raw names a known stance.
func ValidDecision(raw string) bool {
	return raw == DecisionApprove || raw == DecisionReject
}

// ApprovalDecision is one approver's stance on a requisition. An approver
// holds at most one row per requisition; re-deciding before the chain
// resolves replaces the stance in place.
type ApprovalDecision struct {
	ID            snowflake.ID `gorm:"primaryKey" json:"id"`
	DecisionUID   string       `gorm:"type:uuid;not null;uniqueIndex" json:"decision_uid"`
	RequisitionID snowflake.ID `gorm:"not null;uniqueIndex:ux_approval_decisions_req_approver,priority:1" json:"requisition_id"`
	ApproverID    snowflake.ID `gorm:"not null;uniqueIndex:ux_approval_decisions_req_approver,priority:2" json:"approver_id"`
	Decision      string       `gorm:"type:text;not null" json:"decision"`
	Comment       string       `gorm:"type:text" json:"comment"`
	CreatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (ApprovalDecision) TableName() string { return "approval_decisions" }

// ChainStatus is the read-side view of where a requisition stands in its
// approval chain.
type ChainStatus struct {
	RequisitionID      snowflake.ID     `json:"requisition_id"`
	WorkflowID         *snowflake.ID    `json:"workflow_id"`
	RequiredApprovals  int              `json:"required_approvals"`
	ApprovalsRecorded  int              `json:"approvals_recorded"`
	RejectionsRecorded int              `json:"rejections_recorded"`
	Resolved           bool             `json:"resolved"`
	Status             reqdomain.Status `json:"status"`
}
