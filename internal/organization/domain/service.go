package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	Create(ctx context.Context, req CreateOrganizationRequest) (*Organization, error)
	GetByID(ctx context.Context, id snowflake.ID) (*Organization, error)
	AddMember(ctx context.Context, orgID, userID snowflake.ID, role string) error
	MemberRole(ctx context.Context, orgID, userID snowflake.ID) (string, error)
	Suspend(ctx context.Context, id snowflake.ID) error
	Resume(ctx context.Context, id snowflake.ID) error
	Cancel(ctx context.Context, id snowflake.ID) error

	// EnsureOperational fails when the org cannot run core operations
	// (suspended or cancelled).
	EnsureOperational(ctx context.Context, id snowflake.ID) (*Organization, error)

	// EnsureRequisitionQuota fails when the org has reached its monthly
	// requisition limit.
	EnsureRequisitionQuota(ctx context.Context, org *Organization) error
}

type CreateOrganizationRequest struct {
	Name string
	Plan string
}

var (
	ErrInvalidName             = errors.New("invalid_name")
	ErrInvalidPlan             = errors.New("invalid_plan")
	ErrInvalidRole             = errors.New("invalid_role")
	ErrNotFound                = errors.New("organization_not_found")
	ErrNotMember               = errors.New("not_a_member")
	ErrSlugTaken               = errors.New("slug_taken")
	ErrOrganizationSuspended   = errors.New("organization_suspended")
	ErrOrganizationCancelled   = errors.New("organization_cancelled")
	ErrRequisitionQuotaReached = errors.New("requisition_quota_reached")
	ErrMemberQuotaReached      = errors.New("member_quota_reached")
	ErrInvalidStatusChange     = errors.New("invalid_status_change")
)
