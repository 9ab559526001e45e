package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/openprocure/procura/pkg/db/pagination"
)

// Entry is the write-side shape of an audit event. The service resolves
// actor and request metadata from context when the caller leaves them empty.
type Entry struct {
	OrgID        *snowflake.ID
	ActorID      *string
	EventType    string
	Severity     Severity
	TargetOrgID  *snowflake.ID
	ResourceType string
	ResourceID   *string
	Metadata     map[string]any
}

type ListAuditEventsRequest struct {
	pagination.Pagination
	EventType string
	Severity  string
	StartAt   *time.Time
	EndAt     *time.Time
}

type ListAuditEventsResponse struct {
	pagination.PageInfo
	AuditEvents []AuditEvent `json:"audit_events"`
}

type Service interface {
	// Record appends one event. It must succeed before a denial that it
	// evidences is returned to the caller.
	Record(ctx context.Context, entry Entry) error
	List(ctx context.Context, req ListAuditEventsRequest) (ListAuditEventsResponse, error)
	// PurgeExpired removes events older than the cutoff. Critical events
	// are kept regardless of age.
	PurgeExpired(ctx context.Context, before time.Time) (int64, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, event *AuditEvent) error
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*AuditEvent, error)
	DeleteBefore(ctx context.Context, db *gorm.DB, before time.Time) (int64, error)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidEventType    = errors.New("invalid_event_type")
	ErrInvalidSeverity     = errors.New("invalid_severity")
	ErrInvalidPageToken    = errors.New("invalid_page_token")
	ErrInvalidTimeRange    = errors.New("invalid_time_range")
)
