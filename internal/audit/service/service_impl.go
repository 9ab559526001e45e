package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	auditdomain "github.com/openprocure/procura/internal/audit/domain"
	"github.com/openprocure/procura/internal/auditcontext"
	"github.com/openprocure/procura/internal/clock"
	"github.com/openprocure/procura/internal/orgcontext"
	"github.com/openprocure/procura/pkg/db/pagination"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock
	GenID *snowflake.Node
	Repo  auditdomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock
	genID *snowflake.Node
	repo  auditdomain.Repository
}

func NewService(p Params) auditdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("audit.service"),
		clock: p.Clock,
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *Service) Record(ctx context.Context, entry auditdomain.Entry) error {
	eventType := strings.TrimSpace(entry.EventType)
	if eventType == "" {
		return auditdomain.ErrInvalidEventType
	}

	severity := entry.Severity
	switch severity {
	case auditdomain.SeverityInfo, auditdomain.SeverityWarning, auditdomain.SeverityCritical:
	case "":
		severity = auditdomain.SeverityInfo
	default:
		return auditdomain.ErrInvalidSeverity
	}

	resourceType := strings.TrimSpace(entry.ResourceType)
	if resourceType == "" {
		resourceType = "unknown"
	}

	payload := map[string]any{}
	for key, value := range entry.Metadata {
		if key == "" {
			continue
		}
		payload[key] = value
	}
	if requestID := auditcontext.RequestIDFromContext(ctx); requestID != "" {
		payload["request_id"] = requestID
	}

	event := auditdomain.AuditEvent{
		ID:           s.genID.Generate(),
		OrgID:        s.resolveOrgID(ctx, entry.OrgID),
		ActorID:      s.resolveActorID(ctx, entry.ActorID),
		EventType:    eventType,
		Severity:     severity,
		TargetOrgID:  entry.TargetOrgID,
		ResourceType: resourceType,
		ResourceID:   normalizePointer(entry.ResourceID),
		Metadata:     datatypes.JSONMap(payload),
		CreatedAt:    s.clock.Now(),
	}
	if ip := auditcontext.IPAddressFromContext(ctx); ip != "" {
		event.IPAddress = &ip
	}
	if ua := auditcontext.UserAgentFromContext(ctx); ua != "" {
		event.UserAgent = &ua
	}

	if err := s.repo.Insert(ctx, s.db, &event); err != nil {
		s.log.Error("failed to write audit event",
			zap.String("event_type", eventType),
			zap.String("severity", string(severity)),
			zap.Error(err),
		)
		return err
	}
	return nil
}

func (s *Service) List(ctx context.Context, req auditdomain.ListAuditEventsRequest) (auditdomain.ListAuditEventsResponse, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return auditdomain.ListAuditEventsResponse{}, auditdomain.ErrInvalidOrganization
	}

	if req.StartAt != nil && req.EndAt != nil && req.StartAt.After(*req.EndAt) {
		return auditdomain.ListAuditEventsResponse{}, auditdomain.ErrInvalidTimeRange
	}

	var cursor *auditdomain.AuditCursor
	if strings.TrimSpace(req.PageToken) != "" {
		decoded, err := pagination.DecodeCursor(req.PageToken)
		if err != nil {
			return auditdomain.ListAuditEventsResponse{}, auditdomain.ErrInvalidPageToken
		}
		createdAt, err := time.Parse(time.RFC3339, decoded.CreatedAt)
		if err != nil {
			return auditdomain.ListAuditEventsResponse{}, auditdomain.ErrInvalidPageToken
		}
		id, err := snowflake.ParseString(strings.TrimSpace(decoded.ID))
		if err != nil || id == 0 {
			return auditdomain.ListAuditEventsResponse{}, auditdomain.ErrInvalidPageToken
		}
		cursor = &auditdomain.AuditCursor{
			ID:        id,
			CreatedAt: createdAt,
		}
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	if pageSize > 250 {
		pageSize = 250
	}

	items, err := s.repo.List(ctx, s.db, auditdomain.ListFilter{
		OrgID:     orgID,
		EventType: req.EventType,
		Severity:  req.Severity,
		StartAt:   req.StartAt,
		EndAt:     req.EndAt,
		Cursor:    cursor,
		Limit:     int(pageSize),
	})
	if err != nil {
		return auditdomain.ListAuditEventsResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(item *auditdomain.AuditEvent) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        item.ID.String(),
			CreatedAt: item.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > int(pageSize) {
		items = items[:pageSize]
	}

	events := make([]auditdomain.AuditEvent, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		events = append(events, *item)
	}

	resp := auditdomain.ListAuditEventsResponse{AuditEvents: events}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func (s *Service) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	if before.IsZero() {
		return 0, auditdomain.ErrInvalidTimeRange
	}
	deleted, err := s.repo.DeleteBefore(ctx, s.db, before)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		s.log.Info("audit retention sweep", zap.Int64("deleted", deleted), zap.Time("before", before))
	}
	return deleted, nil
}

func (s *Service) resolveOrgID(ctx context.Context, orgID *snowflake.ID) *snowflake.ID {
	if orgID != nil && *orgID != 0 {
		return orgID
	}
	resolved, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || resolved == 0 {
		return nil
	}
	return &resolved
}

func (s *Service) resolveActorID(ctx context.Context, actorID *string) *string {
	if normalized := normalizePointer(actorID); normalized != nil {
		return normalized
	}
	if _, ctxID := auditcontext.ActorFromContext(ctx); ctxID != "" {
		return &ctxID
	}
	return nil
}

func normalizePointer(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
