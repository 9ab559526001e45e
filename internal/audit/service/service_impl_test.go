package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"

	auditdomain "github.com/openprocure/procura/internal/audit/domain"
	"github.com/openprocure/procura/internal/audit/repository"
	"github.com/openprocure/procura/internal/auditcontext"
	"github.com/openprocure/procura/internal/clock"
	"github.com/openprocure/procura/internal/orgcontext"
)

type harness struct {
	svc   auditdomain.Service
	db    *gorm.DB
	node  *snowflake.Node
	clock *clock.FakeClock
	orgID snowflake.ID
}

func setupAuditService(t *testing.T) *harness {
	t.Helper()

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	if err := db.Exec(`CREATE TABLE audit_events (
		id BIGINT PRIMARY KEY,
		org_id BIGINT,
		actor_id TEXT,
		event_type TEXT NOT NULL,
		severity TEXT NOT NULL,
		target_org_id BIGINT,
		resource_type TEXT NOT NULL,
		resource_id TEXT,
		ip_address TEXT,
		user_agent TEXT,
		metadata TEXT NOT NULL DEFAULT '{}',
		created_at DATETIME NOT NULL
	)`).Error; err != nil {
		t.Fatalf("create audit_events: %v", err)
	}

	fake := clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	svc := NewService(Params{
		DB:    db,
		Log:   zap.NewNop(),
		Clock: fake,
		GenID: node,
		Repo:  repository.Provide(),
	})

	return &harness{svc: svc, db: db, node: node, clock: fake, orgID: node.Generate()}
}

func (h *harness) ctx() context.Context {
	ctx := orgcontext.WithOrgID(context.Background(), int64(h.orgID))
	return auditcontext.WithActor(ctx, "user", "42")
}

func (h *harness) record(t *testing.T, eventType string, severity auditdomain.Severity) {
	t.Helper()
	err := h.svc.Record(h.ctx(), auditdomain.Entry{
		EventType:    eventType,
		Severity:     severity,
		ResourceType: "requisition",
	})
	if err != nil {
		t.Fatalf("record %s: %v", eventType, err)
	}
}

func TestRecordResolvesContext(t *testing.T) {
	h := setupAuditService(t)

	h.record(t, auditdomain.EventRequisitionSubmitted, "")

	var event auditdomain.AuditEvent
	if err := h.db.First(&event).Error; err != nil {
		t.Fatalf("load event: %v", err)
	}
	if event.OrgID == nil || *event.OrgID != h.orgID {
		t.Fatalf("expected org %s from context, got %v", h.orgID, event.OrgID)
	}
	if event.ActorID == nil || *event.ActorID != "42" {
		t.Fatalf("expected actor 42 from context, got %v", event.ActorID)
	}
	if event.Severity != auditdomain.SeverityInfo {
		t.Fatalf("expected default severity info, got %s", event.Severity)
	}
	if !event.CreatedAt.Equal(h.clock.Now()) {
		t.Fatalf("expected clock timestamp, got %s", event.CreatedAt)
	}
}

func TestRecordValidation(t *testing.T) {
	h := setupAuditService(t)

	err := h.svc.Record(h.ctx(), auditdomain.Entry{EventType: "  "})
	if err != auditdomain.ErrInvalidEventType {
		t.Fatalf("expected ErrInvalidEventType, got %v", err)
	}

	err = h.svc.Record(h.ctx(), auditdomain.Entry{
		EventType: auditdomain.EventRequisitionSubmitted,
		Severity:  "loud",
	})
	if err != auditdomain.ErrInvalidSeverity {
		t.Fatalf("expected ErrInvalidSeverity, got %v", err)
	}
}

func TestListPaginatesNewestFirst(t *testing.T) {
	h := setupAuditService(t)

	for i := 0; i < 3; i++ {
		h.record(t, auditdomain.EventRequisitionSubmitted, auditdomain.SeverityInfo)
		h.clock.Advance(time.Minute)
	}

	resp, err := h.svc.List(h.ctx(), auditdomain.ListAuditEventsRequest{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(resp.AuditEvents) != 3 {
		t.Fatalf("expected 3 events, got %d", len(resp.AuditEvents))
	}
	for i := 1; i < len(resp.AuditEvents); i++ {
		if resp.AuditEvents[i].CreatedAt.After(resp.AuditEvents[i-1].CreatedAt) {
			t.Fatal("expected newest-first ordering")
		}
	}

	req := auditdomain.ListAuditEventsRequest{}
	req.PageSize = 2
	first, err := h.svc.List(h.ctx(), req)
	if err != nil {
		t.Fatalf("first page: %v", err)
	}
	if len(first.AuditEvents) != 2 {
		t.Fatalf("expected 2 events on first page, got %d", len(first.AuditEvents))
	}
	if !first.PageInfo.HasMore || first.PageInfo.NextPageToken == "" {
		t.Fatalf("expected a next page, got %+v", first.PageInfo)
	}

	req.PageToken = first.PageInfo.NextPageToken
	second, err := h.svc.List(h.ctx(), req)
	if err != nil {
		t.Fatalf("second page: %v", err)
	}
	if len(second.AuditEvents) != 1 {
		t.Fatalf("expected 1 event on second page, got %d", len(second.AuditEvents))
	}
	if second.PageInfo.HasMore {
		t.Fatal("expected final page")
	}
	if second.AuditEvents[0].ID == first.AuditEvents[0].ID || second.AuditEvents[0].ID == first.AuditEvents[1].ID {
		t.Fatal("expected pages not to overlap")
	}
}

func TestListFilters(t *testing.T) {
	h := setupAuditService(t)

	h.record(t, auditdomain.EventRequisitionSubmitted, auditdomain.SeverityInfo)
	h.record(t, auditdomain.EventIsolationViolation, auditdomain.SeverityCritical)

	resp, err := h.svc.List(h.ctx(), auditdomain.ListAuditEventsRequest{
		EventType: auditdomain.EventIsolationViolation,
	})
	if err != nil {
		t.Fatalf("list by event type: %v", err)
	}
	if len(resp.AuditEvents) != 1 || resp.AuditEvents[0].EventType != auditdomain.EventIsolationViolation {
		t.Fatalf("expected only the isolation event, got %+v", resp.AuditEvents)
	}

	resp, err = h.svc.List(h.ctx(), auditdomain.ListAuditEventsRequest{Severity: "critical"})
	if err != nil {
		t.Fatalf("list by severity: %v", err)
	}
	if len(resp.AuditEvents) != 1 {
		t.Fatalf("expected 1 critical event, got %d", len(resp.AuditEvents))
	}

	start := h.clock.Now().Add(time.Hour)
	end := h.clock.Now()
	if _, err = h.svc.List(h.ctx(), auditdomain.ListAuditEventsRequest{StartAt: &start, EndAt: &end}); err != auditdomain.ErrInvalidTimeRange {
		t.Fatalf("expected ErrInvalidTimeRange, got %v", err)
	}

	if _, err = h.svc.List(context.Background(), auditdomain.ListAuditEventsRequest{}); err != auditdomain.ErrInvalidOrganization {
		t.Fatalf("expected ErrInvalidOrganization without org scope, got %v", err)
	}

	req := auditdomain.ListAuditEventsRequest{}
	req.PageToken = "not-a-cursor"
	if _, err = h.svc.List(h.ctx(), req); err != auditdomain.ErrInvalidPageToken {
		t.Fatalf("expected ErrInvalidPageToken, got %v", err)
	}
}

func TestPurgeKeepsCriticalEvents(t *testing.T) {
	h := setupAuditService(t)

	h.record(t, auditdomain.EventRequisitionSubmitted, auditdomain.SeverityInfo)
	h.record(t, auditdomain.EventIsolationViolation, auditdomain.SeverityCritical)
	h.clock.Advance(48 * time.Hour)
	h.record(t, auditdomain.EventRequisitionCancelled, auditdomain.SeverityInfo)

	cutoff := h.clock.Now().Add(-24 * time.Hour)
	deleted, err := h.svc.PurgeExpired(h.ctx(), cutoff)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 purged event, got %d", deleted)
	}

	resp, err := h.svc.List(h.ctx(), auditdomain.ListAuditEventsRequest{})
	if err != nil {
		t.Fatalf("list after purge: %v", err)
	}
	if len(resp.AuditEvents) != 2 {
		t.Fatalf("expected 2 surviving events, got %d", len(resp.AuditEvents))
	}
	for _, event := range resp.AuditEvents {
		if event.EventType == auditdomain.EventRequisitionSubmitted {
			t.Fatal("expected the old info event to be purged")
		}
	}

	if _, err := h.svc.PurgeExpired(h.ctx(), time.Time{}); err != auditdomain.ErrInvalidTimeRange {
		t.Fatalf("expected ErrInvalidTimeRange on zero cutoff, got %v", err)
	}
}
