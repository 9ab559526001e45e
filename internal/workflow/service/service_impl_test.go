package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	auditdomain "github.com/openprocure/procura/internal/audit/domain"
	"github.com/openprocure/procura/internal/auditcontext"
	"github.com/openprocure/procura/internal/clock"
	orgdomain "github.com/openprocure/procura/internal/organization/domain"
	"github.com/openprocure/procura/internal/orgcontext"
	"github.com/openprocure/procura/internal/tenant"
	"github.com/openprocure/procura/internal/workflow/domain"
)

type auditDiscard struct{}

func (auditDiscard) Record(ctx context.Context, entry auditdomain.Entry) error { return nil }

func (auditDiscard) List(ctx context.Context, req auditdomain.ListAuditEventsRequest) (auditdomain.ListAuditEventsResponse, error) {
	return auditdomain.ListAuditEventsResponse{}, nil
}

func (auditDiscard) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

type harness struct {
	svc   domain.Service
	node  *snowflake.Node
	clock *clock.FakeClock
	orgID snowflake.ID
}

func setupWorkflowService(t *testing.T) *harness {
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

	if err := db.Exec(`CREATE TABLE approval_workflows (
		id BIGINT PRIMARY KEY,
		org_id BIGINT NOT NULL,
		name TEXT NOT NULL,
		amount_threshold_min NUMERIC NOT NULL,
		amount_threshold_max NUMERIC,
		required_approvers_count INTEGER NOT NULL,
		approval_roles TEXT NOT NULL,
		priority INTEGER NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at DATETIME NOT NULL
	)`).Error; err != nil {
		t.Fatalf("create approval_workflows: %v", err)
	}

	fake := clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	svc := NewService(Params{
		DB:    db,
		Log:   zap.NewNop(),
		Clock: fake,
		GenID: node,
		Guard: tenant.NewGuard(tenant.Params{Log: zap.NewNop(), AuditSvc: auditDiscard{}}),
	})

	return &harness{svc: svc, node: node, clock: fake, orgID: node.Generate()}
}

func (h *harness) ctx() context.Context {
	ctx := orgcontext.WithOrgID(context.Background(), int64(h.orgID))
	return auditcontext.WithActor(ctx, "user", "1")
}

func (h *harness) seed(t *testing.T, name string, max *decimal.Decimal, priority int) *domain.ApprovalWorkflow {
	t.Helper()
	workflow, err := h.svc.Create(h.ctx(), domain.CreateWorkflowRequest{
		Name:                   name,
		AmountThresholdMin:     decimal.Zero,
		AmountThresholdMax:     max,
		RequiredApproversCount: 1,
		ApprovalRoles:          []string{orgdomain.RoleApprover},
		Priority:               priority,
	})
	if err != nil {
		t.Fatalf("seed workflow %s: %v", name, err)
	}
	return workflow
}

func maxOf(value int64) *decimal.Decimal {
	d := decimal.NewFromInt(value)
	return &d
}

func TestCreateValidation(t *testing.T) {
	h := setupWorkflowService(t)

	cases := []struct {
		name string
		req  domain.CreateWorkflowRequest
		want error
	}{
		{
			name: "blank name",
			req: domain.CreateWorkflowRequest{
				RequiredApproversCount: 1,
				ApprovalRoles:          []string{orgdomain.RoleApprover},
			},
			want: domain.ErrInvalidName,
		},
		{
			name: "negative min",
			req: domain.CreateWorkflowRequest{
				Name:                   "w",
				AmountThresholdMin:     decimal.NewFromInt(-1),
				RequiredApproversCount: 1,
				ApprovalRoles:          []string{orgdomain.RoleApprover},
			},
			want: domain.ErrInvalidThresholds,
		},
		{
			name: "max below min",
			req: domain.CreateWorkflowRequest{
				Name:                   "w",
				AmountThresholdMin:     decimal.NewFromInt(100),
				AmountThresholdMax:     maxOf(50),
				RequiredApproversCount: 1,
				ApprovalRoles:          []string{orgdomain.RoleApprover},
			},
			want: domain.ErrInvalidThresholds,
		},
		{
			name: "zero approvers",
			req: domain.CreateWorkflowRequest{
				Name:          "w",
				ApprovalRoles: []string{orgdomain.RoleApprover},
			},
			want: domain.ErrInvalidApproverCount,
		},
		{
			name: "no roles",
			req: domain.CreateWorkflowRequest{
				Name:                   "w",
				RequiredApproversCount: 1,
			},
			want: domain.ErrInvalidApprovalRoles,
		},
		{
			name: "unknown role",
			req: domain.CreateWorkflowRequest{
				Name:                   "w",
				RequiredApproversCount: 1,
				ApprovalRoles:          []string{"MANAGER"},
			},
			want: domain.ErrInvalidApprovalRoles,
		},
	}
	for _, tc := range cases {
		if _, err := h.svc.Create(h.ctx(), tc.req); err != tc.want {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}

	if _, err := h.svc.Create(context.Background(), domain.CreateWorkflowRequest{
		Name:                   "w",
		RequiredApproversCount: 1,
		ApprovalRoles:          []string{orgdomain.RoleApprover},
	}); err != tenant.ErrNoOrganizationSelected {
		t.Fatalf("expected ErrNoOrganizationSelected without org scope, got %v", err)
	}
}

func TestResolvePicksTier(t *testing.T) {
	h := setupWorkflowService(t)

	small := h.seed(t, "Small", maxOf(1000), 10)
	h.clock.Advance(time.Second)
	standard := h.seed(t, "Standard", maxOf(10000), 20)
	h.clock.Advance(time.Second)
	large := h.seed(t, "Large", nil, 30)

	cases := []struct {
		amount string
		want   snowflake.ID
	}{
		{"500", small.ID},
		{"1000", small.ID},
		{"1000.01", standard.ID},
		{"10000", standard.ID},
		{"250000", large.ID},
	}
	for _, tc := range cases {
		amount, err := decimal.NewFromString(tc.amount)
		if err != nil {
			t.Fatalf("parse %s: %v", tc.amount, err)
		}
		got, err := h.svc.Resolve(h.ctx(), amount)
		if err != nil {
			t.Fatalf("resolve %s: %v", tc.amount, err)
		}
		if got.ID != tc.want {
			t.Errorf("resolve %s: expected workflow %s, got %s", tc.amount, tc.want, got.ID)
		}
	}

	if _, err := h.svc.Resolve(h.ctx(), decimal.NewFromInt(-1)); err != domain.ErrInvalidAmount {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestResolveSkipsInactiveAndFailsClosed(t *testing.T) {
	h := setupWorkflowService(t)
	only := h.seed(t, "Only", maxOf(1000), 10)

	if err := h.svc.SetActive(h.ctx(), only.ID, false); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if _, err := h.svc.Resolve(h.ctx(), decimal.NewFromInt(500)); err != domain.ErrNoApplicableWorkflow {
		t.Fatalf("expected ErrNoApplicableWorkflow, got %v", err)
	}

	if err := h.svc.SetActive(h.ctx(), only.ID, true); err != nil {
		t.Fatalf("reactivate: %v", err)
	}
	if _, err := h.svc.Resolve(h.ctx(), decimal.NewFromInt(2000)); err != domain.ErrNoApplicableWorkflow {
		t.Fatalf("expected ErrNoApplicableWorkflow above every range, got %v", err)
	}
}

func TestWorkflowTenantScope(t *testing.T) {
	h := setupWorkflowService(t)
	workflow := h.seed(t, "Only", maxOf(1000), 10)

	foreign := orgcontext.WithOrgID(context.Background(), int64(h.node.Generate()))
	foreign = auditcontext.WithActor(foreign, "user", "99")

	if _, err := h.svc.GetByID(foreign, workflow.ID); err != tenant.ErrAccessDenied {
		t.Fatalf("expected ErrAccessDenied, got %v", err)
	}

	workflows, err := h.svc.List(foreign)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(workflows) != 0 {
		t.Fatalf("expected no workflows in foreign org, got %d", len(workflows))
	}

	if _, err := h.svc.Resolve(foreign, decimal.NewFromInt(500)); err != domain.ErrNoApplicableWorkflow {
		t.Fatalf("expected ErrNoApplicableWorkflow in foreign org, got %v", err)
	}
}
