package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/openprocure/procura/internal/approval/domain"
	"github.com/openprocure/procura/internal/approval/repository"
	auditdomain "github.com/openprocure/procura/internal/audit/domain"
	"github.com/openprocure/procura/internal/auditcontext"
	"github.com/openprocure/procura/internal/clock"
	orgdomain "github.com/openprocure/procura/internal/organization/domain"
	"github.com/openprocure/procura/internal/orgcontext"
	reqdomain "github.com/openprocure/procura/internal/requisition/domain"
	reqrepository "github.com/openprocure/procura/internal/requisition/repository"
	"github.com/openprocure/procura/internal/tenant"
	workflowdomain "github.com/openprocure/procura/internal/workflow/domain"
)

type auditRecorder struct {
	mu      sync.Mutex
	entries []auditdomain.Entry
}

func (a *auditRecorder) Record(ctx context.Context, entry auditdomain.Entry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, entry)
	return nil
}

func (a *auditRecorder) List(ctx context.Context, req auditdomain.ListAuditEventsRequest) (auditdomain.ListAuditEventsResponse, error) {
	return auditdomain.ListAuditEventsResponse{}, nil
}

func (a *auditRecorder) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

type orgStub struct {
	roles map[snowflake.ID]string
}

func (o *orgStub) Create(ctx context.Context, req orgdomain.CreateOrganizationRequest) (*orgdomain.Organization, error) {
	return nil, nil
}

func (o *orgStub) GetByID(ctx context.Context, id snowflake.ID) (*orgdomain.Organization, error) {
	return nil, nil
}

func (o *orgStub) AddMember(ctx context.Context, orgID, userID snowflake.ID, role string) error {
	return nil
}

func (o *orgStub) MemberRole(ctx context.Context, orgID, userID snowflake.ID) (string, error) {
	role, ok := o.roles[userID]
	if !ok {
		return "", orgdomain.ErrNotMember
	}
	return role, nil
}

func (o *orgStub) Suspend(ctx context.Context, id snowflake.ID) error { return nil }
func (o *orgStub) Resume(ctx context.Context, id snowflake.ID) error  { return nil }
func (o *orgStub) Cancel(ctx context.Context, id snowflake.ID) error  { return nil }

func (o *orgStub) EnsureOperational(ctx context.Context, id snowflake.ID) (*orgdomain.Organization, error) {
	return nil, nil
}

func (o *orgStub) EnsureRequisitionQuota(ctx context.Context, org *orgdomain.Organization) error {
	return nil
}

type workflowStub struct {
	workflow *workflowdomain.ApprovalWorkflow
}

func (w *workflowStub) Create(ctx context.Context, req workflowdomain.CreateWorkflowRequest) (*workflowdomain.ApprovalWorkflow, error) {
	return w.workflow, nil
}

func (w *workflowStub) List(ctx context.Context) ([]workflowdomain.ApprovalWorkflow, error) {
	return nil, nil
}

func (w *workflowStub) GetByID(ctx context.Context, id snowflake.ID) (*workflowdomain.ApprovalWorkflow, error) {
	return w.workflow, nil
}

func (w *workflowStub) SetActive(ctx context.Context, id snowflake.ID, active bool) error {
	return nil
}

func (w *workflowStub) Resolve(ctx context.Context, amount decimal.Decimal) (*workflowdomain.ApprovalWorkflow, error) {
	return w.workflow, nil
}

type harness struct {
	svc      domain.Service
	db       *gorm.DB
	node     *snowflake.Node
	clock    *clock.FakeClock
	audit    *auditRecorder
	org      *orgStub
	workflow *workflowdomain.ApprovalWorkflow
	orgID    snowflake.ID
}

func setupApprovalService(t *testing.T) *harness {
	t.Helper()

	node := mustNode(t)
	orgID := node.Generate()
	workflowID := node.Generate()

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
	prepareApprovalSchema(t, db)

	recorder := &auditRecorder{}
	guard := tenant.NewGuard(tenant.Params{Log: zap.NewNop(), AuditSvc: recorder})

	workflow := &workflowdomain.ApprovalWorkflow{
		ID:                     workflowID,
		OrgID:                  orgID,
		Name:                   "Standard purchases",
		RequiredApproversCount: 2,
		ApprovalRoles: datatypes.NewJSONSlice([]string{
			orgdomain.RoleApprover,
			orgdomain.RoleAdmin,
			orgdomain.RoleOwner,
		}),
		IsActive: true,
	}
	org := &orgStub{roles: map[snowflake.ID]string{}}
	fake := clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))

	svc := NewService(Params{
		DB:          db,
		Log:         zap.NewNop(),
		Clock:       fake,
		GenID:       node,
		Guard:       guard,
		Repo:        repository.Provide(),
		ReqRepo:     reqrepository.Provide(),
		OrgSvc:      org,
		WorkflowSvc: &workflowStub{workflow: workflow},
		AuditSvc:    recorder,
	})

	return &harness{
		svc:      svc,
		db:       db,
		node:     node,
		clock:    fake,
		audit:    recorder,
		org:      org,
		workflow: workflow,
		orgID:    orgID,
	}
}

func prepareApprovalSchema(t *testing.T, db *gorm.DB) {
	t.Helper()
	if err := db.Exec(`CREATE TABLE requisitions (
		id BIGINT PRIMARY KEY,
		org_id BIGINT NOT NULL,
		project_id BIGINT NOT NULL,
		workflow_id BIGINT,
		status TEXT NOT NULL,
		title TEXT NOT NULL,
		total_amount NUMERIC NOT NULL DEFAULT 0,
		submitted_by BIGINT NOT NULL,
		submitted_at DATETIME,
		required_by DATETIME,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`).Error; err != nil {
		t.Fatalf("create requisitions: %v", err)
	}
	if err := db.Exec(`CREATE TABLE approval_decisions (
		id BIGINT PRIMARY KEY,
		decision_uid TEXT NOT NULL,
		requisition_id BIGINT NOT NULL,
		approver_id BIGINT NOT NULL,
		decision TEXT NOT NULL,
		comment TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`).Error; err != nil {
		t.Fatalf("create approval_decisions: %v", err)
	}
	if err := db.Exec(`CREATE UNIQUE INDEX ux_approval_decisions_uid
		ON approval_decisions (decision_uid)`).Error; err != nil {
		t.Fatalf("create decision uid index: %v", err)
	}
	if err := db.Exec(`CREATE UNIQUE INDEX ux_approval_decisions_req_approver
		ON approval_decisions (requisition_id, approver_id)`).Error; err != nil {
		t.Fatalf("create decision approver index: %v", err)
	}
}

func mustNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	return node
}

func (h *harness) ctx() context.Context {
	ctx := orgcontext.WithOrgID(context.Background(), int64(h.orgID))
	return auditcontext.WithActor(ctx, "user", h.node.Generate().String())
}

func (h *harness) seedRequisition(t *testing.T, status reqdomain.Status, withWorkflow bool) snowflake.ID {
	t.Helper()
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	requisition := reqdomain.Requisition{
		ID:          h.node.Generate(),
		OrgID:       h.orgID,
		ProjectID:   h.node.Generate(),
		Status:      status,
		Title:       "Pallet racking",
		TotalAmount: decimal.NewFromInt(5000),
		SubmittedBy: h.node.Generate(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if withWorkflow {
		requisition.WorkflowID = &h.workflow.ID
	}
	if err := h.db.Create(&requisition).Error; err != nil {
		t.Fatalf("seed requisition: %v", err)
	}
	return requisition.ID
}

func (h *harness) approver(role string) snowflake.ID {
	id := h.node.Generate()
	h.org.roles[id] = role
	return id
}

func (h *harness) status(t *testing.T, id snowflake.ID) reqdomain.Status {
	t.Helper()
	var requisition reqdomain.Requisition
	if err := h.db.Where("id = ?", id).First(&requisition).Error; err != nil {
		t.Fatalf("reload requisition: %v", err)
	}
	return requisition.Status
}

func TestFirstDecisionStartsReview(t *testing.T) {
	h := setupApprovalService(t)
	reqID := h.seedRequisition(t, reqdomain.StatusPending, true)
	approver := h.approver(orgdomain.RoleApprover)

	decision, err := h.svc.RecordDecision(h.ctx(), reqID, approver, domain.DecisionRequest{Decision: "approve"})
	if err != nil {
		t.Fatalf("record decision: %v", err)
	}
	if decision.Decision != domain.DecisionApprove {
		t.Fatalf("expected approve stance, got %s", decision.Decision)
	}
	if decision.DecisionUID == "" {
		t.Fatal("expected a decision uid")
	}

	if got := h.status(t, reqID); got != reqdomain.StatusUnderReview {
		t.Fatalf("expected UNDER_REVIEW after first decision, got %s", got)
	}
}

func TestQuorumApproves(t *testing.T) {
	h := setupApprovalService(t)
	reqID := h.seedRequisition(t, reqdomain.StatusPending, true)

	first := h.approver(orgdomain.RoleApprover)
	second := h.approver(orgdomain.RoleAdmin)

	if _, err := h.svc.RecordDecision(h.ctx(), reqID, first, domain.DecisionRequest{Decision: "approve"}); err != nil {
		t.Fatalf("first approval: %v", err)
	}
	if got := h.status(t, reqID); got != reqdomain.StatusUnderReview {
		t.Fatalf("expected UNDER_REVIEW before quorum, got %s", got)
	}

	if _, err := h.svc.RecordDecision(h.ctx(), reqID, second, domain.DecisionRequest{Decision: "APPROVE"}); err != nil {
		t.Fatalf("second approval: %v", err)
	}
	if got := h.status(t, reqID); got != reqdomain.StatusApproved {
		t.Fatalf("expected APPROVED at quorum, got %s", got)
	}

	chain, err := h.svc.Chain(h.ctx(), reqID)
	if err != nil {
		t.Fatalf("chain: %v", err)
	}
	if !chain.Resolved {
		t.Fatal("expected chain resolved")
	}
	if chain.ApprovalsRecorded != 2 || chain.RejectionsRecorded != 0 {
		t.Fatalf("expected 2 approvals and 0 rejections, got %d/%d", chain.ApprovalsRecorded, chain.RejectionsRecorded)
	}
	if chain.RequiredApprovals != 2 {
		t.Fatalf("expected required approvals 2, got %d", chain.RequiredApprovals)
	}
}

func TestRejectShortCircuits(t *testing.T) {
	h := setupApprovalService(t)
	reqID := h.seedRequisition(t, reqdomain.StatusUnderReview, true)

	first := h.approver(orgdomain.RoleApprover)
	second := h.approver(orgdomain.RoleApprover)

	if _, err := h.svc.RecordDecision(h.ctx(), reqID, first, domain.DecisionRequest{Decision: "reject", Comment: "over budget"}); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if got := h.status(t, reqID); got != reqdomain.StatusRejected {
		t.Fatalf("expected REJECTED, got %s", got)
	}

	if _, err := h.svc.RecordDecision(h.ctx(), reqID, second, domain.DecisionRequest{Decision: "approve"}); err != domain.ErrChainAlreadyResolved {
		t.Fatalf("expected ErrChainAlreadyResolved after rejection, got %v", err)
	}
}

func TestStanceReplacement(t *testing.T) {
	h := setupApprovalService(t)
	reqID := h.seedRequisition(t, reqdomain.StatusPending, true)
	approver := h.approver(orgdomain.RoleApprover)

	if _, err := h.svc.RecordDecision(h.ctx(), reqID, approver, domain.DecisionRequest{Decision: "approve"}); err != nil {
		t.Fatalf("first stance: %v", err)
	}
	if _, err := h.svc.RecordDecision(h.ctx(), reqID, approver, domain.DecisionRequest{Decision: "approve"}); err != nil {
		t.Fatalf("repeat stance: %v", err)
	}

	var count int64
	if err := h.db.Model(&domain.ApprovalDecision{}).
		Where("requisition_id = ? AND approver_id = ?", reqID, approver).
		Count(&count).Error; err != nil {
		t.Fatalf("count decisions: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 decision row per approver, got %d", count)
	}
	// Repeated approvals from one approver never reach the 2-approver quorum.
	if got := h.status(t, reqID); got != reqdomain.StatusUnderReview {
		t.Fatalf("expected UNDER_REVIEW, got %s", got)
	}

	h.clock.Advance(30 * time.Minute)
	if _, err := h.svc.RecordDecision(h.ctx(), reqID, approver, domain.DecisionRequest{Decision: "reject"}); err != nil {
		t.Fatalf("flip to reject: %v", err)
	}
	if got := h.status(t, reqID); got != reqdomain.StatusRejected {
		t.Fatalf("expected REJECTED after stance flip, got %s", got)
	}

	var stored domain.ApprovalDecision
	if err := h.db.Where("requisition_id = ? AND approver_id = ?", reqID, approver).
		First(&stored).Error; err != nil {
		t.Fatalf("reload decision: %v", err)
	}
	if !stored.UpdatedAt.Equal(h.clock.Now()) {
		t.Fatalf("expected decision updated_at %s, got %s", h.clock.Now(), stored.UpdatedAt)
	}
	if stored.UpdatedAt.Equal(stored.CreatedAt) {
		t.Fatal("expected the stance flip to move updated_at past created_at")
	}
}

func TestDecisionEligibility(t *testing.T) {
	h := setupApprovalService(t)
	reqID := h.seedRequisition(t, reqdomain.StatusPending, true)

	viewer := h.approver(orgdomain.RoleViewer)
	if _, err := h.svc.RecordDecision(h.ctx(), reqID, viewer, domain.DecisionRequest{Decision: "approve"}); err != domain.ErrRoleNotEligible {
		t.Fatalf("expected ErrRoleNotEligible for viewer, got %v", err)
	}

	stranger := h.node.Generate()
	if _, err := h.svc.RecordDecision(h.ctx(), reqID, stranger, domain.DecisionRequest{Decision: "approve"}); err != orgdomain.ErrNotMember {
		t.Fatalf("expected ErrNotMember for non-member, got %v", err)
	}
}

func TestDecisionPreconditions(t *testing.T) {
	h := setupApprovalService(t)
	approver := h.approver(orgdomain.RoleApprover)

	draft := h.seedRequisition(t, reqdomain.StatusDraft, false)
	if _, err := h.svc.RecordDecision(h.ctx(), draft, approver, domain.DecisionRequest{Decision: "approve"}); err != reqdomain.ErrInvalidTransition {
		t.Fatalf("expected ErrInvalidTransition on draft, got %v", err)
	}

	unbound := h.seedRequisition(t, reqdomain.StatusPending, false)
	if _, err := h.svc.RecordDecision(h.ctx(), unbound, approver, domain.DecisionRequest{Decision: "approve"}); err != domain.ErrNoWorkflowBound {
		t.Fatalf("expected ErrNoWorkflowBound, got %v", err)
	}

	bound := h.seedRequisition(t, reqdomain.StatusPending, true)
	if _, err := h.svc.RecordDecision(h.ctx(), bound, approver, domain.DecisionRequest{Decision: "maybe"}); err != domain.ErrInvalidDecision {
		t.Fatalf("expected ErrInvalidDecision, got %v", err)
	}
}

func TestDecisionAuditTrail(t *testing.T) {
	h := setupApprovalService(t)
	reqID := h.seedRequisition(t, reqdomain.StatusPending, true)
	approver := h.approver(orgdomain.RoleApprover)

	if _, err := h.svc.RecordDecision(h.ctx(), reqID, approver, domain.DecisionRequest{Decision: "approve"}); err != nil {
		t.Fatalf("record decision: %v", err)
	}

	h.audit.mu.Lock()
	defer h.audit.mu.Unlock()
	var found bool
	for _, entry := range h.audit.entries {
		if entry.EventType != auditdomain.EventDecisionRecorded {
			continue
		}
		found = true
		if entry.ActorID == nil || *entry.ActorID != approver.String() {
			t.Fatalf("expected actor %s on audit entry, got %v", approver, entry.ActorID)
		}
		if entry.Metadata["outcome"] != string(reqdomain.StatusUnderReview) {
			t.Fatalf("expected outcome UNDER_REVIEW, got %v", entry.Metadata["outcome"])
		}
	}
	if !found {
		t.Fatal("expected a decision audit entry")
	}
}
