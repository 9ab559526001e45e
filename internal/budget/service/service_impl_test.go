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

	"github.com/openprocure/procura/internal/budget/domain"
	projectdomain "github.com/openprocure/procura/internal/project/domain"
	reqdomain "github.com/openprocure/procura/internal/requisition/domain"
)

type projectStub struct {
	project *projectdomain.Project
}

func (p *projectStub) Create(ctx context.Context, req projectdomain.CreateProjectRequest) (*projectdomain.Project, error) {
	return p.project, nil
}

func (p *projectStub) GetByID(ctx context.Context, id snowflake.ID) (*projectdomain.Project, error) {
	if p.project == nil || p.project.ID != id {
		return nil, projectdomain.ErrNotFound
	}
	return p.project, nil
}

func (p *projectStub) List(ctx context.Context) ([]projectdomain.Project, error) {
	return nil, nil
}

func (p *projectStub) SetActive(ctx context.Context, id snowflake.ID, active bool) error {
	return nil
}

type harness struct {
	svc     domain.Service
	db      *gorm.DB
	node    *snowflake.Node
	project *projectdomain.Project
}

func setupBudgetService(t *testing.T, budget decimal.Decimal) *harness {
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

	project := &projectdomain.Project{
		ID:       node.Generate(),
		OrgID:    node.Generate(),
		Name:     "Warehouse refit",
		Budget:   budget,
		IsActive: true,
	}

	svc := NewService(Params{
		DB:         db,
		Log:        zap.NewNop(),
		ProjectSvc: &projectStub{project: project},
	})

	return &harness{svc: svc, db: db, node: node, project: project}
}

func (h *harness) seed(t *testing.T, orgID, projectID snowflake.ID, status reqdomain.Status, amount string) {
	t.Helper()
	total, err := decimal.NewFromString(amount)
	if err != nil {
		t.Fatalf("parse amount: %v", err)
	}
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	requisition := reqdomain.Requisition{
		ID:          h.node.Generate(),
		OrgID:       orgID,
		ProjectID:   projectID,
		Status:      status,
		Title:       "seed",
		TotalAmount: total,
		SubmittedBy: h.node.Generate(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := h.db.Create(&requisition).Error; err != nil {
		t.Fatalf("seed requisition: %v", err)
	}
}

func TestGetSummaryBuckets(t *testing.T) {
	h := setupBudgetService(t, decimal.NewFromInt(10000))
	orgID := h.project.OrgID
	projectID := h.project.ID

	h.seed(t, orgID, projectID, reqdomain.StatusPending, "3000")
	h.seed(t, orgID, projectID, reqdomain.StatusApproved, "4000")
	h.seed(t, orgID, projectID, reqdomain.StatusUnderReview, "500")
	// Drafts and terminal denials never commit budget.
	h.seed(t, orgID, projectID, reqdomain.StatusDraft, "9999")
	h.seed(t, orgID, projectID, reqdomain.StatusRejected, "9999")
	h.seed(t, orgID, projectID, reqdomain.StatusCancelled, "9999")
	// Rows from other projects or orgs are invisible.
	h.seed(t, orgID, h.node.Generate(), reqdomain.StatusApproved, "9999")
	h.seed(t, h.node.Generate(), projectID, reqdomain.StatusApproved, "9999")

	summary, err := h.svc.GetSummary(context.Background(), projectID)
	if err != nil {
		t.Fatalf("get summary: %v", err)
	}

	if !summary.Spent.Equal(decimal.NewFromInt(4000)) {
		t.Fatalf("expected spent 4000, got %s", summary.Spent)
	}
	if !summary.Pending.Equal(decimal.NewFromInt(3000)) {
		t.Fatalf("expected pending 3000, got %s", summary.Pending)
	}
	if !summary.UnderReview.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("expected under review 500, got %s", summary.UnderReview)
	}
	if !summary.Available.Equal(decimal.NewFromInt(2500)) {
		t.Fatalf("expected available 2500, got %s", summary.Available)
	}
	if !summary.UtilizationPercentage.Equal(decimal.NewFromInt(75)) {
		t.Fatalf("expected utilization 75, got %s", summary.UtilizationPercentage)
	}
}

func TestGetSummaryReceiptsStaySpent(t *testing.T) {
	h := setupBudgetService(t, decimal.NewFromInt(1000))
	orgID := h.project.OrgID
	projectID := h.project.ID

	h.seed(t, orgID, projectID, reqdomain.StatusPartiallyReceived, "300")
	h.seed(t, orgID, projectID, reqdomain.StatusCompleted, "200")

	summary, err := h.svc.GetSummary(context.Background(), projectID)
	if err != nil {
		t.Fatalf("get summary: %v", err)
	}
	if !summary.Spent.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("expected spent 500, got %s", summary.Spent)
	}
	if !summary.Available.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("expected available 500, got %s", summary.Available)
	}
	if !summary.UtilizationPercentage.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("expected utilization 50, got %s", summary.UtilizationPercentage)
	}
}

func TestGetSummaryZeroBudget(t *testing.T) {
	h := setupBudgetService(t, decimal.Zero)
	h.seed(t, h.project.OrgID, h.project.ID, reqdomain.StatusApproved, "100")

	summary, err := h.svc.GetSummary(context.Background(), h.project.ID)
	if err != nil {
		t.Fatalf("get summary: %v", err)
	}
	if !summary.UtilizationPercentage.IsZero() {
		t.Fatalf("expected utilization 0 on zero budget, got %s", summary.UtilizationPercentage)
	}
	if !summary.Available.Equal(decimal.NewFromInt(-100)) {
		t.Fatalf("expected available -100, got %s", summary.Available)
	}
}

func TestGetSummaryUnknownProject(t *testing.T) {
	h := setupBudgetService(t, decimal.NewFromInt(100))

	if _, err := h.svc.GetSummary(context.Background(), h.node.Generate()); err != projectdomain.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
