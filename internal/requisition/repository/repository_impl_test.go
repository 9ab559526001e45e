package repository

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/openprocure/procura/internal/requisition/domain"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

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
	if err := db.Exec(`CREATE TABLE requisition_items (
		id BIGINT PRIMARY KEY,
		requisition_id BIGINT NOT NULL,
		expense_account_id BIGINT,
		description TEXT NOT NULL,
		quantity NUMERIC NOT NULL,
		unit_price NUMERIC NOT NULL,
		total_price NUMERIC NOT NULL,
		created_at DATETIME NOT NULL
	)`).Error; err != nil {
		t.Fatalf("create requisition_items: %v", err)
	}
	return db
}

func seedRequisition(t *testing.T, db *gorm.DB, node *snowflake.Node, status domain.Status) *domain.Requisition {
	t.Helper()

	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	requisition := domain.Requisition{
		ID:          node.Generate(),
		OrgID:       node.Generate(),
		ProjectID:   node.Generate(),
		Status:      status,
		Title:       "Pallet racking",
		TotalAmount: decimal.NewFromInt(5000),
		SubmittedBy: node.Generate(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := db.Create(&requisition).Error; err != nil {
		t.Fatalf("seed requisition: %v", err)
	}
	return &requisition
}

func testNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	return node
}

// Two approvers racing on the last approval slot must serialize on the
// requisition row, or both count a stale tally and neither resolves the
// chain. The dry-run session builds the statement without a server, so
// the generated SQL can be inspected directly.
func TestGetByIDForUpdateLocksRowOnPostgres(t *testing.T) {
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN: "host=localhost user=procura dbname=procura",
	}), &gorm.Config{
		DryRun:               true,
		DisableAutomaticPing: true,
	})
	if err != nil {
		t.Fatalf("open dry-run db: %v", err)
	}

	var captured string
	err = db.Callback().Query().After("gorm:query").Register("capture_query_sql", func(tx *gorm.DB) {
		captured = tx.Statement.SQL.String()
	})
	if err != nil {
		t.Fatalf("register callback: %v", err)
	}

	r := Provide()
	if _, err := r.GetByIDForUpdate(context.Background(), db, snowflake.ID(1)); err != nil {
		t.Fatalf("dry-run read: %v", err)
	}
	if !strings.Contains(captured, "FOR UPDATE") {
		t.Fatalf("expected a locking read, got %q", captured)
	}
}

func TestGetByIDForUpdateFallsBackOnSqlite(t *testing.T) {
	db := openTestDB(t)
	node := testNode(t)
	seeded := seedRequisition(t, db, node, domain.StatusUnderReview)

	// sqlite has no FOR UPDATE; the read must still succeed without it.
	r := Provide()
	got, err := r.GetByIDForUpdate(context.Background(), db, seeded.ID)
	if err != nil {
		t.Fatalf("locking read on sqlite: %v", err)
	}
	if got.ID != seeded.ID {
		t.Fatalf("expected requisition %d, got %d", seeded.ID, got.ID)
	}

	if _, err := r.GetByIDForUpdate(context.Background(), db, node.Generate()); err != domain.ErrNotFound {
		t.Fatalf("expected ErrNotFound for missing row, got %v", err)
	}
}

func TestWritesStampCallerTimestamp(t *testing.T) {
	db := openTestDB(t)
	node := testNode(t)
	seeded := seedRequisition(t, db, node, domain.StatusPending)
	r := Provide()

	at := time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC)
	err := r.TransitionStatus(context.Background(), db, seeded.ID, domain.StatusPending, domain.StatusUnderReview, at, nil)
	if err != nil {
		t.Fatalf("transition: %v", err)
	}

	var stored domain.Requisition
	if err := db.Where("id = ?", seeded.ID).First(&stored).Error; err != nil {
		t.Fatalf("reload requisition: %v", err)
	}
	if !stored.UpdatedAt.Equal(at) {
		t.Fatalf("expected updated_at %s, got %s", at, stored.UpdatedAt)
	}

	item := domain.RequisitionItem{
		ID:            node.Generate(),
		RequisitionID: seeded.ID,
		Description:   "shelving",
		Quantity:      decimal.NewFromInt(2),
		UnitPrice:     decimal.NewFromInt(100),
		TotalPrice:    decimal.NewFromInt(200),
		CreatedAt:     at,
	}
	if err := db.Create(&item).Error; err != nil {
		t.Fatalf("seed item: %v", err)
	}

	recomputedAt := at.Add(15 * time.Minute)
	total, err := r.RecomputeTotal(context.Background(), db, seeded.ID, recomputedAt)
	if err != nil {
		t.Fatalf("recompute total: %v", err)
	}
	if !total.Equal(decimal.NewFromInt(200)) {
		t.Fatalf("expected total 200, got %s", total)
	}

	if err := db.Where("id = ?", seeded.ID).First(&stored).Error; err != nil {
		t.Fatalf("reload requisition: %v", err)
	}
	if !stored.UpdatedAt.Equal(recomputedAt) {
		t.Fatalf("expected updated_at %s, got %s", recomputedAt, stored.UpdatedAt)
	}
}
