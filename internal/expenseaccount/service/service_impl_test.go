package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	auditdomain "github.com/openprocure/procura/internal/audit/domain"
	"github.com/openprocure/procura/internal/auditcontext"
	"github.com/openprocure/procura/internal/clock"
	"github.com/openprocure/procura/internal/expenseaccount/domain"
	"github.com/openprocure/procura/internal/orgcontext"
	"github.com/openprocure/procura/internal/tenant"
)

type auditDiscard struct{}

func (auditDiscard) Record(ctx context.Context, entry auditdomain.Entry) error { return nil }

func (auditDiscard) List(ctx context.Context, req auditdomain.ListAuditEventsRequest) (auditdomain.ListAuditEventsResponse, error) {
	return auditdomain.ListAuditEventsResponse{}, nil
}

func (auditDiscard) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

func setupExpenseAccountService(t *testing.T) (domain.Service, *snowflake.Node, snowflake.ID) {
	t.Helper()

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	require.NoError(t, db.Exec(`CREATE TABLE expense_accounts (
		id BIGINT PRIMARY KEY,
		org_id BIGINT NOT NULL,
		code TEXT NOT NULL,
		name TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at DATETIME NOT NULL
	)`).Error)
	require.NoError(t, db.Exec(`CREATE UNIQUE INDEX ux_expense_accounts_org_code
		ON expense_accounts (org_id, code)`).Error)

	svc := NewService(Params{
		DB:    db,
		Log:   zap.NewNop(),
		Clock: clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)),
		GenID: node,
		Guard: tenant.NewGuard(tenant.Params{Log: zap.NewNop(), AuditSvc: auditDiscard{}}),
	})

	return svc, node, node.Generate()
}

func scoped(orgID snowflake.ID) context.Context {
	ctx := orgcontext.WithOrgID(context.Background(), int64(orgID))
	return auditcontext.WithActor(ctx, "user", "1")
}

func TestCreateExpenseAccount(t *testing.T) {
	svc, _, orgID := setupExpenseAccountService(t)
	ctx := scoped(orgID)

	account, err := svc.Create(ctx, " it-5000 ", "IT hardware")
	require.NoError(t, err)
	assert.Equal(t, "IT-5000", account.Code)
	assert.Equal(t, orgID, account.OrgID)
	assert.True(t, account.IsActive)

	_, err = svc.Create(ctx, "", "x")
	assert.ErrorIs(t, err, domain.ErrInvalidCode)
	_, err = svc.Create(ctx, "X", " ")
	assert.ErrorIs(t, err, domain.ErrInvalidName)
}

func TestExpenseAccountCodeUniquePerOrg(t *testing.T) {
	svc, node, orgID := setupExpenseAccountService(t)
	ctx := scoped(orgID)

	_, err := svc.Create(ctx, "IT-5000", "IT hardware")
	require.NoError(t, err)

	_, err = svc.Create(ctx, "it-5000", "Duplicate")
	assert.ErrorIs(t, err, domain.ErrCodeTaken)

	// The same code is free in another org.
	_, err = svc.Create(scoped(node.Generate()), "IT-5000", "IT hardware")
	require.NoError(t, err)
}

func TestExpenseAccountTenantScope(t *testing.T) {
	svc, node, orgID := setupExpenseAccountService(t)

	account, err := svc.Create(scoped(orgID), "IT-5000", "IT hardware")
	require.NoError(t, err)

	_, err = svc.GetByID(scoped(node.Generate()), account.ID)
	assert.ErrorIs(t, err, tenant.ErrAccessDenied)

	accounts, err := svc.List(scoped(orgID))
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, account.ID, accounts[0].ID)
}
