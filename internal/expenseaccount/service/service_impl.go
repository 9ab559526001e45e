package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/openprocure/procura/internal/clock"
	"github.com/openprocure/procura/internal/expenseaccount/domain"
	"github.com/openprocure/procura/internal/tenant"
	pkgdb "github.com/openprocure/procura/pkg/db"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock
	GenID *snowflake.Node
	Guard *tenant.Guard
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock
	genID *snowflake.Node
	guard *tenant.Guard
}

func NewService(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("expenseaccount.service"),
		clock: p.Clock,
		genID: p.GenID,
		guard: p.Guard,
	}
}

func (s *Service) Create(ctx context.Context, code, name string) (*domain.ExpenseAccount, error) {
	orgID, err := s.guard.CurrentOrgID(ctx)
	if err != nil {
		return nil, err
	}

	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, domain.ErrInvalidCode
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}

	account := &domain.ExpenseAccount{
		ID:        s.genID.Generate(),
		OrgID:     orgID,
		Code:      code,
		Name:      name,
		IsActive:  true,
		CreatedAt: s.clock.Now(),
	}
	if err := s.db.WithContext(ctx).Create(account).Error; err != nil {
		if pkgdb.IsDuplicateKeyErr(err) {
			return nil, domain.ErrCodeTaken
		}
		return nil, err
	}
	return account, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (*domain.ExpenseAccount, error) {
	var account domain.ExpenseAccount
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	if err := s.guard.Authorize(ctx, account.OrgID, "expense_account", account.ID.String()); err != nil {
		return nil, err
	}
	return &account, nil
}

func (s *Service) List(ctx context.Context) ([]domain.ExpenseAccount, error) {
	orgID, err := s.guard.CurrentOrgID(ctx)
	if err != nil {
		return nil, err
	}

	var accounts []domain.ExpenseAccount
	err = s.db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("code asc").
		Find(&accounts).Error
	return accounts, err
}
