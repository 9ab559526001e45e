package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/openprocure/procura/internal/clock"
	orgdomain "github.com/openprocure/procura/internal/organization/domain"
	"github.com/openprocure/procura/internal/tenant"
	"github.com/openprocure/procura/internal/workflow/domain"
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
		log:   p.Log.Named("workflow.service"),
		clock: p.Clock,
		genID: p.GenID,
		guard: p.Guard,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateWorkflowRequest) (*domain.ApprovalWorkflow, error) {
	orgID, err := s.guard.CurrentOrgID(ctx)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	if req.AmountThresholdMin.IsNegative() {
		return nil, domain.ErrInvalidThresholds
	}
	if req.AmountThresholdMax != nil && req.AmountThresholdMax.LessThan(req.AmountThresholdMin) {
		return nil, domain.ErrInvalidThresholds
	}
	if req.RequiredApproversCount < 1 {
		return nil, domain.ErrInvalidApproverCount
	}
	if len(req.ApprovalRoles) == 0 {
		return nil, domain.ErrInvalidApprovalRoles
	}
	roles := make([]string, 0, len(req.ApprovalRoles))
	for _, role := range req.ApprovalRoles {
		role = strings.TrimSpace(role)
		if !orgdomain.ValidRole(role) {
			return nil, domain.ErrInvalidApprovalRoles
		}
		roles = append(roles, role)
	}

	workflow := &domain.ApprovalWorkflow{
		ID:                     s.genID.Generate(),
		OrgID:                  orgID,
		Name:                   name,
		AmountThresholdMin:     req.AmountThresholdMin,
		AmountThresholdMax:     req.AmountThresholdMax,
		RequiredApproversCount: req.RequiredApproversCount,
		ApprovalRoles:          datatypes.NewJSONSlice(roles),
		Priority:               req.Priority,
		IsActive:               true,
		CreatedAt:              s.clock.Now(),
	}
	if err := s.db.WithContext(ctx).Create(workflow).Error; err != nil {
		return nil, err
	}

	s.log.Info("approval workflow created",
		zap.String("workflow_id", workflow.ID.String()),
		zap.Int("priority", workflow.Priority),
		zap.Int("required_approvers", workflow.RequiredApproversCount),
	)
	return workflow, nil
}

func (s *Service) List(ctx context.Context) ([]domain.ApprovalWorkflow, error) {
	orgID, err := s.guard.CurrentOrgID(ctx)
	if err != nil {
		return nil, err
	}

	var workflows []domain.ApprovalWorkflow
	err = s.db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("priority asc, created_at asc").
		Find(&workflows).Error
	return workflows, err
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (*domain.ApprovalWorkflow, error) {
	var workflow domain.ApprovalWorkflow
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&workflow).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	if err := s.guard.Authorize(ctx, workflow.OrgID, "approval_workflow", workflow.ID.String()); err != nil {
		return nil, err
	}
	return &workflow, nil
}

func (s *Service) SetActive(ctx context.Context, id snowflake.ID, active bool) error {
	workflow, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Model(&domain.ApprovalWorkflow{}).
		Where("id = ? AND org_id = ?", workflow.ID, workflow.OrgID).
		Update("is_active", active).Error
}

func (s *Service) Resolve(ctx context.Context, amount decimal.Decimal) (*domain.ApprovalWorkflow, error) {
	orgID, err := s.guard.CurrentOrgID(ctx)
	if err != nil {
		return nil, err
	}
	if amount.IsNegative() {
		return nil, domain.ErrInvalidAmount
	}

	var workflows []domain.ApprovalWorkflow
	if err := s.db.WithContext(ctx).
		Where("org_id = ? AND is_active = ?", orgID, true).
		Find(&workflows).Error; err != nil {
		return nil, err
	}

	selected := domain.Select(workflows, amount)
	if selected == nil {
		return nil, domain.ErrNoApplicableWorkflow
	}
	return selected, nil
}
