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
	orgdomain "github.com/openprocure/procura/internal/organization/domain"
	"github.com/openprocure/procura/internal/project/domain"
	"github.com/openprocure/procura/internal/tenant"
)

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	Clock  clock.Clock
	GenID  *snowflake.Node
	Guard  *tenant.Guard
	OrgSvc orgdomain.Service
}

type Service struct {
	db     *gorm.DB
	log    *zap.Logger
	clock  clock.Clock
	genID  *snowflake.Node
	guard  *tenant.Guard
	orgSvc orgdomain.Service
}

func NewService(p Params) domain.Service {
	return &Service{
		db:     p.DB,
		log:    p.Log.Named("project.service"),
		clock:  p.Clock,
		genID:  p.GenID,
		guard:  p.Guard,
		orgSvc: p.OrgSvc,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateProjectRequest) (*domain.Project, error) {
	orgID, err := s.guard.CurrentOrgID(ctx)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	if req.Budget.IsNegative() {
		return nil, domain.ErrInvalidBudget
	}

	org, err := s.orgSvc.EnsureOperational(ctx, orgID)
	if err != nil {
		return nil, err
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&domain.Project{}).
		Where("org_id = ?", orgID).
		Count(&count).Error; err != nil {
		return nil, err
	}
	if org.MaxProjects > 0 && count >= int64(org.MaxProjects) {
		return nil, domain.ErrProjectQuota
	}

	now := s.clock.Now()
	project := &domain.Project{
		ID:        s.genID.Generate(),
		OrgID:     orgID,
		Name:      name,
		Budget:    req.Budget,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.db.WithContext(ctx).Create(project).Error; err != nil {
		return nil, err
	}

	s.log.Info("project created",
		zap.String("project_id", project.ID.String()),
		zap.String("budget", project.Budget.String()),
	)
	return project, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (*domain.Project, error) {
	var project domain.Project
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&project).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	if err := s.guard.Authorize(ctx, project.OrgID, "project", project.ID.String()); err != nil {
		return nil, err
	}
	return &project, nil
}

func (s *Service) List(ctx context.Context) ([]domain.Project, error) {
	orgID, err := s.guard.CurrentOrgID(ctx)
	if err != nil {
		return nil, err
	}

	var projects []domain.Project
	err = s.db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("created_at desc").
		Find(&projects).Error
	return projects, err
}

func (s *Service) SetActive(ctx context.Context, id snowflake.ID, active bool) error {
	project, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Model(&domain.Project{}).
		Where("id = ? AND org_id = ?", project.ID, project.OrgID).
		Updates(map[string]any{
			"is_active":  active,
			"updated_at": s.clock.Now(),
		}).Error
}
