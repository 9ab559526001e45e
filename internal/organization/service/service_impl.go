package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/openprocure/procura/internal/clock"
	"github.com/openprocure/procura/internal/organization/domain"
	pkgdb "github.com/openprocure/procura/pkg/db"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock
	GenID *snowflake.Node
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock
	genID *snowflake.Node
	repo  domain.Repository
}

func NewService(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("organization.service"),
		clock: p.Clock,
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateOrganizationRequest) (*domain.Organization, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}

	plan := strings.TrimSpace(req.Plan)
	if plan == "" {
		plan = domain.PlanFree
	}
	switch plan {
	case domain.PlanFree, domain.PlanStandard, domain.PlanBusiness:
	default:
		return nil, domain.ErrInvalidPlan
	}

	maxUsers, maxProjects, maxReqs := domain.PlanLimits(plan)
	now := s.clock.Now()
	org := &domain.Organization{
		ID:                      s.genID.Generate(),
		Name:                    name,
		Slug:                    slug.Make(name),
		Status:                  domain.StatusTrial,
		Plan:                    plan,
		MaxUsers:                maxUsers,
		MaxProjects:             maxProjects,
		MaxRequisitionsPerMonth: maxReqs,
		Metadata:                datatypes.JSONMap{},
		CreatedAt:               now,
		UpdatedAt:               now,
	}

	if err := s.repo.Create(ctx, s.db, org); err != nil {
		if pkgdb.IsDuplicateKeyErr(err) {
			return nil, domain.ErrSlugTaken
		}
		return nil, err
	}

	s.log.Info("organization created",
		zap.String("org_id", org.ID.String()),
		zap.String("plan", org.Plan),
	)
	return org, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (*domain.Organization, error) {
	return s.repo.GetByID(ctx, s.db, id)
}

func (s *Service) AddMember(ctx context.Context, orgID, userID snowflake.ID, role string) error {
	if !domain.ValidRole(role) {
		return domain.ErrInvalidRole
	}

	org, err := s.repo.GetByID(ctx, s.db, orgID)
	if err != nil {
		return err
	}

	count, err := s.repo.CountMembers(ctx, s.db, orgID)
	if err != nil {
		return err
	}
	if count >= int64(org.MaxUsers) {
		return domain.ErrMemberQuotaReached
	}

	member := &domain.OrganizationMember{
		ID:        s.genID.Generate(),
		OrgID:     orgID,
		UserID:    userID,
		Role:      role,
		CreatedAt: s.clock.Now(),
	}
	return s.repo.AddMember(ctx, s.db, member)
}

func (s *Service) MemberRole(ctx context.Context, orgID, userID snowflake.ID) (string, error) {
	return s.repo.MemberRole(ctx, s.db, orgID, userID)
}

func (s *Service) Suspend(ctx context.Context, id snowflake.ID) error {
	return s.changeStatus(ctx, id, domain.StatusSuspended)
}

func (s *Service) Resume(ctx context.Context, id snowflake.ID) error {
	return s.changeStatus(ctx, id, domain.StatusActive)
}

func (s *Service) Cancel(ctx context.Context, id snowflake.ID) error {
	return s.changeStatus(ctx, id, domain.StatusCancelled)
}

func (s *Service) changeStatus(ctx context.Context, id snowflake.ID, target domain.Status) error {
	org, err := s.repo.GetByID(ctx, s.db, id)
	if err != nil {
		return err
	}

	// Cancelled is final for a tenant; only resume of a suspension is
	// reversible.
	if org.Status == domain.StatusCancelled {
		return domain.ErrInvalidStatusChange
	}
	if target == domain.StatusActive && org.Status != domain.StatusSuspended && org.Status != domain.StatusTrial {
		return domain.ErrInvalidStatusChange
	}

	if err := s.repo.UpdateStatus(ctx, s.db, id, target); err != nil {
		return err
	}
	s.log.Info("organization status changed",
		zap.String("org_id", id.String()),
		zap.String("from", string(org.Status)),
		zap.String("to", string(target)),
	)
	return nil
}

func (s *Service) EnsureOperational(ctx context.Context, id snowflake.ID) (*domain.Organization, error) {
	org, err := s.repo.GetByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	switch org.Status {
	case domain.StatusSuspended:
		return nil, domain.ErrOrganizationSuspended
	case domain.StatusCancelled:
		return nil, domain.ErrOrganizationCancelled
	}
	return org, nil
}

func (s *Service) EnsureRequisitionQuota(ctx context.Context, org *domain.Organization) error {
	if org == nil {
		return domain.ErrNotFound
	}
	if org.MaxRequisitionsPerMonth <= 0 {
		return nil
	}

	now := s.clock.Now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	count, err := s.repo.CountRequisitionsSince(ctx, s.db, org.ID, monthStart)
	if err != nil {
		return err
	}
	if count >= int64(org.MaxRequisitionsPerMonth) {
		return domain.ErrRequisitionQuotaReached
	}
	return nil
}
