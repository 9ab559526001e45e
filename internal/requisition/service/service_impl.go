package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	auditdomain "github.com/openprocure/procura/internal/audit/domain"
	"github.com/openprocure/procura/internal/auditcontext"
	budgetdomain "github.com/openprocure/procura/internal/budget/domain"
	"github.com/openprocure/procura/internal/clock"
	"github.com/openprocure/procura/internal/config"
	orgdomain "github.com/openprocure/procura/internal/organization/domain"
	projectdomain "github.com/openprocure/procura/internal/project/domain"
	"github.com/openprocure/procura/internal/requisition/domain"
	"github.com/openprocure/procura/internal/tenant"
	workflowdomain "github.com/openprocure/procura/internal/workflow/domain"
	"github.com/openprocure/procura/pkg/rls"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	Clock       clock.Clock
	GenID       *snowflake.Node
	Cfg         config.Config
	Guard       *tenant.Guard
	Repo        domain.Repository
	OrgSvc      orgdomain.Service
	ProjectSvc  projectdomain.Service
	WorkflowSvc workflowdomain.Service
	BudgetSvc   budgetdomain.Service
	AuditSvc    auditdomain.Service
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	clock       clock.Clock
	genID       *snowflake.Node
	cfg         config.Config
	guard       *tenant.Guard
	repo        domain.Repository
	orgSvc      orgdomain.Service
	projectSvc  projectdomain.Service
	workflowSvc workflowdomain.Service
	budgetSvc   budgetdomain.Service
	auditSvc    auditdomain.Service
}

func NewService(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("requisition.service"),
		clock:       p.Clock,
		genID:       p.GenID,
		cfg:         p.Cfg,
		guard:       p.Guard,
		repo:        p.Repo,
		orgSvc:      p.OrgSvc,
		projectSvc:  p.ProjectSvc,
		workflowSvc: p.WorkflowSvc,
		budgetSvc:   p.BudgetSvc,
		auditSvc:    p.AuditSvc,
	}
}

func (s *Service) CreateDraft(ctx context.Context, req domain.CreateRequisitionRequest) (*domain.Requisition, error) {
	orgID, err := s.guard.CurrentOrgID(ctx)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, domain.ErrInvalidTitle
	}

	org, err := s.orgSvc.EnsureOperational(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if err := s.orgSvc.EnsureRequisitionQuota(ctx, org); err != nil {
		return nil, err
	}

	project, err := s.projectSvc.GetByID(ctx, req.ProjectID)
	if err != nil {
		return nil, err
	}
	if !project.IsActive {
		return nil, projectdomain.ErrProjectClosed
	}

	actorID, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	requisition := &domain.Requisition{
		ID:          s.genID.Generate(),
		OrgID:       orgID,
		ProjectID:   project.ID,
		Status:      domain.StatusDraft,
		Title:       title,
		SubmittedBy: actorID,
		RequiredBy:  req.RequiredBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, s.db, requisition); err != nil {
		return nil, err
	}

	s.log.Info("requisition drafted",
		zap.String("requisition_id", requisition.ID.String()),
		zap.String("project_id", project.ID.String()),
	)
	return requisition, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (*domain.Requisition, []domain.RequisitionItem, error) {
	requisition, err := s.authorized(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	items, err := s.repo.ListItems(ctx, s.db, requisition.ID)
	if err != nil {
		return nil, nil, err
	}
	return requisition, items, nil
}

func (s *Service) List(ctx context.Context, status string) ([]domain.Requisition, error) {
	orgID, err := s.guard.CurrentOrgID(ctx)
	if err != nil {
		return nil, err
	}
	if status != "" && !domain.ValidStatus(status) {
		return nil, domain.ErrInvalidStatusFilter
	}
	return s.repo.List(ctx, s.db, orgID, status)
}

func (s *Service) AddItem(ctx context.Context, requisitionID snowflake.ID, req domain.ItemRequest) (*domain.RequisitionItem, error) {
	item, err := s.buildItem(requisitionID, req)
	if err != nil {
		return nil, err
	}

	err = s.mutateItems(ctx, requisitionID, func(tx *gorm.DB) error {
		return s.repo.InsertItem(ctx, tx, item)
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (s *Service) UpdateItem(ctx context.Context, requisitionID, itemID snowflake.ID, req domain.ItemRequest) (*domain.RequisitionItem, error) {
	updated, err := s.buildItem(requisitionID, req)
	if err != nil {
		return nil, err
	}
	updated.ID = itemID

	err = s.mutateItems(ctx, requisitionID, func(tx *gorm.DB) error {
		if _, err := s.repo.GetItem(ctx, tx, requisitionID, itemID); err != nil {
			return err
		}
		return s.repo.UpdateItem(ctx, tx, updated)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Service) RemoveItem(ctx context.Context, requisitionID, itemID snowflake.ID) error {
	return s.mutateItems(ctx, requisitionID, func(tx *gorm.DB) error {
		return s.repo.DeleteItem(ctx, tx, requisitionID, itemID)
	})
}

func (s *Service) Submit(ctx context.Context, requisitionID, actorID snowflake.ID) (*domain.Requisition, error) {
	requisition, err := s.authorized(ctx, requisitionID)
	if err != nil {
		return nil, err
	}
	if requisition.SubmittedBy != actorID {
		return nil, domain.ErrNotOwner
	}
	if requisition.Status != domain.StatusDraft {
		return nil, domain.ErrInvalidTransition
	}

	org, err := s.orgSvc.EnsureOperational(ctx, requisition.OrgID)
	if err != nil {
		return nil, err
	}
	if err := s.orgSvc.EnsureRequisitionQuota(ctx, org); err != nil {
		return nil, err
	}

	items, err := s.repo.ListItems(ctx, s.db, requisition.ID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, domain.ErrEmptyLineItems
	}
	if !requisition.TotalAmount.IsPositive() {
		return nil, domain.ErrZeroTotalAmount
	}

	workflow, err := s.workflowSvc.Resolve(ctx, requisition.TotalAmount)
	if err != nil {
		return nil, err
	}

	// The ledger is advisory at submission time unless overrun blocking
	// is switched on.
	if s.cfg.BudgetBlockOverrun {
		summary, err := s.budgetSvc.GetSummary(ctx, requisition.ProjectID)
		if err != nil {
			return nil, err
		}
		if summary.Available.LessThan(requisition.TotalAmount) {
			return nil, domain.ErrBudgetExceeded
		}
	}

	now := s.clock.Now()
	err = rls.Transaction(ctx, s.db, int64(requisition.OrgID), func(tx *gorm.DB) error {
		return s.repo.TransitionStatus(ctx, tx, requisition.ID, domain.StatusDraft, domain.StatusPending, now, map[string]any{
			"workflow_id":  workflow.ID,
			"submitted_at": now,
		})
	})
	if err != nil {
		return nil, err
	}

	requisition.Status = domain.StatusPending
	requisition.WorkflowID = &workflow.ID
	requisition.SubmittedAt = &now

	s.audit(ctx, auditdomain.EventRequisitionSubmitted, requisition, map[string]any{
		"workflow_id":  workflow.ID.String(),
		"total_amount": requisition.TotalAmount.String(),
	})
	s.log.Info("requisition submitted",
		zap.String("requisition_id", requisition.ID.String()),
		zap.String("workflow_id", workflow.ID.String()),
		zap.String("total_amount", requisition.TotalAmount.String()),
	)
	return requisition, nil
}

func (s *Service) Cancel(ctx context.Context, requisitionID, actorID snowflake.ID) (*domain.Requisition, error) {
	requisition, err := s.authorized(ctx, requisitionID)
	if err != nil {
		return nil, err
	}

	if requisition.SubmittedBy != actorID {
		role, err := s.orgSvc.MemberRole(ctx, requisition.OrgID, actorID)
		if err != nil {
			return nil, err
		}
		if role != orgdomain.RoleAdmin && role != orgdomain.RoleOwner {
			return nil, domain.ErrNotOwner
		}
	}

	if !requisition.Status.CanTransitionTo(domain.StatusCancelled) {
		return nil, domain.ErrInvalidTransition
	}

	from := requisition.Status
	err = rls.Transaction(ctx, s.db, int64(requisition.OrgID), func(tx *gorm.DB) error {
		return s.repo.TransitionStatus(ctx, tx, requisition.ID, from, domain.StatusCancelled, s.clock.Now(), nil)
	})
	if err != nil {
		return nil, err
	}

	requisition.Status = domain.StatusCancelled
	s.audit(ctx, auditdomain.EventRequisitionCancelled, requisition, map[string]any{
		"from": string(from),
	})
	return requisition, nil
}

func (s *Service) StartReview(ctx context.Context, requisitionID, actorID snowflake.ID, target domain.Status) (*domain.Requisition, error) {
	if target != domain.StatusReviewed && target != domain.StatusUnderReview {
		return nil, domain.ErrInvalidTransition
	}

	requisition, err := s.authorized(ctx, requisitionID)
	if err != nil {
		return nil, err
	}
	if requisition.Status != domain.StatusPending {
		return nil, domain.ErrInvalidTransition
	}

	role, err := s.orgSvc.MemberRole(ctx, requisition.OrgID, actorID)
	if err != nil {
		return nil, err
	}
	if !reviewerRole(role) {
		return nil, domain.ErrNotOwner
	}

	err = rls.Transaction(ctx, s.db, int64(requisition.OrgID), func(tx *gorm.DB) error {
		return s.repo.TransitionStatus(ctx, tx, requisition.ID, domain.StatusPending, target, s.clock.Now(), nil)
	})
	if err != nil {
		return nil, err
	}

	requisition.Status = target
	return requisition, nil
}

func (s *Service) Receive(ctx context.Context, requisitionID, actorID snowflake.ID, final bool) (*domain.Requisition, error) {
	requisition, err := s.authorized(ctx, requisitionID)
	if err != nil {
		return nil, err
	}

	role, err := s.orgSvc.MemberRole(ctx, requisition.OrgID, actorID)
	if err != nil {
		return nil, err
	}
	if role == orgdomain.RoleViewer {
		return nil, domain.ErrNotOwner
	}

	var target domain.Status
	switch requisition.Status {
	case domain.StatusApproved:
		target = domain.StatusPartiallyReceived
	case domain.StatusPartiallyReceived:
		if !final {
			// Repeated partial receipts stay in PARTIALLY_RECEIVED.
			return requisition, nil
		}
		target = domain.StatusCompleted
	default:
		return nil, domain.ErrInvalidTransition
	}

	from := requisition.Status
	err = rls.Transaction(ctx, s.db, int64(requisition.OrgID), func(tx *gorm.DB) error {
		return s.repo.TransitionStatus(ctx, tx, requisition.ID, from, target, s.clock.Now(), nil)
	})
	if err != nil {
		return nil, err
	}

	requisition.Status = target
	s.audit(ctx, auditdomain.EventRequisitionReceived, requisition, map[string]any{
		"from":  string(from),
		"final": final,
	})
	return requisition, nil
}

func (s *Service) authorized(ctx context.Context, id snowflake.ID) (*domain.Requisition, error) {
	requisition, err := s.repo.GetByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if err := s.guard.Authorize(ctx, requisition.OrgID, "requisition", requisition.ID.String()); err != nil {
		return nil, err
	}
	return requisition, nil
}

func (s *Service) mutateItems(ctx context.Context, requisitionID snowflake.ID, mutate func(tx *gorm.DB) error) error {
	requisition, err := s.authorized(ctx, requisitionID)
	if err != nil {
		return err
	}
	if requisition.Status != domain.StatusDraft {
		return domain.ErrNotDraft
	}

	return rls.Transaction(ctx, s.db, int64(requisition.OrgID), func(tx *gorm.DB) error {
		if err := mutate(tx); err != nil {
			return err
		}
		_, err := s.repo.RecomputeTotal(ctx, tx, requisitionID, s.clock.Now())
		return err
	})
}

func (s *Service) buildItem(requisitionID snowflake.ID, req domain.ItemRequest) (*domain.RequisitionItem, error) {
	description := strings.TrimSpace(req.Description)
	if description == "" {
		return nil, domain.ErrInvalidTitle
	}
	if !req.Quantity.IsPositive() {
		return nil, domain.ErrInvalidQuantity
	}
	if req.UnitPrice.IsNegative() {
		return nil, domain.ErrInvalidUnitPrice
	}

	return &domain.RequisitionItem{
		ID:               s.genID.Generate(),
		RequisitionID:    requisitionID,
		ExpenseAccountID: req.ExpenseAccountID,
		Description:      description,
		Quantity:         req.Quantity,
		UnitPrice:        req.UnitPrice,
		TotalPrice:       req.Quantity.Mul(req.UnitPrice),
		CreatedAt:        s.clock.Now(),
	}, nil
}

func (s *Service) audit(ctx context.Context, eventType string, requisition *domain.Requisition, metadata map[string]any) {
	id := requisition.ID.String()
	entry := auditdomain.Entry{
		OrgID:        &requisition.OrgID,
		EventType:    eventType,
		Severity:     auditdomain.SeverityInfo,
		ResourceType: "requisition",
		ResourceID:   &id,
		Metadata:     metadata,
	}
	if err := s.auditSvc.Record(ctx, entry); err != nil {
		s.log.Warn("failed to audit requisition event",
			zap.String("event_type", eventType),
			zap.Error(err),
		)
	}
}

func reviewerRole(role string) bool {
	switch role {
	case orgdomain.RoleApprover, orgdomain.RoleAdmin, orgdomain.RoleOwner:
		return true
	default:
		return false
	}
}

func actorFromContext(ctx context.Context) (snowflake.ID, error) {
	_, raw := auditcontext.ActorFromContext(ctx)
	if raw == "" {
		return 0, domain.ErrNotOwner
	}
	parsed, err := snowflake.ParseString(raw)
	if err != nil || parsed == 0 {
		return 0, domain.ErrNotOwner
	}
	return parsed, nil
}
