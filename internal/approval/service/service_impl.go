package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/openprocure/procura/internal/approval/domain"
	auditdomain "github.com/openprocure/procura/internal/audit/domain"
	"github.com/openprocure/procura/internal/clock"
	orgdomain "github.com/openprocure/procura/internal/organization/domain"
	reqdomain "github.com/openprocure/procura/internal/requisition/domain"
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
	Guard       *tenant.Guard
	Repo        domain.Repository
	ReqRepo     reqdomain.Repository
	OrgSvc      orgdomain.Service
	WorkflowSvc workflowdomain.Service
	AuditSvc    auditdomain.Service
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	clock       clock.Clock
	genID       *snowflake.Node
	guard       *tenant.Guard
	repo        domain.Repository
	reqRepo     reqdomain.Repository
	orgSvc      orgdomain.Service
	workflowSvc workflowdomain.Service
	auditSvc    auditdomain.Service
}

func NewService(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("approval.service"),
		clock:       p.Clock,
		genID:       p.GenID,
		guard:       p.Guard,
		repo:        p.Repo,
		reqRepo:     p.ReqRepo,
		orgSvc:      p.OrgSvc,
		workflowSvc: p.WorkflowSvc,
		auditSvc:    p.AuditSvc,
	}
}

// RecordDecision stores the stance and, when it completes or rejects the
// chain, applies the resulting status transition in the same transaction.
// The transition uses a compare-and-swap, so two approvers racing on the
// final slot cannot both resolve the chain.
func (s *Service) RecordDecision(ctx context.Context, requisitionID, approverID snowflake.ID, req domain.DecisionRequest) (*domain.ApprovalDecision, error) {
	stance := strings.ToLower(strings.TrimSpace(req.Decision))
	if !domain.ValidDecision(stance) {
		return nil, domain.ErrInvalidDecision
	}

	requisition, err := s.authorized(ctx, requisitionID)
	if err != nil {
		return nil, err
	}
	if requisition.Status == reqdomain.StatusDraft {
		return nil, reqdomain.ErrInvalidTransition
	}
	if !requisition.Status.AwaitingDecision() {
		return nil, domain.ErrChainAlreadyResolved
	}
	if requisition.WorkflowID == nil {
		return nil, domain.ErrNoWorkflowBound
	}

	workflow, err := s.workflowSvc.GetByID(ctx, *requisition.WorkflowID)
	if err != nil {
		return nil, err
	}

	role, err := s.orgSvc.MemberRole(ctx, requisition.OrgID, approverID)
	if err != nil {
		return nil, err
	}
	if !workflow.RoleEligible(role) {
		return nil, domain.ErrRoleNotEligible
	}

	var (
		decision *domain.ApprovalDecision
		outcome  reqdomain.Status
	)
	err = rls.Transaction(ctx, s.db, int64(requisition.OrgID), func(tx *gorm.DB) error {
		// The row lock serializes concurrent approvers, so the tally
		// below never counts against a stale requisition state.
		current, txErr := s.reqRepo.GetByIDForUpdate(ctx, tx, requisitionID)
		if txErr != nil {
			return txErr
		}
		if !current.Status.AwaitingDecision() {
			return domain.ErrChainAlreadyResolved
		}

		now := s.clock.Now()

		// The first decision on a PENDING requisition starts the review
		// stage, so resolution always happens from a review state.
		status := current.Status
		if status == reqdomain.StatusPending {
			if txErr = s.reqRepo.TransitionStatus(ctx, tx, requisitionID, reqdomain.StatusPending, reqdomain.StatusUnderReview, now, nil); txErr != nil {
				return txErr
			}
			status = reqdomain.StatusUnderReview
		}

		decision, txErr = s.upsertDecision(ctx, tx, requisitionID, approverID, stance, req.Comment)
		if txErr != nil {
			return txErr
		}

		if stance == domain.DecisionReject {
			outcome = reqdomain.StatusRejected
			return s.reqRepo.TransitionStatus(ctx, tx, requisitionID, status, reqdomain.StatusRejected, now, nil)
		}

		approvals, txErr := s.repo.CountByDecision(ctx, tx, requisitionID, domain.DecisionApprove)
		if txErr != nil {
			return txErr
		}
		if approvals >= int64(workflow.RequiredApproversCount) {
			outcome = reqdomain.StatusApproved
			return s.reqRepo.TransitionStatus(ctx, tx, requisitionID, status, reqdomain.StatusApproved, now, nil)
		}
		outcome = status
		return nil
	})
	if err != nil {
		return nil, err
	}

	metadata := map[string]any{
		"decision": decision.Decision,
		"outcome":  string(outcome),
	}
	actorID := approverID.String()
	auditErr := s.auditSvc.Record(ctx, auditdomain.Entry{
		OrgID:        &requisition.OrgID,
		ActorID:      &actorID,
		EventType:    auditdomain.EventDecisionRecorded,
		Severity:     auditdomain.SeverityInfo,
		ResourceType: "requisition",
		ResourceID:   ptr(requisitionID.String()),
		Metadata:     metadata,
	})
	if auditErr != nil {
		s.log.Error("record decision audit event", zap.Error(auditErr))
	}

	s.log.Info("approval decision recorded",
		zap.String("requisition_id", requisitionID.String()),
		zap.String("approver_id", approverID.String()),
		zap.String("decision", decision.Decision),
		zap.String("outcome", string(outcome)),
	)
	return decision, nil
}

func (s *Service) upsertDecision(ctx context.Context, tx *gorm.DB, requisitionID, approverID snowflake.ID, stance, comment string) (*domain.ApprovalDecision, error) {
	existing, err := s.repo.GetByApprover(ctx, tx, requisitionID, approverID)
	switch {
	case err == nil:
		existing.Decision = stance
		existing.Comment = comment
		existing.UpdatedAt = s.clock.Now()
		return existing, s.repo.Update(ctx, tx, existing)
	case errors.Is(err, domain.ErrDecisionNotFound):
		now := s.clock.Now()
		decision := &domain.ApprovalDecision{
			ID:            s.genID.Generate(),
			DecisionUID:   uuid.NewString(),
			RequisitionID: requisitionID,
			ApproverID:    approverID,
			Decision:      stance,
			Comment:       comment,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		return decision, s.repo.Insert(ctx, tx, decision)
	default:
		return nil, err
	}
}

func (s *Service) ListDecisions(ctx context.Context, requisitionID snowflake.ID) ([]domain.ApprovalDecision, error) {
	if _, err := s.authorized(ctx, requisitionID); err != nil {
		return nil, err
	}
	return s.repo.ListByRequisition(ctx, s.db, requisitionID)
}

func (s *Service) Chain(ctx context.Context, requisitionID snowflake.ID) (*domain.ChainStatus, error) {
	requisition, err := s.authorized(ctx, requisitionID)
	if err != nil {
		return nil, err
	}

	chain := &domain.ChainStatus{
		RequisitionID: requisition.ID,
		WorkflowID:    requisition.WorkflowID,
		Resolved:      !requisition.Status.AwaitingDecision() && requisition.Status != reqdomain.StatusDraft,
		Status:        requisition.Status,
	}
	if requisition.WorkflowID != nil {
		workflow, wErr := s.workflowSvc.GetByID(ctx, *requisition.WorkflowID)
		if wErr != nil {
			return nil, wErr
		}
		chain.RequiredApprovals = workflow.RequiredApproversCount
	}

	approvals, err := s.repo.CountByDecision(ctx, s.db, requisitionID, domain.DecisionApprove)
	if err != nil {
		return nil, err
	}
	rejections, err := s.repo.CountByDecision(ctx, s.db, requisitionID, domain.DecisionReject)
	if err != nil {
		return nil, err
	}
	chain.ApprovalsRecorded = int(approvals)
	chain.RejectionsRecorded = int(rejections)
	return chain, nil
}

func (s *Service) authorized(ctx context.Context, requisitionID snowflake.ID) (*reqdomain.Requisition, error) {
	requisition, err := s.reqRepo.GetByID(ctx, s.db, requisitionID)
	if err != nil {
		return nil, err
	}
	if err := s.guard.Authorize(ctx, requisition.OrgID, "requisition", requisitionID.String()); err != nil {
		return nil, err
	}
	return requisition, nil
}

func ptr[T any](v T) *T { return &v }
