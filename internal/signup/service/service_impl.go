package service

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"

	auditdomain "github.com/openprocure/procura/internal/audit/domain"
	"github.com/openprocure/procura/internal/auditcontext"
	orgdomain "github.com/openprocure/procura/internal/organization/domain"
	"github.com/openprocure/procura/internal/orgcontext"
	"github.com/openprocure/procura/internal/ratelimit"
	"github.com/openprocure/procura/internal/signup/domain"
	workflowdomain "github.com/openprocure/procura/internal/workflow/domain"
)

type Params struct {
	fx.In

	Log         *zap.Logger
	Limiter     *ratelimit.SignupLimiter
	OrgSvc      orgdomain.Service
	WorkflowSvc workflowdomain.Service
	AuditSvc    auditdomain.Service
}

type Service struct {
	log         *zap.Logger
	limiter     *ratelimit.SignupLimiter
	orgSvc      orgdomain.Service
	workflowSvc workflowdomain.Service
	auditSvc    auditdomain.Service
}

func NewService(p Params) domain.Service {
	return &Service{
		log:         p.Log.Named("signup.service"),
		limiter:     p.Limiter,
		orgSvc:      p.OrgSvc,
		workflowSvc: p.WorkflowSvc,
		auditSvc:    p.AuditSvc,
	}
}

func (s *Service) Signup(ctx context.Context, req domain.SignupRequest) (*orgdomain.Organization, error) {
	if req.OwnerUserID == 0 {
		return nil, domain.ErrInvalidOwner
	}

	ip := auditcontext.IPAddressFromContext(ctx)
	if ip != "" {
		result, err := s.limiter.Allow(ctx, ip)
		if err != nil {
			return nil, err
		}
		if !result.Allowed {
			s.log.Warn("signup rate limited", zap.String("ip", ip))
			if auditErr := s.auditSvc.Record(ctx, auditdomain.Entry{
				EventType: auditdomain.EventSignupRateLimited,
				Severity:  auditdomain.SeverityWarning,
				Metadata:  map[string]any{"ip": ip},
			}); auditErr != nil {
				s.log.Error("record signup rate limit event", zap.Error(auditErr))
			}
			return nil, domain.ErrRateLimited
		}
	}

	org, err := s.orgSvc.Create(ctx, orgdomain.CreateOrganizationRequest{
		Name: req.OrganizationName,
		Plan: req.Plan,
	})
	if err != nil {
		return nil, err
	}

	// Downstream provisioning runs in the new org's scope.
	orgCtx := orgcontext.WithOrgID(ctx, int64(org.ID))

	if err := s.orgSvc.AddMember(orgCtx, org.ID, req.OwnerUserID, orgdomain.RoleOwner); err != nil {
		return nil, err
	}
	if err := s.seedWorkflows(orgCtx); err != nil {
		return nil, err
	}

	actorID := req.OwnerUserID.String()
	if auditErr := s.auditSvc.Record(orgCtx, auditdomain.Entry{
		OrgID:        &org.ID,
		ActorID:      &actorID,
		EventType:    auditdomain.EventOrganizationCreated,
		Severity:     auditdomain.SeverityInfo,
		ResourceType: "organization",
		ResourceID:   ptr(org.ID.String()),
		Metadata:     map[string]any{"plan": org.Plan},
	}); auditErr != nil {
		s.log.Error("record organization created event", zap.Error(auditErr))
	}

	s.log.Info("organization provisioned",
		zap.String("org_id", org.ID.String()),
		zap.String("slug", org.Slug),
	)
	return org, nil
}

// seedWorkflows installs the default approval policy tiers for a fresh org.
// Admins can replace them later; resolution never falls back past them.
func (s *Service) seedWorkflows(ctx context.Context) error {
	tiers := []workflowdomain.CreateWorkflowRequest{
		{
			Name:                   "Small purchases",
			AmountThresholdMin:     decimal.Zero,
			AmountThresholdMax:     ptr(decimal.NewFromInt(1000)),
			RequiredApproversCount: 1,
			ApprovalRoles:          []string{orgdomain.RoleApprover, orgdomain.RoleAdmin, orgdomain.RoleOwner},
			Priority:               10,
		},
		{
			Name:                   "Standard purchases",
			AmountThresholdMin:     decimal.Zero,
			AmountThresholdMax:     ptr(decimal.NewFromInt(10000)),
			RequiredApproversCount: 2,
			ApprovalRoles:          []string{orgdomain.RoleApprover, orgdomain.RoleAdmin, orgdomain.RoleOwner},
			Priority:               20,
		},
		{
			Name:                   "Large purchases",
			AmountThresholdMin:     decimal.Zero,
			RequiredApproversCount: 3,
			ApprovalRoles:          []string{orgdomain.RoleAdmin, orgdomain.RoleOwner},
			Priority:               30,
		},
	}
	for _, tier := range tiers {
		if _, err := s.workflowSvc.Create(ctx, tier); err != nil {
			return err
		}
	}
	return nil
}

func ptr[T any](v T) *T { return &v }
