package authorization

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	auditdomain "github.com/openprocure/procura/internal/audit/domain"
)

//go:embed model.conf
var modelText string

const (
	ObjectOrganization   = "organization"
	ObjectMember         = "member"
	ObjectProject        = "project"
	ObjectExpenseAccount = "expense_account"
	ObjectRequisition    = "requisition"
	ObjectWorkflow       = "workflow"
	ObjectBudget         = "budget"
	ObjectAuditLog       = "audit_log"
)

const (
	ActionOrganizationManage = "organization.manage"
	ActionMemberManage       = "member.manage"

	ActionProjectView   = "project.view"
	ActionProjectCreate = "project.create"
	ActionProjectUpdate = "project.update"

	ActionExpenseAccountView   = "expense_account.view"
	ActionExpenseAccountManage = "expense_account.manage"

	ActionRequisitionView    = "requisition.view"
	ActionRequisitionCreate  = "requisition.create"
	ActionRequisitionSubmit  = "requisition.submit"
	ActionRequisitionCancel  = "requisition.cancel"
	ActionRequisitionReview  = "requisition.review"
	ActionRequisitionDecide  = "requisition.decide"
	ActionRequisitionReceive = "requisition.receive"

	ActionWorkflowView   = "workflow.view"
	ActionWorkflowManage = "workflow.manage"

	ActionBudgetView = "budget.view"

	ActionAuditLogView = "audit_log.view"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
	AuditSvc auditdomain.Service `optional:"true"`
}

type ServiceImpl struct {
	db       *gorm.DB
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
	auditSvc auditdomain.Service
}

func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	enforcer.BuildRoleLinks()
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		db:       p.DB,
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
		auditSvc: p.AuditSvc,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, actor, orgID, object, action string) error {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return ErrInvalidActor
	}
	orgID = strings.TrimSpace(orgID)
	if orgID == "" {
		return ErrInvalidOrganization
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	subject, roleName, actorType, actorID, err := s.resolveActor(ctx, actor, orgID)
	if err != nil {
		s.auditDenied(ctx, actorType, actorID, orgID, object, action)
		return err
	}

	domain := fmt.Sprintf("org:%s", orgID)
	if err := s.ensureGrouping(subject, roleName, domain); err != nil {
		return err
	}

	allowed, err := s.enforcer.Enforce(subject, domain, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.auditDenied(ctx, actorType, actorID, orgID, object, action)
		return ErrForbidden
	}
	return nil
}

func (s *ServiceImpl) resolveActor(ctx context.Context, actor, orgID string) (string, string, string, *string, error) {
	if actor == "system" {
		return actor, "role:system", "system", nil, nil
	}
	if strings.HasPrefix(actor, "user:") {
		userIDRaw := strings.TrimPrefix(actor, "user:")
		userID, err := snowflake.ParseString(userIDRaw)
		if err != nil || userID == 0 {
			return "", "", "", nil, ErrInvalidActor
		}
		userIDStr := userID.String()
		parsedOrgID, err := snowflake.ParseString(orgID)
		if err != nil || parsedOrgID == 0 {
			return actor, "", "user", &userIDStr, ErrInvalidOrganization
		}
		role, err := s.roleForUser(ctx, parsedOrgID, userID)
		if err != nil {
			return actor, "", "user", &userIDStr, err
		}
		return actor, fmt.Sprintf("role:%s", strings.ToLower(role)), "user", &userIDStr, nil
	}
	return "", "", "", nil, ErrInvalidActor
}

func (s *ServiceImpl) roleForUser(ctx context.Context, orgID, userID snowflake.ID) (string, error) {
	var row struct {
		Role string `gorm:"column:role"`
	}
	if err := s.db.WithContext(ctx).Raw(
		`SELECT role
		 FROM organization_members
		 WHERE org_id = ? AND user_id = ?
		 LIMIT 1`,
		orgID,
		userID,
	).Scan(&row).Error; err != nil {
		return "", err
	}

	role := strings.TrimSpace(row.Role)
	if role == "" {
		return "", ErrForbidden
	}
	return role, nil
}

// ensureGrouping keeps the subject bound to its current org role. A member
// whose role changed gets the stale grouping removed before the new one is
// added.
func (s *ServiceImpl) ensureGrouping(subject, roleName, domain string) error {
	existing, err := s.enforcer.GetFilteredGroupingPolicy(0, subject, "", domain)
	if err != nil {
		return err
	}
	for _, rule := range existing {
		if len(rule) < 2 {
			continue
		}
		if rule[1] != roleName {
			params := make([]interface{}, 0, len(rule))
			for _, value := range rule {
				params = append(params, value)
			}
			_, _ = s.enforcer.RemoveGroupingPolicy(params...)
		}
	}

	has, err := s.enforcer.HasGroupingPolicy(subject, roleName, domain)
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	_, err = s.enforcer.AddGroupingPolicy(subject, roleName, domain)
	return err
}

func (s *ServiceImpl) auditDenied(ctx context.Context, actorType string, actorID *string, orgID, object, action string) {
	if s.auditSvc == nil {
		return
	}
	parsedOrgID, err := snowflake.ParseString(orgID)
	if err != nil || parsedOrgID == 0 {
		return
	}
	resourceID := "capability"
	_ = s.auditSvc.Record(ctx, auditdomain.Entry{
		OrgID:        &parsedOrgID,
		ActorID:      actorID,
		EventType:    "authorization.denied",
		Severity:     auditdomain.SeverityWarning,
		ResourceType: "authorization",
		ResourceID:   &resourceID,
		Metadata: map[string]any{
			"object":     object,
			"action":     action,
			"actor_type": actorType,
		},
	})
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		{"role:viewer", ObjectRequisition, ActionRequisitionView},
		{"role:viewer", ObjectProject, ActionProjectView},
		{"role:viewer", ObjectBudget, ActionBudgetView},
		{"role:viewer", ObjectWorkflow, ActionWorkflowView},

		{"role:submitter", ObjectRequisition, ActionRequisitionView},
		{"role:submitter", ObjectRequisition, ActionRequisitionCreate},
		{"role:submitter", ObjectRequisition, ActionRequisitionSubmit},
		{"role:submitter", ObjectRequisition, ActionRequisitionCancel},
		{"role:submitter", ObjectRequisition, ActionRequisitionReceive},
		{"role:submitter", ObjectProject, ActionProjectView},
		{"role:submitter", ObjectExpenseAccount, ActionExpenseAccountView},
		{"role:submitter", ObjectBudget, ActionBudgetView},
		{"role:submitter", ObjectWorkflow, ActionWorkflowView},

		{"role:approver", ObjectRequisition, ActionRequisitionView},
		{"role:approver", ObjectRequisition, ActionRequisitionReview},
		{"role:approver", ObjectRequisition, ActionRequisitionDecide},
		{"role:approver", ObjectProject, ActionProjectView},
		{"role:approver", ObjectExpenseAccount, ActionExpenseAccountView},
		{"role:approver", ObjectBudget, ActionBudgetView},
		{"role:approver", ObjectWorkflow, ActionWorkflowView},

		{"role:admin", ObjectRequisition, ActionRequisitionView},
		{"role:admin", ObjectRequisition, ActionRequisitionCreate},
		{"role:admin", ObjectRequisition, ActionRequisitionSubmit},
		{"role:admin", ObjectRequisition, ActionRequisitionCancel},
		{"role:admin", ObjectRequisition, ActionRequisitionReview},
		{"role:admin", ObjectRequisition, ActionRequisitionDecide},
		{"role:admin", ObjectRequisition, ActionRequisitionReceive},
		{"role:admin", ObjectProject, ActionProjectView},
		{"role:admin", ObjectProject, ActionProjectCreate},
		{"role:admin", ObjectProject, ActionProjectUpdate},
		{"role:admin", ObjectExpenseAccount, ActionExpenseAccountView},
		{"role:admin", ObjectExpenseAccount, ActionExpenseAccountManage},
		{"role:admin", ObjectWorkflow, ActionWorkflowView},
		{"role:admin", ObjectWorkflow, ActionWorkflowManage},
		{"role:admin", ObjectBudget, ActionBudgetView},
		{"role:admin", ObjectMember, ActionMemberManage},
		{"role:admin", ObjectAuditLog, ActionAuditLogView},

		{"role:owner", ObjectRequisition, ActionRequisitionView},
		{"role:owner", ObjectRequisition, ActionRequisitionCreate},
		{"role:owner", ObjectRequisition, ActionRequisitionSubmit},
		{"role:owner", ObjectRequisition, ActionRequisitionCancel},
		{"role:owner", ObjectRequisition, ActionRequisitionReview},
		{"role:owner", ObjectRequisition, ActionRequisitionDecide},
		{"role:owner", ObjectRequisition, ActionRequisitionReceive},
		{"role:owner", ObjectProject, ActionProjectView},
		{"role:owner", ObjectProject, ActionProjectCreate},
		{"role:owner", ObjectProject, ActionProjectUpdate},
		{"role:owner", ObjectExpenseAccount, ActionExpenseAccountView},
		{"role:owner", ObjectExpenseAccount, ActionExpenseAccountManage},
		{"role:owner", ObjectWorkflow, ActionWorkflowView},
		{"role:owner", ObjectWorkflow, ActionWorkflowManage},
		{"role:owner", ObjectBudget, ActionBudgetView},
		{"role:owner", ObjectMember, ActionMemberManage},
		{"role:owner", ObjectOrganization, ActionOrganizationManage},
		{"role:owner", ObjectAuditLog, ActionAuditLogView},

		{"role:system", ObjectOrganization, ActionOrganizationManage},
		{"role:system", ObjectAuditLog, ActionAuditLogView},
	}

	for _, policy := range policies {
		if len(policy) < 3 {
			continue
		}
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}
	return nil
}
