package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/openprocure/procura/internal/approval"
	approvaldomain "github.com/openprocure/procura/internal/approval/domain"
	"github.com/openprocure/procura/internal/audit"
	auditdomain "github.com/openprocure/procura/internal/audit/domain"
	"github.com/openprocure/procura/internal/authorization"
	"github.com/openprocure/procura/internal/budget"
	budgetdomain "github.com/openprocure/procura/internal/budget/domain"
	"github.com/openprocure/procura/internal/config"
	"github.com/openprocure/procura/internal/expenseaccount"
	expenseaccountdomain "github.com/openprocure/procura/internal/expenseaccount/domain"
	"github.com/openprocure/procura/internal/observability"
	obsmiddleware "github.com/openprocure/procura/internal/observability/logger"
	obsmetrics "github.com/openprocure/procura/internal/observability/metrics"
	obstracing "github.com/openprocure/procura/internal/observability/tracing"
	"github.com/openprocure/procura/internal/organization"
	organizationdomain "github.com/openprocure/procura/internal/organization/domain"
	"github.com/openprocure/procura/internal/project"
	projectdomain "github.com/openprocure/procura/internal/project/domain"
	"github.com/openprocure/procura/internal/ratelimit"
	"github.com/openprocure/procura/internal/requisition"
	requisitiondomain "github.com/openprocure/procura/internal/requisition/domain"
	"github.com/openprocure/procura/internal/signup"
	signupdomain "github.com/openprocure/procura/internal/signup/domain"
	"github.com/openprocure/procura/internal/tenant"
	"github.com/openprocure/procura/internal/workflow"
	workflowdomain "github.com/openprocure/procura/internal/workflow/domain"
)

var Module = fx.Module("http.server",
	config.Module,
	fx.Provide(registerGin),
	authorization.Module,
	audit.Module,
	tenant.Module,
	organization.Module,
	project.Module,
	expenseaccount.Module,
	workflow.Module,
	requisition.Module,
	budget.Module,
	approval.Module,
	ratelimit.Module,
	signup.Module,
	fx.Provide(NewServer),
	fx.Invoke(func(*Server) {}),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, metrics *obsmetrics.Metrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(metrics.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", metrics.Handler())

	return r
}

func registerGin(obsCfg observability.Config, metrics *obsmetrics.Metrics) *gin.Engine {
	return NewEngine(obsCfg, metrics)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine            *gin.Engine
	cfg               config.Config
	db                *gorm.DB
	genID             *snowflake.Node
	authzSvc          authorization.Service
	auditSvc          auditdomain.Service
	organizationSvc   organizationdomain.Service
	projectSvc        projectdomain.Service
	expenseAccountSvc expenseaccountdomain.Service
	workflowSvc       workflowdomain.Service
	requisitionSvc    requisitiondomain.Service
	budgetSvc         budgetdomain.Service
	approvalSvc       approvaldomain.Service
	signupSvc         signupdomain.Service
	obsMetrics        *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin               *gin.Engine
	Cfg               config.Config
	DB                *gorm.DB
	GenID             *snowflake.Node
	AuthzSvc          authorization.Service
	AuditSvc          auditdomain.Service
	OrganizationSvc   organizationdomain.Service
	ProjectSvc        projectdomain.Service
	ExpenseAccountSvc expenseaccountdomain.Service
	WorkflowSvc       workflowdomain.Service
	RequisitionSvc    requisitiondomain.Service
	BudgetSvc         budgetdomain.Service
	ApprovalSvc       approvaldomain.Service
	SignupSvc         signupdomain.Service
	ObsMetrics        *obsmetrics.Metrics `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:            p.Gin,
		cfg:               p.Cfg,
		db:                p.DB,
		genID:             p.GenID,
		authzSvc:          p.AuthzSvc,
		auditSvc:          p.AuditSvc,
		organizationSvc:   p.OrganizationSvc,
		projectSvc:        p.ProjectSvc,
		expenseAccountSvc: p.ExpenseAccountSvc,
		workflowSvc:       p.WorkflowSvc,
		requisitionSvc:    p.RequisitionSvc,
		budgetSvc:         p.BudgetSvc,
		approvalSvc:       p.ApprovalSvc,
		signupSvc:         p.SignupSvc,
		obsMetrics:        p.ObsMetrics,
	}

	svc.registerSignupRoutes()
	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerSignupRoutes() {
	s.engine.POST("/signup", s.AuthRequired(), s.Signup)
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	api.Use(s.AuthRequired())
	api.Use(s.OrgContext())

	anyMember := []string{
		organizationdomain.RoleOwner,
		organizationdomain.RoleAdmin,
		organizationdomain.RoleApprover,
		organizationdomain.RoleSubmitter,
		organizationdomain.RoleViewer,
	}
	submitters := []string{
		organizationdomain.RoleOwner,
		organizationdomain.RoleAdmin,
		organizationdomain.RoleSubmitter,
	}
	reviewers := []string{
		organizationdomain.RoleOwner,
		organizationdomain.RoleAdmin,
		organizationdomain.RoleApprover,
	}
	admins := []string{
		organizationdomain.RoleOwner,
		organizationdomain.RoleAdmin,
	}

	// -------- Organizations --------
	api.GET("/organizations/:id", s.RequireRole(anyMember...), s.GetOrganization)
	api.POST("/organizations/:id/members", s.RequireRole(admins...), s.authorizeOrgAction(authorization.ObjectMember, authorization.ActionMemberManage), s.AddOrganizationMember)
	api.POST("/organizations/:id/suspend", s.RequireRole(organizationdomain.RoleOwner), s.authorizeOrgAction(authorization.ObjectOrganization, authorization.ActionOrganizationManage), s.SuspendOrganization)
	api.POST("/organizations/:id/resume", s.RequireRole(organizationdomain.RoleOwner), s.authorizeOrgAction(authorization.ObjectOrganization, authorization.ActionOrganizationManage), s.ResumeOrganization)
	api.POST("/organizations/:id/cancel", s.RequireRole(organizationdomain.RoleOwner), s.authorizeOrgAction(authorization.ObjectOrganization, authorization.ActionOrganizationManage), s.CancelOrganization)

	// -------- Projects --------
	api.GET("/projects", s.RequireRole(anyMember...), s.ListProjects)
	api.POST("/projects", s.RequireRole(admins...), s.authorizeOrgAction(authorization.ObjectProject, authorization.ActionProjectCreate), s.CreateProject)
	api.GET("/projects/:id", s.RequireRole(anyMember...), s.GetProjectByID)
	api.POST("/projects/:id/activate", s.RequireRole(admins...), s.authorizeOrgAction(authorization.ObjectProject, authorization.ActionProjectUpdate), s.ActivateProject)
	api.POST("/projects/:id/deactivate", s.RequireRole(admins...), s.authorizeOrgAction(authorization.ObjectProject, authorization.ActionProjectUpdate), s.DeactivateProject)
	api.GET("/projects/:id/budget", s.RequireRole(anyMember...), s.authorizeOrgAction(authorization.ObjectBudget, authorization.ActionBudgetView), s.GetProjectBudget)

	// -------- Expense Accounts --------
	api.GET("/expense-accounts", s.RequireRole(anyMember...), s.ListExpenseAccounts)
	api.POST("/expense-accounts", s.RequireRole(admins...), s.authorizeOrgAction(authorization.ObjectExpenseAccount, authorization.ActionExpenseAccountManage), s.CreateExpenseAccount)
	api.GET("/expense-accounts/:id", s.RequireRole(anyMember...), s.GetExpenseAccountByID)

	// -------- Approval Workflows --------
	api.GET("/workflows", s.RequireRole(reviewers...), s.ListWorkflows)
	api.POST("/workflows", s.RequireRole(admins...), s.authorizeOrgAction(authorization.ObjectWorkflow, authorization.ActionWorkflowManage), s.CreateWorkflow)
	api.GET("/workflows/:id", s.RequireRole(reviewers...), s.GetWorkflowByID)
	api.POST("/workflows/:id/activate", s.RequireRole(admins...), s.authorizeOrgAction(authorization.ObjectWorkflow, authorization.ActionWorkflowManage), s.ActivateWorkflow)
	api.POST("/workflows/:id/deactivate", s.RequireRole(admins...), s.authorizeOrgAction(authorization.ObjectWorkflow, authorization.ActionWorkflowManage), s.DeactivateWorkflow)
	api.GET("/workflows/resolve", s.RequireRole(reviewers...), s.ResolveWorkflow)

	// -------- Requisitions --------
	api.GET("/requisitions", s.RequireRole(anyMember...), s.ListRequisitions)
	api.POST("/requisitions", s.RequireRole(submitters...), s.authorizeOrgAction(authorization.ObjectRequisition, authorization.ActionRequisitionCreate), s.CreateRequisition)
	api.GET("/requisitions/:id", s.RequireRole(anyMember...), s.GetRequisitionByID)
	api.POST("/requisitions/:id/items", s.RequireRole(submitters...), s.AddRequisitionItem)
	api.PATCH("/requisitions/:id/items/:itemId", s.RequireRole(submitters...), s.UpdateRequisitionItem)
	api.DELETE("/requisitions/:id/items/:itemId", s.RequireRole(submitters...), s.RemoveRequisitionItem)
	api.POST("/requisitions/:id/submit", s.RequireRole(submitters...), s.authorizeOrgAction(authorization.ObjectRequisition, authorization.ActionRequisitionSubmit), s.SubmitRequisition)
	api.POST("/requisitions/:id/cancel", s.RequireRole(submitters...), s.authorizeOrgAction(authorization.ObjectRequisition, authorization.ActionRequisitionCancel), s.CancelRequisition)
	api.POST("/requisitions/:id/review", s.RequireRole(reviewers...), s.authorizeOrgAction(authorization.ObjectRequisition, authorization.ActionRequisitionReview), s.ReviewRequisition)
	api.POST("/requisitions/:id/receive", s.RequireRole(submitters...), s.authorizeOrgAction(authorization.ObjectRequisition, authorization.ActionRequisitionReceive), s.ReceiveRequisition)

	// -------- Approval Decisions --------
	api.POST("/requisitions/:id/decisions", s.RequireRole(reviewers...), s.authorizeOrgAction(authorization.ObjectRequisition, authorization.ActionRequisitionDecide), s.RecordDecision)
	api.GET("/requisitions/:id/decisions", s.RequireRole(anyMember...), s.ListDecisions)
	api.GET("/requisitions/:id/chain", s.RequireRole(anyMember...), s.GetApprovalChain)

	api.GET("/audit-logs", s.RequireRole(admins...), s.authorizeOrgAction(authorization.ObjectAuditLog, authorization.ActionAuditLogView), s.ListAuditLogs)
}
