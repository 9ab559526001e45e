package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	workflowdomain "github.com/openprocure/procura/internal/workflow/domain"
)

type createWorkflowRequest struct {
	Name                   string           `json:"name"`
	AmountThresholdMin     decimal.Decimal  `json:"amount_threshold_min"`
	AmountThresholdMax     *decimal.Decimal `json:"amount_threshold_max"`
	RequiredApproversCount int              `json:"required_approvers_count"`
	ApprovalRoles          []string         `json:"approval_roles"`
	Priority               int              `json:"priority"`
}

func (s *Server) CreateWorkflow(c *gin.Context) {
	var req createWorkflowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	workflow, err := s.workflowSvc.Create(c.Request.Context(), workflowdomain.CreateWorkflowRequest{
		Name:                   req.Name,
		AmountThresholdMin:     req.AmountThresholdMin,
		AmountThresholdMax:     req.AmountThresholdMax,
		RequiredApproversCount: req.RequiredApproversCount,
		ApprovalRoles:          req.ApprovalRoles,
		Priority:               req.Priority,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": workflow})
}

func (s *Server) ListWorkflows(c *gin.Context) {
	workflows, err := s.workflowSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": workflows})
}

func (s *Server) GetWorkflowByID(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	workflow, err := s.workflowSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": workflow})
}

func (s *Server) ActivateWorkflow(c *gin.Context) {
	s.setWorkflowActive(c, true)
}

func (s *Server) DeactivateWorkflow(c *gin.Context) {
	s.setWorkflowActive(c, false)
}

func (s *Server) setWorkflowActive(c *gin.Context, active bool) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.workflowSvc.SetActive(c.Request.Context(), id, active); err != nil {
		AbortWithError(c, err)
		return
	}

	workflow, err := s.workflowSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": workflow})
}

// ResolveWorkflow answers which workflow would govern a hypothetical amount.
// Useful for previewing the chain before a submission.
func (s *Server) ResolveWorkflow(c *gin.Context) {
	raw := strings.TrimSpace(c.Query("amount"))
	if raw == "" {
		AbortWithError(c, newValidationError("amount", "invalid_amount", "amount is required"))
		return
	}

	amount, err := decimal.NewFromString(raw)
	if err != nil {
		AbortWithError(c, newValidationError("amount", "invalid_amount", "invalid amount"))
		return
	}

	workflow, err := s.workflowSvc.Resolve(c.Request.Context(), amount)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": workflow})
}
