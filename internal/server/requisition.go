package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	requisitiondomain "github.com/openprocure/procura/internal/requisition/domain"
)

type createRequisitionRequest struct {
	ProjectID  snowflake.ID `json:"project_id"`
	Title      string       `json:"title"`
	RequiredBy string       `json:"required_by"`
}

func (s *Server) CreateRequisition(c *gin.Context) {
	var req createRequisitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	var requiredBy *time.Time
	if raw := strings.TrimSpace(req.RequiredBy); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			AbortWithError(c, newValidationError("required_by", "invalid_required_by", "invalid required_by"))
			return
		}
		requiredBy = &parsed
	}

	requisition, err := s.requisitionSvc.CreateDraft(c.Request.Context(), requisitiondomain.CreateRequisitionRequest{
		ProjectID:  req.ProjectID,
		Title:      req.Title,
		RequiredBy: requiredBy,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": requisition})
}

type listRequisitionsQuery struct {
	Status string `form:"status"`
}

func (s *Server) ListRequisitions(c *gin.Context) {
	var query listRequisitionsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	status := strings.TrimSpace(query.Status)
	if status != "" && !requisitiondomain.ValidStatus(status) {
		AbortWithError(c, newValidationError("status", "invalid_status", "unknown status"))
		return
	}

	requisitions, err := s.requisitionSvc.List(c.Request.Context(), status)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": requisitions})
}

func (s *Server) GetRequisitionByID(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	requisition, items, err := s.requisitionSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": requisition, "items": items})
}

type requisitionItemRequest struct {
	ExpenseAccountID *snowflake.ID   `json:"expense_account_id"`
	Description      string          `json:"description"`
	Quantity         decimal.Decimal `json:"quantity"`
	UnitPrice        decimal.Decimal `json:"unit_price"`
}

func (s *Server) AddRequisitionItem(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req requisitionItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	item, err := s.requisitionSvc.AddItem(c.Request.Context(), id, requisitiondomain.ItemRequest{
		ExpenseAccountID: req.ExpenseAccountID,
		Description:      req.Description,
		Quantity:         req.Quantity,
		UnitPrice:        req.UnitPrice,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": item})
}

func (s *Server) UpdateRequisitionItem(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	itemID, err := parseIDParam(c, "itemId")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req requisitionItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	item, err := s.requisitionSvc.UpdateItem(c.Request.Context(), id, itemID, requisitiondomain.ItemRequest{
		ExpenseAccountID: req.ExpenseAccountID,
		Description:      req.Description,
		Quantity:         req.Quantity,
		UnitPrice:        req.UnitPrice,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": item})
}

func (s *Server) RemoveRequisitionItem(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	itemID, err := parseIDParam(c, "itemId")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.requisitionSvc.RemoveItem(c.Request.Context(), id, itemID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"deleted": true}})
}

func (s *Server) SubmitRequisition(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	requisition, err := s.requisitionSvc.Submit(c.Request.Context(), id, currentUserID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.obsMetrics.RecordRequisitionSubmitted(requisition.OrgID.String())
	c.JSON(http.StatusOK, gin.H{"data": requisition})
}

func (s *Server) CancelRequisition(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	requisition, err := s.requisitionSvc.Cancel(c.Request.Context(), id, currentUserID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": requisition})
}

type reviewRequisitionRequest struct {
	Target string `json:"target"`
}

func (s *Server) ReviewRequisition(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req reviewRequisitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	target := requisitiondomain.Status(strings.ToUpper(strings.TrimSpace(req.Target)))
	if target == "" {
		target = requisitiondomain.StatusUnderReview
	}
	if target != requisitiondomain.StatusReviewed && target != requisitiondomain.StatusUnderReview {
		AbortWithError(c, newValidationError("target", "invalid_target", "target must be REVIEWED or UNDER_REVIEW"))
		return
	}

	requisition, err := s.requisitionSvc.StartReview(c.Request.Context(), id, currentUserID(c), target)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": requisition})
}

type receiveRequisitionRequest struct {
	Final bool `json:"final"`
}

func (s *Server) ReceiveRequisition(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req receiveRequisitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	requisition, err := s.requisitionSvc.Receive(c.Request.Context(), id, currentUserID(c), req.Final)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": requisition})
}
