package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	approvaldomain "github.com/openprocure/procura/internal/approval/domain"
)

type recordDecisionRequest struct {
	Decision string `json:"decision"`
	Comment  string `json:"comment"`
}

func (s *Server) RecordDecision(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req recordDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	decision, err := s.approvalSvc.RecordDecision(c.Request.Context(), id, currentUserID(c), approvaldomain.DecisionRequest{
		Decision: req.Decision,
		Comment:  req.Comment,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.obsMetrics.RecordDecision(decision.Decision)
	c.JSON(http.StatusCreated, gin.H{"data": decision})
}

func (s *Server) ListDecisions(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	decisions, err := s.approvalSvc.ListDecisions(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": decisions})
}

func (s *Server) GetApprovalChain(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	chain, err := s.approvalSvc.Chain(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": chain})
}
