package server

import (
	"context"
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

func (s *Server) GetOrganization(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	org, err := s.organizationSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": org})
}

type addMemberRequest struct {
	UserID snowflake.ID `json:"user_id"`
	Role   string       `json:"role"`
}

func (s *Server) AddOrganizationMember(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req addMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	if err := s.organizationSvc.AddMember(c.Request.Context(), id, req.UserID, req.Role); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": gin.H{"user_id": req.UserID, "role": req.Role}})
}

func (s *Server) SuspendOrganization(c *gin.Context) {
	s.changeOrganizationStatus(c, s.organizationSvc.Suspend)
}

func (s *Server) ResumeOrganization(c *gin.Context) {
	s.changeOrganizationStatus(c, s.organizationSvc.Resume)
}

func (s *Server) CancelOrganization(c *gin.Context) {
	s.changeOrganizationStatus(c, s.organizationSvc.Cancel)
}

func (s *Server) changeOrganizationStatus(c *gin.Context, change func(ctx context.Context, id snowflake.ID) error) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := change(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	org, err := s.organizationSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": org})
}
