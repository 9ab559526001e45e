package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	signupdomain "github.com/openprocure/procura/internal/signup/domain"
)

type signupRequest struct {
	OrganizationName string `json:"organization_name"`
	Plan             string `json:"plan"`
}

func (s *Server) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	org, err := s.signupSvc.Signup(c.Request.Context(), signupdomain.SignupRequest{
		OrganizationName: req.OrganizationName,
		Plan:             req.Plan,
		OwnerUserID:      currentUserID(c),
	})
	if err != nil {
		if errors.Is(err, signupdomain.ErrRateLimited) {
			s.obsMetrics.RecordSignupRateLimited()
		}
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": org})
}
