package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type createExpenseAccountRequest struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

func (s *Server) CreateExpenseAccount(c *gin.Context) {
	var req createExpenseAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	account, err := s.expenseAccountSvc.Create(c.Request.Context(), req.Code, req.Name)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": account})
}

func (s *Server) ListExpenseAccounts(c *gin.Context) {
	accounts, err := s.expenseAccountSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": accounts})
}

func (s *Server) GetExpenseAccountByID(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	account, err := s.expenseAccountSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": account})
}
