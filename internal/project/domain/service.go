package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type Service interface {
	Create(ctx context.Context, req CreateProjectRequest) (*Project, error)
	GetByID(ctx context.Context, id snowflake.ID) (*Project, error)
	List(ctx context.Context) ([]Project, error)
	SetActive(ctx context.Context, id snowflake.ID, active bool) error
}

type CreateProjectRequest struct {
	Name   string
	Budget decimal.Decimal
}

var (
	ErrInvalidName    = errors.New("invalid_name")
	ErrInvalidBudget  = errors.New("invalid_budget")
	ErrNotFound       = errors.New("project_not_found")
	ErrProjectQuota   = errors.New("project_quota_reached")
	ErrProjectClosed  = errors.New("project_inactive")
	ErrInvalidProject = errors.New("invalid_project")
)
