// Package domain defines the self-serve signup contract.
package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"

	orgdomain "github.com/openprocure/procura/internal/organization/domain"
)

type Service interface {
	// Signup provisions a new organization with its owner membership and a
	// default set of approval workflows, as one unit.
	Signup(ctx context.Context, req SignupRequest) (*orgdomain.Organization, error)
}

type SignupRequest struct {
	OrganizationName string
	Plan             string
	OwnerUserID      snowflake.ID
}

var (
	ErrRateLimited  = errors.New("signup_rate_limited")
	ErrInvalidOwner = errors.New("invalid_owner")
)
