// Package authorization maps org roles to capabilities through a casbin
// RBAC model with one domain per organization.
package authorization

import (
	"context"
	"errors"
)

type Service interface {
	// Authorize verifies the actor may perform action on object within the
	// org. Denials are audited; the error never names another tenant.
	Authorize(ctx context.Context, actor, orgID, object, action string) error
}

var (
	ErrInvalidActor        = errors.New("invalid_actor")
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidObject       = errors.New("invalid_object")
	ErrInvalidAction       = errors.New("invalid_action")
	ErrForbidden           = errors.New("forbidden")
)
