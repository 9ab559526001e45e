// Package tenant enforces organization isolation for every core operation.
// The check runs at the point of mutation, in addition to any row-level
// security policy the storage engine applies.
package tenant

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"

	auditdomain "github.com/openprocure/procura/internal/audit/domain"
	obsmetrics "github.com/openprocure/procura/internal/observability/metrics"
	"github.com/openprocure/procura/internal/orgcontext"
)

var (
	// ErrNoOrganizationSelected is returned when the context carries no
	// org scope. Resolution fails closed; there is no default tenant.
	ErrNoOrganizationSelected = errors.New("no_organization_selected")

	// ErrAccessDenied is the generic error surfaced on a cross-tenant
	// access attempt. It never carries the other tenant's identifier.
	ErrAccessDenied = errors.New("access_denied")
)

type Params struct {
	fx.In

	Log      *zap.Logger
	AuditSvc auditdomain.Service
	Metrics  *obsmetrics.Metrics `optional:"true"`
}

// Guard resolves the caller's org scope and verifies resource ownership.
type Guard struct {
	log      *zap.Logger
	auditSvc auditdomain.Service
	metrics  *obsmetrics.Metrics
}

func NewGuard(p Params) *Guard {
	return &Guard{
		log:      p.Log.Named("tenant.guard"),
		auditSvc: p.AuditSvc,
		metrics:  p.Metrics,
	}
}

// CurrentOrgID returns the org scope of the acting principal.
func (g *Guard) CurrentOrgID(ctx context.Context) (snowflake.ID, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return 0, ErrNoOrganizationSelected
	}
	return orgID, nil
}

// Authorize verifies that the resource belongs to the caller's organization.
// On a mismatch it records exactly one critical audit event naming the
// target org, then fails with the generic ErrAccessDenied. The audit write
// must land before the denial is returned; a failed write fails the whole
// operation so the evidence is never lost silently.
func (g *Guard) Authorize(ctx context.Context, resourceOrgID snowflake.ID, resourceType, resourceID string) error {
	actorOrgID, err := g.CurrentOrgID(ctx)
	if err != nil {
		return err
	}

	if actorOrgID == resourceOrgID {
		return nil
	}

	g.log.Warn("cross-tenant access attempt",
		zap.String("actor_org_id", actorOrgID.String()),
		zap.String("resource_type", resourceType),
	)

	target := resourceOrgID
	resource := resourceID
	entry := auditdomain.Entry{
		OrgID:        &actorOrgID,
		EventType:    auditdomain.EventIsolationViolation,
		Severity:     auditdomain.SeverityCritical,
		TargetOrgID:  &target,
		ResourceType: resourceType,
		ResourceID:   &resource,
	}
	if auditErr := g.auditSvc.Record(ctx, entry); auditErr != nil {
		return fmt.Errorf("record isolation violation: %w", auditErr)
	}

	g.metrics.RecordIsolationViolation()
	return ErrAccessDenied
}

var Module = fx.Module("tenant.guard",
	fx.Provide(NewGuard),
)
