// Package seed bootstraps a default organization for local and self-hosted
// setups.
package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	organizationdomain "github.com/openprocure/procura/internal/organization/domain"
	workflowdomain "github.com/openprocure/procura/internal/workflow/domain"
)

const (
	defaultOrgName = "Main"
	defaultOrgSlug = "main"
)

// EnsureMainOrg seeds the default organization for startup bootstrap.
func EnsureMainOrg(db *gorm.DB) error {
	return ensureMainOrg(db, 0)
}

// EnsureMainOrgWithID seeds the default organization under a fixed ID so
// multiple instances agree on the bootstrap tenant.
func EnsureMainOrgWithID(db *gorm.DB, id int64) error {
	return ensureMainOrg(db, snowflake.ID(id))
}

func ensureMainOrg(db *gorm.DB, id snowflake.ID) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		org, err := ensureMainOrgTx(ctx, tx, node, id)
		if err != nil {
			return err
		}
		return ensureDefaultWorkflowsTx(ctx, tx, node, org.ID)
	})
}

func ensureMainOrgTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node, id snowflake.ID) (organizationdomain.Organization, error) {
	var org organizationdomain.Organization
	err := tx.WithContext(ctx).Where("slug = ?", defaultOrgSlug).First(&org).Error
	if err == nil {
		return org, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return org, err
	}

	if id == 0 {
		id = node.Generate()
	}
	maxUsers, maxProjects, maxReqs := organizationdomain.PlanLimits(organizationdomain.PlanBusiness)
	now := time.Now().UTC()
	org = organizationdomain.Organization{
		ID:                      id,
		Name:                    defaultOrgName,
		Slug:                    defaultOrgSlug,
		Status:                  organizationdomain.StatusActive,
		Plan:                    organizationdomain.PlanBusiness,
		MaxUsers:                maxUsers,
		MaxProjects:             maxProjects,
		MaxRequisitionsPerMonth: maxReqs,
		Metadata:                datatypes.JSONMap{},
		CreatedAt:               now,
		UpdatedAt:               now,
	}
	if err := tx.WithContext(ctx).Create(&org).Error; err != nil {
		return org, err
	}
	return org, nil
}

func ensureDefaultWorkflowsTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node, orgID snowflake.ID) error {
	var count int64
	err := tx.WithContext(ctx).Model(&workflowdomain.ApprovalWorkflow{}).
		Where("org_id = ?", orgID).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	allRoles := []string{
		organizationdomain.RoleApprover,
		organizationdomain.RoleAdmin,
		organizationdomain.RoleOwner,
	}
	seniorRoles := []string{
		organizationdomain.RoleAdmin,
		organizationdomain.RoleOwner,
	}

	oneThousand := decimal.NewFromInt(1000)
	tenThousand := decimal.NewFromInt(10000)
	now := time.Now().UTC()
	workflows := []workflowdomain.ApprovalWorkflow{
		{
			ID:                     node.Generate(),
			OrgID:                  orgID,
			Name:                   "Small purchases",
			AmountThresholdMin:     decimal.Zero,
			AmountThresholdMax:     &oneThousand,
			RequiredApproversCount: 1,
			ApprovalRoles:          datatypes.NewJSONSlice(allRoles),
			Priority:               10,
			IsActive:               true,
			CreatedAt:              now,
		},
		{
			ID:                     node.Generate(),
			OrgID:                  orgID,
			Name:                   "Standard purchases",
			AmountThresholdMin:     decimal.Zero,
			AmountThresholdMax:     &tenThousand,
			RequiredApproversCount: 2,
			ApprovalRoles:          datatypes.NewJSONSlice(allRoles),
			Priority:               20,
			IsActive:               true,
			CreatedAt:              now,
		},
		{
			ID:                     node.Generate(),
			OrgID:                  orgID,
			Name:                   "Large purchases",
			AmountThresholdMin:     decimal.Zero,
			RequiredApproversCount: 3,
			ApprovalRoles:          datatypes.NewJSONSlice(seniorRoles),
			Priority:               30,
			IsActive:               true,
			CreatedAt:              now,
		},
	}
	for i := range workflows {
		if err := tx.WithContext(ctx).Create(&workflows[i]).Error; err != nil {
			return err
		}
	}
	return nil
}
