package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, db *gorm.DB, org *Organization) error
	GetByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Organization, error)
	UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status Status) error
	AddMember(ctx context.Context, db *gorm.DB, member *OrganizationMember) error
	MemberRole(ctx context.Context, db *gorm.DB, orgID, userID snowflake.ID) (string, error)
	CountMembers(ctx context.Context, db *gorm.DB, orgID snowflake.ID) (int64, error)
	CountRequisitionsSince(ctx context.Context, db *gorm.DB, orgID snowflake.ID, since time.Time) (int64, error)
}
