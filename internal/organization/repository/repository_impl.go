package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/openprocure/procura/internal/organization/domain"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Create(ctx context.Context, db *gorm.DB, org *domain.Organization) error {
	return db.WithContext(ctx).Create(org).Error
}

func (r *repo) GetByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Organization, error) {
	var org domain.Organization
	err := db.WithContext(ctx).Where("id = ?", id).First(&org).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &org, nil
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status domain.Status) error {
	result := db.WithContext(ctx).Model(&domain.Organization{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     status,
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *repo) AddMember(ctx context.Context, db *gorm.DB, member *domain.OrganizationMember) error {
	return db.WithContext(ctx).Create(member).Error
}

func (r *repo) MemberRole(ctx context.Context, db *gorm.DB, orgID, userID snowflake.ID) (string, error) {
	var member domain.OrganizationMember
	err := db.WithContext(ctx).
		Where("org_id = ? AND user_id = ?", orgID, userID).
		First(&member).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", domain.ErrNotMember
		}
		return "", err
	}
	return member.Role, nil
}

func (r *repo) CountMembers(ctx context.Context, db *gorm.DB, orgID snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Model(&domain.OrganizationMember{}).
		Where("org_id = ?", orgID).
		Count(&count).Error
	return count, err
}

func (r *repo) CountRequisitionsSince(ctx context.Context, db *gorm.DB, orgID snowflake.ID, since time.Time) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Table("requisitions").
		Where("org_id = ? AND created_at >= ?", orgID, since.UTC()).
		Count(&count).Error
	return count, err
}
