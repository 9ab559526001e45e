package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/openprocure/procura/internal/approval/domain"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) GetByApprover(ctx context.Context, db *gorm.DB, requisitionID, approverID snowflake.ID) (*domain.ApprovalDecision, error) {
	var decision domain.ApprovalDecision
	err := db.WithContext(ctx).
		Where("requisition_id = ? AND approver_id = ?", requisitionID, approverID).
		First(&decision).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrDecisionNotFound
		}
		return nil, err
	}
	return &decision, nil
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, decision *domain.ApprovalDecision) error {
	return db.WithContext(ctx).Create(decision).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, decision *domain.ApprovalDecision) error {
	return db.WithContext(ctx).Model(&domain.ApprovalDecision{}).
		Where("id = ?", decision.ID).
		Updates(map[string]any{
			"decision":   decision.Decision,
			"comment":    decision.Comment,
			"updated_at": decision.UpdatedAt,
		}).Error
}

func (r *repo) ListByRequisition(ctx context.Context, db *gorm.DB, requisitionID snowflake.ID) ([]domain.ApprovalDecision, error) {
	var decisions []domain.ApprovalDecision
	err := db.WithContext(ctx).
		Where("requisition_id = ?", requisitionID).
		Order("created_at asc, id asc").
		Find(&decisions).Error
	return decisions, err
}

func (r *repo) CountByDecision(ctx context.Context, db *gorm.DB, requisitionID snowflake.ID, decision string) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Model(&domain.ApprovalDecision{}).
		Where("requisition_id = ? AND decision = ?", requisitionID, decision).
		Count(&count).Error
	return count, err
}
