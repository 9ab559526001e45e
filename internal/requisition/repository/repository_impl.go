package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/openprocure/procura/internal/requisition/domain"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Create(ctx context.Context, db *gorm.DB, requisition *domain.Requisition) error {
	return db.WithContext(ctx).Create(requisition).Error
}

func (r *repo) GetByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Requisition, error) {
	var requisition domain.Requisition
	err := db.WithContext(ctx).Where("id = ?", id).First(&requisition).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &requisition, nil
}

// GetByIDForUpdate takes the requisition row lock, so two transactions
// evaluating chain completion for the same requisition serialize instead
// of both counting a stale approval tally. Locking reads only exist on
// postgres; sqlite serializes writers on its own.
func (r *repo) GetByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Requisition, error) {
	stmt := db.WithContext(ctx)
	if db.Dialector.Name() == "postgres" {
		stmt = stmt.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var requisition domain.Requisition
	err := stmt.Where("id = ?", id).First(&requisition).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &requisition, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, status string) ([]domain.Requisition, error) {
	stmt := db.WithContext(ctx).Where("org_id = ?", orgID)
	if status = strings.TrimSpace(status); status != "" {
		stmt = stmt.Where("status = ?", status)
	}

	var requisitions []domain.Requisition
	err := stmt.Order("created_at desc").Find(&requisitions).Error
	return requisitions, err
}

func (r *repo) ListItems(ctx context.Context, db *gorm.DB, requisitionID snowflake.ID) ([]domain.RequisitionItem, error) {
	var items []domain.RequisitionItem
	err := db.WithContext(ctx).
		Where("requisition_id = ?", requisitionID).
		Order("created_at asc, id asc").
		Find(&items).Error
	return items, err
}

func (r *repo) GetItem(ctx context.Context, db *gorm.DB, requisitionID, itemID snowflake.ID) (*domain.RequisitionItem, error) {
	var item domain.RequisitionItem
	err := db.WithContext(ctx).
		Where("id = ? AND requisition_id = ?", itemID, requisitionID).
		First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrItemNotFound
		}
		return nil, err
	}
	return &item, nil
}

func (r *repo) InsertItem(ctx context.Context, db *gorm.DB, item *domain.RequisitionItem) error {
	return db.WithContext(ctx).Create(item).Error
}

func (r *repo) UpdateItem(ctx context.Context, db *gorm.DB, item *domain.RequisitionItem) error {
	return db.WithContext(ctx).Model(&domain.RequisitionItem{}).
		Where("id = ? AND requisition_id = ?", item.ID, item.RequisitionID).
		Updates(map[string]any{
			"expense_account_id": item.ExpenseAccountID,
			"description":        item.Description,
			"quantity":           item.Quantity,
			"unit_price":         item.UnitPrice,
			"total_price":        item.TotalPrice,
		}).Error
}

func (r *repo) DeleteItem(ctx context.Context, db *gorm.DB, requisitionID, itemID snowflake.ID) error {
	result := db.WithContext(ctx).
		Where("id = ? AND requisition_id = ?", itemID, requisitionID).
		Delete(&domain.RequisitionItem{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrItemNotFound
	}
	return nil
}

func (r *repo) RecomputeTotal(ctx context.Context, db *gorm.DB, requisitionID snowflake.ID, at time.Time) (decimal.Decimal, error) {
	var raw string
	err := db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(total_price), 0) FROM requisition_items WHERE requisition_id = ?`,
		requisitionID,
	).Scan(&raw).Error
	if err != nil {
		return decimal.Zero, err
	}

	total, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, err
	}

	err = db.WithContext(ctx).Model(&domain.Requisition{}).
		Where("id = ?", requisitionID).
		Updates(map[string]any{
			"total_amount": total,
			"updated_at":   at.UTC(),
		}).Error
	if err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

// TransitionStatus guards against concurrent writers with a compare-and-swap
// on the status column, so chain-completion evaluation never races.
func (r *repo) TransitionStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from, to domain.Status, at time.Time, updates map[string]any) error {
	values := map[string]any{
		"status":     to,
		"updated_at": at.UTC(),
	}
	for key, value := range updates {
		values[key] = value
	}

	result := db.WithContext(ctx).Model(&domain.Requisition{}).
		Where("id = ? AND status = ?", id, from).
		Updates(values)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrConcurrentUpdate
	}
	return nil
}
