package rls

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// WithTenant pins the current transaction to one organization for
// row-level-security policies. This is the storage-side layer of the
// tenant isolation check; the services perform their own check as well.
func WithTenant(tx *gorm.DB, tenantID int64) error {
	return tx.Exec(
		"SET LOCAL app.current_org_id = ?",
		fmt.Sprintf("%d", tenantID),
	).Error
}

// Transaction runs fn inside a transaction pinned to tenantID. Session
// variables only exist on postgres; other dialects run the transaction
// without the storage-side policy.
func Transaction(ctx context.Context, db *gorm.DB, tenantID int64, fn func(tx *gorm.DB) error) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if tx.Dialector.Name() == "postgres" {
			if err := WithTenant(tx, tenantID); err != nil {
				return err
			}
		}
		return fn(tx)
	})
}
