// Package domain defines the budget ledger contract.
package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Summary is the real-time budget position of a project. It is computed
// from live requisition rows on every read, never cached.
type Summary struct {
	ProjectID             snowflake.ID    `json:"project_id"`
	Budget                decimal.Decimal `json:"budget"`
	Spent                 decimal.Decimal `json:"spent"`
	Pending               decimal.Decimal `json:"pending"`
	UnderReview           decimal.Decimal `json:"under_review"`
	Available             decimal.Decimal `json:"available"`
	UtilizationPercentage decimal.Decimal `json:"utilization_percentage"`
}

type Service interface {
	GetSummary(ctx context.Context, projectID snowflake.ID) (*Summary, error)
}
