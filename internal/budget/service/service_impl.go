package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/openprocure/procura/internal/budget/domain"
	projectdomain "github.com/openprocure/procura/internal/project/domain"
	reqdomain "github.com/openprocure/procura/internal/requisition/domain"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	ProjectSvc projectdomain.Service
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	projectSvc projectdomain.Service
}

func NewService(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("budget.service"),
		projectSvc: p.ProjectSvc,
	}
}

type statusAmountRow struct {
	Status      reqdomain.Status
	TotalAmount decimal.Decimal
}

// GetSummary recomputes the ledger from live rows. Status and total_amount
// come from the same SELECT so a requisition mid-transition is never
// counted against two buckets.
func (s *Service) GetSummary(ctx context.Context, projectID snowflake.ID) (*domain.Summary, error) {
	project, err := s.projectSvc.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}

	var rows []statusAmountRow
	err = s.db.WithContext(ctx).
		Table("requisitions").
		Select("status, total_amount").
		Where("org_id = ? AND project_id = ?", project.OrgID, project.ID).
		Where("status IN ?", []reqdomain.Status{
			reqdomain.StatusPending,
			reqdomain.StatusReviewed,
			reqdomain.StatusUnderReview,
			reqdomain.StatusApproved,
			reqdomain.StatusPartiallyReceived,
			reqdomain.StatusCompleted,
		}).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	summary := &domain.Summary{
		ProjectID:   project.ID,
		Budget:      project.Budget,
		Spent:       decimal.Zero,
		Pending:     decimal.Zero,
		UnderReview: decimal.Zero,
	}
	for _, row := range rows {
		switch row.Status {
		case reqdomain.StatusApproved, reqdomain.StatusPartiallyReceived, reqdomain.StatusCompleted:
			summary.Spent = summary.Spent.Add(row.TotalAmount)
		case reqdomain.StatusPending, reqdomain.StatusReviewed:
			summary.Pending = summary.Pending.Add(row.TotalAmount)
		case reqdomain.StatusUnderReview:
			summary.UnderReview = summary.UnderReview.Add(row.TotalAmount)
		}
	}

	committed := summary.Spent.Add(summary.Pending).Add(summary.UnderReview)
	summary.Available = project.Budget.Sub(committed)
	if project.Budget.IsZero() {
		summary.UtilizationPercentage = decimal.Zero
	} else {
		summary.UtilizationPercentage = committed.
			Div(project.Budget).
			Mul(decimal.NewFromInt(100)).
			Round(2)
	}
	return summary, nil
}
