package audit

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	auditdomain "github.com/openprocure/procura/internal/audit/domain"
	"github.com/openprocure/procura/internal/auditcontext"
	"github.com/openprocure/procura/internal/clock"
	"github.com/openprocure/procura/internal/config"
)

const sweepInterval = time.Hour

type SweeperParams struct {
	fx.In

	Log      *zap.Logger
	Clock    clock.Clock
	Cfg      config.Config
	AuditSvc auditdomain.Service
}

// Sweeper purges audit events past the retention window. Critical events
// are exempt; the purge itself enforces that.
type Sweeper struct {
	log           *zap.Logger
	clock         clock.Clock
	retentionDays int
	auditSvc      auditdomain.Service
}

func NewSweeper(p SweeperParams) *Sweeper {
	return &Sweeper{
		log:           p.Log.Named("audit.retention"),
		clock:         p.Clock,
		retentionDays: p.Cfg.AuditRetentionDays,
		auditSvc:      p.AuditSvc,
	}
}

func (s *Sweeper) RunForever(ctx context.Context) {
	if s.retentionDays <= 0 {
		s.log.Info("audit retention sweep disabled")
		return
	}

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	s.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	ctx = auditcontext.WithActor(ctx, "system", "retention")
	cutoff := s.clock.Now().AddDate(0, 0, -s.retentionDays)

	purged, err := s.auditSvc.PurgeExpired(ctx, cutoff)
	if err != nil {
		s.log.Error("audit retention sweep failed", zap.Error(err))
		return
	}
	if purged > 0 {
		s.log.Info("audit retention sweep",
			zap.Int64("purged", purged),
			zap.Time("cutoff", cutoff),
		)
	}
}

func runSweeper(lc fx.Lifecycle, sweeper *Sweeper) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ctx, cancel := context.WithCancel(context.Background())

			go sweeper.RunForever(ctx)

			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					cancel()
					return nil
				},
			})

			return nil
		},
	})
}
