package audit

import (
	"go.uber.org/fx"

	"github.com/openprocure/procura/internal/audit/repository"
	"github.com/openprocure/procura/internal/audit/service"
)

var Module = fx.Module("audit.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
	fx.Provide(NewSweeper),
	fx.Invoke(runSweeper),
)
