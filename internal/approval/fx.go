package approval

import (
	"go.uber.org/fx"

	"github.com/openprocure/procura/internal/approval/repository"
	"github.com/openprocure/procura/internal/approval/service"
)

var Module = fx.Module("approval.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
