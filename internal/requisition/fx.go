package requisition

import (
	"go.uber.org/fx"

	"github.com/openprocure/procura/internal/requisition/repository"
	"github.com/openprocure/procura/internal/requisition/service"
)

var Module = fx.Module("requisition.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
