package organization

import (
	"go.uber.org/fx"

	"github.com/openprocure/procura/internal/organization/repository"
	"github.com/openprocure/procura/internal/organization/service"
)

var Module = fx.Module("organization.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
