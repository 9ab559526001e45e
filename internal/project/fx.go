package project

import (
	"go.uber.org/fx"

	"github.com/openprocure/procura/internal/project/service"
)

var Module = fx.Module("project.service",
	fx.Provide(service.NewService),
)
