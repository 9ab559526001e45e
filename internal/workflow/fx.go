package workflow

import (
	"go.uber.org/fx"

	"github.com/openprocure/procura/internal/workflow/service"
)

var Module = fx.Module("workflow.service",
	fx.Provide(service.NewService),
)
