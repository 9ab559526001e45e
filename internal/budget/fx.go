package budget

import (
	"go.uber.org/fx"

	"github.com/openprocure/procura/internal/budget/service"
)

var Module = fx.Module("budget.service",
	fx.Provide(service.NewService),
)
