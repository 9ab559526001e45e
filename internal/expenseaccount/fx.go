package expenseaccount

import (
	"go.uber.org/fx"

	"github.com/openprocure/procura/internal/expenseaccount/service"
)

var Module = fx.Module("expenseaccount.service",
	fx.Provide(service.NewService),
)
