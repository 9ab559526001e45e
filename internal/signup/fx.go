package signup

import (
	"go.uber.org/fx"

	"github.com/openprocure/procura/internal/signup/service"
)

var Module = fx.Module("signup.service",
	fx.Provide(service.NewService),
)
