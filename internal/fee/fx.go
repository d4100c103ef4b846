package fee

import (
	"github.com/smallbiznis/feeledger/internal/fee/repository"
	"github.com/smallbiznis/feeledger/internal/fee/service"
	"go.uber.org/fx"
)

var Module = fx.Module("fee.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
