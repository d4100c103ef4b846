package feeplan

import (
	"github.com/smallbiznis/feeledger/internal/feeplan/repository"
	"github.com/smallbiznis/feeledger/internal/feeplan/service"
	"go.uber.org/fx"
)

var Module = fx.Module("feeplan.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
