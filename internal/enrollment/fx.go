package enrollment

import (
	"github.com/smallbiznis/feeledger/internal/enrollment/repository"
	"github.com/smallbiznis/feeledger/internal/enrollment/service"
	"go.uber.org/fx"
)

var Module = fx.Module("enrollment.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
