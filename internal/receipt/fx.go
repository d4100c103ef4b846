package receipt

import (
	"github.com/smallbiznis/feeledger/internal/receipt/render"
	"github.com/smallbiznis/feeledger/internal/receipt/service"
	"github.com/smallbiznis/feeledger/internal/receipt/store"
	"go.uber.org/fx"
)

var Module = fx.Module("receipt.service",
	fx.Provide(store.New),
	fx.Provide(render.NewPDFRenderer),
	fx.Provide(service.New),
)
