package statushook

import (
	"github.com/smallbiznis/orderbridge/internal/statushook/service"
	"go.uber.org/fx"
)

var Module = fx.Module("statushook.service",
	fx.Provide(service.New),
)
