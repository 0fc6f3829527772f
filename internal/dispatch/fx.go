package dispatch

import (
	"github.com/smallbiznis/orderbridge/internal/dispatch/repository"
	"github.com/smallbiznis/orderbridge/internal/dispatch/service"
	"go.uber.org/fx"
)

var Module = fx.Module("dispatch.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
