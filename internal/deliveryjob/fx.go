package deliveryjob

import (
	"github.com/smallbiznis/orderbridge/internal/deliveryjob/repository"
	"github.com/smallbiznis/orderbridge/internal/deliveryjob/service"
	"go.uber.org/fx"
)

var Module = fx.Module("deliveryjob.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
