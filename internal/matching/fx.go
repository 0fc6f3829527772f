package matching

import (
	"github.com/smallbiznis/orderbridge/internal/matching/repository"
	"github.com/smallbiznis/orderbridge/internal/matching/service"
	"go.uber.org/fx"
)

var Module = fx.Module("matching.service",
	fx.Provide(repository.ProvideLocations),
	fx.Provide(repository.ProvideAllocations),
	fx.Provide(service.New),
)
