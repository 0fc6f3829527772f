package eventledger

import (
	"github.com/smallbiznis/orderbridge/internal/eventledger/repository"
	"github.com/smallbiznis/orderbridge/internal/eventledger/service"
	"go.uber.org/fx"
)

var Module = fx.Module("eventledger.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
