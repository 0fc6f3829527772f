package partner

import (
	"github.com/smallbiznis/orderbridge/internal/partner/client"
	"github.com/smallbiznis/orderbridge/internal/partner/token"
	"go.uber.org/fx"
)

var Module = fx.Module("partner",
	fx.Provide(client.New),
	token.Module,
)
