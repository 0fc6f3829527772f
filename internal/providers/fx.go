package providers

import (
	"github.com/smallbiznis/orderbridge/internal/providers/push"
	"go.uber.org/fx"
)

var Module = fx.Module("providers",
	push.Module,
)
