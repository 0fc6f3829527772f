package push

import (
	"context"
	"fmt"

	"github.com/smallbiznis/orderbridge/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("providers.push",
	fx.Provide(NewFromConfig),
)

func NewFromConfig(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (Provider, error) {
	switch cfg.Push.Driver {
	case "", config.PushDriverNoop:
		log.Info("push.driver", zap.String("driver", config.PushDriverNoop))
		return &NoOpProvider{}, nil
	case config.PushDriverAMQP:
		p, err := NewAMQP(AMQPConfig{
			URL:         cfg.Push.AMQPURL,
			Exchange:    cfg.Push.Exchange,
			RoutingKey:  cfg.Push.RoutingKey,
			PublishWait: cfg.Push.PublishWait,
		}, log)
		if err != nil {
			return nil, err
		}
		lc.Append(fx.Hook{
			OnStop: func(context.Context) error {
				return p.Close()
			},
		})
		log.Info("push.driver", zap.String("driver", config.PushDriverAMQP), zap.String("exchange", cfg.Push.Exchange))
		return p, nil
	default:
		return nil, fmt.Errorf("unknown push driver %q", cfg.Push.Driver)
	}
}
