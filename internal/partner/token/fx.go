package token

import (
	"github.com/redis/go-redis/v9"
	"github.com/smallbiznis/orderbridge/internal/clock"
	"github.com/smallbiznis/orderbridge/internal/config"
	"github.com/smallbiznis/orderbridge/internal/partner/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("partner.token",
	fx.Provide(NewStore),
	fx.Provide(New),
	fx.Provide(func(m *Manager) domain.TokenProvider { return m }),
)

type StoreParams struct {
	fx.In

	Config config.Config
	Clock  clock.Clock
	Redis  redis.UniversalClient `optional:"true"`
	Log    *zap.Logger
}

// NewStore selects the token cache backend; redis is used only when
// configured and a client is available.
func NewStore(p StoreParams) Store {
	if p.Config.Partner.TokenStore == config.TokenStoreRedis {
		if p.Redis != nil {
			return NewRedisStore(p.Redis, p.Clock.Now)
		}
		p.Log.Warn("partner.token.redis_unavailable", zap.String("fallback", config.TokenStoreMemory))
	}
	return NewMemoryStore()
}
