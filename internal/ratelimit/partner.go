package ratelimit

import (
	"context"
	"fmt"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/orderbridge/internal/config"
	"go.uber.org/zap"
)

const keyPartnerMerchant = "orderbridge:partner:ratelimit:%s"

// PartnerLimiter throttles partner API calls per merchant across replicas.
// A nil limiter allows everything.
type PartnerLimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int
	log    *zap.Logger
}

func NewPartnerLimiter(client redis.UniversalClient, cfg config.Config, log *zap.Logger) *PartnerLimiter {
	if client == nil || cfg.Partner.RateLimit <= 0 || cfg.Partner.RateBurst <= 0 {
		return nil
	}
	return &PartnerLimiter{
		bucket: NewTokenBucket(client),
		rate:   cfg.Partner.RateLimit,
		burst:  cfg.Partner.RateBurst,
		log:    log.Named("ratelimit.partner"),
	}
}

// Allow reports whether merchantID may be polled now. Redis failures fail open.
func (l *PartnerLimiter) Allow(ctx context.Context, merchantID string) bool {
	if l == nil {
		return true
	}
	res, err := l.bucket.Allow(ctx, fmt.Sprintf(keyPartnerMerchant, merchantID), l.rate, l.burst)
	if err != nil {
		l.log.Warn("ratelimit.partner.check_failed", zap.String("merchant_id", merchantID), zap.Error(err))
		return true
	}
	if !res.Allowed {
		l.log.Info("ratelimit.partner.throttled",
			zap.String("merchant_id", merchantID),
			zap.Duration("retry_after", res.RetryAfter),
		)
	}
	return res.Allowed
}
