package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/smallbiznis/orderbridge/internal/cache"
	"github.com/smallbiznis/orderbridge/internal/clock"
	"github.com/smallbiznis/orderbridge/internal/settings/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	dispatchCacheKey = "dispatch"
	dispatchCacheTTL = 30 * time.Second
)

var dispatchKeys = []string{
	domain.KeyDriverSearchRadius,
	domain.KeyDriverAcceptanceTimeout,
	domain.KeyAdminCommissionPercentage,
	domain.KeyCurrency,
}

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock
	repo  domain.Repository
	cache cache.Cache[string, domain.Dispatch]
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("settings.service"),
		clock: p.Clock,
		repo:  p.Repo,
		cache: cache.NewTTLCacheWithClock[string, domain.Dispatch](p.Clock.Now),
	}
}

func (s *Service) Dispatch(ctx context.Context) (domain.Dispatch, error) {
	if cached, ok := s.cache.Get(dispatchCacheKey); ok {
		return cached, nil
	}

	values, err := s.repo.GetMany(ctx, s.db, dispatchKeys)
	if err != nil {
		return domain.Dispatch{}, err
	}

	out := domain.DefaultDispatch()
	if v, ok := s.positiveFloat(values, domain.KeyDriverSearchRadius); ok {
		out.SearchRadiusKm = v
	}
	if v, ok := s.positiveFloat(values, domain.KeyDriverAcceptanceTimeout); ok {
		out.AcceptanceTimeout = time.Duration(v * float64(time.Second))
	}
	if v, ok := s.percentage(values, domain.KeyAdminCommissionPercentage); ok {
		out.CommissionPercentage = v
	}
	if v := strings.TrimSpace(values[domain.KeyCurrency]); v != "" {
		out.Currency = strings.ToUpper(v)
	}

	s.cache.Set(dispatchCacheKey, out, dispatchCacheTTL)
	return out, nil
}

func (s *Service) Set(ctx context.Context, key, value string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return domain.ErrInvalidKey
	}
	err := s.repo.Upsert(ctx, s.db, &domain.Setting{
		Key:       key,
		Value:     strings.TrimSpace(value),
		UpdatedAt: s.clock.Now(),
	})
	if err != nil {
		return err
	}
	s.cache.Delete(dispatchCacheKey)
	return nil
}

func (s *Service) positiveFloat(values map[string]string, key string) (float64, bool) {
	raw, ok := values[key]
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || v <= 0 {
		s.log.Warn("settings.value.invalid", zap.String("key", key), zap.String("value", raw))
		return 0, false
	}
	return v, true
}

func (s *Service) percentage(values map[string]string, key string) (float64, bool) {
	raw, ok := values[key]
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || v < 0 || v > 100 {
		s.log.Warn("settings.value.invalid", zap.String("key", key), zap.String("value", raw))
		return 0, false
	}
	return v, true
}
