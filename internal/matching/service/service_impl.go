package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/orderbridge/internal/clock"
	"github.com/smallbiznis/orderbridge/internal/matching/domain"
	"github.com/smallbiznis/orderbridge/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	Clock       clock.Clock
	Locations   domain.WorkerLocationRepository
	Allocations domain.AllocationRepository
	Metrics     *metrics.WorkerMetrics `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	clock       clock.Clock
	locations   domain.WorkerLocationRepository
	allocations domain.AllocationRepository
	metrics     *metrics.WorkerMetrics
}

func New(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("matching.service"),
		clock:       p.Clock,
		locations:   p.Locations,
		allocations: p.Allocations,
		metrics:     p.Metrics,
	}
}

func (s *Service) FindCandidates(ctx context.Context, companyID snowflake.ID, lat, lng, radiusKm float64) ([]domain.Candidate, error) {
	if radiusKm <= 0 {
		return nil, domain.ErrInvalidRadius
	}

	nearby, err := s.locations.FindWithinRadius(ctx, s.db, lat, lng, radiusKm)
	if err != nil {
		return nil, err
	}
	if len(nearby) == 0 {
		s.metrics.ObserveCandidates(0)
		return nil, nil
	}

	now := s.clock.Now()
	own, err := s.allocations.ListByCompany(ctx, s.db, companyID)
	if err != nil {
		return nil, err
	}
	allocated := make(map[snowflake.ID]struct{})
	for _, a := range own {
		if a.ActiveAt(now) {
			allocated[a.DriverID] = struct{}{}
		}
	}

	var out []domain.Candidate
	if len(allocated) > 0 {
		for _, c := range nearby {
			if _, ok := allocated[c.DriverID]; ok {
				out = append(out, c)
			}
		}
		s.log.Debug("matching.allocated_only",
			zap.String("company_id", companyID.String()),
			zap.Int("allocated", len(allocated)),
			zap.Int("nearby", len(nearby)),
			zap.Int("candidates", len(out)),
		)
	} else {
		taken, err := s.allocatedElsewhere(ctx, companyID, nearby, now)
		if err != nil {
			return nil, err
		}
		for _, c := range nearby {
			if _, ok := taken[c.DriverID]; !ok {
				out = append(out, c)
			}
		}
	}

	s.metrics.ObserveCandidates(len(out))
	return out, nil
}

// allocatedElsewhere returns the drivers among candidates that hold an active
// allocation for a company other than companyID.
func (s *Service) allocatedElsewhere(ctx context.Context, companyID snowflake.ID, candidates []domain.Candidate, now time.Time) (map[snowflake.ID]struct{}, error) {
	ids := make([]snowflake.ID, 0, len(candidates))
	for _, c := range candidates {
		ids = append(ids, c.DriverID)
	}
	allocations, err := s.allocations.ListByDrivers(ctx, s.db, ids)
	if err != nil {
		return nil, err
	}
	taken := make(map[snowflake.ID]struct{})
	for _, a := range allocations {
		if a.CompanyID != companyID && a.ActiveAt(now) {
			taken[a.DriverID] = struct{}{}
		}
	}
	return taken, nil
}
