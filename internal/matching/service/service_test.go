package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/orderbridge/internal/clock"
	"github.com/smallbiznis/orderbridge/internal/matching/domain"
	"github.com/smallbiznis/orderbridge/internal/matching/repository"
	"github.com/smallbiznis/orderbridge/pkg/geo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	pickup = geo.Point{Lat: -23.5613, Lng: -46.6565}
	now    = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
)

const (
	companyC snowflake.ID = 100
	companyD snowflake.ID = 200
)

type fixture struct {
	db  *gorm.DB
	svc domain.Service
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Driver{}, &domain.Location{}, &domain.Allocation{}))

	svc := New(Params{
		DB:          db,
		Log:         zap.NewNop(),
		Clock:       clock.NewFakeClock(now),
		Locations:   repository.ProvideLocations(),
		Allocations: repository.ProvideAllocations(),
	})
	return &fixture{db: db, svc: svc}
}

func (f *fixture) driver(t *testing.T, id snowflake.ID, distanceKm float64, mutate ...func(*domain.Driver)) {
	t.Helper()
	d := domain.Driver{
		ID:          id,
		Name:        "driver-" + id.String(),
		IsActive:    true,
		IsApproved:  true,
		IsAvailable: true,
		DeviceToken: "token-" + id.String(),
	}
	for _, m := range mutate {
		m(&d)
	}
	require.NoError(t, f.db.Create(&d).Error)
	p := geo.OffsetNorth(pickup, distanceKm)
	require.NoError(t, f.db.Create(&domain.Location{
		DriverID:  id,
		Latitude:  p.Lat,
		Longitude: p.Lng,
		UpdatedAt: now,
	}).Error)
}

func (f *fixture) allocate(t *testing.T, id, driverID, companyID snowflake.ID, status string, startsAt, endsAt time.Time) {
	t.Helper()
	require.NoError(t, f.db.Create(&domain.Allocation{
		ID:        id,
		DriverID:  driverID,
		CompanyID: companyID,
		Status:    status,
		StartsAt:  startsAt,
		EndsAt:    endsAt,
	}).Error)
}

func ids(candidates []domain.Candidate) []snowflake.ID {
	out := make([]snowflake.ID, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, c.DriverID)
	}
	return out
}

func TestFindCandidates_RadiusFilterNearestFirst(t *testing.T) {
	f := setup(t)
	f.driver(t, 4, 10.1)
	f.driver(t, 3, 9.9)
	f.driver(t, 1, 2)
	f.driver(t, 2, 5)

	got, err := f.svc.FindCandidates(context.Background(), companyC, pickup.Lat, pickup.Lng, 10)
	require.NoError(t, err)
	assert.Equal(t, []snowflake.ID{1, 2, 3}, ids(got))
	assert.InDelta(t, 2.0, got[0].DistanceKm, 0.001)
	assert.InDelta(t, 9.9, got[2].DistanceKm, 0.001)
	assert.Equal(t, "token-1", got[0].DeviceToken)
}

func TestFindCandidates_SkipsIneligibleDrivers(t *testing.T) {
	f := setup(t)
	f.driver(t, 1, 1)
	f.driver(t, 2, 1, func(d *domain.Driver) { d.IsActive = false })
	f.driver(t, 3, 1, func(d *domain.Driver) { d.IsApproved = false })
	f.driver(t, 4, 1, func(d *domain.Driver) { d.IsAvailable = false })
	f.driver(t, 5, 1, func(d *domain.Driver) { d.OnTrip = true })
	f.driver(t, 6, 1, func(d *domain.Driver) { d.DeviceToken = "" })

	got, err := f.svc.FindCandidates(context.Background(), companyC, pickup.Lat, pickup.Lng, 10)
	require.NoError(t, err)
	assert.Equal(t, []snowflake.ID{1}, ids(got))
}

func TestFindCandidates_AllocatedDriversTakePrecedence(t *testing.T) {
	f := setup(t)
	f.driver(t, 1, 3)
	f.driver(t, 2, 1)
	f.allocate(t, 10, 1, companyC, domain.AllocationStatusActive, now.Add(-time.Hour), now.Add(time.Hour))

	got, err := f.svc.FindCandidates(context.Background(), companyC, pickup.Lat, pickup.Lng, 10)
	require.NoError(t, err)
	assert.Equal(t, []snowflake.ID{1}, ids(got))
}

func TestFindCandidates_AllocatedButOutOfRange(t *testing.T) {
	f := setup(t)
	f.driver(t, 1, 12)
	f.driver(t, 2, 1)
	f.allocate(t, 10, 1, companyC, domain.AllocationStatusActive, now.Add(-time.Hour), now.Add(time.Hour))

	got, err := f.svc.FindCandidates(context.Background(), companyC, pickup.Lat, pickup.Lng, 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFindCandidates_ExcludesDriversAllocatedElsewhere(t *testing.T) {
	f := setup(t)
	f.driver(t, 1, 1)
	f.driver(t, 2, 2)
	f.driver(t, 3, 3)
	f.allocate(t, 10, 3, companyD, domain.AllocationStatusActive, now.Add(-time.Hour), now.Add(time.Hour))

	got, err := f.svc.FindCandidates(context.Background(), companyC, pickup.Lat, pickup.Lng, 10)
	require.NoError(t, err)
	assert.Equal(t, []snowflake.ID{1, 2}, ids(got))
}

func TestFindCandidates_InactiveAllocationsAreIgnored(t *testing.T) {
	f := setup(t)
	f.driver(t, 1, 1)
	f.driver(t, 2, 2)
	f.driver(t, 3, 3)
	// Expired window for C, so C falls back to the open pool.
	f.allocate(t, 10, 1, companyC, domain.AllocationStatusActive, now.Add(-2*time.Hour), now.Add(-time.Hour))
	// Cancelled and future allocations for D do not exclude.
	f.allocate(t, 11, 2, companyD, "cancelled", now.Add(-time.Hour), now.Add(time.Hour))
	f.allocate(t, 12, 3, companyD, domain.AllocationStatusActive, now.Add(time.Hour), now.Add(2*time.Hour))

	got, err := f.svc.FindCandidates(context.Background(), companyC, pickup.Lat, pickup.Lng, 10)
	require.NoError(t, err)
	assert.Equal(t, []snowflake.ID{1, 2, 3}, ids(got))
}

func TestFindCandidates_WindowBoundsAreInclusive(t *testing.T) {
	f := setup(t)
	f.driver(t, 1, 1)
	f.driver(t, 2, 2)
	f.allocate(t, 10, 1, companyC, domain.AllocationStatusActive, now.Add(-time.Hour), now)

	got, err := f.svc.FindCandidates(context.Background(), companyC, pickup.Lat, pickup.Lng, 10)
	require.NoError(t, err)
	assert.Equal(t, []snowflake.ID{1}, ids(got))
}

func TestFindCandidates_DriverAllocatedToBothCompanies(t *testing.T) {
	f := setup(t)
	f.driver(t, 1, 1)
	f.driver(t, 2, 2)
	f.allocate(t, 10, 1, companyC, domain.AllocationStatusActive, now.Add(-time.Hour), now.Add(time.Hour))
	f.allocate(t, 11, 1, companyD, domain.AllocationStatusActive, now.Add(-time.Hour), now.Add(time.Hour))

	got, err := f.svc.FindCandidates(context.Background(), companyC, pickup.Lat, pickup.Lng, 10)
	require.NoError(t, err)
	assert.Equal(t, []snowflake.ID{1}, ids(got))

	got, err = f.svc.FindCandidates(context.Background(), companyD, pickup.Lat, pickup.Lng, 10)
	require.NoError(t, err)
	assert.Equal(t, []snowflake.ID{1}, ids(got))
}

func TestFindCandidates_InvalidRadius(t *testing.T) {
	f := setup(t)
	_, err := f.svc.FindCandidates(context.Background(), companyC, pickup.Lat, pickup.Lng, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidRadius)
}

func TestFindCandidates_AcrossAntimeridian(t *testing.T) {
	f := setup(t)
	fiji := geo.Point{Lat: -17.8, Lng: 179.99}
	place := func(id snowflake.ID, p geo.Point) {
		require.NoError(t, f.db.Create(&domain.Driver{
			ID:          id,
			Name:        "driver-" + id.String(),
			IsActive:    true,
			IsApproved:  true,
			IsAvailable: true,
			DeviceToken: "token-" + id.String(),
		}).Error)
		require.NoError(t, f.db.Create(&domain.Location{
			DriverID:  id,
			Latitude:  p.Lat,
			Longitude: p.Lng,
			UpdatedAt: now,
		}).Error)
	}
	place(1, geo.Point{Lat: -17.8, Lng: -179.99})
	place(2, geo.Point{Lat: -17.81, Lng: 179.98})
	place(3, geo.Point{Lat: -17.8, Lng: -179})

	got, err := f.svc.FindCandidates(context.Background(), companyC, fiji.Lat, fiji.Lng, 10)
	require.NoError(t, err)
	assert.ElementsMatch(t, []snowflake.ID{1, 2}, ids(got))
}
