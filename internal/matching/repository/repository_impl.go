package repository

import (
	"context"
	"sort"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/orderbridge/internal/matching/domain"
	"github.com/smallbiznis/orderbridge/pkg/geo"
	"gorm.io/gorm"
)

type repo struct{}

func ProvideLocations() domain.WorkerLocationRepository {
	return &repo{}
}

func ProvideAllocations() domain.AllocationRepository {
	return &repo{}
}

type locationRow struct {
	DriverID    snowflake.ID
	Name        string
	DeviceToken string
	Latitude    float64
	Longitude   float64
}

// FindWithinRadius narrows by bounding box in SQL and applies the exact
// haversine distance in Go. A box across the antimeridian becomes two
// longitude ranges.
func (r *repo) FindWithinRadius(ctx context.Context, db *gorm.DB, lat, lng, radiusKm float64) ([]domain.Candidate, error) {
	center := geo.Point{Lat: lat, Lng: lng}
	box := geo.BoundingBox(center, radiusKm)

	lngClauses := make([]string, 0, 2)
	args := []any{true, true, true, false, box.MinLat, box.MaxLat}
	for _, r := range box.LngRanges() {
		lngClauses = append(lngClauses, "l.longitude BETWEEN ? AND ?")
		args = append(args, r[0], r[1])
	}

	var rows []locationRow
	err := db.WithContext(ctx).Raw(
		`SELECT d.id AS driver_id, d.name, d.device_token, l.latitude, l.longitude
		 FROM drivers d
		 JOIN driver_locations l ON l.driver_id = d.id
		 WHERE d.is_active = ? AND d.is_approved = ? AND d.is_available = ? AND d.on_trip = ?
		   AND d.device_token IS NOT NULL AND d.device_token <> ''
		   AND l.latitude BETWEEN ? AND ?
		   AND (`+strings.Join(lngClauses, " OR ")+`)`,
		args...,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]domain.Candidate, 0, len(rows))
	for _, row := range rows {
		distance := geo.Haversine(center, geo.Point{Lat: row.Latitude, Lng: row.Longitude})
		if distance > radiusKm {
			continue
		}
		out = append(out, domain.Candidate{
			DriverID:    row.DriverID,
			Name:        row.Name,
			DeviceToken: row.DeviceToken,
			Latitude:    row.Latitude,
			Longitude:   row.Longitude,
			DistanceKm:  distance,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DistanceKm == out[j].DistanceKm {
			return out[i].DriverID < out[j].DriverID
		}
		return out[i].DistanceKm < out[j].DistanceKm
	})
	return out, nil
}

func (r *repo) ListByCompany(ctx context.Context, db *gorm.DB, companyID snowflake.ID) ([]domain.Allocation, error) {
	var allocations []domain.Allocation
	err := db.WithContext(ctx).
		Where("company_id = ? AND status = ?", companyID, domain.AllocationStatusActive).
		Find(&allocations).Error
	return allocations, err
}

func (r *repo) ListByDrivers(ctx context.Context, db *gorm.DB, driverIDs []snowflake.ID) ([]domain.Allocation, error) {
	if len(driverIDs) == 0 {
		return nil, nil
	}
	var allocations []domain.Allocation
	err := db.WithContext(ctx).
		Where("driver_id IN ? AND status = ?", driverIDs, domain.AllocationStatusActive).
		Find(&allocations).Error
	return allocations, err
}
