package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// WorkerLocationRepository finds dispatchable drivers near a point.
type WorkerLocationRepository interface {
	// FindWithinRadius returns drivers that are active, approved, available,
	// not on a trip and have a device token, within radiusKm of (lat, lng),
	// nearest first.
	FindWithinRadius(ctx context.Context, db *gorm.DB, lat, lng, radiusKm float64) ([]Candidate, error)
}

type AllocationRepository interface {
	ListByCompany(ctx context.Context, db *gorm.DB, companyID snowflake.ID) ([]Allocation, error)
	ListByDrivers(ctx context.Context, db *gorm.DB, driverIDs []snowflake.ID) ([]Allocation, error)
}
