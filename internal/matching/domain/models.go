package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Driver is a field worker as maintained by the driver app backend.
type Driver struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	Name        string       `gorm:"not null" json:"name"`
	Phone       string       `json:"phone"`
	IsActive    bool         `gorm:"not null" json:"is_active"`
	IsApproved  bool         `gorm:"not null" json:"is_approved"`
	IsAvailable bool         `gorm:"not null" json:"is_available"`
	OnTrip      bool         `gorm:"not null" json:"on_trip"`
	DeviceToken string       `json:"device_token"`
}

func (Driver) TableName() string {
	return "drivers"
}

// Location is the last position reported by a driver.
type Location struct {
	DriverID  snowflake.ID `gorm:"primaryKey" json:"driver_id"`
	Latitude  float64      `gorm:"not null" json:"latitude"`
	Longitude float64      `gorm:"not null" json:"longitude"`
	UpdatedAt time.Time    `gorm:"not null" json:"updated_at"`
}

func (Location) TableName() string {
	return "driver_locations"
}

const AllocationStatusActive = "active"

// Allocation reserves a driver exclusively for one company during a window.
type Allocation struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	DriverID  snowflake.ID `gorm:"not null;index" json:"driver_id"`
	CompanyID snowflake.ID `gorm:"not null;index" json:"company_id"`
	Status    string       `gorm:"not null" json:"status"`
	StartsAt  time.Time    `gorm:"not null" json:"starts_at"`
	EndsAt    time.Time    `gorm:"not null" json:"ends_at"`
}

func (Allocation) TableName() string {
	return "driver_allocations"
}

// ActiveAt reports whether the allocation is in force at now, bounds inclusive.
func (a Allocation) ActiveAt(now time.Time) bool {
	return a.Status == AllocationStatusActive && !now.Before(a.StartsAt) && !now.After(a.EndsAt)
}

// Candidate is a driver eligible for an offer, with its distance to pickup.
type Candidate struct {
	DriverID    snowflake.ID `json:"driver_id"`
	Name        string       `json:"name"`
	DeviceToken string       `json:"-"`
	Latitude    float64      `json:"latitude"`
	Longitude   float64      `json:"longitude"`
	DistanceKm  float64      `json:"distance_km"`
}
