package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusPending              Status = "pending"
	StatusAccepted             Status = "accepted"
	StatusArrivedAtPickup      Status = "arrived_at_pickup"
	StatusPickedUp             Status = "picked_up"
	StatusArrivedAtDestination Status = "arrived_at_destination"
	StatusCompleted            Status = "completed"
	StatusCancelled            Status = "cancelled"
)

const SourcePartner = "partner"

// Job is an internal delivery request created from a partner order.
// Lifecycle timestamps are written by the fulfillment pipeline.
type Job struct {
	ID                snowflake.ID   `gorm:"primaryKey" json:"id"`
	RequestNumber     string         `gorm:"not null;uniqueIndex" json:"request_number"`
	CompanyID         snowflake.ID   `gorm:"not null;index" json:"company_id"`
	CredentialID      *snowflake.ID  `gorm:"index" json:"credential_id,omitempty"`
	CategoryID        snowflake.ID   `gorm:"not null" json:"category_id"`
	CustomerName      string         `json:"customer_name"`
	CustomerPhone     string         `json:"customer_phone"`
	DistanceKm        float64        `gorm:"not null" json:"distance_km"`
	EtaMinutes        int            `gorm:"not null" json:"eta_minutes"`
	Source            string         `gorm:"not null" json:"source"`
	ExternalOrderID   string         `gorm:"index" json:"external_order_id"`
	ExternalDisplayID string         `json:"external_display_id"`
	Status            Status         `gorm:"not null;index" json:"status"`
	AcceptedAt        *time.Time     `json:"accepted_at,omitempty"`
	ArrivedAt         *time.Time     `json:"arrived_at,omitempty"`
	PickedUpAt        *time.Time     `json:"picked_up_at,omitempty"`
	CompletedAt       *time.Time     `json:"completed_at,omitempty"`
	CancelledAt       *time.Time     `json:"cancelled_at,omitempty"`
	Metadata          datatypes.JSON `json:"metadata,omitempty"`
	CreatedAt         time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt         time.Time      `gorm:"not null" json:"updated_at"`

	Place Place `gorm:"-" json:"place"`
	Bill  Bill  `gorm:"-" json:"bill"`
}

func (Job) TableName() string {
	return "requests"
}

type Place struct {
	ID              snowflake.ID `gorm:"primaryKey" json:"id"`
	RequestID       snowflake.ID `gorm:"not null;uniqueIndex" json:"request_id"`
	PickupAddress   string       `gorm:"not null" json:"pickup_address"`
	PickupLatitude  float64      `gorm:"not null" json:"pickup_latitude"`
	PickupLongitude float64      `gorm:"not null" json:"pickup_longitude"`
	DropAddress     string       `gorm:"not null" json:"drop_address"`
	DropLatitude    float64      `gorm:"not null" json:"drop_latitude"`
	DropLongitude   float64      `gorm:"not null" json:"drop_longitude"`
}

func (Place) TableName() string {
	return "request_places"
}

// Bill amounts are minor currency units.
type Bill struct {
	ID             snowflake.ID `gorm:"primaryKey" json:"id"`
	RequestID      snowflake.ID `gorm:"not null;uniqueIndex" json:"request_id"`
	BasePrice      int64        `gorm:"not null" json:"base_price"`
	DistancePrice  int64        `gorm:"not null" json:"distance_price"`
	Total          int64        `gorm:"not null" json:"total"`
	Commission     int64        `gorm:"not null" json:"commission"`
	WorkerPayout   int64        `gorm:"not null" json:"worker_payout"`
	CommissionRate float64      `gorm:"not null" json:"commission_rate"`
	Currency       string       `gorm:"not null" json:"currency"`
}

func (Bill) TableName() string {
	return "request_bills"
}

// Category carries the tariff of a job type in minor units.
type Category struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	Name       string       `gorm:"not null" json:"name"`
	BasePrice  int64        `gorm:"not null" json:"base_price"`
	PricePerKm int64        `gorm:"not null" json:"price_per_km"`
	IsActive   bool         `gorm:"not null" json:"is_active"`
}

func (Category) TableName() string {
	return "job_categories"
}
