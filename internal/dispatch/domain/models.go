package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type OfferStatus string

const (
	OfferNotified OfferStatus = "notified"
	OfferAccepted OfferStatus = "accepted"
	OfferExpired  OfferStatus = "expired"
)

// Offer is a time-bounded notification of one job to one driver.
type Offer struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	RequestID snowflake.ID `gorm:"not null;uniqueIndex:ux_request_offers_request_driver" json:"request_id"`
	DriverID  snowflake.ID `gorm:"not null;uniqueIndex:ux_request_offers_request_driver;index" json:"driver_id"`
	Status    OfferStatus  `gorm:"not null;index" json:"status"`
	ExpiresAt time.Time    `gorm:"not null" json:"expires_at"`
	CreatedAt time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null" json:"updated_at"`
}

func (Offer) TableName() string {
	return "request_offers"
}

// Result summarises one dispatch round for a job.
type Result struct {
	Offers    int       `json:"offers"`
	Notified  int       `json:"notified"`
	ExpiresAt time.Time `json:"expires_at"`
}
