package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// InsertOffers skips rows whose (request_id, driver_id) already exists and
	// returns the number of rows written.
	InsertOffers(ctx context.Context, db *gorm.DB, offers []Offer) (int64, error)
	ListByRequest(ctx context.Context, db *gorm.DB, requestID snowflake.ID) ([]Offer, error)
	ExpireBefore(ctx context.Context, db *gorm.DB, now time.Time) (int64, error)
}
