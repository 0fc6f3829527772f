package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	Exists(ctx context.Context, db *gorm.DB, eventID string) (bool, error)
	// InsertIfAbsent returns false when an entry for the event already exists.
	InsertIfAbsent(ctx context.Context, db *gorm.DB, entry *Entry) (bool, error)
	FindByEventID(ctx context.Context, db *gorm.DB, eventID string) (*Entry, error)
}
