package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	GetMany(ctx context.Context, db *gorm.DB, keys []string) (map[string]string, error)
	Upsert(ctx context.Context, db *gorm.DB, setting *Setting) error
}
