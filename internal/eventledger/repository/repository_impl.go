package repository

import (
	"context"
	"errors"

	"github.com/smallbiznis/orderbridge/internal/eventledger/domain"
	pkgdb "github.com/smallbiznis/orderbridge/pkg/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Exists(ctx context.Context, db *gorm.DB, eventID string) (bool, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&domain.Entry{}).
		Where("event_id = ?", eventID).
		Limit(1).
		Count(&count).Error
	return count > 0, err
}

func (r *repo) InsertIfAbsent(ctx context.Context, db *gorm.DB, entry *domain.Entry) (bool, error) {
	result := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "event_id"}},
			DoNothing: true,
		}).
		Create(entry)
	if pkgdb.IsDuplicateKeyErr(result.Error) {
		return false, nil
	}
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) FindByEventID(ctx context.Context, db *gorm.DB, eventID string) (*domain.Entry, error) {
	var entry domain.Entry
	err := db.WithContext(ctx).Where("event_id = ?", eventID).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}
