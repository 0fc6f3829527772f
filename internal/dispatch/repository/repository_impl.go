package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/orderbridge/internal/dispatch/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertOffers(ctx context.Context, db *gorm.DB, offers []domain.Offer) (int64, error) {
	if len(offers) == 0 {
		return 0, nil
	}
	result := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "request_id"}, {Name: "driver_id"}},
			DoNothing: true,
		}).
		Create(&offers)
	return result.RowsAffected, result.Error
}

func (r *repo) ListByRequest(ctx context.Context, db *gorm.DB, requestID snowflake.ID) ([]domain.Offer, error) {
	var offers []domain.Offer
	err := db.WithContext(ctx).
		Where("request_id = ?", requestID).
		Order("id ASC").
		Find(&offers).Error
	return offers, err
}

func (r *repo) ExpireBefore(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	result := db.WithContext(ctx).
		Model(&domain.Offer{}).
		Where("status = ? AND expires_at < ?", domain.OfferNotified, now).
		Updates(map[string]any{
			"status":     domain.OfferExpired,
			"updated_at": now,
		})
	return result.RowsAffected, result.Error
}
