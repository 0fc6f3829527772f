package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/orderbridge/internal/deliveryjob/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, job *domain.Job) error {
	db = db.WithContext(ctx)
	if err := db.Create(job).Error; err != nil {
		return err
	}
	job.Place.RequestID = job.ID
	if err := db.Create(&job.Place).Error; err != nil {
		return err
	}
	job.Bill.RequestID = job.ID
	return db.Create(&job.Bill).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Job, error) {
	db = db.WithContext(ctx)

	var job domain.Job
	err := db.Where("id = ?", id).First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := db.Where("request_id = ?", id).Limit(1).Find(&job.Place).Error; err != nil {
		return nil, err
	}
	if err := db.Where("request_id = ?", id).Limit(1).Find(&job.Bill).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *repo) FindCategory(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Category, error) {
	var category domain.Category
	err := db.WithContext(ctx).Where("id = ?", id).First(&category).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &category, nil
}
