package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/orderbridge/internal/credential/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, cred *domain.Credential) error {
	return db.WithContext(ctx).Create(cred).Error
}

func (r *repo) ListActive(ctx context.Context, db *gorm.DB) ([]domain.Credential, error) {
	var creds []domain.Credential
	err := db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("id ASC").
		Find(&creds).Error
	return creds, err
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Credential, error) {
	var cred domain.Credential
	err := db.WithContext(ctx).Where("id = ?", id).First(&cred).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cred, nil
}

func (r *repo) FindByCompanyID(ctx context.Context, db *gorm.DB, companyID snowflake.ID) (*domain.Credential, error) {
	var cred domain.Credential
	err := db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Order("is_active DESC, id ASC").
		First(&cred).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cred, nil
}

func (r *repo) RecordSync(ctx context.Context, db *gorm.DB, id snowflake.ID, result domain.SyncResult) error {
	var syncErr *string
	if result.Error != "" {
		syncErr = &result.Error
	}
	return db.WithContext(ctx).Exec(
		`UPDATE partner_credentials
		 SET last_sync_at = ?, last_sync_status = ?, last_sync_error = ?,
		     jobs_created_count = jobs_created_count + ?, updated_at = ?
		 WHERE id = ?`,
		result.At,
		string(result.Status),
		syncErr,
		result.JobsCreated,
		result.At,
		id,
	).Error
}
