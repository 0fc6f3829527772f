package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, cred *Credential) error
	ListActive(ctx context.Context, db *gorm.DB) ([]Credential, error)
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Credential, error)
	FindByCompanyID(ctx context.Context, db *gorm.DB, companyID snowflake.ID) (*Credential, error)
	RecordSync(ctx context.Context, db *gorm.DB, id snowflake.ID, result SyncResult) error
}
