package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// Insert writes the job with its place and bill rows. Callers pass a
	// transaction so the three rows land together.
	Insert(ctx context.Context, db *gorm.DB, job *Job) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Job, error)
	FindCategory(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Category, error)
}
