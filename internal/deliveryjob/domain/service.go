package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	credentialdomain "github.com/smallbiznis/orderbridge/internal/credential/domain"
	partnerdomain "github.com/smallbiznis/orderbridge/internal/partner/domain"
	"gorm.io/gorm"
)

// AfterCreateFunc runs inside the job transaction after the job rows are
// written. Returning an error rolls the whole job back.
type AfterCreateFunc func(tx *gorm.DB, job *Job) error

type Service interface {
	Translate(ctx context.Context, cred credentialdomain.Credential, event partnerdomain.Event, afterCreate AfterCreateFunc) (*Job, error)
	FindByID(ctx context.Context, id snowflake.ID) (*Job, error)
}

var (
	ErrNotFound         = errors.New("request_not_found")
	ErrCategoryNotFound = errors.New("category_not_found")
)
