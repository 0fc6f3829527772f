package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	ListActive(ctx context.Context) ([]Credential, error)
	FindByID(ctx context.Context, id snowflake.ID) (*Credential, error)
	FindByCompanyID(ctx context.Context, companyID snowflake.ID) (*Credential, error)
	RecordSync(ctx context.Context, id snowflake.ID, result SyncResult) error
}

var (
	ErrNotFound  = errors.New("credential_not_found")
	ErrInvalidID = errors.New("invalid_credential_id")
)
