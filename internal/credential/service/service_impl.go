package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/orderbridge/internal/credential/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB   *gorm.DB
	Log  *zap.Logger
	Repo domain.Repository
}

type Service struct {
	db   *gorm.DB
	log  *zap.Logger
	repo domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:   p.DB,
		log:  p.Log.Named("credential.service"),
		repo: p.Repo,
	}
}

func (s *Service) ListActive(ctx context.Context) ([]domain.Credential, error) {
	return s.repo.ListActive(ctx, s.db)
}

func (s *Service) FindByID(ctx context.Context, id snowflake.ID) (*domain.Credential, error) {
	if id == 0 {
		return nil, domain.ErrInvalidID
	}
	cred, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if cred == nil {
		return nil, domain.ErrNotFound
	}
	return cred, nil
}

func (s *Service) FindByCompanyID(ctx context.Context, companyID snowflake.ID) (*domain.Credential, error) {
	if companyID == 0 {
		return nil, domain.ErrInvalidID
	}
	cred, err := s.repo.FindByCompanyID(ctx, s.db, companyID)
	if err != nil {
		return nil, err
	}
	if cred == nil {
		return nil, domain.ErrNotFound
	}
	return cred, nil
}

// RecordSync writes the tick outcome onto the credential. The error text is
// truncated so a verbose partner body cannot bloat the row.
func (s *Service) RecordSync(ctx context.Context, id snowflake.ID, result domain.SyncResult) error {
	const maxErrorLen = 1000
	if len(result.Error) > maxErrorLen {
		result.Error = result.Error[:maxErrorLen]
	}
	if err := s.repo.RecordSync(ctx, s.db, id, result); err != nil {
		s.log.Error("credential.sync.record_failed",
			zap.String("credential_id", id.String()),
			zap.Error(err),
		)
		return err
	}
	return nil
}
