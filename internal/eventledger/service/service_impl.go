package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/orderbridge/internal/clock"
	"github.com/smallbiznis/orderbridge/internal/eventledger/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("eventledger.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) AlreadyProcessed(ctx context.Context, eventID string) (bool, error) {
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return false, domain.ErrInvalidEventID
	}
	return s.repo.Exists(ctx, s.db, eventID)
}

func (s *Service) RecordOutcome(ctx context.Context, tx *gorm.DB, req domain.OutcomeRequest) (bool, error) {
	eventID := strings.TrimSpace(req.EventID)
	if eventID == "" {
		return false, domain.ErrInvalidEventID
	}
	switch req.Status {
	case domain.StatusProcessed, domain.StatusSkipped, domain.StatusError:
	default:
		return false, domain.ErrInvalidStatus
	}
	if tx == nil {
		tx = s.db
	}

	entry := domain.Entry{
		ID:           s.genID.Generate(),
		EventID:      eventID,
		OrderID:      req.OrderID,
		DisplayID:    req.DisplayID,
		CredentialID: req.CredentialID,
		RequestID:    req.RequestID,
		EventCode:    req.EventCode,
		Status:       req.Status,
		CreatedAt:    s.clock.Now(),
	}
	if msg := strings.TrimSpace(req.ErrorMessage); msg != "" {
		entry.ErrorMessage = &msg
	}

	inserted, err := s.repo.InsertIfAbsent(ctx, tx, &entry)
	if err != nil {
		return false, err
	}
	if !inserted {
		s.log.Info("eventledger.entry.duplicate",
			zap.String("event_id", eventID),
			zap.String("status", string(req.Status)),
		)
	}
	return inserted, nil
}

func (s *Service) FindByEventID(ctx context.Context, eventID string) (*domain.Entry, error) {
	entry, err := s.repo.FindByEventID(ctx, s.db, eventID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, domain.ErrNotFound
	}
	return entry, nil
}
