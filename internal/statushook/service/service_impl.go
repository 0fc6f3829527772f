package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/orderbridge/internal/config"
	credentialdomain "github.com/smallbiznis/orderbridge/internal/credential/domain"
	jobdomain "github.com/smallbiznis/orderbridge/internal/deliveryjob/domain"
	partnerdomain "github.com/smallbiznis/orderbridge/internal/partner/domain"
	"github.com/smallbiznis/orderbridge/internal/statushook/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log         *zap.Logger
	Jobs        jobdomain.Service
	Credentials credentialdomain.Service
	Partner     partnerdomain.Client
	Tokens      partnerdomain.TokenProvider
	Config      *config.PartnerConfigHolder
}

type Service struct {
	log         *zap.Logger
	jobs        jobdomain.Service
	credentials credentialdomain.Service
	partner     partnerdomain.Client
	tokens      partnerdomain.TokenProvider
	config      *config.PartnerConfigHolder
}

func New(p Params) domain.Service {
	return &Service{
		log:         p.Log.Named("statushook.service"),
		jobs:        p.Jobs,
		credentials: p.Credentials,
		partner:     p.Partner,
		tokens:      p.Tokens,
		config:      p.Config,
	}
}

func (s *Service) NotifyStatusChange(ctx context.Context, jobID snowflake.ID, status string) (*domain.Result, error) {
	if jobID == 0 {
		return nil, domain.ErrInvalidJobID
	}
	status = strings.ToLower(strings.TrimSpace(status))
	action, ok := s.config.Get().StatusActions[status]
	if !ok || action == "" {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownStatus, status)
	}

	ctx, span := otel.Tracer("orderbridge/statushook").Start(ctx, "statushook.notify")
	defer span.End()
	span.SetAttributes(attribute.String("request_id", jobID.String()), attribute.String("status", status))

	job, err := s.jobs.FindByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Source != jobdomain.SourcePartner || job.CredentialID == nil || job.ExternalOrderID == "" {
		s.log.Debug("statushook.skipped",
			zap.String("request_id", jobID.String()),
			zap.String("source", job.Source),
		)
		return &domain.Result{}, nil
	}

	cred, err := s.credentials.FindByID(ctx, *job.CredentialID)
	if err != nil {
		return nil, err
	}

	if err := s.send(ctx, *cred, job.ExternalOrderID, action); err != nil {
		s.log.Warn("statushook.failed",
			zap.String("request_id", jobID.String()),
			zap.String("order_id", job.ExternalOrderID),
			zap.String("action", action),
			zap.Error(err),
		)
		return nil, err
	}

	s.log.Info("statushook.forwarded",
		zap.String("request_id", jobID.String()),
		zap.String("order_id", job.ExternalOrderID),
		zap.String("status", status),
		zap.String("action", action),
	)
	return &domain.Result{Forwarded: true, OrderID: job.ExternalOrderID, Action: action}, nil
}

// send posts the action, re-authenticating once when the cached token is rejected.
func (s *Service) send(ctx context.Context, cred credentialdomain.Credential, orderID, action string) error {
	for attempt := 0; ; attempt++ {
		token, err := s.tokens.GetValidToken(ctx, cred.Credentials())
		if err != nil {
			return err
		}
		err = s.partner.SendStatus(ctx, token, orderID, action)
		if err == nil {
			return nil
		}
		if !partnerdomain.IsAuthError(err) {
			return err
		}
		if clearErr := s.tokens.ClearToken(ctx, cred.ID.String()); clearErr != nil {
			s.log.Warn("statushook.token.clear_failed", zap.Error(clearErr))
		}
		if attempt > 0 {
			return err
		}
	}
}
