package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/orderbridge/internal/clock"
	jobdomain "github.com/smallbiznis/orderbridge/internal/deliveryjob/domain"
	"github.com/smallbiznis/orderbridge/internal/dispatch/domain"
	matchingdomain "github.com/smallbiznis/orderbridge/internal/matching/domain"
	"github.com/smallbiznis/orderbridge/internal/observability/metrics"
	"github.com/smallbiznis/orderbridge/internal/providers/push"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const pushTitle = "New delivery request"

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Repo    domain.Repository
	Push    push.Provider
	Metrics *metrics.Metrics       `optional:"true"`
	Worker  *metrics.WorkerMetrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	repo    domain.Repository
	push    push.Provider
	metrics *metrics.Metrics
	worker  *metrics.WorkerMetrics
}

func New(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("dispatch.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		repo:    p.Repo,
		push:    p.Push,
		metrics: p.Metrics,
		worker:  p.Worker,
	}
}

func (s *Service) Dispatch(ctx context.Context, job *jobdomain.Job, candidates []matchingdomain.Candidate, timeout time.Duration) (*domain.Result, error) {
	if job == nil || job.ID == 0 {
		return nil, domain.ErrInvalidJob
	}
	if timeout <= 0 {
		return nil, domain.ErrInvalidTimeout
	}

	ctx, span := otel.Tracer("orderbridge/dispatch").Start(ctx, "dispatch.Dispatch")
	defer span.End()
	span.SetAttributes(
		attribute.String("request_id", job.ID.String()),
		attribute.Int("candidates", len(candidates)),
	)

	now := s.clock.Now().UTC()
	expiresAt := now.Add(timeout)
	result := &domain.Result{ExpiresAt: expiresAt}

	if len(candidates) == 0 {
		s.log.Info("dispatch.no_candidates",
			zap.String("request_id", job.ID.String()),
			zap.String("request_number", job.RequestNumber),
		)
		return result, nil
	}

	existing, err := s.repo.ListByRequest(ctx, s.db, job.ID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list offers")
		return nil, err
	}
	offered := make(map[snowflake.ID]struct{}, len(existing))
	for _, o := range existing {
		offered[o.DriverID] = struct{}{}
	}

	offers := make([]domain.Offer, 0, len(candidates))
	tokens := make([]string, 0, len(candidates))
	seen := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		if _, ok := offered[c.DriverID]; ok {
			continue
		}
		offered[c.DriverID] = struct{}{}
		offers = append(offers, domain.Offer{
			ID:        s.genID.Generate(),
			RequestID: job.ID,
			DriverID:  c.DriverID,
			Status:    domain.OfferNotified,
			ExpiresAt: expiresAt,
			CreatedAt: now,
			UpdatedAt: now,
		})
		if c.DeviceToken == "" {
			continue
		}
		if _, ok := seen[c.DeviceToken]; ok {
			continue
		}
		seen[c.DeviceToken] = struct{}{}
		tokens = append(tokens, c.DeviceToken)
	}

	if len(offers) == 0 {
		s.log.Info("dispatch.already_offered",
			zap.String("request_id", job.ID.String()),
			zap.Int("candidates", len(candidates)),
		)
		return result, nil
	}

	inserted, err := s.repo.InsertOffers(ctx, s.db, offers)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert offers")
		return nil, err
	}
	result.Offers = int(inserted)
	s.worker.AddOffers(result.Offers)
	s.metrics.RecordOffers(ctx, result.Offers)
	if inserted == 0 {
		s.log.Info("dispatch.already_offered",
			zap.String("request_id", job.ID.String()),
			zap.Int("candidates", len(candidates)),
		)
		return result, nil
	}

	msg := push.Message{
		Tokens: tokens,
		Title:  pushTitle,
		Body:   pushBody(job),
		Data:   pushData(job, expiresAt),
	}
	if err := s.push.Send(ctx, msg); err != nil {
		s.metrics.RecordPushFanout(ctx, "error")
		span.RecordError(err)
		span.SetStatus(codes.Error, "push")
		s.log.Warn("dispatch.push_failed",
			zap.String("request_id", job.ID.String()),
			zap.Int("tokens", len(tokens)),
			zap.Error(err),
		)
		return result, fmt.Errorf("%w: %v", domain.ErrPushFailed, err)
	}
	result.Notified = len(tokens)
	s.metrics.RecordPushFanout(ctx, "sent")

	s.log.Info("dispatch.notified",
		zap.String("request_id", job.ID.String()),
		zap.String("request_number", job.RequestNumber),
		zap.Int("offers", result.Offers),
		zap.Int("tokens", result.Notified),
		zap.Time("expires_at", expiresAt),
	)
	return result, nil
}

func (s *Service) ExpireOffers(ctx context.Context, now time.Time) (int64, error) {
	expired, err := s.repo.ExpireBefore(ctx, s.db, now.UTC())
	if err != nil {
		return 0, err
	}
	if expired > 0 {
		s.log.Info("dispatch.offers_expired", zap.Int64("count", expired))
	}
	return expired, nil
}

func (s *Service) ListOffers(ctx context.Context, requestID snowflake.ID) ([]domain.Offer, error) {
	return s.repo.ListByRequest(ctx, s.db, requestID)
}

func pushBody(job *jobdomain.Job) string {
	return fmt.Sprintf("%.1f km, payout %s %s", job.DistanceKm, job.Bill.Currency, formatMinor(job.Bill.WorkerPayout))
}

func pushData(job *jobdomain.Job, expiresAt time.Time) map[string]string {
	return map[string]string{
		"type":           "delivery_request",
		"request_id":     job.ID.String(),
		"request_number": job.RequestNumber,
		"total":          formatMinor(job.Bill.Total),
		"commission":     formatMinor(job.Bill.Commission),
		"worker_payout":  formatMinor(job.Bill.WorkerPayout),
		"currency":       job.Bill.Currency,
		"pickup_address": job.Place.PickupAddress,
		"drop_address":   job.Place.DropAddress,
		"distance_km":    strconv.FormatFloat(job.DistanceKm, 'f', 2, 64),
		"eta_minutes":    strconv.Itoa(job.EtaMinutes),
		"expires_at":     expiresAt.Format(time.RFC3339),
	}
}

// formatMinor renders minor units with two decimals.
func formatMinor(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return fmt.Sprintf("%s%d.%02d", sign, amount/100, amount%100)
}
