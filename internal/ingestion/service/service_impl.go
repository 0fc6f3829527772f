package service

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/smallbiznis/orderbridge/internal/clock"
	"github.com/smallbiznis/orderbridge/internal/config"
	credentialdomain "github.com/smallbiznis/orderbridge/internal/credential/domain"
	jobdomain "github.com/smallbiznis/orderbridge/internal/deliveryjob/domain"
	dispatchdomain "github.com/smallbiznis/orderbridge/internal/dispatch/domain"
	ledgerdomain "github.com/smallbiznis/orderbridge/internal/eventledger/domain"
	"github.com/smallbiznis/orderbridge/internal/ingestion/domain"
	matchingdomain "github.com/smallbiznis/orderbridge/internal/matching/domain"
	"github.com/smallbiznis/orderbridge/internal/observability/metrics"
	partnerdomain "github.com/smallbiznis/orderbridge/internal/partner/domain"
	"github.com/smallbiznis/orderbridge/internal/ratelimit"
	settingsdomain "github.com/smallbiznis/orderbridge/internal/settings/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxSyncErrorLength = 1000

type Params struct {
	fx.In

	Log         *zap.Logger
	Clock       clock.Clock
	Credentials credentialdomain.Service
	Partner     partnerdomain.Client
	Tokens      partnerdomain.TokenProvider
	Ledger      ledgerdomain.Service
	Jobs        jobdomain.Service
	Matching    matchingdomain.Service
	Dispatch    dispatchdomain.Service
	Settings    settingsdomain.Service
	Config      *config.PartnerConfigHolder
	Limiter     *ratelimit.PartnerLimiter `optional:"true"`
	Metrics     *metrics.Metrics          `optional:"true"`
	Worker      *metrics.WorkerMetrics    `optional:"true"`
}

type Service struct {
	log         *zap.Logger
	clock       clock.Clock
	credentials credentialdomain.Service
	partner     partnerdomain.Client
	tokens      partnerdomain.TokenProvider
	ledger      ledgerdomain.Service
	jobs        jobdomain.Service
	matching    matchingdomain.Service
	dispatch    dispatchdomain.Service
	settings    settingsdomain.Service
	config      *config.PartnerConfigHolder
	limiter     *ratelimit.PartnerLimiter
	metrics     *metrics.Metrics
	worker      *metrics.WorkerMetrics
}

func New(p Params) domain.Service {
	return &Service{
		log:         p.Log.Named("ingestion.service"),
		clock:       p.Clock,
		credentials: p.Credentials,
		partner:     p.Partner,
		tokens:      p.Tokens,
		ledger:      p.Ledger,
		jobs:        p.Jobs,
		matching:    p.Matching,
		dispatch:    p.Dispatch,
		settings:    p.Settings,
		config:      p.Config,
		limiter:     p.Limiter,
		metrics:     p.Metrics,
		worker:      p.Worker,
	}
}

func (s *Service) SyncAll(ctx context.Context) (*domain.TickReport, error) {
	creds, err := s.credentials.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active credentials: %w", err)
	}

	report := &domain.TickReport{Credentials: len(creds)}
	for _, cred := range creds {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		sync, err := s.SyncCredential(ctx, cred)
		if errors.Is(err, domain.ErrThrottled) {
			report.Throttled++
			s.log.Info("ingestion.credential.throttled",
				zap.String("credential_id", cred.ID.String()),
				zap.String("merchant_id", cred.MerchantID),
			)
			continue
		}
		if sync != nil {
			report.Syncs = append(report.Syncs, *sync)
		}

		result := credentialdomain.SyncResult{At: s.clock.Now(), Status: credentialdomain.SyncStatusSuccess}
		if sync != nil {
			result.JobsCreated = sync.Created
		}
		if err != nil {
			report.Failed++
			reason := domain.Classify(err)
			stage := domain.StageOf(err)
			result.Status = credentialdomain.SyncStatusError
			result.Error = truncate(reason+": "+err.Error(), maxSyncErrorLength)
			s.worker.IncSync(string(credentialdomain.SyncStatusError))
			s.worker.IncSyncError(reason, string(stage))
			s.log.Warn("ingestion.credential.failed",
				zap.String("credential_id", cred.ID.String()),
				zap.String("merchant_id", cred.MerchantID),
				zap.String("stage", string(stage)),
				zap.String("reason", reason),
				zap.Error(err),
			)
		} else {
			report.Succeeded++
			s.worker.IncSync(string(credentialdomain.SyncStatusSuccess))
		}

		if recErr := s.credentials.RecordSync(ctx, cred.ID, result); recErr != nil {
			s.log.Error("ingestion.credential.record_sync_failed",
				zap.String("credential_id", cred.ID.String()),
				zap.Error(recErr),
			)
		}
	}
	return report, nil
}

// SyncCredential runs one credential through poll, per-event processing and
// the batch-final acknowledgment. Per-event failures are written to the
// ledger and never returned.
func (s *Service) SyncCredential(ctx context.Context, cred credentialdomain.Credential) (*domain.SyncReport, error) {
	ctx, span := otel.Tracer("orderbridge/ingestion").Start(ctx, "ingestion.sync_credential")
	defer span.End()
	span.SetAttributes(
		attribute.String("credential_id", cred.ID.String()),
		attribute.String("merchant_id", cred.MerchantID),
	)

	report := &domain.SyncReport{CredentialID: cred.ID.String()}

	types, accepted := s.eventCodes(cred)
	if len(types) == 0 {
		s.log.Debug("ingestion.credential.no_triggers", zap.String("credential_id", cred.ID.String()))
		return report, nil
	}

	if s.limiter != nil && !s.limiter.Allow(ctx, cred.MerchantID) {
		return report, domain.ErrThrottled
	}

	token, events, err := s.poll(ctx, cred, types)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "poll")
		return report, err
	}
	report.Polled = len(events)
	if len(events) == 0 {
		return report, nil
	}

	rates, err := s.settings.Dispatch(ctx)
	if err != nil {
		return report, &domain.StageError{Stage: domain.StageTranslating, Err: err}
	}

	ids := make([]string, 0, len(events))
	for _, event := range events {
		if s.processEvent(ctx, cred, event, accepted, rates, report) {
			ids = append(ids, event.ID)
			continue
		}
		report.Deferred++
	}
	if len(ids) > 0 {
		report.Acknowledged = s.acknowledge(ctx, cred, token, ids)
	}

	s.log.Info("ingestion.credential.synced",
		zap.String("credential_id", cred.ID.String()),
		zap.Int("polled", report.Polled),
		zap.Int("created", report.Created),
		zap.Int("duplicates", report.Duplicates),
		zap.Int("ignored", report.Ignored),
		zap.Int("failed", report.Failed),
		zap.Int("offers", report.Offers),
		zap.Int("deferred", report.Deferred),
		zap.Bool("acknowledged", report.Acknowledged),
	)
	return report, nil
}

// poll fetches pending events. A rejected cached token is cleared and the
// poll retried once with a fresh one; a failed token exchange is not retried.
func (s *Service) poll(ctx context.Context, cred credentialdomain.Credential, types []string) (string, []partnerdomain.Event, error) {
	for attempt := 0; ; attempt++ {
		token, err := s.tokens.GetValidToken(ctx, cred.Credentials())
		if err != nil {
			return "", nil, &domain.StageError{Stage: domain.StageAuthenticating, Err: err}
		}

		events, err := s.partner.Poll(ctx, cred.MerchantID, token, types)
		if err == nil {
			return token, events, nil
		}
		if !partnerdomain.IsAuthError(err) {
			return "", nil, &domain.StageError{Stage: domain.StageFetching, Err: err}
		}
		if clearErr := s.tokens.ClearToken(ctx, cred.ID.String()); clearErr != nil {
			s.log.Warn("ingestion.token.clear_failed", zap.Error(clearErr))
		}
		if attempt > 0 {
			return "", nil, &domain.StageError{Stage: domain.StageFetching, Err: err}
		}
		s.log.Info("ingestion.poll.reauthenticate", zap.String("credential_id", cred.ID.String()))
	}
}

// processEvent reports whether the event is settled in the ledger. Only
// settled events may be acknowledged; the rest are redelivered next tick.
func (s *Service) processEvent(ctx context.Context, cred credentialdomain.Credential, event partnerdomain.Event, accepted []string, rates settingsdomain.Dispatch, report *domain.SyncReport) bool {
	log := s.log.With(
		zap.String("credential_id", cred.ID.String()),
		zap.String("event_id", event.ID),
		zap.String("order_id", event.OrderID),
		zap.String("event_code", event.Code),
	)

	if event.ID == "" {
		report.Failed++
		s.worker.IncEvent("invalid")
		log.Warn("ingestion.event.invalid")
		return false
	}

	seen, err := s.ledger.AlreadyProcessed(ctx, event.ID)
	if err != nil {
		report.Failed++
		s.worker.IncEvent("error")
		log.Error("ingestion.event.dedup_failed", zap.Error(err))
		return false
	}
	if seen {
		report.Duplicates++
		s.worker.IncEvent("duplicate")
		log.Debug("ingestion.event.duplicate")
		return true
	}

	if !event.Matches(accepted...) {
		report.Ignored++
		s.worker.IncEvent(string(ledgerdomain.StatusSkipped))
		return s.recordOutcome(ctx, log, ledgerdomain.OutcomeRequest{
			EventID:      event.ID,
			OrderID:      event.OrderID,
			CredentialID: cred.ID,
			EventCode:    eventCode(event),
			Status:       ledgerdomain.StatusSkipped,
		})
	}

	job, err := s.jobs.Translate(ctx, cred, event, func(tx *gorm.DB, job *jobdomain.Job) error {
		requestID := job.ID
		inserted, err := s.ledger.RecordOutcome(ctx, tx, ledgerdomain.OutcomeRequest{
			EventID:      event.ID,
			OrderID:      event.OrderID,
			DisplayID:    job.ExternalDisplayID,
			CredentialID: cred.ID,
			RequestID:    &requestID,
			EventCode:    eventCode(event),
			Status:       ledgerdomain.StatusProcessed,
		})
		if err != nil {
			return err
		}
		if !inserted {
			return ledgerdomain.ErrDuplicateEvent
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ledgerdomain.ErrDuplicateEvent) {
			report.Duplicates++
			s.worker.IncEvent("duplicate")
			log.Info("ingestion.event.duplicate_race")
			return true
		}
		report.Failed++
		reason := domain.Classify(err)
		s.worker.IncEvent(string(ledgerdomain.StatusError))
		log.Warn("ingestion.event.failed",
			zap.String("stage", string(domain.StageTranslating)),
			zap.String("reason", reason),
			zap.Error(err),
		)
		return s.recordOutcome(ctx, log, ledgerdomain.OutcomeRequest{
			EventID:      event.ID,
			OrderID:      event.OrderID,
			CredentialID: cred.ID,
			EventCode:    eventCode(event),
			Status:       ledgerdomain.StatusError,
			ErrorMessage: truncate(reason+": "+err.Error(), maxSyncErrorLength),
		})
	}

	report.Created++
	s.worker.IncEvent(string(ledgerdomain.StatusProcessed))
	s.metrics.RecordRequestCreated(ctx, eventCode(event))

	candidates, err := s.matching.FindCandidates(ctx, job.CompanyID, job.Place.PickupLatitude, job.Place.PickupLongitude, rates.SearchRadiusKm)
	if err != nil {
		log.Error("ingestion.event.match_failed",
			zap.String("request_id", job.ID.String()),
			zap.String("stage", string(domain.StageMatching)),
			zap.Error(err),
		)
		return true
	}

	result, err := s.dispatch.Dispatch(ctx, job, candidates, rates.AcceptanceTimeout)
	if result != nil {
		report.Offers += result.Offers
	}
	if err != nil {
		log.Error("ingestion.event.dispatch_failed",
			zap.String("request_id", job.ID.String()),
			zap.String("stage", string(domain.StageDispatching)),
			zap.Error(err),
		)
	}
	return true
}

// recordOutcome reports whether the event now has a ledger row, written
// here or by an earlier writer.
func (s *Service) recordOutcome(ctx context.Context, log *zap.Logger, req ledgerdomain.OutcomeRequest) bool {
	if _, err := s.ledger.RecordOutcome(ctx, nil, req); err != nil {
		log.Error("ingestion.ledger.record_failed",
			zap.String("status", string(req.Status)),
			zap.Error(err),
		)
		return false
	}
	return true
}

// acknowledge clears the batch from the partner queue. Failures are logged
// and reported as false.
func (s *Service) acknowledge(ctx context.Context, cred credentialdomain.Credential, token string, ids []string) bool {
	err := s.partner.Acknowledge(ctx, token, ids)
	if err == nil {
		s.metrics.RecordAcknowledged(ctx, len(ids), "ok")
		return true
	}
	if partnerdomain.IsAuthError(err) {
		if clearErr := s.tokens.ClearToken(ctx, cred.ID.String()); clearErr != nil {
			s.log.Warn("ingestion.token.clear_failed", zap.Error(clearErr))
		}
	}
	s.metrics.RecordAcknowledged(ctx, len(ids), "error")
	s.log.Warn("ingestion.ack.failed",
		zap.String("credential_id", cred.ID.String()),
		zap.String("stage", string(domain.StageAcknowledging)),
		zap.Int("events", len(ids)),
		zap.Error(err),
	)
	return false
}

// eventCodes returns the poll filter for the credential's enabled triggers
// and every code, short or full, that counts as a match.
func (s *Service) eventCodes(cred credentialdomain.Credential) (types, accepted []string) {
	cfg := s.config.Get()
	for _, name := range cred.EnabledTriggers() {
		trigger, ok := cfg.Trigger(name)
		if !ok || trigger.Code == "" {
			continue
		}
		types = append(types, trigger.Code)
		accepted = append(accepted, trigger.Code)
		if trigger.FullCode != "" {
			accepted = append(accepted, trigger.FullCode)
		}
	}
	return types, accepted
}

func eventCode(e partnerdomain.Event) string {
	if e.FullCode != "" {
		return e.FullCode
	}
	return e.Code
}

// truncate caps s at n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
