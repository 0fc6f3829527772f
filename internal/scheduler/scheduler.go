package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/orderbridge/internal/clock"
	dispatchdomain "github.com/smallbiznis/orderbridge/internal/dispatch/domain"
	ingestiondomain "github.com/smallbiznis/orderbridge/internal/ingestion/domain"
	obsmetrics "github.com/smallbiznis/orderbridge/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var (
	// ErrTickInProgress is returned when a tick starts while another one
	// is still running, here or on another worker holding the lock.
	ErrTickInProgress = errors.New("tick_in_progress")
	ErrInvalidConfig  = errors.New("invalid_scheduler_config")
)

// TickLock guards ticks across worker processes. The lease key and its
// lifetime belong to the implementation.
type TickLock interface {
	Acquire(ctx context.Context) (string, bool, error)
	Release(ctx context.Context, token string) error
}

type Params struct {
	fx.In

	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Ingestion ingestiondomain.Service
	Dispatch  dispatchdomain.Service
	Lock      TickLock                  `optional:"true"`
	Metrics   *obsmetrics.WorkerMetrics `optional:"true"`
	Config    Config                    `optional:"true"`
}

type Scheduler struct {
	log       *zap.Logger
	cfg       Config
	genID     *snowflake.Node
	clock     clock.Clock
	ingestion ingestiondomain.Service
	dispatch  dispatchdomain.Service
	lock      TickLock
	metrics   *obsmetrics.WorkerMetrics

	running  atomic.Bool
	inflight sync.WaitGroup
}

type job struct {
	name           string
	defaultEnabled bool
	run            func(ctx context.Context) error
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.GenID == nil || p.Clock == nil || p.Ingestion == nil || p.Dispatch == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:       p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:       p.Config.withDefaults(),
		genID:     p.GenID,
		clock:     p.Clock,
		ingestion: p.Ingestion,
		dispatch:  p.Dispatch,
		lock:      p.Lock,
		metrics:   p.Metrics,
	}, nil
}

func (s *Scheduler) jobs() []job {
	return []job{
		{name: JobPartnerSync, defaultEnabled: true, run: s.PartnerSyncJob},
		{name: JobExpireOffers, defaultEnabled: false, run: s.ExpireOffersJob},
	}
}

// Tick runs every enabled job once. It returns ErrTickInProgress without
// doing any work when a previous tick has not finished.
func (s *Scheduler) Tick(parent context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		s.metrics.IncTickSkipped(obsmetrics.TickSkippedInProgress)
		s.log.Warn("scheduler.tick.skipped", zap.String("reason", obsmetrics.TickSkippedInProgress))
		return ErrTickInProgress
	}
	defer s.running.Store(false)

	ctx, cancel := context.WithTimeout(parent, s.cfg.TickTimeout)
	defer cancel()

	if s.lock != nil {
		token, ok, err := s.lock.Acquire(ctx)
		if err != nil {
			// Fall back to the in-process guard when redis is unreachable.
			s.log.Warn("scheduler.lock.failed", zap.Error(err))
		} else if !ok {
			s.metrics.IncTickSkipped(obsmetrics.TickSkippedLockHeld)
			s.log.Info("scheduler.tick.skipped", zap.String("reason", obsmetrics.TickSkippedLockHeld))
			return ErrTickInProgress
		} else {
			defer func() {
				if err := s.lock.Release(context.Background(), token); err != nil {
					s.log.Warn("scheduler.lock.release_failed", zap.Error(err))
				}
			}()
		}
	}

	var err error
	for _, j := range s.jobs() {
		if !s.isJobEnabled(j) {
			continue
		}
		err = errors.Join(err, s.runJob(ctx, j.name, j.run))
	}
	return err
}

func (s *Scheduler) runJob(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	start := s.clock.Now()
	ctx, run := s.startJobRun(ctx, name)
	s.logJobStart(run)
	s.metrics.IncJobRun(name)

	err := fn(ctx)
	s.metrics.ObserveJobDuration(name, s.clock.Now().Sub(start))
	if err != nil {
		run.IncError()
	}
	s.logJobFinish(run, err)
	if err == nil {
		return nil
	}

	s.metrics.IncJobError(name, err)
	if errors.Is(err, context.DeadlineExceeded) {
		// Unfinished work is picked up again on the next tick.
		return nil
	}
	return fmt.Errorf("%s: %w", name, err)
}

// RunForever fires a tick every poll interval until ctx is cancelled. Ticks
// run in their own goroutine so a slow tick makes the next one skip rather
// than queue. It returns once the in-flight tick has finished.
func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()
	defer s.inflight.Wait()

	nextRun := s.clock.Now()
	s.startTick(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		nextRun = nextRun.Add(s.cfg.PollInterval)
		if lag := s.clock.Now().Sub(nextRun); lag > 0 {
			s.metrics.ObserveRunLoopLag(lag)
		}
		s.startTick(ctx)
	}
}

func (s *Scheduler) startTick(ctx context.Context) {
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		err := s.Tick(ctx)
		if err != nil && !errors.Is(err, ErrTickInProgress) && ctx.Err() == nil {
			s.log.Warn("scheduler.tick.failed", zap.Error(err))
		}
	}()
}

func (s *Scheduler) isJobEnabled(j job) bool {
	if len(s.cfg.EnabledJobs) == 0 {
		return j.defaultEnabled
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, j.name) {
			return true
		}
	}
	return false
}

// PartnerSyncJob polls every active credential once.
func (s *Scheduler) PartnerSyncJob(ctx context.Context) error {
	report, err := s.ingestion.SyncAll(ctx)
	if report != nil {
		if run := jobRunFromContext(ctx); run != nil {
			run.AddProcessed(report.Credentials)
			run.errorCount += report.Failed
		}
	}
	return err
}

// ExpireOffersJob marks offers past their acceptance window as expired.
func (s *Scheduler) ExpireOffersJob(ctx context.Context) error {
	n, err := s.dispatch.ExpireOffers(ctx, s.clock.Now())
	if run := jobRunFromContext(ctx); run != nil {
		run.AddProcessed(int(n))
	}
	return err
}
