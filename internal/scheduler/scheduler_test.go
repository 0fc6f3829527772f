package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/smallbiznis/orderbridge/internal/clock"
	credentialdomain "github.com/smallbiznis/orderbridge/internal/credential/domain"
	deliveryjobdomain "github.com/smallbiznis/orderbridge/internal/deliveryjob/domain"
	dispatchdomain "github.com/smallbiznis/orderbridge/internal/dispatch/domain"
	ingestiondomain "github.com/smallbiznis/orderbridge/internal/ingestion/domain"
	matchingdomain "github.com/smallbiznis/orderbridge/internal/matching/domain"
	obsmetrics "github.com/smallbiznis/orderbridge/internal/observability/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// Mocks for dependencies

type ingestionStub struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
	err     error
}

func (s *ingestionStub) SyncAll(ctx context.Context) (*ingestiondomain.TickReport, error) {
	s.calls.Add(1)
	if s.started != nil {
		s.started <- struct{}{}
	}
	if s.release != nil {
		select {
		case <-s.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return &ingestiondomain.TickReport{Credentials: 1, Succeeded: 1}, s.err
}

func (s *ingestionStub) SyncCredential(context.Context, credentialdomain.Credential) (*ingestiondomain.SyncReport, error) {
	return &ingestiondomain.SyncReport{}, nil
}

type dispatchStub struct {
	expired atomic.Int32
	err     error
}

func (s *dispatchStub) Dispatch(context.Context, *deliveryjobdomain.Job, []matchingdomain.Candidate, time.Duration) (*dispatchdomain.Result, error) {
	return &dispatchdomain.Result{}, nil
}

func (s *dispatchStub) ExpireOffers(context.Context, time.Time) (int64, error) {
	s.expired.Add(1)
	return 2, s.err
}

func (s *dispatchStub) ListOffers(context.Context, snowflake.ID) ([]dispatchdomain.Offer, error) {
	return nil, nil
}

type lockStub struct {
	mu       sync.Mutex
	held     bool
	err      error
	released int
	token    string
}

func (l *lockStub) Acquire(context.Context) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return "", false, l.err
	}
	if l.held {
		return "", false, nil
	}
	l.held = true
	return "owner", true, nil
}

func (l *lockStub) Release(_ context.Context, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.token = token
	l.held = false
	l.released++
	return nil
}

func counterValue(t *testing.T, registry *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := registry.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.Metric {
			if labelsMatch(metric, labels) {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func labelsMatch(metric *dto.Metric, labels map[string]string) bool {
	matched := 0
	for _, label := range metric.Label {
		if want, ok := labels[label.GetName()]; ok {
			if want != label.GetValue() {
				return false
			}
			matched++
		}
	}
	return matched == len(labels)
}

func newTestScheduler(t *testing.T, ing *ingestionStub, disp *dispatchStub, cfg Config, lock TickLock) (*Scheduler, *prometheus.Registry) {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	registry := prometheus.NewRegistry()
	metrics := obsmetrics.NewWorkerMetrics(registry, obsmetrics.Config{Environment: "test"})

	sched, err := New(Params{
		Log:       zap.NewNop(),
		GenID:     node,
		Clock:     clock.NewFakeClock(time.Date(2026, 5, 4, 18, 0, 0, 0, time.UTC)),
		Ingestion: ing,
		Dispatch:  disp,
		Lock:      lock,
		Metrics:   metrics,
		Config:    cfg,
	})
	require.NoError(t, err)
	return sched, registry
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := New(Params{Log: zap.NewNop()})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestTick_OverlappingTickIsSkipped(t *testing.T) {
	ing := &ingestionStub{started: make(chan struct{}, 1), release: make(chan struct{})}
	sched, registry := newTestScheduler(t, ing, &dispatchStub{}, Config{}, nil)

	done := make(chan error, 1)
	go func() { done <- sched.Tick(context.Background()) }()
	<-ing.started

	err := sched.Tick(context.Background())
	assert.ErrorIs(t, err, ErrTickInProgress)
	assert.Equal(t, int32(1), ing.calls.Load())
	assert.Equal(t, 1.0, counterValue(t, registry, "orderbridge_scheduler_ticks_skipped_total", map[string]string{"reason": obsmetrics.TickSkippedInProgress}))

	close(ing.release)
	require.NoError(t, <-done)

	// The guard is cleared once the slow tick finishes.
	ing.started = nil
	require.NoError(t, sched.Tick(context.Background()))
	assert.Equal(t, int32(2), ing.calls.Load())
}

func TestTick_GuardClearedAfterFailure(t *testing.T) {
	ing := &ingestionStub{err: errors.New("list credentials: db down")}
	sched, _ := newTestScheduler(t, ing, &dispatchStub{}, Config{}, nil)

	err := sched.Tick(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), JobPartnerSync)

	err = sched.Tick(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrTickInProgress)
	assert.Equal(t, int32(2), ing.calls.Load())
}

func TestTick_DefaultJobs(t *testing.T) {
	ing := &ingestionStub{}
	disp := &dispatchStub{}
	sched, _ := newTestScheduler(t, ing, disp, Config{}, nil)

	require.NoError(t, sched.Tick(context.Background()))
	assert.Equal(t, int32(1), ing.calls.Load())
	assert.Equal(t, int32(0), disp.expired.Load())
}

func TestTick_EnabledJobsOverrideDefaults(t *testing.T) {
	ing := &ingestionStub{}
	disp := &dispatchStub{}
	sched, _ := newTestScheduler(t, ing, disp, Config{EnabledJobs: []string{"EXPIRE_OFFERS"}}, nil)

	require.NoError(t, sched.Tick(context.Background()))
	assert.Equal(t, int32(0), ing.calls.Load())
	assert.Equal(t, int32(1), disp.expired.Load())
}

func TestTick_JoinsJobErrors(t *testing.T) {
	ing := &ingestionStub{err: errors.New("sync failed")}
	disp := &dispatchStub{err: errors.New("expire failed")}
	sched, registry := newTestScheduler(t, ing, disp, Config{EnabledJobs: []string{JobPartnerSync, JobExpireOffers}}, nil)

	err := sched.Tick(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "partner_sync: sync failed")
	assert.Contains(t, err.Error(), "expire_offers: expire failed")
	assert.Equal(t, 1.0, counterValue(t, registry, "orderbridge_scheduler_job_runs_total", map[string]string{"job": JobPartnerSync}))
	assert.Equal(t, 1.0, counterValue(t, registry, "orderbridge_scheduler_job_errors_total", map[string]string{"job": JobExpireOffers}))
}

func TestTick_DistributedLockHeldElsewhere(t *testing.T) {
	ing := &ingestionStub{}
	lock := &lockStub{held: true}
	sched, registry := newTestScheduler(t, ing, &dispatchStub{}, Config{}, lock)

	err := sched.Tick(context.Background())
	assert.ErrorIs(t, err, ErrTickInProgress)
	assert.Equal(t, int32(0), ing.calls.Load())
	assert.Equal(t, 1.0, counterValue(t, registry, "orderbridge_scheduler_ticks_skipped_total", map[string]string{"reason": obsmetrics.TickSkippedLockHeld}))
}

func TestTick_DistributedLockReleased(t *testing.T) {
	ing := &ingestionStub{}
	lock := &lockStub{}
	sched, _ := newTestScheduler(t, ing, &dispatchStub{}, Config{}, lock)

	require.NoError(t, sched.Tick(context.Background()))
	assert.Equal(t, 1, lock.released)
	assert.Equal(t, "owner", lock.token)
	assert.False(t, lock.held)
}

func TestTick_LockErrorFallsBackToLocalGuard(t *testing.T) {
	ing := &ingestionStub{}
	lock := &lockStub{err: errors.New("redis: connection refused")}
	sched, _ := newTestScheduler(t, ing, &dispatchStub{}, Config{}, lock)

	require.NoError(t, sched.Tick(context.Background()))
	assert.Equal(t, int32(1), ing.calls.Load())
}

func TestRunForever_StopsOnCancelAfterInflightTick(t *testing.T) {
	ing := &ingestionStub{}
	sched, _ := newTestScheduler(t, ing, &dispatchStub{}, Config{PollInterval: 10 * time.Millisecond}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sched.RunForever(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return ing.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunForever did not return after cancel")
	}
	assert.False(t, sched.running.Load())
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{TickTimeout: 10 * time.Minute}.withDefaults()
	assert.Equal(t, 30*time.Second, cfg.PollInterval)
	assert.Equal(t, 10*time.Minute, cfg.TickTimeout)
}
