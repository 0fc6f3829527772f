package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

const (
	JobReasonDeadlineExceeded     = "deadline_exceeded"
	JobReasonDBLockTimeout        = "db_lock_timeout"
	JobReasonSerializationFailure = "serialization_failure"
	JobReasonUniqueViolation      = "unique_violation"
	JobReasonDB                   = "db"
	JobReasonUnknown              = "unknown"
)

const (
	TickSkippedInProgress = "in_progress"
	TickSkippedLockHeld   = "lock_held"
)

// WorkerMetrics captures polling worker health signals.
type WorkerMetrics struct {
	jobRuns         *prometheus.CounterVec
	jobDuration     *prometheus.HistogramVec
	jobErrors       *prometheus.CounterVec
	ticksSkipped    *prometheus.CounterVec
	runLoopLag      prometheus.Histogram
	syncs           *prometheus.CounterVec
	syncErrors      *prometheus.CounterVec
	events          *prometheus.CounterVec
	partnerRequests *prometheus.HistogramVec
	candidates      prometheus.Histogram
	offers          prometheus.Counter
}

var (
	workerMetricsOnce sync.Once
	workerMetrics     *WorkerMetrics
)

// Worker returns the singleton worker metrics registry.
func Worker() *WorkerMetrics {
	return WorkerWithConfig(Config{})
}

// WorkerWithConfig returns the singleton worker metrics registry using config labels.
func WorkerWithConfig(cfg Config) *WorkerMetrics {
	workerMetricsOnce.Do(func() {
		workerMetrics = newWorkerMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return workerMetrics
}

// NewWorkerMetrics registers a fresh set of worker metrics on registerer.
func NewWorkerMetrics(registerer prometheus.Registerer, cfg Config) *WorkerMetrics {
	return newWorkerMetrics(registerer, cfg)
}

// ResetWorkerMetricsForTest resets the singleton for tests.
func ResetWorkerMetricsForTest() {
	workerMetricsOnce = sync.Once{}
	workerMetrics = nil
}

func newWorkerMetrics(registerer prometheus.Registerer, cfg Config) *WorkerMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "orderbridge"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	m := &WorkerMetrics{
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "orderbridge_scheduler_job_runs_total",
			Help:        "Scheduler job runs by name.",
			ConstLabels: constLabels,
		}, []string{"job"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "orderbridge_scheduler_job_duration_seconds",
			Help:        "Scheduler job latency.",
			Buckets:     []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60, 120, 300},
			ConstLabels: constLabels,
		}, []string{"job"}),
		jobErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "orderbridge_scheduler_job_errors_total",
			Help:        "Scheduler job errors by low-cardinality reason.",
			ConstLabels: constLabels,
		}, []string{"job", "reason"}),
		ticksSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "orderbridge_scheduler_ticks_skipped_total",
			Help:        "Ticks skipped because a previous tick was still running.",
			ConstLabels: constLabels,
		}, []string{"reason"}),
		runLoopLag: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "orderbridge_scheduler_runloop_lag_seconds",
			Help:        "Delay between the scheduled tick and the actual start.",
			Buckets:     []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			ConstLabels: constLabels,
		}),
		syncs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "orderbridge_partner_syncs_total",
			Help:        "Per-credential sync attempts by final status.",
			ConstLabels: constLabels,
		}, []string{"status"}),
		syncErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "orderbridge_partner_sync_errors_total",
			Help:        "Per-credential sync failures by reason and stage.",
			ConstLabels: constLabels,
		}, []string{"reason", "stage"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "orderbridge_partner_events_total",
			Help:        "Partner events handled by outcome.",
			ConstLabels: constLabels,
		}, []string{"outcome"}),
		partnerRequests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "orderbridge_partner_request_duration_seconds",
			Help:        "Partner API latency by operation and status class.",
			Buckets:     []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
			ConstLabels: constLabels,
		}, []string{"op", "status"}),
		candidates: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "orderbridge_dispatch_candidates",
			Help:        "Number of drivers offered each request.",
			Buckets:     []float64{0, 1, 2, 3, 5, 8, 13, 21, 34},
			ConstLabels: constLabels,
		}),
		offers: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "orderbridge_dispatch_offers_total",
			Help:        "Driver offers created.",
			ConstLabels: constLabels,
		}),
	}

	registerer.MustRegister(
		m.jobRuns,
		m.jobDuration,
		m.jobErrors,
		m.ticksSkipped,
		m.runLoopLag,
		m.syncs,
		m.syncErrors,
		m.events,
		m.partnerRequests,
		m.candidates,
		m.offers,
	)
	return m
}

func (m *WorkerMetrics) IncJobRun(job string) {
	if m == nil {
		return
	}
	m.jobRuns.WithLabelValues(job).Inc()
}

func (m *WorkerMetrics) ObserveJobDuration(job string, d time.Duration) {
	if m == nil {
		return
	}
	m.jobDuration.WithLabelValues(job).Observe(d.Seconds())
}

// IncJobError increments the job error counter with a classified reason.
func (m *WorkerMetrics) IncJobError(job string, err error) {
	if m == nil || err == nil {
		return
	}
	m.jobErrors.WithLabelValues(job, ClassifyJobReason(err)).Inc()
}

func (m *WorkerMetrics) IncTickSkipped(reason string) {
	if m == nil {
		return
	}
	m.ticksSkipped.WithLabelValues(reason).Inc()
}

func (m *WorkerMetrics) ObserveRunLoopLag(d time.Duration) {
	if m == nil {
		return
	}
	if d < 0 {
		d = 0
	}
	m.runLoopLag.Observe(d.Seconds())
}

func (m *WorkerMetrics) IncSync(status string) {
	if m == nil {
		return
	}
	m.syncs.WithLabelValues(status).Inc()
}

func (m *WorkerMetrics) IncSyncError(reason, stage string) {
	if m == nil {
		return
	}
	m.syncErrors.WithLabelValues(reason, stage).Inc()
}

func (m *WorkerMetrics) IncEvent(outcome string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(outcome).Inc()
}

// ObservePartnerRequest records latency; status is "2xx", "4xx", "5xx" or "network".
func (m *WorkerMetrics) ObservePartnerRequest(op, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.partnerRequests.WithLabelValues(op, status).Observe(d.Seconds())
}

func (m *WorkerMetrics) ObserveCandidates(n int) {
	if m == nil {
		return
	}
	m.candidates.Observe(float64(n))
}

func (m *WorkerMetrics) AddOffers(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.offers.Add(float64(n))
}

// ClassifyJobReason maps job errors to low-cardinality reasons.
func ClassifyJobReason(err error) string {
	if err == nil {
		return JobReasonUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return JobReasonDeadlineExceeded
	}
	if hasPGCode(err, "55P03") {
		return JobReasonDBLockTimeout
	}
	if hasPGCode(err, "40001") {
		return JobReasonSerializationFailure
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || hasPGCode(err, "23505") {
		return JobReasonUniqueViolation
	}
	if IsDBError(err) {
		return JobReasonDB
	}
	return JobReasonUnknown
}

// IsDBError reports whether err originates from the database layer.
func IsDBError(err error) bool {
	if err == nil || errors.Is(err, gorm.ErrRecordNotFound) {
		return false
	}
	if errors.Is(err, gorm.ErrInvalidDB) ||
		errors.Is(err, gorm.ErrInvalidTransaction) ||
		errors.Is(err, gorm.ErrInvalidData) ||
		errors.Is(err, gorm.ErrMissingWhereClause) ||
		errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr)
}

func hasPGCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}
