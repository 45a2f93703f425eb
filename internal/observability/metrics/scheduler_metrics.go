package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/netbill/internal/billingerr"
	"gorm.io/gorm"
)

const (
	SchedulerJobReasonDeadlineExceeded     = "deadline_exceeded"
	SchedulerJobReasonDBLockTimeout        = "db_lock_timeout"
	SchedulerJobReasonSerializationFailure = "serialization_failure"
	SchedulerJobReasonUniqueViolation      = "unique_violation"
	SchedulerJobReasonSequenceExhausted    = "sequence_exhausted"
	SchedulerJobReasonLockUnavailable      = "lock_unavailable"
	SchedulerJobReasonValidation           = "validation"
	SchedulerJobReasonUnknown              = "unknown"
)

// ErrLockNotAcquired is returned by job locks when another instance holds the lock.
var ErrLockNotAcquired = errors.New("lock_not_acquired")

// SchedulerMetrics captures billing scheduler health signals.
type SchedulerMetrics struct {
	jobRuns        *prometheus.CounterVec
	jobDuration    *prometheus.HistogramVec
	jobTimeouts    *prometheus.CounterVec
	jobErrors      *prometheus.CounterVec
	batchProcessed *prometheus.CounterVec
	runLoopLag     prometheus.Observer
	overdueBills   prometheus.Gauge
	overdueAmount  prometheus.Gauge
}

var (
	schedulerMetricsOnce sync.Once
	schedulerMetrics     *SchedulerMetrics
)

// Scheduler returns the singleton scheduler metrics registry.
func Scheduler() *SchedulerMetrics {
	return SchedulerWithConfig(Config{})
}

// SchedulerWithConfig returns the singleton scheduler metrics registry using config labels.
func SchedulerWithConfig(cfg Config) *SchedulerMetrics {
	schedulerMetricsOnce.Do(func() {
		schedulerMetrics = NewSchedulerMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return schedulerMetrics
}

// NewSchedulerMetrics registers a fresh set of scheduler collectors on registerer.
func NewSchedulerMetrics(registerer prometheus.Registerer, cfg Config) *SchedulerMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "netbill"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	jobRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "netbill_scheduler_job_runs_total",
		Help:        "Scheduler job runs by name.",
		ConstLabels: constLabels,
	}, []string{"job"})
	jobDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "netbill_scheduler_job_duration_seconds",
		Help:        "Scheduler job latency.",
		Buckets:     []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		ConstLabels: constLabels,
	}, []string{"job"})
	jobTimeouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "netbill_scheduler_job_timeouts_total",
		Help:        "Scheduler jobs that hit their timeout.",
		ConstLabels: constLabels,
	}, []string{"job"})
	jobErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "netbill_scheduler_job_errors_total",
		Help:        "Scheduler job errors by low-cardinality reason.",
		ConstLabels: constLabels,
	}, []string{"job", "reason"})
	batchProcessed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "netbill_scheduler_batch_processed_total",
		Help:        "Items processed by scheduler jobs.",
		ConstLabels: constLabels,
	}, []string{"job", "resource"})
	runLoopLag := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "netbill_scheduler_runloop_lag_seconds",
		Help:        "Scheduler run loop lag beyond the configured interval.",
		Buckets:     []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		ConstLabels: constLabels,
	})
	overdueBills := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "netbill_overdue_bills",
		Help:        "Bills past their due date with a remaining balance.",
		ConstLabels: constLabels,
	})
	overdueAmount := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "netbill_overdue_amount",
		Help:        "Sum of remaining amounts on overdue bills, smallest currency unit.",
		ConstLabels: constLabels,
	})

	registerer.MustRegister(
		jobRuns,
		jobDuration,
		jobTimeouts,
		jobErrors,
		batchProcessed,
		runLoopLag,
		overdueBills,
		overdueAmount,
	)

	return &SchedulerMetrics{
		jobRuns:        jobRuns,
		jobDuration:    jobDuration,
		jobTimeouts:    jobTimeouts,
		jobErrors:      jobErrors,
		batchProcessed: batchProcessed,
		runLoopLag:     runLoopLag,
		overdueBills:   overdueBills,
		overdueAmount:  overdueAmount,
	}
}

// IncJobRun increments the run counter for a scheduler job.
func (m *SchedulerMetrics) IncJobRun(job string) {
	if m == nil || m.jobRuns == nil {
		return
	}
	m.jobRuns.WithLabelValues(job).Inc()
}

// ObserveJobDuration records scheduler job latency in seconds.
func (m *SchedulerMetrics) ObserveJobDuration(job string, duration time.Duration) {
	if m == nil || m.jobDuration == nil {
		return
	}
	m.jobDuration.WithLabelValues(job).Observe(duration.Seconds())
}

func (m *SchedulerMetrics) IncJobTimeout(job string) {
	if m == nil || m.jobTimeouts == nil {
		return
	}
	m.jobTimeouts.WithLabelValues(job).Inc()
}

// IncJobError increments the scheduler job error counter with classification.
func (m *SchedulerMetrics) IncJobError(job string, err error) {
	if m == nil || err == nil || m.jobErrors == nil {
		return
	}
	m.jobErrors.WithLabelValues(job, ClassifySchedulerJobReason(err)).Inc()
}

func (m *SchedulerMetrics) AddBatchProcessed(job, resource string, count int) {
	if m == nil || count <= 0 || m.batchProcessed == nil {
		return
	}
	m.batchProcessed.WithLabelValues(job, resource).Add(float64(count))
}

// ObserveRunLoopLag records lag between the scheduled tick and actual run start.
func (m *SchedulerMetrics) ObserveRunLoopLag(duration time.Duration) {
	if m == nil || m.runLoopLag == nil {
		return
	}
	m.runLoopLag.Observe(max(duration, 0).Seconds())
}

func (m *SchedulerMetrics) SetOverdue(count int, amount int64) {
	if m == nil {
		return
	}
	m.overdueBills.Set(float64(count))
	m.overdueAmount.Set(float64(amount))
}

// ClassifySchedulerJobReason maps scheduler job errors to low-cardinality reasons.
func ClassifySchedulerJobReason(err error) string {
	switch {
	case err == nil:
		return SchedulerJobReasonUnknown
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		return SchedulerJobReasonDeadlineExceeded
	case errors.Is(err, ErrLockNotAcquired):
		return SchedulerJobReasonLockUnavailable
	case hasPGCode(err, pgerrcode.LockNotAvailable):
		return SchedulerJobReasonDBLockTimeout
	case hasPGCode(err, pgerrcode.SerializationFailure):
		return SchedulerJobReasonSerializationFailure
	case errors.Is(err, gorm.ErrDuplicatedKey) || hasPGCode(err, pgerrcode.UniqueViolation):
		return SchedulerJobReasonUniqueViolation
	}

	switch billingerr.KindOf(err) {
	case billingerr.KindSequenceExhausted:
		return SchedulerJobReasonSequenceExhausted
	case billingerr.KindValidation:
		return SchedulerJobReasonValidation
	default:
		return SchedulerJobReasonUnknown
	}
}

func hasPGCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}
