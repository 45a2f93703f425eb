package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/netbill/internal/auditcontext"
	billdomain "github.com/smallbiznis/netbill/internal/bill/domain"
	"github.com/smallbiznis/netbill/internal/clock"
	"github.com/smallbiznis/netbill/internal/config"
	"github.com/smallbiznis/netbill/internal/notification"
	obsmetrics "github.com/smallbiznis/netbill/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	JobGenerate = "generate_bills"
	JobOverdue  = "overdue_sweep"
)

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

type Params struct {
	fx.In

	Log      *zap.Logger
	Clock    clock.Clock
	GenID    *snowflake.Node
	Billing  *config.BillingConfigHolder
	BillSvc  billdomain.Service
	Locker   Locker
	Config   Config                       `optional:"true"`
	Metrics  *obsmetrics.SchedulerMetrics `optional:"true"`
	Notifier notification.Notifier        `optional:"true"`
}

type Scheduler struct {
	log      *zap.Logger
	cfg      Config
	genID    *snowflake.Node
	clock    clock.Clock
	billing  *config.BillingConfigHolder
	billSvc  billdomain.Service
	locker   Locker
	metrics  *obsmetrics.SchedulerMetrics
	notifier notification.Notifier
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Clock == nil || p.GenID == nil || p.Billing == nil || p.BillSvc == nil || p.Locker == nil {
		return nil, ErrInvalidConfig
	}
	metrics := p.Metrics
	if metrics == nil {
		metrics = obsmetrics.Scheduler()
	}
	return &Scheduler{
		log:      p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:      p.Config.withDefaults(),
		genID:    p.GenID,
		clock:    p.Clock,
		billing:  p.Billing,
		billSvc:  p.BillSvc,
		locker:   p.Locker,
		metrics:  metrics,
		notifier: p.Notifier,
	}, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	batchSize int,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	key := lockKeyPrefix + name
	token, ok, err := s.locker.TryLock(parent, key, s.cfg.LockTTL)
	if err != nil {
		s.metrics.IncJobError(name, err)
		return fmt.Errorf("%s: acquire lock: %w", name, err)
	}
	if !ok {
		s.metrics.IncJobError(name, obsmetrics.ErrLockNotAcquired)
		s.log.Info("job skipped, lock held elsewhere", zap.String("job", name))
		return nil
	}
	defer func() {
		if err := s.locker.Release(context.WithoutCancel(parent), key, token); err != nil {
			s.log.Warn("release job lock", zap.String("job", name), zap.Error(err))
		}
	}()

	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx = auditcontext.WithActor(ctx, auditcontext.ActorTypeSystem, "scheduler", "")
	ctx, run := s.beginRun(ctx, name, batchSize)
	s.metrics.IncJobRun(name)

	err = fn(ctx)
	s.metrics.ObserveJobDuration(name, s.clock.Now().Sub(start))
	run.finish(s.clock.Now(), err)
	if err == nil {
		return nil
	}

	s.metrics.IncJobError(name, err)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		// Soft timeout: the next tick picks the work up again.
		s.metrics.IncJobTimeout(name)
		run.log.Warn("scheduler.job.timeout",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

// RunOnce generates the current month's bills on the configured day and
// refreshes the overdue gauges on every tick. The day is read on the
// operator's calendar. Ticks after the generate day run again so a missed
// day is caught up; Generate only fills in bills that are missing.
func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	schedule := s.billing.Get().Schedule
	generateDay := schedule.GenerateDay
	if generateDay <= 0 {
		generateDay = 1
	}
	now := s.clock.Now().In(schedule.Location())

	if s.isJobEnabled(JobGenerate) && now.Day() >= generateDay {
		err = errors.Join(err, s.runJob(parent, JobGenerate, 0, s.cfg.GenerateTimeout, func(ctx context.Context) error {
			return s.GenerateJob(ctx, int(now.Month()), now.Year())
		}))
	}
	if s.isJobEnabled(JobOverdue) {
		err = errors.Join(err, s.runJob(parent, JobOverdue, s.cfg.OverdueBatchLimit, s.cfg.OverdueTimeout, s.OverdueJob))
	}

	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()
	nextRun := s.clock.Now()

	for {
		if lag := s.clock.Now().Sub(nextRun); lag > 0 {
			s.metrics.ObserveRunLoopLag(lag)
		}
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}
		nextRun = nextRun.Add(s.cfg.RunInterval)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	// Empty list enables every job.
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(strings.TrimSpace(enabled), jobName) {
			return true
		}
	}
	return false
}

func (s *Scheduler) GenerateJob(ctx context.Context, month, year int) error {
	run := runFromContext(ctx)
	res, err := s.billSvc.Generate(ctx, billdomain.GenerateRequest{Month: month, Year: year})
	if err != nil {
		s.jobFailed(ctx, "scheduler.generate.failed", err,
			zap.Int("billing_month", month),
			zap.Int("billing_year", year),
		)
		return err
	}

	run.addProcessed(res.CreatedCount)
	s.metrics.AddBatchProcessed(JobGenerate, "bill", res.CreatedCount)
	for _, failure := range res.Failures {
		run.addFailed()
		s.logger(ctx).Warn("scheduler.generate.customer_failed",
			zap.String("customer_id", failure.CustomerID.String()),
			zap.String("customer_name", failure.CustomerName),
			zap.String("kind", string(failure.Kind)),
			zap.String("message", failure.Message),
		)
	}
	s.logger(ctx).Info("scheduler.generate.done",
		zap.Int("billing_month", month),
		zap.Int("billing_year", year),
		zap.Int("created", res.CreatedCount),
		zap.Int("skipped", res.Skipped),
		zap.Int("failed", len(res.Failures)),
		zap.Int64("total_amount", res.TotalAmount),
	)
	return nil
}

func (s *Scheduler) OverdueJob(ctx context.Context) error {
	run := runFromContext(ctx)
	bills, err := s.billSvc.ListOverdue(ctx, billdomain.OverdueRequest{
		AsOf:  s.clock.Now(),
		Limit: s.cfg.OverdueBatchLimit,
	})
	if err != nil {
		s.jobFailed(ctx, "scheduler.overdue.failed", err)
		return err
	}

	var outstanding int64
	for _, b := range bills {
		outstanding += b.RemainingAmount
	}
	s.metrics.SetOverdue(len(bills), outstanding)
	run.addProcessed(len(bills))
	s.metrics.AddBatchProcessed(JobOverdue, "bill", len(bills))
	reminded := s.remindOverdue(ctx, bills)

	fields := []zap.Field{
		zap.Int("overdue_count", len(bills)),
		zap.Int64("overdue_amount", outstanding),
		zap.Int("reminded", reminded),
	}
	if len(bills) >= s.cfg.OverdueBatchLimit {
		s.logger(ctx).Warn("scheduler.overdue.truncated", append(fields, zap.Int("limit", s.cfg.OverdueBatchLimit))...)
		return nil
	}
	s.logger(ctx).Info("scheduler.overdue.done", fields...)
	return nil
}

// remindOverdue sends one reminder per overdue bill and returns how many were
// delivered. Failures are logged and do not fail the sweep.
func (s *Scheduler) remindOverdue(ctx context.Context, bills []billdomain.Bill) int {
	if s.notifier == nil {
		return 0
	}
	now := s.clock.Now()
	delivered := 0
	for _, b := range bills {
		if ctx.Err() != nil {
			break
		}
		if err := s.notifier.NotifyPaymentReminder(ctx, b.Reminder(now)); err != nil {
			s.logger(ctx).Debug("scheduler.overdue.reminder_failed",
				zap.String("bill_number", b.BillNumber),
				zap.Error(err),
			)
			continue
		}
		delivered++
	}
	return delivered
}
