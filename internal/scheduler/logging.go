package scheduler

import (
	"context"
	"time"

	obscontext "github.com/smallbiznis/netbill/internal/observability/context"
	obslogger "github.com/smallbiznis/netbill/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/netbill/internal/observability/metrics"
	"go.uber.org/zap"
)

// jobRun tracks one execution of a job. Every line logged during the run
// carries its job name and run id.
type jobRun struct {
	job       string
	runID     string
	startedAt time.Time
	log       *zap.Logger

	processed int
	failed    int
}

type jobRunKey struct{}

func (s *Scheduler) beginRun(ctx context.Context, job string, batchSize int) (context.Context, *jobRun) {
	ctx = obscontext.WithActor(ctx, "system", "scheduler")
	run := &jobRun{
		job:       job,
		runID:     s.genID.Generate().String(),
		startedAt: s.clock.Now(),
	}
	run.log = obslogger.WithContext(ctx, s.log).With(
		zap.String("job", job),
		zap.String("run_id", run.runID),
	)
	run.log.Info("scheduler.job.start", zap.Int("batch_size", batchSize))
	return context.WithValue(ctx, jobRunKey{}, run), run
}

func runFromContext(ctx context.Context) *jobRun {
	run, _ := ctx.Value(jobRunKey{}).(*jobRun)
	return run
}

// logger returns the run logger when ctx belongs to a run.
func (s *Scheduler) logger(ctx context.Context) *zap.Logger {
	if run := runFromContext(ctx); run != nil {
		return run.log
	}
	return obslogger.WithContext(ctx, s.log)
}

func (r *jobRun) addProcessed(n int) {
	if r != nil && n > 0 {
		r.processed += n
	}
}

func (r *jobRun) addFailed() {
	if r != nil {
		r.failed++
	}
}

func (r *jobRun) finish(now time.Time, err error) {
	if err != nil && r.failed == 0 {
		r.failed = 1
	}
	level := zap.InfoLevel
	if r.failed > 0 {
		level = zap.WarnLevel
	}
	r.log.Log(level, "scheduler.job.finish",
		zap.Int64("duration_ms", now.Sub(r.startedAt).Milliseconds()),
		zap.Int("processed_count", r.processed),
		zap.Int("error_count", r.failed),
	)
}

// jobFailed logs err with its metric reason and counts it against the run.
func (s *Scheduler) jobFailed(ctx context.Context, msg string, err error, fields ...zap.Field) {
	runFromContext(ctx).addFailed()
	fields = append(fields,
		zap.String("error_type", obsmetrics.ClassifySchedulerJobReason(err)),
		zap.Error(err),
	)
	s.logger(ctx).Error(msg, fields...)
}
