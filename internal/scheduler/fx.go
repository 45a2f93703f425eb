package scheduler

import (
	"context"

	"github.com/smallbiznis/netbill/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("scheduler",
	fx.Provide(ProvideConfig),
	fx.Provide(NewLocker),
	fx.Provide(New),
	fx.Invoke(NewScheduler),
)

// NewScheduler starts the run loop when the scheduler is enabled in config.
func NewScheduler(lc fx.Lifecycle, cfg config.Config, log *zap.Logger, sched *Scheduler) {
	if !cfg.SchedulerEnabled {
		log.Info("scheduler disabled")
		return
	}

	var cancel context.CancelFunc
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			var ctx context.Context
			ctx, cancel = context.WithCancel(context.Background())
			go sched.RunForever(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			if cancel != nil {
				cancel()
			}
			return nil
		},
	})
}
