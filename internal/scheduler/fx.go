package scheduler

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("scheduler",
	fx.Provide(ProvideConfig),
	fx.Provide(New),
	fx.Invoke(startLoop),
)

// startLoop runs the jobs in the background for the lifetime of the app.
func startLoop(lc fx.Lifecycle, cfg Config, sched *Scheduler, log *zap.Logger) {
	log = log.Named("scheduler")
	if !cfg.Enabled {
		log.Info("scheduler disabled")
		return
	}

	var cancel context.CancelFunc
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			var ctx context.Context
			ctx, cancel = context.WithCancel(context.Background())
			go sched.RunForever(ctx)

			log.Info("scheduler started",
				zap.Duration("interval", cfg.RunInterval),
				zap.Strings("jobs", cfg.EnabledJobs),
			)
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
