package scheduler

import (
	"context"

	"github.com/smallbiznis/orderbridge/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("scheduler",
	fx.Provide(ProvideConfig),
	fx.Provide(provideTickLock),
	fx.Provide(New),
	fx.Invoke(NewScheduler),
)

func provideTickLock(lock *ratelimit.TickLock) TickLock {
	if lock == nil {
		return nil
	}
	return lock
}

func NewScheduler(lc fx.Lifecycle, sched *Scheduler, log *zap.Logger) {
	var (
		cancel context.CancelFunc
		done   chan struct{}
	)
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			var ctx context.Context
			ctx, cancel = context.WithCancel(context.Background())
			done = make(chan struct{})
			go func() {
				defer close(done)
				sched.RunForever(ctx)
			}()
			log.Info("scheduler.started", zap.Duration("poll_interval", sched.cfg.PollInterval))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-ctx.Done():
				return ctx.Err()
			}
			log.Info("scheduler.stopped")
			return nil
		},
	})
}
