// Package scheduler runs background jobs on cron specs with seconds.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/rewired-gh/pricepilot/internal/logger"
)

type Runner struct {
	cron    *cron.Cron
	baseCtx context.Context
	timeout time.Duration
}

// New creates a runner whose jobs derive their context from baseCtx and are
// cut off after timeout (no limit when zero). A job still running when its
// next tick fires is skipped.
func New(baseCtx context.Context, timeout time.Duration) *Runner {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	cl := cronLogger{zap: logger.L().Sugar()}
	return &Runner{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		baseCtx: baseCtx,
		timeout: timeout,
	}
}

// Add schedules job under a six-field cron spec.
func (r *Runner) Add(name, spec string, job func(context.Context)) (cron.EntryID, error) {
	return r.cron.AddFunc(spec, func() {
		ctx := r.baseCtx
		if r.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, r.timeout)
			defer cancel()
		}
		logger.Debug("Running job %s", name)
		job(ctx)
	})
}

// Entries returns the number of scheduled jobs.
func (r *Runner) Entries() int {
	return len(r.cron.Entries())
}

func (r *Runner) Start() {
	logger.Info("Scheduler started with %d jobs", r.Entries())
	r.cron.Start()
}

// Stop waits for running jobs to finish.
func (r *Runner) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	logger.Info("Scheduler stopped")
}

// cronLogger routes cron's own logging to zap.
type cronLogger struct {
	zap *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.zap.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.zap.Errorw(msg, append(keysAndValues, "error", err)...)
}
