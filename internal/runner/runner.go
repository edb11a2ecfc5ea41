// Package runner schedules the periodic background jobs: the SLA scan, the
// metrics snapshot and the session sweep. Jobs are registered explicitly at
// process start, each one panic-isolated so a failing run never kills the
// schedule, and the whole runner stops on shutdown.
package runner

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job is a named periodic task.
type Job struct {
	Name  string
	Every time.Duration
	Run   func(context.Context) error
}

// Runner owns the cron scheduler.
type Runner struct {
	cron   *cron.Cron
	logger *zap.Logger
}

// New builds a runner with panic recovery around every job.
func New(logger *zap.Logger) *Runner {
	cronLogger := zapCronLogger{logger: logger}
	return &Runner{
		cron:   cron.New(cron.WithChain(cron.Recover(cronLogger))),
		logger: logger,
	}
}

// Register schedules a job at its interval. Job errors are logged and do
// not affect subsequent runs.
func (r *Runner) Register(job Job) {
	logger := r.logger.With(zap.String("job", job.Name))
	r.cron.Schedule(cron.Every(job.Every), cron.FuncJob(func() {
		if err := job.Run(context.Background()); err != nil {
			logger.Error("background job failed", zap.Error(err))
		}
	}))
	logger.Info("background job registered", zap.Duration("every", job.Every))
}

// Start launches the scheduler.
func (r *Runner) Start() {
	r.cron.Start()
}

// Stop halts the scheduler and waits for in-flight jobs to finish.
func (r *Runner) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
}

type zapCronLogger struct {
	logger *zap.Logger
}

func (l zapCronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Info(msg, zap.Any("details", keysAndValues))
}

func (l zapCronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, zap.Error(err), zap.Any("details", keysAndValues))
}
