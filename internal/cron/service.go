package cron

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"go.uber.org/multierr"

	"github.com/healthoasis/wallet-backend/pkg/logger"
	"github.com/healthoasis/wallet-backend/pkg/metrics"
)

const (
	defaultInterval   = 15 * time.Minute
	defaultJobTimeout = 5 * time.Minute
)

// ServiceParams configure the cron service. JobTimeout bounds a single job
// so one slow upstream cannot eat the whole lease.
type ServiceParams struct {
	Logger     *logger.Logger
	Registry   *Registry
	Lock       Lock
	Metrics    *metrics.CronJobMetrics
	Interval   time.Duration
	JobTimeout time.Duration
}

// Service runs every registered job once per interval while holding the
// cluster-wide lock. Jobs run in registration order and a failing job does
// not stop the ones after it.
type Service struct {
	logg       *logger.Logger
	registry   *Registry
	lock       Lock
	metrics    *metrics.CronJobMetrics
	interval   time.Duration
	jobTimeout time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	if params.Lock == nil {
		return nil, errors.New("lock required")
	}
	svc := &Service{
		logg:       params.Logger,
		registry:   params.Registry,
		lock:       params.Lock,
		metrics:    params.Metrics,
		interval:   params.Interval,
		jobTimeout: params.JobTimeout,
	}
	if svc.registry == nil {
		svc.registry = NewRegistry()
	}
	if svc.interval <= 0 {
		svc.interval = defaultInterval
	}
	if svc.jobTimeout <= 0 {
		svc.jobTimeout = defaultJobTimeout
	}
	return svc, nil
}

// RunOnce runs a single cycle and returns the combined job failures, so a
// one-shot invocation can exit non-zero.
func (s *Service) RunOnce(ctx context.Context) error {
	return s.cycle(ctx)
}

// Run cycles immediately and then on every tick until ctx is done. Job
// failures are logged, not returned.
func (s *Service) Run(ctx context.Context) error {
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"interval":    s.interval.String(),
		"job_timeout": s.jobTimeout.String(),
		"jobs":        s.registry.Names(),
	}), "cron service started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		if err := s.cycle(ctx); err != nil && ctx.Err() == nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "cron cycle finished with failures")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Service) cycle(ctx context.Context) (err error) {
	held, err := s.lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire cron lock: %w", err)
	}
	if !held {
		s.logg.Info(ctx, "cron lock held elsewhere, skipping cycle")
		s.metrics.IncSkipped()
		return nil
	}
	defer func() {
		// Release on a fresh context so shutdown still frees the lease.
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if relErr := s.lock.Release(releaseCtx); relErr != nil {
			s.logg.Error(ctx, "release cron lock", relErr)
		}
	}()

	started := time.Now()
	var failed []string
	for _, job := range s.registry.Jobs() {
		if ctx.Err() != nil {
			break
		}
		if jobErr := s.run(ctx, job); jobErr != nil {
			failed = append(failed, job.Name())
			err = multierr.Append(err, fmt.Errorf("%s: %w", job.Name(), jobErr))
		}
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"duration_ms": time.Since(started).Milliseconds(),
		"failed":      failed,
	}), "cron cycle complete")
	return err
}

// run executes one job under its own deadline. A panicking job is reported
// as a failure instead of killing the worker.
func (s *Service) run(ctx context.Context, job Job) (err error) {
	name := job.Name()
	jobCtx := s.logg.WithFields(ctx, map[string]any{"job": name, "event": "cron.job"})
	jobCtx, cancel := context.WithTimeout(jobCtx, s.jobTimeout)
	defer cancel()

	started := time.Now()
	outcome := metrics.OutcomeSuccess
	defer func() {
		if rec := recover(); rec != nil {
			outcome = metrics.OutcomePanic
			err = fmt.Errorf("panic: %v", rec)
			jobCtx = s.logg.WithField(jobCtx, "stack", string(debug.Stack()))
		}
		took := time.Since(started)
		s.metrics.ObserveRun(name, outcome, took)
		logCtx := s.logg.WithFields(jobCtx, map[string]any{"duration_ms": took.Milliseconds(), "outcome": outcome})
		if err != nil {
			s.logg.Error(logCtx, "cron job failed", err)
			return
		}
		s.logg.Info(logCtx, "cron job complete")
	}()

	err = job.Run(jobCtx)
	switch {
	case err != nil && errors.Is(jobCtx.Err(), context.DeadlineExceeded):
		outcome = metrics.OutcomeTimeout
	case err != nil:
		outcome = metrics.OutcomeFailure
	}
	return err
}
