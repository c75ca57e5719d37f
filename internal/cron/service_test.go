package cron

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/healthoasis/wallet-backend/pkg/logger"
	"github.com/healthoasis/wallet-backend/pkg/metrics"
)

type fakeLock struct {
	held     bool
	releases int
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.held {
		return false, nil
	}
	f.held = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error {
	f.held = false
	f.releases++
	return nil
}

type testJob struct {
	name string
	run  func(ctx context.Context) error
	runs int
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(ctx context.Context) error {
	t.runs++
	if t.run == nil {
		return nil
	}
	return t.run(ctx)
}

func newTestService(t *testing.T, lock Lock, timeout time.Duration, jobs ...Job) (*Service, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	svc, err := NewService(ServiceParams{
		Logger:     logger.New(logger.Options{ServiceName: "cron-test", Output: &out}),
		Registry:   NewRegistry(jobs...),
		Lock:       lock,
		Metrics:    metrics.NewCronJobMetrics(prometheus.NewRegistry()),
		JobTimeout: timeout,
	})
	require.NoError(t, err)
	return svc, &out
}

func TestRunOnceKeepsGoingAfterFailure(t *testing.T) {
	ok := &testJob{name: "fx-rate-refresh"}
	bad := &testJob{name: "payment-event-retry", run: func(context.Context) error { return errors.New("boom") }}
	after := &testJob{name: "payment-event-audit"}
	lock := &fakeLock{}
	svc, _ := newTestService(t, lock, time.Second, ok, bad, after)

	err := svc.RunOnce(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "payment-event-retry: boom")
	require.Equal(t, 1, ok.runs)
	require.Equal(t, 1, bad.runs)
	require.Equal(t, 1, after.runs)
	require.Equal(t, 1, lock.releases)
	require.False(t, lock.held)
}

func TestRunOnceSkipsWhenLockHeldElsewhere(t *testing.T) {
	job := &testJob{name: "fx-rate-refresh"}
	lock := &fakeLock{held: true}
	svc, _ := newTestService(t, lock, 0, job)

	require.NoError(t, svc.RunOnce(context.Background()))
	require.Zero(t, job.runs)
	require.Zero(t, lock.releases)
	require.Equal(t, defaultInterval, svc.interval)
	require.Equal(t, defaultJobTimeout, svc.jobTimeout)
}

func TestJobTimeoutCancelsSlowJob(t *testing.T) {
	slow := &testJob{name: "slow", run: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}}
	next := &testJob{name: "next"}
	svc, out := newTestService(t, &fakeLock{}, 20*time.Millisecond, slow, next)

	err := svc.RunOnce(context.Background())
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, 1, next.runs)
	require.Contains(t, out.String(), `"outcome":"timeout"`)
}

func TestPanickingJobIsContained(t *testing.T) {
	boom := &testJob{name: "boom", run: func(context.Context) error { panic("nil ledger") }}
	next := &testJob{name: "next"}
	lock := &fakeLock{}
	svc, out := newTestService(t, lock, time.Second, boom, next)

	err := svc.RunOnce(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "panic: nil ledger")
	require.Equal(t, 1, next.runs)
	require.Equal(t, 1, lock.releases)
	require.Contains(t, out.String(), `"outcome":"panic"`)
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	job := &testJob{name: "once", run: func(context.Context) error {
		cancel()
		return nil
	}}
	svc, _ := newTestService(t, &fakeLock{}, time.Second, job)

	err := svc.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, job.runs)
}

func TestNewServiceValidates(t *testing.T) {
	_, err := NewService(ServiceParams{Lock: &fakeLock{}})
	require.Error(t, err)

	_, err = NewService(ServiceParams{Logger: logger.New(logger.Options{ServiceName: "cron-test"})})
	require.Error(t, err)
}
