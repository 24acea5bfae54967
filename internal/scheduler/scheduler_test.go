package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/smallbiznis/labinventory/internal/clock"
	"github.com/smallbiznis/labinventory/internal/lock"
	systemdomain "github.com/smallbiznis/labinventory/internal/system/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubSystems struct {
	systemdomain.Service

	mu     sync.Mutex
	calls  []int
	result systemdomain.RepairResult
	err    error
	block  chan struct{}
}

func (s *stubSystems) RepairPending(ctx context.Context, limit int) (systemdomain.RepairResult, error) {
	s.mu.Lock()
	s.calls = append(s.calls, limit)
	block := s.block
	s.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return systemdomain.RepairResult{}, ctx.Err()
		}
	}
	return s.result, s.err
}

func (s *stubSystems) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func newTestScheduler(t *testing.T, systems systemdomain.Service, locker lock.Locker, cfg Config) (*Scheduler, *prometheus.Registry) {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	reg := prometheus.NewRegistry()
	s, err := New(Params{
		Log:        zap.NewNop(),
		Systems:    systems,
		Locker:     locker,
		GenID:      node,
		Clock:      clock.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)),
		Config:     cfg,
		Registerer: reg,
	})
	require.NoError(t, err)
	return s, reg
}

func TestNewRejectsMissingDependencies(t *testing.T) {
	_, err := New(Params{Log: zap.NewNop()})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	assert.Equal(t, 5*time.Minute, cfg.RunInterval)
	assert.Equal(t, 50, cfg.BatchSize)
	assert.Equal(t, 2*time.Minute, cfg.JobTimeout)
}

func TestRunOnceRepairsPendingBatch(t *testing.T) {
	systems := &stubSystems{result: systemdomain.RepairResult{Attempted: 3, Repaired: 2}}
	s, reg := newTestScheduler(t, systems, lock.NewLocalLocker(lock.Options{}), Config{BatchSize: 7})

	require.NoError(t, s.RunOnce(context.Background()))
	assert.Equal(t, []int{7}, systems.calls)

	runs, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, runs)
	assert.Equal(t, float64(1), testutil.ToFloat64(s.metrics.runs.WithLabelValues(JobQRRepair, jobResultSuccess)))
}

func TestRunOnceSurfacesServiceErrors(t *testing.T) {
	systems := &stubSystems{err: errors.New("database unavailable")}
	s, _ := newTestScheduler(t, systems, lock.NewLocalLocker(lock.Options{}), Config{})

	err := s.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), JobQRRepair)
	assert.Equal(t, float64(1), testutil.ToFloat64(s.metrics.runs.WithLabelValues(JobQRRepair, jobResultError)))
}

func TestRunOnceTimeoutIsSoft(t *testing.T) {
	systems := &stubSystems{block: make(chan struct{})}
	s, _ := newTestScheduler(t, systems, lock.NewLocalLocker(lock.Options{}), Config{JobTimeout: 10 * time.Millisecond})

	require.NoError(t, s.RunOnce(context.Background()))
	assert.Equal(t, float64(1), testutil.ToFloat64(s.metrics.runs.WithLabelValues(JobQRRepair, jobResultTimeout)))
}

func TestRunOnceSkipsWhenAnotherWorkerHoldsTheLock(t *testing.T) {
	locker := lock.NewLocalLocker(lock.Options{Wait: 10 * time.Millisecond})
	unlock, err := locker.Acquire(context.Background(), qrRepairLockKey)
	require.NoError(t, err)
	defer unlock()

	systems := &stubSystems{}
	s, _ := newTestScheduler(t, systems, locker, Config{})

	require.NoError(t, s.RunOnce(context.Background()))
	assert.Zero(t, systems.callCount())
	assert.Equal(t, float64(1), testutil.ToFloat64(s.metrics.runs.WithLabelValues(JobQRRepair, jobResultSkipped)))
}

func TestRunForeverStopsOnCancel(t *testing.T) {
	systems := &stubSystems{}
	s, _ := newTestScheduler(t, systems, lock.NewLocalLocker(lock.Options{}), Config{RunInterval: 5 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.RunForever(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return systems.callCount() >= 2 }, time.Second, time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunForever did not return after cancel")
	}
}
