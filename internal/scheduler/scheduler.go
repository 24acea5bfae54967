package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/labinventory/internal/clock"
	"github.com/smallbiznis/labinventory/internal/lock"
	systemdomain "github.com/smallbiznis/labinventory/internal/system/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	JobQRRepair = "qr_repair"

	qrRepairLockKey = "labinventory:job:qr_repair"
)

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

type Params struct {
	fx.In

	Log        *zap.Logger
	Systems    systemdomain.Service
	Locker     lock.Locker
	GenID      *snowflake.Node
	Clock      clock.Clock
	Config     Config                `optional:"true"`
	Registerer prometheus.Registerer `optional:"true"`
}

// Scheduler periodically retries QR generation for records left without an image.
type Scheduler struct {
	log     *zap.Logger
	cfg     Config
	genID   *snowflake.Node
	clock   clock.Clock
	systems systemdomain.Service
	locker  lock.Locker
	metrics *jobMetrics
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Systems == nil || p.Locker == nil || p.GenID == nil || p.Clock == nil {
		return nil, ErrInvalidConfig
	}
	reg := p.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &Scheduler{
		log:     p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:     p.Config.withDefaults(),
		genID:   p.GenID,
		clock:   p.Clock,
		systems: p.Systems,
		locker:  p.Locker,
		metrics: newJobMetrics(reg),
	}, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	batchSize int,
	timeout time.Duration,
	fn func(ctx context.Context, run *jobRun) error,
) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, run := s.newJobRun(ctx, name, batchSize)
	s.logJobStart(ctx, run)

	err := fn(ctx, run)
	if err != nil && run.errorCount == 0 {
		run.AddErrors(1)
	}
	s.metrics.observe(name, s.clock.Now().Sub(run.startedAt), err)
	s.logJobFinish(ctx, run)
	if err == nil {
		return nil
	}

	// Deadline is a soft timeout; the next tick picks up the remainder.
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.logger(ctx).Warn("job timed out",
			zap.String("job", name),
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}
	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) RunOnce(ctx context.Context) error {
	return s.runJob(ctx, JobQRRepair, s.cfg.BatchSize, s.cfg.JobTimeout, s.QRRepairJob)
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// QRRepairJob runs one repair batch. Only one replica runs it at a time; the others skip the tick.
func (s *Scheduler) QRRepairJob(ctx context.Context, run *jobRun) error {
	unlock, err := s.locker.Acquire(ctx, qrRepairLockKey)
	if err != nil {
		if errors.Is(err, lock.ErrBusy) {
			s.metrics.skipped(JobQRRepair)
			s.logger(ctx).Debug("qr repair held by another worker")
			return nil
		}
		return fmt.Errorf("acquire job lock: %w", err)
	}
	defer unlock()

	res, err := s.systems.RepairPending(ctx, s.cfg.BatchSize)
	if err != nil {
		return err
	}
	run.AddProcessed(res.Repaired)
	run.AddErrors(res.Attempted - res.Repaired)
	return nil
}
