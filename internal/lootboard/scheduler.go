package lootboard

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// SchedulerSettings configures the periodic full-regeneration sweep (§4.6,
// same cadence shape as C10's Hall-of-Fame sweep).
type SchedulerSettings struct {
	SweepInterval time.Duration
}

// Scheduler drives Generator.Generate for every group on a fixed cadence,
// the C12-supervised counterpart to the admin-triggered manual render.
type Scheduler struct {
	gen  *Generator
	cfg  SchedulerSettings
	log  *zap.SugaredLogger
	last atomic.Int64 // unix seconds of last successful sweep
}

func NewScheduler(gen *Generator, cfg SchedulerSettings, log *zap.SugaredLogger) *Scheduler {
	return &Scheduler{gen: gen, cfg: cfg, log: log}
}

func (s *Scheduler) Name() string { return "lootboard" }

// Healthy reports false if a sweep hasn't completed within 3x the configured
// interval, the signal the supervisor's watchdog restarts on.
func (s *Scheduler) Healthy() bool {
	last := s.last.Load()
	if last == 0 {
		return true
	}
	return time.Since(time.Unix(last, 0)) < 3*s.cfg.SweepInterval
}

func (s *Scheduler) Run(ctx context.Context) error {
	s.sweep(ctx)
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Scheduler) sweep(ctx context.Context) {
	groupIDs, err := s.gen.store.AllGroupIDs(ctx)
	if err != nil {
		s.log.Errorw("lootboard: load groups failed", "error", err)
		return
	}
	for _, groupID := range groupIDs {
		if err := s.gen.Generate(ctx, groupID, BoardFilter{Granularity: GranularityMonthly}); err != nil {
			s.log.Warnw("lootboard: sweep generate failed", "group_id", groupID, "error", err)
			continue
		}
	}
	s.last.Store(time.Now().Unix())
}
