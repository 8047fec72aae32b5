package background

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	defaultSweepBatch   = 100
	defaultSweepTimeout = 30 * time.Second
	// maxSweepBatches bounds one run so a flood of expiries cannot pin the job.
	maxSweepBatches = 50
)

// SuspensionLifter reactivates members whose suspension has elapsed
type SuspensionLifter interface {
	LiftExpiredSuspensions(ctx context.Context, batchSize int) (int, error)
}

// SuspensionSweeper periodically lifts expired suspensions on a cron schedule
type SuspensionSweeper struct {
	lifter    SuspensionLifter
	schedule  cron.Schedule
	cron      *cron.Cron
	logger    *slog.Logger
	batchSize int
	timeout   time.Duration
}

// NewSuspensionSweeper parses a six-field (seconds first) cron expression or
// a descriptor such as "@every 5m".
func NewSuspensionSweeper(lifter SuspensionLifter, schedule string, logger *slog.Logger) (*SuspensionSweeper, error) {
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	sched, err := parser.Parse(schedule)
	if err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}

	return &SuspensionSweeper{
		lifter:   lifter,
		schedule: sched,
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		logger:    logger,
		batchSize: defaultSweepBatch,
		timeout:   defaultSweepTimeout,
	}, nil
}

// Run sweeps once, then on every tick until ctx is done. It waits for a
// running sweep to finish before returning.
func (s *SuspensionSweeper) Run(ctx context.Context) error {
	s.cron.Schedule(s.schedule, cron.FuncJob(func() { s.Sweep(ctx) }))

	s.Sweep(ctx)
	s.cron.Start()
	s.logger.Info("suspension sweeper started")

	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.logger.Info("suspension sweeper stopped")
	return nil
}

// Sweep lifts expired suspensions in batches until a short batch is seen.
func (s *SuspensionSweeper) Sweep(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	sweepCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	total := 0
	for i := 0; i < maxSweepBatches; i++ {
		n, err := s.lifter.LiftExpiredSuspensions(sweepCtx, s.batchSize)
		if err != nil {
			s.logger.Error("failed to lift expired suspensions", slog.Any("error", err))
			break
		}
		total += n
		if n < s.batchSize {
			break
		}
	}

	if total > 0 {
		s.logger.Info("expired suspensions lifted", slog.Int("count", total))
	}
}
