package service

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"medcourier/pkg/errs"
	"medcourier/pkg/logger"
	"medcourier/pkg/metrics"
	"medcourier/storage"
)

const (
	defaultSweepSchedule = "@every 5m"
	defaultSweepBatch    = 100
)

// Sweeper expires driver quotes whose deadline has passed and refreshes the
// per-status load gauge.
type Sweeper struct {
	stg      storage.IStorage
	loads    LoadService
	log      logger.ILogger
	now      func() time.Time
	schedule string
	batch    int
}

func NewSweeper(stg storage.IStorage, loads LoadService, log logger.ILogger, clock func() time.Time, schedule string, batch int) *Sweeper {
	if schedule == "" {
		schedule = defaultSweepSchedule
	}
	if batch <= 0 {
		batch = defaultSweepBatch
	}
	if clock == nil {
		clock = time.Now
	}
	return &Sweeper{stg: stg, loads: loads, log: log, now: clock, schedule: schedule, batch: batch}
}

// Sweep runs one pass and returns how many quotes it expired. A load that
// moved on since it was listed is skipped.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	due, err := s.stg.Load().ListExpiredDriverQuotes(ctx, s.now(), s.batch)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, l := range due {
		if err := ctx.Err(); err != nil {
			return expired, err
		}
		_, err := s.loads.ExpireDriverQuote(ctx, l.ID)
		switch {
		case err == nil:
			expired++
		case errs.HasCode(err, errs.CodeStaleState), errs.HasCode(err, errs.CodeIllegalTransition):
			s.log.Debug("driver quote already resolved", logger.String("load_id", l.ID))
		default:
			s.log.Error("failed to expire driver quote", logger.String("load_id", l.ID), logger.Error(err))
		}
	}
	metrics.ExpiredQuotesSwept.Add(float64(expired))

	if counts, err := s.stg.Load().CountByStatus(ctx); err == nil {
		metrics.LoadsByStatus.Reset()
		for status, n := range counts {
			metrics.LoadsByStatus.WithLabelValues(string(status)).Set(float64(n))
		}
	}
	return expired, nil
}

// Run schedules Sweep and blocks until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	c := cron.New()
	_, err := c.AddFunc(s.schedule, func() {
		n, err := s.Sweep(ctx)
		if err != nil {
			s.log.Error("sweep failed", logger.Error(err))
			return
		}
		if n > 0 {
			s.log.Info("expired driver quotes", logger.Int("count", n))
		}
	})
	if err != nil {
		return err
	}

	c.Start()
	s.log.Info("sweeper started", logger.String("schedule", s.schedule))
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}
