package service

import (
	"time"

	"medcourier/pkg/compliance"
	"medcourier/pkg/distance"
	"medcourier/pkg/fleet"
	"medcourier/pkg/lifecycle"
	"medcourier/pkg/logger"
	"medcourier/pkg/notify"
	"medcourier/pkg/rate"
	"medcourier/storage"
)

type IServiceManager interface {
	Load() LoadService
	Quote() QuoteService
	Fleet() FleetService
	Sweeper() *Sweeper
}

type Options struct {
	Rates           *rate.Engine
	Notifier        notify.Notifier
	Distance        distance.Provider
	NotifyTimeout   time.Duration
	DistanceTimeout time.Duration
	SweepSchedule   string
	SweepBatchSize  int
	Clock           func() time.Time
}

type service struct {
	loadService  LoadService
	quoteService QuoteService
	fleetService FleetService
	sweeper      *Sweeper
}

func New(stg storage.IStorage, log logger.ILogger, opts Options) (IServiceManager, error) {
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	rates := opts.Rates
	if rates == nil {
		var err error
		if rates, err = rate.NewEngine(rate.DefaultConfig(), clock); err != nil {
			return nil, err
		}
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notify.NewLog(log)
	}

	machine := lifecycle.NewMachine(stg, rates, compliance.NewGate(clock), log, clock)
	dispatcher := notify.NewDispatcher(notifier, stg.Contact(), log, opts.NotifyTimeout)
	loads := NewLoadService(stg, machine, dispatcher, log)

	return &service{
		loadService:  loads,
		quoteService: NewQuoteService(stg, rates, opts.Distance, opts.DistanceTimeout, log),
		fleetService: NewFleetService(stg, fleet.NewLedger(stg, log, clock), log),
		sweeper:      NewSweeper(stg, loads, log, clock, opts.SweepSchedule, opts.SweepBatchSize),
	}, nil
}

func (s *service) Load() LoadService {
	return s.loadService
}

func (s *service) Quote() QuoteService {
	return s.quoteService
}

func (s *service) Fleet() FleetService {
	return s.fleetService
}

func (s *service) Sweeper() *Sweeper {
	return s.sweeper
}
