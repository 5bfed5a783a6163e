package app

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"medcourier/cmd/loadctl/app/options"
	"medcourier/config"
	"medcourier/pkg/logger"
	"medcourier/pkg/rate"
	"medcourier/service"
	"medcourier/storage/postgres"
)

func NewLoadctlCommand(ctx context.Context) *cobra.Command {
	opts := options.NewOptions()
	cmd := &cobra.Command{
		Use:          "loadctl",
		Short:        "Operate medical courier loads",
		Long:         "loadctl previews quotes, inspects the load lifecycle and applies transitions against the medcourier database.",
		SilenceUsage: true,
	}
	cmd.SetContext(ctx)
	opts.AddFlags(cmd.PersistentFlags())

	cmd.AddCommand(
		newQuoteCommand(opts),
		newTransitionsCommand(),
		newCreateCommand(opts),
		newApplyCommand(opts),
		newEventsCommand(opts),
		newSweepCommand(opts),
		newInviteCommand(opts),
	)
	return cmd
}

func rates(opts *options.Options) (*rate.Engine, error) {
	cfg, err := config.LoadRates(opts.RatesFile)
	if err != nil {
		return nil, err
	}
	return rate.NewEngine(cfg, nil)
}

// connect opens the database and builds the services. Notifications are only
// logged; the running service owns the real channels.
func connect(ctx context.Context, opts *options.Options) (service.IServiceManager, func(), error) {
	cfg := config.Load()
	log := logger.NewWithOptions(logger.Options{Namespace: "loadctl", Level: opts.LogLevel})

	engine, err := rates(opts)
	if err != nil {
		return nil, nil, err
	}
	pg, err := postgres.New(ctx, cfg, log)
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	svc, err := service.New(pg, log, service.Options{
		Rates:          engine,
		NotifyTimeout:  cfg.NotifyTimeout,
		SweepBatchSize: cfg.SweepBatchSize,
	})
	if err != nil {
		pg.Close()
		return nil, nil, err
	}
	return svc, func() {
		svc.Load().Wait()
		pg.Close()
		_ = log.Sync()
	}, nil
}
