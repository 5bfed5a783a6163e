package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "go.uber.org/automaxprocs"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/option"

	"medcourier/config"
	"medcourier/pkg/bot"
	"medcourier/pkg/distance"
	"medcourier/pkg/logger"
	"medcourier/pkg/notify"
	"medcourier/pkg/rate"
	"medcourier/pkg/server"
	"medcourier/service"
	"medcourier/storage/postgres"
)

func main() {
	// 1. Load Config
	cfg := config.Load()

	// 2. Initialize Logger
	log := logger.NewWithOptions(logger.Options{
		Namespace: cfg.ServiceName,
		Level:     cfg.LoggerLevel,
		File:      cfg.LogFile,
	})
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("medcourier stopped with error", logger.Error(err))
		os.Exit(1)
	}
	log.Info("medcourier stopped")
}

func run(ctx context.Context, cfg config.Config, log logger.ILogger) error {
	rateCfg, err := config.LoadRates(cfg.RatesFile)
	if err != nil {
		return fmt.Errorf("load rates: %w", err)
	}
	rates, err := rate.NewEngine(rateCfg, nil)
	if err != nil {
		return err
	}

	// 3. Initialize Storage (Postgres)
	pgStore, err := postgres.New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pgStore.Close()

	// 4. Notification channels
	notifier, tg, closeNotifier, err := notifiers(ctx, cfg, rateCfg.TimeZone, log)
	if err != nil {
		return err
	}
	defer closeNotifier()

	var provider distance.Provider
	if cfg.GoogleMapsAPIKey != "" {
		g, err := distance.NewGoogle(cfg.GoogleMapsAPIKey, "")
		if err != nil {
			return err
		}
		provider = g
	}

	svc, err := service.New(pgStore, log, service.Options{
		Rates:           rates,
		Notifier:        notifier,
		Distance:        provider,
		NotifyTimeout:   cfg.NotifyTimeout,
		DistanceTimeout: cfg.DistanceTimeout,
		SweepSchedule:   cfg.SweepSchedule,
		SweepBatchSize:  cfg.SweepBatchSize,
	})
	if err != nil {
		return err
	}
	defer svc.Load().Wait()

	// 5. Run ops server and sweeper until a signal arrives
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(ctx, fmt.Sprintf(":%d", cfg.AppPort), server.NewRouter(svc, pgStore, log), log)
	})
	g.Go(func() error {
		return svc.Sweeper().Run(ctx)
	})
	if tg != nil {
		driverBot := bot.New(tg.Bot(), svc, pgStore, log)
		g.Go(func() error {
			return driverBot.Run(ctx)
		})
	}

	log.Info("🚀 medcourier is running", logger.Int("port", cfg.AppPort))
	return g.Wait()
}

func notifiers(ctx context.Context, cfg config.Config, timeZone string, log logger.ILogger) (notify.Notifier, *notify.Telegram, func(), error) {
	chain := notify.Multi{notify.NewLog(log)}
	closers := []func() error{}

	var tg *notify.Telegram
	if cfg.TelegramBotToken != "" {
		var err error
		tg, err = notify.NewTelegram(notify.TelegramSettings{Token: cfg.TelegramBotToken}, log)
		if err != nil {
			return nil, nil, nil, err
		}
		chain = append(chain, tg)
	}
	if cfg.RabbitURL != "" {
		rb, closeRabbit, err := notify.DialRabbit(cfg.RabbitURL, cfg.RabbitExchange)
		if err != nil {
			return nil, nil, nil, err
		}
		chain = append(chain, rb)
		closers = append(closers, closeRabbit)
	}
	if cfg.GoogleCredentialsFile != "" {
		cal, err := notify.NewCalendar(ctx, cfg.GoogleCalendarID, timeZone, option.WithCredentialsFile(cfg.GoogleCredentialsFile))
		if err != nil {
			return nil, nil, nil, err
		}
		chain = append(chain, cal)
	}

	log.Info("notification channels ready", logger.Int("count", len(chain)))
	return chain, tg, func() {
		for _, c := range closers {
			if err := c(); err != nil {
				log.Error("failed to close notifier", logger.Error(err))
			}
		}
	}, nil
}
