package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/testando12/daytrade-bot/internal/config"
	"github.com/testando12/daytrade-bot/internal/engine"
	"github.com/testando12/daytrade-bot/internal/exits"
	"github.com/testando12/daytrade-bot/internal/horizon"
	"github.com/testando12/daytrade-bot/internal/marketdata"
	"github.com/testando12/daytrade-bot/internal/momentum"
	"github.com/testando12/daytrade-bot/internal/notifier"
	"github.com/testando12/daytrade-bot/internal/portfolio"
	"github.com/testando12/daytrade-bot/internal/protection"
	"github.com/testando12/daytrade-bot/internal/recorder"
	"github.com/testando12/daytrade-bot/internal/risk"
	"github.com/testando12/daytrade-bot/internal/scheduler"
	"github.com/testando12/daytrade-bot/internal/store"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	if os.Getenv("LOG_JSON") == "true" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	log.Info().Msg("daytrade-bot starting")

	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("config validation")
	}

	var provider marketdata.Provider
	if cfg.Provider.Name == "mock" {
		provider = &marketdata.MockProvider{}
	} else {
		provider = marketdata.NewBinanceProvider(cfg.Provider.Proxy)
	}
	log.Info().Str("provider", provider.Name()).Msg("market data source")

	fs, err := store.NewFileStore(cfg.Storage.DataDir)
	if err != nil {
		log.Fatal().Err(err).Msg("init file store")
	}

	var rec recorder.Recorder
	if cfg.Storage.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Storage.SQLitePath)
		if err != nil {
			log.Warn().Err(err).Msg("init sqlite recorder failed, using noop")
			rec = recorder.NewNoopRecorder()
		} else {
			rec = sr
			defer sr.Close()
		}
	} else {
		rec = recorder.NewNoopRecorder()
	}

	runner, err := engine.NewRunner(
		engine.Options{
			Assets:         cfg.Trading.Assets,
			ReferenceAsset: cfg.Trading.ReferenceAsset,
			InitialCapital: cfg.Trading.InitialCapital,
			CandleLimit:    cfg.Trading.CandleLimit,
			MaxTradesHour:  cfg.Trading.MaxTradesHour,
			MaxTradesDay:   cfg.Trading.MaxTradesDay,
		},
		momentum.NewEngine(cfg.Momentum),
		risk.NewEngine(cfg.Risk),
		portfolio.NewAllocator(cfg.Portfolio),
		exits.NewCalculator(cfg.Exits),
		horizon.NewController(cfg.Horizon),
		protection.NewMachine(cfg.Protection),
		provider,
		fs,
		rec,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("init runner")
	}

	tn := notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Provider.Proxy)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched := scheduler.NewScheduler(ctx, runner, tn)
	if err := sched.Register(cfg.Schedule.CycleCron); err != nil {
		log.Fatal().Err(err).Msg("register cron tasks")
	}
	sched.Start()
	defer sched.Stop()

	go tn.StartPolling(ctx, sched.HandleCommand)
	log.Info().Msg("telegram polling started")

	if os.Getenv("RUN_ON_START") == "true" {
		log.Info().Msg("RUN_ON_START enabled, executing cycle now")
		go sched.RunCycleNow()
	}

	log.Info().Msg("daytrade-bot is running")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("shutdown signal received, stopping")
	cancel()
	log.Info().Msg("daytrade-bot stopped")
}
