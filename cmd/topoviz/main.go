package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"topoviz/internal/config"
	"topoviz/internal/httpapi"
	"topoviz/internal/layout"
	"topoviz/internal/metrics"
	"topoviz/internal/positions"
	"topoviz/internal/pubsub"
	"topoviz/internal/source"
	"topoviz/internal/viewstate"
)

func main() {
	flags := pflag.NewFlagSet("topoviz", pflag.ExitOnError)
	configFile := flags.String("config", "", "path to config file")
	flags.String("http_addr", ":8082", "listen address")
	flags.String("log_level", "info", "log level")
	flags.String("source_url", "", "inventory API base URL")
	flags.String("database_url", "", "inventory Postgres URL (used instead of source_url)")
	flags.String("presets_file", "", "layout presets YAML file")
	_ = flags.Parse(os.Args[1:])

	cfg, err := config.Load(flags, *configFile)
	if err != nil {
		// The logger needs the config; this failure predates it.
		os.Stderr.WriteString("topoviz: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger := httpapi.NewLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var src source.Source
	if cfg.DatabaseURL != "" {
		pg, err := source.OpenPG(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to inventory database")
		}
		defer pg.Close()
		src = pg
	} else {
		src = source.NewHTTPSource(cfg.SourceURL)
	}

	presets := layout.DefaultPresets()
	if cfg.PresetsFile != "" {
		p, err := layout.LoadPresets(cfg.PresetsFile)
		if err != nil {
			logger.Fatal().Err(err).Str("path", cfg.PresetsFile).Msg("failed to load layout presets")
		}
		presets = p
	}
	engine := layout.NewEngine(presets)

	m := metrics.New()
	store := positions.NewStore()
	broker := pubsub.NewBroker()
	defer broker.Close()

	refresher := viewstate.New(logger, src, engine, store, broker, m, viewstate.Options{
		PollInterval:     cfg.PollInterval,
		DiscoveryRedelay: cfg.DiscoveryRedelay,
		CanvasWidth:      cfg.CanvasWidth,
		CanvasHeight:     cfg.CanvasHeight,
	})
	go refresher.Run(ctx)

	sessions := viewstate.NewSessions(logger, store, refresher, m, cfg.SessionTTL)
	go sessions.Run(ctx)

	if cfg.PresetsFile != "" {
		go func() {
			if err := layout.WatchPresets(ctx, logger, engine, cfg.PresetsFile); err != nil {
				logger.Warn().Err(err).Msg("presets watcher stopped")
			}
		}()
	}

	h := httpapi.NewHandler(logger, refresher, sessions, broker, m)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("topoviz listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server error")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	logger.Info().Msg("shutdown complete")
}
