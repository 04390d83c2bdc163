package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (default $CONFIG_PATH or config.yaml)")
	flag.Parse()

	// Load .env file if it exists
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	path, required := *configPath, true
	if path == "" {
		path, required = getEnv("CONFIG_PATH", "config.yaml"), os.Getenv("CONFIG_PATH") != ""
	}
	cfg, err := loadConfig(path, required)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	setupLogging(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	services, err := setupServices(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up services")
	}
	defer services.Close()

	server := setupServer(cfg, services)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		services.Gateway.Start(gctx)
		return nil
	})
	g.Go(func() error {
		services.Relay.Run(gctx)
		return nil
	})
	g.Go(func() error {
		services.Coordinator.RunJanitor(gctx, cfg.Match.SweepInterval)
		return nil
	})
	g.Go(func() error {
		log.Info().Str("addr", server.Addr).Str("env", cfg.Server.Env).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server exited with error")
		services.Close()
		os.Exit(1)
	}
	log.Info().Msg("typeduel shutdown complete")
}
