package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	router "github.com/dkeye/Mosaic/internal/adapters/http"
	"github.com/dkeye/Mosaic/internal/adapters/kurento"
	"github.com/dkeye/Mosaic/internal/adapters/rtc"
	"github.com/dkeye/Mosaic/internal/app"
	"github.com/dkeye/Mosaic/internal/app/orch"
	"github.com/dkeye/Mosaic/internal/config"
	"github.com/dkeye/Mosaic/internal/core"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	} else {
		log.Warn().Str("level", cfg.LogLevel).Msg("unknown log level, keeping info")
	}
	if cfg.Mode == "release" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	backend, err := newBackend(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create media backend")
	}

	o := orch.New(backend, app.SimplePolicy{})
	r := router.SetupRouter(ctx, cfg, o)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Bool("tls", cfg.TLS.Enabled()).Str("backend", cfg.Backend.Kind).Msg("Mosaic server started")
		var err error
		if cfg.TLS.Enabled() {
			err = srv.ListenAndServeTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
		}
		o.Shutdown(shutdownCtx)
		if err := backend.Close(); err != nil {
			log.Error().Err(err).Msg("media backend close")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server error")
		os.Exit(1)
	}
	log.Info().Msg("Server exited gracefully")
}

func newBackend(cfg *config.Config) (core.MediaBackend, error) {
	switch cfg.Backend.Kind {
	case config.BackendLoopback:
		return rtc.NewBackend(rtc.DefaultWebRTCConfig(cfg.Backend.STUNURLs))
	default:
		return kurento.New(kurento.Options{
			URL:          cfg.Backend.KurentoWSURL,
			CallTimeout:  cfg.Backend.CallTimeout,
			Keepalive:    cfg.Backend.Keepalive,
			DialAttempts: cfg.Backend.DialAttempts,
			DialWait:     cfg.Backend.DialWait,
		}), nil
	}
}
