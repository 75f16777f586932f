package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"billable/internal/backend"
	"billable/internal/cli"
	"billable/internal/config"
	apphttp "billable/internal/http"
	"billable/internal/log"
	"billable/internal/services"
)

func main() {
	cfg := cli.MustLoadConfig((*config.Config).Validate)
	logger := cli.SetupLogger(cfg)

	if err := run(cfg, logger); err != nil {
		logger.Error("Server failed", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

func run(cfg *config.Config, logger *log.Logger) error {
	ctx, stop := cli.SignalContext(logger)
	defer stop()

	notifier, closeNotifier := backend.NewFactory(logger).CreateNotifier(cfg)
	if closeNotifier != nil {
		defer closeNotifier()
	}

	rt, err := cli.OpenRuntime(ctx, cfg, logger, notifier)
	if err != nil {
		return err
	}
	defer rt.Close()

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Ledger:  rt.Ledger,
		Catalog: rt.Catalog,
		Logos:   rt.Logos,
		Logger:  logger,
		Ready:   rt.Ping,
	}, apphttp.Options{
		CORSOrigin:         cfg.CORSOrigin,
		MaxLogoBytes:       cfg.MaxLogoBytes,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		MonthCacheSize:     cfg.MonthCacheSize,
		MonthCacheTTL:      cfg.MonthCacheTTL,
		TrustedProxies:     cfg.TrustedProxies,
	})
	srv.MaxHeaderBytes = 1 << 16

	var sweeper *services.SweepProcessor
	if cfg.SweepInterval > 0 {
		sweeper = services.NewSweepProcessor(rt.Ledger, services.SweepProcessorConfig{Interval: cfg.SweepInterval}, logger)
		if err := sweeper.Start(ctx); err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting billable server",
			log.FieldOperation, log.OpStartup,
			"port", cfg.Port,
			"propagation", rt.Ledger.Mode(),
			"catalog", cfg.CatalogBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		logger.Info("Shutting down server", log.FieldOperation, log.OpShutdown)

		if sweeper != nil {
			if err := sweeper.Stop(shutdownCtx); err != nil {
				logger.Warn("Sweep processor stop failed", log.FieldError, err)
			}
		}
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
