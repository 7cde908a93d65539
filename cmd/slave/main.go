// Command slave runs the websocket proxy service: it resolves a job id to
// a backend host via the shared registry and relays frames in both
// directions (spec.md §4.6).
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

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"

	"github.com/vizsched/vizsched/internal/config"
	"github.com/vizsched/vizsched/internal/logging"
	"github.com/vizsched/vizsched/internal/proxy"
	"github.com/vizsched/vizsched/internal/registry"
	"github.com/vizsched/vizsched/internal/registry/dynamoreg"
	"github.com/vizsched/vizsched/internal/registry/gormreg"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "vizsched-slave",
		Short: "vizsched slave — reverse websocket proxy for visualization backends",
		Long: `vizsched-slave exposes a single websocket-upgrading endpoint. It
resolves a job id to a backend host via the registry the master
populates, then relays frames bidirectionally between the caller and
that backend.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadSlave()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return run(cmd.Context(), cfg)
		},
	}

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("vizsched-slave %s (commit: %s)\n", version, commit)
		},
	})

	return root
}

func run(ctx context.Context, cfg config.Slave) error {
	logger, err := logging.Build(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.Info("starting vizsched slave",
		zap.String("version", version),
		zap.String("http_addr", cfg.HTTPAddr),
		zap.Int("renderer_port", cfg.RendererPort),
		zap.Int("backend_port", cfg.BackendPort),
	)

	reg, err := buildRegistry(ctx, cfg.Registry, logger)
	if err != nil {
		return fmt.Errorf("build registry: %w", err)
	}
	defer func() {
		if err := reg.Close(); err != nil {
			logger.Warn("registry close error", zap.Error(err))
		}
	}()

	metrics := proxy.NewMetrics()

	handler := &proxy.Handler{
		Registry:     reg,
		Logger:       logger,
		Metrics:      metrics,
		RendererPort: cfg.RendererPort,
		BackendPort:  cfg.BackendPort,
	}

	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Get("/healthz", handler.Healthz)
	router.Handle("/metrics", metrics.Handler())
	router.Get("/{job_id}/{service}", handler.Serve)

	httpSrv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
		// No WriteTimeout/IdleTimeout: long-lived websocket connections must
		// not be cut off by the server's own timers once upgraded.
		ReadHeaderTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.HTTPAddr))

		var serveErr error
		if cfg.TLS.Enabled() {
			serveErr = httpSrv.ListenAndServeTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile)
		} else {
			serveErr = httpSrv.ListenAndServe()
		}
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(serveErr))
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down vizsched slave")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server graceful shutdown error", zap.Error(err))
	}

	logger.Info("vizsched slave stopped")
	return nil
}

func buildRegistry(ctx context.Context, cfg config.RegistryConfig, logger *zap.Logger) (registry.Registry, error) {
	switch {
	case cfg.IsDynamo():
		return dynamoreg.New(ctx, dynamoreg.Config{Table: cfg.DynamoTable, Region: cfg.AWSRegion})
	case cfg.IsSQL():
		return gormreg.New(gormreg.Config{
			Driver:   cfg.DBDriver,
			DSN:      cfg.DBDSN,
			Logger:   logger,
			LogLevel: gormLogLevel(logger),
		})
	default:
		return nil, fmt.Errorf("unsupported registry backend %q", cfg.Backend)
	}
}

func gormLogLevel(logger *zap.Logger) gormlogger.LogLevel {
	if logger.Core().Enabled(zap.DebugLevel) {
		return gormlogger.Info
	}
	return gormlogger.Warn
}
