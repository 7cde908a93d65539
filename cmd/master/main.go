// Command master runs the scheduler service: the HTTP control API, the
// allocator it mediates, and the background reaper (spec.md §4.4, §4.5).
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

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"

	"github.com/vizsched/vizsched/internal/allocator"
	"github.com/vizsched/vizsched/internal/allocator/ecsalloc"
	"github.com/vizsched/vizsched/internal/allocator/testalloc"
	"github.com/vizsched/vizsched/internal/allocator/unicorealloc"
	"github.com/vizsched/vizsched/internal/authn"
	"github.com/vizsched/vizsched/internal/config"
	"github.com/vizsched/vizsched/internal/logging"
	"github.com/vizsched/vizsched/internal/master"
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
		Use:   "vizsched-master",
		Short: "vizsched master — scheduler control API for interactive visualization jobs",
		Long: `vizsched-master exposes the scheduler's HTTP control API: it gates
requests behind the configured authenticator, mediates job creation and
teardown through the configured allocator, and runs the reaper that
enforces the maximum session duration.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadMaster()
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
			fmt.Printf("vizsched-master %s (commit: %s)\n", version, commit)
		},
	})

	return root
}

func run(ctx context.Context, cfg config.Master) error {
	logger, err := logging.Build(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.Info("starting vizsched master",
		zap.String("version", version),
		zap.String("http_addr", cfg.HTTPAddr),
		zap.String("allocator", cfg.Allocator),
		zap.String("registry_backend", cfg.Registry.Backend),
	)

	reg, err := buildRegistry(ctx, cfg.Registry, logger)
	if err != nil {
		return fmt.Errorf("build registry: %w", err)
	}
	if err := reg.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensure registry schema: %w", err)
	}
	defer func() {
		if err := reg.Close(); err != nil {
			logger.Warn("registry close error", zap.Error(err))
		}
	}()

	alloc, err := buildAllocator(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("build allocator: %w", err)
	}
	defer func() {
		if err := alloc.Close(); err != nil {
			logger.Warn("allocator close error", zap.Error(err))
		}
	}()

	auther := buildAuthenticator(cfg.IDP)

	metrics := master.NewMetrics()

	reaper, err := master.NewReaper(reg, alloc, logger, metrics, cfg.CleanupPeriod)
	if err != nil {
		return fmt.Errorf("build reaper: %w", err)
	}
	reaper.Start()
	defer func() {
		if err := reaper.Stop(); err != nil {
			logger.Warn("reaper shutdown error", zap.Error(err))
		}
	}()

	router := master.NewRouter(master.RouterConfig{
		Authenticator: auther,
		Allocator:     alloc,
		Registry:      reg,
		Logger:        logger,
		Metrics:       metrics,
		ProxyBaseURL:  cfg.ProxyBaseURL,
		JobDuration:   cfg.JobDuration,
	})

	httpSrv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
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
	logger.Info("shutting down vizsched master")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server graceful shutdown error", zap.Error(err))
	}

	logger.Info("vizsched master stopped")
	return nil
}

// buildRegistry selects the relational or wide-column backend per
// cfg.Backend (spec.md §4.3: "Two backends: a relational store and a wide-
// column key-value store").
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

// buildAllocator selects the allocator variant per spec.md §6's
// VIZSCHED_ALLOCATOR enumeration (UNICORE | AWS | TEST).
func buildAllocator(ctx context.Context, cfg config.Master, logger *zap.Logger) (allocator.Allocator, error) {
	switch cfg.Allocator {
	case "AWS":
		return ecsalloc.New(ctx, cfg.Registry.AWSRegion, ecsalloc.Config{
			Cluster:          cfg.ECS.Cluster,
			TaskDefinition:   cfg.ECS.TaskDefinition,
			CapacityProvider: cfg.ECS.CapacityProvider,
			Subnets:          cfg.ECS.Subnets,
			SecurityGroups:   cfg.ECS.SecurityGroups,
			BucketName:       cfg.ECS.Bucket,
			MountPath:        cfg.ECS.Mount,
			HealthPort:       cfg.ECS.HealthPort,
		})
	case "UNICORE":
		return unicorealloc.New(unicorealloc.Config{
			BaseURL:   cfg.Unicore.BaseURL,
			DNSSuffix: cfg.Unicore.DNSSuffix,
		}), nil
	case "TEST":
		return testalloc.New(0, "127.0.0.1"), nil
	default:
		return nil, fmt.Errorf("unsupported allocator %q, use UNICORE, AWS, or TEST", cfg.Allocator)
	}
}

// buildAuthenticator wires the Remote authenticator when the identity
// provider is enabled, Disabled otherwise (spec.md §4.1, §6).
func buildAuthenticator(cfg config.IDPConfig) authn.Authenticator {
	if !cfg.Enabled {
		return authn.NewDisabled()
	}
	return authn.NewRemote(nil, cfg.URL, cfg.Host, 10*time.Second, authn.DefaultBackoffConfig())
}

func gormLogLevel(logger *zap.Logger) gormlogger.LogLevel {
	if logger.Core().Enabled(zap.DebugLevel) {
		return gormlogger.Info
	}
	return gormlogger.Warn
}
