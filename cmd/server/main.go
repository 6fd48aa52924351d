package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/JonMunkholm/jsonimport/internal/config"
	"github.com/JonMunkholm/jsonimport/internal/core"
	"github.com/JonMunkholm/jsonimport/internal/logging"
	"github.com/JonMunkholm/jsonimport/internal/plugin"
	"github.com/JonMunkholm/jsonimport/internal/schema"
	"github.com/JonMunkholm/jsonimport/internal/store/memory"
	"github.com/JonMunkholm/jsonimport/internal/store/postgres"
	"github.com/JonMunkholm/jsonimport/internal/store/sqlite"
	"github.com/JonMunkholm/jsonimport/internal/telemetry"
	"github.com/JonMunkholm/jsonimport/internal/web"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// Load .env file if it exists; real environment variables win.
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("configuration loaded", "config", cfg.String(), "version", version)

	ctx := context.Background()

	if err := telemetry.Init(ctx, telemetry.Options{
		Enabled:        cfg.Telemetry.Enabled,
		Stdout:         cfg.Telemetry.Stdout,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		ServiceName:    cfg.Telemetry.ServiceName,
		Version:        version,
		MetricInterval: cfg.Telemetry.MetricInterval,
	}); err != nil {
		slog.Error("failed to initialize telemetry", "error", err)
		os.Exit(1)
	}

	store, closeStore, err := openStore(ctx, cfg.Store)
	if err != nil {
		slog.Error("failed to open store", "driver", cfg.Store.Driver, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	registry := core.NewRegistry()
	collections, err := schema.LoadFile(cfg.Plugin.CollectionsFile)
	if err != nil {
		slog.Error("failed to load collections", "file", cfg.Plugin.CollectionsFile, "error", err)
		os.Exit(1)
	}
	if err := collections.Register(registry); err != nil {
		slog.Error("failed to register collections", "error", err)
		os.Exit(1)
	}

	installed, err := plugin.Install(registry, plugin.Options{
		Collections: cfg.Plugin.EnabledCollections(),
		Disabled:    cfg.Plugin.Disabled,
	})
	if err != nil {
		slog.Error("failed to install import plugin", "error", err)
		os.Exit(1)
	}
	slog.Info("collections registered",
		"count", registry.Count(),
		"importable", installed.Importable,
		"routes", installed.MountRoutes,
	)

	service := core.NewService(registry, telemetry.WrapStore(store), core.ServiceOptions{
		MaxConcurrent:    cfg.Import.MaxConcurrent,
		MaxWait:          cfg.Import.MaxWait,
		SchemaFieldTypes: cfg.Import.SchemaFieldTypes,
		TouchAfterImport: cfg.Import.TouchAfterImport,
		Observer:         telemetry.NewImportMetrics(),
	})

	server := web.NewServer(cfg, service, installed.MountRoutes)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if status := service.LimiterStatus(); status.Active > 0 {
			slog.Info("waiting for imports to complete", "active", status.Active)
		}
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "error", err)
		}
	}()

	if err := server.Start(cfg.Server.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

// openStore connects the configured document store. The returned func
// releases its resources.
func openStore(ctx context.Context, cfg config.StoreConfig) (core.Store, func(), error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		pool, err := postgres.Open(ctx, cfg.URL, int32(cfg.MaxConns), int32(cfg.MinConns), func(pc *pgxpool.Config) {
			pc.MaxConnLifetime = cfg.MaxConnLifetime
			pc.MaxConnIdleTime = cfg.MaxConnIdleTime
		})
		if err != nil {
			return nil, nil, err
		}
		store := postgres.New(pool)
		if err := store.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		if u, err := url.Parse(cfg.URL); err == nil {
			slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
		} else {
			slog.Info("connected to database")
		}
		return store, pool.Close, nil

	case config.DriverSQLite:
		store, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("opened sqlite database", "path", cfg.SQLitePath)
		return store, func() {
			if err := store.Close(); err != nil {
				slog.Warn("close sqlite", "error", err)
			}
		}, nil

	case config.DriverMemory:
		slog.Warn("using in-memory store; documents are lost on restart")
		return memory.New(), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
}
