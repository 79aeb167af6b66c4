package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"backtest-core/internal/api"
	"backtest-core/internal/data"
	"backtest-core/internal/engine"
	"backtest-core/internal/events"
	"backtest-core/internal/store"
	"backtest-core/internal/strategy"
	"backtest-core/pkg/config"
	"backtest-core/pkg/db"
	"backtest-core/pkg/logging"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("backtest service stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	// Results database (SQLite by default)
	database, err := db.New(cfg.DBPath)
	if err != nil {
		return err
	}
	defer database.Close()
	if err := db.ApplyMigrations(database); err != nil {
		return err
	}
	logger.Info("database ready", "path", cfg.DBPath)

	// Strategy file is optional; built-in kinds are always available.
	strategies := &strategy.ConfigFile{}
	if _, err := os.Stat(cfg.StrategyConfig); err == nil {
		strategies, err = strategy.LoadConfig(cfg.StrategyConfig)
		if err != nil {
			return err
		}
		if err := strategy.SyncConfigToDB(database.DB, strategies.Strategies); err != nil {
			return err
		}
		logger.Info("strategies loaded", "file", cfg.StrategyConfig,
			"strategies", len(strategies.Strategies), "windows", len(strategies.Windows), "sweeps", len(strategies.Sweeps))
	} else {
		logger.Warn("strategy file not found, using built-in kinds only", "file", cfg.StrategyConfig)
	}

	var runs store.RunStore = database
	storeName := "sqlite"
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()
		pg := store.NewPostgresStore(pool)
		if err := pg.Migrate(ctx); err != nil {
			return err
		}
		runs, storeName = pg, "postgres"
		logger.Info("postgres results store enabled")
	}
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return err
		}
		rdb := redis.NewClient(opt)
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, cache will fall through", "error", err)
		}
		runs = store.NewCachedStore(runs, rdb, cfg.CacheTTL)
		storeName += "+redis"
	}

	workers := cfg.SweepWorkers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	bus := events.NewBus()
	svc := engine.NewImpl(engine.Config{
		Strategies:  strategies,
		Bars:        data.NewParquetStore(cfg.DataDir),
		Store:       runs,
		Bus:         bus,
		Logger:      logger,
		Workers:     workers,
		InitialCash: cfg.InitialCash,
		Commission:  cfg.Commission,
		Meta:        engine.SystemStatus{Version: version, Store: storeName},
		BarCacheTTL: cfg.CacheTTL,
	})

	server := api.NewServer(svc, bus, api.Options{
		JWTSecret:   cfg.JWTSecret,
		CORSOrigins: cfg.CORSOrigins,
		RateLimit:   cfg.RateLimit,
		RateBurst:   cfg.RateBurst,
		Logger:      logger,
	})
	httpSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// gRPC health service for orchestrators.
	grpcSrv := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(grpcSrv, hs)
	hs.SetServingStatus("backtest", healthpb.HealthCheckResponse_SERVING)
	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return err
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("http server listening", "addr", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go func() {
		logger.Info("grpc health server listening", "addr", lis.Addr().String())
		if err := grpcSrv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		return err
	}

	hs.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	grpcSrv.GracefulStop()
	return nil
}
