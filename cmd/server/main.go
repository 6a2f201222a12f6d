package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ordokr/LMS-sub004/internal/config"
	"github.com/ordokr/LMS-sub004/internal/contentsync"
	"github.com/ordokr/LMS-sub004/internal/executor"
	"github.com/ordokr/LMS-sub004/internal/metrics"
	"github.com/ordokr/LMS-sub004/internal/orchestrator"
	"github.com/ordokr/LMS-sub004/internal/platform"
	"github.com/ordokr/LMS-sub004/internal/queue"
	"github.com/ordokr/LMS-sub004/internal/scheduler"
	"github.com/ordokr/LMS-sub004/internal/server"
	"github.com/ordokr/LMS-sub004/internal/server/handlers"
	"github.com/ordokr/LMS-sub004/internal/storage/boltdb"
	"github.com/ordokr/LMS-sub004/internal/storage/sqlite"
	"github.com/ordokr/LMS-sub004/internal/syncstate"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to YAML config file")
	address := flag.String("address", "", "Override server listen address")
	dbPath := flag.String("db", "", "Override SQLite database path")
	nodeDBPath := flag.String("node-db", "", "Override node metadata (BoltDB) path")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	// Show version and exit if requested
	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *address != "" {
		cfg.Server.Address = *address
	}
	if *dbPath != "" {
		cfg.Storage.SQLitePath = *dbPath
	}
	if *nodeDBPath != "" {
		cfg.Storage.BoltPath = *nodeDBPath
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server stopped with error", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	store, err := sqlite.New(ctx, cfg.Storage.SQLitePath)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("failed to close database", slog.Any("error", err))
		}
	}()

	meta, err := boltdb.New(ctx, cfg.Storage.BoltPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := meta.Close(); err != nil {
			logger.Error("failed to close node metadata", slog.Any("error", err))
		}
	}()

	replicaID, err := meta.EnsureReplicaID(ctx)
	if err != nil {
		return err
	}
	logger = logger.With(slog.String("replica_id", replicaID))

	reg := metrics.NewRegistry()

	states, err := syncstate.NewManager(store, replicaID, logger, reg)
	if err != nil {
		return err
	}

	exec := executor.New(states, store, executor.Config{
		BodyTimeout:     cfg.Sync.BodyTimeout,
		CommitOnlyClock: cfg.CommitOnlyClock(),
	}, logger, reg)

	course := platform.NewCourseClient(cfg.Course.BaseURL, cfg.Course.Token, cfg.Course.Timeout)
	forum := platform.NewForumClient(cfg.Forum.BaseURL, cfg.Forum.APIKey, cfg.Forum.APIUsername, cfg.Forum.Timeout)
	syncer := contentsync.New(store, course, forum, exec, logger)

	q := queue.New(store, syncer, states, queue.Config{
		BatchSize:          cfg.Queue.BatchSize,
		Concurrency:        cfg.Queue.Concurrency,
		DefaultMaxAttempts: cfg.Queue.MaxAttempts,
		ProcessingTimeout:  cfg.Queue.ProcessingTimeout,
	}, logger, reg)

	probe := platform.NewHTTPProbe(logger, cfg.Sync.ProbeTimeout, cfg.Course.BaseURL, cfg.Forum.BaseURL)
	orch := orchestrator.New(store, meta, states, syncer, q, probe, orchestrator.Config{
		Direction: cfg.Direction(),
	}, logger, reg)

	sched := scheduler.New(orch, q, store, scheduler.Config{
		FullSyncInterval:     cfg.Schedule.FullSyncInterval,
		DrainInterval:        cfg.Schedule.DrainInterval,
		MaintenanceInterval:  cfg.Schedule.MaintenanceInterval,
		QueueRetention:       cfg.Queue.Retention,
		TransactionRetention: cfg.Schedule.TransactionRetention,
	}, logger)

	operators := make(handlers.OperatorMap, len(cfg.Auth.Operators))
	for _, op := range cfg.Auth.Operators {
		operators[op.Username] = op.PasswordHash
	}
	if len(operators) == 0 {
		logger.Warn("no operators configured, the API only serves public routes")
	}

	router := server.NewRouter(ctx, server.Deps{
		Logger:    logger,
		Metrics:   reg,
		DB:        store,
		Operators: operators,
		JWT: handlers.JWTConfig{
			Secret:         []byte(cfg.Auth.JWTSecret),
			AccessTokenTTL: cfg.Auth.TokenTTL,
		},
		States:         states,
		Content:        syncer,
		Runner:         exec,
		Syncer:         orch,
		Queue:          q,
		TxLog:          store,
		Mappings:       store,
		Version:        Version,
		ReplicaID:      replicaID,
		LoginRateLimit: cfg.Server.RateLimit,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting operator API",
			slog.String("address", cfg.Server.Address),
			slog.String("version", Version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return sched.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel()}
	if cfg.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func printVersion() {
	fmt.Printf("LMS Sync Server\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
