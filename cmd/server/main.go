package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/Harshitk-cp/factgate/internal/api"
	mw "github.com/Harshitk-cp/factgate/internal/api/middleware"
	"github.com/Harshitk-cp/factgate/internal/buildconfig"
	"github.com/Harshitk-cp/factgate/internal/config"
	"github.com/Harshitk-cp/factgate/internal/domain"
	"github.com/Harshitk-cp/factgate/internal/lifecycle"
	"github.com/Harshitk-cp/factgate/internal/rules"
	"github.com/Harshitk-cp/factgate/internal/service"
	"github.com/Harshitk-cp/factgate/internal/store"
)

func main() {
	bootLogger, _ := zap.NewProduction()
	if err := config.Load(); err != nil {
		bootLogger.Fatal("failed to load config", zap.Error(err))
	}

	logger, err := newLogger(config.LogLevel())
	if err != nil {
		bootLogger.Fatal("invalid LOG_LEVEL", zap.Error(err))
	}
	defer func() { _ = logger.Sync() }()
	logger = logger.With(zap.String("version", buildconfig.Version()))

	ctx := context.Background()

	factStore, closeStore, err := openStore(ctx, logger)
	if err != nil {
		logger.Fatal("failed to open fact store", zap.Error(err))
	}
	defer closeStore()

	rs, err := rules.Load(config.RulesetPath())
	if err != nil {
		logger.Fatal("failed to load rule set", zap.String("path", config.RulesetPath()), zap.Error(err))
	}
	logger.Info("rule set loaded",
		zap.String("path", config.RulesetPath()),
		zap.Int("constraints", len(rs.Constraints)),
		zap.Int("inference_rules", len(rs.Rules)),
		zap.Int("contradiction_rules", len(rs.Contradictions)),
	)

	producers, err := loadProducers(ctx)
	if err != nil {
		logger.Fatal("failed to load producer keys", zap.Error(err))
	}
	if producers.Len() == 0 {
		logger.Warn("PRODUCER_KEYS is empty, producer authentication is disabled")
	}

	graphs := lifecycle.NewManager(factStore, logger)
	gw := service.NewGateway(graphs, rs, config.InferenceMaxIterations(), service.NewEventHub(0, logger), logger)

	app := api.NewApp(gw, producers, logger)
	defer app.Close()

	var scheduler *service.CommitScheduler
	if interval := config.CommitInterval(); interval > 0 {
		scheduler = service.NewCommitScheduler(gw, logger)
		scheduler.SetInterval(interval)
		scheduler.Start()
	}

	addr := config.ServerAddr()
	srv := &http.Server{
		Addr:              addr,
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("server starting",
			zap.String("addr", addr),
			zap.String("store", config.StoreBackend()),
			zap.Duration("commit_interval", config.CommitInterval()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("shutting down server")

	// A running commit cycle finishes before Stop returns.
	if scheduler != nil {
		scheduler.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	return cfg.Build()
}

// openStore connects the configured backend and returns a func releasing it.
func openStore(ctx context.Context, logger *zap.Logger) (domain.FactStore, func(), error) {
	switch backend := config.StoreBackend(); backend {
	case config.BackendMemory:
		logger.Warn("using in-memory fact store, graphs are lost on restart")
		return store.NewMemoryStore(), func() {}, nil

	case config.BackendPostgres:
		dbURL := config.DatabaseURL()
		if dbURL == "" {
			return nil, nil, errors.New("DATABASE_URL is required for the postgres store")
		}
		pool, err := pgxpool.New(ctx, dbURL)
		if err != nil {
			return nil, nil, errors.Wrap(err, "connect to database")
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, errors.Wrap(err, "ping database")
		}
		s := store.NewPostgresStore(pool)
		if err := s.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		logger.Info("connected to database")
		return s, pool.Close, nil

	case config.BackendSQLite:
		s, err := store.OpenSQLite(ctx, config.SQLitePath(), logger)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil

	default:
		return nil, nil, errors.WithHint(
			errors.Newf("unknown store backend %q", backend),
			"set STORE_BACKEND to memory, postgres or sqlite",
		)
	}
}

// loadProducers registers every PRODUCER_KEYS entry with full permissions.
func loadProducers(ctx context.Context) (*store.ProducerRegistry, error) {
	keys, err := config.ProducerKeys()
	if err != nil {
		return nil, err
	}
	reg := store.NewProducerRegistry()
	for _, k := range keys {
		p := &domain.Producer{
			ID:         k.ID,
			APIKeyHash: mw.HashAPIKey(k.Key),
			Active:     true,
			Permissions: []string{
				domain.PermissionRead,
				domain.PermissionWriteStaging,
				domain.PermissionCommit,
			},
		}
		if err := reg.Register(ctx, p); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
