package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	electionservice "ballot/contexts/elections/election-service"
	postgresadapter "ballot/contexts/elections/election-service/adapters/postgres"
	"ballot/contexts/elections/election-service/adapters/security"
	"ballot/internal/platform/config"
	"ballot/internal/platform/db"
	"ballot/internal/platform/httpserver"
	"ballot/internal/platform/messaging"
	"ballot/internal/platform/ratelimit"

	"github.com/redis/go-redis/v9"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

const (
	moduleName          = "internal/app/bootstrap"
	relayPollInterval   = 2 * time.Second
	shutdownGracePeriod = 10 * time.Second
)

// Store is a migrated database together with the repository built on it.
type Store struct {
	Database   *db.Database
	Repository *postgresadapter.Repository
}

type APIApp struct {
	server *httpserver.Server
	store  *Store
	redis  *redis.Client
	logger *slog.Logger
}

type WorkerApp struct {
	store             *Store
	bus               *messaging.Bus
	workers           electionservice.Workers
	sweepEnabled      bool
	integrityEnabled  bool
	sweepInterval     time.Duration
	integrityInterval time.Duration
	pollInterval      time.Duration
	logger            *slog.Logger
}

// LoadConfig reads and validates the process configuration.
func LoadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// OpenStore connects to the configured driver and applies pending migrations.
func OpenStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Store, error) {
	database, err := db.Open(cfg.DBDriver, cfg.PostgresDSN, cfg.SQLitePath)
	if err != nil {
		return nil, err
	}
	if err := postgresadapter.RunMigrations(ctx, database.DB); err != nil {
		_ = database.Close()
		return nil, err
	}
	logger.Info("database ready",
		"event", "bootstrap_database_ready",
		"module", moduleName,
		"layer", "platform",
		"driver", cfg.DBDriver,
	)
	return &Store{
		Database:   database,
		Repository: postgresadapter.NewRepository(database.DB, logger),
	}, nil
}

func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	return s.Database.Close()
}

// NewModule wires the election service against the store.
func NewModule(cfg config.Config, store *Store, logger *slog.Logger) electionservice.Module {
	repo := store.Repository
	return electionservice.NewModule(electionservice.Dependencies{
		Elections:       repo,
		Candidates:      repo,
		Tokens:          repo,
		Sessions:        repo,
		Votes:           repo,
		Results:         repo,
		Admins:          repo,
		Outbox:          repo,
		Hasher:          security.BcryptHasher{},
		Clock:           postgresadapter.SystemClock{},
		IDGen:           postgresadapter.UUIDGenerator{},
		VoterSessionTTL: cfg.VoterSessionTTL,
		AdminSessionTTL: cfg.AdminSessionTTL,
		TokenBatchMax:   cfg.TokenBatchMax,
		Logger:          logger,
	})
}

// NewWorkers wires the background jobs against the store and bus.
func NewWorkers(cfg config.Config, store *Store, bus *messaging.Bus, logger *slog.Logger) electionservice.Workers {
	repo := store.Repository
	return electionservice.NewWorkers(electionservice.WorkerDependencies{
		Elections:       repo,
		Sessions:        repo,
		Admins:          repo,
		Results:         repo,
		Outbox:          repo,
		PendingOutbox:   repo,
		Dedup:           repo,
		Publisher:       bus,
		Subscriber:      bus,
		Clock:           postgresadapter.SystemClock{},
		IDGen:           postgresadapter.UUIDGenerator{},
		OutboxBatchSize: cfg.OutboxBatchSize,
		AuditDisabled:   !cfg.EnableAuditConsumer,
		Logger:          logger,
	})
}

func BuildAPI(ctx context.Context) (*APIApp, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	logger := slog.Default().With("service", cfg.ServiceName, "process", "api")

	store, err := OpenStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	limiter, redisClient := newLimiter(ctx, cfg, logger)
	server, err := httpserver.New(NewModule(cfg, store, logger), limiter, httpserver.Options{
		Addr:            normalizeAddr(cfg.HTTPPort),
		RequestTimeout:  cfg.RequestTimeout,
		CookieKey:       []byte(cfg.SessionCookieKey),
		CookieSecure:    cfg.CookieSecure,
		VoterSessionTTL: cfg.VoterSessionTTL,
	}, logger)
	if err != nil {
		_ = store.Close()
		if redisClient != nil {
			_ = redisClient.Close()
		}
		return nil, err
	}
	return &APIApp{
		server: server,
		store:  store,
		redis:  redisClient,
		logger: logger,
	}, nil
}

func BuildWorker(ctx context.Context) (*WorkerApp, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	logger := slog.Default().With("service", cfg.ServiceName, "process", "worker")

	store, err := OpenStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	bus := messaging.NewBus(logger)
	return &WorkerApp{
		store:             store,
		bus:               bus,
		workers:           NewWorkers(cfg, store, bus, logger),
		sweepEnabled:      cfg.EnableCloseSweep,
		integrityEnabled:  cfg.EnableIntegrityCheck,
		sweepInterval:     cfg.SweepInterval,
		integrityInterval: cfg.IntegrityInterval,
		pollInterval:      relayPollInterval,
		logger:            logger,
	}, nil
}

// newLimiter counts in Redis when REDIS_ADDR is set and always keeps the
// in-process counter as fallback.
func newLimiter(ctx context.Context, cfg config.Config, logger *slog.Logger) (*ratelimit.Limiter, *redis.Client) {
	rules := map[string]ratelimit.Rule{
		ratelimit.PurposeAdminLogin:  {Max: cfg.RateLimitLoginMax, Window: cfg.RateLimitLoginWindow},
		ratelimit.PurposeTokenRedeem: {Max: cfg.RateLimitRedeemMax, Window: cfg.RateLimitRedeemWindow},
		ratelimit.PurposeVote:        {Max: cfg.RateLimitVoteMax, Window: cfg.RateLimitVoteWindow},
	}
	fallback := ratelimit.NewMemoryCounter(cfg.RateLimitFallbackMaxKeys, nil)
	if strings.TrimSpace(cfg.RedisAddr) == "" {
		logger.Warn("REDIS_ADDR not set, rate limits are per process",
			"event", "bootstrap_ratelimit_local_only",
			"module", moduleName,
			"layer", "platform",
		)
		return ratelimit.NewLimiter(nil, fallback, rules, logger), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		// The limiter falls back per call, so an unreachable Redis is not fatal.
		logger.Warn("redis ping failed at startup",
			"event", "bootstrap_redis_ping_failed",
			"module", moduleName,
			"layer", "platform",
			"error", err.Error(),
		)
	}
	return ratelimit.NewLimiter(ratelimit.NewRedisCounter(client), fallback, rules, logger), client
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (a *APIApp) Run(ctx context.Context) error {
	a.logger.Info("api app started",
		"event", "bootstrap_api_started",
		"module", moduleName,
		"layer", "platform",
	)
	errCh := make(chan error, 1)
	go func() {
		errCh <- a.server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
	defer cancel()
	a.logger.Info("api app shutting down",
		"event", "bootstrap_api_shutdown",
		"module", moduleName,
		"layer", "platform",
	)
	return a.server.Shutdown(shutdownCtx)
}

func (a *APIApp) Close() error {
	var errs []error
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	errs = append(errs, a.store.Close())
	return errors.Join(errs...)
}

func (w *WorkerApp) Run(ctx context.Context) error {
	if err := w.workers.Audit.Start(ctx); err != nil {
		return err
	}

	relay := time.NewTicker(w.pollInterval)
	defer relay.Stop()
	sweep := time.NewTicker(w.sweepInterval)
	defer sweep.Stop()
	integrity := time.NewTicker(w.integrityInterval)
	defer integrity.Stop()

	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", moduleName,
		"layer", "platform",
		"poll_interval", w.pollInterval.String(),
		"sweep_interval", w.sweepInterval.String(),
		"integrity_interval", w.integrityInterval.String(),
		"close_sweep", w.sweepEnabled,
		"integrity_check", w.integrityEnabled,
	)

	w.sweep(ctx)
	w.checkIntegrity(ctx)
	for {
		w.relay(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-relay.C:
		case <-sweep.C:
			w.sweep(ctx)
		case <-integrity.C:
			w.checkIntegrity(ctx)
		}
	}
}

// Failed cycles are logged by the workers themselves and retried on the
// next tick.
func (w *WorkerApp) relay(ctx context.Context) {
	if _, err := w.workers.Relay.RunOnce(ctx); err != nil && ctx.Err() == nil {
		w.cycleFailed("outbox_relay", err)
	}
}

func (w *WorkerApp) sweep(ctx context.Context) {
	if !w.sweepEnabled {
		return
	}
	if _, err := w.workers.Closer.RunOnce(ctx); err != nil && ctx.Err() == nil {
		w.cycleFailed("close_sweep", err)
	}
}

func (w *WorkerApp) checkIntegrity(ctx context.Context) {
	if !w.integrityEnabled {
		return
	}
	if _, err := w.workers.Integrity.RunOnce(ctx); err != nil && ctx.Err() == nil {
		w.cycleFailed("integrity_check", err)
	}
}

func (w *WorkerApp) cycleFailed(job string, err error) {
	w.logger.Warn("worker cycle failed",
		"event", "bootstrap_worker_cycle_failed",
		"module", moduleName,
		"layer", "platform",
		"job", job,
		"error", err.Error(),
	)
}

func (w *WorkerApp) Close() error {
	return w.store.Close()
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}
