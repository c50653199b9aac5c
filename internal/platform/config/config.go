package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName    string        `env:"SERVICE_NAME" envDefault:"ballot"`
	HTTPPort       string        `env:"HTTP_PORT" envDefault:"8080"`
	DBDriver       string        `env:"DB_DRIVER" envDefault:"postgres"`
	PostgresDSN    string        `env:"POSTGRES_DSN"`
	SQLitePath     string        `env:"SQLITE_PATH" envDefault:"ballot.db"`
	RedisAddr      string        `env:"REDIS_ADDR"`
	RedisPassword  string        `env:"REDIS_PASSWORD"`
	RedisDB        int           `env:"REDIS_DB" envDefault:"0"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"10s"`

	VoterSessionTTL  time.Duration `env:"VOTER_SESSION_TTL" envDefault:"30m"`
	AdminSessionTTL  time.Duration `env:"ADMIN_SESSION_TTL" envDefault:"12h"`
	SessionCookieKey string        `env:"SESSION_COOKIE_KEY"`
	CookieSecure     bool          `env:"COOKIE_SECURE" envDefault:"true"`

	RateLimitLoginMax        int           `env:"RATE_LIMIT_LOGIN_MAX" envDefault:"10"`
	RateLimitLoginWindow     time.Duration `env:"RATE_LIMIT_LOGIN_WINDOW" envDefault:"60s"`
	RateLimitRedeemMax       int           `env:"RATE_LIMIT_REDEEM_MAX" envDefault:"10"`
	RateLimitRedeemWindow    time.Duration `env:"RATE_LIMIT_REDEEM_WINDOW" envDefault:"60s"`
	RateLimitVoteMax         int           `env:"RATE_LIMIT_VOTE_MAX" envDefault:"5"`
	RateLimitVoteWindow      time.Duration `env:"RATE_LIMIT_VOTE_WINDOW" envDefault:"60s"`
	RateLimitFallbackMaxKeys int           `env:"RATE_LIMIT_FALLBACK_MAX_KEYS" envDefault:"10000"`

	TokenBatchMax     int           `env:"TOKEN_BATCH_MAX" envDefault:"5000"`
	SweepInterval     time.Duration `env:"SWEEP_INTERVAL" envDefault:"30s"`
	IntegrityInterval time.Duration `env:"INTEGRITY_INTERVAL" envDefault:"5m"`
	OutboxBatchSize   int           `env:"OUTBOX_BATCH_SIZE" envDefault:"100"`

	EnableCloseSweep     bool `env:"ENABLE_CLOSE_SWEEP" envDefault:"true"`
	EnableIntegrityCheck bool `env:"ENABLE_INTEGRITY_CHECK" envDefault:"true"`
	EnableAuditConsumer  bool `env:"ENABLE_AUDIT_CONSUMER" envDefault:"true"`
}

func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.DBDriver = strings.ToLower(strings.TrimSpace(cfg.DBDriver))
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	switch c.DBDriver {
	case DriverPostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			errs = append(errs, errors.New("POSTGRES_DSN is required when DB_DRIVER=postgres"))
		}
	case DriverSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			errs = append(errs, errors.New("SQLITE_PATH is required when DB_DRIVER=sqlite"))
		}
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER %q is not supported", c.DBDriver))
	}

	positive := []struct {
		name  string
		value int64
	}{
		{"REQUEST_TIMEOUT", int64(c.RequestTimeout)},
		{"VOTER_SESSION_TTL", int64(c.VoterSessionTTL)},
		{"ADMIN_SESSION_TTL", int64(c.AdminSessionTTL)},
		{"RATE_LIMIT_LOGIN_MAX", int64(c.RateLimitLoginMax)},
		{"RATE_LIMIT_LOGIN_WINDOW", int64(c.RateLimitLoginWindow)},
		{"RATE_LIMIT_REDEEM_MAX", int64(c.RateLimitRedeemMax)},
		{"RATE_LIMIT_REDEEM_WINDOW", int64(c.RateLimitRedeemWindow)},
		{"RATE_LIMIT_VOTE_MAX", int64(c.RateLimitVoteMax)},
		{"RATE_LIMIT_VOTE_WINDOW", int64(c.RateLimitVoteWindow)},
		{"RATE_LIMIT_FALLBACK_MAX_KEYS", int64(c.RateLimitFallbackMaxKeys)},
		{"TOKEN_BATCH_MAX", int64(c.TokenBatchMax)},
		{"SWEEP_INTERVAL", int64(c.SweepInterval)},
		{"INTEGRITY_INTERVAL", int64(c.IntegrityInterval)},
		{"OUTBOX_BATCH_SIZE", int64(c.OutboxBatchSize)},
	}
	for _, item := range positive {
		if item.value <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", item.name))
		}
	}
	if key := c.SessionCookieKey; key != "" && len(key) < 32 {
		errs = append(errs, errors.New("SESSION_COOKIE_KEY must be at least 32 bytes"))
	}
	return errors.Join(errs...)
}
