package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("DB_DRIVER", " SQLite ")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DBDriver != DriverSQLite {
		t.Fatalf("expected normalized driver, got %q", cfg.DBDriver)
	}
	if cfg.HTTPPort != "8080" || cfg.ServiceName != "ballot" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.VoterSessionTTL != 30*time.Minute || cfg.AdminSessionTTL != 12*time.Hour {
		t.Fatalf("unexpected session ttl defaults %v %v", cfg.VoterSessionTTL, cfg.AdminSessionTTL)
	}
	if cfg.RateLimitLoginMax != 10 || cfg.RateLimitLoginWindow != time.Minute {
		t.Fatalf("unexpected login limit defaults %d %v", cfg.RateLimitLoginMax, cfg.RateLimitLoginWindow)
	}
	if !cfg.EnableCloseSweep || !cfg.EnableIntegrityCheck || !cfg.EnableAuditConsumer {
		t.Fatalf("workers must default to enabled")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults with sqlite should validate: %v", err)
	}
}

func TestLoadReadsOverrides(t *testing.T) {
	t.Setenv("RATE_LIMIT_VOTE_MAX", "3")
	t.Setenv("SWEEP_INTERVAL", "5s")
	t.Setenv("ENABLE_AUDIT_CONSUMER", "false")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RateLimitVoteMax != 3 || cfg.SweepInterval != 5*time.Second || cfg.EnableAuditConsumer {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	t.Setenv("REQUEST_TIMEOUT", "soon")
	if _, err := Load(); err == nil {
		t.Fatalf("expected parse error for malformed duration")
	}
}

func TestValidate(t *testing.T) {
	base, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"postgres without dsn", func(c *Config) { c.DBDriver = DriverPostgres; c.PostgresDSN = "" }, "POSTGRES_DSN"},
		{"unknown driver", func(c *Config) { c.DBDriver = "mysql" }, "DB_DRIVER"},
		{"zero vote limit", func(c *Config) { c.DBDriver = DriverSQLite; c.RateLimitVoteMax = 0 }, "RATE_LIMIT_VOTE_MAX"},
		{"short cookie key", func(c *Config) { c.DBDriver = DriverSQLite; c.SessionCookieKey = "short" }, "SESSION_COOKIE_KEY"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %s, got %v", tc.want, err)
			}
		})
	}
}
