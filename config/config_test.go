package config

import (
	"testing"
	"time"

	env "github.com/caarlos0/env/v11"
)

func TestParseDefaults(t *testing.T) {
	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("parse config: %v", err)
	}
	cfg.Sanitize()

	if cfg.Auth.Mode != AuthModeOAuth {
		t.Errorf("default auth mode = %q, want %q", cfg.Auth.Mode, AuthModeOAuth)
	}
	if cfg.Postgres.Host != "localhost" || cfg.Postgres.Port != 5432 {
		t.Errorf("unexpected postgres defaults: %s:%d", cfg.Postgres.Host, cfg.Postgres.Port)
	}
	if cfg.Redis.Addr != "localhost:6379" {
		t.Errorf("unexpected redis default addr: %s", cfg.Redis.Addr)
	}
	if cfg.Session.PersistTTL != 720*time.Hour {
		t.Errorf("default persist TTL = %s, want 720h", cfg.Session.PersistTTL)
	}
	if cfg.Session.SuppressWindow != 5*time.Second {
		t.Errorf("default suppress window = %s, want 5s", cfg.Session.SuppressWindow)
	}
	if cfg.Observability.Metrics.IsEnabled() {
		t.Error("metrics must be disabled by default")
	}
}

func TestParseEnvironmentOverrides(t *testing.T) {
	t.Setenv("AUTH_MODE", "mock")
	t.Setenv("DEV_AUTH_USER_ID", "tester")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("REDIS_ADDR", "cache.internal:6380")
	t.Setenv("SESSION_PERSIST_TTL", "24h")
	t.Setenv("OAUTH_USER_ID_CLAIM", "identity.user_id")

	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("parse config: %v", err)
	}
	cfg.Sanitize()

	if cfg.Auth.Mode != AuthModeMock {
		t.Errorf("auth mode = %q, want mock", cfg.Auth.Mode)
	}
	if cfg.Auth.DevAuth.UserID != "tester" {
		t.Errorf("dev auth user = %q, want tester", cfg.Auth.DevAuth.UserID)
	}
	if cfg.Postgres.Host != "db.internal" {
		t.Errorf("postgres host = %q", cfg.Postgres.Host)
	}
	if cfg.Redis.Addr != "cache.internal:6380" {
		t.Errorf("redis addr = %q", cfg.Redis.Addr)
	}
	if cfg.Session.PersistTTL != 24*time.Hour {
		t.Errorf("persist TTL = %s, want 24h", cfg.Session.PersistTTL)
	}
	if cfg.Auth.OAuth.UserIDClaim != "identity.user_id" {
		t.Errorf("user id claim = %q", cfg.Auth.OAuth.UserIDClaim)
	}
}

func TestAuthModeRejectsUnknownValues(t *testing.T) {
	t.Setenv("AUTH_MODE", "saml")

	var cfg AppConfig
	if err := env.Parse(&cfg); err == nil {
		t.Fatal("expected parse error for unknown auth mode")
	}
}

func TestDetectDevModeFromNodeEnv(t *testing.T) {
	t.Setenv("NODE_ENV", "development")

	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("parse config: %v", err)
	}
	cfg.Sanitize()

	if !cfg.IsDev {
		t.Error("NODE_ENV=development must enable dev mode")
	}
}

func TestMetricsSanitizeDisablesOnBlankAddress(t *testing.T) {
	cfg := ObservabilityMetricsConfig{Enabled: true, StatsdAddress: "   "}
	cfg.Sanitize()
	if cfg.IsEnabled() {
		t.Error("blank statsd address must disable metrics")
	}
}
