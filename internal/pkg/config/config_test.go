package config

import (
	"context"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := LoadWith(context.Background(), envconfig.MapLookuper(map[string]string{
		"JWT_SECRET": "s3cret",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Port != "5000" || cfg.Env != "development" || cfg.IsProduction() {
		t.Fatalf("unexpected server defaults: %+v", cfg)
	}
	if cfg.Auth.SessionTokenTTL != 168*time.Hour || cfg.Auth.ResetTokenTTL != time.Hour || cfg.Auth.BcryptCost != 12 {
		t.Fatalf("unexpected auth defaults: %+v", cfg.Auth)
	}
	if len(cfg.Gateway.AllowedOrigins) != 1 || cfg.Gateway.AllowedOrigins[0] != "http://localhost:3000" {
		t.Fatalf("unexpected origins: %v", cfg.Gateway.AllowedOrigins)
	}
	if cfg.Redis.IdentityCacheTTL != 30*time.Second || cfg.Redis.Addr != "" {
		t.Fatalf("unexpected redis defaults: %+v", cfg.Redis)
	}
}

func TestLoad_RequiresSecret(t *testing.T) {
	if _, err := LoadWith(context.Background(), envconfig.MapLookuper(map[string]string{})); err == nil {
		t.Fatalf("expected error without JWT_SECRET")
	}
}

func TestLoad_Overrides(t *testing.T) {
	cfg, err := LoadWith(context.Background(), envconfig.MapLookuper(map[string]string{
		"JWT_SECRET":            "s3cret",
		"ENV":                   "production",
		"SESSION_TOKEN_TTL":     "2h",
		"SOCKET_ALLOWED_ORIGIN": "https://a.example,https://b.example",
		"REDIS_ADDR":            "redis:6379",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.IsProduction() || cfg.Auth.SessionTokenTTL != 2*time.Hour || cfg.Redis.Addr != "redis:6379" {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if len(cfg.Gateway.AllowedOrigins) != 2 {
		t.Fatalf("expected two origins, got %v", cfg.Gateway.AllowedOrigins)
	}
}
