// Copyright 2025 James Ross
package config

import "testing"

func TestLoadFailsWithoutEndpoint(t *testing.T) {
	// No config file and no env vars set means endpoint.url/auth_token
	// are empty, which Validate rejects (spec.md §6).
	if _, err := Load("nonexistent.yaml"); err == nil {
		t.Fatal("expected Load to fail validation with no endpoint configured")
	}
}

func TestDefaultConfigValues(t *testing.T) {
	def := defaultConfig()
	if def.Cache.BatchSize != 100 {
		t.Fatalf("expected default batch size 100, got %d", def.Cache.BatchSize)
	}
	if def.Redis.Addr == "" {
		t.Fatalf("expected default redis addr")
	}
}

func TestValidateRequiresEndpoint(t *testing.T) {
	cfg := defaultConfig()
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for missing endpoint.url/auth_token")
	}
}

func TestValidateFailsOnBadBounds(t *testing.T) {
	cfg := defaultConfig()
	cfg.Cache.Endpoint.URL = "https://example.com"
	cfg.Cache.Endpoint.AuthToken = "tok"

	cfg.Cache.BatchSize = 0
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for batch_size < 1")
	}

	cfg = defaultConfig()
	cfg.Cache.Endpoint.URL = "https://example.com"
	cfg.Cache.Endpoint.AuthToken = "tok"
	cfg.Cache.MaxRetry = 0
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for max_retry < 1")
	}

	cfg = defaultConfig()
	cfg.Cache.Endpoint.URL = "https://example.com"
	cfg.Cache.Endpoint.AuthToken = "tok"
	cfg.Observability.MetricsPort = 0
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for out-of-range metrics_port")
	}
}

func TestValidatePassesWithEndpointConfigured(t *testing.T) {
	cfg := defaultConfig()
	cfg.Cache.Endpoint.URL = "https://example.com"
	cfg.Cache.Endpoint.AuthToken = "tok"
	if err := Validate(cfg); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}
