package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("DB_DSN", "postgres://localhost/dispatch")
	t.Setenv("JWT_ACCESS_SECRET", "secret")
	t.Setenv("EXTERNAL_API_KEY", "key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTP.Host != "0.0.0.0" || cfg.HTTP.Port != 7090 {
		t.Fatalf("unexpected http defaults: %+v", cfg.HTTP)
	}
	if cfg.Environment != "development" {
		t.Fatalf("expected development env, got %q", cfg.Environment)
	}
	if cfg.Geocoder.Timeout != 5*time.Second {
		t.Fatalf("expected 5s geocoder timeout, got %s", cfg.Geocoder.Timeout)
	}
	if cfg.Files.Backend != FilesBackendLocal || cfg.Files.UploadDir != "./uploads" {
		t.Fatalf("unexpected files defaults: %+v", cfg.Files)
	}
	if cfg.Files.MaxUploadBytes != 16<<20 {
		t.Fatalf("unexpected max upload: %d", cfg.Files.MaxUploadBytes)
	}
	if !cfg.MetricsEnabled {
		t.Fatalf("metrics should be enabled by default")
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg := &Config{
			DB:   DBConfig{DSN: "dsn"},
			Auth: AuthConfig{AccessSecret: "s", ExternalAPIKey: "k"},
		}
		applyDefaults(cfg)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing dsn", mutate: func(c *Config) { c.DB.DSN = "" }, wantErr: "DB_DSN"},
		{name: "missing jwt secret", mutate: func(c *Config) { c.Auth.AccessSecret = "" }, wantErr: "JWT_ACCESS_SECRET"},
		{name: "missing api key", mutate: func(c *Config) { c.Auth.ExternalAPIKey = "" }, wantErr: "EXTERNAL_API_KEY"},
		{name: "gcs without bucket", mutate: func(c *Config) { c.Files.Backend = FilesBackendGCS }, wantErr: "FILES_GCS_BUCKET"},
		{name: "unknown backend", mutate: func(c *Config) { c.Files.Backend = "s3" }, wantErr: "unknown FILES_BACKEND"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := validate(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}
