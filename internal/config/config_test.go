package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadConfig(t *testing.T) {
	if err := os.Setenv("SERVER_PORT", "9090"); err != nil {
		t.Fatalf("Failed to set SERVER_PORT: %v", err)
	}
	if err := os.Setenv("POSTGRES_HOST", "testhost"); err != nil {
		t.Fatalf("Failed to set POSTGRES_HOST: %v", err)
	}
	if err := os.Setenv("REGISTRY_CACHE_TTL", "30s"); err != nil {
		t.Fatalf("Failed to set REGISTRY_CACHE_TTL: %v", err)
	}
	defer func() {
		_ = os.Unsetenv("SERVER_PORT")
		_ = os.Unsetenv("POSTGRES_HOST")
		_ = os.Unsetenv("REGISTRY_CACHE_TTL")
	}()

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("Server.Port = %v, want %v", cfg.Server.Port, "9090")
	}

	if cfg.Database.Postgres.Host != "testhost" {
		t.Errorf("Database.Postgres.Host = %v, want %v", cfg.Database.Postgres.Host, "testhost")
	}

	if cfg.Registry.CacheTTL != 30*time.Second {
		t.Errorf("Registry.CacheTTL = %v, want %v", cfg.Registry.CacheTTL, 30*time.Second)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.RateLimit.PerUserRPS <= 0 {
		t.Errorf("RateLimit.PerUserRPS = %v, want > 0", cfg.RateLimit.PerUserRPS)
	}

	if cfg.Audit.WriteAttempts <= 0 {
		t.Errorf("Audit.WriteAttempts = %v, want > 0", cfg.Audit.WriteAttempts)
	}

	if cfg.Logging.Level == "" {
		t.Error("Logging.Level is empty, want a default")
	}
}

func TestPostgresConfig_URL(t *testing.T) {
	cfg := &PostgresConfig{
		Host:     "db",
		Port:     "5433",
		Database: "privacy",
		User:     "svc",
		Password: "secret",
	}

	want := "postgres://svc:secret@db:5433/privacy?sslmode=disable"
	if got := cfg.URL(); got != want {
		t.Errorf("URL() = %v, want %v", got, want)
	}
}

func TestGetEnv(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		want         string
	}{
		{
			name:         "returns env value when set",
			key:          "TEST_GET_ENV_SET",
			defaultValue: "fallback",
			envValue:     "configured",
			want:         "configured",
		},
		{
			name:         "returns default when unset",
			key:          "TEST_GET_ENV_UNSET",
			defaultValue: "fallback",
			envValue:     "",
			want:         "fallback",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				if err := os.Setenv(tt.key, tt.envValue); err != nil {
					t.Fatalf("Failed to set %s: %v", tt.key, err)
				}
				defer func() { _ = os.Unsetenv(tt.key) }()
			}

			if got := getEnv(tt.key, tt.defaultValue); got != tt.want {
				t.Errorf("getEnv(%q) = %v, want %v", tt.key, got, tt.want)
			}
		})
	}
}

func TestGetEnvAsInt_Invalid(t *testing.T) {
	if err := os.Setenv("TEST_INT_INVALID", "not-a-number"); err != nil {
		t.Fatalf("Failed to set env: %v", err)
	}
	defer func() { _ = os.Unsetenv("TEST_INT_INVALID") }()

	if got := getEnvAsInt("TEST_INT_INVALID", 42); got != 42 {
		t.Errorf("getEnvAsInt() = %v, want default 42", got)
	}
}
