package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/proenglish/go_proenglish/internal/querycache"
	"github.com/spf13/viper"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:               8080,
			ReadTimeout:        10 * time.Second,
			WriteTimeout:       10 * time.Second,
			IdleTimeout:        120 * time.Second,
			ShutDownTimeout:    5 * time.Second,
			RequestTimeout:     time.Second,
			CORSAllowedOrigins: "*",
		},
		Backend: BackendConfig{
			Type:            "memory",
			DataFilePath:    "/tmp/data.json",
			Timeout:         5 * time.Second,
			PersistInterval: 5 * time.Second,
		},
		Cache:    *querycache.DefaultConfig(),
		Payment:  PaymentConfig{Provider: "memory", Currency: "AOA"},
		Auth:     AuthConfig{JWTSecret: "secret", Issuer: "proenglish", TokenTTL: time.Hour},
		Checkout: CheckoutConfig{SessionTTL: time.Minute, MaxSessions: 100},
		Practice: PracticeConfig{MaxHearts: 5, RefillSpec: "0 0 * * * *", RefillTimeout: time.Second, LeaderboardSize: 10},
		Misc:     MiscConfig{LogLevel: "info", GinMode: "release"},
	}
}

func TestConfig_Validate_Valid(t *testing.T) {
	if err := validConfig().validate(); err != nil {
		t.Errorf("expected valid config, got error: %v", err)
	}
}

func TestConfig_Validate_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"port zero", func(c *Config) { c.Server.Port = 0 }, "invalid server port"},
		{"port too high", func(c *Config) { c.Server.Port = 70000 }, "invalid server port"},
		{"read timeout", func(c *Config) { c.Server.ReadTimeout = 0 }, "server.read_timeout"},
		{"request timeout", func(c *Config) { c.Server.RequestTimeout = -time.Second }, "server.request_timeout"},
		{"http without url", func(c *Config) { c.Backend.Type = "http" }, "backend.base_url"},
		{"memory without file", func(c *Config) { c.Backend.DataFilePath = "" }, "backend.data_file_path"},
		{"memory without interval", func(c *Config) { c.Backend.PersistInterval = 0 }, "backend.persist_interval"},
		{"unknown backend", func(c *Config) { c.Backend.Type = "grpc" }, "unknown backend type"},
		{"cache retention", func(c *Config) { c.Cache.KeepUnusedFor = -time.Second }, "keep"},
		{"stripe without keys", func(c *Config) { c.Payment.Provider = "stripe" }, "stripe"},
		{"unknown provider", func(c *Config) { c.Payment.Provider = "paypal" }, "unknown payment provider"},
		{"currency", func(c *Config) { c.Payment.Currency = "KZ" }, "currency"},
		{"jwt secret", func(c *Config) { c.Auth.JWTSecret = "" }, "jwt_secret"},
		{"max sessions", func(c *Config) { c.Checkout.MaxSessions = 0 }, "max_sessions"},
		{"max hearts", func(c *Config) { c.Practice.MaxHearts = 0 }, "max_hearts"},
		{"leaderboard size", func(c *Config) { c.Practice.LeaderboardSize = 0 }, "leaderboard_size"},
		{"refill spec", func(c *Config) { c.Practice.RefillSpec = "whenever" }, "refill spec"},
		{"log level", func(c *Config) { c.Misc.LogLevel = "loud" }, "log level"},
		{"gin mode", func(c *Config) { c.Misc.GinMode = "turbo" }, "gin mode"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(strings.ToLower(err.Error()), strings.ToLower(tt.wantErr)) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestGetEnvOrDefault(t *testing.T) {
	t.Setenv("TEST_ENV_VAR", "custom_value")
	if got := getEnvOrDefault("TEST_ENV_VAR", "default_value"); got != "custom_value" {
		t.Errorf("expected 'custom_value', got '%s'", got)
	}
	if got := getEnvOrDefault("NONEXISTENT_VAR", "default_value"); got != "default_value" {
		t.Errorf("expected 'default_value', got '%s'", got)
	}
	t.Setenv("TEST_EMPTY_VAR", "")
	if got := getEnvOrDefault("TEST_EMPTY_VAR", "default_value"); got != "default_value" {
		t.Errorf("expected empty env to fall back, got '%s'", got)
	}
}

func TestGetEnvOrViperPort(t *testing.T) {
	v := viper.New()
	v.Set("server.port", 7070)

	port, err := getEnvOrViperPort(v, "NONEXISTENT_PORT_VAR_12345", "server.port")
	if err != nil || port != 7070 {
		t.Errorf("expected viper port 7070, got %d, %v", port, err)
	}

	t.Setenv("TEST_PORT", "9090")
	port, err = getEnvOrViperPort(v, "TEST_PORT", "server.port")
	if err != nil || port != 9090 {
		t.Errorf("expected env port 9090, got %d, %v", port, err)
	}

	t.Setenv("TEST_PORT_INVALID", "not_a_number")
	if _, err := getEnvOrViperPort(v, "TEST_PORT_INVALID", "server.port"); err == nil {
		t.Error("expected error for invalid port")
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PROENGLISH_AUTH_JWT_SECRET", "secret")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("expected no error loading config, got: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Backend.Type != "memory" || cfg.Payment.Provider != "memory" {
		t.Errorf("expected memory defaults, got %s/%s", cfg.Backend.Type, cfg.Payment.Provider)
	}
	if cfg.Practice.MaxHearts != 5 {
		t.Errorf("expected 5 hearts, got %d", cfg.Practice.MaxHearts)
	}
	if cfg.Cache.KeepUnusedFor != 60*time.Second {
		t.Errorf("expected 60s retention, got %v", cfg.Cache.KeepUnusedFor)
	}
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(t.TempDir())
	yaml := `
server:
  port: 9000
backend:
  type: http
  base_url: https://api.example.ao
practice:
  max_hearts: 3
auth:
  jwt_secret: from-file
`
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("PROENGLISH_CONFIG_DIR", dir)
	t.Setenv("PROENGLISH_PRACTICE_MAX_HEARTS", "4")
	t.Setenv("PORT", "9999")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("expected no error loading config, got: %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("expected PORT to win, got %d", cfg.Server.Port)
	}
	if cfg.Backend.Type != "http" || cfg.Backend.BaseURL != "https://api.example.ao" {
		t.Errorf("expected http backend from file, got %+v", cfg.Backend)
	}
	if cfg.Practice.MaxHearts != 4 {
		t.Errorf("expected env to override file, got %d", cfg.Practice.MaxHearts)
	}
	if cfg.Auth.JWTSecret != "from-file" {
		t.Errorf("expected secret from file, got %q", cfg.Auth.JWTSecret)
	}
}

func TestLoadConfig_InvalidPort(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PROENGLISH_AUTH_JWT_SECRET", "secret")
	t.Setenv("PORT", "abc")
	if _, err := LoadConfig(); err == nil {
		t.Error("expected error for invalid PORT")
	}
}

func TestLoadConfig_MissingSecret(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("JWT_SECRET", "")
	t.Setenv("PROENGLISH_AUTH_JWT_SECRET", "")
	if _, err := LoadConfig(); err == nil {
		t.Error("expected error without a jwt secret")
	}
}
