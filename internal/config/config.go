// Package config loads the service configuration from config.yaml, .env and
// PROENGLISH_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/proenglish/go_proenglish/internal/backend"
	"github.com/proenglish/go_proenglish/internal/logger"
	"github.com/proenglish/go_proenglish/internal/payment"
	"github.com/proenglish/go_proenglish/internal/practice"
	"github.com/proenglish/go_proenglish/internal/querycache"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const envPrefix = "PROENGLISH"

type Config struct {
	Server   ServerConfig
	Backend  BackendConfig
	Cache    querycache.Config
	Payment  PaymentConfig
	Auth     AuthConfig
	Checkout CheckoutConfig
	Practice PracticeConfig
	Misc     MiscConfig
}

type ServerConfig struct {
	Port               int
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	IdleTimeout        time.Duration
	ShutDownTimeout    time.Duration
	RequestTimeout     time.Duration
	CORSAllowedOrigins string
}

type BackendConfig struct {
	Type            string
	BaseURL         string
	ServiceToken    string
	Timeout         time.Duration
	DataFilePath    string
	PersistInterval time.Duration
}

type PaymentConfig struct {
	Provider       string
	SecretKey      string
	PublishableKey string
	Currency       string
	// AutoSucceed makes in-memory intents succeed on creation.
	AutoSucceed bool
}

type AuthConfig struct {
	JWTSecret string
	Issuer    string
	TokenTTL  time.Duration
}

type CheckoutConfig struct {
	SessionTTL  time.Duration
	MaxSessions int
}

type PracticeConfig struct {
	MaxHearts       int
	RefillSpec      string
	RefillTimeout   time.Duration
	LeaderboardSize int
}

type MiscConfig struct {
	LogLevel string
	GinMode  string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.request_timeout", "15s")
	v.SetDefault("server.cors_allowed_origins", "*")

	v.SetDefault("backend.type", backend.TypeMemory)
	v.SetDefault("backend.base_url", "")
	v.SetDefault("backend.service_token", "")
	v.SetDefault("backend.timeout", "10s")
	v.SetDefault("backend.data_file_path", "./config/data/data.json")
	v.SetDefault("backend.persist_interval", "5s")

	def := querycache.DefaultConfig()
	v.SetDefault("cache.keep_unused_for", def.KeepUnusedFor)
	v.SetDefault("cache.fetch_timeout", def.FetchTimeout)
	v.SetDefault("cache.abort_on_last_unsubscribe", def.AbortOnLastUnsubscribe)

	v.SetDefault("payment.provider", payment.ProviderMemory)
	v.SetDefault("payment.secret_key", "")
	v.SetDefault("payment.publishable_key", "")
	v.SetDefault("payment.currency", "AOA")
	v.SetDefault("payment.auto_succeed", true)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "proenglish")
	v.SetDefault("auth.token_ttl", "24h")

	v.SetDefault("checkout.session_ttl", "30m")
	v.SetDefault("checkout.max_sessions", 10000)

	v.SetDefault("practice.max_hearts", practice.DefaultMaxHearts)
	v.SetDefault("practice.refill_spec", practice.DefaultRefillSpec)
	v.SetDefault("practice.refill_timeout", "30s")
	v.SetDefault("practice.leaderboard_size", 20)

	v.SetDefault("misc.log_level", "info")
	v.SetDefault("misc.gin_mode", "release")
}

// LoadConfig reads .env (if present), config.yaml from PROENGLISH_CONFIG_DIR,
// ./config or the working directory, and PROENGLISH_* variables, which take
// precedence: PROENGLISH_SERVER_PORT overrides server.port.
func LoadConfig() (*Config, error) {
	log := logger.WithComponent("config")
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if dir := os.Getenv(envPrefix + "_CONFIG_DIR"); dir != "" {
		v.AddConfigPath(dir)
	}
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config file error: %w", err)
		}
		log.Info("no config file found, using defaults and env vars")
	} else {
		log.Debugf("using config file %s", v.ConfigFileUsed())
	}

	port, err := getEnvOrViperPort(v, "PORT", "server.port")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:               port,
			ReadTimeout:        v.GetDuration("server.read_timeout"),
			WriteTimeout:       v.GetDuration("server.write_timeout"),
			IdleTimeout:        v.GetDuration("server.idle_timeout"),
			ShutDownTimeout:    v.GetDuration("server.shutdown_timeout"),
			RequestTimeout:     v.GetDuration("server.request_timeout"),
			CORSAllowedOrigins: v.GetString("server.cors_allowed_origins"),
		},
		Backend: BackendConfig{
			Type:            strings.ToLower(v.GetString("backend.type")),
			BaseURL:         v.GetString("backend.base_url"),
			ServiceToken:    v.GetString("backend.service_token"),
			Timeout:         v.GetDuration("backend.timeout"),
			DataFilePath:    v.GetString("backend.data_file_path"),
			PersistInterval: v.GetDuration("backend.persist_interval"),
		},
		Cache: querycache.Config{
			KeepUnusedFor:          v.GetDuration("cache.keep_unused_for"),
			FetchTimeout:           v.GetDuration("cache.fetch_timeout"),
			AbortOnLastUnsubscribe: v.GetBool("cache.abort_on_last_unsubscribe"),
		},
		Payment: PaymentConfig{
			Provider:       strings.ToLower(v.GetString("payment.provider")),
			SecretKey:      v.GetString("payment.secret_key"),
			PublishableKey: v.GetString("payment.publishable_key"),
			Currency:       strings.ToUpper(v.GetString("payment.currency")),
			AutoSucceed:    v.GetBool("payment.auto_succeed"),
		},
		Auth: AuthConfig{
			JWTSecret: getEnvOrDefault("JWT_SECRET", v.GetString("auth.jwt_secret")),
			Issuer:    v.GetString("auth.issuer"),
			TokenTTL:  v.GetDuration("auth.token_ttl"),
		},
		Checkout: CheckoutConfig{
			SessionTTL:  v.GetDuration("checkout.session_ttl"),
			MaxSessions: v.GetInt("checkout.max_sessions"),
		},
		Practice: PracticeConfig{
			MaxHearts:       v.GetInt("practice.max_hearts"),
			RefillSpec:      v.GetString("practice.refill_spec"),
			RefillTimeout:   v.GetDuration("practice.refill_timeout"),
			LeaderboardSize: v.GetInt("practice.leaderboard_size"),
		},
		Misc: MiscConfig{
			LogLevel: getEnvOrDefault("LOG_LEVEL", v.GetString("misc.log_level")),
			GinMode:  getEnvOrDefault("GIN_MODE", v.GetString("misc.gin_mode")),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	for name, d := range map[string]time.Duration{
		"server.read_timeout":     c.Server.ReadTimeout,
		"server.write_timeout":    c.Server.WriteTimeout,
		"server.idle_timeout":     c.Server.IdleTimeout,
		"server.shutdown_timeout": c.Server.ShutDownTimeout,
		"server.request_timeout":  c.Server.RequestTimeout,
		"backend.timeout":         c.Backend.Timeout,
		"auth.token_ttl":          c.Auth.TokenTTL,
		"checkout.session_ttl":    c.Checkout.SessionTTL,
		"practice.refill_timeout": c.Practice.RefillTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %v", name, d)
		}
	}

	switch c.Backend.Type {
	case backend.TypeHTTP:
		if c.Backend.BaseURL == "" {
			return errors.New("backend.base_url is required for the http backend")
		}
	case backend.TypeMemory:
		if c.Backend.DataFilePath == "" {
			return errors.New("backend.data_file_path is required for the memory backend")
		}
		if c.Backend.PersistInterval <= 0 {
			return fmt.Errorf("backend.persist_interval must be positive, got %v", c.Backend.PersistInterval)
		}
	default:
		return fmt.Errorf("unknown backend type: %s (supported: %s, %s)", c.Backend.Type, backend.TypeHTTP, backend.TypeMemory)
	}

	if err := c.Cache.Validate(); err != nil {
		return err
	}

	switch c.Payment.Provider {
	case payment.ProviderStripe:
		if c.Payment.SecretKey == "" || c.Payment.PublishableKey == "" {
			return errors.New("payment.secret_key and payment.publishable_key are required for stripe")
		}
	case payment.ProviderMemory:
	default:
		return fmt.Errorf("unknown payment provider: %s (supported: %s, %s)", c.Payment.Provider, payment.ProviderStripe, payment.ProviderMemory)
	}
	if len(c.Payment.Currency) != 3 {
		return fmt.Errorf("invalid payment currency: %q", c.Payment.Currency)
	}

	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required")
	}
	if c.Checkout.MaxSessions <= 0 {
		return fmt.Errorf("checkout.max_sessions must be positive, got %d", c.Checkout.MaxSessions)
	}
	if c.Practice.MaxHearts <= 0 {
		return fmt.Errorf("practice.max_hearts must be positive, got %d", c.Practice.MaxHearts)
	}
	if c.Practice.LeaderboardSize <= 0 {
		return fmt.Errorf("practice.leaderboard_size must be positive, got %d", c.Practice.LeaderboardSize)
	}
	if err := practice.ValidateSpec(c.Practice.RefillSpec); err != nil {
		return err
	}
	if _, err := logrus.ParseLevel(c.Misc.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.Misc.LogLevel, err)
	}
	switch c.Misc.GinMode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("invalid gin mode: %q", c.Misc.GinMode)
	}
	return nil
}

func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvOrViperPort(v *viper.Viper, envKey, viperKey string) (int, error) {
	if raw := os.Getenv(envKey); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil {
			return 0, fmt.Errorf("invalid %s value %q: %w", envKey, raw, err)
		}
		return port, nil
	}
	return v.GetInt(viperKey), nil
}
