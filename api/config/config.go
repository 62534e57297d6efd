// Package config loads the vault API process configuration: an optional YAML file, then
// environment variables, then command-line flags applied by the caller.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/malbeclabs/feevault/vault/pkg/clickhouse"
	"github.com/malbeclabs/feevault/vault/pkg/store"
)

const (
	DefaultListenAddr  = "0.0.0.0:8080"
	DefaultMetricsAddr = "0.0.0.0:0"
	DefaultRateLimit   = 10
	DefaultRateBurst   = 20
)

type Config struct {
	ListenAddr  string `yaml:"listen_addr"`
	MetricsAddr string `yaml:"metrics_addr"`

	Postgres PostgresConfig `yaml:"postgres"`
	Pool     PoolConfig     `yaml:"pool"`
	Events   EventsConfig   `yaml:"events"`
	Sentry   SentryConfig   `yaml:"sentry"`

	// APIKeys maps an X-Api-Key value to the address it signs for.
	APIKeys     map[string]string `yaml:"api_keys"`
	CORSOrigins []string          `yaml:"cors_origins"`
	// RateLimit is the sustained requests per second allowed per client IP.
	RateLimit float64 `yaml:"rate_limit"`
	RateBurst int     `yaml:"rate_burst"`

	// Vaults are created by the admin CLI's --init-vaults.
	Vaults []VaultSpec `yaml:"vaults"`
}

// PoolConfig points at the lending pool gateway.
type PoolConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
}

type EventsConfig struct {
	Kafka      KafkaConfig      `yaml:"kafka"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type ClickHouseConfig struct {
	Addr     string `yaml:"addr"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Secure   bool   `yaml:"secure"`
}

// Client returns the ClickHouse client configuration.
func (c ClickHouseConfig) Client() clickhouse.Config {
	return clickhouse.Config{
		Addr:     c.Addr,
		Database: c.Database,
		Username: c.Username,
		Password: c.Password,
		Secure:   c.Secure,
	}
}

type SentryConfig struct {
	DSN         string `yaml:"dsn"`
	Environment string `yaml:"environment"`
}

// VaultSpec describes one vault to bootstrap.
type VaultSpec struct {
	ID                string `yaml:"id"`
	store.VaultConfig `yaml:",inline"`
}

// Load reads path, if set, and overlays the environment.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Config) applyEnv() error {
	setFromEnv(&cfg.ListenAddr, "LISTEN_ADDR")
	setFromEnv(&cfg.MetricsAddr, "METRICS_ADDR")
	cfg.Postgres.applyEnv()
	setFromEnv(&cfg.Pool.BaseURL, "POOL_GATEWAY_URL")
	setFromEnv(&cfg.Pool.APIKey, "POOL_GATEWAY_API_KEY")
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Events.Kafka.Brokers = splitList(v)
	}
	setFromEnv(&cfg.Events.Kafka.Topic, "KAFKA_TOPIC")
	setFromEnv(&cfg.Events.ClickHouse.Addr, "CLICKHOUSE_ADDR_TCP")
	setFromEnv(&cfg.Events.ClickHouse.Database, "CLICKHOUSE_DATABASE")
	setFromEnv(&cfg.Events.ClickHouse.Username, "CLICKHOUSE_USERNAME")
	setFromEnv(&cfg.Events.ClickHouse.Password, "CLICKHOUSE_PASSWORD")
	if os.Getenv("CLICKHOUSE_SECURE") == "true" {
		cfg.Events.ClickHouse.Secure = true
	}
	setFromEnv(&cfg.Sentry.DSN, "SENTRY_DSN")
	setFromEnv(&cfg.Sentry.Environment, "SENTRY_ENVIRONMENT")
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = splitList(v)
	}
	if v := os.Getenv("RATE_LIMIT"); v != "" {
		limit, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid RATE_LIMIT: %w", err)
		}
		cfg.RateLimit = limit
	}
	// API_KEYS is a comma separated list of key=address pairs.
	if v := os.Getenv("API_KEYS"); v != "" {
		keys, err := parseAPIKeys(v)
		if err != nil {
			return err
		}
		cfg.APIKeys = keys
	}
	return nil
}

// Validate fills defaults and checks the settings the API needs to serve.
func (cfg *Config) Validate() error {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = DefaultListenAddr
	}
	if cfg.MetricsAddr == "" {
		cfg.MetricsAddr = DefaultMetricsAddr
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = DefaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = DefaultRateBurst
	}
	if cfg.Sentry.Environment == "" {
		cfg.Sentry.Environment = "development"
	}
	if cfg.Pool.BaseURL == "" {
		return errors.New("pool gateway url is required (POOL_GATEWAY_URL)")
	}
	if cfg.Postgres.Enabled() {
		if err := cfg.Postgres.Validate(); err != nil {
			return err
		}
	}
	if len(cfg.Events.Kafka.Brokers) > 0 && cfg.Events.Kafka.Topic == "" {
		return errors.New("kafka topic is required when brokers are set")
	}
	seen := make(map[string]bool, len(cfg.Vaults))
	for i, v := range cfg.Vaults {
		if v.ID == "" {
			return fmt.Errorf("vaults[%d]: id is required", i)
		}
		if seen[v.ID] {
			return fmt.Errorf("vaults[%d]: duplicate id %s", i, v.ID)
		}
		seen[v.ID] = true
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseAPIKeys(s string) (map[string]string, error) {
	keys := make(map[string]string)
	for _, pair := range splitList(s) {
		key, addr, ok := strings.Cut(pair, "=")
		if !ok || key == "" || addr == "" {
			return nil, fmt.Errorf("invalid API_KEYS entry %q, want key=address", pair)
		}
		keys[key] = addr
	}
	return keys, nil
}
