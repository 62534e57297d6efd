package config

import (
	"fmt"
	"net/url"
	"os"
)

// PostgresConfig describes how to reach the vault database.
type PostgresConfig struct {
	// URL takes precedence over the individual fields when set.
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

// Enabled reports whether a database is configured. Without one the API keeps vaults in memory.
func (c PostgresConfig) Enabled() bool {
	return c.URL != "" || c.Database != ""
}

// applyEnv overlays the POSTGRES_* environment variables.
func (c *PostgresConfig) applyEnv() {
	setFromEnv(&c.URL, "POSTGRES_URL")
	setFromEnv(&c.Host, "POSTGRES_HOST")
	setFromEnv(&c.Port, "POSTGRES_PORT")
	setFromEnv(&c.Database, "POSTGRES_DB")
	setFromEnv(&c.Username, "POSTGRES_USER")
	setFromEnv(&c.Password, "POSTGRES_PASSWORD")
	setFromEnv(&c.SSLMode, "POSTGRES_SSLMODE")
}

func (c *PostgresConfig) Validate() error {
	if c.URL != "" {
		if _, err := url.Parse(c.URL); err != nil {
			return fmt.Errorf("invalid postgres url: %w", err)
		}
		return nil
	}
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == "" {
		c.Port = "5432"
	}
	if c.SSLMode == "" {
		c.SSLMode = "disable"
	}
	if c.Database == "" {
		return fmt.Errorf("POSTGRES_DB is required")
	}
	if c.Username == "" {
		return fmt.Errorf("POSTGRES_USER is required")
	}
	if c.Password == "" {
		return fmt.Errorf("POSTGRES_PASSWORD is required")
	}
	return nil
}

// ConnString returns the connection URL. Call Validate first.
func (c PostgresConfig) ConnString() string {
	if c.URL != "" {
		return c.URL
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Username, c.Password),
		Host:     c.Host + ":" + c.Port,
		Path:     "/" + c.Database,
		RawQuery: "sslmode=" + url.QueryEscape(c.SSLMode),
	}
	return u.String()
}

func setFromEnv(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
