package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/malbeclabs/feevault/api/config"
	"github.com/malbeclabs/feevault/vault/pkg/ledger"
)

const sampleConfig = `
listen_addr: 127.0.0.1:9000
pool:
  base_url: http://gateway:8081
postgres:
  host: db
  database: feevault
  username: vault
  password: secret
api_keys:
  k-admin: GADMIN
vaults:
  - id: usdc-take
    admin: GADMIN
    pool: CPOOL
    asset: CUSDC
    fee:
      rate_type: 0
      rate: 1000000
  - id: usdc-fixed
    admin: GADMIN
    pool: CPOOL
    asset: CUSDC
    signer: GSIGNER
    fee:
      rate_type: 2
      rate: 500000
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestFeeVault_API_Config_Load(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "127.0.0.1:9000", cfg.ListenAddr)
	assert.Equal(t, config.DefaultMetricsAddr, cfg.MetricsAddr)
	assert.Equal(t, float64(config.DefaultRateLimit), cfg.RateLimit)
	assert.Equal(t, "development", cfg.Sentry.Environment)
	assert.Equal(t, map[string]string{"k-admin": "GADMIN"}, cfg.APIKeys)

	require.Len(t, cfg.Vaults, 2)
	assert.Equal(t, "usdc-take", cfg.Vaults[0].ID)
	assert.Equal(t, ledger.Fee{RateType: ledger.TakeRate, Rate: 1_000_000}, cfg.Vaults[0].Fee)
	assert.Equal(t, "GSIGNER", cfg.Vaults[1].Signer)
	assert.Equal(t, ledger.FixedRate, cfg.Vaults[1].Fee.RateType)

	assert.True(t, cfg.Postgres.Enabled())
	assert.Equal(t, "postgres://vault:secret@db:5432/feevault?sslmode=disable", cfg.Postgres.ConnString())
}

func TestFeeVault_API_Config_Env(t *testing.T) {
	t.Setenv("POOL_GATEWAY_URL", "http://env-gateway")
	t.Setenv("POSTGRES_URL", "postgres://u:p@h:5432/d")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("KAFKA_TOPIC", "vault-events")
	t.Setenv("API_KEYS", "a=GA,b=GB")
	t.Setenv("RATE_LIMIT", "2.5")

	cfg, err := config.Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "http://env-gateway", cfg.Pool.BaseURL)
	assert.Equal(t, "postgres://u:p@h:5432/d", cfg.Postgres.ConnString())
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Events.Kafka.Brokers)
	assert.Equal(t, "vault-events", cfg.Events.Kafka.Topic)
	assert.Equal(t, map[string]string{"a": "GA", "b": "GB"}, cfg.APIKeys)
	assert.Equal(t, 2.5, cfg.RateLimit)

	t.Setenv("API_KEYS", "missing-address")
	_, err = config.Load("")
	require.ErrorContains(t, err, "invalid API_KEYS entry")
}

func TestFeeVault_API_Config_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     config.Config
		wantErr string
	}{
		{
			name:    "missing pool gateway",
			cfg:     config.Config{},
			wantErr: "pool gateway url is required",
		},
		{
			name: "postgres without credentials",
			cfg: config.Config{
				Pool:     config.PoolConfig{BaseURL: "http://gw"},
				Postgres: config.PostgresConfig{Database: "feevault"},
			},
			wantErr: "POSTGRES_USER is required",
		},
		{
			name: "kafka without topic",
			cfg: config.Config{
				Pool:   config.PoolConfig{BaseURL: "http://gw"},
				Events: config.EventsConfig{Kafka: config.KafkaConfig{Brokers: []string{"k:9092"}}},
			},
			wantErr: "kafka topic is required",
		},
		{
			name: "duplicate vault",
			cfg: config.Config{
				Pool:   config.PoolConfig{BaseURL: "http://gw"},
				Vaults: []config.VaultSpec{{ID: "a"}, {ID: "a"}},
			},
			wantErr: "duplicate id a",
		},
		{
			name: "memory store",
			cfg:  config.Config{Pool: config.PoolConfig{BaseURL: "http://gw"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := tt.cfg
			err := cfg.Validate()
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.False(t, cfg.Postgres.Enabled())
		})
	}
}
