package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.HTTP.Port)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Empty(t, cfg.Redis.Addr)
}

func TestLoad_FileOverDefaults(t *testing.T) {
	path := writeConfig(t, `
http:
  port: "9090"
  request_timeout: 5s
database:
  host: db.internal
  name: bookings
kafka:
  brokers: [k1:9092, k2:9092]
redis:
  addr: redis:6379
stripe:
  customer_id: cus_123
`)

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.HTTP.Port)
	assert.Equal(t, 5*time.Second, cfg.HTTP.RequestTimeout)
	assert.Equal(t, 10*time.Second, cfg.HTTP.ShutdownTimeout)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, "postgres", cfg.Database.User)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, "cus_123", cfg.Stripe.CustomerID)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "http:\n  port: \"9090\"\n")
	t.Setenv("HTTP_PORT", "7070")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("KAFKA_BROKERS", " a:1 , ,b:2")
	t.Setenv("REQUEST_TIMEOUT", "2s")
	t.Setenv("STRIPE_SECRET_KEY", "sk_test_x")

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, "7070", cfg.HTTP.Port)
	assert.Equal(t, 6543, cfg.Database.Port)
	assert.Equal(t, []string{"a:1", "b:2"}, cfg.Kafka.Brokers)
	assert.Equal(t, 2*time.Second, cfg.HTTP.RequestTimeout)
	assert.Equal(t, "sk_test_x", cfg.Stripe.SecretKey)
}

func TestLoad_InvalidEnvFailsFast(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"DB_PORT", "five"},
		{"REQUEST_TIMEOUT", "soon"},
		{"STRIPE_TIMEOUT", "10"},
		{"ORDERS_TIMEOUT", "x"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			_, err := Load("")

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestLoad_FileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")

	_, err = Load(writeConfig(t, "http: [\n"))
	assert.ErrorContains(t, err, "failed to parse config file")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty port", func(c *Config) { c.HTTP.Port = "" }},
		{"non-numeric port", func(c *Config) { c.HTTP.Port = "http" }},
		{"zero request timeout", func(c *Config) { c.HTTP.RequestTimeout = 0 }},
		{"no db host", func(c *Config) { c.Database.Host = "" }},
		{"db port out of range", func(c *Config) { c.Database.Port = 70000 }},
		{"no brokers", func(c *Config) { c.Kafka.Brokers = nil }},
		{"zero stripe timeout", func(c *Config) { c.Stripe.Timeout = 0 }},
		{"zero orders timeout", func(c *Config) { c.Orders.Timeout = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
	assert.NoError(t, Default().Validate())
}

func TestValidateGateway(t *testing.T) {
	cfg := Default()
	assert.Error(t, cfg.ValidateGateway())

	cfg.Stripe.SecretKey = "pk_test_public"
	cfg.Stripe.CustomerID = "cus_1"
	assert.Error(t, cfg.ValidateGateway())

	cfg.Stripe.SecretKey = "sk_test_secret"
	assert.NoError(t, cfg.ValidateGateway())
}

func TestCredentials(t *testing.T) {
	cfg := Default()
	creds := cfg.Credentials()

	assert.Equal(t, cfg.Database.Host, creds.Host)
	assert.Equal(t, cfg.Database.Port, creds.Port)
	assert.Equal(t, cfg.Database.Name, creds.DBName)
	assert.Equal(t, cfg.Database.MigrationsPath, creds.MigrationsDirPath)
}
