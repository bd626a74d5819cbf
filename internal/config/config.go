package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	r "github.com/fjod/go_cart/checkout-engine/internal/repository"
	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Stripe   StripeConfig   `yaml:"stripe"`
	Orders   OrdersConfig   `yaml:"orders"`
}

type HTTPConfig struct {
	Port            string        `yaml:"port"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	User           string `yaml:"user"`
	Password       string `yaml:"password"`
	Name           string `yaml:"name"`
	MigrationsPath string `yaml:"migrations_path"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
}

// RedisConfig enables the payment method cache when Addr is set.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type StripeConfig struct {
	SecretKey  string        `yaml:"secret_key"`
	CustomerID string        `yaml:"customer_id"`
	Timeout    time.Duration `yaml:"timeout"`
}

// OrdersConfig is where checkout clients find the orders API.
type OrdersConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

func Default() Config {
	return Config{
		HTTP: HTTPConfig{
			Port:            "8080",
			RequestTimeout:  30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Host:           "localhost",
			Port:           5432,
			User:           "postgres",
			Password:       "postgres",
			Name:           "ecommerce",
			MigrationsPath: "./internal/repository/migrations",
		},
		Kafka:  KafkaConfig{Brokers: []string{"localhost:9092"}},
		Stripe: StripeConfig{Timeout: 20 * time.Second},
		Orders: OrdersConfig{BaseURL: "http://localhost:8080", Timeout: 30 * time.Second},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnvOverrides returns an error for malformed values instead of falling
// back to the file or the defaults.
func applyEnvOverrides(cfg *Config) error {
	setString(&cfg.HTTP.Port, "HTTP_PORT")
	if err := setDuration(&cfg.HTTP.RequestTimeout, "REQUEST_TIMEOUT"); err != nil {
		return err
	}
	if err := setDuration(&cfg.HTTP.ShutdownTimeout, "SHUTDOWN_TIMEOUT"); err != nil {
		return err
	}

	setString(&cfg.Database.Host, "DB_HOST")
	if port := os.Getenv("DB_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid DB_PORT %q: %w", port, err)
		}
		cfg.Database.Port = p
	}
	setString(&cfg.Database.User, "DB_USER")
	setString(&cfg.Database.Password, "DB_PASSWORD")
	setString(&cfg.Database.Name, "DB_NAME")
	setString(&cfg.Database.MigrationsPath, "MIGRATIONS_PATH")

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.Kafka.Brokers = splitList(brokers)
	}

	setString(&cfg.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")

	setString(&cfg.Stripe.SecretKey, "STRIPE_SECRET_KEY")
	setString(&cfg.Stripe.CustomerID, "STRIPE_CUSTOMER_ID")
	if err := setDuration(&cfg.Stripe.Timeout, "STRIPE_TIMEOUT"); err != nil {
		return err
	}

	setString(&cfg.Orders.BaseURL, "ORDERS_BASE_URL")
	return setDuration(&cfg.Orders.Timeout, "ORDERS_TIMEOUT")
}

func (c Config) Validate() error {
	if c.HTTP.Port == "" {
		return errors.New("http.port must be set")
	}
	if _, err := strconv.Atoi(c.HTTP.Port); err != nil {
		return fmt.Errorf("invalid http.port %q: %w", c.HTTP.Port, err)
	}
	if c.HTTP.RequestTimeout <= 0 {
		return errors.New("http.request_timeout must be positive")
	}
	if c.Database.Host == "" || c.Database.Name == "" {
		return errors.New("database.host and database.name must be set")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		return fmt.Errorf("invalid database.port %d", c.Database.Port)
	}
	if len(c.Kafka.Brokers) == 0 {
		return errors.New("kafka.brokers must not be empty")
	}
	if c.Stripe.Timeout <= 0 {
		return errors.New("stripe.timeout must be positive")
	}
	if c.Orders.Timeout <= 0 {
		return errors.New("orders.timeout must be positive")
	}
	return nil
}

// ValidateGateway checks the settings needed to talk to Stripe.
func (c Config) ValidateGateway() error {
	if !strings.HasPrefix(c.Stripe.SecretKey, "sk_") && !strings.HasPrefix(c.Stripe.SecretKey, "rk_") {
		return errors.New("stripe.secret_key must be a secret or restricted key")
	}
	if c.Stripe.CustomerID == "" {
		return errors.New("stripe.customer_id must be set")
	}
	return nil
}

func (c Config) Credentials() *r.Credentials {
	return &r.Credentials{
		Host:              c.Database.Host,
		Port:              c.Database.Port,
		User:              c.Database.User,
		Password:          c.Database.Password,
		DBName:            c.Database.Name,
		MigrationsDirPath: c.Database.MigrationsPath,
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = d
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
