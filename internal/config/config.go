package config

import (
	"fmt"

	"github.com/MyZenaa/pgpbl-jamubae/internal/geo"
	pkgconfig "github.com/MyZenaa/pgpbl-jamubae/pkg/config"
	"github.com/MyZenaa/pgpbl-jamubae/pkg/database"
)

// Config holds all configuration for the shop service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"SHOP_HTTP_PORT" envDefault:"8080"`

	// Store identity. The origin coordinate anchors every shipping quote.
	StoreName         string  `env:"STORE_NAME" envDefault:"Toko Jamu Sehat Sentosa"`
	StoreLat          float64 `env:"STORE_LAT" envDefault:"-7.771055"`
	StoreLng          float64 `env:"STORE_LNG" envDefault:"110.384504"`
	ShippingRatePerKm int64   `env:"SHIPPING_RATE_PER_KM" envDefault:"5000"`

	// State store backend: "redis" or "memory".
	StoreBackend string `env:"STORE_BACKEND" envDefault:"redis"`
	RedisAddr    string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPass    string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB      int    `env:"REDIS_DB" envDefault:"0"`

	// Kafka
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// Order archive (Postgres read model)
	ArchiveEnabled   bool   `env:"ARCHIVE_ENABLED" envDefault:"false"`
	PostgresHost     string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort     int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser     string `env:"POSTGRES_USER" envDefault:"jamubae"`
	PostgresPassword string `env:"POSTGRES_PASSWORD" envDefault:"jamubae"`
	PostgresDB       string `env:"POSTGRES_DB" envDefault:"jamubae"`
	PostgresSSLMode  string `env:"POSTGRES_SSLMODE" envDefault:"disable"`

	// Location bridge sidecar
	LocationBridgeURL string `env:"LOCATION_BRIDGE_URL" envDefault:"http://localhost:9090"`

	// Cart reconcile sweep, six-field cron expression.
	ReconcileSchedule string `env:"RECONCILE_SCHEDULE" envDefault:"*/30 * * * * *"`

	// Tracing
	TracingEnabled    bool    `env:"TRACING_ENABLED" envDefault:"false"`
	OTLPEndpoint      string  `env:"OTLP_ENDPOINT" envDefault:"localhost:4318"`
	TracingSampleRate float64 `env:"TRACING_SAMPLE_RATE" envDefault:"1.0"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load shop config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.StoreBackend != "redis" && c.StoreBackend != "memory" {
		return fmt.Errorf("invalid store backend: %q", c.StoreBackend)
	}
	if c.ShippingRatePerKm <= 0 {
		return fmt.Errorf("invalid shipping rate: %d", c.ShippingRatePerKm)
	}
	if c.StoreOrigin().IsZero() {
		return fmt.Errorf("store origin coordinate is required")
	}
	return nil
}

// StoreOrigin returns the store's coordinate.
func (c *Config) StoreOrigin() geo.Coordinate {
	return geo.Coordinate{Lat: c.StoreLat, Lng: c.StoreLng}
}

// PostgresConfig builds the pool configuration for the order archive.
func (c *Config) PostgresConfig() database.PostgresConfig {
	pg := database.DefaultPostgresConfig()
	pg.Host = c.PostgresHost
	pg.Port = c.PostgresPort
	pg.User = c.PostgresUser
	pg.Password = c.PostgresPassword
	pg.DBName = c.PostgresDB
	pg.SSLMode = c.PostgresSSLMode
	return pg
}
