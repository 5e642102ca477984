package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. PAIRS_SERVER_PORT
const EnvPrefix = "PAIRS"

// Config holds all configuration for the service
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Feed      FeedConfig
	Store     StoreConfig
	Analytics AnalyticsConfig
	Live      LiveConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Logging   LoggingConfig
}

// ServerConfig holds server specific configuration
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	MetricsAddr  string
	CORSOrigins  []string
}

// DatabaseConfig holds database specific configuration. With Enabled false
// ticks are logged in memory only.
type DatabaseConfig struct {
	Enabled         bool
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnectTimeout  time.Duration
}

// DSN returns the connection string for the pgx driver
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// RedisConfig holds Redis specific configuration. An empty Addr disables Redis.
type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	AlertChannel string
}

// KafkaConfig holds Kafka specific configuration. Empty Brokers disables Kafka.
type KafkaConfig struct {
	Brokers     string
	ClientID    string
	GroupID     string
	AlertsTopic string
	TicksTopic  string
}

// BrokerList splits the comma separated broker list
func (k KafkaConfig) BrokerList() []string {
	var out []string
	for _, b := range strings.Split(k.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// FeedConfig holds live feed configuration
type FeedConfig struct {
	BinanceURL string
	AutoStart  bool
	Mode       string
	Symbols    []string
}

// StoreConfig holds tick store configuration
type StoreConfig struct {
	Retention time.Duration
}

// AnalyticsConfig holds request defaults for pair analytics
type AnalyticsConfig struct {
	Timeframe           string
	Window              int
	Tail                int
	Entry               float64
	Exit                float64
	ProcessVariance     float64
	ObservationVariance float64
}

// LiveConfig holds websocket push configuration
type LiveConfig struct {
	HeartbeatInterval time.Duration
}

// AuthConfig holds authentication configuration. An empty JWTSecret leaves
// user routes open.
type AuthConfig struct {
	JWTSecret  string
	ServiceKey string
}

// RateLimitConfig holds rate limiter configuration
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerMinute int
}

// LoggingConfig holds logging specific configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads the configuration from file and environment variables.
// A .env file in the working directory is loaded first when present; a
// missing config file leaves the defaults in place.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Environment variables override
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default values for configuration
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.readTimeout", "10s")
	v.SetDefault("server.writeTimeout", "30s")
	v.SetDefault("server.idleTimeout", "120s")
	v.SetDefault("server.metricsAddr", "")
	v.SetDefault("server.corsOrigins", []string{"*"})

	// Database defaults
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "pairs")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.maxOpenConns", 25)
	v.SetDefault("database.maxIdleConns", 5)
	v.SetDefault("database.connMaxLifetime", "30m")
	v.SetDefault("database.connectTimeout", "30s")

	// Redis defaults
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.alertChannel", "pair-alerts")

	// Kafka defaults
	v.SetDefault("kafka.brokers", "")
	v.SetDefault("kafka.clientID", "pairs-analytics")
	v.SetDefault("kafka.groupID", "pairs-analytics")
	v.SetDefault("kafka.alertsTopic", "pair-alerts")
	v.SetDefault("kafka.ticksTopic", "trade-ticks")

	// Feed defaults
	v.SetDefault("feed.binanceURL", "wss://fstream.binance.com/ws")
	v.SetDefault("feed.autoStart", false)
	v.SetDefault("feed.mode", "ws")
	v.SetDefault("feed.symbols", []string{})

	// Store defaults
	v.SetDefault("store.retention", "168h")

	// Analytics defaults
	v.SetDefault("analytics.timeframe", "1s")
	v.SetDefault("analytics.window", 60)
	v.SetDefault("analytics.tail", 500)
	v.SetDefault("analytics.entry", 2.0)
	v.SetDefault("analytics.exit", 0.0)
	v.SetDefault("analytics.processVariance", 1e-5)
	v.SetDefault("analytics.observationVariance", 1e-3)

	// Live defaults
	v.SetDefault("live.heartbeatInterval", "1s")

	// Auth defaults
	v.SetDefault("auth.jwtSecret", "")
	v.SetDefault("auth.serviceKey", "")

	// Rate limit defaults
	v.SetDefault("rateLimit.enabled", false)
	v.SetDefault("rateLimit.requestsPerMinute", 600)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}
