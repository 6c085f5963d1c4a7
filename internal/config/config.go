package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Service names. They double as the wire context of each service.
const (
	ServiceAccount     = "bank-account"
	ServiceTransaction = "bank-transaction"
	ServiceLocal       = "bank-local"
)

// Storage drivers.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Config aggregates all runtime settings required by one service.
type Config struct {
	App        AppConfig
	HTTP       HTTPConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Lock       LockConfig
	Channels   ChannelsConfig
	Outbox     OutboxConfig
	AMQP       AMQPConfig
	JWT        JWTConfig
	Context    ContextConfig
	Logger     LoggerConfig
	Migrations MigrationsConfig
	Storage    StorageConfig
}

type AppConfig struct {
	// ID prefixes durable channel names: <id>.persistence.<purpose>.channel.
	ID          string
	Service     string
	Environment string
}

type HTTPConfig struct {
	Host          string
	Port          string
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	IdleTimeout   time.Duration
	MaxConn       int
	EnableMetrics bool
}

type DatabaseConfig struct {
	URL             string
	Host            string
	Port            string
	Name            string
	User            string
	Password        string
	MaxOpenConns    int
	MaxIdleConns    int
	MaxConnLifetime time.Duration
	SSLMode         string
}

type RedisConfig struct {
	URL         string
	Password    string
	DB          int
	PoolSize    int
	DialTimeout time.Duration
}

type LockConfig struct {
	Prefix        string
	TTL           time.Duration
	WaitTimeout   time.Duration
	RetryInterval time.Duration
}

type ChannelsConfig struct {
	Path           string
	MaxSize        int
	RetentionHours int
	PollInterval   time.Duration
	BatchSize      int
	Workers        int
	MaxRetry       int
	BackoffBase    time.Duration
	BackoffMax     time.Duration
}

type OutboxConfig struct {
	RelayInterval time.Duration
	BatchSize     int
}

type AMQPConfig struct {
	URL          string
	Exchange     string
	Queue        string
	ReconnectMin time.Duration
	ReconnectMax time.Duration
}

// Enabled reports whether a broker is configured.
func (c AMQPConfig) Enabled() bool { return c.URL != "" }

type JWTConfig struct {
	Secret string
	Issuer string
}

type ContextConfig struct {
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

type LoggerConfig struct {
	Level    string
	Encoding string
}

type MigrationsConfig struct {
	Enabled bool
	Path    string
	Table   string
}

type StorageConfig struct {
	Driver string
}

// Load reads configuration from environment variables (optionally .env) and applies
// defaults for the given service.
func Load(service string) (*Config, error) {
	_ = godotenv.Load(".env")

	short := strings.TrimPrefix(service, "bank-")
	cfg := &Config{
		App: AppConfig{
			ID:          getString("APP_ID", service),
			Service:     service,
			Environment: getString("APP_ENV", "development"),
		},
		HTTP: HTTPConfig{
			Host:          getString("SERVER_HOST", "0.0.0.0"),
			Port:          getString("SERVER_PORT", defaultPort(service)),
			ReadTimeout:   getDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:  getDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:   getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			MaxConn:       getInt("SERVER_MAX_CONN", 0),
			EnableMetrics: getBool("SERVER_ENABLE_METRICS", true),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			Host:            getString("DB_HOST", "localhost"),
			Port:            getString("DB_PORT", "5432"),
			Name:            getString("DB_NAME", strings.ReplaceAll(service, "-", "_")),
			User:            getString("DB_USER", "banking"),
			Password:        os.Getenv("DB_PASSWORD"),
			MaxOpenConns:    getInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getInt("DB_MAX_IDLE_CONNS", 10),
			MaxConnLifetime: getDuration("DB_CONN_LIFETIME", time.Hour),
			SSLMode:         getString("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			URL:         getString("REDIS_URL", "redis://localhost:6379"),
			Password:    os.Getenv("REDIS_PASSWORD"),
			DB:          getInt("REDIS_DB", 0),
			PoolSize:    getInt("REDIS_POOL_SIZE", 0),
			DialTimeout: getDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		},
		Lock: LockConfig{
			Prefix:        getString("LOCK_PREFIX", "banking:lock:"),
			TTL:           getDuration("LOCK_TTL", 30*time.Second),
			WaitTimeout:   getDuration("LOCK_WAIT_TIMEOUT", 5*time.Second),
			RetryInterval: getDuration("LOCK_RETRY_INTERVAL", 50*time.Millisecond),
		},
		Channels: ChannelsConfig{
			Path:           getString("BOLTDB_PATH", fmt.Sprintf("./data/%s.db", short)),
			MaxSize:        getInt("CHANNEL_MAX_SIZE", 1_000_000),
			RetentionHours: getInt("CHANNEL_RETENTION_HOURS", 24),
			PollInterval:   getDuration("CHANNEL_POLL_INTERVAL", time.Second),
			BatchSize:      getInt("CHANNEL_BATCH_SIZE", 100),
			Workers:        getInt("CHANNEL_WORKERS", 8),
			MaxRetry:       getInt("MAX_RETRY_ATTEMPTS", 5),
			BackoffBase:    getDuration("RETRY_BACKOFF_BASE", 500*time.Millisecond),
			BackoffMax:     getDuration("RETRY_BACKOFF_MAX", 30*time.Second),
		},
		Outbox: OutboxConfig{
			RelayInterval: getDuration("OUTBOX_RELAY_INTERVAL", time.Second),
			BatchSize:     getInt("OUTBOX_BATCH_SIZE", 100),
		},
		AMQP: AMQPConfig{
			URL:          os.Getenv("AMQP_URL"),
			Exchange:     getString("AMQP_EXCHANGE", "banking.events"),
			Queue:        getString("AMQP_QUEUE", service+".inbound"),
			ReconnectMin: getDuration("AMQP_RECONNECT_MIN", time.Second),
			ReconnectMax: getDuration("AMQP_RECONNECT_MAX", 30*time.Second),
		},
		JWT: JWTConfig{
			Secret: os.Getenv("JWT_SECRET"),
			Issuer: getString("JWT_ISSUER", "banking"),
		},
		Context: ContextConfig{
			RequestTimeout:  getDuration("REQUEST_TIMEOUT_SECONDS", 5*time.Second),
			ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT_SECONDS", 15*time.Second),
		},
		Logger: LoggerConfig{
			Level:    getString("LOG_LEVEL", "info"),
			Encoding: getString("LOG_ENCODING", "json"),
		},
		Migrations: MigrationsConfig{
			Enabled: getBool("RUN_MIGRATIONS", true),
			Path:    getString("MIGRATIONS_PATH", "./assets/migrations/"+short),
			Table:   getString("MIGRATIONS_TABLE", "schema_migrations"),
		},
		Storage: StorageConfig{
			Driver: strings.ToLower(getString("STORAGE_DRIVER", defaultStorage(service))),
		},
	}

	if cfg.Database.URL == "" {
		cfg.Database.URL = buildPostgresURL(cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case StoragePostgres, StorageMemory:
	default:
		return fmt.Errorf("config: unknown STORAGE_DRIVER %q", c.Storage.Driver)
	}
	if c.App.Service == ServiceLocal && c.Storage.Driver != StorageMemory {
		return fmt.Errorf("config: %s runs both contexts in one process and supports only memory storage", ServiceLocal)
	}
	if c.Lock.TTL <= c.Lock.WaitTimeout {
		return fmt.Errorf("config: LOCK_TTL (%s) must exceed LOCK_WAIT_TIMEOUT (%s)", c.Lock.TTL, c.Lock.WaitTimeout)
	}
	if c.Channels.Workers <= 0 {
		return fmt.Errorf("config: CHANNEL_WORKERS must be positive")
	}
	// Background loops are scheduled with cron "@every", which has a one second floor.
	if c.Channels.PollInterval < time.Second {
		return fmt.Errorf("config: CHANNEL_POLL_INTERVAL (%s) must be at least 1s", c.Channels.PollInterval)
	}
	if c.Outbox.RelayInterval < time.Second {
		return fmt.Errorf("config: OUTBOX_RELAY_INTERVAL (%s) must be at least 1s", c.Outbox.RelayInterval)
	}
	return nil
}

// ChannelName builds "<app-id>.persistence.<purpose>.channel".
func (c *Config) ChannelName(purpose string) string {
	return fmt.Sprintf("%s.persistence.%s.channel", c.App.ID, purpose)
}

func defaultPort(service string) string {
	switch service {
	case ServiceTransaction:
		return "8082"
	default:
		return "8081"
	}
}

func defaultStorage(service string) string {
	if service == ServiceLocal {
		return StorageMemory
	}
	return StoragePostgres
}

// ForContext derives the configuration of one bounded context hosted by the local
// all-in-one binary. Channels are kept apart by the app id.
func (c *Config) ForContext(service string) *Config {
	out := *c
	out.App.ID = service
	out.App.Service = service
	return &out
}

func buildPostgresURL(cfg *Config) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.Name,
		cfg.Database.SSLMode,
	)
}

func getString(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
		if seconds, err := strconv.Atoi(val); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}

// Address returns the HTTP listen address for the fasthttp server.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%s", c.HTTP.Host, c.HTTP.Port)
}
