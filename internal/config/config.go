package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v9"
	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Gateway  GatewayConfig
	Auth     AuthConfig
	Orders   OrdersConfig
	Tables   TablesConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port            string        `env:"PORT" envDefault:":8084"`
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"15s"`
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"5s"`
}

type DatabaseConfig struct {
	Driver        string        `env:"DB_DRIVER" envDefault:"postgres"`
	DSN           string        `env:"POSTGRES_DSN"`
	SQLitePath    string        `env:"SQLITE_PATH" envDefault:"file:pos.db?cache=shared"`
	MaxOpenConns  int           `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns  int           `env:"DB_MAX_IDLE_CONNS" envDefault:"25"`
	MaxLifetime   time.Duration `env:"DB_MAX_LIFETIME" envDefault:"5m"`
	MigrationsDir string        `env:"MIGRATIONS_DIR"`
	AutoMigrate   bool          `env:"DB_AUTO_MIGRATE" envDefault:"true"`
}

type RedisConfig struct {
	Addr           string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password       string `env:"REDIS_PASSWORD"`
	DB             int    `env:"REDIS_DB" envDefault:"0"`
	OrdersChannel  string `env:"REDIS_ORDERS_CHANNEL" envDefault:"pos:orders:new"`
	StatsChannel   string `env:"REDIS_STATS_CHANNEL" envDefault:"pos:stats:update"`
	SequencePrefix string `env:"REDIS_SEQUENCE_PREFIX" envDefault:"pos:order_seq"`
}

type KafkaConfig struct {
	Enabled           bool     `env:"KAFKA_ENABLED" envDefault:"false"`
	Brokers           []string `env:"KAFKA_BROKERS" envSeparator:"," envDefault:"localhost:9092"`
	NotificationTopic string   `env:"KAFKA_NOTIFICATION_TOPIC" envDefault:"pos.notifications"`
	OrderEventsTopic  string   `env:"KAFKA_ORDER_EVENTS_TOPIC" envDefault:"pos.orders.events"`
}

type GatewayConfig struct {
	IdleTimeout    time.Duration `env:"WS_IDLE_TIMEOUT" envDefault:"30s"`
	WriteTimeout   time.Duration `env:"WS_WRITE_TIMEOUT" envDefault:"10s"`
	OutboundBuffer int           `env:"WS_OUTBOUND_BUFFER" envDefault:"64"`
	AllowedOrigins []string      `env:"WS_ALLOWED_ORIGINS" envSeparator:","`
}

type AuthConfig struct {
	JWTSecret  string `env:"JWT_SECRET"`
	OIDCIssuer string `env:"OIDC_ISSUER"`
}

type OrdersConfig struct {
	SequenceMode      string        `env:"SEQUENCE_MODE" envDefault:"redis"`
	StrictTransitions bool          `env:"STRICT_STATUS_TRANSITIONS" envDefault:"false"`
	SubmissionLockTTL time.Duration `env:"SUBMISSION_LOCK_TTL" envDefault:"30s"`
	RateLimitPerSec   float64       `env:"ORDER_RATE_LIMIT" envDefault:"50"`
	RateLimitBurst    int           `env:"ORDER_RATE_BURST" envDefault:"100"`
	NotifyTimeout     time.Duration `env:"NOTIFY_TIMEOUT" envDefault:"10s"`
}

type TablesConfig struct {
	PublicBaseURL string `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:8084"`
	QRSize        int    `env:"TABLE_QR_SIZE" envDefault:"256"`
	QRCacheSize   int    `env:"TABLE_QR_CACHE" envDefault:"128"`
}

type LogConfig struct {
	Level string `env:"LOG_LEVEL" envDefault:"info"`
	Dir   string `env:"LOG_DIR" envDefault:"logs"`
}

// Load reads the optional env files and then parses the environment.
// A missing env file is reported through loadedEnvFile=false, not as an error.
func Load(envFiles ...string) (cfg *Config, loadedEnvFile bool, err error) {
	if err := godotenv.Load(envFiles...); err == nil {
		loadedEnvFile = true
	}

	cfg = &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, loadedEnvFile, fmt.Errorf("config parse: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, loadedEnvFile, err
	}
	return cfg, loadedEnvFile, nil
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("config: POSTGRES_DSN not set")
		}
	case "sqlite":
	default:
		return fmt.Errorf("config: unsupported DB_DRIVER %q", c.Database.Driver)
	}

	switch c.Orders.SequenceMode {
	case "redis", "local":
	default:
		return fmt.Errorf("config: unsupported SEQUENCE_MODE %q", c.Orders.SequenceMode)
	}

	if c.Gateway.IdleTimeout <= 0 {
		return fmt.Errorf("config: WS_IDLE_TIMEOUT must be positive")
	}
	return nil
}

// KafkaBrokers returns the trimmed, non-empty broker addresses.
func (c KafkaConfig) KafkaBrokers() []string {
	out := make([]string, 0, len(c.Brokers))
	for _, b := range c.Brokers {
		b = strings.TrimSpace(b)
		if b != "" {
			out = append(out, b)
		}
	}
	return out
}

func (c AuthConfig) Enabled() bool {
	return c.JWTSecret != "" || c.OIDCIssuer != ""
}
