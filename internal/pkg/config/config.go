package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port        string `env:"PORT,        default=5000"`
	Env         string `env:"ENV,         default=development"`
	LogLevel    string `env:"LOG_LEVEL,   default=info"`
	FrontendURL string `env:"FRONTEND_URL, default=http://localhost:3000"`

	Auth    AuthConfig
	Gateway GatewayConfig
	Mongo   MongoConfig
	Redis   RedisConfig
	SMTP    SMTPConfig
	AMQP    AMQPConfig
	Tracing TracingConfig
}

type AuthConfig struct {
	JWTSecret       string        `env:"JWT_SECRET, required"`
	SessionTokenTTL time.Duration `env:"SESSION_TOKEN_TTL, default=168h"`
	ResetTokenTTL   time.Duration `env:"RESET_TOKEN_TTL,   default=1h"`
	BcryptCost      int           `env:"BCRYPT_COST,       default=12"`
	ResetWorkers    int           `env:"RESET_WORKERS,     default=4"`
}

type GatewayConfig struct {
	AllowedOrigins []string      `env:"SOCKET_ALLOWED_ORIGIN, default=http://localhost:3000"`
	PingInterval   time.Duration `env:"SOCKET_PING_INTERVAL,  default=25s"`
	PongWait       time.Duration `env:"SOCKET_PONG_WAIT,      default=60s"`
	WriteWait      time.Duration `env:"SOCKET_WRITE_WAIT,     default=10s"`
	SendBuffer     int           `env:"SOCKET_SEND_BUFFER,    default=64"`
	MaxMessageSize int64         `env:"SOCKET_MAX_MESSAGE,    default=65536"`
	HandlerTimeout time.Duration `env:"SOCKET_HANDLER_TIMEOUT, default=10s"`
	RegistryShards int           `env:"SOCKET_REGISTRY_SHARDS, default=32"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=pathfinder"`
}

type RedisConfig struct {
	Addr             string        `env:"REDIS_ADDR"`
	Password         string        `env:"REDIS_PASSWORD"`
	DB               int           `env:"REDIS_DB,           default=0"`
	IdentityCacheTTL time.Duration `env:"IDENTITY_CACHE_TTL, default=30s"`
}

type SMTPConfig struct {
	Host     string `env:"SMTP_HOST"`
	Port     int    `env:"SMTP_PORT,     default=587"`
	Username string `env:"SMTP_USERNAME"`
	Password string `env:"SMTP_PASSWORD"`
	From     string `env:"SMTP_FROM,     default=no-reply@pathfinder.local"`
}

type AMQPConfig struct {
	URL string `env:"AMQP_URL"`
}

type TracingConfig struct {
	CollectorHost string `env:"OTEL_COLLECTOR_HOST"`
	ServiceName   string `env:"OTEL_SERVICE_NAME, default=pathfinder-gateway"`
}

// IsProduction reports whether the process runs with ENV=production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Load reads configuration from environment variables using go-envconfig.
func Load(ctx context.Context) (*Config, error) {
	return LoadWith(ctx, envconfig.OsLookuper())
}

// LoadWith reads configuration from l.
func LoadWith(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return nil, fmt.Errorf("config: failed to load configuration: %w", err)
	}
	return &cfg, nil
}
