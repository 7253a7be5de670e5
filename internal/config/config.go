// Package config resolves server settings from .env, environment and flags.
package config

import (
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Store backends.
const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Encoder transports.
const (
	TransportHTTP = "http"
	TransportGRPC = "grpc"
)

// Config is resolved once at startup and passed down explicitly.
type Config struct {
	Addr string `env:"ADDR" envDefault:":8000"`

	EncoderModel     string        `env:"ENCODER_MODEL"     envDefault:"buffalo_l"`
	EncoderURL       string        `env:"ENCODER_URL"       envDefault:"http://localhost:8001"`
	EncoderTransport string        `env:"ENCODER_TRANSPORT" envDefault:"http"`
	EncoderWorkers   int           `env:"ENCODER_WORKERS"   envDefault:"4"`
	EncoderTimeout   time.Duration `env:"ENCODER_TIMEOUT"   envDefault:"30s"`
	EmbeddingDim     int           `env:"EMBEDDING_DIM"     envDefault:"512"`

	StoreBackend string `env:"STORE_BACKEND" envDefault:"file"`
	StorePath    string `env:"STORE_PATH"    envDefault:"data/users.json"`
	DatabaseDSN  string `env:"DATABASE_DSN"`
	RedisAddr    string `env:"REDIS_ADDR"`
	RedisKey     string `env:"REDIS_KEY"     envDefault:"face-keeper:users"`

	Threshold float64 `env:"FACE_SIMILARITY_THRESHOLD" envDefault:"0.65"`

	JWTKey    string        `env:"JWT_KEY"`
	AccessTTL time.Duration `env:"ACCESS_TTL" envDefault:"15m"`

	MaxBodyBytes int64  `env:"MAX_BODY_BYTES" envDefault:"33554432"`
	LogLevel     string `env:"LOG_LEVEL"      envDefault:"info"`
}

// Load reads an optional .env file, the environment, and then args as flag
// overrides. Flags left unset keep the environment value.
func Load(args []string) (*Config, error) {
	// .env file is optional
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	fs := flag.NewFlagSet("face-keeper", flag.ContinueOnError)
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "listen address")
	fs.StringVar(&cfg.EncoderURL, "encoder-url", cfg.EncoderURL, "face encoder base URL or gRPC target")
	fs.StringVar(&cfg.EncoderTransport, "encoder-transport", cfg.EncoderTransport, "encoder transport: http|grpc")
	fs.StringVar(&cfg.EncoderModel, "encoder-model", cfg.EncoderModel, "encoder model id")
	fs.IntVar(&cfg.EncoderWorkers, "encoder-workers", cfg.EncoderWorkers, "max concurrent encoder calls")
	fs.StringVar(&cfg.StoreBackend, "store", cfg.StoreBackend, "user store backend: file|postgres|redis")
	fs.StringVar(&cfg.StorePath, "store-path", cfg.StorePath, "user document path (file backend)")
	fs.StringVar(&cfg.DatabaseDSN, "dsn", cfg.DatabaseDSN, "PostgreSQL DSN (postgres backend)")
	fs.StringVar(&cfg.RedisAddr, "redis-addr", cfg.RedisAddr, "redis address (redis backend)")
	fs.Float64Var(&cfg.Threshold, "threshold", cfg.Threshold, "face similarity threshold, strict")
	fs.StringVar(&cfg.JWTKey, "jwt-key", cfg.JWTKey, "HS256 signing key, empty disables tokens")
	fs.DurationVar(&cfg.AccessTTL, "access-ttl", cfg.AccessTTL, "access token TTL")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks ranges and backend-specific requirements.
func (c *Config) Validate() error {
	var errList []error
	if c.Threshold < -1 || c.Threshold > 1 {
		errList = append(errList, fmt.Errorf("threshold %v out of [-1, 1]", c.Threshold))
	}
	if c.EmbeddingDim <= 0 {
		errList = append(errList, fmt.Errorf("embedding dim must be positive, got %d", c.EmbeddingDim))
	}
	if c.EncoderWorkers <= 0 {
		errList = append(errList, fmt.Errorf("encoder workers must be positive, got %d", c.EncoderWorkers))
	}
	if c.MaxBodyBytes <= 0 {
		errList = append(errList, errors.New("max body bytes must be positive"))
	}
	if c.EncoderURL == "" {
		errList = append(errList, errors.New("encoder url is required"))
	}

	switch c.EncoderTransport {
	case TransportHTTP, TransportGRPC:
	default:
		errList = append(errList, fmt.Errorf("unknown encoder transport %q", c.EncoderTransport))
	}

	switch c.StoreBackend {
	case BackendFile:
		if c.StorePath == "" {
			errList = append(errList, errors.New("store path is required for the file backend"))
		}
	case BackendPostgres:
		if c.DatabaseDSN == "" {
			errList = append(errList, errors.New("database dsn is required for the postgres backend"))
		}
	case BackendRedis:
		if c.RedisAddr == "" {
			errList = append(errList, errors.New("redis addr is required for the redis backend"))
		}
	default:
		errList = append(errList, fmt.Errorf("unknown store backend %q", c.StoreBackend))
	}

	return errors.Join(errList...)
}
