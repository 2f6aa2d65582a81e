package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const (
	AuthModeToken = "token"
	AuthModeJWT   = "jwt"

	BlobBackendLocal = "local"
	BlobBackendMinio = "minio"
)

type Config struct {
	DB      DBConfig
	Redis   RedisConfig
	Server  ServerConfig
	Storage StorageConfig
	Minio   MinioConfig
	Lock    LockConfig
	Job     JobConfig
	Worker  WorkerConfig
	AI      AIConfig
	Auth    AuthConfig
	Log     LogConfig
}

type DBConfig struct {
	Driver string `env:"DB_DRIVER" env-default:"sqlite"`
	DSN    string `env:"DB_DSN" env-default:"studyhub.db"`
}

type RedisConfig struct {
	// Addr is optional; without it jobs are only picked up by polling.
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" env-default:"0"`
}

type ServerConfig struct {
	HTTPPort string `env:"HTTP_PORT" env-default:"8080"`
	GRPCPort string `env:"GRPC_PORT" env-default:"8081"`
}

type StorageConfig struct {
	Root          string `env:"STORAGE_ROOT" env-default:"./data/storage"`
	ProcessingDir string `env:"PROCESSING_QUEUE_DIR" env-default:"./data/processing_queue"`
	// Backend is local or minio and only affects generated summary files.
	Backend string `env:"BLOB_BACKEND" env-default:"local"`
}

type MinioConfig struct {
	Endpoint  string `env:"MINIO_ENDPOINT"`
	AccessKey string `env:"MINIO_ACCESS_KEY"`
	SecretKey string `env:"MINIO_SECRET_KEY"`
	Bucket    string `env:"MINIO_BUCKET" env-default:"studyhub"`
	UseSSL    bool   `env:"MINIO_USE_SSL" env-default:"false"`
}

type LockConfig struct {
	TTL           time.Duration `env:"LOCK_TTL" env-default:"300s"`
	SweepInterval time.Duration `env:"LOCK_SWEEP_INTERVAL" env-default:"30s"`
}

type JobConfig struct {
	DedupWindow time.Duration `env:"JOB_DEDUP_WINDOW" env-default:"5s"`
	// ReaperSchedule runs the stale job reaper, in cron syntax with seconds.
	ReaperSchedule string `env:"JOB_REAPER_SCHEDULE" env-default:"0 */10 * * * *"`
	// StaleAfter fails jobs stuck in processing.
	StaleAfter time.Duration `env:"JOB_STALE_AFTER" env-default:"1h"`
	// QuotaWait fails rate limited jobs left waiting in pending.
	QuotaWait time.Duration `env:"JOB_QUOTA_WAIT" env-default:"1h"`
}

type WorkerConfig struct {
	Throttle            time.Duration `env:"WORKER_THROTTLE" env-default:"10s"`
	Schedule            string        `env:"WORKER_SCHEDULE" env-default:"*/30 * * * * *"`
	PollInterval        time.Duration `env:"WORKER_POLL_INTERVAL" env-default:"30s"`
	MaxTextChars        int           `env:"WORKER_MAX_TEXT_CHARS" env-default:"500000"`
	MaxRateLimitRetries int           `env:"WORKER_MAX_RATE_LIMIT_RETRIES" env-default:"10"`
}

type AIConfig struct {
	GeminiAPIKeys   []string      `env:"GEMINI_API_KEYS" env-separator:","`
	AnthropicAPIKey string        `env:"ANTHROPIC_API_KEY"`
	KeyCooldown     time.Duration `env:"AI_KEY_COOLDOWN" env-default:"1h"`
}

type AuthConfig struct {
	Mode      string        `env:"AUTH_MODE" env-default:"token"`
	JWTSecret string        `env:"JWT_SECRET"`
	JWTTTL    time.Duration `env:"JWT_TTL" env-default:"24h"`
}

type LogConfig struct {
	Level  string `env:"LOG_LEVEL" env-default:"info"`
	Format string `env:"LOG_FORMAT" env-default:"text"`
}

// Load reads the configuration from the environment, after loading a .env
// file from the working directory when there is one.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadConfig is Load for command entry points; it exits on error.
func LoadConfig() *Config {
	cfg, err := Load()
	if err != nil {
		logrus.Fatalf("error loading config: %v", err)
	}
	return cfg
}

func (c *Config) Validate() error {
	switch c.DB.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DB.Driver)
	}
	switch c.Auth.Mode {
	case AuthModeToken:
	case AuthModeJWT:
		if c.Auth.JWTSecret == "" {
			return errors.New("JWT_SECRET is required when AUTH_MODE=jwt")
		}
	default:
		return fmt.Errorf("unsupported AUTH_MODE %q", c.Auth.Mode)
	}
	switch c.Storage.Backend {
	case BlobBackendLocal:
	case BlobBackendMinio:
		if c.Minio.Endpoint == "" {
			return errors.New("MINIO_ENDPOINT is required when BLOB_BACKEND=minio")
		}
	default:
		return fmt.Errorf("unsupported BLOB_BACKEND %q", c.Storage.Backend)
	}

	keys := c.AI.GeminiAPIKeys[:0]
	for _, key := range c.AI.GeminiAPIKeys {
		if key = strings.TrimSpace(key); key != "" {
			keys = append(keys, key)
		}
	}
	c.AI.GeminiAPIKeys = keys

	return nil
}
