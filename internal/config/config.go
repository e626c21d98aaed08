package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Configはアプリ全体の設定
type Config struct {
	Port  string `envconfig:"PORT" default:"8080"` // サーバーポート
	GoEnv string `envconfig:"GO_ENV" default:"dev"` // dev/prod

	Store string `envconfig:"STORE" default:"postgres"` // postgres/memory

	DatabaseURL      string `envconfig:"DATABASE_URL"` // あれば最優先
	PostgresUser     string `envconfig:"POSTGRES_USER" default:"postgres"`
	PostgresPassword string `envconfig:"POSTGRES_PASSWORD" default:"postgres"`
	PostgresDB       string `envconfig:"POSTGRES_DB" default:"app"`
	PostgresHost     string `envconfig:"POSTGRES_HOST" default:"localhost"`
	PostgresPort     int    `envconfig:"POSTGRES_PORT" default:"5432"`
	PostgresSSLMode  string `envconfig:"POSTGRES_SSLMODE" default:"disable"`

	JWTSecret string `envconfig:"JWT_SECRET" required:"true"` // JWT署名シークレット

	RedisAddr     string `envconfig:"REDIS_ADDR"` // 空ならRedisを使わない
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT"` // json/text（空ならprodはjson）

	LedgerMaxRetries   int           `envconfig:"LEDGER_MAX_RETRIES" default:"3"`
	LedgerRetryBackoff time.Duration `envconfig:"LEDGER_RETRY_BACKOFF" default:"20ms"`

	AlertInterval         time.Duration `envconfig:"ALERT_INTERVAL" default:"1m"`
	AlertDefaultThreshold int64         `envconfig:"ALERT_DEFAULT_THRESHOLD" default:"10"`
}

// Loadは.env（あれば）と環境変数から読む
func Load(envFiles ...string) (Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load env file: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	//必須チェック
	switch c.Store {
	case StorePostgres:
		if c.DatabaseURL == "" && (c.PostgresHost == "" || c.PostgresUser == "" || c.PostgresDB == "") {
			return fmt.Errorf("DATABASE_URL or POSTGRES_HOST/POSTGRES_USER/POSTGRES_DB is required")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("STORE must be %q or %q", StorePostgres, StoreMemory)
	}
	if strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.LedgerMaxRetries < 1 {
		return fmt.Errorf("LEDGER_MAX_RETRIES must be >= 1")
	}
	if c.AlertInterval <= 0 {
		return fmt.Errorf("ALERT_INTERVAL must be > 0")
	}
	if c.AlertDefaultThreshold < 0 {
		return fmt.Errorf("ALERT_DEFAULT_THRESHOLD must be >= 0")
	}
	return nil
}

func (c Config) IsProd() bool {
	return c.GoEnv == "prod"
}

// PostgresのDSN
func (c Config) PostgresDSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.PostgresHost, c.PostgresPort, c.PostgresUser, c.PostgresPassword, c.PostgresDB, c.PostgresSSLMode,
	)
}

// :8080 の形に
func (c Config) Addr() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}
