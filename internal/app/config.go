package app

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"

	"github.com/yungbote/english-trainer-backend/internal/data/db"
	"github.com/yungbote/english-trainer-backend/internal/observability"
	"github.com/yungbote/english-trainer-backend/internal/platform/openai"
)

type Config struct {
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	Version string `env:"APP_VERSION" envDefault:"dev"`
	LogMode string `env:"LOG_MODE" envDefault:"development"`

	// HTTP
	HTTPAddr       string        `env:"HTTP_ADDR" envDefault:":8080"`
	JWTSecretKey   string        `env:"JWT_SECRET_KEY,required"`
	AccessTokenTTL time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"1h"`
	CORSOrigins    []string      `env:"CORS_ORIGINS" envSeparator:","`
	MetricsEnabled bool          `env:"METRICS_ENABLED" envDefault:"true"`

	// Postgres
	PostgresHost         string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort         string `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser         string `env:"POSTGRES_USER" envDefault:"postgres"`
	PostgresPassword     string `env:"POSTGRES_PASSWORD"`
	PostgresName         string `env:"POSTGRES_NAME" envDefault:"english_trainer"`
	PostgresSSLMode      string `env:"POSTGRES_SSLMODE" envDefault:"disable"`
	PostgresMaxOpenConns int    `env:"POSTGRES_MAX_OPEN_CONNS" envDefault:"20"`
	PostgresMaxIdleConns int    `env:"POSTGRES_MAX_IDLE_CONNS" envDefault:"5"`
	AutoMigrate          bool   `env:"AUTO_MIGRATE" envDefault:"false"`

	// Redis job queue; empty address selects the in-process queue.
	RedisAddr        string `env:"REDIS_ADDR"`
	RedisPassword    string `env:"REDIS_PASSWORD"`
	RedisDB          int    `env:"REDIS_DB" envDefault:"0"`
	QueuePrefix      string `env:"QUEUE_PREFIX" envDefault:"trainer:jobs"`
	QueueMaxAttempts int    `env:"QUEUE_MAX_ATTEMPTS" envDefault:"5"`

	// LLM; empty key selects the mock providers.
	OpenAIAPIKey      string  `env:"OPENAI_API_KEY"`
	OpenAIBaseURL     string  `env:"OPENAI_BASE_URL"`
	OpenAIModel       string  `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	OpenAIEmbedModel  string  `env:"OPENAI_EMBED_MODEL" envDefault:"text-embedding-3-small"`
	OpenAITemperature float32 `env:"OPENAI_TEMPERATURE" envDefault:"0.3"`
	OpenAIMaxRetries  int     `env:"OPENAI_MAX_RETRIES" envDefault:"2"`

	GenerationTimeoutSeconds int `env:"GENERATION_TIMEOUT_SECONDS" envDefault:"30"`

	// Background work
	WorkerConcurrency int    `env:"WORKER_CONCURRENCY" envDefault:"2"`
	EmbedBackfillCron string `env:"EMBED_BACKFILL_CRON" envDefault:"@hourly"`
	EmbedBackfillSize int    `env:"EMBED_BACKFILL_SIZE" envDefault:"500"`
	ReportCron        string `env:"REPORT_CRON" envDefault:"0 3 * * 1"`

	// Tracing
	OtelEnabled     bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OtelServiceName string  `env:"OTEL_SERVICE_NAME" envDefault:"english-trainer"`
	OtelEndpoint    string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OtelHeaders     string  `env:"OTEL_EXPORTER_OTLP_HEADERS"` // key:value,key:value
	OtelInsecure    bool    `env:"OTEL_EXPORTER_OTLP_INSECURE" envDefault:"false"`
	OtelSampleRatio float64 `env:"OTEL_SAMPLE_RATIO" envDefault:"1"`
}

// LoadConfig reads an optional .env file, then the process environment.
// Variables already set in the environment win over the file.
func LoadConfig(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch {
	case c.GenerationTimeoutSeconds <= 0:
		return fmt.Errorf("GENERATION_TIMEOUT_SECONDS must be positive")
	case c.WorkerConcurrency <= 0:
		return fmt.Errorf("WORKER_CONCURRENCY must be positive")
	case c.OtelSampleRatio < 0 || c.OtelSampleRatio > 1:
		return fmt.Errorf("OTEL_SAMPLE_RATIO must be within [0,1]")
	}
	return nil
}

func (c Config) GenerationTimeout() time.Duration {
	return time.Duration(c.GenerationTimeoutSeconds) * time.Second
}

func (c Config) Postgres() db.PostgresConfig {
	return db.PostgresConfig{
		Host:         c.PostgresHost,
		Port:         c.PostgresPort,
		User:         c.PostgresUser,
		Password:     c.PostgresPassword,
		Name:         c.PostgresName,
		SSLMode:      c.PostgresSSLMode,
		MaxOpenConns: c.PostgresMaxOpenConns,
		MaxIdleConns: c.PostgresMaxIdleConns,
	}
}

func (c Config) OpenAI() openai.Config {
	return openai.Config{
		APIKey:      c.OpenAIAPIKey,
		BaseURL:     c.OpenAIBaseURL,
		Model:       c.OpenAIModel,
		EmbedModel:  c.OpenAIEmbedModel,
		Temperature: c.OpenAITemperature,
		MaxRetries:  c.OpenAIMaxRetries,
	}
}

func (c Config) Otel() observability.OtelConfig {
	return observability.OtelConfig{
		Enabled:     c.OtelEnabled,
		ServiceName: c.OtelServiceName,
		Environment: c.AppEnv,
		Version:     c.Version,
		Endpoint:    c.OtelEndpoint,
		Headers:     parseHeaders(c.OtelHeaders),
		Insecure:    c.OtelInsecure,
		SampleRatio: c.OtelSampleRatio,
	}
}

// parseHeaders splits "k:v,k:v". Entries without a key are skipped.
func parseHeaders(raw string) map[string]string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	out := map[string]string{}
	for _, pair := range strings.Split(raw, ",") {
		k, v, ok := strings.Cut(pair, ":")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			continue
		}
		out[k] = strings.TrimSpace(v)
	}
	return out
}
