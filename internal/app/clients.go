package app

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/english-trainer-backend/internal/jobs/queue"
	"github.com/yungbote/english-trainer-backend/internal/observability"
	"github.com/yungbote/english-trainer-backend/internal/pkg/logger"
	"github.com/yungbote/english-trainer-backend/internal/platform/openai"
	"github.com/yungbote/english-trainer-backend/internal/trainer/provider"
)

type Providers struct {
	Generator provider.GenerationProvider
	Embedder  provider.EmbeddingProvider
	Mock      bool
}

// wireProviders uses OpenAI when a key is configured and the deterministic
// mocks otherwise.
func wireProviders(log *logger.Logger, metrics *observability.Metrics, cfg Config) (Providers, error) {
	if cfg.OpenAIAPIKey == "" {
		log.Warn("OPENAI_API_KEY not set; using mock providers")
		return Providers{
			Generator: provider.NewMockGenerator(),
			Embedder:  provider.NewMockEmbedder(),
			Mock:      true,
		}, nil
	}
	client, err := openai.New(log, metrics, cfg.OpenAI())
	if err != nil {
		return Providers{}, fmt.Errorf("init openai: %w", err)
	}
	return Providers{Generator: client, Embedder: client}, nil
}

// wireQueue returns the Redis queue when REDIS_ADDR is set. The in-process
// queue only reaches workers in the same process.
func wireQueue(ctx context.Context, log *logger.Logger, cfg Config) (queue.Queue, *goredis.Client, error) {
	if cfg.RedisAddr == "" {
		log.Info("REDIS_ADDR not set; using in-process job queue")
		return queue.NewMemory(cfg.QueueMaxAttempts), nil, nil
	}
	rdb, err := queue.Dial(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, nil, err
	}
	q, err := queue.NewRedis(log, rdb, cfg.QueuePrefix, cfg.QueueMaxAttempts)
	if err != nil {
		_ = rdb.Close()
		return nil, nil, err
	}
	return q, rdb, nil
}
