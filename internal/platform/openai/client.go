// Package openai adapts the OpenAI chat and embedding APIs to the trainer's
// provider interfaces.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/yungbote/english-trainer-backend/internal/observability"
	"github.com/yungbote/english-trainer-backend/internal/pkg/httpx"
	"github.com/yungbote/english-trainer-backend/internal/pkg/logger"
	"github.com/yungbote/english-trainer-backend/internal/trainer/provider"
)

const systemMessage = "You are an engineering English trainer. Always respond with valid JSON matching the provided schema."

type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	EmbedModel  string
	Temperature float32
	MaxRetries  int
	HTTPTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if strings.TrimSpace(c.Model) == "" {
		c.Model = "gpt-4o-mini"
	}
	if strings.TrimSpace(c.EmbedModel) == "" {
		c.EmbedModel = string(goopenai.SmallEmbedding3)
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = 120 * time.Second
	}
	return c
}

// Client implements provider.GenerationProvider and provider.EmbeddingProvider.
type Client struct {
	log        *logger.Logger
	metrics    *observability.Metrics
	api        *goopenai.Client
	model      string
	embedModel string
	temp       float32
	maxRetries int
	retryBase  time.Duration
}

var (
	_ provider.GenerationProvider = (*Client)(nil)
	_ provider.EmbeddingProvider  = (*Client)(nil)
)

func New(log *logger.Logger, metrics *observability.Metrics, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("missing OPENAI_API_KEY")
	}
	cfg = cfg.withDefaults()
	oc := goopenai.DefaultConfig(cfg.APIKey)
	if base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"); base != "" {
		oc.BaseURL = base
	}
	oc.HTTPClient = &http.Client{Timeout: cfg.HTTPTimeout}
	return &Client{
		log:        log.With("client", "OpenAI"),
		metrics:    metrics,
		api:        goopenai.NewClientWithConfig(oc),
		model:      cfg.Model,
		embedModel: cfg.EmbedModel,
		temp:       cfg.Temperature,
		maxRetries: cfg.MaxRetries,
		retryBase:  500 * time.Millisecond,
	}, nil
}

// GenerateStructured asks for a JSON object. The schema is appended to the
// user message because json_object mode does not take one.
func (c *Client) GenerateStructured(ctx context.Context, prompt, schemaHint string) (string, error) {
	user := prompt
	if strings.TrimSpace(schemaHint) != "" {
		user = prompt + "\n\nJSON schema:\n" + schemaHint
	}
	req := goopenai.ChatCompletionRequest{
		Model: c.model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: systemMessage},
			{Role: goopenai.ChatMessageRoleUser, Content: user},
		},
		ResponseFormat: &goopenai.ChatCompletionResponseFormat{Type: goopenai.ChatCompletionResponseFormatTypeJSONObject},
		Temperature:    c.temp,
	}

	var out string
	err := c.withRetry(ctx, "generate", c.model, func(ctx context.Context) error {
		resp, err := c.api.CreateChatCompletion(ctx, req)
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return errors.New("chat completion returned no choices")
		}
		out = resp.Choices[0].Message.Content
		return nil
	})
	if err != nil {
		return "", err
	}
	return out, nil
}

func (c *Client) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// Embed returns one vector per input, in input order.
func (c *Client) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return [][]float32{}, nil
	}
	clean := make([]string, len(inputs))
	for i, s := range inputs {
		s = strings.TrimSpace(s)
		if s == "" {
			s = " "
		}
		clean[i] = s
	}

	out := make([][]float32, len(clean))
	err := c.withRetry(ctx, "embed", c.embedModel, func(ctx context.Context) error {
		resp, err := c.api.CreateEmbeddings(ctx, goopenai.EmbeddingRequest{
			Input: clean,
			Model: goopenai.EmbeddingModel(c.embedModel),
		})
		if err != nil {
			return err
		}
		for _, d := range resp.Data {
			if d.Index >= 0 && d.Index < len(out) {
				out[d.Index] = d.Embedding
			}
		}
		for i := range out {
			if len(out[i]) == 0 {
				return fmt.Errorf("embeddings response missing index %d", i)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// withRetry retries transient HTTP failures with jittered backoff. Deadline
// expiry maps to provider.ErrTimeout, everything else to provider.ErrProvider.
// Caller cancellation is returned as is.
func (c *Client) withRetry(ctx context.Context, op, model string, fn func(context.Context) error) error {
	start := time.Now()
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return c.finish(ctx, op, model, start, err)
		}
		err := fn(ctx)
		if err == nil {
			c.metrics.ObserveProviderRequest(op, model, "ok", time.Since(start))
			return nil
		}
		if ctx.Err() != nil || !httpx.IsRetryableError(statusError(err)) || attempt >= c.maxRetries {
			return c.finish(ctx, op, model, start, err)
		}
		sleepFor := httpx.JitterSleep(httpx.Backoff(attempt, c.retryBase, 10*time.Second))
		c.log.Warn("OpenAI request retrying",
			"operation", op,
			"attempt", attempt+1,
			"max_retries", c.maxRetries,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)
		if serr := httpx.Sleep(ctx, sleepFor); serr != nil {
			return c.finish(ctx, op, model, start, serr)
		}
	}
}

func (c *Client) finish(ctx context.Context, op, model string, start time.Time, err error) error {
	var netErr net.Error
	switch {
	case errors.Is(ctx.Err(), context.Canceled):
		c.metrics.ObserveProviderRequest(op, model, "canceled", time.Since(start))
		return ctx.Err()
	case errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout():
		c.metrics.ObserveProviderRequest(op, model, "timeout", time.Since(start))
		return provider.Timeout(err)
	default:
		c.metrics.ObserveProviderRequest(op, model, "error", time.Since(start))
		return provider.Failure(fmt.Errorf("openai %s: %w", op, err))
	}
}

type httpStatusError struct {
	code int
	err  error
}

func (e *httpStatusError) Error() string       { return e.err.Error() }
func (e *httpStatusError) Unwrap() error       { return e.err }
func (e *httpStatusError) HTTPStatusCode() int { return e.code }

// statusError exposes go-openai's status codes to httpx.
func statusError(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return &httpStatusError{code: apiErr.HTTPStatusCode, err: err}
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return &httpStatusError{code: reqErr.HTTPStatusCode, err: err}
	}
	return err
}
