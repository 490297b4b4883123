// Package llmclient wraps an HTTP chat-completion endpoint per LLM
// preset (§4.4): retries with exponential backoff and jitter, and a
// bounded, idle-evicting pool of per-(api_key,base_url) clients.
// Grounded on the teacher's OpenAIProvider (pkg/connector/provider_openai.go):
// an openai-go/v3 client built with option.WithAPIKey/option.WithBaseURL,
// chat completions issued via client.Chat.Completions.New.
package llmclient

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/rs/zerolog"

	"github.com/faithleysath/aigmbot/internal/clock"
	"github.com/faithleysath/aigmbot/internal/engineerr"
)

// Credentials identifies one LLM preset's wire endpoint.
type Credentials struct {
	Model   string
	BaseURL string
	APIKey  string
}

// Message is a single chat turn; Role is "system", "user", or "assistant".
type Message struct {
	Role    string
	Content string
}

// Usage is the token accounting returned alongside a completion.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// RetryConfig tunes GetCompletion's retry/backoff behavior (§4.4).
type RetryConfig struct {
	MaxAttempts int           // default 2 total attempts (1 original + 1 retry)
	BaseDelay   time.Duration // default 1s
	MaxDelay    time.Duration // default 30s
	CallTimeout time.Duration // per-attempt wall timeout, default 60s
}

// DefaultRetryConfig matches §4.4's stated defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 2,
		BaseDelay:   1 * time.Second,
		MaxDelay:    30 * time.Second,
		CallTimeout: 60 * time.Second,
	}
}

// Client is LLMClient (§4.4).
type Client struct {
	pool   *Pool
	log    zerolog.Logger
	clock  clock.Clock
	retry  RetryConfig
	rand   *rand.Rand
}

// New constructs a Client with a bounded client pool (default max 20,
// idle-eviction after 3600s per §4.4).
func New(log zerolog.Logger, c clock.Clock, retry RetryConfig) *Client {
	if c == nil {
		c = clock.Real{}
	}
	if retry.MaxAttempts <= 0 {
		retry = DefaultRetryConfig()
	}
	return &Client{
		pool:  NewPool(DefaultPoolMaxSize, DefaultIdleTimeout, log),
		log:   log.With().Str("component", "llm_client").Logger(),
		clock: c,
		retry: retry,
		rand:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Close stops the pool's idle-eviction sweep.
func (c *Client) Close() {
	c.pool.Close()
}

// GetCompletion performs a chat-completion against preset, retrying on
// transient failures with exponential backoff plus jitter (§4.4).
// Cancellation during the sleep window aborts the retry chain (§5).
func (c *Client) GetCompletion(ctx context.Context, messages []Message, preset Credentials) (string, Usage, string, error) {
	oaClient := c.pool.Get(preset)

	chatMessages := toChatMessages(messages)
	params := openai.ChatCompletionNewParams{
		Model:    preset.Model,
		Messages: chatMessages,
	}

	var lastErr error
	for attempt := 0; attempt < c.retry.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return "", Usage{}, "", &engineerr.Cancelled{Op: "get_completion"}
		}

		callCtx, cancel := context.WithTimeout(ctx, c.retry.CallTimeout)
		resp, err := oaClient.Chat.Completions.New(callCtx, params)
		cancel()

		if err == nil {
			content := ""
			finishModel := preset.Model
			if len(resp.Choices) > 0 {
				content = resp.Choices[0].Message.Content
			}
			if resp.Model != "" {
				finishModel = resp.Model
			}
			return content, Usage{
				PromptTokens:     int(resp.Usage.PromptTokens),
				CompletionTokens: int(resp.Usage.CompletionTokens),
				TotalTokens:      int(resp.Usage.TotalTokens),
			}, finishModel, nil
		}

		if errors.Is(err, context.Canceled) {
			return "", Usage{}, "", &engineerr.Cancelled{Op: "get_completion"}
		}

		classified := classify(err)
		lastErr = classified
		if !engineerr.Retryable(classified) {
			return "", Usage{}, "", classified
		}
		if attempt == c.retry.MaxAttempts-1 {
			break
		}

		delay := c.backoff(attempt)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", Usage{}, "", &engineerr.Cancelled{Op: "get_completion_backoff"}
		case <-timer.C:
		}
	}
	return "", Usage{}, "", lastErr
}

// backoff computes base_delay * 2^attempt plus uniform jitter in
// [0, 0.2*base_delay], clipped by max_delay (§4.4).
func (c *Client) backoff(attempt int) time.Duration {
	base := float64(c.retry.BaseDelay)
	exp := base * float64(int64(1)<<uint(attempt))
	jitter := c.rand.Float64() * 0.2 * base
	d := time.Duration(exp + jitter)
	if d > c.retry.MaxDelay {
		d = c.retry.MaxDelay
	}
	return d
}

func toChatMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case "system":
			out = append(out, openai.SystemMessage(m.Content))
		case "assistant":
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}
