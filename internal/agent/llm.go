package agent

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"golang.org/x/time/rate"

	"github.com/Madhan-mohan14/Self-Improving-Finance-Agent/internal/config"
)

const defaultBaseBackoff = 1 * time.Second

// Completer turns a prompt into text.
type Completer interface {
	Complete(ctx context.Context, prompt string, temperature float64) (string, error)
}

// LLM is a rate-limited, retrying chat model client.
type LLM struct {
	model       llms.Model
	limiter     *rate.Limiter
	maxRetries  int
	timeout     time.Duration
	baseBackoff time.Duration
}

// NewLLM connects to the OpenAI-compatible endpoint in cfg.
func NewLLM(cfg config.AgentConfig) (*LLM, error) {
	if !cfg.APIKey.IsSet() {
		return nil, errors.New("agent api key required")
	}

	model, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithModel(cfg.Model),
		openai.WithToken(cfg.APIKey.Value()),
	)
	if err != nil {
		return nil, fmt.Errorf("creating chat model client: %w", err)
	}

	l := NewLLMWithModel(model, cfg.RateLimit, cfg.Burst, cfg.MaxRetries)
	l.timeout = cfg.Timeout.Duration()
	return l, nil
}

// NewLLMWithModel wraps an existing langchaingo model.
func NewLLMWithModel(model llms.Model, ratePerSecond float64, burst, maxRetries int) *LLM {
	if burst < 1 {
		burst = 1
	}
	limit := rate.Inf
	if ratePerSecond > 0 {
		limit = rate.Limit(ratePerSecond)
	}
	return &LLM{
		model:       model,
		limiter:     rate.NewLimiter(limit, burst),
		maxRetries:  maxRetries,
		baseBackoff: defaultBaseBackoff,
	}
}

// Complete implements Completer. Transient failures are retried with
// exponential backoff; the limiter is consulted once per attempt.
func (l *LLM) Complete(ctx context.Context, prompt string, temperature float64) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= l.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := l.baseBackoff * time.Duration(1<<(attempt-1))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		if err := l.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limiter: %w", err)
		}

		text, err := l.generate(ctx, prompt, temperature)
		if err == nil {
			return strings.TrimSpace(text), nil
		}
		lastErr = err
		if !isRetryableError(ctx, err) {
			return "", err
		}
	}
	return "", fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (l *LLM) generate(ctx context.Context, prompt string, temperature float64) (string, error) {
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}
	text, err := llms.GenerateFromSinglePrompt(ctx, l.model, prompt, llms.WithTemperature(temperature))
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	return text, nil
}

// isRetryableError reports whether err is worth another attempt. The
// caller's own cancellation never is.
func isRetryableError(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "status code: 5") ||
		strings.Contains(strings.ToLower(msg), "rate limit")
}
