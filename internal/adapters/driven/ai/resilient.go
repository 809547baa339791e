package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/lexis/internal/adapters/driven/ai/httpjson"
	"github.com/custodia-labs/lexis/internal/core/domain"
	"github.com/custodia-labs/lexis/internal/core/ports/driven"
	"github.com/custodia-labs/lexis/internal/logger"
)

// Backoff bounds between retries.
const (
	baseBackoff = 200 * time.Millisecond
	maxBackoff  = 5 * time.Second
)

// CallPolicy bounds every external AI call: a per-attempt timeout, a retry
// budget with exponential backoff, and an optional token bucket rate limit.
type CallPolicy struct {
	timeout    time.Duration
	maxRetries int
	limiter    *rate.Limiter
	sleep      func(ctx context.Context, d time.Duration) error
}

// NewCallPolicy creates a policy from call settings.
// A zero RequestsPerSecond disables rate limiting.
func NewCallPolicy(settings domain.CallSettings) *CallPolicy {
	p := &CallPolicy{
		timeout:    settings.Timeout,
		maxRetries: max(settings.MaxRetries, 0),
		sleep:      sleepContext,
	}
	if settings.RequestsPerSecond > 0 {
		burst := max(int(settings.RequestsPerSecond), 1)
		p.limiter = rate.NewLimiter(rate.Limit(settings.RequestsPerSecond), burst)
	}
	return p
}

// do runs call until it succeeds, the retry budget is spent, or ctx ends.
// Provider rejections such as a bad key or unknown model are not retried.
func (p *CallPolicy) do(ctx context.Context, op string, call func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			wait := min(baseBackoff<<(attempt-1), maxBackoff)
			logger.Debug("%s: attempt %d failed (%v), retrying in %s", op, attempt, lastErr, wait)
			if err := p.sleep(ctx, wait); err != nil {
				return err
			}
		}

		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		lastErr = p.attempt(ctx, call)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if httpjson.IsPermanent(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

func (p *CallPolicy) attempt(ctx context.Context, call func(ctx context.Context) error) error {
	if p.timeout <= 0 {
		return call(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return call(ctx)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// unavailable tags err with sentinel unless the caller cancelled.
func unavailable(sentinel, err error) error {
	if err == nil || errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %w", sentinel, err)
}

// ResilientEmbedding applies a CallPolicy to an embedding service.
// Failures surface as domain.ErrEmbeddingUnavailable.
type ResilientEmbedding struct {
	driven.EmbeddingService
	policy *CallPolicy
}

// Ensure ResilientEmbedding implements the interface.
var _ driven.EmbeddingService = (*ResilientEmbedding)(nil)

// NewResilientEmbedding wraps svc with policy.
func NewResilientEmbedding(svc driven.EmbeddingService, policy *CallPolicy) *ResilientEmbedding {
	return &ResilientEmbedding{EmbeddingService: svc, policy: policy}
}

// Embed embeds one text.
func (r *ResilientEmbedding) Embed(ctx context.Context, text string) ([]float32, error) {
	var out []float32
	err := r.policy.do(ctx, "embed", func(ctx context.Context) error {
		var err error
		out, err = r.EmbeddingService.Embed(ctx, text)
		return err
	})
	return out, unavailable(domain.ErrEmbeddingUnavailable, err)
}

// EmbedBatch embeds texts and checks the result is aligned with the input.
func (r *ResilientEmbedding) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var out [][]float32
	err := r.policy.do(ctx, "embed batch", func(ctx context.Context) error {
		var err error
		out, err = r.EmbeddingService.EmbedBatch(ctx, texts)
		if err == nil && len(out) != len(texts) {
			err = fmt.Errorf("got %d vectors for %d texts", len(out), len(texts))
		}
		return err
	})
	return out, unavailable(domain.ErrEmbeddingUnavailable, err)
}

// ResilientLLM applies a CallPolicy to an LLM service.
// Failures surface as domain.ErrGenerationUnavailable.
type ResilientLLM struct {
	driven.LLMService
	policy *CallPolicy
}

// Ensure ResilientLLM implements the interface.
var _ driven.LLMService = (*ResilientLLM)(nil)

// NewResilientLLM wraps svc with policy.
func NewResilientLLM(svc driven.LLMService, policy *CallPolicy) *ResilientLLM {
	return &ResilientLLM{LLMService: svc, policy: policy}
}

// Generate produces text completion from a prompt.
func (r *ResilientLLM) Generate(ctx context.Context, prompt string, opts driven.GenerationOptions) (string, error) {
	var out string
	err := r.policy.do(ctx, "generate", func(ctx context.Context) error {
		var err error
		out, err = r.LLMService.Generate(ctx, prompt, opts)
		return err
	})
	return out, unavailable(domain.ErrGenerationUnavailable, err)
}

// Chat conducts a multi-turn conversation.
func (r *ResilientLLM) Chat(ctx context.Context, messages []driven.ChatMessage, opts driven.GenerationOptions) (string, error) {
	var out string
	err := r.policy.do(ctx, "chat", func(ctx context.Context) error {
		var err error
		out, err = r.LLMService.Chat(ctx, messages, opts)
		return err
	})
	return out, unavailable(domain.ErrGenerationUnavailable, err)
}
