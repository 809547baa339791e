package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/lexis/internal/adapters/driven/ai/httpjson"
	"github.com/custodia-labs/lexis/internal/core/domain"
	"github.com/custodia-labs/lexis/internal/core/ports/driven"
)

// DefaultProbeTimeout bounds one provider probe.
const DefaultProbeTimeout = 5 * time.Second

// Ensure Prober implements the interface.
var _ driven.ProviderProbe = (*Prober)(nil)

// Prober builds a throwaway client for each probe, pings it and closes it.
type Prober struct {
	timeout time.Duration
}

// NewProber creates a prober. A non-positive timeout uses DefaultProbeTimeout.
func NewProber(timeout time.Duration) *Prober {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	return &Prober{timeout: timeout}
}

// ProbeEmbedding pings the embedding provider.
func (p *Prober) ProbeEmbedding(ctx context.Context, settings *domain.EmbeddingSettings) error {
	if settings == nil || !settings.IsConfigured() {
		return nil
	}
	svc, err := CreateEmbeddingService(settings)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidConfiguration, err)
	}
	defer svc.Close()

	return p.ping(ctx, domain.ErrEmbeddingUnavailable, settings.Provider, svc.Ping)
}

// ProbeLLM pings the generation provider.
func (p *Prober) ProbeLLM(ctx context.Context, settings *domain.LLMSettings) error {
	if settings == nil || !settings.IsConfigured() {
		return nil
	}
	svc, err := CreateLLMService(settings)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidConfiguration, err)
	}
	defer svc.Close()

	return p.ping(ctx, domain.ErrGenerationUnavailable, settings.Provider, svc.Ping)
}

func (p *Prober) ping(ctx context.Context, sentinel error, provider domain.AIProvider, ping func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := ping(ctx)
	switch {
	case err == nil:
		return nil
	case httpjson.IsUnauthorized(err):
		return fmt.Errorf("%w: %s rejected the API key: %w", domain.ErrInvalidConfiguration, provider, err)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %s did not answer within %s", sentinel, provider, p.timeout)
	default:
		return fmt.Errorf("%w: %w", sentinel, err)
	}
}
