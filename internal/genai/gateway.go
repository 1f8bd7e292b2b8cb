// Package genai selects the hosted model provider used for content
// generation and applies the retry and fallback policy around it.
package genai

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Provider names accepted in configuration.
const (
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Provider is a named text generator.
type Provider interface {
	Name() string
	Generate(ctx context.Context, prompt string) (string, error)
}

// GatewayConfig controls provider selection.
//   - Primary: provider used for every call.
//   - Fallback: optional provider tried once the primary is exhausted.
//   - MaxRetries: extra attempts per provider (0 means a single attempt).
//   - Backoff: base delay, grown quadratically per attempt (default 500ms).
//   - Limiter: optional rate limiter consulted before every attempt.
type GatewayConfig struct {
	Primary    string
	Fallback   string
	MaxRetries int
	Backoff    time.Duration
	Limiter    Limiter
}

// Limiter throttles calls per provider name.
type Limiter interface {
	Wait(ctx context.Context, key string) error
}

// Gateway routes generation calls to the configured provider.
type Gateway struct {
	providers map[string]Provider
	cfg       GatewayConfig
	logger    *zap.Logger
}

// NewGateway registers providers and validates that the configured primary
// and fallback are among them.
func NewGateway(cfg GatewayConfig, logger *zap.Logger, providers ...Provider) (*Gateway, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 500 * time.Millisecond
	}
	g := &Gateway{providers: make(map[string]Provider, len(providers)), cfg: cfg, logger: logger}
	for _, p := range providers {
		if p == nil {
			continue
		}
		g.providers[p.Name()] = p
	}
	if _, ok := g.providers[cfg.Primary]; !ok {
		return nil, fmt.Errorf("primary provider %q not configured", cfg.Primary)
	}
	if cfg.Fallback != "" {
		if _, ok := g.providers[cfg.Fallback]; !ok {
			return nil, fmt.Errorf("fallback provider %q not configured", cfg.Fallback)
		}
	}
	return g, nil
}

// Providers lists the registered provider names.
func (g *Gateway) Providers() []string {
	names := make([]string, 0, len(g.providers))
	for name := range g.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Generate calls the primary provider, then the fallback if one is set.
func (g *Gateway) Generate(ctx context.Context, prompt string) (string, error) {
	text, err := g.generateWithRetry(ctx, g.cfg.Primary, prompt)
	if err == nil || g.cfg.Fallback == "" || g.cfg.Fallback == g.cfg.Primary || ctx.Err() != nil {
		return text, err
	}
	g.logger.Warn("primary provider failed, trying fallback",
		zap.String("primary", g.cfg.Primary),
		zap.String("fallback", g.cfg.Fallback),
		zap.Error(err),
	)
	fallbackText, fallbackErr := g.generateWithRetry(ctx, g.cfg.Fallback, prompt)
	if fallbackErr != nil {
		return "", multierr.Combine(err, fallbackErr)
	}
	return fallbackText, nil
}

func (g *Gateway) generateWithRetry(ctx context.Context, name, prompt string) (string, error) {
	p := g.providers[name]
	var lastErr error
	for attempt := 0; attempt <= g.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt*attempt) * g.cfg.Backoff
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return "", fmt.Errorf("%s: %w", name, ctx.Err())
			case <-timer.C:
			}
			g.logger.Debug("retrying generation", zap.String("provider", name), zap.Int("attempt", attempt))
		}
		if g.cfg.Limiter != nil {
			if err := g.cfg.Limiter.Wait(ctx, name); err != nil {
				return "", fmt.Errorf("%s: %w", name, err)
			}
		}
		text, err := p.Generate(ctx, prompt)
		if err == nil {
			return text, nil
		}
		lastErr = err
	}
	if g.cfg.MaxRetries == 0 {
		return "", fmt.Errorf("%s: %w", name, lastErr)
	}
	return "", fmt.Errorf("all retries exhausted for %s: %w", name, lastErr)
}
