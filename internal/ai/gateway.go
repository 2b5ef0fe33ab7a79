package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/collabd/internal/config"
)

var (
	// ErrInvalidInput indicates empty or whitespace-only input text.
	ErrInvalidInput = errors.New("invalid input")

	// ErrAllProvidersExhausted indicates every adapter in the chain failed.
	// The wrapped message carries the last failure's diagnostic.
	ErrAllProvidersExhausted = errors.New("all providers exhausted")
)

// Gateway fans requests over an ordered provider chain.
//
// Each invocation carries a bounded timeout; a timeout, transport error, or
// malformed response advances the chain. The first success short-circuits:
// lower-priority providers are never consulted after one succeeds, and no
// provider is retried within a single call.
type Gateway struct {
	providers []Provider
	limiters  map[string]*rate.Limiter
	timeout   time.Duration
	logger    *zap.Logger
}

// NewGateway creates a gateway over providers, highest priority first.
// An empty chain is valid; every operation then fails with
// ErrAllProvidersExhausted at call time.
func NewGateway(providers []Provider, timeout time.Duration, rateLimit float64, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	limiters := make(map[string]*rate.Limiter, len(providers))
	if rateLimit > 0 {
		for _, p := range providers {
			limiters[p.Name()] = rate.NewLimiter(rate.Limit(rateLimit), 1)
		}
	}

	return &Gateway{
		providers: providers,
		limiters:  limiters,
		timeout:   timeout,
		logger:    logger.Named("ai"),
	}
}

// NewGatewayFromConfig builds adapters from the configured chain.
func NewGatewayFromConfig(cfg config.AIConfig, logger *zap.Logger) (*Gateway, error) {
	providers := make([]Provider, 0, len(cfg.Providers))
	for _, pc := range cfg.Providers {
		p, err := NewProvider(pc)
		if err != nil {
			return nil, fmt.Errorf("provider %q: %w", pc.Name, err)
		}
		providers = append(providers, p)
	}
	return NewGateway(providers, cfg.Timeout.Duration(), cfg.RateLimit, logger), nil
}

// Summarize produces a summary of text via the fallback chain.
func (g *Gateway) Summarize(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: no content to summarize", ErrInvalidInput)
	}
	return fallback(g, ctx, "summarize", func(ctx context.Context, p Provider) (string, error) {
		return p.Summarize(ctx, text)
	})
}

// Tags produces a normalized tag list for text via the fallback chain.
// Provider output is free-text comma-separated; tags are trimmed and
// de-duplicated by exact case-sensitive match, preserving order.
func (g *Gateway) Tags(ctx context.Context, text string) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: no content to tag", ErrInvalidInput)
	}
	raw, err := fallback(g, ctx, "tags", func(ctx context.Context, p Provider) (string, error) {
		return p.RawTags(ctx, text)
	})
	if err != nil {
		return nil, err
	}
	return parseTags(raw), nil
}

// Embed produces an embedding for text via the fallback chain.
// Empty or whitespace-only text has no embedding; that is (nil, nil),
// not an error.
func (g *Gateway) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	return fallback(g, ctx, "embed", func(ctx context.Context, p Provider) ([]float32, error) {
		return p.Embed(ctx, text)
	})
}

// fallback iterates the chain in priority order, returning the first success.
func fallback[T any](g *Gateway, ctx context.Context, op string, fn func(context.Context, Provider) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for _, p := range g.providers {
		result, err := invoke(g, ctx, op, p, fn)
		if err == nil {
			return result, nil
		}
		lastErr = err
		g.logger.Warn("provider failed, trying next",
			zap.String("operation", op),
			zap.String("provider", p.Name()),
			zap.Error(err))
	}

	if lastErr == nil {
		return zero, fmt.Errorf("%s: %w: no providers configured", op, ErrAllProvidersExhausted)
	}
	return zero, fmt.Errorf("%s: %w: last failure: %v", op, ErrAllProvidersExhausted, lastErr)
}

// invoke runs one provider call under the operation timeout and records
// metrics. Rate limiter waits count against the same timeout.
func invoke[T any](g *Gateway, ctx context.Context, op string, p Provider, fn func(context.Context, Provider) (T, error)) (T, error) {
	opCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	var zero T
	if limiter, ok := g.limiters[p.Name()]; ok {
		if err := limiter.Wait(opCtx); err != nil {
			observeRequest(p.Name(), op, "rate_limited", 0)
			return zero, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	start := time.Now()
	result, err := fn(opCtx, p)
	if err != nil {
		observeRequest(p.Name(), op, "error", time.Since(start))
		return zero, err
	}
	observeRequest(p.Name(), op, "ok", time.Since(start))
	return result, nil
}

// parseTags normalizes a comma-separated tag string.
func parseTags(raw string) []string {
	parts := strings.Split(raw, ",")
	tags := make([]string, 0, len(parts))
	seen := make(map[string]bool, len(parts))
	for _, part := range parts {
		tag := strings.TrimSpace(part)
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		tags = append(tags, tag)
	}
	return tags
}
