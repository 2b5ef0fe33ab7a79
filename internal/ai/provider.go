// Package ai provides text summarization, tag generation, and embedding via
// an ordered chain of interchangeable providers.
//
// Provider outage and rate limiting are expected and frequent. The Gateway
// tries each configured adapter in priority order and returns the first
// success, so a user-visible action degrades to a lower-priority backend
// instead of failing. Results from two providers are never blended within a
// single call.
package ai

import (
	"context"
	"fmt"

	"github.com/fyrsmithlabs/collabd/internal/config"
)

// Provider is the uniform capability interface every adapter implements.
//
// Summarize and RawTags are completion-backed; RawTags returns the model's
// free-text comma-separated list which the Gateway normalizes. Embed returns
// a dense vector in the provider's own vector space.
type Provider interface {
	// Name identifies the provider in logs and metrics.
	Name() string
	// Summarize produces a concise summary of text.
	Summarize(ctx context.Context, text string) (string, error)
	// RawTags produces a comma-separated tag list for text.
	RawTags(ctx context.Context, text string) (string, error)
	// Embed produces an embedding vector for text.
	Embed(ctx context.Context, text string) ([]float32, error)
}

// NewProvider creates a provider adapter from configuration.
func NewProvider(cfg config.ProviderConfig) (Provider, error) {
	switch cfg.Type {
	case "openai":
		return newOpenAIProvider(cfg)
	case "huggingface":
		return newHuggingFaceProvider(cfg)
	case "ollama":
		return newOllamaProvider(cfg)
	default:
		return nil, fmt.Errorf("unknown provider type %q", cfg.Type)
	}
}

// Prompts follow the upstream phrasing so summaries and tags stay consistent
// across providers.
const (
	summarizeSystemPrompt = "You are a summarization assistant."
	summarizePromptFmt    = "Summarize this text in a concise way:\n\n%s"
	tagsSystemPrompt      = "You are a tag generation assistant."
	tagsPromptFmt         = "Generate 5 short and relevant tags (comma-separated) for this text:\n\n%s"
)
