package ai

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/fyrsmithlabs/collabd/internal/config"
)

// ollamaProvider adapts a local or remote Ollama server. Chat and embedding
// models are configured separately, so the adapter holds one client per role.
type ollamaProvider struct {
	name  string
	chat  *ollama.LLM
	embed *ollama.LLM
}

func newOllamaProvider(cfg config.ProviderConfig) (*ollamaProvider, error) {
	chatModel := cfg.ChatModel
	if chatModel == "" {
		chatModel = "llama3"
	}
	embedModel := cfg.EmbedModel
	if embedModel == "" {
		embedModel = "nomic-embed-text"
	}

	baseOpts := []ollama.Option{}
	if cfg.BaseURL != "" {
		baseOpts = append(baseOpts, ollama.WithServerURL(cfg.BaseURL))
	}

	chat, err := ollama.New(append(baseOpts, ollama.WithModel(chatModel))...)
	if err != nil {
		return nil, fmt.Errorf("creating ollama chat client: %w", err)
	}
	embed, err := ollama.New(append(baseOpts, ollama.WithModel(embedModel))...)
	if err != nil {
		return nil, fmt.Errorf("creating ollama embed client: %w", err)
	}

	return &ollamaProvider{name: cfg.Name, chat: chat, embed: embed}, nil
}

func (p *ollamaProvider) Name() string {
	return p.name
}

func (p *ollamaProvider) Summarize(ctx context.Context, text string) (string, error) {
	return chatCompletion(ctx, p.chat, summarizeSystemPrompt, fmt.Sprintf(summarizePromptFmt, text))
}

func (p *ollamaProvider) RawTags(ctx context.Context, text string) (string, error) {
	return chatCompletion(ctx, p.chat, tagsSystemPrompt, fmt.Sprintf(tagsPromptFmt, text))
}

func (p *ollamaProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := p.embed.CreateEmbedding(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("creating embedding: %w", err)
	}
	return firstVector(vectors)
}
