package ai

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/fyrsmithlabs/collabd/internal/config"
)

// openAIProvider adapts the OpenAI chat and embedding APIs. With a custom
// BaseURL it also serves any OpenAI-compatible backend (TEI, vLLM, LiteLLM).
type openAIProvider struct {
	name string
	llm  *openai.LLM
}

func newOpenAIProvider(cfg config.ProviderConfig) (*openAIProvider, error) {
	apiKey := cfg.APIKey.Value()
	if apiKey == "" {
		// langchaingo requires a token; OpenAI-compatible local servers
		// accept any value.
		apiKey = "placeholder"
	}

	opts := []openai.Option{openai.WithToken(apiKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	if cfg.ChatModel != "" {
		opts = append(opts, openai.WithModel(cfg.ChatModel))
	}
	if cfg.EmbedModel != "" {
		opts = append(opts, openai.WithEmbeddingModel(cfg.EmbedModel))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating openai client: %w", err)
	}

	return &openAIProvider{name: cfg.Name, llm: llm}, nil
}

func (p *openAIProvider) Name() string {
	return p.name
}

func (p *openAIProvider) Summarize(ctx context.Context, text string) (string, error) {
	return chatCompletion(ctx, p.llm, summarizeSystemPrompt, fmt.Sprintf(summarizePromptFmt, text))
}

func (p *openAIProvider) RawTags(ctx context.Context, text string) (string, error) {
	return chatCompletion(ctx, p.llm, tagsSystemPrompt, fmt.Sprintf(tagsPromptFmt, text))
}

func (p *openAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := p.llm.CreateEmbedding(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("creating embedding: %w", err)
	}
	return firstVector(vectors)
}

// chatCompletion runs a single system+user exchange and returns the first
// choice's content. An empty completion is an error so the fallback chain
// advances instead of storing a blank result.
func chatCompletion(ctx context.Context, model llms.Model, system, prompt string) (string, error) {
	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}

	resp, err := model.GenerateContent(ctx, content)
	if err != nil {
		return "", fmt.Errorf("generating completion: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0].Content == "" {
		return "", fmt.Errorf("empty completion response")
	}
	return resp.Choices[0].Content, nil
}

// firstVector extracts the single expected vector from a batch response.
func firstVector(vectors [][]float32) ([]float32, error) {
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, fmt.Errorf("empty embedding response")
	}
	return vectors[0], nil
}
