package ai

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms/huggingface"

	"github.com/fyrsmithlabs/collabd/internal/config"
)

const hfEmbedTask = "feature-extraction"

// huggingFaceProvider adapts the Hugging Face Inference API.
type huggingFaceProvider struct {
	name       string
	llm        *huggingface.LLM
	embedModel string
}

func newHuggingFaceProvider(cfg config.ProviderConfig) (*huggingFaceProvider, error) {
	if !cfg.APIKey.IsSet() {
		return nil, fmt.Errorf("huggingface provider requires an api key")
	}

	opts := []huggingface.Option{huggingface.WithToken(cfg.APIKey.Value())}
	if cfg.ChatModel != "" {
		opts = append(opts, huggingface.WithModel(cfg.ChatModel))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, huggingface.WithURL(cfg.BaseURL))
	}

	llm, err := huggingface.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating huggingface client: %w", err)
	}

	embedModel := cfg.EmbedModel
	if embedModel == "" {
		embedModel = "sentence-transformers/all-MiniLM-L6-v2"
	}

	return &huggingFaceProvider{name: cfg.Name, llm: llm, embedModel: embedModel}, nil
}

func (p *huggingFaceProvider) Name() string {
	return p.name
}

func (p *huggingFaceProvider) Summarize(ctx context.Context, text string) (string, error) {
	return chatCompletion(ctx, p.llm, summarizeSystemPrompt, fmt.Sprintf(summarizePromptFmt, text))
}

func (p *huggingFaceProvider) RawTags(ctx context.Context, text string) (string, error) {
	return chatCompletion(ctx, p.llm, tagsSystemPrompt, fmt.Sprintf(tagsPromptFmt, text))
}

func (p *huggingFaceProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := p.llm.CreateEmbedding(ctx, []string{text}, p.embedModel, hfEmbedTask)
	if err != nil {
		return nil, fmt.Errorf("creating embedding: %w", err)
	}
	return firstVector(vectors)
}
