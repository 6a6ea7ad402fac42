package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/vicmordi/AIHelpdesk/internal/config"
)

// OpenAIEmbedder calls an OpenAI-compatible embeddings endpoint through langchaingo.
type OpenAIEmbedder struct {
	impl *embeddings.EmbedderImpl
}

// NewOpenAIEmbedder builds an embedder from the LLM configuration.
func NewOpenAIEmbedder(cfg config.LLMConfig) (*OpenAIEmbedder, error) {
	opts := []openai.Option{
		openai.WithModel(cfg.EmbeddingModel),
		openai.WithToken(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating openai client: %w", err)
	}
	impl, err := embeddings.NewEmbedder(client)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}
	return &OpenAIEmbedder{impl: impl}, nil
}

// EmbedQuery embeds a single text.
func (e *OpenAIEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}
	return e.impl.EmbedQuery(ctx, text)
}

// EmbedDocuments embeds texts in order.
func (e *OpenAIEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyInput
	}
	return e.impl.EmbedDocuments(ctx, texts)
}

// New picks the OpenAI embedder when an API key is configured, the hashing embedder otherwise.
func New(llm config.LLMConfig, emb config.EmbeddingConfig) (Embedder, error) {
	if llm.Enabled() {
		return NewOpenAIEmbedder(llm)
	}
	return NewHashingEmbedder(emb.Dimensions), nil
}
