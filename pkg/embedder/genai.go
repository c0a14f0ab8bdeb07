package embedder

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// GenAIEmbedder generates embeddings using Google's Gemini API. The mode is
// sent as the retrieval task type.
type GenAIEmbedder struct {
	client *genai.Client
	config Config
}

// NewGenAIEmbedder creates a new GenAI embedder.
func NewGenAIEmbedder(ctx context.Context, apiKey string, config Config) (*GenAIEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	if config.Model == "" {
		config.Model = "gemini-embedding-001"
	}
	if config.Dimensions <= 0 {
		config.Dimensions = 768
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GenAIEmbedder{client: client, config: config}, nil
}

// Embed generates embeddings for multiple texts in one request.
func (e *GenAIEmbedder) Embed(ctx context.Context, texts []string, mode Mode) ([][]float32, error) {
	if len(texts) == 0 || blank(texts) {
		return nil, nil
	}

	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	dims := int32(e.config.Dimensions)
	result, err := e.client.Models.EmbedContent(ctx, e.config.Model, contents, &genai.EmbedContentConfig{
		TaskType:             taskType(mode),
		OutputDimensionality: &dims,
	})
	if err != nil {
		return nil, fmt.Errorf("GenAI batch embed failed: %w", err)
	}
	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(result.Embeddings))
	}

	embeddings := make([][]float32, len(result.Embeddings))
	for i, emb := range result.Embeddings {
		embeddings[i] = emb.Values
	}
	return embeddings, nil
}

// EmbedSingle generates an embedding for a single text.
func (e *GenAIEmbedder) EmbedSingle(ctx context.Context, text string, mode Mode) ([]float32, error) {
	embeddings, err := e.Embed(ctx, []string{text}, mode)
	if err != nil || len(embeddings) == 0 {
		return nil, err
	}
	return embeddings[0], nil
}

// Dimensions returns the dimensionality of embeddings.
func (e *GenAIEmbedder) Dimensions() int {
	return e.config.Dimensions
}

// Close is a no-op.
func (e *GenAIEmbedder) Close() error {
	return nil
}

func taskType(mode Mode) string {
	if mode == ModeQuery {
		return "RETRIEVAL_QUERY"
	}
	return "RETRIEVAL_DOCUMENT"
}
