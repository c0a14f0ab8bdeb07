package embedder

import (
	"context"
	"strings"
)

// Mode selects how a text is embedded. Stored passages and search queries are
// embedded asymmetrically by retrieval-tuned models.
type Mode string

const (
	// ModePassage embeds text that will be stored and searched against.
	ModePassage Mode = "passage"
	// ModeQuery embeds a search query.
	ModeQuery Mode = "query"
)

// Client defines the interface for embedding operations.
//
// Embedding blank input is not an error: Embed and EmbedSingle return nil
// with a nil error and callers treat that as "nothing to search with".
type Client interface {
	// Embed generates embeddings for the given texts.
	Embed(ctx context.Context, texts []string, mode Mode) ([][]float32, error)

	// EmbedSingle generates an embedding for a single text.
	EmbedSingle(ctx context.Context, text string, mode Mode) ([]float32, error)

	// Dimensions returns the number of dimensions in the embeddings.
	Dimensions() int

	// Close cleans up any resources.
	Close() error
}

// Config holds configuration for embedding clients.
type Config struct {
	Model      string `json:"model"`
	BatchSize  int    `json:"batch_size"`
	Dimensions int    `json:"dimensions"`
	BaseURL    string `json:"base_url,omitempty"`
	// InputPrefixes prepends "query: " / "passage: " for e5-style models
	// served behind an OpenAI-compatible API.
	InputPrefixes bool `json:"input_prefixes,omitempty"`
}

func blank(texts []string) bool {
	for _, t := range texts {
		if strings.TrimSpace(t) != "" {
			return false
		}
	}
	return true
}
