package embedder

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/soundprediction/medinsight/pkg/alert"
	"github.com/soundprediction/medinsight/pkg/config"
)

// NewFromConfig builds the configured embedding provider wrapped in a circuit breaker.
func NewFromConfig(ctx context.Context, cfg config.EmbeddingConfig, cb config.CircuitBreakerConfig, alerter alert.Alerter, logger *slog.Logger) (Client, error) {
	ec := Config{
		Model:         cfg.Model,
		BaseURL:       cfg.BaseURL,
		Dimensions:    cfg.Dimensions,
		InputPrefixes: cfg.InputPrefixes,
	}

	var base Client
	switch cfg.Provider {
	case "openai", "":
		base = NewOpenAIEmbedder(cfg.APIKey, ec)
	case "gemini", "genai":
		g, err := NewGenAIEmbedder(ctx, cfg.APIKey, ec)
		if err != nil {
			return nil, err
		}
		base = g
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}

	return NewCircuitBreakerClient(base, cb, alerter, "embedder", logger), nil
}
