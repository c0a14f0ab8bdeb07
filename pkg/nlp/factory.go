package nlp

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/soundprediction/medinsight/pkg/alert"
	"github.com/soundprediction/medinsight/pkg/config"
)

// NewClientFromConfig builds a provider client for one configured model and
// wraps it with retry and circuit breaking.
func NewClientFromConfig(ctx context.Context, name string, mc config.NLPModelConfig, maxRetries int, cb config.CircuitBreakerConfig, alerter alert.Alerter, logger *slog.Logger) (Client, error) {
	llmCfg := LLMConfig{
		APIKey:      mc.APIKey,
		Model:       mc.Model,
		BaseURL:     mc.BaseURL,
		Temperature: mc.Temperature,
		MaxTokens:   mc.MaxTokens,
	}
	if llmCfg.MaxTokens <= 0 {
		llmCfg.MaxTokens = DefaultMaxTokens
	}

	var (
		base Client
		err  error
	)
	switch mc.Provider {
	case "openai", "":
		base, err = NewOpenAIClient(llmCfg)
	case "gemini", "genai":
		base, err = NewGenAIClient(ctx, llmCfg)
	default:
		return nil, fmt.Errorf("%w: unknown provider %q for model %q", ErrInvalidModel, mc.Provider, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s client: %w", name, err)
	}

	retryCfg := DefaultRetryConfig()
	retryCfg.MaxRetries = maxRetries

	return NewCircuitBreakerClient(NewRetryClient(base, retryCfg, logger), cb, alerter, "nlp-"+name, logger), nil
}
