package embedder

import (
	"context"
	"log/slog"

	"github.com/sony/gobreaker"
	"github.com/soundprediction/medinsight/pkg/alert"
	"github.com/soundprediction/medinsight/pkg/config"
	"github.com/soundprediction/medinsight/pkg/nlp"
)

// CircuitBreakerClient wraps a Client with circuit breaking logic
type CircuitBreakerClient struct {
	client Client
	cb     *gobreaker.CircuitBreaker
}

// NewCircuitBreakerClient wraps client, or returns it unchanged when the
// breaker is disabled.
func NewCircuitBreakerClient(client Client, cfg config.CircuitBreakerConfig, alerter alert.Alerter, name string, logger *slog.Logger) Client {
	if !cfg.Enabled {
		return client
	}
	return &CircuitBreakerClient{
		client: client,
		cb:     gobreaker.NewCircuitBreaker(nlp.NewBreakerSettings(name, cfg, alerter, logger)),
	}
}

// Embed implements Client
func (c *CircuitBreakerClient) Embed(ctx context.Context, texts []string, mode Mode) ([][]float32, error) {
	resp, err := c.cb.Execute(func() (interface{}, error) {
		return c.client.Embed(ctx, texts, mode)
	})
	if err != nil {
		return nil, err
	}
	vecs, _ := resp.([][]float32)
	return vecs, nil
}

// EmbedSingle implements Client
func (c *CircuitBreakerClient) EmbedSingle(ctx context.Context, text string, mode Mode) ([]float32, error) {
	embeddings, err := c.Embed(ctx, []string{text}, mode)
	if err != nil || len(embeddings) == 0 {
		return nil, err
	}
	return embeddings[0], nil
}

// Dimensions implements Client
func (c *CircuitBreakerClient) Dimensions() int {
	return c.client.Dimensions()
}

// State returns the current breaker state.
func (c *CircuitBreakerClient) State() gobreaker.State {
	return c.cb.State()
}

// Close implements Client
func (c *CircuitBreakerClient) Close() error {
	return c.client.Close()
}
