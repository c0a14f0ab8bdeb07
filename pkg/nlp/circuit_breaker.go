package nlp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
	"github.com/soundprediction/medinsight/pkg/alert"
	"github.com/soundprediction/medinsight/pkg/config"
	"github.com/soundprediction/medinsight/pkg/types"
)

// CircuitBreakerClient wraps a Client with circuit breaking logic
type CircuitBreakerClient struct {
	client Client
	cb     *gobreaker.CircuitBreaker
	name   string
}

// NewBreakerSettings builds gobreaker settings that trip on a failure ratio
// and alert when the breaker opens. It is shared with the embedder wrapper.
func NewBreakerSettings(name string, cfg config.CircuitBreakerConfig, alerter alert.Alerter, logger *slog.Logger) gobreaker.Settings {
	if logger == nil {
		logger = slog.Default()
	}
	ratio := cfg.ReadyToTripRatio
	if ratio <= 0 {
		ratio = 0.6
	}

	return gobreaker.Settings{
		Name:         name,
		MaxRequests:  cfg.MaxRequests,
		Interval:     time.Duration(cfg.Interval) * time.Second,
		Timeout:      time.Duration(cfg.Timeout) * time.Second,
		IsSuccessful: isBreakerSuccess,
		ReadyToTrip:  func(counts gobreaker.Counts) bool {
			if counts.Requests < 3 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= ratio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
			if to == gobreaker.StateOpen && alerter != nil {
				msg := fmt.Sprintf("Circuit Breaker '%s' changed status from %s to %s. Too many failures detected.", name, from, to)
				if err := alerter.Alert(fmt.Sprintf("URGENT: Circuit Breaker Tripped - %s", name), msg); err != nil {
					logger.Error("Failed to send circuit breaker alert", "name", name, "error", err)
				}
			}
		},
	}
}

// sinkError marks an error returned by the caller's token callback rather
// than by the upstream provider.
type sinkError struct {
	err error
}

func (e *sinkError) Error() string { return e.err.Error() }
func (e *sinkError) Unwrap() error { return e.err }

// isBreakerSuccess reports whether err says nothing about upstream health.
// Caller cancellations and sink failures must not trip the breaker.
func isBreakerSuccess(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	var se *sinkError
	return errors.As(err, &se)
}

// NewCircuitBreakerClient creates a new circuit breaker client. When the
// breaker is disabled the client is returned unwrapped.
func NewCircuitBreakerClient(client Client, cfg config.CircuitBreakerConfig, alerter alert.Alerter, name string, logger *slog.Logger) Client {
	if !cfg.Enabled {
		return client
	}

	return &CircuitBreakerClient{
		client: client,
		cb:     gobreaker.NewCircuitBreaker(NewBreakerSettings(name, cfg, alerter, logger)),
		name:   name,
	}
}

// Chat implements Client
func (c *CircuitBreakerClient) Chat(ctx context.Context, messages []types.Message) (*types.Response, error) {
	resp, err := c.cb.Execute(func() (interface{}, error) {
		return c.client.Chat(ctx, messages)
	})
	if err != nil {
		return nil, err
	}
	return resp.(*types.Response), nil
}

// Stream implements Client. The whole stream counts as one request.
func (c *CircuitBreakerClient) Stream(ctx context.Context, messages []types.Message, onToken TokenFunc) error {
	_, err := c.cb.Execute(func() (interface{}, error) {
		return nil, c.client.Stream(ctx, messages, func(chunk string) error {
			if err := onToken(chunk); err != nil {
				return &sinkError{err: err}
			}
			return nil
		})
	})
	var se *sinkError
	if errors.As(err, &se) {
		return se.err
	}
	return err
}

// State returns the current breaker state.
func (c *CircuitBreakerClient) State() gobreaker.State {
	return c.cb.State()
}

// Close implements Client
func (c *CircuitBreakerClient) Close() error {
	return c.client.Close()
}
