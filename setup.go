package medinsight

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/soundprediction/medinsight/pkg/alert"
	"github.com/soundprediction/medinsight/pkg/config"
	"github.com/soundprediction/medinsight/pkg/embedder"
	"github.com/soundprediction/medinsight/pkg/insightstore"
	"github.com/soundprediction/medinsight/pkg/modality"
	"github.com/soundprediction/medinsight/pkg/nlp"
	"github.com/soundprediction/medinsight/pkg/research/websearch"
)

// NewClientFromConfig wires every collaborator from application config.
// Without a web search API key deep research still runs and reports the
// search as unavailable.
func NewClientFromConfig(ctx context.Context, cfg *config.Config, alerter alert.Alerter, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if alerter == nil {
		alerter = alert.New(cfg.Alert, logger)
	}

	emb, err := embedder.NewFromConfig(ctx, cfg.Embedding, cfg.CircuitBreaker, alerter, logger.With("component", "embedder"))
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	dims := cfg.Store.Dimensions
	if dims <= 0 {
		dims = emb.Dimensions()
	}
	store, err := insightstore.NewStore(ctx, insightstore.Config{
		Driver:      cfg.Store.Driver,
		URI:         cfg.Store.URI,
		Collection:  cfg.Store.Collection,
		Dimensions:  dims,
		UsePgVector: cfg.Store.UsePgVector,
	})
	if err != nil {
		_ = emb.Close()
		return nil, fmt.Errorf("failed to open insight store: %w", err)
	}

	chat, err := nlp.NewClientFromConfig(ctx, "chat", cfg.NLP.Models["chat"], cfg.NLP.MaxRetries, cfg.CircuitBreaker, alerter, logger)
	if err != nil {
		_ = emb.Close()
		_ = store.Close()
		return nil, err
	}

	deps := Deps{
		Embedder:  emb,
		Store:     store,
		ChatModel: chat,
		Analyzers: modality.NewAnalyzers(cfg.Modality, nil, logger),
	}

	if mc, ok := cfg.NLP.Models["report"]; ok {
		report, err := nlp.NewClientFromConfig(ctx, "report", mc, cfg.NLP.MaxRetries, cfg.CircuitBreaker, alerter, logger)
		if err != nil {
			_ = emb.Close()
			_ = store.Close()
			_ = chat.Close()
			return nil, err
		}
		deps.ReportModel = report
	}

	if cfg.Search.APIKey != "" {
		deps.Searcher = websearch.NewTavilyClient(websearch.Config{
			APIKey:            cfg.Search.APIKey,
			BaseURL:           cfg.Search.BaseURL,
			RequestsPerSecond: cfg.Search.RequestsPerSecond,
			Burst:             cfg.Search.Burst,
		}, nil)
	} else {
		logger.Warn("Web search API key not set; deep research will skip web search")
	}

	return NewClient(deps, &Config{
		TopK:             cfg.Retrieval.TopK,
		ChatTopK:         cfg.Retrieval.ChatTopK,
		MaxSearchResults: cfg.Search.MaxResults,
	}, logger)
}
