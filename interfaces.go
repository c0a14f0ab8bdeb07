package medinsight

import (
	"context"

	"github.com/soundprediction/medinsight/pkg/research"
	"github.com/soundprediction/medinsight/pkg/retrieval"
	"github.com/soundprediction/medinsight/pkg/stream"
	"github.com/soundprediction/medinsight/pkg/types"
)

// This file defines focused interfaces over the Client.
// Consumers should depend on the smallest interface that meets their needs.

// InsightManager stores and searches hospital-scoped insights.
type InsightManager interface {
	// UpsertInsight embeds and stores an insight. An existing ID is replaced.
	UpsertInsight(ctx context.Context, input retrieval.InsightInput) (*types.Insight, error)

	// SearchInsights runs a tiered search from the viewpoint of req.Scope.
	SearchInsights(ctx context.Context, req SearchRequest) []types.Match
}

// ExpertAdvisor answers clinical questions from stored insights.
type ExpertAdvisor interface {
	// ExpertChat streams tokens, then a metadata event, then done.
	ExpertChat(ctx context.Context, req ChatRequest, sink stream.Sink) error
}

// Researcher runs multi-modal research requests.
type Researcher interface {
	// DeepResearch streams status events and a synthesized report.
	DeepResearch(ctx context.Context, req research.Request, sink stream.Sink) error
}

// ReportReader summarizes single medical images.
type ReportReader interface {
	// SummarizeReport streams a status event, tokens, then done.
	SummarizeReport(ctx context.Context, req SummaryRequest, sink stream.Sink) error
}

// Assistant is everything the HTTP server needs.
type Assistant interface {
	InsightManager
	ExpertAdvisor
	Researcher
	ReportReader

	// Close releases all underlying resources.
	Close() error
}

var _ Assistant = (*Client)(nil)
