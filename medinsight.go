package medinsight

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/soundprediction/medinsight/pkg/embedder"
	"github.com/soundprediction/medinsight/pkg/insightstore"
	"github.com/soundprediction/medinsight/pkg/modality"
	"github.com/soundprediction/medinsight/pkg/nlp"
	"github.com/soundprediction/medinsight/pkg/research"
	"github.com/soundprediction/medinsight/pkg/research/websearch"
	"github.com/soundprediction/medinsight/pkg/retrieval"
	"github.com/soundprediction/medinsight/pkg/stream"
	"github.com/soundprediction/medinsight/pkg/synth"
	"github.com/soundprediction/medinsight/pkg/types"
)

var (
	// ErrMissingScope is returned when a request carries no hospital scope.
	ErrMissingScope = errors.New("hospital scope is required")
	// ErrEmptyQuery is returned when a search or chat query is blank.
	ErrEmptyQuery = errors.New("query is required")
	// ErrResearchUnavailable is returned by DeepResearch when no analyzers
	// were configured.
	ErrResearchUnavailable = errors.New("deep research is not configured")
	// ErrSummaryUnavailable is returned by SummarizeReport when no
	// analyzers were configured.
	ErrSummaryUnavailable = errors.New("report summaries are not configured")
)

// Status messages emitted before a report summary streams.
const (
	StatusReadingReport  = "Reading medical report..."
	StatusSkinSpecialist = "Routing to skin specialist..."
)

// Deps are the collaborators of a Client. Embedder, Store and ChatModel are
// required. ReportModel defaults to ChatModel. Deep research is only
// available when Analyzers is set.
type Deps struct {
	Embedder    embedder.Client
	Store       insightstore.Store
	ChatModel   nlp.Generator
	ReportModel nlp.Generator
	Analyzers   *modality.Analyzers
	Searcher    websearch.Searcher
}

// Config holds per-operation defaults.
type Config struct {
	// TopK is the default result count of SearchInsights.
	TopK int
	// ChatTopK is the number of insights grounding an expert answer.
	ChatTopK int
	// MaxSearchResults bounds the deep research web search.
	MaxSearchResults int
}

// NewDefaultConfig returns the default Config.
func NewDefaultConfig() *Config {
	return &Config{
		TopK:             retrieval.DefaultTopK,
		ChatTopK:         5,
		MaxSearchResults: research.DefaultMaxResults,
	}
}

// SearchRequest is a same-scope insight search. The scope is both the
// target and the viewer.
type SearchRequest struct {
	Query    string
	Scope    string
	Category string
	TopK     int
}

// ChatRequest asks for an expert answer grounded in stored insights.
type ChatRequest struct {
	Query string
	// UserScope is the hospital of the asking user.
	UserScope string
	// HospitalID, when set, restricts the search to that hospital.
	HospitalID string
	Category   string
}

// SummaryRequest asks for a written summary of one medical image. The
// skin specialist model replaces the document reader when SkinSpecialist
// is set.
type SummaryRequest struct {
	ImageRef       string
	SkinSpecialist bool
}

// Client is the main implementation of the Assistant interface.
type Client struct {
	engine      *retrieval.Engine
	synth       *synth.Synthesizer
	coordinator *research.Coordinator
	deps        Deps
	sharedModel bool
	config      *Config
	logger      *slog.Logger
}

// NewClient creates a new medinsight client from its collaborators.
func NewClient(deps Deps, config *Config, logger *slog.Logger) (*Client, error) {
	if deps.Embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("insight store is required")
	}
	if deps.ChatModel == nil {
		return nil, fmt.Errorf("chat model is required")
	}
	sharedModel := deps.ReportModel == nil
	if sharedModel {
		deps.ReportModel = deps.ChatModel
	}
	if config == nil {
		config = NewDefaultConfig()
	}
	if config.TopK <= 0 {
		config.TopK = retrieval.DefaultTopK
	}
	if config.ChatTopK <= 0 {
		config.ChatTopK = 5
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		engine:      retrieval.NewEngine(deps.Embedder, deps.Store, logger.With("component", "retrieval")),
		synth:       synth.New(deps.ChatModel, logger.With("component", "synth")),
		deps:        deps,
		sharedModel: sharedModel,
		config:      config,
		logger:      logger,
	}

	if deps.Analyzers != nil {
		c.coordinator = research.NewCoordinator(research.Deps{
			Speech:     deps.Analyzers.Speech,
			Acoustic:   deps.Analyzers.Acoustic,
			Image:      deps.Analyzers.Image,
			Document:   deps.Analyzers.Document,
			Searcher:   deps.Searcher,
			Generator:  deps.ReportModel,
			MaxResults: config.MaxSearchResults,
		}, logger.With("component", "research"))
	}
	return c, nil
}

// UpsertInsight embeds and stores an insight, assigning an ID when absent.
func (c *Client) UpsertInsight(ctx context.Context, input retrieval.InsightInput) (*types.Insight, error) {
	if strings.TrimSpace(input.OwnerScope) == "" {
		return nil, ErrMissingScope
	}
	return c.engine.Upsert(ctx, input)
}

// SearchInsights retrieves insights for a user of req.Scope. Restricted
// fields are only visible on insights owned by that scope.
func (c *Client) SearchInsights(ctx context.Context, req SearchRequest) []types.Match {
	topK := req.TopK
	if topK <= 0 {
		topK = c.config.TopK
	}
	return c.engine.Retrieve(ctx, retrieval.Request{
		Query:             req.Query,
		TargetScope:       req.Scope,
		VerificationScope: req.Scope,
		Category:          req.Category,
		TopK:              topK,
	})
}

// ChatRetrievalRequest resolves the scopes of an expert chat. An explicit
// hospital restricts the search to it and reveals specifics only when it
// is the user's own. Otherwise the user's hospital is searched first with a
// global fallback, and specifics stay hidden.
func ChatRetrievalRequest(req ChatRequest, topK int) retrieval.Request {
	if req.HospitalID != "" {
		return retrieval.Request{
			Query:             req.Query,
			TargetScope:       req.HospitalID,
			VerificationScope: req.UserScope,
			Category:          req.Category,
			TopK:              topK,
			Strict:            true,
		}
	}
	return retrieval.Request{
		Query:             req.Query,
		TargetScope:       req.UserScope,
		VerificationScope: types.HiddenScope,
		Category:          req.Category,
		TopK:              topK,
	}
}

// ExpertChat streams an answer grounded in stored insights. Exactly one
// terminal event is sent to sink.
func (c *Client) ExpertChat(ctx context.Context, req ChatRequest, sink stream.Sink) error {
	em := stream.NewEmitter(sink)

	if strings.TrimSpace(req.Query) == "" {
		_ = em.Fail(ErrEmptyQuery)
		return ErrEmptyQuery
	}
	if req.HospitalID == "" && req.UserScope == "" {
		_ = em.Fail(ErrMissingScope)
		return ErrMissingScope
	}

	matches := c.engine.Retrieve(ctx, ChatRetrievalRequest(req, c.config.ChatTopK))
	c.logger.Debug("Expert chat context", "matches", len(matches))

	return c.synth.Stream(ctx, req.Query, matches, em)
}

// DeepResearch runs a multi-modal research request and streams its report.
func (c *Client) DeepResearch(ctx context.Context, req research.Request, sink stream.Sink) error {
	if c.coordinator == nil {
		em := stream.NewEmitter(sink)
		_ = em.Fail(ErrResearchUnavailable)
		return ErrResearchUnavailable
	}
	return c.coordinator.Run(ctx, req, sink)
}

// SummarizeReport streams a summary of a prescription, clinical note, lab
// report or skin image. A status event precedes the tokens and exactly one
// terminal event ends the stream.
func (c *Client) SummarizeReport(ctx context.Context, req SummaryRequest, sink stream.Sink) error {
	em := stream.NewEmitter(sink)

	if c.deps.Analyzers == nil || c.deps.Analyzers.Summary == nil {
		_ = em.Fail(ErrSummaryUnavailable)
		return ErrSummaryUnavailable
	}
	if strings.TrimSpace(req.ImageRef) == "" {
		_ = em.Fail(modality.ErrNoReportImage)
		return modality.ErrNoReportImage
	}

	status := StatusReadingReport
	if req.SkinSpecialist {
		status = StatusSkinSpecialist
	}
	if err := em.Send(stream.Status(status)); err != nil {
		return err
	}

	err := c.deps.Analyzers.Summary.Summarize(ctx, req.ImageRef, req.SkinSpecialist, func(chunk string) error {
		if chunk == "" {
			return nil
		}
		return em.Send(stream.Token(chunk))
	})
	if err != nil {
		c.logger.Error("Report summary failed", "skin_specialist", req.SkinSpecialist, "error", err)
		_ = em.Fail(err)
		return err
	}
	return em.Close()
}

// Close releases the embedder, the store and any closable model.
func (c *Client) Close() error {
	var errs []error
	if err := c.deps.Embedder.Close(); err != nil {
		errs = append(errs, fmt.Errorf("embedder: %w", err))
	}
	if err := c.deps.Store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("store: %w", err))
	}
	if closer, ok := c.deps.ChatModel.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("chat model: %w", err))
		}
	}
	if !c.sharedModel {
		if closer, ok := c.deps.ReportModel.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, fmt.Errorf("report model: %w", err))
			}
		}
	}
	return errors.Join(errs...)
}
