// Package research runs multi-modal research requests: four analyzers fan
// out concurrently, their results are merged, a web search adds context and
// a language model streams the final report.
package research

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/soundprediction/medinsight/pkg/modality"
	"github.com/soundprediction/medinsight/pkg/nlp"
	"github.com/soundprediction/medinsight/pkg/prompts"
	"github.com/soundprediction/medinsight/pkg/research/websearch"
	"github.com/soundprediction/medinsight/pkg/stream"
	"github.com/soundprediction/medinsight/pkg/synth"
	"github.com/soundprediction/medinsight/pkg/utils"
)

// Status messages emitted while a research run progresses.
const (
	StatusStarting     = "Starting Research..."
	StatusAudio        = "Audio Transcribed."
	StatusAcoustic     = "Acoustic Signal Analyzed."
	StatusImage        = "Image Analyzed."
	StatusDocument     = "Document Processed."
	StatusResearched   = "Research Completed."
	StatusSynthesizing = "Synthesizing Report..."
)

// DefaultMaxResults caps the web search to keep the report prompt short.
const DefaultMaxResults = 1

type SpeechAnalyzer interface {
	Analyze(ctx context.Context, ref string) modality.Result
}

type AcousticAnalyzer interface {
	Analyze(ctx context.Context, ref string) modality.AcousticResult
}

type ImageAnalyzer interface {
	Analyze(ctx context.Context, ref, prompt string) modality.ImageResult
}

type DocumentAnalyzer interface {
	Analyze(ctx context.Context, ref string) modality.Result
}

// Deps are the collaborators of a Coordinator.
type Deps struct {
	Speech    SpeechAnalyzer
	Acoustic  AcousticAnalyzer
	Image     ImageAnalyzer
	Document  DocumentAnalyzer
	Searcher  websearch.Searcher
	Generator nlp.Generator

	// MaxResults bounds the web search. Zero uses DefaultMaxResults.
	MaxResults int
}

// Coordinator runs research requests. It is safe for concurrent use; each
// run owns its own State.
type Coordinator struct {
	deps   Deps
	synth  *synth.Synthesizer
	logger *slog.Logger
}

// NewCoordinator creates a Coordinator. Every analyzer and the generator
// must be set; a nil Searcher makes every search fail softly.
func NewCoordinator(deps Deps, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.MaxResults <= 0 {
		deps.MaxResults = DefaultMaxResults
	}
	return &Coordinator{
		deps:   deps,
		synth:  synth.New(deps.Generator, logger),
		logger: logger,
	}
}

// Run executes req and streams its progress and report to sink. Exactly one
// terminal event is sent, and it is the last. The returned error reports a
// failed or cancelled run.
func (c *Coordinator) Run(ctx context.Context, req Request, sink stream.Sink) error {
	_, err := c.run(ctx, req, sink)
	return err
}

func (c *Coordinator) run(ctx context.Context, req Request, sink stream.Sink) (*State, error) {
	em := stream.NewEmitter(sink)
	state := &State{Request: req}

	if err := em.Send(stream.Status(StatusStarting)); err != nil {
		return state, err
	}

	c.analyze(ctx, state, em)

	if err := ctx.Err(); err != nil {
		c.logger.Warn("Research cancelled", "error", err)
		_ = em.Fail(fmt.Errorf("research cancelled: %w", err))
		return state, err
	}

	c.search(ctx, state)
	if err := em.Send(stream.Status(StatusResearched)); err != nil {
		return state, err
	}

	if err := em.Send(stream.Status(StatusSynthesizing)); err != nil {
		return state, err
	}

	var report strings.Builder
	tee := stream.SinkFunc(func(ev stream.Event) error {
		if ev.Type == stream.TypeToken {
			report.WriteString(ev.Content)
		}
		return em.Send(ev)
	})
	err := c.synth.StreamReport(ctx, prompts.ResearchReport(state.ReportInputs()), tee)
	state.FinalReport = report.String()
	if err != nil {
		c.logger.Error("Report synthesis failed", "error", err)
		return state, err
	}
	return state, nil
}

// analyze fans out the four analyzers and waits for all of them. Branches
// never fail; the group only carries cancellation. Each branch reports its
// status when it settles, panics included.
func (c *Coordinator) analyze(ctx context.Context, state *State, em *stream.Emitter) {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer c.status(em, StatusAudio)
		defer utils.RecoverWithCallback(func(err error) {
			state.Transcript = modality.Degrade(modality.AudioFailed, err.Error())
		})
		state.Transcript = c.deps.Speech.Analyze(gctx, state.AudioRef)
		return nil
	})

	g.Go(func() error {
		defer c.status(em, StatusAcoustic)
		defer utils.RecoverWithCallback(func(err error) {
			state.AcousticSummary = modality.Degrade(modality.AcousticUnavailable, err.Error())
			state.AcousticTier = ""
		})
		res := c.deps.Acoustic.Analyze(gctx, state.AudioRef)
		state.AcousticSummary = res.Result
		state.AcousticTier = res.Tier
		return nil
	})

	g.Go(func() error {
		defer c.status(em, StatusImage)
		defer utils.RecoverWithCallback(func(err error) {
			state.ImageFindings = modality.Degrade(modality.ImageUnavailable, err.Error())
			state.ImageLabel = modality.NoLabel
		})
		res := c.deps.Image.Analyze(gctx, state.ImageRef, state.Prompt)
		state.ImageFindings = res.Findings
		state.ImageLabel = res.Label
		return nil
	})

	g.Go(func() error {
		defer c.status(em, StatusDocument)
		defer utils.RecoverWithCallback(func(err error) {
			state.DocumentText = modality.Degrade(modality.DocumentFailed, err.Error())
		})
		state.DocumentText = c.deps.Document.Analyze(gctx, state.DocumentRef)
		return nil
	})

	_ = g.Wait()
}

func (c *Coordinator) search(ctx context.Context, state *State) {
	state.SearchQuery = BuildSearchQuery(state)
	if state.SearchQuery == "" {
		state.SearchSummary = NoResearchData
		state.SearchDegraded = true
		return
	}

	c.logger.Info("Web search", "query", state.SearchQuery)
	if c.deps.Searcher == nil {
		state.SearchSummary = "Research failed: web search is not configured"
		state.SearchDegraded = true
		return
	}

	results, err := c.deps.Searcher.Search(ctx, state.SearchQuery, c.deps.MaxResults)
	if err != nil {
		c.logger.Error("Web search failed", "error", err)
		state.SearchSummary = fmt.Sprintf("Research failed: %v", err)
		state.SearchDegraded = true
		return
	}
	state.SearchSummary = FormatResults(results)
}

func (c *Coordinator) status(em *stream.Emitter, msg string) {
	if err := em.Send(stream.Status(msg)); err != nil {
		c.logger.Debug("Status not delivered", "status", msg, "error", err)
	}
}
