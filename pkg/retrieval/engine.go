// Package retrieval implements the tiered, privacy-masked insight search.
//
// A query first searches the target scope. Unless the request is strict and
// while results are short of TopK, it falls back to every other scope. Before
// any match leaves the engine, restricted fields of insights owned outside
// the viewer's verification scope are replaced with types.RestrictedSentinel.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/soundprediction/medinsight/pkg/embedder"
	"github.com/soundprediction/medinsight/pkg/insightstore"
	"github.com/soundprediction/medinsight/pkg/types"
)

// DefaultTopK is used when a request does not set TopK.
const DefaultTopK = 3

// ErrEmbeddingUnavailable is returned by Upsert when the passage could not be
// embedded.
var ErrEmbeddingUnavailable = errors.New("embedding unavailable for insight text")

// Request describes one retrieval.
type Request struct {
	Query string
	// TargetScope is the scope searched first.
	TargetScope string
	// VerificationScope is the viewer's own scope. Only matches owned by it
	// keep their restricted fields.
	VerificationScope string
	Category          string
	TopK              int
	// Strict disables the cross-scope fallback.
	Strict bool
}

// InsightInput is a new or replacement insight before embedding.
type InsightInput struct {
	ID         string `json:"id,omitempty" yaml:"id"`
	Text       string `json:"text" yaml:"text"`
	Category   string `json:"category" yaml:"category"`
	OwnerScope string `json:"owner_scope" yaml:"owner_scope"`
	Medication string `json:"medication,omitempty" yaml:"medication"`
	LabTest    string `json:"lab_test,omitempty" yaml:"lab_test"`
}

// Engine runs tiered retrieval against an insight store.
type Engine struct {
	embedder embedder.Client
	store    insightstore.Store
	logger   *slog.Logger
}

// NewEngine creates an engine. A nil logger uses slog.Default().
func NewEngine(emb embedder.Client, store insightstore.Store, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{embedder: emb, store: store, logger: logger}
}

// Retrieve returns masked matches for req: primary results in store order,
// then de-duplicated secondary results. Embedding and store failures are
// logged and degrade to an empty or partial list; Retrieve never fails.
// A request without a target scope matches nothing.
func (e *Engine) Retrieve(ctx context.Context, req Request) []types.Match {
	if strings.TrimSpace(req.TargetScope) == "" {
		e.logger.Debug("Retrieval without target scope, returning no matches")
		return []types.Match{}
	}

	topK := req.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}

	vec, err := e.embedder.EmbedSingle(ctx, req.Query, embedder.ModeQuery)
	if err != nil {
		e.logger.Warn("Query embedding failed, returning no matches", "error", err)
		return []types.Match{}
	}
	if len(vec) == 0 {
		return []types.Match{}
	}

	primaryLabel := types.SourceTargetedScope
	if req.TargetScope == req.VerificationScope {
		primaryLabel = types.SourceSameScope
	}

	primary, err := e.store.Query(ctx, vec, topK, insightstore.Filter{
		Scope:    req.TargetScope,
		Category: req.Category,
	})
	if err != nil {
		e.logger.Warn("Primary insight search failed", "scope", req.TargetScope, "error", err)
		return []types.Match{}
	}

	matches := make([]types.Match, 0, topK)
	seen := make(map[string]struct{}, topK)
	for _, h := range primary {
		seen[h.Insight.ID] = struct{}{}
		matches = append(matches, toMatch(h, primaryLabel))
	}

	if !req.Strict && len(matches) < topK {
		secondary, err := e.store.Query(ctx, vec, topK-len(matches), insightstore.Filter{
			Scope:        req.TargetScope,
			ExcludeScope: true,
			Category:     req.Category,
		})
		if err != nil {
			e.logger.Warn("Secondary insight search failed, keeping primary results",
				"scope", req.TargetScope, "primary", len(matches), "error", err)
		}
		for _, h := range secondary {
			if _, dup := seen[h.Insight.ID]; dup {
				continue
			}
			seen[h.Insight.ID] = struct{}{}
			matches = append(matches, toMatch(h, types.SourceGlobal))
		}
	}

	for i := range matches {
		mask(&matches[i], req.VerificationScope)
	}

	e.logger.Debug("Retrieved insights", "target", req.TargetScope, "strict", req.Strict, "matches", len(matches))
	return matches
}

// Upsert embeds the enriched passage text and stores the insight. An ID is
// generated when input.ID is empty.
func (e *Engine) Upsert(ctx context.Context, input InsightInput) (*types.Insight, error) {
	insight := &types.Insight{
		ID:         strings.TrimSpace(input.ID),
		Text:       strings.TrimSpace(input.Text),
		Category:   strings.TrimSpace(input.Category),
		OwnerScope: strings.TrimSpace(input.OwnerScope),
		Medication: strings.TrimSpace(input.Medication),
		LabTest:    strings.TrimSpace(input.LabTest),
		CreatedAt:  time.Now().UTC(),
	}
	if insight.ID == "" {
		insight.ID = uuid.NewString()
	}
	if err := insight.Validate(); err != nil {
		return nil, err
	}

	vec, err := e.embedder.EmbedSingle(ctx, PassageText(insight), embedder.ModePassage)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
	}
	if len(vec) == 0 {
		return nil, ErrEmbeddingUnavailable
	}
	insight.Vector = vec

	if err := e.store.Upsert(ctx, insight); err != nil {
		return nil, fmt.Errorf("failed to store insight: %w", err)
	}

	e.logger.Info("Upserted insight", "id", insight.ID, "scope", insight.OwnerScope, "category", insight.Category)
	return insight, nil
}

// PassageText is the text embedded for an insight: the body followed by its
// category and any restricted annotations.
func PassageText(in *types.Insight) string {
	var sb strings.Builder
	sb.WriteString(in.Text)
	fmt.Fprintf(&sb, " [Category: %s]", in.Category)
	if in.Medication != "" {
		fmt.Fprintf(&sb, " [Medication: %s]", in.Medication)
	}
	if in.LabTest != "" {
		fmt.Fprintf(&sb, " [Lab Test: %s]", in.LabTest)
	}
	return sb.String()
}

func toMatch(h insightstore.Hit, label types.SourceLabel) types.Match {
	return types.Match{
		Score:       h.Score,
		ID:          h.Insight.ID,
		Text:        h.Insight.Text,
		Category:    h.Insight.Category,
		OwnerScope:  h.Insight.OwnerScope,
		Medication:  h.Insight.Medication,
		LabTest:     h.Insight.LabTest,
		SourceLabel: label,
	}
}

// mask hides restricted fields of a match owned outside verificationScope.
func mask(m *types.Match, verificationScope string) {
	if m.OwnerScope == verificationScope {
		return
	}
	m.Medication = types.RestrictedSentinel
	m.LabTest = types.RestrictedSentinel
	m.SourceLabel = types.SourceGlobal
}
