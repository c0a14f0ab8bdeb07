package retrieval

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"testing"

	"github.com/soundprediction/medinsight/pkg/embedder"
	"github.com/soundprediction/medinsight/pkg/insightstore"
	"github.com/soundprediction/medinsight/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// bagEmbedder hashes lowercase words into a fixed-width count vector, so
// texts sharing words land close together.
type bagEmbedder struct {
	err   error
	modes []embedder.Mode
}

func (b *bagEmbedder) Embed(ctx context.Context, texts []string, mode embedder.Mode) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		v, err := b.EmbedSingle(ctx, t, mode)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (b *bagEmbedder) EmbedSingle(ctx context.Context, text string, mode embedder.Mode) ([]float32, error) {
	b.modes = append(b.modes, mode)
	if b.err != nil {
		return nil, b.err
	}
	words := strings.Fields(strings.ToLower(text))
	if len(words) == 0 {
		return nil, nil
	}
	vec := make([]float32, 64)
	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(strings.Trim(w, "[].,:")))
		vec[h.Sum32()%64]++
	}
	return vec, nil
}

func (b *bagEmbedder) Dimensions() int { return 64 }
func (b *bagEmbedder) Close() error    { return nil }

// countingStore records filters and can fail selected queries.
type countingStore struct {
	insightstore.Store
	filters   []insightstore.Filter
	limits    []int
	failOn    int // 1-based query index to fail, 0 for never
	overrides map[int][]insightstore.Hit
}

func (c *countingStore) Query(ctx context.Context, vec []float32, topK int, f insightstore.Filter) ([]insightstore.Hit, error) {
	c.filters = append(c.filters, f)
	c.limits = append(c.limits, topK)
	n := len(c.filters)
	if c.failOn == n {
		return nil, errors.New("store unavailable")
	}
	if hits, ok := c.overrides[n]; ok {
		return hits, nil
	}
	return c.Store.Query(ctx, vec, topK, f)
}

func newEngine(t *testing.T, insights []InsightInput) (*Engine, *countingStore, *bagEmbedder) {
	t.Helper()
	emb := &bagEmbedder{}
	store := &countingStore{Store: insightstore.NewMemoryStore()}
	e := NewEngine(emb, store, nil)
	for _, in := range insights {
		_, err := e.Upsert(context.Background(), in)
		require.NoError(t, err)
	}
	return e, store, emb
}

func scoped(scope string, n int) []InsightInput {
	out := make([]InsightInput, n)
	for i := range out {
		out[i] = InsightInput{
			ID:         fmt.Sprintf("%s-%d", scope, i),
			Text:       fmt.Sprintf("persistent cough treated case %d", i),
			Category:   "respiratory",
			OwnerScope: scope,
			Medication: "Amoxicillin",
			LabTest:    "Sputum culture",
		}
	}
	return out
}

func TestRetrievePrimarySatisfiesTopK(t *testing.T) {
	e, store, _ := newEngine(t, append(scoped("hosp-a", 5), scoped("hosp-b", 3)...))

	matches := e.Retrieve(context.Background(), Request{
		Query: "persistent cough", TargetScope: "hosp-a", VerificationScope: "hosp-a", TopK: 3,
	})

	require.Len(t, matches, 3)
	assert.Len(t, store.filters, 1, "secondary search must not be issued")
	for _, m := range matches {
		assert.Equal(t, "hosp-a", m.OwnerScope)
		assert.Equal(t, types.SourceSameScope, m.SourceLabel)
		assert.Equal(t, "Amoxicillin", m.Medication)
		assert.False(t, m.Masked())
	}
}

func TestRetrieveFallsBackToGlobal(t *testing.T) {
	e, store, _ := newEngine(t, append(scoped("hosp-a", 1), scoped("hosp-b", 4)...))

	matches := e.Retrieve(context.Background(), Request{
		Query: "persistent cough", TargetScope: "hosp-a", VerificationScope: "hosp-a", TopK: 3,
	})

	require.Len(t, matches, 3)
	require.Len(t, store.filters, 2)
	assert.Equal(t, insightstore.Filter{Scope: "hosp-a", ExcludeScope: true}, store.filters[1])
	assert.Equal(t, 2, store.limits[1])

	assert.Equal(t, "hosp-a-0", matches[0].ID)
	assert.Equal(t, types.SourceSameScope, matches[0].SourceLabel)
	assert.Equal(t, "Amoxicillin", matches[0].Medication)

	for _, m := range matches[1:] {
		assert.Equal(t, "hosp-b", m.OwnerScope)
		assert.Equal(t, types.SourceGlobal, m.SourceLabel)
		assert.Equal(t, types.RestrictedSentinel, m.Medication)
		assert.Equal(t, types.RestrictedSentinel, m.LabTest)
	}
}

func TestRetrieveStrictStaysInScope(t *testing.T) {
	e, store, _ := newEngine(t, append(scoped("hosp-a", 1), scoped("hosp-b", 4)...))

	matches := e.Retrieve(context.Background(), Request{
		Query: "persistent cough", TargetScope: "hosp-a", VerificationScope: "hosp-a", TopK: 3, Strict: true,
	})

	require.Len(t, matches, 1)
	assert.Len(t, store.filters, 1)
	for _, m := range matches {
		assert.Equal(t, "hosp-a", m.OwnerScope)
	}
}

func TestRetrieveTargetedScopeIsMasked(t *testing.T) {
	e, _, _ := newEngine(t, scoped("hosp-b", 2))

	// Viewer from hosp-a explicitly targets hosp-b
	matches := e.Retrieve(context.Background(), Request{
		Query: "persistent cough", TargetScope: "hosp-b", VerificationScope: "hosp-a", TopK: 2, Strict: true,
	})

	require.Len(t, matches, 2)
	for _, m := range matches {
		assert.Equal(t, types.SourceGlobal, m.SourceLabel, "masking normalizes the label")
		assert.Equal(t, types.RestrictedSentinel, m.Medication)
		assert.Equal(t, types.RestrictedSentinel, m.LabTest)
	}
}

func TestRetrieveTargetedScopeOwnHospital(t *testing.T) {
	e, _, _ := newEngine(t, scoped("hosp-b", 1))

	matches := e.Retrieve(context.Background(), Request{
		Query: "persistent cough", TargetScope: "hosp-b", VerificationScope: "hosp-b", Strict: true,
	})
	require.Len(t, matches, 1)
	assert.Equal(t, types.SourceSameScope, matches[0].SourceLabel)
}

func TestRetrieveHiddenVerificationMasksEverything(t *testing.T) {
	e, _, _ := newEngine(t, append(scoped("hosp-a", 2), scoped("hosp-b", 2)...))

	matches := e.Retrieve(context.Background(), Request{
		Query: "persistent cough", TargetScope: "hosp-a", VerificationScope: types.HiddenScope, TopK: 4,
	})

	require.Len(t, matches, 4)
	for _, m := range matches {
		assert.True(t, m.Masked())
		assert.Equal(t, types.SourceGlobal, m.SourceLabel)
	}
}

func TestRetrieveDedupsSecondary(t *testing.T) {
	e, store, _ := newEngine(t, scoped("hosp-a", 1))

	dup := insightstore.Hit{Insight: types.Insight{ID: "hosp-a-0", Text: "dup", OwnerScope: "hosp-b"}, Score: 0.9}
	other := insightstore.Hit{Insight: types.Insight{ID: "hosp-b-9", Text: "other", OwnerScope: "hosp-b"}, Score: 0.8}
	store.overrides = map[int][]insightstore.Hit{2: {dup, other}}

	matches := e.Retrieve(context.Background(), Request{
		Query: "persistent cough", TargetScope: "hosp-a", VerificationScope: "hosp-a", TopK: 3,
	})

	require.Len(t, matches, 2)
	assert.Equal(t, "hosp-a-0", matches[0].ID)
	assert.Equal(t, types.SourceSameScope, matches[0].SourceLabel)
	assert.Equal(t, "hosp-b-9", matches[1].ID)
}

func TestRetrieveCategoryFilter(t *testing.T) {
	e, store, _ := newEngine(t, scoped("hosp-a", 2))

	_ = e.Retrieve(context.Background(), Request{
		Query: "cough", TargetScope: "hosp-a", VerificationScope: "hosp-a", Category: "cardiology",
	})

	require.Len(t, store.filters, 2)
	assert.Equal(t, "cardiology", store.filters[0].Category)
	assert.Equal(t, "cardiology", store.filters[1].Category)
	assert.Equal(t, DefaultTopK, store.limits[0])
}

func TestRetrieveDegrades(t *testing.T) {
	t.Run("embedding error", func(t *testing.T) {
		e, store, emb := newEngine(t, scoped("hosp-a", 2))
		emb.err = errors.New("embedding service down")

		matches := e.Retrieve(context.Background(), Request{Query: "cough", TargetScope: "hosp-a", VerificationScope: "hosp-a"})
		assert.NotNil(t, matches)
		assert.Empty(t, matches)
		assert.Empty(t, store.filters)
	})

	t.Run("blank query", func(t *testing.T) {
		e, store, _ := newEngine(t, scoped("hosp-a", 2))

		matches := e.Retrieve(context.Background(), Request{Query: "  ", TargetScope: "hosp-a", VerificationScope: "hosp-a"})
		assert.Empty(t, matches)
		assert.Empty(t, store.filters)
	})

	t.Run("missing target scope", func(t *testing.T) {
		for _, scope := range []string{"", "   "} {
			e, store, emb := newEngine(t, scoped("hosp-a", 2))
			emb.modes = nil

			matches := e.Retrieve(context.Background(), Request{Query: "cough", TargetScope: scope, VerificationScope: scope})
			if matches == nil {
				t.Errorf("Retrieve with scope %q returned nil, want empty slice", scope)
			}
			assert.Empty(t, matches)
			assert.Empty(t, store.filters, "no store query without a scope")
			assert.Empty(t, emb.modes, "no embedding without a scope")
		}
	})

	t.Run("primary store error", func(t *testing.T) {
		e, store, _ := newEngine(t, scoped("hosp-a", 2))
		store.failOn = 1

		matches := e.Retrieve(context.Background(), Request{Query: "cough", TargetScope: "hosp-a", VerificationScope: "hosp-a"})
		assert.Empty(t, matches)
		assert.Len(t, store.filters, 1)
	})

	t.Run("secondary store error keeps primary", func(t *testing.T) {
		e, store, _ := newEngine(t, scoped("hosp-a", 1))
		store.failOn = 2

		matches := e.Retrieve(context.Background(), Request{Query: "cough", TargetScope: "hosp-a", VerificationScope: "hosp-a"})
		require.Len(t, matches, 1)
		assert.Equal(t, "hosp-a-0", matches[0].ID)
	})
}

func TestUpsertRoundTrip(t *testing.T) {
	e, _, emb := newEngine(t, scoped("hosp-b", 3))

	in, err := e.Upsert(context.Background(), InsightInput{
		Text:       "Elevated troponin with atypical chest pain responded to early heparin",
		Category:   "cardiology",
		OwnerScope: "hosp-a",
		Medication: "Heparin",
		LabTest:    "Troponin",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, in.ID)
	assert.Equal(t, embedder.ModePassage, emb.modes[len(emb.modes)-1])

	matches := e.Retrieve(context.Background(), Request{
		Query: in.Text, TargetScope: "hosp-a", VerificationScope: "hosp-a",
	})
	require.NotEmpty(t, matches)
	assert.Equal(t, in.ID, matches[0].ID)
	assert.Equal(t, "Heparin", matches[0].Medication)
	assert.Equal(t, embedder.ModeQuery, emb.modes[len(emb.modes)-1])
}

func TestUpsertErrors(t *testing.T) {
	e, _, emb := newEngine(t, nil)

	_, err := e.Upsert(context.Background(), InsightInput{Text: "x"})
	assert.ErrorIs(t, err, types.ErrEmptyScope)

	emb.err = errors.New("down")
	_, err = e.Upsert(context.Background(), InsightInput{Text: "x", OwnerScope: "hosp-a"})
	assert.ErrorIs(t, err, ErrEmbeddingUnavailable)
}

func TestPassageText(t *testing.T) {
	tests := []struct {
		name string
		in   types.Insight
		want string
	}{
		{
			name: "all fields",
			in:   types.Insight{Text: "Check ferritin", Category: "hematology", Medication: "Iron", LabTest: "Ferritin"},
			want: "Check ferritin [Category: hematology] [Medication: Iron] [Lab Test: Ferritin]",
		},
		{
			name: "no restricted fields",
			in:   types.Insight{Text: "Rest and fluids", Category: "general"},
			want: "Rest and fluids [Category: general]",
		},
		{
			name: "lab only",
			in:   types.Insight{Text: "Order panel", Category: "renal", LabTest: "BMP"},
			want: "Order panel [Category: renal] [Lab Test: BMP]",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PassageText(&tt.in))
		})
	}
}
