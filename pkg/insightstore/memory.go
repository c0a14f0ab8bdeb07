package insightstore

import (
	"context"
	"sync"

	"github.com/soundprediction/medinsight/pkg/types"
	"github.com/soundprediction/medinsight/pkg/utils"
)

// MemoryStore keeps insights in process. It is used for tests and local
// development.
type MemoryStore struct {
	mu       sync.RWMutex
	insights map[string]types.Insight
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{insights: make(map[string]types.Insight)}
}

func (m *MemoryStore) Initialize(ctx context.Context) error { return nil }

func (m *MemoryStore) Upsert(ctx context.Context, insight *types.Insight) error {
	if err := insight.Validate(); err != nil {
		return err
	}
	cp := *insight
	cp.Vector = append([]float32(nil), insight.Vector...)

	m.mu.Lock()
	m.insights[cp.ID] = cp
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Query(ctx context.Context, vector []float32, topK int, filter Filter) ([]Hit, error) {
	if topK <= 0 {
		return nil, types.ErrInvalidLimit
	}

	m.mu.RLock()
	candidates := make([]utils.ScoredItem[types.Insight], 0, len(m.insights))
	for _, in := range m.insights {
		if !filter.Matches(&in) {
			continue
		}
		candidates = append(candidates, utils.ScoredItem[types.Insight]{
			Item:  in,
			Score: utils.CosineSimilarity(vector, in.Vector),
		})
	}
	m.mu.RUnlock()

	return toHits(utils.TopKByScore(candidates, topK)), nil
}

// Len returns the number of stored insights.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.insights)
}

func (m *MemoryStore) Close() error { return nil }

func toHits(items []utils.ScoredItem[types.Insight]) []Hit {
	hits := make([]Hit, len(items))
	for i, it := range items {
		hits[i] = Hit{Insight: it.Item, Score: it.Score}
	}
	return hits
}
