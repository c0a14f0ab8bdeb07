package insightstore

import (
	"context"
	"errors"

	"github.com/soundprediction/medinsight/pkg/types"
)

// ErrUnknownDriver is returned by NewStore for an unsupported driver name.
var ErrUnknownDriver = errors.New("unknown insight store driver")

// Store persists insights and answers filtered similarity queries.
type Store interface {
	// Initialize creates any schema or collection the backend needs.
	Initialize(ctx context.Context) error

	// Upsert inserts the insight or replaces the one with the same ID.
	Upsert(ctx context.Context, insight *types.Insight) error

	// Query returns up to topK hits matching filter, highest score first.
	Query(ctx context.Context, vector []float32, topK int, filter Filter) ([]Hit, error)

	// Close releases the backend's resources.
	Close() error
}

// Filter restricts a query by owner scope and category.
//
// With ExcludeScope false only insights owned by Scope match; with it true
// only insights owned by anyone else match. An empty Scope disables the
// scope condition. A non-empty Category must match exactly.
type Filter struct {
	Scope        string
	ExcludeScope bool
	Category     string
}

// Matches reports whether the insight satisfies the filter.
func (f Filter) Matches(in *types.Insight) bool {
	if f.Scope != "" {
		if f.ExcludeScope == (in.OwnerScope == f.Scope) {
			return false
		}
	}
	if f.Category != "" && in.Category != f.Category {
		return false
	}
	return true
}

// Hit is one query result.
type Hit struct {
	Insight types.Insight
	Score   float64
}

// Config selects and configures a backend.
type Config struct {
	// Driver is one of memory, badger, postgres or qdrant.
	Driver string
	// URI is a directory for badger, a DSN for postgres and host:port for qdrant.
	URI string
	// Collection is the qdrant collection or postgres table name.
	Collection string
	// Dimensions is the embedding width used when creating schema.
	Dimensions int
	// UsePgVector selects native pgvector search over in-memory ranking.
	UsePgVector bool
}
