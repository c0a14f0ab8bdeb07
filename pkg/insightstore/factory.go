package insightstore

import (
	"context"
	"fmt"
)

// NewStore creates the configured backend and initializes it.
//   - memory: in-process, nothing persisted
//   - badger: embedded database in URI (a directory)
//   - postgres: URI is a DSN; UsePgVector selects native vector search
//   - qdrant: URI is the gRPC host:port
func NewStore(ctx context.Context, config Config) (Store, error) {
	var (
		store Store
		err   error
	)
	switch config.Driver {
	case "memory", "":
		store = NewMemoryStore()
	case "badger":
		store, err = NewBadgerStore(config.URI)
	case "postgres":
		if config.URI == "" {
			return nil, fmt.Errorf("connection string is required")
		}
		store, err = NewPostgresStore(config.URI, config.Collection, config.Dimensions, config.UsePgVector, nil)
	case "qdrant":
		store, err = NewQdrantStore(config.URI, config.Collection, config.Dimensions)
	default:
		return nil, fmt.Errorf("%w: %s (supported: memory, badger, postgres, qdrant)", ErrUnknownDriver, config.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := store.Initialize(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to initialize %s store: %w", config.Driver, err)
	}
	return store, nil
}
