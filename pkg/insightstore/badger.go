package insightstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/soundprediction/medinsight/pkg/types"
	"github.com/soundprediction/medinsight/pkg/utils"
	"github.com/vmihailenco/msgpack/v5"
)

const insightPrefix = "insight:"

// BadgerStore persists insights in an embedded badger database. Records are
// msgpack encoded; queries scan the prefix and rank by cosine similarity.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore opens (or creates) a store in dir. An empty dir opens an
// in-memory database.
func NewBadgerStore(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger at %q: %w", dir, err)
	}
	return &BadgerStore{db: db}, nil
}

func (b *BadgerStore) Initialize(ctx context.Context) error { return nil }

func (b *BadgerStore) Upsert(ctx context.Context, insight *types.Insight) error {
	if err := insight.Validate(); err != nil {
		return err
	}
	data, err := msgpack.Marshal(insight)
	if err != nil {
		return fmt.Errorf("failed to encode insight %s: %w", insight.ID, err)
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(insightKey(insight.ID), data)
	})
}

// Get loads one insight by ID.
func (b *BadgerStore) Get(ctx context.Context, id string) (*types.Insight, error) {
	var in types.Insight
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(insightKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return msgpack.Unmarshal(val, &in)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("insight %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &in, nil
}

func (b *BadgerStore) Query(ctx context.Context, vector []float32, topK int, filter Filter) ([]Hit, error) {
	if topK <= 0 {
		return nil, types.ErrInvalidLimit
	}

	var candidates []utils.ScoredItem[types.Insight]
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(insightPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var in types.Insight
			if err := it.Item().Value(func(val []byte) error {
				return msgpack.Unmarshal(val, &in)
			}); err != nil {
				return fmt.Errorf("failed to decode %s: %w", it.Item().Key(), err)
			}
			if !filter.Matches(&in) {
				continue
			}
			candidates = append(candidates, utils.ScoredItem[types.Insight]{
				Item:  in,
				Score: utils.CosineSimilarity(vector, in.Vector),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return toHits(utils.TopKByScore(candidates, topK)), nil
}

func (b *BadgerStore) Close() error {
	return b.db.Close()
}

func insightKey(id string) []byte {
	return []byte(insightPrefix + id)
}
