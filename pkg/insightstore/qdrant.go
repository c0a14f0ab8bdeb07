package insightstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	qpb "github.com/qdrant/go-client/qdrant"
	"github.com/soundprediction/medinsight/pkg/types"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Payload keys stored alongside each point.
const (
	payloadID         = "insight_id"
	payloadText       = "text"
	payloadCategory   = "category"
	payloadOwnerScope = "owner_scope"
	payloadMedication = "medication"
	payloadLabTest    = "lab_test"
	payloadCreatedAt  = "created_at"
)

// idNamespace derives stable point UUIDs for insight IDs that are not UUIDs.
var idNamespace = uuid.MustParse("6f1c5c1e-2b55-4c1f-9a65-3f9d3c7a8e10")

// QdrantStore implements Store on a Qdrant collection over gRPC.
type QdrantStore struct {
	conn        *grpc.ClientConn
	points      qpb.PointsClient
	collections qpb.CollectionsClient
	collection  string
	dimensions  int
}

// NewQdrantStore connects to the Qdrant gRPC endpoint at addr (host:port).
func NewQdrantStore(addr, collection string, dimensions int) (*QdrantStore, error) {
	if addr == "" {
		addr = "127.0.0.1:6334"
	}
	if collection == "" {
		collection = "insights"
	}
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to dial qdrant at %s: %w", addr, err)
	}
	s := newQdrantStore(qpb.NewPointsClient(conn), qpb.NewCollectionsClient(conn), collection, dimensions)
	s.conn = conn
	return s, nil
}

func newQdrantStore(points qpb.PointsClient, collections qpb.CollectionsClient, collection string, dimensions int) *QdrantStore {
	if dimensions <= 0 {
		dimensions = 1024
	}
	return &QdrantStore{
		points:      points,
		collections: collections,
		collection:  collection,
		dimensions:  dimensions,
	}
}

// Initialize creates the collection with cosine distance when it is missing.
func (q *QdrantStore) Initialize(ctx context.Context) error {
	exists, err := q.collections.CollectionExists(ctx, &qpb.CollectionExistsRequest{CollectionName: q.collection})
	if err != nil {
		return fmt.Errorf("failed to check collection %s: %w", q.collection, err)
	}
	if exists.GetResult().GetExists() {
		return nil
	}

	_, err = q.collections.Create(ctx, &qpb.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: &qpb.VectorsConfig{
			Config: &qpb.VectorsConfig_Params{
				Params: &qpb.VectorParams{
					Size:     uint64(q.dimensions),
					Distance: qpb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create collection %s: %w", q.collection, err)
	}
	return nil
}

func (q *QdrantStore) Upsert(ctx context.Context, insight *types.Insight) error {
	if err := insight.Validate(); err != nil {
		return err
	}
	wait := true
	_, err := q.points.Upsert(ctx, &qpb.UpsertPoints{
		CollectionName: q.collection,
		Wait:           &wait,
		Points:         []*qpb.PointStruct{pointFromInsight(insight)},
	})
	if err != nil {
		return fmt.Errorf("failed to upsert insight %s: %w", insight.ID, err)
	}
	return nil
}

func (q *QdrantStore) Query(ctx context.Context, vector []float32, topK int, filter Filter) ([]Hit, error) {
	if topK <= 0 {
		return nil, types.ErrInvalidLimit
	}
	resp, err := q.points.Search(ctx, &qpb.SearchPoints{
		CollectionName: q.collection,
		Vector:         vector,
		Filter:         buildQdrantFilter(filter),
		Limit:          uint64(topK),
		WithPayload:    &qpb.WithPayloadSelector{SelectorOptions: &qpb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant search failed: %w", err)
	}

	hits := make([]Hit, 0, len(resp.GetResult()))
	for _, sp := range resp.GetResult() {
		hits = append(hits, Hit{
			Insight: insightFromPayload(sp.GetId(), sp.GetPayload()),
			Score:   float64(sp.GetScore()),
		})
	}
	return hits, nil
}

func (q *QdrantStore) Close() error {
	if q.conn != nil {
		return q.conn.Close()
	}
	return nil
}

// buildQdrantFilter maps Filter to must / must_not keyword conditions.
func buildQdrantFilter(filter Filter) *qpb.Filter {
	var must, mustNot []*qpb.Condition
	if filter.Scope != "" {
		cond := keywordCondition(payloadOwnerScope, filter.Scope)
		if filter.ExcludeScope {
			mustNot = append(mustNot, cond)
		} else {
			must = append(must, cond)
		}
	}
	if filter.Category != "" {
		must = append(must, keywordCondition(payloadCategory, filter.Category))
	}
	if len(must) == 0 && len(mustNot) == 0 {
		return nil
	}
	return &qpb.Filter{Must: must, MustNot: mustNot}
}

func keywordCondition(key, value string) *qpb.Condition {
	return &qpb.Condition{
		ConditionOneOf: &qpb.Condition_Field{
			Field: &qpb.FieldCondition{
				Key: key,
				Match: &qpb.Match{
					MatchValue: &qpb.Match_Keyword{Keyword: value},
				},
			},
		},
	}
}

// pointID returns the insight ID when it is a UUID and a deterministic UUIDv5
// of it otherwise, since Qdrant only accepts UUIDs and integers.
func pointID(id string) string {
	if u, err := uuid.Parse(id); err == nil {
		return u.String()
	}
	return uuid.NewSHA1(idNamespace, []byte(id)).String()
}

func pointFromInsight(in *types.Insight) *qpb.PointStruct {
	createdAt := in.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	return &qpb.PointStruct{
		Id: &qpb.PointId{PointIdOptions: &qpb.PointId_Uuid{Uuid: pointID(in.ID)}},
		Vectors: &qpb.Vectors{
			VectorsOptions: &qpb.Vectors_Vector{
				Vector: &qpb.Vector{Vector: &qpb.Vector_Dense{Dense: &qpb.DenseVector{Data: in.Vector}}},
			},
		},
		Payload: map[string]*qpb.Value{
			payloadID:         stringValue(in.ID),
			payloadText:       stringValue(in.Text),
			payloadCategory:   stringValue(in.Category),
			payloadOwnerScope: stringValue(in.OwnerScope),
			payloadMedication: stringValue(in.Medication),
			payloadLabTest:    stringValue(in.LabTest),
			payloadCreatedAt:  stringValue(createdAt.Format(time.RFC3339)),
		},
	}
}

func insightFromPayload(id *qpb.PointId, payload map[string]*qpb.Value) types.Insight {
	in := types.Insight{
		ID:         payload[payloadID].GetStringValue(),
		Text:       payload[payloadText].GetStringValue(),
		Category:   payload[payloadCategory].GetStringValue(),
		OwnerScope: payload[payloadOwnerScope].GetStringValue(),
		Medication: payload[payloadMedication].GetStringValue(),
		LabTest:    payload[payloadLabTest].GetStringValue(),
	}
	if in.ID == "" {
		in.ID = id.GetUuid()
	}
	if ts, err := time.Parse(time.RFC3339, payload[payloadCreatedAt].GetStringValue()); err == nil {
		in.CreatedAt = ts
	}
	return in
}

func stringValue(s string) *qpb.Value {
	return &qpb.Value{Kind: &qpb.Value_StringValue{StringValue: s}}
}
