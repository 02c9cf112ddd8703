// Package qdrant provides a WikiIndex implementation using Qdrant.
package qdrant

import (
	"context"
	"fmt"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/ersonp/forklore-core/internal/domain/ports"
	"github.com/ersonp/forklore-core/internal/infrastructure/config"
)

// Payload keys stored with every snapshot point.
const (
	keyEntryID    = "entry_id"
	keyBranchID   = "branch_id"
	keyValidFrom  = "valid_from"
	keySnapshotID = "snapshot_id"
	keyEntryName  = "entry_name"
	keyCreatedAt  = "created_at"
)

var (
	_ ports.WikiIndex         = (*Repository)(nil)
	_ ports.CollectionManager = (*Repository)(nil)
)

// Repository implements ports.WikiIndex and ports.CollectionManager using
// Qdrant. Each point is one wiki snapshot keyed by the snapshot ID.
type Repository struct {
	client     pb.CollectionsClient
	points     pb.PointsClient
	collection string
	conn       *grpc.ClientConn
}

// NewRepository creates a new Qdrant repository.
func NewRepository(cfg config.QdrantConfig) (*Repository, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("connecting to qdrant: %w", err)
	}

	return &Repository{
		client:     pb.NewCollectionsClient(conn),
		points:     pb.NewPointsClient(conn),
		collection: cfg.Collection,
		conn:       conn,
	}, nil
}

// Close closes the gRPC connection.
func (r *Repository) Close() error {
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

// EnsureCollection creates the collection and its payload indexes if the
// collection doesn't exist.
func (r *Repository) EnsureCollection(ctx context.Context, vectorSize uint64) error {
	_, err := r.client.Get(ctx, &pb.GetCollectionInfoRequest{
		CollectionName: r.collection,
	})
	if err == nil {
		return nil
	}

	_, err = r.client.Create(ctx, &pb.CreateCollection{
		CollectionName: r.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     vectorSize,
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("creating collection: %w", err)
	}

	indexes := map[string]pb.FieldType{
		keyBranchID:  pb.FieldType_FieldTypeKeyword,
		keyEntryID:   pb.FieldType_FieldTypeKeyword,
		keyValidFrom: pb.FieldType_FieldTypeInteger,
	}
	for field, fieldType := range indexes {
		_, err := r.points.CreateFieldIndex(ctx, &pb.CreateFieldIndexCollection{
			CollectionName: r.collection,
			FieldName:      field,
			FieldType:      pb.PtrOf(fieldType),
		})
		if err != nil {
			return fmt.Errorf("creating %s index: %w", field, err)
		}
	}

	return nil
}

// DeleteCollection removes the collection and every indexed snapshot.
func (r *Repository) DeleteCollection(ctx context.Context) error {
	_, err := r.client.Delete(ctx, &pb.DeleteCollection{
		CollectionName: r.collection,
	})
	if err != nil {
		return fmt.Errorf("deleting collection: %w", err)
	}
	return nil
}

// Upsert stores snapshots with their embeddings.
func (r *Repository) Upsert(ctx context.Context, snapshots []ports.IndexedSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	points := make([]*pb.PointStruct, 0, len(snapshots))
	for _, s := range snapshots {
		points = append(points, snapshotToPoint(s))
	}

	_, err := r.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: r.collection,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("upserting points: %w", err)
	}

	return nil
}

// Search performs a semantic search restricted to the query's branches and,
// when set, to snapshots valid at or before MaxValidFrom.
func (r *Repository) Search(ctx context.Context, embedding []float32, query ports.SearchQuery) ([]ports.SearchHit, error) {
	resp, err := r.points.Search(ctx, &pb.SearchPoints{
		CollectionName: r.collection,
		Vector:         embedding,
		Limit:          uint64(query.Limit),
		Filter:         searchFilter(query),
		WithPayload: &pb.WithPayloadSelector{
			SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("searching points: %w", err)
	}

	hits := make([]ports.SearchHit, 0, len(resp.Result))
	for _, point := range resp.Result {
		hits = append(hits, scoredPointToHit(point))
	}
	return hits, nil
}

// DeleteEntry removes all indexed snapshots of an entry.
func (r *Repository) DeleteEntry(ctx context.Context, entryID string) error {
	_, err := r.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: r.collection,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Filter{
				Filter: &pb.Filter{
					Must: []*pb.Condition{keywordCondition(keyEntryID, entryID)},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("deleting points by entry: %w", err)
	}

	return nil
}

// Count returns the number of indexed snapshots.
func (r *Repository) Count(ctx context.Context) (uint64, error) {
	resp, err := r.client.Get(ctx, &pb.GetCollectionInfoRequest{
		CollectionName: r.collection,
	})
	if err != nil {
		return 0, fmt.Errorf("getting collection info: %w", err)
	}

	if resp.Result.PointsCount == nil {
		return 0, nil
	}

	return *resp.Result.PointsCount, nil
}

func snapshotToPoint(s ports.IndexedSnapshot) *pb.PointStruct {
	return &pb.PointStruct{
		Id: &pb.PointId{
			PointIdOptions: &pb.PointId_Uuid{Uuid: s.Snapshot.ID},
		},
		Vectors: &pb.Vectors{
			VectorsOptions: &pb.Vectors_Vector{
				Vector: &pb.Vector{Data: s.Embedding},
			},
		},
		Payload: map[string]*pb.Value{
			keyEntryID:    {Kind: &pb.Value_StringValue{StringValue: s.Snapshot.EntryID}},
			keyBranchID:   {Kind: &pb.Value_StringValue{StringValue: s.BranchID}},
			keyValidFrom:  {Kind: &pb.Value_IntegerValue{IntegerValue: int64(s.Snapshot.ValidFromChapter)}},
			keySnapshotID: {Kind: &pb.Value_StringValue{StringValue: s.Snapshot.ID}},
			keyEntryName:  {Kind: &pb.Value_StringValue{StringValue: s.EntryName}},
			keyCreatedAt:  {Kind: &pb.Value_StringValue{StringValue: s.Snapshot.CreatedAt.Format("2006-01-02T15:04:05Z07:00")}},
		},
	}
}

// searchFilter matches any of the query's branches and caps valid-from.
func searchFilter(query ports.SearchQuery) *pb.Filter {
	filter := &pb.Filter{}
	if len(query.BranchIDs) > 0 {
		filter.Must = append(filter.Must, &pb.Condition{
			ConditionOneOf: &pb.Condition_Field{
				Field: &pb.FieldCondition{
					Key: keyBranchID,
					Match: &pb.Match{
						MatchValue: &pb.Match_Keywords{
							Keywords: &pb.RepeatedStrings{Strings: query.BranchIDs},
						},
					},
				},
			},
		})
	}
	if query.MaxValidFrom != nil {
		filter.Must = append(filter.Must, &pb.Condition{
			ConditionOneOf: &pb.Condition_Field{
				Field: &pb.FieldCondition{
					Key:   keyValidFrom,
					Range: &pb.Range{Lte: pb.PtrOf(float64(*query.MaxValidFrom))},
				},
			},
		})
	}
	return filter
}

func keywordCondition(key, value string) *pb.Condition {
	return &pb.Condition{
		ConditionOneOf: &pb.Condition_Field{
			Field: &pb.FieldCondition{
				Key: key,
				Match: &pb.Match{
					MatchValue: &pb.Match_Keyword{Keyword: value},
				},
			},
		},
	}
}

func scoredPointToHit(point *pb.ScoredPoint) ports.SearchHit {
	payload := point.Payload
	snapshotID := getStringValue(payload, keySnapshotID)
	if snapshotID == "" {
		snapshotID = point.Id.GetUuid()
	}
	return ports.SearchHit{
		SnapshotID:       snapshotID,
		EntryID:          getStringValue(payload, keyEntryID),
		BranchID:         getStringValue(payload, keyBranchID),
		ValidFromChapter: int(getIntValue(payload, keyValidFrom)),
		Score:            point.Score,
	}
}

// Helper functions for payload extraction.
func getStringValue(payload map[string]*pb.Value, key string) string {
	if v, ok := payload[key]; ok {
		return v.GetStringValue()
	}
	return ""
}

func getIntValue(payload map[string]*pb.Value, key string) int64 {
	if v, ok := payload[key]; ok {
		return v.GetIntegerValue()
	}
	return 0
}
