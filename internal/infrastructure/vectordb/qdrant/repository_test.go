package qdrant

import (
	"testing"
	"time"

	pb "github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/forklore-core/internal/domain/entities"
	"github.com/ersonp/forklore-core/internal/domain/ports"
)

func TestSnapshotToPoint(t *testing.T) {
	point := snapshotToPoint(ports.IndexedSnapshot{
		Snapshot: entities.WikiSnapshot{
			ID:               "0d9a6a53-1c1e-4a4e-9a57-6c1f0c0b7d11",
			EntryID:          "entry-1",
			ValidFromChapter: 7,
			CreatedAt:        time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		},
		BranchID:  "branch-1",
		EntryName: "Aria",
		Embedding: []float32{0.5, 0.25},
	})

	assert.Equal(t, "0d9a6a53-1c1e-4a4e-9a57-6c1f0c0b7d11", point.Id.GetUuid())
	assert.Equal(t, []float32{0.5, 0.25}, point.Vectors.GetVector().Data)
	assert.Equal(t, "entry-1", getStringValue(point.Payload, keyEntryID))
	assert.Equal(t, "branch-1", getStringValue(point.Payload, keyBranchID))
	assert.Equal(t, int64(7), getIntValue(point.Payload, keyValidFrom))
	assert.Equal(t, "Aria", getStringValue(point.Payload, keyEntryName))
	assert.Equal(t, "2026-01-02T03:04:05Z", getStringValue(point.Payload, keyCreatedAt))
}

func TestSearchFilter(t *testing.T) {
	t.Run("no restrictions", func(t *testing.T) {
		assert.Empty(t, searchFilter(ports.SearchQuery{Limit: 5}).Must)
	})

	t.Run("branches and chapter cap", func(t *testing.T) {
		maxFrom := 12
		filter := searchFilter(ports.SearchQuery{BranchIDs: []string{"a", "b"}, MaxValidFrom: &maxFrom})
		require.Len(t, filter.Must, 2)

		branches := filter.Must[0].GetField()
		assert.Equal(t, keyBranchID, branches.Key)
		assert.Equal(t, []string{"a", "b"}, branches.Match.GetKeywords().Strings)

		chapter := filter.Must[1].GetField()
		assert.Equal(t, keyValidFrom, chapter.Key)
		require.NotNil(t, chapter.Range.Lte)
		assert.InDelta(t, 12.0, *chapter.Range.Lte, 0)
	})
}

func TestScoredPointToHit(t *testing.T) {
	point := &pb.ScoredPoint{
		Id:    &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: "point-id"}},
		Score: 0.87,
		Payload: map[string]*pb.Value{
			keyEntryID:   {Kind: &pb.Value_StringValue{StringValue: "entry-1"}},
			keyBranchID:  {Kind: &pb.Value_StringValue{StringValue: "branch-1"}},
			keyValidFrom: {Kind: &pb.Value_IntegerValue{IntegerValue: 3}},
		},
	}

	hit := scoredPointToHit(point)
	assert.Equal(t, ports.SearchHit{
		SnapshotID:       "point-id",
		EntryID:          "entry-1",
		BranchID:         "branch-1",
		ValidFromChapter: 3,
		Score:            0.87,
	}, hit)
}
