package ports

import (
	"context"

	"github.com/ersonp/forklore-core/internal/domain/entities"
)

// IndexedSnapshot is a snapshot prepared for semantic search.
type IndexedSnapshot struct {
	Snapshot  entities.WikiSnapshot
	BranchID  string
	EntryName string
	Embedding []float32
}

// SearchHit is one semantic search match.
type SearchHit struct {
	SnapshotID       string  `json:"snapshot_id"`
	EntryID          string  `json:"entry_id"`
	BranchID         string  `json:"branch_id"`
	ValidFromChapter int     `json:"valid_from_chapter"`
	Score            float32 `json:"score"`
}

// SearchQuery restricts a semantic search. A nil MaxValidFrom searches all
// snapshots; otherwise only snapshots valid at or before it are considered.
type SearchQuery struct {
	BranchIDs    []string
	MaxValidFrom *int
	Limit        int
}

// WikiIndex defines the interface for the snapshot vector index.
type WikiIndex interface {
	// Upsert stores snapshots with their embeddings.
	Upsert(ctx context.Context, snapshots []IndexedSnapshot) error

	// Search returns snapshots similar to embedding that satisfy query.
	Search(ctx context.Context, embedding []float32, query SearchQuery) ([]SearchHit, error)

	// DeleteEntry removes all indexed snapshots of an entry.
	DeleteEntry(ctx context.Context, entryID string) error
}
