package mocks

import (
	"context"
	"sync"

	"github.com/ersonp/forklore-core/internal/domain/ports"
)

// WikiIndex is a mock implementation of ports.WikiIndex.
type WikiIndex struct {
	// Hits is returned by Search after applying the query's filters.
	Hits []ports.SearchHit
	Err  error

	mu sync.Mutex
	// Call tracking
	Upserted        []ports.IndexedSnapshot
	DeletedEntries  []string
	LastSearchQuery ports.SearchQuery
}

// Upsert records the snapshots.
func (m *WikiIndex) Upsert(ctx context.Context, snapshots []ports.IndexedSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Upserted = append(m.Upserted, snapshots...)
	return nil
}

// Search returns configured hits matching the query's branch and chapter filters.
func (m *WikiIndex) Search(ctx context.Context, embedding []float32, query ports.SearchQuery) ([]ports.SearchHit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastSearchQuery = query
	if m.Err != nil {
		return nil, m.Err
	}

	branches := make(map[string]bool, len(query.BranchIDs))
	for _, id := range query.BranchIDs {
		branches[id] = true
	}

	var hits []ports.SearchHit
	for _, h := range m.Hits {
		if len(branches) > 0 && !branches[h.BranchID] {
			continue
		}
		if query.MaxValidFrom != nil && h.ValidFromChapter > *query.MaxValidFrom {
			continue
		}
		hits = append(hits, h)
		if query.Limit > 0 && len(hits) == query.Limit {
			break
		}
	}
	return hits, nil
}

// DeleteEntry records the deletion.
func (m *WikiIndex) DeleteEntry(ctx context.Context, entryID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.DeletedEntries = append(m.DeletedEntries, entryID)
	return nil
}
