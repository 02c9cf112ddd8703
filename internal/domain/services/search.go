package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ersonp/forklore-core/internal/domain/entities"
	"github.com/ersonp/forklore-core/internal/domain/ports"
)

// DefaultSearchLimit is used when a search asks for no particular size.
const DefaultSearchLimit = 10

// searchOverfetch widens the vector query since several hits may collapse
// into one entry.
const searchOverfetch = 3

// SearchResult is an entry matched by a search, resolved for the reader.
type SearchResult struct {
	EntryView
	Score float32 `json:"score"`
}

// SearchService indexes snapshots for semantic search and answers queries
// without leaking content past the reader's progress.
type SearchService struct {
	index      ports.WikiIndex
	embedder   ports.Embedder
	store      ports.RelationalDB
	visibility *VisibilityService
}

// NewSearchService creates a new SearchService.
func NewSearchService(index ports.WikiIndex, embedder ports.Embedder, store ports.RelationalDB, visibility *VisibilityService) *SearchService {
	return &SearchService{
		index:      index,
		embedder:   embedder,
		store:      store,
		visibility: visibility,
	}
}

// Index embeds one snapshot and stores it in the index.
func (s *SearchService) Index(ctx context.Context, entry entities.WikiEntry, snapshot entities.WikiSnapshot) error {
	embedding, err := s.embedder.Embed(ctx, searchText(entry, snapshot))
	if err != nil {
		return fmt.Errorf("embedding snapshot: %w", err)
	}
	return s.index.Upsert(ctx, []ports.IndexedSnapshot{{
		Snapshot:  snapshot,
		BranchID:  entry.BranchID,
		EntryName: entry.Name,
		Embedding: embedding,
	}})
}

// Reindex replaces everything indexed for an entry with its current
// snapshots. Returns the number of snapshots indexed.
func (s *SearchService) Reindex(ctx context.Context, entryID string) (int, error) {
	entry, err := s.store.FindEntry(ctx, entryID)
	if err != nil {
		return 0, fmt.Errorf("finding entry: %w", err)
	}
	if entry == nil {
		return 0, entities.ErrEntryNotFound
	}
	snapshots, err := s.store.ListSnapshots(ctx, entry.ID)
	if err != nil {
		return 0, fmt.Errorf("listing snapshots: %w", err)
	}

	if err := s.index.DeleteEntry(ctx, entry.ID); err != nil {
		return 0, fmt.Errorf("clearing index: %w", err)
	}
	if len(snapshots) == 0 {
		return 0, nil
	}

	texts := make([]string, len(snapshots))
	for i, snap := range snapshots {
		texts[i] = searchText(*entry, snap)
	}
	embeddings, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embedding snapshots: %w", err)
	}
	if len(embeddings) != len(snapshots) {
		return 0, fmt.Errorf("embedder returned %d vectors for %d snapshots", len(embeddings), len(snapshots))
	}

	indexed := make([]ports.IndexedSnapshot, len(snapshots))
	for i, snap := range snapshots {
		indexed[i] = ports.IndexedSnapshot{
			Snapshot:  snap,
			BranchID:  entry.BranchID,
			EntryName: entry.Name,
			Embedding: embeddings[i],
		}
	}
	if err := s.index.Upsert(ctx, indexed); err != nil {
		return 0, err
	}
	return len(indexed), nil
}

// Search finds entries visible from branchID whose content matches query.
// With known progress, only snapshots valid by the reader's chapter are
// matched; ancestor snapshots only match up to the inherited boundary.
// Every result is re-resolved so it carries the revision current for the
// reader.
func (s *SearchService) Search(ctx context.Context, actorID, branchID, query string, progress entities.ReaderProgress, limit int) ([]SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", entities.ErrInvalidInput)
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	chain, err := loadAncestry(ctx, s.store, branchID)
	if err != nil {
		return nil, err
	}
	branchIDs := make([]string, len(chain))
	links := make(map[string]entities.AncestryLink, len(chain))
	for i, link := range chain {
		branchIDs[i] = link.Branch.ID
		links[link.Branch.ID] = link
	}

	embedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	q := ports.SearchQuery{BranchIDs: branchIDs, Limit: limit * searchOverfetch}
	if progress.IsKnown() {
		chapter := progress.Chapter
		q.MaxValidFrom = &chapter
	}
	hits, err := s.index.Search(ctx, embedding, q)
	if err != nil {
		return nil, fmt.Errorf("searching index: %w", err)
	}

	results := make([]SearchResult, 0, limit)
	seen := make(map[string]bool, len(hits))
	for _, hit := range hits {
		if len(results) == limit {
			break
		}
		// A match on an ancestor revision written after the fork would
		// reveal that the entry changes later, even if not how.
		if !links[hit.BranchID].Covers(hit.ValidFromChapter) {
			continue
		}
		if seen[hit.EntryID] {
			continue
		}
		seen[hit.EntryID] = true

		view, err := s.visibility.ResolveInBranch(ctx, actorID, branchID, hit.EntryID, progress)
		if errors.Is(err, entities.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if view.Resolution.State != ResolutionVisible || view.Spoiler.Gated {
			continue
		}
		results = append(results, SearchResult{EntryView: *view, Score: hit.Score})
	}
	return results, nil
}

func searchText(entry entities.WikiEntry, snapshot entities.WikiSnapshot) string {
	return entry.Name + "\n\n" + snapshot.Content
}
