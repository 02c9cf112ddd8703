package handlers

import (
	"context"
	"fmt"

	"github.com/ersonp/forklore-core/internal/domain/entities"
	"github.com/ersonp/forklore-core/internal/domain/services"
)

// SearchHandler handles spoiler-safe wiki queries.
type SearchHandler struct {
	searchService *services.SearchService
	branches      *services.BranchService
	visibility    *services.VisibilityService
}

// NewSearchHandler creates a new search handler.
func NewSearchHandler(searchService *services.SearchService, branches *services.BranchService, visibility *services.VisibilityService) *SearchHandler {
	return &SearchHandler{
		searchService: searchService,
		branches:      branches,
		visibility:    visibility,
	}
}

// SearchResult contains the result of a query.
type SearchResult struct {
	Query    string
	Progress entities.ReaderProgress
	Results  []services.SearchResult
}

// Handle searches branchID's wiki as seen by userID. asOfChapter, when set,
// overrides the reader's recorded progress.
func (h *SearchHandler) Handle(ctx context.Context, userID, branchID, query string, asOfChapter *int, limit int) (*SearchResult, error) {
	branch, err := h.branches.Get(ctx, branchID)
	if err != nil {
		return nil, err
	}

	progress, err := h.visibility.ReaderProgress(ctx, userID, branch.WorkID, asOfChapter)
	if err != nil {
		return nil, err
	}

	results, err := h.searchService.Search(ctx, userID, branch.ID, query, progress, limit)
	if err != nil {
		return nil, fmt.Errorf("searching wiki: %w", err)
	}

	return &SearchResult{
		Query:    query,
		Progress: progress,
		Results:  results,
	}, nil
}
