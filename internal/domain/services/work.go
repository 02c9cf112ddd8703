package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ersonp/forklore-core/internal/domain/entities"
	"github.com/ersonp/forklore-core/internal/domain/ports"
)

// MainBranchName is the name given to every work's root branch.
const MainBranchName = "main"

// WorkService manages works, chapter publication and reading progress.
type WorkService struct {
	store ports.RelationalDB
}

// NewWorkService creates a new WorkService.
func NewWorkService(store ports.RelationalDB) *WorkService {
	return &WorkService{store: store}
}

// Create creates a work together with its MAIN branch.
func (s *WorkService) Create(ctx context.Context, authorID, title string) (*entities.Work, *entities.Branch, error) {
	title = strings.TrimSpace(title)
	if authorID == "" {
		return nil, nil, fmt.Errorf("%w: author is required", entities.ErrInvalidInput)
	}
	if title == "" {
		return nil, nil, fmt.Errorf("%w: title is required", entities.ErrInvalidInput)
	}

	now := timeNow()
	work := &entities.Work{
		ID:             generateUUID(),
		Title:          title,
		AuthorID:       authorID,
		BranchCount:    1,
		AllowBranching: true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	main := &entities.Branch{
		ID:            generateUUID(),
		WorkID:        work.ID,
		Kind:          entities.BranchMain,
		CanonStatus:   entities.CanonMerged,
		Visibility:    entities.VisibilityPublic,
		Name:          MainBranchName,
		AuthorID:      authorID,
		VoteThreshold: 1,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.store.CreateWork(ctx, work, main); err != nil {
		return nil, nil, fmt.Errorf("creating work: %w", err)
	}

	audit(ctx, s.store, entities.AuditWorkCreated, authorID, work.ID, map[string]any{
		"main_branch_id": main.ID,
	})
	slog.InfoContext(ctx, "work created", "work_id", work.ID, "main_branch_id", main.ID)
	return work, main, nil
}

// SetAllowBranching opens or closes a work to new forks. Existing branches
// are untouched. Only the work's author may change it.
func (s *WorkService) SetAllowBranching(ctx context.Context, actorID, workID string, allow bool) (*entities.Work, error) {
	work, err := s.Get(ctx, workID)
	if err != nil {
		return nil, err
	}
	if actorID == "" || work.AuthorID != actorID {
		return nil, entities.ErrNotAuthor
	}

	if err := s.store.SetAllowBranching(ctx, workID, allow); err != nil {
		return nil, fmt.Errorf("setting allow branching: %w", err)
	}

	audit(ctx, s.store, entities.AuditWorkBranching, actorID, workID, map[string]any{
		"allow_branching": allow,
	})
	slog.InfoContext(ctx, "work branching changed", "work_id", workID, "allow_branching", allow)
	return s.Get(ctx, workID)
}

// Get returns a work.
func (s *WorkService) Get(ctx context.Context, workID string) (*entities.Work, error) {
	work, err := s.store.FindWork(ctx, workID)
	if err != nil {
		return nil, fmt.Errorf("finding work: %w", err)
	}
	if work == nil {
		return nil, entities.ErrWorkNotFound
	}
	return work, nil
}

// PublishChapter appends one chapter to a branch and returns the new count.
// Only the branch author may publish.
func (s *WorkService) PublishChapter(ctx context.Context, actorID, branchID string) (int, error) {
	branch, err := s.store.FindBranch(ctx, branchID)
	if err != nil {
		return 0, fmt.Errorf("finding branch: %w", err)
	}
	if branch == nil || branch.IsDeleted() {
		return 0, entities.ErrBranchNotFound
	}
	if actorID == "" || branch.AuthorID != actorID {
		return 0, entities.ErrNotAuthor
	}

	count, err := s.store.IncrementChapterCount(ctx, branch.ID)
	if err != nil {
		return 0, fmt.Errorf("publishing chapter: %w", err)
	}

	audit(ctx, s.store, entities.AuditChapterPublished, actorID, branch.ID, map[string]any{
		"chapter": count,
	})
	return count, nil
}

// RecordProgress raises the reader's progress in a work to chapter.
func (s *WorkService) RecordProgress(ctx context.Context, userID, workID string, chapter int) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	if chapter < 0 {
		return fmt.Errorf("%w: chapter must not be negative", entities.ErrInvalidInput)
	}
	if _, err := s.Get(ctx, workID); err != nil {
		return err
	}
	if err := s.store.RecordProgress(ctx, userID, workID, chapter); err != nil {
		return fmt.Errorf("recording progress: %w", err)
	}
	return nil
}
