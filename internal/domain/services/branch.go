package services

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"time"

	"github.com/ersonp/forklore-core/internal/domain/entities"
	"github.com/ersonp/forklore-core/internal/domain/ports"
)

// Defaults used when BranchSettings leaves a field zero.
const (
	DefaultVoteThreshold   = 100
	DefaultForkDedupWindow = 10 * time.Second
)

// BranchSettings tunes branch creation.
type BranchSettings struct {
	DefaultVoteThreshold int
	ForkDedupWindow      time.Duration
}

// BranchCreateInput describes a new fork.
type BranchCreateInput struct {
	ParentID         string
	ForkPointChapter int
	Kind             entities.BranchKind
	Name             string
	Description      string
	// VoteThreshold overrides the default when positive.
	VoteThreshold int
}

// BranchService manages the fork graph of each work.
type BranchService struct {
	store    ports.RelationalDB
	settings BranchSettings
	metrics  ports.Metrics
}

// NewBranchService creates a new BranchService.
func NewBranchService(store ports.RelationalDB, settings BranchSettings, metrics ports.Metrics) *BranchService {
	if settings.DefaultVoteThreshold <= 0 {
		settings.DefaultVoteThreshold = DefaultVoteThreshold
	}
	if settings.ForkDedupWindow <= 0 {
		settings.ForkDedupWindow = DefaultForkDedupWindow
	}
	return &BranchService{
		store:    store,
		settings: settings,
		metrics:  metricsOrNop(metrics),
	}
}

// Create forks a new NON_CANON branch from a parent at a chapter offset.
// Chapters are numbered on one timeline shared with the ancestors, so the
// fork starts with ForkPointChapter chapters and its first own chapter is
// ForkPointChapter+1. The parent and fork point are checked here for a fast
// answer and again by the store inside the insert transaction.
func (s *BranchService) Create(ctx context.Context, actorID string, in BranchCreateInput) (*entities.Branch, error) {
	if actorID == "" {
		return nil, fmt.Errorf("%w: author is required", entities.ErrInvalidInput)
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", entities.ErrInvalidInput)
	}
	if !in.Kind.Forkable() {
		return nil, fmt.Errorf("%w: %q", entities.ErrInvalidKind, in.Kind)
	}
	if in.VoteThreshold < 0 {
		return nil, fmt.Errorf("%w: vote threshold must be positive", entities.ErrInvalidInput)
	}

	parent, err := s.store.FindBranch(ctx, in.ParentID)
	if err != nil {
		return nil, fmt.Errorf("finding parent branch: %w", err)
	}
	if parent == nil || parent.IsDeleted() {
		s.metrics.ForkRejected("parent_not_found")
		return nil, entities.ErrParentNotFound
	}
	work, err := s.store.FindWork(ctx, parent.WorkID)
	if err != nil {
		return nil, fmt.Errorf("finding work: %w", err)
	}
	if work == nil {
		return nil, entities.ErrWorkNotFound
	}
	if !work.AllowBranching {
		s.metrics.ForkRejected("branching_disabled")
		return nil, entities.ErrBranchingDisabled
	}
	if in.ForkPointChapter < 1 || in.ForkPointChapter > parent.ChapterCount {
		s.metrics.ForkRejected("invalid_fork_point")
		return nil, fmt.Errorf("%w: chapter %d is outside 1..%d", entities.ErrInvalidForkPoint, in.ForkPointChapter, parent.ChapterCount)
	}

	threshold := in.VoteThreshold
	if threshold == 0 {
		threshold = s.settings.DefaultVoteThreshold
	}

	now := timeNow()
	parentID := parent.ID
	forkPoint := in.ForkPointChapter
	branch := &entities.Branch{
		ID:               generateUUID(),
		WorkID:           parent.WorkID,
		ParentID:         &parentID,
		ForkPointChapter: &forkPoint,
		Kind:             in.Kind,
		CanonStatus:      entities.CanonNonCanon,
		Visibility:       entities.VisibilityPrivate,
		Name:             name,
		Description:      strings.TrimSpace(in.Description),
		AuthorID:         actorID,
		VoteThreshold:    threshold,
		ChapterCount:     forkPoint,
		Version:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.store.CreateBranch(ctx, branch, now.Add(-s.settings.ForkDedupWindow)); err != nil {
		switch {
		case errors.Is(err, entities.ErrConcurrentForkConflict):
			s.metrics.ForkRejected("duplicate")
		case errors.Is(err, entities.ErrInvalidForkPoint):
			s.metrics.ForkRejected("invalid_fork_point")
		case errors.Is(err, entities.ErrBranchingDisabled):
			s.metrics.ForkRejected("branching_disabled")
		case errors.Is(err, entities.ErrParentNotFound):
			s.metrics.ForkRejected("parent_not_found")
		}
		return nil, fmt.Errorf("creating branch: %w", err)
	}

	s.metrics.BranchCreated(branch.Kind)
	audit(ctx, s.store, entities.AuditBranchCreated, actorID, branch.ID, map[string]any{
		"parent_id":  parentID,
		"fork_point": forkPoint,
		"kind":       string(branch.Kind),
	})
	slog.InfoContext(ctx, "branch created",
		"branch_id", branch.ID, "work_id", branch.WorkID, "parent_id", parentID, "fork_point", forkPoint)

	return branch, nil
}

// List returns a lazy sequence of a work's live branches. Ranging over the
// sequence again re-runs the query.
func (s *BranchService) List(ctx context.Context, workID string, filter entities.BranchFilter) (iter.Seq2[entities.Branch, error], error) {
	if err := validateFilter(filter); err != nil {
		return nil, err
	}
	work, err := s.store.FindWork(ctx, workID)
	if err != nil {
		return nil, fmt.Errorf("finding work: %w", err)
	}
	if work == nil {
		return nil, entities.ErrWorkNotFound
	}
	return s.store.ListBranches(ctx, workID, filter), nil
}

func validateFilter(filter entities.BranchFilter) error {
	if filter.Kind != "" && !filter.Kind.IsValid() {
		return fmt.Errorf("%w: %q", entities.ErrInvalidKind, filter.Kind)
	}
	if filter.CanonStatus != "" && !filter.CanonStatus.IsValid() {
		return fmt.Errorf("%w: unknown canon status %q", entities.ErrInvalidInput, filter.CanonStatus)
	}
	if filter.Visibility != "" && !filter.Visibility.IsValid() {
		return fmt.Errorf("%w: unknown visibility %q", entities.ErrInvalidInput, filter.Visibility)
	}
	if filter.Sort != "" && !filter.Sort.IsValid() {
		return fmt.Errorf("%w: unknown sort %q", entities.ErrInvalidInput, filter.Sort)
	}
	if filter.Limit < 0 {
		return fmt.Errorf("%w: limit must not be negative", entities.ErrInvalidInput)
	}
	return nil
}

// Get returns a live branch.
func (s *BranchService) Get(ctx context.Context, branchID string) (*entities.Branch, error) {
	branch, err := s.store.FindBranch(ctx, branchID)
	if err != nil {
		return nil, fmt.Errorf("finding branch: %w", err)
	}
	if branch == nil || branch.IsDeleted() {
		return nil, entities.ErrBranchNotFound
	}
	return branch, nil
}

// MainBranch returns the root branch of a work.
func (s *BranchService) MainBranch(ctx context.Context, workID string) (*entities.Branch, error) {
	branch, err := s.store.FindMainBranch(ctx, workID)
	if err != nil {
		return nil, fmt.Errorf("finding main branch: %w", err)
	}
	if branch == nil {
		return nil, entities.ErrWorkNotFound
	}
	return branch, nil
}

// Ancestry returns the chain from branchID up to the work's MAIN branch,
// requested branch first. Each ancestor is bounded by the smallest fork
// point among the chain members below it.
func (s *BranchService) Ancestry(ctx context.Context, branchID string) ([]entities.AncestryLink, error) {
	return loadAncestry(ctx, s.store, branchID)
}

func loadAncestry(ctx context.Context, store ports.BranchStore, branchID string) ([]entities.AncestryLink, error) {
	chain, err := store.FindAncestry(ctx, branchID)
	if err != nil {
		return nil, fmt.Errorf("finding ancestry: %w", err)
	}
	if len(chain) == 0 || chain[0].IsDeleted() {
		return nil, entities.ErrBranchNotFound
	}
	return BuildAncestry(chain), nil
}

// BuildAncestry turns a branch chain ordered child to root into links.
// An ancestor is inherited only up to the earliest fork point below it: a
// fork at chapter 5 of a branch that left MAIN at chapter 12 leaves MAIN at
// chapter 5 too.
func BuildAncestry(chain []entities.Branch) []entities.AncestryLink {
	links := make([]entities.AncestryLink, len(chain))
	for i, b := range chain {
		links[i] = entities.AncestryLink{Branch: b}
		if i == 0 {
			continue
		}
		upTo := chain[i-1].ForkPoint()
		if links[i-1].Bounded {
			upTo = min(upTo, links[i-1].InheritedUpTo)
		}
		links[i].Bounded = true
		links[i].InheritedUpTo = upTo
	}
	return links
}

// BranchUpdateInput carries author edits. Nil fields are left unchanged.
type BranchUpdateInput struct {
	Name            *string
	Description     *string
	ExpectedVersion *int
}

// Update edits a branch's name or description. Only the branch author may
// edit; a stale ExpectedVersion yields ErrVersionConflict.
func (s *BranchService) Update(ctx context.Context, actorID, branchID string, in BranchUpdateInput) (*entities.Branch, error) {
	branch, err := s.authoredBranch(ctx, actorID, branchID)
	if err != nil {
		return nil, err
	}

	update := entities.BranchUpdate{ExpectedVersion: in.ExpectedVersion}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name must not be empty", entities.ErrInvalidInput)
		}
		update.Name = &name
	}
	if in.Description != nil {
		description := strings.TrimSpace(*in.Description)
		update.Description = &description
	}

	updated, err := s.store.UpdateBranch(ctx, branch.ID, update)
	if err != nil {
		return nil, fmt.Errorf("updating branch: %w", err)
	}

	audit(ctx, s.store, entities.AuditBranchUpdated, actorID, branch.ID, map[string]any{
		"version": updated.Version,
	})
	return updated, nil
}

// SetVisibility changes who can discover a branch. The MAIN branch is
// always public.
func (s *BranchService) SetVisibility(ctx context.Context, actorID, branchID string, visibility entities.Visibility) (*entities.Branch, error) {
	if !visibility.IsValid() {
		return nil, fmt.Errorf("%w: unknown visibility %q", entities.ErrInvalidInput, visibility)
	}
	branch, err := s.authoredBranch(ctx, actorID, branchID)
	if err != nil {
		return nil, err
	}
	if branch.IsRoot() {
		return nil, entities.ErrMainBranchImmutable
	}
	if visibility == entities.VisibilityLinked && branch.CanonStatus != entities.CanonMerged {
		return nil, fmt.Errorf("%w: only merged branches are linked; request a link instead", entities.ErrInvalidInput)
	}

	if err := s.store.SetBranchVisibility(ctx, branch.ID, visibility); err != nil {
		return nil, fmt.Errorf("setting visibility: %w", err)
	}

	audit(ctx, s.store, entities.AuditBranchVisibility, actorID, branch.ID, map[string]any{
		"from": string(branch.Visibility),
		"to":   string(visibility),
	})
	return s.Get(ctx, branch.ID)
}

// Delete soft-deletes a branch. Its rows stay for history; it disappears
// from listings, votes and forks.
func (s *BranchService) Delete(ctx context.Context, actorID, branchID string) error {
	branch, err := s.authoredBranch(ctx, actorID, branchID)
	if err != nil {
		return err
	}
	if branch.IsRoot() {
		return entities.ErrMainBranchImmutable
	}

	if err := s.store.SoftDeleteBranch(ctx, branch.ID); err != nil {
		return fmt.Errorf("deleting branch: %w", err)
	}

	audit(ctx, s.store, entities.AuditBranchDeleted, actorID, branch.ID, nil)
	slog.InfoContext(ctx, "branch deleted", "branch_id", branch.ID, "actor", actorID)
	return nil
}

// authoredBranch loads a live branch and checks that actorID wrote it.
func (s *BranchService) authoredBranch(ctx context.Context, actorID, branchID string) (*entities.Branch, error) {
	branch, err := s.Get(ctx, branchID)
	if err != nil {
		return nil, err
	}
	if actorID == "" || branch.AuthorID != actorID {
		return nil, entities.ErrNotAuthor
	}
	return branch, nil
}
