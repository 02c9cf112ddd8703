package services

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/ersonp/forklore-core/internal/domain/entities"
	"github.com/ersonp/forklore-core/internal/domain/ports"
)

// SnapshotIndexer receives snapshots after they are stored.
type SnapshotIndexer interface {
	Index(ctx context.Context, entry entities.WikiEntry, snapshot entities.WikiSnapshot) error
}

// EntryInput describes a new wiki entry and an optional first snapshot.
type EntryInput struct {
	BranchID        string
	Name            string
	FirstAppearance *int
	ImageURL        string
	HiddenNote      string
	Content         string
	ValidFrom       int
	TagIDs          []string
}

// SnapshotInput describes a new revision of an entry.
type SnapshotInput struct {
	Content          string
	ValidFromChapter int
	Contributor      entities.ContributorKind
}

// TagInput describes a new tag definition.
type TagInput struct {
	Name         string
	Color        string
	Description  string
	DisplayOrder int
}

// WikiService authors wiki entries and their append-only snapshots.
type WikiService struct {
	store      ports.RelationalDB
	visibility *VisibilityService
	indexer    SnapshotIndexer
}

// NewWikiService creates a new WikiService. indexer may be nil.
func NewWikiService(store ports.RelationalDB, visibility *VisibilityService, indexer SnapshotIndexer) *WikiService {
	return &WikiService{
		store:      store,
		visibility: visibility,
		indexer:    indexer,
	}
}

// CreateEntry creates an entry in a branch the actor wrote. When Content is
// set, it becomes the first snapshot at ValidFrom.
func (s *WikiService) CreateEntry(ctx context.Context, actorID string, in EntryInput) (*entities.WikiEntry, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: entry name is required", entities.ErrInvalidInput)
	}
	if in.FirstAppearance != nil && *in.FirstAppearance < 0 {
		return nil, fmt.Errorf("%w: first appearance must not be negative", entities.ErrInvalidInput)
	}
	if in.ValidFrom < 0 {
		return nil, fmt.Errorf("%w: valid-from chapter must not be negative", entities.ErrInvalidInput)
	}
	if _, err := s.authoredBranch(ctx, actorID, in.BranchID); err != nil {
		return nil, err
	}

	now := timeNow()
	entry := &entities.WikiEntry{
		ID:              generateUUID(),
		BranchID:        in.BranchID,
		Name:            name,
		FirstAppearance: in.FirstAppearance,
		ImageURL:        strings.TrimSpace(in.ImageURL),
		HiddenNote:      in.HiddenNote,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	var initial *entities.WikiSnapshot
	if strings.TrimSpace(in.Content) != "" {
		initial = &entities.WikiSnapshot{
			ID:               generateUUID(),
			EntryID:          entry.ID,
			Content:          in.Content,
			ValidFromChapter: in.ValidFrom,
			Contributor:      entities.ContributorUser,
			CreatedAt:        now,
		}
	}

	if err := s.store.CreateEntry(ctx, entry, initial, dedupe(in.TagIDs)); err != nil {
		return nil, fmt.Errorf("creating entry: %w", err)
	}

	audit(ctx, s.store, entities.AuditEntryCreated, actorID, entry.ID, map[string]any{
		"branch_id": entry.BranchID,
		"name":      entry.Name,
	})
	if initial != nil {
		s.index(ctx, *entry, *initial)
	}

	return s.findEntry(ctx, entry.ID)
}

// AppendSnapshot adds a revision that becomes current at ValidFromChapter.
// Existing snapshots are never changed; a second snapshot for the same
// chapter is rejected with ErrDuplicateSnapshot.
func (s *WikiService) AppendSnapshot(ctx context.Context, actorID, entryID string, in SnapshotInput) (*entities.WikiSnapshot, error) {
	if strings.TrimSpace(in.Content) == "" {
		return nil, fmt.Errorf("%w: content is required", entities.ErrInvalidInput)
	}
	if in.ValidFromChapter < 0 {
		return nil, fmt.Errorf("%w: valid-from chapter must not be negative", entities.ErrInvalidInput)
	}
	contributor := in.Contributor
	if contributor == "" {
		contributor = entities.ContributorUser
	}
	if !contributor.IsValid() {
		return nil, fmt.Errorf("%w: unknown contributor %q", entities.ErrInvalidInput, contributor)
	}

	entry, err := s.findEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if _, err := s.authoredBranch(ctx, actorID, entry.BranchID); err != nil {
		return nil, err
	}

	snapshot := &entities.WikiSnapshot{
		ID:               generateUUID(),
		EntryID:          entry.ID,
		Content:          in.Content,
		ValidFromChapter: in.ValidFromChapter,
		Contributor:      contributor,
		CreatedAt:        timeNow(),
	}
	if err := s.store.AppendSnapshot(ctx, snapshot); err != nil {
		return nil, fmt.Errorf("appending snapshot: %w", err)
	}
	s.visibility.Invalidate(entry.ID)

	audit(ctx, s.store, entities.AuditSnapshotAppended, actorID, entry.ID, map[string]any{
		"snapshot_id": snapshot.ID,
		"valid_from":  snapshot.ValidFromChapter,
		"contributor": string(snapshot.Contributor),
	})
	s.index(ctx, *entry, *snapshot)

	return snapshot, nil
}

// History returns the revisions a reader may see, oldest first. With known
// progress only revisions valid by the reader's chapter are included.
func (s *WikiService) History(ctx context.Context, entryID string, progress entities.ReaderProgress) ([]entities.WikiSnapshot, error) {
	entry, err := s.findEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	snapshots, err := s.visibility.Snapshots(ctx, entry.ID)
	if err != nil {
		return nil, err
	}
	if !progress.IsKnown() {
		return slices.Clone(snapshots), nil
	}
	if !entry.AppearsBy(progress.Chapter) {
		return []entities.WikiSnapshot{}, nil
	}
	return slices.Clone(snapshotsUpTo(snapshots, progress.Chapter)), nil
}

// CreateTag defines a tag in a branch the actor wrote.
func (s *WikiService) CreateTag(ctx context.Context, actorID, branchID string, in TagInput) (*entities.TagDefinition, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: tag name is required", entities.ErrInvalidInput)
	}
	if _, err := s.authoredBranch(ctx, actorID, branchID); err != nil {
		return nil, err
	}

	tag := &entities.TagDefinition{
		ID:           generateUUID(),
		BranchID:     branchID,
		Name:         name,
		Color:        strings.TrimSpace(in.Color),
		Description:  strings.TrimSpace(in.Description),
		DisplayOrder: in.DisplayOrder,
		CreatedAt:    timeNow(),
	}
	if err := s.store.CreateTag(ctx, tag); err != nil {
		return nil, fmt.Errorf("creating tag: %w", err)
	}
	return tag, nil
}

// ListTags lists a branch's tags.
func (s *WikiService) ListTags(ctx context.Context, branchID string) ([]entities.TagDefinition, error) {
	tags, err := s.store.ListTags(ctx, branchID)
	if err != nil {
		return nil, fmt.Errorf("listing tags: %w", err)
	}
	return tags, nil
}

// SetTags replaces an entry's tags. Every tag must belong to the entry's branch.
func (s *WikiService) SetTags(ctx context.Context, actorID, entryID string, tagIDs []string) (*entities.WikiEntry, error) {
	entry, err := s.findEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if _, err := s.authoredBranch(ctx, actorID, entry.BranchID); err != nil {
		return nil, err
	}
	if err := s.store.SetEntryTags(ctx, entry.ID, dedupe(tagIDs)); err != nil {
		return nil, fmt.Errorf("tagging entry: %w", err)
	}
	return s.findEntry(ctx, entry.ID)
}

// index hands a snapshot to the search indexer. Failures are logged; the
// snapshot is already stored and search is best effort.
func (s *WikiService) index(ctx context.Context, entry entities.WikiEntry, snapshot entities.WikiSnapshot) {
	if s.indexer == nil {
		return
	}
	if err := s.indexer.Index(ctx, entry, snapshot); err != nil {
		slog.WarnContext(ctx, "indexing snapshot", "entry_id", entry.ID, "snapshot_id", snapshot.ID, "error", err)
	}
}

func (s *WikiService) findEntry(ctx context.Context, entryID string) (*entities.WikiEntry, error) {
	entry, err := s.store.FindEntry(ctx, entryID)
	if err != nil {
		return nil, fmt.Errorf("finding entry: %w", err)
	}
	if entry == nil {
		return nil, entities.ErrEntryNotFound
	}
	return entry, nil
}

func (s *WikiService) authoredBranch(ctx context.Context, actorID, branchID string) (*entities.Branch, error) {
	branch, err := s.store.FindBranch(ctx, branchID)
	if err != nil {
		return nil, fmt.Errorf("finding branch: %w", err)
	}
	if branch == nil || branch.IsDeleted() {
		return nil, entities.ErrBranchNotFound
	}
	if actorID == "" || branch.AuthorID != actorID {
		return nil, entities.ErrNotAuthor
	}
	return branch, nil
}

// dedupe drops repeated IDs, keeping the first occurrence.
func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
