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

// SnapshotCache memoizes each entry's snapshot list ordered by valid-from.
// Returned slices are shared and must not be modified.
type SnapshotCache interface {
	GetOrLoad(ctx context.Context, entryID string, load func(context.Context) ([]entities.WikiSnapshot, error)) ([]entities.WikiSnapshot, error)
	Invalidate(entryID string)
}

// directLoad is the SnapshotCache used when none is configured.
type directLoad struct{}

func (directLoad) GetOrLoad(ctx context.Context, _ string, load func(context.Context) ([]entities.WikiSnapshot, error)) ([]entities.WikiSnapshot, error) {
	return load(ctx)
}

func (directLoad) Invalidate(string) {}

// EntryView is a wiki entry as one reader may see it.
type EntryView struct {
	Entry      entities.WikiEntry `json:"entry"`
	Resolution Resolution         `json:"resolution"`
	Spoiler    GateDecision       `json:"spoiler"`
}

// VisibilityService resolves wiki content against reader progress and the
// branch lineage.
type VisibilityService struct {
	store    ports.RelationalDB
	progress ports.ProgressSource
	cache    SnapshotCache
}

// NewVisibilityService creates a new VisibilityService. progress and cache
// may be nil.
func NewVisibilityService(store ports.RelationalDB, progress ports.ProgressSource, cache SnapshotCache) *VisibilityService {
	if cache == nil {
		cache = directLoad{}
	}
	return &VisibilityService{
		store:    store,
		progress: progress,
		cache:    cache,
	}
}

// ReaderProgress determines the progress to resolve with. An explicit
// asOfChapter wins; otherwise the reader's recorded progress is looked up.
// A failed lookup degrades to unavailable rather than failing the read.
func (s *VisibilityService) ReaderProgress(ctx context.Context, userID, workID string, asOfChapter *int) (entities.ReaderProgress, error) {
	if asOfChapter != nil {
		if *asOfChapter < 0 {
			return entities.ReaderProgress{}, fmt.Errorf("%w: chapter must not be negative", entities.ErrInvalidInput)
		}
		return entities.KnownProgress(*asOfChapter), nil
	}
	if userID == "" || s.progress == nil {
		return entities.AnonymousProgress(), nil
	}

	progress, err := s.progress.Progress(ctx, userID, workID)
	if err != nil {
		slog.WarnContext(ctx, "reader progress unavailable", "user_id", userID, "work_id", workID, "error", err)
		return entities.UnavailableProgress(), nil
	}
	return progress, nil
}

// EntryWorkID returns the work an entry belongs to, for progress lookups.
func (s *VisibilityService) EntryWorkID(ctx context.Context, entryID string) (string, error) {
	entry, err := s.findEntry(ctx, entryID)
	if err != nil {
		return "", err
	}
	branch, err := s.store.FindBranch(ctx, entry.BranchID)
	if err != nil {
		return "", fmt.Errorf("finding entry branch: %w", err)
	}
	if branch == nil || branch.IsDeleted() {
		return "", entities.ErrEntryNotFound
	}
	return branch.WorkID, nil
}

// Snapshots returns an entry's snapshots ordered by valid-from ascending.
func (s *VisibilityService) Snapshots(ctx context.Context, entryID string) ([]entities.WikiSnapshot, error) {
	snapshots, err := s.cache.GetOrLoad(ctx, entryID, func(ctx context.Context) ([]entities.WikiSnapshot, error) {
		return s.store.ListSnapshots(ctx, entryID)
	})
	if err != nil {
		return nil, fmt.Errorf("loading snapshots: %w", err)
	}
	return snapshots, nil
}

// Invalidate drops cached snapshots of an entry.
func (s *VisibilityService) Invalidate(entryID string) {
	s.cache.Invalidate(entryID)
}

// Resolve returns the entry as seen with progress, ignoring lineage.
func (s *VisibilityService) Resolve(ctx context.Context, actorID, entryID string, progress entities.ReaderProgress) (*EntryView, error) {
	entry, err := s.findEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	branch, err := s.store.FindBranch(ctx, entry.BranchID)
	if err != nil {
		return nil, fmt.Errorf("finding entry branch: %w", err)
	}
	if branch == nil || branch.IsDeleted() {
		return nil, entities.ErrEntryNotFound
	}

	snapshots, err := s.Snapshots(ctx, entry.ID)
	if err != nil {
		return nil, err
	}
	view := buildView(*entry, snapshots, progress)
	stripHiddenNote(&view.Entry, branch, actorID)
	return &view, nil
}

// ResolveInBranch returns the entry as seen by a reader of branchID. The
// entry must belong to the branch, one of its ancestors, or a MERGED branch
// forked from a chain member within the inherited range. Content from an
// ancestor is limited to what existed at the fork point.
func (s *VisibilityService) ResolveInBranch(ctx context.Context, actorID, branchID, entryID string, progress entities.ReaderProgress) (*EntryView, error) {
	entry, err := s.findEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	chain, err := loadAncestry(ctx, s.store, branchID)
	if err != nil {
		return nil, err
	}

	link, owner, err := s.lineageLink(ctx, chain, entry.BranchID)
	if err != nil {
		return nil, err
	}

	snapshots, err := s.Snapshots(ctx, entry.ID)
	if err != nil {
		return nil, err
	}
	view, ok := viewInLink(*entry, snapshots, progress, link)
	if !ok {
		return nil, entities.ErrEntryNotInLineage
	}
	stripHiddenNote(&view.Entry, owner, actorID)
	return &view, nil
}

// ListVisibleEntries lists the entries a reader of branchID may see,
// including those inherited from ancestors. An entry in a descendant hides
// an ancestor's entry of the same name. With known progress, entries whose
// first appearance is still ahead are omitted.
func (s *VisibilityService) ListVisibleEntries(ctx context.Context, actorID, branchID string, progress entities.ReaderProgress, tagID string) ([]EntryView, error) {
	chain, err := loadAncestry(ctx, s.store, branchID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	views := make([]EntryView, 0, 16)
	for _, link := range chain {
		entries, err := s.store.ListEntries(ctx, link.Branch.ID, tagID)
		if err != nil {
			return nil, fmt.Errorf("listing entries of %s: %w", link.Branch.ID, err)
		}

		for _, entry := range entries {
			key := strings.ToLower(entry.Name)
			if seen[key] {
				continue
			}

			snapshots, err := s.Snapshots(ctx, entry.ID)
			if err != nil {
				return nil, err
			}
			view, ok := viewInLink(entry, snapshots, progress, link)
			if !ok {
				continue
			}
			seen[key] = true

			if progress.IsKnown() && !entry.AppearsBy(link.Cap(progress.Chapter)) {
				continue
			}
			stripHiddenNote(&view.Entry, &link.Branch, actorID)
			views = append(views, view)
		}
	}

	slices.SortFunc(views, func(a, b EntryView) int {
		return strings.Compare(a.Entry.Name, b.Entry.Name)
	})
	return views, nil
}

// lineageLink finds the chain link through which entryBranchID is visible.
func (s *VisibilityService) lineageLink(ctx context.Context, chain []entities.AncestryLink, entryBranchID string) (entities.AncestryLink, *entities.Branch, error) {
	for _, link := range chain {
		if link.Branch.ID == entryBranchID {
			return link, &link.Branch, nil
		}
	}

	owner, err := s.store.FindBranch(ctx, entryBranchID)
	if err != nil {
		return entities.AncestryLink{}, nil, fmt.Errorf("finding entry branch: %w", err)
	}
	if owner == nil || owner.IsDeleted() || owner.CanonStatus != entities.CanonMerged || owner.IsRoot() {
		return entities.AncestryLink{}, nil, entities.ErrEntryNotInLineage
	}

	// A merged branch continues its parent's timeline after the fork point.
	for _, link := range chain {
		if link.Branch.ID == *owner.ParentID && link.Covers(owner.ForkPoint()) {
			return entities.AncestryLink{
				Branch:        *owner,
				InheritedUpTo: link.InheritedUpTo,
				Bounded:       link.Bounded,
			}, owner, nil
		}
	}
	return entities.AncestryLink{}, nil, entities.ErrEntryNotInLineage
}

func (s *VisibilityService) findEntry(ctx context.Context, entryID string) (*entities.WikiEntry, error) {
	entry, err := s.store.FindEntry(ctx, entryID)
	if err != nil {
		return nil, fmt.Errorf("finding entry: %w", err)
	}
	if entry == nil {
		return nil, entities.ErrEntryNotFound
	}
	return entry, nil
}

// viewInLink resolves an entry reached through link. It reports false when
// the entry only exists after the link's inherited boundary.
func viewInLink(entry entities.WikiEntry, snapshots []entities.WikiSnapshot, progress entities.ReaderProgress, link entities.AncestryLink) (EntryView, bool) {
	if !link.Bounded {
		return buildView(entry, snapshots, progress), true
	}

	if entry.FirstAppearance != nil && !link.Covers(*entry.FirstAppearance) {
		return EntryView{}, false
	}
	inherited := snapshotsUpTo(snapshots, link.InheritedUpTo)
	if len(snapshots) > 0 && len(inherited) == 0 {
		return EntryView{}, false
	}

	if progress.IsKnown() {
		progress = entities.KnownProgress(link.Cap(progress.Chapter))
	}
	return buildView(entry, inherited, progress), true
}

func buildView(entry entities.WikiEntry, snapshots []entities.WikiSnapshot, progress entities.ReaderProgress) EntryView {
	view := EntryView{
		Entry:      entry,
		Resolution: ResolveSnapshot(entry, snapshots, progress),
		Spoiler:    GateDecision{Gated: false, Reason: GateReached},
	}
	if entry.FirstAppearance != nil {
		view.Spoiler = Gate(*entry.FirstAppearance, progress, false)
	}
	return view
}

// snapshotsUpTo returns the prefix of ordered snapshots valid by chapter.
func snapshotsUpTo(snapshots []entities.WikiSnapshot, chapter int) []entities.WikiSnapshot {
	ordered := orderSnapshots(snapshots)
	for i, snap := range ordered {
		if snap.ValidFromChapter > chapter {
			return ordered[:i]
		}
	}
	return ordered
}

// stripHiddenNote clears the author-only note unless actorID wrote branch.
func stripHiddenNote(entry *entities.WikiEntry, branch *entities.Branch, actorID string) {
	if actorID == "" || branch == nil || branch.AuthorID != actorID {
		entry.HiddenNote = ""
	}
}
