package services

import (
	"slices"
	"sort"

	"github.com/ersonp/forklore-core/internal/domain/entities"
)

// ResolutionState classifies what a reader may see of an entry.
type ResolutionState string

const (
	// ResolutionVisible means Snapshot is the content current for the reader.
	ResolutionVisible ResolutionState = "visible"
	// ResolutionNotYetRevealed means the reader has not reached the entry.
	ResolutionNotYetRevealed ResolutionState = "not_yet_revealed"
	// ResolutionNoContent means the entry has no snapshots at all.
	ResolutionNoContent ResolutionState = "no_content"
)

// Resolution is the snapshot selected for one reader.
type Resolution struct {
	State    ResolutionState        `json:"state"`
	Snapshot *entities.WikiSnapshot `json:"snapshot,omitempty"`
	// Redact is true when excerpts of this entry quoted elsewhere must be
	// hidden: the entry is not yet revealed, or newer revisions exist that
	// the reader has not reached.
	Redact bool `json:"redact"`
	// AsOfChapter is the reader chapter used, nil when progress was unknown.
	AsOfChapter *int `json:"as_of_chapter,omitempty"`
	// Fallback is set when the entry's first appearance is later than every
	// snapshot and the earliest snapshot was returned instead.
	Fallback bool `json:"fallback,omitempty"`
}

// ResolveSnapshot selects the snapshot of entry that is safe to show for
// progress. snapshots may be in any order.
//
// Unknown progress yields the latest snapshot unredacted. Known progress k
// yields the snapshot with the greatest valid-from chapter <= k, or
// not-yet-revealed if the reader is before the entry's first appearance or
// before every snapshot.
func ResolveSnapshot(entry entities.WikiEntry, snapshots []entities.WikiSnapshot, progress entities.ReaderProgress) Resolution {
	if len(snapshots) == 0 {
		return Resolution{State: ResolutionNoContent}
	}
	ordered := orderSnapshots(snapshots)
	latest := ordered[len(ordered)-1]

	if !progress.IsKnown() {
		return Resolution{State: ResolutionVisible, Snapshot: &latest}
	}

	chapter := progress.Chapter
	notYet := Resolution{State: ResolutionNotYetRevealed, Redact: true, AsOfChapter: &chapter}

	if !entry.AppearsBy(chapter) {
		return notYet
	}

	// First appearance after every snapshot is an authoring error; show the
	// earliest revision rather than one the author may not have meant yet.
	if entry.FirstAppearance != nil && *entry.FirstAppearance > latest.ValidFromChapter {
		earliest := ordered[0]
		return Resolution{
			State:       ResolutionVisible,
			Snapshot:    &earliest,
			Redact:      len(ordered) > 1,
			AsOfChapter: &chapter,
			Fallback:    true,
		}
	}

	// Index of the first snapshot that is still in the reader's future.
	next := sort.Search(len(ordered), func(i int) bool {
		return ordered[i].ValidFromChapter > chapter
	})
	if next == 0 {
		return notYet
	}

	current := ordered[next-1]
	return Resolution{
		State:       ResolutionVisible,
		Snapshot:    &current,
		Redact:      next < len(ordered),
		AsOfChapter: &chapter,
	}
}

// orderSnapshots returns snapshots sorted by valid-from ascending, copying
// only when the input is out of order.
func orderSnapshots(snapshots []entities.WikiSnapshot) []entities.WikiSnapshot {
	byValidFrom := func(a, b entities.WikiSnapshot) int {
		return a.ValidFromChapter - b.ValidFromChapter
	}
	if slices.IsSortedFunc(snapshots, byValidFrom) {
		return snapshots
	}
	ordered := slices.Clone(snapshots)
	slices.SortFunc(ordered, byValidFrom)
	return ordered
}
