package entities

// BranchSort selects the ordering of a branch listing.
type BranchSort string

const (
	// SortByVotes orders by vote count descending, then creation time ascending.
	SortByVotes BranchSort = "votes"
	// SortByNewest orders by creation time descending.
	SortByNewest BranchSort = "newest"
	// SortByOldest orders by creation time ascending.
	SortByOldest BranchSort = "oldest"
)

// IsValid reports whether s is a known sort key.
func (s BranchSort) IsValid() bool {
	switch s {
	case SortByVotes, SortByNewest, SortByOldest:
		return true
	}
	return false
}

// BranchFilter narrows a branch listing. Zero values disable a criterion:
// empty Kind, CanonStatus and Visibility match everything, nil
// ForkPointChapter matches any fork point, empty Sort means SortByVotes and
// Limit 0 means no limit. Deleted branches are never listed.
type BranchFilter struct {
	Kind             BranchKind
	CanonStatus      CanonStatus
	Visibility       Visibility
	ForkPointChapter *int
	Sort             BranchSort
	Limit            int
}

// BranchUpdate carries the author-editable fields of a branch. Nil fields are
// left unchanged.
type BranchUpdate struct {
	Name            *string
	Description     *string
	ExpectedVersion *int
}
