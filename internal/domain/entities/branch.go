// Package entities contains core domain data structures.
package entities

import "time"

// BranchKind classifies a branch in the fork graph.
type BranchKind string

const (
	BranchMain      BranchKind = "MAIN"
	BranchSideStory BranchKind = "SIDE_STORY"
	BranchIfStory   BranchKind = "IF_STORY"
	BranchFanFic    BranchKind = "FAN_FIC"
)

// IsValid reports whether k is a known branch kind.
func (k BranchKind) IsValid() bool {
	switch k {
	case BranchMain, BranchSideStory, BranchIfStory, BranchFanFic:
		return true
	}
	return false
}

// Forkable reports whether a new branch may be created with kind k.
// MAIN is reserved for the root branch created with the work.
func (k BranchKind) Forkable() bool {
	return k.IsValid() && k != BranchMain
}

// CanonStatus is the position of a branch in the promotion workflow.
type CanonStatus string

const (
	CanonNonCanon  CanonStatus = "NON_CANON"
	CanonCandidate CanonStatus = "CANDIDATE"
	CanonMerged    CanonStatus = "MERGED"
	CanonRejected  CanonStatus = "REJECTED"
)

// canonTransitions lists the allowed forward moves of the state machine.
var canonTransitions = map[CanonStatus][]CanonStatus{
	CanonNonCanon:  {CanonCandidate, CanonRejected},
	CanonCandidate: {CanonMerged, CanonRejected},
}

// IsValid reports whether s is a known canon status.
func (s CanonStatus) IsValid() bool {
	switch s {
	case CanonNonCanon, CanonCandidate, CanonMerged, CanonRejected:
		return true
	}
	return false
}

// IsTerminal reports whether no transition leaves s.
func (s CanonStatus) IsTerminal() bool {
	return s == CanonMerged || s == CanonRejected
}

// CanTransition reports whether the workflow may move from s to next.
func (s CanonStatus) CanTransition(next CanonStatus) bool {
	for _, allowed := range canonTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Visibility controls who can discover a branch.
type Visibility string

const (
	VisibilityPrivate Visibility = "PRIVATE"
	VisibilityPublic  Visibility = "PUBLIC"
	VisibilityLinked  Visibility = "LINKED"
)

// IsValid reports whether v is a known visibility.
func (v Visibility) IsValid() bool {
	switch v {
	case VisibilityPrivate, VisibilityPublic, VisibilityLinked:
		return true
	}
	return false
}

// Branch is a node in a work's fork graph.
type Branch struct {
	ID               string      `json:"id"`
	WorkID           string      `json:"work_id"`
	ParentID         *string     `json:"parent_id,omitempty"`
	ForkPointChapter *int        `json:"fork_point_chapter,omitempty"`
	Kind             BranchKind  `json:"kind"`
	CanonStatus      CanonStatus `json:"canon_status"`
	Visibility       Visibility  `json:"visibility"`
	Name             string      `json:"name"`
	Description      string      `json:"description,omitempty"`
	AuthorID         string      `json:"author_id"`
	VoteCount        int         `json:"vote_count"`
	VoteThreshold    int         `json:"vote_threshold"`
	ChapterCount     int         `json:"chapter_count"`
	Version          int         `json:"version"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
	DeletedAt        *time.Time  `json:"deleted_at,omitempty"`
}

// IsRoot reports whether b is the work's MAIN branch.
func (b *Branch) IsRoot() bool {
	return b.ParentID == nil
}

// IsDeleted reports whether b has been soft-deleted.
func (b *Branch) IsDeleted() bool {
	return b.DeletedAt != nil
}

// ForkPoint returns the fork-point chapter, or 0 for the root branch.
func (b *Branch) ForkPoint() int {
	if b.ForkPointChapter == nil {
		return 0
	}
	return *b.ForkPointChapter
}

// AncestryLink is one element of a branch's ancestry chain.
// For ancestors, InheritedUpTo is the last chapter of that branch that the
// descendant inherits. The requested branch itself is unbounded.
type AncestryLink struct {
	Branch        Branch `json:"branch"`
	InheritedUpTo int    `json:"inherited_up_to,omitempty"`
	Bounded       bool   `json:"bounded"`
}

// Covers reports whether chapter falls inside the inherited range.
func (l AncestryLink) Covers(chapter int) bool {
	return !l.Bounded || chapter <= l.InheritedUpTo
}

// Cap clamps a reader chapter to the inherited boundary.
func (l AncestryLink) Cap(chapter int) int {
	if l.Bounded && chapter > l.InheritedUpTo {
		return l.InheritedUpTo
	}
	return chapter
}
