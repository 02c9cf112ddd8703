package entities

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonStatus_CanTransition(t *testing.T) {
	tests := []struct {
		from     CanonStatus
		to       CanonStatus
		expected bool
	}{
		{CanonNonCanon, CanonCandidate, true},
		{CanonNonCanon, CanonRejected, true},
		{CanonNonCanon, CanonMerged, false},
		{CanonCandidate, CanonMerged, true},
		{CanonCandidate, CanonRejected, true},
		{CanonCandidate, CanonNonCanon, false},
		{CanonMerged, CanonRejected, false},
		{CanonMerged, CanonNonCanon, false},
		{CanonRejected, CanonCandidate, false},
		{CanonRejected, CanonNonCanon, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s to %s", tt.from, tt.to), func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.from.CanTransition(tt.to))
		})
	}
}

func TestCanonStatus_IsTerminal(t *testing.T) {
	assert.False(t, CanonNonCanon.IsTerminal())
	assert.False(t, CanonCandidate.IsTerminal())
	assert.True(t, CanonMerged.IsTerminal())
	assert.True(t, CanonRejected.IsTerminal())
}

func TestBranchKind_Forkable(t *testing.T) {
	tests := []struct {
		name     string
		kind     BranchKind
		expected bool
	}{
		{name: "side story", kind: BranchSideStory, expected: true},
		{name: "if story", kind: BranchIfStory, expected: true},
		{name: "fan fic", kind: BranchFanFic, expected: true},
		{name: "main is reserved", kind: BranchMain, expected: false},
		{name: "unknown", kind: BranchKind("SEQUEL"), expected: false},
		{name: "empty", kind: BranchKind(""), expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.kind.Forkable())
		})
	}
}

func TestAncestryLink_Cap(t *testing.T) {
	unbounded := AncestryLink{}
	assert.Equal(t, 42, unbounded.Cap(42))
	assert.True(t, unbounded.Covers(1000))

	bounded := AncestryLink{InheritedUpTo: 7, Bounded: true}
	assert.Equal(t, 5, bounded.Cap(5))
	assert.Equal(t, 7, bounded.Cap(30))
	assert.True(t, bounded.Covers(7))
	assert.False(t, bounded.Covers(8))
}

func TestErrorKind(t *testing.T) {
	assert.Equal(t, "not_found", ErrorKind(fmt.Errorf("loading: %w", ErrParentNotFound)))
	assert.Equal(t, "conflict", ErrorKind(ErrConcurrentForkConflict))
	assert.Equal(t, "conflict", ErrorKind(ErrVoteConflict))
	assert.Equal(t, "validation", ErrorKind(ErrInvalidForkPoint))
	assert.Equal(t, "forbidden", ErrorKind(ErrNotAuthor))
	assert.Equal(t, "internal", ErrorKind(fmt.Errorf("boom")))
}

func TestWikiEntry_AppearsBy(t *testing.T) {
	always := WikiEntry{}
	assert.True(t, always.AppearsBy(0))

	first := 3
	entry := WikiEntry{FirstAppearance: &first}
	assert.False(t, entry.AppearsBy(2))
	assert.True(t, entry.AppearsBy(3))
}
