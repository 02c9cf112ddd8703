package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/forklore-core/internal/domain/entities"
)

func snapshots(chapters ...int) []entities.WikiSnapshot {
	out := make([]entities.WikiSnapshot, len(chapters))
	for i, ch := range chapters {
		out[i] = entities.WikiSnapshot{
			ID:               "snap-" + itoa(ch),
			EntryID:          "entry-1",
			Content:          "as of " + itoa(ch),
			ValidFromChapter: ch,
			Contributor:      entities.ContributorUser,
		}
	}
	return out
}

func TestResolveSnapshot(t *testing.T) {
	entry := entities.WikiEntry{ID: "entry-1", Name: "Aria"}

	tests := []struct {
		name       string
		entry      entities.WikiEntry
		snapshots  []entities.WikiSnapshot
		progress   entities.ReaderProgress
		wantState  ResolutionState
		wantFrom   int
		wantRedact bool
	}{
		{
			name:       "reader between revisions sees the earlier one",
			entry:      entry,
			snapshots:  snapshots(1, 16, 51),
			progress:   entities.KnownProgress(30),
			wantState:  ResolutionVisible,
			wantFrom:   16,
			wantRedact: true,
		},
		{
			name:       "reader before every revision",
			entry:      entry,
			snapshots:  snapshots(1, 16, 51),
			progress:   entities.KnownProgress(0),
			wantState:  ResolutionNotYetRevealed,
			wantRedact: true,
		},
		{
			name:      "reader exactly at a revision",
			entry:     entry,
			snapshots: snapshots(1, 16, 51),
			progress:  entities.KnownProgress(51),
			wantState: ResolutionVisible,
			wantFrom:  51,
		},
		{
			name:      "anonymous reader sees the latest",
			entry:     entry,
			snapshots: snapshots(1, 16, 51),
			progress:  entities.AnonymousProgress(),
			wantState: ResolutionVisible,
			wantFrom:  51,
		},
		{
			name:      "unavailable progress sees the latest",
			entry:     entry,
			snapshots: snapshots(1, 16, 51),
			progress:  entities.UnavailableProgress(),
			wantState: ResolutionVisible,
			wantFrom:  51,
		},
		{
			name:       "unsorted input is ordered first",
			entry:      entry,
			snapshots:  snapshots(51, 1, 16),
			progress:   entities.KnownProgress(20),
			wantState:  ResolutionVisible,
			wantFrom:   16,
			wantRedact: true,
		},
		{
			name:       "first appearance still ahead",
			entry:      entities.WikiEntry{ID: "entry-1", FirstAppearance: intPtr(10)},
			snapshots:  snapshots(0, 20),
			progress:   entities.KnownProgress(5),
			wantState:  ResolutionNotYetRevealed,
			wantRedact: true,
		},
		{
			name:       "first appearance after every snapshot falls back to earliest",
			entry:      entities.WikiEntry{ID: "entry-1", FirstAppearance: intPtr(60)},
			snapshots:  snapshots(1, 16, 51),
			progress:   entities.KnownProgress(70),
			wantState:  ResolutionVisible,
			wantFrom:   1,
			wantRedact: true,
		},
		{
			name:      "no snapshots",
			entry:     entry,
			snapshots: nil,
			progress:  entities.KnownProgress(5),
			wantState: ResolutionNoContent,
		},
		{
			name:      "initial setting at chapter zero",
			entry:     entry,
			snapshots: snapshots(0),
			progress:  entities.KnownProgress(0),
			wantState: ResolutionVisible,
			wantFrom:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveSnapshot(tt.entry, tt.snapshots, tt.progress)
			assert.Equal(t, tt.wantState, got.State)
			assert.Equal(t, tt.wantRedact, got.Redact)
			if tt.wantState == ResolutionVisible {
				require.NotNil(t, got.Snapshot)
				assert.Equal(t, tt.wantFrom, got.Snapshot.ValidFromChapter)
			} else {
				assert.Nil(t, got.Snapshot)
			}
			if tt.progress.IsKnown() && tt.wantState != ResolutionNoContent {
				require.NotNil(t, got.AsOfChapter)
				assert.Equal(t, tt.progress.Chapter, *got.AsOfChapter)
			}
		})
	}
}

func TestResolveSnapshot_FallbackFlag(t *testing.T) {
	entry := entities.WikiEntry{ID: "entry-1", FirstAppearance: intPtr(60)}
	got := ResolveSnapshot(entry, snapshots(1, 16), entities.KnownProgress(60))
	assert.True(t, got.Fallback)

	got = ResolveSnapshot(entities.WikiEntry{ID: "entry-1"}, snapshots(1, 16), entities.KnownProgress(60))
	assert.False(t, got.Fallback)
}

func TestResolveSnapshot_DoesNotReorderInput(t *testing.T) {
	input := snapshots(51, 1, 16)
	ResolveSnapshot(entities.WikiEntry{}, input, entities.KnownProgress(20))
	assert.Equal(t, 51, input[0].ValidFromChapter)
}

// Advancing through the story never moves the resolved revision backwards.
func TestResolveSnapshot_Monotonic(t *testing.T) {
	entry := entities.WikiEntry{ID: "entry-1", FirstAppearance: intPtr(3)}
	snaps := snapshots(0, 4, 9, 15, 40)

	prev := -1
	for chapter := 0; chapter <= 50; chapter++ {
		got := ResolveSnapshot(entry, snaps, entities.KnownProgress(chapter))
		if got.State != ResolutionVisible {
			assert.Equal(t, -1, prev, "chapter %d regressed to hidden", chapter)
			continue
		}
		assert.GreaterOrEqual(t, got.Snapshot.ValidFromChapter, prev, "chapter %d", chapter)
		assert.LessOrEqual(t, got.Snapshot.ValidFromChapter, chapter)
		prev = got.Snapshot.ValidFromChapter
	}
	assert.Equal(t, 40, prev)
}
