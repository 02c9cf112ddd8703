package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ersonp/forklore-core/internal/domain/entities"
	"github.com/ersonp/forklore-core/internal/domain/mocks"
)

const (
	author = "author-1"
	reader = "reader-1"
)

// fixture wires every service to one in-memory store.
type fixture struct {
	db         *mocks.RelationalDB
	metrics    *mocks.Metrics
	works      *WorkService
	branches   *BranchService
	promotion  *PromotionService
	votes      *VoteService
	visibility *VisibilityService
	wiki       *WikiService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := mocks.NewRelationalDB()
	metrics := mocks.NewMetrics()
	promotion := NewPromotionService(db, metrics)
	visibility := NewVisibilityService(db, NewStoredProgress(db), nil)
	return &fixture{
		db:         db,
		metrics:    metrics,
		works:      NewWorkService(db),
		branches:   NewBranchService(db, BranchSettings{DefaultVoteThreshold: 3}, metrics),
		promotion:  promotion,
		votes:      NewVoteService(db, promotion, metrics),
		visibility: visibility,
		wiki:       NewWikiService(db, visibility, nil),
	}
}

// seedWork creates a work whose main branch has the given number of chapters.
func (f *fixture) seedWork(t *testing.T, chapters int) (*entities.Work, *entities.Branch) {
	t.Helper()
	ctx := context.Background()
	work, main, err := f.works.Create(ctx, author, "The Long Road")
	require.NoError(t, err)
	f.publish(t, author, main.ID, chapters)
	main, err = f.branches.Get(ctx, main.ID)
	require.NoError(t, err)
	return work, main
}

func (f *fixture) publish(t *testing.T, actorID, branchID string, chapters int) {
	t.Helper()
	for range chapters {
		_, err := f.works.PublishChapter(context.Background(), actorID, branchID)
		require.NoError(t, err)
	}
}

// fork creates a SIDE_STORY branch of parentID at chapter.
func (f *fixture) fork(t *testing.T, actorID, parentID string, chapter int) *entities.Branch {
	t.Helper()
	branch, err := f.branches.Create(context.Background(), actorID, BranchCreateInput{
		ParentID:         parentID,
		ForkPointChapter: chapter,
		Kind:             entities.BranchSideStory,
		Name:             "what if",
	})
	require.NoError(t, err)
	return branch
}

// entry creates an entry in branchID with snapshots at the given chapters.
func (f *fixture) entry(t *testing.T, branchID, name string, firstAppearance *int, chapters ...int) *entities.WikiEntry {
	t.Helper()
	ctx := context.Background()
	branch, err := f.db.FindBranch(ctx, branchID)
	require.NoError(t, err)

	entry, err := f.wiki.CreateEntry(ctx, branch.AuthorID, EntryInput{
		BranchID:        branchID,
		Name:            name,
		FirstAppearance: firstAppearance,
	})
	require.NoError(t, err)
	for _, ch := range chapters {
		_, err := f.wiki.AppendSnapshot(ctx, branch.AuthorID, entry.ID, SnapshotInput{
			Content:          name + " as of chapter " + itoa(ch),
			ValidFromChapter: ch,
		})
		require.NoError(t, err)
	}
	return entry
}

// withClock fixes timeNow for the duration of the test.
func withClock(t *testing.T, now *time.Time) {
	t.Helper()
	orig := timeNow
	timeNow = func() time.Time { return *now }
	t.Cleanup(func() { timeNow = orig })
}

func intPtr(v int) *int { return &v }

func itoa(v int) string {
	return fmt.Sprint(v)
}
