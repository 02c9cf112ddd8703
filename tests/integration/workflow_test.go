package integration

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/forklore-core/internal/domain/entities"
	"github.com/ersonp/forklore-core/internal/domain/mocks"
	"github.com/ersonp/forklore-core/internal/domain/services"
	"github.com/ersonp/forklore-core/internal/infrastructure/cache"
	"github.com/ersonp/forklore-core/internal/infrastructure/config"
	"github.com/ersonp/forklore-core/internal/infrastructure/relationaldb/sqlite"
)

// stack wires the services over a file-backed SQLite database and the test
// Qdrant collection.
type stack struct {
	works      *services.WorkService
	branches   *services.BranchService
	votes      *services.VoteService
	promotion  *services.PromotionService
	visibility *services.VisibilityService
	wiki       *services.WikiService
	search     *services.SearchService
}

func newStack(t *testing.T, threshold int) *stack {
	t.Helper()
	ctx := context.Background()

	repo, err := sqlite.NewRepository(config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "forklore.db")})
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	require.NoError(t, repo.EnsureSchema(ctx))

	promotion := services.NewPromotionService(repo, nil)
	visibility := services.NewVisibilityService(repo, services.NewStoredProgress(repo), cache.NewSnapshots(64))
	search := services.NewSearchService(testIndex, &mocks.Embedder{EmbeddingResult: unitVector(2)}, repo, visibility)

	return &stack{
		works:      services.NewWorkService(repo),
		branches:   services.NewBranchService(repo, services.BranchSettings{DefaultVoteThreshold: threshold, ForkDedupWindow: time.Second}, nil),
		votes:      services.NewVoteService(repo, promotion, nil),
		promotion:  promotion,
		visibility: visibility,
		wiki:       services.NewWikiService(repo, visibility, search),
		search:     search,
	}
}

func TestWorkflow_ForkVotePromoteAndRead(t *testing.T) {
	ctx := context.Background()
	s := newStack(t, 3)

	work, main, err := s.works.Create(ctx, "author", "The Long Road")
	require.NoError(t, err)
	for range 10 {
		_, err := s.works.PublishChapter(ctx, "author", main.ID)
		require.NoError(t, err)
	}

	aria, err := s.wiki.CreateEntry(ctx, "author", services.EntryInput{
		BranchID:        main.ID,
		Name:            "Aria",
		FirstAppearance: intPtr(2),
		Content:         "A wandering bard.",
		ValidFrom:       2,
	})
	require.NoError(t, err)
	_, err = s.wiki.AppendSnapshot(ctx, "author", aria.ID, services.SnapshotInput{Content: "The lost heir.", ValidFromChapter: 8})
	require.NoError(t, err)
	t.Cleanup(func() { _ = testIndex.DeleteEntry(ctx, aria.ID) })

	fork, err := s.branches.Create(ctx, "fan", services.BranchCreateInput{
		ParentID:         main.ID,
		ForkPointChapter: 5,
		Kind:             entities.BranchIfStory,
		Name:             "What if Aria stayed",
	})
	require.NoError(t, err)

	t.Run("fork reader never sees post-fork canon", func(t *testing.T) {
		view, err := s.visibility.ResolveInBranch(ctx, "reader", fork.ID, aria.ID, entities.KnownProgress(9))
		require.NoError(t, err)
		require.Equal(t, services.ResolutionVisible, view.Resolution.State)
		assert.Equal(t, "A wandering bard.", view.Resolution.Snapshot.Content)
	})

	t.Run("search is capped by progress", func(t *testing.T) {
		require.Eventually(t, func() bool {
			results, err := s.search.Search(ctx, "reader", main.ID, "bard", entities.KnownProgress(3), 5)
			return err == nil && len(results) == 1 && results[0].Resolution.Snapshot.ValidFromChapter == 2
		}, 5*time.Second, 100*time.Millisecond)

		results, err := s.search.Search(ctx, "reader", main.ID, "bard", entities.KnownProgress(1), 5)
		require.NoError(t, err)
		assert.Empty(t, results, "entry not yet revealed")
	})

	t.Run("concurrent votes promote once", func(t *testing.T) {
		var wg sync.WaitGroup
		for range 5 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.votes.Cast(ctx, uuid.NewString(), fork.ID)
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		got, err := s.branches.Get(ctx, fork.ID)
		require.NoError(t, err)
		assert.Equal(t, 5, got.VoteCount)
		assert.Equal(t, entities.CanonCandidate, got.CanonStatus)
	})

	t.Run("merged branch is linked", func(t *testing.T) {
		merged, err := s.promotion.Merge(ctx, "author", fork.ID)
		require.NoError(t, err)
		assert.Equal(t, entities.CanonMerged, merged.CanonStatus)
		assert.Equal(t, entities.VisibilityLinked, merged.Visibility)

		_, err = s.promotion.Reject(ctx, "author", fork.ID, "too late")
		require.ErrorIs(t, err, entities.ErrInvalidTransition)
	})

	t.Run("recorded progress drives resolution", func(t *testing.T) {
		require.NoError(t, s.works.RecordProgress(ctx, "reader", work.ID, 9))

		progress, err := s.visibility.ReaderProgress(ctx, "reader", work.ID, nil)
		require.NoError(t, err)

		view, err := s.visibility.Resolve(ctx, "reader", aria.ID, progress)
		require.NoError(t, err)
		assert.Equal(t, "The lost heir.", view.Resolution.Snapshot.Content)
	})
}
