package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/forklore-core/internal/domain/entities"
)

// candidate returns a fork of main that has been voted to CANDIDATE.
func (f *fixture) candidate(t *testing.T, mainID string) *entities.Branch {
	t.Helper()
	ctx := context.Background()
	branch := f.fork(t, reader, mainID, 2)
	for _, voter := range []string{"v1", "v2", "v3"} {
		_, err := f.votes.Cast(ctx, voter, branch.ID)
		require.NoError(t, err)
	}
	got, err := f.branches.Get(ctx, branch.ID)
	require.NoError(t, err)
	require.Equal(t, entities.CanonCandidate, got.CanonStatus)
	return got
}

func TestPromotionService_Merge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, main := f.seedWork(t, 5)
	branch := f.candidate(t, main.ID)

	_, err := f.promotion.Merge(ctx, reader, branch.ID)
	require.ErrorIs(t, err, entities.ErrNotAuthor, "branch author is not the work author")

	merged, err := f.promotion.Merge(ctx, author, branch.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.CanonMerged, merged.CanonStatus)
	assert.Equal(t, entities.VisibilityLinked, merged.Visibility)
	assert.Equal(t, 1, f.metrics.Transitions["CANDIDATE->MERGED"])

	work, err := f.works.Get(ctx, branch.WorkID)
	require.NoError(t, err)
	assert.Equal(t, 1, work.LinkedBranchCount)

	_, err = f.promotion.Merge(ctx, author, branch.ID)
	require.ErrorIs(t, err, entities.ErrInvalidTransition)
	_, err = f.promotion.Reject(ctx, author, branch.ID, "")
	require.ErrorIs(t, err, entities.ErrInvalidTransition)
}

func TestPromotionService_Merge_StoreFailureLeavesBranchCandidate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, main := f.seedWork(t, 5)
	branch := f.candidate(t, main.ID)

	f.db.Err = assert.AnError
	_, err := f.promotion.Merge(ctx, author, branch.ID)
	require.Error(t, err)
	f.db.Err = nil

	got, err := f.branches.Get(ctx, branch.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.CanonCandidate, got.CanonStatus)
	assert.Equal(t, entities.VisibilityPrivate, got.Visibility)
	assert.Zero(t, f.metrics.Transitions["CANDIDATE->MERGED"])
}

func TestPromotionService_MergeRequiresCandidate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, main := f.seedWork(t, 5)
	branch := f.fork(t, reader, main.ID, 2)

	_, err := f.promotion.Merge(ctx, author, branch.ID)
	require.ErrorIs(t, err, entities.ErrInvalidTransition)
	assert.ErrorIs(t, err, entities.ErrConflict)

	got, err := f.branches.Get(ctx, branch.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.CanonNonCanon, got.CanonStatus)
}

func TestPromotionService_Reject(t *testing.T) {
	tests := []struct {
		name      string
		candidate bool
		wantFrom  string
	}{
		{name: "from non-canon", wantFrom: "NON_CANON"},
		{name: "from candidate", candidate: true, wantFrom: "CANDIDATE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			_, main := f.seedWork(t, 5)

			var branch *entities.Branch
			if tt.candidate {
				branch = f.candidate(t, main.ID)
			} else {
				branch = f.fork(t, reader, main.ID, 2)
			}

			rejected, err := f.promotion.Reject(ctx, author, branch.ID, "contradicts canon")
			require.NoError(t, err)
			assert.Equal(t, entities.CanonRejected, rejected.CanonStatus)
			assert.Equal(t, 1, f.metrics.Transitions[tt.wantFrom+"->REJECTED"])

			entries, err := f.db.FindAuditLogByAction(ctx, entities.AuditCanonTransition, 1)
			require.NoError(t, err)
			require.Len(t, entries, 1)
			assert.Equal(t, author, entries[0].ActorID)
			assert.Equal(t, "contradicts canon", entries[0].Details["reason"])

			status, err := f.promotion.Evaluate(ctx, branch.ID)
			require.NoError(t, err)
			assert.Equal(t, entities.CanonRejected, status)
		})
	}
}

func TestPromotionService_MainBranch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, main := f.seedWork(t, 5)

	_, err := f.promotion.Merge(ctx, author, main.ID)
	require.ErrorIs(t, err, entities.ErrMainBranchImmutable)
	_, err = f.promotion.Reject(ctx, author, main.ID, "")
	require.ErrorIs(t, err, entities.ErrMainBranchImmutable)
}

func TestPromotionService_Evaluate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, main := f.seedWork(t, 5)
	branch := f.fork(t, reader, main.ID, 2)

	status, err := f.promotion.Evaluate(ctx, branch.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.CanonNonCanon, status)

	// Votes written behind the service's back are picked up on evaluation.
	f.db.Branches[branch.ID].VoteCount = 3
	status, err = f.promotion.Evaluate(ctx, branch.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.CanonCandidate, status)

	status, err = f.promotion.Evaluate(ctx, branch.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.CanonCandidate, status)
	assert.Equal(t, 1, f.metrics.Transitions["NON_CANON->CANDIDATE"])

	_, err = f.promotion.Evaluate(ctx, "missing")
	require.ErrorIs(t, err, entities.ErrBranchNotFound)
}

func TestCanonStatus_NeverMovesBackwards(t *testing.T) {
	for _, from := range []entities.CanonStatus{entities.CanonCandidate, entities.CanonMerged, entities.CanonRejected} {
		assert.False(t, from.CanTransition(entities.CanonNonCanon), from)
	}
	assert.Equal(t, []entities.CanonStatus{entities.CanonCandidate}, sourcesOf(entities.CanonMerged))
	assert.Equal(t, []entities.CanonStatus{entities.CanonNonCanon, entities.CanonCandidate}, sourcesOf(entities.CanonRejected))
}
