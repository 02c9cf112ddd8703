package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/forklore-core/internal/domain/entities"
)

func TestPromotionService_RequestLink(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, main := f.seedWork(t, 5)
	branch := f.fork(t, reader, main.ID, 2)

	_, err := f.promotion.RequestLink(ctx, author, branch.ID, "")
	require.ErrorIs(t, err, entities.ErrNotAuthor, "only the branch author asks")
	_, err = f.promotion.RequestLink(ctx, author, main.ID, "")
	require.ErrorIs(t, err, entities.ErrMainBranchImmutable)

	req, err := f.promotion.RequestLink(ctx, reader, branch.ID, "  please link  ")
	require.NoError(t, err)
	assert.Equal(t, entities.LinkPending, req.Status)
	assert.Equal(t, branch.WorkID, req.WorkID)
	assert.Equal(t, "please link", req.Message)

	_, err = f.promotion.RequestLink(ctx, reader, branch.ID, "again")
	require.ErrorIs(t, err, entities.ErrPendingLinkRequest)
	assert.ErrorIs(t, err, entities.ErrConflict)

	logged, err := f.db.FindAuditLogByAction(ctx, entities.AuditLinkRequested, 10)
	require.NoError(t, err)
	assert.Len(t, logged, 1)
}

func TestPromotionService_RequestLink_ClosedBranch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, main := f.seedWork(t, 5)

	merged := f.candidate(t, main.ID)
	_, err := f.promotion.Merge(ctx, author, merged.ID)
	require.NoError(t, err)
	_, err = f.promotion.RequestLink(ctx, reader, merged.ID, "")
	require.ErrorIs(t, err, entities.ErrAlreadyLinked)

	rejected := f.fork(t, reader, main.ID, 3)
	_, err = f.promotion.Reject(ctx, author, rejected.ID, "")
	require.NoError(t, err)
	_, err = f.promotion.RequestLink(ctx, reader, rejected.ID, "")
	require.ErrorIs(t, err, entities.ErrInvalidTransition)
}

func TestPromotionService_ApproveLink(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, main := f.seedWork(t, 5)
	branch := f.candidate(t, main.ID)

	req, err := f.promotion.RequestLink(ctx, reader, branch.ID, "")
	require.NoError(t, err)

	_, err = f.promotion.ApproveLink(ctx, reader, req.ID, "")
	require.ErrorIs(t, err, entities.ErrNotAuthor, "only the work author reviews")

	approved, err := f.promotion.ApproveLink(ctx, author, req.ID, " welcome ")
	require.NoError(t, err)
	assert.Equal(t, entities.LinkApproved, approved.Status)
	assert.Equal(t, author, approved.ReviewerID)
	assert.Equal(t, "welcome", approved.ReviewComment)
	assert.NotNil(t, approved.ReviewedAt)

	got, err := f.branches.Get(ctx, branch.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.CanonMerged, got.CanonStatus)
	assert.Equal(t, entities.VisibilityLinked, got.Visibility)
	assert.Equal(t, 1, f.metrics.Transitions["CANDIDATE->MERGED"])

	work, err := f.works.Get(ctx, branch.WorkID)
	require.NoError(t, err)
	assert.Equal(t, 1, work.LinkedBranchCount)

	_, err = f.promotion.ApproveLink(ctx, author, req.ID, "")
	require.ErrorIs(t, err, entities.ErrLinkRequestClosed)
	_, err = f.promotion.RejectLink(ctx, author, req.ID, "")
	require.ErrorIs(t, err, entities.ErrLinkRequestClosed)
}

func TestPromotionService_ApproveLink_RequiresCandidate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, main := f.seedWork(t, 5)
	branch := f.fork(t, reader, main.ID, 2)

	req, err := f.promotion.RequestLink(ctx, reader, branch.ID, "")
	require.NoError(t, err)

	_, err = f.promotion.ApproveLink(ctx, author, req.ID, "")
	require.ErrorIs(t, err, entities.ErrInvalidTransition)

	stored, err := f.db.FindLinkRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.LinkPending, stored.Status, "a failed approval leaves the request open")

	got, err := f.branches.Get(ctx, branch.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.CanonNonCanon, got.CanonStatus)
	assert.Equal(t, entities.VisibilityPrivate, got.Visibility)
}

func TestPromotionService_RejectLink(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, main := f.seedWork(t, 5)
	branch := f.candidate(t, main.ID)

	req, err := f.promotion.RequestLink(ctx, reader, branch.ID, "")
	require.NoError(t, err)

	rejected, err := f.promotion.RejectLink(ctx, author, req.ID, "not yet")
	require.NoError(t, err)
	assert.Equal(t, entities.LinkRejected, rejected.Status)
	assert.Equal(t, "not yet", rejected.ReviewComment)

	got, err := f.branches.Get(ctx, branch.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.CanonCandidate, got.CanonStatus, "rejecting a request leaves canon status alone")

	again, err := f.promotion.RequestLink(ctx, reader, branch.ID, "revised")
	require.NoError(t, err, "a rejected request does not block a new one")

	pending, err := f.promotion.LinkRequests(ctx, entities.LinkRequestFilter{WorkID: branch.WorkID, Status: entities.LinkPending})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, again.ID, pending[0].ID)

	all, err := f.promotion.LinkRequests(ctx, entities.LinkRequestFilter{BranchID: branch.ID})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = f.promotion.LinkRequests(ctx, entities.LinkRequestFilter{Status: "OPEN"})
	require.ErrorIs(t, err, entities.ErrInvalidInput)

	_, err = f.promotion.RejectLink(ctx, author, "missing", "")
	require.ErrorIs(t, err, entities.ErrLinkRequestNotFound)
}

func TestPromotionService_Merge_ApprovesPendingRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, main := f.seedWork(t, 5)
	branch := f.candidate(t, main.ID)

	req, err := f.promotion.RequestLink(ctx, reader, branch.ID, "")
	require.NoError(t, err)

	_, err = f.promotion.Merge(ctx, author, branch.ID)
	require.NoError(t, err)

	stored, err := f.db.FindLinkRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.LinkApproved, stored.Status)
	assert.Equal(t, author, stored.ReviewerID)
}

func TestBranchService_SetVisibility_LinkedCount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, main := f.seedWork(t, 5)

	unmerged := f.fork(t, reader, main.ID, 3)
	_, err := f.branches.SetVisibility(ctx, reader, unmerged.ID, entities.VisibilityLinked)
	require.ErrorIs(t, err, entities.ErrInvalidInput, "linking goes through a link request")

	merged := f.candidate(t, main.ID)
	_, err = f.promotion.Merge(ctx, author, merged.ID)
	require.NoError(t, err)

	linkedCount := func() int {
		work, err := f.works.Get(ctx, main.WorkID)
		require.NoError(t, err)
		return work.LinkedBranchCount
	}
	require.Equal(t, 1, linkedCount())

	_, err = f.branches.SetVisibility(ctx, reader, merged.ID, entities.VisibilityPublic)
	require.NoError(t, err)
	assert.Equal(t, 0, linkedCount())

	_, err = f.branches.SetVisibility(ctx, reader, merged.ID, entities.VisibilityPublic)
	require.NoError(t, err)
	assert.Equal(t, 0, linkedCount(), "no change without entering or leaving LINKED")

	_, err = f.branches.SetVisibility(ctx, reader, merged.ID, entities.VisibilityLinked)
	require.NoError(t, err)
	assert.Equal(t, 1, linkedCount())
}
