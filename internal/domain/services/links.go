package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ersonp/forklore-core/internal/domain/entities"
)

// maxLinkMessage bounds request messages and review comments.
const maxLinkMessage = 2000

// RequestLink asks the work's author to link a branch into canon. Only the
// branch's author may ask, once per branch at a time, and only while the
// branch can still be merged.
func (s *PromotionService) RequestLink(ctx context.Context, actorID, branchID, message string) (*entities.LinkRequest, error) {
	message = strings.TrimSpace(message)
	if len(message) > maxLinkMessage {
		return nil, fmt.Errorf("%w: message exceeds %d bytes", entities.ErrInvalidInput, maxLinkMessage)
	}

	branch, err := s.reload(ctx, branchID)
	if err != nil {
		return nil, err
	}
	if branch.IsRoot() {
		return nil, entities.ErrMainBranchImmutable
	}
	if actorID == "" || branch.AuthorID != actorID {
		return nil, entities.ErrNotAuthor
	}
	if branch.Visibility == entities.VisibilityLinked {
		return nil, entities.ErrAlreadyLinked
	}
	if branch.CanonStatus.IsTerminal() {
		return nil, fmt.Errorf("%w: branch is %s", entities.ErrInvalidTransition, branch.CanonStatus)
	}

	req := &entities.LinkRequest{
		ID:          generateUUID(),
		BranchID:    branch.ID,
		WorkID:      branch.WorkID,
		RequesterID: actorID,
		Message:     message,
		Status:      entities.LinkPending,
		CreatedAt:   timeNow(),
	}
	if err := s.store.CreateLinkRequest(ctx, req); err != nil {
		return nil, fmt.Errorf("creating link request: %w", err)
	}

	audit(ctx, s.store, entities.AuditLinkRequested, actorID, branch.ID, map[string]any{
		"request_id": req.ID,
	})
	slog.InfoContext(ctx, "link requested", "request_id", req.ID, "branch_id", branch.ID)
	return req, nil
}

// ApproveLink accepts a pending request. The branch must be a CANDIDATE; it
// becomes MERGED and LINKED in the same transaction that closes the request.
func (s *PromotionService) ApproveLink(ctx context.Context, actorID, requestID, comment string) (*entities.LinkRequest, error) {
	req, branch, err := s.reviewable(ctx, actorID, requestID, comment)
	if err != nil {
		return nil, err
	}
	if !branch.CanonStatus.CanTransition(entities.CanonMerged) {
		return nil, fmt.Errorf("%w: %s to %s", entities.ErrInvalidTransition, branch.CanonStatus, entities.CanonMerged)
	}

	reviewed, err := s.review(ctx, actorID, req, entities.LinkApproved, comment)
	if err != nil {
		return nil, err
	}
	s.recordTransition(ctx, actorID, branch, branch.CanonStatus, entities.CanonMerged, map[string]any{
		"link_request_id": req.ID,
	})
	return reviewed, nil
}

// RejectLink declines a pending request. The branch keeps its canon status
// and may ask again.
func (s *PromotionService) RejectLink(ctx context.Context, actorID, requestID, comment string) (*entities.LinkRequest, error) {
	req, _, err := s.reviewable(ctx, actorID, requestID, comment)
	if err != nil {
		return nil, err
	}
	return s.review(ctx, actorID, req, entities.LinkRejected, comment)
}

// LinkRequests lists link requests newest first.
func (s *PromotionService) LinkRequests(ctx context.Context, filter entities.LinkRequestFilter) ([]entities.LinkRequest, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, fmt.Errorf("%w: unknown link request status %q", entities.ErrInvalidInput, filter.Status)
	}
	requests, err := s.store.ListLinkRequests(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("listing link requests: %w", err)
	}
	return requests, nil
}

// reviewable loads a pending request and its branch, and checks that actorID
// authored the work.
func (s *PromotionService) reviewable(ctx context.Context, actorID, requestID, comment string) (*entities.LinkRequest, *entities.Branch, error) {
	if len(comment) > maxLinkMessage {
		return nil, nil, fmt.Errorf("%w: comment exceeds %d bytes", entities.ErrInvalidInput, maxLinkMessage)
	}

	req, err := s.store.FindLinkRequest(ctx, requestID)
	if err != nil {
		return nil, nil, fmt.Errorf("finding link request: %w", err)
	}
	if req == nil {
		return nil, nil, entities.ErrLinkRequestNotFound
	}

	branch, err := s.workAuthorBranch(ctx, actorID, req.BranchID)
	if err != nil {
		return nil, nil, err
	}
	if req.Status != entities.LinkPending {
		return nil, nil, entities.ErrLinkRequestClosed
	}
	return req, branch, nil
}

func (s *PromotionService) review(ctx context.Context, actorID string, req *entities.LinkRequest, status entities.LinkRequestStatus, comment string) (*entities.LinkRequest, error) {
	reviewed, err := s.store.ReviewLinkRequest(ctx, req.ID, entities.LinkReview{
		Status:     status,
		ReviewerID: actorID,
		Comment:    strings.TrimSpace(comment),
		ReviewedAt: timeNow(),
	})
	if err != nil {
		return nil, fmt.Errorf("reviewing link request: %w", err)
	}

	audit(ctx, s.store, entities.AuditLinkReviewed, actorID, req.BranchID, map[string]any{
		"request_id": req.ID,
		"status":     string(status),
	})
	slog.InfoContext(ctx, "link request reviewed", "request_id", req.ID, "branch_id", req.BranchID, "status", status)
	return reviewed, nil
}
