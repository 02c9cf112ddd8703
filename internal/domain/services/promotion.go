package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ersonp/forklore-core/internal/domain/entities"
	"github.com/ersonp/forklore-core/internal/domain/ports"
)

// PromotionService drives the canon workflow
// NON_CANON -> CANDIDATE -> MERGED, with REJECTED reachable from either of
// the first two. Status never moves backwards.
type PromotionService struct {
	store   ports.RelationalDB
	metrics ports.Metrics
}

// NewPromotionService creates a new PromotionService.
func NewPromotionService(store ports.RelationalDB, metrics ports.Metrics) *PromotionService {
	return &PromotionService{
		store:   store,
		metrics: metricsOrNop(metrics),
	}
}

// Evaluate promotes a NON_CANON branch to CANDIDATE once its vote count has
// reached its threshold and returns the resulting status. The check and the
// update are a single conditional write, so concurrent evaluations promote
// at most once.
func (s *PromotionService) Evaluate(ctx context.Context, branchID string) (entities.CanonStatus, error) {
	promoted, err := s.store.PromoteIfThresholdMet(ctx, branchID)
	if err != nil {
		return "", fmt.Errorf("evaluating promotion: %w", err)
	}

	branch, err := s.store.FindBranch(ctx, branchID)
	if err != nil {
		return "", fmt.Errorf("finding branch: %w", err)
	}
	if branch == nil || branch.IsDeleted() {
		return "", entities.ErrBranchNotFound
	}

	if promoted {
		s.recordTransition(ctx, "", branch, entities.CanonNonCanon, entities.CanonCandidate, map[string]any{
			"vote_count":     branch.VoteCount,
			"vote_threshold": branch.VoteThreshold,
		})
	}
	return branch.CanonStatus, nil
}

// Merge accepts a CANDIDATE branch into canon. Only the work's author may
// merge. The status change, the LINKED visibility and the approval of any
// pending link request commit together.
func (s *PromotionService) Merge(ctx context.Context, actorID, branchID string) (*entities.Branch, error) {
	branch, err := s.workAuthorBranch(ctx, actorID, branchID)
	if err != nil {
		return nil, err
	}
	if !branch.CanonStatus.CanTransition(entities.CanonMerged) {
		return nil, fmt.Errorf("%w: %s to %s", entities.ErrInvalidTransition, branch.CanonStatus, entities.CanonMerged)
	}

	merged, err := s.store.MergeBranch(ctx, branch.ID, entities.LinkReview{
		Status:     entities.LinkApproved,
		ReviewerID: actorID,
		ReviewedAt: timeNow(),
	})
	if err != nil {
		return nil, fmt.Errorf("merging branch: %w", err)
	}
	if !merged {
		return nil, fmt.Errorf("%w: branch is no longer %s", entities.ErrInvalidTransition, branch.CanonStatus)
	}

	s.recordTransition(ctx, actorID, branch, branch.CanonStatus, entities.CanonMerged, nil)
	return s.reload(ctx, branch.ID)
}

// Reject closes a NON_CANON or CANDIDATE branch. Only the work's author may
// reject.
func (s *PromotionService) Reject(ctx context.Context, actorID, branchID, reason string) (*entities.Branch, error) {
	branch, err := s.workAuthorBranch(ctx, actorID, branchID)
	if err != nil {
		return nil, err
	}
	details := map[string]any{}
	if reason != "" {
		details["reason"] = reason
	}
	if err := s.transition(ctx, actorID, branch, entities.CanonRejected, details); err != nil {
		return nil, err
	}
	return s.reload(ctx, branch.ID)
}

// transition applies one workflow step as a conditional update on the
// statuses that may lead to next.
func (s *PromotionService) transition(ctx context.Context, actorID string, branch *entities.Branch, next entities.CanonStatus, details map[string]any) error {
	if !branch.CanonStatus.CanTransition(next) {
		return fmt.Errorf("%w: %s to %s", entities.ErrInvalidTransition, branch.CanonStatus, next)
	}

	changed, err := s.store.TransitionCanon(ctx, branch.ID, sourcesOf(next), next)
	if err != nil {
		return fmt.Errorf("transitioning branch: %w", err)
	}
	if !changed {
		// Someone else moved the branch since it was read.
		return fmt.Errorf("%w: branch is no longer %s", entities.ErrInvalidTransition, branch.CanonStatus)
	}

	s.recordTransition(ctx, actorID, branch, branch.CanonStatus, next, details)
	return nil
}

func (s *PromotionService) recordTransition(ctx context.Context, actorID string, branch *entities.Branch, from, to entities.CanonStatus, details map[string]any) {
	if details == nil {
		details = map[string]any{}
	}
	details["from"] = string(from)
	details["to"] = string(to)

	s.metrics.CanonTransitioned(from, to)
	audit(ctx, s.store, entities.AuditCanonTransition, actorID, branch.ID, details)
	slog.InfoContext(ctx, "canon status changed", "branch_id", branch.ID, "from", from, "to", to)
}

// sourcesOf lists the statuses from which next is reachable.
func sourcesOf(next entities.CanonStatus) []entities.CanonStatus {
	var from []entities.CanonStatus
	for _, s := range []entities.CanonStatus{entities.CanonNonCanon, entities.CanonCandidate} {
		if s.CanTransition(next) {
			from = append(from, s)
		}
	}
	return from
}

// workAuthorBranch loads a live non-root branch and checks that actorID
// authored its work.
func (s *PromotionService) workAuthorBranch(ctx context.Context, actorID, branchID string) (*entities.Branch, error) {
	branch, err := s.reload(ctx, branchID)
	if err != nil {
		return nil, err
	}
	if branch.IsRoot() {
		return nil, entities.ErrMainBranchImmutable
	}

	work, err := s.store.FindWork(ctx, branch.WorkID)
	if err != nil {
		return nil, fmt.Errorf("finding work: %w", err)
	}
	if work == nil {
		return nil, entities.ErrWorkNotFound
	}
	if actorID == "" || work.AuthorID != actorID {
		return nil, entities.ErrNotAuthor
	}
	return branch, nil
}

func (s *PromotionService) reload(ctx context.Context, branchID string) (*entities.Branch, error) {
	branch, err := s.store.FindBranch(ctx, branchID)
	if err != nil {
		return nil, fmt.Errorf("finding branch: %w", err)
	}
	if branch == nil || branch.IsDeleted() {
		return nil, entities.ErrBranchNotFound
	}
	return branch, nil
}
