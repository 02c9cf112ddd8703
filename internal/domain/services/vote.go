package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ersonp/forklore-core/internal/domain/entities"
	"github.com/ersonp/forklore-core/internal/domain/ports"
)

// Vote actions reported to metrics.
const (
	VoteActionToggle   = "toggle"
	VoteActionCast     = "cast"
	VoteActionWithdraw = "withdraw"
)

// VoteService records reader votes and re-evaluates promotion after each
// change.
type VoteService struct {
	store     ports.VoteStore
	promotion *PromotionService
	metrics   ports.Metrics
}

// NewVoteService creates a new VoteService.
func NewVoteService(store ports.VoteStore, promotion *PromotionService, metrics ports.Metrics) *VoteService {
	return &VoteService{
		store:     store,
		promotion: promotion,
		metrics:   metricsOrNop(metrics),
	}
}

// Toggle flips the user's vote on a branch. Two toggles restore the original
// state. A concurrent toggle by the same user may yield ErrVoteConflict; the
// client should re-read with Status.
func (s *VoteService) Toggle(ctx context.Context, userID, branchID string) (*entities.VoteResult, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}

	result, err := s.store.ToggleVote(ctx, userID, branchID)
	if err != nil {
		return nil, fmt.Errorf("toggling vote: %w", err)
	}
	s.metrics.VoteRecorded(VoteActionToggle, true)

	return s.afterChange(ctx, result, true)
}

// Cast records a vote if the user has none. Repeating it changes nothing.
func (s *VoteService) Cast(ctx context.Context, userID, branchID string) (*entities.VoteResult, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}

	result, changed, err := s.store.CastVote(ctx, userID, branchID)
	if err != nil {
		return nil, fmt.Errorf("casting vote: %w", err)
	}
	s.metrics.VoteRecorded(VoteActionCast, changed)

	return s.afterChange(ctx, result, changed)
}

// Withdraw removes the user's vote if present. Repeating it changes nothing.
func (s *VoteService) Withdraw(ctx context.Context, userID, branchID string) (*entities.VoteResult, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}

	result, changed, err := s.store.WithdrawVote(ctx, userID, branchID)
	if err != nil {
		return nil, fmt.Errorf("withdrawing vote: %w", err)
	}
	s.metrics.VoteRecorded(VoteActionWithdraw, changed)

	return result, nil
}

// Status returns the current vote state for the user without changing it.
func (s *VoteService) Status(ctx context.Context, userID, branchID string) (*entities.VoteResult, error) {
	result, err := s.store.FindVoteState(ctx, userID, branchID)
	if err != nil {
		return nil, fmt.Errorf("reading vote state: %w", err)
	}
	return result, nil
}

// afterChange runs the promotion check synchronously when a vote was added.
// Withdrawals never demote, so they skip it.
func (s *VoteService) afterChange(ctx context.Context, result *entities.VoteResult, changed bool) (*entities.VoteResult, error) {
	if !changed || !result.Voted || result.CanonStatus != entities.CanonNonCanon || s.promotion == nil {
		return result, nil
	}

	status, err := s.promotion.Evaluate(ctx, result.BranchID)
	if err != nil {
		// The vote itself is committed; report it and keep the old status.
		slog.ErrorContext(ctx, "evaluating promotion after vote", "branch_id", result.BranchID, "error", err)
		return result, nil
	}
	result.CanonStatus = status
	return result, nil
}

func requireUser(userID string) error {
	if userID == "" {
		return fmt.Errorf("%w: user is required", entities.ErrInvalidInput)
	}
	return nil
}
