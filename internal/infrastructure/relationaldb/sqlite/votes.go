package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ersonp/forklore-core/internal/domain/entities"
)

// ToggleVote flips the (user, branch) vote. The delete-or-insert and the
// aggregate update share one write transaction; the aggregate is adjusted in
// SQL so concurrent voters on the same branch never lose updates.
func (r *Repository) ToggleVote(ctx context.Context, userID, branchID string) (*entities.VoteResult, error) {
	var result *entities.VoteResult
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		if err := requireLiveBranch(ctx, tx, branchID); err != nil {
			return err
		}

		removed, err := deleteVote(ctx, tx, userID, branchID)
		if err != nil {
			return err
		}
		if !removed {
			if err := insertVote(ctx, tx, userID, branchID); err != nil {
				return err
			}
		}

		result, err = voteState(ctx, tx, userID, branchID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// CastVote records a vote if absent.
func (r *Repository) CastVote(ctx context.Context, userID, branchID string) (*entities.VoteResult, bool, error) {
	var result *entities.VoteResult
	var changed bool
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		if err := requireLiveBranch(ctx, tx, branchID); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO votes (user_id, branch_id, created_at) VALUES (?, ?, ?)`,
			userID, branchID, timeNow(),
		)
		if err != nil {
			return fmt.Errorf("inserting vote: %w", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			changed = true
			if err := adjustVoteCount(ctx, tx, branchID, 1); err != nil {
				return err
			}
		}

		result, err = voteState(ctx, tx, userID, branchID)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return result, changed, nil
}

// WithdrawVote removes a vote if present.
func (r *Repository) WithdrawVote(ctx context.Context, userID, branchID string) (*entities.VoteResult, bool, error) {
	var result *entities.VoteResult
	var changed bool
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		if err := requireLiveBranch(ctx, tx, branchID); err != nil {
			return err
		}

		var err error
		changed, err = deleteVote(ctx, tx, userID, branchID)
		if err != nil {
			return err
		}

		result, err = voteState(ctx, tx, userID, branchID)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return result, changed, nil
}

// FindVoteState returns the current vote state without changing it.
func (r *Repository) FindVoteState(ctx context.Context, userID, branchID string) (*entities.VoteResult, error) {
	if err := requireLiveBranch(ctx, r.db, branchID); err != nil {
		return nil, err
	}
	return voteState(ctx, r.db, userID, branchID)
}

// CountVotes counts live vote rows for a branch.
func (r *Repository) CountVotes(ctx context.Context, branchID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM votes WHERE branch_id = ?`, branchID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting votes: %w", err)
	}
	return count, nil
}

// requireLiveBranch returns ErrBranchNotFound unless the branch exists and
// is not deleted.
func requireLiveBranch(ctx context.Context, q queryRower, branchID string) error {
	var deletedAt sql.NullTime
	err := q.QueryRowContext(ctx, `SELECT deleted_at FROM branches WHERE id = ?`, branchID).Scan(&deletedAt)
	if err == sql.ErrNoRows || (err == nil && deletedAt.Valid) {
		return entities.ErrBranchNotFound
	}
	if err != nil {
		return fmt.Errorf("loading branch: %w", err)
	}
	return nil
}

// deleteVote removes the pair's row and decrements the aggregate if a row
// was removed. Reports whether a row was removed.
func deleteVote(ctx context.Context, tx *sql.Tx, userID, branchID string) (bool, error) {
	res, err := tx.ExecContext(ctx, `DELETE FROM votes WHERE user_id = ? AND branch_id = ?`, userID, branchID)
	if err != nil {
		return false, fmt.Errorf("deleting vote: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reading affected rows: %w", err)
	}
	if n == 0 {
		return false, nil
	}
	return true, adjustVoteCount(ctx, tx, branchID, -1)
}

// insertVote inserts the pair's row and increments the aggregate. A unique
// violation means another request won the race.
func insertVote(ctx context.Context, tx *sql.Tx, userID, branchID string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO votes (user_id, branch_id, created_at) VALUES (?, ?, ?)`,
		userID, branchID, timeNow(),
	)
	if isConstraintError(err) {
		return entities.ErrVoteConflict
	}
	if err != nil {
		return fmt.Errorf("inserting vote: %w", err)
	}
	return adjustVoteCount(ctx, tx, branchID, 1)
}

// adjustVoteCount moves the aggregate by delta, never below zero.
func adjustVoteCount(ctx context.Context, tx *sql.Tx, branchID string, delta int) error {
	query := `UPDATE branches SET vote_count = vote_count + 1 WHERE id = ?`
	if delta < 0 {
		query = `UPDATE branches SET vote_count = vote_count - 1 WHERE id = ? AND vote_count > 0`
	}
	if _, err := tx.ExecContext(ctx, query, branchID); err != nil {
		return fmt.Errorf("updating vote count: %w", err)
	}
	return nil
}

// voteState reads the pair's vote and the branch aggregate.
func voteState(ctx context.Context, q queryRower, userID, branchID string) (*entities.VoteResult, error) {
	result := &entities.VoteResult{BranchID: branchID}
	var status string
	err := q.QueryRowContext(ctx, `
		SELECT
			EXISTS(SELECT 1 FROM votes WHERE user_id = ? AND branch_id = ?),
			vote_count,
			canon_status
		FROM branches
		WHERE id = ?
	`, userID, branchID, branchID).Scan(&result.Voted, &result.VoteCount, &status)
	if err == sql.ErrNoRows {
		return nil, entities.ErrBranchNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading vote state: %w", err)
	}
	result.CanonStatus = entities.CanonStatus(status)
	return result, nil
}
