package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ersonp/forklore-core/internal/domain/entities"
)

// CreateWork inserts a work together with its MAIN branch.
func (r *Repository) CreateWork(ctx context.Context, work *entities.Work, main *entities.Branch) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO works (
				id, title, author_id, view_count, like_count, branch_count,
				linked_branch_count, allow_branching, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			work.ID,
			work.Title,
			work.AuthorID,
			work.ViewCount,
			work.LikeCount,
			work.BranchCount,
			work.LinkedBranchCount,
			work.AllowBranching,
			work.CreatedAt,
			work.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("inserting work: %w", err)
		}

		if err := insertBranch(ctx, tx, main); err != nil {
			return fmt.Errorf("inserting main branch: %w", err)
		}
		return nil
	})
}

// FindWork finds a work by ID. The chapter count is taken from its MAIN branch.
func (r *Repository) FindWork(ctx context.Context, workID string) (*entities.Work, error) {
	query := `
		SELECT w.id, w.title, w.author_id, COALESCE(b.chapter_count, 0),
			w.view_count, w.like_count, w.branch_count, w.linked_branch_count,
			w.allow_branching, w.created_at, w.updated_at
		FROM works w
		LEFT JOIN branches b ON b.work_id = w.id AND b.parent_id IS NULL
		WHERE w.id = ?
	`
	row := r.db.QueryRowContext(ctx, query, workID)

	var work entities.Work
	err := row.Scan(
		&work.ID,
		&work.Title,
		&work.AuthorID,
		&work.ChapterCount,
		&work.ViewCount,
		&work.LikeCount,
		&work.BranchCount,
		&work.LinkedBranchCount,
		&work.AllowBranching,
		&work.CreatedAt,
		&work.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning work: %w", err)
	}
	return &work, nil
}

// SetAllowBranching opens or closes a work to new forks.
func (r *Repository) SetAllowBranching(ctx context.Context, workID string, allow bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE works SET allow_branching = ?, updated_at = ? WHERE id = ?`,
		allow, timeNow(), workID,
	)
	if err != nil {
		return fmt.Errorf("updating allow branching: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return entities.ErrWorkNotFound
	}
	return nil
}
