package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// RecordProgress raises the stored chapter for (user, work). It never lowers it.
func (r *Repository) RecordProgress(ctx context.Context, userID, workID string, chapter int) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO reading_progress (user_id, work_id, chapter, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id, work_id) DO UPDATE SET
			chapter = MAX(chapter, excluded.chapter),
			updated_at = excluded.updated_at
	`, userID, workID, chapter, timeNow())
	if err != nil {
		return fmt.Errorf("recording progress: %w", err)
	}
	return nil
}

// FindProgress returns the stored chapter and whether one was recorded.
func (r *Repository) FindProgress(ctx context.Context, userID, workID string) (int, bool, error) {
	var chapter int
	err := r.db.QueryRowContext(ctx,
		`SELECT chapter FROM reading_progress WHERE user_id = ? AND work_id = ?`,
		userID, workID,
	).Scan(&chapter)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("reading progress: %w", err)
	}
	return chapter, true, nil
}
