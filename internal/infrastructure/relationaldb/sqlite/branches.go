package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/ersonp/forklore-core/internal/domain/entities"
)

// maxAncestryDepth bounds the ancestry walk in case of corrupt parent links.
const maxAncestryDepth = 256

// branchColumns is the column list for scanBranch. Queries alias branches as b.
const branchColumns = `b.id, b.work_id, b.parent_id, b.fork_point_chapter, b.kind, b.canon_status,
	b.visibility, b.name, b.description, b.author_id, b.vote_count, b.vote_threshold,
	b.chapter_count, b.version, b.created_at, b.updated_at, b.deleted_at`

// rowScanner is implemented by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// queryRower is implemented by *sql.DB and *sql.Tx.
type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// execer is implemented by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// scanBranch scans one row selected with branchColumns.
func scanBranch(row rowScanner) (*entities.Branch, error) {
	var b entities.Branch
	var parentID sql.NullString
	var forkPoint sql.NullInt64
	var deletedAt sql.NullTime
	var kind, status, visibility string

	err := row.Scan(
		&b.ID,
		&b.WorkID,
		&parentID,
		&forkPoint,
		&kind,
		&status,
		&visibility,
		&b.Name,
		&b.Description,
		&b.AuthorID,
		&b.VoteCount,
		&b.VoteThreshold,
		&b.ChapterCount,
		&b.Version,
		&b.CreatedAt,
		&b.UpdatedAt,
		&deletedAt,
	)
	if err != nil {
		return nil, err
	}

	if parentID.Valid {
		b.ParentID = &parentID.String
	}
	b.ForkPointChapter = intPtr(forkPoint)
	if deletedAt.Valid {
		b.DeletedAt = &deletedAt.Time
	}
	b.Kind = entities.BranchKind(kind)
	b.CanonStatus = entities.CanonStatus(status)
	b.Visibility = entities.Visibility(visibility)
	return &b, nil
}

// insertBranch writes a branch row.
func insertBranch(ctx context.Context, tx execer, b *entities.Branch) error {
	var parentID sql.NullString
	if b.ParentID != nil {
		parentID = sql.NullString{String: *b.ParentID, Valid: true}
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO branches (
			id, work_id, parent_id, fork_point_chapter, kind, canon_status, visibility,
			name, description, author_id, vote_count, vote_threshold, chapter_count,
			version, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		b.ID,
		b.WorkID,
		parentID,
		nullInt(b.ForkPointChapter),
		string(b.Kind),
		string(b.CanonStatus),
		string(b.Visibility),
		b.Name,
		b.Description,
		b.AuthorID,
		b.VoteCount,
		b.VoteThreshold,
		b.ChapterCount,
		b.Version,
		b.CreatedAt,
		b.UpdatedAt,
	)
	return err
}

// findBranch loads a branch through q. Returns nil if not found.
func findBranch(ctx context.Context, q queryRower, branchID string) (*entities.Branch, error) {
	row := q.QueryRowContext(ctx, `SELECT `+branchColumns+` FROM branches b WHERE b.id = ?`, branchID)
	b, err := scanBranch(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning branch: %w", err)
	}
	return b, nil
}

// FindBranch finds a branch by ID, including soft-deleted ones.
func (r *Repository) FindBranch(ctx context.Context, branchID string) (*entities.Branch, error) {
	return findBranch(ctx, r.db, branchID)
}

// FindMainBranch finds the root branch of a work.
func (r *Repository) FindMainBranch(ctx context.Context, workID string) (*entities.Branch, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+branchColumns+` FROM branches b WHERE b.work_id = ? AND b.parent_id IS NULL`,
		workID,
	)
	b, err := scanBranch(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning main branch: %w", err)
	}
	return b, nil
}

// CreateBranch inserts a child branch after re-validating it against the
// parent inside the write transaction.
func (r *Repository) CreateBranch(ctx context.Context, branch *entities.Branch, dedupSince time.Time) error {
	if branch.ParentID == nil {
		return fmt.Errorf("creating branch without parent: %w", entities.ErrParentNotFound)
	}

	return r.withTx(ctx, func(tx *sql.Tx) error {
		parent, err := findBranch(ctx, tx, *branch.ParentID)
		if err != nil {
			return fmt.Errorf("loading parent branch: %w", err)
		}
		if parent == nil || parent.IsDeleted() || parent.WorkID != branch.WorkID {
			return entities.ErrParentNotFound
		}

		var allow bool
		err = tx.QueryRowContext(ctx, `SELECT allow_branching FROM works WHERE id = ?`, branch.WorkID).Scan(&allow)
		if err != nil {
			return fmt.Errorf("checking allow branching: %w", err)
		}
		if !allow {
			return entities.ErrBranchingDisabled
		}

		forkPoint := branch.ForkPoint()
		if forkPoint < 1 || forkPoint > parent.ChapterCount {
			return fmt.Errorf("%w: chapter %d is outside 1..%d", entities.ErrInvalidForkPoint, forkPoint, parent.ChapterCount)
		}

		var duplicates int
		err = tx.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM branches
			WHERE parent_id = ? AND fork_point_chapter = ? AND author_id = ?
				AND created_at >= ? AND deleted_at IS NULL
		`, parent.ID, forkPoint, branch.AuthorID, dedupSince).Scan(&duplicates)
		if err != nil {
			return fmt.Errorf("checking duplicate forks: %w", err)
		}
		if duplicates > 0 {
			return entities.ErrConcurrentForkConflict
		}

		// The fork inherits the parent's chapters up to the fork point.
		branch.ChapterCount = forkPoint
		if err := insertBranch(ctx, tx, branch); err != nil {
			return fmt.Errorf("inserting branch: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE works SET branch_count = branch_count + 1, updated_at = ? WHERE id = ?`,
			branch.CreatedAt, branch.WorkID,
		)
		if err != nil {
			return fmt.Errorf("updating branch count: %w", err)
		}
		return nil
	})
}

// ListBranches returns a lazy sequence of a work's live branches.
func (r *Repository) ListBranches(ctx context.Context, workID string, filter entities.BranchFilter) iter.Seq2[entities.Branch, error] {
	query, args := branchListQuery(workID, filter)

	return func(yield func(entities.Branch, error) bool) {
		rows, err := r.db.QueryContext(ctx, query, args...)
		if err != nil {
			yield(entities.Branch{}, fmt.Errorf("querying branches: %w", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			b, err := scanBranch(rows)
			if err != nil {
				yield(entities.Branch{}, fmt.Errorf("scanning branch: %w", err))
				return
			}
			if !yield(*b, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(entities.Branch{}, fmt.Errorf("iterating branches: %w", err))
		}
	}
}

// branchListQuery builds the listing query for filter.
func branchListQuery(workID string, filter entities.BranchFilter) (string, []any) {
	var sb strings.Builder
	args := []any{workID}

	sb.WriteString(`SELECT ` + branchColumns + ` FROM branches b WHERE b.work_id = ? AND b.deleted_at IS NULL`)

	if filter.Kind != "" {
		sb.WriteString(` AND b.kind = ?`)
		args = append(args, string(filter.Kind))
	}
	if filter.CanonStatus != "" {
		sb.WriteString(` AND b.canon_status = ?`)
		args = append(args, string(filter.CanonStatus))
	}
	if filter.Visibility != "" {
		sb.WriteString(` AND b.visibility = ?`)
		args = append(args, string(filter.Visibility))
	}
	if filter.ForkPointChapter != nil {
		sb.WriteString(` AND b.fork_point_chapter = ?`)
		args = append(args, *filter.ForkPointChapter)
	}

	switch filter.Sort {
	case entities.SortByNewest:
		sb.WriteString(` ORDER BY b.created_at DESC, b.id`)
	case entities.SortByOldest:
		sb.WriteString(` ORDER BY b.created_at ASC, b.id`)
	default:
		sb.WriteString(` ORDER BY b.vote_count DESC, b.created_at ASC, b.id`)
	}

	if filter.Limit > 0 {
		sb.WriteString(` LIMIT ?`)
		args = append(args, filter.Limit)
	}

	return sb.String(), args
}

// FindAncestry returns the branch followed by its ancestors up to the root.
// Uses a recursive CTE over parent links.
func (r *Repository) FindAncestry(ctx context.Context, branchID string) ([]entities.Branch, error) {
	query := `
		WITH RECURSIVE chain(id, depth) AS (
			SELECT id, 0 FROM branches WHERE id = ?
			UNION ALL
			SELECT p.parent_id, chain.depth + 1
			FROM branches p
			JOIN chain ON p.id = chain.id
			WHERE p.parent_id IS NOT NULL AND chain.depth < ?
		)
		SELECT ` + branchColumns + `
		FROM chain
		JOIN branches b ON b.id = chain.id
		ORDER BY chain.depth
	`
	return r.queryBranches(ctx, query, branchID, maxAncestryDepth)
}

// FindMergedChildren returns live MERGED branches forked from parentID.
func (r *Repository) FindMergedChildren(ctx context.Context, parentID string) ([]entities.Branch, error) {
	query := `
		SELECT ` + branchColumns + `
		FROM branches b
		WHERE b.parent_id = ? AND b.canon_status = ? AND b.deleted_at IS NULL
		ORDER BY b.fork_point_chapter, b.created_at
	`
	return r.queryBranches(ctx, query, parentID, string(entities.CanonMerged))
}

// UpdateBranch applies the author-editable fields and bumps the version.
func (r *Repository) UpdateBranch(ctx context.Context, branchID string, update entities.BranchUpdate) (*entities.Branch, error) {
	var updated *entities.Branch
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		current, err := findBranch(ctx, tx, branchID)
		if err != nil {
			return fmt.Errorf("loading branch: %w", err)
		}
		if current == nil || current.IsDeleted() {
			return entities.ErrBranchNotFound
		}
		if update.ExpectedVersion != nil && *update.ExpectedVersion != current.Version {
			return entities.ErrVersionConflict
		}

		name, description := current.Name, current.Description
		if update.Name != nil {
			name = *update.Name
		}
		if update.Description != nil {
			description = *update.Description
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE branches
			SET name = ?, description = ?, version = version + 1, updated_at = ?
			WHERE id = ? AND version = ?
		`, name, description, timeNow(), branchID, current.Version)
		if err != nil {
			return fmt.Errorf("updating branch: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return entities.ErrVersionConflict
		}

		updated, err = findBranch(ctx, tx, branchID)
		if err != nil {
			return fmt.Errorf("reloading branch: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// SetBranchVisibility changes who can discover a branch. Entering or
// leaving LINKED moves the work's linked branch count.
func (r *Repository) SetBranchVisibility(ctx context.Context, branchID string, visibility entities.Visibility) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		current, err := findBranch(ctx, tx, branchID)
		if err != nil {
			return fmt.Errorf("loading branch: %w", err)
		}
		if current == nil || current.IsDeleted() {
			return entities.ErrBranchNotFound
		}

		now := timeNow()
		_, err = tx.ExecContext(ctx, `
			UPDATE branches
			SET visibility = ?, version = version + 1, updated_at = ?
			WHERE id = ?
		`, string(visibility), now, branchID)
		if err != nil {
			return fmt.Errorf("updating visibility: %w", err)
		}
		return adjustLinkedCount(ctx, tx, current.WorkID, current.Visibility, visibility, now)
	})
}

// adjustLinkedCount keeps works.linked_branch_count in step with a
// visibility change from prev to next.
func adjustLinkedCount(ctx context.Context, tx execer, workID string, prev, next entities.Visibility, now time.Time) error {
	var delta int
	switch {
	case prev != entities.VisibilityLinked && next == entities.VisibilityLinked:
		delta = 1
	case prev == entities.VisibilityLinked && next != entities.VisibilityLinked:
		delta = -1
	default:
		return nil
	}

	_, err := tx.ExecContext(ctx, `
		UPDATE works
		SET linked_branch_count = MAX(linked_branch_count + ?, 0), updated_at = ?
		WHERE id = ?
	`, delta, now, workID)
	if err != nil {
		return fmt.Errorf("updating linked branch count: %w", err)
	}
	return nil
}

// SoftDeleteBranch marks a non-root branch deleted.
func (r *Repository) SoftDeleteBranch(ctx context.Context, branchID string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE branches
		SET deleted_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL AND parent_id IS NOT NULL
	`, timeNow(), timeNow(), branchID)
	if err != nil {
		return fmt.Errorf("deleting branch: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return entities.ErrBranchNotFound
	}
	return nil
}

// IncrementChapterCount atomically adds one chapter and returns the new count.
func (r *Repository) IncrementChapterCount(ctx context.Context, branchID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		UPDATE branches
		SET chapter_count = chapter_count + 1, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
		RETURNING chapter_count
	`, timeNow(), branchID).Scan(&count)
	if err == sql.ErrNoRows {
		return 0, entities.ErrBranchNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("incrementing chapter count: %w", err)
	}
	return count, nil
}

// TransitionCanon moves a non-root branch to next if its status is one of from.
func (r *Repository) TransitionCanon(ctx context.Context, branchID string, from []entities.CanonStatus, next entities.CanonStatus) (bool, error) {
	if len(from) == 0 {
		return false, nil
	}

	placeholders := make([]string, len(from))
	args := make([]any, 0, len(from)+3)
	args = append(args, string(next), timeNow(), branchID)
	for i, s := range from {
		placeholders[i] = "?"
		args = append(args, string(s))
	}

	query := fmt.Sprintf(`
		UPDATE branches
		SET canon_status = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL AND parent_id IS NOT NULL
			AND canon_status IN (%s)
	`, strings.Join(placeholders, ", "))

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("updating canon status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reading affected rows: %w", err)
	}
	return n > 0, nil
}

// MergeBranch moves a CANDIDATE branch to MERGED and LINKED and closes its
// pending link request in one transaction.
func (r *Repository) MergeBranch(ctx context.Context, branchID string, review entities.LinkReview) (bool, error) {
	var merged bool
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		merged, err = mergeBranch(ctx, tx, branchID)
		if err != nil || !merged {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE link_requests
			SET status = ?, reviewer_id = ?, review_comment = ?, reviewed_at = ?
			WHERE branch_id = ? AND status = ?
		`,
			string(entities.LinkApproved),
			nullString(review.ReviewerID),
			review.Comment,
			review.ReviewedAt,
			branchID,
			string(entities.LinkPending),
		)
		if err != nil {
			return fmt.Errorf("closing pending link request: %w", err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return merged, nil
}

// mergeBranch applies CANDIDATE -> MERGED together with LINKED visibility
// inside tx. Reports false when the branch is not a live CANDIDATE.
func mergeBranch(ctx context.Context, tx *sql.Tx, branchID string) (bool, error) {
	current, err := findBranch(ctx, tx, branchID)
	if err != nil {
		return false, fmt.Errorf("loading branch: %w", err)
	}
	if current == nil || current.IsDeleted() || current.IsRoot() || current.CanonStatus != entities.CanonCandidate {
		return false, nil
	}

	now := timeNow()
	_, err = tx.ExecContext(ctx, `
		UPDATE branches
		SET canon_status = ?, visibility = ?, version = version + 1, updated_at = ?
		WHERE id = ?
	`, string(entities.CanonMerged), string(entities.VisibilityLinked), now, branchID)
	if err != nil {
		return false, fmt.Errorf("merging branch: %w", err)
	}

	if err := adjustLinkedCount(ctx, tx, current.WorkID, current.Visibility, entities.VisibilityLinked, now); err != nil {
		return false, err
	}
	return true, nil
}

// PromoteIfThresholdMet moves a NON_CANON branch to CANDIDATE once its vote
// count reaches the threshold.
func (r *Repository) PromoteIfThresholdMet(ctx context.Context, branchID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE branches
		SET canon_status = ?, updated_at = ?
		WHERE id = ? AND canon_status = ? AND vote_count >= vote_threshold
			AND deleted_at IS NULL
	`, string(entities.CanonCandidate), timeNow(), branchID, string(entities.CanonNonCanon))
	if err != nil {
		return false, fmt.Errorf("promoting branch: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reading affected rows: %w", err)
	}
	return n > 0, nil
}

// queryBranches is a helper to execute branch queries.
func (r *Repository) queryBranches(ctx context.Context, query string, args ...any) ([]entities.Branch, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying branches: %w", err)
	}
	defer rows.Close()

	branches := make([]entities.Branch, 0, 8)
	for rows.Next() {
		b, err := scanBranch(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning branch: %w", err)
		}
		branches = append(branches, *b)
	}
	return branches, rows.Err()
}
