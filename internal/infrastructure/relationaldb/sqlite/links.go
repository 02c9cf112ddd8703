package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/ersonp/forklore-core/internal/domain/entities"
)

const linkRequestColumns = `id, branch_id, work_id, requester_id, message, status,
	reviewer_id, review_comment, created_at, reviewed_at`

func scanLinkRequest(row rowScanner) (*entities.LinkRequest, error) {
	var req entities.LinkRequest
	var status string
	var reviewerID sql.NullString
	var reviewedAt sql.NullTime

	err := row.Scan(
		&req.ID,
		&req.BranchID,
		&req.WorkID,
		&req.RequesterID,
		&req.Message,
		&status,
		&reviewerID,
		&req.ReviewComment,
		&req.CreatedAt,
		&reviewedAt,
	)
	if err != nil {
		return nil, err
	}

	req.Status = entities.LinkRequestStatus(status)
	req.ReviewerID = reviewerID.String
	if reviewedAt.Valid {
		req.ReviewedAt = &reviewedAt.Time
	}
	return &req, nil
}

func findLinkRequest(ctx context.Context, q queryRower, requestID string) (*entities.LinkRequest, error) {
	row := q.QueryRowContext(ctx, `SELECT `+linkRequestColumns+` FROM link_requests WHERE id = ?`, requestID)
	req, err := scanLinkRequest(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning link request: %w", err)
	}
	return req, nil
}

// CreateLinkRequest inserts a PENDING request. The partial unique index on
// pending requests turns a second one into ErrPendingLinkRequest.
func (r *Repository) CreateLinkRequest(ctx context.Context, req *entities.LinkRequest) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO link_requests (id, branch_id, work_id, requester_id, message, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		req.ID,
		req.BranchID,
		req.WorkID,
		req.RequesterID,
		req.Message,
		string(req.Status),
		req.CreatedAt,
	)
	if isConstraintError(err) {
		return entities.ErrPendingLinkRequest
	}
	if err != nil {
		return fmt.Errorf("inserting link request: %w", err)
	}
	return nil
}

// FindLinkRequest finds a request by ID.
func (r *Repository) FindLinkRequest(ctx context.Context, requestID string) (*entities.LinkRequest, error) {
	return findLinkRequest(ctx, r.db, requestID)
}

// ListLinkRequests lists requests newest first.
func (r *Repository) ListLinkRequests(ctx context.Context, filter entities.LinkRequestFilter) ([]entities.LinkRequest, error) {
	var where []string
	var args []any
	if filter.WorkID != "" {
		where = append(where, "work_id = ?")
		args = append(args, filter.WorkID)
	}
	if filter.BranchID != "" {
		where = append(where, "branch_id = ?")
		args = append(args, filter.BranchID)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}

	query := `SELECT ` + linkRequestColumns + ` FROM link_requests`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying link requests: %w", err)
	}
	defer rows.Close()

	var requests []entities.LinkRequest
	for rows.Next() {
		req, err := scanLinkRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning link request: %w", err)
		}
		requests = append(requests, *req)
	}
	return requests, rows.Err()
}

// ReviewLinkRequest closes a PENDING request. Approval merges and links the
// branch in the same transaction.
func (r *Repository) ReviewLinkRequest(ctx context.Context, requestID string, review entities.LinkReview) (*entities.LinkRequest, error) {
	var reviewed *entities.LinkRequest
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		req, err := findLinkRequest(ctx, tx, requestID)
		if err != nil {
			return err
		}
		if req == nil {
			return entities.ErrLinkRequestNotFound
		}
		if req.Status != entities.LinkPending {
			return entities.ErrLinkRequestClosed
		}

		if review.Status == entities.LinkApproved {
			merged, err := mergeBranch(ctx, tx, req.BranchID)
			if err != nil {
				return err
			}
			if !merged {
				return fmt.Errorf("%w: branch is not a candidate", entities.ErrInvalidTransition)
			}
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE link_requests
			SET status = ?, reviewer_id = ?, review_comment = ?, reviewed_at = ?
			WHERE id = ?
		`,
			string(review.Status),
			nullString(review.ReviewerID),
			review.Comment,
			review.ReviewedAt,
			requestID,
		)
		if err != nil {
			return fmt.Errorf("updating link request: %w", err)
		}

		reviewed, err = findLinkRequest(ctx, tx, requestID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return reviewed, nil
}
