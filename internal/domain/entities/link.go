package entities

import "time"

// LinkRequestStatus is the review state of a link request.
type LinkRequestStatus string

const (
	LinkPending  LinkRequestStatus = "PENDING"
	LinkApproved LinkRequestStatus = "APPROVED"
	LinkRejected LinkRequestStatus = "REJECTED"
)

// IsValid reports whether s is a known status.
func (s LinkRequestStatus) IsValid() bool {
	switch s {
	case LinkPending, LinkApproved, LinkRejected:
		return true
	}
	return false
}

// LinkRequest asks the work's author to link a branch into canon. A branch
// has at most one PENDING request. Approval merges the branch.
type LinkRequest struct {
	ID            string            `json:"id"`
	BranchID      string            `json:"branch_id"`
	WorkID        string            `json:"work_id"`
	RequesterID   string            `json:"requester_id"`
	Message       string            `json:"message,omitempty"`
	Status        LinkRequestStatus `json:"status"`
	ReviewerID    string            `json:"reviewer_id,omitempty"`
	ReviewComment string            `json:"review_comment,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	ReviewedAt    *time.Time        `json:"reviewed_at,omitempty"`
}

// LinkReview closes a pending request.
type LinkReview struct {
	Status     LinkRequestStatus
	ReviewerID string
	Comment    string
	ReviewedAt time.Time
}

// LinkRequestFilter narrows a link request listing. Empty fields match all.
type LinkRequestFilter struct {
	WorkID   string
	BranchID string
	Status   LinkRequestStatus
}
