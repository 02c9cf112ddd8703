package entities

import "time"

// Vote is one reader's vote for a branch. Existence means voted.
type Vote struct {
	UserID    string    `json:"user_id"`
	BranchID  string    `json:"branch_id"`
	CreatedAt time.Time `json:"created_at"`
}

// VoteResult is the state of a (user, branch) pair after a vote operation.
type VoteResult struct {
	BranchID    string      `json:"branch_id"`
	Voted       bool        `json:"voted"`
	VoteCount   int         `json:"vote_count"`
	CanonStatus CanonStatus `json:"canon_status"`
}
