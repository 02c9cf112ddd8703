package entities

import "time"

// Work is a root creative property. Its counters are display-only.
type Work struct {
	ID                string    `json:"id"`
	Title             string    `json:"title"`
	AuthorID          string    `json:"author_id"`
	ChapterCount      int       `json:"chapter_count"`
	ViewCount         int       `json:"view_count"`
	LikeCount         int       `json:"like_count"`
	BranchCount       int       `json:"branch_count"`
	LinkedBranchCount int       `json:"linked_branch_count"`
	AllowBranching    bool      `json:"allow_branching"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}
