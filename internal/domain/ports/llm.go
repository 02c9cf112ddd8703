// Package ports defines interfaces for external service communication.
package ports

import "context"

// DraftRequest is the context handed to the AI-assist pipeline.
type DraftRequest struct {
	EntryName      string
	CurrentContent string
	ChapterText    string
	Chapter        int
}

// SnapshotDrafter is the AI-assist pipeline. It proposes new content for a
// wiki entry after a chapter; how it does so is opaque to the core.
type SnapshotDrafter interface {
	DraftSnapshot(ctx context.Context, req DraftRequest) (string, error)
}
