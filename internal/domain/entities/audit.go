package entities

import "time"

// Audit actions recorded by the services.
const (
	AuditWorkCreated       = "work.created"
	AuditWorkBranching     = "work.branching"
	AuditBranchCreated     = "branch.created"
	AuditBranchUpdated     = "branch.updated"
	AuditBranchDeleted     = "branch.deleted"
	AuditBranchVisibility  = "branch.visibility"
	AuditChapterPublished  = "chapter.published"
	AuditCanonTransition   = "canon.transition"
	AuditLinkRequested     = "link.requested"
	AuditLinkReviewed      = "link.reviewed"
	AuditEntryCreated      = "wiki.entry_created"
	AuditSnapshotAppended  = "wiki.snapshot_appended"
	AuditSnapshotsImported = "wiki.snapshots_imported"
)

// AuditEntry represents a logged action in the system.
type AuditEntry struct {
	ID        int64          `json:"id"`
	Action    string         `json:"action"`
	ActorID   string         `json:"actor_id,omitempty"`
	SubjectID string         `json:"subject_id,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
