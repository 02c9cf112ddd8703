package ports

import (
	"context"
	"iter"
	"time"

	"github.com/ersonp/forklore-core/internal/domain/entities"
)

// WorkStore persists works.
type WorkStore interface {
	// CreateWork inserts a work together with its MAIN branch in one transaction.
	CreateWork(ctx context.Context, work *entities.Work, main *entities.Branch) error

	// FindWork finds a work by ID. Returns nil if not found.
	FindWork(ctx context.Context, workID string) (*entities.Work, error)

	// SetAllowBranching opens or closes a work to new forks.
	SetAllowBranching(ctx context.Context, workID string, allow bool) error
}

// BranchStore persists the fork graph and the canon state machine.
type BranchStore interface {
	// FindBranch finds a branch by ID, including soft-deleted ones.
	// Returns nil if not found.
	FindBranch(ctx context.Context, branchID string) (*entities.Branch, error)

	// FindMainBranch finds the root branch of a work. Returns nil if not found.
	FindMainBranch(ctx context.Context, workID string) (*entities.Branch, error)

	// CreateBranch inserts a child branch. Inside a single write transaction it
	// re-checks the parent (ErrParentNotFound), the fork point against the
	// parent's current chapter count (ErrInvalidForkPoint) and rejects an
	// identical fork by the same author created at or after dedupSince
	// (ErrConcurrentForkConflict) or a work closed to branching
	// (ErrBranchingDisabled). The stored chapter count starts at the fork
	// point.
	CreateBranch(ctx context.Context, branch *entities.Branch, dedupSince time.Time) error

	// ListBranches returns a lazy sequence of a work's live branches. Each
	// iteration runs the query again.
	ListBranches(ctx context.Context, workID string, filter entities.BranchFilter) iter.Seq2[entities.Branch, error]

	// FindAncestry returns the branch followed by its ancestors up to the root.
	FindAncestry(ctx context.Context, branchID string) ([]entities.Branch, error)

	// FindMergedChildren returns MERGED branches whose parent is parentID.
	FindMergedChildren(ctx context.Context, parentID string) ([]entities.Branch, error)

	// UpdateBranch applies an update and bumps the version. Returns
	// ErrVersionConflict if ExpectedVersion no longer matches.
	UpdateBranch(ctx context.Context, branchID string, update entities.BranchUpdate) (*entities.Branch, error)

	// SetBranchVisibility changes who can discover a branch and keeps the
	// work's linked branch count in step.
	SetBranchVisibility(ctx context.Context, branchID string, visibility entities.Visibility) error

	// SoftDeleteBranch marks a branch deleted.
	SoftDeleteBranch(ctx context.Context, branchID string) error

	// IncrementChapterCount atomically adds one chapter and returns the new count.
	IncrementChapterCount(ctx context.Context, branchID string) (int, error)

	// TransitionCanon moves a branch to next only if its current status is one
	// of from. Reports whether a row changed.
	TransitionCanon(ctx context.Context, branchID string, from []entities.CanonStatus, next entities.CanonStatus) (bool, error)

	// MergeBranch moves a CANDIDATE branch to MERGED, makes it LINKED and
	// closes its pending link request with review, all in one transaction.
	// Reports false without writing anything when the branch is not a live
	// CANDIDATE.
	MergeBranch(ctx context.Context, branchID string, review entities.LinkReview) (bool, error)

	// PromoteIfThresholdMet moves a NON_CANON branch to CANDIDATE when its
	// vote count has reached its threshold. Reports whether a row changed.
	PromoteIfThresholdMet(ctx context.Context, branchID string) (bool, error)
}

// VoteStore persists votes and keeps the branch aggregate in step.
type VoteStore interface {
	// ToggleVote flips the (user, branch) vote in one transaction and returns
	// the resulting state. Returns ErrVoteConflict if a concurrent insert won.
	ToggleVote(ctx context.Context, userID, branchID string) (*entities.VoteResult, error)

	// CastVote records a vote if absent. Reports whether anything changed.
	CastVote(ctx context.Context, userID, branchID string) (*entities.VoteResult, bool, error)

	// WithdrawVote removes a vote if present. Reports whether anything changed.
	WithdrawVote(ctx context.Context, userID, branchID string) (*entities.VoteResult, bool, error)

	// FindVoteState returns the current state without changing it.
	FindVoteState(ctx context.Context, userID, branchID string) (*entities.VoteResult, error)

	// CountVotes counts live vote rows for a branch.
	CountVotes(ctx context.Context, branchID string) (int, error)
}

// WikiStore persists wiki entries, their append-only snapshots and tags.
type WikiStore interface {
	// CreateEntry inserts an entry, its first snapshot when initial is non-nil,
	// and its tags, all or nothing. Every tag must belong to the entry's
	// branch (ErrTagNotFound).
	CreateEntry(ctx context.Context, entry *entities.WikiEntry, initial *entities.WikiSnapshot, tagIDs []string) error

	// FindEntry finds an entry by ID with its tags. Returns nil if not found.
	FindEntry(ctx context.Context, entryID string) (*entities.WikiEntry, error)

	// FindEntryByName finds an entry by branch and name. Returns nil if not found.
	FindEntryByName(ctx context.Context, branchID, name string) (*entities.WikiEntry, error)

	// ListEntries lists a branch's entries ordered by name, optionally by tag.
	ListEntries(ctx context.Context, branchID, tagID string) ([]entities.WikiEntry, error)

	// AppendSnapshot inserts a snapshot. Returns ErrDuplicateSnapshot when the
	// entry already has one for the same valid-from chapter.
	AppendSnapshot(ctx context.Context, snapshot *entities.WikiSnapshot) error

	// ListSnapshots returns an entry's snapshots ordered by valid-from ascending.
	ListSnapshots(ctx context.Context, entryID string) ([]entities.WikiSnapshot, error)

	// CreateTag inserts a tag definition.
	CreateTag(ctx context.Context, tag *entities.TagDefinition) error

	// ListTags lists a branch's tags by display order.
	ListTags(ctx context.Context, branchID string) ([]entities.TagDefinition, error)

	// SetEntryTags replaces an entry's tags.
	SetEntryTags(ctx context.Context, entryID string, tagIDs []string) error
}

// LinkStore persists requests to link a branch into canon.
type LinkStore interface {
	// CreateLinkRequest inserts a PENDING request. Returns
	// ErrPendingLinkRequest if the branch already has one.
	CreateLinkRequest(ctx context.Context, req *entities.LinkRequest) error

	// FindLinkRequest finds a request by ID. Returns nil if not found.
	FindLinkRequest(ctx context.Context, requestID string) (*entities.LinkRequest, error)

	// ListLinkRequests lists requests newest first.
	ListLinkRequests(ctx context.Context, filter entities.LinkRequestFilter) ([]entities.LinkRequest, error)

	// ReviewLinkRequest closes a PENDING request (ErrLinkRequestClosed
	// otherwise). An APPROVED review merges the branch in the same
	// transaction and fails with ErrInvalidTransition when the branch is
	// not a live CANDIDATE.
	ReviewLinkRequest(ctx context.Context, requestID string, review entities.LinkReview) (*entities.LinkRequest, error)
}

// ProgressStore persists reader progress per work.
type ProgressStore interface {
	// RecordProgress raises the stored chapter for (user, work); it never lowers it.
	RecordProgress(ctx context.Context, userID, workID string, chapter int) error

	// FindProgress returns the stored chapter and whether one was recorded.
	FindProgress(ctx context.Context, userID, workID string) (int, bool, error)
}

// AuditLog records actions for later inspection.
type AuditLog interface {
	// LogAction logs an action to the audit log.
	LogAction(ctx context.Context, action, actorID, subjectID string, details map[string]any) error

	// FindAuditLog finds audit log entries for a subject, newest first.
	FindAuditLog(ctx context.Context, subjectID string) ([]entities.AuditEntry, error)

	// FindAuditLogByAction finds audit log entries by action type.
	FindAuditLogByAction(ctx context.Context, action string, limit int) ([]entities.AuditEntry, error)
}

// RelationalDB is the full relational store used by the services.
type RelationalDB interface {
	WorkStore
	BranchStore
	VoteStore
	WikiStore
	LinkStore
	ProgressStore
	AuditLog

	// EnsureSchema creates the database schema if it doesn't exist.
	EnsureSchema(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
