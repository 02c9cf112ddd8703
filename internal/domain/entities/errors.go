package entities

import (
	"errors"
	"fmt"
)

// Error kinds. Every domain error wraps exactly one of these so callers can
// classify failures with errors.Is without knowing the concrete error.
var (
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrValidation = errors.New("validation failed")
	ErrForbidden  = errors.New("forbidden")
)

// Not-found errors.
var (
	ErrWorkNotFound        = fmt.Errorf("work %w", ErrNotFound)
	ErrBranchNotFound      = fmt.Errorf("branch %w", ErrNotFound)
	ErrParentNotFound      = fmt.Errorf("parent branch %w", ErrNotFound)
	ErrEntryNotFound       = fmt.Errorf("wiki entry %w", ErrNotFound)
	ErrTagNotFound         = fmt.Errorf("tag %w", ErrNotFound)
	ErrEntryNotInLineage   = fmt.Errorf("wiki entry outside branch lineage: %w", ErrNotFound)
	ErrLinkRequestNotFound = fmt.Errorf("link request %w", ErrNotFound)
)

// Conflict errors. Clients should re-read state before retrying.
var (
	ErrConcurrentForkConflict = fmt.Errorf("identical fork submitted moments ago: %w", ErrConflict)
	ErrVoteConflict           = fmt.Errorf("vote changed concurrently: %w", ErrConflict)
	ErrVersionConflict        = fmt.Errorf("branch was modified: %w", ErrConflict)
	ErrDuplicateEntry         = fmt.Errorf("wiki entry name already used in branch: %w", ErrConflict)
	ErrDuplicateSnapshot      = fmt.Errorf("snapshot already exists for chapter: %w", ErrConflict)
	ErrDuplicateTag           = fmt.Errorf("tag name already used in branch: %w", ErrConflict)
	ErrInvalidTransition      = fmt.Errorf("canon status transition not allowed: %w", ErrConflict)
	ErrPendingLinkRequest     = fmt.Errorf("a link request is already pending: %w", ErrConflict)
	ErrLinkRequestClosed      = fmt.Errorf("link request was already reviewed: %w", ErrConflict)
	ErrAlreadyLinked          = fmt.Errorf("branch is already linked: %w", ErrConflict)
)

// Validation errors.
var (
	ErrInvalidForkPoint = fmt.Errorf("invalid fork point: %w", ErrValidation)
	ErrInvalidKind      = fmt.Errorf("invalid branch kind: %w", ErrValidation)
	ErrInvalidInput     = fmt.Errorf("invalid input: %w", ErrValidation)
)

// Permission errors.
var (
	ErrNotAuthor           = fmt.Errorf("only the author may do this: %w", ErrForbidden)
	ErrMainBranchImmutable = fmt.Errorf("main branch cannot be changed this way: %w", ErrForbidden)
	ErrBranchingDisabled   = fmt.Errorf("the author has closed this work to new branches: %w", ErrForbidden)
)

// ErrorKind returns a short machine-readable name for err's kind, or
// "internal" when err does not wrap a known kind.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	default:
		return "internal"
	}
}
