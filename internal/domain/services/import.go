package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ersonp/forklore-core/internal/domain/entities"
	"github.com/ersonp/forklore-core/internal/infrastructure/parsers"
)

// ConflictStrategy defines how to handle snapshots that already exist.
type ConflictStrategy string

const (
	// ConflictSkip skips rows whose entry already has a snapshot at that chapter.
	ConflictSkip ConflictStrategy = "skip"
	// ConflictFail stops the import at the first existing snapshot.
	ConflictFail ConflictStrategy = "fail"
)

// IsValid reports whether c is a known strategy.
func (c ConflictStrategy) IsValid() bool {
	return c == ConflictSkip || c == ConflictFail
}

// ImportOptions controls import behavior.
type ImportOptions struct {
	DryRun     bool             // Validate without saving
	OnConflict ConflictStrategy // How to handle existing snapshots
}

// ImportError represents an error for a specific row during import.
type ImportError struct {
	Line    int    // Line number (1-indexed, 0 if unknown)
	Field   string // Which field has the error
	Value   string // The invalid value
	Message string // Human-readable error message
}

func (e ImportError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// ImportResult contains the result of an import operation.
type ImportResult struct {
	EntriesCreated int
	Imported       int
	Skipped        int
	Errors         []ImportError
}

// ImportService loads snapshot rows into a branch's wiki.
type ImportService struct {
	wiki *WikiService
}

// NewImportService creates a new import service.
func NewImportService(wiki *WikiService) *ImportService {
	return &ImportService{wiki: wiki}
}

// Import validates every row first, then creates missing entries and
// appends snapshots. Invalid rows are reported and left out; storage errors
// other than duplicates abort the import.
func (s *ImportService) Import(ctx context.Context, actorID, branchID string, rows []parsers.RawSnapshot, opts ImportOptions) (*ImportResult, error) {
	if opts.OnConflict == "" {
		opts.OnConflict = ConflictSkip
	}
	if !opts.OnConflict.IsValid() {
		return nil, fmt.Errorf("%w: unknown conflict strategy %q", entities.ErrInvalidInput, opts.OnConflict)
	}
	if _, err := s.wiki.authoredBranch(ctx, actorID, branchID); err != nil {
		return nil, err
	}

	result := &ImportResult{}
	valid, validationErrors := validateSnapshots(rows)
	result.Errors = validationErrors

	if len(valid) == 0 {
		return result, nil
	}
	if opts.DryRun {
		result.Imported = len(valid)
		return result, nil
	}

	entryIDs := make(map[string]string)
	for i := range valid {
		row := &valid[i]

		entryID, created, err := s.ensureEntry(ctx, actorID, branchID, row, entryIDs)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", row.LineNum, err)
		}
		if created {
			result.EntriesCreated++
		}

		_, err = s.wiki.AppendSnapshot(ctx, actorID, entryID, SnapshotInput{
			Content:          row.Content,
			ValidFromChapter: *row.ValidFrom,
			Contributor:      entities.ContributorKind(strings.ToUpper(row.Contributor)),
		})
		if errors.Is(err, entities.ErrDuplicateSnapshot) && opts.OnConflict == ConflictSkip {
			result.Skipped++
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", row.LineNum, err)
		}
		result.Imported++
	}

	audit(ctx, s.wiki.store, entities.AuditSnapshotsImported, actorID, branchID, map[string]any{
		"imported":        result.Imported,
		"skipped":         result.Skipped,
		"entries_created": result.EntriesCreated,
		"invalid":         len(result.Errors),
	})
	return result, nil
}

// ensureEntry returns the ID of the named entry, creating it if needed.
func (s *ImportService) ensureEntry(ctx context.Context, actorID, branchID string, row *parsers.RawSnapshot, known map[string]string) (string, bool, error) {
	key := strings.ToLower(row.Entry)
	if id, ok := known[key]; ok {
		return id, false, nil
	}

	existing, err := s.wiki.store.FindEntryByName(ctx, branchID, row.Entry)
	if err != nil {
		return "", false, fmt.Errorf("finding entry: %w", err)
	}
	if existing != nil {
		known[key] = existing.ID
		return existing.ID, false, nil
	}

	entry, err := s.wiki.CreateEntry(ctx, actorID, EntryInput{
		BranchID:        branchID,
		Name:            row.Entry,
		FirstAppearance: row.FirstAppearance,
	})
	if err != nil {
		return "", false, err
	}
	known[key] = entry.ID
	return entry.ID, true, nil
}

// validateSnapshots validates raw rows and returns valid ones with any errors.
func validateSnapshots(rows []parsers.RawSnapshot) ([]parsers.RawSnapshot, []ImportError) {
	valid := make([]parsers.RawSnapshot, 0, len(rows))
	var errs []ImportError

	for i := range rows {
		raw := rows[i]
		if raw.LineNum == 0 {
			raw.LineNum = i + 1
		}
		raw.Entry = strings.TrimSpace(raw.Entry)

		if err := validateRawSnapshot(&raw); err != nil {
			errs = append(errs, *err)
			continue
		}
		valid = append(valid, raw)
	}

	return valid, errs
}

// validateRawSnapshot validates a single row and returns an error if invalid.
func validateRawSnapshot(raw *parsers.RawSnapshot) *ImportError {
	if raw.Entry == "" {
		return &ImportError{Line: raw.LineNum, Field: "entry", Message: "missing required field: entry"}
	}
	if strings.TrimSpace(raw.Content) == "" {
		return &ImportError{Line: raw.LineNum, Field: "content", Message: "missing required field: content"}
	}
	if raw.ValidFrom == nil {
		return &ImportError{Line: raw.LineNum, Field: "valid_from", Message: "missing required field: valid_from"}
	}
	if *raw.ValidFrom < 0 {
		return &ImportError{
			Line:    raw.LineNum,
			Field:   "valid_from",
			Value:   fmt.Sprintf("%d", *raw.ValidFrom),
			Message: "valid_from must not be negative",
		}
	}
	if raw.FirstAppearance != nil && *raw.FirstAppearance < 0 {
		return &ImportError{
			Line:    raw.LineNum,
			Field:   "first_appearance",
			Value:   fmt.Sprintf("%d", *raw.FirstAppearance),
			Message: "first_appearance must not be negative",
		}
	}
	if raw.Contributor != "" && !entities.ContributorKind(strings.ToUpper(raw.Contributor)).IsValid() {
		return &ImportError{
			Line:    raw.LineNum,
			Field:   "contributor",
			Value:   raw.Contributor,
			Message: fmt.Sprintf("invalid contributor %q (valid: USER, AI)", raw.Contributor),
		}
	}
	return nil
}
