package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ersonp/forklore-core/internal/domain/entities"
)

const entryColumns = `e.id, e.branch_id, e.name, e.first_appearance, e.image_url, e.hidden_note, e.created_at, e.updated_at`

const tagColumns = `t.id, t.branch_id, t.name, t.color, t.description, t.display_order, t.created_at`

// CreateEntry inserts an entry, its first snapshot when initial is non-nil
// and its tags in one transaction.
func (r *Repository) CreateEntry(ctx context.Context, entry *entities.WikiEntry, initial *entities.WikiSnapshot, tagIDs []string) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if err := requireLiveBranch(ctx, tx, entry.BranchID); err != nil {
			return err
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO wiki_entries (id, branch_id, name, first_appearance, image_url, hidden_note, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`,
			entry.ID,
			entry.BranchID,
			entry.Name,
			nullInt(entry.FirstAppearance),
			entry.ImageURL,
			entry.HiddenNote,
			entry.CreatedAt,
			entry.UpdatedAt,
		)
		if isConstraintError(err) {
			return entities.ErrDuplicateEntry
		}
		if err != nil {
			return fmt.Errorf("inserting wiki entry: %w", err)
		}

		if initial != nil {
			if err := insertSnapshot(ctx, tx, initial); err != nil {
				return err
			}
		}
		return tagEntry(ctx, tx, entry.ID, entry.BranchID, tagIDs)
	})
}

// FindEntry finds an entry by ID with its tags.
func (r *Repository) FindEntry(ctx context.Context, entryID string) (*entities.WikiEntry, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM wiki_entries e WHERE e.id = ?`, entryID)
	return r.scanEntryWithTags(ctx, row)
}

// FindEntryByName finds an entry by branch and exact name.
func (r *Repository) FindEntryByName(ctx context.Context, branchID, name string) (*entities.WikiEntry, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM wiki_entries e WHERE e.branch_id = ? AND e.name = ?`,
		branchID, name,
	)
	return r.scanEntryWithTags(ctx, row)
}

// ListEntries lists a branch's entries ordered by name. A non-empty tagID
// keeps only entries carrying that tag.
func (r *Repository) ListEntries(ctx context.Context, branchID, tagID string) ([]entities.WikiEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM wiki_entries e WHERE e.branch_id = ?`
	args := []any{branchID}
	if tagID != "" {
		query += ` AND EXISTS (SELECT 1 FROM wiki_entry_tags et WHERE et.entry_id = e.id AND et.tag_id = ?)`
		args = append(args, tagID)
	}
	query += ` ORDER BY e.name`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying wiki entries: %w", err)
	}
	defer rows.Close()

	entries := make([]entities.WikiEntry, 0, 16)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning wiki entry: %w", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating wiki entries: %w", err)
	}
	rows.Close()

	tags, err := r.branchEntryTags(ctx, branchID)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		entries[i].Tags = tags[entries[i].ID]
	}
	return entries, nil
}

// AppendSnapshot inserts a new snapshot for an existing entry.
func (r *Repository) AppendSnapshot(ctx context.Context, snapshot *entities.WikiSnapshot) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		var exists bool
		err := tx.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM wiki_entries WHERE id = ?)`, snapshot.EntryID,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("checking wiki entry: %w", err)
		}
		if !exists {
			return entities.ErrEntryNotFound
		}

		if err := insertSnapshot(ctx, tx, snapshot); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE wiki_entries SET updated_at = ? WHERE id = ?`,
			snapshot.CreatedAt, snapshot.EntryID,
		)
		if err != nil {
			return fmt.Errorf("touching wiki entry: %w", err)
		}
		return nil
	})
}

// ListSnapshots returns an entry's snapshots ordered by valid-from ascending.
func (r *Repository) ListSnapshots(ctx context.Context, entryID string) ([]entities.WikiSnapshot, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, entry_id, content, valid_from_chapter, contributor, created_at
		FROM wiki_snapshots
		WHERE entry_id = ?
		ORDER BY valid_from_chapter ASC
	`, entryID)
	if err != nil {
		return nil, fmt.Errorf("querying wiki snapshots: %w", err)
	}
	defer rows.Close()

	snapshots := make([]entities.WikiSnapshot, 0, 8)
	for rows.Next() {
		var s entities.WikiSnapshot
		var contributor string
		if err := rows.Scan(
			&s.ID,
			&s.EntryID,
			&s.Content,
			&s.ValidFromChapter,
			&contributor,
			&s.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning wiki snapshot: %w", err)
		}
		s.Contributor = entities.ContributorKind(contributor)
		snapshots = append(snapshots, s)
	}
	return snapshots, rows.Err()
}

// CreateTag inserts a tag definition.
func (r *Repository) CreateTag(ctx context.Context, tag *entities.TagDefinition) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO wiki_tags (id, branch_id, name, color, description, display_order, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		tag.ID,
		tag.BranchID,
		tag.Name,
		tag.Color,
		tag.Description,
		tag.DisplayOrder,
		tag.CreatedAt,
	)
	if isConstraintError(err) {
		return entities.ErrDuplicateTag
	}
	if err != nil {
		return fmt.Errorf("inserting tag: %w", err)
	}
	return nil
}

// ListTags lists a branch's tags by display order.
func (r *Repository) ListTags(ctx context.Context, branchID string) ([]entities.TagDefinition, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+tagColumns+` FROM wiki_tags t WHERE t.branch_id = ? ORDER BY t.display_order, t.name`,
		branchID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying tags: %w", err)
	}
	defer rows.Close()

	tags := make([]entities.TagDefinition, 0, 8)
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, err
		}
		tags = append(tags, *t)
	}
	return tags, rows.Err()
}

// SetEntryTags replaces an entry's tags. Tags must belong to the entry's branch.
func (r *Repository) SetEntryTags(ctx context.Context, entryID string, tagIDs []string) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		var branchID string
		err := tx.QueryRowContext(ctx, `SELECT branch_id FROM wiki_entries WHERE id = ?`, entryID).Scan(&branchID)
		if err == sql.ErrNoRows {
			return entities.ErrEntryNotFound
		}
		if err != nil {
			return fmt.Errorf("loading wiki entry: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM wiki_entry_tags WHERE entry_id = ?`, entryID); err != nil {
			return fmt.Errorf("clearing entry tags: %w", err)
		}
		return tagEntry(ctx, tx, entryID, branchID, tagIDs)
	})
}

// tagEntry attaches tags of branchID to an entry. An unknown tag, or one
// from another branch, fails with ErrTagNotFound.
func tagEntry(ctx context.Context, tx *sql.Tx, entryID, branchID string, tagIDs []string) error {
	for _, tagID := range tagIDs {
		res, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO wiki_entry_tags (entry_id, tag_id)
			SELECT ?, id FROM wiki_tags WHERE id = ? AND branch_id = ?
		`, entryID, tagID, branchID)
		if err != nil {
			return fmt.Errorf("tagging entry: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: %s", entities.ErrTagNotFound, tagID)
		}
	}
	return nil
}

// insertSnapshot writes a snapshot row, mapping the (entry, valid-from)
// uniqueness violation to ErrDuplicateSnapshot.
func insertSnapshot(ctx context.Context, tx *sql.Tx, s *entities.WikiSnapshot) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO wiki_snapshots (id, entry_id, content, valid_from_chapter, contributor, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		s.ID,
		s.EntryID,
		s.Content,
		s.ValidFromChapter,
		string(s.Contributor),
		s.CreatedAt,
	)
	if isConstraintError(err) {
		return fmt.Errorf("%w: chapter %d", entities.ErrDuplicateSnapshot, s.ValidFromChapter)
	}
	if err != nil {
		return fmt.Errorf("inserting wiki snapshot: %w", err)
	}
	return nil
}

// scanEntry scans one row selected with entryColumns.
func scanEntry(row rowScanner) (*entities.WikiEntry, error) {
	var e entities.WikiEntry
	var firstAppearance sql.NullInt64
	err := row.Scan(
		&e.ID,
		&e.BranchID,
		&e.Name,
		&firstAppearance,
		&e.ImageURL,
		&e.HiddenNote,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.FirstAppearance = intPtr(firstAppearance)
	return &e, nil
}

// scanEntryWithTags scans a single entry row and loads its tags.
func (r *Repository) scanEntryWithTags(ctx context.Context, row *sql.Row) (*entities.WikiEntry, error) {
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning wiki entry: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+tagColumns+`
		FROM wiki_entry_tags et
		JOIN wiki_tags t ON t.id = et.tag_id
		WHERE et.entry_id = ?
		ORDER BY t.display_order, t.name
	`, e.ID)
	if err != nil {
		return nil, fmt.Errorf("querying entry tags: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, err
		}
		e.Tags = append(e.Tags, *t)
	}
	return e, rows.Err()
}

// branchEntryTags loads the tags of every entry in a branch, keyed by entry.
func (r *Repository) branchEntryTags(ctx context.Context, branchID string) (map[string][]entities.TagDefinition, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT et.entry_id, `+tagColumns+`
		FROM wiki_entry_tags et
		JOIN wiki_tags t ON t.id = et.tag_id
		WHERE t.branch_id = ?
		ORDER BY t.display_order, t.name
	`, branchID)
	if err != nil {
		return nil, fmt.Errorf("querying entry tags: %w", err)
	}
	defer rows.Close()

	tags := make(map[string][]entities.TagDefinition)
	for rows.Next() {
		var entryID string
		var t entities.TagDefinition
		if err := rows.Scan(
			&entryID,
			&t.ID,
			&t.BranchID,
			&t.Name,
			&t.Color,
			&t.Description,
			&t.DisplayOrder,
			&t.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning entry tag: %w", err)
		}
		tags[entryID] = append(tags[entryID], t)
	}
	return tags, rows.Err()
}

// scanTag scans one row selected with tagColumns.
func scanTag(row rowScanner) (*entities.TagDefinition, error) {
	var t entities.TagDefinition
	if err := row.Scan(
		&t.ID,
		&t.BranchID,
		&t.Name,
		&t.Color,
		&t.Description,
		&t.DisplayOrder,
		&t.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("scanning tag: %w", err)
	}
	return &t, nil
}
