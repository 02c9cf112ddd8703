package entities

import "time"

// ContributorKind records who authored a snapshot.
type ContributorKind string

const (
	ContributorUser ContributorKind = "USER"
	ContributorAI   ContributorKind = "AI"
)

// IsValid reports whether c is a known contributor kind.
func (c ContributorKind) IsValid() bool {
	return c == ContributorUser || c == ContributorAI
}

// WikiEntry is a named piece of world knowledge scoped to a branch.
// A nil FirstAppearance means the entry is visible from the start.
type WikiEntry struct {
	ID              string          `json:"id"`
	BranchID        string          `json:"branch_id"`
	Name            string          `json:"name"`
	FirstAppearance *int            `json:"first_appearance,omitempty"`
	ImageURL        string          `json:"image_url,omitempty"`
	HiddenNote      string          `json:"hidden_note,omitempty"`
	Tags            []TagDefinition `json:"tags,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// AppearsBy reports whether the entry has appeared by chapter.
func (e *WikiEntry) AppearsBy(chapter int) bool {
	return e.FirstAppearance == nil || *e.FirstAppearance <= chapter
}

// WikiSnapshot is an immutable revision of an entry's content that becomes
// current at ValidFromChapter. Chapter 0 is the initial setting.
type WikiSnapshot struct {
	ID               string          `json:"id"`
	EntryID          string          `json:"entry_id"`
	Content          string          `json:"content"`
	ValidFromChapter int             `json:"valid_from_chapter"`
	Contributor      ContributorKind `json:"contributor"`
	CreatedAt        time.Time       `json:"created_at"`
}

// TagDefinition is a branch-scoped label for wiki entries.
type TagDefinition struct {
	ID           string    `json:"id"`
	BranchID     string    `json:"branch_id"`
	Name         string    `json:"name"`
	Color        string    `json:"color,omitempty"`
	Description  string    `json:"description,omitempty"`
	DisplayOrder int       `json:"display_order"`
	CreatedAt    time.Time `json:"created_at"`
}
