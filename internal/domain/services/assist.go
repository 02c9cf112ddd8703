package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/ersonp/forklore-core/internal/domain/entities"
	"github.com/ersonp/forklore-core/internal/domain/ports"
)

const (
	// DefaultChunkSize is the default size for chapter text chunks.
	DefaultChunkSize = 6000
	// DefaultChunkOverlap is the default overlap between chunks.
	DefaultChunkOverlap = 300
)

// AssistService drafts wiki revisions from chapter text with the AI pipeline
// and stores them as AI-contributed snapshots.
type AssistService struct {
	drafter    ports.SnapshotDrafter
	wiki       *WikiService
	visibility *VisibilityService
}

// NewAssistService creates a new AssistService.
func NewAssistService(drafter ports.SnapshotDrafter, wiki *WikiService, visibility *VisibilityService) *AssistService {
	return &AssistService{
		drafter:    drafter,
		wiki:       wiki,
		visibility: visibility,
	}
}

// DraftSnapshot asks the drafter for an updated entry after reading
// chapterText and appends the result as a snapshot valid from validFrom.
// Long chapters are fed in chunks, each refining the previous draft.
func (s *AssistService) DraftSnapshot(ctx context.Context, actorID, entryID, chapterText string, validFrom int) (*entities.WikiSnapshot, error) {
	if strings.TrimSpace(chapterText) == "" {
		return nil, fmt.Errorf("%w: chapter text is required", entities.ErrInvalidInput)
	}
	if validFrom < 0 {
		return nil, fmt.Errorf("%w: valid-from chapter must not be negative", entities.ErrInvalidInput)
	}

	entry, err := s.wiki.findEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if _, err := s.wiki.authoredBranch(ctx, actorID, entry.BranchID); err != nil {
		return nil, err
	}

	snapshots, err := s.visibility.Snapshots(ctx, entry.ID)
	if err != nil {
		return nil, err
	}
	current := ""
	if resolved := ResolveSnapshot(*entry, snapshots, entities.KnownProgress(validFrom)); resolved.Snapshot != nil {
		current = resolved.Snapshot.Content
	}

	draft := current
	for i, chunk := range ChunkText(chapterText, DefaultChunkSize, DefaultChunkOverlap) {
		// Sequential: each chunk refines the previous draft.
		draft, err = s.drafter.DraftSnapshot(ctx, ports.DraftRequest{
			EntryName:      entry.Name,
			CurrentContent: draft,
			ChapterText:    chunk,
			Chapter:        validFrom,
		})
		if err != nil {
			return nil, fmt.Errorf("drafting from chunk %d: %w", i, err)
		}
	}
	if strings.TrimSpace(draft) == "" || draft == current {
		return nil, fmt.Errorf("%w: drafter proposed no change", entities.ErrInvalidInput)
	}

	return s.wiki.AppendSnapshot(ctx, actorID, entry.ID, SnapshotInput{
		Content:          draft,
		ValidFromChapter: validFrom,
		Contributor:      entities.ContributorAI,
	})
}

// ChunkText splits text into chunks of roughly chunkSize characters along
// paragraph boundaries, carrying overlap characters into the next chunk.
func ChunkText(text string, chunkSize int, overlap int) []string {
	if len(text) <= chunkSize {
		return []string{text}
	}

	var chunks []string
	paragraphs := strings.Split(text, "\n\n")

	var currentChunk strings.Builder
	for _, para := range paragraphs {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		if currentChunk.Len()+len(para)+2 > chunkSize && currentChunk.Len() > 0 {
			chunks = append(chunks, currentChunk.String())

			overlapText := overlapTail(currentChunk.String(), overlap)
			currentChunk.Reset()
			currentChunk.WriteString(overlapText)
		}

		if currentChunk.Len() > 0 {
			currentChunk.WriteString("\n\n")
		}
		currentChunk.WriteString(para)
	}

	if currentChunk.Len() > 0 {
		chunks = append(chunks, currentChunk.String())
	}

	if len(chunks) == 0 && len(text) > 0 {
		chunks = append(chunks, text)
	}

	return chunks
}

// overlapTail returns the last n bytes of text.
func overlapTail(text string, n int) string {
	if len(text) <= n {
		return text
	}
	return text[len(text)-n:]
}
