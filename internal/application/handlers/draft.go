package handlers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ersonp/forklore-core/internal/domain/entities"
	"github.com/ersonp/forklore-core/internal/domain/services"
)

// maxChapterBytes bounds the chapter files read into memory.
const maxChapterBytes = 4 << 20

// DraftHandler feeds chapter files to the AI assist pipeline.
type DraftHandler struct {
	assist *services.AssistService
}

// NewDraftHandler creates a new draft handler.
func NewDraftHandler(assist *services.AssistService) *DraftHandler {
	return &DraftHandler{
		assist: assist,
	}
}

// DraftResult contains the result of drafting from a chapter file.
type DraftResult struct {
	FilePath string
	Snapshot *entities.WikiSnapshot
}

// Handle reads a chapter file and appends an AI-drafted snapshot of the
// entry valid from validFrom.
func (h *DraftHandler) Handle(ctx context.Context, actorID, entryID, filePath string, validFrom int) (*DraftResult, error) {
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("accessing file: %w", err)
	}

	if info.IsDir() {
		return nil, fmt.Errorf("path is a directory, not a file: %s", absPath)
	}
	if info.Size() > maxChapterBytes {
		return nil, fmt.Errorf("chapter file too large: %d bytes (max %d)", info.Size(), maxChapterBytes)
	}

	text, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}

	snapshot, err := h.assist.DraftSnapshot(ctx, actorID, entryID, string(text), validFrom)
	if err != nil {
		return nil, fmt.Errorf("drafting snapshot: %w", err)
	}

	return &DraftResult{
		FilePath: absPath,
		Snapshot: snapshot,
	}, nil
}
