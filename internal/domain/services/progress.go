package services

import (
	"context"
	"fmt"

	"github.com/ersonp/forklore-core/internal/domain/entities"
	"github.com/ersonp/forklore-core/internal/domain/ports"
)

// StoredProgress answers progress lookups from the local reading_progress
// table. Readers with nothing recorded are treated as anonymous.
type StoredProgress struct {
	store ports.ProgressStore
}

// NewStoredProgress creates a ProgressSource backed by store.
func NewStoredProgress(store ports.ProgressStore) *StoredProgress {
	return &StoredProgress{store: store}
}

// Progress implements ports.ProgressSource.
func (p *StoredProgress) Progress(ctx context.Context, userID, workID string) (entities.ReaderProgress, error) {
	if userID == "" {
		return entities.AnonymousProgress(), nil
	}
	chapter, ok, err := p.store.FindProgress(ctx, userID, workID)
	if err != nil {
		return entities.UnavailableProgress(), fmt.Errorf("finding progress: %w", err)
	}
	if !ok {
		return entities.AnonymousProgress(), nil
	}
	return entities.KnownProgress(chapter), nil
}
