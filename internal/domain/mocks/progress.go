package mocks

import (
	"context"

	"github.com/ersonp/forklore-core/internal/domain/entities"
)

// ProgressSource is a mock implementation of ports.ProgressSource.
type ProgressSource struct {
	Result entities.ReaderProgress
	Err    error

	// Call tracking
	CallCount int
}

// Progress returns the configured progress or error.
func (m *ProgressSource) Progress(ctx context.Context, userID, workID string) (entities.ReaderProgress, error) {
	m.CallCount++
	if m.Err != nil {
		return entities.UnavailableProgress(), m.Err
	}
	return m.Result, nil
}
