package mocks

import (
	"context"

	"github.com/ersonp/forklore-core/internal/domain/ports"
)

// SnapshotDrafter is a mock implementation of ports.SnapshotDrafter.
type SnapshotDrafter struct {
	// Draft, when set, computes the response; otherwise Result is returned.
	Draft  func(req ports.DraftRequest) string
	Result string
	Err    error

	// Call tracking
	Requests []ports.DraftRequest
}

// DraftSnapshot returns the configured draft or error.
func (m *SnapshotDrafter) DraftSnapshot(ctx context.Context, req ports.DraftRequest) (string, error) {
	m.Requests = append(m.Requests, req)
	if m.Err != nil {
		return "", m.Err
	}
	if m.Draft != nil {
		return m.Draft(req), nil
	}
	return m.Result, nil
}
