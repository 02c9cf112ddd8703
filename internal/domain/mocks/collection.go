package mocks

import "context"

// CollectionManager is a mock implementation of ports.CollectionManager.
type CollectionManager struct {
	EnsureErr error
	DeleteErr error

	// VectorSizes records the size passed to each EnsureCollection call.
	VectorSizes []uint64
	Deleted     int
}

// EnsureCollection records the vector size and returns EnsureErr.
func (m *CollectionManager) EnsureCollection(_ context.Context, vectorSize uint64) error {
	m.VectorSizes = append(m.VectorSizes, vectorSize)
	return m.EnsureErr
}

// DeleteCollection returns DeleteErr.
func (m *CollectionManager) DeleteCollection(context.Context) error {
	m.Deleted++
	return m.DeleteErr
}
