package ports

import "context"

// CollectionManager handles vector collection lifecycle operations.
// It is separate from WikiIndex because index data operations do not need
// to manage the collection itself.
type CollectionManager interface {
	// EnsureCollection creates the collection if it doesn't exist.
	EnsureCollection(ctx context.Context, vectorSize uint64) error

	// DeleteCollection removes the collection and all its data.
	DeleteCollection(ctx context.Context) error
}
