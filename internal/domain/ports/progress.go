package ports

import (
	"context"

	"github.com/ersonp/forklore-core/internal/domain/entities"
)

// ProgressSource answers how far a reader has read in a work. An empty
// userID means an anonymous reader. Implementations return an error when the
// upstream is unreachable; callers degrade instead of failing the read.
type ProgressSource interface {
	Progress(ctx context.Context, userID, workID string) (entities.ReaderProgress, error)
}
