package ports

import "github.com/ersonp/forklore-core/internal/domain/entities"

// Metrics receives domain events worth counting. Implementations must be
// safe for concurrent use.
type Metrics interface {
	BranchCreated(kind entities.BranchKind)
	ForkRejected(reason string)
	VoteRecorded(action string, changed bool)
	CanonTransitioned(from, to entities.CanonStatus)
}
