// Package services implements the forklore use cases on top of the ports.
package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ersonp/forklore-core/internal/domain/entities"
	"github.com/ersonp/forklore-core/internal/domain/ports"
)

// timeNow returns the current time (can be mocked in tests).
var timeNow = func() time.Time {
	return time.Now().UTC()
}

// generateUUID returns a new UUID string.
func generateUUID() string {
	return uuid.New().String()
}

// nopMetrics discards every event.
type nopMetrics struct{}

func (nopMetrics) BranchCreated(entities.BranchKind) {}
func (nopMetrics) ForkRejected(string) {}
func (nopMetrics) VoteRecorded(string, bool) {}
func (nopMetrics) CanonTransitioned(entities.CanonStatus, entities.CanonStatus) {}

func metricsOrNop(m ports.Metrics) ports.Metrics {
	if m == nil {
		return nopMetrics{}
	}
	return m
}

// audit writes an audit entry. Audit failures never fail the operation that
// already committed; they are logged instead.
func audit(ctx context.Context, log ports.AuditLog, action, actorID, subjectID string, details map[string]any) {
	if err := log.LogAction(ctx, action, actorID, subjectID, details); err != nil {
		slog.WarnContext(ctx, "writing audit log", "action", action, "subject", subjectID, "error", err)
	}
}
