package services

import "github.com/ersonp/forklore-core/internal/domain/entities"

// GateReason explains a spoiler gate decision.
type GateReason string

const (
	GateRevealedAnyway      GateReason = "revealed_anyway"
	GateProgressUnavailable GateReason = "progress_unavailable"
	GateAnonymous           GateReason = "anonymous"
	GateNotReached          GateReason = "not_reached"
	GateReached             GateReason = "reached"
)

// GateDecision is the outcome of the spoiler gate for one rendering.
type GateDecision struct {
	Gated  bool       `json:"gated"`
	Reason GateReason `json:"reason"`
}

// Gate decides whether content revealed at revealChapter must be hidden.
// Content is gated when the reader's chapter is known and below the reveal
// chapter, and also when progress could not be determined for a reader who
// has an identity. Anonymous visitors are not gated. revealAnyway overrides
// everything for a single rendering.
func Gate(revealChapter int, progress entities.ReaderProgress, revealAnyway bool) GateDecision {
	if revealAnyway {
		return GateDecision{Gated: false, Reason: GateRevealedAnyway}
	}

	switch progress.State {
	case entities.ProgressKnown:
		if revealChapter > progress.Chapter {
			return GateDecision{Gated: true, Reason: GateNotReached}
		}
		return GateDecision{Gated: false, Reason: GateReached}
	case entities.ProgressAnonymous:
		return GateDecision{Gated: false, Reason: GateAnonymous}
	default:
		return GateDecision{Gated: true, Reason: GateProgressUnavailable}
	}
}
