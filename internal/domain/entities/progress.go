package entities

// ProgressState says how much is known about a reader's position.
type ProgressState string

const (
	// ProgressKnown means Chapter is the highest chapter the reader has read.
	ProgressKnown ProgressState = "known"
	// ProgressAnonymous covers unauthenticated readers and readers with no
	// recorded progress.
	ProgressAnonymous ProgressState = "anonymous"
	// ProgressUnavailable means the progress lookup failed or is pending.
	ProgressUnavailable ProgressState = "unavailable"
)

// ReaderProgress is the reader position fed to the resolver and spoiler gate.
type ReaderProgress struct {
	State   ProgressState `json:"state"`
	Chapter int           `json:"chapter,omitempty"`
}

// KnownProgress returns progress at chapter.
func KnownProgress(chapter int) ReaderProgress {
	return ReaderProgress{State: ProgressKnown, Chapter: chapter}
}

// AnonymousProgress returns progress for a reader nobody knows about.
func AnonymousProgress() ReaderProgress {
	return ReaderProgress{State: ProgressAnonymous}
}

// UnavailableProgress returns progress for a failed lookup.
func UnavailableProgress() ReaderProgress {
	return ReaderProgress{State: ProgressUnavailable}
}

// IsKnown reports whether the chapter number is meaningful.
func (p ReaderProgress) IsKnown() bool {
	return p.State == ProgressKnown
}
