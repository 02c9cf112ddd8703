package mocks

import (
	"sync"

	"github.com/ersonp/forklore-core/internal/domain/entities"
)

// Metrics is a mock implementation of ports.Metrics that counts events.
type Metrics struct {
	mu sync.Mutex

	Branches    map[entities.BranchKind]int
	Rejections  map[string]int
	Votes       map[string]int
	Transitions map[string]int // "FROM->TO"
}

// NewMetrics creates a new mock Metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		Branches:    make(map[entities.BranchKind]int),
		Rejections:  make(map[string]int),
		Votes:       make(map[string]int),
		Transitions: make(map[string]int),
	}
}

// BranchCreated counts a created branch.
func (m *Metrics) BranchCreated(kind entities.BranchKind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Branches[kind]++
}

// ForkRejected counts a refused fork.
func (m *Metrics) ForkRejected(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Rejections[reason]++
}

// VoteRecorded counts vote operations that changed state.
func (m *Metrics) VoteRecorded(action string, changed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if changed {
		m.Votes[action]++
	}
}

// CanonTransitioned counts a status change.
func (m *Metrics) CanonTransitioned(from, to entities.CanonStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Transitions[string(from)+"->"+string(to)]++
}
