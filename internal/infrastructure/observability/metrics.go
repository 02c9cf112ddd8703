// Package observability provides Prometheus metrics for the forklore server.
//
// Metrics are registered on the registry passed in, never the global one,
// so tests and embedded servers can hold independent instances. All metric
// operations are safe for concurrent use.
package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ersonp/forklore-core/internal/domain/entities"
	"github.com/ersonp/forklore-core/internal/domain/ports"
	"github.com/ersonp/forklore-core/internal/infrastructure/cache"
)

const (
	metricsNamespace = "forklore"
	branchSubsystem  = "branch"
	httpSubsystem    = "http"
	cacheSubsystem   = "snapshot_cache"
)

var _ ports.Metrics = (*Metrics)(nil)

// Metrics holds the counters and histograms of the domain and HTTP layers.
type Metrics struct {
	// BranchesCreated counts created branches. Labels: kind.
	BranchesCreated *prometheus.CounterVec

	// ForksRejected counts refused forks. Labels: reason
	// (duplicate, invalid_fork_point, parent_not_found).
	ForksRejected *prometheus.CounterVec

	// Votes counts vote operations. Labels: action (toggle, cast, withdraw),
	// changed (true, false).
	Votes *prometheus.CounterVec

	// CanonTransitions counts promotion workflow steps. Labels: from, to.
	CanonTransitions *prometheus.CounterVec

	// HTTPRequests counts served requests. Labels: method, route, status.
	HTTPRequests *prometheus.CounterVec

	// HTTPDuration measures request latency. Labels: method, route.
	HTTPDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		BranchesCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: branchSubsystem,
				Name:      "created_total",
				Help:      "Total number of branches created by kind",
			},
			[]string{"kind"},
		),
		ForksRejected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: branchSubsystem,
				Name:      "fork_rejected_total",
				Help:      "Total number of refused forks by reason",
			},
			[]string{"reason"},
		),
		Votes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: branchSubsystem,
				Name:      "votes_total",
				Help:      "Total number of vote operations by action and outcome",
			},
			[]string{"action", "changed"},
		),
		CanonTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: branchSubsystem,
				Name:      "canon_transitions_total",
				Help:      "Total number of canon status changes",
			},
			[]string{"from", "to"},
		),
		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: httpSubsystem,
				Name:      "requests_total",
				Help:      "Total number of HTTP requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: httpSubsystem,
				Name:      "request_duration_seconds",
				Help:      "HTTP request latency in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
			[]string{"method", "route"},
		),
	}
}

// BranchCreated implements ports.Metrics.
func (m *Metrics) BranchCreated(kind entities.BranchKind) {
	m.BranchesCreated.WithLabelValues(string(kind)).Inc()
}

// ForkRejected implements ports.Metrics.
func (m *Metrics) ForkRejected(reason string) {
	m.ForksRejected.WithLabelValues(reason).Inc()
}

// VoteRecorded implements ports.Metrics.
func (m *Metrics) VoteRecorded(action string, changed bool) {
	m.Votes.WithLabelValues(action, strconv.FormatBool(changed)).Inc()
}

// CanonTransitioned implements ports.Metrics.
func (m *Metrics) CanonTransitioned(from, to entities.CanonStatus) {
	m.CanonTransitions.WithLabelValues(string(from), string(to)).Inc()
}

// ObserveRequest records one served HTTP request. route is the matched
// route pattern, not the raw path, to keep label cardinality bounded.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// RegisterCacheStats exposes snapshot cache statistics read from stats at
// scrape time.
func RegisterCacheStats(reg prometheus.Registerer, stats func() cache.Stats) {
	factory := promauto.With(reg)

	factory.NewCounterFunc(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: cacheSubsystem,
		Name:      "hits_total",
		Help:      "Snapshot cache hits",
	}, func() float64 { return float64(stats().Hits) })

	factory.NewCounterFunc(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: cacheSubsystem,
		Name:      "misses_total",
		Help:      "Snapshot cache misses",
	}, func() float64 { return float64(stats().Misses) })

	factory.NewCounterFunc(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: cacheSubsystem,
		Name:      "evictions_total",
		Help:      "Snapshot cache evictions",
	}, func() float64 { return float64(stats().Evictions) })

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: cacheSubsystem,
		Name:      "entries",
		Help:      "Entries currently held by the snapshot cache",
	}, func() float64 { return float64(stats().Size) })
}
