package observability

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/forklore-core/internal/domain/entities"
	"github.com/ersonp/forklore-core/internal/infrastructure/cache"
	"github.com/ersonp/forklore-core/internal/infrastructure/config"
)

func TestMetrics_DomainEvents(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.BranchCreated(entities.BranchMain)
	m.BranchCreated(entities.BranchFanFic)
	m.BranchCreated(entities.BranchFanFic)
	m.ForkRejected("duplicate")
	m.VoteRecorded("toggle", true)
	m.VoteRecorded("cast", false)
	m.CanonTransitioned(entities.CanonNonCanon, entities.CanonCandidate)

	assert.InDelta(t, 1.0, testutil.ToFloat64(m.BranchesCreated.WithLabelValues("MAIN")), 0)
	assert.InDelta(t, 2.0, testutil.ToFloat64(m.BranchesCreated.WithLabelValues("FAN_FIC")), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.ForksRejected.WithLabelValues("duplicate")), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.Votes.WithLabelValues("toggle", "true")), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.Votes.WithLabelValues("cast", "false")), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.CanonTransitions.WithLabelValues("NON_CANON", "CANDIDATE")), 0)
}

func TestMetrics_ObserveRequest(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.ObserveRequest(http.MethodGet, "/api/v1/branches/:id", http.StatusOK, 20*time.Millisecond)
	m.ObserveRequest(http.MethodGet, "/api/v1/branches/:id", http.StatusNotFound, 5*time.Millisecond)

	assert.InDelta(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/api/v1/branches/:id", "200")), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/api/v1/branches/:id", "404")), 0)
	assert.Equal(t, 1, testutil.CollectAndCount(m.HTTPDuration))
}

func TestMetrics_SeparateRegistries(t *testing.T) {
	// Registering twice on distinct registries must not panic.
	assert.NotPanics(t, func() {
		NewMetrics(prometheus.NewRegistry())
		NewMetrics(prometheus.NewRegistry())
	})
}

func TestRegisterCacheStats(t *testing.T) {
	reg := prometheus.NewRegistry()
	stats := cache.Stats{Hits: 4, Misses: 2, Evictions: 1, Size: 3}
	RegisterCacheStats(reg, func() cache.Stats { return stats })

	families, err := reg.Gather()
	require.NoError(t, err)

	values := make(map[string]float64)
	for _, mf := range families {
		metric := mf.GetMetric()[0]
		switch {
		case metric.GetCounter() != nil:
			values[mf.GetName()] = metric.GetCounter().GetValue()
		case metric.GetGauge() != nil:
			values[mf.GetName()] = metric.GetGauge().GetValue()
		}
	}

	assert.Equal(t, map[string]float64{
		"forklore_snapshot_cache_hits_total":      4,
		"forklore_snapshot_cache_misses_total":    2,
		"forklore_snapshot_cache_evictions_total": 1,
		"forklore_snapshot_cache_entries":         3,
	}, values)

	stats.Hits = 10
	families, err = reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == "forklore_snapshot_cache_hits_total" {
			assert.InDelta(t, 10.0, mf.GetMetric()[0].GetCounter().GetValue(), 0)
		}
	}
}

func TestInitTracer_NoEndpoint(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), config.TelemetryConfig{ServiceName: "forklore"})
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	shutdown(context.Background())
}
