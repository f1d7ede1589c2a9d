package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prreview/loadgen/internal/performance"
)

func gather(t *testing.T, collectors ...prometheus.Collector) map[string]*dto.MetricFamily {
	t.Helper()

	reg := prometheus.NewRegistry()
	for _, c := range collectors {
		require.NoError(t, reg.Register(c))
	}
	families, err := reg.Gather()
	require.NoError(t, err)

	result := make(map[string]*dto.MetricFamily, len(families))
	for _, mf := range families {
		result[mf.GetName()] = mf
	}
	return result
}

// labelled finds the series whose labels include every pair in want.
func labelled(mf *dto.MetricFamily, want map[string]string) *dto.Metric {
	for _, m := range mf.GetMetric() {
		matched := 0
		for _, lp := range m.GetLabel() {
			if v, ok := want[lp.GetName()]; ok && v == lp.GetValue() {
				matched++
			}
		}
		if matched == len(want) {
			return m
		}
	}
	return nil
}

func TestCollector_ExposesRunMetrics(t *testing.T) {
	engine := newQuietEngine()
	engine.SetState(StateRunning)
	for i := 0; i < 4; i++ {
		engine.RecordArrival()
	}
	engine.RecordStarted()
	engine.RecordDropped(DropPoolExhausted)
	engine.RecordDropped(DropPoolExhausted)
	engine.RecordDropped(DropMissedDeadline)
	engine.RecordCompleted(&performance.Outcome{StatusCode: 201})
	engine.RecordCheck("status is 201 or 400", true)
	engine.SetPoolSize(3)
	engine.SetBusyVUs(1)

	families := gather(t, NewCollector(engine, "create_pr"))

	dropped := families["loadgen_iterations_dropped_total"]
	require.NotNil(t, dropped)
	assert.Equal(t, 2.0, labelled(dropped, map[string]string{"reason": "pool_exhausted"}).GetCounter().GetValue())
	assert.Equal(t, 1.0, labelled(dropped, map[string]string{"reason": "missed_deadline"}).GetCounter().GetValue())

	iterations := families["loadgen_iterations_total"]
	require.NotNil(t, iterations)
	assert.Len(t, iterations.GetMetric(), 4)
	assert.Equal(t, 1.0, labelled(iterations, map[string]string{"result": "completed"}).GetCounter().GetValue())

	checks := families["loadgen_checks_total"]
	require.NotNil(t, checks)
	pass := labelled(checks, map[string]string{"check": "status is 201 or 400", "result": "pass"})
	require.NotNil(t, pass)
	assert.Equal(t, 1.0, pass.GetCounter().GetValue())

	vus := families["loadgen_vus"]
	require.NotNil(t, vus)
	assert.Equal(t, 3.0, labelled(vus, map[string]string{"state": "allocated"}).GetGauge().GetValue())
	assert.Equal(t, 1.0, labelled(vus, map[string]string{"state": "busy"}).GetGauge().GetValue())

	state := families["loadgen_run_state"]
	require.NotNil(t, state)
	assert.Equal(t, float64(StateRunning), state.GetMetric()[0].GetGauge().GetValue())

	duration := families["loadgen_iteration_duration_seconds"]
	require.NotNil(t, duration)
	assert.Equal(t, uint64(1), duration.GetMetric()[0].GetSummary().GetSampleCount())

	scenario := labelled(state, map[string]string{"scenario": "create_pr"})
	assert.NotNil(t, scenario, "scenario label is attached to every series")
}

func TestCollector_SharedRegistry(t *testing.T) {
	families := gather(t,
		NewCollector(newQuietEngine(), "create_pr"),
		NewCollector(newQuietEngine(), "get_reviews"),
	)

	arrivals := families["loadgen_arrivals_total"]
	require.NotNil(t, arrivals)
	assert.Len(t, arrivals.GetMetric(), 2, "one series per scenario")
}
