package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "loadgen"

// Collector exposes a run's Engine to Prometheus.
//
// Values are read from Engine.GetSnapshot at scrape time, so the collector
// adds no cost to the recording path. Each collector carries a constant
// "scenario" label, which lets several runs share one registry.
type Collector struct {
	engine *Engine

	arrivals   *prometheus.Desc
	iterations *prometheus.Desc
	dropped    *prometheus.Desc
	checks     *prometheus.Desc
	vus        *prometheus.Desc
	state      *prometheus.Desc
	duration   *prometheus.Desc
	bytes      *prometheus.Desc
}

// NewCollector creates a collector for engine labelled with scenario.
func NewCollector(engine *Engine, scenario string) *Collector {
	labels := prometheus.Labels{"scenario": scenario}
	desc := func(name, help string, variable ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, variable, labels)
	}

	return &Collector{
		engine:     engine,
		arrivals:   desc("arrivals_total", "Arrivals issued by the scheduler."),
		iterations: desc("iterations_total", "Iterations by lifecycle result.", "result"),
		dropped:    desc("iterations_dropped_total", "Arrivals that did not start an iteration.", "reason"),
		checks:     desc("checks_total", "Check evaluations by result.", "check", "result"),
		vus:        desc("vus", "Virtual users by state.", "state"),
		state:      desc("run_state", "Run state: 0 pending, 1 running, 2 draining, 3 completed."),
		duration:   desc("iteration_duration_seconds", "Iteration latency."),
		bytes:      desc("received_bytes_total", "Response bytes received."),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.arrivals
	ch <- c.iterations
	ch <- c.dropped
	ch <- c.checks
	ch <- c.vus
	ch <- c.state
	ch <- c.duration
	ch <- c.bytes
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snap := c.engine.GetSnapshot()

	ch <- prometheus.MustNewConstMetric(c.arrivals, prometheus.CounterValue, float64(snap.Arrivals))

	for result, v := range map[string]int64{
		"started":   snap.Started,
		"completed": snap.Completed,
		"failed":    snap.Failed,
		"abandoned": snap.Abandoned,
	} {
		ch <- prometheus.MustNewConstMetric(c.iterations, prometheus.CounterValue, float64(v), result)
	}

	for _, reason := range []DropReason{DropPoolExhausted, DropMissedDeadline} {
		ch <- prometheus.MustNewConstMetric(c.dropped, prometheus.CounterValue,
			float64(snap.DroppedByReason[reason]), string(reason))
	}

	for _, chk := range snap.Checks {
		ch <- prometheus.MustNewConstMetric(c.checks, prometheus.CounterValue, float64(chk.Passes), chk.Name, "pass")
		ch <- prometheus.MustNewConstMetric(c.checks, prometheus.CounterValue, float64(chk.Fails), chk.Name, "fail")
	}

	ch <- prometheus.MustNewConstMetric(c.vus, prometheus.GaugeValue, float64(snap.BusyVUs), "busy")
	ch <- prometheus.MustNewConstMetric(c.vus, prometheus.GaugeValue, float64(snap.PoolSize), "allocated")
	ch <- prometheus.MustNewConstMetric(c.state, prometheus.GaugeValue, float64(snap.State))

	lat := snap.Latency
	ch <- prometheus.MustNewConstSummary(c.duration,
		uint64(lat.Count),
		lat.Mean.Seconds()*float64(lat.Count),
		map[float64]float64{
			0.5:  lat.P50.Seconds(),
			0.9:  lat.P90.Seconds(),
			0.95: lat.P95.Seconds(),
			0.99: lat.P99.Seconds(),
		},
	)

	ch <- prometheus.MustNewConstMetric(c.bytes, prometheus.CounterValue, float64(snap.BytesReceived))
}
