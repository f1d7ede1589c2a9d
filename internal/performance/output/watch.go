package output

import (
	"context"
	"time"

	"github.com/prreview/loadgen/internal/performance/engine"
)

// CollectStats builds live stats for every scenario of e.
func CollectStats(e *engine.Engine) []*LiveStats {
	execStats := e.GetScenarioStats()

	var out []*LiveStats
	for _, name := range e.ScenarioNames() {
		m, ok := e.Metrics(name)
		if !ok {
			continue
		}
		st := execStats[name]
		progress, total, maxVUs := 0.0, time.Duration(0), 0
		if st != nil {
			total = st.TotalDuration
			maxVUs = st.MaxVUs
			if total > 0 {
				progress = float64(st.Elapsed) / float64(total)
				if progress > 1 {
					progress = 1
				}
			}
		}
		out = append(out, StatsFromSnapshot(name, m.GetSnapshot(), progress, total, maxVUs))
	}
	return out
}

// Watch refreshes the console with e's progress until ctx is done.
func Watch(ctx context.Context, e *engine.Engine, c *ConsoleOutput) {
	ticker := time.NewTicker(c.UpdateInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := CollectStats(e)
			if c.IsTTY() {
				c.Update(stats)
			} else {
				c.PrintNonInteractiveUpdate(stats)
			}
		}
	}
}
