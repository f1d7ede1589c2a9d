// Package perf runs open-model load against HTTP services.
//
// Iterations start on a fixed schedule whether or not earlier ones have
// finished. When no virtual user is free the arrival is dropped and counted,
// so a slow service shows up as drops and latency rather than as a lower
// offered rate.
//
// # Single scenario
//
// Any function can be driven at a constant arrival rate:
//
//	cfg := perf.NewConfig("ping", 50, 30*time.Second, 10, 100)
//	scenario := perf.IterationFunc(func(ctx context.Context, vu *perf.VirtualUser) *perf.Outcome {
//	    start := time.Now()
//	    resp, err := http.Get("http://localhost:8080/health")
//	    if err != nil {
//	        return &perf.Outcome{Latency: time.Since(start), Err: err}
//	    }
//	    resp.Body.Close()
//	    return &perf.Outcome{Latency: time.Since(start), StatusCode: resp.StatusCode}
//	})
//	ok := perf.NewCheck("status is 200", func(o *perf.Outcome) bool { return o.StatusCode == 200 })
//
//	summary, err := perf.RunScenario(ctx, cfg, scenario, ok)
//	fmt.Printf("arrivals=%d dropped=%d p95=%v\n", summary.Arrivals, summary.Dropped, summary.Latency.P95)
//
// # Test files
//
// RunTest runs a YAML or JSON configuration against the PR-review service,
// built-in presets included:
//
//	cfg, _ := perf.LoadConfig("pr-review.yaml")
//	result, err := perf.RunTest(ctx, cfg)
//	fmt.Println("passed:", result.Passed)
package perf
