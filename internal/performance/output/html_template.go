package output

// htmlTemplate renders a Report. It has no external assets so the file can
// be archived next to the JSON report.
const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Name}} - Load Test Report</title>
    <style>
        :root {
            --bg-primary: #ffffff;
            --bg-secondary: #f8fafc;
            --text-primary: #1e293b;
            --text-secondary: #64748b;
            --border-color: #e2e8f0;
            --accent-success: #22c55e;
            --accent-warning: #f59e0b;
            --accent-error: #ef4444;
            --shadow: 0 1px 3px rgba(0, 0, 0, 0.1);
        }

        * { margin: 0; padding: 0; box-sizing: border-box; }

        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'Helvetica Neue', Arial, sans-serif;
            background-color: var(--bg-secondary);
            color: var(--text-primary);
            line-height: 1.6;
        }

        .container { max-width: 1200px; margin: 0 auto; padding: 2rem; }

        .card {
            background: var(--bg-primary);
            border-radius: 12px;
            padding: 1.5rem;
            margin-bottom: 1.5rem;
            box-shadow: var(--shadow);
        }

        h1 { font-size: 1.75rem; }
        h2 { font-size: 1.25rem; margin-bottom: 1rem; }
        h3 { font-size: 1rem; margin: 1rem 0 0.5rem; color: var(--text-secondary); }
        .meta { color: var(--text-secondary); font-size: 0.875rem; }

        .badge {
            display: inline-block;
            padding: 0.25rem 0.75rem;
            border-radius: 9999px;
            font-weight: 600;
            color: #fff;
        }
        .passed { background: var(--accent-success); }
        .failed { background: var(--accent-error); }
        .warn { color: var(--accent-warning); }

        .grid { display: grid; grid-template-columns: repeat(auto-fit, minmax(150px, 1fr)); gap: 1rem; }
        .metric .label { font-size: 0.75rem; text-transform: uppercase; color: var(--text-secondary); }
        .metric .value { font-size: 1.5rem; font-weight: 700; }

        table { width: 100%; border-collapse: collapse; font-size: 0.875rem; }
        th, td { text-align: left; padding: 0.4rem 0.6rem; border-bottom: 1px solid var(--border-color); }
        th { color: var(--text-secondary); font-weight: 600; }
        td.num { text-align: right; font-variant-numeric: tabular-nums; }
    </style>
</head>
<body>
<div class="container">
    <div class="card">
        <h1>{{.Name}} {{if .Passed}}<span class="badge passed">PASSED</span>{{else}}<span class="badge failed">FAILED</span>{{end}}</h1>
        {{if .Description}}<p>{{.Description}}</p>{{end}}
        <p class="meta">{{.StartTime.Format "2006-01-02 15:04:05 MST"}} &middot; {{.Duration}}</p>
        {{if .Error}}<p class="warn">Error: {{.Error}}</p>{{end}}
    </div>

    {{range .Scenarios}}
    <div class="card scenario" id="scenario-{{.Name}}">
        <h2>{{.Name}} <span class="meta">[{{.Executor}}]</span></h2>
        {{if .Error}}<p class="warn">Error: {{.Error}}</p>{{end}}
        {{with .Summary}}
        <div class="grid">
            <div class="metric"><div class="label">Arrivals</div><div class="value">{{formatNumber .Arrivals}}</div></div>
            <div class="metric"><div class="label">Completed</div><div class="value">{{formatNumber .Completed}}</div></div>
            <div class="metric"><div class="label">Failed</div><div class="value">{{formatNumber .Failed}}</div></div>
            <div class="metric"><div class="label">Dropped</div><div class="value">{{formatNumber .Dropped}}</div></div>
            <div class="metric"><div class="label">Abandoned</div><div class="value">{{formatNumber .Abandoned}}</div></div>
            <div class="metric"><div class="label">Rate</div><div class="value">{{printf "%.2f/s" .IterationRate}}</div></div>
            <div class="metric"><div class="label">Max VUs</div><div class="value">{{.MaxPoolSize}}</div></div>
        </div>

        <h3>Latency</h3>
        <table>
            <tr><th>min</th><th>avg</th><th>p50</th><th>p90</th><th>p95</th><th>p99</th><th>max</th></tr>
            <tr>
                <td class="num">{{formatLatency .Latency.Min}}</td>
                <td class="num">{{formatLatency .Latency.Mean}}</td>
                <td class="num">{{formatLatency .Latency.P50}}</td>
                <td class="num">{{formatLatency .Latency.P90}}</td>
                <td class="num">{{formatLatency .Latency.P95}}</td>
                <td class="num">{{formatLatency .Latency.P99}}</td>
                <td class="num">{{formatLatency .Latency.Max}}</td>
            </tr>
        </table>

        {{if .DroppedByReason}}
        <h3>Drops</h3>
        <table>
            <tr><th>reason</th><th>count</th></tr>
            {{range $reason, $n := .DroppedByReason}}<tr><td>{{$reason}}</td><td class="num">{{formatNumber $n}}</td></tr>
            {{end}}
        </table>
        {{end}}

        {{if .StatusClasses}}
        <h3>Status classes</h3>
        <table>
            <tr><th>class</th><th>count</th></tr>
            {{range $class, $n := .StatusClasses}}<tr><td>{{$class}}</td><td class="num">{{formatNumber $n}}</td></tr>
            {{end}}
        </table>
        {{end}}

        {{if .Checks}}
        <h3>Checks</h3>
        <table>
            <tr><th>check</th><th>passes</th><th>fails</th><th>pass rate</th></tr>
            {{range .Checks}}<tr class="check"><td>{{.Name}}</td><td class="num">{{formatNumber .Passes}}</td><td class="num">{{formatNumber .Fails}}</td><td class="num">{{percent .PassRate}}</td></tr>
            {{end}}
        </table>
        {{end}}

        {{if .TimeSeries}}
        <h3>Timeline</h3>
        <table>
            <tr><th>time</th><th>state</th><th>completed</th><th>dropped</th><th>rate</th><th>p95</th><th>busy / pool</th></tr>
            {{range .TimeSeries}}<tr>
                <td>{{clock .Timestamp}}</td>
                <td>{{.State}}</td>
                <td class="num">{{formatNumber .IntervalCompleted}}</td>
                <td class="num">{{formatNumber .IntervalDropped}}</td>
                <td class="num">{{printf "%.1f/s" .IntervalRate}}</td>
                <td class="num">{{formatLatency .LatencyP95}}</td>
                <td class="num">{{.BusyVUs}} / {{.PoolSize}}</td>
            </tr>
            {{end}}
        </table>
        {{end}}
        {{end}}
    </div>
    {{end}}

    {{if .Thresholds}}
    <div class="card">
        <h2>Thresholds</h2>
        <table>
            <tr><th></th><th>scenario</th><th>metric</th><th>expression</th><th>value</th><th>message</th></tr>
            {{range .Thresholds}}<tr class="threshold">
                <td>{{if .Passed}}&#10003;{{else}}&#10007;{{end}}</td>
                <td>{{.Scenario}}</td>
                <td>{{.Metric}}</td>
                <td>{{.Expression}}</td>
                <td>{{.Value}}</td>
                <td>{{.Message}}</td>
            </tr>
            {{end}}
        </table>
    </div>
    {{end}}
</div>
</body>
</html>
`
