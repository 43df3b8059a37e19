package report

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>{{.User}} - Load Test Report</title>
<script src="https://cdn.jsdelivr.net/npm/chart.js"></script>
<style>
body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", sans-serif; margin: 0; background: #f8fafc; color: #1e293b; }
main { max-width: 1100px; margin: 0 auto; padding: 2rem; }
header { display: flex; justify-content: space-between; align-items: center; }
.meta { color: #64748b; font-size: 0.9rem; }
.status { padding: 0.4rem 1rem; border-radius: 999px; font-weight: 600; }
.status.pass { background: #dcfce7; color: #166534; }
.status.fail { background: #fee2e2; color: #991b1b; }
.cards { display: grid; grid-template-columns: repeat(auto-fit, minmax(160px, 1fr)); gap: 1rem; margin: 1.5rem 0; }
.card { background: #fff; border: 1px solid #e2e8f0; border-radius: 8px; padding: 1rem; }
.card .label { color: #64748b; font-size: 0.8rem; text-transform: uppercase; }
.card .value { font-size: 1.5rem; font-weight: 600; }
table { width: 100%; border-collapse: collapse; background: #fff; margin-bottom: 1.5rem; }
th, td { text-align: left; padding: 0.5rem 0.75rem; border-bottom: 1px solid #e2e8f0; font-size: 0.9rem; }
th { background: #f1f5f9; }
td.num { text-align: right; font-variant-numeric: tabular-nums; }
.pass { color: #16a34a; } .fail { color: #dc2626; }
canvas { background: #fff; border: 1px solid #e2e8f0; border-radius: 8px; padding: 0.5rem; margin-bottom: 1.5rem; }
</style>
</head>
<body>
<main>
<header>
  <div>
    <h1>{{.User}}</h1>
    <div class="meta">{{.Host}} &middot; {{.Executor}} &middot; {{.StartTime.Format "2006-01-02 15:04:05"}} &middot; {{formatDuration .Duration}}{{if .Interrupted}} &middot; stopped early{{end}}</div>
  </div>
  <span class="status {{if .Passed}}pass{{else}}fail{{end}}">{{if .Passed}}PASSED{{else}}FAILED{{end}}</span>
</header>

{{with .Metrics}}
<section class="cards">
  <div class="card"><div class="label">Requests</div><div class="value">{{.TotalRequests}}</div></div>
  <div class="card"><div class="label">Throughput</div><div class="value">{{printf "%.1f" .RPS}} req/s</div></div>
  <div class="card"><div class="label">Failures</div><div class="value">{{.FailedRequests}} ({{percent .ErrorRate}})</div></div>
  <div class="card"><div class="label">Success rate</div><div class="value">{{percent (successRate .)}}</div></div>
  <div class="card"><div class="label">P95</div><div class="value">{{formatLatency .Latency.P95}}</div></div>
  <div class="card"><div class="label">Transferred</div><div class="value">{{formatBytes .TotalBytes}}</div></div>
</section>
{{end}}

<section class="cards">
  <div class="card"><div class="label">Peak users</div><div class="value">{{.MaxUsers}}</div></div>
  <div class="card"><div class="label">Iterations</div><div class="value">{{.Iterations}}</div></div>
  <div class="card"><div class="label">Task errors</div><div class="value">{{.TaskErrors}}</div></div>
</section>

{{if .TimeSeries}}
<h2>Over time</h2>
<canvas id="throughput" height="90"></canvas>
<canvas id="latency" height="90"></canvas>
{{end}}

{{if .RequestStats}}
<h2>Requests</h2>
<table>
  <tr><th>Name</th><th># reqs</th><th># fails</th><th>Avg</th><th>Min</th><th>P50</th><th>P95</th><th>P99</th><th>Max</th></tr>
  {{range .RequestStats}}
  <tr>
    <td>{{.Name}}</td>
    <td class="num">{{.Requests}}</td>
    <td class="num">{{.Failures}}</td>
    <td class="num">{{formatLatency .Latency.Mean}}</td>
    <td class="num">{{formatLatency .Latency.Min}}</td>
    <td class="num">{{formatLatency .Latency.P50}}</td>
    <td class="num">{{formatLatency .Latency.P95}}</td>
    <td class="num">{{formatLatency .Latency.P99}}</td>
    <td class="num">{{formatLatency .Latency.Max}}</td>
  </tr>
  {{end}}
</table>

{{with failureRows .RequestStats}}
<h2>Failures</h2>
<table>
  <tr><th>Count</th><th>Request</th><th>Cause</th></tr>
  {{range .}}<tr><td class="num">{{.Count}}</td><td>{{.Name}}</td><td class="fail">{{.Cause}}</td></tr>{{end}}
</table>
{{end}}
{{end}}

{{if .Thresholds}}
<h2>Thresholds</h2>
<table>
  <tr><th></th><th>Metric</th><th>Expression</th><th>Actual</th><th></th></tr>
  {{range .Thresholds}}
  <tr>
    <td class="{{if .Passed}}pass{{else}}fail{{end}}">{{if .Passed}}&#10003;{{else}}&#10007;{{end}}</td>
    <td>{{.Metric}}</td><td>{{.Expression}}</td><td>{{.Value}}</td><td>{{.Message}}</td>
  </tr>
  {{end}}
</table>
{{end}}

<p class="meta">Generated {{.EndTime.Format "2006-01-02 15:04:05 MST"}}</p>
</main>
<script>
const timeSeriesData = {{.TimeSeriesJSON}};
if (timeSeriesData.length && window.Chart) {
  const labels = timeSeriesData.map((p, i) => i + "s");
  new Chart(document.getElementById("throughput"), {
    type: "line",
    data: { labels, datasets: [
      { label: "req/s", data: timeSeriesData.map(p => p.intervalRPS), yAxisID: "y" },
      { label: "users", data: timeSeriesData.map(p => p.activeVUs), yAxisID: "users" },
    ]},
    options: { scales: { users: { position: "right" } } },
  });
  new Chart(document.getElementById("latency"), {
    type: "line",
    data: { labels, datasets: ["latencyP50", "latencyP95", "latencyP99"].map(k => ({
      label: k.replace("latency", "").toLowerCase() + " (ms)",
      data: timeSeriesData.map(p => p[k] / 1000),
    }))},
  });
}
</script>
</body>
</html>
`
