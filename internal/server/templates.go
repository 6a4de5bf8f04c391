package server

import (
	"html/template"
	"strings"
)

var funcMap = template.FuncMap{
	"truncate": func(s string, n int) string {
		s = strings.TrimSpace(s)
		if len(s) > n {
			return s[:n] + "…"
		}
		return s
	},
	"add": func(a, b int) int { return a + b },
}

const tmplBase = `{{define "base"}}<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>slotscope</title>
<style>
  body { font-family: -apple-system, "Segoe UI", sans-serif; margin: 0; background: #0d1117; color: #c9d1d9; }
  header { padding: 12px 24px; background: #161b22; border-bottom: 1px solid #30363d; }
  header a { color: #58a6ff; text-decoration: none; font-weight: 600; }
  main { padding: 24px; }
  h1, h2 { font-weight: 600; }
  form.picker { display: flex; gap: 12px; flex-wrap: wrap; align-items: end; margin-bottom: 24px; }
  form.picker label { display: block; font-size: 12px; color: #8b949e; margin-bottom: 4px; }
  select { background: #161b22; color: #c9d1d9; border: 1px solid #30363d; border-radius: 6px; padding: 6px 10px; }
  button { background: #238636; color: #fff; border: 0; border-radius: 6px; padding: 7px 14px; cursor: pointer; }
  table.heatmap { border-collapse: collapse; font-size: 11px; }
  table.heatmap th, table.heatmap td { padding: 3px 6px; border: 1px solid #21262d; text-align: center; }
  table.heatmap th { color: #8b949e; font-weight: 400; }
  td.absent { background: #161b22; color: #484f58; }
  .grid { display: grid; grid-template-columns: repeat(4, minmax(180px, 1fr)); gap: 12px; }
  .tile { background: #161b22; border: 1px solid #30363d; border-radius: 6px; padding: 8px; text-align: center; }
  .tile img { max-width: 100%; }
  .notice { background: #1c2128; border: 1px solid #30363d; border-radius: 6px; padding: 16px; color: #8b949e; }
  .error { background: #2d1618; border: 1px solid #6e2c32; border-radius: 6px; padding: 16px; color: #ff7b72; }
  ul.stores li { margin: 6px 0; }
  .meta { font-size: 12px; color: #8b949e; margin-bottom: 16px; }
</style>
</head>
<body>
<header><a href="/">slotscope</a></header>
<main>{{template "content" .}}</main>
</body>
</html>{{end}}`

const tmplIndex = `{{define "content"}}
<h1>Stores</h1>
{{if .Stores}}
<ul class="stores">
  {{range .Stores}}<li><a href="/store/{{.}}">{{.}}</a></li>{{end}}
</ul>
{{else}}
<div class="notice">No stores configured.</div>
{{end}}
{{end}}`

const tmplStore = `{{define "content"}}
<h1>{{.Store}}</h1>
<div class="meta">data as of {{.FetchedAt}}</div>

<form class="picker" method="get" action="/store/{{.Store}}">
  <div>
    <label for="model">Model</label>
    <select id="model" name="model" onchange="this.form.submit()">
      {{$sel := .Sel}}
      {{range .Models}}<option value="{{.}}" {{if eq . $sel.Model}}selected{{end}}>{{.}}</option>{{end}}
    </select>
  </div>
  <div>
    <label for="machine">Machine</label>
    <select id="machine" name="machine" onchange="this.form.submit()">
      {{range .Machines}}<option value="{{.}}" {{if eq . $sel.Machine}}selected{{end}}>#{{.}}</option>{{end}}
    </select>
  </div>
  <div>
    <label for="metric">Metric</label>
    <select id="metric" name="metric" onchange="this.form.submit()">
      {{range .Metrics}}<option value="{{.}}" {{if eq . $sel.Metric}}selected{{end}}>{{.}}</option>{{end}}
    </select>
  </div>
  <div>
    <label for="chart">Chart</label>
    <select id="chart" name="chart" onchange="this.form.submit()">
      {{range .Charts}}<option value="{{.}}" {{if eq . $sel.Chart}}selected{{end}}>{{.}}</option>{{end}}
    </select>
  </div>
  <button type="submit">Update</button>
</form>

{{if .Empty}}
<div class="notice">No rows for model {{.Sel.Model}}. Pick another model.</div>
{{else if .LineURL}}
<h2>{{.Sel.Model}} #{{.Sel.Machine}} — {{.Sel.Metric}}</h2>
<img src="{{.LineURL}}" alt="time series with rolling means">

{{else if .Heatmap}}
<h2>{{.Sel.Model}} — {{.Sel.Metric}} (heatmap)</h2>
<table class="heatmap">
  <tr><th></th>{{range .Heatmap.Dates}}<th>{{.}}</th>{{end}}</tr>
  {{range .Heatmap.Rows}}
  <tr>
    <th>#{{.MachineID}}</th>
    {{range .Cells}}{{if .Label}}<td style="background:{{.Color}}">{{.Label}}</td>{{else}}<td class="absent">–</td>{{end}}{{end}}
  </tr>
  {{end}}
</table>

{{else if .BubbleJSON}}
<h2>{{.Sel.Model}} — {{.Sel.Metric}} (bubble)</h2>
<div id="bubble" style="height:480px"></div>
<script src="https://cdn.plot.ly/plotly-2.32.0.min.js"></script>
<script>
  const spec = {{.BubbleJSON}};
  Plotly.newPlot("bubble", [{
    x: spec.points.map(p => p.date),
    y: spec.points.map(p => p.machine_id),
    mode: "markers",
    marker: {
      size: spec.points.map(p => Math.max(4, Math.abs(p.size))),
      color: spec.points.map(p => p.value),
      colorscale: "RdBu",
      showscale: true
    }
  }], {title: spec.title, paper_bgcolor: "#0d1117", plot_bgcolor: "#0d1117", font: {color: "#c9d1d9"}});
</script>

{{else if .SurfaceJSON}}
<h2>{{.Sel.Model}} — {{.Sel.Metric}} (3-D surface)</h2>
<div id="surface" style="height:560px"></div>
<script src="https://cdn.plot.ly/plotly-2.32.0.min.js"></script>
<script>
  const spec = {{.SurfaceJSON}};
  Plotly.newPlot("surface", [{type: "surface", x: spec.x, y: spec.y, z: spec.z}],
    {title: spec.title, paper_bgcolor: "#0d1117", font: {color: "#c9d1d9"}});
</script>

{{else if .SparkTiles}}
<h2>{{.Sel.Model}} — {{.Sel.Metric}} (sparklines)</h2>
<div class="grid">
  {{range .SparkTiles}}
  <div class="tile"><div>#{{.MachineID}}</div><img src="{{.URL}}" alt="sparkline"></div>
  {{end}}
</div>

{{else if .Calendar}}
<h2>{{.Sel.Model}} — {{.Sel.Metric}} (calendar, daily mean)</h2>
<table class="heatmap">
  <tr><th></th><th>Mon</th><th>Tue</th><th>Wed</th><th>Thu</th><th>Fri</th><th>Sat</th><th>Sun</th></tr>
  {{range .Calendar}}
  <tr>
    <th>{{.Label}}</th>
    {{range .Days}}{{if .Present}}<td style="background:{{.Color}}" title="{{.Date}}">{{.Label}}</td>{{else}}<td class="absent"></td>{{end}}{{end}}
  </tr>
  {{end}}
</table>
{{end}}
{{end}}`

const tmplError = `{{define "content"}}
<h1>Something went wrong</h1>
<div class="error">{{.Message}}</div>
<p><a href="/" style="color:#58a6ff">Back to stores</a></p>
{{end}}`
