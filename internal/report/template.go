package report

import (
	"html/template"
	"strings"
	"time"
)

// funcMap holds the helpers available to the HTML template
var funcMap = template.FuncMap{
	"formatTime": formatTime,
	"join":       strings.Join,
	"add":        func(a, b int) int { return a + b },
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04:05 MST")
}

// every field is inserted through html/template, which escapes it for its context
const htmlTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>XSS report</title>
<style>
body { font-family: sans-serif; margin: 2em; }
table { border-collapse: collapse; width: 100%; }
th, td { border: 1px solid #999; padding: 6px; vertical-align: top; text-align: left; }
th { background: #eee; }
pre { white-space: pre-wrap; word-break: break-all; margin: 0; }
.meta td { border: none; padding: 2px 12px 2px 0; }
</style>
</head>
<body>
<h2>Reflected XSS Report</h2>
<table class="meta">
<tr><td>Target</td><td>{{.Target}}</td></tr>
<tr><td>Method</td><td>{{.Method}}</td></tr>
<tr><td>Params</td><td>{{join .Params ", "}}</td></tr>
<tr><td>Scan ID</td><td>{{.ScanID}}</td></tr>
<tr><td>Started</td><td>{{formatTime .StartTime}}</td></tr>
<tr><td>Findings</td><td>{{len .Findings}}</td></tr>
</table>
<br>
<table>
<thead><tr><th>#</th><th>URL</th><th>Param</th><th>Payload</th><th>Context</th><th>Snippet</th></tr></thead>
<tbody>
{{- range $i, $f := .Findings}}
<tr>
<td>{{add $i 1}}</td>
<td>{{$f.URL}}</td>
<td>{{$f.Param}}</td>
<td>{{$f.Payload}}</td>
<td>{{$f.Context}}</td>
<td><pre>{{$f.Snippet}}</pre></td>
</tr>
{{- else}}
<tr><td colspan="6">No reflections found.</td></tr>
{{- end}}
</tbody>
</table>
</body>
</html>
`

var reportTemplate = template.Must(template.New("report").Funcs(funcMap).Parse(htmlTemplate))
