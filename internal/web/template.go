package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/tickd/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"levelOrUnknown": func(s string) string {
		if s == "" {
			return "UNKNOWN"
		}
		return s
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>tickd</title>
<style>
body { font-family: monospace; max-width: 640px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
.high { color: green; font-weight: bold; }
.low { color: #888; }
.unknown { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>tickd</h1>

<table>
<tr><th>Pin</th><th>Label</th><th>Level</th><th>Up</th><th>Down</th></tr>
{{range .Pins}}
<tr>
<td>{{.Pin}}</td>
<td>{{.Label}}</td>
{{$level := levelOrUnknown .Level}}
<td class="{{if eq $level "HIGH"}}high{{else if eq $level "LOW"}}low{{else}}unknown{{end}}">{{$level}}</td>
<td>{{.UpCount}}</td>
<td>{{.DownCount}}</td>
</tr>
{{end}}
</table>

{{if .Analog}}
<table>
<tr><th>Analog channel</th><th>Value</th></tr>
{{range $ch, $v := .Analog}}
<tr><td>{{$ch}}</td><td>{{$v}}</td></tr>
{{end}}
</table>
{{end}}

<table>
<tr><th>Ticks</th><td>{{.Ticks}}</td></tr>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">
{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
<tr><th>Dropped events</th><td>{{.DroppedEvents}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
</body>
</html>
`

// templateData flattens the snapshot for the template.
type templateData struct {
	Pins          []status.PinStatus
	Analog        []uint16
	Ticks         uint32
	Uptime        time.Duration
	MQTTConnected bool
	DroppedEvents uint64
	Config        status.Config
}

func renderHTML(w io.Writer, snap status.Snapshot) {
	data := templateData{
		Pins:          snap.Pins,
		Analog:        snap.Analog,
		Ticks:         snap.Ticks,
		Uptime:        snap.Uptime(),
		MQTTConnected: snap.MQTTConnected,
		DroppedEvents: snap.DroppedEvents,
		Config:        snap.Config,
	}
	// Best effort: a render error leaves a partial page, which is fine
	// for a diagnostics endpoint.
	_ = indexTmpl.Execute(w, data)
}
