package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/pi-power/internal/logic"
	"github.com/sweeney/pi-power/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"duration": func(d time.Duration) string {
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
	"yesno": func(b bool) string {
		if b {
			return "yes"
		}
		return "no"
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="2">
<title>Pi Power</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Pi Power</h1>

<h2>Sequencer</h2>
<table>
<tr><th>State</th><td id="state">{{.State}}</td></tr>
<tr><th>Power</th><td class="{{if .Powered}}on{{else}}off{{end}}">{{if .Powered}}ON{{else}}OFF{{end}}</td></tr>
<tr><th>Shutdown requested</th><td>{{yesno .ShutdownRequested}}</td></tr>
<tr><th>Acknowledged</th><td>{{yesno .Acknowledged}}</td></tr>
{{if .Remaining}}<tr><th>Next action in</th><td>{{duration .Remaining}}</td></tr>{{end}}
{{if .LastEvent}}<tr><th>Last event</th><td>{{.LastEvent}} at {{.LastEventTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>{{end}}
</table>

<h2>Event Counts</h2>
<table>
<tr><th>Power on</th><td>{{.Counts.PowerOn}}</td></tr>
<tr><th>Shutdown requested</th><td>{{.Counts.ShutdownRequested}}</td></tr>
<tr><th>Ack received</th><td>{{.Counts.AckReceived}}</td></tr>
<tr><th>Ack de-asserted</th><td>{{.Counts.AckDeasserted}}</td></tr>
<tr><th>Ack re-asserted</th><td>{{.Counts.AckReasserted}}</td></tr>
<tr><th>Power off</th><td>{{.Counts.PowerOff}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
{{if .Config.Broker}}<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>{{else}}<tr><th>MQTT</th><td>disabled</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{duration .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Grace period</th><td>{{duration .GracePeriod}}</td></tr>
<tr><th>Safety margin</th><td>{{duration .SafetyMargin}}</td></tr>
<tr><th>Lines</th><td>{{.Config.Chip}} relay={{.Config.PinRelay}} request={{.Config.PinRequest}} ack={{.Config.PinAck}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> · <a href="/metrics">metrics</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) error {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime       time.Duration
		GracePeriod  time.Duration
		SafetyMargin time.Duration
	}{
		Snapshot:     snap,
		Uptime:       snap.Uptime(),
		GracePeriod:  logic.GracePeriod,
		SafetyMargin: logic.SafetyMargin,
	}
	return indexTmpl.Execute(w, data)
}
