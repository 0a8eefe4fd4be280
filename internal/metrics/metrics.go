// Package metrics exposes power sequencing state as Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sweeney/pi-power/internal/logic"
)

// Metrics holds the collectors, registered on their own registry.
type Metrics struct {
	Registry *prometheus.Registry

	Powered           prometheus.Gauge
	ShutdownRequested prometheus.Gauge
	Acknowledged      prometheus.Gauge
	State             *prometheus.GaugeVec
	Events            *prometheus.CounterVec
	LineErrors        prometheus.Counter
}

// New creates and registers the collectors.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Powered: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pi_power_powered",
			Help: "1 while the relay supplies power to the downstream board",
		}),
		ShutdownRequested: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pi_power_shutdown_requested",
			Help: "1 while a shutdown request is asserted",
		}),
		Acknowledged: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pi_power_acknowledged",
			Help: "Last observed level of the acknowledgment line (1 = acknowledged)",
		}),
		State: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pi_power_sequencer_state",
			Help: "1 for the current sequencer state, 0 for the others",
		}, []string{"state"}),
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pi_power_events_total",
			Help: "Sequencing events by type",
		}, []string{"event"}),
		LineErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pi_power_line_errors_total",
			Help: "Failed GPIO line operations",
		}),
	}

	m.Registry.MustRegister(m.Powered, m.ShutdownRequested, m.Acknowledged, m.State, m.Events, m.LineErrors)

	// Pre-create label values so every series exists from startup.
	for _, s := range logic.States {
		m.State.WithLabelValues(string(s))
	}
	for _, e := range logic.EventTypes {
		m.Events.WithLabelValues(string(e))
	}
	m.SetState(logic.StateIdle)

	return m
}

// SetState marks s as the current state.
func (m *Metrics) SetState(s logic.State) {
	for _, st := range logic.States {
		v := 0.0
		if st == s {
			v = 1
		}
		m.State.WithLabelValues(string(st)).Set(v)
	}
}

// Observe records events and the sequencer's current flags.
func (m *Metrics) Observe(events []logic.Event, state logic.State, powered, requested, acked bool) {
	for _, e := range events {
		m.Events.WithLabelValues(string(e.Type)).Inc()
	}
	m.SetState(state)
	m.Powered.Set(boolToFloat(powered))
	m.ShutdownRequested.Set(boolToFloat(requested))
	m.Acknowledged.Set(boolToFloat(acked))
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
