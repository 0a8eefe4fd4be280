package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/pi-power/internal/logic"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event             string     `json:"event,omitempty"`
	Reason            string     `json:"reason,omitempty"`
	State             string     `json:"state"`
	Powered           bool       `json:"powered"`
	ShutdownRequested bool       `json:"shutdown_requested"`
	Acknowledged      bool       `json:"acknowledged"`
	RemainingSeconds  int64      `json:"remaining_seconds"`
	LastEvent         *LastEvent `json:"last_event,omitempty"`
	UptimeSeconds     int64      `json:"uptime_seconds"`
	StartTime         string     `json:"start_time"`
	Timestamp         string     `json:"timestamp"`
	MQTT              MQTTStatus `json:"mqtt"`
	Counts            CountsJSON `json:"event_counts"`
	Policy            PolicyJSON `json:"policy"`
	Config            ConfigJSON `json:"config"`
}

// LastEvent is the most recent sequencing event.
type LastEvent struct {
	Event     string `json:"event"`
	Timestamp string `json:"timestamp"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	PowerOn           int `json:"power_on"`
	ShutdownRequested int `json:"shutdown_requested"`
	AckReceived       int `json:"ack_received"`
	AckDeasserted     int `json:"ack_deasserted"`
	AckReasserted     int `json:"ack_reasserted"`
	PowerOff          int `json:"power_off"`
}

// PolicyJSON reports the fixed sequencing dwell times.
type PolicyJSON struct {
	GracePeriodMs  int64 `json:"grace_period_ms"`
	SafetyMarginMs int64 `json:"safety_margin_ms"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PollMs      int64  `json:"poll_ms"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Chip        string `json:"chip"`
	PinRelay    int    `json:"pin_relay"`
	PinRequest  int    `json:"pin_request"`
	PinAck      int    `json:"pin_ack"`
	Broker      string `json:"broker,omitempty"`
	HTTPAddr    string `json:"http_addr,omitempty"`
}

func buildInner(snap Snapshot) StatusInner {
	state := string(snap.State)
	if state == "" {
		state = "UNKNOWN"
	}

	inner := StatusInner{
		State:             state,
		Powered:           snap.Powered,
		ShutdownRequested: snap.ShutdownRequested,
		Acknowledged:      snap.Acknowledged,
		RemainingSeconds:  int64(snap.Remaining.Round(time.Second).Seconds()),
		UptimeSeconds:     int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:         snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:         snap.Now.UTC().Format(time.RFC3339),
		MQTT:              MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			PowerOn:           snap.Counts.PowerOn,
			ShutdownRequested: snap.Counts.ShutdownRequested,
			AckReceived:       snap.Counts.AckReceived,
			AckDeasserted:     snap.Counts.AckDeasserted,
			AckReasserted:     snap.Counts.AckReasserted,
			PowerOff:          snap.Counts.PowerOff,
		},
		Policy: PolicyJSON{
			GracePeriodMs:  logic.GracePeriod.Milliseconds(),
			SafetyMarginMs: logic.SafetyMargin.Milliseconds(),
		},
		Config: ConfigJSON{
			PollMs:      snap.Config.PollMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Chip:        snap.Config.Chip,
			PinRelay:    snap.Config.PinRelay,
			PinRequest:  snap.Config.PinRequest,
			PinAck:      snap.Config.PinAck,
			Broker:      snap.Config.Broker,
			HTTPAddr:    snap.Config.HTTPAddr,
		},
	}

	if snap.LastEvent != "" {
		inner.LastEvent = &LastEvent{
			Event:     string(snap.LastEvent),
			Timestamp: snap.LastEventTime.UTC().Format(time.RFC3339),
		}
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
