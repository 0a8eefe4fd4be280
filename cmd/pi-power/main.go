// Command pi-power sequences power to a downstream board: it powers the board
// on, later asks it to shut down, and cuts power only after the board has
// acknowledged and a safety margin has passed.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sweeney/pi-power/internal/config"
	"github.com/sweeney/pi-power/internal/gpio"
	"github.com/sweeney/pi-power/internal/logging"
	"github.com/sweeney/pi-power/internal/logic"
	"github.com/sweeney/pi-power/internal/metrics"
	"github.com/sweeney/pi-power/internal/mqtt"
	"github.com/sweeney/pi-power/internal/power"
	"github.com/sweeney/pi-power/internal/status"
	"github.com/sweeney/pi-power/internal/web"
)

func main() {
	configPath := flag.String("config", "", "YAML config file (built-in defaults when empty)")
	printState := flag.Bool("print-state", false, "Print current line levels and exit")
	logLevel := flag.String("log-level", "", "Override logging.level from the config file")

	flag.Parse()

	logging.Setup("info", os.Stderr)
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	cfg, err = applyOverrides(cfg, *logLevel)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid flags")
	}
	logging.Setup(cfg.Logging.Level, os.Stderr)

	if *printState {
		relay, request, ack, err := gpio.Peek(cfg.Pins())
		if err != nil {
			log.Fatal().Err(err).Msg("read gpio")
		}
		printLevels(os.Stdout, relay, request, ack)
		return
	}

	if err := run(cfg); err != nil {
		log.Fatal().Err(err).Msg("fatal")
	}
}

// applyOverrides applies command-line overrides to cfg and validates the result.
func applyOverrides(cfg config.Config, logLevel string) (config.Config, error) {
	if logLevel == "" {
		return cfg, nil
	}
	cfg.Logging.Level = logLevel
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("-log-level %q: %w", logLevel, err)
	}
	return cfg, nil
}

func run(cfg config.Config) error {
	// Lines come up at their safe levels: relay open, no request.
	lines, err := gpio.Open(cfg.Pins())
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer func() {
		if err := lines.Close(); err != nil {
			log.Error().Err(err).Msg("release gpio")
		}
	}()

	ctrl, err := power.New(lines.Lines())
	if err != nil {
		return fmt.Errorf("init power controller: %w", err)
	}

	var publisher mqtt.Publisher = mqtt.Discard{}
	var mqttStatus mqtt.ConnectionStatus = mqtt.Discard{}
	if cfg.MQTT.Broker != "" {
		p := mqtt.NewRealPublisher(mqtt.Options{
			Broker:     cfg.MQTT.Broker,
			ClientID:   cfg.MQTT.ClientID,
			BufferSize: cfg.MQTT.Buffer,
		})
		publisher, mqttStatus = p, p
	}
	defer publisher.Close()

	start := time.Now()
	tracker := status.NewTracker(start, statusConfig(cfg))
	m := metrics.New()

	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker, m.Registry)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("http server error")
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Info().Str("addr", cfg.HTTP.Addr).Msg("http status server listening")
	}

	log.Info().
		Dur("poll", cfg.PollInterval).
		Dur("heartbeat", cfg.Heartbeat).
		Str("chip", cfg.GPIO.Chip).
		Int("relay", cfg.GPIO.Relay).
		Int("request", cfg.GPIO.Request).
		Int("ack", cfg.GPIO.Ack).
		Str("broker", cfg.MQTT.Broker).
		Dur("grace", logic.GracePeriod).
		Dur("margin", logic.SafetyMargin).
		Msg("started")

	ticker := time.NewTicker(cfg.PollInterval)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	d := &daemon{
		seq:        logic.NewSequencer(ctrl),
		publisher:  publisher,
		mqttStatus: mqttStatus,
		tracker:    tracker,
		metrics:    m,
		clock:      logic.NewClock(start),
		now:        time.Now,
		heartbeat:  cfg.Heartbeat,
	}
	return d.runLoop(ticker.C, sigCh)
}

// daemon wires the sequencer to its observers. All fields are used only from
// the runLoop goroutine; tracker and metrics are safe for concurrent readers.
type daemon struct {
	seq        *logic.Sequencer
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	tracker    *status.Tracker
	metrics    *metrics.Metrics
	clock      func() logic.Millis
	now        func() time.Time
	heartbeat  time.Duration // 0 disables
}

func (d *daemon) input() logic.Input {
	return logic.Input{Now: d.clock(), Time: d.now()}
}

// runLoop powers the board on and then steps the sequencer on every tick
// until a signal arrives. It returns an error only if the initial power-on fails.
// Exiting never touches the relay.
func (d *daemon) runLoop(tick <-chan time.Time, sig <-chan os.Signal) error {
	d.publishSystem("STARTUP", "", true)

	in := d.input()
	events, err := d.seq.Start(in)
	if err != nil {
		d.metrics.LineErrors.Inc()
		return fmt.Errorf("initial power on: %w", err)
	}
	d.handle(in, events, nil)
	heartbeat := logic.NewHeartbeat(d.heartbeat, in.Now)

	haltLogged := false
	for {
		select {
		case s := <-sig:
			log.Info().Str("signal", s.String()).Str("state", string(d.seq.State())).Msg("received signal, shutting down")
			d.publishSystem("SHUTDOWN", signalName(s), true)
			return nil

		case <-tick:
			in := d.input()
			events, err := d.seq.Step(in)
			d.handle(in, events, err)

			if d.seq.State() == logic.StateHalted && !haltLogged {
				log.Info().Msg("sequence complete, idling")
				haltLogged = true
			}

			// Periodic liveness event.
			if heartbeat.Due(in.Now) {
				snap := d.tracker.Snapshot()
				log.Info().
					Str("state", string(snap.State)).
					Bool("powered", snap.Powered).
					Dur("uptime", snap.Uptime()).
					Msg("heartbeat")
				d.publishSystem("HEARTBEAT", "", false)
			}
		}
	}
}

func (d *daemon) handle(in logic.Input, events []logic.Event, err error) {
	if err != nil {
		d.metrics.LineErrors.Inc()
		log.Error().Err(err).Str("state", string(d.seq.State())).Msg("sequencer step failed")
	}

	for _, e := range events {
		logEvent(e)
		d.tracker.RecordEvent(e)
		if err := d.publisher.Publish(e); err != nil {
			// Don't stop sequencing on publish failure
			log.Error().Err(err).Str("event", string(e.Type)).Msg("publish error")
		}
	}

	p := status.Power{
		State:             d.seq.State(),
		Powered:           d.seq.Powered(),
		ShutdownRequested: d.seq.ShutdownRequested(),
		Acknowledged:      d.seq.Acknowledged(),
		Remaining:         d.seq.Remaining(in.Now),
		Counts:            d.seq.EventCountsSnapshot(),
	}
	d.tracker.Update(p)
	d.tracker.SetMQTTConnected(d.mqttStatus.IsConnected())
	d.metrics.Observe(events, p.State, p.Powered, p.ShutdownRequested, p.Acknowledged)
}

func (d *daemon) publishSystem(event, reason string, retained bool) {
	d.tracker.SetMQTTConnected(d.mqttStatus.IsConnected())
	snap := d.tracker.Snapshot()
	err := d.publisher.PublishSystem(mqtt.SystemEvent{
		Timestamp:  d.now(),
		Event:      event,
		Reason:     reason,
		Retained:   retained,
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	})
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("failed to publish system event")
		return
	}
	log.Debug().Str("event", event).Msg("published system event")
}

var eventMessages = map[logic.EventType]string{
	logic.EventPowerOn:           "power on (relay closed)",
	logic.EventShutdownRequested: "requesting shutdown",
	logic.EventAckReceived:       "ack received, waiting before power cut",
	logic.EventAckDeasserted:     "ack de-asserted before power cut",
	logic.EventAckReasserted:     "ack re-asserted",
	logic.EventPowerOff:          "power off (relay open)",
}

func logEvent(e logic.Event) {
	level := zerolog.InfoLevel
	if e.Type == logic.EventAckDeasserted {
		level = zerolog.WarnLevel
	}
	ev := log.WithLevel(level).
		Str("event", string(e.Type)).
		Str("state", string(e.State)).
		Uint32("at_ms", uint32(e.At))
	if e.Type == logic.EventAckReceived {
		ev = ev.Dur("margin", logic.SafetyMargin)
	}
	ev.Msg(eventMessages[e.Type])
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}

func statusConfig(cfg config.Config) status.Config {
	return status.Config{
		PollMs:      cfg.PollInterval.Milliseconds(),
		HeartbeatMs: cfg.Heartbeat.Milliseconds(),
		Chip:        cfg.GPIO.Chip,
		PinRelay:    cfg.GPIO.Relay,
		PinRequest:  cfg.GPIO.Request,
		PinAck:      cfg.GPIO.Ack,
		Broker:      cfg.MQTT.Broker,
		HTTPAddr:    cfg.HTTP.Addr,
	}
}

func printLevels(w io.Writer, relay, request, ack int) {
	fmt.Fprintf(w, "relay: %s (%s)\n", levelString(relay), pick(relay == gpio.Low, "power on", "power off"))
	fmt.Fprintf(w, "request: %s (%s)\n", levelString(request), pick(request == gpio.High, "shutdown requested", "idle"))
	fmt.Fprintf(w, "ack: %s (%s)\n", levelString(ack), pick(ack == gpio.Low, "acknowledged", "not acknowledged"))
}

func levelString(v int) string {
	if v == gpio.Low {
		return "LOW"
	}
	return "HIGH"
}

func pick(cond bool, yes, no string) string {
	if cond {
		return yes
	}
	return no
}
