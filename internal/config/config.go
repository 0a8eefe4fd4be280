// Package config loads daemon configuration from YAML.
// The sequencing dwell times are constants in package logic and cannot be
// configured.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/sweeney/pi-power/internal/gpio"
	"github.com/sweeney/pi-power/internal/logic"
)

// Config is the daemon configuration.
type Config struct {
	GPIO         GPIOConfig    `yaml:"gpio"`
	PollInterval time.Duration `yaml:"poll_interval" validate:"gt=0"`
	Heartbeat    time.Duration `yaml:"heartbeat" validate:"gte=0"` // 0 disables
	MQTT         MQTTConfig    `yaml:"mqtt"`
	HTTP         HTTPConfig    `yaml:"http"`
	Logging      LoggingConfig `yaml:"logging"`
}

// GPIOConfig selects the chip and line offsets.
type GPIOConfig struct {
	Chip    string `yaml:"chip" validate:"required"`
	Relay   int    `yaml:"relay" validate:"gte=0,nefield=Request,nefield=Ack"`
	Request int    `yaml:"request" validate:"gte=0,nefield=Ack"`
	Ack     int    `yaml:"ack" validate:"gte=0"`
}

// MQTTConfig holds broker settings. An empty broker disables publishing.
type MQTTConfig struct {
	Broker   string `yaml:"broker" validate:"omitempty,url"`
	ClientID string `yaml:"client_id" validate:"required_with=Broker"`
	Buffer   int    `yaml:"buffer" validate:"gte=0"`
}

// HTTPConfig holds the status server address. Empty disables it.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn warning error"`
}

// Default returns a configuration that works with the default wiring.
func Default() Config {
	return Config{
		GPIO: GPIOConfig{
			Chip:    gpio.DefaultChip,
			Relay:   gpio.DefaultPinRelay,
			Request: gpio.DefaultPinRequest,
			Ack:     gpio.DefaultPinAck,
		},
		PollInterval: 200 * time.Millisecond,
		Heartbeat:    15 * time.Minute,
		MQTT: MQTTConfig{
			Broker:   "tcp://192.168.1.200:1883",
			ClientID: "pi-power",
			Buffer:   100,
		},
		HTTP:    HTTPConfig{Addr: ":80"},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads the YAML file at path over the defaults and validates the result.
// An empty path returns the validated defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.PollInterval > logic.MaxPollInterval {
		return fmt.Errorf("poll_interval %v exceeds %v", c.PollInterval, logic.MaxPollInterval)
	}
	return nil
}

// Pins converts the GPIO section for gpio.Open.
func (c Config) Pins() gpio.Pins {
	return gpio.Pins{
		Chip:    c.GPIO.Chip,
		Relay:   c.GPIO.Relay,
		Request: c.GPIO.Request,
		Ack:     c.GPIO.Ack,
	}
}
