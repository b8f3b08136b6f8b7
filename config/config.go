// Package config loads the layout of buses and actuators from YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/hipsterbrown/dynamixel-joints/dynamixel"
	"gopkg.in/yaml.v3"
)

// Config is a complete layout: one entry per serial channel.
type Config struct {
	Channels []ChannelConfig `yaml:"channels"`
}

// ChannelConfig describes one serial line and the actuators on it.
type ChannelConfig struct {
	Name string `yaml:"name"`
	Port string `yaml:"port"`

	// BaudNum is the line rate selector. Omitted means DefaultBaudNum;
	// an explicit 0 selects 2 Mbps.
	BaudNum *int `yaml:"baud_num,omitempty"`

	MaxSyncDevices int           `yaml:"max_sync_devices,omitempty"`
	Timeout        time.Duration `yaml:"timeout,omitempty"`

	// Model names the actuator model for every actuator on the channel.
	// Default is the library default model.
	Model string `yaml:"model,omitempty"`

	// StepsPerTurn overrides the model's encoding with a full-turn one.
	StepsPerTurn int `yaml:"steps_per_turn,omitempty"`

	Actuators []ActuatorConfig `yaml:"actuators"`
}

// ActuatorConfig describes one actuator.
type ActuatorConfig struct {
	ID           int  `yaml:"id"`
	CenterOffset int  `yaml:"center_offset,omitempty"`
	MaxTorque    *int `yaml:"max_torque,omitempty"`
}

// LoadError describes a layout that could not be read or is invalid.
type LoadError struct {
	// File is the path of the layout, empty for Parse.
	File string

	// Channel names the offending channel, if any.
	Channel string

	Message string
	Cause   error
}

func (e *LoadError) Error() string {
	msg := e.Message
	if e.Channel != "" {
		msg = fmt.Sprintf("channel %q: %s", e.Channel, msg)
	}
	if e.File != "" {
		msg = e.File + ": " + msg
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *LoadError) Unwrap() error {
	return e.Cause
}

// Load reads and validates a layout file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{File: path, Message: "failed to read file", Cause: err}
	}

	cfg, err := Parse(data)
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) {
			le.File = path
		}
		return nil, err
	}
	return cfg, nil
}

// Parse decodes and validates a layout. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	var cfg Config

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, &LoadError{Message: "failed to parse YAML", Cause: err}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the layout for problems that would only surface on the
// wire: clashing names, ports or IDs, unknown models and out-of-range values.
func (c *Config) Validate() error {
	if len(c.Channels) == 0 {
		return &LoadError{Message: "no channels defined"}
	}

	names := make(map[string]bool)
	ports := make(map[string]bool)
	for i := range c.Channels {
		ch := &c.Channels[i]

		if ch.Name == "" {
			return &LoadError{Message: fmt.Sprintf("channel %d has no name", i)}
		}
		if names[ch.Name] {
			return &LoadError{Channel: ch.Name, Message: "duplicate channel name"}
		}
		names[ch.Name] = true

		if err := ch.validate(); err != nil {
			return err
		}

		if ports[ch.Port] {
			return &LoadError{Channel: ch.Name, Message: fmt.Sprintf("port %s used by another channel", ch.Port)}
		}
		ports[ch.Port] = true
	}
	return nil
}

func (ch *ChannelConfig) validate() error {
	fail := func(format string, args ...any) error {
		return &LoadError{Channel: ch.Name, Message: fmt.Sprintf(format, args...)}
	}

	if ch.Port == "" {
		return fail("port is required")
	}
	if b := ch.Baud(); b < 0 || b > 254 {
		return fail("baud_num %d out of range 0-254", b)
	}
	if ch.MaxSyncDevices < 0 {
		return fail("max_sync_devices must not be negative")
	}
	if ch.Timeout < 0 {
		return fail("timeout must not be negative")
	}
	if ch.StepsPerTurn < 0 {
		return fail("steps_per_turn must be positive")
	}

	model, err := ch.model()
	if err != nil {
		return &LoadError{Channel: ch.Name, Message: "unknown model", Cause: err}
	}

	ids := make(map[int]bool)
	for _, a := range ch.Actuators {
		if a.ID < 0 || a.ID > dynamixel.MaxID {
			return fail("actuator id %d out of range 0-%d", a.ID, dynamixel.MaxID)
		}
		if ids[a.ID] {
			return fail("duplicate actuator id %d", a.ID)
		}
		ids[a.ID] = true

		if a.MaxTorque != nil && (*a.MaxTorque < 0 || *a.MaxTorque > model.MaxTorque) {
			return fail("actuator %d: max_torque %d out of range 0-%d", a.ID, *a.MaxTorque, model.MaxTorque)
		}
	}
	return nil
}

// Baud returns the configured baud number or DefaultBaudNum.
func (ch *ChannelConfig) Baud() int {
	if ch.BaudNum == nil {
		return dynamixel.DefaultBaudNum
	}
	return *ch.BaudNum
}

func (ch *ChannelConfig) model() (*dynamixel.Model, error) {
	if ch.Model == "" {
		return dynamixel.DefaultModel, nil
	}
	m, ok := dynamixel.GetModel(ch.Model)
	if !ok {
		return nil, fmt.Errorf("%q (known: %v)", ch.Model, dynamixel.ListModels())
	}
	return m, nil
}

// BusConfig returns the settings for opening the channel's bus. The caller
// adds a Logger or Opener as needed.
func (ch *ChannelConfig) BusConfig() dynamixel.BusConfig {
	return dynamixel.BusConfig{
		Port:           ch.Port,
		BaudNum:        ch.Baud(),
		MaxSyncDevices: ch.MaxSyncDevices,
		Timeout:        ch.Timeout,
	}
}

// NewActuators builds the channel's actuators, unattached, in file order.
func (ch *ChannelConfig) NewActuators() ([]*dynamixel.Actuator, error) {
	model, err := ch.model()
	if err != nil {
		return nil, &LoadError{Channel: ch.Name, Message: "unknown model", Cause: err}
	}

	actuators := make([]*dynamixel.Actuator, 0, len(ch.Actuators))
	for _, a := range ch.Actuators {
		opts := []dynamixel.ActuatorOption{
			dynamixel.WithModel(model),
			dynamixel.WithCenterOffset(a.CenterOffset),
		}
		if ch.StepsPerTurn > 0 {
			opts = append(opts, dynamixel.WithEncoding(dynamixel.FullTurn(ch.StepsPerTurn)))
		}
		if a.MaxTorque != nil {
			opts = append(opts, dynamixel.WithMaxTorque(*a.MaxTorque))
		}
		actuators = append(actuators, dynamixel.NewActuator(a.ID, opts...))
	}
	return actuators, nil
}

// Open opens the channel's bus and attaches its actuators. On failure the
// bus is closed again.
func (ch *ChannelConfig) Open(cfg dynamixel.BusConfig) (*dynamixel.Bus, error) {
	actuators, err := ch.NewActuators()
	if err != nil {
		return nil, err
	}

	bus, err := dynamixel.Open(cfg)
	if err != nil {
		return nil, err
	}
	if err := bus.AttachMany(actuators...); err != nil {
		bus.Close()
		return nil, fmt.Errorf("channel %s: %w", ch.Name, err)
	}
	return bus, nil
}
