// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package config loads the node configuration from a YAML file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/GermanBionicSystems/rtdnode/ads1115"
	"github.com/GermanBionicSystems/rtdnode/node"
	"github.com/GermanBionicSystems/rtdnode/pt100"
	"github.com/GermanBionicSystems/rtdnode/transport"
	"github.com/GermanBionicSystems/rtdnode/transport/mqttcast"
	"github.com/GermanBionicSystems/rtdnode/transport/uartradio"
	"gopkg.in/yaml.v3"
	"periph.io/x/conn/v3/physic"
)

// Transport kinds.
const (
	KindMQTT = "mqtt"
	KindUART = "uart"
)

// Config is the node configuration.
type Config struct {
	Bus       BusConfig       `yaml:"bus"`
	Converter ConverterConfig `yaml:"converter"`
	Power     PowerConfig     `yaml:"power"`
	Channels  ChannelsConfig  `yaml:"channels"`
	RTD       RTDConfig       `yaml:"rtd"`
	Cycle     CycleConfig     `yaml:"cycle"`
	Transport TransportConfig `yaml:"transport"`
	Log       LogConfig       `yaml:"log"`
}

// BusConfig selects the I²C bus and the converter address.
type BusConfig struct {
	// Name is the i2creg name; empty selects the first bus.
	Name    string `yaml:"name"`
	Address uint16 `yaml:"address"`
}

// ConverterConfig holds the converter settings.
type ConverterConfig struct {
	// DataRate is in samples per second.
	DataRate int `yaml:"data_rate"`
}

// PowerConfig names the pin switching the bridge excitation.
type PowerConfig struct {
	Pin string `yaml:"pin"`
}

// ChannelConfig is one converter channel.
type ChannelConfig struct {
	// Input is an input name such as "AIN1-AIN3" or "AIN0-GND".
	Input string `yaml:"input"`
	// Range is the full-scale voltage in millivolts.
	Range int `yaml:"range"`
}

// ChannelsConfig maps each conversion to a channel.
type ChannelsConfig struct {
	Reference ChannelConfig `yaml:"reference"`
	Sensor    ChannelConfig `yaml:"sensor"`
	Supply    ChannelConfig `yaml:"supply"`
}

// RTDConfig holds the bridge constants.
type RTDConfig struct {
	ReferenceOhms float64 `yaml:"reference_ohms"`
	MinCelsius    float64 `yaml:"min_celsius"`
	MaxCelsius    float64 `yaml:"max_celsius"`
}

// CycleConfig holds the duty cycle timing.
type CycleConfig struct {
	Period            time.Duration `yaml:"period"`
	MemoryOff         bool          `yaml:"memory_off"`
	Interval          bool          `yaml:"interval"`
	MinSleep          time.Duration `yaml:"min_sleep"`
	PollInterval      time.Duration `yaml:"poll_interval"`
	ConversionTimeout time.Duration `yaml:"conversion_timeout"`
	MaxPolls          int           `yaml:"max_polls"` // 0 = unlimited
}

// TransportConfig selects and tunes the broadcast transport.
type TransportConfig struct {
	Kind          string        `yaml:"kind"`
	Retries       int           `yaml:"retries"`
	RetryInterval time.Duration `yaml:"retry_interval"`
	MaxDelay      time.Duration `yaml:"max_delay"`
	Timeout       time.Duration `yaml:"timeout"`
	MQTT          MQTTConfig    `yaml:"mqtt"`
	UART          UARTConfig    `yaml:"uart"`
}

// MQTTConfig is used with kind "mqtt".
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"` // empty = random
	QoS      byte   `yaml:"qos"`
}

// UARTConfig is used with kind "uart".
type UARTConfig struct {
	Port    string `yaml:"port"`
	Baud    int    `yaml:"baud"`
	Address uint16 `yaml:"address"`
}

// LogConfig holds the logging level: debug, info, warn or error.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration of the reference board.
func Default() *Config {
	return &Config{
		Bus:       BusConfig{Address: ads1115.DefaultAddress},
		Converter: ConverterConfig{DataRate: 128},
		Power:     PowerConfig{Pin: "GPIO17"},
		Channels: ChannelsConfig{
			Reference: ChannelConfig{Input: "AIN1-AIN3", Range: 2048},
			Sensor:    ChannelConfig{Input: "AIN0-AIN1", Range: 2048},
			Supply:    ChannelConfig{Input: "AIN0-GND", Range: 4096},
		},
		RTD: RTDConfig{ReferenceOhms: 100, MinCelsius: -100, MaxCelsius: 200},
		Cycle: CycleConfig{
			Period:            time.Minute,
			MemoryOff:         true,
			Interval:          true,
			MinSleep:          time.Millisecond,
			PollInterval:      2 * time.Millisecond,
			ConversionTimeout: 250 * time.Millisecond,
		},
		Transport: TransportConfig{
			Kind:          KindMQTT,
			Retries:       transport.DefaultPolicy.Retries,
			RetryInterval: transport.DefaultPolicy.Interval,
			MaxDelay:      transport.DefaultPolicy.MaxDelay,
			Timeout:       transport.DefaultPolicy.Timeout,
			MQTT: MQTTConfig{
				Broker: mqttcast.DefaultOpts.Broker,
				Topic:  mqttcast.DefaultOpts.Topic,
			},
			UART: UARTConfig{
				Port: "/dev/ttyS0",
				Baud: uartradio.DefaultOpts.Baud,
			},
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load loads the configuration from a YAML file. A missing file or missing
// fields keep their default values.
func Load(filename string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(filename)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", filename, err)
	}
	cfg.ensureDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// ensureDefaults fills fields explicitly set to zero where zero is not
// usable.
func (c *Config) ensureDefaults() {
	def := Default()
	if c.Bus.Address == 0 {
		c.Bus.Address = def.Bus.Address
	}
	if c.Converter.DataRate == 0 {
		c.Converter.DataRate = def.Converter.DataRate
	}
	if c.RTD.ReferenceOhms == 0 {
		c.RTD.ReferenceOhms = def.RTD.ReferenceOhms
	}
	if c.Cycle.Period == 0 {
		c.Cycle.Period = def.Cycle.Period
	}
	if c.Cycle.PollInterval == 0 {
		c.Cycle.PollInterval = def.Cycle.PollInterval
	}
	if c.Transport.Kind == "" {
		c.Transport.Kind = def.Transport.Kind
	}
	if c.Transport.MQTT.Topic == "" {
		c.Transport.MQTT.Topic = def.Transport.MQTT.Topic
	}
	if c.Transport.UART.Baud == 0 {
		c.Transport.UART.Baud = def.Transport.UART.Baud
	}
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
}

// Validate returns the first invalid setting.
func (c *Config) Validate() error {
	if _, err := c.ConverterOpts(); err != nil {
		return err
	}
	if _, err := c.NodeChannels(); err != nil {
		return err
	}
	if c.Power.Pin == "" {
		return errors.New("config: power.pin is required")
	}
	if c.RTD.ReferenceOhms <= 0 {
		return fmt.Errorf("config: rtd.reference_ohms must be positive, got %g", c.RTD.ReferenceOhms)
	}
	if c.RTD.MinCelsius >= c.RTD.MaxCelsius {
		return fmt.Errorf("config: rtd.min_celsius %g is not below max_celsius %g", c.RTD.MinCelsius, c.RTD.MaxCelsius)
	}
	if c.Cycle.Period <= 0 || c.Cycle.PollInterval <= 0 {
		return errors.New("config: cycle.period and cycle.poll_interval must be positive")
	}
	if c.Cycle.MinSleep < 0 || c.Cycle.ConversionTimeout < 0 || c.Cycle.MaxPolls < 0 {
		return errors.New("config: negative cycle setting")
	}
	if err := c.Policy().Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	switch c.Transport.Kind {
	case KindMQTT:
		if c.Transport.MQTT.Broker == "" {
			return errors.New("config: transport.mqtt.broker is required")
		}
		if c.Transport.MQTT.QoS > 1 {
			return fmt.Errorf("config: transport.mqtt.qos %d is not 0 or 1", c.Transport.MQTT.QoS)
		}
	case KindUART:
		if c.Transport.UART.Port == "" {
			return errors.New("config: transport.uart.port is required")
		}
	default:
		return fmt.Errorf("config: unknown transport.kind %q", c.Transport.Kind)
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	return nil
}

// ConverterOpts returns the converter options.
func (c *Config) ConverterOpts() (*ads1115.Opts, error) {
	rate, err := ads1115.RateOf(c.Converter.DataRate)
	if err != nil {
		return nil, fmt.Errorf("config: converter.data_rate: %w", err)
	}
	return &ads1115.Opts{Rate: rate}, nil
}

// NodeChannels returns the channel of each conversion.
func (c *Config) NodeChannels() (node.Channels, error) {
	var out node.Channels
	for role, ch := range [...]ChannelConfig{
		node.Reference: c.Channels.Reference,
		node.Sensor:    c.Channels.Sensor,
		node.Supply:    c.Channels.Supply,
	} {
		role := node.Role(role)
		in, err := ads1115.ParseInput(ch.Input)
		if err != nil {
			return out, fmt.Errorf("config: channels.%s.input: %w", role, err)
		}
		r, err := ads1115.RangeOf(physic.ElectricPotential(ch.Range) * physic.MilliVolt)
		if err != nil {
			return out, fmt.Errorf("config: channels.%s.range: %w", role, err)
		}
		out[role] = node.Channel{Input: in, Range: r}
	}
	return out, nil
}

// SchedulerOpts returns the duty cycle options. log is passed to the
// Sequencer.
func (c *Config) SchedulerOpts(log *slog.Logger) (*node.SchedulerOpts, error) {
	channels, err := c.NodeChannels()
	if err != nil {
		return nil, err
	}
	return &node.SchedulerOpts{
		Period:    c.Cycle.Period,
		MinSleep:  c.Cycle.MinSleep,
		Interval:  c.Cycle.Interval,
		MemoryOff: c.Cycle.MemoryOff,
		Sequencer: node.Opts{
			Calibration: node.Calibration{
				Channels:      channels,
				ReferenceOhms: c.RTD.ReferenceOhms,
				Table:         pt100.Default,
				MinCelsius:    c.RTD.MinCelsius,
				MaxCelsius:    c.RTD.MaxCelsius,
			},
			ConversionTimeout: c.Cycle.ConversionTimeout,
			MaxPolls:          c.Cycle.MaxPolls,
			Logger:            log,
		},
	}, nil
}

// RunnerOpts returns the event loop options.
func (c *Config) RunnerOpts(once bool) *node.RunnerOpts {
	return &node.RunnerOpts{PollInterval: c.Cycle.PollInterval, Once: once}
}

// Policy returns the broadcast retry policy.
func (c *Config) Policy() *transport.Policy {
	return &transport.Policy{
		Retries:  c.Transport.Retries,
		Interval: c.Transport.RetryInterval,
		MaxDelay: c.Transport.MaxDelay,
		Timeout:  c.Transport.Timeout,
	}
}

// MQTTOpts returns the MQTT connection options.
func (c *Config) MQTTOpts() *mqttcast.Opts {
	m := c.Transport.MQTT
	return &mqttcast.Opts{
		Broker:    m.Broker,
		Topic:     m.Topic,
		ClientID:  m.ClientID,
		QoS:       m.QoS,
		KeepAlive: mqttcast.DefaultOpts.KeepAlive,
	}
}

// UARTOpts returns the modem options.
func (c *Config) UARTOpts() *uartradio.Opts {
	u := c.Transport.UART
	return &uartradio.Opts{Baud: u.Baud, Address: u.Address, ReplyTimeout: uartradio.DefaultOpts.ReplyTimeout}
}

// LogLevel parses Log.Level.
func (c *Config) LogLevel() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("config: log.level: %w", err)
	}
	return l, nil
}
