package cliconfig

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Sink names accepted by --sink.
const (
	SinkUDP  = "udp"
	SinkHTTP = "http"
	SinkFile = "file"
)

// DefaultAgentHostPort is the Jaeger agent's compact thrift port.
const DefaultAgentHostPort = "127.0.0.1:6831"

// Config holds CLI configuration for spanship.
type Config struct {
	Sink          string
	AgentHostPort string
	CollectorURL  string
	AuthToken     string
	HTTPTimeout   time.Duration

	LogDir      string
	LogBaseName string
	Compress    bool

	SpoolDir string
	StateDir string

	MaxPacketSize     int
	EmitBatchOverhead int

	PollInterval    time.Duration
	FlushInterval   time.Duration
	DeliveryTimeout time.Duration
	FlushOnSeal     bool
	Once            bool

	MetricsAddr string
	LogLevel    string

	Retention         bool
	RetentionInterval time.Duration
	HighWatermark     int64
	LowWatermark      int64
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Sink:              SinkUDP,
		AgentHostPort:     DefaultAgentHostPort,
		HTTPTimeout:       15 * time.Second,
		LogBaseName:       "spanship",
		MaxPacketSize:     65000,
		EmitBatchOverhead: 30,
		PollInterval:      time.Second,
		FlushInterval:     5 * time.Second,
		DeliveryTimeout:   10 * time.Second,
		LogLevel:          "info",
		RetentionInterval: time.Hour,
		HighWatermark:     2 << 30, // 2 GiB
		LowWatermark:      3 << 29, // 1.5 GiB
	}
}

// Validate checks the configuration for errors and sets derived defaults.
func (c *Config) Validate() error {
	if c.SpoolDir == "" {
		return fmt.Errorf("spool-dir is required")
	}
	if c.StateDir == "" {
		c.StateDir = c.SpoolDir
	}

	switch c.Sink {
	case SinkUDP:
		if c.AgentHostPort == "" {
			return fmt.Errorf("agent-host-port is required for the udp sink")
		}
	case SinkHTTP:
		c.CollectorURL = strings.TrimSuffix(c.CollectorURL, "/")
		if c.CollectorURL == "" {
			return fmt.Errorf("collector-url is required for the http sink")
		}
	case SinkFile:
		if c.LogDir == "" {
			return fmt.Errorf("log-dir is required for the file sink")
		}
	default:
		return fmt.Errorf("unknown sink %q (want udp, http or file)", c.Sink)
	}

	if c.MaxPacketSize <= c.EmitBatchOverhead {
		return fmt.Errorf("max packet size %d must exceed emit batch overhead %d",
			c.MaxPacketSize, c.EmitBatchOverhead)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	if c.FlushInterval < 0 {
		return fmt.Errorf("flush interval must not be negative")
	}

	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log level: %w", err)
	}

	if c.Retention && c.LowWatermark > c.HighWatermark {
		return fmt.Errorf("low watermark %d exceeds high watermark %d", c.LowWatermark, c.HighWatermark)
	}

	return nil
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

// newConfigSetter creates a new setter with the given changed flags map.
func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt64 sets an int64 value if positive and flag not changed.
func (s *configSetter) setInt64(flag string, value int64, dst *int64) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses a string to int and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

// setInt64FromString parses a byte count and sets the destination if positive.
func (s *configSetter) setInt64FromString(flag, value string, dst *int64) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

// setBoolFromString parses a string to bool and sets the destination.
// Accepts "true", "1" as true, anything else as false.
// Used for environment variables that come as strings.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
