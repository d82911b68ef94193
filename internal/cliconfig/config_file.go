package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	Sink          string `toml:"sink"`
	AgentHostPort string `toml:"agent_host_port"`
	CollectorURL  string `toml:"collector_url"`
	AuthToken     string `toml:"auth_token"`
	HTTPTimeout   string `toml:"http_timeout"`

	LogDir      string `toml:"log_dir"`
	LogBaseName string `toml:"log_base_name"`
	Compress    *bool  `toml:"compress"`

	SpoolDir string `toml:"spool_dir"`
	StateDir string `toml:"state_dir"`

	MaxPacketSize     int `toml:"max_packet_size"`
	EmitBatchOverhead int `toml:"emit_batch_overhead"`

	PollInterval    string `toml:"poll_interval"`
	FlushInterval   string `toml:"flush_interval"`
	DeliveryTimeout string `toml:"delivery_timeout"`
	FlushOnSeal     *bool  `toml:"flush_on_seal"`
	Once            *bool  `toml:"once"`

	MetricsAddr string `toml:"metrics_addr"`
	LogLevel    string `toml:"log_level"`

	Retention         *bool  `toml:"retention"`
	RetentionInterval string `toml:"retention_interval"`
	HighWatermark     int64  `toml:"high_watermark"`
	LowWatermark      int64  `toml:"low_watermark"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns the default configuration file path.
// Returns ~/.spanship/config.toml if user home directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".spanship", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("sink", fc.Sink, &cfg.Sink)
	s.setString("agent-host-port", fc.AgentHostPort, &cfg.AgentHostPort)
	s.setString("collector-url", fc.CollectorURL, &cfg.CollectorURL)
	s.setString("auth-token", fc.AuthToken, &cfg.AuthToken)
	s.setString("log-dir", fc.LogDir, &cfg.LogDir)
	s.setString("log-base-name", fc.LogBaseName, &cfg.LogBaseName)
	s.setString("spool-dir", fc.SpoolDir, &cfg.SpoolDir)
	s.setString("state-dir", fc.StateDir, &cfg.StateDir)
	s.setString("metrics-addr", fc.MetricsAddr, &cfg.MetricsAddr)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)

	if err := s.setDuration("timeout", fc.HTTPTimeout, &cfg.HTTPTimeout); err != nil {
		return err
	}
	if err := s.setDuration("poll", fc.PollInterval, &cfg.PollInterval); err != nil {
		return err
	}
	if err := s.setDuration("flush-interval", fc.FlushInterval, &cfg.FlushInterval); err != nil {
		return err
	}
	if err := s.setDuration("delivery-timeout", fc.DeliveryTimeout, &cfg.DeliveryTimeout); err != nil {
		return err
	}
	if err := s.setDuration("retention-interval", fc.RetentionInterval, &cfg.RetentionInterval); err != nil {
		return err
	}

	s.setInt("max-packet-size", fc.MaxPacketSize, &cfg.MaxPacketSize)
	s.setInt("emit-batch-overhead", fc.EmitBatchOverhead, &cfg.EmitBatchOverhead)
	s.setInt64("high-watermark", fc.HighWatermark, &cfg.HighWatermark)
	s.setInt64("low-watermark", fc.LowWatermark, &cfg.LowWatermark)

	s.setBool("compress", fc.Compress, &cfg.Compress)
	s.setBool("flush-on-seal", fc.FlushOnSeal, &cfg.FlushOnSeal)
	s.setBool("once", fc.Once, &cfg.Once)
	s.setBool("retention", fc.Retention, &cfg.Retention)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
