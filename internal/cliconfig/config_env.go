package cliconfig

import "os"

// EnvPrefix prefixes every environment variable read by ApplyEnvConfig.
const EnvPrefix = "SPANSHIP_"

// ApplyEnvConfig applies configuration from environment variables (SPANSHIP_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)
	env := func(name string) string { return os.Getenv(EnvPrefix + name) }

	s.setString("sink", env("SINK"), &cfg.Sink)
	s.setString("agent-host-port", env("AGENT_HOST_PORT"), &cfg.AgentHostPort)
	s.setString("collector-url", env("COLLECTOR_URL"), &cfg.CollectorURL)
	s.setString("auth-token", env("AUTH_TOKEN"), &cfg.AuthToken)
	s.setString("log-dir", env("LOG_DIR"), &cfg.LogDir)
	s.setString("log-base-name", env("LOG_BASE_NAME"), &cfg.LogBaseName)
	s.setString("spool-dir", env("SPOOL_DIR"), &cfg.SpoolDir)
	s.setString("state-dir", env("STATE_DIR"), &cfg.StateDir)
	s.setString("metrics-addr", env("METRICS_ADDR"), &cfg.MetricsAddr)
	s.setString("log-level", env("LOG_LEVEL"), &cfg.LogLevel)

	if err := s.setDuration("timeout", env("HTTP_TIMEOUT"), &cfg.HTTPTimeout); err != nil {
		return err
	}
	if err := s.setDuration("poll", env("POLL_INTERVAL"), &cfg.PollInterval); err != nil {
		return err
	}
	if err := s.setDuration("flush-interval", env("FLUSH_INTERVAL"), &cfg.FlushInterval); err != nil {
		return err
	}
	if err := s.setDuration("delivery-timeout", env("DELIVERY_TIMEOUT"), &cfg.DeliveryTimeout); err != nil {
		return err
	}
	if err := s.setDuration("retention-interval", env("RETENTION_INTERVAL"), &cfg.RetentionInterval); err != nil {
		return err
	}

	if err := s.setIntFromString("max-packet-size", env("MAX_PACKET_SIZE"), &cfg.MaxPacketSize); err != nil {
		return err
	}
	if err := s.setIntFromString("emit-batch-overhead", env("EMIT_BATCH_OVERHEAD"), &cfg.EmitBatchOverhead); err != nil {
		return err
	}
	if err := s.setInt64FromString("high-watermark", env("HIGH_WATERMARK"), &cfg.HighWatermark); err != nil {
		return err
	}
	if err := s.setInt64FromString("low-watermark", env("LOW_WATERMARK"), &cfg.LowWatermark); err != nil {
		return err
	}

	s.setBoolFromString("compress", env("COMPRESS"), &cfg.Compress)
	s.setBoolFromString("flush-on-seal", env("FLUSH_ON_SEAL"), &cfg.FlushOnSeal)
	s.setBoolFromString("once", env("ONCE"), &cfg.Once)
	s.setBoolFromString("retention", env("RETENTION"), &cfg.Retention)

	return nil
}
