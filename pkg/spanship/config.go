package spanship

import (
	"fmt"
	"time"

	"github.com/bft-labs/spanship/internal/adapters/file"
	"github.com/bft-labs/spanship/internal/adapters/udp"
	"github.com/bft-labs/spanship/internal/batch"
	"github.com/bft-labs/spanship/internal/domain"
)

// Sink names accepted in Config.Sink.
const (
	SinkUDP  = "udp"
	SinkHTTP = "http"
	SinkFile = "file"
)

// Config holds the configuration for a Spanship instance.
// Zero values are replaced by SetDefaults.
type Config struct {
	// MaxPacketSize is the largest payload the transport accepts.
	// Default: 65000, the Jaeger agent's UDP limit
	MaxPacketSize int

	// EmitBatchOverhead is reserved in every packet for the emitBatch envelope.
	// Default: 30
	EmitBatchOverhead int

	// Sink selects the transport: "udp", "http" or "file". Default: "udp"
	Sink string

	// AgentHostPort is the Jaeger agent address for the udp sink.
	AgentHostPort string

	// CollectorURL is the Jaeger collector base URL for the http sink.
	CollectorURL string

	// AuthToken is sent as a bearer token by the http sink when set.
	AuthToken string

	// HTTPTimeout bounds each collector request. Default: 15s
	HTTPTimeout time.Duration

	// LogDir, LogBaseName and Compress configure the file sink.
	LogDir      string
	LogBaseName string
	Compress    bool

	// SpoolDir is watched for *.ndjson files of tracer contexts.
	// Empty disables the shipping loop; use Append and Flush directly.
	SpoolDir string

	// StateDir holds status.json. Defaults to SpoolDir.
	StateDir string

	// PollInterval is how often an idle spool is re-scanned. Default: 1s
	PollInterval time.Duration

	// FlushInterval forces a flush while contexts keep arriving.
	// Zero flushes only when the spool is drained.
	FlushInterval time.Duration

	// DeliveryTimeout bounds a single batch delivery. Zero means no limit
	// beyond the caller's context.
	DeliveryTimeout time.Duration

	// FlushOnSeal flushes as soon as a batch is sealed, mid-append.
	FlushOnSeal bool

	// Once drains the spool a single time, then the worker exits.
	Once bool
}

// SetDefaults fills zero fields with their defaults.
func (c *Config) SetDefaults() {
	if c.MaxPacketSize == 0 {
		c.MaxPacketSize = batch.DefaultMaxPacketSize
	}
	if c.EmitBatchOverhead == 0 {
		c.EmitBatchOverhead = batch.DefaultEmitBatchOverhead
	}
	if c.Sink == "" {
		c.Sink = SinkUDP
	}
	if c.AgentHostPort == "" {
		c.AgentHostPort = udp.DefaultAgentHostPort
	}
	if c.HTTPTimeout == 0 {
		c.HTTPTimeout = 15 * time.Second
	}
	if c.LogBaseName == "" {
		c.LogBaseName = file.DefaultBaseName
	}
	if c.StateDir == "" {
		c.StateDir = c.SpoolDir
	}
	if c.PollInterval == 0 {
		c.PollInterval = time.Second
	}
}

// Validate checks the configuration. Errors wrap ErrInvalidConfig.
func (c Config) Validate() error {
	return c.validate(true)
}

// validate skips the sink checks when the host supplies its own sink factory.
func (c Config) validate(checkSink bool) error {
	if _, err := c.batchConfig().MaxSpanBytes(); err != nil {
		return err
	}
	if checkSink {
		if err := c.validateSink(); err != nil {
			return err
		}
	}
	if c.Once && c.SpoolDir == "" {
		return invalid("once mode needs a spool dir")
	}
	if c.PollInterval < 0 || c.FlushInterval < 0 || c.DeliveryTimeout < 0 {
		return invalid("intervals must not be negative")
	}
	return nil
}

func (c Config) validateSink() error {
	switch c.Sink {
	case SinkUDP:
		if c.AgentHostPort == "" {
			return invalid("agent host:port is required for the udp sink")
		}
	case SinkHTTP:
		if c.CollectorURL == "" {
			return invalid("collector URL is required for the http sink")
		}
	case SinkFile:
		if c.LogDir == "" {
			return invalid("log dir is required for the file sink")
		}
	default:
		return invalid(fmt.Sprintf("unknown sink %q", c.Sink))
	}
	return nil
}

func (c Config) batchConfig() batch.Config {
	return batch.Config{
		MaxPacketSize:     c.MaxPacketSize,
		EmitBatchOverhead: c.EmitBatchOverhead,
	}
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", domain.ErrInvalidConfig, msg)
}
