// Package udp delivers batches to a Jaeger agent over UDP.
package udp

import (
	"context"
	"fmt"

	jaegerlog "github.com/uber/jaeger-client-go/log"
	"github.com/uber/jaeger-client-go/utils"

	"github.com/bft-labs/spanship/internal/domain"
	"github.com/bft-labs/spanship/internal/ports"
	"github.com/bft-labs/spanship/pkg/log"
)

// DefaultAgentHostPort is the agent's compact-thrift port on localhost.
const DefaultAgentHostPort = "127.0.0.1:6831"

// Factory dials the agent once per batch. A batch whose EmitBatch exceeds
// maxPacketSize, such as the overflow batch of a cycle, is rejected by the
// agent client and reported as a delivery error.
type Factory struct {
	hostPort      string
	maxPacketSize int
	logger        ports.Logger
}

// NewFactory creates a factory for the agent at hostPort.
func NewFactory(hostPort string, maxPacketSize int, logger ports.Logger) *Factory {
	if hostPort == "" {
		hostPort = DefaultAgentHostPort
	}
	if maxPacketSize <= 0 {
		maxPacketSize = utils.UDPPacketMaxLength
	}
	return &Factory{
		hostPort:      hostPort,
		maxPacketSize: maxPacketSize,
		logger:        log.OrNoop(logger),
	}
}

// Name implements ports.SinkFactory.
func (f *Factory) Name() string { return "udp" }

// Open implements ports.SinkFactory.
func (f *Factory) Open(context.Context) (ports.Sink, error) {
	client, err := utils.NewAgentClientUDPWithParams(utils.AgentClientUDPParams{
		HostPort:                   f.hostPort,
		MaxPacketSize:              f.maxPacketSize,
		Logger:                     agentLogger{f.logger},
		DisableAttemptReconnecting: true,
	})
	if err != nil {
		return nil, fmt.Errorf("dial agent %s: %w", f.hostPort, err)
	}
	return &Sink{client: client}, nil
}

// Sink emits one batch through the agent client.
type Sink struct {
	client *utils.AgentClientUDP
}

// Deliver implements ports.Sink.
func (s *Sink) Deliver(ctx context.Context, batch *domain.Batch) error {
	if batch.Process == nil {
		return fmt.Errorf("batch has no process")
	}
	if err := s.client.EmitBatch(ctx, batch.Thrift()); err != nil {
		return fmt.Errorf("emit batch: %w", err)
	}
	return nil
}

// Close implements ports.Sink.
func (s *Sink) Close() error {
	return s.client.Close()
}

// agentLogger routes the agent client's logging into ours.
type agentLogger struct {
	logger ports.Logger
}

var _ jaegerlog.Logger = agentLogger{}

func (l agentLogger) Error(msg string) {
	l.logger.Error(msg, ports.String("component", "agent-client"))
}

func (l agentLogger) Infof(msg string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(msg, args...), ports.String("component", "agent-client"))
}
