package http

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"runtime"
	"strings"

	"github.com/uber/jaeger-client-go/thrift"

	"github.com/bft-labs/spanship/internal/domain"
	"github.com/bft-labs/spanship/internal/ports"
	"github.com/bft-labs/spanship/pkg/log"
)

const (
	tracesEndpoint   = "/api/traces"
	thriftFormat     = "jaeger.thrift"
	thriftMediaType  = "application/x-thrift"
	maxErrorBodySize = 4 << 10
)

// Factory opens collector sinks. All sinks share one HTTP client.
type Factory struct {
	client    ports.HTTPClient
	endpoint  string
	authToken string
	userAgent string
	logger    ports.Logger
}

// NewFactory creates a factory posting to the collector at collectorURL.
func NewFactory(client ports.HTTPClient, collectorURL, authToken, version string, logger ports.Logger) *Factory {
	return &Factory{
		client:    client,
		endpoint:  strings.TrimRight(collectorURL, "/") + tracesEndpoint + "?format=" + thriftFormat,
		authToken: authToken,
		userAgent: "spanship/" + version + " (" + runtime.GOOS + "/" + runtime.GOARCH + ")",
		logger:    log.OrNoop(logger),
	}
}

// Name implements ports.SinkFactory.
func (f *Factory) Name() string { return "http" }

// Open implements ports.SinkFactory.
func (f *Factory) Open(context.Context) (ports.Sink, error) {
	return &Sink{factory: f}, nil
}

// Endpoint returns the full collector URL batches are posted to.
func (f *Factory) Endpoint() string { return f.endpoint }

// Sink posts one batch to the Jaeger collector as binary thrift.
type Sink struct {
	factory *Factory
}

// Deliver transmits the batch to the collector.
func (s *Sink) Deliver(ctx context.Context, batch *domain.Batch) error {
	if batch.Process == nil {
		return fmt.Errorf("batch has no process")
	}

	body, err := serialize(ctx, batch)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.factory.endpoint, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", thriftMediaType)
	req.Header.Set("User-Agent", s.factory.userAgent)
	if s.factory.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+s.factory.authToken)
	}

	resp, err := s.factory.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return fmt.Errorf("collector returned %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, resp.Body)

	s.factory.logger.Debug("batch posted",
		ports.Int("spans", batch.SpanCount()),
		ports.Int("status", resp.StatusCode),
	)
	return nil
}

// Close implements ports.Sink. The shared client stays open.
func (s *Sink) Close() error { return nil }

func serialize(ctx context.Context, batch *domain.Batch) (io.Reader, error) {
	buf := thrift.NewTMemoryBuffer()
	protocol := thrift.NewTBinaryProtocolTransport(buf)
	if err := batch.Thrift().Write(ctx, protocol); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEncoding, err)
	}
	return buf.Buffer, nil
}
