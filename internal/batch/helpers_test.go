package batch

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/uber/jaeger-client-go/thrift"
	"github.com/uber/jaeger-client-go/thrift-gen/jaeger"

	"github.com/bft-labs/spanship/internal/domain"
	"github.com/bft-labs/spanship/internal/ports"
)

// fakeMeasurer reports sizes chosen by the test instead of encoding.
// Span sizes are looked up by operation name.
type fakeMeasurer struct {
	processSize int
	spanSizes   map[string]int
	failOps     map[string]bool
	failProcess bool

	processCalls int
	spanCalls    int
}

func (m *fakeMeasurer) Measure(_ context.Context, entity thrift.TStruct) (int, []byte, error) {
	switch e := entity.(type) {
	case *jaeger.Process:
		m.processCalls++
		if m.failProcess {
			return 0, nil, fmt.Errorf("%w: process", domain.ErrEncoding)
		}
		return m.processSize, make([]byte, m.processSize), nil
	case *jaeger.Span:
		m.spanCalls++
		if m.failOps[e.OperationName] {
			return 0, nil, fmt.Errorf("%w: %s", domain.ErrEncoding, e.OperationName)
		}
		size := m.spanSizes[e.OperationName]
		return size, make([]byte, size), nil
	default:
		return 0, nil, errors.New("unexpected entity")
	}
}

type fakeBuilder struct{}

func (fakeBuilder) BuildProcess(tc *domain.TracerContext) *jaeger.Process {
	return &jaeger.Process{ServiceName: tc.ServiceName}
}

func (fakeBuilder) BuildSpan(s *domain.Span) *jaeger.Span {
	return &jaeger.Span{OperationName: s.OperationName, SpanId: int64(s.SpanID)}
}

type recordingMetrics struct {
	appended     int
	dropped      map[string]int
	encodingErrs int
	sealed       int
	sealedBytes  []int
	delivered    int
	failed       int
	flushes      []domain.FlushResult
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{dropped: map[string]int{}}
}

func (r *recordingMetrics) SpansAppended(n int)       { r.appended += n }
func (r *recordingMetrics) SpanDropped(reason string) { r.dropped[reason]++ }
func (r *recordingMetrics) EncodingError()            { r.encodingErrs++ }
func (r *recordingMetrics) BatchSealed(size int) {
	r.sealed++
	r.sealedBytes = append(r.sealedBytes, size)
}
func (r *recordingMetrics) BatchDelivered(_ string, spans int) { r.delivered += spans }
func (r *recordingMetrics) DeliveryFailed(_ string, spans int) { r.failed += spans }
func (r *recordingMetrics) Flushed(res domain.FlushResult)     { r.flushes = append(r.flushes, res) }

func newTestBuffer(t *testing.T, maxSpanBytes int, m *fakeMeasurer, metrics *recordingMetrics) *Buffer {
	t.Helper()
	cfg := Config{MaxPacketSize: maxSpanBytes + 30, EmitBatchOverhead: 30}
	var rec ports.Metrics
	if metrics != nil {
		rec = metrics
	}
	buf, err := NewBuffer(cfg, m, fakeBuilder{}, rec, nil)
	require.NoError(t, err)
	require.Equal(t, maxSpanBytes, buf.MaxSpanBytes())
	return buf
}

func spans(ops ...string) []*domain.Span {
	out := make([]*domain.Span, len(ops))
	for i, op := range ops {
		out[i] = &domain.Span{SpanID: uint64(i + 1), OperationName: op}
	}
	return out
}

func opNames(b *domain.Batch) []string {
	names := make([]string, 0, len(b.Spans))
	for _, s := range b.Spans {
		names = append(names, s.Thrift.OperationName)
	}
	return names
}

type logEntry struct {
	msg    string
	fields []ports.Field
}

// recordingLogger keeps every entry at every level.
type recordingLogger struct {
	entries []logEntry
}

func (l *recordingLogger) record(msg string, fields []ports.Field) {
	l.entries = append(l.entries, logEntry{msg: msg, fields: fields})
}

func (l *recordingLogger) Debug(msg string, fields ...ports.Field) { l.record(msg, fields) }
func (l *recordingLogger) Info(msg string, fields ...ports.Field)  { l.record(msg, fields) }
func (l *recordingLogger) Warn(msg string, fields ...ports.Field)  { l.record(msg, fields) }
func (l *recordingLogger) Error(msg string, fields ...ports.Field) { l.record(msg, fields) }

// loggedErrors returns the error fields logged with msg.
func (l *recordingLogger) loggedErrors(msg string) []error {
	var out []error
	for _, e := range l.entries {
		if e.msg != msg {
			continue
		}
		for _, f := range e.fields {
			if err, ok := f.Value.(error); ok && f.Key == "error" {
				out = append(out, err)
			}
		}
	}
	return out
}
