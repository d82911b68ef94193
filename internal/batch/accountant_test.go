package batch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/uber/jaeger-client-go/thrift"
	"github.com/uber/jaeger-client-go/thrift-gen/jaeger"

	"github.com/bft-labs/spanship/internal/domain"
)

type brokenStruct struct{}

func (brokenStruct) Write(context.Context, thrift.TProtocol) error {
	return errors.New("write refused")
}

func (brokenStruct) Read(context.Context, thrift.TProtocol) error {
	return nil
}

func sampleSpan(op string) *jaeger.Span {
	value := "GET"
	return &jaeger.Span{
		TraceIdLow:    0x1234,
		SpanId:        0x42,
		OperationName: op,
		StartTime:     1_700_000_000_000_000,
		Duration:      1500,
		Tags: []*jaeger.Tag{
			{Key: "http.method", VType: jaeger.TagType_STRING, VStr: &value},
		},
	}
}

func TestAccountant_MeasureRoundTrips(t *testing.T) {
	a := NewAccountant()
	ctx := context.Background()

	span := sampleSpan("GET /cart")
	size, encoded, err := a.Measure(ctx, span)
	require.NoError(t, err)
	require.Positive(t, size)
	require.Len(t, encoded, size)

	buf := thrift.NewTMemoryBuffer()
	_, err = buf.Write(encoded)
	require.NoError(t, err)

	var decoded jaeger.Span
	require.NoError(t, decoded.Read(ctx, thrift.NewTCompactProtocolFactory().GetProtocol(buf)))
	require.Equal(t, span.OperationName, decoded.OperationName)
	require.Equal(t, span.SpanId, decoded.SpanId)
	require.Equal(t, span.Duration, decoded.Duration)
}

func TestAccountant_MeasureDoesNotAccumulate(t *testing.T) {
	a := NewAccountant()
	ctx := context.Background()

	first, _, err := a.Measure(ctx, sampleSpan("op"))
	require.NoError(t, err)
	second, _, err := a.Measure(ctx, sampleSpan("op"))
	require.NoError(t, err)
	require.Equal(t, first, second)

	longer, _, err := a.Measure(ctx, sampleSpan("a much longer operation name"))
	require.NoError(t, err)
	require.Greater(t, longer, first)
}

func TestAccountant_EncodedBytesAreCopied(t *testing.T) {
	a := NewAccountant()
	ctx := context.Background()

	_, first, err := a.Measure(ctx, sampleSpan("first"))
	require.NoError(t, err)
	snapshot := append([]byte(nil), first...)

	_, _, err = a.Measure(ctx, sampleSpan("second"))
	require.NoError(t, err)
	require.Equal(t, snapshot, first)
}

func TestAccountant_Process(t *testing.T) {
	a := NewAccountant()

	size, _, err := a.Measure(context.Background(), &jaeger.Process{ServiceName: "checkout"})
	require.NoError(t, err)
	require.Positive(t, size)
}

func TestAccountant_WriteError(t *testing.T) {
	a := NewAccountant()
	ctx := context.Background()

	_, _, err := a.Measure(ctx, brokenStruct{})
	require.ErrorIs(t, err, domain.ErrEncoding)

	// The accountant keeps working after a failed write.
	want, _, err := NewAccountant().Measure(ctx, sampleSpan("op"))
	require.NoError(t, err)
	got, _, err := a.Measure(ctx, sampleSpan("op"))
	require.NoError(t, err)
	require.Equal(t, want, got)
}
