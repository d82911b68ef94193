package udp

import (
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/uber/jaeger-client-go/thrift-gen/jaeger"

	"github.com/bft-labs/spanship/internal/domain"
)

func TestSink_EmitsOnePacketPerBatch(t *testing.T) {
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer conn.Close()

	f := NewFactory(conn.LocalAddr().String(), 0, nil)
	require.Equal(t, "udp", f.Name())

	sink, err := f.Open(context.Background())
	require.NoError(t, err)

	batch := domain.NewBatch(
		&domain.ProcessMetadata{Thrift: &jaeger.Process{ServiceName: "inventory-service"}},
		[]domain.SpanEncoding{{Thrift: &jaeger.Span{SpanId: 7, OperationName: "reserve-stock"}}},
	)
	require.NoError(t, sink.Deliver(context.Background(), batch))
	require.NoError(t, sink.Close())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	packet := make([]byte, 65536)
	n, _, err := conn.ReadFrom(packet)
	require.NoError(t, err)
	require.True(t, bytes.Contains(packet[:n], []byte("emitBatch")))
	require.True(t, bytes.Contains(packet[:n], []byte("inventory-service")))
	require.True(t, bytes.Contains(packet[:n], []byte("reserve-stock")))
}

func TestSink_PacketTooLarge(t *testing.T) {
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer conn.Close()

	sink, err := NewFactory(conn.LocalAddr().String(), 64, nil).Open(context.Background())
	require.NoError(t, err)
	defer sink.Close()

	batch := domain.NewBatch(
		&domain.ProcessMetadata{Thrift: &jaeger.Process{ServiceName: "a-service-name-that-is-long-enough"}},
		[]domain.SpanEncoding{{Thrift: &jaeger.Span{OperationName: "an-operation-name-that-overflows-the-packet"}}},
	)
	require.Error(t, sink.Deliver(context.Background(), batch))
}
