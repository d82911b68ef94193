package batch

import (
	"context"
	"fmt"

	"github.com/uber/jaeger-client-go/thrift"

	"github.com/bft-labs/spanship/internal/domain"
)

// Accountant measures the compact-thrift encoded size of entities.
// It reuses one memory buffer and is not safe for concurrent use.
type Accountant struct {
	buffer   *thrift.TMemoryBuffer
	protocol thrift.TProtocol
}

// NewAccountant creates an accountant whose buffer is pre-sized to one packet.
func NewAccountant() *Accountant {
	buffer := thrift.NewTMemoryBufferLen(DefaultMaxPacketSize)
	return &Accountant{
		buffer:   buffer,
		protocol: thrift.NewTCompactProtocolFactory().GetProtocol(buffer),
	}
}

// Measure encodes entity and returns the number of bytes written together
// with a copy of those bytes. The buffer is drained before returning.
func (a *Accountant) Measure(ctx context.Context, entity thrift.TStruct) (int, []byte, error) {
	a.buffer.Reset()

	if err := entity.Write(ctx, a.protocol); err != nil {
		a.resetProtocol()
		return 0, nil, fmt.Errorf("%w: %w", domain.ErrEncoding, err)
	}
	if err := a.protocol.Flush(ctx); err != nil {
		a.resetProtocol()
		return 0, nil, fmt.Errorf("%w: flush: %w", domain.ErrEncoding, err)
	}

	size := a.buffer.Len()
	encoded := make([]byte, size)
	copy(encoded, a.buffer.Bytes())
	a.buffer.Reset()

	return size, encoded, nil
}

// resetProtocol discards a half-written entity. The compact protocol tracks field
// ids across nested writes, so it is rebuilt as well.
func (a *Accountant) resetProtocol() {
	a.buffer.Reset()
	a.protocol = thrift.NewTCompactProtocolFactory().GetProtocol(a.buffer)
}
