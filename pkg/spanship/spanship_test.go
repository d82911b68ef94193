package spanship_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"github.com/zoobzio/clockz"

	"github.com/bft-labs/spanship/pkg/spanship"
	"github.com/bft-labs/spanship/pkg/state"
)

func TestNew_InvalidConfig(t *testing.T) {
	_, err := spanship.New(spanship.Config{MaxPacketSize: 30, EmitBatchOverhead: 30})
	require.ErrorIs(t, err, spanship.ErrInvalidConfig)
}

func TestSpanship_AppendAndFlush(t *testing.T) {
	rec := &recordingFactory{}
	s, err := spanship.New(spanship.Config{}, spanship.WithSinkFactory(rec))
	require.NoError(t, err)

	require.True(t, s.Append(context.Background(), tracerContext("checkout", "a", "b", "c")))

	delivered, err := s.Flush(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, delivered)
	require.Equal(t, 1, rec.batchCount())
	require.Zero(t, s.Dropped())

	delivered, err = s.Flush(context.Background())
	require.NoError(t, err)
	require.Zero(t, delivered)
}

func TestSpanship_StartStopWithoutSpool(t *testing.T) {
	rec := &recordingFactory{}
	handler := &recordingHandler{}
	s, err := spanship.New(spanship.Config{},
		spanship.WithSinkFactory(rec),
		spanship.WithEventHandler(handler),
	)
	require.NoError(t, err)
	require.Equal(t, spanship.StateStopped, s.Status())
	require.Nil(t, s.Done())

	require.NoError(t, s.Start(context.Background()))
	require.Equal(t, spanship.StateRunning, s.Status())
	require.ErrorIs(t, s.Start(context.Background()), spanship.ErrAlreadyRunning)

	s.Append(context.Background(), tracerContext("checkout", "a", "b"))

	require.NoError(t, s.Stop())
	require.Equal(t, spanship.StateStopped, s.Status())
	require.Equal(t, 2, rec.spanCount(), "Stop flushes queued batches")
	require.ErrorIs(t, s.Stop(), spanship.ErrNotRunning)

	select {
	case <-s.Done():
	default:
		t.Fatal("Done not closed after Stop")
	}

	states, _ := handler.snapshot()
	require.Equal(t, []spanship.State{
		spanship.StateStarting,
		spanship.StateRunning,
		spanship.StateStopping,
		spanship.StateStopped,
	}, states)
}

func writeContexts(t *testing.T, dir, name string, tcs ...*spanship.TracerContext) {
	t.Helper()
	var lines []string
	for _, tc := range tcs {
		data, err := json.Marshal(tc)
		require.NoError(t, err)
		lines = append(lines, string(data))
	}
	tmp := filepath.Join(dir, "."+name+".tmp")
	require.NoError(t, os.WriteFile(tmp, []byte(strings.Join(lines, "\n")+"\n"), 0o600))
	require.NoError(t, os.Rename(tmp, filepath.Join(dir, name)))
}

func TestSpanship_OnceDrainsSpool(t *testing.T) {
	spool := t.TempDir()
	writeContexts(t, spool, "001.ndjson",
		tracerContext("checkout", "a", "b"),
		tracerContext("checkout", "c"),
	)
	writeContexts(t, spool, "002.ndjson", tracerContext("billing", "d"))

	rec := &recordingFactory{}
	handler := &recordingHandler{}
	s, err := spanship.New(spanship.Config{SpoolDir: spool, Once: true},
		spanship.WithSinkFactory(rec),
		spanship.WithEventHandler(handler),
	)
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))

	select {
	case <-s.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("once mode did not finish")
	}
	require.NoError(t, s.Stop())

	require.Equal(t, 4, rec.spanCount())

	for _, name := range []string{"001.ndjson", "002.ndjson"} {
		_, err := os.Stat(filepath.Join(spool, name+".done"))
		require.NoError(t, err, name)
	}

	st, err := state.NewFileRepository(spool).Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(4), st.SpansFlushed)
	require.Equal(t, "002.ndjson", st.LastFile)
	require.Equal(t, uint64(4), s.Stats().SpansFlushed)

	_, flushes := handler.snapshot()
	require.NotEmpty(t, flushes)
	total := 0
	for _, f := range flushes {
		require.NoError(t, f.Err)
		total += f.Delivered
	}
	require.Equal(t, 4, total)
}

func TestSpanship_FileSink(t *testing.T) {
	logDir := t.TempDir()
	clock := clockz.NewFakeClockAt(time.Date(2026, 10, 19, 12, 30, 0, 0, time.UTC))
	reg := prometheus.NewRegistry()

	s, err := spanship.New(spanship.Config{Sink: spanship.SinkFile, LogDir: logDir},
		spanship.WithClock(clock),
		spanship.WithRegisterer(reg),
	)
	require.NoError(t, err)

	s.Append(context.Background(), tracerContext("checkout", "a", "b"))
	delivered, err := s.Flush(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, delivered)

	data, err := os.ReadFile(filepath.Join(logDir, "spanship-2026-10-19-12.log"))
	require.NoError(t, err)
	require.Contains(t, string(data), `"service":"checkout"`)

	families, err := reg.Gather()
	require.NoError(t, err)
	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	require.Contains(t, names, "spanship_spans_appended_total")
}

func TestSpanship_FlushReportsDeliveryFailure(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "blocked")
	require.NoError(t, os.WriteFile(dir, []byte("not a directory"), 0o600))

	s, err := spanship.New(spanship.Config{Sink: spanship.SinkFile, LogDir: dir})
	require.NoError(t, err)

	s.Append(context.Background(), tracerContext("checkout", "a"))
	delivered, err := s.Flush(context.Background())
	require.Zero(t, delivered)
	require.True(t, errors.Is(err, spanship.ErrDelivery))
}
