package thrift

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	jaegerclient "github.com/uber/jaeger-client-go"
	"github.com/uber/jaeger-client-go/thrift-gen/jaeger"

	"github.com/bft-labs/spanship/internal/domain"
)

func tagMap(tags []*jaeger.Tag) map[string]*jaeger.Tag {
	m := make(map[string]*jaeger.Tag, len(tags))
	for _, t := range tags {
		m[t.Key] = t
	}
	return m
}

func TestBuildProcess_HostTags(t *testing.T) {
	b := NewBuilderWithHost("node-1", "10.0.0.7", "spanship-1.0")

	p := b.BuildProcess(&domain.TracerContext{
		ServiceName: "checkout",
		Tags:        map[string]string{"region": "eu-west-1"},
	})
	require.Equal(t, "checkout", p.ServiceName)

	tags := tagMap(p.Tags)
	require.Len(t, tags, 4)
	require.Equal(t, "node-1", *tags[jaegerclient.TracerHostnameTagKey].VStr)
	require.Equal(t, "10.0.0.7", *tags[jaegerclient.TracerIPTagKey].VStr)
	require.Equal(t, "spanship-1.0", *tags[jaegerclient.JaegerClientVersionTagKey].VStr)
	require.Equal(t, "eu-west-1", *tags["region"].VStr)
}

func TestBuildProcess_TracerTagsWin(t *testing.T) {
	b := NewBuilderWithHost("node-1", "10.0.0.7", "v")

	p := b.BuildProcess(&domain.TracerContext{
		ServiceName: "checkout",
		Tags:        map[string]string{jaegerclient.TracerHostnameTagKey: "pod-abc"},
	})
	require.Equal(t, "pod-abc", *tagMap(p.Tags)[jaegerclient.TracerHostnameTagKey].VStr)
}

func TestNewBuilderWithHost_Fallbacks(t *testing.T) {
	b := NewBuilderWithHost("", "", "")
	p := b.BuildProcess(&domain.TracerContext{ServiceName: "svc"})

	tags := tagMap(p.Tags)
	require.Equal(t, "unknown", *tags[jaegerclient.TracerHostnameTagKey].VStr)
	require.Equal(t, "unknown", *tags[jaegerclient.TracerIPTagKey].VStr)
	require.Equal(t, jaegerclient.JaegerClientVersion, *tags[jaegerclient.JaegerClientVersionTagKey].VStr)
}

func TestBuildSpan(t *testing.T) {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	span := &domain.Span{
		TraceIDHigh:   1,
		TraceIDLow:    2,
		SpanID:        3,
		ParentSpanID:  4,
		OperationName: "GET /cart",
		Flags:         1,
		StartTime:     start,
		Duration:      1500 * time.Microsecond,
		Tags: map[string]any{
			"http.method": "GET",
			"error":       false,
			"http.status": 200,
			"ratio":       0.5,
			"payload":     []byte{0x1, 0x2},
			"retries":     uint32(3),
			"peer":        struct{ Name string }{"db"},
		},
		Logs: []domain.LogRecord{
			{Timestamp: start.Add(time.Millisecond), Fields: map[string]any{"event": "cache miss"}},
		},
		References: []domain.Reference{
			{Type: domain.ChildOf, TraceIDLow: 2, SpanID: 4},
			{Type: domain.FollowsFrom, TraceIDLow: 2, SpanID: 9},
		},
	}

	got := NewBuilderWithHost("h", "ip", "v").BuildSpan(span)

	require.Equal(t, int64(1), got.TraceIdHigh)
	require.Equal(t, int64(2), got.TraceIdLow)
	require.Equal(t, int64(3), got.SpanId)
	require.Equal(t, int64(4), got.ParentSpanId)
	require.Equal(t, "GET /cart", got.OperationName)
	require.Equal(t, int32(1), got.Flags)
	require.Equal(t, start.UnixMicro(), got.StartTime)
	require.Equal(t, int64(1500), got.Duration)

	keys := make([]string, 0, len(got.Tags))
	for _, tag := range got.Tags {
		keys = append(keys, tag.Key)
	}
	require.Equal(t, []string{"error", "http.method", "http.status", "payload", "peer", "ratio", "retries"}, keys)

	tags := tagMap(got.Tags)
	require.Equal(t, jaeger.TagType_STRING, tags["http.method"].VType)
	require.Equal(t, jaeger.TagType_BOOL, tags["error"].VType)
	require.False(t, *tags["error"].VBool)
	require.Equal(t, jaeger.TagType_LONG, tags["http.status"].VType)
	require.Equal(t, int64(200), *tags["http.status"].VLong)
	require.Equal(t, int64(3), *tags["retries"].VLong)
	require.Equal(t, jaeger.TagType_DOUBLE, tags["ratio"].VType)
	require.Equal(t, jaeger.TagType_BINARY, tags["payload"].VType)
	require.Equal(t, "{db}", *tags["peer"].VStr)

	require.Len(t, got.Logs, 1)
	require.Equal(t, start.Add(time.Millisecond).UnixMicro(), got.Logs[0].Timestamp)
	require.Equal(t, "cache miss", *got.Logs[0].Fields[0].VStr)

	require.Len(t, got.References, 2)
	require.Equal(t, jaeger.SpanRefType_CHILD_OF, got.References[0].RefType)
	require.Equal(t, jaeger.SpanRefType_FOLLOWS_FROM, got.References[1].RefType)
	require.Equal(t, int64(9), got.References[1].SpanId)
}

func TestBuildSpan_ZeroValues(t *testing.T) {
	got := NewBuilderWithHost("h", "ip", "v").BuildSpan(&domain.Span{OperationName: "noop"})
	require.Zero(t, got.StartTime)
	require.Nil(t, got.Tags)
	require.Nil(t, got.Logs)
	require.Nil(t, got.References)
}
