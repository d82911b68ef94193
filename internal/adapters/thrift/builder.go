// Package thrift converts tracer records into Jaeger thrift structures.
package thrift

import (
	"fmt"
	"os"
	"sort"
	"time"

	jaegerclient "github.com/uber/jaeger-client-go"
	"github.com/uber/jaeger-client-go/thrift-gen/jaeger"
	"github.com/uber/jaeger-client-go/utils"

	"github.com/bft-labs/spanship/internal/domain"
)

const unknownHost = "unknown"

// Builder implements ports.ThriftBuilder.
type Builder struct {
	hostname string
	ip       string
	version  string
}

// NewBuilder creates a builder that tags every process with the local
// hostname and IP address. version is reported as the jaeger.version tag.
func NewBuilder(version string) *Builder {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		hostname = unknownHost
	}
	ip := unknownHost
	if addr, err := utils.HostIP(); err == nil && addr != nil {
		ip = addr.String()
	}
	return NewBuilderWithHost(hostname, ip, version)
}

// NewBuilderWithHost creates a builder with a fixed host identity.
func NewBuilderWithHost(hostname, ip, version string) *Builder {
	if hostname == "" {
		hostname = unknownHost
	}
	if ip == "" {
		ip = unknownHost
	}
	if version == "" {
		version = jaegerclient.JaegerClientVersion
	}
	return &Builder{hostname: hostname, ip: ip, version: version}
}

// BuildProcess builds the process block for tc. Tags set by the tracer win
// over the host tags added here.
func (b *Builder) BuildProcess(tc *domain.TracerContext) *jaeger.Process {
	tags := make(map[string]any, len(tc.Tags)+3)
	tags[jaegerclient.TracerHostnameTagKey] = b.hostname
	tags[jaegerclient.TracerIPTagKey] = b.ip
	tags[jaegerclient.JaegerClientVersionTagKey] = b.version
	for k, v := range tc.Tags {
		tags[k] = v
	}

	return &jaeger.Process{
		ServiceName: tc.ServiceName,
		Tags:        buildTags(tags),
	}
}

// BuildSpan builds the thrift span for s.
func (b *Builder) BuildSpan(s *domain.Span) *jaeger.Span {
	span := &jaeger.Span{
		TraceIdLow:    int64(s.TraceIDLow),
		TraceIdHigh:   int64(s.TraceIDHigh),
		SpanId:        int64(s.SpanID),
		ParentSpanId:  int64(s.ParentSpanID),
		OperationName: s.OperationName,
		Flags:         s.Flags,
		StartTime:     micros(s.StartTime),
		Duration:      s.Duration.Microseconds(),
		Tags:          buildTags(s.Tags),
	}

	if len(s.Logs) > 0 {
		span.Logs = make([]*jaeger.Log, 0, len(s.Logs))
		for _, l := range s.Logs {
			span.Logs = append(span.Logs, &jaeger.Log{
				Timestamp: micros(l.Timestamp),
				Fields:    buildTags(l.Fields),
			})
		}
	}

	if len(s.References) > 0 {
		span.References = make([]*jaeger.SpanRef, 0, len(s.References))
		for _, r := range s.References {
			refType := jaeger.SpanRefType_CHILD_OF
			if r.Type == domain.FollowsFrom {
				refType = jaeger.SpanRefType_FOLLOWS_FROM
			}
			span.References = append(span.References, &jaeger.SpanRef{
				RefType:     refType,
				TraceIdLow:  int64(r.TraceIDLow),
				TraceIdHigh: int64(r.TraceIDHigh),
				SpanId:      int64(r.SpanID),
			})
		}
	}

	return span
}

func micros(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMicro()
}

// buildTags converts a tag map into thrift tags sorted by key, so equal maps
// always encode to equal bytes.
func buildTags(values map[string]any) []*jaeger.Tag {
	if len(values) == 0 {
		return nil
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tags := make([]*jaeger.Tag, 0, len(keys))
	for _, k := range keys {
		tags = append(tags, buildTag(k, values[k]))
	}
	return tags
}

func buildTag(key string, value any) *jaeger.Tag {
	tag := &jaeger.Tag{Key: key}

	switch v := value.(type) {
	case string:
		tag.VType = jaeger.TagType_STRING
		tag.VStr = &v
	case bool:
		tag.VType = jaeger.TagType_BOOL
		tag.VBool = &v
	case int:
		setLong(tag, int64(v))
	case int8:
		setLong(tag, int64(v))
	case int16:
		setLong(tag, int64(v))
	case int32:
		setLong(tag, int64(v))
	case int64:
		setLong(tag, v)
	case uint:
		setLong(tag, int64(v))
	case uint8:
		setLong(tag, int64(v))
	case uint16:
		setLong(tag, int64(v))
	case uint32:
		setLong(tag, int64(v))
	case uint64:
		setLong(tag, int64(v))
	case float32:
		f := float64(v)
		tag.VType = jaeger.TagType_DOUBLE
		tag.VDouble = &f
	case float64:
		tag.VType = jaeger.TagType_DOUBLE
		tag.VDouble = &v
	case []byte:
		tag.VType = jaeger.TagType_BINARY
		tag.VBinary = v
	default:
		s := fmt.Sprint(v)
		tag.VType = jaeger.TagType_STRING
		tag.VStr = &s
	}

	return tag
}

func setLong(tag *jaeger.Tag, v int64) {
	tag.VType = jaeger.TagType_LONG
	tag.VLong = &v
}
