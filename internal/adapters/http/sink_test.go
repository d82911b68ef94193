package http

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/uber/jaeger-client-go/thrift"
	"github.com/uber/jaeger-client-go/thrift-gen/jaeger"

	"github.com/bft-labs/spanship/internal/domain"
	"github.com/bft-labs/spanship/pkg/log"
)

func testBatch() *domain.Batch {
	process := &domain.ProcessMetadata{Thrift: &jaeger.Process{ServiceName: "checkout"}}
	return domain.NewBatch(process, []domain.SpanEncoding{
		{Thrift: &jaeger.Span{SpanId: 1, OperationName: "a"}},
		{Thrift: &jaeger.Span{SpanId: 2, OperationName: "b"}},
	})
}

func TestSink_Deliver(t *testing.T) {
	var got jaeger.Batch
	var gotHeader http.Header
	var gotQuery string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Clone()
		gotQuery = r.URL.Path + "?" + r.URL.RawQuery

		body, err := io.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		buf := thrift.NewTMemoryBuffer()
		_, _ = buf.Write(body)
		if err := got.Read(r.Context(), thrift.NewTBinaryProtocolTransport(buf)); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	f := NewFactory(srv.Client(), srv.URL+"/", "secret", "1.0.0", log.NoopLogger{})
	require.Equal(t, "http", f.Name())
	require.Equal(t, srv.URL+"/api/traces?format=jaeger.thrift", f.Endpoint())

	sink, err := f.Open(context.Background())
	require.NoError(t, err)
	defer sink.Close()

	require.NoError(t, sink.Deliver(context.Background(), testBatch()))

	require.Equal(t, "/api/traces?format=jaeger.thrift", gotQuery)
	require.Equal(t, "application/x-thrift", gotHeader.Get("Content-Type"))
	require.Equal(t, "Bearer secret", gotHeader.Get("Authorization"))
	require.Contains(t, gotHeader.Get("User-Agent"), "spanship/1.0.0")

	require.Equal(t, "checkout", got.Process.ServiceName)
	require.Len(t, got.Spans, 2)
	require.Equal(t, "b", got.Spans[1].OperationName)
}

func TestSink_NoAuthHeaderWithoutToken(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
	}))
	defer srv.Close()

	sink, err := NewFactory(srv.Client(), srv.URL, "", "1.0.0", log.NoopLogger{}).Open(context.Background())
	require.NoError(t, err)
	require.NoError(t, sink.Deliver(context.Background(), testBatch()))
	require.Empty(t, auth)
}

func TestSink_Non2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "collector overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	sink, err := NewFactory(srv.Client(), srv.URL, "", "1.0.0", log.NoopLogger{}).Open(context.Background())
	require.NoError(t, err)

	err = sink.Deliver(context.Background(), testBatch())
	require.Error(t, err)
	require.Contains(t, err.Error(), "503")
	require.Contains(t, err.Error(), "collector overloaded")
}

func TestSink_NoProcess(t *testing.T) {
	sink, err := NewFactory(http.DefaultClient, "http://127.0.0.1:1", "", "1.0.0", nil).Open(context.Background())
	require.NoError(t, err)
	require.Error(t, sink.Deliver(context.Background(), domain.NewBatch(nil, nil)))
}
