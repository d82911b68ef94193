// Package file appends batches to hour-bucketed trace log files.
//
// Each batch becomes one JSON line in {dir}/{base}-{YYYY-MM-DD-HH}{ext}. With
// compression enabled every line is written as its own gzip member and ".gz"
// is appended to the name; standard gzip readers decode the concatenation.
package file

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog"
	"github.com/zoobzio/clockz"

	"github.com/bft-labs/spanship/internal/domain"
	"github.com/bft-labs/spanship/internal/ports"
	"github.com/bft-labs/spanship/pkg/log"
)

// BucketLayout formats the hour bucket in file names.
const BucketLayout = "2006-01-02-15"

const (
	DefaultBaseName  = "spanship"
	DefaultExtension = ".log"
	gzipSuffix       = ".gz"
)

// Config describes where trace logs are written.
type Config struct {
	Dir       string
	BaseName  string
	Extension string
	Compress  bool
}

// Factory opens the log file of the current hour for each batch.
type Factory struct {
	cfg    Config
	clock  clockz.Clock
	logger ports.Logger
}

// NewFactory creates a file sink factory. A nil clock uses the wall clock.
func NewFactory(cfg Config, clock clockz.Clock, logger ports.Logger) *Factory {
	if cfg.BaseName == "" {
		cfg.BaseName = DefaultBaseName
	}
	if cfg.Extension == "" {
		cfg.Extension = DefaultExtension
	}
	if clock == nil {
		clock = clockz.RealClock
	}
	return &Factory{cfg: cfg, clock: clock, logger: log.OrNoop(logger)}
}

// Name implements ports.SinkFactory.
func (f *Factory) Name() string { return "file" }

// Dir returns the directory trace logs are written to.
func (f *Factory) Dir() string { return f.cfg.Dir }

// PathAt returns the log file path for the hour containing t.
func (f *Factory) PathAt(t time.Time) string {
	name := f.cfg.BaseName + "-" + t.Format(BucketLayout) + f.cfg.Extension
	if f.cfg.Compress {
		name += gzipSuffix
	}
	return filepath.Join(f.cfg.Dir, name)
}

// Bucket reports the hour bucket encoded in a file name produced by this
// factory. Compressed and plain names are both recognized.
func (f *Factory) Bucket(name string) (time.Time, bool) {
	prefix := f.cfg.BaseName + "-"
	if !strings.HasPrefix(name, prefix) {
		return time.Time{}, false
	}
	rest := strings.TrimPrefix(name, prefix)
	if len(rest) < len(BucketLayout) {
		return time.Time{}, false
	}

	suffix := rest[len(BucketLayout):]
	if suffix != f.cfg.Extension && suffix != f.cfg.Extension+gzipSuffix {
		return time.Time{}, false
	}

	bucket, err := time.ParseInLocation(BucketLayout, rest[:len(BucketLayout)], f.clock.Now().Location())
	if err != nil {
		return time.Time{}, false
	}
	return bucket, true
}

// Open implements ports.SinkFactory.
func (f *Factory) Open(context.Context) (ports.Sink, error) {
	if err := os.MkdirAll(f.cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}

	path := f.PathAt(f.clock.Now())
	fh, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open trace log: %w", err)
	}

	return &Sink{file: fh, path: path, compress: f.cfg.Compress, clock: f.clock}, nil
}

// Sink appends batches to one open trace log.
type Sink struct {
	file     *os.File
	path     string
	compress bool
	clock    clockz.Clock
}

// Path returns the file this sink writes to.
func (s *Sink) Path() string { return s.path }

// Deliver implements ports.Sink.
func (s *Sink) Deliver(_ context.Context, batch *domain.Batch) error {
	payload, err := json.Marshal(batch.Thrift())
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrEncoding, err)
	}

	service := ""
	if batch.Process != nil && batch.Process.Thrift != nil {
		service = batch.Process.Thrift.ServiceName
	}

	var line bytes.Buffer
	zerolog.New(&line).Log().
		Time("time", s.clock.Now()).
		Str("service", service).
		Int("spans", batch.SpanCount()).
		Int("bytes", batch.Size()).
		RawJSON("batch", payload).
		Send()

	if !s.compress {
		if _, err := s.file.Write(line.Bytes()); err != nil {
			return fmt.Errorf("write trace log: %w", err)
		}
		return nil
	}

	return writeMember(s.file, line.Bytes())
}

// Close implements ports.Sink.
func (s *Sink) Close() error {
	return s.file.Close()
}

func writeMember(w io.Writer, data []byte) error {
	gz := gzip.NewWriter(w)
	if _, err := gz.Write(data); err != nil {
		return fmt.Errorf("compress trace log: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("compress trace log: %w", err)
	}
	return nil
}
