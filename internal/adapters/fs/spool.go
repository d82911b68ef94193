// Package fs reads tracer contexts from a spool directory.
//
// Producers drop newline-delimited JSON files named *.ndjson into the spool,
// one tracer context per line. Files must appear atomically (write under
// another name, then rename) since a file is read once, front to back.
package fs

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/spanship/internal/domain"
	"github.com/bft-labs/spanship/internal/ports"
	"github.com/bft-labs/spanship/pkg/log"
)

const (
	spoolExt = ".ndjson"
	doneExt  = ".done"

	maxLineSize = 16 << 20
)

// Spool implements ports.ContextSource over a directory of *.ndjson files.
type Spool struct {
	dir    string
	logger ports.Logger

	file    *os.File
	scanner *bufio.Scanner
	path    string
	line    int

	// read holds files read to the end but not yet committed.
	read    []string
	readSet map[string]bool
}

var _ ports.ContextSource = (*Spool)(nil)

// NewSpool creates a spool reader for dir.
func NewSpool(dir string, logger ports.Logger) *Spool {
	return &Spool{
		dir:     dir,
		logger:  log.OrNoop(logger),
		readSet: make(map[string]bool),
	}
}

// Dir returns the spool directory.
func (s *Spool) Dir() string { return s.dir }

// Next returns the next tracer context in file-name order.
// Returns io.EOF when every spool file has been read.
func (s *Spool) Next(ctx context.Context) (*domain.TracerContext, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if s.scanner == nil {
			ok, err := s.openNext()
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, io.EOF
			}
		}

		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				s.logger.Warn("spool file truncated", ports.String("file", s.path), ports.Err(err))
			}
			s.finishFile()
			continue
		}
		s.line++

		raw := strings.TrimSpace(s.scanner.Text())
		if raw == "" {
			continue
		}

		var tc domain.TracerContext
		if err := json.Unmarshal([]byte(raw), &tc); err != nil {
			s.logger.Warn("skipping malformed spool line",
				ports.String("file", s.path),
				ports.Int("line", s.line),
				ports.Err(err),
			)
			continue
		}
		return &tc, nil
	}
}

// Commit renames every fully read file to *.done and returns the last one.
func (s *Spool) Commit(context.Context) (string, error) {
	last := ""
	for len(s.read) > 0 {
		path := s.read[0]
		if err := os.Rename(path, path+doneExt); err != nil {
			return last, fmt.Errorf("retire spool file: %w", err)
		}
		delete(s.readSet, path)
		s.read = s.read[1:]
		last = filepath.Base(path)
	}
	return last, nil
}

// Close releases the file being read. Files not yet committed are read
// again by the next spool opened on the directory.
func (s *Spool) Close() error {
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	s.scanner = nil
	return err
}

// Pending lists the spool files not yet read, in processing order.
func (s *Spool) Pending() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list spool: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != spoolExt {
			continue
		}
		path := filepath.Join(s.dir, e.Name())
		if s.readSet[path] || path == s.path {
			continue
		}
		files = append(files, path)
	}
	sort.Strings(files)
	return files, nil
}

func (s *Spool) openNext() (bool, error) {
	files, err := s.Pending()
	if err != nil {
		return false, err
	}
	if len(files) == 0 {
		return false, nil
	}

	f, err := os.Open(files[0])
	if err != nil {
		return false, fmt.Errorf("open spool file: %w", err)
	}

	s.file = f
	s.path = files[0]
	s.line = 0
	s.scanner = bufio.NewScanner(f)
	s.scanner.Buffer(make([]byte, 64<<10), maxLineSize)

	s.logger.Debug("reading spool file", ports.String("file", s.path))
	return true, nil
}

func (s *Spool) finishFile() {
	if s.file != nil {
		_ = s.file.Close()
	}
	s.read = append(s.read, s.path)
	s.readSet[s.path] = true
	s.file = nil
	s.scanner = nil
	s.path = ""
}

// Watch calls notify whenever a spool file is created or renamed into the
// directory. It blocks until ctx is done. If the directory cannot be watched
// it returns the error and the caller falls back to polling.
func (s *Spool) Watch(ctx context.Context, notify func()) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create spool dir: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(s.dir); err != nil {
		return fmt.Errorf("watch spool dir: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Ext(event.Name) != spoolExt {
				continue
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) || event.Has(fsnotify.Write) {
				notify()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("spool watcher error", ports.Err(err))
		}
	}
}
