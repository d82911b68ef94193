package spanship

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/zoobzio/clockz"

	"github.com/bft-labs/spanship/internal/adapters/file"
	"github.com/bft-labs/spanship/internal/ports"
)

// RetentionConfig controls watermark cleanup of the file sink's trace logs.
// When the log directory grows past HighWatermark, the oldest hour files are
// removed until it is at or below LowWatermark. The current hour is kept.
type RetentionConfig struct {
	// Enabled controls whether cleanup is active. Default: false
	Enabled bool

	// CheckInterval is how often to check the log directory size.
	// Default: 1 hour
	CheckInterval time.Duration

	// HighWatermark is the size in bytes above which cleanup begins.
	// Default: 2 GiB
	HighWatermark int64

	// LowWatermark is the target size in bytes after cleanup.
	// Default: 1.5 GiB
	LowWatermark int64
}

const (
	defaultRetentionInterval = time.Hour
	defaultHighWatermark     = 2 << 30
	defaultLowWatermark      = 3 << 29
)

// DefaultRetentionConfig returns an enabled RetentionConfig with defaults.
func DefaultRetentionConfig() RetentionConfig {
	return RetentionConfig{
		Enabled:       true,
		CheckInterval: defaultRetentionInterval,
		HighWatermark: defaultHighWatermark,
		LowWatermark:  defaultLowWatermark,
	}
}

// WithRetentionConfig enables trace log cleanup for the file sink.
// It has no effect with other sinks.
//
//	s, err := spanship.New(cfg,
//	    spanship.WithRetentionConfig(spanship.RetentionConfig{
//	        Enabled:       true,
//	        HighWatermark: 10 << 30,
//	        LowWatermark:  5 << 30,
//	    }),
//	)
func WithRetentionConfig(cfg RetentionConfig) Option {
	if !cfg.Enabled {
		return func(o *options) {}
	}

	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = defaultRetentionInterval
	}
	if cfg.HighWatermark <= 0 {
		cfg.HighWatermark = defaultHighWatermark
	}
	if cfg.LowWatermark <= 0 || cfg.LowWatermark > cfg.HighWatermark {
		cfg.LowWatermark = cfg.HighWatermark
	}

	return func(o *options) {
		o.retention = &cfg
	}
}

// retentionRunner owns the cleanup goroutine.
type retentionRunner struct {
	cfg     RetentionConfig
	factory *file.Factory
	clock   clockz.Clock
	logger  ports.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newRetentionRunner(cfg RetentionConfig, factory *file.Factory, clock clockz.Clock, logger ports.Logger) *retentionRunner {
	return &retentionRunner{
		cfg:     cfg,
		factory: factory,
		clock:   clock,
		logger:  logger,
	}
}

func (r *retentionRunner) start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	r.logger.Info("trace log retention enabled",
		ports.String("dir", r.factory.Dir()),
		ports.Int64("high_watermark", r.cfg.HighWatermark),
		ports.Int64("low_watermark", r.cfg.LowWatermark),
	)

	r.wg.Add(1)
	go r.loop(runCtx)
}

func (r *retentionRunner) stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
}

func (r *retentionRunner) loop(ctx context.Context) {
	defer r.wg.Done()

	r.cleanupOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.clock.After(r.cfg.CheckInterval):
			r.cleanupOnce(ctx)
		}
	}
}

// traceLog is one hour file in the log directory.
type traceLog struct {
	path   string
	bucket time.Time
	size   int64
}

// cleanupOnce removes the oldest trace logs while the directory is above the
// high watermark. It returns the number of bytes freed.
func (r *retentionRunner) cleanupOnce(ctx context.Context) int64 {
	logs, total, err := r.scan()
	if err != nil {
		if !os.IsNotExist(err) {
			r.logger.Error("retention: scan failed", ports.Err(err))
		}
		return 0
	}
	if total <= r.cfg.HighWatermark {
		return 0
	}

	current, _ := r.factory.Bucket(filepath.Base(r.factory.PathAt(r.clock.Now())))

	var freed int64
	for _, l := range logs {
		if ctx.Err() != nil || total <= r.cfg.LowWatermark {
			break
		}
		if !l.bucket.Before(current) {
			continue
		}
		if err := os.Remove(l.path); err != nil {
			r.logger.Error("retention: remove failed",
				ports.String("path", l.path),
				ports.Err(err))
			continue
		}
		total -= l.size
		freed += l.size
	}

	if freed > 0 {
		r.logger.Info("retention: cleanup completed", ports.Int64("bytes_freed", freed))
	}
	return freed
}

// scan lists the trace logs oldest first and the size of the whole directory.
func (r *retentionRunner) scan() ([]traceLog, int64, error) {
	entries, err := os.ReadDir(r.factory.Dir())
	if err != nil {
		return nil, 0, err
	}

	var (
		logs  []traceLog
		total int64
	)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, 0, err
		}
		total += info.Size()

		bucket, ok := r.factory.Bucket(e.Name())
		if !ok {
			continue
		}
		logs = append(logs, traceLog{
			path:   filepath.Join(r.factory.Dir(), e.Name()),
			bucket: bucket,
			size:   info.Size(),
		})
	}

	sort.Slice(logs, func(i, j int) bool {
		if logs[i].bucket.Equal(logs[j].bucket) {
			return logs[i].path < logs[j].path
		}
		return logs[i].bucket.Before(logs[j].bucket)
	})
	return logs, total, nil
}
