package spanship

import (
	"context"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bft-labs/spanship/internal/adapters/file"
	"github.com/bft-labs/spanship/internal/adapters/fs"
	httpadapter "github.com/bft-labs/spanship/internal/adapters/http"
	thriftadapter "github.com/bft-labs/spanship/internal/adapters/thrift"
	"github.com/bft-labs/spanship/internal/adapters/udp"
	"github.com/bft-labs/spanship/internal/app"
	"github.com/bft-labs/spanship/internal/batch"
	"github.com/bft-labs/spanship/internal/metrics"
	"github.com/bft-labs/spanship/internal/ports"
	"github.com/bft-labs/spanship/pkg/log"
	"github.com/bft-labs/spanship/pkg/state"
)

// Spanship batches Jaeger spans into packet-sized batches and delivers them
// to a sink. Contexts are appended directly with Append or picked up from a
// spool directory once Start is called.
type Spanship struct {
	config    Config
	lifecycle *app.Lifecycle
	exporter  *app.Exporter
	shipper   *app.Shipper
	spool     *fs.Spool
	retention *retentionRunner
	logger    ports.Logger

	mu   sync.Mutex
	done chan struct{}
}

// New creates a Spanship instance in StateStopped.
// Returns an error wrapping ErrInvalidConfig if the configuration is invalid.
func New(cfg Config, opts ...Option) (*Spanship, error) {
	cfg.SetDefaults()

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	if err := cfg.validate(o.sinkFactory == nil); err != nil {
		return nil, err
	}
	if err := validateModuleVersions(); err != nil {
		return nil, err
	}

	logger := log.OrNoop(o.logger)
	emitter := &eventEmitter{handler: o.eventHandler}
	lifecycle := app.NewLifecycle(logger, emitter, o.clock)

	reg := o.registerer
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := metrics.New(reg)

	factory := o.sinkFactory
	var fileFactory *file.Factory
	if factory == nil {
		factory, fileFactory = newSinkFactory(cfg, o, logger)
	}

	exporter, err := app.NewExporter(
		app.ExporterConfig{
			Batch:           cfg.batchConfig(),
			DeliveryTimeout: cfg.DeliveryTimeout,
			FlushOnSeal:     cfg.FlushOnSeal,
		},
		batch.NewAccountant(),
		thriftadapter.NewBuilder(""),
		factory,
		m,
		logger,
		o.clock,
	)
	if err != nil {
		return nil, err
	}

	s := &Spanship{
		config:    cfg,
		lifecycle: lifecycle,
		exporter:  exporter,
		logger:    logger,
	}

	if cfg.SpoolDir != "" {
		s.spool = fs.NewSpool(cfg.SpoolDir, logger)
		s.shipper = app.NewShipper(
			app.ShipperConfig{
				PollInterval:  cfg.PollInterval,
				FlushInterval: cfg.FlushInterval,
				Once:          cfg.Once,
			},
			s.spool,
			exporter,
			state.NewFileRepository(cfg.StateDir),
			logger,
			o.clock,
			emitter,
		)
	}

	if o.retention != nil {
		if fileFactory != nil {
			s.retention = newRetentionRunner(*o.retention, fileFactory, o.clock, logger)
		} else {
			logger.Warn("trace log retention ignored: sink is not file",
				ports.String("sink", factory.Name()))
		}
	}

	return s, nil
}

// newSinkFactory builds the sink named by cfg.Sink. The file factory is
// returned separately so retention can share its naming.
func newSinkFactory(cfg Config, o options, logger ports.Logger) (ports.SinkFactory, *file.Factory) {
	switch cfg.Sink {
	case SinkHTTP:
		client := o.httpClient
		if client == nil {
			client = &http.Client{Timeout: cfg.HTTPTimeout}
		}
		return httpadapter.NewFactory(client, cfg.CollectorURL, cfg.AuthToken, Version, logger), nil
	case SinkFile:
		f := file.NewFactory(file.Config{
			Dir:      cfg.LogDir,
			BaseName: cfg.LogBaseName,
			Compress: cfg.Compress,
		}, o.clock, logger)
		return f, f
	default:
		return udp.NewFactory(cfg.AgentHostPort, cfg.MaxPacketSize, logger), nil
	}
}

// Start begins shipping in the background and returns immediately.
// Without a spool directory it only marks the instance running; contexts
// are then fed through Append.
func (s *Spanship) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.lifecycle.CanStart() {
		return ErrAlreadyRunning
	}
	if err := s.lifecycle.TransitionTo(app.PhaseStarting, "Start() called"); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.lifecycle.SetCancel(cancel)
	done := make(chan struct{})
	s.done = done

	if s.retention != nil {
		s.retention.start(runCtx)
	}

	if s.shipper == nil {
		return s.lifecycle.TransitionTo(app.PhaseRunning, "exporter ready")
	}

	s.lifecycle.Go(func() {
		if err := s.spool.Watch(runCtx, s.shipper.Notify); err != nil {
			s.logger.Warn("spool watch unavailable, polling", ports.Err(err))
		}
	})

	s.lifecycle.Go(func() {
		defer close(done)

		if err := s.lifecycle.TransitionTo(app.PhaseRunning, "shipper starting"); err != nil {
			s.logger.Error("failed to transition to running", ports.Err(err))
			return
		}

		err := s.shipper.Run(runCtx)
		if err != nil && runCtx.Err() == nil {
			s.logger.Error("shipper error", ports.Err(err))
			s.lifecycle.Cancel()
			_ = s.lifecycle.TransitionTo(app.PhaseCrashed, err.Error())
		}
	})

	return nil
}

// Stop cancels the shipping loop, flushes what is still queued and persists
// state. It waits up to 30 seconds and returns ErrShutdownTimeout if the
// workers have not returned by then.
func (s *Spanship) Stop() error {
	s.mu.Lock()

	if !s.lifecycle.CanStop() {
		s.mu.Unlock()
		return ErrNotRunning
	}
	if err := s.lifecycle.TransitionTo(app.PhaseStopping, "Stop() called"); err != nil {
		s.mu.Unlock()
		return err
	}
	s.lifecycle.Cancel()
	done := s.done
	s.mu.Unlock()

	err := s.lifecycle.WaitWithTimeout(app.ShutdownTimeout)

	if s.retention != nil {
		s.retention.stop()
	}

	if s.shipper == nil {
		if flushErr := s.exporter.Close(context.Background()); flushErr != nil {
			s.logger.Error("final flush failed", ports.Err(flushErr))
		}
		close(done)
	}

	if err != nil {
		_ = s.lifecycle.TransitionTo(app.PhaseCrashed, "shutdown timeout")
	} else {
		_ = s.lifecycle.TransitionTo(app.PhaseStopped, "graceful shutdown")
	}
	return err
}

// Status returns the current lifecycle state.
// Safe to call concurrently from any goroutine.
func (s *Spanship) Status() State {
	return convertPhase(s.lifecycle.Phase())
}

// Done is closed when the shipping loop has returned: after the spool was
// drained in Once mode, after a crash, or after Stop. It is nil before the
// first Start.
func (s *Spanship) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Append adds the spans of tc to the pending batch. It never reports failure
// to the caller; dropped spans are counted instead.
func (s *Spanship) Append(ctx context.Context, tc *TracerContext) bool {
	return s.exporter.Append(ctx, tc)
}

// Flush delivers all sealed batches and returns the number of spans the sink
// accepted. Failed deliveries are joined into the returned error.
func (s *Spanship) Flush(ctx context.Context) (int, error) {
	return s.exporter.Flush(ctx)
}

// Dropped returns the number of spans dropped since New.
func (s *Spanship) Dropped() int {
	return s.exporter.Dropped()
}

// Stats returns the shipping totals persisted in the state directory.
// It is empty when no spool directory is configured.
func (s *Spanship) Stats() state.State {
	if s.shipper == nil {
		return state.State{}
	}
	return s.shipper.Stats()
}
