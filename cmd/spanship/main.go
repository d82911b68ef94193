package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/bft-labs/spanship/internal/cliconfig"
	"github.com/bft-labs/spanship/pkg/log"
	"github.com/bft-labs/spanship/pkg/spanship"
)

const helpDescription = `
Ship spooled tracer contexts to Jaeger in packet-sized batches.

Highlights:
  - Packs thrift-encoded spans into batches that fit one emitBatch packet.
  - Delivers to the Jaeger agent (UDP), a collector (HTTP) or hourly trace logs.
  - Picks up *.ndjson spool files as they land and retires them once shipped.
  - Configure via file, env (SPANSHIP_*), or flags.
`

var exampleUsage = strings.TrimSpace(`
  spanship --spool-dir /var/spool/spanship --agent-host-port jaeger-agent:6831
  spanship --spool-dir ./spool --sink file --log-dir ./traces --compress --once
  spanship --config $HOME/.spanship/config.toml --metrics-addr :9464
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return spanship.Version
}

func main() {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string

	logger := cliconfig.Logger()

	root := &cobra.Command{
		Use:     "spanship",
		Short:   "Ship spooled tracer contexts to Jaeger in packet-sized batches",
		Long:    strings.TrimSpace(helpDescription),
		Example: exampleUsage,
		Version: fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgFile := cfgPath
			if cfgFile == "" {
				cfgFile = cliconfig.DefaultConfigPath()
			}

			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			if cfgFile != "" && cliconfig.FileExists(cfgFile) {
				fc, err := cliconfig.LoadFileConfig(cfgFile)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				if err := cliconfig.ApplyFileConfig(&cfg, fc, changed); err != nil {
					return err
				}
			}

			// Environment overrides the file; flags override both.
			if err := cliconfig.ApplyEnvConfig(&cfg, changed); err != nil {
				return err
			}

			if err := cfg.Validate(); err != nil {
				return err
			}

			leveled, err := cliconfig.LoggerAt(cfg.LogLevel)
			if err != nil {
				return err
			}
			logger = leveled

			logCfg := cfg
			if logCfg.AuthToken != "" {
				logCfg.AuthToken = "*****"
			}
			logger.Info().Interface("config", logCfg).Msg("configuration")

			return run(cfg, logger)
		},
	}

	root.Flags().StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.spanship/config.toml)")

	root.Flags().StringVar(&cfg.SpoolDir, "spool-dir", cfg.SpoolDir, "directory of *.ndjson tracer context files")
	root.Flags().StringVar(&cfg.StateDir, "state-dir", cfg.StateDir, "state directory for status.json (defaults to spool-dir)")

	root.Flags().StringVar(&cfg.Sink, "sink", cfg.Sink, "delivery sink: udp, http or file")
	root.Flags().StringVar(&cfg.AgentHostPort, "agent-host-port", cfg.AgentHostPort, "Jaeger agent address for the udp sink")
	root.Flags().StringVar(&cfg.CollectorURL, "collector-url", cfg.CollectorURL, "Jaeger collector base URL for the http sink")
	root.Flags().StringVar(&cfg.AuthToken, "auth-token", cfg.AuthToken, "bearer token for the http sink")
	root.Flags().DurationVar(&cfg.HTTPTimeout, "timeout", cfg.HTTPTimeout, "HTTP timeout")
	root.Flags().StringVar(&cfg.LogDir, "log-dir", cfg.LogDir, "trace log directory for the file sink")
	root.Flags().StringVar(&cfg.LogBaseName, "log-base-name", cfg.LogBaseName, "trace log file name prefix")
	root.Flags().BoolVar(&cfg.Compress, "compress", cfg.Compress, "gzip trace log entries")

	root.Flags().IntVar(&cfg.MaxPacketSize, "max-packet-size", cfg.MaxPacketSize, "largest packet the transport accepts, in bytes")
	root.Flags().IntVar(&cfg.EmitBatchOverhead, "emit-batch-overhead", cfg.EmitBatchOverhead, "bytes reserved per packet for the emitBatch envelope")

	root.Flags().DurationVar(&cfg.PollInterval, "poll", cfg.PollInterval, "spool poll interval when idle")
	root.Flags().DurationVar(&cfg.FlushInterval, "flush-interval", cfg.FlushInterval, "flush at least this often while contexts keep arriving")
	root.Flags().DurationVar(&cfg.DeliveryTimeout, "delivery-timeout", cfg.DeliveryTimeout, "timeout for a single batch delivery")
	root.Flags().BoolVar(&cfg.FlushOnSeal, "flush-on-seal", cfg.FlushOnSeal, "flush as soon as a batch is sealed")
	root.Flags().BoolVar(&cfg.Once, "once", cfg.Once, "ship the current spool contents and exit")

	root.Flags().StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "serve Prometheus metrics on this address (disabled when empty)")
	root.Flags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn or error")

	root.Flags().BoolVar(&cfg.Retention, "retention", cfg.Retention, "remove old trace logs above the high watermark (file sink)")
	root.Flags().DurationVar(&cfg.RetentionInterval, "retention-interval", cfg.RetentionInterval, "how often to check the trace log directory size")
	root.Flags().Int64Var(&cfg.HighWatermark, "high-watermark", cfg.HighWatermark, "trace log directory size that triggers cleanup, in bytes")
	root.Flags().Int64Var(&cfg.LowWatermark, "low-watermark", cfg.LowWatermark, "trace log directory size cleanup stops at, in bytes")
	if err := root.Flags().MarkHidden("emit-batch-overhead"); err != nil {
		logger.Info().Err(err).Msg("failed to hide emit-batch-overhead flag")
	}

	if err := root.Execute(); err != nil {
		logger.Error().Err(err).Msg("spanship")
		os.Exit(1)
	}
}

func run(cfg cliconfig.Config, logger zerolog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	opts := []spanship.Option{
		spanship.WithLogger(log.NewZerologAdapterWithLogger(logger)),
		spanship.WithRegisterer(reg),
	}
	if cfg.Retention {
		opts = append(opts, spanship.WithRetentionConfig(spanship.RetentionConfig{
			Enabled:       true,
			CheckInterval: cfg.RetentionInterval,
			HighWatermark: cfg.HighWatermark,
			LowWatermark:  cfg.LowWatermark,
		}))
	}

	s, err := spanship.New(spanship.Config{
		MaxPacketSize:     cfg.MaxPacketSize,
		EmitBatchOverhead: cfg.EmitBatchOverhead,
		Sink:              cfg.Sink,
		AgentHostPort:     cfg.AgentHostPort,
		CollectorURL:      cfg.CollectorURL,
		AuthToken:         cfg.AuthToken,
		HTTPTimeout:       cfg.HTTPTimeout,
		LogDir:            cfg.LogDir,
		LogBaseName:       cfg.LogBaseName,
		Compress:          cfg.Compress,
		SpoolDir:          cfg.SpoolDir,
		StateDir:          cfg.StateDir,
		PollInterval:      cfg.PollInterval,
		FlushInterval:     cfg.FlushInterval,
		DeliveryTimeout:   cfg.DeliveryTimeout,
		FlushOnSeal:       cfg.FlushOnSeal,
		Once:              cfg.Once,
	}, opts...)
	if err != nil {
		return fmt.Errorf("create spanship: %w", err)
	}

	var metricsSrv *http.Server
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
		metricsSrv = &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info().Str("addr", cfg.MetricsAddr).Msg("serving metrics")
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("metrics server")
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	if err := s.Start(ctx); err != nil {
		return fmt.Errorf("start spanship: %w", err)
	}

	select {
	case <-sigCh:
		logger.Info().Msg("received signal, stopping...")
	case <-s.Done():
		if s.Status() == spanship.StateCrashed {
			logger.Error().Msg("spanship crashed")
		}
	}

	var stopErr error
	if s.Status() != spanship.StateCrashed {
		stopErr = s.Stop()
	}

	if metricsSrv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}

	stats := s.Stats()
	logger.Info().
		Uint64("spans_flushed", stats.SpansFlushed).
		Uint64("spans_failed", stats.SpansFailed).
		Uint64("spans_dropped", stats.SpansDropped).
		Msg("shipping stopped")

	if stopErr != nil {
		return fmt.Errorf("stop spanship: %w", stopErr)
	}
	if s.Status() == spanship.StateCrashed {
		return errors.New("spanship crashed")
	}
	return nil
}
