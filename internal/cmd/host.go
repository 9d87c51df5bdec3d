package cmd

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/Iron-Ham/stagehand/internal/config"
	"github.com/Iron-Ham/stagehand/internal/diagnostics"
	"github.com/Iron-Ham/stagehand/internal/event"
	"github.com/Iron-Ham/stagehand/internal/lifecycle"
	"github.com/Iron-Ham/stagehand/internal/logging"
	"github.com/Iron-Ham/stagehand/internal/manifest"
	"github.com/Iron-Ham/stagehand/internal/registry"
	"github.com/Iron-Ham/stagehand/internal/widget"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// metricsNamespace prefixes every exported Prometheus metric.
const metricsNamespace = "stagehand"

// host owns everything one manifest tree runs on: logger, event bus,
// diagnostics sinks and the lifecycle controller.
type host struct {
	cfg     *config.Config
	logger  *logging.Logger
	bus     *event.Bus
	emitter *diagnostics.Emitter
	ctrl    *lifecycle.Controller

	metrics *prometheus.Registry     // nil unless diagnostics.metrics
	tracer  *sdktrace.TracerProvider // nil unless diagnostics.tracing
}

// newHost wires a host from cfg. Spans are written to traceOut.
func newHost(cfg *config.Config, traceOut io.Writer) (*host, error) {
	logger, err := logging.New(logging.Options{
		Dir:      cfg.Logging.Dir,
		Level:    cfg.Logging.Level,
		Format:   cfg.Logging.Format,
		Rotation: cfg.Logging.Rotation(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	h := &host{
		cfg:     cfg,
		logger:  logger,
		bus:     event.NewBus().WithLogger(logger),
		emitter: diagnostics.NewEmitter(diagnostics.NewLogSink(logger)),
	}

	if cfg.Diagnostics.Metrics {
		h.metrics = prometheus.NewRegistry()
		sink, err := diagnostics.NewMetricsSink(metricsNamespace, h.metrics)
		if err != nil {
			_ = logger.Close()
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
		h.emitter.AddSink(sink)
	}

	if cfg.Diagnostics.Tracing {
		tp, err := diagnostics.NewStdoutTracerProvider(traceOut)
		if err != nil {
			_ = logger.Close()
			return nil, err
		}
		h.tracer = tp
		h.emitter.AddSink(diagnostics.NewTraceSink(tp))
	}

	opts := cfg.Lifecycle.Options()
	if cfg.Lifecycle.DetectLeaks {
		opts.LeakDetector = h.bus
	}
	h.ctrl = lifecycle.New(opts, registry.New(), h.emitter, logger)
	return h, nil
}

// start runs the tree described by m.
func (h *host) start(ctx context.Context, m *manifest.Manifest) (*lifecycle.Result, error) {
	h.logger.Info("starting tree", "manifest", m.Name, "components", m.Count())
	return h.ctrl.Run(ctx, widget.FromManifest(m, h.bus, h.logger))
}

// stop tears the live tree down and drops any subscriptions it leaked, so a
// reloaded tree starts on an empty bus.
func (h *host) stop(ctx context.Context) *lifecycle.TeardownReport {
	report := h.ctrl.Shutdown(ctx)
	if n := h.bus.SubscriptionCount(); n > 0 {
		h.logger.Warn("clearing leaked subscriptions", "subscriptions", n)
		h.bus.Clear()
	}
	return report
}

// metricsHandler serves the host's Prometheus registry.
func (h *host) metricsHandler() http.Handler {
	if h.metrics == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(h.metrics, promhttp.HandlerOpts{})
}

// close flushes spans and closes the log file.
func (h *host) close(ctx context.Context) error {
	var err error
	if h.tracer != nil {
		err = h.tracer.Shutdown(ctx)
	}
	if cerr := h.logger.Close(); err == nil {
		err = cerr
	}
	return err
}
