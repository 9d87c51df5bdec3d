// Package internal contains integration tests that drive manifests through
// widgets, the lifecycle controller and every diagnostics sink together.
package internal

import (
	"context"
	"testing"
	"time"

	"github.com/Iron-Ham/stagehand/internal/component"
	"github.com/Iron-Ham/stagehand/internal/diagnostics"
	"github.com/Iron-Ham/stagehand/internal/event"
	"github.com/Iron-Ham/stagehand/internal/lifecycle"
	"github.com/Iron-Ham/stagehand/internal/manifest"
	"github.com/Iron-Ham/stagehand/internal/registry"
	"github.com/Iron-Ham/stagehand/internal/widget"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

const dashboardTOML = `
name = "dashboard"

[[components]]
id = "shell"
subscribe = ["panel.ready"]

[[components.children]]
id = "map"
depends_on = ["stats"]

[components.children.delay]
activation = "5ms"

[[components.children.emit]]
type = "panel.ready"
target = "shell"
payload = "map"

[[components.children]]
id = "stats"
await = ["map"]
`

type harness struct {
	ctrl     *lifecycle.Controller
	bus      *event.Bus
	recorder *diagnostics.Recorder
	metrics  *prometheus.Registry
	spans    *tracetest.SpanRecorder
}

func newHarness(t *testing.T, opts lifecycle.Options) *harness {
	t.Helper()
	h := &harness{
		bus:      event.NewBus(),
		recorder: diagnostics.NewRecorder(),
		metrics:  prometheus.NewRegistry(),
		spans:    tracetest.NewSpanRecorder(),
	}
	metricsSink, err := diagnostics.NewMetricsSink("stagehand", h.metrics)
	if err != nil {
		t.Fatalf("NewMetricsSink() error = %v", err)
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(h.spans))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	emitter := diagnostics.NewEmitter(h.recorder, metricsSink, diagnostics.NewTraceSink(tp))
	opts.LeakDetector = h.bus
	h.ctrl = lifecycle.New(opts, registry.New(), emitter, nil)
	return h
}

func (h *harness) run(t *testing.T, src string) (*lifecycle.Result, error) {
	t.Helper()
	m, err := manifest.Parse([]byte(src), manifest.FormatTOML)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if err := m.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	return h.ctrl.Run(context.Background(), widget.FromManifest(m, h.bus, nil))
}

// counter sums every series of a counter family whose labels include match.
func (h *harness) counter(t *testing.T, name string, match map[string]string) float64 {
	t.Helper()
	families, err := h.metrics.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	var total float64
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
	series:
		for _, m := range f.GetMetric() {
			labels := make(map[string]string)
			for _, l := range m.GetLabel() {
				labels[l.GetName()] = l.GetValue()
			}
			for k, v := range match {
				if labels[k] != v {
					continue series
				}
			}
			switch {
			case m.GetCounter() != nil:
				total += m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				total += m.GetGauge().GetValue()
			}
		}
	}
	return total
}

func (h *harness) spanCount(name string) int {
	var n int
	for _, s := range h.spans.Ended() {
		if s.Name() == name {
			n++
		}
	}
	return n
}

func TestManifestRunIntegration(t *testing.T) {
	h := newHarness(t, lifecycle.Options{
		PhaseTimeout:         time.Second,
		ShutdownTimeout:      time.Second,
		ValidateDependencies: true,
		Scope:                lifecycle.ScopeLevel,
	})

	res, err := h.run(t, dashboardTOML)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Aborted || len(res.Failed) != 0 || len(res.Ready) != 3 {
		t.Fatalf("Expected 3 ready components, got ready=%v failed=%v", res.Ready, res.Failed)
	}

	// No component starts dependency setup before every local init settled.
	var lastInit, firstSetup uint64
	for _, e := range h.recorder.Events() {
		switch {
		case e.Type == diagnostics.PhaseCompleted && e.Phase == component.PhaseLocalInit:
			lastInit = max(lastInit, e.Seq)
		case e.Type == diagnostics.PhaseStarted && e.Phase == component.PhaseDependencySetup && firstSetup == 0:
			firstSetup = e.Seq
		}
	}
	if firstSetup == 0 || lastInit > firstSetup {
		t.Errorf("local init completed at seq %d after dependency setup started at %d", lastInit, firstSetup)
	}

	shell, _ := h.ctrl.Registry().Lookup("shell")
	received := shell.(*widget.Widget).Received()
	if len(received) != 1 || received[0].Source != "map" || received[0].Payload != "map" {
		t.Errorf("Expected shell to receive panel.ready from map, got %+v", received)
	}
	mapWidget, _ := h.ctrl.Registry().Lookup("map")
	if _, ok := mapWidget.(*widget.Widget).Peer("stats"); !ok {
		t.Error("Expected map to resolve its stats dependency")
	}

	if got := h.counter(t, "stagehand_lifecycle_active_components", nil); got != 3 {
		t.Errorf("active_components = %v, want 3", got)
	}

	report := h.ctrl.Shutdown(context.Background())
	if len(report.Deactivated) != 3 || len(report.Failed) != 0 || len(report.Leaked) != 0 {
		t.Errorf("unexpected teardown report %+v", report)
	}
	if n := h.bus.SubscriptionCount(); n != 0 {
		t.Errorf("Expected every subscription released, got %d", n)
	}

	if got := h.counter(t, "stagehand_lifecycle_phase_calls_total", map[string]string{"result": "ok"}); got != 12 {
		t.Errorf("successful phase calls = %v, want 12", got)
	}
	if got := h.counter(t, "stagehand_lifecycle_active_components", nil); got != 0 {
		t.Errorf("active_components after shutdown = %v, want 0", got)
	}
	if got := h.counter(t, "stagehand_lifecycle_runs_total", map[string]string{"outcome": "ready"}); got != 1 {
		t.Errorf("ready runs = %v, want 1", got)
	}

	for _, name := range []string{"lifecycle.run", "lifecycle.local_init", "lifecycle.activation", "lifecycle.deactivation"} {
		want := 3
		if name == "lifecycle.run" {
			want = 1
		}
		if got := h.spanCount(name); got != want {
			t.Errorf("Expected %d %q spans, got %d", want, name, got)
		}
	}
}

func TestManifestRunIntegration_AbortTearsDown(t *testing.T) {
	h := newHarness(t, lifecycle.Options{
		PhaseTimeout:    time.Second,
		ShutdownTimeout: time.Second,
		Scope:           lifecycle.ScopeTree,
	})

	res, err := h.run(t, `
[[components]]
id = "shell"
subscribe = ["tick"]

[[components.children]]
id = "broken"
fail_in = ["dependency_setup"]
`)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !res.Aborted || len(res.Ready) != 0 {
		t.Fatalf("Expected an aborted run with nothing ready, got %+v", res)
	}
	if len(res.Failed) != 1 || res.Failed[0].ComponentID != "broken" {
		t.Errorf("Expected broken to be the only failure, got %v", res.Failed)
	}
	if res.Teardown == nil || len(res.Teardown.Deactivated) != 2 {
		t.Errorf("Expected both components torn down, got %+v", res.Teardown)
	}
	if h.ctrl.Live() {
		t.Error("Expected no live tree after an abort")
	}
	if n := h.bus.SubscriptionCount(); n != 0 {
		t.Errorf("Expected no subscriptions after an abort, got %d", n)
	}

	if _, ok := h.recorder.Find(diagnostics.RunAborted, "", ""); !ok {
		t.Error("Expected a run.aborted event")
	}
	if got := h.counter(t, "stagehand_lifecycle_runs_total", map[string]string{"outcome": "aborted"}); got != 1 {
		t.Errorf("aborted runs = %v, want 1", got)
	}

	var failedSpans int
	for _, s := range h.spans.Ended() {
		if s.Status().Code == codes.Error {
			failedSpans++
		}
	}
	// The failed dependency setup and the run itself.
	if failedSpans != 2 {
		t.Errorf("Expected 2 spans with error status, got %d", failedSpans)
	}
}
