package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Iron-Ham/stagehand/internal/config"
	"github.com/Iron-Ham/stagehand/internal/diagnostics"
	"github.com/Iron-Ham/stagehand/internal/manifest"
	"github.com/Iron-Ham/stagehand/internal/tui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// errRunFailed is returned when a run records component failures.
var errRunFailed = errors.New("run completed with failures")

var runCmd = &cobra.Command{
	Use:   "run <manifest>",
	Short: "Run a component tree described by a manifest",
	Long: `Run builds the component tree described by a YAML or TOML manifest and
drives it through local initialization, dependency setup and activation.

Without --serve the tree is torn down as soon as it is ready and a report is
printed. With --serve it stays live until interrupted (SIGINT or SIGTERM).
--reload restarts the tree whenever the manifest file changes.`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

var (
	runServe       bool
	runReload      bool
	runWatch       bool
	runMetricsAddr string
)

func init() {
	runCmd.Flags().BoolVar(&runServe, "serve", false, "Keep the tree live until interrupted")
	runCmd.Flags().BoolVar(&runReload, "reload", false, "Restart the tree when the manifest changes (implies --serve)")
	runCmd.Flags().BoolVar(&runWatch, "watch", false, "Show a live view of lifecycle events")
	runCmd.Flags().StringVar(&runMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. 127.0.0.1:9464)")

	runCmd.Flags().String("scope", "", "Barrier scope for dependency setup and activation: tree or level")
	runCmd.Flags().Bool("continue-on-error", false, "Keep running after a component fails")
	runCmd.Flags().Bool("validate-deps", false, "Fail components whose dependencies are missing or failed")
	runCmd.Flags().Int("max-concurrency", 0, "Maximum phase calls in flight per barrier (0 = unbounded)")
	runCmd.Flags().Int("phase-timeout-ms", 0, "Time limit for a single phase call")
	runCmd.Flags().Bool("trace", false, "Write one span per component phase to stderr")
	runCmd.Flags().Bool("debug", false, "Log every phase transition")

	for flag, key := range map[string]string{
		"scope":             "lifecycle.scope",
		"continue-on-error": "lifecycle.continue_on_error",
		"validate-deps":     "lifecycle.validate_dependencies",
		"max-concurrency":   "lifecycle.max_concurrency",
		"phase-timeout-ms":  "lifecycle.phase_timeout_ms",
		"trace":             "diagnostics.tracing",
		"debug":             "lifecycle.enable_debug_logging",
	} {
		_ = viper.BindPFlag(key, runCmd.Flags().Lookup(flag))
	}
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if runMetricsAddr != "" {
		cfg.Diagnostics.Metrics = true
		cfg.Diagnostics.MetricsAddr = runMetricsAddr
	}
	if runReload || cfg.Watch.Manifest {
		runServe = true
	}

	m, err := manifest.Load(args[0])
	if err != nil {
		return err
	}

	h, err := newHost(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = h.close(ctx)
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if runMetricsAddr != "" {
		srv, err := serveMetrics(runMetricsAddr, h)
		if err != nil {
			return err
		}
		defer func() { _ = srv.Shutdown(context.Background()) }()
		fmt.Fprintf(cmd.ErrOrStderr(), "Serving metrics on http://%s/metrics\n", srv.Addr)
	}

	if runServe && viper.ConfigFileUsed() != "" {
		// Only the log level can change under a live tree.
		config.Watch(func(updated *config.Config, err error) {
			if err != nil {
				h.logger.Warn("ignoring invalid config change", "error", err.Error())
				return
			}
			h.logger.SetLevel(updated.Logging.Level)
			h.logger.Info("log level updated", "level", updated.Logging.Level)
		})
	}

	out := cmd.OutOrStdout()
	s := &session{
		host:     h,
		path:     args[0],
		manifest: m,
		serve:    runServe,
		reload:   runReload || cfg.Watch.Manifest,
		debounce: cfg.Watch.Debounce(),
		out:      out,
		color:    useColor(out),
	}

	if !runWatch {
		return s.run(ctx)
	}
	return runWithWatchView(ctx, s, out)
}

// runWithWatchView runs the session in the background behind the live view.
// Reports are held back until the view exits.
func runWithWatchView(ctx context.Context, s *session, out io.Writer) error {
	sink := diagnostics.NewChannelSink(1024)
	s.host.emitter.AddSink(sink)

	var buf bytes.Buffer
	s.out, s.color = &buf, false

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.run(ctx)
		sink.Close()
	}()

	title := s.manifest.Name
	if title == "" {
		title = s.path
	}
	viewErr := tui.New(title, sink.Events(), nil).Run(ctx)
	cancel()
	runErr := <-errCh

	_, _ = io.Copy(out, &buf)
	if viewErr != nil {
		return viewErr
	}
	return runErr
}

// serveMetrics starts the /metrics endpoint.
func serveMetrics(addr string, h *host) (*http.Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", h.metricsHandler())
	srv := &http.Server{
		Addr:              ln.Addr().String(),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.logger.Error("metrics server stopped", "error", err.Error())
		}
	}()
	return srv, nil
}
