// Package logging provides structured logging for stagehand runs.
//
// This package wraps Go's log/slog to emit JSON (or text) logs carrying the
// run, component, and phase that produced each line, so that a lifecycle run
// can be reconstructed after the fact.
//
// # Thread Safety
//
// All types in this package are safe for concurrent use. Child loggers created
// via With* methods share the underlying handler, file, and level.
//
// # Basic Usage
//
//	logger, err := logging.New(logging.Options{Dir: "/tmp/stagehand", Level: "info"})
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	runLogger := logger.WithRun("3f2a9c1b")
//	runLogger.WithComponent("map-viewer").WithPhase("activation").Info("phase completed", "duration_ms", 12)
//
// Output:
//
//	{"time":"...","level":"INFO","msg":"phase completed","run_id":"3f2a9c1b","component_id":"map-viewer","phase":"activation","duration_ms":12}
//
// # Levels
//
// [SetLevel] adjusts the level of a logger tree at runtime; the lifecycle
// controller uses it when debug logging is enabled. Use [NopLogger] in tests.
package logging
