package logging

import (
	"bytes"
	"compress/gzip"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeRunLog(t *testing.T, dir string) {
	t.Helper()
	logger, err := New(Options{Dir: dir, Level: LevelDebug, Format: FormatText})
	if err != nil {
		t.Fatal(err)
	}
	run := logger.WithRun("run-1")
	run.Info("run started", "components", 2)
	run.WithComponent("map").WithPhase("activation").Debug("phase completed", "duration_ms", 3)
	run.WithComponent("stats").WithPhase("activation").Error("phase failed", "error", "boom")
	logger.WithRun("run-2").Warn("leak detected")
	if err := logger.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestReadEntries(t *testing.T) {
	dir := t.TempDir()
	writeRunLog(t, dir)

	// Noise that is not JSON is skipped.
	f, _ := os.OpenFile(filepath.Join(dir, LogFileName), os.O_APPEND|os.O_WRONLY, 0644)
	_, _ = f.WriteString("not json\n\n")
	_ = f.Close()

	entries, err := ReadEntries(dir)
	if err != nil {
		t.Fatalf("ReadEntries failed: %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(entries))
	}

	e := entries[1]
	if e.RunID != "run-1" || e.ComponentID != "map" || e.Phase != "activation" || e.Level != LevelDebug {
		t.Errorf("unexpected entry %+v", e)
	}
	if e.Attrs["duration_ms"] != float64(3) {
		t.Errorf("expected duration_ms attr, got %v", e.Attrs)
	}
	if _, ok := e.Attrs["run_id"]; ok {
		t.Error("known fields should not be duplicated in Attrs")
	}
	if entries[0].Time.IsZero() {
		t.Error("expected timestamps to be parsed")
	}
}

func TestReadEntries_IncludesCompressedBackups(t *testing.T) {
	dir := t.TempDir()
	writeRunLog(t, dir)

	old := `{"time":"2020-01-01T00:00:00Z","level":"INFO","msg":"ancient","run_id":"run-0"}` + "\n"
	gz, err := os.Create(filepath.Join(dir, LogFileName+".1.gz"))
	if err != nil {
		t.Fatal(err)
	}
	zw := gzip.NewWriter(gz)
	_, _ = zw.Write([]byte(old))
	_ = zw.Close()
	_ = gz.Close()

	entries, err := ReadEntries(dir)
	if err != nil {
		t.Fatalf("ReadEntries failed: %v", err)
	}
	if len(entries) != 5 || entries[0].Message != "ancient" {
		t.Errorf("expected backup entry first, got %d entries starting with %q", len(entries), entries[0].Message)
	}
}

func TestReadEntries_MissingLog(t *testing.T) {
	if _, err := ReadEntries(t.TempDir()); err == nil {
		t.Error("expected error for a directory without a log")
	}
}

func TestFilter(t *testing.T) {
	dir := t.TempDir()
	writeRunLog(t, dir)
	entries, err := ReadEntries(dir)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"empty", Filter{}, 4},
		{"run", Filter{RunID: "run-1"}, 3},
		{"component", Filter{ComponentID: "stats"}, 1},
		{"phase", Filter{Phase: "activation"}, 2},
		{"level warn", Filter{Level: "warn"}, 2},
		{"level and run", Filter{Level: "info", RunID: "run-1"}, 2},
		{"contains", Filter{Contains: "leak"}, 1},
		{"since future", Filter{Since: time.Now().Add(time.Hour)}, 0},
		{"until past", Filter{Until: time.Now().Add(-time.Hour)}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Apply(entries); len(got) != tt.want {
				t.Errorf("Apply() returned %d entries, want %d", len(got), tt.want)
			}
		})
	}
}

func TestLastRunID(t *testing.T) {
	entries := []Entry{{RunID: "a"}, {RunID: "b"}, {Message: "no run"}}
	if got := LastRunID(entries); got != "b" {
		t.Errorf("LastRunID() = %q, want b", got)
	}
	if got := LastRunID(nil); got != "" {
		t.Errorf("LastRunID(nil) = %q, want empty", got)
	}
}

func TestExport(t *testing.T) {
	entries := []Entry{{
		Time:        time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Level:       LevelError,
		Message:     "phase failed",
		RunID:       "run-1",
		ComponentID: "stats",
		Phase:       "activation",
		Attrs:       map[string]any{"error": "boom"},
	}}

	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		if err := Export(&buf, entries, ExportText); err != nil {
			t.Fatal(err)
		}
		want := `12:00:00.000 ERROR phase failed [run=run-1 component=stats phase=activation] {"error":"boom"}` + "\n"
		if buf.String() != want {
			t.Errorf("text export = %q, want %q", buf.String(), want)
		}
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		if err := Export(&buf, entries, ExportJSON); err != nil {
			t.Fatal(err)
		}
		var decoded []Entry
		if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
			t.Fatalf("invalid JSON export: %v", err)
		}
		if len(decoded) != 1 || decoded[0].ComponentID != "stats" {
			t.Errorf("unexpected decoded export %+v", decoded)
		}
	})

	t.Run("csv", func(t *testing.T) {
		var buf bytes.Buffer
		if err := Export(&buf, entries, ExportCSV); err != nil {
			t.Fatal(err)
		}
		records, err := csv.NewReader(&buf).ReadAll()
		if err != nil {
			t.Fatal(err)
		}
		if len(records) != 2 || records[1][3] != "run-1" || records[1][6] != `{"error":"boom"}` {
			t.Errorf("unexpected csv records %v", records)
		}
	})

	t.Run("unsupported", func(t *testing.T) {
		err := Export(&bytes.Buffer{}, entries, "xml")
		if err == nil || !strings.Contains(err.Error(), "unsupported") {
			t.Errorf("expected unsupported format error, got %v", err)
		}
	})
}
