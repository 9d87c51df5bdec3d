package logging

import (
	"compress/gzip"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

// smallRotation rotates after roughly 100 bytes.
func newSmallWriter(t *testing.T, path string, backups int, compress bool) *RotatingWriter {
	t.Helper()
	rw, err := NewRotatingWriter(path, RotationConfig{MaxSizeMB: 1, MaxBackups: backups, Compress: compress})
	if err != nil {
		t.Fatalf("NewRotatingWriter failed: %v", err)
	}
	rw.maxBytes = 100
	return rw
}

func TestNewRotatingWriter(t *testing.T) {
	t.Run("creates nested directories", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "dir", "test.log")
		rw, err := NewRotatingWriter(path, DefaultRotationConfig())
		if err != nil {
			t.Fatalf("NewRotatingWriter failed: %v", err)
		}
		defer func() { _ = rw.Close() }()

		if _, err := os.Stat(path); err != nil {
			t.Errorf("log file was not created: %v", err)
		}
		if rw.Path() != path {
			t.Errorf("Path() = %q, want %q", rw.Path(), path)
		}
	})

	t.Run("appends to existing file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "test.log")
		if err := os.WriteFile(path, []byte("initial\n"), 0644); err != nil {
			t.Fatal(err)
		}
		rw, err := NewRotatingWriter(path, DefaultRotationConfig())
		if err != nil {
			t.Fatalf("NewRotatingWriter failed: %v", err)
		}
		if rw.Size() != int64(len("initial\n")) {
			t.Errorf("Size() = %d, want %d", rw.Size(), len("initial\n"))
		}
		_, _ = rw.Write([]byte("more\n"))
		_ = rw.Close()

		data, _ := os.ReadFile(path)
		if string(data) != "initial\nmore\n" {
			t.Errorf("file content = %q", data)
		}
	})
}

func TestRotatingWriterRotation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stagehand.log")
	rw := newSmallWriter(t, path, 2, false)

	line := strings.Repeat("x", 59) + "\n"
	for i := 0; i < 5; i++ {
		if _, err := rw.Write([]byte(line)); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}
	if err := rw.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	for _, p := range []string{path, path + ".1", path + ".2"} {
		data, err := os.ReadFile(p)
		if err != nil {
			t.Fatalf("expected %s to exist: %v", p, err)
		}
		if string(data) != line {
			t.Errorf("%s = %q, want one line", p, data)
		}
	}
	if _, err := os.Stat(path + ".3"); !os.IsNotExist(err) {
		t.Error("expected at most 2 backups")
	}
}

func TestRotatingWriterNoBackups(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stagehand.log")
	rw := newSmallWriter(t, path, 0, false)

	_, _ = rw.Write([]byte(strings.Repeat("a", 80)))
	_, _ = rw.Write([]byte(strings.Repeat("b", 80)))
	_ = rw.Close()

	data, _ := os.ReadFile(path)
	if string(data) != strings.Repeat("b", 80) {
		t.Errorf("expected only the latest write to survive, got %q", data)
	}
	if _, err := os.Stat(path + ".1"); !os.IsNotExist(err) {
		t.Error("expected no backup file")
	}
}

func TestRotatingWriterOversizedWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stagehand.log")
	rw := newSmallWriter(t, path, 1, false)
	defer func() { _ = rw.Close() }()

	// A single write larger than the limit goes to an empty file unrotated.
	if _, err := rw.Write([]byte(strings.Repeat("z", 250))); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path + ".1"); !os.IsNotExist(err) {
		t.Error("expected no rotation for the first write")
	}
}

func TestRotatingWriterCompression(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stagehand.log")
	rw := newSmallWriter(t, path, 1, true)

	_, _ = rw.Write([]byte(strings.Repeat("a", 80)))
	_, _ = rw.Write([]byte(strings.Repeat("b", 80)))
	_ = rw.Close() // waits for compression

	f, err := os.Open(path + ".1.gz")
	if err != nil {
		t.Fatalf("expected compressed backup: %v", err)
	}
	defer func() { _ = f.Close() }()
	zr, err := gzip.NewReader(f)
	if err != nil {
		t.Fatal(err)
	}
	data, _ := io.ReadAll(zr)
	if string(data) != strings.Repeat("a", 80) {
		t.Errorf("decompressed backup = %q", data)
	}
	if _, err := os.Stat(path + ".1"); !os.IsNotExist(err) {
		t.Error("expected plain backup to be removed after compression")
	}
}

func TestRotatingWriterConcurrency(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stagehand.log")
	rw := newSmallWriter(t, path, 50, false)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				_, _ = rw.Write([]byte("0123456789\n"))
			}
		}()
	}
	wg.Wait()
	_ = rw.Close()

	var total int
	matches, _ := filepath.Glob(path + "*")
	for _, m := range matches {
		data, _ := os.ReadFile(m)
		total += strings.Count(string(data), "\n")
	}
	if total != 200 {
		t.Errorf("expected 200 lines across files, got %d", total)
	}
}

func TestRotatingWriterClose(t *testing.T) {
	rw, err := NewRotatingWriter(filepath.Join(t.TempDir(), "x.log"), RotationConfig{})
	if err != nil {
		t.Fatal(err)
	}
	if err := rw.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := rw.Close(); err != nil {
		t.Errorf("second Close should be a no-op, got %v", err)
	}
	if _, err := rw.Write([]byte("late")); !errors.Is(err, os.ErrClosed) {
		t.Errorf("Write after Close error = %v, want os.ErrClosed", err)
	}
	if err := rw.Sync(); err != nil {
		t.Errorf("Sync after Close should be a no-op, got %v", err)
	}
}

func TestLoggerWithRotation(t *testing.T) {
	dir := t.TempDir()
	logger, err := New(Options{Dir: dir, Level: LevelInfo, Rotation: RotationConfig{MaxSizeMB: 1, MaxBackups: 1}})
	if err != nil {
		t.Fatal(err)
	}
	logger.file.maxBytes = 200

	for i := 0; i < 10; i++ {
		logger.WithRun("r1").Info("phase completed", "n", i)
	}
	if err := logger.Close(); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(filepath.Join(dir, LogFileName+".1")); err != nil {
		t.Errorf("expected rotated backup: %v", err)
	}
}
