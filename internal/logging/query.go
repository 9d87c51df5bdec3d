package logging

import (
	"bufio"
	"compress/gzip"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Entry is one parsed line of stagehand.log.
type Entry struct {
	Time        time.Time      `json:"time"`
	Level       string         `json:"level"`
	Message     string         `json:"msg"`
	RunID       string         `json:"run_id,omitempty"`
	ComponentID string         `json:"component_id,omitempty"`
	Phase       string         `json:"phase,omitempty"`
	Attrs       map[string]any `json:"attrs,omitempty"`
}

// Filter selects entries. Zero fields match everything; set fields are ANDed.
type Filter struct {
	// Level keeps entries at or above this level.
	Level       string
	RunID       string
	ComponentID string
	Phase       string
	Since       time.Time
	Until       time.Time
	// Contains matches a substring of the message.
	Contains string
}

var levelRank = map[string]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
}

// Export formats accepted by Export.
const (
	ExportText = "text"
	ExportJSON = "json"
	ExportCSV  = "csv"
)

// ReadEntries reads stagehand.log in dir together with its rotated backups
// (plain or gzipped) and returns every parseable entry ordered by time.
// Lines that are not JSON are skipped.
func ReadEntries(dir string) ([]Entry, error) {
	current := filepath.Join(dir, LogFileName)
	if _, err := os.Stat(current); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no %s in %s: %w", LogFileName, dir, err)
		}
		return nil, fmt.Errorf("failed to stat log file: %w", err)
	}

	backups, err := filepath.Glob(current + ".*")
	if err != nil {
		return nil, err
	}

	var entries []Entry
	for _, path := range append(backups, current) {
		fileEntries, err := readFile(path)
		if err != nil {
			return nil, err
		}
		entries = append(entries, fileEntries...)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Time.Before(entries[j].Time)
	})
	return entries, nil
}

func readFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		zr, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		defer func() { _ = zr.Close() }()
		r = zr
	}

	var entries []Entry
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if entry, err := parseEntry(line); err == nil {
			entries = append(entries, entry)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading %s: %w", path, err)
	}
	return entries, nil
}

func parseEntry(line string) (Entry, error) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return Entry{}, err
	}

	var entry Entry
	take := func(key string) string {
		s, _ := raw[key].(string)
		delete(raw, key)
		return s
	}
	if ts := take("time"); ts != "" {
		entry.Time, _ = time.Parse(time.RFC3339Nano, ts)
	}
	entry.Level = take("level")
	entry.Message = take("msg")
	entry.RunID = take("run_id")
	entry.ComponentID = take("component_id")
	entry.Phase = take("phase")
	if len(raw) > 0 {
		entry.Attrs = raw
	}
	return entry, nil
}

// Apply returns the entries matching f.
func (f Filter) Apply(entries []Entry) []Entry {
	if f == (Filter{}) {
		return entries
	}
	var out []Entry
	for _, e := range entries {
		if f.Match(e) {
			out = append(out, e)
		}
	}
	return out
}

// Match reports whether e passes every criterion in f.
func (f Filter) Match(e Entry) bool {
	if f.Level != "" {
		if rank, ok := levelRank[ParseLevel(f.Level)]; ok && levelRank[e.Level] < rank {
			return false
		}
	}
	switch {
	case f.RunID != "" && e.RunID != f.RunID:
		return false
	case f.ComponentID != "" && e.ComponentID != f.ComponentID:
		return false
	case f.Phase != "" && e.Phase != f.Phase:
		return false
	case !f.Since.IsZero() && e.Time.Before(f.Since):
		return false
	case !f.Until.IsZero() && e.Time.After(f.Until):
		return false
	case f.Contains != "" && !strings.Contains(e.Message, f.Contains):
		return false
	}
	return true
}

// LastRunID is the run ID of the latest entry that carries one.
func LastRunID(entries []Entry) string {
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].RunID != "" {
			return entries[i].RunID
		}
	}
	return ""
}

// ExportFormats lists the formats Export understands.
func ExportFormats() []string {
	return []string{ExportText, ExportJSON, ExportCSV}
}

// Export writes entries to w as text, json or csv.
func Export(w io.Writer, entries []Entry, format string) error {
	switch strings.ToLower(format) {
	case ExportText, "":
		return exportText(w, entries)
	case ExportJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	case ExportCSV:
		return exportCSV(w, entries)
	default:
		return fmt.Errorf("unsupported export format %q (supported: %s)", format, strings.Join(ExportFormats(), ", "))
	}
}

// exportText writes one line per entry:
//
//	15:04:05.000 INFO  phase completed [run=.. component=.. phase=..] {"duration_ms":12}
func exportText(w io.Writer, entries []Entry) error {
	for _, e := range entries {
		var b strings.Builder
		fmt.Fprintf(&b, "%s %-5s %s", e.Time.Format("15:04:05.000"), e.Level, e.Message)

		var ctx []string
		if e.RunID != "" {
			ctx = append(ctx, "run="+e.RunID)
		}
		if e.ComponentID != "" {
			ctx = append(ctx, "component="+e.ComponentID)
		}
		if e.Phase != "" {
			ctx = append(ctx, "phase="+e.Phase)
		}
		if len(ctx) > 0 {
			fmt.Fprintf(&b, " [%s]", strings.Join(ctx, " "))
		}
		if len(e.Attrs) > 0 {
			attrs, _ := json.Marshal(e.Attrs)
			b.WriteByte(' ')
			b.Write(attrs)
		}
		b.WriteByte('\n')
		if _, err := io.WriteString(w, b.String()); err != nil {
			return err
		}
	}
	return nil
}

func exportCSV(w io.Writer, entries []Entry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"time", "level", "message", "run_id", "component_id", "phase", "attrs"}); err != nil {
		return err
	}
	for _, e := range entries {
		var attrs string
		if len(e.Attrs) > 0 {
			b, _ := json.Marshal(e.Attrs)
			attrs = string(b)
		}
		if err := cw.Write([]string{
			e.Time.Format(time.RFC3339Nano),
			e.Level,
			e.Message,
			e.RunID,
			e.ComponentID,
			e.Phase,
			attrs,
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
