package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/Iron-Ham/stagehand/internal/component"
	"github.com/Iron-Ham/stagehand/internal/lifecycle"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var (
	okColor    = lipgloss.Color("#10B981") // Green
	errColor   = lipgloss.Color("#F87171") // Red
	warnColor  = lipgloss.Color("#F59E0B") // Amber
	mutedColor = lipgloss.Color("#9CA3AF") // Gray
	titleColor = lipgloss.Color("#A78BFA") // Purple
)

// useColor reports whether w is a terminal that should get colored output.
func useColor(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// palette holds the styles for one output stream
type palette struct {
	title, ok, err, warn, muted lipgloss.Style
}

func newPalette(color bool) palette {
	fg := func(c lipgloss.Color) lipgloss.Style {
		if !color {
			return lipgloss.NewStyle()
		}
		return lipgloss.NewStyle().Foreground(c)
	}
	p := palette{
		title: fg(titleColor),
		ok:    fg(okColor),
		err:   fg(errColor),
		warn:  fg(warnColor),
		muted: fg(mutedColor),
	}
	if color {
		p.title = p.title.Bold(true)
	}
	return p
}

func round(d time.Duration) string {
	return d.Round(10 * time.Microsecond).String()
}

// renderResult writes a summary of a run.
func renderResult(w io.Writer, res *lifecycle.Result, color bool) {
	if res == nil {
		return
	}
	p := newPalette(color)

	outcome := p.ok.Render("ready")
	if res.Aborted {
		outcome = p.err.Render("aborted")
	} else if len(res.Failed) > 0 {
		outcome = p.warn.Render("ready with failures")
	}
	fmt.Fprintf(w, "%s %s %s in %s (%d ready, %d failed)\n",
		p.title.Render("Run"), p.muted.Render(res.RunID), outcome, round(res.Timings.Total),
		len(res.Ready), len(res.Failed))

	for _, id := range res.Ready {
		fmt.Fprintf(w, "  %s %s\n", p.ok.Render("✓"), id)
	}
	for _, f := range res.Failed {
		fmt.Fprintf(w, "  %s %s %s\n", p.err.Render("✗"), f.ComponentID, p.muted.Render(string(f.Phase)))
		fmt.Fprintf(w, "      %s\n", p.err.Render(f.Err.Error()))
	}

	var phases []string
	for _, ph := range component.Phases() {
		if d, ok := res.Timings.Phases[ph]; ok {
			phases = append(phases, fmt.Sprintf("%s %s", ph, round(d)))
		}
	}
	if len(phases) > 0 {
		fmt.Fprintf(w, "  %s\n", p.muted.Render(strings.Join(phases, " · ")))
	}

	if res.Teardown != nil {
		renderTeardown(w, res.Teardown, color)
	}
}

// renderTeardown writes a summary of a deactivation pass.
func renderTeardown(w io.Writer, report *lifecycle.TeardownReport, color bool) {
	if report == nil {
		return
	}
	p := newPalette(color)

	fmt.Fprintf(w, "%s %d deactivated, %d failed, %d leaked in %s\n",
		p.title.Render("Teardown"), len(report.Deactivated), len(report.Failed), len(report.Leaked),
		round(report.Duration))
	for _, f := range report.Failed {
		fmt.Fprintf(w, "  %s %s %s\n", p.err.Render("✗"), f.ComponentID, p.err.Render(f.Err.Error()))
	}
	for _, id := range report.Leaked {
		fmt.Fprintf(w, "  %s %s %s\n", p.warn.Render("!"), id, p.muted.Render("still owns event subscriptions"))
	}
}
