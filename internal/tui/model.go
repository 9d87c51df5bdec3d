// Package tui renders a live view of a lifecycle run from its diagnostics
// events.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/Iron-Ham/stagehand/internal/component"
	"github.com/Iron-Ham/stagehand/internal/diagnostics"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// maxRecent is the number of raw events kept for the event log pane.
const maxRecent = 8

// eventMsg delivers one diagnostics event to the model
type eventMsg diagnostics.Event

// closedMsg is sent when the event channel is closed
type closedMsg struct{}

// waitForEvent blocks on the next event from ch.
func waitForEvent(ch <-chan diagnostics.Event) tea.Cmd {
	return func() tea.Msg {
		e, ok := <-ch
		if !ok {
			return closedMsg{}
		}
		return eventMsg(e)
	}
}

// row is the view state of one component
type row struct {
	id       string
	depth    int
	state    component.State
	phase    component.Phase // phase in flight, empty when settled
	duration time.Duration   // last settled phase
	err      error
	leaked   bool
}

// Model is the bubbletea model for the watch view
type Model struct {
	title   string
	events  <-chan diagnostics.Event
	spinner spinner.Model

	runID   string
	outcome diagnostics.Type // run.ready, run.aborted or teardown.completed once settled
	rows    map[string]*row
	order   []string
	recent  []string

	width    int
	height   int
	closed   bool
	quitting bool
}

// NewModel creates a watch model reading from events
func NewModel(title string, events <-chan diagnostics.Event) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = Primary
	return Model{
		title:   title,
		events:  events,
		spinner: s,
		rows:    make(map[string]*row),
	}
}

// Init starts the spinner and the event pump
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForEvent(m.events))
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case eventMsg:
		m.apply(diagnostics.Event(msg))
		return m, waitForEvent(m.events)

	case closedMsg:
		m.closed = true
		return m, nil
	}
	return m, nil
}

// apply folds one event into the view state
func (m *Model) apply(e diagnostics.Event) {
	m.recent = append(m.recent, e.String())
	if len(m.recent) > maxRecent {
		m.recent = m.recent[len(m.recent)-maxRecent:]
	}

	switch e.Type {
	case diagnostics.RunStarted:
		m.runID = e.RunID
		m.outcome = ""
		m.rows = make(map[string]*row)
		m.order = nil
		return
	case diagnostics.RunReady, diagnostics.RunAborted, diagnostics.TeardownCompleted:
		m.outcome = e.Type
		return
	case diagnostics.TeardownStarted:
		m.outcome = ""
		return
	}

	if e.ComponentID == "" {
		return
	}
	r := m.row(e.ComponentID)
	switch e.Type {
	case diagnostics.PhaseStarted:
		if d, ok := e.Metadata["depth"].(int); ok {
			r.depth = d
		}
		r.phase = e.Phase
	case diagnostics.PhaseCompleted:
		r.phase = ""
		r.duration = e.Duration
		if r.state != component.StateFailed {
			r.state = e.Phase.Produces()
		}
	case diagnostics.PhaseFailed:
		r.phase = ""
		r.duration = e.Duration
		r.state = component.StateFailed
		r.err = e.Err
	case diagnostics.ComponentLeaked:
		r.leaked = true
	}
}

func (m *Model) row(id string) *row {
	r, ok := m.rows[id]
	if !ok {
		r = &row{id: id}
		m.rows[id] = r
		m.order = append(m.order, id)
	}
	return r
}

// Counts returns the number of components per state
func (m Model) Counts() map[component.State]int {
	counts := make(map[component.State]int)
	for _, r := range m.rows {
		counts[r.state]++
	}
	return counts
}

// truncate fits s into the terminal width minus reserved columns. Before the
// first WindowSizeMsg nothing is truncated.
func (m Model) truncate(s string, reserved int) string {
	limit := m.width - reserved
	if m.width == 0 || lipgloss.Width(s) <= limit {
		return s
	}
	if limit <= 3 {
		return "..."
	}
	return ansi.Truncate(s, limit, "...")
}

// View renders the watch view
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	status := m.spinner.View() + " running"
	switch m.outcome {
	case diagnostics.RunReady:
		status = Secondary.Render("● ready")
	case diagnostics.RunAborted:
		status = Error.Render("✗ aborted")
	case diagnostics.TeardownCompleted:
		status = Muted.Render("○ torn down")
	}
	header := fmt.Sprintf("%s  %s  %s", Title.Render(m.title), Muted.Render(m.runID), status)
	b.WriteString(Header.Render(header))
	b.WriteString("\n")

	var rows strings.Builder
	for _, id := range m.order {
		r := m.rows[id]
		line := strings.Repeat("  ", r.depth) + r.id
		rows.WriteString(fmt.Sprintf("%-32s %s", line, StateBadge(r.state)))
		switch {
		case r.phase != "":
			rows.WriteString(" " + m.spinner.View() + " " + string(r.phase))
		case r.duration > 0:
			rows.WriteString(" " + Muted.Render(r.duration.Round(time.Microsecond).String()))
		}
		if r.leaked {
			rows.WriteString(" " + Warning.Render("leaked subscriptions"))
		}
		if r.err != nil {
			indent := strings.Repeat("  ", r.depth+1)
			rows.WriteString("\n" + indent + Error.Render(m.truncate(r.err.Error(), len(indent)+4)))
		}
		rows.WriteString("\n")
	}
	if len(m.order) == 0 {
		rows.WriteString(Muted.Render("waiting for components..."))
	}
	b.WriteString(ContentBox.Render(strings.TrimRight(rows.String(), "\n")))
	b.WriteString("\n")

	for _, line := range m.recent {
		b.WriteString(Muted.Render(m.truncate(line, 0)))
		b.WriteString("\n")
	}

	help := HelpKey.Render("q") + " quit"
	if m.closed {
		help += Muted.Render("  (event stream closed)")
	}
	b.WriteString(HelpBar.Render(help))
	return b.String()
}
