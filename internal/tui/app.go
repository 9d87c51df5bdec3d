package tui

import (
	"context"
	"io"

	"github.com/Iron-Ham/stagehand/internal/diagnostics"
	tea "github.com/charmbracelet/bubbletea"
)

// App runs the watch view as a bubbletea program
type App struct {
	model   Model
	program *tea.Program
	output  io.Writer
}

// New creates a watch app over events. A nil output writes to the terminal.
func New(title string, events <-chan diagnostics.Event, output io.Writer) *App {
	return &App{
		model:  NewModel(title, events),
		output: output,
	}
}

// Run blocks until the user quits or ctx is done.
func (a *App) Run(ctx context.Context) error {
	opts := []tea.ProgramOption{tea.WithAltScreen()}
	if a.output != nil {
		opts = append(opts, tea.WithOutput(a.output))
	}
	a.program = tea.NewProgram(a.model, opts...)

	stop := context.AfterFunc(ctx, a.program.Quit)
	defer stop()

	_, err := a.program.Run()
	return err
}
