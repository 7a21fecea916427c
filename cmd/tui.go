package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/apostle/internal/shared"
	"github.com/desertthunder/apostle/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive admin console.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger("./tmp/apostle-tui.log")
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	if r.engine == nil {
		return fmt.Errorf("%w: content engine not initialized", shared.ErrServiceUnavailable)
	}

	model := ui.NewModel(ctx, r.session, r.client, r.engine, fileLogger)
	defer model.Close()

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
