package main

import (
	"context"
	"fmt"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/managemyhealth/internal/app"
)

// runWatch opens the dashboard. Logging goes to a file next to the
// database so it does not corrupt the screen.
func runWatch(ctx context.Context, d *deps) error {
	logPath := filepath.Join(filepath.Dir(d.cfg.Store.Path), "mmh.log")
	f, err := tea.LogToFile(logPath, "mmh")
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	defer f.Close()

	root := app.New(ctx, app.Deps{
		Store:  d.store,
		Vault:  d.vault,
		Poller: d.poller,
		Flow:   d.flow,
		Portal: d.cfg.Portal,
	})

	_, err = tea.NewProgram(root, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}
