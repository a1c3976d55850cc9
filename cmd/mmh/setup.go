package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/managemyhealth/internal/model"
	"github.com/nhle/managemyhealth/internal/onboarding"
	"github.com/nhle/managemyhealth/internal/ui/setup"
)

func runSetup(ctx context.Context, d *deps, args []string) error {
	fs := flag.NewFlagSet("setup", flag.ExitOnError)
	entryEmail := fs.String("entry", "", "email of an existing account to reconfigure")
	_ = fs.Parse(args)

	// Persist defaults on first run so the file can be edited later.
	if _, err := os.Stat(d.cfgPath); errors.Is(err, os.ErrNotExist) {
		if err := model.SaveConfig(d.cfgPath, d.cfg); err != nil {
			return err
		}
	}

	m := setup.New(d.flow, 80, 24)
	if *entryEmail != "" {
		entry, err := d.store.GetEntryByUniqueID(ctx, onboarding.UniqueID(*entryEmail))
		if err != nil {
			return fmt.Errorf("finding %s: %w", *entryEmail, err)
		}
		m = setup.ForEntry(d.flow, *entry, 80, 24)
	}

	final, err := tea.NewProgram(setup.NewProgram(m), tea.WithContext(ctx)).Run()
	if err != nil {
		return err
	}

	res := final.(*setup.Program).Result()
	switch {
	case res == nil:
		fmt.Println("Setup cancelled.")
	case res.Entry != nil:
		fmt.Printf("Added %s. Run `mmh watch` or `mmh serve` to start polling.\n", res.Entry.Email)
	default:
		fmt.Println("Credentials updated.")
	}
	return nil
}

func runRemove(ctx context.Context, d *deps, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: mmh remove <email>")
	}

	entry, err := d.store.GetEntryByUniqueID(ctx, onboarding.UniqueID(args[0]))
	if err != nil {
		return fmt.Errorf("finding %s: %w", args[0], err)
	}
	if err := d.flow.Remove(ctx, entry.ID); err != nil {
		return err
	}

	fmt.Printf("Removed %s.\n", entry.Email)
	return nil
}
