package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/nhle/managemyhealth/internal/app"
	"github.com/nhle/managemyhealth/internal/entity"
	"github.com/nhle/managemyhealth/internal/portal"
)

// runStatus runs one cycle per account and prints the resulting states.
func runStatus(ctx context.Context, d *deps, w io.Writer) error {
	n, err := app.RegisterEntries(ctx, d.store, d.vault, d.poller, d.cfg.Portal)
	if err != nil {
		return err
	}
	if n == 0 {
		fmt.Fprintln(w, "No accounts configured. Run `mmh setup` first.")
		return nil
	}

	entries, err := d.store.GetEntries(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	defer tw.Flush()

	for _, e := range entries {
		if _, ok := d.poller.Status(e.ID); !ok {
			continue
		}
		res := d.poller.RunOnce(ctx, e.ID)

		fmt.Fprintf(tw, "%s\n", e.Title)
		if res.Err != nil {
			fmt.Fprintf(tw, "  error\t%s (%v)\n", portal.KindOf(res.Err), res.Err)
		}
		if res.AuthFailed {
			fmt.Fprintf(tw, "  \treconfigure with: mmh setup -entry %s\n", e.Email)
		}
		if res.Snapshot == nil {
			continue
		}

		for _, s := range entity.States(res.Snapshot) {
			state := s.State
			if state == "" {
				state = "unknown"
			}
			fmt.Fprintf(tw, "  %s\t%s\n", s.Name, state)

			keys := make([]string, 0, len(s.Attributes))
			for k := range s.Attributes {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(tw, "    %s\t%s\n", k, s.Attributes[k])
			}
		}
		if ev := entity.NextEvent(res.Snapshot); ev != nil {
			fmt.Fprintf(tw, "  %s\t%s at %s\n", entity.CalendarName, ev.Summary, ev.Start.Format(time.RFC3339))
		}
		for _, note := range res.Notifications {
			fmt.Fprintf(tw, "  new\t%s\n", note.Message)
		}
	}

	fmt.Fprintf(tw, "\n%s\n", entity.Attribution)
	return nil
}
