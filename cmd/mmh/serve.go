package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/nhle/managemyhealth/internal/api"
	"github.com/nhle/managemyhealth/internal/app"
)

const shutdownTimeout = 5 * time.Second

// runServe polls every account in the background and serves the state
// API until ctx is cancelled.
func runServe(ctx context.Context, d *deps) error {
	n, err := app.RegisterEntries(ctx, d.store, d.vault, d.poller, d.cfg.Portal)
	if err != nil {
		return err
	}
	log.Printf("polling %d account(s) every %s", n, d.cfg.Poll.Interval())

	d.poller.Start(ctx)
	go drainResults(ctx, d)

	srv := &http.Server{
		Addr: d.cfg.Server.Addr,
		Handler: api.NewRouter(api.RouterConfig{
			Store:   d.store,
			Poller:  d.poller,
			Version: version,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("state api on http://%s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	log.Println("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	d.poller.Stop()
	return nil
}

// drainResults logs cycle outcomes; results are already persisted by the
// poller.
func drainResults(ctx context.Context, d *deps) {
	for {
		select {
		case <-ctx.Done():
			return
		case res := <-d.poller.Results():
			switch {
			case res.AuthFailed:
				log.Printf("entry %s: sign-in rejected, reconfigure with mmh setup", res.EntryID)
			case res.Err != nil:
				log.Printf("entry %s: refresh failed: %v", res.EntryID, res.Err)
			default:
				for _, n := range res.Notifications {
					log.Printf("entry %s: %s", res.EntryID, n.Message)
				}
			}
		}
	}
}
