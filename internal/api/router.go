// Package api serves entity states and sync controls over HTTP for a
// home-automation host.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nhle/managemyhealth/internal/store"
	"github.com/nhle/managemyhealth/internal/sync"
)

// Poller is the part of the sync poller the API drives.
type Poller interface {
	Refresh(entryID string) error
	Status(entryID string) (sync.SyncStatus, bool)
}

// RouterConfig holds the dependencies the state API handlers read from.
type RouterConfig struct {
	Store   store.Store
	Poller  Poller
	Version string
}

// NewRouter builds the chi router for the state API with request-id and
// logging middleware installed.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)

	r.Get("/healthz", healthHandler(cfg.Version))

	h := &handlers{store: cfg.Store, poller: cfg.Poller}
	r.Route("/api", func(r chi.Router) {
		r.Get("/entries", h.listEntries)
		r.Get("/entries/{id}/states", h.getStates)
		r.Get("/entries/{id}/calendar", h.getCalendar)
		r.Post("/entries/{id}/refresh", h.refreshEntry)

		r.Get("/notifications", h.listNotifications)
		r.Post("/notifications/{id}/read", h.markNotificationRead)
	})

	return r
}
