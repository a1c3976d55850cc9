package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nhle/managemyhealth/internal/entity"
	"github.com/nhle/managemyhealth/internal/model"
	"github.com/nhle/managemyhealth/internal/store"
	"github.com/nhle/managemyhealth/internal/sync"
)

// defaultCalendarWindow applies when a calendar query omits its end.
const defaultCalendarWindow = 30 * 24 * time.Hour

type handlers struct {
	store  store.Store
	poller Poller
}

func healthHandler(version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Version: version})
	}
}

func (h *handlers) listEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := h.store.GetEntries(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}

	resp := make([]EntryResponse, 0, len(entries))
	for _, e := range entries {
		er := EntryResponse{
			ID:     e.ID,
			Email:  e.Email,
			Title:  e.Title,
			Status: sync.SyncIdle.String(),
			Device: entity.DeviceFor(e.ID),
		}
		if st, ok := h.poller.Status(e.ID); ok {
			er.Status = st.State.String()
			if !st.LastSync.IsZero() {
				last := st.LastSync
				er.LastSync = &last
			}
			if st.Error != nil {
				er.Error = st.Error.Error()
			}
		}
		resp = append(resp, er)
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) getStates(w http.ResponseWriter, r *http.Request) {
	entryID, snap, ok := h.loadSnapshot(w, r)
	if !ok {
		return
	}

	resp := StatesResponse{EntryID: entryID, States: entity.States(snap)}
	if snap != nil {
		fetched := snap.FetchedAt
		resp.FetchedAt = &fetched
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) getCalendar(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if v := r.URL.Query().Get("start"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_start", "start must be an RFC 3339 timestamp")
			return
		}
		start = t
	}
	end := start.Add(defaultCalendarWindow)
	if v := r.URL.Query().Get("end"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_end", "end must be an RFC 3339 timestamp")
			return
		}
		end = t
	}
	if !end.After(start) {
		writeError(w, http.StatusBadRequest, "invalid_range", "end must be after start")
		return
	}

	entryID, snap, ok := h.loadSnapshot(w, r)
	if !ok {
		return
	}

	events := entity.Events(snap, start, end)
	if events == nil {
		events = []entity.Event{}
	}
	writeJSON(w, http.StatusOK, CalendarResponse{
		EntryID: entryID,
		Start:   start,
		End:     end,
		Events:  events,
	})
}

func (h *handlers) refreshEntry(w http.ResponseWriter, r *http.Request) {
	entryID := chi.URLParam(r, "id")
	if _, err := h.store.GetEntry(r.Context(), entryID); err != nil {
		handleStoreError(w, err)
		return
	}

	if err := h.poller.Refresh(entryID); err != nil {
		if errors.Is(err, sync.ErrUnknownEntry) {
			writeError(w, http.StatusConflict, "entry_not_polled", err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

func (h *handlers) listNotifications(w http.ResponseWriter, r *http.Request) {
	notes, err := h.store.GetUnreadNotifications(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	if notes == nil {
		notes = []model.Notification{}
	}
	writeJSON(w, http.StatusOK, NotificationsResponse{Notifications: notes})
}

func (h *handlers) markNotificationRead(w http.ResponseWriter, r *http.Request) {
	if err := h.store.MarkNotificationRead(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// loadSnapshot resolves the entry in the URL and its last snapshot. A
// missing snapshot yields nil without error.
func (h *handlers) loadSnapshot(
	w http.ResponseWriter,
	r *http.Request,
) (string, *model.Snapshot, bool) {
	entryID := chi.URLParam(r, "id")
	if _, err := h.store.GetEntry(r.Context(), entryID); err != nil {
		handleStoreError(w, err)
		return "", nil, false
	}

	snap, err := h.store.GetSnapshot(r.Context(), entryID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		handleStoreError(w, err)
		return "", nil, false
	}
	return entryID, snap, true
}

func handleStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}
