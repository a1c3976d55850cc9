package dashboard

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/managemyhealth/internal/keys"
	"github.com/nhle/managemyhealth/internal/model"
	"github.com/nhle/managemyhealth/internal/sync"
)

func loaded(t *testing.T) Model {
	t.Helper()
	start := time.Date(2024, 3, 1, 9, 0, 0, 0, model.PortalZone)

	m := New(nil, keys.DefaultKeyMap(), 180, 40)
	m.now = func() time.Time { return start.Add(-24 * time.Hour) }

	m, _ = m.Update(EntriesLoadedMsg{Entries: []model.Entry{
		{ID: "a", Title: "a@example.com"},
		{ID: "b", Title: "b@example.com"},
	}})
	m.ApplyResult(sync.Result{EntryID: "a", Snapshot: &model.Snapshot{
		EntryID: "a",
		Appointment: &model.Appointment{
			Start:        start,
			End:          start.Add(15 * time.Minute),
			ProviderName: "Dr. Smith",
			LocationName: "City Clinic",
		},
		Message: &model.Message{Subject: "Results", SenderName: "Dr. Jones", ReceivedAt: start},
	}})
	return m
}

func TestViewShowsSelectedEntry(t *testing.T) {
	m := loaded(t)
	view := m.View()

	for _, want := range []string{"Dr. Smith", "Results", "Dr. Jones", "Appointment with Dr. Smith"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestTabSwitchesEntry(t *testing.T) {
	m := loaded(t)

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyTab})
	e, ok := m.Selected()
	if !ok || e.ID != "b" {
		t.Fatalf("selected = %+v", e)
	}
	if view := m.View(); !strings.Contains(view, "No appointment found") {
		t.Errorf("expected empty appointment panel, got:\n%s", view)
	}

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyTab})
	if e, _ := m.Selected(); e.ID != "a" {
		t.Errorf("selection did not wrap, got %s", e.ID)
	}
}

func TestLiveResultWinsOverStoredSnapshot(t *testing.T) {
	m := loaded(t)

	m, _ = m.Update(snapshotLoadedMsg{entryID: "a", snap: &model.Snapshot{EntryID: "a"}})
	if m.snapshots["a"].Appointment == nil {
		t.Error("stored snapshot replaced the live result")
	}
}

func TestNotificationsFilteredByEntry(t *testing.T) {
	m := loaded(t)
	m, _ = m.Update(notificationsLoadedMsg{notifications: []model.Notification{
		{ID: "1", EntryID: "a", Message: "New message from Dr. Jones: Results"},
		{ID: "2", EntryID: "b", Message: "Next appointment elsewhere"},
	}})

	view := m.View()
	if !strings.Contains(view, "New message from Dr. Jones") {
		t.Error("missing notification for selected entry")
	}
	if strings.Contains(view, "elsewhere") {
		t.Error("showing notification for another entry")
	}
}

func TestNoEntries(t *testing.T) {
	m := New(nil, keys.DefaultKeyMap(), 80, 24)
	if !strings.Contains(m.View(), "No accounts configured") {
		t.Errorf("view = %q", m.View())
	}
}

func TestStartSpinnerOnlyWhileRunning(t *testing.T) {
	m := loaded(t)
	if cmd := m.StartSpinner(); cmd != nil {
		t.Error("spinner started while idle")
	}

	m.SetStatuses([]sync.SyncStatus{{EntryID: "a", State: sync.SyncRunning}})
	if cmd := m.StartSpinner(); cmd == nil {
		t.Error("spinner not started while running")
	}
	if cmd := m.StartSpinner(); cmd != nil {
		t.Error("spinner started twice")
	}
}
