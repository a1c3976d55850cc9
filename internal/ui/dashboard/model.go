package dashboard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/managemyhealth/internal/entity"
	"github.com/nhle/managemyhealth/internal/keys"
	"github.com/nhle/managemyhealth/internal/model"
	"github.com/nhle/managemyhealth/internal/store"
	"github.com/nhle/managemyhealth/internal/sync"
	"github.com/nhle/managemyhealth/internal/theme"
	"github.com/nhle/managemyhealth/internal/ui"
)

// calendarWindow is how far ahead the calendar panel looks.
const calendarWindow = 30 * 24 * time.Hour

// panelMinWidth is the narrowest a side-by-side panel may get.
const panelMinWidth = 34

// EntriesLoadedMsg is sent when the configured accounts are read from the
// store.
type EntriesLoadedMsg struct {
	Entries []model.Entry
	Err     error
}

// snapshotLoadedMsg carries the stored snapshot for one entry.
type snapshotLoadedMsg struct {
	entryID string
	snap    *model.Snapshot
}

// notificationsLoadedMsg carries the unread notifications.
type notificationsLoadedMsg struct {
	notifications []model.Notification
}

// Model renders the sensor, calendar and notification panels for the
// selected account.
type Model struct {
	store store.Store
	keys  *keys.KeyMap

	entries       []model.Entry
	snapshots     map[string]*model.Snapshot
	statuses      map[string]sync.SyncStatus
	notifications []model.Notification
	selected      int

	spinner  spinner.Model
	spinning bool
	layout   ui.Layout
	now      func() time.Time
	err      error
}

// New creates a dashboard reading from s.
func New(s store.Store, k *keys.KeyMap, width, height int) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		store:     s,
		keys:      k,
		snapshots: make(map[string]*model.Snapshot),
		statuses:  make(map[string]sync.SyncStatus),
		spinner:   sp,
		layout:    ui.NewLayout(width, height),
		now:       time.Now,
	}
}

// LoadEntries reads the configured accounts.
func (m Model) LoadEntries() tea.Cmd {
	s := m.store
	return func() tea.Msg {
		entries, err := s.GetEntries(context.Background())
		return EntriesLoadedMsg{Entries: entries, Err: err}
	}
}

// LoadSnapshot reads the last stored snapshot for an entry so the panels
// show data before the first cycle completes.
func (m Model) LoadSnapshot(entryID string) tea.Cmd {
	s := m.store
	return func() tea.Msg {
		snap, err := s.GetSnapshot(context.Background(), entryID)
		if err != nil {
			return snapshotLoadedMsg{entryID: entryID}
		}
		return snapshotLoadedMsg{entryID: entryID, snap: snap}
	}
}

// LoadNotifications reads the unread notifications.
func (m Model) LoadNotifications() tea.Cmd {
	s := m.store
	return func() tea.Msg {
		notes, err := s.GetUnreadNotifications(context.Background())
		if err != nil {
			return notificationsLoadedMsg{}
		}
		return notificationsLoadedMsg{notifications: notes}
	}
}

// MarkAllRead marks the selected entry's notifications as read.
func (m Model) MarkAllRead() tea.Cmd {
	entry, ok := m.Selected()
	if !ok {
		return nil
	}
	s := m.store
	notes := m.notificationsFor(entry.ID)
	return func() tea.Msg {
		ctx := context.Background()
		for _, n := range notes {
			if err := s.MarkNotificationRead(ctx, n.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
				break
			}
		}
		remaining, _ := s.GetUnreadNotifications(ctx)
		return notificationsLoadedMsg{notifications: remaining}
	}
}

// ApplyResult folds a poll result into the view.
func (m *Model) ApplyResult(res sync.Result) {
	if res.Snapshot != nil {
		m.snapshots[res.EntryID] = res.Snapshot
	}
}

// SetStatuses replaces the sync statuses shown in the tabs.
func (m *Model) SetStatuses(statuses []sync.SyncStatus) {
	for _, st := range statuses {
		m.statuses[st.EntryID] = st
	}
}

// Running reports whether any entry is mid-cycle.
func (m Model) Running() bool {
	for _, st := range m.statuses {
		if st.State == sync.SyncRunning {
			return true
		}
	}
	return false
}

// Entries returns the loaded accounts.
func (m Model) Entries() []model.Entry {
	return m.entries
}

// Selected returns the account currently shown.
func (m Model) Selected() (model.Entry, bool) {
	if len(m.entries) == 0 {
		return model.Entry{}, false
	}
	return m.entries[m.selected], true
}

// StartSpinner starts the spinner animation when a cycle is running and
// the spinner is not already ticking.
func (m *Model) StartSpinner() tea.Cmd {
	if m.spinning || !m.Running() {
		return nil
	}
	m.spinning = true
	return m.spinner.Tick
}

// SetSize updates the dashboard dimensions.
func (m *Model) SetSize(width, height int) {
	m.layout = ui.NewLayout(width, height)
}

// Update handles dashboard-local messages and keys.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case EntriesLoadedMsg:
		m.err = msg.Err
		m.entries = msg.Entries
		if m.selected >= len(m.entries) {
			m.selected = 0
		}
		cmds := []tea.Cmd{m.LoadNotifications()}
		for _, e := range m.entries {
			if _, ok := m.snapshots[e.ID]; !ok {
				cmds = append(cmds, m.LoadSnapshot(e.ID))
			}
		}
		return m, tea.Batch(cmds...)

	case snapshotLoadedMsg:
		// A live result may have arrived first.
		if _, ok := m.snapshots[msg.entryID]; !ok && msg.snap != nil {
			m.snapshots[msg.entryID] = msg.snap
		}
		return m, nil

	case notificationsLoadedMsg:
		m.notifications = msg.notifications
		return m, nil

	case spinner.TickMsg:
		if msg.ID != m.spinner.ID() {
			return m, nil
		}
		if !m.Running() {
			m.spinning = false
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		n := len(m.entries)
		if n == 0 {
			return m, nil
		}
		switch {
		case key.Matches(msg, m.keys.NextEntry):
			m.selected = (m.selected + 1) % n
		case key.Matches(msg, m.keys.PrevEntry):
			m.selected = (m.selected - 1 + n) % n
		case key.Matches(msg, m.keys.MarkRead):
			return m, m.MarkAllRead()
		}
	}

	return m, nil
}

// View renders the tabs and panels for the selected account.
func (m Model) View() string {
	if m.err != nil {
		return theme.ErrorStyle.Render(fmt.Sprintf("Error loading accounts: %v", m.err))
	}
	entry, ok := m.Selected()
	if !ok {
		return theme.DimmedStyle.Render("No accounts configured. Press c to add one.")
	}

	snap := m.snapshots[entry.ID]
	width := m.layout.PanelWidth(3, panelMinWidth)

	panels := m.layout.Columns(panelMinWidth,
		panel("Next Appointment", renderAppointment(snap), width),
		panel("Mailbox", renderMailbox(snap), width),
		panel("Calendar", m.renderCalendar(snap), width),
	)

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderTabs(),
		m.renderStatus(entry.ID, snap),
		panels,
		panel("Notifications", m.renderNotifications(entry.ID), m.layout.Width),
	)
}

func (m Model) renderTabs() string {
	tabs := make([]string, 0, len(m.entries))
	for i, e := range m.entries {
		style := theme.TabStyle
		if i == m.selected {
			style = theme.SelectedTabStyle
		}
		label := e.Title
		if st, ok := m.statuses[e.ID]; ok && st.State == sync.SyncAuthFailed {
			label += " !"
		}
		tabs = append(tabs, style.Render(label))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m Model) renderStatus(entryID string, snap *model.Snapshot) string {
	st, ok := m.statuses[entryID]
	if !ok {
		return theme.DimmedStyle.Render("waiting for first sync")
	}

	state := theme.SyncStateStyle(st.State.String()).Render(st.State.String())
	if st.State == sync.SyncRunning {
		state = m.spinner.View() + " " + state
	}

	parts := []string{state}
	switch {
	case !st.LastSync.IsZero():
		parts = append(parts, theme.LabelStyle.Render("last sync ")+st.LastSync.Format("15:04"))
	case snap != nil:
		parts = append(parts, theme.LabelStyle.Render("cached ")+snap.FetchedAt.Local().Format("Jan 2 15:04"))
	}
	if st.Error != nil && st.State != sync.SyncAuthFailed {
		parts = append(parts, theme.ErrorStyle.Render(truncate(st.Error.Error(), 80)))
	}
	return strings.Join(parts, "  ")
}

func renderAppointment(snap *model.Snapshot) string {
	s := entity.AppointmentSensor(snap)
	if !s.Available() {
		return theme.DimmedStyle.Render("No appointment found")
	}

	lines := []string{snap.Appointment.Start.Format("Mon 2 Jan 2006 15:04")}
	if snap.Appointment.Past {
		lines = append(lines, theme.DimmedStyle.Render("most recent past appointment"))
	}
	for _, k := range []string{"Provider Name", "Location Name", "Reason", "Duration"} {
		if v := s.Attributes[k]; v != "" {
			lines = append(lines, attr(k, v))
		}
	}
	return strings.Join(lines, "\n")
}

func renderMailbox(snap *model.Snapshot) string {
	s := entity.MailboxSensor(snap)
	if !s.Available() {
		return theme.DimmedStyle.Render("No messages")
	}

	lines := []string{lipgloss.NewStyle().Bold(true).Render(s.State)}
	lines = append(lines, attr("From", s.Attributes["From"]))
	lines = append(lines, attr("Date", snap.Message.ReceivedAt.Format("Mon 2 Jan 15:04")))
	if body := strings.TrimSpace(s.Attributes["Message"]); body != "" {
		lines = append(lines, "", truncate(body, 240))
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderCalendar(snap *model.Snapshot) string {
	from := m.now()
	events := entity.Events(snap, from, from.Add(calendarWindow))
	if len(events) == 0 {
		return theme.DimmedStyle.Render("Nothing in the next 30 days")
	}

	var lines []string
	for _, ev := range events {
		lines = append(lines,
			lipgloss.NewStyle().Bold(true).Render(ev.Summary),
			fmt.Sprintf("%s - %s", ev.Start.Format("Mon 2 Jan 15:04"), ev.End.Format("15:04")),
		)
		if ev.Location != "" {
			lines = append(lines, attr("At", ev.Location))
		}
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderNotifications(entryID string) string {
	notes := m.notificationsFor(entryID)
	if len(notes) == 0 {
		return theme.DimmedStyle.Render("No new notifications")
	}

	lines := make([]string, 0, len(notes))
	for _, n := range notes {
		lines = append(lines, theme.LabelStyle.Render(n.CreatedAt.Local().Format("Jan 2 15:04"))+"  "+n.Message)
	}
	return strings.Join(lines, "\n")
}

func (m Model) notificationsFor(entryID string) []model.Notification {
	var out []model.Notification
	for _, n := range m.notifications {
		if n.EntryID == entryID {
			out = append(out, n)
		}
	}
	return out
}

func panel(title, body string, width int) string {
	return theme.PanelStyle.
		Width(max(width-2, 0)).
		Render(theme.PanelTitleStyle.Render(title) + "\n" + body)
}

func attr(label, value string) string {
	return theme.LabelStyle.Render(label+": ") + value
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
