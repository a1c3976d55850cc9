package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/managemyhealth/internal/credential"
	"github.com/nhle/managemyhealth/internal/keys"
	"github.com/nhle/managemyhealth/internal/model"
	"github.com/nhle/managemyhealth/internal/onboarding"
	"github.com/nhle/managemyhealth/internal/store"
	appsync "github.com/nhle/managemyhealth/internal/sync"
	"github.com/nhle/managemyhealth/internal/ui"
	"github.com/nhle/managemyhealth/internal/ui/dashboard"
	helpview "github.com/nhle/managemyhealth/internal/ui/help"
	"github.com/nhle/managemyhealth/internal/ui/setup"
)

// statusInterval is how often sync statuses are re-read for the header.
const statusInterval = 500 * time.Millisecond

// entriesRegisteredMsg is sent when stored entries have been registered
// with the poller.
type entriesRegisteredMsg struct {
	count int
	err   error
}

// entryAddedMsg is sent after a new or reconfigured entry has been handed
// to the poller.
type entryAddedMsg struct {
	err error
}

// statusTickMsg drives the periodic status refresh.
type statusTickMsg struct{}

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewDashboard ViewState = iota
	ViewSetup
	ViewHelp
)

// Deps are the long-lived services the UI drives.
type Deps struct {
	Store  store.Store
	Vault  *credential.Vault
	Poller *appsync.Poller
	Flow   *onboarding.Flow
	Portal model.PortalConfig
}

// Model is the root Bubble Tea model that routes between the dashboard,
// the setup form and the help overlay.
type Model struct {
	ctx          context.Context
	deps         Deps
	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	keys         *keys.KeyMap
	dashboard    dashboard.Model
	setupView    setup.Model
	helpView     helpview.Model
	ready        bool
	started      bool
	unreadCount  int

	// authEntryID is the entry whose credentials were last rejected.
	authEntryID string
}

// New creates the root model. ctx bounds the poller's lifetime.
func New(ctx context.Context, deps Deps) Model {
	k := keys.DefaultKeyMap()
	return Model{
		ctx:       ctx,
		deps:      deps,
		keys:      k,
		dashboard: dashboard.New(deps.Store, k, 80, 24),
		setupView: setup.New(deps.Flow, 80, 24),
		helpView:  helpview.New(k, 80, 24),
	}
}

// Init loads entries and registers them with the poller.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.dashboard.LoadEntries(),
		m.registerEntries(),
		tickStatus(),
	)
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		m.dashboard.SetSize(msg.Width, m.layout.ContentHeight())
		m.helpView.SetSize(msg.Width, m.layout.ContentHeight())
		// Forward to setup so the huh form can calculate its layout.
		var cmd tea.Cmd
		m.setupView, cmd = m.setupView.Update(msg)
		return m, cmd

	case entriesRegisteredMsg:
		if msg.err != nil {
			log.Printf("registering entries: %v", msg.err)
		}
		if msg.count == 0 {
			// First run: go straight to the setup form.
			return m.openSetup("")
		}
		cmd := m.startPoller()
		return m, cmd

	case entryAddedMsg:
		if msg.err != nil {
			log.Printf("adding entry: %v", msg.err)
		}
		cmd := m.startPoller()
		return m, tea.Batch(m.dashboard.LoadEntries(), cmd)

	case appsync.Result:
		m.dashboard.ApplyResult(msg)
		m.dashboard.SetStatuses(m.deps.Poller.Statuses())
		if msg.AuthFailed {
			m.authEntryID = msg.EntryID
		} else if msg.Err == nil && msg.EntryID == m.authEntryID {
			m.authEntryID = ""
		}
		return m, tea.Batch(
			m.waitForResult(),
			m.dashboard.LoadNotifications(),
			m.fetchUnreadCount(),
		)

	case statusTickMsg:
		m.dashboard.SetStatuses(m.deps.Poller.Statuses())
		spin := m.dashboard.StartSpinner()
		return m, tea.Batch(tickStatus(), spin)

	case unreadCountMsg:
		m.unreadCount = msg.count
		return m, nil

	case setup.DoneMsg:
		m.currentView = ViewDashboard
		if msg.EntryID == m.authEntryID {
			m.authEntryID = ""
		}
		return m, m.addEntry(msg)

	case setup.CancelMsg:
		m.currentView = ViewDashboard
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.deps.Poller.Stop()
			return m, tea.Quit
		}
		if m.currentView == ViewSetup {
			break
		}

		switch {
		case key.Matches(msg, m.keys.Quit):
			m.deps.Poller.Stop()
			return m, tea.Quit

		case key.Matches(msg, m.keys.Help):
			if m.currentView == ViewHelp {
				m.currentView = m.previousView
				return m, nil
			}
			m.previousView = m.currentView
			m.currentView = ViewHelp
			return m, nil

		case key.Matches(msg, m.keys.Back):
			if m.currentView == ViewHelp {
				m.currentView = m.previousView
			}
			return m, nil

		case key.Matches(msg, m.keys.Refresh):
			for _, e := range m.dashboard.Entries() {
				if err := m.deps.Poller.Refresh(e.ID); err != nil {
					log.Printf("refresh: %v", err)
				}
			}
			return m, nil

		case key.Matches(msg, m.keys.Configure):
			return m.openSetup(m.authEntryID)
		}
	}

	// Delegate to active sub-view
	return m.updateActiveView(msg)
}

// updateActiveView dispatches the message to the currently active view.
// Dashboard data messages are always delivered to the dashboard.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewSetup:
		if _, isKey := msg.(tea.KeyMsg); isKey {
			m.setupView, cmd = m.setupView.Update(msg)
			return m, cmd
		}
		var setupCmd tea.Cmd
		m.setupView, setupCmd = m.setupView.Update(msg)
		m.dashboard, cmd = m.dashboard.Update(msg)
		return m, tea.Batch(setupCmd, cmd)
	case ViewHelp:
		if _, isKey := msg.(tea.KeyMsg); isKey {
			m.helpView, cmd = m.helpView.Update(msg)
			return m, cmd
		}
		m.dashboard, cmd = m.dashboard.Update(msg)
	default:
		m.dashboard, cmd = m.dashboard.Update(msg)
	}

	return m, cmd
}

// openSetup switches to the setup form, reconfiguring entryID when set.
func (m Model) openSetup(entryID string) (tea.Model, tea.Cmd) {
	m.previousView = m.currentView
	m.currentView = ViewSetup

	m.setupView = setup.New(m.deps.Flow, m.layout.Width, m.layout.ContentHeight())
	if entryID != "" {
		for _, e := range m.dashboard.Entries() {
			if e.ID == entryID {
				m.setupView = setup.ForEntry(m.deps.Flow, e, m.layout.Width, m.layout.ContentHeight())
				break
			}
		}
	}
	return m, m.setupView.Init()
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	title := "ManageMyHealth"
	if m.unreadCount > 0 {
		title = fmt.Sprintf("ManageMyHealth [%d new]", m.unreadCount)
	}
	header := m.layout.RenderHeader(title, m.syncStatus())
	statusBar := m.layout.RenderStatusBar(m.keyHints(), m.authBanner())

	return m.layout.Frame(header, m.renderContent(), statusBar)
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewSetup:
		return m.setupView.View()
	case ViewHelp:
		return m.helpView.View()
	default:
		return m.dashboard.View()
	}
}

// syncStatus returns a short string describing the combined sync state.
func (m Model) syncStatus() string {
	statuses := m.deps.Poller.Statuses()
	if len(statuses) == 0 {
		return "no accounts"
	}

	running, failed := 0, 0
	for _, s := range statuses {
		switch s.State {
		case appsync.SyncRunning:
			running++
		case appsync.SyncError, appsync.SyncAuthFailed:
			failed++
		}
	}

	if running > 0 {
		return fmt.Sprintf("syncing (%d)", running)
	}
	if failed > 0 {
		return fmt.Sprintf("%d failing", failed)
	}
	return "up to date"
}

// authBanner describes a rejected sign-in, if any.
func (m Model) authBanner() string {
	if m.authEntryID == "" || m.currentView == ViewSetup {
		return ""
	}
	who := "an account"
	for _, e := range m.dashboard.Entries() {
		if e.ID == m.authEntryID {
			who = e.Email
			break
		}
	}
	return fmt.Sprintf("Sign-in rejected for %s. Press c or reconfigure with mmh setup.", who)
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	switch m.currentView {
	case ViewHelp:
		return "? close help | esc back"
	case ViewSetup:
		return "enter next | esc cancel"
	default:
		return "r refresh | tab account | m mark read | c configure | ? help | q quit"
	}
}

// registerEntries registers every stored entry with the poller.
func (m Model) registerEntries() tea.Cmd {
	ctx, deps := m.ctx, m.deps
	return func() tea.Msg {
		n, err := RegisterEntries(ctx, deps.Store, deps.Vault, deps.Poller, deps.Portal)
		return entriesRegisteredMsg{count: n, err: err}
	}
}

// addEntry hands a new or reconfigured entry to the poller.
func (m Model) addEntry(done setup.DoneMsg) tea.Cmd {
	ctx, deps := m.ctx, m.deps
	return func() tea.Msg {
		id := done.EntryID
		if done.Entry != nil {
			id = done.Entry.ID
		}
		entry, err := deps.Store.GetEntry(ctx, id)
		if err != nil {
			return entryAddedMsg{err: err}
		}
		client, err := NewFetcher(deps.Vault, deps.Portal, *entry)
		if err != nil {
			return entryAddedMsg{err: err}
		}

		if done.Entry != nil {
			deps.Poller.RegisterEntry(entry.ID, client)
			return entryAddedMsg{}
		}
		return entryAddedMsg{err: deps.Poller.Reauthenticate(entry.ID, client)}
	}
}

// startPoller starts polling once and subscribes to results.
func (m *Model) startPoller() tea.Cmd {
	if m.started {
		return nil
	}
	m.started = true
	m.deps.Poller.Start(m.ctx)
	return m.waitForResult()
}

// waitForResult returns a tea.Cmd that waits for the next poll result.
// It is re-issued after every result to keep listening.
func (m Model) waitForResult() tea.Cmd {
	results := m.deps.Poller.Results()
	return func() tea.Msg {
		res, ok := <-results
		if !ok {
			return nil
		}
		return res
	}
}

// unreadCountMsg carries the number of unread notifications to the UI.
type unreadCountMsg struct {
	count int
}

// fetchUnreadCount queries the store for the number of unread
// notifications.
func (m Model) fetchUnreadCount() tea.Cmd {
	s := m.deps.Store
	return func() tea.Msg {
		notifications, err := s.GetUnreadNotifications(context.Background())
		if err != nil {
			return unreadCountMsg{count: 0}
		}
		return unreadCountMsg{count: len(notifications)}
	}
}

func tickStatus() tea.Cmd {
	return tea.Tick(statusInterval, func(time.Time) tea.Msg {
		return statusTickMsg{}
	})
}
