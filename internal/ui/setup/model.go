package setup

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/managemyhealth/internal/model"
	"github.com/nhle/managemyhealth/internal/onboarding"
	"github.com/nhle/managemyhealth/internal/theme"
)

// Mode represents the current state of the setup view.
type Mode int

const (
	ModeForm       Mode = iota // Collecting email and password
	ModeValidating             // Logging in to check the credentials
	ModeDone                   // Finished, successfully or aborted
)

// DoneMsg signals the setup view finished with a saved account.
type DoneMsg struct {
	// Entry is the new account; nil when an existing one was reconfigured.
	Entry *model.Entry

	// EntryID is set when an existing account was reconfigured.
	EntryID string
}

// CancelMsg signals the user aborted the form.
type CancelMsg struct{}

// submitResultMsg carries the outcome of an onboarding submission.
type submitResultMsg struct {
	entry    *model.Entry
	formErrs onboarding.FormErrors
	err      error
}

// Model is the Bubble Tea model for adding or reconfiguring an account.
type Model struct {
	mode Mode
	flow *onboarding.Flow

	// reauthEntryID selects reconfiguration of an existing entry.
	reauthEntryID string

	form         *huh.Form
	formEmail    string
	formPassword string

	spinner  spinner.Model
	errorMsg string

	result *DoneMsg

	width, height int
}

// New creates a setup view that adds a new account.
func New(flow *onboarding.Flow, width, height int) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		flow:    flow,
		spinner: sp,
		width:   width,
		height:  height,
	}
}

// ForEntry creates a setup view that replaces the password of an existing
// account. The email is fixed.
func ForEntry(flow *onboarding.Flow, entry model.Entry, width, height int) Model {
	m := New(flow, width, height)
	m.reauthEntryID = entry.ID
	m.formEmail = entry.Email
	return m
}

// Init builds the form and focuses its first field.
func (m *Model) Init() tea.Cmd {
	m.mode = ModeForm
	m.formPassword = ""
	m.form = m.buildForm()
	return m.form.Init()
}

// Result returns the outcome once the view is done; nil when aborted.
func (m Model) Result() *DoneMsg {
	return m.result
}

// Done reports whether the view has finished.
func (m Model) Done() bool {
	return m.mode == ModeDone
}

func (m *Model) buildForm() *huh.Form {
	password := huh.NewInput().
		Title("Password").
		EchoMode(huh.EchoModePassword).
		Value(&m.formPassword).
		Validate(validateRequired("Password"))

	if m.reauthEntryID != "" {
		return huh.NewForm(
			huh.NewGroup(
				password.Description("The new password for " + m.formEmail),
			),
		).WithWidth(m.formWidth())
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Email").
				Description("The email you sign in to ManageMyHealth with").
				Placeholder("you@example.com").
				Value(&m.formEmail).
				Validate(validateEmail),
			password,
		),
	).WithWidth(m.formWidth())
}

// Update handles messages and dispatches based on current mode.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.form != nil {
			m.form = m.form.WithWidth(m.formWidth())
		}
		return m, nil

	case submitResultMsg:
		return m.handleResult(msg)

	case spinner.TickMsg:
		if m.mode == ModeValidating {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case tea.KeyMsg:
		if m.mode == ModeValidating {
			// Login is in flight; only allow bailing out.
			if msg.String() == "ctrl+c" {
				m.mode = ModeDone
				return m, func() tea.Msg { return CancelMsg{} }
			}
			return m, nil
		}
	}

	return m.updateForm(msg)
}

func (m Model) updateForm(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil || m.mode != ModeForm {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		m.mode = ModeValidating
		m.errorMsg = ""
		return m, tea.Batch(m.spinner.Tick, m.submit())
	case huh.StateAborted:
		m.mode = ModeDone
		return m, func() tea.Msg { return CancelMsg{} }
	}

	return m, cmd
}

// submit runs the onboarding flow off the UI goroutine.
func (m Model) submit() tea.Cmd {
	flow := m.flow
	email, password := m.formEmail, m.formPassword
	entryID := m.reauthEntryID

	return func() tea.Msg {
		ctx := context.Background()
		if entryID != "" {
			formErrs, err := flow.Reauthenticate(ctx, entryID, password)
			return submitResultMsg{formErrs: formErrs, err: err}
		}
		entry, formErrs, err := flow.Submit(ctx, email, password)
		return submitResultMsg{entry: entry, formErrs: formErrs, err: err}
	}
}

func (m Model) handleResult(msg submitResultMsg) (Model, tea.Cmd) {
	switch {
	case errors.Is(msg.err, onboarding.ErrAlreadyConfigured):
		m.errorMsg = fmt.Sprintf("%s is already configured.", m.formEmail)
	case msg.err != nil:
		m.errorMsg = fmt.Sprintf("Error: %v", msg.err)
	case len(msg.formErrs) > 0:
		m.errorMsg = onboarding.Message(msg.formErrs["base"])
	default:
		m.mode = ModeDone
		m.result = &DoneMsg{Entry: msg.entry, EntryID: m.reauthEntryID}
		done := *m.result
		return m, func() tea.Msg { return done }
	}

	// Show the form again with the error above it.
	cmd := m.Init()
	return m, cmd
}

// View renders the current mode.
func (m Model) View() string {
	title := "Add ManageMyHealth account"
	if m.reauthEntryID != "" {
		title = "Reconfigure " + m.formEmail
	}

	var body string
	switch m.mode {
	case ModeValidating:
		body = fmt.Sprintf("%s Signing in to ManageMyHealth...", m.spinner.View())
	case ModeDone:
		body = theme.DimmedStyle.Render("Done.")
	default:
		if m.form != nil {
			body = m.form.View()
		}
	}

	parts := []string{theme.PanelTitleStyle.Render(title), ""}
	if m.errorMsg != "" {
		parts = append(parts, theme.ErrorStyle.Render(m.errorMsg), "")
	}
	parts = append(parts, body)

	return theme.PanelStyle.
		Width(m.formWidth() + 4).
		Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

func (m Model) formWidth() int {
	w := m.width - 8
	if w > 72 {
		w = 72
	}
	if w < 30 {
		w = 30
	}
	return w
}

func validateRequired(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}

func validateEmail(s string) error {
	if err := validateRequired("Email")(s); err != nil {
		return err
	}
	if _, err := mail.ParseAddress(strings.TrimSpace(s)); err != nil {
		return errors.New("enter a valid email address")
	}
	return nil
}

// Program wraps the setup view for standalone use by `mmh setup`.
type Program struct {
	Model
}

// NewProgram returns a tea.Model that quits once setup finishes.
func NewProgram(m Model) *Program {
	return &Program{Model: m}
}

func (p *Program) Init() tea.Cmd {
	return p.Model.Init()
}

func (p *Program) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg.(type) {
	case DoneMsg, CancelMsg:
		return p, tea.Quit
	}
	var cmd tea.Cmd
	p.Model, cmd = p.Model.Update(msg)
	return p, cmd
}

func (p *Program) View() string {
	return p.Model.View()
}
