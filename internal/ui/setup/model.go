// Package setup is the first-run mailbox form.
package setup

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/swipemail/internal/model"
	"github.com/nhle/swipemail/internal/source/email"
	"github.com/nhle/swipemail/internal/theme"
)

// customProvider selects a manually entered IMAP server.
const customProvider = "custom"

// fields are the values bound to the form inputs.
type fields struct {
	provider string
	username string
	password string
	host     string
	port     string
	tls      bool
}

// SubmittedMsg carries the completed mailbox settings. The password is
// kept separate so the caller can store it in the keyring.
type SubmittedMsg struct {
	Mail     model.MailConfig
	Password string
}

// CancelMsg signals that the form was aborted.
type CancelMsg struct{}

// Model wraps the huh form for mailbox setup.
type Model struct {
	form *huh.Form
	base model.MailConfig

	// f is shared by copies of Model; the form writes through it.
	f *fields

	width  int
	height int
}

// New creates a setup form prefilled from the current mail settings.
func New(current model.MailConfig, width, height int) Model {
	m := Model{base: current, width: width, height: height}
	m.reset()
	return m
}

// Init builds a fresh form and returns its initial command.
func (m *Model) Init() tea.Cmd {
	m.reset()
	return m.form.Init()
}

func (m *Model) reset() {
	m.f = &fields{}
	m.f.provider = m.base.Provider
	if m.f.provider == "" && m.base.Host != "" {
		m.f.provider = customProvider
	}
	if m.f.provider == "" {
		m.f.provider = "gmail"
	}
	m.f.username = m.base.Username
	m.f.password = ""
	m.f.host = m.base.Host
	m.f.port = ""
	if m.base.Port > 0 {
		m.f.port = strconv.Itoa(m.base.Port)
	}
	m.f.tls = m.base.TLS || m.base.Host == ""
	m.form = m.buildForm()
}

func (m *Model) buildForm() *huh.Form {
	options := make([]huh.Option[string], 0, len(email.ProviderNames())+1)
	for _, name := range email.ProviderNames() {
		p, _ := email.LookupProvider(name)
		options = append(options, huh.NewOption(fmt.Sprintf("%s (%s)", name, p.Host), name))
	}
	options = append(options, huh.NewOption("Other IMAP server", customProvider))

	f := m.f

	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Provider").
				Description("Where your mail is hosted").
				Options(options...).
				Value(&m.f.provider),
			huh.NewInput().
				Title("Email").
				Placeholder("you@example.com").
				Value(&m.f.username).
				Validate(validateRequired("Email")),
			huh.NewInput().
				Title("Password").
				Description("Account or app password, stored in the system keyring").
				EchoMode(huh.EchoModePassword).
				Value(&m.f.password).
				Validate(validateRequired("Password")),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("IMAP Host").
				Placeholder("imap.example.com").
				Value(&m.f.host).
				Validate(validateRequired("IMAP Host")),
			huh.NewInput().
				Title("IMAP Port").
				Placeholder("993").
				Value(&m.f.port).
				Validate(validatePort),
			huh.NewConfirm().
				Title("Use TLS").
				Affirmative("Yes").
				Negative("No").
				Value(&m.f.tls),
		).WithHideFunc(func() bool { return f.provider != customProvider }),
	).WithWidth(m.formWidth())
}

// Update handles messages for the setup form.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		out := m.submitted()
		m.form = nil
		return m, func() tea.Msg { return out }
	case huh.StateAborted:
		m.form = nil
		return m, func() tea.Msg { return CancelMsg{} }
	}

	return m, cmd
}

// submitted converts the form fields into mail settings.
func (m Model) submitted() SubmittedMsg {
	mail := m.base
	mail.Username = strings.TrimSpace(m.f.username)
	if m.f.provider == customProvider {
		mail.Provider = ""
		mail.Host = strings.TrimSpace(m.f.host)
		mail.Port, _ = strconv.Atoi(strings.TrimSpace(m.f.port))
		mail.TLS = m.f.tls
	} else {
		p, _ := email.LookupProvider(m.f.provider)
		mail.Provider = m.f.provider
		mail.Host = p.Host
		mail.Port = p.Port
		mail.TLS = p.TLS
	}
	return SubmittedMsg{Mail: mail, Password: m.f.password}
}

// View renders the setup form.
func (m Model) View() string {
	title := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite).Render("Connect a mailbox")
	if m.form == nil {
		return theme.DetailPanelStyle.Width(m.width - 4).Render(title)
	}
	return theme.DetailPanelStyle.
		Width(m.width - 4).
		Render(lipgloss.JoinVertical(lipgloss.Left, title, "", m.form.View()))
}

// SetSize updates the form dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	if m.form != nil {
		m.form = m.form.WithWidth(m.formWidth())
	}
}

func (m Model) formWidth() int {
	w := m.width - 8
	if w > 70 {
		w = 70
	}
	if w < 20 {
		w = 20
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

func validatePort(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 || n > 65535 {
		return errors.New("port must be a number between 1 and 65535")
	}
	return nil
}
