package app

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/swipemail/internal/credential"
	"github.com/nhle/swipemail/internal/keys"
	"github.com/nhle/swipemail/internal/model"
	"github.com/nhle/swipemail/internal/stack"
	"github.com/nhle/swipemail/internal/store"
	appsync "github.com/nhle/swipemail/internal/sync"
	"github.com/nhle/swipemail/internal/ui"
	"github.com/nhle/swipemail/internal/ui/cards"
	"github.com/nhle/swipemail/internal/ui/command"
	"github.com/nhle/swipemail/internal/ui/detail"
	helpview "github.com/nhle/swipemail/internal/ui/help"
	"github.com/nhle/swipemail/internal/ui/setup"
	statsview "github.com/nhle/swipemail/internal/ui/stats"
)

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewStack ViewState = iota
	ViewDetail
	ViewStats
	ViewHelp
	ViewCommand
	ViewSetup
)

// Options configures the root model.
type Options struct {
	Backend Backend

	// Store enables background mailbox polling. It is nil when the UI
	// talks to a remote server.
	Store store.Store

	Config     *model.AppConfig
	ConfigPath string
	Logger     *slog.Logger

	// Remote labels the server address in the header when set.
	Remote string

	SourceFactory SourceFactory
}

// Model is the root Bubble Tea model that manages view routing, layout,
// the card stack, and background mailbox polling.
type Model struct {
	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	backend      Backend
	store        store.Store
	cfg          *model.AppConfig
	configPath   string
	logger       *slog.Logger
	remote       string
	keys         *keys.KeyMap
	stack        *stack.Controller
	cards        cards.Model
	detail       detail.Model
	statsView    statsview.Model
	helpView     helpview.Model
	commandView  command.Model
	setupView    setup.Model
	poller       *appsync.Poller

	sourceFactory SourceFactory
	setSecret     func(key, value string) error
	now           func() time.Time

	ready            bool
	loaded           bool
	notice           string
	authErrorMessage string
}

// New creates a new root application model.
func New(opts Options) Model {
	cfg := opts.Config
	if cfg == nil {
		cfg = model.DefaultAppConfig()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	factory := opts.SourceFactory
	if factory == nil {
		factory = defaultSourceFactory
	}

	k := keys.DefaultKeyMap()
	m := Model{
		currentView:   ViewStack,
		backend:       opts.Backend,
		store:         opts.Store,
		cfg:           cfg,
		configPath:    opts.ConfigPath,
		logger:        logger,
		remote:        opts.Remote,
		keys:          k,
		stack:         stack.New(nil, cfg.Display.VisibleCards, cfg.Gesture),
		cards:         cards.New(80, 24),
		detail:        detail.New(k, 80, 24),
		statsView:     statsview.New(k, 80, 24),
		helpView:      helpview.New(k, cfg.Gesture, 80, 24),
		commandView:   command.New(80, 24),
		setupView:     setup.New(cfg.Mail, 80, 24),
		sourceFactory: factory,
		setSecret:     credential.Set,
		now:           time.Now,
	}
	if opts.Store != nil {
		m.poller = appsync.New(opts.Store, logger)
	}
	return m
}

// Init loads the inbox and counters and registers the mailbox with the
// poller.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.loadItems(),
		m.loadStats(),
		m.registerSources(),
	)
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		w := m.layout.ContentWidth()
		h := m.layout.ContentHeight()
		m.cards.SetSize(w, h)
		m.detail.SetSize(w, h)
		m.statsView.SetSize(w, h)
		m.helpView.SetSize(w, h)
		m.commandView.SetSize(w, h)
		m.setupView.SetSize(w, h)
		// Forward to active view so the huh form can calculate its layout.
		return m.updateActiveView(msg)

	case sourcesRegisteredMsg:
		if msg.count == 0 {
			// Local mode without a mailbox: offer first-run setup.
			if m.poller != nil && !m.cfg.Mail.Configured() {
				return m, m.openSetup()
			}
			return m, nil
		}
		return m, m.poller.Start()

	case itemsLoadedMsg:
		m.loaded = true
		if msg.err != nil {
			m.logger.Error("loading inbox failed", slog.Any("error", msg.err))
			m.notice = "Could not load inbox: " + msg.err.Error()
			return m, nil
		}
		m.stack.Append(msg.items)
		m.statsView.SetRemaining(m.stack.Remaining())
		return m, nil

	case statsview.LoadedMsg:
		var cmd tea.Cmd
		m.statsView, cmd = m.statsView.Update(msg)
		m.statsView.SetRemaining(m.stack.Remaining())
		return m, cmd

	case mutationDoneMsg:
		return m.settle(msg)

	case appsync.SyncResultMsg:
		if msg.AuthError != nil {
			m.authErrorMessage = msg.AuthError.Message
		} else if msg.Error == nil {
			m.authErrorMessage = ""
		}
		if added := m.stack.Append(msg.Items); added > 0 {
			m.notice = fmt.Sprintf("%d new message%s", added, plural(added))
			m.statsView.SetRemaining(m.stack.Remaining())
		}
		if m.poller == nil {
			return m, nil
		}
		return m, m.poller.WaitForNextResult()

	case setupSavedMsg:
		if msg.err != nil {
			m.logger.Error("saving mailbox settings failed", slog.Any("error", msg.err))
			m.notice = "Setup failed: " + msg.err.Error()
			return m, nil
		}
		m.cfg.Mail = msg.mail
		m.notice = "Mailbox connected: " + msg.mail.Username
		return m, m.restartPolling()

	case setup.SubmittedMsg:
		m.currentView = ViewStack
		return m, m.saveSetup(msg)

	case setup.CancelMsg:
		m.currentView = ViewStack
		return m, nil

	case detail.BackMsg, statsview.BackMsg:
		m.currentView = ViewStack
		return m, nil

	case command.CommandMsg:
		m.currentView = m.previousView
		return m.executeCommand(string(msg))

	case tea.MouseMsg:
		if m.currentView == ViewStack {
			return m.handleMouse(msg)
		}

	case tea.KeyMsg:
		// Global keys that work regardless of current view
		switch {
		case msg.String() == "ctrl+c":
			m.stopPolling()
			return m, tea.Quit

		case m.currentView == ViewSetup:
			// The form owns every other key.

		case key.Matches(msg, m.keys.Help):
			if m.currentView == ViewHelp {
				m.currentView = m.previousView
				return m, nil
			}
			m.previousView = m.currentView
			m.currentView = ViewHelp
			return m, nil

		case key.Matches(msg, m.keys.Command):
			if m.currentView == ViewCommand {
				m.currentView = m.previousView
				return m, nil
			}
			m.previousView = m.currentView
			m.currentView = ViewCommand
			return m, m.commandView.Focus()

		case m.currentView == ViewCommand:
			if key.Matches(msg, m.keys.Back) {
				m.currentView = m.previousView
				return m, nil
			}

		case m.currentView == ViewHelp:
			if key.Matches(msg, m.keys.Back) {
				m.currentView = m.previousView
			}
			return m, nil

		case m.currentView == ViewStack:
			return m.handleStackKeys(msg)
		}
	}

	// Delegate to active sub-view
	return m.updateActiveView(msg)
}

// handleStackKeys handles keys on the card stack.
func (m Model) handleStackKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.stopPolling()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Archive):
		mut, ok := m.stack.HandleKey("left")
		return m.dispatch(mut, ok)

	case key.Matches(msg, m.keys.Later):
		mut, ok := m.stack.HandleKey("right")
		return m.dispatch(mut, ok)

	case key.Matches(msg, m.keys.Undo):
		mut, ok := m.stack.Undo()
		if !ok {
			m.notice = "Nothing to undo"
			return m, nil
		}
		return m.dispatch(mut, true)

	case key.Matches(msg, m.keys.Select):
		item, ok := m.stack.CurrentItem()
		if !ok {
			return m, nil
		}
		m.detail.SetItem(item)
		m.previousView = m.currentView
		m.currentView = ViewDetail
		return m, nil

	case key.Matches(msg, m.keys.Refresh):
		return m, m.refresh()

	case key.Matches(msg, m.keys.Stats):
		m.previousView = m.currentView
		m.currentView = ViewStats
		return m, m.loadStats()

	case key.Matches(msg, m.keys.Setup):
		if m.poller == nil {
			m.notice = "Mailbox setup is managed by the server"
			return m, nil
		}
		return m, m.openSetup()

	case key.Matches(msg, m.keys.Back):
		m.notice = ""
	}
	return m, nil
}

// handleMouse drives the gesture tracker from left-button drags. Terminal
// columns are scaled into gesture units.
func (m Model) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	x := float64(msg.X) * cards.UnitsPerCell
	at := m.now()

	switch msg.Action {
	case tea.MouseActionPress:
		if msg.Button == tea.MouseButtonLeft {
			m.stack.PointerDown(x, at)
		}
	case tea.MouseActionMotion:
		m.stack.PointerMove(x, at)
	case tea.MouseActionRelease:
		mut, ok := m.stack.PointerUp(x, at)
		return m.dispatch(mut, ok)
	}
	return m, nil
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewDetail:
		m.detail, cmd = m.detail.Update(msg)
	case ViewStats:
		m.statsView, cmd = m.statsView.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	case ViewCommand:
		m.commandView, cmd = m.commandView.Update(msg)
	case ViewSetup:
		m.setupView, cmd = m.setupView.Update(msg)
	}

	return m, cmd
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	title := "SwipeMail"
	if n := m.stack.Remaining(); n > 0 {
		title = fmt.Sprintf("SwipeMail [%d left]", n)
	}
	header := m.layout.RenderHeader(title, m.syncStatus())
	content := m.renderContent()

	var statusBar string
	switch {
	case m.authErrorMessage != "" && m.currentView == ViewStack:
		statusBar = m.layout.RenderNotice(m.authErrorMessage)
	case m.notice != "" && m.currentView == ViewStack:
		statusBar = m.layout.RenderNotice(m.notice)
	default:
		statusBar = m.layout.RenderStatusBar(m.keyHints())
	}

	return m.layout.RenderWithFrame(header, content, statusBar)
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewStack:
		if !m.loaded {
			return "Loading inbox..."
		}
		return m.cards.View(m.stack.Visible(), m.stack.Frame())
	case ViewDetail:
		return m.detail.View()
	case ViewStats:
		return m.statsView.View()
	case ViewHelp:
		return m.helpView.View()
	case ViewCommand:
		return m.commandView.View()
	case ViewSetup:
		return m.setupView.View()
	default:
		return ""
	}
}

// syncStatus returns a short string describing the combined sync state.
func (m Model) syncStatus() string {
	if m.remote != "" {
		return "remote " + m.remote
	}
	if m.poller == nil {
		return "offline"
	}
	statuses := m.poller.GetStatuses()
	if len(statuses) == 0 {
		return "no mailbox"
	}

	running := 0
	var staleNames []string
	for _, s := range statuses {
		switch s.State {
		case appsync.SyncRunning:
			running++
		case appsync.SyncError:
			staleNames = append(staleNames, s.Name)
		}
	}

	if running > 0 {
		return "syncing"
	}
	if len(staleNames) > 0 {
		return "⚠ unreachable: " + strings.Join(staleNames, ", ")
	}
	return "idle"
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	switch m.currentView {
	case ViewHelp:
		return "? close help | esc back"
	case ViewCommand:
		return ": close command | enter execute | tab complete | esc back"
	case ViewDetail:
		return "esc back | j/k scroll"
	case ViewStats:
		return "esc back"
	case ViewSetup:
		return "enter next | esc cancel"
	default:
		if m.stack.Empty() {
			return "r refresh | s stats | ? help | q quit"
		}
		return "← archive | → later | u undo | enter open | s stats | ? help | q quit"
	}
}

// openSetup switches to the mailbox form.
func (m *Model) openSetup() tea.Cmd {
	m.previousView = m.currentView
	m.currentView = ViewSetup
	m.setupView = setup.New(m.cfg.Mail, m.layout.ContentWidth(), m.layout.ContentHeight())
	return m.setupView.Init()
}

// executeCommand handles a command string from the command palette.
// Triage commands take the same path as their keys.
func (m Model) executeCommand(cmd string) (tea.Model, tea.Cmd) {
	switch cmd {
	case "archive":
		return m.dispatch(m.stack.HandleKey("left"))
	case "later":
		return m.dispatch(m.stack.HandleKey("right"))
	case "undo":
		mut, ok := m.stack.Undo()
		if !ok {
			m.notice = "Nothing to undo"
			return m, nil
		}
		return m.dispatch(mut, true)
	case "refresh", "sync":
		return m, m.refresh()
	case "stats":
		m.currentView = ViewStats
		return m, m.loadStats()
	case "setup", "configure", "config":
		if m.poller == nil {
			m.notice = "Mailbox setup is managed by the server"
			return m, nil
		}
		return m, m.openSetup()
	case "help":
		m.currentView = ViewHelp
		return m, nil
	case "quit", "q":
		m.stopPolling()
		return m, tea.Quit
	default:
		m.notice = fmt.Sprintf("Unknown command %q", cmd)
		return m, nil
	}
}

func (m *Model) stopPolling() {
	if m.poller != nil {
		m.poller.Stop()
	}
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
