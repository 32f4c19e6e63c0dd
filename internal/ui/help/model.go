package help

import (
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/swipemail/internal/gesture"
	"github.com/nhle/swipemail/internal/keys"
	"github.com/nhle/swipemail/internal/theme"
	"github.com/nhle/swipemail/internal/ui/cards"
)

// Model is the help overlay view.
type Model struct {
	keys    *keys.KeyMap
	help    help.Model
	gesture gesture.Config
	width   int
	height  int
}

// New creates a new help view model. cfg is described in the mouse
// section so users know how far to drag.
func New(keys *keys.KeyMap, cfg gesture.Config, width, height int) Model {
	h := help.New()
	h.Width = width
	return Model{
		keys:    keys,
		help:    h,
		gesture: cfg,
		width:   width,
		height:  height,
	}
}

// Update handles messages for the help view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	return m, nil
}

// View renders the help overlay.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	title := titleStyle.Render("Keyboard Shortcuts")

	m.help.Width = m.width - 4
	m.help.ShowAll = true
	helpText := m.help.View(m.keys)

	mouse := lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.MarginTop(1).Render("Mouse"),
		"Drag the front card left to archive or right to save for later.",
		theme.HelpStyle.Render(m.dragHint()),
	)

	content := lipgloss.JoinVertical(lipgloss.Left, title, helpText, mouse)

	return theme.DetailPanelStyle.
		Width(m.width - 4).
		Height(m.height - 4).
		Render(content)
}

// dragHint explains the commit threshold in terminal columns.
func (m Model) dragHint() string {
	cols := int(m.gesture.CommitDistance/cards.UnitsPerCell + 0.5)
	return fmt.Sprintf("Release past %d columns, or flick quickly, to commit. Shorter drags snap back.", cols)
}

// SetSize updates the help view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.help.Width = width - 4
}
