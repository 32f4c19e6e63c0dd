package detail

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/swipemail/internal/keys"
	"github.com/nhle/swipemail/internal/model"
	"github.com/nhle/swipemail/internal/theme"
)

// BackMsg signals the parent to navigate back to the card stack.
type BackMsg struct{}

// Model shows the full message of the front card.
type Model struct {
	item     *model.Item
	viewport viewport.Model
	keys     *keys.KeyMap
	width    int
	height   int
}

// New creates a new detail view model.
func New(keys *keys.KeyMap, width, height int) Model {
	vp := viewport.New(width, height-2)
	vp.Style = lipgloss.NewStyle()

	return Model{
		viewport: vp,
		keys:     keys,
		width:    width,
		height:   height,
	}
}

// SetItem shows item and scrolls to the top.
func (m *Model) SetItem(item model.Item) {
	m.item = &item
	m.viewport.SetContent(m.renderContent())
	m.viewport.GotoTop()
}

// Item returns the message on display.
func (m Model) Item() (model.Item, bool) {
	if m.item == nil {
		return model.Item{}, false
	}
	return *m.item, true
}

// Update handles messages for the detail view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && key.Matches(msg, m.keys.Back) {
		return m, func() tea.Msg {
			return BackMsg{}
		}
	}

	// Delegate to viewport for scrolling (j/k, up/down, pgup/pgdn)
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the detail view.
func (m Model) View() string {
	if m.item == nil {
		emptyStyle := lipgloss.NewStyle().
			Width(m.width).
			Height(m.height).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray)
		return emptyStyle.Render("No message selected")
	}

	return m.viewport.View()
}

// renderContent builds the full message for the viewport.
func (m Model) renderContent() string {
	item := m.item
	var sections []string

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite)
	sections = append(sections, titleStyle.Render(item.Subject))

	badgeLine := lipgloss.JoinHorizontal(
		lipgloss.Top,
		theme.StatusStyle(item.Status).Render(string(item.Status)),
		"  ",
		theme.PriorityStyle(item.Priority).Render(item.Priority),
	)
	sections = append(sections, badgeLine, "")

	metaStyle := lipgloss.NewStyle().Foreground(theme.ColorGray)
	valStyle := lipgloss.NewStyle().Foreground(theme.ColorWhite)

	from := item.Sender
	if item.SenderEmail != "" && item.SenderEmail != item.Sender {
		from = fmt.Sprintf("%s <%s>", item.Sender, item.SenderEmail)
	}
	sections = append(sections, fmt.Sprintf("%s     %s",
		metaStyle.Render("From:"), valStyle.Render(from)))

	if !item.ReceivedAt.IsZero() {
		sections = append(sections, fmt.Sprintf("%s %s",
			metaStyle.Render("Received:"),
			valStyle.Render(item.ReceivedAt.Local().Format("2006-01-02 15:04"))))
	}
	if item.Attachments > 0 {
		sections = append(sections, fmt.Sprintf("%s %s",
			metaStyle.Render("Attached:"),
			valStyle.Render(fmt.Sprint(item.Attachments))))
	}
	if item.HasReply {
		sections = append(sections, metaStyle.Render("Reply expected"))
	}

	sections = append(sections, "", lipgloss.NewStyle().Width(m.width-2).Render(item.Body))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// SetSize updates the detail view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height - 2
	if m.item != nil {
		m.viewport.SetContent(m.renderContent())
	}
}
