// Package stats renders the triage counters, the progress bar and the
// recent activity feed.
package stats

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/swipemail/internal/keys"
	"github.com/nhle/swipemail/internal/model"
	"github.com/nhle/swipemail/internal/theme"
	"github.com/nhle/swipemail/internal/ui/cards"
)

// BackMsg signals the parent to return to the card stack.
type BackMsg struct{}

// LoadedMsg carries fresh counters and activity.
type LoadedMsg struct {
	Stats      model.Stats
	Activities []model.Activity
	Err        error
}

// feedRows caps how many activity entries the panel lists.
const feedRows = 10

// Model is the stats panel.
type Model struct {
	keys       *keys.KeyMap
	stats      model.Stats
	activities []model.Activity
	remaining  int
	err        error
	width      int
	height     int
	now        func() time.Time
}

// New creates a stats panel.
func New(k *keys.KeyMap, width, height int) Model {
	return Model{keys: k, width: width, height: height, now: time.Now}
}

// Update handles messages for the stats panel.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case LoadedMsg:
		m.err = msg.Err
		if msg.Err == nil {
			m.stats = msg.Stats
			m.activities = msg.Activities
		}
	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Back) || key.Matches(msg, m.keys.Stats) {
			return m, func() tea.Msg { return BackMsg{} }
		}
	}
	return m, nil
}

// SetStats replaces the counters without touching the feed.
func (m *Model) SetStats(s model.Stats) { m.stats = s }

// Stats returns the counters currently shown.
func (m Model) Stats() model.Stats { return m.stats }

// SetRemaining sets the number of cards still in the stack.
func (m *Model) SetRemaining(n int) { m.remaining = n }

// SetSize updates the panel dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

// View renders the full panel.
func (m Model) View() string {
	title := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite).Render("Today")

	sections := []string{title, "", m.Grid(), "", m.ProgressLine(m.width - 8), ""}

	if m.err != nil {
		sections = append(sections,
			lipgloss.NewStyle().Foreground(theme.ColorRed).Render("Could not load activity: "+m.err.Error()))
	} else {
		sections = append(sections, m.feed())
	}

	return theme.DetailPanelStyle.
		Width(m.width - 4).
		Height(m.height - 4).
		Render(lipgloss.JoinVertical(lipgloss.Left, sections...))
}

// Grid renders the three counters side by side.
func (m Model) Grid() string {
	cell := func(label string, value int, color lipgloss.AdaptiveColor) string {
		return theme.BorderStyle.
			Width(18).
			Padding(0, 1).
			Render(lipgloss.JoinVertical(lipgloss.Left,
				theme.HelpStyle.Render(label),
				lipgloss.NewStyle().Bold(true).Foreground(color).Render(fmt.Sprint(value)),
			))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top,
		cell("Processed Today", m.stats.ProcessedToday, theme.ColorBlue), " ",
		cell("For Later", m.stats.ForLater, theme.ColorYellow), " ",
		cell("Archived", m.stats.Archived, theme.ColorGreen),
	)
}

// ProgressLine renders "Progress [████░░░░] 40% Complete" within width.
func (m Model) ProgressLine(width int) string {
	pct := m.stats.Progress(m.remaining)
	label := fmt.Sprintf("%d%% Complete", int(math.Round(pct)))

	barWidth := width - lipgloss.Width(label) - len("Progress ") - 3
	if barWidth < 10 {
		barWidth = 10
	}
	filled := int(math.Round(pct / 100 * float64(barWidth)))

	bar := lipgloss.NewStyle().Foreground(theme.ColorBlue).Render(strings.Repeat("█", filled)) +
		lipgloss.NewStyle().Foreground(theme.ColorSubtle).Render(strings.Repeat("░", barWidth-filled))

	return fmt.Sprintf("%s [%s] %s", theme.HelpStyle.Render("Progress"), bar, label)
}

func (m Model) feed() string {
	heading := lipgloss.NewStyle().Bold(true).Render("Recent activity")
	if len(m.activities) == 0 {
		return lipgloss.JoinVertical(lipgloss.Left, heading, theme.HelpStyle.Render("Nothing yet."))
	}

	rows := []string{heading}
	for i, a := range m.activities {
		if i == feedRows {
			break
		}
		action := theme.StatusStyle(model.Status(a.Action)).Width(10).Render(a.Action)
		when := theme.HelpStyle.Render(cards.RelativeTime(a.CreatedAt, m.now()))
		rows = append(rows, fmt.Sprintf("%s %s  %s  %s", action, a.Subject, theme.HelpStyle.Render(a.Sender), when))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}
