// Package cards renders the swipeable message stack.
package cards

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/swipemail/internal/gesture"
	"github.com/nhle/swipemail/internal/model"
	"github.com/nhle/swipemail/internal/theme"
)

// UnitsPerCell converts terminal columns into gesture units so that the
// default thresholds feel the same as on a pointer device.
const UnitsPerCell = 8.0

const (
	maxCardWidth = 72
	minCardWidth = 24
	bodyLines    = 6
)

// Model renders the visible part of the stack. It holds no queue state;
// the caller passes the cards and the front card's gesture frame.
type Model struct {
	width  int
	height int
	now    func() time.Time
}

// New creates a card stack view.
func New(width, height int) Model {
	return Model{width: width, height: height, now: time.Now}
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

// CardWidth returns the rendered width of the front card.
func (m Model) CardWidth() int {
	w := m.width - 8
	if w > maxCardWidth {
		w = maxCardWidth
	}
	if w < minCardWidth {
		w = minCardWidth
	}
	return w
}

// View renders items (front first) with the front card displaced by frame.
func (m Model) View(items []model.Item, frame gesture.Frame) string {
	if len(items) == 0 {
		return m.renderEmpty()
	}

	cardWidth := m.CardWidth()
	front := m.renderCard(items[0], frame, cardWidth)
	front = skew(front, frame.Rotation)

	shift := int(math.Round(frame.Offset / UnitsPerCell))
	margin := (m.width-cardWidth)/2 + shift
	if margin < 0 {
		margin = 0
	}

	var rows []string
	rows = append(rows, overlayLabel(frame, cardWidth, margin))
	rows = append(rows, indent(front, margin))

	// Cards behind the front peek out underneath, each a little narrower.
	for i := 1; i < len(items); i++ {
		inset := i * 2
		w := cardWidth - inset*2
		if w < 4 {
			break
		}
		edge := lipgloss.NewStyle().
			Foreground(theme.ColorSubtle).
			Render("╰" + strings.Repeat("─", w-2) + "╯")
		rows = append(rows, indent(edge, (m.width-cardWidth)/2+inset))
	}

	return lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Render(strings.Join(rows, "\n"))
}

// renderCard renders the card body of item.
func (m Model) renderCard(item model.Item, frame gesture.Frame, width int) string {
	inner := width - 6

	avatar := theme.AvatarStyle.Render(item.Initials())
	sender := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite).Render(item.Sender)
	when := theme.HelpStyle.Render(RelativeTime(item.ReceivedAt, m.now()))
	priority := theme.PriorityStyle(item.Priority).Render(item.Priority)

	left := lipgloss.JoinHorizontal(lipgloss.Center,
		avatar, " ", lipgloss.JoinVertical(lipgloss.Left, sender, when))
	gap := inner - lipgloss.Width(left) - lipgloss.Width(priority)
	if gap < 1 {
		gap = 1
	}
	header := lipgloss.JoinHorizontal(lipgloss.Top, left, strings.Repeat(" ", gap), priority)

	subjectStyle := lipgloss.NewStyle().Bold(true).Width(inner)
	if item.Unread {
		subjectStyle = subjectStyle.Foreground(theme.ColorBlue)
	}
	subject := subjectStyle.Render(item.Subject)

	body := lipgloss.NewStyle().
		Width(inner).
		MaxHeight(bodyLines).
		Foreground(theme.ColorGray).
		Render(item.Body)

	sections := []string{header, "", subject, "", body}
	if footer := footerLine(item); footer != "" {
		sections = append(sections, "", theme.HelpStyle.Render(footer))
	}

	style := theme.FrontCardStyle.Width(width - 2)
	if frame.Direction != gesture.None {
		style = style.BorderForeground(theme.DirectionColor(frame.Direction))
	}
	return style.Render(lipgloss.JoinVertical(lipgloss.Left, sections...))
}

// renderEmpty renders the inbox-zero state.
func (m Model) renderEmpty() string {
	title := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorGreen).Render("All caught up!")
	hint := theme.HelpStyle.Render("No messages left to triage. Press r to check for new mail.")
	return lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Render(lipgloss.JoinVertical(lipgloss.Center, title, "", hint))
}

// overlayLabel renders the ARCHIVE/LATER hint above the dragged card.
// Faint until the drag reaches the commit distance.
func overlayLabel(frame gesture.Frame, width, margin int) string {
	var label string
	switch frame.Direction {
	case gesture.Left:
		label = "◀ ARCHIVE"
	case gesture.Right:
		label = "LATER ▶"
	default:
		return ""
	}

	style := lipgloss.NewStyle().Foreground(theme.DirectionColor(frame.Direction))
	if frame.Opacity >= 1 {
		style = style.Bold(true)
	} else {
		style = style.Faint(true)
	}

	align := lipgloss.Left
	if frame.Direction == gesture.Right {
		align = lipgloss.Right
	}
	return indent(style.Width(width).Align(align).Render(label), margin)
}

// footerLine summarizes attachments and reply state.
func footerLine(item model.Item) string {
	var parts []string
	if item.Attachments > 0 {
		s := "s"
		if item.Attachments == 1 {
			s = ""
		}
		parts = append(parts, fmt.Sprintf("%d attachment%s", item.Attachments, s))
	}
	if item.HasReply {
		parts = append(parts, "Reply expected")
	}
	return strings.Join(parts, " • ")
}

// skew approximates a tilt by shifting each row horizontally in
// proportion to its distance from the card's vertical center.
func skew(block string, degrees float64) string {
	if math.Abs(degrees) < 1 {
		return block
	}
	lines := strings.Split(block, "\n")
	mid := float64(len(lines)-1) / 2
	slope := math.Tan(degrees * math.Pi / 180)

	shifts := make([]int, len(lines))
	lowest := 0
	for i := range lines {
		// Terminal cells are about twice as tall as they are wide.
		shifts[i] = int(math.Round((float64(i) - mid) * slope * 2))
		if shifts[i] < lowest {
			lowest = shifts[i]
		}
	}
	for i, line := range lines {
		lines[i] = strings.Repeat(" ", shifts[i]-lowest) + line
	}
	return strings.Join(lines, "\n")
}

func indent(block string, n int) string {
	if n <= 0 || block == "" {
		return block
	}
	pad := strings.Repeat(" ", n)
	lines := strings.Split(block, "\n")
	for i := range lines {
		lines[i] = pad + lines[i]
	}
	return strings.Join(lines, "\n")
}

// RelativeTime formats t relative to now the way the card header shows it.
func RelativeTime(t, now time.Time) string {
	if t.IsZero() {
		return "Unknown"
	}
	hours := int(now.Sub(t).Hours())
	switch {
	case hours < 1:
		return "Just now"
	case hours == 1:
		return "1 hour ago"
	case hours < 24:
		return fmt.Sprintf("%d hours ago", hours)
	}
	days := hours / 24
	if days == 1 {
		return "1 day ago"
	}
	return fmt.Sprintf("%d days ago", days)
}
