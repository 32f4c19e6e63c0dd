package stats

import (
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/swipemail/internal/keys"
	"github.com/nhle/swipemail/internal/model"
)

func TestProgressLine(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 80, 30)

	assert.Contains(t, m.ProgressLine(60), "0% Complete")

	m.SetStats(model.Stats{ProcessedToday: 2, Archived: 1, ForLater: 1})
	m.SetRemaining(3)
	assert.Contains(t, m.ProgressLine(60), "40% Complete")

	m.SetRemaining(0)
	assert.Contains(t, m.ProgressLine(60), "100% Complete")
}

func TestGrid(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 80, 30)
	m.SetStats(model.Stats{ProcessedToday: 7, ForLater: 3, Archived: 4})

	out := m.Grid()
	assert.Contains(t, out, "Processed Today")
	assert.Contains(t, out, "For Later")
	assert.Contains(t, out, "Archived")
	assert.Contains(t, out, "7")
}

func TestLoadedAndFeed(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 100, 40)
	m.now = func() time.Time { return time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC) }

	m, _ = m.Update(LoadedMsg{
		Stats: model.Stats{ProcessedToday: 1, Archived: 1},
		Activities: []model.Activity{{
			Action: model.ActionArchived, Subject: "Q4 Budget Review", Sender: "Sarah Chen",
			CreatedAt: time.Date(2024, 3, 15, 11, 55, 0, 0, time.UTC),
		}},
	})
	assert.Equal(t, 1, m.Stats().Archived)

	out := m.View()
	assert.Contains(t, out, "Q4 Budget Review")
	assert.Contains(t, out, "Just now")

	m, _ = m.Update(LoadedMsg{Err: errors.New("database is locked")})
	assert.Contains(t, m.View(), "database is locked")
	assert.Equal(t, 1, m.Stats().Archived, "a failed load keeps the last counters")
}

func TestBackKeys(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 80, 30)

	for _, k := range []tea.KeyMsg{
		{Type: tea.KeyEsc},
		{Type: tea.KeyRunes, Runes: []rune{'s'}},
	} {
		_, cmd := m.Update(k)
		require.NotNil(t, cmd)
		assert.IsType(t, BackMsg{}, cmd())
	}
}
