package stack

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/swipemail/internal/dispatch"
	"github.com/nhle/swipemail/internal/gesture"
	"github.com/nhle/swipemail/internal/logging"
	"github.com/nhle/swipemail/internal/model"
	"github.com/nhle/swipemail/internal/store"
	"github.com/nhle/swipemail/tests/testutil"
)

func items(ids ...string) []model.Item {
	out := make([]model.Item, len(ids))
	for i, id := range ids {
		out[i] = model.Item{ID: id, Sender: "S", Subject: "subject " + id, Status: model.StatusInbox}
	}
	return out
}

func ids(its []model.Item) []string {
	out := make([]string, len(its))
	for i, it := range its {
		out[i] = it.ID
	}
	return out
}

func current(t *testing.T, c *Controller) string {
	t.Helper()
	it, ok := c.CurrentItem()
	require.True(t, ok, "expected a current item")
	return it.ID
}

func TestVisibleWindow(t *testing.T) {
	c := New(items("a", "b", "c", "d"), 3, gesture.DefaultConfig())
	assert.Equal(t, []string{"a", "b", "c"}, ids(c.Visible()))
	assert.Equal(t, 4, c.Remaining())

	c.HandleKey("left")
	c.HandleKey("left")
	assert.Equal(t, []string{"c", "d"}, ids(c.Visible()))

	c.HandleKey("right")
	c.HandleKey("right")
	assert.True(t, c.Empty())
	assert.Empty(t, c.Visible())
	_, ok := c.CurrentItem()
	assert.False(t, ok)

	_, ok = c.HandleKey("left")
	assert.False(t, ok, "commit on an empty stack")
	assert.Equal(t, 4, c.Front())
}

func TestDefaultWindow(t *testing.T) {
	c := New(items("a", "b", "c", "d", "e"), 0, gesture.DefaultConfig())
	assert.Len(t, c.Visible(), DefaultWindow)
}

func TestCommitMapsDirection(t *testing.T) {
	c := New(items("a", "b"), 3, gesture.DefaultConfig())

	m, ok := c.Commit(gesture.Left)
	require.True(t, ok)
	assert.Equal(t, KindCommit, m.Kind)
	assert.Equal(t, "a", m.Item.ID)
	assert.Equal(t, model.StatusArchived, m.Status)

	m, ok = c.Commit(gesture.Right)
	require.True(t, ok)
	assert.Equal(t, "b", m.Item.ID)
	assert.Equal(t, model.StatusLater, m.Status)
	assert.Greater(t, m.Seq, uint64(1))

	_, ok = c.Commit(gesture.None)
	assert.False(t, ok)
}

func TestHandleKeyIgnoresOtherKeys(t *testing.T) {
	c := New(items("a"), 3, gesture.DefaultConfig())
	_, ok := c.HandleKey("up")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Front())
}

func TestFrontAfterNCommitsAndUndo(t *testing.T) {
	for n := 1; n <= 5; n++ {
		t.Run(fmt.Sprint(n), func(t *testing.T) {
			c := New(items("a", "b", "c", "d", "e", "f"), 3, gesture.DefaultConfig())
			for i := 0; i < n; i++ {
				_, ok := c.HandleKey("right")
				require.True(t, ok)
			}
			assert.Equal(t, n, c.Front())

			_, ok := c.Undo()
			require.True(t, ok)
			assert.Equal(t, n-1, c.Front())
		})
	}
}

func TestSecondUndoIsNoop(t *testing.T) {
	c := New(items("a", "b"), 3, gesture.DefaultConfig())

	_, ok := c.Undo()
	assert.False(t, ok, "nothing to undo yet")

	c.HandleKey("left")
	m, ok := c.Undo()
	require.True(t, ok)
	assert.Equal(t, KindUndo, m.Kind)
	assert.Equal(t, "a", m.Item.ID)
	assert.Equal(t, model.StatusArchived, m.Status)

	_, ok = c.Undo()
	assert.False(t, ok)
	assert.Equal(t, 0, c.Front())
	assert.False(t, c.CanUndo())
}

func TestUndoOnlyReachesLastCommit(t *testing.T) {
	c := New(items("a", "b", "c"), 3, gesture.DefaultConfig())
	c.HandleKey("left")
	c.HandleKey("right")

	m, ok := c.Undo()
	require.True(t, ok)
	assert.Equal(t, "b", m.Item.ID)
	assert.Equal(t, "b", current(t, c))
}

func TestPointerCommit(t *testing.T) {
	c := New(items("a", "b"), 3, gesture.DefaultConfig())
	t0 := time.Unix(0, 0)

	_, ok := c.PointerDown(200, t0)
	require.True(t, ok)
	f, ok := c.PointerMove(120, t0.Add(400*time.Millisecond))
	require.True(t, ok)
	assert.Equal(t, gesture.Left, f.Direction)

	m, ok := c.PointerUp(50, t0.Add(800*time.Millisecond))
	require.True(t, ok)
	assert.Equal(t, "a", m.Item.ID)
	assert.Equal(t, model.StatusArchived, m.Status)
	assert.Equal(t, gesture.Frame{}, c.Frame())
	assert.Equal(t, "b", current(t, c))
}

func TestPointerCancelResetsToNeutral(t *testing.T) {
	c := New(items("a"), 3, gesture.DefaultConfig())
	t0 := time.Unix(0, 0)

	c.PointerDown(100, t0)
	c.PointerMove(160, t0.Add(500*time.Millisecond))
	_, ok := c.PointerUp(170, t0.Add(1000*time.Millisecond))
	assert.False(t, ok)

	assert.Equal(t, gesture.Frame{}, c.Frame())
	assert.Equal(t, 0, c.Front())
	assert.False(t, c.CanUndo())
}

func TestPointerFlickCommits(t *testing.T) {
	c := New(items("a"), 3, gesture.DefaultConfig())
	t0 := time.Unix(0, 0)

	c.PointerDown(0, t0)
	c.PointerMove(30, t0.Add(20*time.Millisecond))
	m, ok := c.PointerUp(40, t0.Add(31*time.Millisecond))
	require.True(t, ok)
	assert.Equal(t, model.StatusLater, m.Status)
}

func TestPointerOnEmptyStack(t *testing.T) {
	c := New(nil, 3, gesture.DefaultConfig())
	_, ok := c.PointerDown(0, time.Now())
	assert.False(t, ok)
	_, ok = c.PointerUp(500, time.Now())
	assert.False(t, ok)
}

func TestSettleFailedCommitRollsBack(t *testing.T) {
	c := New(items("a", "b", "c"), 3, gesture.DefaultConfig())
	m, _ := c.HandleKey("left")

	c.Settle(m, errors.New("connection refused"))

	assert.Equal(t, "a", current(t, c))
	assert.Equal(t, 0, c.Front())
	assert.False(t, c.CanUndo())
}

func TestSettleFailedCommitBehindNewerCommit(t *testing.T) {
	c := New(items("a", "b", "c"), 3, gesture.DefaultConfig())
	ma, _ := c.HandleKey("left")
	c.HandleKey("right")

	c.Settle(ma, errors.New("timeout"))

	// a returns to the top; b stays committed and undoable.
	assert.Equal(t, "a", current(t, c))
	assert.Equal(t, 1, c.Front())
	assert.Equal(t, []string{"a", "c"}, ids(c.Visible()))
	m, ok := c.Undo()
	require.True(t, ok)
	assert.Equal(t, "b", m.Item.ID)
}

func TestSettleFailedUndoReadvances(t *testing.T) {
	c := New(items("a", "b"), 3, gesture.DefaultConfig())
	c.HandleKey("left")
	m, _ := c.Undo()

	c.Settle(m, errors.New("timeout"))

	assert.Equal(t, "b", current(t, c))
	assert.Equal(t, 1, c.Front())
	require.True(t, c.CanUndo())
	again, ok := c.Undo()
	require.True(t, ok)
	assert.Equal(t, model.StatusArchived, again.Status)
}

func TestSettleIgnoresSupersededFailure(t *testing.T) {
	c := New(items("a", "b"), 3, gesture.DefaultConfig())
	first, _ := c.HandleKey("left")
	undo, _ := c.Undo()
	again, _ := c.HandleKey("right")
	require.Greater(t, again.Seq, first.Seq)

	c.Settle(undo, nil)
	c.Settle(first, errors.New("timeout"))

	assert.Equal(t, "b", current(t, c))
	assert.Equal(t, 1, c.Front())
	require.True(t, c.CanUndo())

	c.Settle(again, errors.New("timeout"))
	assert.Equal(t, "a", current(t, c))
	assert.Equal(t, 0, c.Front())
}

func TestSettleNotFoundDropsItem(t *testing.T) {
	c := New(items("a", "b"), 3, gesture.DefaultConfig())
	m, _ := c.HandleKey("left")

	c.Settle(m, fmt.Errorf("patch: %w", store.ErrNotFound))

	assert.Equal(t, 0, c.Front())
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, "b", current(t, c))
	assert.False(t, c.CanUndo())
}

func TestSettleSuccessIsNoop(t *testing.T) {
	c := New(items("a", "b"), 3, gesture.DefaultConfig())
	m, _ := c.HandleKey("left")

	c.Settle(m, nil)
	c.Settle(m, dispatch.ErrAlreadyApplied)

	assert.Equal(t, 1, c.Front())
	assert.True(t, c.CanUndo())
}

func TestAppendSkipsDuplicates(t *testing.T) {
	c := New(items("a", "b"), 3, gesture.DefaultConfig())
	c.HandleKey("left")

	added := c.Append(items("a", "b", "c"))
	assert.Equal(t, 1, added)
	assert.Equal(t, 3, c.Len())
	assert.Equal(t, []string{"b", "c"}, ids(c.Visible()))
}

// Archive the top card, undo, and check both the queue and the backend.
func TestScenarioArchiveThenUndo(t *testing.T) {
	s := testutil.NewTestStore(t)
	d := dispatch.New(s, dispatch.WithLogger(logging.Discard()))
	ctx := context.Background()

	seeded := []model.Item{
		*testutil.SeedItem(t, s, "A", 30),
		*testutil.SeedItem(t, s, "B", 20),
		*testutil.SeedItem(t, s, "C", 10),
	}
	c := New(seeded, 3, gesture.DefaultConfig())
	run := func(m Mutation) {
		var err error
		if m.Kind == KindUndo {
			_, err = d.Undo(ctx, m.Item.ID)
		} else {
			_, err = d.Transition(ctx, m.Item.ID, m.Status)
		}
		c.Settle(m, err)
	}

	m, ok := c.HandleKey("left")
	require.True(t, ok)
	run(m)

	it, _ := c.CurrentItem()
	assert.Equal(t, "B", it.Subject)
	got, err := s.GetItem(ctx, seeded[0].ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusArchived, got.Status)

	m, ok = c.Undo()
	require.True(t, ok)
	run(m)

	it, _ = c.CurrentItem()
	assert.Equal(t, "A", it.Subject)
	assert.Equal(t, []string{"A", "B", "C"}, subjects(c.Visible()))
	got, err = s.GetItem(ctx, seeded[0].ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusInbox, got.Status)

	stats, err := s.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.Stats{ProcessedToday: 1, Archived: 1}, stats)
}

func TestScenarioCountersPerCommit(t *testing.T) {
	s := testutil.NewTestStore(t)
	d := dispatch.New(s, dispatch.WithLogger(logging.Discard()))
	ctx := context.Background()

	var seeded []model.Item
	for i := 0; i < 4; i++ {
		seeded = append(seeded, *testutil.SeedItem(t, s, fmt.Sprint("item ", i), i))
	}
	c := New(seeded, 3, gesture.DefaultConfig())

	for i, key := range []string{"left", "right", "right", "left"} {
		before, err := s.GetStats(ctx)
		require.NoError(t, err)

		m, ok := c.HandleKey(key)
		require.True(t, ok)
		_, err = d.Transition(ctx, m.Item.ID, m.Status)
		c.Settle(m, err)
		require.NoError(t, err)

		after, err := s.GetStats(ctx)
		require.NoError(t, err)
		assert.Equal(t, before.ProcessedToday+1, after.ProcessedToday, "commit %d", i)
		assert.Equal(t, 1, (after.ForLater-before.ForLater)+(after.Archived-before.Archived), "commit %d", i)
	}
	assert.True(t, c.Empty())
}

func subjects(its []model.Item) []string {
	out := make([]string, len(its))
	for i, it := range its {
		out[i] = it.Subject
	}
	return out
}
