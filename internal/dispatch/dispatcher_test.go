package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/nhle/swipemail/internal/logging"
	"github.com/nhle/swipemail/internal/model"
	"github.com/nhle/swipemail/internal/store"
	"github.com/nhle/swipemail/tests/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeMirror struct {
	mu       sync.Mutex
	archived []string
	seen     []string
	err      error
}

func (f *fakeMirror) Archive(_ context.Context, ext string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.archived = append(f.archived, ext)
	return f.err
}

func (f *fakeMirror) MarkSeen(_ context.Context, ext string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, ext)
	return f.err
}

func newTestDispatcher(t *testing.T, opts ...Option) (*Dispatcher, *store.SQLiteStore) {
	t.Helper()
	s := testutil.NewTestStore(t)
	opts = append([]Option{WithLogger(logging.Discard())}, opts...)
	return New(s, opts...), s
}

func TestTransitionCountsOnce(t *testing.T) {
	d, s := newTestDispatcher(t)
	ctx := context.Background()
	a := testutil.SeedItem(t, s, "A", 0)

	got, err := d.Transition(ctx, a.ID, model.StatusArchived)
	require.NoError(t, err)
	assert.Equal(t, model.StatusArchived, got.Status)

	got, err = d.Transition(ctx, a.ID, model.StatusArchived)
	assert.ErrorIs(t, err, ErrAlreadyApplied)
	require.NotNil(t, got)
	assert.Equal(t, model.StatusArchived, got.Status)

	stats, err := s.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.Stats{ProcessedToday: 1, Archived: 1}, stats)
}

func TestTransitionNotFoundAndInvalid(t *testing.T) {
	d, s := newTestDispatcher(t)
	ctx := context.Background()

	_, err := d.Transition(ctx, "nope", model.StatusLater)
	assert.ErrorIs(t, err, store.ErrNotFound)

	a := testutil.SeedItem(t, s, "A", 0)
	_, err = d.Transition(ctx, a.ID, model.Status("junk"))
	assert.Error(t, err)

	_, err = d.Transition(ctx, a.ID, model.Status("Archived"))
	assert.ErrorContains(t, err, `invalid status "Archived"`)

	got, err := s.GetItem(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusInbox, got.Status)

	stats, err := s.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.Stats{}, stats)
}

func TestConcurrentTransitionsSerialize(t *testing.T) {
	d, s := newTestDispatcher(t)
	ctx := context.Background()
	a := testutil.SeedItem(t, s, "A", 0)

	const workers = 8
	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := d.Transition(ctx, a.ID, model.StatusLater)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	ok, applied := 0, 0
	for err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrAlreadyApplied):
			applied++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, workers-1, applied)

	stats, err := s.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.Stats{ProcessedToday: 1, ForLater: 1}, stats)
	assert.Zero(t, d.locks.size())
}

func TestUndo(t *testing.T) {
	d, s := newTestDispatcher(t)
	ctx := context.Background()
	a := testutil.SeedItem(t, s, "A", 0)

	_, err := d.Transition(ctx, a.ID, model.StatusArchived)
	require.NoError(t, err)

	got, err := d.Undo(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusInbox, got.Status)

	// Second undo is a no-op.
	got, err = d.Undo(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusInbox, got.Status)

	stats, err := s.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.Stats{ProcessedToday: 1, Archived: 1}, stats)

	acts, err := s.ListActivities(ctx, 0)
	require.NoError(t, err)
	require.Len(t, acts, 2)
	assert.Equal(t, model.ActionUndone, acts[0].Action)

	_, err = d.Undo(ctx, "nope")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDelete(t *testing.T) {
	d, s := newTestDispatcher(t)
	ctx := context.Background()
	a := testutil.SeedItem(t, s, "A", 0)

	got, err := d.Delete(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)

	_, err = d.Delete(ctx, a.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	stats, err := s.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.Stats{ProcessedToday: 1, Archived: 1}, stats)
}

func TestMirror(t *testing.T) {
	m := &fakeMirror{}
	d, s := newTestDispatcher(t, WithMirror(m))
	ctx := context.Background()

	ext1, ext2 := "INBOX:1", "INBOX:2"
	_, err := s.UpsertItems(ctx, []model.Item{
		{ID: "a", Sender: "A", Subject: "one", ExternalID: &ext1},
		{ID: "b", Sender: "B", Subject: "two", ExternalID: &ext2},
	})
	require.NoError(t, err)
	local := testutil.SeedItem(t, s, "local", 0)

	_, err = d.Transition(ctx, "a", model.StatusArchived)
	require.NoError(t, err)
	_, err = d.Transition(ctx, "b", model.StatusLater)
	require.NoError(t, err)
	_, err = d.Undo(ctx, "b")
	require.NoError(t, err)
	_, err = d.Transition(ctx, local.ID, model.StatusArchived)
	require.NoError(t, err)

	assert.Equal(t, []string{"INBOX:1"}, m.archived)
	assert.Equal(t, []string{"INBOX:2"}, m.seen)
}

func TestMirrorFailureDoesNotSurface(t *testing.T) {
	m := &fakeMirror{err: errors.New("imap down")}
	d, s := newTestDispatcher(t, WithMirror(m))
	ctx := context.Background()

	ext := "INBOX:9"
	_, err := s.UpsertItems(ctx, []model.Item{{ID: "a", Sender: "A", Subject: "one", ExternalID: &ext}})
	require.NoError(t, err)

	got, err := d.Transition(ctx, "a", model.StatusArchived)
	require.NoError(t, err)
	assert.Equal(t, model.StatusArchived, got.Status)
}
