package sync

import (
	"context"
	"errors"
	gosync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/nhle/swipemail/internal/logging"
	"github.com/nhle/swipemail/internal/model"
	"github.com/nhle/swipemail/internal/source"
	"github.com/nhle/swipemail/internal/store"
	"github.com/nhle/swipemail/tests/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeSource struct {
	mu    gosync.Mutex
	items []model.Item
	err   error
	calls int
	opts  source.FetchOptions
}

func (f *fakeSource) Type() source.SourceType { return source.SourceTypeEmail }

func (f *fakeSource) ValidateConnection(context.Context) (string, error) { return "ok", nil }

func (f *fakeSource) FetchItems(_ context.Context, opts source.FetchOptions) ([]model.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.opts = opts
	return f.items, f.err
}

func ref(s string) *string { return &s }

func nextResult(t *testing.T, p *Poller) SyncResultMsg {
	t.Helper()
	select {
	case msg := <-p.Results():
		return msg
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for sync result")
		return SyncResultMsg{}
	}
}

func TestPollerIngestsAndDeduplicates(t *testing.T) {
	s := testutil.NewTestStore(t)
	src := &fakeSource{items: []model.Item{
		{Sender: "A", Subject: "one", ExternalID: ref("INBOX:1")},
		{Sender: "B", Subject: "two", ExternalID: ref("INBOX:2")},
	}}

	p := New(s, logging.Discard())
	p.RegisterSource("work", src, Options{Interval: time.Hour, Limit: 20, UnseenOnly: true})
	p.Start()
	defer p.Stop()

	msg := nextResult(t, p)
	require.NoError(t, msg.Error)
	assert.Equal(t, "work", msg.Name)
	assert.Equal(t, 2, msg.Fetched)
	assert.Equal(t, 2, msg.NewCount)

	p.RefreshAll()
	msg = nextResult(t, p)
	require.NoError(t, msg.Error)
	assert.Equal(t, 0, msg.NewCount)

	n, err := s.CountItems(context.Background(), storeFilterAll())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	src.mu.Lock()
	assert.Equal(t, source.FetchOptions{Limit: 20, UnseenOnly: true}, src.opts)
	src.mu.Unlock()

	statuses := p.GetStatuses()
	require.Len(t, statuses, 1)
	assert.Equal(t, SyncIdle, statuses[0].State)
	assert.False(t, statuses[0].LastSync.IsZero())
}

func TestPollerReportsAuthErrors(t *testing.T) {
	s := testutil.NewTestStore(t)
	src := &fakeSource{err: &source.AuthError{SourceType: source.SourceTypeEmail, Message: "bad password"}}

	p := New(s, logging.Discard())
	p.RegisterSource("work", src, Options{})
	p.Start()
	defer p.Stop()

	msg := nextResult(t, p)
	require.Error(t, msg.Error)
	require.NotNil(t, msg.AuthError)
	assert.Contains(t, msg.AuthError.Message, "swipemail auth")
	assert.Equal(t, SyncError, p.GetStatuses()[0].State)
}

func TestPollerReportsFetchErrors(t *testing.T) {
	s := testutil.NewTestStore(t)
	src := &fakeSource{err: errors.New("connection reset")}

	p := New(s, logging.Discard())
	p.RegisterSource("work", src, Options{})
	p.Start()
	defer p.Stop()

	msg := nextResult(t, p)
	require.Error(t, msg.Error)
	assert.Nil(t, msg.AuthError)
}

func TestPollerStartStopIdempotent(t *testing.T) {
	s := testutil.NewTestStore(t)
	p := New(s, nil)
	p.RegisterSource("work", &fakeSource{}, Options{Interval: time.Hour})

	require.NotNil(t, p.Start())
	assert.Nil(t, p.Start())
	nextResult(t, p)

	p.Stop()
	p.Stop()
}

func TestWaitForNextResultDeliversMsg(t *testing.T) {
	s := testutil.NewTestStore(t)
	p := New(s, logging.Discard())
	p.RegisterSource("work", &fakeSource{}, Options{Interval: time.Hour})

	cmd := p.Start()
	defer p.Stop()

	msg := cmd()
	res, ok := msg.(SyncResultMsg)
	require.True(t, ok)
	assert.Equal(t, "work", res.Name)
	assert.NotNil(t, p.WaitForNextResult())
}

func TestStopReleasesPendingWaiter(t *testing.T) {
	s := testutil.NewTestStore(t)
	p := New(s, logging.Discard())
	p.RegisterSource("work", &fakeSource{}, Options{Interval: time.Hour})

	p.Start()
	nextResult(t, p)

	done := make(chan interface{})
	go func() { done <- p.WaitForNextResult()() }()

	p.Stop()
	select {
	case msg := <-done:
		assert.Nil(t, msg)
	case <-time.After(5 * time.Second):
		t.Fatal("waiter still blocked after Stop")
	}
	assert.Nil(t, p.Start(), "a stopped poller stays stopped")
}

func TestResultsAreNotDroppedWhenBufferIsFull(t *testing.T) {
	p := New(testutil.NewTestStore(t), logging.Discard())
	stop := make(chan struct{})
	defer close(stop)

	const n = 40
	go func() {
		for i := 0; i < n; i++ {
			p.sendResult(stop, SyncResultMsg{Name: "work", NewCount: i})
		}
	}()

	for i := 0; i < n; i++ {
		msg := nextResult(t, p)
		assert.Equal(t, i, msg.NewCount)
	}
}

func storeFilterAll() store.ItemFilter { return store.ItemFilter{} }
