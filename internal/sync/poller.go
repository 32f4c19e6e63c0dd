package sync

import (
	"context"
	"fmt"
	"log/slog"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/swipemail/internal/model"
	"github.com/nhle/swipemail/internal/source"
	"github.com/nhle/swipemail/internal/store"
)

// SyncState represents the current state of a mailbox sync operation.
type SyncState int

const (
	SyncIdle SyncState = iota
	SyncRunning
	SyncError
)

func (s SyncState) String() string {
	switch s {
	case SyncRunning:
		return "running"
	case SyncError:
		return "error"
	default:
		return "idle"
	}
}

// SyncStatus holds the sync state for a single mailbox.
type SyncStatus struct {
	Name     string
	State    SyncState
	LastSync time.Time
	Error    error
}

// SyncResultMsg is a tea.Msg sent when a sync operation completes.
type SyncResultMsg struct {
	Name      string
	Fetched   int
	NewCount  int
	Items     []model.Item // newly stored items
	Error     error
	AuthError *AuthErrorMsg
}

// AuthErrorMsg is a tea.Msg sent when a mailbox rejects the credentials.
type AuthErrorMsg struct {
	Name    string
	Message string
}

// fetchTimeout is the maximum time allowed for a single fetch operation.
const fetchTimeout = 30 * time.Second

// defaultInterval applies when a mailbox is registered without one.
const defaultInterval = 120 * time.Second

// Options configures a registered mailbox.
type Options struct {
	Interval   time.Duration
	Limit      int
	UnseenOnly bool
}

// sourceEntry holds a registered mailbox and its configuration.
type sourceEntry struct {
	name    string
	src     source.Source
	opts    Options
	trigger chan struct{}
}

// Poller orchestrates background polling of registered mailboxes into the
// item store.
type Poller struct {
	store    store.Store
	logger   *slog.Logger
	sources  []*sourceEntry
	statuses map[string]*SyncStatus
	resultCh chan SyncResultMsg
	stopCh   chan struct{}
	wg       gosync.WaitGroup
	mu       gosync.Mutex
	running  bool
	closed   bool
}

// New creates a new Poller with the given store.
func New(s store.Store, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		store:    s,
		logger:   logger,
		statuses: make(map[string]*SyncStatus),
		resultCh: make(chan SyncResultMsg, 16),
	}
}

// RegisterSource adds a mailbox under name. Registering after Start has
// no effect until the next Start.
func (p *Poller) RegisterSource(name string, src source.Source, opts Options) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if opts.Interval <= 0 {
		opts.Interval = defaultInterval
	}
	p.sources = append(p.sources, &sourceEntry{
		name:    name,
		src:     src,
		opts:    opts,
		trigger: make(chan struct{}, 1),
	})
	p.statuses[name] = &SyncStatus{
		Name:  name,
		State: SyncIdle,
	}
}

// Start launches one polling goroutine per mailbox and returns a tea.Cmd
// that delivers the first SyncResultMsg.
func (p *Poller) Start() tea.Cmd {
	p.mu.Lock()
	if p.running || p.closed {
		p.mu.Unlock()
		return nil
	}
	p.running = true
	p.stopCh = make(chan struct{})
	stop := p.stopCh
	sources := append([]*sourceEntry(nil), p.sources...)
	p.mu.Unlock()

	for _, entry := range sources {
		p.wg.Add(1)
		go p.pollSource(entry, stop)
	}

	return p.waitForResult()
}

// Stop halts all polling goroutines, waits for them to exit and closes
// the result channel. A stopped poller cannot be restarted.
func (p *Poller) Stop() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	running := p.running
	if running {
		close(p.stopCh)
		p.running = false
	}
	p.mu.Unlock()

	if running {
		p.wg.Wait()
	}
	close(p.resultCh)
}

// RefreshAll triggers an immediate poll of all registered mailboxes.
func (p *Poller) RefreshAll() tea.Cmd {
	p.mu.Lock()
	sources := append([]*sourceEntry(nil), p.sources...)
	p.mu.Unlock()

	for _, entry := range sources {
		select {
		case entry.trigger <- struct{}{}:
		default:
			// A refresh is already pending.
		}
	}
	return nil
}

// Results exposes the result channel for callers outside Bubble Tea.
func (p *Poller) Results() <-chan SyncResultMsg {
	return p.resultCh
}

// GetStatuses returns the current sync status of all registered mailboxes.
func (p *Poller) GetStatuses() []SyncStatus {
	p.mu.Lock()
	defer p.mu.Unlock()

	statuses := make([]SyncStatus, 0, len(p.sources))
	for _, e := range p.sources {
		statuses = append(statuses, *p.statuses[e.name])
	}
	return statuses
}

// pollSource runs the polling loop for a single mailbox.
func (p *Poller) pollSource(entry *sourceEntry, stop <-chan struct{}) {
	defer p.wg.Done()

	ticker := time.NewTicker(entry.opts.Interval)
	defer ticker.Stop()

	// Do an initial fetch immediately
	p.fetchAndUpsert(entry, stop)

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			p.fetchAndUpsert(entry, stop)
		case <-entry.trigger:
			p.fetchAndUpsert(entry, stop)
		}
	}
}

// fetchAndUpsert performs a single fetch, stores new items, and sends a
// SyncResultMsg on the result channel.
func (p *Poller) fetchAndUpsert(entry *sourceEntry, stop <-chan struct{}) {
	p.setStatus(entry.name, SyncRunning, nil)

	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	items, err := entry.src.FetchItems(ctx, source.FetchOptions{
		Limit:      entry.opts.Limit,
		UnseenOnly: entry.opts.UnseenOnly,
	})
	if err != nil {
		p.setStatus(entry.name, SyncError, err)
		p.logger.Warn("mailbox fetch failed",
			slog.String("source", entry.name), slog.Any("error", err))

		if source.IsAuthError(err) {
			p.sendResult(stop, SyncResultMsg{
				Name:  entry.name,
				Error: err,
				AuthError: &AuthErrorMsg{
					Name: entry.name,
					Message: fmt.Sprintf(
						"%s: authentication failed. Run 'swipemail auth' to update the password.",
						entry.name,
					),
				},
			})
			return
		}

		p.sendResult(stop, SyncResultMsg{Name: entry.name, Error: err})
		return
	}

	inserted, err := p.store.UpsertItems(ctx, items)
	if err != nil {
		p.setStatus(entry.name, SyncError, err)
		p.logger.Error("storing fetched items failed",
			slog.String("source", entry.name), slog.Any("error", err))
		p.sendResult(stop, SyncResultMsg{Name: entry.name, Error: err})
		return
	}

	p.logger.Info("mailbox synced",
		slog.String("source", entry.name),
		slog.Int("fetched", len(items)),
		slog.Int("new", len(inserted)))

	p.setStatus(entry.name, SyncIdle, nil)
	p.sendResult(stop, SyncResultMsg{
		Name:     entry.name,
		Fetched:  len(items),
		NewCount: len(inserted),
		Items:    inserted,
	})
}

// setStatus updates the sync status for a mailbox.
func (p *Poller) setStatus(name string, state SyncState, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	status, ok := p.statuses[name]
	if !ok {
		return
	}

	status.State = state
	status.Error = err
	if state == SyncIdle && err == nil {
		status.LastSync = time.Now()
	}
}

// sendResult delivers msg on the result channel, waiting for the reader
// since the message carries newly stored items. It gives up once stop is
// closed.
func (p *Poller) sendResult(stop <-chan struct{}, msg SyncResultMsg) {
	select {
	case p.resultCh <- msg:
	case <-stop:
		p.logger.Debug("sync result discarded on stop", slog.String("source", msg.Name))
	}
}

// waitForResult returns a tea.Cmd that waits for the next result from
// the result channel.
func (p *Poller) waitForResult() tea.Cmd {
	return func() tea.Msg {
		result, ok := <-p.resultCh
		if !ok {
			return nil
		}
		return result
	}
}

// WaitForNextResult returns a tea.Cmd that waits for the next sync result.
// This should be called after processing a SyncResultMsg to continue
// listening for future results.
func (p *Poller) WaitForNextResult() tea.Cmd {
	return p.waitForResult()
}
