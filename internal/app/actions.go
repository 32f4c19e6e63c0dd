package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/swipemail/internal/credential"
	"github.com/nhle/swipemail/internal/dispatch"
	"github.com/nhle/swipemail/internal/model"
	"github.com/nhle/swipemail/internal/stack"
	"github.com/nhle/swipemail/internal/store"
	appsync "github.com/nhle/swipemail/internal/sync"
	"github.com/nhle/swipemail/internal/ui/setup"
	statsview "github.com/nhle/swipemail/internal/ui/stats"
)

// backendTimeout bounds a single backend call made from the UI.
const backendTimeout = 10 * time.Second

// itemsLoadedMsg carries the inbox read from the backend.
type itemsLoadedMsg struct {
	items []model.Item
	err   error
}

// mutationDoneMsg reports the backend outcome of an optimistic mutation.
type mutationDoneMsg struct {
	mutation stack.Mutation
	item     *model.Item
	err      error
}

// setupSavedMsg reports the outcome of saving mailbox settings.
type setupSavedMsg struct {
	mail model.MailConfig
	err  error
}

// loadItems returns a command that reads the inbox, newest first.
func (m Model) loadItems() tea.Cmd {
	b := m.backend
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), backendTimeout)
		defer cancel()

		inbox := model.StatusInbox
		items, err := b.ListItems(ctx, store.ItemFilter{Status: &inbox})
		return itemsLoadedMsg{items: items, err: err}
	}
}

// loadStats returns a command that reads the counters and activity feed.
func (m Model) loadStats() tea.Cmd {
	b := m.backend
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), backendTimeout)
		defer cancel()

		s, err := b.Stats(ctx)
		if err != nil {
			return statsview.LoadedMsg{Err: err}
		}
		acts, err := b.Activities(ctx)
		return statsview.LoadedMsg{Stats: s, Activities: acts, Err: err}
	}
}

// dispatch applies a local mutation optimistically and sends it to the
// backend.
func (m Model) dispatch(mut stack.Mutation, ok bool) (tea.Model, tea.Cmd) {
	if !ok {
		return m, nil
	}
	m.notice = describe(mut)
	m.statsView.SetRemaining(m.stack.Remaining())
	return m, m.mutationCmd(mut, true)
}

// mutationCmd runs mut against the backend.
func (m Model) mutationCmd(mut stack.Mutation, ok bool) tea.Cmd {
	if !ok {
		return nil
	}
	b := m.backend
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), backendTimeout)
		defer cancel()

		var (
			item *model.Item
			err  error
		)
		switch mut.Kind {
		case stack.KindUndo:
			item, err = b.Undo(ctx, mut.Item.ID)
		default:
			item, err = b.Transition(ctx, mut.Item.ID, mut.Status)
		}
		return mutationDoneMsg{mutation: mut, item: item, err: err}
	}
}

// settle reconciles the stack with a finished mutation and refreshes
// the counters.
func (m Model) settle(msg mutationDoneMsg) (tea.Model, tea.Cmd) {
	m.stack.Settle(msg.mutation, msg.err)
	m.statsView.SetRemaining(m.stack.Remaining())

	switch {
	case msg.err == nil, errors.Is(msg.err, dispatch.ErrAlreadyApplied):
	case errors.Is(msg.err, store.ErrNotFound):
		m.notice = fmt.Sprintf("%q no longer exists", msg.mutation.Item.Subject)
	default:
		m.logger.Error("triage action failed",
			slog.String("item", msg.mutation.Item.ID),
			slog.String("kind", msg.mutation.Kind.String()),
			slog.Any("error", msg.err))
		m.notice = "Action failed, card restored: " + msg.err.Error()
	}
	return m, m.loadStats()
}

// refresh triggers a mailbox poll and re-reads the inbox.
func (m Model) refresh() tea.Cmd {
	if m.poller != nil {
		m.poller.RefreshAll()
	}
	return m.loadItems()
}

// saveSetup verifies the new mailbox settings, stores the password in
// the keyring and writes the config file.
func (m Model) saveSetup(msg setup.SubmittedMsg) tea.Cmd {
	cfg := *m.cfg
	cfg.Mail = msg.Mail
	path := m.configPath
	factory := m.sourceFactory
	setSecret := m.setSecret

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), backendTimeout)
		defer cancel()

		ec := AdapterConfig(msg.Mail)
		ec.Password = msg.Password
		if _, err := factory(ec).ValidateConnection(ctx); err != nil {
			return setupSavedMsg{err: err}
		}

		if err := setSecret(credential.MailKey(msg.Mail.Username), msg.Password); err != nil {
			return setupSavedMsg{err: fmt.Errorf("storing password: %w", err)}
		}
		if path != "" {
			if err := model.SaveConfig(path, &cfg); err != nil {
				return setupSavedMsg{err: err}
			}
		}
		return setupSavedMsg{mail: msg.Mail}
	}
}

// restartPolling replaces the poller so the new mailbox is the only one
// registered.
func (m *Model) restartPolling() tea.Cmd {
	if m.store == nil {
		return nil
	}
	m.stopPolling()
	m.poller = appsync.New(m.store, m.logger)
	return m.registerSources()
}

// describe is the status bar notice for an optimistic mutation.
func describe(mut stack.Mutation) string {
	switch {
	case mut.Kind == stack.KindUndo:
		return "Restored: " + mut.Item.Subject
	case mut.Status == model.StatusArchived:
		return "Archived: " + mut.Item.Subject + " (u to undo)"
	default:
		return "Saved for later: " + mut.Item.Subject + " (u to undo)"
	}
}
