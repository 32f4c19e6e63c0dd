// Package dispatch applies triage actions to stored items. Each action is
// a single store transaction; actions on the same item are serialized.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nhle/swipemail/internal/model"
	"github.com/nhle/swipemail/internal/store"
)

// ErrAlreadyApplied is returned by Transition when the item is already in
// the requested status. The item is returned alongside it, unchanged.
var ErrAlreadyApplied = errors.New("transition already applied")

// Mirror reflects committed actions onto the upstream mailbox.
type Mirror interface {
	Archive(ctx context.Context, externalID string) error
	MarkSeen(ctx context.Context, externalID string) error
}

// Dispatcher executes status transitions, undo, and delete against a store.
type Dispatcher struct {
	store  store.Store
	mirror Mirror
	logger *slog.Logger
	locks  *keyedMutex
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithMirror mirrors committed actions to the upstream mailbox.
func WithMirror(m Mirror) Option {
	return func(d *Dispatcher) { d.mirror = m }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// New creates a Dispatcher over s.
func New(s store.Store, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		store:  s,
		logger: slog.Default(),
		locks:  newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Transition moves the item to status. Unknown ids yield store.ErrNotFound.
// If the item already has status, the current item is returned together
// with ErrAlreadyApplied and nothing is counted.
func (d *Dispatcher) Transition(ctx context.Context, id string, status model.Status) (*model.Item, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("invalid status %q", status)
	}

	unlock := d.locks.Lock(id)
	defer unlock()

	item, err := d.store.TransitionItem(ctx, id, status)
	if errors.Is(err, store.ErrAlreadyInStatus) {
		current, getErr := d.store.GetItem(ctx, id)
		if getErr != nil {
			return nil, fmt.Errorf("reloading item %s: %w", id, getErr)
		}
		return current, ErrAlreadyApplied
	}
	if err != nil {
		return nil, fmt.Errorf("transitioning item %s to %s: %w", id, status, err)
	}

	d.logger.InfoContext(ctx, "item transitioned",
		slog.String("id", id), slog.String("status", string(status)))
	d.mirrorTransition(ctx, item)
	return item, nil
}

// Undo returns the item to the inbox. Counters are not decremented. Undoing
// an item already in the inbox is a no-op that returns the item.
func (d *Dispatcher) Undo(ctx context.Context, id string) (*model.Item, error) {
	unlock := d.locks.Lock(id)
	defer unlock()

	item, err := d.store.RestoreItem(ctx, id)
	if errors.Is(err, store.ErrAlreadyInStatus) {
		current, getErr := d.store.GetItem(ctx, id)
		if getErr != nil {
			return nil, fmt.Errorf("reloading item %s: %w", id, getErr)
		}
		return current, nil
	}
	if err != nil {
		return nil, fmt.Errorf("undoing item %s: %w", id, err)
	}

	d.logger.InfoContext(ctx, "item restored", slog.String("id", id))
	return item, nil
}

// Delete removes the item permanently.
func (d *Dispatcher) Delete(ctx context.Context, id string) (*model.Item, error) {
	unlock := d.locks.Lock(id)
	defer unlock()

	item, err := d.store.DeleteItem(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("deleting item %s: %w", id, err)
	}

	d.logger.InfoContext(ctx, "item deleted", slog.String("id", id))
	return item, nil
}

// mirrorTransition pushes a committed action upstream. Failures are logged
// only; the local transition stands.
func (d *Dispatcher) mirrorTransition(ctx context.Context, item *model.Item) {
	if d.mirror == nil || item.ExternalID == nil {
		return
	}

	var err error
	switch item.Status {
	case model.StatusArchived:
		err = d.mirror.Archive(ctx, *item.ExternalID)
	case model.StatusLater:
		err = d.mirror.MarkSeen(ctx, *item.ExternalID)
	default:
		return
	}
	if err != nil {
		d.logger.WarnContext(ctx, "mirroring action failed",
			slog.String("id", item.ID),
			slog.String("status", string(item.Status)),
			slog.Any("error", err))
	}
}
