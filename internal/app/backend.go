package app

import (
	"context"

	"github.com/nhle/swipemail/internal/dispatch"
	"github.com/nhle/swipemail/internal/model"
	"github.com/nhle/swipemail/internal/store"
)

// Backend is what the terminal UI reads and mutates. It is served either
// in-process by LocalBackend or over HTTP by api.Client.
type Backend interface {
	ListItems(ctx context.Context, filter store.ItemFilter) ([]model.Item, error)
	Transition(ctx context.Context, id string, status model.Status) (*model.Item, error)
	Undo(ctx context.Context, id string) (*model.Item, error)
	Stats(ctx context.Context) (model.Stats, error)
	Activities(ctx context.Context) ([]model.Activity, error)
}

// LocalBackend serves the UI straight from the store, routing mutations
// through the dispatcher.
type LocalBackend struct {
	store      store.Store
	dispatcher *dispatch.Dispatcher
}

// NewLocalBackend creates a LocalBackend.
func NewLocalBackend(s store.Store, d *dispatch.Dispatcher) *LocalBackend {
	return &LocalBackend{store: s, dispatcher: d}
}

func (b *LocalBackend) ListItems(ctx context.Context, filter store.ItemFilter) ([]model.Item, error) {
	return b.store.ListItems(ctx, filter)
}

func (b *LocalBackend) Transition(ctx context.Context, id string, status model.Status) (*model.Item, error) {
	return b.dispatcher.Transition(ctx, id, status)
}

func (b *LocalBackend) Undo(ctx context.Context, id string) (*model.Item, error) {
	return b.dispatcher.Undo(ctx, id)
}

func (b *LocalBackend) Stats(ctx context.Context) (model.Stats, error) {
	return b.store.GetStats(ctx)
}

func (b *LocalBackend) Activities(ctx context.Context) ([]model.Activity, error) {
	return b.store.ListActivities(ctx, store.DefaultActivityLimit)
}
