package store

import (
	"context"
	"time"

	"github.com/nhle/swipemail/internal/model"
)

// ItemFilter controls filtering and pagination for item queries.
// Results are always ordered newest first.
type ItemFilter struct {
	Status  *model.Status
	Sender  string     // substring match on sender name or address
	Subject string     // substring match on subject
	Since   *time.Time // received at or after
	Until   *time.Time // received at or before
	Limit   int
	Offset  int
}

// Store defines the persistence interface for items, the aggregate
// counters, and the activity log.
type Store interface {
	// === Items ===

	CreateItem(ctx context.Context, item model.Item) (*model.Item, error)
	UpsertItems(ctx context.Context, items []model.Item) ([]model.Item, error)
	GetItem(ctx context.Context, id string) (*model.Item, error)
	ListItems(ctx context.Context, filter ItemFilter) ([]model.Item, error)
	CountItems(ctx context.Context, filter ItemFilter) (int, error)

	// === Transitions ===

	// TransitionItem moves an item to status, logs the activity, and bumps
	// the counters in one transaction.
	TransitionItem(ctx context.Context, id string, status model.Status) (*model.Item, error)

	// RestoreItem moves an item back to the inbox without touching the
	// counters.
	RestoreItem(ctx context.Context, id string) (*model.Item, error)

	// DeleteItem removes an item and counts it as processed.
	DeleteItem(ctx context.Context, id string) (*model.Item, error)

	// === Stats & activity ===

	GetStats(ctx context.Context) (model.Stats, error)
	ListActivities(ctx context.Context, limit int) ([]model.Activity, error)

	Close() error
}
