package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/nhle/swipemail/internal/model"
)

// counterDelta is the change a transition applies to the stats row.
type counterDelta struct {
	processed int
	later     int
	archived  int
}

// deltaFor returns the counter change for a committed transition into
// status. Moving back to the inbox is not counted.
func deltaFor(status model.Status) counterDelta {
	switch status {
	case model.StatusArchived:
		return counterDelta{processed: 1, archived: 1}
	case model.StatusLater:
		return counterDelta{processed: 1, later: 1}
	case model.StatusDeleted:
		return counterDelta{processed: 1}
	default:
		return counterDelta{}
	}
}

// TransitionItem moves an item to status. The status change, the activity
// entry, and the counter update commit together or not at all.
func (s *SQLiteStore) TransitionItem(ctx context.Context, id string, status model.Status) (*model.Item, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("invalid status %q", status)
	}
	return s.transition(ctx, id, status, string(status), deltaFor(status))
}

// RestoreItem moves an item back to the inbox and logs an undone activity.
// Counters are left as they are.
func (s *SQLiteStore) RestoreItem(ctx context.Context, id string) (*model.Item, error) {
	return s.transition(ctx, id, model.StatusInbox, model.ActionUndone, counterDelta{})
}

func (s *SQLiteStore) transition(
	ctx context.Context,
	id string,
	status model.Status,
	action string,
	delta counterDelta,
) (*model.Item, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	item, err := getItemTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if item.Status == status {
		return nil, ErrAlreadyInStatus
	}

	result, err := tx.ExecContext(ctx,
		"UPDATE items SET status = ? WHERE id = ? AND status = ?",
		status, id, item.Status,
	)
	if err != nil {
		return nil, fmt.Errorf("updating item %s status: %w", id, err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return nil, ErrAlreadyInStatus
	}
	item.Status = status

	if err := insertActivityTx(ctx, tx, item, action); err != nil {
		return nil, err
	}
	if err := applyDeltaTx(ctx, tx, delta); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transition: %w", err)
	}
	return &item, nil
}

// DeleteItem removes an item. It counts as processed and archived, matching
// how the inbox counts a discarded message.
func (s *SQLiteStore) DeleteItem(ctx context.Context, id string) (*model.Item, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	item, err := getItemTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM items WHERE id = ?", id); err != nil {
		return nil, fmt.Errorf("deleting item %s: %w", id, err)
	}
	if err := insertActivityTx(ctx, tx, item, model.ActionDeleted); err != nil {
		return nil, err
	}
	if err := applyDeltaTx(ctx, tx, counterDelta{processed: 1, archived: 1}); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing delete: %w", err)
	}
	return &item, nil
}

func getItemTx(ctx context.Context, tx *sqlx.Tx, id string) (model.Item, error) {
	row := tx.QueryRowxContext(ctx,
		"SELECT "+itemColumns+" FROM items WHERE id = ?", id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Item{}, ErrNotFound
	}
	if err != nil {
		return model.Item{}, fmt.Errorf("getting item %s: %w", id, err)
	}
	return item, nil
}

func insertActivityTx(ctx context.Context, tx *sqlx.Tx, item model.Item, action string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO activities (id, item_id, action, subject, sender, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), item.ID, action, item.Subject, item.Sender, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("logging %s activity for %s: %w", action, item.ID, err)
	}
	return nil
}

func applyDeltaTx(ctx context.Context, tx *sqlx.Tx, d counterDelta) error {
	if d == (counterDelta{}) {
		return nil
	}
	if err := ensureStatsRow(ctx, tx); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, `
		UPDATE stats SET
			processed_today = processed_today + ?,
			for_later = for_later + ?,
			archived = archived + ?
		WHERE id = 1`,
		d.processed, d.later, d.archived,
	)
	if err != nil {
		return fmt.Errorf("updating stats: %w", err)
	}
	return nil
}

// ensureStatsRow creates the single stats row on first use.
func ensureStatsRow(ctx context.Context, ex sqlx.ExecerContext) error {
	_, err := ex.ExecContext(ctx,
		"INSERT OR IGNORE INTO stats (id, processed_today, for_later, archived) VALUES (1, 0, 0, 0)")
	if err != nil {
		return fmt.Errorf("creating stats row: %w", err)
	}
	return nil
}
