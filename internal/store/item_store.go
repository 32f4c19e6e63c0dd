package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/swipemail/internal/model"
)

const itemColumns = `id, sender, sender_email, subject, body, priority,
	received_at, unread, attachments, has_reply, status, external_id`

// CreateItem inserts a new item. Generates a UUID if ID is empty and
// defaults the status to inbox.
func (s *SQLiteStore) CreateItem(ctx context.Context, item model.Item) (*model.Item, error) {
	item, err := prepareItem(item)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO items (`+itemColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		itemArgs(item)...,
	)
	if err != nil {
		return nil, fmt.Errorf("creating item: %w", err)
	}
	return &item, nil
}

// UpsertItems inserts items that are not stored yet. Items are matched on
// their external ID, so a message fetched twice keeps its triage status.
// Returns the newly inserted items.
func (s *SQLiteStore) UpsertItems(ctx context.Context, items []model.Item) ([]model.Item, error) {
	inserted := []model.Item{}
	if len(items) == 0 {
		return inserted, nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, it := range items {
		it, err := prepareItem(it)
		if err != nil {
			return nil, err
		}
		result, err := tx.ExecContext(ctx, `
			INSERT INTO items (`+itemColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(external_id) DO NOTHING`,
			itemArgs(it)...,
		)
		if err != nil {
			return nil, fmt.Errorf("upserting item %q: %w", it.Subject, err)
		}
		if n, _ := result.RowsAffected(); n > 0 {
			inserted = append(inserted, it)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing upsert: %w", err)
	}
	return inserted, nil
}

// GetItem retrieves a single item by ID.
func (s *SQLiteStore) GetItem(ctx context.Context, id string) (*model.Item, error) {
	row := s.db.QueryRowxContext(ctx,
		"SELECT "+itemColumns+" FROM items WHERE id = ?", id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting item %s: %w", id, err)
	}
	return &item, nil
}

// ListItems retrieves items matching the filter, newest first.
func (s *SQLiteStore) ListItems(ctx context.Context, filter ItemFilter) ([]model.Item, error) {
	query, args := buildItemQuery("SELECT "+itemColumns, filter)
	query += " ORDER BY received_at DESC, id"

	// SQLite needs a LIMIT before OFFSET; -1 means no limit.
	if filter.Limit > 0 || filter.Offset > 0 {
		limit := -1
		if filter.Limit > 0 {
			limit = filter.Limit
		}
		query += " LIMIT ?"
		args = append(args, limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying items: %w", err)
	}
	defer rows.Close()

	items := []model.Item{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// CountItems returns the number of items matching the filter, ignoring
// pagination.
func (s *SQLiteStore) CountItems(ctx context.Context, filter ItemFilter) (int, error) {
	query, args := buildItemQuery("SELECT COUNT(*)", filter)

	var count int
	if err := s.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("counting items: %w", err)
	}
	return count, nil
}

// buildItemQuery builds the FROM and WHERE clauses for an item query.
func buildItemQuery(selectClause string, filter ItemFilter) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	if filter.Status != nil {
		conditions = append(conditions, "status = ?")
		args = append(args, *filter.Status)
	}
	if s := strings.TrimSpace(filter.Sender); s != "" {
		conditions = append(conditions, "(sender LIKE ? OR sender_email LIKE ?)")
		q := "%" + s + "%"
		args = append(args, q, q)
	}
	if s := strings.TrimSpace(filter.Subject); s != "" {
		conditions = append(conditions, "subject LIKE ?")
		args = append(args, "%"+s+"%")
	}
	if filter.Since != nil {
		conditions = append(conditions, "received_at >= ?")
		args = append(args, filter.Since.UTC())
	}
	if filter.Until != nil {
		conditions = append(conditions, "received_at <= ?")
		args = append(args, filter.Until.UTC())
	}

	query := selectClause + " FROM items"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	return query, args
}

// prepareItem validates an item and fills in defaults before insertion.
func prepareItem(item model.Item) (model.Item, error) {
	if strings.TrimSpace(item.Subject) == "" {
		return item, fmt.Errorf("item subject must not be empty")
	}
	if strings.TrimSpace(item.Sender) == "" {
		item.Sender = item.SenderEmail
	}
	if strings.TrimSpace(item.Sender) == "" {
		return item, fmt.Errorf("item sender must not be empty")
	}
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	if item.Status == "" {
		item.Status = model.StatusInbox
	}
	if !item.Status.Valid() {
		return item, fmt.Errorf("invalid status %q", item.Status)
	}
	if item.Priority == "" {
		item.Priority = model.PriorityNormal
	}
	if item.ReceivedAt.IsZero() {
		item.ReceivedAt = time.Now()
	}
	item.ReceivedAt = item.ReceivedAt.UTC()
	if item.Attachments < 0 {
		item.Attachments = 0
	}
	return item, nil
}

func itemArgs(item model.Item) []interface{} {
	return []interface{}{
		item.ID, item.Sender, item.SenderEmail, item.Subject, item.Body, item.Priority,
		item.ReceivedAt, boolToInt(item.Unread), item.Attachments, boolToInt(item.HasReply),
		item.Status, item.ExternalID,
	}
}

// scanItem scans an items row selected with itemColumns.
func scanItem(row interface{ Scan(dest ...interface{}) error }) (model.Item, error) {
	var (
		item       model.Item
		unread     int
		hasReply   int
		externalID *string
	)

	err := row.Scan(
		&item.ID, &item.Sender, &item.SenderEmail, &item.Subject, &item.Body, &item.Priority,
		&item.ReceivedAt, &unread, &item.Attachments, &hasReply, &item.Status, &externalID,
	)
	if err != nil {
		return model.Item{}, fmt.Errorf("scanning item row: %w", err)
	}

	item.Unread = unread != 0
	item.HasReply = hasReply != 0
	item.ExternalID = externalID
	return item, nil
}
