package store

import (
	"context"
	"fmt"

	"github.com/nhle/swipemail/internal/model"
)

// DefaultActivityLimit is the number of activities returned when no limit
// is given.
const DefaultActivityLimit = 50

// GetStats returns the aggregate counters, creating the row if needed.
func (s *SQLiteStore) GetStats(ctx context.Context) (model.Stats, error) {
	if err := ensureStatsRow(ctx, s.db); err != nil {
		return model.Stats{}, err
	}

	var stats model.Stats
	err := s.db.GetContext(ctx, &stats,
		"SELECT processed_today, for_later, archived FROM stats WHERE id = 1")
	if err != nil {
		return model.Stats{}, fmt.Errorf("getting stats: %w", err)
	}
	return stats, nil
}

// ListActivities returns the most recent activities, newest first.
func (s *SQLiteStore) ListActivities(ctx context.Context, limit int) ([]model.Activity, error) {
	if limit <= 0 {
		limit = DefaultActivityLimit
	}

	activities := []model.Activity{}
	err := s.db.SelectContext(ctx, &activities, `
		SELECT id, item_id, action, subject, sender, created_at
		FROM activities
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing activities: %w", err)
	}
	return activities, nil
}
