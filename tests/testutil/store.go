package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/nhle/swipemail/internal/model"
	"github.com/nhle/swipemail/internal/store"
)

// NewTestStore creates an in-memory SQLiteStore with all migrations applied.
// It automatically closes the store when the test completes.
func NewTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}

// SeedItem inserts an inbox item with the given subject and a received time
// offset from base by minutes. It fails the test on error.
func SeedItem(t *testing.T, s *store.SQLiteStore, subject string, minutes int) *model.Item {
	t.Helper()

	base := time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)
	it, err := s.CreateItem(context.Background(), model.Item{
		Sender:      "Sarah Chen",
		SenderEmail: "sarah@company.com",
		Subject:     subject,
		Body:        "body of " + subject,
		Priority:    model.PriorityNormal,
		ReceivedAt:  base.Add(time.Duration(minutes) * time.Minute),
		Unread:      true,
	})
	if err != nil {
		t.Fatalf("seeding item %q: %v", subject, err)
	}
	return it
}
