// Package seed loads the bundled sample inbox.
package seed

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nhle/swipemail/internal/model"
	"github.com/nhle/swipemail/internal/store"
)

//go:embed sample_inbox.yaml
var sampleInbox []byte

// ErrNotEmpty is returned by Seed when the store already holds items and
// force was not requested.
var ErrNotEmpty = errors.New("store already contains items")

type fixture struct {
	Items []fixtureItem `yaml:"items"`
}

type fixtureItem struct {
	Sender      string `yaml:"sender"`
	SenderEmail string `yaml:"sender_email"`
	Subject     string `yaml:"subject"`
	Body        string `yaml:"body"`
	Priority    string `yaml:"priority"`
	Unread      bool   `yaml:"unread"`
	Attachments int    `yaml:"attachments"`
	HasReply    bool   `yaml:"has_reply"`
	ReceivedAgo string `yaml:"received_ago"`
}

// Parse decodes a fixture document into inbox items received relative to
// now.
func Parse(data []byte, now time.Time) ([]model.Item, error) {
	var f fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing seed fixture: %w", err)
	}

	items := make([]model.Item, 0, len(f.Items))
	for i, fi := range f.Items {
		var ago time.Duration
		if fi.ReceivedAgo != "" {
			d, err := time.ParseDuration(fi.ReceivedAgo)
			if err != nil {
				return nil, fmt.Errorf("seed item %d: received_ago: %w", i, err)
			}
			ago = d
		}
		items = append(items, model.Item{
			Sender:      fi.Sender,
			SenderEmail: fi.SenderEmail,
			Subject:     fi.Subject,
			Body:        fi.Body,
			Priority:    fi.Priority,
			Unread:      fi.Unread,
			Attachments: fi.Attachments,
			HasReply:    fi.HasReply,
			ReceivedAt:  now.Add(-ago),
			Status:      model.StatusInbox,
		})
	}
	return items, nil
}

// Sample returns the bundled sample inbox.
func Sample(now time.Time) ([]model.Item, error) {
	return Parse(sampleInbox, now)
}

// Seed inserts the sample inbox into s. It refuses to touch a store that
// already has items unless force is set.
func Seed(ctx context.Context, s store.Store, now time.Time, force bool) ([]model.Item, error) {
	if !force {
		n, err := s.CountItems(ctx, store.ItemFilter{})
		if err != nil {
			return nil, err
		}
		if n > 0 {
			return nil, ErrNotEmpty
		}
	}

	items, err := Sample(now)
	if err != nil {
		return nil, err
	}

	created := make([]model.Item, 0, len(items))
	for _, it := range items {
		c, err := s.CreateItem(ctx, it)
		if err != nil {
			return created, fmt.Errorf("seeding %q: %w", it.Subject, err)
		}
		created = append(created, *c)
	}
	return created, nil
}
