package model

import (
	"fmt"
	"strings"
	"time"
)

// Status is the triage state of an item.
type Status string

// Item status values.
const (
	StatusInbox    Status = "inbox"
	StatusLater    Status = "later"
	StatusArchived Status = "archived"
	StatusDeleted  Status = "deleted"
)

// Statuses lists every valid status in display order.
var Statuses = []Status{StatusInbox, StatusLater, StatusArchived, StatusDeleted}

// ParseStatus validates s against the enumerated statuses.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Statuses {
		if st == known {
			return st, nil
		}
	}
	return "", fmt.Errorf("invalid status %q", s)
}

// Valid reports whether s is exactly one of the enumerated statuses.
// Input from users goes through ParseStatus first.
func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// Priority tags shown on cards.
const (
	PriorityUrgent    = "Urgent"
	PriorityImportant = "Important"
	PriorityMarketing = "Marketing"
	PriorityNormal    = "Normal"
	PriorityLow       = "Low"
)

// Item is a triaged message record. It is a surrogate for an email and
// carries only what the card stack needs to render and triage it.
type Item struct {
	// ID is the unique, immutable identifier.
	ID string `json:"id" db:"id"`

	// Sender is the display name of the sender.
	Sender string `json:"sender" db:"sender"`

	// SenderEmail is the sender address.
	SenderEmail string `json:"senderEmail" db:"sender_email"`

	Subject string `json:"subject" db:"subject"`
	Body    string `json:"body" db:"body"`

	// Priority is one of the Priority* tags.
	Priority string `json:"priority" db:"priority"`

	// ReceivedAt is when the message arrived.
	ReceivedAt time.Time `json:"timestamp" db:"received_at"`

	Unread      bool `json:"unread" db:"unread"`
	Attachments int  `json:"attachments" db:"attachments"`
	HasReply    bool `json:"hasReply" db:"has_reply"`

	Status Status `json:"status" db:"status"`

	// ExternalID references the message in its mailbox (e.g. "INBOX:4211").
	// Nil for items that were not ingested from a mailbox.
	ExternalID *string `json:"externalId,omitempty" db:"external_id"`
}

// Initials returns up to two uppercase initials of the sender name.
func (i Item) Initials() string {
	var initials []rune
	for _, part := range strings.Fields(i.Sender) {
		initials = append(initials, []rune(strings.ToUpper(part))[0])
		if len(initials) == 2 {
			break
		}
	}
	return string(initials)
}
