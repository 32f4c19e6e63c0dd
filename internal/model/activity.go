package model

import "time"

// Activity action values. Transitions record their target status; undo
// records ActionUndone.
const (
	ActionArchived = string(StatusArchived)
	ActionLater    = string(StatusLater)
	ActionDeleted  = string(StatusDeleted)
	ActionInbox    = string(StatusInbox)
	ActionUndone   = "undone"
)

// Activity is an append-only audit entry for one committed transition.
// It snapshots the subject and sender so it stays readable after the
// item itself is gone.
type Activity struct {
	ID        string    `json:"id" db:"id"`
	ItemID    string    `json:"itemId" db:"item_id"`
	Action    string    `json:"action" db:"action"`
	Subject   string    `json:"emailSubject" db:"subject"`
	Sender    string    `json:"emailSender" db:"sender"`
	CreatedAt time.Time `json:"timestamp" db:"created_at"`
}
