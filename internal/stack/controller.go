// Package stack holds the client-side card queue: which item is on top,
// which cards are visible beneath it, the single-slot undo, and the
// reconciliation of optimistic actions with their results.
package stack

import (
	"errors"
	"time"

	"github.com/nhle/swipemail/internal/dispatch"
	"github.com/nhle/swipemail/internal/gesture"
	"github.com/nhle/swipemail/internal/model"
	"github.com/nhle/swipemail/internal/store"
)

// DefaultWindow is the number of cards shown at once.
const DefaultWindow = 3

// MutationKind distinguishes commits from undos.
type MutationKind int

const (
	KindCommit MutationKind = iota
	KindUndo
)

func (k MutationKind) String() string {
	if k == KindUndo {
		return "undo"
	}
	return "commit"
}

// Mutation is an action the controller has already applied locally and
// that must now be executed against the backend. Its outcome is passed
// back through Settle.
type Mutation struct {
	Seq    uint64
	Kind   MutationKind
	Item   model.Item
	Status model.Status // target status for a commit, the undone status for an undo
}

// lastAction is the single undo slot.
type lastAction struct {
	itemID string
	status model.Status
}

// Controller is the ordered queue of pending items with a front pointer.
// Items before the front have been committed.
type Controller struct {
	items   []model.Item
	front   int
	window  int
	last    *lastAction
	tracker *gesture.Tracker
	seq     uint64
	pending map[string]uint64 // item id to the newest unsettled mutation
}

// New creates a controller over items showing window cards at a time.
func New(items []model.Item, window int, cfg gesture.Config) *Controller {
	if window <= 0 {
		window = DefaultWindow
	}
	c := &Controller{
		window:  window,
		tracker: gesture.NewTracker(cfg),
		pending: make(map[string]uint64),
	}
	c.Append(items)
	return c
}

// CurrentItem returns the front item, or false when the stack is empty.
func (c *Controller) CurrentItem() (model.Item, bool) {
	if c.Empty() {
		return model.Item{}, false
	}
	return c.items[c.front], true
}

// Visible returns the front item and up to window-1 items beneath it.
func (c *Controller) Visible() []model.Item {
	end := c.front + c.window
	if end > len(c.items) {
		end = len(c.items)
	}
	out := make([]model.Item, end-c.front)
	copy(out, c.items[c.front:end])
	return out
}

// Empty reports whether every item has been committed.
func (c *Controller) Empty() bool { return c.front >= len(c.items) }

// Front returns the number of committed items ahead of the current one.
func (c *Controller) Front() int { return c.front }

// Remaining returns the number of uncommitted items.
func (c *Controller) Remaining() int { return len(c.items) - c.front }

// Len returns the total number of queued items.
func (c *Controller) Len() int { return len(c.items) }

// CanUndo reports whether an undo is available.
func (c *Controller) CanUndo() bool { return c.last != nil }

// Frame returns the gesture state of the front card.
func (c *Controller) Frame() gesture.Frame { return c.tracker.Frame() }

// Commit applies direction to the front item: left archives, right defers.
// The front advances and the action becomes the undo target.
func (c *Controller) Commit(dir gesture.Direction) (Mutation, bool) {
	status, ok := statusFor(dir)
	if !ok || c.Empty() {
		return Mutation{}, false
	}

	item := c.items[c.front]
	c.last = &lastAction{itemID: item.ID, status: status}
	c.front++
	c.tracker.Reset()

	return c.mutation(KindCommit, item, status), true
}

// Undo reverts the last commit locally. Only one level is kept, so a second
// Undo is a no-op.
func (c *Controller) Undo() (Mutation, bool) {
	if c.last == nil {
		return Mutation{}, false
	}
	last := *c.last
	c.last = nil

	i := c.indexOf(last.itemID)
	if i < 0 || i >= c.front {
		return Mutation{}, false
	}
	c.moveTo(i, c.front-1)
	c.front--
	c.tracker.Reset()

	return c.mutation(KindUndo, c.items[c.front], last.status), true
}

// HandleKey maps "left" and "right" to a commit without a gesture.
func (c *Controller) HandleKey(key string) (Mutation, bool) {
	switch key {
	case "left":
		return c.Commit(gesture.Left)
	case "right":
		return c.Commit(gesture.Right)
	}
	return Mutation{}, false
}

// PointerDown starts a drag on the front card.
func (c *Controller) PointerDown(x float64, at time.Time) (gesture.Frame, bool) {
	if c.Empty() {
		return gesture.Frame{}, false
	}
	return c.tracker.Start(x, at), true
}

// PointerMove updates the drag on the front card.
func (c *Controller) PointerMove(x float64, at time.Time) (gesture.Frame, bool) {
	return c.tracker.Move(x, at)
}

// PointerUp ends the drag. A committing gesture yields a commit mutation;
// a cancelled one returns the card to neutral.
func (c *Controller) PointerUp(x float64, at time.Time) (Mutation, bool) {
	d, ok := c.tracker.Release(x, at)
	if !ok {
		return Mutation{}, false
	}
	c.tracker.Settle()
	if !d.Commit {
		return Mutation{}, false
	}
	return c.Commit(d.Direction)
}

// Settle reconciles a finished mutation with the local queue. A failed
// commit puts the item back on top. A failed undo pushes it back behind
// the front. Items the backend no longer knows are dropped. A failure
// reported for a mutation that a newer one on the same item has
// superseded changes nothing locally.
func (c *Controller) Settle(m Mutation, err error) {
	stale := m.Seq < c.pending[m.Item.ID]
	if !stale {
		delete(c.pending, m.Item.ID)
	}
	if err == nil || errors.Is(err, dispatch.ErrAlreadyApplied) {
		return
	}

	i := c.indexOf(m.Item.ID)
	if i < 0 {
		return
	}

	if errors.Is(err, store.ErrNotFound) {
		c.remove(i)
		if c.last != nil && c.last.itemID == m.Item.ID {
			c.last = nil
		}
		return
	}

	if stale {
		return
	}

	switch m.Kind {
	case KindCommit:
		if i >= c.front {
			return
		}
		c.moveTo(i, c.front-1)
		c.front--
		if c.last != nil && c.last.itemID == m.Item.ID {
			c.last = nil
		}
	case KindUndo:
		if i < c.front {
			return
		}
		c.moveTo(i, c.front)
		c.front++
		if c.last == nil {
			c.last = &lastAction{itemID: m.Item.ID, status: m.Status}
		}
	}
	c.tracker.Reset()
}

// Append queues items not already present, in order.
func (c *Controller) Append(items []model.Item) int {
	added := 0
	for _, it := range items {
		if c.indexOf(it.ID) >= 0 {
			continue
		}
		c.items = append(c.items, it)
		added++
	}
	return added
}

func (c *Controller) mutation(kind MutationKind, item model.Item, status model.Status) Mutation {
	c.seq++
	c.pending[item.ID] = c.seq
	return Mutation{Seq: c.seq, Kind: kind, Item: item, Status: status}
}

func (c *Controller) indexOf(id string) int {
	for i := range c.items {
		if c.items[i].ID == id {
			return i
		}
	}
	return -1
}

// moveTo relocates the item at index from to index to, shifting the
// items in between.
func (c *Controller) moveTo(from, to int) {
	if from == to {
		return
	}
	it := c.items[from]
	if from < to {
		copy(c.items[from:to], c.items[from+1:to+1])
	} else {
		copy(c.items[to+1:from+1], c.items[to:from])
	}
	c.items[to] = it
}

func (c *Controller) remove(i int) {
	c.items = append(c.items[:i], c.items[i+1:]...)
	if i < c.front {
		c.front--
	}
}

// statusFor maps a swipe direction to the resulting status.
func statusFor(dir gesture.Direction) (model.Status, bool) {
	switch dir {
	case gesture.Left:
		return model.StatusArchived, true
	case gesture.Right:
		return model.StatusLater, true
	}
	return "", false
}
