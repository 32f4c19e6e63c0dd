// Package gesture turns a horizontal drag on the front card into live
// feedback (offset, velocity, direction, tilt) and a single commit or
// cancel decision on release.
package gesture

import (
	"math"
	"time"
)

// Direction is the horizontal direction of a drag.
type Direction int

const (
	None Direction = iota
	Left
	Right
)

func (d Direction) String() string {
	switch d {
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return "none"
	}
}

// Phase is the tracker's state. A gesture moves
// Neutral → Dragging → (Committing | Cancelling) → Neutral.
type Phase int

const (
	Neutral Phase = iota
	Dragging
	Committing
	Cancelling
)

func (p Phase) String() string {
	switch p {
	case Dragging:
		return "dragging"
	case Committing:
		return "committing"
	case Cancelling:
		return "cancelling"
	default:
		return "neutral"
	}
}

// Frame is the visual state of the dragged card after an event.
type Frame struct {
	Offset    float64
	Velocity  float64
	Rotation  float64
	Direction Direction

	// Opacity drives the archive/later overlay, in [0, 1].
	Opacity  float64
	Dragging bool
}

// Decision is emitted once per gesture, at release.
type Decision struct {
	Commit    bool
	Direction Direction
	Offset    float64
	Velocity  float64
}

// Tracker is the gesture state machine for one card. It is not safe for
// concurrent use; the UI event loop owns it.
type Tracker struct {
	cfg    Config
	phase  Phase
	startX float64
	lastX  float64
	lastAt time.Time
	frame  Frame
}

// NewTracker returns a neutral tracker.
func NewTracker(cfg Config) *Tracker {
	return &Tracker{cfg: cfg.normalized()}
}

// Phase returns the current state.
func (t *Tracker) Phase() Phase { return t.phase }

// Frame returns the latest visual state.
func (t *Tracker) Frame() Frame { return t.frame }

// Start begins a drag at pointer position x. A gesture still resolving
// from a previous release is settled first.
func (t *Tracker) Start(x float64, at time.Time) Frame {
	t.Reset()
	t.phase = Dragging
	t.startX = x
	t.lastX = x
	t.lastAt = at
	t.frame = Frame{Dragging: true}
	return t.frame
}

// Move records a pointer sample. It reports false and leaves the tracker
// untouched when no drag is in progress.
func (t *Tracker) Move(x float64, at time.Time) (Frame, bool) {
	if t.phase != Dragging {
		return t.frame, false
	}
	t.sample(x, at)
	return t.frame, true
}

// Release ends the drag at x and decides whether it commits. It reports
// false for a release without a drag in progress, which includes a
// duplicate release of an already decided gesture.
func (t *Tracker) Release(x float64, at time.Time) (Decision, bool) {
	if t.phase != Dragging {
		if t.phase == Neutral {
			t.frame = Frame{}
		}
		return Decision{}, false
	}
	if x == t.lastX && at.Sub(t.lastAt) <= restThreshold {
		// Same position as the last move: keep the move's velocity so a
		// flick released in place still counts.
		t.lastAt = at
	} else {
		t.sample(x, at)
	}

	d := Decision{
		Offset:   t.frame.Offset,
		Velocity: t.frame.Velocity,
	}
	if math.Abs(d.Offset) > t.cfg.CommitDistance || math.Abs(d.Velocity) > t.cfg.CommitVelocity {
		d.Direction = directionOf(d.Offset, d.Velocity)
		d.Commit = d.Direction != None
	}

	if d.Commit {
		t.phase = Committing
	} else {
		t.phase = Cancelling
	}
	t.frame = Frame{}
	return d, true
}

// Settle finishes a committing or cancelling gesture and returns the
// tracker to neutral.
func (t *Tracker) Settle() Frame {
	if t.phase == Committing || t.phase == Cancelling {
		t.phase = Neutral
	}
	return t.frame
}

// Reset discards any gesture state.
func (t *Tracker) Reset() {
	t.phase = Neutral
	t.startX = 0
	t.lastX = 0
	t.lastAt = time.Time{}
	t.frame = Frame{}
}

// restThreshold is how long the pointer may rest at its last position
// before a release stops counting as a flick.
const restThreshold = 100 * time.Millisecond

// sample folds one pointer position into the frame.
func (t *Tracker) sample(x float64, at time.Time) {
	if elapsed := at.Sub(t.lastAt); elapsed > 0 {
		ms := float64(elapsed) / float64(time.Millisecond)
		t.frame.Velocity = (x - t.lastX) / ms
	}
	t.lastX = x
	t.lastAt = at

	offset := t.cfg.shape(x - t.startX)
	t.frame.Offset = offset
	t.frame.Rotation = t.cfg.rotation(offset)
	t.frame.Direction = t.cfg.classify(offset)
	t.frame.Dragging = true
	t.frame.Opacity = 0
	if t.frame.Direction != None {
		t.frame.Opacity = math.Min(math.Abs(offset)/t.cfg.CommitDistance, 1)
	}
}

// directionOf picks the committed direction from the offset, falling back
// to the velocity for a flick that ends where it started.
func directionOf(offset, velocity float64) Direction {
	switch {
	case offset > 0:
		return Right
	case offset < 0:
		return Left
	case velocity > 0:
		return Right
	case velocity < 0:
		return Left
	default:
		return None
	}
}
