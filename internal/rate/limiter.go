// Package rate provides request admission for the HTTP surface.
package rate

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Limiter gates incoming requests.
type Limiter interface {
	Wait(ctx context.Context) error
}

// TokenBucket implements a fixed-rate token bucket limiter. The bucket
// starts full so a burst of up to rps requests passes immediately.
type TokenBucket struct {
	ticker   *time.Ticker
	tokens   chan struct{}
	quit     chan struct{}
	stopDone chan struct{}
	stopOnce sync.Once
}

// NewTokenBucket returns a limiter that releases rps tokens per second.
func NewTokenBucket(rps int) *TokenBucket {
	if rps <= 0 {
		rps = 1
	}
	tb := &TokenBucket{
		ticker:   time.NewTicker(time.Second / time.Duration(rps)),
		tokens:   make(chan struct{}, rps),
		quit:     make(chan struct{}),
		stopDone: make(chan struct{}),
	}
	for i := 0; i < rps; i++ {
		tb.tokens <- struct{}{}
	}
	go tb.run()
	return tb
}

func (t *TokenBucket) run() {
	defer close(t.stopDone)
	for {
		select {
		case <-t.quit:
			return
		case <-t.ticker.C:
			select {
			case t.tokens <- struct{}{}:
			default:
			}
		}
	}
}

// Wait blocks until a token is available or the context is canceled.
func (t *TokenBucket) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("rate wait canceled: %w", ctx.Err())
	case <-t.tokens:
		return nil
	}
}

// Stop releases resources held by the limiter. Safe to call more than once.
func (t *TokenBucket) Stop() {
	t.stopOnce.Do(func() {
		t.ticker.Stop()
		close(t.quit)
	})
	<-t.stopDone
}

// Unlimited is a Limiter that never blocks.
type Unlimited struct{}

// Wait returns immediately unless ctx is already done.
func (Unlimited) Wait(ctx context.Context) error {
	return ctx.Err()
}

var (
	_ Limiter = (*TokenBucket)(nil)
	_ Limiter = Unlimited{}
)
