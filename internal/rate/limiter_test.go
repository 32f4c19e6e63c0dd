package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestTokenBucketBurstThenBlocks(t *testing.T) {
	tb := NewTokenBucket(2)
	defer tb.Stop()

	require.NoError(t, tb.Wait(context.Background()))
	require.NoError(t, tb.Wait(context.Background()))

	// The burst is spent; a short deadline expires before the next token.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := tb.Wait(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestTokenBucketRefills(t *testing.T) {
	tb := NewTokenBucket(100)
	defer tb.Stop()

	for i := 0; i < 100; i++ {
		require.NoError(t, tb.Wait(context.Background()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, tb.Wait(ctx))
}

func TestTokenBucketStopIsIdempotent(t *testing.T) {
	tb := NewTokenBucket(0)
	tb.Stop()
	tb.Stop()
}

func TestUnlimited(t *testing.T) {
	var l Limiter = Unlimited{}
	assert.NoError(t, l.Wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, l.Wait(ctx), context.Canceled)
}
