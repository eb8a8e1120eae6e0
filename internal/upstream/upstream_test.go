package upstream

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	apperrors "barberline/pkg/errors"
	"barberline/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testGuard(timeout time.Duration, limiter int) *Guard {
	return NewGuard("test upstream", Policy{Timeout: timeout, Backoff: time.Millisecond}, NewLimiter(limiter), logger.Discard())
}

func TestCallSucceedsFirstTry(t *testing.T) {
	g := testGuard(time.Second, 1)

	out, err := Call(context.Background(), g, func(_ context.Context, a Attempt) (string, error) {
		assert.False(t, a.Degraded)
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
}

func TestCallRetriesOnceDegraded(t *testing.T) {
	g := testGuard(time.Second, 1)

	var attempts []Attempt
	out, err := Call(context.Background(), g, func(_ context.Context, a Attempt) (int, error) {
		attempts = append(attempts, a)
		if a.Number == 1 {
			return 0, errors.New("boom")
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, out)
	require.Len(t, attempts, 2)
	assert.True(t, attempts[1].Degraded)
}

func TestCallGivesUpAfterSecondFailure(t *testing.T) {
	g := testGuard(20*time.Millisecond, 1)

	var calls int32
	_, err := Call(context.Background(), g, func(ctx context.Context, _ Attempt) (string, error) {
		atomic.AddInt32(&calls, 1)
		<-ctx.Done()
		return "", ctx.Err()
	})
	require.Error(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUpstreamTimeout))
	assert.Equal(t, "test upstream", apperrors.AsAppError(err).Details["upstream"])
}

func TestCallStopsWhenParentCancelled(t *testing.T) {
	g := testGuard(time.Second, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls int32
	_, err := Call(ctx, g, func(context.Context, Attempt) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "", errors.New("unreachable")
	})
	require.Error(t, err)
	assert.LessOrEqual(t, atomic.LoadInt32(&calls), int32(1))
}

func TestLimiterCapsConcurrency(t *testing.T) {
	g := testGuard(time.Second, 2)

	var inFlight, peak int32
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = Call(context.Background(), g, func(context.Context, Attempt) (struct{}, error) {
				n := atomic.AddInt32(&inFlight, 1)
				for {
					p := atomic.LoadInt32(&peak)
					if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt32(&inFlight, -1)
				return struct{}{}, nil
			})
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}
