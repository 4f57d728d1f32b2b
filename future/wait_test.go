package future_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tpelling/go-respool/cancel"
	"github.com/tpelling/go-respool/future"
)

func TestLimitResolvesBeforeTimeout(t *testing.T) {
	t.Parallel()

	p := future.NewPromise[int]()
	go func() {
		time.Sleep(5 * time.Millisecond)
		p.Resolve(1)
	}()

	out := future.Limit(p, future.WithTimeout(time.Second))
	v, err := out.Await(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, v)
}

func TestLimitTimesOut(t *testing.T) {
	t.Parallel()

	p := future.NewPromise[int]()
	out := future.Limit(p, future.WithTimeout(10*time.Millisecond))

	_, err := out.Await(context.Background())
	require.True(t, future.IsCanceled(err))
}

func TestLimitNonPositiveTimeoutRejectsImmediately(t *testing.T) {
	t.Parallel()

	p := future.NewPromise[int]()
	out := future.Limit(p, future.WithTimeout(0))

	_, err := out.Await(context.Background())
	require.True(t, future.IsCanceled(err))
}

func TestLimitTokenCancels(t *testing.T) {
	t.Parallel()

	p := future.NewPromise[int]()
	ctx, cancelFn := context.WithCancel(context.Background())
	tok := cancel.FromContext(ctx)

	out := future.Limit(p, future.WithToken(tok))
	cancelFn()

	_, err := out.Await(context.Background())
	require.True(t, future.IsCanceled(err))
}

func TestLimitIgnoresLateResolution(t *testing.T) {
	t.Parallel()

	p := future.NewPromise[int]()
	out := future.Limit(p, future.WithTimeout(5*time.Millisecond))

	_, err := out.Await(context.Background())
	require.True(t, future.IsCanceled(err))

	p.Resolve(99)
	time.Sleep(10 * time.Millisecond)

	v, err := out.Result()
	require.True(t, future.IsCanceled(err))
	require.Zero(t, v)
}

func TestWaitResolvesAfterDuration(t *testing.T) {
	t.Parallel()

	start := time.Now()
	out := future.Wait(future.WithTimeout(10 * time.Millisecond))
	_, err := out.Await(context.Background())
	require.NoError(t, err)
	require.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
}

func TestWaitNonPositiveResolvesImmediately(t *testing.T) {
	t.Parallel()

	out := future.Wait(future.WithTimeout(-1))
	select {
	case <-out.Done():
	default:
		t.Fatal("Wait with non-positive duration should resolve synchronously")
	}
}

func TestWaitTokenCancel(t *testing.T) {
	t.Parallel()

	ctx, cancelFn := context.WithCancel(context.Background())
	tok := cancel.FromContext(ctx)

	out := future.Wait(future.WithToken(tok))
	cancelFn()

	_, err := out.Await(context.Background())
	require.NoError(t, err)
}
