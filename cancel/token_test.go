package cancel_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tpelling/go-respool/cancel"
)

func TestTokenFiresOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancelFn := context.WithCancel(context.Background())
	tok := cancel.FromContext(ctx)
	require.False(t, tok.Canceled())

	fired := make(chan error, 1)
	tok.OnCancel(func(err error) { fired <- err })

	cancelFn()

	select {
	case err := <-fired:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("OnCancel callback never fired")
	}

	require.True(t, tok.Canceled())
	require.ErrorIs(t, tok.Err(), context.Canceled)
}

func TestTokenAlreadyCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancelFn := context.WithCancel(context.Background())
	cancelFn()

	tok := cancel.FromContext(ctx)
	require.True(t, tok.Canceled())

	called := false
	tok.OnCancel(func(err error) {
		called = true
		require.ErrorIs(t, err, context.Canceled)
	})
	require.True(t, called)
}

func TestTokenOff(t *testing.T) {
	t.Parallel()

	ctx, cancelFn := context.WithCancel(context.Background())
	tok := cancel.FromContext(ctx)

	called := false
	off := tok.OnCancel(func(error) { called = true })
	off()

	cancelFn()
	time.Sleep(20 * time.Millisecond)

	require.False(t, called)
}

func TestTokenNilContextNeverCancels(t *testing.T) {
	t.Parallel()

	tok := cancel.FromContext(nil)
	require.False(t, tok.Canceled())
	require.Nil(t, tok.Err())
}
