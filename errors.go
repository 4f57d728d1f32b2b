package respool

import (
	"errors"

	"github.com/tpelling/go-respool/future"
)

var (
	// ErrCanceled is returned by Get when the caller's context is canceled
	// before an item becomes available.
	ErrCanceled = errors.New("respool: request canceled")

	// ErrClosing is returned while the pool is in the process of closing.
	ErrClosing = errors.New("respool: pool is closing")

	// ErrClosed is returned once the pool has fully closed.
	ErrClosed = errors.New("respool: pool is closed")

	// ErrOptionInvalid is returned synchronously by SetOptions for disallowed
	// field values (MaxLifetime, MaxIdleTime, or MaxOpenCount set to zero).
	ErrOptionInvalid = errors.New("respool: invalid option value")
)

// IsCanceled reports whether err was produced by a cancellation — either
// Get's own ErrCanceled, or one of the future package's tagged cancellation
// errors.
func IsCanceled(err error) bool {
	return future.IsCanceled(err)
}
