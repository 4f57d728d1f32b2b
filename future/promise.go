// Package future provides a callback-exposed promise (a future whose
// completion handles are directly callable by producers other than the
// awaiter) and a bounded waiter that races a promise against a timeout,
// deadline, or cancellation token.
package future

import (
	"context"
	"errors"
	"sync"

	"github.com/tpelling/go-respool/cancel"
)

type canceledError struct {
	cause error
}

func (e *canceledError) Error() string {
	if e.cause != nil {
		return e.cause.Error()
	}
	return "canceled"
}

func (e *canceledError) Unwrap() error { return e.cause }

// TagCanceled wraps err so that IsCanceled reports true for it. If err is
// nil, ErrAlreadyCanceled is used.
func TagCanceled(err error) error {
	if err == nil {
		err = ErrAlreadyCanceled
	}
	return &canceledError{cause: err}
}

// IsCanceled reports whether err (or something it wraps) was produced by a
// cancellation, as opposed to an ordinary rejection.
func IsCanceled(err error) bool {
	var ce *canceledError
	return errors.As(err, &ce)
}

// ErrAlreadyCanceled is used to tag a rejection when no more specific reason
// is available.
var ErrAlreadyCanceled = errors.New("future: already canceled")

// Promise is a future whose Resolve/Reject are callable by any goroutine,
// independent of whoever is awaiting it. It settles exactly once.
type Promise[T any] struct {
	mu     sync.Mutex
	done   chan struct{}
	once   sync.Once
	value  T
	err    error
	cancel func() // unsubscribe from a bound cancel.Token, if any
}

// NewPromise returns a promise with no binding to any cancellation token.
func NewPromise[T any]() *Promise[T] {
	return &Promise[T]{done: make(chan struct{})}
}

// NewCancelablePromise returns a promise bound to tok. If tok is already
// canceled, the promise is immediately rejected: with errFactory()'s error if
// errFactory is non-nil, otherwise with tok.Err() (ErrAlreadyCanceled if that
// is nil). The rejection reason is tagged so IsCanceled reports true for it.
//
// Otherwise, a subscription is installed that rejects the promise with a
// tagged cancellation error when tok cancels. The subscription is removed as
// soon as the promise settles by any means.
func NewCancelablePromise[T any](tok *cancel.Token, errFactory func() error) *Promise[T] {
	p := NewPromise[T]()

	if tok == nil {
		return p
	}

	if tok.Canceled() {
		p.reject(tagged(tok, errFactory))
		return p
	}

	off := tok.OnCancel(func(error) {
		p.reject(tagged(tok, errFactory))
	})
	p.mu.Lock()
	p.cancel = off
	p.mu.Unlock()

	return p
}

func tagged(tok *cancel.Token, errFactory func() error) error {
	if errFactory != nil {
		return TagCanceled(errFactory())
	}
	return TagCanceled(tok.Err())
}

// Resolve settles the promise successfully. A call after the promise has
// already settled is a no-op.
func (p *Promise[T]) Resolve(value T) {
	p.settle(value, nil)
}

// Reject settles the promise with err. A call after the promise has already
// settled is a no-op.
func (p *Promise[T]) Reject(err error) {
	var zero T
	p.settle(zero, err)
}

func (p *Promise[T]) reject(err error) {
	p.Reject(err)
}

func (p *Promise[T]) settle(value T, err error) {
	p.once.Do(func() {
		p.mu.Lock()
		p.value = value
		p.err = err
		unsub := p.cancel
		p.cancel = nil
		p.mu.Unlock()

		if unsub != nil {
			unsub()
		}

		close(p.done)
	})
}

// Done returns a channel closed once the promise has settled.
func (p *Promise[T]) Done() <-chan struct{} {
	return p.done
}

// Result returns the settled value and error. It must only be called after
// Done() has fired (or via Await).
func (p *Promise[T]) Result() (T, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.value, p.err
}

// Await blocks until the promise settles or ctx is done, whichever comes
// first. Unlike Reject, a ctx cancellation here does not settle the promise
// itself — it only stops this particular caller from waiting on it.
func (p *Promise[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-p.done:
		return p.Result()
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
