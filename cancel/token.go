// Package cancel provides a one-shot cancellation signal with subscribers,
// built on top of context.Context.
//
// A context.Context's Done channel already gives callers a one-shot signal;
// Token adds the subscriber registry (OnCancel/Off) that the pool's internals
// need in order to detach a specific waiter's callback without having to
// spin up a goroutine per subscription.
package cancel

import (
	"context"
	"sync"
)

// Token wraps a context.Context and notifies subscribers exactly once when
// the context is done.
type Token struct {
	ctx context.Context

	mu       sync.Mutex
	canceled bool
	err      error
	subs     map[int]func(error)
	nextID   int
}

// FromContext wraps ctx in a Token. If ctx is nil, the returned Token never
// cancels.
func FromContext(ctx context.Context) *Token {
	t := &Token{
		ctx:  ctx,
		subs: make(map[int]func(error)),
	}

	if ctx == nil {
		return t
	}

	select {
	case <-ctx.Done():
		t.canceled = true
		t.err = ctx.Err()
		return t
	default:
	}

	go t.watch()

	return t
}

func (t *Token) watch() {
	<-t.ctx.Done()

	t.mu.Lock()
	if t.canceled {
		t.mu.Unlock()
		return
	}
	t.canceled = true
	t.err = t.ctx.Err()
	subs := t.subs
	t.subs = nil
	t.mu.Unlock()

	for _, fn := range subs {
		fn(t.err)
	}
}

// Canceled reports whether the token has fired.
func (t *Token) Canceled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.canceled
}

// Err returns the reason the token was canceled, or nil if it hasn't been.
func (t *Token) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// OnCancel registers fn to run exactly once when the token cancels. If the
// token has already canceled, fn runs synchronously before OnCancel returns.
// The returned func unsubscribes fn; it is always safe to call, including
// after fn has already run.
func (t *Token) OnCancel(fn func(err error)) (off func()) {
	t.mu.Lock()

	if t.canceled {
		err := t.err
		t.mu.Unlock()
		fn(err)
		return func() {}
	}

	id := t.nextID
	t.nextID++
	t.subs[id] = fn
	t.mu.Unlock()

	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if t.subs != nil {
			delete(t.subs, id)
		}
	}
}
