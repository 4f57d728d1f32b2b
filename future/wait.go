package future

import (
	"errors"
	"time"

	"github.com/tpelling/go-respool/cancel"
)

// ErrTimeout is the rejection reason used by Limit when a ms/deadline bound
// elapses before the input settles.
var ErrTimeout = errors.New("future: timed out")

// Bound is a race condition for Limit/Wait: a ms timeout, an absolute
// deadline, or a cancellation token.
type Bound interface {
	bound()
}

type timeoutBound struct{ d time.Duration }

func (timeoutBound) bound() {}

// WithTimeout bounds an operation by a duration measured from the moment
// Limit/Wait is called. A duration <= 0 is an immediate bound.
func WithTimeout(d time.Duration) Bound { return timeoutBound{d} }

type deadlineBound struct{ t time.Time }

func (deadlineBound) bound() {}

// WithDeadline bounds an operation by an absolute point in time, converted
// internally to a duration.
func WithDeadline(t time.Time) Bound { return deadlineBound{t} }

type tokenBound struct{ tok *cancel.Token }

func (tokenBound) bound() {}

// WithToken bounds an operation by a cancellation token.
func WithToken(tok *cancel.Token) Bound { return tokenBound{tok} }

// Limit returns a promise that resolves to p's value, or rejects with a
// cancellation/timeout error, whichever happens first. p itself is not
// canceled by Limit — it runs to completion, but its late resolution is
// ignored once Limit's result has settled.
func Limit[T any](p *Promise[T], bound Bound) *Promise[T] {
	out := NewPromise[T]()

	switch b := bound.(type) {
	case timeoutBound:
		if b.d <= 0 {
			out.Reject(TagCanceled(ErrTimeout))
			return out
		}
		timer := time.NewTimer(b.d)
		go func() {
			defer timer.Stop()
			select {
			case <-p.Done():
				v, err := p.Result()
				out.settleFrom(v, err)
			case <-timer.C:
				out.Reject(TagCanceled(ErrTimeout))
			}
		}()

	case deadlineBound:
		return Limit(p, WithTimeout(time.Until(b.t)))

	case tokenBound:
		if b.tok == nil {
			go func() {
				<-p.Done()
				v, err := p.Result()
				out.settleFrom(v, err)
			}()
			return out
		}
		if b.tok.Canceled() {
			out.Reject(TagCanceled(b.tok.Err()))
			return out
		}
		off := b.tok.OnCancel(func(err error) {
			out.Reject(TagCanceled(err))
		})
		go func() {
			select {
			case <-p.Done():
				off()
				v, err := p.Result()
				out.settleFrom(v, err)
			case <-out.Done():
			}
		}()
	}

	return out
}

func (p *Promise[T]) settleFrom(value T, err error) {
	if err != nil {
		p.Reject(err)
		return
	}
	p.Resolve(value)
}

// Wait returns a promise that resolves after bound elapses or its token
// cancels. A non-positive duration, a past deadline, an already-canceled
// token, or a nil token resolves immediately. A non-nil token that can never
// cancel (for example one built from a nil context) leaves the returned
// promise pending forever.
func Wait(bound Bound) *Promise[struct{}] {
	out := NewPromise[struct{}]()

	switch b := bound.(type) {
	case timeoutBound:
		if b.d <= 0 {
			out.Resolve(struct{}{})
			return out
		}
		timer := time.NewTimer(b.d)
		go func() {
			<-timer.C
			out.Resolve(struct{}{})
		}()

	case deadlineBound:
		return Wait(WithTimeout(time.Until(b.t)))

	case tokenBound:
		if b.tok == nil || b.tok.Canceled() {
			out.Resolve(struct{}{})
			return out
		}
		b.tok.OnCancel(func(error) {
			out.Resolve(struct{}{})
		})
	}

	return out
}
