package respool

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/tpelling/go-respool/cancel"
	"github.com/tpelling/go-respool/future"
)

// createFailureThreshold is the number of consecutive Factory.Create
// failures after which the pool gives up and closes itself.
const createFailureThreshold = 10

// Factory supplies the pool with resources. Create is required; Destroy is
// required to release whatever Create acquired; Reset is optional and, if
// provided, is invoked synchronously on every Release to let the caller
// discard a resource that was left in a bad state.
type Factory[T any] struct {
	Create  func(ctx context.Context) (T, error)
	Destroy func(ctx context.Context, item T) error
	Reset   func(item T) error
}

// waiter is a FIFO queue entry: a request handle plus the bookkeeping needed
// to splice it out of waitQueue the moment its token cancels.
type waiter[T any] struct {
	promise   *future.Promise[T]
	enqueued  time.Time
	listElem  *list.Element
}

// Pool multiplexes a bounded set of T resources between concurrent callers.
// The zero value is not usable; construct with New.
type Pool[T comparable] struct {
	factory Factory[T]
	now     func() time.Time

	mu sync.Mutex

	options Options

	idle      []*element[T]
	active    map[T]*element[T]
	waitQueue *list.List // of *waiter[T]

	creating       int
	destroying     int
	createFailures int
	growing        bool

	closing   bool
	closed    bool
	waitClose *future.Promise[struct{}]

	sweepTimer    *time.Timer
	sweepDeadline time.Time

	waitDuration      time.Duration
	maxIdleClosed     int64
	maxIdleTimeClosed int64
	maxLifetimeClosed int64

	errorHandlers map[int]errorHandler
	nextHandlerID int
}

// New constructs a Pool. factory.Create and factory.Destroy are required.
func New[T comparable](factory Factory[T], opts Options) (*Pool[T], error) {
	if factory.Create == nil {
		return nil, errors.New("respool: Factory.Create is required")
	}
	if factory.Destroy == nil {
		return nil, errors.New("respool: Factory.Destroy is required")
	}
	if err := opts.check(); err != nil {
		return nil, err
	}

	p := &Pool[T]{
		factory:       factory,
		now:           time.Now,
		options:       opts,
		active:        make(map[T]*element[T]),
		waitQueue:     list.New(),
		errorHandlers: make(map[int]errorHandler),
	}

	return p, nil
}

// Get returns an item from the pool, blocking until one is available, ctx is
// done, or the pool closes. If idle items exist, one is returned immediately
// (LIFO) without an expiry check — expiry is purely a sweep/release concern,
// so a just-released item is never bounced back at the next caller.
func (p *Pool[T]) Get(ctx context.Context) (T, error) {
	var zero T

	p.mu.Lock()

	if p.closed {
		p.mu.Unlock()
		return zero, ErrClosed
	}
	if p.closing {
		p.mu.Unlock()
		return zero, ErrClosing
	}

	tok := cancel.FromContext(ctx)
	if tok.Canceled() {
		p.mu.Unlock()
		return zero, future.TagCanceled(ErrCanceled)
	}

	if n := len(p.idle); n > 0 {
		e := p.idle[n-1]
		p.idle = p.idle[:n-1]
		e.markActive()
		p.active[e.item] = e
		p.mu.Unlock()
		go p.grow()
		return e.item, nil
	}

	promise := future.NewCancelablePromise[T](tok, func() error { return ErrCanceled })
	w := &waiter[T]{promise: promise, enqueued: p.now()}
	w.listElem = p.waitQueue.PushBack(w)
	p.mu.Unlock()

	// Registered after releasing p.mu: if tok is already canceled, OnCancel
	// invokes this callback synchronously on this goroutine, which would
	// deadlock against its own lock if called while p.mu were still held.
	off := tok.OnCancel(func(error) {
		p.mu.Lock()
		if w.listElem != nil {
			p.waitQueue.Remove(w.listElem)
			w.listElem = nil
		}
		p.mu.Unlock()
	})

	go p.grow()

	item, err := promise.Await(context.Background())
	off()
	return item, err
}

// Release returns item to the pool. If item does not belong to the pool (or
// is no longer active — e.g. it was already released), it is destroyed
// instead of pooled.
func (p *Pool[T]) Release(item T) {
	p.mu.Lock()

	e, ok := p.active[item]
	if !ok {
		p.mu.Unlock()
		p.destroy(item)
		return
	}
	delete(p.active, item)

	if p.factory.Reset != nil {
		if err := p.factory.Reset(item); err != nil {
			p.mu.Unlock()
			p.emitError(ActionReset, errors.Wrap(err, "respool: reset"))
			p.destroy(item)
			return
		}
	}

	p.offerAvailable(e)
	p.mu.Unlock()
}

// offerAvailable decides the fate of a just-released (or just-created)
// element: destroy it, hand it straight to the oldest waiter, pool it, or
// destroy it as excess. Must be called with p.mu held; does not itself
// release the lock.
func (p *Pool[T]) offerAvailable(e *element[T]) {
	now := p.now()

	if p.closing || p.isExpired(e, now) {
		p.mu.Unlock()
		p.destroy(e.item)
		p.mu.Lock()
		return
	}

	if positiveInt(p.options.MaxOpenCount) && len(p.active)+len(p.idle) >= p.options.MaxOpenCount {
		p.maxIdleClosed++
		p.mu.Unlock()
		p.destroy(e.item)
		p.mu.Lock()
		return
	}

	if front := p.waitQueue.Front(); front != nil {
		w := front.Value.(*waiter[T])
		p.waitQueue.Remove(front)
		w.listElem = nil
		p.waitDuration += p.now().Sub(w.enqueued)

		e.markActive()
		p.active[e.item] = e
		p.mu.Unlock()
		w.promise.Resolve(e.item)
		p.mu.Lock()
		return
	}

	if p.options.MaxIdleCount <= 0 || len(p.idle) < p.options.MaxIdleCount {
		e.markIdle(now)
		p.idle = append(p.idle, e)
		if ttl, ok := p.ttl(e, now); ok {
			p.pushSweep(ttl)
		}
		return
	}

	p.maxIdleClosed++
	p.mu.Unlock()
	p.destroy(e.item)
	p.mu.Lock()
}

// positiveInt distinguishes "cap is active" (a positive limit) from "cap is
// off" (zero or negative); zero is disallowed for MaxOpenCount and negative
// means unlimited.
func positiveInt(n int) bool { return n > 0 }

// grow is a re-entrancy-guarded background routine that tops creation up to
// satisfy outstanding waiters, bounded by MaxOpenCount.
func (p *Pool[T]) grow() {
	p.mu.Lock()
	// A failure count at the threshold means a Close is already on its way;
	// starting more creates before it lands would report extra failures.
	if p.growing || p.closing || p.createFailures >= createFailureThreshold {
		p.mu.Unlock()
		return
	}
	p.growing = true

	needed := p.waitQueue.Len()
	if positiveInt(p.options.MaxOpenCount) {
		if room := p.options.MaxOpenCount - len(p.active); room < needed {
			needed = room
		}
	}
	needed -= p.creating
	parallel := p.options.ParallelCreate
	p.mu.Unlock()

	if needed > 0 {
		if parallel {
			var g errgroup.Group
			g.SetLimit(needed)
			for i := 0; i < needed; i++ {
				g.Go(func() error {
					p.create()
					return nil
				})
			}
			_ = g.Wait()
		} else {
			p.create()
		}
	}

	p.mu.Lock()
	p.growing = false
	requeue := !p.closing && p.waitQueue.Len() > 0 && p.creating == 0
	p.mu.Unlock()

	if requeue {
		go p.grow()
	}

	p.flush()
}

// create invokes factory.Create and, on success, offers the new element to
// the oldest waiter or the idle pool. Reaching createFailureThreshold
// consecutive failures triggers a pool-wide Close.
func (p *Pool[T]) create() {
	p.mu.Lock()
	p.creating++
	p.mu.Unlock()

	item, err := p.factory.Create(context.Background())

	if err != nil {
		p.mu.Lock()
		p.creating--
		p.createFailures++
		shouldClose := p.createFailures >= createFailureThreshold
		p.mu.Unlock()

		p.emitError(ActionCreate, errors.Wrap(err, "respool: create"))

		if shouldClose {
			go func() { _ = p.Close(context.Background(), nil) }()
		}
		return
	}

	p.mu.Lock()
	p.createFailures = 0
	p.creating--

	if p.closing || p.closed {
		p.mu.Unlock()
		p.destroy(item)
		return
	}

	e := newElement(item, p.now())
	p.offerAvailable(e)
	p.mu.Unlock()
}

// destroy invokes factory.Destroy. A Destroy error is reported via OnError
// but the item is still considered destroyed — the factory is responsible
// for freeing its own resources even when Destroy itself fails.
func (p *Pool[T]) destroy(item T) {
	p.mu.Lock()
	p.destroying++
	p.mu.Unlock()

	p.runDestroy(item)
}

// runDestroy does the actual factory.Destroy call and accounting for an item
// whose destroying slot has already been reserved by the caller (under
// p.mu). Used when a batch of destroys is dispatched to goroutines, so the
// counter reflects the batch before flush can observe it as zero.
func (p *Pool[T]) runDestroy(item T) {
	if err := p.factory.Destroy(context.Background(), item); err != nil {
		p.emitError(ActionDestroy, errors.Wrap(err, "respool: destroy"))
	}

	p.mu.Lock()
	p.destroying--
	done := p.destroying == 0
	p.mu.Unlock()

	if done {
		p.flush()
	}
}

// Close transitions the pool through closing -> closed. It rejects all
// waiters with ErrClosing, destroys idle elements, and — if reclaim is
// non-nil — invokes reclaim on every in-use item. reclaim's contract is that
// it will eventually cause Release to run, either immediately or via the
// caller's own shutdown path; if it never does, Close never resolves. Close
// is idempotent: concurrent and repeated calls all observe the same
// completion.
func (p *Pool[T]) Close(ctx context.Context, reclaim func(item T)) error {
	p.mu.Lock()

	if p.closed {
		p.mu.Unlock()
		return nil
	}
	if p.closing {
		wc := p.waitClose
		p.mu.Unlock()
		_, err := wc.Await(ctx)
		return err
	}

	p.closing = true
	p.waitClose = future.NewPromise[struct{}]()
	p.cancelSweep()

	waiters := make([]*waiter[T], 0, p.waitQueue.Len())
	for el := p.waitQueue.Front(); el != nil; el = el.Next() {
		waiters = append(waiters, el.Value.(*waiter[T]))
	}
	p.waitQueue.Init()

	idle := p.idle
	p.idle = nil
	p.destroying += len(idle) // reserved up front so flush can't race a late-starting goroutine

	active := make([]T, 0, len(p.active))
	if reclaim != nil {
		for item := range p.active {
			active = append(active, item)
		}
	}

	wc := p.waitClose
	p.mu.Unlock()

	for _, w := range waiters {
		w.promise.Reject(ErrClosing)
	}
	for _, e := range idle {
		go p.runDestroy(e.item)
	}
	for _, item := range active {
		reclaim(item)
	}

	p.flush()

	_, err := wc.Await(ctx)
	return err
}

// flush checks whether the pool has fully quiesced (no creates, no destroys,
// no active items) while closing, and if so transitions it to closed.
func (p *Pool[T]) flush() {
	p.mu.Lock()
	ready := p.closing && !p.closed && p.destroying == 0 && p.creating == 0 && len(p.active) == 0
	if ready {
		p.closed = true
	}
	wc := p.waitClose
	p.mu.Unlock()

	if ready && wc != nil {
		wc.Resolve(struct{}{})
	}
}

// SetOptions applies patch, validating it synchronously (a failure leaves the
// pool's configuration unchanged), then takes whatever immediate action the
// changed fields call for: rescheduling or cancelling the sweep timer,
// shrinking idle/active capacity, or triggering a grow pass.
func (p *Pool[T]) SetOptions(patch OptionsPatch) error {
	p.mu.Lock()

	prev := p.options
	next, err := prev.apply(patch)
	if err != nil {
		p.mu.Unlock()
		return err
	}
	p.options = next

	lifetimeOrIdleChanged := patch.MaxLifetime != nil || patch.MaxIdleTime != nil
	if lifetimeOrIdleChanged {
		if !positive(next.MaxLifetime) && !positive(next.MaxIdleTime) {
			p.cancelSweep()
		} else if len(p.idle) > 0 {
			p.pushSweep(0)
		}
	}

	var toDestroy []*element[T]
	if patch.MaxOpenCount != nil && positiveInt(next.MaxOpenCount) {
		for len(p.active)+len(p.idle) > next.MaxOpenCount && len(p.idle) > 0 {
			e := p.idle[0]
			p.idle = p.idle[1:]
			p.maxIdleClosed++
			toDestroy = append(toDestroy, e)
		}
	}
	if patch.MaxIdleCount != nil && positiveInt(next.MaxIdleCount) {
		for len(p.idle) > next.MaxIdleCount && len(p.idle) > 0 {
			e := p.idle[0]
			p.idle = p.idle[1:]
			p.maxIdleClosed++
			toDestroy = append(toDestroy, e)
		}
	}

	needsGrow := patch.MaxOpenCount != nil && p.waitQueue.Len() > 0
	p.destroying += len(toDestroy)

	p.mu.Unlock()

	for _, e := range toDestroy {
		go p.runDestroy(e.item)
	}
	if needsGrow {
		go p.grow()
	}

	return nil
}

// Stats returns a point-in-time snapshot of the pool's counters.
func (p *Pool[T]) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	return Stats{
		MaxOpenCount: p.options.MaxOpenCount,
		MaxLifetime:  p.options.MaxLifetime,
		MaxIdleTime:  p.options.MaxIdleTime,
		MaxIdleCount: p.options.MaxIdleCount,

		Count:      len(p.active) + len(p.idle),
		InUseCount: len(p.active),
		IdleCount:  len(p.idle),
		WaitCount:  p.waitQueue.Len(),

		WaitDuration:      p.waitDuration,
		MaxIdleClosed:     p.maxIdleClosed,
		MaxIdleTimeClosed: p.maxIdleTimeClosed,
		MaxLifetimeClosed: p.maxLifetimeClosed,
	}
}
