package core

import (
	"context"
	"sync"
	"time"
)

// Handle is returned by Pool.Submit. It is the caller's window onto a
// single task's lifecycle: waiting for its result, or cancelling it.
//
// Thread-starvation hazard: a task waiting on the Await of another
// handle submitted to the *same* pool can deadlock if the pool has no
// free worker to run that other task. The pool does not detect this —
// spec §4.C calls it out explicitly as a known, undetected hazard.
type Handle struct {
	item      WorkItem
	token     *Token
	interrupt *InterruptSignal

	done chan struct{}

	mu     sync.Mutex
	result any
	err    error

	cancelOnce sync.Once
}

func newHandle(item WorkItem) *Handle {
	return &Handle{
		item:      item,
		token:     NewToken(),
		interrupt: &InterruptSignal{},
		done:      make(chan struct{}),
	}
}

// Item returns the work item this handle tracks.
func (h *Handle) Item() WorkItem { return h.item }

// Interrupt exposes the task's consumable interrupt signal. Task bodies
// use it to check their own cancellation state at suspension points. The
// tracking wrapper (core.TrackingPool) does not read it: a task counts as
// cancelled at shutdown by its returned error or its tripped Token.
func (h *Handle) Interrupt() *InterruptSignal { return h.interrupt }

// Token returns the task's own cancellation token.
func (h *Handle) Token() *Token { return h.token }

func (h *Handle) finish(result any, err error) {
	h.mu.Lock()
	h.result, h.err = result, err
	h.mu.Unlock()
	close(h.done)
}

// IsDone reports whether the task has finished (successfully, with an
// error, or cancelled).
func (h *Handle) IsDone() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Await blocks until the task finishes or deadline elapses (deadline<=0
// means wait forever, subject to ctx). On timeout it returns ErrTimeout
// and — as a side effect — cancels the handle with interrupt delivery to
// release the worker slot. On outer ctx cancellation it returns
// ErrCancelled and cancels the handle the same way.
func (h *Handle) Await(ctx context.Context, deadline time.Duration) (any, error) {
	var timeoutCh <-chan time.Time
	if deadline > 0 {
		timer := time.NewTimer(deadline)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	var ctxDone <-chan struct{}
	if ctx != nil {
		ctxDone = ctx.Done()
	}

	select {
	case <-h.done:
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.result, h.err
	case <-timeoutCh:
		h.Cancel(true)
		return nil, ErrTimeout
	case <-ctxDone:
		h.Cancel(true)
		return nil, ErrCancelled
	}
}

// Cancel trips the task's token and, if interrupt is true, raises its
// consumable interrupt signal so a running task's next suspension point
// observes cancellation. Idempotent: later calls are no-ops.
func (h *Handle) Cancel(interrupt bool) {
	h.cancelOnce.Do(func() {
		h.token.Trip()
		if interrupt {
			h.interrupt.Raise()
		}
	})
}
