package core

import (
	"sync"
	"sync/atomic"
)

// Token is a one-shot cancellation signal. It is armed at construction
// and trips exactly once; the transition is one-way and idempotent.
// Polling IsTripped is wait-free (a single atomic load). Trip establishes
// a happens-before edge to any subsequent IsTripped observation returning
// true through that atomic flag, and to any receive on Done through Go's
// channel close/receive ordering.
//
// Token plays the role of the source language's thread-interrupt bit for
// the purposes of waking blocked suspensions, but — unlike that bit — it
// can never be cleared. See InterruptSignal for the consumable analogue
// used to model clear/restore hazards (spec §9's open question).
type Token struct {
	mu      sync.Mutex
	tripped atomic.Bool
	done    chan struct{}
	wakers  []func()
}

// NewToken returns an armed, untripped token.
func NewToken() *Token {
	return &Token{done: make(chan struct{})}
}

// Trip transitions the token from armed to tripped. Idempotent: the
// second and later calls are no-ops. Registered wakers run at most once,
// never under the token's internal lock.
func (t *Token) Trip() {
	t.mu.Lock()
	if t.tripped.Load() {
		t.mu.Unlock()
		return
	}
	t.tripped.Store(true)
	wakers := t.wakers
	t.wakers = nil
	close(t.done)
	t.mu.Unlock()

	for _, wake := range wakers {
		wake()
	}
}

// IsTripped reports the current state without blocking.
func (t *Token) IsTripped() bool {
	return t.tripped.Load()
}

// Check returns ErrCancelled if the token has tripped, else nil. It is
// the non-blocking cancellation check suspension points use before and
// after blocking.
func (t *Token) Check() error {
	if t.IsTripped() {
		return ErrCancelled
	}
	return nil
}

// Done returns a channel that closes when the token trips. Blocking
// operations select on it alongside their own readiness channel so a
// trip unblocks them promptly.
func (t *Token) Done() <-chan struct{} {
	return t.done
}

// Register installs a one-shot waker invoked when the token trips. If
// the token has already tripped, waker runs immediately (synchronously,
// on the calling goroutine) and is never invoked under the token's lock
// either way.
func (t *Token) Register(waker func()) {
	if waker == nil {
		return
	}
	t.mu.Lock()
	if t.tripped.Load() {
		t.mu.Unlock()
		waker()
		return
	}
	t.wakers = append(t.wakers, waker)
	t.mu.Unlock()
}

// InterruptSignal is a consumable, clearable bit layered over a Token.
// Observe reports and clears it in one step, mirroring
// Thread.interrupted() in the source language: code that intercepts the
// signal for a purpose unrelated to the task's own cancellation handling
// must call Restore with the value Observe returned before returning
// control to code it does not own, or the real recipient further up the
// call stack will never see the cancellation.
type InterruptSignal struct {
	mu      sync.Mutex
	pending bool
}

// Raise sets the pending bit. Called by Handle.Cancel(interrupt=true).
func (s *InterruptSignal) Raise() {
	s.mu.Lock()
	s.pending = true
	s.mu.Unlock()
}

// Observe reports whether the signal is pending and clears it.
func (s *InterruptSignal) Observe() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	observed := s.pending
	s.pending = false
	return observed
}

// Restore re-raises the signal if observed is true. Call this at the end
// of any helper that called Observe for a reason other than acting on
// the cancellation itself.
func (s *InterruptSignal) Restore(observed bool) {
	if observed {
		s.Raise()
	}
}
