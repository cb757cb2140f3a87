package core

import "sync"

// TrackingPool wraps a Pool and records the identities of tasks that
// finished with a cancelled outcome while the pool was stopping
// (ShutdownNow). The outcome comes from Pool.finishEntry: a task is
// cancelled if its body returned ErrCancelled or its own Token was
// tripped. ShutdownNow trips the Token of every in-flight task, so such
// a task is recorded even if its body consumed its InterruptSignal with
// Observe and never called Restore — the record is keyed on the
// monotonic Token, not on the consumable signal.
type TrackingPool struct {
	*Pool

	mu        sync.Mutex
	cancelled []string
}

// NewTrackingPool builds a TrackingPool, installing its own AfterExecute
// hook ahead of any caller-supplied one (both run; the caller's hook
// never sees a different Outcome than it would see on a plain Pool).
func NewTrackingPool(name string, workers int, queueCapacity int, cfg *Config) *TrackingPool {
	resolved := cfg.withDefaults()
	userAfter := resolved.Hooks.AfterExecute

	tp := &TrackingPool{}
	resolved.Hooks.AfterExecute = func(item WorkItem, outcome Outcome) {
		if tp.Pool.IsStopping() && outcome.Kind == OutcomeCancelled {
			tp.mu.Lock()
			tp.cancelled = append(tp.cancelled, item.Identity())
			tp.mu.Unlock()
		}
		if userAfter != nil {
			userAfter(item, outcome)
		}
	}

	tp.Pool = NewPool(name, workers, queueCapacity, resolved)
	return tp
}

// CancelledAtShutdown returns the identities recorded as cancelled at
// shutdown. It returns ErrIllegalState unless the pool has reached the
// terminated state — the set is only final once every in-flight task
// has actually finished running.
func (tp *TrackingPool) CancelledAtShutdown() ([]string, error) {
	if poolState(tp.Pool.state.Load()) != stateTerminated {
		return nil, ErrIllegalState
	}
	tp.mu.Lock()
	defer tp.mu.Unlock()
	out := make([]string, len(tp.cancelled))
	copy(out, tp.cancelled)
	return out, nil
}
