package core

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// poolState is the pool's lifecycle: running -> draining|stopping ->
// terminated. draining and stopping are both terminal with respect to
// new submissions; they differ in whether already-running tasks are
// left alone (draining, ShutdownGraceful) or interrupted (stopping,
// ShutdownNow).
type poolState int32

const (
	stateRunning poolState = iota
	stateDraining
	stateStopping
	stateTerminated
)

func (s poolState) String() string {
	switch s {
	case stateRunning:
		return "running"
	case stateDraining:
		return "draining"
	case stateStopping:
		return "stopping"
	case stateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Pool is a fixed-size worker pool with cooperative cancellation.
// Submitted tasks run on one of Workers goroutines pulling from a
// bounded queue. Pool carries its own Token, tripped by ShutdownNow,
// independent of any single task's Handle.Token.
//
// Grounded on the teacher's GoroutineThreadPool worker-loop shape,
// generalized from a fixed Task signature to TaskFunc/WorkItem and from
// the teacher's WaitGroup-only shutdown to the three-state lifecycle
// spec §4.C requires.
type Pool struct {
	name    string
	workers int
	queue   *BoundedQueue[taskEntry]
	cfg     *Config
	token   *Token

	state atomic.Int32

	active              atomic.Int64
	rejected            atomic.Int64
	cancelledAtShutdown atomic.Int64

	mu       sync.Mutex
	inFlight map[*Handle]struct{}

	history executionHistory

	wg sync.WaitGroup

	terminatedOnce sync.Once
	terminatedCh   chan struct{}
}

// NewPool creates a pool with the given number of worker goroutines and
// a bounded queue of the given capacity. cfg may be nil.
func NewPool(name string, workers int, queueCapacity int, cfg *Config) *Pool {
	if workers < 1 {
		workers = 1
	}
	p := &Pool{
		name:         name,
		workers:      workers,
		queue:        NewBoundedQueue[taskEntry](queueCapacity),
		cfg:          cfg.withDefaults(),
		token:        NewToken(),
		inFlight:     make(map[*Handle]struct{}),
		history:      newExecutionHistory(defaultTaskHistoryCapacity),
		terminatedCh: make(chan struct{}),
	}
	if p.cfg.Name != "" {
		p.name = p.cfg.Name
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.runWorker(i)
	}
	return p
}

// Name returns the pool's configured name, used in log fields and
// metric labels.
func (p *Pool) Name() string { return p.name }

// State reports the pool's current lifecycle state.
func (p *Pool) State() string { return poolState(p.state.Load()).String() }

// IsStopping reports whether the pool is in the abrupt-shutdown state
// (ShutdownNow was called, as opposed to ShutdownGraceful). The
// tracking wrapper (TrackingPool) uses this to decide whether a task
// whose outcome was classified cancelled finished while the pool was
// shutting down abruptly.
func (p *Pool) IsStopping() bool {
	return poolState(p.state.Load()) == stateStopping
}

// Submit enqueues fn to run with item as its associated work item and
// returns a Handle for tracking it. Submit returns ErrRejected without
// enqueuing once the pool has started draining or stopping.
func (p *Pool) Submit(item WorkItem, fn TaskFunc) (*Handle, error) {
	state := poolState(p.state.Load())
	if state != stateRunning {
		p.rejected.Add(1)
		p.cfg.Metrics.RecordTaskRejected(p.name, "pool "+state.String())
		p.cfg.RejectedTaskHandler.HandleRejectedTask(p.name, "pool "+state.String())
		return nil, ErrRejected
	}

	handle := newHandle(item)
	entry := taskEntry{item: item, fn: fn, handle: handle}

	if err := p.queue.Put(context.Background(), p.token, entry); err != nil {
		p.rejected.Add(1)
		p.cfg.Metrics.RecordTaskRejected(p.name, err.Error())
		p.cfg.RejectedTaskHandler.HandleRejectedTask(p.name, err.Error())
		return nil, ErrRejected
	}
	p.cfg.Metrics.RecordQueueDepth(p.name, p.queue.Len())
	return handle, nil
}

func (p *Pool) runWorker(id int) {
	defer p.wg.Done()
	ctx := context.Background()
	for {
		entry, err := p.queue.Take(ctx, p.token)
		if err != nil {
			return
		}
		p.runEntry(id, entry)
	}
}

func (p *Pool) runEntry(workerID int, entry taskEntry) {
	p.active.Add(1)
	p.mu.Lock()
	p.inFlight[entry.handle] = struct{}{}
	alreadyStopping := p.token.IsTripped()
	p.mu.Unlock()
	// ShutdownNow trips p.token and snapshots inFlight under the same
	// lock, in that order, so checking IsTripped() here right after
	// registering closes the window between Take returning this entry
	// and the registration above: either our insert lands before the
	// snapshot (and ShutdownNow cancels us) or the trip lands first (and
	// we cancel ourselves right here).
	if alreadyStopping {
		entry.handle.Cancel(true)
	}

	defer func() {
		p.mu.Lock()
		delete(p.inFlight, entry.handle)
		p.mu.Unlock()
		p.active.Add(-1)
	}()

	if p.cfg.Hooks.BeforeExecute != nil {
		if err := p.cfg.Hooks.BeforeExecute(entry.item); err != nil {
			p.finishEntry(workerID, entry, time.Now(), nil, err, false, false)
			return
		}
	}

	startedAt := time.Now()
	result, err, panicked := p.invoke(workerID, entry)
	p.finishEntry(workerID, entry, startedAt, result, err, panicked, true)
}

func (p *Pool) invoke(workerID int, entry taskEntry) (result any, err error, panicked bool) {
	defer func() {
		if rec := recover(); rec != nil {
			panicked = true
			stack := debug.Stack()
			p.cfg.PanicHandler.HandlePanic(p.name, workerID, rec, stack)
			p.cfg.Metrics.RecordTaskPanic(p.name, rec)
			err = NewTaskError(fmt.Errorf("panic: %v", rec))
		}
	}()
	result, err = entry.fn(context.Background(), entry.handle.token, entry.handle.interrupt)
	return result, err, panicked
}

func (p *Pool) finishEntry(workerID int, entry taskEntry, startedAt time.Time, result any, err error, panicked bool, runAfter bool) {
	finishedAt := time.Now()

	outcome := OutcomeOK
	switch {
	case panicked:
		outcome = OutcomeError
	case err == ErrCancelled || entry.handle.token.IsTripped():
		outcome = OutcomeCancelled
	case err == ErrTimeout:
		outcome = OutcomeTimeout
	case err != nil:
		outcome = OutcomeError
	}

	if outcome == OutcomeCancelled && p.IsStopping() {
		p.cancelledAtShutdown.Add(1)
		p.cfg.Metrics.RecordCancelledAtShutdown(p.name)
	}

	entry.handle.finish(result, err)

	p.history.Add(ExecutionRecord{
		Identity:   entry.item.Identity(),
		PoolName:   p.name,
		Outcome:    outcome,
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
		Duration:   finishedAt.Sub(startedAt),
		Panicked:   panicked,
	})
	p.cfg.Metrics.RecordTaskDuration(p.name, outcome, finishedAt.Sub(startedAt))

	if runAfter && p.cfg.Hooks.AfterExecute != nil {
		p.cfg.Hooks.AfterExecute(entry.item, Outcome{Kind: outcome, Value: result, Err: err})
	}
}

// ShutdownGraceful stops accepting new submissions and lets already
// queued and already running tasks finish normally. It does not
// interrupt anything.
func (p *Pool) ShutdownGraceful() {
	if !p.state.CompareAndSwap(int32(stateRunning), int32(stateDraining)) {
		return
	}
	p.queue.Close()
	p.watchTermination()
}

// ShutdownNow stops accepting new submissions, trips the pool token so
// every blocked Take/Put and every running task's suspension points see
// cancellation, raises the interrupt signal on every in-flight task, and
// returns the Entries that were still sitting in the queue unstarted —
// ownership of those is handed back to the caller (the crawl
// orchestrator folds them back into its pending set).
func (p *Pool) ShutdownNow() []Entry {
	prior := poolState(p.state.Load())
	if prior == stateTerminated {
		return nil
	}
	p.state.Store(int32(stateStopping))
	p.queue.Close()

	drained := p.queue.DrainAll()
	out := make([]Entry, 0, len(drained))
	for _, entry := range drained {
		entry.handle.Cancel(true)
		out = append(out, Entry{Item: entry.item, Handle: entry.handle})
	}

	// Trip and snapshot under the same lock runEntry uses for its own
	// insert-then-check, so a task that was taken off the queue but had
	// not yet registered in inFlight is never missed: it either lands in
	// this snapshot or sees the trip itself.
	p.mu.Lock()
	p.token.Trip()
	inFlight := make([]*Handle, 0, len(p.inFlight))
	for h := range p.inFlight {
		inFlight = append(inFlight, h)
	}
	p.mu.Unlock()
	for _, h := range inFlight {
		h.Cancel(true)
	}

	p.watchTermination()
	return out
}

func (p *Pool) watchTermination() {
	go func() {
		p.wg.Wait()
		p.state.Store(int32(stateTerminated))
		p.terminatedOnce.Do(func() {
			if p.cfg.Hooks.Terminated != nil {
				p.cfg.Hooks.Terminated()
			}
			close(p.terminatedCh)
		})
	}()
}

// AwaitTermination blocks until the pool reaches the terminated state
// or deadline elapses (deadline<=0 means wait forever). It returns true
// if termination was observed.
func (p *Pool) AwaitTermination(deadline time.Duration) bool {
	if deadline <= 0 {
		<-p.terminatedCh
		return true
	}
	timer := time.NewTimer(deadline)
	defer timer.Stop()
	select {
	case <-p.terminatedCh:
		return true
	case <-timer.C:
		return false
	}
}

// Stats returns a point-in-time snapshot of the pool's runtime state.
func (p *Pool) Stats() PoolStats {
	last, ok := p.history.Last()
	stats := PoolStats{
		Name:                p.name,
		State:               poolState(p.state.Load()).String(),
		Workers:             p.workers,
		Queued:              p.queue.Len(),
		Active:              int(p.active.Load()),
		Rejected:            p.rejected.Load(),
		CancelledAtShutdown: p.cancelledAtShutdown.Load(),
	}
	if ok {
		stats.LastIdentity = last.Identity
		stats.LastTaskAt = last.FinishedAt
	}
	return stats
}

// RecentHistory returns up to limit recent execution records, most
// recent first. limit<=0 returns everything retained.
func (p *Pool) RecentHistory(limit int) []ExecutionRecord {
	return p.history.Recent(limit)
}
