// Package crawl is the domain-level use case spec §4.G builds on top of
// the tracking pool: a crawler that dispatches one task per discovered
// identity, dedupes successors, and on Stop folds both unstarted and
// cancelled-but-started work back into a "pending" set for a later
// resume cycle.
package crawl

import (
	"context"
	"sync"

	"github.com/Swind/go-task-runner/core"
)

// PageProcessor is the external collaborator the orchestrator consumes
// to turn one identity into its successor identities. Actual page
// fetching, file-system walking, and indexing are out of scope — this
// interface is the seam the orchestrator's core logic is tested against.
type PageProcessor interface {
	ProcessPage(ctx context.Context, id string) ([]string, error)
}

type crawlItem struct{ id string }

func (c crawlItem) Identity() string { return c.id }

// Orchestrator owns a TrackingPool and drives a crawl over it: pending
// holds identities awaiting dispatch, seen dedupes successors so a
// discovered identity already seen is not submitted again. Start still
// dispatches every pending identity, seen or not, so work folded back by
// Stop is resubmitted on the next Start. pending is guarded by mu; seen
// is a concurrent compare-and-insert set, since successor discovery
// happens in parallel
// across workers.
type Orchestrator struct {
	pool      *core.TrackingPool
	processor PageProcessor
	retry     core.RetryPolicy

	mu      sync.Mutex
	pending map[string]struct{}

	seen sync.Map // map[string]struct{}
}

// New creates an orchestrator with the given pool shape, a PageProcessor
// collaborator, and an initial set of seed identities to crawl on the
// first Start. Transient ProcessPage failures are not retried by
// default; call SetRetryPolicy to change that.
func New(name string, workers int, queueCapacity int, cfg *core.Config, processor PageProcessor, seeds []string) *Orchestrator {
	o := &Orchestrator{
		pool:      core.NewTrackingPool(name, workers, queueCapacity, cfg),
		processor: processor,
		retry:     core.NoRetry(),
		pending:   make(map[string]struct{}, len(seeds)),
	}
	for _, id := range seeds {
		o.pending[id] = struct{}{}
	}
	return o
}

// SetRetryPolicy configures how many times a transient ProcessPage
// failure is retried, with backoff, before an identity's error is
// treated as final. A cancellation-induced failure (IsCancelledIOError)
// is never retried regardless of policy.
func (o *Orchestrator) SetRetryPolicy(policy core.RetryPolicy) {
	o.retry = policy
}

// AddPending adds an identity to the pending set without dispatching it.
// Used to seed a resume cycle before calling Start again.
func (o *Orchestrator) AddPending(id string) {
	o.mu.Lock()
	o.pending[id] = struct{}{}
	o.mu.Unlock()
}

// Start dispatches a crawl task for every identity currently in
// pending, then clears pending. It never holds its lock across a pool
// operation: the snapshot-and-clear happens under the lock, the
// dispatch loop runs after the lock is released.
func (o *Orchestrator) Start() {
	o.mu.Lock()
	idents := make([]string, 0, len(o.pending))
	for id := range o.pending {
		idents = append(idents, id)
	}
	o.pending = make(map[string]struct{})
	o.mu.Unlock()

	for _, id := range idents {
		o.seen.LoadOrStore(id, struct{}{})
		o.dispatch(id)
	}
}

func (o *Orchestrator) dispatch(id string) {
	item := crawlItem{id: id}
	_, err := o.pool.Submit(item, func(ctx context.Context, token *core.Token, interrupt *core.InterruptSignal) (any, error) {
		var successors []string
		err := core.RetryIO(token, o.retry, func() error {
			s, procErr := o.processor.ProcessPage(ctx, id)
			successors = s
			return procErr
		})
		if err != nil {
			return nil, err
		}
		for _, succ := range successors {
			if token.IsTripped() {
				break
			}
			if _, loaded := o.seen.LoadOrStore(succ, struct{}{}); loaded {
				continue
			}
			o.dispatch(succ)
		}
		return successors, nil
	})
	if err != nil {
		// Rejected — the pool is draining or stopping. Hand the
		// identity straight back to pending rather than dropping it.
		o.mu.Lock()
		o.pending[id] = struct{}{}
		o.mu.Unlock()
	}
}

// Stop shuts the pool down abruptly, waits for every in-flight task to
// actually finish, and folds queued-but-unstarted identities together
// with started-but-cancelled identities into pending. It returns the
// resulting pending set.
func (o *Orchestrator) Stop() []string {
	entries := o.pool.ShutdownNow()
	o.pool.AwaitTermination(0)
	cancelledAtShutdown, err := o.pool.CancelledAtShutdown()
	if err != nil {
		cancelledAtShutdown = nil
	}

	o.mu.Lock()
	for _, e := range entries {
		o.pending[e.Item.Identity()] = struct{}{}
	}
	for _, id := range cancelledAtShutdown {
		o.pending[id] = struct{}{}
	}
	out := make([]string, 0, len(o.pending))
	for id := range o.pending {
		out = append(out, id)
	}
	o.mu.Unlock()
	return out
}

// PendingSnapshot returns the identities currently awaiting dispatch,
// without mutating pending.
func (o *Orchestrator) PendingSnapshot() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, 0, len(o.pending))
	for id := range o.pending {
		out = append(out, id)
	}
	return out
}

// Stats exposes the underlying pool's runtime snapshot, for the HTTP
// status surface and the Prometheus snapshot poller.
func (o *Orchestrator) Stats() core.PoolStats { return o.pool.Stats() }
