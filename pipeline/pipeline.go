// Package pipeline implements the bounded producer/consumer poison-pill
// pattern (spec §4.F): N producers and M consumers share one queue;
// each producer, once it has no more real work, posts one poison pill
// per consumer, so N×M pills are posted in all, and each consumer stops
// after taking N of them. Pills are counted, not matched to the producer
// that posted them, and no producer needs to know how many items any
// consumer has already taken.
package pipeline

import (
	"context"

	"github.com/Swind/go-task-runner/core"
)

// Envelope wraps either a real item or a poison pill on the shared
// queue. Pill is never inspected by producer code; it exists purely so
// Pipeline.Consumer can tell the two apart.
type Envelope[T any] struct {
	pill bool
	item T
}

// Pipeline is the shared unbounded queue plus the fixed consumer count
// every producer needs to know in order to post the right number of
// pills. It is backed by core.UnboundedQueue so Post never blocks and
// never fails — spec §4.F's progress requirement ("a producer must
// always be able to post its pills") holds by construction rather than
// by a retry loop.
type Pipeline[T any] struct {
	queue     *core.UnboundedQueue[Envelope[T]]
	consumers int
}

// New creates a pipeline for the given fixed number of consumers.
// consumers must be known up front — it is baked into how many pills
// each producer posts on FinishProducer.
func New[T any](consumers int) *Pipeline[T] {
	if consumers < 1 {
		consumers = 1
	}
	return &Pipeline[T]{
		queue:     core.NewUnboundedQueue[Envelope[T]](),
		consumers: consumers,
	}
}

// Post enqueues a real work item. Safe to call from any number of
// concurrent producer goroutines.
func (p *Pipeline[T]) Post(item T) {
	p.queue.Put(Envelope[T]{item: item})
}

// FinishProducer posts one poison pill per consumer, signalling that
// this producer has no more real items to post. Call it exactly once
// per producer, after its last Post.
func (p *Pipeline[T]) FinishProducer() {
	for i := 0; i < p.consumers; i++ {
		p.queue.Put(Envelope[T]{pill: true})
	}
}

// Len reports the number of envelopes — items and pills alike —
// currently queued.
func (p *Pipeline[T]) Len() int { return p.queue.Len() }

// NewConsumer returns a Consumer that exits once it has taken as many
// pills as the given number of producers, whichever producers posted
// them. producers must match the number of distinct callers of
// FinishProducer.
func (p *Pipeline[T]) NewConsumer(producers int) *Consumer[T] {
	return &Consumer[T]{pipeline: p, producers: producers}
}

// Consumer tracks one consumer's count of pills taken, toward one per
// producer. It is not safe for concurrent use — each
// consumer goroutine owns its own Consumer.
type Consumer[T any] struct {
	pipeline  *Pipeline[T]
	producers int
	pillsSeen int
}

// Take returns the next real item, or ok=false once this consumer has
// taken as many pills as there are producers — the signal to stop
// calling Take.
// Pills never reach the caller; Take loops internally past them,
// counting as it goes.
func (c *Consumer[T]) Take(ctx context.Context, token *core.Token) (item T, ok bool, err error) {
	for {
		env, terr := c.pipeline.queue.Take(ctx, token)
		if terr != nil {
			var zero T
			return zero, false, terr
		}
		if env.pill {
			c.pillsSeen++
			if c.pillsSeen >= c.producers {
				var zero T
				return zero, false, nil
			}
			continue
		}
		return env.item, true, nil
	}
}

// Done reports whether this consumer has already taken as many pills as
// there are producers.
func (c *Consumer[T]) Done() bool { return c.pillsSeen >= c.producers }
