package core

import (
	"context"
	"time"
)

// Run submits fn to pool and waits up to deadline for it to finish,
// cancelling it with interrupt delivery if the deadline elapses or ctx
// is cancelled first — the scoped-acquisition pattern from spec §4.E,
// expressed as defer handle.Cancel(true) so the task is released
// whichever way Await returns.
func Run(ctx context.Context, pool *Pool, item WorkItem, fn TaskFunc, deadline time.Duration) (any, error) {
	handle, err := pool.Submit(item, fn)
	if err != nil {
		return nil, err
	}
	defer handle.Cancel(true)

	return handle.Await(ctx, deadline)
}
