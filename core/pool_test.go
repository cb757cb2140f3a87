package core

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type countingPanicHandler struct {
	calls atomic.Int32
}

func (h *countingPanicHandler) HandlePanic(poolName string, workerID int, panicInfo any, stackTrace []byte) {
	h.calls.Add(1)
}

func TestPool_SubmitRunsTaskAndReturnsResult(t *testing.T) {
	// Arrange
	p := NewPool("test", 2, 4, nil)
	defer p.ShutdownNow()

	// Act
	handle, err := p.Submit(stubItem("a"), func(ctx context.Context, token *Token, interrupt *InterruptSignal) (any, error) {
		return "done", nil
	})
	if err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}
	got, err := handle.Await(context.Background(), time.Second)

	// Assert
	if err != nil {
		t.Fatalf("Await() failed: %v", err)
	}
	if got != "done" {
		t.Errorf("Await() result = %v, want %q", got, "done")
	}
}

func TestPool_ShutdownGraceful_LetsQueuedTasksFinish(t *testing.T) {
	// Arrange - single worker, several quick tasks queued ahead of shutdown
	p := NewPool("test", 1, 8, nil)
	var completed atomic.Int32

	for i := 0; i < 5; i++ {
		_, err := p.Submit(stubItem("a"), func(ctx context.Context, token *Token, interrupt *InterruptSignal) (any, error) {
			time.Sleep(5 * time.Millisecond)
			completed.Add(1)
			return nil, nil
		})
		if err != nil {
			t.Fatalf("Submit() failed: %v", err)
		}
	}

	// Act
	p.ShutdownGraceful()
	if !p.AwaitTermination(2 * time.Second) {
		t.Fatal("AwaitTermination() timed out")
	}

	// Assert
	if got := completed.Load(); got != 5 {
		t.Errorf("completed = %d, want 5", got)
	}
	if _, err := p.Submit(stubItem("b"), nil); err != ErrRejected {
		t.Errorf("Submit() after terminated = %v, want ErrRejected", err)
	}
}

func TestPool_ShutdownNow_ReturnsUnstartedAndCancelsRunning(t *testing.T) {
	// Arrange - single worker: first task occupies the worker and blocks
	// on cancellation, second task never starts and sits in the queue.
	p := NewPool("test", 1, 8, nil)

	runningHandle, err := p.Submit(stubItem("running"), func(ctx context.Context, token *Token, interrupt *InterruptSignal) (any, error) {
		<-token.Done()
		return nil, ErrCancelled
	})
	if err != nil {
		t.Fatalf("Submit(running) failed: %v", err)
	}

	// give the worker a chance to pick up the first task
	time.Sleep(20 * time.Millisecond)

	queuedHandle, err := p.Submit(stubItem("queued"), func(ctx context.Context, token *Token, interrupt *InterruptSignal) (any, error) {
		return nil, nil
	})
	if err != nil {
		t.Fatalf("Submit(queued) failed: %v", err)
	}

	// Act
	entries := p.ShutdownNow()

	// Assert
	if len(entries) != 1 {
		t.Fatalf("ShutdownNow() returned %d entries, want 1", len(entries))
	}
	if entries[0].Item.Identity() != "queued" {
		t.Errorf("unstarted entry identity = %q, want %q", entries[0].Item.Identity(), "queued")
	}
	if entries[0].Handle != queuedHandle {
		t.Error("unstarted entry handle does not match the handle Submit returned")
	}

	if _, err := runningHandle.Await(context.Background(), time.Second); err != ErrCancelled {
		t.Errorf("running task outcome = %v, want ErrCancelled", err)
	}

	if !p.AwaitTermination(2 * time.Second) {
		t.Fatal("AwaitTermination() timed out")
	}
}

func TestPool_PanicRecoveryInvokesPanicHandler(t *testing.T) {
	// Arrange
	handler := &countingPanicHandler{}
	p := NewPool("test", 1, 4, &Config{PanicHandler: handler})
	defer p.ShutdownNow()

	// Act
	handle, err := p.Submit(stubItem("a"), func(ctx context.Context, token *Token, interrupt *InterruptSignal) (any, error) {
		panic("boom")
	})
	if err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}
	_, err = handle.Await(context.Background(), time.Second)

	// Assert
	if err == nil {
		t.Fatal("Await() after panic = nil error, want non-nil")
	}
	var taskErr *TaskError
	if !errors.As(err, &taskErr) {
		t.Errorf("Await() error = %v, want *TaskError", err)
	}
	if handler.calls.Load() != 1 {
		t.Errorf("PanicHandler calls = %d, want 1", handler.calls.Load())
	}
}

func TestPool_HooksRunAroundExecution(t *testing.T) {
	// Arrange
	var beforeCalled, afterCalled, terminatedCalled atomic.Bool
	cfg := &Config{
		Hooks: Hooks{
			BeforeExecute: func(item WorkItem) error {
				beforeCalled.Store(true)
				return nil
			},
			AfterExecute: func(item WorkItem, outcome Outcome) {
				afterCalled.Store(true)
			},
			Terminated: func() {
				terminatedCalled.Store(true)
			},
		},
	}
	p := NewPool("test", 1, 4, cfg)

	// Act
	handle, err := p.Submit(stubItem("a"), func(ctx context.Context, token *Token, interrupt *InterruptSignal) (any, error) {
		return nil, nil
	})
	if err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}
	if _, err := handle.Await(context.Background(), time.Second); err != nil {
		t.Fatalf("Await() failed: %v", err)
	}
	p.ShutdownGraceful()
	p.AwaitTermination(2 * time.Second)

	// Assert
	if !beforeCalled.Load() {
		t.Error("BeforeExecute never called")
	}
	if !afterCalled.Load() {
		t.Error("AfterExecute never called")
	}
	if !terminatedCalled.Load() {
		t.Error("Terminated never called")
	}
}
