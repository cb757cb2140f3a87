package core

import (
	"context"
	"testing"
	"time"
)

type stubItem string

func (s stubItem) Identity() string { return string(s) }

func TestHandle_AwaitReturnsResultOnSuccess(t *testing.T) {
	h := newHandle(stubItem("a"))
	go h.finish(42, nil)

	got, err := h.Await(context.Background(), 0)
	if err != nil {
		t.Fatalf("Await() failed: %v", err)
	}
	if got != 42 {
		t.Errorf("Await() result = %v, want 42", got)
	}
}

func TestHandle_AwaitTimesOutAndCancels(t *testing.T) {
	h := newHandle(stubItem("a"))

	_, err := h.Await(context.Background(), 10*time.Millisecond)
	if err != ErrTimeout {
		t.Errorf("Await() = %v, want ErrTimeout", err)
	}
	if !h.token.IsTripped() {
		t.Error("token not tripped after Await() timeout")
	}
}

func TestHandle_AwaitCancelledByContext(t *testing.T) {
	h := newHandle(stubItem("a"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.Await(ctx, 0)
	if err != ErrCancelled {
		t.Errorf("Await() = %v, want ErrCancelled", err)
	}
}

func TestHandle_CancelIsIdempotentAndRaisesInterrupt(t *testing.T) {
	h := newHandle(stubItem("a"))

	h.Cancel(true)
	h.Cancel(true)

	if !h.token.IsTripped() {
		t.Error("token not tripped after Cancel()")
	}
	if !h.interrupt.Observe() {
		t.Error("interrupt not raised after Cancel(true)")
	}
}

func TestHandle_CancelWithoutInterruptLeavesSignalClear(t *testing.T) {
	h := newHandle(stubItem("a"))
	h.Cancel(false)

	if !h.token.IsTripped() {
		t.Error("token not tripped after Cancel(false)")
	}
	if h.interrupt.Observe() {
		t.Error("interrupt raised by Cancel(false), want untouched")
	}
}

func TestHandle_IsDone(t *testing.T) {
	h := newHandle(stubItem("a"))
	if h.IsDone() {
		t.Fatal("IsDone() = true before finish, want false")
	}
	h.finish(nil, nil)
	if !h.IsDone() {
		t.Error("IsDone() = false after finish, want true")
	}
}
