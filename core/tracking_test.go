package core

import (
	"context"
	"testing"
	"time"
)

func TestTrackingPool_CancelledAtShutdownRequiresTermination(t *testing.T) {
	tp := NewTrackingPool("test", 1, 4, nil)
	defer tp.ShutdownNow()

	if _, err := tp.CancelledAtShutdown(); err != ErrIllegalState {
		t.Errorf("CancelledAtShutdown() before termination = %v, want ErrIllegalState", err)
	}
}

func TestTrackingPool_RecordsIdentitiesCancelledAtShutdown(t *testing.T) {
	// Arrange - one task running and observing its own interrupt signal
	// when the pool is shut down abruptly.
	tp := NewTrackingPool("test", 1, 4, nil)

	started := make(chan struct{})
	handle, err := tp.Submit(stubItem("in-flight"), func(ctx context.Context, token *Token, interrupt *InterruptSignal) (any, error) {
		close(started)
		<-token.Done()
		if interrupt.Observe() {
			return nil, ErrCancelled
		}
		return nil, nil
	})
	if err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}
	<-started

	queuedHandle, err := tp.Submit(stubItem("unstarted"), func(ctx context.Context, token *Token, interrupt *InterruptSignal) (any, error) {
		return nil, nil
	})
	if err != nil {
		t.Fatalf("Submit(unstarted) failed: %v", err)
	}

	// Act
	unstarted := tp.ShutdownNow()
	tp.AwaitTermination(2 * time.Second)

	// Assert
	if _, err := handle.Await(context.Background(), time.Second); err != ErrCancelled {
		t.Errorf("in-flight task outcome = %v, want ErrCancelled", err)
	}

	cancelled, err := tp.CancelledAtShutdown()
	if err != nil {
		t.Fatalf("CancelledAtShutdown() failed: %v", err)
	}
	if len(cancelled) != 1 || cancelled[0] != "in-flight" {
		t.Errorf("CancelledAtShutdown() = %v, want [in-flight]", cancelled)
	}

	if len(unstarted) != 1 || unstarted[0].Item.Identity() != "unstarted" {
		t.Errorf("ShutdownNow() unstarted = %v, want [unstarted]", unstarted)
	}
	if unstarted[0].Handle != queuedHandle {
		t.Error("unstarted entry handle does not match Submit's returned handle")
	}
}
