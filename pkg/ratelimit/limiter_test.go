package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestFixedDelay(t *testing.T) {
	fd := NewFixedDelay(20)
	if fd.Interval() != 50*time.Millisecond {
		t.Fatalf("Expected 50ms interval, got %v", fd.Interval())
	}

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := fd.Wait(context.Background()); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed < 150*time.Millisecond {
		t.Errorf("Expected at least 150ms for three waits, got %v", elapsed)
	}

	if fd.Waits() != 3 {
		t.Errorf("Expected 3 waits, got %d", fd.Waits())
	}
	fd.Reset()
	if fd.Waits() != 0 {
		t.Error("Expected wait counter to be reset")
	}
}

func TestFixedDelayDisabled(t *testing.T) {
	for _, rps := range []float64{0, -1} {
		fd := NewFixedDelay(rps)
		if fd.Interval() != 0 {
			t.Errorf("Expected no interval for rps %v", rps)
		}

		start := time.Now()
		for i := 0; i < 100; i++ {
			if err := fd.Wait(context.Background()); err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
		}
		if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
			t.Errorf("Expected disabled limiter not to sleep, took %v", elapsed)
		}
	}
}

func TestFixedDelayCancelled(t *testing.T) {
	fd := NewFixedDelay(0.01)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	if err := fd.Wait(ctx); err != context.DeadlineExceeded {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Expected cancellation to interrupt the delay, took %v", elapsed)
	}
}

func TestThrottle(t *testing.T) {
	th := NewThrottle(10)

	if !th.Allow() {
		t.Fatal("Expected first event to be allowed")
	}
	if th.Allow() {
		t.Error("Expected burst of one")
	}

	start := time.Now()
	if err := th.Wait(context.Background()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("Expected to wait for a token, took %v", elapsed)
	}

	th.Reset()
	if !th.Allow() {
		t.Error("Expected token after reset")
	}
}

func TestThrottleUnlimited(t *testing.T) {
	th := NewThrottle(0)
	for i := 0; i < 1000; i++ {
		if !th.Allow() {
			t.Fatalf("Expected unlimited throttle to allow event %d", i)
		}
	}
}
