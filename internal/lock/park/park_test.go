package park

import (
	"context"
	"testing"
	"time"
)

// TestChan_UnparkBeforePark tests that an early wakeup is remembered.
func TestChan_UnparkBeforePark(t *testing.T) {
	p := NewChan()
	p.Unpark()
	if got := p.Park(time.Second); got != WokeNormally {
		t.Errorf("Park() = %v, want WokeNormally", got)
	}
}

// TestChan_DoubleUnpark tests that only one wakeup is buffered.
func TestChan_DoubleUnpark(t *testing.T) {
	p := NewChan()
	p.Unpark()
	p.Unpark()
	if got := p.Park(time.Second); got != WokeNormally {
		t.Fatalf("first Park() = %v, want WokeNormally", got)
	}
	if got := p.Park(10 * time.Millisecond); got != TimedOut {
		t.Errorf("second Park() = %v, want TimedOut", got)
	}
}

// TestChan_Timeout tests that Park returns after at least the timeout.
func TestChan_Timeout(t *testing.T) {
	p := NewChan()
	start := time.Now()
	if got := p.Park(20 * time.Millisecond); got != TimedOut {
		t.Fatalf("Park() = %v, want TimedOut", got)
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Errorf("Park returned after %v, want >= 20ms", elapsed)
	}
}

// TestChan_CrossGoroutine tests wakeup from another goroutine.
func TestChan_CrossGoroutine(t *testing.T) {
	p := NewChan()
	done := make(chan Outcome)
	go func() { done <- p.Park(0) }()
	time.Sleep(5 * time.Millisecond)
	p.Unpark()
	select {
	case got := <-done:
		if got != WokeNormally {
			t.Errorf("Park() = %v, want WokeNormally", got)
		}
	case <-time.After(time.Second):
		t.Fatal("Park did not return after Unpark")
	}
}

// TestChan_ParkContext tests cancellation through a context.
func TestChan_ParkContext(t *testing.T) {
	p := NewChan()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if got := p.ParkContext(ctx); got != TimedOut {
		t.Errorf("ParkContext() = %v, want TimedOut", got)
	}
}

// TestManual_Expire tests explicit timeout firing.
func TestManual_Expire(t *testing.T) {
	m := NewManual()
	p := m.NewParker()
	done := make(chan Outcome)
	go func() { done <- p.Park(time.Hour) }()

	m.WaitParked(1)
	if !m.Expire(0) {
		t.Fatal("Expire(0) = false for timed parker")
	}
	if got := <-done; got != TimedOut {
		t.Errorf("Park() = %v, want TimedOut", got)
	}
	if m.Parked() != 0 {
		t.Errorf("Parked() = %d after return", m.Parked())
	}
}

// TestManual_UntimedIgnoresExpire tests that untimed parkers cannot expire.
func TestManual_UntimedIgnoresExpire(t *testing.T) {
	m := NewManual()
	p := m.NewParker()
	done := make(chan Outcome)
	go func() { done <- p.Park(0) }()

	m.WaitParked(1)
	if n := m.ExpireAll(); n != 0 {
		t.Fatalf("ExpireAll() = %d, want 0", n)
	}
	p.Unpark()
	if got := <-done; got != WokeNormally {
		t.Errorf("Park() = %v, want WokeNormally", got)
	}
}

// TestOutcomeString tests Outcome rendering.
func TestOutcomeString(t *testing.T) {
	if WokeNormally.String() != "WokeNormally" || TimedOut.String() != "TimedOut" {
		t.Error("unexpected Outcome strings")
	}
	if Outcome(9).String() != "Unknown" {
		t.Error("unknown Outcome not rendered as Unknown")
	}
}
