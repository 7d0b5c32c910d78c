package stats

import (
	"sync"
	"testing"
)

func TestCounters_Snapshot(t *testing.T) {
	var c Counters
	c.FastAcquire()
	c.FastAcquire()
	c.SlowAcquire()
	c.Park()
	c.Wake(3)
	c.Wake(0)
	c.Timeout()
	c.Cancel(2)
	c.Cancel(-1)

	got := c.Snapshot()
	want := Snapshot{FastAcquires: 2, SlowAcquires: 1, Parks: 1, Wakes: 3, Timeouts: 1, Cancellations: 2}
	if got != want {
		t.Errorf("Snapshot() = %+v, want %+v", got, want)
	}
	if got.Acquires() != 3 {
		t.Errorf("Acquires() = %d, want 3", got.Acquires())
	}
}

func TestCounters_Concurrent(t *testing.T) {
	var c Counters
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				c.FastAcquire()
			}
		}()
	}
	wg.Wait()
	if got := c.Snapshot().FastAcquires; got != 8000 {
		t.Errorf("FastAcquires = %d, want 8000", got)
	}
}

func TestSnapshot_AddString(t *testing.T) {
	a := Snapshot{FastAcquires: 1, Wakes: 2}
	b := Snapshot{SlowAcquires: 3, Timeouts: 4}
	sum := a.Add(b)
	if sum.Acquires() != 4 || sum.Wakes != 2 || sum.Timeouts != 4 {
		t.Errorf("Add() = %+v", sum)
	}
	want := "acquires=4 (fast=1 slow=3) parks=0 wakes=2 timeouts=4 cancellations=0"
	if sum.String() != want {
		t.Errorf("String() = %q, want %q", sum.String(), want)
	}
}
