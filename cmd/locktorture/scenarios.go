// scenarios.go implements the 'locktorture scenarios' command.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kolkov/parklock/lock"
)

// scenario is one named behavioural check.
type scenario struct {
	name string
	desc string
	run  func() error
}

var scenarios = []scenario{
	{"trylock-race", "two goroutines race TryLock; exactly one wins", scenarioTryLockRace},
	{"blocked-lock", "a blocked Lock acquires after Unlock", scenarioBlockedLock},
	{"notify-one", "a waiter is notified and holds the mutex again", scenarioNotifyOne},
	{"lock-timeout", "Lock(50ms) on a held mutex times out and leaves no waiter", scenarioLockTimeout},
	{"notify-all", "ten waiters all return Notified", scenarioNotifyAll},
	{"teardown", "tearing down a context cancels only its three waiters", scenarioTeardown},
	{"wait-timeout", "Wait(50ms) times out and the queue shrinks by one", scenarioWaitTimeout},
}

// scenariosCommand implements the 'locktorture scenarios' command.
//
// Example:
//
//	locktorture scenarios
//	locktorture scenarios -list
//	locktorture scenarios notify-one teardown
func scenariosCommand(args []string) {
	failed, err := runScenarios(args, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if failed > 0 {
		os.Exit(1)
	}
}

// runScenarios runs the selected scenarios, printing one line per scenario,
// and returns the number that failed.
func runScenarios(args []string, w io.Writer) (int, error) {
	fs := flag.NewFlagSet("scenarios", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	list := fs.Bool("list", false, "list scenarios and exit")
	limit := fs.Duration("deadline", 10*time.Second, "per-scenario deadline")
	if err := fs.Parse(args); err != nil {
		return 0, fmt.Errorf("parse scenario flags: %w", err)
	}

	if *list {
		for _, s := range scenarios {
			fmt.Fprintf(w, "%-14s %s\n", s.name, s.desc)
		}
		return 0, nil
	}

	selected, err := selectScenarios(fs.Args())
	if err != nil {
		return 0, err
	}

	failed := 0
	for _, s := range selected {
		start := time.Now()
		err := runWithDeadline(s.run, *limit)
		if err != nil {
			failed++
			fmt.Fprintf(w, "FAIL %-14s %v (%v)\n", s.name, err, time.Since(start).Round(time.Millisecond))
			continue
		}
		fmt.Fprintf(w, "ok   %-14s (%v)\n", s.name, time.Since(start).Round(time.Millisecond))
	}
	return failed, nil
}

func selectScenarios(names []string) ([]scenario, error) {
	if len(names) == 0 {
		return scenarios, nil
	}
	var out []scenario
	for _, name := range names {
		found := false
		for _, s := range scenarios {
			if s.name == name {
				out = append(out, s)
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("unknown scenario %q (see -list)", name)
		}
	}
	return out, nil
}

func runWithDeadline(fn func() error, limit time.Duration) error {
	errc := make(chan error, 1)
	go func() { errc <- fn() }()
	select {
	case err := <-errc:
		return err
	case <-time.After(limit):
		return fmt.Errorf("did not finish within %v", limit)
	}
}

// waitUntil polls cond every millisecond for up to five seconds.
func waitUntil(what string, cond func() bool) error {
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			return fmt.Errorf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
	return nil
}

func scenarioTryLockRace() error {
	for round := 0; round < 100; round++ {
		var mu lock.Mutex
		var wins atomic.Int32
		var wg sync.WaitGroup
		start := make(chan struct{})
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				if mu.TryLock() {
					wins.Add(1)
				}
			}()
		}
		close(start)
		wg.Wait()
		if wins.Load() != 1 {
			return fmt.Errorf("round %d: %d winners", round, wins.Load())
		}
	}
	return nil
}

func scenarioBlockedLock() error {
	mu := lock.NewMutex(lock.Options{})
	mu.Lock(0)

	result := make(chan lock.LockResult, 1)
	go func() {
		r := mu.Lock(0)
		if r == lock.Acquired {
			mu.Unlock()
		}
		result <- r
	}()
	if err := waitUntil("waiter to queue", func() bool { return mu.Waiters() == 1 }); err != nil {
		return err
	}
	mu.Unlock()

	select {
	case r := <-result:
		if r != lock.Acquired {
			return fmt.Errorf("blocked Lock returned %v", r)
		}
	case <-time.After(time.Second):
		return fmt.Errorf("blocked Lock did not acquire within 1s")
	}
	return nil
}

func scenarioNotifyOne() error {
	mu := lock.NewMutex(lock.Options{})
	cond := lock.NewCond(lock.Options{})

	type res struct {
		r    lock.WaitResult
		held bool
	}
	out := make(chan res, 1)
	go func() {
		mu.Lock(0)
		r := cond.Wait(mu, 0)
		held := mu.IsOwner()
		if held {
			mu.Unlock()
		}
		out <- res{r, held}
	}()
	if err := waitUntil("waiter to queue", func() bool { return cond.Waiters() == 1 }); err != nil {
		return err
	}

	mu.Lock(0)
	n := cond.NotifyOne()
	mu.Unlock()
	if n != 1 {
		return fmt.Errorf("NotifyOne woke %d", n)
	}

	got := <-out
	if got.r != lock.Notified || !got.held {
		return fmt.Errorf("Wait returned %v, held=%v", got.r, got.held)
	}
	return nil
}

func scenarioLockTimeout() error {
	mu := lock.NewMutex(lock.Options{})
	mu.Lock(0)
	defer mu.Unlock()

	type res struct {
		r       lock.LockResult
		elapsed time.Duration
	}
	out := make(chan res, 1)
	go func() {
		start := time.Now()
		r := mu.Lock(50 * time.Millisecond)
		out <- res{r, time.Since(start)}
	}()

	got := <-out
	if got.r != lock.LockTimedOut {
		return fmt.Errorf("Lock(50ms) returned %v", got.r)
	}
	if got.elapsed < 50*time.Millisecond {
		return fmt.Errorf("Lock(50ms) returned after %v", got.elapsed)
	}
	if n := mu.Waiters(); n != 0 {
		return fmt.Errorf("%d waiters left after timeout", n)
	}
	return nil
}

func scenarioNotifyAll() error {
	const n = 10
	mu := lock.NewMutex(lock.Options{})
	cond := lock.NewCond(lock.Options{})

	out := make(chan lock.WaitResult, n)
	for i := 0; i < n; i++ {
		go func() {
			mu.Lock(0)
			r := cond.Wait(mu, 0)
			if r != lock.WaitCancelled {
				mu.Unlock()
			}
			out <- r
		}()
	}
	if err := waitUntil("all waiters to queue", func() bool { return cond.Waiters() == n }); err != nil {
		return err
	}

	mu.Lock(0)
	woken := cond.NotifyAll()
	mu.Unlock()
	if woken != n {
		return fmt.Errorf("NotifyAll woke %d, want %d", woken, n)
	}
	for i := 0; i < n; i++ {
		if r := <-out; r != lock.Notified {
			return fmt.Errorf("waiter returned %v", r)
		}
	}
	if left := cond.Waiters(); left != 0 {
		return fmt.Errorf("%d waiters left", left)
	}
	return nil
}

func scenarioTeardown() error {
	const (
		owner   = lock.ContextID(-100)
		doomed  = lock.ContextID(-101)
		bystand = lock.ContextID(-102)
	)
	reg := lock.NewRegistry()
	b := lock.NewBinding()
	release := b.Bind(owner)
	defer release()

	opts := lock.Options{Identity: b, Registry: reg}
	mu := lock.NewMutex(opts)
	mu.Lock(0)

	type res struct {
		id lock.ContextID
		r  lock.LockResult
	}
	out := make(chan res, 4)
	spawn := func(id lock.ContextID) error {
		queued := mu.Waiters() + 1
		go func() {
			release := b.Bind(id)
			defer release()
			r := mu.Lock(0)
			if r == lock.Acquired {
				mu.Unlock()
			}
			out <- res{id, r}
		}()
		return waitUntil("waiter to queue", func() bool { return mu.Waiters() == queued })
	}
	for _, id := range []lock.ContextID{doomed, bystand, doomed, doomed} {
		if err := spawn(id); err != nil {
			return err
		}
	}

	if n := reg.Teardown(doomed); n != 3 {
		return fmt.Errorf("Teardown cancelled %d, want 3", n)
	}
	for i := 0; i < 3; i++ {
		got := <-out
		if got.id != doomed || got.r != lock.LockCancelled {
			return fmt.Errorf("context %v returned %v", got.id, got.r)
		}
		if err := got.r.Err(); !errors.Is(err, lock.ErrContextTornDown) {
			return fmt.Errorf("Cancelled.Err() = %v", err)
		}
	}
	if n := mu.Waiters(); n != 1 {
		return fmt.Errorf("%d waiters left, want the bystander", n)
	}

	mu.Unlock()
	if got := <-out; got.id != bystand || got.r != lock.Acquired {
		return fmt.Errorf("bystander returned %v", got.r)
	}
	return nil
}

func scenarioWaitTimeout() error {
	mu := lock.NewMutex(lock.Options{})
	cond := lock.NewCond(lock.Options{})

	other := make(chan lock.WaitResult, 1)
	go func() {
		mu.Lock(0)
		r := cond.Wait(mu, 0)
		mu.Unlock()
		other <- r
	}()
	if err := waitUntil("first waiter", func() bool { return cond.Waiters() == 1 }); err != nil {
		return err
	}

	mu.Lock(0)
	start := time.Now()
	r := cond.Wait(mu, 50*time.Millisecond)
	elapsed := time.Since(start)
	left := cond.Waiters()
	cond.NotifyAll()
	mu.Unlock()
	<-other

	if r != lock.WaitTimedOut {
		return fmt.Errorf("Wait(50ms) returned %v", r)
	}
	if elapsed < 50*time.Millisecond {
		return fmt.Errorf("Wait(50ms) returned after %v", elapsed)
	}
	if left != 1 {
		return fmt.Errorf("queue length %d after timeout, want 1", left)
	}
	return nil
}
