// run.go implements the 'locktorture run' command.
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

// stressConfig holds the parsed flags of the run command.
type stressConfig struct {
	goroutines int
	iterations int
	timeout    time.Duration
	items      int
	capacity   int
	spinLimit  int
	track      bool
	deadline   time.Duration
}

// stressReport summarizes one stress run.
type stressReport struct {
	acquired  int64
	timedOut  int64
	overlaps  int64
	consumed  int
	elapsed   time.Duration
	mutex     lock.Stats
	notEmpty  lock.Stats
	notFull   lock.Stats
	itemsSum  int64
	wantSum   int64
	itemMutex lock.Stats
}

// errStalled is returned when a stress phase does not finish before the
// deadline, which points at a lost wakeup.
var errStalled = errors.New("stress run stalled (possible lost wakeup)")

// runCommand implements the 'locktorture run' command.
//
// Flow:
//  1. Mutex phase: every goroutine does -iterations lock/unlock pairs around
//     a shared counter, optionally with timed lock attempts.
//  2. Condition phase: producers and consumers pass -items values through a
//     bounded buffer guarded by one mutex and two condition variables.
//  3. Statistics are printed and invariants checked.
//
// Example:
//
//	locktorture run -goroutines 16 -iterations 10000 -timeout 1ms
func runCommand(args []string) {
	cfg, err := parseRunArgs(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "locktorture: %d goroutines x %d iterations, %d items\n",
		cfg.goroutines, cfg.iterations, cfg.items)

	report, err := runStress(cfg)
	printReport(os.Stdout, report)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FAIL: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintln(os.Stderr, "PASS")
}

// parseRunArgs parses the run command flags.
func parseRunArgs(args []string) (stressConfig, error) {
	cfg := stressConfig{}
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.IntVar(&cfg.goroutines, "goroutines", 8, "number of contending goroutines")
	fs.IntVar(&cfg.iterations, "iterations", 1000, "lock/unlock pairs per goroutine")
	fs.DurationVar(&cfg.timeout, "timeout", 0, "per-Lock timeout (0 waits forever)")
	fs.IntVar(&cfg.items, "items", 1000, "values passed through the bounded buffer")
	fs.IntVar(&cfg.capacity, "capacity", 4, "bounded buffer capacity")
	fs.IntVar(&cfg.spinLimit, "spin", 0, "queue-lock spin limit (0 uses the default)")
	fs.BoolVar(&cfg.track, "track", false, "record acquisition stacks")
	fs.DurationVar(&cfg.deadline, "deadline", time.Minute, "fail if the run takes longer")

	if err := fs.Parse(args); err != nil {
		return cfg, fmt.Errorf("parse run flags: %w", err)
	}
	if fs.NArg() > 0 {
		return cfg, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	if cfg.goroutines < 1 || cfg.iterations < 0 || cfg.items < 0 || cfg.capacity < 1 {
		return cfg, fmt.Errorf("goroutines and capacity must be positive, iterations and items non-negative")
	}
	return cfg, nil
}

// runStress runs both phases and checks their invariants.
func runStress(cfg stressConfig) (stressReport, error) {
	opts := lock.Options{SpinLimit: cfg.spinLimit, TrackOwners: cfg.track}

	start := time.Now()
	results := make(chan stressReport, 1)
	go func() {
		var r stressReport
		stressMutex(cfg, opts, &r)
		stressCond(cfg, opts, &r)
		results <- r
	}()

	var report stressReport
	select {
	case report = <-results:
	case <-time.After(cfg.deadline):
		return report, errStalled
	}
	report.elapsed = time.Since(start)

	if report.overlaps != 0 {
		return report, fmt.Errorf("%d overlapping critical sections", report.overlaps)
	}
	if report.consumed != cfg.items || report.itemsSum != report.wantSum {
		return report, fmt.Errorf("consumed %d items summing to %d, want %d summing to %d",
			report.consumed, report.itemsSum, cfg.items, report.wantSum)
	}
	return report, nil
}

func stressMutex(cfg stressConfig, opts lock.Options, report *stressReport) {
	mu := lock.NewMutex(opts)
	var inside, acquired, timedOut, overlaps atomic.Int64
	counter := int64(0)

	var wg sync.WaitGroup
	for g := 0; g < cfg.goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < cfg.iterations; i++ {
				if mu.Lock(cfg.timeout) != lock.Acquired {
					timedOut.Add(1)
					continue
				}
				if inside.Add(1) != 1 {
					overlaps.Add(1)
				}
				counter++
				acquired.Add(1)
				inside.Add(-1)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	report.acquired = acquired.Load()
	report.timedOut = timedOut.Load()
	report.overlaps = overlaps.Load()
	if counter != report.acquired {
		report.overlaps++
	}
	report.mutex = mu.Stats()
}

func stressCond(cfg stressConfig, opts lock.Options, report *stressReport) {
	mu := lock.NewMutex(opts)
	notEmpty := lock.NewCond(opts)
	notFull := lock.NewCond(opts)

	var (
		buf      []int64
		consumed int
		sum      int64
	)

	producers := max(cfg.goroutines/2, 1)
	consumers := max(cfg.goroutines-producers, 1)

	var wg sync.WaitGroup
	next := int64(0)
	for p := 0; p < producers; p++ {
		share := cfg.items / producers
		if p < cfg.items%producers {
			share++
		}
		wg.Add(1)
		go func(share int) {
			defer wg.Done()
			for i := 0; i < share; i++ {
				mu.Lock(0)
				for len(buf) == cfg.capacity {
					notFull.Wait(mu, 0)
				}
				next++
				buf = append(buf, next)
				notEmpty.NotifyOne()
				mu.Unlock()
			}
		}(share)
	}

	for c := 0; c < consumers; c++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				mu.Lock(0)
				for len(buf) == 0 && consumed < cfg.items {
					notEmpty.Wait(mu, 0)
				}
				if consumed == cfg.items {
					mu.Unlock()
					return
				}
				v := buf[0]
				buf = buf[1:]
				consumed++
				sum += v
				if consumed == cfg.items {
					notEmpty.NotifyAll()
				}
				notFull.NotifyOne()
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	n := int64(cfg.items)
	report.consumed = consumed
	report.itemsSum = sum
	report.wantSum = n * (n + 1) / 2
	report.itemMutex = mu.Stats()
	report.notEmpty = notEmpty.Stats()
	report.notFull = notFull.Stats()
}

func printReport(w io.Writer, r stressReport) {
	fmt.Fprintf(w, "==================\n")
	fmt.Fprintf(w, "Mutex phase: acquired=%d timedOut=%d overlaps=%d\n", r.acquired, r.timedOut, r.overlaps)
	fmt.Fprintf(w, "  mutex:     %v\n", r.mutex)
	fmt.Fprintf(w, "Cond phase: consumed=%d sum=%d\n", r.consumed, r.itemsSum)
	fmt.Fprintf(w, "  mutex:     %v\n", r.itemMutex)
	fmt.Fprintf(w, "  not-empty: %v\n", r.notEmpty)
	fmt.Fprintf(w, "  not-full:  %v\n", r.notFull)
	fmt.Fprintf(w, "Elapsed: %v\n", r.elapsed)
	fmt.Fprintf(w, "==================\n")
}
