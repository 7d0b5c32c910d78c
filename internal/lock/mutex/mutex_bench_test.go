package mutex

import (
	"sync"
	"testing"

	"github.com/kolkov/parklock/internal/lock/ident"
)

// fixedIdentity avoids runtime.Stack parsing so the benchmarks measure the
// lock itself.
var fixedIdentity = ident.ProviderFunc(func() ident.ID { return 1 })

// BenchmarkLockUnlock_Uncontended benchmarks the fast path.
//
// Target: two CAS operations and no allocations per pair.
func BenchmarkLockUnlock_Uncontended(b *testing.B) {
	m := New(Config{Identity: fixedIdentity})

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		m.Lock(0)
		m.Unlock()
	}
}

// BenchmarkTryLock_Held benchmarks a failing TryLock.
func BenchmarkTryLock_Held(b *testing.B) {
	m := New(Config{Identity: fixedIdentity})
	m.Lock(0)

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		if m.TryLock() {
			b.Fatal("TryLock succeeded on a held mutex")
		}
	}
}

// BenchmarkLockUnlock_Contended benchmarks lock/unlock pairs from parallel
// goroutines using goroutine identity.
func BenchmarkLockUnlock_Contended(b *testing.B) {
	var m Mutex
	counter := 0

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			m.Lock(0)
			counter++
			m.Unlock()
		}
	})
	_ = counter
}

// BenchmarkSyncMutex_Contended is the sync.Mutex baseline for the benchmark
// above.
func BenchmarkSyncMutex_Contended(b *testing.B) {
	var m sync.Mutex
	counter := 0

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			m.Lock()
			counter++
			m.Unlock()
		}
	})
	_ = counter
}
