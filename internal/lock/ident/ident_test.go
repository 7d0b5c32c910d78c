// Copyright 2025 The parklock Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ident

import (
	"sync"
	"testing"
)

// TestParseGID tests parsing of stack trace headers.
func TestParseGID(t *testing.T) {
	tests := []struct {
		name string
		buf  string
		want ID
	}{
		{"simple", "goroutine 1 [running]:\n", 1},
		{"large", "goroutine 123456 [running]:\n", 123456},
		{"no trailer", "goroutine 77", 77},
		{"wrong prefix", "thread 5 [running]", None},
		{"too short", "gorou", None},
		{"empty", "", None},
		{"no digits", "goroutine [running]", None},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseGID([]byte(tt.buf)); got != tt.want {
				t.Errorf("parseGID(%q) = %d, want %d", tt.buf, got, tt.want)
			}
		})
	}
}

// TestCurrentGoroutine_Stable tests that repeated calls agree.
func TestCurrentGoroutine_Stable(t *testing.T) {
	a := CurrentGoroutine()
	b := CurrentGoroutine()
	if a == None {
		t.Fatal("CurrentGoroutine returned None")
	}
	if a != b {
		t.Errorf("CurrentGoroutine unstable: %d != %d", a, b)
	}
}

// TestCurrentGoroutine_Unique tests that goroutines get distinct IDs.
func TestCurrentGoroutine_Unique(t *testing.T) {
	const n = 50
	ids := make(chan ID, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids <- CurrentGoroutine()
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[ID]bool)
	for id := range ids {
		if seen[id] {
			t.Errorf("duplicate goroutine id %d", id)
		}
		seen[id] = true
	}
}

// TestBinding tests binding and release.
func TestBinding(t *testing.T) {
	b := NewBinding()
	gid := CurrentGoroutine()
	if got := b.Current(); got != gid {
		t.Fatalf("unbound Current() = %d, want goroutine id %d", got, gid)
	}

	release := b.Bind(-7)
	if got := b.Current(); got != -7 {
		t.Errorf("bound Current() = %d, want -7", got)
	}

	done := make(chan ID)
	go func() { done <- b.Current() }()
	if other := <-done; other == -7 {
		t.Error("binding leaked to another goroutine")
	}

	release()
	if got := b.Current(); got != gid {
		t.Errorf("Current() after release = %d, want %d", got, gid)
	}
}

// TestIDString tests ID rendering.
func TestIDString(t *testing.T) {
	if got := ID(12).String(); got != "ctx#12" {
		t.Errorf("String() = %q", got)
	}
}
