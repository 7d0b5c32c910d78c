// Copyright 2025 The parklock Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ident identifies the execution context performing a lock operation.
//
// Mutex ownership checks and cross-context cancellation compare context IDs.
// By default the context is the calling goroutine, identified by parsing the
// first line of runtime.Stack output. An embedding runtime that multiplexes
// several goroutines onto one logical context can bind goroutines to its own
// IDs with a Binding.
package ident

import (
	"runtime"
	"strconv"
	"sync"
)

// ID is a comparable execution context identifier. The zero value None never
// identifies a live context.
type ID int64

// None is the "no context" identifier, used for "no owner".
const None ID = 0

// String returns "ctx#<n>".
func (id ID) String() string {
	return "ctx#" + strconv.FormatInt(int64(id), 10)
}

// Provider returns the ID of the calling context.
type Provider interface {
	Current() ID
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func() ID

// Current calls f.
func (f ProviderFunc) Current() ID { return f() }

// Goroutine identifies contexts by goroutine ID.
var Goroutine Provider = ProviderFunc(CurrentGoroutine)

// CurrentGoroutine returns the calling goroutine's ID.
//
// Stack trace format: "goroutine 123 [running]:\n..."
//
// Performance: ~1µs per call (dominated by runtime.Stack).
func CurrentGoroutine() ID {
	// Only the first line is needed.
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	return parseGID(buf[:n])
}

// parseGID extracts the goroutine ID from stack trace bytes.
//
// Returns None if the buffer does not start with "goroutine <digits>".
func parseGID(buf []byte) ID {
	const prefix = "goroutine "
	if len(buf) < len(prefix) || string(buf[:len(prefix)]) != prefix {
		return None
	}

	var gid int64
	for _, c := range buf[len(prefix):] {
		if c < '0' || c > '9' {
			break
		}
		gid = gid*10 + int64(c-'0')
	}
	return ID(gid)
}

// Binding maps goroutines onto caller-chosen context IDs.
//
// Goroutines without a binding fall back to their goroutine ID, so callers
// should pick bound IDs from a range that cannot collide with goroutine IDs
// (for example negative values).
//
// Thread Safety: All methods are safe for concurrent calls.
type Binding struct {
	// bound maps goroutine ID to bound context ID.
	bound sync.Map
}

// NewBinding creates an empty Binding.
func NewBinding() *Binding {
	return &Binding{}
}

// Bind associates the calling goroutine with id until the returned function
// is called.
//
// Example:
//
//	b := ident.NewBinding()
//	release := b.Bind(-7)
//	defer release()
func (b *Binding) Bind(id ID) (release func()) {
	gid := CurrentGoroutine()
	b.bound.Store(gid, id)
	return func() { b.bound.Delete(gid) }
}

// Current implements Provider.
func (b *Binding) Current() ID {
	gid := CurrentGoroutine()
	if v, ok := b.bound.Load(gid); ok {
		return v.(ID)
	}
	return gid
}
