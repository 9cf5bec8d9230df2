// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package atomic mirrors the subset of the Go runtime's internal/atomic
// API that the allocator's statistics counters need. The runtime's own
// package is backed by architecture-specific assembly with no portable
// Go body; this version is a thin sync/atomic wrapper so the same call
// sites work on every target the toolchain supports, at the cost of the
// runtime package's lock-free guarantees on contended LSE-less ARMv8.0
// cores.
package atomic

import "sync/atomic"

func Loaduintptr(ptr *uintptr) uintptr {
	return atomic.LoadUintptr(ptr)
}

func Storeuintptr(ptr *uintptr, val uintptr) {
	atomic.StoreUintptr(ptr, val)
}

func Xadduintptr(ptr *uintptr, delta uintptr) uintptr {
	return atomic.AddUintptr(ptr, delta)
}

func Casuintptr(ptr *uintptr, old, new uintptr) bool {
	return atomic.CompareAndSwapUintptr(ptr, old, new)
}

func Load64(ptr *uint64) uint64 {
	return atomic.LoadUint64(ptr)
}

func Store64(ptr *uint64, val uint64) {
	atomic.StoreUint64(ptr, val)
}

func Xadd64(ptr *uint64, delta int64) uint64 {
	return atomic.AddUint64(ptr, uint64(delta))
}
