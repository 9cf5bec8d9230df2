package rtheap

import (
	"testing"
	"unsafe"
)

func TestTotalHeapBytesMatchesRegionSize(t *testing.T) {
	setupHeap(t, 64*1024)
	defer resetHeapState()

	if TotalHeapBytes() == 0 {
		t.Fatalf("TotalHeapBytes should be nonzero after DefineRegions")
	}
	if TotalHeapBytes() > 64*1024 {
		t.Fatalf("TotalHeapBytes (%d) should not exceed the backing region size", TotalHeapBytes())
	}
}

func TestMinEverFreeBytesTracksLowWaterMark(t *testing.T) {
	setupHeap(t, 64*1024)
	defer resetHeapState()

	initialMin := MinEverFreeBytesRemaining()

	a := Allocate(1024)
	if a == nil {
		t.Fatalf("Allocate(1024) returned nil")
	}
	afterFirst := MinEverFreeBytesRemaining()
	if afterFirst >= initialMin {
		t.Fatalf("MinEverFreeBytesRemaining should drop after an allocation: before=%d after=%d", initialMin, afterFirst)
	}

	b := Allocate(2048)
	if b == nil {
		t.Fatalf("Allocate(2048) returned nil")
	}
	afterSecond := MinEverFreeBytesRemaining()
	if afterSecond >= afterFirst {
		t.Fatalf("MinEverFreeBytesRemaining should keep dropping as more is claimed: after1=%d after2=%d", afterFirst, afterSecond)
	}

	Free(a)
	Free(b)

	if MinEverFreeBytesRemaining() != afterSecond {
		t.Fatalf("freeing memory must never raise the low-water mark: got %d, want %d", MinEverFreeBytesRemaining(), afterSecond)
	}
}

func TestFreeBytesRemainingNeverExceedsTotal(t *testing.T) {
	setupHeap(t, 64*1024)
	defer resetHeapState()

	var ptrs []unsafe.Pointer
	for i := 0; i < 16; i++ {
		p := Allocate(256)
		if p == nil {
			t.Fatalf("Allocate(256) #%d returned nil", i)
		}
		ptrs = append(ptrs, p)
		if FreeBytesRemaining() > TotalHeapBytes() {
			t.Fatalf("FreeBytesRemaining (%d) exceeded TotalHeapBytes (%d)", FreeBytesRemaining(), TotalHeapBytes())
		}
	}

	for _, p := range ptrs {
		Free(p)
	}

	if FreeBytesRemaining() != TotalHeapBytes() {
		t.Fatalf("freeing everything should restore FreeBytesRemaining to TotalHeapBytes: free=%d total=%d", FreeBytesRemaining(), TotalHeapBytes())
	}
}
