package rtheap

import (
	"testing"
	"unsafe"
)

func TestAllocateBasic(t *testing.T) {
	setupHeap(t, 64*1024)
	defer resetHeapState()

	ptr := Allocate(128)
	if ptr == nil {
		t.Fatalf("Allocate(128) returned nil")
	}
	if FreeBytesRemaining() >= TotalHeapBytes() {
		t.Fatalf("allocation should have reduced FreeBytesRemaining")
	}
}

func TestAllocateZeroReturnsNil(t *testing.T) {
	setupHeap(t, 64*1024)
	defer resetHeapState()

	if ptr := Allocate(0); ptr != nil {
		t.Fatalf("Allocate(0) should return nil")
	}
}

func TestAllocateMoreThanAvailableReturnsNil(t *testing.T) {
	setupHeap(t, 4*1024)
	defer resetHeapState()

	if ptr := Allocate(1 << 20); ptr != nil {
		t.Fatalf("an oversized request should return nil, not a dangling pointer")
	}
}

func TestFreeReturnsMemoryToPool(t *testing.T) {
	setupHeap(t, 64*1024)
	defer resetHeapState()

	before := FreeBytesRemaining()
	ptr := Allocate(256)
	if ptr == nil {
		t.Fatalf("Allocate(256) returned nil")
	}
	Free(ptr)

	if FreeBytesRemaining() != before {
		t.Fatalf("FreeBytesRemaining after alloc+free = %d, want %d", FreeBytesRemaining(), before)
	}
}

func TestFreeNilIsNoOp(t *testing.T) {
	setupHeap(t, 64*1024)
	defer resetHeapState()
	Free(nil) // must not panic
}

func TestDoubleFreePanics(t *testing.T) {
	setupHeap(t, 64*1024)
	defer resetHeapState()

	ptr := Allocate(64)
	Free(ptr)

	defer func() {
		if recover() == nil {
			t.Fatalf("freeing the same pointer twice should panic")
		}
	}()
	Free(ptr)
}

func TestCoalescingReclaimsContiguousFreeSpace(t *testing.T) {
	setupHeap(t, 64*1024)
	defer resetHeapState()

	a := Allocate(512)
	b := Allocate(512)
	c := Allocate(512)
	if a == nil || b == nil || c == nil {
		t.Fatalf("setup allocations failed")
	}

	before := FreeBytesRemaining()
	Free(a)
	Free(b)
	Free(c)
	after := FreeBytesRemaining()

	if after <= before {
		t.Fatalf("freeing three adjacent blocks should grow free bytes: before=%d after=%d", before, after)
	}

	// A single allocation spanning (roughly) the combined freed space
	// should now succeed in one shot if the three blocks coalesced back
	// into contiguous free space.
	big := Allocate(1400)
	if big == nil {
		t.Fatalf("coalesced free space should satisfy a request spanning all three freed blocks")
	}
}

func TestAllocatedBlocksDoNotOverlap(t *testing.T) {
	setupHeap(t, 64*1024)
	defer resetHeapState()

	ptrs := make([]unsafe.Pointer, 0, 32)
	for i := 0; i < 32; i++ {
		p := Allocate(100)
		if p == nil {
			t.Fatalf("Allocate(100) #%d returned nil", i)
		}
		ptrs = append(ptrs, p)
	}

	seen := make(map[uintptr]bool)
	for _, p := range ptrs {
		addr := uintptr(p)
		if seen[addr] {
			t.Fatalf("duplicate allocation address 0x%x", addr)
		}
		seen[addr] = true
	}
}

func TestReallocateGrowsAndPreservesData(t *testing.T) {
	setupHeap(t, 64*1024)
	defer resetHeapState()

	ptr := Allocate(32)
	if ptr == nil {
		t.Fatalf("Allocate(32) returned nil")
	}
	src := unsafe.Slice((*byte)(ptr), 32)
	for i := range src {
		src[i] = byte(i)
	}

	grown := Reallocate(ptr, 256)
	if grown == nil {
		t.Fatalf("Reallocate to a larger size returned nil")
	}
	dst := unsafe.Slice((*byte)(grown), 32)
	for i := range dst {
		if dst[i] != byte(i) {
			t.Fatalf("Reallocate lost data at byte %d: got %d, want %d", i, dst[i], byte(i))
		}
	}
}

func TestReallocateZeroFillsGrowthTail(t *testing.T) {
	resetHeapState()
	defer resetHeapState()

	// Dirty the entire backing buffer before DefineRegions runs, so
	// whichever free block Reallocate's internal Allocate ends up
	// choosing for the grown copy still carries stale nonzero bytes in
	// its payload — DefineRegions only ever writes a handful of header
	// words, never the payload area.
	backing := make([]byte, 64*1024)
	for i := range backing {
		backing[i] = 0xff
	}
	DefineRegions([]Region{{Start: uintptr(unsafe.Pointer(&backing[0])), Size: uintptr(len(backing))}})

	ptr := Allocate(32)
	if ptr == nil {
		t.Fatalf("Allocate(32) returned nil")
	}

	grown := Reallocate(ptr, 256)
	if grown == nil {
		t.Fatalf("Reallocate to a larger size returned nil")
	}
	dst := unsafe.Slice((*byte)(grown), 256)
	for i := 32; i < 256; i++ {
		if dst[i] != 0 {
			t.Fatalf("Reallocate left stale byte at offset %d = 0x%x, want 0", i, dst[i])
		}
	}
}

func TestReallocateNilBehavesLikeAllocate(t *testing.T) {
	setupHeap(t, 64*1024)
	defer resetHeapState()

	ptr := Reallocate(nil, 64)
	if ptr == nil {
		t.Fatalf("Reallocate(nil, 64) should behave like Allocate(64)")
	}
}

func TestReallocateZeroBehavesLikeFree(t *testing.T) {
	setupHeap(t, 64*1024)
	defer resetHeapState()

	ptr := Allocate(64)
	before := FreeBytesRemaining()

	result := Reallocate(ptr, 0)
	if result != nil {
		t.Fatalf("Reallocate(ptr, 0) should return nil")
	}
	if FreeBytesRemaining() <= before {
		t.Fatalf("Reallocate(ptr, 0) should have freed the block: free bytes %d, before %d", FreeBytesRemaining(), before)
	}
}
