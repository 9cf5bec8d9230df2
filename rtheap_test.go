package rtheap

import (
	"bytes"
	"log"
	"testing"
	"unsafe"
)

// byteSliceRegions backs DefaultRegionSource with a plain Go byte slice,
// the host-test equivalent of a real target's linker-provided heap
// region — there is no linker here, so a `make([]byte, n)` donates the
// memory instead.
type byteSliceRegions struct {
	buf []byte
}

func newByteSliceRegions(size int) *byteSliceRegions {
	return &byteSliceRegions{buf: make([]byte, size)}
}

func (r *byteSliceRegions) region() Region {
	return Region{Start: uintptr(unsafe.Pointer(&r.buf[0])), Size: uintptr(len(r.buf))}
}

func (r *byteSliceRegions) DefaultRegions() []Region {
	return []Region{r.region()}
}

// setupHeap resets all package-level state and defines a single fresh
// region of the given size, ready for a test to allocate from. It
// returns the backing slice so the test can keep it alive and inspect it
// if needed (the Go GC must not collect memory the allocator still
// thinks is live).
func setupHeap(t *testing.T, size int) *byteSliceRegions {
	t.Helper()
	resetHeapState()
	resetTrackingTable()
	backing := newByteSliceRegions(size)
	DefineRegions(backing.DefaultRegions())
	return backing
}

// withConfig runs fn with activeConfig replaced by cfg, restoring the
// previous configuration afterward — tests that need
// ErrorDetectionEnabled off, or a custom TrackingSlots count, use this
// instead of mutating global config permanently.
func withConfig(cfg Config) func() {
	prev := activeConfig
	Configure(cfg)
	return func() { activeConfig = prev }
}

func TestStdLogSinkForwardsToLogger(t *testing.T) {
	setupHeap(t, 64*1024)
	defer resetHeapState()

	var buf bytes.Buffer
	defer withConfig(Config{Log: StdLogSink{Logger: log.New(&buf, "", 0)}})()

	PrintFreeList()

	if buf.Len() == 0 {
		t.Fatalf("PrintFreeList with a StdLogSink should have written something")
	}
}
