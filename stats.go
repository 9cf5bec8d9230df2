package rtheap

import "rtheap/internal/atomic"

// FreeBytesRemaining returns the number of bytes currently available for
// allocation (xPortGetFreeHeapSize). Like the original, this reads the
// counter without taking the critical section — a torn read of a
// word-sized counter is not possible on the targets this package
// supports, and serializing every diagnostic read behind the same lock
// the allocator itself contends on would defeat the point of a
// lock-free statistic.
func FreeBytesRemaining() uintptr {
	return atomic.Loaduintptr(&freeBytesRemaining)
}

// MinEverFreeBytesRemaining returns the smallest value FreeBytesRemaining
// has ever reported since the heap was initialized
// (xPortGetMinimumEverFreeHeapSize) — the allocator's high-water mark for
// how close it has come to exhaustion.
func MinEverFreeBytesRemaining() uintptr {
	return atomic.Loaduintptr(&minimumEverFreeBytesBytes)
}

// TotalHeapBytes returns the sum of every region's usable size, across
// every DefineRegions/AddRegion call so far (xPortGetTotalHeapSize).
func TotalHeapBytes() uintptr {
	return atomic.Loaduintptr(&totalHeapBytes)
}
