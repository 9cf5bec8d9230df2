package rtheap

import (
	"unsafe"

	"rtheap/internal/atomic"
)

// Allocate returns size bytes of heap memory, or nil if no free block is
// large enough (pvPortMalloc). The heap is lazily initialized from the
// wired DefaultRegionSource on first use, same as the original calling
// vPortDefineHeapRegions(NULL) the first time pxEnd is still nil.
func Allocate(size uintptr) unsafe.Pointer {
	if size == 0 {
		return nil
	}
	if !fitsUnflagged(size) {
		return nil
	}

	token := activeConfig.CriticalSection.Enter()
	defer activeConfig.CriticalSection.Exit(token)

	if !heapDefined() {
		DefineRegions(nil)
	}

	wanted := requestedBlockSize(size)
	if wanted == 0 || wanted > freeBytesRemaining {
		return nil
	}

	prev := &xStart
	block := xStart.nextFree
	for block.size.bytes() < wanted && block.nextFree != nil {
		prev = block
		block = block.nextFree
	}

	if block == heapEnd {
		return nil
	}

	prev.nextFree = block.nextFree

	if block.size.bytes()-wanted > minimumBlockSize {
		newBlock := headerAt(addrOf(block) + wanted)
		newBlock.size = newBlockSize(block.size.bytes()-wanted, false)
		insertIntoFreeList(newBlock)
		block.size = newBlockSize(wanted, false)
	}

	updateFreeBytesAfterClaim(block.size.bytes())

	block.size = block.size.withAllocated(true)
	block.nextFree = &allocatedSentinel

	payload := payloadOf(block)
	if activeConfig.ErrorDetectionEnabled {
		trackAllocation(block, payload)
	}
	return unsafe.Pointer(payload)
}

// updateFreeBytesAfterClaim deducts a newly allocated block's size from
// freeBytesRemaining and refreshes the minimum-ever high-water mark.
// Shared by Allocate, AllocateAligned and AllocateReservedAligned.
func updateFreeBytesAfterClaim(claimed uintptr) {
	remaining := atomic.Xadduintptr(&freeBytesRemaining, ^(claimed - 1))
	if remaining < atomic.Loaduintptr(&minimumEverFreeBytesBytes) {
		atomic.Storeuintptr(&minimumEverFreeBytesBytes, remaining)
	}
}

// requestedBlockSize adds headerSize to size, plus one word for the tail
// canary when error detection is enabled, and rounds up to Alignment,
// same as pvPortMalloc inflating xWantedSize by xHeapStructSize before
// rounding. Returns 0 if the result would collide with the allocated
// flag.
func requestedBlockSize(size uintptr) uintptr {
	total := size + headerSize
	if activeConfig.ErrorDetectionEnabled {
		total += unsafe.Sizeof(uint64(0))
	}
	total = alignUp(total, Alignment)
	if total < minimumBlockSize {
		total = minimumBlockSize
	}
	if !fitsUnflagged(total) {
		return 0
	}
	return total
}

// Free returns a previously allocated block to the free list (vPortFree).
// Freeing nil is a no-op. Freeing a pointer not owned by this heap, or
// one already freed, is an assertion failure when error detection is
// enabled; with detection disabled it is undefined, same as the
// original giving the allocated-bit check no fallback.
func Free(ptr unsafe.Pointer) {
	if ptr == nil {
		return
	}
	payload := uintptr(ptr)
	block := headerFromPayload(payload)

	token := activeConfig.CriticalSection.Enter()
	defer activeConfig.CriticalSection.Exit(token)

	if activeConfig.ErrorDetectionEnabled {
		assertf(isOwnedSentinel(block.nextFree), "Free: block at 0x%x is not currently allocated (double free or invalid pointer)", addrOf(block))
		untrackAllocation(block)
	}

	assertf(block.size.isAllocated(), "Free: block at 0x%x has no allocated bit set", addrOf(block))

	block.size = block.size.withAllocated(false)
	block.nextFree = nil

	atomic.Xadduintptr(&freeBytesRemaining, block.size.bytes())
	insertIntoFreeList(block)
}

// insertIntoFreeList splices block back into the address-ordered free
// list, coalescing with its immediate neighbors when they are
// physically contiguous (prvInsertBlockIntoFreeList).
func insertIntoFreeList(block *blockHeader) {
	iter := &xStart
	for iter.nextFree != nil && addrOf(iter.nextFree) < addrOf(block) {
		iter = iter.nextFree
	}

	toInsert := block

	if addrOf(iter)+iter.size.bytes() == addrOf(block) && iter != &xStart {
		iter.size = newBlockSize(iter.size.bytes()+block.size.bytes(), false)
		toInsert = iter
	}

	if addrOf(toInsert)+toInsert.size.bytes() == addrOf(iter.nextFree) {
		if iter.nextFree != heapEnd {
			toInsert.size = newBlockSize(toInsert.size.bytes()+iter.nextFree.size.bytes(), false)
			toInsert.nextFree = iter.nextFree.nextFree
		} else {
			toInsert.nextFree = heapEnd
		}
	} else {
		toInsert.nextFree = iter.nextFree
	}

	if iter != toInsert {
		iter.nextFree = toInsert
	}
}

// Reallocate resizes the allocation at ptr to newSize, copying the
// lesser of the old and new sizes and freeing the original block. When
// newSize is larger than the original allocation, the grown tail is
// zero-filled rather than left holding whatever a previous occupant of
// that memory left behind. A nil ptr behaves like Allocate; a newSize of
// 0 behaves like Free and returns nil. The original C codebase has no
// realloc on this heap variant (heap_5 never defines one) — this
// mirrors the project's own xPortRealloc extension instead, which is
// the closest grounded behavior: allocate new, copy min(old,new),
// zero-fill any growth, free old.
func Reallocate(ptr unsafe.Pointer, newSize uintptr) unsafe.Pointer {
	if ptr == nil {
		return Allocate(newSize)
	}
	if newSize == 0 {
		Free(ptr)
		return nil
	}

	block := headerFromPayload(uintptr(ptr))
	oldSize := block.size.bytes() - headerSize
	if activeConfig.ErrorDetectionEnabled {
		oldSize -= unsafe.Sizeof(uint64(0))
	}

	newPtr := Allocate(newSize)
	if newPtr == nil {
		return nil
	}

	n := oldSize
	if newSize < n {
		n = newSize
	}
	src := unsafe.Slice((*byte)(ptr), n)
	dst := unsafe.Slice((*byte)(newPtr), newSize)
	copy(dst, src)
	for i := n; i < newSize; i++ {
		dst[i] = 0
	}

	Free(ptr)
	return newPtr
}
