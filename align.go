package rtheap

import "unsafe"

// AllocateAligned returns size bytes whose payload address is a multiple
// of alignment (a power of two, at least Alignment), with a header
// placed immediately before the payload so the normal Free path can
// still locate and release it (pvPortMallocAlign). It searches the free
// list for a block that can fit a header plus size bytes at some aligned
// offset within it ("split-left"): bytes before the aligned point are
// left behind as a new free block, the header sits directly before the
// returned payload, and any bytes after the allocation are split off as
// a trailing free block the same way a plain Allocate would.
func AllocateAligned(size uintptr, alignment uintptr) unsafe.Pointer {
	if size == 0 || alignment == 0 || alignment&(alignment-1) != 0 {
		return nil
	}
	if !fitsUnflagged(size) {
		return nil
	}
	if alignment < Alignment {
		alignment = Alignment
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
	var payload uintptr
	for {
		payload = alignedPayloadWithin(block, wanted, alignment, headerSize)
		if payload != 0 || block.nextFree == nil {
			break
		}
		prev = block
		block = block.nextFree
	}
	if payload == 0 {
		return nil
	}

	header := headerFromPayload(payload)

	if addrOf(header) > addrOf(block) {
		lead := addrOf(header) - addrOf(block)
		assertf(lead >= headerSize, "AllocateAligned: split point leaves a lead fragment smaller than a header")
		header.nextFree = block.nextFree
		header.size = newBlockSize(block.size.bytes()-lead, false)
		block.size = newBlockSize(lead, false)
		prev.nextFree = block.nextFree
		insertIntoFreeList(block)
	} else {
		prev.nextFree = block.nextFree
	}
	block = header

	if block.size.bytes()-wanted > minimumBlockSize {
		trailing := headerAt(addrOf(block) + wanted)
		trailing.size = newBlockSize(block.size.bytes()-wanted, false)
		insertIntoFreeList(trailing)
		block.size = newBlockSize(wanted, false)
	}

	claimAllocatedBlock(block)
	return unsafe.Pointer(payload)
}

// AllocateReservedAligned behaves like AllocateAligned but never places a
// header immediately before the returned payload; the returned pointer is
// the aligned address itself (pvPortMallocRsvAlign). When the gap between
// the chosen free block's start and the aligned address can hold a
// header, the gap is split off as a free block and the aligned address
// becomes the claimed block's header; a smaller gap is absorbed into the
// claimed block. That makes the returned memory unrecoverable by Free —
// there is no way back from payload to header — which is intentional: reserved-aligned allocations back long-lived,
// fixed-placement structures (DMA buffers, page tables) that the caller
// never intends to release. See spec.md §9's open question on this
// point, resolved in DESIGN.md.
func AllocateReservedAligned(size uintptr, alignment uintptr) unsafe.Pointer {
	if size == 0 || alignment == 0 || alignment&(alignment-1) != 0 {
		return nil
	}
	if !fitsUnflagged(size) {
		return nil
	}
	if alignment < Alignment {
		alignment = Alignment
	}

	token := activeConfig.CriticalSection.Enter()
	defer activeConfig.CriticalSection.Exit(token)

	if !heapDefined() {
		DefineRegions(nil)
	}

	wanted := alignUp(size, Alignment)
	if wanted < minimumBlockSize {
		wanted = minimumBlockSize
	}
	if !fitsUnflagged(wanted) || wanted > freeBytesRemaining {
		return nil
	}

	prev := &xStart
	block := xStart.nextFree
	var payload uintptr
	for {
		payload = alignedPayloadWithin(block, wanted, alignment, 0)
		if payload != 0 || block.nextFree == nil {
			break
		}
		prev = block
		block = block.nextFree
	}
	if payload == 0 {
		return nil
	}

	lead := payload - addrOf(block)
	remainder := block.size.bytes() - lead

	if lead >= headerSize {
		newBlock := headerAt(payload)
		newBlock.nextFree = block.nextFree
		newBlock.size = newBlockSize(remainder, false)
		block.size = newBlockSize(lead, false)
		prev.nextFree = block.nextFree
		insertIntoFreeList(block)
		block = newBlock
	} else {
		prev.nextFree = block.nextFree
		wanted += lead
	}

	if block.size.bytes()-wanted > minimumBlockSize {
		trailing := headerAt(addrOf(block) + wanted)
		trailing.size = newBlockSize(block.size.bytes()-wanted, false)
		insertIntoFreeList(trailing)
		block.size = newBlockSize(wanted, false)
	}

	claimReservedBlock(block)
	return unsafe.Pointer(payload)
}

// alignedPayloadWithin returns the lowest address at or after
// addrOf(block)+headerOffset that is a multiple of alignment, lies either
// exactly at addrOf(block)+headerOffset or at least headerOffset bytes
// past it (so a split-off lead fragment can hold its own header), and has
// at least wanted-headerOffset bytes remaining before the block's end, or
// 0 if no such address exists within block.
func alignedPayloadWithin(block *blockHeader, wanted, alignment, headerOffset uintptr) uintptr {
	if block.nextFree == nil {
		return 0
	}
	start := addrOf(block) + headerOffset
	end := addrOf(block) + block.size.bytes()
	aligned := alignUp(start, alignment)
	for aligned != start && aligned-start < headerOffset {
		aligned += alignment
	}
	if aligned < addrOf(block) || aligned >= end {
		return 0
	}
	if end-aligned < wanted-headerOffset {
		return 0
	}
	return aligned
}

// claimAllocatedBlock finalizes a block chosen by AllocateAligned: accounts
// it against freeBytesRemaining, flags it as allocated, severs it from the
// free list, and tracks it if error detection is enabled.
func claimAllocatedBlock(block *blockHeader) {
	updateFreeBytesAfterClaim(block.size.bytes())

	block.size = block.size.withAllocated(true)
	block.nextFree = &allocatedSentinel

	if activeConfig.ErrorDetectionEnabled {
		trackAllocation(block, payloadOf(block))
	}
}

// claimReservedBlock finalizes a block chosen by AllocateReservedAligned.
// Unlike claimAllocatedBlock, it only accounts the claimed bytes against
// freeBytesRemaining/minimumEverFreeBytesBytes: it never sets the
// allocated bit and never calls trackAllocation, since the returned
// memory carries no header or canary overhead and is never freed
// (pvPortMallocRsvAlign never touches heapBLOCK_ALLOCATED_BITMASK; see
// DESIGN.md's resolution of spec.md §9's open question). Writing the
// allocated bit or a tracking canary here would stomp the first bytes of
// memory the caller is about to use as its own.
func claimReservedBlock(block *blockHeader) {
	updateFreeBytesAfterClaim(block.size.bytes())
}
