package rtheap

import (
	"sort"

	"rtheap/internal/atomic"
)

// pageSize is the granularity early page reservation hands out, matching
// the original's hard assertion that every reservation is 4KiB-aligned
// (aml_heap_5_ext.c early_reserve_pages: configASSERT((xWantedSize & 0xFFF) == 0)).
const pageSize = 0x1000

// Region describes one contiguous span of memory donated to the heap, per
// spec.md §4.1. Start must already be a real address by the time it
// reaches DefineRegions/AddRegion; this package does no mapping of its
// own.
type Region struct {
	Start uintptr
	Size  uintptr
}

// heap-wide free list state. xStart is a fixed sentinel whose
// nextFree always points at the first free block in address order;
// heapEnd (pxEnd) is the zero-size terminator block planted at the tail
// of the highest-address region. Both are nil/zero until DefineRegions
// has run once.
var (
	xStart  blockHeader
	heapEnd *blockHeader

	freeBytesRemaining        uintptr
	minimumEverFreeBytesBytes uintptr
	totalHeapBytes            uintptr

	// registeredRegions records every span ever handed to DefineRegions
	// or AddRegion, in the order accepted. AddRegion consults it to
	// resolve spec.md §9's add_region open question: whether a new
	// span's start address lies inside or below an existing region is
	// decided by membership in this table, not by comparing against
	// heapEnd alone (see DESIGN.md).
	registeredRegions []Region

	// pendingDefaultRegions is the mutable working copy ReservePages
	// consumes from. It only exists before the first DefineRegions
	// call; DefineRegions(nil) drains whatever is left of it.
	pendingDefaultRegions []Region
	pendingInit           bool
)

func heapDefined() bool {
	return heapEnd != nil
}

// resetHeapState clears all region/free-list globals. Exercised by tests
// only — a real target calls DefineRegions exactly once and never resets.
func resetHeapState() {
	xStart = blockHeader{}
	heapEnd = nil
	atomic.Storeuintptr(&freeBytesRemaining, 0)
	atomic.Storeuintptr(&minimumEverFreeBytesBytes, 0)
	atomic.Storeuintptr(&totalHeapBytes, 0)
	registeredRegions = nil
	pendingDefaultRegions = nil
	pendingInit = false
}

// defaultRegions returns the statically configured region table
// (DefaultRegionSource), or nil if none was wired — mirrors the
// teacher's xDefRegion table, but supplied by a collaborator instead of
// linker symbols.
func defaultRegions() []Region {
	if activeConfig.DefaultRegions == nil {
		return nil
	}
	return activeConfig.DefaultRegions.DefaultRegions()
}

// DefineRegions establishes the heap's initial free list from the given
// regions, each aligned up to Alignment and trimmed for the lost bytes
// (vPortDefineHeapRegions). Regions must be given in increasing address
// order and must not overlap; each must be at least two header-sizes
// after alignment or it is skipped entirely, same as the original
// silently dropping regions too small to hold even the tail marker.
//
// Passing a nil slice uses the DefaultRegionSource wired into the active
// Config (and, if ReservePages has already carved pieces out of it,
// whatever remains of pendingDefaultRegions). DefineRegions must be
// called at most once; calling it again panics, matching the original's
// configASSERT( pxEnd == NULL ).
func DefineRegions(regions []Region) {
	assertf(!heapDefined(), "DefineRegions called more than once")

	if regions == nil {
		if pendingInit {
			regions = pendingDefaultRegions
		} else {
			regions = defaultRegions()
		}
	}
	pendingDefaultRegions = nil
	pendingInit = false

	var (
		previousTail *blockHeader
		total        uintptr
		firstSeen    bool
	)

	for _, r := range regions {
		if r.Size == 0 {
			continue
		}

		addr := alignUp(r.Start, Alignment)
		lost := addr - r.Start
		size := r.Size
		if lost > size {
			continue
		}
		size -= lost

		if size < 2*headerSize {
			continue
		}

		if !firstSeen {
			xStart.nextFree = headerAt(addr)
			xStart.size = 0
			firstSeen = true
		} else {
			assertf(addr > addrOf(heapEnd), "regions must be given in increasing, non-overlapping address order")
		}

		tailAddr := (addr + size - headerSize) &^ alignMask
		tail := headerAt(tailAddr)
		tail.size = 0
		tail.nextFree = nil
		heapEnd = tail

		first := headerAt(addr)
		first.size = newBlockSize(tailAddr-addr, false)
		first.nextFree = heapEnd

		if previousTail != nil {
			previousTail.nextFree = first
		}
		previousTail = heapEnd

		total += first.size.bytes()
		registeredRegions = append(registeredRegions, Region{Start: addr, Size: size})
	}

	assertf(firstSeen, "DefineRegions given no usable regions")

	atomic.Storeuintptr(&minimumEverFreeBytesBytes, total)
	atomic.Storeuintptr(&freeBytesRemaining, total)
	atomic.Storeuintptr(&totalHeapBytes, total)

	if activeConfig.ErrorDetectionEnabled {
		stampFreeListCanaries()
	}
}

// AddRegion donates one additional span of memory to an already-defined
// heap (vPortAddHeapRegion). Spans no larger than minimumBlockSize (two
// headers) after alignment are silently ignored, matching the original.
//
// Resolves spec.md §9's interior-vs-extension open question: a span is
// treated as extending the existing heap, with heapEnd moved to its top,
// when its start lies above heapEnd or beyond every region already
// registered; otherwise (its start falls inside or below a registered
// region) AddRegion simply folds it into the free list via
// insertIntoFreeList without moving heapEnd. See DESIGN.md.
func AddRegion(start, size uintptr) {
	if !heapDefined() {
		DefineRegions([]Region{{Start: start, Size: size}})
		return
	}

	addr := alignUp(start, Alignment)
	lost := addr - start
	if lost > size {
		return
	}
	regionSize := size - lost
	if regionSize <= minimumBlockSize {
		return
	}

	link := headerAt(addr)

	if addr <= addrOf(heapEnd) && !extendsPastRegistered(addr) {
		link.size = newBlockSize(regionSize, false)
		atomic.Xadduintptr(&freeBytesRemaining, link.size.bytes())
		atomic.Xadduintptr(&totalHeapBytes, link.size.bytes())
		insertIntoFreeList(link)
	} else {
		previousTail := heapEnd

		tailAddr := (addr + regionSize - headerSize) &^ alignMask
		tail := headerAt(tailAddr)
		tail.size = 0
		tail.nextFree = nil
		heapEnd = tail

		previousTail.nextFree = link
		link.size = newBlockSize(tailAddr-addr, false)
		link.nextFree = heapEnd

		atomic.Xadduintptr(&freeBytesRemaining, link.size.bytes())
		atomic.Xadduintptr(&totalHeapBytes, link.size.bytes())
	}

	registeredRegions = append(registeredRegions, Region{Start: addr, Size: regionSize})

	if activeConfig.ErrorDetectionEnabled {
		stampFreeListCanaries()
	}
}

// extendsPastRegistered reports whether addr lies beyond every region
// registered so far — the membership check AddRegion uses instead of a
// raw pointer comparison against heapEnd.
func extendsPastRegistered(addr uintptr) bool {
	for _, r := range registeredRegions {
		if addr >= r.Start && addr < r.Start+r.Size {
			return false
		}
	}
	idx := sort.Search(len(registeredRegions), func(i int) bool {
		return registeredRegions[i].Start > addr
	})
	return idx == len(registeredRegions)
}

// ReservePages carves a page-aligned, page-sized span out of the default
// region table before the heap has been initialized, for callers that
// need a fixed-address buffer (DMA descriptors, early boot structures)
// set aside before any region is handed to DefineRegions
// (aml_heap_5_ext.c early_reserve_pages). size must be a non-zero
// multiple of the page size. Calling ReservePages after DefineRegions has
// already run panics.
func ReservePages(size uintptr) (uintptr, bool) {
	assertf(!heapDefined(), "ReservePages called after DefineRegions")
	assertf(size != 0 && size%pageSize == 0, "ReservePages size must be a non-zero multiple of the page size")

	if !pendingInit {
		pendingDefaultRegions = append([]Region(nil), defaultRegions()...)
		pendingInit = true
	}

	for i := 0; i < len(pendingDefaultRegions); i++ {
		r := &pendingDefaultRegions[i]

		addr := r.Start
		regionEnd := addr + r.Size
		if addr%pageSize != 0 {
			aligned := (addr + pageSize - 1) &^ (pageSize - 1)
			if aligned >= regionEnd {
				continue
			}
			// Split off the unaligned head as its own (unusable for
			// reservation, but still heap-donatable) region and
			// continue scanning from the aligned remainder in place.
			head := Region{Start: addr, Size: aligned - addr}
			pendingDefaultRegions = append(pendingDefaultRegions, Region{})
			copy(pendingDefaultRegions[i+2:], pendingDefaultRegions[i+1:])
			pendingDefaultRegions[i] = head
			pendingDefaultRegions[i+1] = Region{Start: aligned, Size: regionEnd - aligned}
			continue
		}

		if addr+size > regionEnd {
			continue
		}

		r.Start = addr + size
		r.Size = regionEnd - r.Start
		return addr, true
	}

	return 0, false
}
