package rtheap

import "unsafe"

const (
	// Alignment is the platform byte-alignment (16 on ARM64, per
	// spec.md §3; other targets would set this at build time, but a
	// single constant is enough for the targets this package actually
	// builds for — ARM64 and RISC-V/Xtensa hosts also using 16-byte
	// alignment for their widest load/store).
	Alignment = 16

	alignMask = uintptr(Alignment - 1)
)

// blockHeader prefixes every block, free or allocated, at a
// target-word-aligned address. headCanary is always present in the struct
// (rather than conditionally compiled in/out, which Go has no clean
// mechanism for) but is only written and checked when
// Config.ErrorDetectionEnabled is true.
type blockHeader struct {
	nextFree   *blockHeader
	size       blockSize
	headCanary uint64
}

var headerSize = unsafe.Sizeof(blockHeader{})

// minimumBlockSize is heapMINIMUM_BLOCK_SIZE: a free block must be able to
// hold at least two headers, since splitting a block always leaves a
// header-sized-or-larger remainder.
var minimumBlockSize = 2 * headerSize

const (
	headCanaryPattern uint64 = 0x5051525354555657
	tailCanaryPattern uint64 = 0x6061626364656667
)

// allocatedSentinel is the "owned" value stored in nextFree for every
// allocated block. It is never a valid free-list link (no free block's
// address can ever equal &allocatedSentinel, since that address belongs to
// this package's .data/.bss, not to a donated region), so it is
// distinguishable from both a real link and the nil xEnd/end-of-list
// marker, per spec.md §3.
var allocatedSentinel blockHeader

func isOwnedSentinel(h *blockHeader) bool {
	return h == &allocatedSentinel
}

// headerAt reinterprets addr as a *blockHeader. Mirrors the teacher's
// castToPointer[T] helper (main/memory.go) — kept as a tiny wrapper so the
// unsafe.Pointer conversion only appears in one place per concern.
func headerAt(addr uintptr) *blockHeader {
	return (*blockHeader)(unsafe.Pointer(addr))
}

func addrOf(h *blockHeader) uintptr {
	return uintptr(unsafe.Pointer(h))
}

// payloadOf returns the address immediately following h's header — where a
// non-aligned allocation's data begins.
func payloadOf(h *blockHeader) uintptr {
	return addrOf(h) + headerSize
}

// headerFromPayload is the inverse of payloadOf: given a pointer returned
// by Allocate/AllocateAligned, find its header.
func headerFromPayload(payload uintptr) *blockHeader {
	return headerAt(payload - headerSize)
}

// alignUp rounds addr up to the given alignment, which must be a power of
// two.
func alignUp(addr, alignment uintptr) uintptr {
	return (addr + alignment - 1) &^ (alignment - 1)
}

// tailCanaryAddr returns the address of the last machine word of a block of
// the given (unflagged) total size starting at blockAddr.
func tailCanaryAddr(blockAddr uintptr, totalSize uintptr) uintptr {
	return blockAddr + totalSize - unsafe.Sizeof(uint64(0))
}

func readUint64(addr uintptr) uint64 {
	return *(*uint64)(unsafe.Pointer(addr))
}

func writeUint64(addr uintptr, v uint64) {
	*(*uint64)(unsafe.Pointer(addr)) = v
}

func readUintptr(addr uintptr) uintptr {
	return *(*uintptr)(unsafe.Pointer(addr))
}
