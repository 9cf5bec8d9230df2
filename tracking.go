package rtheap

import "unsafe"

// trackingRecord is one slot of the allocation tracking table
// (aml_med_ext.c struct alloc_trace_block): enough to reconstruct where
// an allocation came from and how large it legitimately is, for the
// detection layer to report against.
type trackingRecord struct {
	block       *blockHeader
	requestSize uintptr
	blockSize   uintptr
	backtrace   []uintptr
	taskName    string
	owned       bool
}

var trackingTable []trackingRecord

func resetTrackingTable() {
	trackingTable = make([]trackingRecord, activeConfig.TrackingSlots)
}

func init() {
	resetTrackingTable()
}

// trackAllocation writes the head/tail canaries for a freshly allocated
// block and records it in the first free tracking slot
// (vPortAddToList). requestSize is recorded as the block size minus the
// header, so it covers the caller's bytes plus any alignment padding and
// the tail-canary word; the caller's original byte count is not
// recorded.
func trackAllocation(block *blockHeader, payload uintptr) {
	block.headCanary = headCanaryPattern
	writeUint64(tailCanaryAddr(addrOf(block), block.size.bytes()), tailCanaryPattern)

	requestSize := block.size.bytes() - headerSize

	for i := range trackingTable {
		if trackingTable[i].owned {
			continue
		}
		rec := &trackingTable[i]
		rec.owned = true
		rec.block = block
		rec.requestSize = requestSize
		rec.blockSize = block.size.bytes()
		rec.backtrace = captureBacktrace()
		rec.taskName = currentTaskName()
		break
	}
	// Table full: the original silently drops tracking for this
	// allocation too (vPortAddToList's while loop simply exits without
	// writing anything). The allocation itself still succeeds.

	stampFreeListCanaries()
}

// stampFreeListCanaries refreshes the head canary on every node
// currently in the free list (vPortUpdateFreeBlockList), called after
// every allocation since splitting a block creates a new free-list node
// that has never had its canary written, and after DefineRegions and
// AddRegion so freshly donated blocks carry one from the start.
func stampFreeListCanaries() {
	node := &xStart
	for {
		node.headCanary = headCanaryPattern
		if node.nextFree == nil {
			break
		}
		node = node.nextFree
	}
}

// untrackAllocation clears the tracking slot for block, if one exists
// (vPortRmFromList).
func untrackAllocation(block *blockHeader) {
	for i := range trackingTable {
		if trackingTable[i].owned && trackingTable[i].block == block {
			trackingTable[i] = trackingRecord{}
			return
		}
	}
}

func captureBacktrace() []uintptr {
	if activeConfig.Backtrace == nil {
		return nil
	}
	return activeConfig.Backtrace.CaptureBacktrace(activeConfig.BacktraceDepth)
}

func currentTaskName() string {
	if activeConfig.TaskSource == nil || !activeConfig.TaskSource.SchedulerStarted() {
		return ""
	}
	task := activeConfig.TaskSource.CurrentTask()
	if task == nil {
		return ""
	}
	return task.Name()
}

// checkCanaries reports a Finding for each canary in block that no
// longer matches its expected pattern, and logs each one through the
// active LogSink (with the surrounding words when DumpSurroundingWords is
// set).
func checkCanaries(rec *trackingRecord) []Finding {
	var findings []Finding
	block := rec.block
	payload := payloadOf(block)

	if block.headCanary != headCanaryPattern {
		findings = append(findings, Finding{
			Kind:      "head_canary",
			Address:   payload,
			Size:      rec.requestSize,
			Detail:    "buffer underflow: header canary overwritten",
			Backtrace: rec.backtrace,
			TaskName:  rec.taskName,
		})
	}

	if readUint64(tailCanaryAddr(addrOf(block), rec.blockSize)) != tailCanaryPattern {
		findings = append(findings, Finding{
			Kind:      "tail_canary",
			Address:   payload,
			Size:      rec.requestSize,
			Detail:    "buffer overflow: trailing canary overwritten",
			Backtrace: rec.backtrace,
			TaskName:  rec.taskName,
		})
	}

	for _, f := range findings {
		logf("rtheap: %s at 0x%x (size %d, task %q, backtrace %v): %s", f.Kind, f.Address, f.Size, f.TaskName, f.Backtrace, f.Detail)
		if activeConfig.DumpSurroundingWords {
			at := addrOf(block) + unsafe.Offsetof(block.headCanary)
			if f.Kind == "tail_canary" {
				at = tailCanaryAddr(addrOf(block), rec.blockSize)
			}
			word := unsafe.Sizeof(uintptr(0))
			for w := at - 8*word; w <= at+8*word; w += word {
				logf("rtheap:   0x%x: 0x%x", w, readUintptr(w))
			}
		}
	}

	return findings
}

// CheckNode checks a single live allocation's canaries
// (xCheckMallocNodeIsOver), without scanning the whole table. ptr must
// be a pointer previously returned by Allocate/AllocateAligned that has
// not yet been freed.
func CheckNode(ptr unsafe.Pointer) []Finding {
	if !activeConfig.ErrorDetectionEnabled || ptr == nil {
		return nil
	}

	token := activeConfig.CriticalSection.Enter()
	defer activeConfig.CriticalSection.Exit(token)

	block := headerFromPayload(uintptr(ptr))
	for i := range trackingTable {
		if trackingTable[i].owned && trackingTable[i].block == block {
			return checkCanaries(&trackingTable[i])
		}
	}
	return nil
}

// CheckIntegrity scans the free list's header canaries and every
// tracked allocation's canaries, returning one Finding per corruption
// detected (xPortCheckIntegrity). The free-list scan panics on the
// first violation, same as the original's configASSERT on the free
// list's own canary — a corrupted free list is not safe to keep
// traversing. The allocation scan is best-effort and returns Findings
// rather than panicking, since a single corrupted allocation should not
// prevent reporting on the rest.
func CheckIntegrity() []Finding {
	if !activeConfig.ErrorDetectionEnabled {
		return nil
	}

	token := activeConfig.CriticalSection.Enter()
	defer activeConfig.CriticalSection.Exit(token)

	node := &xStart
	for {
		assertf(node.headCanary == headCanaryPattern, "CheckIntegrity: free list header canary corrupted at 0x%x", addrOf(node))
		if node.nextFree == nil {
			break
		}
		node = node.nextFree
	}

	var findings []Finding
	for i := range trackingTable {
		if trackingTable[i].owned {
			findings = append(findings, checkCanaries(&trackingTable[i])...)
		}
	}
	return findings
}
