package rtheap

import "unsafe"

// MemoryScan performs a conservative mark-scan leak check
// (xPortMemoryScan): for every still-tracked allocation, it looks for at
// least one machine word elsewhere in memory whose value equals the
// allocation's payload address. If none is found anywhere — in another
// live allocation's payload, or in the declared static regions — the
// allocation is reported as leaked.
//
// This is conservative: any word that happens to equal the address
// counts as a reference, whether or not it is really a pointer. False
// negatives are possible (a reference held only in a CPU register or an
// unscanned task stack); false positives are not, per spec.md §4.3.
func MemoryScan() []Finding {
	if !activeConfig.ErrorDetectionEnabled {
		return nil
	}

	token := activeConfig.CriticalSection.Enter()
	defer activeConfig.CriticalSection.Exit(token)

	var findings []Finding
	for i := range trackingTable {
		rec := &trackingTable[i]
		if !rec.owned {
			continue
		}
		payload := payloadOf(rec.block)
		if referencedByOtherAllocation(payload, i) || referencedByStaticRegion(payload) {
			continue
		}
		findings = append(findings, Finding{
			Kind:      "leak",
			Address:   payload,
			Size:      rec.requestSize,
			Detail:    "no outstanding reference found in live allocations or static regions",
			Backtrace: rec.backtrace,
			TaskName:  rec.taskName,
		})
		logf("rtheap: leak at 0x%x (size %d, task %q, backtrace %v)", payload, rec.requestSize, rec.taskName, rec.backtrace)
	}
	return findings
}

// referencedByOtherAllocation scans every tracked allocation's payload
// other than skipIndex's for a word equal to target (xScanDynamicMemory).
func referencedByOtherAllocation(target uintptr, skipIndex int) bool {
	for i := range trackingTable {
		if i == skipIndex || !trackingTable[i].owned {
			continue
		}
		if scanWordsFor(payloadOf(trackingTable[i].block), trackingTable[i].requestSize, target) {
			return true
		}
	}
	return false
}

// referencedByStaticRegion scans the declared static regions for target,
// excluding the tracking table's own backing memory so a record's
// self-reference to its own block pointer doesn't mask a real leak
// (xScanStaticMemory).
func referencedByStaticRegion(target uintptr) bool {
	if activeConfig.StaticRegions == nil {
		return false
	}

	tableStart, tableEnd := trackingTableBounds()

	for _, region := range activeConfig.StaticRegions.StaticRegions() {
		start, end := region.Start, region.Start+region.Size
		for addr := start; addr+unsafe.Sizeof(uintptr(0)) <= end; addr += unsafe.Sizeof(uintptr(0)) {
			if addr >= tableStart && addr < tableEnd {
				continue
			}
			if readUintptr(addr) == target {
				return true
			}
		}
	}
	return false
}

func scanWordsFor(base uintptr, length uintptr, target uintptr) bool {
	for addr := base; addr+unsafe.Sizeof(uintptr(0)) <= base+length; addr += unsafe.Sizeof(uintptr(0)) {
		if readUintptr(addr) == target {
			return true
		}
	}
	return false
}

func trackingTableBounds() (start, end uintptr) {
	if len(trackingTable) == 0 {
		return 0, 0
	}
	start = uintptr(unsafe.Pointer(&trackingTable[0]))
	end = start + uintptr(len(trackingTable))*unsafe.Sizeof(trackingRecord{})
	return start, end
}
