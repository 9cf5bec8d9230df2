//go:build arm64

package rtheap

import (
	"sync"
	_ "unsafe" // for go:linkname

	"rtheap/internal/cpu"
)

// saveAndDisableIrqs and restoreIrqs are provided by the target's boot
// assembly (DAIF save/mask on entry, DAIF restore on exit) — the same
// linkname-to-assembly pattern the teacher uses throughout its
// exceptions/timer glue for anything that has to touch a system
// register. There is no portable Go body for either: a target that
// builds this file is expected to link an implementation in.
//
//go:linkname saveAndDisableIrqs save_and_disable_irqs
//go:nosplit
func saveAndDisableIrqs() uintptr

//go:linkname restoreIrqs restore_irqs
//go:nosplit
func restoreIrqs(saved uintptr)

// irqCriticalSection masks interrupts for the duration of the critical
// section instead of taking a lock — the allocator's fast path on a
// single-core bare-metal target, where the only reentrancy hazard is an
// interrupt handler, not another goroutine.
type irqCriticalSection struct{}

var logAtomicsOnce sync.Once

// Enter reports once, through whatever LogSink is active, whether the
// core has LSE atomics before masking interrupts: internal/atomic (a
// sync/atomic wrapper) works either way, but a target
// without CONFIG_MEMORY_ERROR_DETECTION_PRINT still wants the one-line
// note the first time the allocator actually runs, rather than at
// package init when no LogSink has necessarily been wired in yet.
func (irqCriticalSection) Enter() any {
	logAtomicsOnce.Do(func() {
		logf("rtheap: arm64 LSE atomics available: %v", cpu.ARM64.HasATOMICS)
	})
	return saveAndDisableIrqs()
}

func (irqCriticalSection) Exit(token any) {
	restoreIrqs(token.(uintptr))
}

func newPlatformCriticalSection() CriticalSection {
	return irqCriticalSection{}
}
