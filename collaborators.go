package rtheap

import (
	"log"
	"sync"
)

// CriticalSection is the allocator's only mutual-exclusion primitive. Enter
// must make the following code atomic with respect to whatever could
// reenter the allocator (interrupt handlers, the scheduler); Exit restores
// whatever state Enter saved. Nesting within a single uninterruptible
// section must remain consistent, but CriticalSection is not a recursive
// lock and callers must not assume reentrancy across separate Enter/Exit
// pairs.
type CriticalSection interface {
	Enter() (token any)
	Exit(token any)
}

// Scheduler is consumed by the "other" (non-ARM) critical-section variant,
// which suspends cooperative scheduling instead of masking interrupts. A
// bare-metal target with no scheduler yet (early bring-up) may route both
// methods to no-ops.
type Scheduler interface {
	SuspendAll()
	ResumeAll()
	Started() bool
}

// TaskHandle identifies the task that performed an allocation, for
// ownership annotations in tracking records and diagnostics.
type TaskHandle interface {
	Name() string
}

// TaskSource is consulted by the tracking layer only; a nil TaskSource or a
// TaskSource whose CurrentTask returns nil means allocations are recorded
// with no owner (before the scheduler starts, or from an interrupt).
type TaskSource interface {
	CurrentTask() TaskHandle
	SchedulerStarted() bool
}

// BacktraceProvider captures return addresses for the tracking layer. It is
// best-effort and pluggable: a nil BacktraceProvider, or one that returns a
// shorter or all-zero slice, is acceptable — callers must tolerate an
// incomplete trace. depth bounds how many frames to capture; implementers
// should skip the allocator's own frames.
//
// Unwinding itself (frame-pointer walking, DWARF, etc.) is out of this
// package's scope by design — spec: the allocator consumes backtrace
// capture as an abstract collaborator, it does not implement an unwinder.
type BacktraceProvider interface {
	CaptureBacktrace(depth int) []uintptr
}

// LogSink is the printable diagnostic sink the package writes its
// diagnostics through instead of calling fmt/log directly, so a bare-metal caller can
// route it to a UART driver and a hosted caller can route it to the
// standard logger.
type LogSink interface {
	Logf(format string, args ...any)
}

// DefaultRegionSource supplies the statically linked default region table
// used when DefineRegions is called with a nil table. A real target wires
// this to its linker-provided heap-start/heap-length symbols; tests wire it
// to a freshly allocated byte slice.
type DefaultRegionSource interface {
	DefaultRegions() []Region
}

// StaticRegionSource supplies the declared static RAM regions (typically
// BSS and DATA) that MemoryScan walks after exhausting live allocations,
// looking for stray references to a candidate leaked block. A real
// target wires this to its linker-provided _bss_start/_bss_len,
// _data_start/_data_len symbols; a nil StaticRegionSource makes
// MemoryScan skip the static pass entirely.
type StaticRegionSource interface {
	StaticRegions() []Region
}

// --- host-friendly defaults -------------------------------------------------

// noopScheduler is the zero-configuration Scheduler: no cooperative
// scheduler exists yet, so suspend/resume are no-ops and Started reports
// false (tracking records get no owner).
type noopScheduler struct{}

func (noopScheduler) SuspendAll()   {}
func (noopScheduler) ResumeAll()    {}
func (noopScheduler) Started() bool { return false }

// mutexCriticalSection is the host-friendly lock that
// schedulerCriticalSection (critical_fallback.go) holds around scheduler
// suspension on any target without a dedicated arm64 interrupt-masking
// implementation. It is not ISR-safe — per spec.md §4.4, the "other" mode never claims to be.
type mutexCriticalSection struct {
	mu sync.Mutex
}

func (c *mutexCriticalSection) Enter() any {
	c.mu.Lock()
	return nil
}

func (c *mutexCriticalSection) Exit(any) {
	c.mu.Unlock()
}

// discardLog implements LogSink by discarding everything; used only when no
// LogSink has been configured and avoids a nil check on every diagnostic
// call site.
type discardLog struct{}

func (discardLog) Logf(string, ...any) {}

// StdLogSink implements LogSink by forwarding to a standard library
// *log.Logger, for a hosted caller that wants the allocator's
// diagnostics (PrintFreeList, CheckIntegrity's findings, the arm64
// LSE-atomics boot note) interleaved with the rest of its own logging
// rather than discarded. A bare-metal target still wires its own
// UART-backed LogSink instead.
type StdLogSink struct {
	Logger *log.Logger
}

func (s StdLogSink) Logf(format string, args ...any) {
	logger := s.Logger
	if logger == nil {
		logger = log.Default()
	}
	logger.Printf(format, args...)
}
