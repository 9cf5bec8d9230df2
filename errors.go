package rtheap

import "fmt"

// AssertionError is panicked by every invariant check in this package,
// mirroring the original's configASSERT: a violated allocator invariant
// is not a recoverable error, it is a bug in the caller or a corrupted
// heap, and the original halts rather than returning an error code.
type AssertionError struct {
	Msg string
}

func (e *AssertionError) Error() string {
	return "rtheap: " + e.Msg
}

func assertf(cond bool, format string, args ...any) {
	if !cond {
		panic(&AssertionError{Msg: fmt.Sprintf(format, args...)})
	}
}

// Finding describes one non-fatal result surfaced by the detection
// layer (CheckIntegrity, CheckNode, MemoryScan) — unlike AssertionError,
// a Finding is returned to the caller rather than panicking, since
// scanning for corruption or leaks is expected to run against a heap
// that may legitimately contain problems.
type Finding struct {
	// Kind classifies the finding: "head_canary" or "tail_canary"
	// (CheckIntegrity, CheckNode) or "leak" (MemoryScan).
	Kind string

	// Address is the block header or payload address the finding is
	// about.
	Address uintptr

	// Size is the tracked allocation size, when known.
	Size uintptr

	// Detail is a human-readable description suitable for LogSink.
	Detail string

	// Backtrace is the allocation-time call stack, when the tracking
	// record captured one.
	Backtrace []uintptr

	// TaskName is the owning task's name, when known.
	TaskName string
}

func (f Finding) String() string {
	return fmt.Sprintf("%s at 0x%x: %s", f.Kind, f.Address, f.Detail)
}
