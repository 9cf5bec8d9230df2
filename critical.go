package rtheap

// newDefaultCriticalSection returns the CriticalSection that DefaultConfig
// (and Configure, when given none) installs: irqCriticalSection when the
// build targets arm64 (critical_arm64.go), schedulerCriticalSection on
// every other target (critical_fallback.go). Either way this gives
// spec.md §4.4's "interrupt masking on ARM, cooperative scheduler
// suspension elsewhere" split without the allocator's core logic ever
// needing a build tag of its own.
func newDefaultCriticalSection() CriticalSection {
	return newPlatformCriticalSection()
}
