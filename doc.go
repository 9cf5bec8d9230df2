// Package rtheap implements the dynamic memory allocator core of a small
// real-time operating environment: a multi-region, first-fit, coalescing
// free-list allocator with aligned allocation, early page reservation, and
// an optional memory-error detection layer (canaries, per-allocation
// tracking, conservative mark-scan leak detection).
//
// The package owns a single, globally addressable heap instance, guarded
// by whichever CriticalSection the build wires in (interrupt masking on
// arm64, cooperative scheduler suspension elsewhere). Multi-heap support
// is not a goal: the surrounding RTOS is expected to run in one address
// space with one scheduler, same as the allocator this package is modeled
// on.
package rtheap
