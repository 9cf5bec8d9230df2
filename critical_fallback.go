//go:build !arm64

package rtheap

// schedulerCriticalSection suspends whatever cooperative Scheduler is
// wired into the active Config instead of masking interrupts — the
// "other" branch of every malloc/free critical section in the original
// (vTaskSuspendAll/xTaskResumeAll), for targets with no dedicated
// interrupt-masking implementation. It reads activeConfig.Scheduler on
// every Enter/Exit rather than capturing it once, so Configure can swap
// schedulers without reconstructing the critical section.
//
// Per spec.md §4.4 this variant is not ISR-safe: suspending a
// cooperative scheduler does nothing to stop a true asynchronous
// interrupt from reentering the allocator.
type schedulerCriticalSection struct {
	fallback mutexCriticalSection
}

func (s *schedulerCriticalSection) Enter() any {
	s.fallback.Enter()
	activeConfig.Scheduler.SuspendAll()
	return nil
}

func (s *schedulerCriticalSection) Exit(any) {
	activeConfig.Scheduler.ResumeAll()
	s.fallback.Exit(nil)
}

func newPlatformCriticalSection() CriticalSection {
	return &schedulerCriticalSection{}
}
