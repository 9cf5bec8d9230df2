// Package power implements the allocator's neighboring low-power and
// system-halt path, grounded on aml_portable_ext.c's vLowPowerSystem and
// vPortHaltSystem: enter a critical section, disable interrupts, record
// status, unregister every still-enabled IRQ line, invoke a secure
// monitor call to power the core down, and fall back to waiting for an
// interrupt if the call returns (it shouldn't).
package power

import "rtheap/irqshadow"

// Status mirrors xRtosInfo.status's small state machine
// (vPortRtosInfoUpdateStatus).
type Status uint32

const (
	StatusRunning Status = iota
	StatusHalting
	StatusDone
)

// SecureMonitorCaller issues an SMCCC call such as PSCI CPU_OFF
// (0x84000002, per prvCorePowerDown) and returns the call's result
// code. A target with no secure monitor wires in a stub that always
// returns a nonzero "not supported" code, which simply routes control to
// WaitForInterrupt.
type SecureMonitorCaller interface {
	Call(function uint32, args [6]uint64) (result uint64)
}

// WaitForInterrupt executes the target's idle-wait instruction (WFI on
// ARM) and returns once an interrupt is pending. A host build can
// implement this as a short sleep.
type WaitForInterrupt func()

// StatusRecorder receives Status transitions — a target wires this to
// flushing a shared-memory status word to a companion processor
// (vPortRtosInfoUpdateStatus's cache-flush side effect).
type StatusRecorder interface {
	RecordStatus(Status)
}

// System bundles the collaborators the halt path needs. A nil
// SecureMonitor, nil Recorder, or nil WaitForInterrupt degrades
// gracefully: HaltSystem and LowPowerSystem just skip the corresponding
// step.
type System struct {
	IRQs          *irqshadow.Bitmap
	SecureMonitor SecureMonitorCaller
	Recorder      StatusRecorder
	WFI           WaitForInterrupt

	// UnregisterIRQ is called once per still-enabled IRQ line found in
	// IRQs during HaltSystem, mirroring vPortHaltSystem's
	// plat_gic_irq_unregister loop. A nil UnregisterIRQ skips the step.
	UnregisterIRQ func(irq uint32)

	// CriticalEnter/CriticalExit bracket the halt sequence the same way
	// taskENTER_CRITICAL()/portDISABLE_INTERRUPTS() do in the original.
	// Both may be nil, in which case no critical section is taken.
	CriticalEnter func() any
	CriticalExit  func(any)
}

// cpuOffFunction is PSCI's CPU_OFF function identifier
// (prvCorePowerDown's first smc argument).
const cpuOffFunction = 0x84000002

func (s *System) recordStatus(status Status) {
	if s.Recorder != nil {
		s.Recorder.RecordStatus(status)
	}
}

func (s *System) waitForever() {
	for {
		if s.WFI != nil {
			s.WFI()
		}
	}
}

// LowPowerSystem enters a critical section, disables interrupts,
// records StatusDone, and waits for an interrupt forever
// (vLowPowerSystem). It never returns.
func (s *System) LowPowerSystem() {
	var token any
	if s.CriticalEnter != nil {
		token = s.CriticalEnter()
	}
	if s.CriticalExit != nil {
		defer s.CriticalExit(token)
	}

	s.recordStatus(StatusDone)
	s.waitForever()
}

// HaltSystem unregisters every IRQ line current marked enabled in IRQs,
// records StatusDone, attempts a secure-monitor CPU_OFF call, and falls
// back to waiting for an interrupt forever if the call returns
// (vPortHaltSystem). It never returns.
func (s *System) HaltSystem() {
	var token any
	if s.CriticalEnter != nil {
		token = s.CriticalEnter()
	}
	if s.CriticalExit != nil {
		defer s.CriticalExit(token)
	}

	if s.IRQs != nil && s.UnregisterIRQ != nil {
		s.IRQs.Each(s.UnregisterIRQ)
	}

	s.recordStatus(StatusDone)

	if s.SecureMonitor != nil {
		s.SecureMonitor.Call(cpuOffFunction, [6]uint64{})
	}

	s.waitForever()
}
