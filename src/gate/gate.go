// Package gate implements the software-interrupt service-call entry point
// (int $33) through which a running task asks the kernel to register
// itself, fork, or finish setting up its own paging -- the three calls the
// original exposed as sys_insert_task/sys_fork/sys_stp.
//
// Grounded on src/cpu/syscall.c's syscall() dispatcher (switch on regs->eax,
// with regs->ebx carrying the target paging structure and, for fork,
// regs->ecx carrying the caller's return address) and on
// src/cpu/task_manager.c's start_process_user, which parks a fresh task's
// stack at the fixed virtual address the external interfaces contract
// names (0x05FF_F000), not at an address derived from the hole's bounds.
package gate

import (
	"vos5/src/paging"
	"vos5/src/sched"
	"vos5/src/trapframe"
)

// Call numbers, matching the original's eax convention exactly.
const (
	CallInsertTask      uint32 = 0
	CallFork            uint32 = 1
	CallSetupTaskPaging uint32 = 2
)

// userStackVA is the fixed virtual address a fresh task's user stack is
// mapped at (the external-interfaces contract's "0x05FF_F000..., setting
// user esp=0x05FF_FFFF"). It is a literal constant inside the configured
// hole, not derived from the hole's bounds -- the hole range and this
// address are two independently fixed configuration values that happen to
// both fall inside the same region.
const userStackVA uintptr = 0x05FFF000

type errUnknownAddressSpace struct{}

func (errUnknownAddressSpace) Error() string { return "ebx does not name a known address space" }

// ErrUnknownAddressSpace is returned when EBX carries a CR3 value the paging
// manager has no record of.
var ErrUnknownAddressSpace error = errUnknownAddressSpace{}

type errUnknownCall struct{ eax uint32 }

func (e errUnknownCall) Error() string { return "unknown service call number in eax" }

// Dispatch is the int $33 handler. It always switches to the kernel address
// space first -- exactly as the original's syscall() does before decoding
// eax, since the call may have trapped from a user task's own directory --
// then serves the call named by frame.EAX, mutating frame in place so the
// common IRET path resumes the caller with the correct results.
//
// A hosted simulation has no raw pointer to pass through EBX the way the
// original passed a PAGE_STRUCT*; instead EBX carries the target address
// space's CR3 handle (the same opaque identifier paging.AddressSpace
// already uses to distinguish spaces), resolved back to a *paging.AddressSpace
// through the manager's registry.
func Dispatch(s *sched.Scheduler, pm *paging.Manager, frame *trapframe.Frame) error {
	pm.SwitchTo(pm.Kernel)

	switch frame.EAX {
	case CallInsertTask:
		target, ok := pm.SpaceByCR3(frame.EBX)
		if !ok {
			return ErrUnknownAddressSpace
		}
		_, err := s.InsertSelf(*frame, target)
		return err

	case CallFork:
		target, ok := pm.SpaceByCR3(frame.EBX)
		if !ok {
			return ErrUnknownAddressSpace
		}
		callerPID := s.Current()
		syncLiveFrame(s, callerPID, frame)
		if _, err := s.Fork(callerPID, target, frame.ECX); err != nil {
			return err
		}
		*frame = s.Task(callerPID).Frame
		return nil

	case CallSetupTaskPaging:
		callerPID := s.Current()
		syncLiveFrame(s, callerPID, frame)
		if err := s.SetupTaskPaging(pm, callerPID, userStackVA); err != nil {
			return err
		}
		*frame = s.Task(callerPID).Frame
		return nil

	default:
		return errUnknownCall{eax: frame.EAX}
	}
}

// syncLiveFrame copies the actually-executing register state into the
// scheduler's table before an operation that reads "the caller's frame"
// out of that table, since the live CPU registers -- not the stale copy
// left there by the last context switch -- are the source of truth for the
// task that is currently running.
func syncLiveFrame(s *sched.Scheduler, pid int, live *trapframe.Frame) {
	s.Task(pid).Frame = *live
}
