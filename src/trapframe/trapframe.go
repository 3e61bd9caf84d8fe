// Package trapframe defines the canonical on-stack register snapshot
// written by the low-level ISR stub before it calls into kernel code, and
// consumed by the scheduler and page-fault handler.
//
// Grounded on the registers_t convention implied throughout the original
// cpu/timer.c, cpu/syscall.c and cpu/task_manager.c (callbacks receive a
// `registers_t *regs` and the task manager persists ebp/esp/eip/cr3 per
// process). The scheduler treats this as an opaque reusable record, per
// §4.G of the design: it reads and writes eip/esp/ebp/cs/cr3/eflags/ds, plus
// eax, which fork writes to hand each task its return value.
package trapframe

// Frame is the full register snapshot saved on trap entry and restored on
// IRET. The scheduler and page-fault handler never interpret fields other
// than EIP, ESP, EBP, CS, CR3, EFlags and DS (§4.G), except that the
// scheduler's Fork writes EAX; the rest are carried opaquely between save
// and restore.
type Frame struct {
	// General-purpose registers, as pushed by `pusha` (EDI first).
	EDI, ESI, EBP, ESP uint32
	EBX, EDX, ECX, EAX uint32

	// Segment registers.
	DS, ES, FS, GS uint32

	// Interrupt number and CPU-pushed error code.
	IntNo, ErrCode uint32

	// Pushed by the CPU on every trap.
	EIP, CS, EFlags uint32

	// Present only for ring transitions (user -> kernel); the pre-interrupt
	// stack pointer and stack segment. On a same-ring trap these mirror ESP.
	UserESP, SS uint32

	// CR3 is not part of the raw x86 trap frame; the kernel stashes the
	// owning address space's control-register-3 value here so a task switch
	// can restore it alongside the rest of the frame.
	CR3 uint32
}

// Copy returns a value copy of f, used when a task's frame is snapshotted
// out of the live IRQ stack into its task-table slot (and back).
func (f Frame) Copy() Frame {
	return f
}
