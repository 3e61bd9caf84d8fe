// Package kernel ties the frame allocator, paging manager, heap, scheduler,
// catalog, service-call gate, and the screen/keyboard/shell collaborators
// into the single context the boot sequence builds and the timer/keyboard/
// service-call interrupt handlers all share.
//
// Grounded on src/kernel/kernel.c's kernel_main: initialize the memory
// manager, install interrupts, enable paging, load the catalog from disk,
// print the banner, register the built-in commands, then loop reading
// keystrokes and dispatching completed lines. Per the design notes (§9,
// "Global mutable state"), the boot-time singletons that file scattered
// across externs are collected here into one Context value instead, and
// passed explicitly rather than reached for through package-level state.
package kernel

import (
	"vos5/src/catalog"
	"vos5/src/frame"
	"vos5/src/gate"
	"vos5/src/heap"
	"vos5/src/keyboard"
	"vos5/src/paging"
	"vos5/src/sched"
	"vos5/src/screen"
	"vos5/src/shell"
	"vos5/src/trapframe"
)

// Config bundles everything Boot needs to size the subsystems it builds:
// the backing disk for the catalog, the physical frame count and hole for
// the frame allocator/paging manager, the heap's backing window and block
// budget/tuning, and the scheduler's task table capacity.
type Config struct {
	Disk         catalog.Disk
	NFrames      uint
	Hole         frame.HoleRange
	HeapMem      []byte
	HeapBlocks   int
	SplitThresh  uintptr
	Alignment    uintptr
	TaskCapacity int
}

// Context is the kernel's single threaded-through value: the boot-time
// singletons (kernel address space via Paging, the global frame bitmap via
// Paging.Frames, the heap, the scheduler holding the current-task index,
// and the catalog) plus the screen/keyboard/shell collaborators built on
// top of them.
type Context struct {
	Screen   *screen.Screen
	Keyboard *keyboard.Keyboard
	Paging   *paging.Manager
	Heap     *heap.Heap
	Sched    *sched.Scheduler
	Catalog  *catalog.Catalog
	Shell    *shell.Shell

	// Halted and HaltMessage record the single terminal error path: once
	// set, Panic has already run and no further interrupt should be
	// dispatched into this context.
	Halted      bool
	HaltMessage string
}

// Boot builds a Context and runs the same sequence kernel_main prints as it
// goes: memory manager, paging, catalog load, banner. It returns the
// context with Shell.Running true and ready to take keystrokes.
func Boot(cfg Config) *Context {
	ctx := &Context{
		Screen:   screen.New(),
		Keyboard: keyboard.New(),
	}

	ctx.Screen.Print("Initializing memory manager.\n")
	ctx.Paging = paging.NewManager(cfg.NFrames, cfg.Hole, ctx.Panic)
	ctx.Paging.InitKernelSpace()

	ctx.Screen.Print("Enabling paging. This might take a while...\n")
	ctx.Screen.Print("Paging enabled.\nLoading FAT from disk.\n")
	ctx.Catalog = catalog.New(cfg.Disk)
	ctx.Catalog.Load()

	ctx.Heap = heap.Init(cfg.HeapMem, cfg.HeapBlocks, cfg.SplitThresh, cfg.Alignment)
	ctx.Sched = sched.New(cfg.TaskCapacity)

	ctx.Screen.Print("Welcome to VOS!\n> ")
	ctx.Shell = shell.New(ctx.Screen, ctx.Catalog, ctx.Sched, ctx.Paging, ctx.Heap)
	return ctx
}

// Panic is the kernel's only terminal error path (§9, "Exception-like
// control flow"): it latches Halted so no caller mistakes this context for
// one still accepting interrupts, and writes msg to the screen in place of
// the original's kprint-then-while(1). It is idempotent -- a second call
// (e.g. a fault while already halted) is a no-op rather than overwriting
// the first failure's message.
func (ctx *Context) Panic(msg string) {
	if ctx.Halted {
		return
	}
	ctx.Halted = true
	ctx.HaltMessage = msg
	ctx.Screen.Print("PANIC: " + msg + "\n")
}

// HandlePageFault is the IDT's page-fault entry point: it classifies the
// fault and hands it to the paging manager, which always ends in Panic
// (§4.D -- there is no recoverable fault in this revision).
func (ctx *Context) HandlePageFault(faultAddr uintptr, errCode uint32) {
	ctx.Paging.HandlePageFault(faultAddr, errCode)
}

// HandleTimerTick is the IDT's IRQ0 entry point: it hands the live
// interrupt frame to the scheduler's preemption logic, which rewrites it in
// place to resume the next runnable task.
func (ctx *Context) HandleTimerTick(frame *trapframe.Frame) {
	if ctx.Halted {
		return
	}
	ctx.Sched.Preempt(frame)
}

// HandleServiceCall is the IDT's int $33 entry point, wired straight to the
// gate package's dispatcher.
func (ctx *Context) HandleServiceCall(frame *trapframe.Frame) error {
	if ctx.Halted {
		return nil
	}
	return gate.Dispatch(ctx.Sched, ctx.Paging, frame)
}

// HandleKeystroke is the IDT's IRQ1 entry point. It feeds scancode through
// the keyboard, echoes whatever the original driver would have written to
// the screen for this keystroke, and -- once Enter completes a line --
// prints the newline kernel_main's loop adds, dispatches the line to the
// shell, and reprints the prompt if the shell is still running.
func (ctx *Context) HandleKeystroke(scancode byte) {
	if ctx.Halted {
		return
	}
	echo, line, complete := ctx.Keyboard.Feed(scancode)
	switch echo {
	case "":
	case keyboard.BackspaceEcho:
		ctx.Screen.Backspace()
	default:
		ctx.Screen.Print(echo)
	}

	if !complete {
		return
	}
	ctx.Screen.Print("\n")
	ctx.Shell.Execute(line)
	if ctx.Shell.Running {
		ctx.Screen.Print("> ")
	}
}
