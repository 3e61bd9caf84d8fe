// Package shell implements the command loop's built-in verbs: end, page,
// echo, ls, help, debug_command, and run <name> (§6). It is specified only
// through the catalog and scheduler contracts -- the shell owns no state of
// its own beyond the collaborators it is handed.
//
// Grounded on the shell loop implied by the original kernel.c's boot
// sequence (clear the screen, read a line, dispatch on the first token) and
// on filesystem.c/task_manager.c for what "run" must do: pull a named
// program out of the catalog, stage it in the heap, and hand it to the
// scheduler as a new task in the kernel address space.
package shell

import (
	"fmt"
	"strings"

	"vos5/src/catalog"
	"vos5/src/disasm"
	"vos5/src/heap"
	"vos5/src/paging"
	"vos5/src/sched"
	"vos5/src/screen"
	"vos5/src/trapframe"
)

const helpText = "end page echo <text> ls help debug_command run <name>"

// Shell dispatches tokenized command lines to the built-in verbs, writing
// all output through scr.
type Shell struct {
	scr   *screen.Screen
	cat   *catalog.Catalog
	sched *sched.Scheduler
	pm    *paging.Manager
	heap  *heap.Heap

	// Running is cleared by the "end" verb; the caller's read loop checks
	// it after each Execute to decide whether to keep reading lines.
	Running bool
}

// New builds a shell wired to the given collaborators. cat and sched are
// assumed already loaded/populated by the caller.
func New(scr *screen.Screen, cat *catalog.Catalog, sched *sched.Scheduler, pm *paging.Manager, h *heap.Heap) *Shell {
	return &Shell{scr: scr, cat: cat, sched: sched, pm: pm, heap: h, Running: true}
}

// Execute tokenizes line on spaces and dispatches to the matching built-in.
// An empty line is ignored and an unrecognized verb is handled by printing
// a message; neither is an error a caller needs to check for.
func (sh *Shell) Execute(line string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}

	switch fields[0] {
	case "end":
		sh.Running = false
	case "page":
		sh.scr.Clear()
	case "echo":
		sh.scr.Print(strings.Join(fields[1:], " ") + "\n")
	case "ls":
		sh.ls()
	case "help":
		sh.scr.Print(helpText + "\n")
	case "debug_command":
		sh.debug()
	case "run":
		if len(fields) < 2 {
			sh.scr.Print("run: missing file name\n")
			return
		}
		sh.run(fields[1])
	default:
		sh.scr.Print(fields[0] + ": command not found\n")
	}
}

func (sh *Shell) ls() {
	for _, e := range sh.cat.Entries() {
		sh.scr.Print(e.NameString() + "\n")
	}
}

// debug prints task/catalog counters and, if the current task's eip lands
// inside the heap window (true for anything started by run), a short
// disassembly of the code there.
func (sh *Shell) debug() {
	sh.scr.Print(fmt.Sprintf("tasks=%d runnable=%d first_free_sector=%d\n",
		sh.sched.Count(), sh.sched.RunnableCount(), sh.cat.FirstFreeSector()))

	if sh.sched.Count() == 0 {
		return
	}
	eip := uintptr(sh.sched.Task(sh.sched.Current()).Frame.EIP)
	if eip < sh.heap.Base() || eip >= sh.heap.Top() {
		return
	}
	avail := sh.heap.Top() - eip
	const window = 16
	if avail > window {
		avail = window
	}
	for _, line := range disasm.Disassemble(sh.heap.Bytes(eip, avail), 8) {
		sh.scr.Print(fmt.Sprintf("  +%d: %s\n", line.Offset, line.Text))
	}
}

// run loads name from the catalog into a fresh heap buffer and inserts a
// task whose eip points at that buffer, running in the kernel address
// space -- the original's documented security caveat: loaded programs run
// with no isolation from kernel memory.
func (sh *Shell) run(name string) {
	data, ok := sh.cat.Read(name)
	if !ok {
		sh.scr.Print(name + ": not found\n")
		return
	}
	addr, ok := sh.heap.Alloc(uintptr(len(data)))
	if !ok {
		sh.scr.Print("run: out of heap\n")
		return
	}
	copy(sh.heap.Bytes(addr, uintptr(len(data))), data)

	frame := trapframe.Frame{EIP: uint32(addr)}
	if _, err := sh.sched.InsertSelf(frame, sh.pm.Kernel); err != nil {
		sh.scr.Print("run: " + err.Error() + "\n")
	}
}
