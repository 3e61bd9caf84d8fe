// Package sched implements the preemptive round-robin task scheduler
// invoked from the timer IRQ, plus the insert/fork/paging-setup services
// reachable through the service-call gate (§4.H).
//
// Grounded on src/cpu/task_manager.c (start_process_kernel/start_process_user,
// the live_processes table and current_process_pid) and src/cpu/timer.c's
// timer_callback. Per the design notes, tasks are addressed purely by
// integer PID into a flat, append-only task table rather than by pointer,
// and kill_process -- declared but never implemented upstream -- is
// designed in here rather than silently dropped.
package sched

import (
	"vos5/src/paging"
	"vos5/src/trapframe"
)

// State is a task's position in its (trivial, in this revision) lifecycle.
type State int

const (
	// Runnable tasks take timer slices in round-robin order.
	Runnable State = iota
	// Killed tasks are never scheduled again but keep their table slot, so
	// PIDs already handed out never change meaning.
	Killed
)

// Task is the scheduler's record of one cooperating task: its saved
// interrupt frame and the address space it runs in.
type Task struct {
	Frame trapframe.Frame
	Space *paging.AddressSpace
	State State
}

// Scheduler holds the fixed-capacity task table and the index of the task
// that should receive the next timer slice.
type Scheduler struct {
	tasks    []*Task
	capacity int
	current  int
}

// ErrTaskTableFull is returned by operations that would grow the task table
// past its configured capacity.
var ErrTaskTableFull error = errTaskTableFull{}

type errTaskTableFull struct{}

func (errTaskTableFull) Error() string { return "task table full" }

// New creates a scheduler with room for capacity tasks.
func New(capacity int) *Scheduler {
	return &Scheduler{capacity: capacity}
}

// Count returns the number of populated task-table slots.
func (s *Scheduler) Count() int { return len(s.tasks) }

// RunnableCount returns the number of tasks still eligible for scheduling.
func (s *Scheduler) RunnableCount() int {
	n := 0
	for _, t := range s.tasks {
		if t.State == Runnable {
			n++
		}
	}
	return n
}

// Current returns the PID of the task that owns the next timer slice.
func (s *Scheduler) Current() int { return s.current }

// Task returns the task record for pid. It panics on an out-of-range pid,
// since the scheduler and gate are the only callers and always hold a pid
// they themselves issued.
func (s *Scheduler) Task(pid int) *Task {
	return s.tasks[pid]
}

func (s *Scheduler) insertTask(frame trapframe.Frame, space *paging.AddressSpace) (int, error) {
	if len(s.tasks) >= s.capacity {
		return -1, ErrTaskTableFull
	}
	s.tasks = append(s.tasks, &Task{Frame: frame, Space: space, State: Runnable})
	return len(s.tasks) - 1, nil
}

// InsertSelf registers the task currently executing (identified by its
// inbound interrupt frame) under address space space, and makes it the
// current task.
func (s *Scheduler) InsertSelf(frame trapframe.Frame, space *paging.AddressSpace) (int, error) {
	frame.CR3 = space.CR3
	pid, err := s.insertTask(frame, space)
	if err != nil {
		return -1, err
	}
	s.current = pid
	return pid, nil
}

// Fork snapshots the caller's frame into a new task, installs it under
// targetSpace, and arranges for both tasks to resume at returnAddr: the
// child with EAX=0, the parent (callerPID, whose live frame is mutated in
// place) with EAX=the child's PID. This matches the testable property S2
// and worked example #4; the prose in the fork() design paragraph names
// "child" and "parent" the other way around, which is a drafting slip this
// implementation does not follow.
func (s *Scheduler) Fork(callerPID int, targetSpace *paging.AddressSpace, returnAddr uint32) (int, error) {
	parent := s.tasks[callerPID]
	child := parent.Frame
	child.EIP = returnAddr
	child.EAX = 0
	child.CR3 = targetSpace.CR3

	childPID, err := s.insertTask(child, targetSpace)
	if err != nil {
		return -1, err
	}
	parent.Frame.EIP = returnAddr
	parent.Frame.EAX = uint32(childPID)
	return childPID, nil
}

// SetupTaskPaging builds a fresh address space (forked from kernelSpace) for
// the calling task, maps one physical frame as its user stack at
// userStackVA, and points the task's ESP/EBP at the top of that page
// (S3). The calling task's address space is replaced in its task-table slot.
func (s *Scheduler) SetupTaskPaging(pm *paging.Manager, callerPID int, userStackVA uintptr) error {
	as := pm.ForkAddressSpace(pm.Kernel)
	pa, ok := pm.Frames.Alloc()
	if !ok {
		return errOutOfFrames{}
	}
	pm.Map(as, userStackVA, pa)

	top := uint32(userStackVA) + uint32(paging.PageSize) - 1
	t := s.tasks[callerPID]
	t.Space = as
	t.Frame.ESP = top
	t.Frame.EBP = top
	t.Frame.CR3 = as.CR3
	return nil
}

type errOutOfFrames struct{}

func (errOutOfFrames) Error() string { return "no free physical frame for user stack" }

// KillProcess marks pid as no longer runnable. Per the design notes this was
// declared but never implemented upstream; here it removes the task from
// round-robin contention without compacting the table (so PIDs remain
// stable) and, if it was the current task, advances to the next runnable
// slot. It is an error to kill the last runnable task while others are
// merely dead (the scheduler would otherwise wedge with nothing to run).
func (s *Scheduler) KillProcess(pid int) error {
	if s.tasks[pid].State == Runnable && s.RunnableCount() == 1 {
		return errNoRunnableTasks{}
	}
	s.tasks[pid].State = Killed
	if pid == s.current {
		s.advanceToRunnable()
	}
	return nil
}

type errNoRunnableTasks struct{}

func (errNoRunnableTasks) Error() string { return "no runnable tasks remain" }

func (s *Scheduler) advanceToRunnable() {
	n := len(s.tasks)
	for i := 1; i <= n; i++ {
		cand := (s.current + i) % n
		if s.tasks[cand].State == Runnable {
			s.current = cand
			return
		}
	}
}

// Preempt implements the timer-IRQ path: with fewer than two tasks it is a
// no-op; otherwise it saves inbound into the current task's slot, advances
// current strictly round-robin over runnable slots, and overwrites inbound
// with the newly current task's frame so the common IRET path resumes it
// (including its CR3, switching address spaces).
func (s *Scheduler) Preempt(inbound *trapframe.Frame) {
	if len(s.tasks) < 2 {
		return
	}
	s.tasks[s.current].Frame = *inbound
	s.advanceToRunnable()
	*inbound = s.tasks[s.current].Frame
}
