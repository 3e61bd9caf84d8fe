package sched

import (
	"testing"

	"vos5/src/frame"
	"vos5/src/paging"
	"vos5/src/trapframe"
)

func newManager(t *testing.T) *paging.Manager {
	t.Helper()
	hole := frame.HoleRange{Start: 0x4fff000, End: 0x7000000}
	m := paging.NewManager(paging.Entries*paging.Entries, hole, func(msg string) {
		t.Fatalf("unexpected panic: %s", msg)
	})
	m.InitKernelSpace()
	return m
}

// Scenario 3 / S1: round-robin visits every populated slot exactly once per
// full cycle, in insertion order.
func TestRoundRobinOrder(t *testing.T) {
	m := newManager(t)
	s := New(8)

	var pids []int
	eips := []uint32{0x1000, 0x2000, 0x3000}
	for _, e := range eips {
		f := trapframe.Frame{EIP: e}
		pid, err := s.InsertSelf(f, m.Kernel)
		if err != nil {
			t.Fatal(err)
		}
		pids = append(pids, pid)
	}

	// Simulate task 0 (the first inserted) being the one currently
	// executing when the timer fires.
	s.current = pids[0]

	var observed []uint32
	frame := s.tasks[pids[0]].Frame
	for i := 0; i < 6; i++ {
		s.Preempt(&frame)
		observed = append(observed, frame.EIP)
	}
	want := []uint32{0x2000, 0x3000, 0x1000, 0x2000, 0x3000, 0x1000}
	for i := range want {
		if observed[i] != want[i] {
			t.Fatalf("tick %d: got eip %#x, want %#x (full sequence %v)", i, observed[i], want[i], observed)
		}
	}
}

func TestPreemptNoopWithOneTask(t *testing.T) {
	m := newManager(t)
	s := New(4)
	f := trapframe.Frame{EIP: 0x1234}
	s.InsertSelf(f, m.Kernel)
	before := f
	s.Preempt(&f)
	if f != before {
		t.Fatalf("expected no-op preemption with a single task, got %+v", f)
	}
}

// S2 / scenario 4: fork leaves parent with eax=child pid, child with eax=0,
// both resuming at returnAddr.
func TestForkSemantics(t *testing.T) {
	m := newManager(t)
	s := New(4)
	parentPID, _ := s.InsertSelf(trapframe.Frame{EIP: 0x500, EAX: 0xff}, m.Kernel)

	target := m.ForkAddressSpace(m.Kernel)
	const returnAddr = 0x505
	childPID, err := s.Fork(parentPID, target, returnAddr)
	if err != nil {
		t.Fatal(err)
	}

	parent := s.Task(parentPID)
	child := s.Task(childPID)

	if parent.Frame.EAX != uint32(childPID) {
		t.Fatalf("expected parent eax=%d, got %d", childPID, parent.Frame.EAX)
	}
	if child.Frame.EAX != 0 {
		t.Fatalf("expected child eax=0, got %d", child.Frame.EAX)
	}
	if parent.Frame.EIP != returnAddr || child.Frame.EIP != returnAddr {
		t.Fatalf("expected both frames resuming at %#x, got parent=%#x child=%#x",
			returnAddr, parent.Frame.EIP, child.Frame.EIP)
	}
	if child.Frame.CR3 != target.CR3 {
		t.Fatalf("expected child cr3 to equal the target space written into ebx, got %d want %d",
			child.Frame.CR3, target.CR3)
	}
}

// S3: after setup_task_paging, esp and ebp equal the top of the newly
// mapped user-stack page.
func TestSetupTaskPagingStackTop(t *testing.T) {
	m := newManager(t)
	s := New(4)
	pid, _ := s.InsertSelf(trapframe.Frame{EIP: 0x10}, m.Kernel)

	const userStackVA = 0x05FFF000
	if err := s.SetupTaskPaging(m, pid, userStackVA); err != nil {
		t.Fatal(err)
	}

	top := uint32(userStackVA) + uint32(paging.PageSize) - 1
	task := s.Task(pid)
	if task.Frame.ESP != top || task.Frame.EBP != top {
		t.Fatalf("expected esp=ebp=%#x, got esp=%#x ebp=%#x", top, task.Frame.ESP, task.Frame.EBP)
	}
	if !task.Space.Present(userStackVA) {
		t.Fatal("expected user stack page to be present in the task's new address space")
	}
}

func TestTaskTableFull(t *testing.T) {
	m := newManager(t)
	s := New(1)
	if _, err := s.InsertSelf(trapframe.Frame{}, m.Kernel); err != nil {
		t.Fatal(err)
	}
	if _, err := s.InsertSelf(trapframe.Frame{}, m.Kernel); err != ErrTaskTableFull {
		t.Fatalf("expected ErrTaskTableFull, got %v", err)
	}
}

func TestKillProcessSkipsDeadSlotsInRoundRobin(t *testing.T) {
	m := newManager(t)
	s := New(4)
	s.InsertSelf(trapframe.Frame{EIP: 0x1}, m.Kernel)
	s.InsertSelf(trapframe.Frame{EIP: 0x2}, m.Kernel)
	s.InsertSelf(trapframe.Frame{EIP: 0x3}, m.Kernel)

	if err := s.KillProcess(1); err != nil {
		t.Fatal(err)
	}

	// Simulate task 0 being the one currently executing when the timer
	// fires (InsertSelf left the last inserted task current).
	s.current = 0

	f := s.Task(0).Frame
	s.Preempt(&f)
	if f.EIP != 0x3 {
		t.Fatalf("expected round-robin to skip killed pid 1 and land on eip 0x3, got %#x", f.EIP)
	}
}
