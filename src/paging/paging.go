// Package paging implements the virtual-memory manager: per-address-space
// page directories and tables, the global/virtual frame bitmaps, map/unmap,
// and page-fault classification.
//
// Grounded on src/cpu/paging.c (enable_paging, copy_nonkernel_pages, map_page,
// free_page, switch_cr3, page_fault) and on biscuit's vm/as.go for the Go
// idiom of a mutex-guarded address-space type with small, single-purpose
// methods. Per the design notes, an AddressSpace owns its directory and
// tables through a value type rather than raw pointers; no node is ever
// addressed by an untyped pointer the way kernel_pages/PAGE_STRUCT were in
// the original.
package paging

import (
	"sync"

	"vos5/src/bitmap"
	"vos5/src/frame"
)

// Page table/directory geometry, fixed by the 32-bit x86 convention.
const (
	Entries   = 1024
	PageSize  = frame.PageSize
	PageShift = frame.PageShift

	PTEPresent  uint32 = 1 << 0
	PTEWritable uint32 = 1 << 1
	PTEUser     uint32 = 1 << 2
	pteAddrMask uint32 = 0xFFFFF000
)

// AddressSpace is a page directory plus its page tables and per-space
// virtual bitmap (§3). The kernel keeps one distinguished instance (the
// kernel address space); every other instance is built by cloning it.
type AddressSpace struct {
	mu sync.Mutex

	// Tables[i][j] is the PTE for virtual page i*Entries+j.
	Tables [Entries][Entries]uint32

	// VBitmap tracks which virtual pages are currently valid in this space.
	VBitmap *bitmap.Bitmap

	// CR3 is an opaque identifier standing in for the physical directory
	// base a real CPU would load into %cr3. It distinguishes address
	// spaces without claiming to model physical directory storage.
	CR3 uint32
}

func pteIndex(va uintptr) (table, off int) {
	pn := va / PageSize
	return int(pn / Entries), int(pn % Entries)
}

// PTE returns the raw page-table entry backing virtual address va.
func (as *AddressSpace) PTE(va uintptr) uint32 {
	t, o := pteIndex(va)
	return as.Tables[t][o]
}

func (as *AddressSpace) setPTE(va uintptr, v uint32) {
	t, o := pteIndex(va)
	as.Tables[t][o] = v
}

// Present reports whether va currently has a present mapping.
func (as *AddressSpace) Present(va uintptr) bool {
	return as.PTE(va)&PTEPresent != 0
}

// Frame returns the physical frame address backing va (valid only if Present).
func (as *AddressSpace) Frame(va uintptr) uintptr {
	return uintptr(as.PTE(va) & pteAddrMask)
}

// Manager owns the global frame allocator, the kernel's distinguished
// address space, and the hole range left absent in it for user mappings.
// Operations here correspond to §4.D's init_kernel_space, fork_address_space,
// map, unmap, switch_to and the page-fault handler.
type Manager struct {
	Frames *frame.Allocator
	Kernel *AddressSpace
	Hole   frame.HoleRange

	active *AddressSpace
	nextCR3 uint32
	onPanic func(string)

	// spaces lets the service-call gate resolve the opaque CR3 value a
	// caller hands through EBX back to the *AddressSpace it names, since a
	// hosted simulation has no raw pointer to pass in its place.
	spaces map[uint32]*AddressSpace
}

// NewManager constructs a paging manager whose global frame allocator covers
// nframes physical frames, with hole left out of the allocatable pool.
// onPanic is invoked when the page-fault handler decides the fault is
// unrecoverable -- which, per §4.D, is every fault; HandlePageFault does
// nothing further once it returns.
func NewManager(nframes uint, hole frame.HoleRange, onPanic func(string)) *Manager {
	return &Manager{
		Frames:  frame.New(nframes, hole),
		Hole:    hole,
		onPanic: onPanic,
		spaces:  make(map[uint32]*AddressSpace),
	}
}

// SpaceByCR3 resolves the opaque handle previously returned as an
// AddressSpace's CR3 field back to the space itself. Callers that only hold
// a CR3 value -- the gate, decoding a register -- use this instead of a
// pointer.
func (m *Manager) SpaceByCR3(cr3 uint32) (*AddressSpace, bool) {
	as, ok := m.spaces[cr3]
	return as, ok
}

// InitKernelSpace builds the kernel address space: every entry i is filled
// with (i*PageSize)|present|writable except inside the hole, which is left
// absent. Frames inside the hole were already cleared in the global bitmap
// by frame.New; InitKernelSpace does not mark them used.
func (m *Manager) InitKernelSpace() *AddressSpace {
	as := &AddressSpace{VBitmap: bitmap.New(Entries * Entries)}
	for i := 0; i < Entries; i++ {
		for j := 0; j < Entries; j++ {
			idx := i*Entries + j
			addr := uintptr(idx) * PageSize
			if addr >= m.Hole.Start && addr < m.Hole.End {
				as.Tables[i][j] = 0
				as.VBitmap.Reset(uint(idx))
			} else {
				as.Tables[i][j] = uint32(addr) | PTEPresent | PTEWritable
				as.VBitmap.Set(uint(idx))
			}
		}
	}
	as.CR3 = m.allocCR3()
	m.spaces[as.CR3] = as
	m.Kernel = as
	m.active = as
	return as
}

func (m *Manager) allocCR3() uint32 {
	m.nextCR3++
	return m.nextCR3
}

// ForkAddressSpace constructs a new address space by cloning source's
// entries verbatim outside the hole and leaving the hole absent, per §4.D.
// The new directory's tables are its own array (never aliased to source's).
func (m *Manager) ForkAddressSpace(source *AddressSpace) *AddressSpace {
	as := &AddressSpace{VBitmap: bitmap.New(Entries * Entries)}
	for i := 0; i < Entries; i++ {
		for j := 0; j < Entries; j++ {
			idx := i*Entries + j
			addr := uintptr(idx) * PageSize
			if addr >= m.Hole.Start && addr < m.Hole.End {
				as.Tables[i][j] = 0
				as.VBitmap.Reset(uint(idx))
			} else {
				as.Tables[i][j] = source.Tables[i][j]
				if source.VBitmap.Get(uint(idx)) {
					as.VBitmap.Set(uint(idx))
				}
			}
		}
	}
	as.CR3 = m.allocCR3()
	m.spaces[as.CR3] = as
	return as
}

// Map installs a present+writable mapping of physicalAddr at virtualAddr in
// space, marking the physical frame used in the global bitmap and the
// virtual page valid in the space's bitmap.
func (m *Manager) Map(space *AddressSpace, virtualAddr, physicalAddr uintptr) {
	space.mu.Lock()
	defer space.mu.Unlock()
	space.setPTE(virtualAddr, uint32(physicalAddr&^0xFFF)|PTEPresent|PTEWritable)
	m.Frames.MarkUsed(physicalAddr)
	space.VBitmap.Set(uint(virtualAddr / PageSize))
}

// Unmap removes the mapping at virtualAddr from space, clearing both
// bitmaps. Unmapping an address with no present mapping is a no-op.
func (m *Manager) Unmap(space *AddressSpace, virtualAddr uintptr) {
	space.mu.Lock()
	defer space.mu.Unlock()
	if !space.Present(virtualAddr) {
		space.setPTE(virtualAddr, 0)
		space.VBitmap.Reset(uint(virtualAddr / PageSize))
		return
	}
	phys := space.Frame(virtualAddr)
	space.setPTE(virtualAddr, 0)
	m.Frames.MarkFree(phys)
	space.VBitmap.Reset(uint(virtualAddr / PageSize))
}

// SwitchTo loads space's directory as the active one. On real hardware this
// writes %cr3; here it just updates the manager's notion of "active".
func (m *Manager) SwitchTo(space *AddressSpace) {
	m.active = space
}

// Active returns the address space last installed by SwitchTo.
func (m *Manager) Active() *AddressSpace {
	return m.active
}

// FaultKind classifies a page-fault error code.
type FaultKind struct {
	Present     bool
	Write       bool
	User        bool
	Reserved    bool
	Instruction bool
}

const (
	errPresent  uint32 = 1 << 0
	errWrite    uint32 = 1 << 1
	errUser     uint32 = 1 << 2
	errReserved uint32 = 1 << 3
	errInstr    uint32 = 1 << 4
)

// Classify decodes the x86 page-fault error code.
func Classify(errCode uint32) FaultKind {
	return FaultKind{
		Present:     errCode&errPresent != 0,
		Write:       errCode&errWrite != 0,
		User:        errCode&errUser != 0,
		Reserved:    errCode&errReserved != 0,
		Instruction: errCode&errInstr != 0,
	}
}

// HandlePageFault classifies the fault at faultAddr with the given error
// code, reports it, and halts via the manager's panic callback. There is no
// recovery in this revision (§4.D, §7).
func (m *Manager) HandlePageFault(faultAddr uintptr, errCode uint32) {
	k := Classify(errCode)
	msg := "page fault at " + hex(uint32(faultAddr)) + " code=" + hex(errCode) +
		" present=" + boolstr(k.Present) +
		" write=" + boolstr(k.Write) +
		" user=" + boolstr(k.User)
	if m.onPanic != nil {
		m.onPanic(msg)
	}
}

func boolstr(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

const hexdigits = "0123456789abcdef"

func hex(v uint32) string {
	if v == 0 {
		return "0x0"
	}
	buf := make([]byte, 0, 10)
	for v > 0 {
		buf = append([]byte{hexdigits[v&0xF]}, buf...)
		v >>= 4
	}
	return "0x" + string(buf)
}
