// Package frame implements the global physical frame allocator: a bitmap
// covering every 4 KiB frame in the addressable physical range, with a bit
// set meaning "in use or excluded from the allocatable pool".
//
// Grounded on the combined responsibilities of the original enable_paging,
// mark_physical_page_used/mark_physical_page_free and get_first_physical_page
// in src/cpu/paging.c, which drove a byte-per-bit physical_page_bitmap
// alongside the page tables. Here the bitmap is the proper bit-packed
// bitmap.Bitmap type described by §4.A of the design.
package frame

import "vos5/src/bitmap"

// PageShift is the base-2 exponent of the frame size (4 KiB).
const PageShift = 12

// PageSize is the size in bytes of a single physical frame.
const PageSize = 1 << PageShift

// Sentinel is returned by FindFirstFree when the pool is exhausted.
const Sentinel = -1

// Allocator tracks physical frame availability with one bit per frame.
type Allocator struct {
	bm      *bitmap.Bitmap
	nframes uint
}

// HoleRange describes the physical range that is allocatable at boot; every
// frame outside it starts marked used (already claimed by the kernel's
// identity map).
type HoleRange struct {
	Start uintptr // inclusive
	End   uintptr // exclusive
}

// New builds a frame allocator over nframes frames, with only the frames
// inside hole initially clear (allocatable).
func New(nframes uint, hole HoleRange) *Allocator {
	a := &Allocator{bm: bitmap.New(nframes), nframes: nframes}
	for i := uint(0); i < nframes; i++ {
		addr := uintptr(i) * PageSize
		if addr >= hole.Start && addr < hole.End {
			a.bm.Reset(i)
		} else {
			a.bm.Set(i)
		}
	}
	return a
}

func addrToFrame(addr uintptr) uint {
	return uint(addr / PageSize)
}

// FindFirstFree returns the smallest frame index whose bit is clear, or
// Sentinel if the pool is exhausted.
func (a *Allocator) FindFirstFree() int {
	return a.bm.FindFirst(false, a.nframes, 0)
}

// MarkUsed sets the bit for the frame backing addr.
func (a *Allocator) MarkUsed(addr uintptr) {
	a.bm.Set(addrToFrame(addr))
}

// MarkFree clears the bit for the frame backing addr.
func (a *Allocator) MarkFree(addr uintptr) {
	a.bm.Reset(addrToFrame(addr))
}

// IsUsed reports whether the frame backing addr is currently marked used.
func (a *Allocator) IsUsed(addr uintptr) bool {
	return a.bm.Get(addrToFrame(addr))
}

// Alloc finds and marks the first free frame, returning its physical base
// address. ok is false (FrameExhausted) if no frame is available.
func (a *Allocator) Alloc() (addr uintptr, ok bool) {
	idx := a.FindFirstFree()
	if idx == Sentinel {
		return 0, false
	}
	a.bm.Set(uint(idx))
	return uintptr(idx) * PageSize, true
}

// NFrames returns the total number of frames tracked.
func (a *Allocator) NFrames() uint { return a.nframes }
