// Package heap implements the kernel's fixed-window allocator (the `ta_*`
// family in the original sources: ta_init, ta_alloc, ta_alloc_align,
// ta_calloc, ta_free).
//
// The original libc/mem.c embeds raw block-record pointers directly into
// three singly linked lists (free/used/fresh). Per the design notes this is
// reworked into an arena-plus-index scheme: block records live in a flat
// slice and lists are threaded through int32 indices, so no record is ever
// addressed by a real pointer.
package heap

import "vos5/src/util"

const nilHandle int32 = -1

// Block describes one allocated or free span of the heap window.
type Block struct {
	addr uintptr
	size uintptr
	next int32
}

// Heap is a fixed physical window [base, limit) managed by three linked
// lists of block records (free, used, fresh) threaded through a record
// arena, plus a bump pointer `top`.
type Heap struct {
	mem []byte // backing store for the window; mem[0] corresponds to `base`

	base, limit uintptr
	top         uintptr

	splitThresh uintptr
	alignment   uintptr

	blocks           []Block
	freeH, usedH, freshH int32
}

// Init creates a heap over the caller-owned window mem. maxBlocks bounds the
// number of simultaneously live block records (free+used+fresh). splitThresh
// is the minimum excess required to carve a remainder block on allocation;
// alignment must be a power of two.
func Init(mem []byte, maxBlocks int, splitThresh, alignment uintptr) *Heap {
	h := &Heap{
		mem:         mem,
		base:        0,
		limit:       uintptr(len(mem)),
		splitThresh: splitThresh,
		alignment:   alignment,
		blocks:      make([]Block, maxBlocks),
	}
	h.top = h.base
	h.freeH = nilHandle
	h.usedH = nilHandle
	for i := range h.blocks {
		if i == len(h.blocks)-1 {
			h.blocks[i].next = nilHandle
		} else {
			h.blocks[i].next = int32(i + 1)
		}
	}
	if maxBlocks == 0 {
		h.freshH = nilHandle
	} else {
		h.freshH = 0
	}
	return h
}

func (h *Heap) blk(i int32) *Block {
	return &h.blocks[i]
}

// insertFree threads handle hb into the free list, kept sorted by addr.
func (h *Heap) insertFree(hb int32) {
	var prev int32 = nilHandle
	cur := h.freeH
	b := h.blk(hb)
	for cur != nilHandle && h.blk(cur).addr <= b.addr {
		prev = cur
		cur = h.blk(cur).next
	}
	if prev != nilHandle {
		h.blk(prev).next = hb
	} else {
		h.freeH = hb
	}
	b.next = cur
}

// release returns every block from scan (inclusive) up to but not including
// stop to the fresh pool.
func (h *Heap) release(scan, stop int32) {
	for scan != stop {
		next := h.blk(scan).next
		h.blk(scan).addr = 0
		h.blk(scan).size = 0
		h.blk(scan).next = h.freshH
		h.freshH = scan
		scan = next
	}
}

// compact merges every maximal run of adjacent free blocks into one.
func (h *Heap) compact() {
	ptr := h.freeH
	for ptr != nilHandle {
		prev := ptr
		scan := h.blk(ptr).next
		for scan != nilHandle && h.blk(prev).addr+h.blk(prev).size == h.blk(scan).addr {
			prev = scan
			scan = h.blk(scan).next
		}
		if prev != ptr {
			newSize := h.blk(prev).addr - h.blk(ptr).addr + h.blk(prev).size
			next := h.blk(prev).next
			h.release(h.blk(ptr).next, next)
			h.blk(ptr).size = newSize
			h.blk(ptr).next = next
		}
		ptr = h.blk(ptr).next
	}
}

// allocBlock implements the shared search used by Alloc and AllocAligned: it
// takes the first free block, in address order, that is either large enough
// or a "top" block (one reaching the bump pointer, with room to grow within
// the window), which is accepted even when it is smaller than the request.
// Only when no free block qualifies does it carve directly from the top.
func (h *Heap) allocBlock(num uintptr) (int32, bool) {
	num = util.Roundup(num, h.alignment)

	var prev int32 = nilHandle
	ptr := h.freeH
	for ptr != nilHandle {
		b := h.blk(ptr)
		isTop := b.addr+b.size >= h.top && b.addr+num <= h.limit
		if isTop || b.size >= num {
			if prev != nilHandle {
				h.blk(prev).next = b.next
			} else {
				h.freeH = b.next
			}
			b.next = h.usedH
			h.usedH = ptr
			if isTop {
				b.size = num
				h.top = b.addr + num
			} else if h.freshH != nilHandle {
				excess := b.size - num
				if excess >= h.splitThresh {
					b.size = num
					split := h.freshH
					h.freshH = h.blk(split).next
					h.blk(split).addr = b.addr + num
					h.blk(split).size = excess
					h.insertFree(split)
					h.compact()
				}
			}
			return ptr, true
		}
		prev = ptr
		ptr = b.next
	}

	newTop := h.top + num
	if h.freshH != nilHandle && newTop <= h.limit {
		hb := h.freshH
		h.freshH = h.blk(hb).next
		h.blk(hb).addr = h.top
		h.blk(hb).size = num
		h.blk(hb).next = h.usedH
		h.usedH = hb
		h.top = newTop
		return hb, true
	}
	return nilHandle, false
}

// Alloc rounds n up to the configured alignment and returns a fresh payload
// address, or ok=false (OutOfHeap) if no space is available.
func (h *Heap) Alloc(n uintptr) (uintptr, bool) {
	hb, ok := h.allocBlock(n)
	if !ok {
		return 0, false
	}
	return h.blk(hb).addr, true
}

// AllocAligned returns n bytes whose address is a multiple of a. Unlike the
// original ta_alloc_align (which doubled the request and leaked the
// unaligned prefix), the prefix here is carved into its own free block
// whenever a fresh record is available, so H1 (disjoint live ranges) keeps
// holding and no heap space is permanently lost.
func (h *Heap) AllocAligned(n, a uintptr) (uintptr, bool) {
	if a == 0 {
		a = 1
	}
	req := n + a - 1
	hb, ok := h.allocBlock(req)
	if !ok {
		return 0, false
	}
	b := h.blk(hb)
	aligned := util.Roundup(b.addr, a)
	if aligned != b.addr {
		prefix := aligned - b.addr
		if h.freshH != nilHandle {
			split := h.freshH
			h.freshH = h.blk(split).next
			h.blk(split).addr = b.addr
			h.blk(split).size = prefix
			// unlink hb's used-list entry is unnecessary: we only shrink it
			// in place and insert the prefix as a free block.
			h.insertFree(split)
			h.compact()
			b.addr = aligned
			b.size -= prefix
		}
		// no fresh record available: keep the whole (unaligned-start) block
		// allocated; the aligned address returned is still valid since it
		// lies within [b.addr, b.addr+b.size).
	}
	return aligned, true
}

// Calloc allocates n*size bytes and zeroes the payload.
func (h *Heap) Calloc(n, size uintptr) (uintptr, bool) {
	addr, ok := h.Alloc(n * size)
	if !ok {
		return 0, false
	}
	for i := addr; i < addr+n*size; i++ {
		h.mem[i] = 0
	}
	return addr, true
}

// Free releases the used block whose payload address equals p. It reports
// false (UnknownFree) if no such block is tracked.
func (h *Heap) Free(p uintptr) bool {
	var prev int32 = nilHandle
	cur := h.usedH
	for cur != nilHandle {
		b := h.blk(cur)
		if b.addr == p {
			if prev != nilHandle {
				h.blk(prev).next = b.next
			} else {
				h.usedH = b.next
			}
			h.insertFree(cur)
			h.compact()
			return true
		}
		prev = cur
		cur = b.next
	}
	return false
}

// Bytes returns the payload slice of length n starting at addr, for callers
// that need to read or write through the window directly (e.g. the file
// catalog staging buffers).
func (h *Heap) Bytes(addr, n uintptr) []byte {
	return h.mem[addr : addr+n]
}

// Base returns the heap window's lowest address.
func (h *Heap) Base() uintptr { return h.base }

// Limit returns the heap window's exclusive upper bound.
func (h *Heap) Limit() uintptr { return h.limit }

// Top returns the current bump pointer.
func (h *Heap) Top() uintptr { return h.top }

func countList(h *Heap, head int32) int {
	n := 0
	for cur := head; cur != nilHandle; cur = h.blk(cur).next {
		n++
	}
	return n
}

// NumFree reports the number of tracked free blocks.
func (h *Heap) NumFree() int { return countList(h, h.freeH) }

// NumUsed reports the number of tracked used blocks.
func (h *Heap) NumUsed() int { return countList(h, h.usedH) }

// NumFresh reports the number of unused block records still in the pool.
func (h *Heap) NumFresh() int { return countList(h, h.freshH) }

// Check verifies invariant H3: fresh+free+used equals the configured maximum.
func (h *Heap) Check() bool {
	return len(h.blocks) == h.NumFree()+h.NumUsed()+h.NumFresh()
}

// FreeRanges returns the free list, in address order, as (addr, size) pairs.
// Intended for property-based tests (H2: sortedness, non-adjacency).
func (h *Heap) FreeRanges() [][2]uintptr {
	var out [][2]uintptr
	for cur := h.freeH; cur != nilHandle; cur = h.blk(cur).next {
		b := h.blk(cur)
		out = append(out, [2]uintptr{b.addr, b.size})
	}
	return out
}
