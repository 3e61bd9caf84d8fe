package frame

import "testing"

func TestOnlyHoleAllocatable(t *testing.T) {
	hole := HoleRange{Start: 0x4fff000, End: 0x7000000}
	a := New(0x2000, hole)
	for i := uint(0); i < a.nframes; i++ {
		addr := uintptr(i) * PageSize
		want := addr < hole.Start || addr >= hole.End
		if a.bm.Get(i) != want {
			t.Fatalf("frame %d (addr %#x): got used=%v, want %v", i, addr, a.bm.Get(i), want)
		}
	}
}

func TestAllocMarksUsed(t *testing.T) {
	hole := HoleRange{Start: 0, End: 0x10000}
	a := New(0x20, hole)
	addr, ok := a.Alloc()
	if !ok {
		t.Fatal("expected allocation to succeed")
	}
	if !a.IsUsed(addr) {
		t.Fatal("expected frame to be marked used after alloc")
	}
}

func TestMarkFreeThenRealloc(t *testing.T) {
	hole := HoleRange{Start: 0, End: 0x10000}
	a := New(0x20, hole)
	addr, _ := a.Alloc()
	a.MarkFree(addr)
	addr2, ok := a.Alloc()
	if !ok || addr2 != addr {
		t.Fatalf("expected reallocation of freed frame %#x, got %#x ok=%v", addr, addr2, ok)
	}
}

func TestExhaustion(t *testing.T) {
	hole := HoleRange{Start: 0, End: PageSize}
	a := New(1, hole)
	if _, ok := a.Alloc(); !ok {
		t.Fatal("expected first alloc to succeed")
	}
	if _, ok := a.Alloc(); ok {
		t.Fatal("expected pool exhaustion")
	}
}
