package catalog

import "testing"

// fakeDisk is a flat in-memory sector store addressed the same way the
// ATA driver addresses a real disk.
type fakeDisk struct {
	sectors [][SectorSize]byte
}

// newFakeDisk allocates at least enough sectors for Initialize's full
// 256-stride recovery scan (stride 8, so up to lba 255*8) plus n spare
// sectors for payload beyond that.
func newFakeDisk(n int) *fakeDisk {
	min := int(scanStride)*256 + n
	return &fakeDisk{sectors: make([][SectorSize]byte, min)}
}

func (d *fakeDisk) ReadSectors(lba uint32, sectorCount uint8, dst []byte) {
	for i := 0; i < int(sectorCount); i++ {
		copy(dst[i*SectorSize:(i+1)*SectorSize], d.sectors[int(lba)+i][:])
	}
}

func (d *fakeDisk) WriteSectors(lba uint32, sectorCount uint8, src []byte) {
	for i := 0; i < int(sectorCount); i++ {
		copy(d.sectors[int(lba)+i][:], src[i*SectorSize:(i+1)*SectorSize])
	}
}

func newLoadedCatalog(t *testing.T, disk *fakeDisk) *Catalog {
	t.Helper()
	c := New(disk)
	c.Load()
	return c
}

// F1 / scenario 5: write then read round-trips, padded up to a whole
// number of sectors.
func TestWriteReadRoundTrip(t *testing.T) {
	disk := newFakeDisk(200)
	c := newLoadedCatalog(t, disk)

	payload := make([]byte, 1000)
	for i := range payload {
		payload[i] = 0x41
	}
	c.Write("hi.txt", payload)

	got, ok := c.Read("hi.txt")
	if !ok {
		t.Fatal("expected hi.txt to be found")
	}
	if len(got) != 1024 {
		t.Fatalf("expected 1024-byte descriptor, got %d", len(got))
	}
	for i := 0; i < 1000; i++ {
		if got[i] != 0x41 {
			t.Fatalf("byte %d: got %#x, want 0x41", i, got[i])
		}
	}
}

// F2: a second write of the same name changes nothing.
func TestWriteExistingNameIgnored(t *testing.T) {
	disk := newFakeDisk(200)
	c := newLoadedCatalog(t, disk)

	c.Write("a.txt", []byte("first"))
	before := c.Entries()
	beforeFree := c.FirstFreeSector()

	c.Write("a.txt", []byte("second, much longer payload"))

	after := c.Entries()
	if len(before) != len(after) {
		t.Fatalf("expected entry count unchanged, got %d vs %d", len(before), len(after))
	}
	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("entry %d changed: %+v -> %+v", i, before[i], after[i])
		}
	}
	if c.FirstFreeSector() != beforeFree {
		t.Fatal("expected first_free_sector unchanged after a duplicate write")
	}
	got, _ := c.Read("a.txt")
	if string(got[:5]) != "first" {
		t.Fatalf("expected original payload preserved, got %q", got[:5])
	}
}

func TestOverwriteAbsentIsNoop(t *testing.T) {
	disk := newFakeDisk(200)
	c := newLoadedCatalog(t, disk)
	c.Overwrite("nope.txt", []byte("x"))
	if _, ok := c.Read("nope.txt"); ok {
		t.Fatal("expected overwrite of an absent name to remain absent")
	}
}

func TestOverwriteInPlace(t *testing.T) {
	disk := newFakeDisk(200)
	c := newLoadedCatalog(t, disk)
	c.Write("a.txt", make([]byte, 1500)) // 3 sectors

	c.Overwrite("a.txt", []byte("short"))
	got, ok := c.Read("a.txt")
	if !ok {
		t.Fatal("expected a.txt still present")
	}
	if len(got) != 1536 {
		t.Fatalf("expected entry's sector run unchanged at 1536 bytes (3 sectors), got %d", len(got))
	}
	if string(got[:5]) != "short" {
		t.Fatalf("expected new payload at the front, got %q", got[:5])
	}
	for i := 5; i < len(got); i++ {
		if got[i] != 0 {
			t.Fatalf("expected stale tail sectors zeroed, found %#x at %d", got[i], i)
		}
	}
}

func TestOverwriteTooLargeIsNoop(t *testing.T) {
	disk := newFakeDisk(200)
	c := newLoadedCatalog(t, disk)
	c.Write("a.txt", []byte("x")) // 1 sector

	c.Overwrite("a.txt", make([]byte, 5000)) // needs 10 sectors
	got, _ := c.Read("a.txt")
	if len(got) != 512 {
		t.Fatalf("expected the oversized overwrite to be rejected, entry still 512 bytes, got %d", len(got))
	}
}

// F3: a fresh Catalog loaded against the same disk reproduces
// first_free_sector and the entry sequence exactly.
func TestLoadRoundTripIsExact(t *testing.T) {
	disk := newFakeDisk(200)
	c := newLoadedCatalog(t, disk)
	c.Write("a.txt", []byte("aaaa"))
	c.Write("b.txt", make([]byte, 900))

	reloaded := New(disk)
	reloaded.Load()

	want := c.Entries()
	got := reloaded.Entries()
	if len(want) != len(got) {
		t.Fatalf("entry count mismatch: %d vs %d", len(want), len(got))
	}
	for i := range want {
		if want[i] != got[i] {
			t.Fatalf("entry %d mismatch: %+v vs %+v", i, want[i], got[i])
		}
	}
	if c.FirstFreeSector() != reloaded.FirstFreeSector() {
		t.Fatalf("first_free_sector mismatch: %d vs %d", c.FirstFreeSector(), reloaded.FirstFreeSector())
	}
}

// Scenario 6: zeroing the catalog sectors and reloading recovers the
// sentinel plus any stock program headers discovered on disk.
func TestCatalogRecoveryFromZeroedSectors(t *testing.T) {
	disk := newFakeDisk(16)

	// Plant a stock program header at scan stride 5 (lba 40): 16 bytes of
	// 0xFF, then a 32-byte name, then its own lba/length fields.
	var header [SectorSize]byte
	for i := 0; i < 16; i++ {
		header[i] = 0xFF
	}
	copy(header[16:48], []byte("editor"))
	putUint32LE(header[48:52], 500)
	putUint32LE(header[52:56], 2)
	disk.sectors[40] = header

	c := New(disk)
	c.Load()

	entries := c.Entries()
	if len(entries) < 1 || entries[0].NameString() != initNodeName {
		t.Fatalf("expected entry 0 to be the sentinel, got %+v", entries)
	}
	found := false
	for _, e := range entries[1:] {
		if e.NameString() == "editor" && e.LBA == 500 && e.Length == 2 {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected the recovered program header to reappear as a catalog entry, got %+v", entries)
	}
}

func putUint32LE(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}
