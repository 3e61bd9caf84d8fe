package disasm

import "testing"

func TestDisassembleSimpleSequence(t *testing.T) {
	// push eax (0x50); inc eax (0x40); ret (0xC3)
	code := []byte{0x50, 0x40, 0xC3}
	lines := Disassemble(code, 10)
	if len(lines) != 3 {
		t.Fatalf("expected 3 decoded instructions, got %d: %+v", len(lines), lines)
	}
	if lines[0].Offset != 0 || lines[1].Offset != 1 || lines[2].Offset != 2 {
		t.Fatalf("unexpected offsets: %+v", lines)
	}
}

func TestDisassembleStopsAtMax(t *testing.T) {
	code := []byte{0x50, 0x50, 0x50, 0x50}
	lines := Disassemble(code, 2)
	if len(lines) != 2 {
		t.Fatalf("expected exactly 2 instructions, got %d", len(lines))
	}
}

func TestDisassembleStopsOnUndecodable(t *testing.T) {
	code := []byte{0x50, 0x0F, 0xFF} // push eax, then an undefined opcode
	lines := Disassemble(code, 10)
	if len(lines) != 1 {
		t.Fatalf("expected decoding to stop after the first instruction, got %d", len(lines))
	}
}
