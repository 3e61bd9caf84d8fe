// Package disasm renders a stretch of loaded task code as 32-bit x86
// assembly text for the shell's debug_command verb. The kernel itself never
// needs to understand the instructions it runs; this exists purely as a
// debugging aid for whoever is looking at the console.
//
// There is no equivalent in the original C sources -- a bare-metal kernel
// has no disassembler of its own to imitate -- so this is built directly
// against golang.org/x/arch/x86/x86asm, the same instruction-decoding
// package the Go toolchain itself uses for objdump-style output.
package disasm

import "golang.org/x/arch/x86/x86asm"

const mode32 = 32

// Line is one decoded instruction: its offset from the start of code and
// its Intel-syntax text.
type Line struct {
	Offset int
	Text   string
}

// Disassemble decodes up to maxInsns instructions starting at the
// beginning of code, in 32-bit mode. Decoding stops early, without error,
// at the first byte sequence x86asm cannot recognize -- loaded program
// images are not guaranteed to be code for their full length, and a
// debugging aid should degrade rather than fail.
func Disassemble(code []byte, maxInsns int) []Line {
	var lines []Line
	off := 0
	for len(lines) < maxInsns && off < len(code) {
		inst, err := x86asm.Decode(code[off:], mode32)
		if err != nil {
			break
		}
		lines = append(lines, Line{Offset: off, Text: x86asm.IntelSyntax(inst, 0, nil)})
		off += inst.Len
	}
	return lines
}
