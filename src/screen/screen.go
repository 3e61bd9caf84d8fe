// Package screen models the VGA text-mode collaborator: an 80x25
// byte-addressable cell grid the core treats as a write-only sink exposing
// print, print_at and backspace (§6).
//
// Grounded on src/drivers/screen.c (kprint, kprint_at, kprint_backspace,
// clear_screen) -- scroll-on-overflow and the cursor-follows-print
// convention come directly from there, with the hardware video memory and
// 0x3D4/0x3D5 cursor ports replaced by an in-memory cell grid so the
// collaborator is host-testable.
package screen

import "strings"

// Cols and Rows are the visible VGA text-mode geometry.
const (
	Cols = 80
	Rows = 25
)

// Screen is an in-memory stand-in for the VGA text buffer at 0xB8000.
type Screen struct {
	cells    [Rows][Cols]byte
	col, row int
}

// New returns a cleared screen with the cursor at the origin.
func New() *Screen {
	s := &Screen{}
	s.Clear()
	return s
}

// Clear blanks every cell and homes the cursor.
func (s *Screen) Clear() {
	for r := range s.cells {
		for c := range s.cells[r] {
			s.cells[r][c] = ' '
		}
	}
	s.col, s.row = 0, 0
}

// Print writes msg at the cursor, advancing it and wrapping/scrolling as
// needed; '\n' forces a new line.
func (s *Screen) Print(msg string) {
	for i := 0; i < len(msg); i++ {
		if msg[i] == '\n' {
			s.newline()
			continue
		}
		s.putChar(msg[i])
	}
}

func (s *Screen) putChar(ch byte) {
	if s.col >= Cols {
		s.newline()
	}
	s.cells[s.row][s.col] = ch
	s.col++
}

func (s *Screen) newline() {
	s.col = 0
	s.row++
	if s.row >= Rows {
		s.scroll()
	}
}

func (s *Screen) scroll() {
	copy(s.cells[:Rows-1], s.cells[1:])
	for c := range s.cells[Rows-1] {
		s.cells[Rows-1][c] = ' '
	}
	s.row = Rows - 1
}

// PrintAt writes msg starting at (col, row) without disturbing the cursor
// (kprint_at_preserve); it does not wrap past the end of the row.
func (s *Screen) PrintAt(msg string, col, row int) {
	for i := 0; i < len(msg) && col+i < Cols; i++ {
		s.cells[row][col+i] = msg[i]
	}
}

// Backspace erases the character behind the cursor and moves it back one
// cell, wrapping to the previous row at column 0.
func (s *Screen) Backspace() {
	if s.col > 0 {
		s.col--
	} else if s.row > 0 {
		s.row--
		s.col = Cols - 1
	} else {
		return
	}
	s.cells[s.row][s.col] = ' '
}

// Line returns row's contents with trailing spaces trimmed, for tests and
// for the shell's own echo of what is on screen.
func (s *Screen) Line(row int) string {
	return strings.TrimRight(string(s.cells[row][:]), " ")
}

// CursorCol and CursorRow report the current cursor position.
func (s *Screen) CursorCol() int { return s.col }
func (s *Screen) CursorRow() int { return s.row }
