package keyboard

import "testing"

func TestTypeWordThenEnter(t *testing.T) {
	k := New()
	// scancodes for h, i (from asciiTable: h=0x23, i=0x17)
	scancodes := []byte{0x23, 0x17}
	for _, sc := range scancodes {
		if _, _, complete := k.Feed(sc); complete {
			t.Fatal("did not expect completion before Enter")
		}
	}
	_, line, complete := k.Feed(Enter)
	if !complete || line != "hi" {
		t.Fatalf("expected complete line %q, got complete=%v line=%q", "hi", complete, line)
	}
}

func TestShiftUppercases(t *testing.T) {
	k := New()
	k.Feed(0x2A) // left shift press
	k.Feed(0x1E) // 'a' scancode -> 'A' shifted
	k.Feed(0xAA) // left shift release
	k.Feed(0x1E) // 'a' again, unshifted now
	_, line, complete := k.Feed(Enter)
	if !complete || line != "Aa" {
		t.Fatalf("expected %q, got %q", "Aa", line)
	}
}

func TestBackspaceRemovesLastChar(t *testing.T) {
	k := New()
	k.Feed(0x1E) // a
	k.Feed(0x30) // b
	k.Feed(Backspace)
	_, line, _ := k.Feed(Enter)
	if line != "a" {
		t.Fatalf("expected %q after backspace, got %q", "a", line)
	}
}

func TestUnmappedScancodeIgnored(t *testing.T) {
	k := New()
	k.Feed(0x00) // '?' in the table
	_, line, _ := k.Feed(Enter)
	if line != "" {
		t.Fatalf("expected empty line for an unmapped scancode, got %q", line)
	}
}

func TestPressedTracksKeyState(t *testing.T) {
	k := New()
	k.Feed(0x1E)
	if !k.Pressed(0x1E) {
		t.Fatal("expected key to be marked pressed")
	}
	k.Feed(0x1E | 0x80) // release
	if k.Pressed(0x1E) {
		t.Fatal("expected key to be marked released")
	}
}

func TestFeedEchoesTypedCharactersAndBackspace(t *testing.T) {
	k := New()
	echo, _, _ := k.Feed(0x1E) // 'a'
	if echo != "a" {
		t.Fatalf("expected echo %q, got %q", "a", echo)
	}
	echo, _, _ = k.Feed(Backspace)
	if echo != BackspaceEcho {
		t.Fatalf("expected backspace echo, got %q", echo)
	}
	echo, _, complete := k.Feed(Enter)
	if echo != "" || !complete {
		t.Fatalf("expected Enter to echo nothing and complete, got echo=%q complete=%v", echo, complete)
	}
}
