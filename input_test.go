package slate

import (
	"testing"
)

func feedString(t *testing.T, d *Decoder, s string) []Event {
	t.Helper()
	return d.Feed([]byte(s))
}

func wantKey(t *testing.T, ev Event, key KeyCode, mod Modifier) {
	t.Helper()
	if ev.Type != EventKey {
		t.Fatalf("type = %v, want EventKey", ev.Type)
	}
	if ev.Key != key || ev.Mod != mod {
		t.Fatalf("key = %v mod = %v, want %v %v", ev.Key, ev.Mod, key, mod)
	}
}

func wantRune(t *testing.T, ev Event, r rune, mod Modifier) {
	t.Helper()
	if ev.Type != EventKey || ev.Key != KeyRune {
		t.Fatalf("event = %+v, want rune key", ev)
	}
	if ev.Rune != r || ev.Mod != mod {
		t.Fatalf("rune = %q mod = %v, want %q %v", ev.Rune, ev.Mod, r, mod)
	}
}

func TestDecoderPlainRunes(t *testing.T) {
	var d Decoder
	events := feedString(t, &d, "ab")
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	wantRune(t, events[0], 'a', ModNone)
	wantRune(t, events[1], 'b', ModNone)
}

func TestDecoderCSISequences(t *testing.T) {
	cases := []struct {
		name string
		in   string
		key  KeyCode
		mod  Modifier
	}{
		{"up", "\x1b[A", KeyUp, ModNone},
		{"ctrl-up", "\x1b[1;5A", KeyUp, ModCtrl},
		{"shift-tab", "\x1b[Z", KeyBacktab, ModShift},
		{"delete", "\x1b[3~", KeyDelete, ModNone},
		{"f5", "\x1b[15~", KeyF5, ModNone},
		{"home-ss3", "\x1bOH", KeyHome, ModNone},
		{"f1-ss3", "\x1bOP", KeyF1, ModNone},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var d Decoder
			events := feedString(t, &d, tc.in)
			if len(events) != 1 {
				t.Fatalf("got %d events, want 1", len(events))
			}
			wantKey(t, events[0], tc.key, tc.mod)
		})
	}
}

func TestDecoderSplitCSI(t *testing.T) {
	var d Decoder
	if events := feedString(t, &d, "\x1b["); len(events) != 0 {
		t.Fatalf("partial CSI produced %d events", len(events))
	}
	if !d.Pending() {
		t.Fatal("decoder should be holding the partial sequence")
	}
	events := feedString(t, &d, "1;5A")
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	wantKey(t, events[0], KeyUp, ModCtrl)
}

func TestDecoderEscTimeout(t *testing.T) {
	var d Decoder
	if events := feedString(t, &d, "\x1b"); len(events) != 0 {
		t.Fatalf("lone ESC produced %d events before timeout", len(events))
	}
	events := d.FlushPending()
	if len(events) != 1 {
		t.Fatalf("flush produced %d events, want 1", len(events))
	}
	wantKey(t, events[0], KeyEscape, ModNone)
	if d.Pending() {
		t.Fatal("decoder still pending after flush")
	}
}

func TestDecoderEscThenBracketIsFlushedLiterally(t *testing.T) {
	// ESC [ alone could still become a CSI sequence; after the timeout it
	// must surface as a literal escape followed by '['.
	var d Decoder
	feedString(t, &d, "\x1b[")
	events := d.FlushPending()
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	wantKey(t, events[0], KeyEscape, ModNone)
	wantRune(t, events[1], '[', ModNone)
}

func TestDecoderAltRune(t *testing.T) {
	var d Decoder
	events := feedString(t, &d, "\x1bx")
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	wantRune(t, events[0], 'x', ModAlt)
}

func TestDecoderControlBytes(t *testing.T) {
	var d Decoder

	events := feedString(t, &d, "\x13")
	wantRune(t, events[0], 's', ModCtrl)

	events = feedString(t, &d, "\r")
	wantKey(t, events[0], KeyEnter, ModNone)

	events = feedString(t, &d, "\t")
	wantKey(t, events[0], KeyTab, ModNone)

	events = feedString(t, &d, "\x7f")
	wantKey(t, events[0], KeyBackspace, ModNone)
}

func TestDecoderSplitUTF8(t *testing.T) {
	var d Decoder
	raw := []byte("é") // 0xc3 0xa9
	if events := d.Feed(raw[:1]); len(events) != 0 {
		t.Fatalf("partial rune produced %d events", len(events))
	}
	events := d.Feed(raw[1:])
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	wantRune(t, events[0], 'é', ModNone)
}

func TestDecoderInvalidUTF8(t *testing.T) {
	var d Decoder
	events := d.Feed([]byte{0xc3, 'a'}) // truncated sequence then ASCII
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	wantRune(t, events[0], 0xFFFD, ModNone)
	wantRune(t, events[1], 'a', ModNone)
}

func TestDecoderBracketedPaste(t *testing.T) {
	var d Decoder
	// The pasted text embeds an arrow-key sequence; it must come through
	// verbatim, not as a key event.
	payload := "hello\x1b[Aworld"
	events := feedString(t, &d, "\x1b[200~"+payload+"\x1b[201~")
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].Type != EventPaste {
		t.Fatalf("type = %v, want EventPaste", events[0].Type)
	}
	if events[0].Text != payload {
		t.Fatalf("paste text = %q, want %q", events[0].Text, payload)
	}
}

func TestDecoderPasteSplitAcrossReads(t *testing.T) {
	var d Decoder
	feedString(t, &d, "\x1b[200~abc")
	// Split inside the end marker itself.
	feedString(t, &d, "def\x1b[20")
	events := feedString(t, &d, "1~x")
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Type != EventPaste || events[0].Text != "abcdef" {
		t.Fatalf("paste = %+v, want abcdef", events[0])
	}
	wantRune(t, events[1], 'x', ModNone)
}

func TestDecoderSGRMouse(t *testing.T) {
	cases := []struct {
		name   string
		in     string
		x, y   int
		button MouseButton
		phase  MousePhase
		mod    Modifier
	}{
		{"left-press", "\x1b[<0;10;5M", 9, 4, MouseBtnLeft, MousePress, ModNone},
		{"left-release", "\x1b[<0;10;5m", 9, 4, MouseBtnLeft, MouseRelease, ModNone},
		{"drag", "\x1b[<32;3;3M", 2, 2, MouseBtnLeft, MouseDrag, ModNone},
		{"wheel-up", "\x1b[<64;1;1M", 0, 0, MouseBtnWheelUp, MouseScroll, ModNone},
		{"wheel-down", "\x1b[<65;1;1M", 0, 0, MouseBtnWheelDown, MouseScroll, ModNone},
		{"ctrl-click", "\x1b[<16;2;2M", 1, 1, MouseBtnLeft, MousePress, ModCtrl},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var d Decoder
			events := feedString(t, &d, tc.in)
			if len(events) != 1 {
				t.Fatalf("got %d events, want 1", len(events))
			}
			ev := events[0]
			if ev.Type != EventMouse {
				t.Fatalf("type = %v, want EventMouse", ev.Type)
			}
			if ev.MouseX != tc.x || ev.MouseY != tc.y {
				t.Errorf("pos = (%d,%d), want (%d,%d)", ev.MouseX, ev.MouseY, tc.x, tc.y)
			}
			if ev.Button != tc.button || ev.Phase != tc.phase {
				t.Errorf("button = %v phase = %v, want %v %v", ev.Button, ev.Phase, tc.button, tc.phase)
			}
			if ev.Mod != tc.mod {
				t.Errorf("mod = %v, want %v", ev.Mod, tc.mod)
			}
		})
	}
}

func TestDecoderMalformedCSIDegrades(t *testing.T) {
	// An over-long parameter run cannot be a real sequence; the ESC is
	// surfaced literally and the rest reparsed as text.
	var d Decoder
	in := "\x1b[" + "1;1;1;1;1;1;1;1;1;1;1;1;1;1;1;1;1;1;1;1;1;1;1;1;1"
	events := feedString(t, &d, in+"Q")
	if len(events) == 0 {
		t.Fatal("malformed CSI produced no events")
	}
	wantKey(t, events[0], KeyEscape, ModNone)
}

func TestDecoderStrayPasteEndDropped(t *testing.T) {
	var d Decoder
	events := feedString(t, &d, "\x1b[201~a")
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	wantRune(t, events[0], 'a', ModNone)
}
