package slate

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestFlushWritesOnlyChanges(t *testing.T) {
	var out bytes.Buffer
	s := newTestScreen(&out, 20, 5)

	s.Buffer().WriteString(0, 0, "hello", DefaultStyle())
	if err := s.Flush(); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "hello") {
		t.Fatalf("output %q missing written text", out.String())
	}

	// Nothing changed: the second flush must write zero bytes.
	out.Reset()
	if err := s.Flush(); err != nil {
		t.Fatal(err)
	}
	if out.Len() != 0 {
		t.Fatalf("idle flush wrote %d bytes: %q", out.Len(), out.String())
	}
}

func TestFlushDiffsSingleCell(t *testing.T) {
	var out bytes.Buffer
	s := newTestScreen(&out, 20, 5)

	s.Buffer().WriteString(0, 0, "hello", DefaultStyle())
	s.Flush()

	out.Reset()
	s.Buffer().SetRune(1, 0, 'a', DefaultStyle())
	s.Flush()

	got := out.String()
	if !strings.Contains(got, "a") {
		t.Fatalf("output %q missing the changed cell", got)
	}
	for _, r := range "hello" {
		if r == 'e' {
			continue // overwritten position
		}
		if strings.ContainsRune(got, r) && r != 'a' {
			t.Fatalf("output %q rewrote unchanged cell %q", got, r)
		}
	}
}

func TestFlushSkipsCleanRows(t *testing.T) {
	var out bytes.Buffer
	s := newTestScreen(&out, 20, 10)

	s.Buffer().WriteString(0, 3, "row", DefaultStyle())
	s.Flush()

	stats := GetFlushStats()
	if stats.DirtyRows != 1 {
		t.Fatalf("dirty rows = %d, want 1", stats.DirtyRows)
	}
}

func TestFlushBatchesStyleRuns(t *testing.T) {
	var out bytes.Buffer
	s := newTestScreen(&out, 40, 3)

	style := DefaultStyle().Foreground(Red).Bold()
	s.Buffer().WriteString(0, 0, "0123456789", style)
	s.Flush()

	// One style emission covers the whole same-style run; the trailing
	// reset is the only other SGR sequence.
	sgr := strings.Count(out.String(), "\x1b[0")
	if sgr != 2 {
		t.Fatalf("got %d SGR sequences, want 2 (run style + reset): %q", sgr, out.String())
	}
}

func TestFlushContiguousCellsSkipCursorMoves(t *testing.T) {
	var out bytes.Buffer
	s := newTestScreen(&out, 40, 3)

	s.Buffer().WriteString(0, 0, "abcdef", DefaultStyle())
	s.Flush()

	moves := strings.Count(out.String(), ";1H") + strings.Count(out.String(), ";2H") +
		strings.Count(out.String(), ";3H") + strings.Count(out.String(), ";4H")
	if moves != 1 {
		t.Fatalf("got %d cursor moves for a contiguous run, want 1: %q", moves, out.String())
	}
}

func TestFlushWideGlyph(t *testing.T) {
	var out bytes.Buffer
	s := newTestScreen(&out, 20, 3)

	s.Buffer().SetRune(0, 0, '世', DefaultStyle())
	s.Buffer().SetRune(2, 0, 'x', DefaultStyle())
	s.Flush()

	got := out.String()
	if !strings.Contains(got, "世") || !strings.Contains(got, "x") {
		t.Fatalf("output %q missing glyphs", got)
	}
	// The placeholder cell behind the wide glyph must not be written, so
	// the wide rune and 'x' come out adjacent with no repositioning
	// between them.
	if strings.Contains(got, "\x1b[1;3H") {
		t.Fatalf("output %q repositioned over the wide glyph's trailing cell", got)
	}
}

func TestResizeForcesFullRepaint(t *testing.T) {
	var out bytes.Buffer
	s := newTestScreen(&out, 20, 5)

	s.Buffer().WriteString(0, 0, "hi", DefaultStyle())
	s.Flush()

	out.Reset()
	s.Resize(30, 8)
	if size := s.Size(); size.Width != 30 || size.Height != 8 {
		t.Fatalf("size = %+v after resize", size)
	}
	if !strings.Contains(out.String(), "\x1b[2J") {
		t.Fatal("resize did not clear the real screen")
	}

	// Content drawn after resize flushes even where the old front buffer
	// had the same coordinates.
	out.Reset()
	s.Buffer().WriteString(0, 0, "hi", DefaultStyle())
	if err := s.Flush(); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "hi") {
		t.Fatalf("post-resize flush %q missing content", out.String())
	}
}

type failWriter struct{}

func (failWriter) Write(p []byte) (int, error) {
	return 0, errors.New("broken pipe")
}

func TestFlushReturnsWriteError(t *testing.T) {
	s := newTestScreen(failWriter{}, 10, 3)
	s.Buffer().WriteString(0, 0, "x", DefaultStyle())
	if err := s.Flush(); err == nil {
		t.Fatal("expected error from failed write")
	}
}

func TestEmergencyRestoreWritesResetSequences(t *testing.T) {
	var out bytes.Buffer
	EmergencyRestore(&out, nil)
	got := out.String()
	for _, seq := range []string{"\x1b[0m", "\x1b[?1047l", "\x1b[?25h"} {
		if !strings.Contains(got, seq) {
			t.Fatalf("emergency restore output %q missing %q", got, seq)
		}
	}
}
