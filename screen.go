package slate

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/mattn/go-runewidth"
	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// Terminal mode sequences. Init emits the enables in order; Restore emits
// the disables in reverse order.
const (
	seqAltScreenOn   = "\x1b7\x1b[?1047h" // save cursor, alternate screen
	seqAltScreenOff  = "\x1b[?1047l\x1b8"
	seqCursorHide    = "\x1b[?25l"
	seqCursorShow    = "\x1b[?25h"
	seqMouseOn       = "\x1b[?1002h\x1b[?1006h" // button-event tracking, SGR encoding
	seqMouseOff      = "\x1b[?1006l\x1b[?1002l"
	seqPasteOn       = "\x1b[?2004h"
	seqPasteOff      = "\x1b[?2004l"
	seqClear         = "\x1b[2J"
	seqCursorHome    = "\x1b[H"
	seqStyleReset    = "\x1b[0m"
)

// Screen manages the terminal display with double buffering and diff-based
// updates. Mutators write into the back buffer; Flush diffs it against the
// front buffer and emits the minimal byte stream.
type Screen struct {
	front  *Buffer   // What's currently displayed
	back   *Buffer   // What we're drawing to
	writer io.Writer // Output destination (usually os.Stdout)
	fd     int       // File descriptor for terminal operations

	width  int
	height int

	// Terminal state
	termState *term.State
	inRawMode bool

	// Resize handling
	resizeChan chan Size
	sigChan    chan os.Signal

	// Rendering state
	lastStyle Style        // Last style we emitted (for optimization)
	buf       bytes.Buffer // Reusable buffer for building output

	// Synchronization - protects buffer access during resize
	mu sync.Mutex
}

// Size represents dimensions.
type Size struct {
	Width  int
	Height int
}

// NewScreen creates a new screen writing to the given writer.
// Pass nil to use os.Stdout.
func NewScreen(w io.Writer) (*Screen, error) {
	if w == nil {
		w = os.Stdout
	}

	fd := int(os.Stdout.Fd())
	width, height, err := getTerminalSize(fd)
	if err != nil {
		// Default fallback
		width, height = 80, 24
	}

	s := &Screen{
		front:      NewBuffer(width, height),
		back:       NewBuffer(width, height),
		writer:     w,
		fd:         fd,
		width:      width,
		height:     height,
		resizeChan: make(chan Size, 1),
		sigChan:    make(chan os.Signal, 1),
		lastStyle:  DefaultStyle(),
	}

	return s, nil
}

// newTestScreen builds a screen around an in-memory writer, bypassing
// terminal setup. Used by tests and available to embedders that render
// off-screen.
func newTestScreen(w io.Writer, width, height int) *Screen {
	return &Screen{
		front:      NewBuffer(width, height),
		back:       NewBuffer(width, height),
		writer:     w,
		width:      width,
		height:     height,
		resizeChan: make(chan Size, 1),
		sigChan:    make(chan os.Signal, 1),
		lastStyle:  DefaultStyle(),
	}
}

// getTerminalSize returns the current terminal dimensions.
func getTerminalSize(fd int) (int, int, error) {
	ws, err := unix.IoctlGetWinsize(fd, unix.TIOCGWINSZ)
	if err != nil {
		return 0, 0, err
	}
	return int(ws.Col), int(ws.Row), nil
}

// Size returns the current screen dimensions.
func (s *Screen) Size() Size {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Size{Width: s.width, Height: s.height}
}

// Buffer returns the back buffer for drawing.
func (s *Screen) Buffer() *Buffer {
	return s.back
}

// ResizeChan returns a channel that receives size updates on terminal resize.
func (s *Screen) ResizeChan() <-chan Size {
	return s.resizeChan
}

// Init puts the terminal into raw mode and enables the alternate screen,
// mouse tracking, and bracketed paste. Every enable here has a matching
// disable in Restore.
func (s *Screen) Init() error {
	if s.inRawMode {
		return nil
	}

	state, err := term.MakeRaw(s.fd)
	if err != nil {
		return fmt.Errorf("failed to enter raw mode: %w", err)
	}
	s.termState = state
	s.inRawMode = true

	// Start listening for resize signals
	signal.Notify(s.sigChan, syscall.SIGWINCH)
	go s.handleSignals()

	s.writeString(seqAltScreenOn)
	s.writeString(seqClear)
	s.writeString(seqCursorHome)
	s.writeString(seqCursorHide)
	s.writeString(seqMouseOn)
	s.writeString(seqPasteOn)

	return nil
}

// Restore returns the terminal to its original state. Idempotent: safe to
// call from a deferred path and again from a signal path.
func (s *Screen) Restore() error {
	if !s.inRawMode {
		return nil
	}

	s.writeString(seqPasteOff)
	s.writeString(seqMouseOff)
	s.writeString(seqCursorShow)
	s.writeString(seqAltScreenOff)
	s.writeString(seqStyleReset)

	signal.Stop(s.sigChan)

	if s.termState != nil {
		if err := term.Restore(s.fd, s.termState); err != nil {
			return fmt.Errorf("failed to restore termios: %w", err)
		}
	}

	s.inRawMode = false
	return nil
}

// EmergencyRestore writes the teardown sequences to the given writer
// unconditionally. Used from panic handlers where the Screen's own state
// may be suspect; the cooked-mode restore is best-effort.
func EmergencyRestore(w io.Writer, s *Screen) {
	io.WriteString(w, seqPasteOff)
	io.WriteString(w, seqMouseOff)
	io.WriteString(w, seqCursorShow)
	io.WriteString(w, seqAltScreenOff)
	io.WriteString(w, seqStyleReset)
	if s != nil && s.termState != nil {
		term.Restore(s.fd, s.termState)
	}
}

// handleSignals forwards SIGWINCH as a Size on resizeChan. The actual
// buffer reallocation happens on the window loop, never here.
func (s *Screen) handleSignals() {
	for range s.sigChan {
		width, height, err := getTerminalSize(s.fd)
		if err != nil {
			continue
		}
		// Non-blocking send; a pending resize is superseded by re-reading
		// the size when the loop gets to it.
		select {
		case s.resizeChan <- Size{Width: width, Height: height}:
		default:
		}
	}
}

// Resize reallocates both buffers at the new dimensions and invalidates the
// front buffer entirely, forcing the next Flush to repaint everything.
func (s *Screen) Resize(width, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if width == s.width && height == s.height {
		return
	}
	s.width = width
	s.height = height
	s.front = NewBuffer(width, height)
	s.back = NewBuffer(width, height)
	s.back.MarkAllDirty()
	// The real screen no longer matches the front buffer.
	s.writeString(seqClear)
}

// FlushStats holds statistics from the last flush.
type FlushStats struct {
	DirtyRows   int
	ChangedRows int
	BytesOut    int
}

// lastFlushStats holds stats from the most recent flush.
var lastFlushStats FlushStats

// GetFlushStats returns stats from the last flush.
func GetFlushStats() FlushStats {
	return lastFlushStats
}

// debugFlush enables detailed flush debugging via SLATE_DEBUG_FLUSH env var
var debugFlush = os.Getenv("SLATE_DEBUG_FLUSH") != ""

// Flush renders the back buffer to the terminal using per-cell diff.
// Only cells that actually changed are written: the cursor is repositioned
// only when the write position is non-contiguous with the previous write,
// and style codes are emitted only when the style differs from the last one
// written. The whole frame goes out in a single Write; a write failure is
// returned to the caller, which treats it as fatal.
func (s *Screen) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.buf.Reset()

	dirtyCount := 0
	changedCount := 0
	cursorX, cursorY := -1, -1

	for y := 0; y < s.height; y++ {
		// Fast path: skip rows not marked dirty (no writes since last frame)
		if !s.back.RowDirty(y) {
			continue
		}
		dirtyCount++

		rowChanged := false
		for x := 0; x < s.width; x++ {
			backCell := s.back.Get(x, y)
			if backCell == s.front.Get(x, y) {
				continue
			}

			// Trailing halves of wide glyphs are never diffed on their own;
			// the leading cell's write covers them.
			if backCell.Rune == 0 {
				s.front.Set(x, y, backCell)
				continue
			}

			if !rowChanged {
				rowChanged = true
				changedCount++
			}

			// Position cursor if not already there
			if cursorX != x || cursorY != y {
				s.buf.WriteString("\x1b[")
				s.writeIntToBuf(y + 1)
				s.buf.WriteByte(';')
				s.writeIntToBuf(x + 1)
				s.buf.WriteByte('H')
			}

			s.writeCell(&s.buf, backCell)
			s.front.Set(x, y, backCell)
			// cursor advances by the display width of the character
			rw := runewidth.RuneWidth(backCell.Rune)
			if rw == 0 {
				rw = 1 // zero-width chars still advance cursor by 1 in most terminals
			}
			cursorX = x + rw
			cursorY = y
		}
	}

	if debugFlush {
		fmt.Fprintf(os.Stderr, "Flush: %d dirty rows, %d changed rows, buf size %d\n",
			dirtyCount, changedCount, s.buf.Len())
	}

	// Reset style at end if we have changes
	if changedCount > 0 {
		s.buf.WriteString(seqStyleReset)
		s.lastStyle = DefaultStyle()
	}

	// Clear dirty flags for next frame
	s.back.ClearDirtyFlags()

	lastFlushStats = FlushStats{DirtyRows: dirtyCount, ChangedRows: changedCount, BytesOut: s.buf.Len()}

	if s.buf.Len() == 0 {
		return nil
	}
	if _, err := s.writer.Write(s.buf.Bytes()); err != nil {
		return fmt.Errorf("render write failed: %w", err)
	}
	return nil
}

// writeIntToBuf writes an integer to the buffer without allocation.
func (s *Screen) writeIntToBuf(n int) {
	if n == 0 {
		s.buf.WriteByte('0')
		return
	}
	if n < 0 {
		s.buf.WriteByte('-')
		n = -n
	}

	// Use scratch space on stack (max 10 digits for int32)
	var scratch [10]byte
	i := len(scratch)
	for n > 0 {
		i--
		scratch[i] = byte('0' + n%10)
		n /= 10
	}
	s.buf.Write(scratch[i:])
}

// writeCell writes a cell's style and rune to the buffer.
func (s *Screen) writeCell(buf *bytes.Buffer, cell Cell) {
	// Only emit style changes
	if !cell.Style.Equal(s.lastStyle) {
		s.writeStyle(buf, cell.Style)
		s.lastStyle = cell.Style
	}
	buf.WriteRune(cell.Rune)
}

// writeStyle writes ANSI escape codes for the given style.
func (s *Screen) writeStyle(buf *bytes.Buffer, style Style) {
	// Reset first if we need to turn off attributes
	buf.WriteString("\x1b[0")

	// Attributes
	if style.Attr.Has(AttrBold) {
		buf.WriteString(";1")
	}
	if style.Attr.Has(AttrDim) {
		buf.WriteString(";2")
	}
	if style.Attr.Has(AttrItalic) {
		buf.WriteString(";3")
	}
	if style.Attr.Has(AttrUnderline) {
		buf.WriteString(";4")
	}
	if style.Attr.Has(AttrBlink) {
		buf.WriteString(";5")
	}
	if style.Attr.Has(AttrInverse) {
		buf.WriteString(";7")
	}
	if style.Attr.Has(AttrStrikethrough) {
		buf.WriteString(";9")
	}

	// Foreground color
	s.writeColor(buf, style.FG, true)

	// Background color
	s.writeColor(buf, style.BG, false)

	buf.WriteString("m")
}

// writeColor writes the ANSI escape code for a color (allocation-free).
func (s *Screen) writeColor(buf *bytes.Buffer, c Color, fg bool) {
	switch c.Mode {
	case ColorDefault:
		// Use default color (39 for fg, 49 for bg)
		if fg {
			buf.WriteString(";39")
		} else {
			buf.WriteString(";49")
		}
	case Color16:
		// Basic 16 colors
		base := 30
		if !fg {
			base = 40
		}
		if c.Index >= 8 {
			// Bright colors
			base += 60
			buf.WriteByte(';')
			s.writeIntToBuf(base + int(c.Index-8))
		} else {
			buf.WriteByte(';')
			s.writeIntToBuf(base + int(c.Index))
		}
	case Color256:
		// 256 color palette
		if fg {
			buf.WriteString(";38;5;")
		} else {
			buf.WriteString(";48;5;")
		}
		s.writeIntToBuf(int(c.Index))
	case ColorRGB:
		// True color
		if fg {
			buf.WriteString(";38;2;")
		} else {
			buf.WriteString(";48;2;")
		}
		s.writeIntToBuf(int(c.R))
		buf.WriteByte(';')
		s.writeIntToBuf(int(c.G))
		buf.WriteByte(';')
		s.writeIntToBuf(int(c.B))
	}
}

// writeString is a helper to write a string directly to the terminal.
func (s *Screen) writeString(str string) {
	io.WriteString(s.writer, str)
}

// Clear clears the back buffer.
func (s *Screen) Clear() {
	s.back.Clear()
}

// CursorShape represents the terminal cursor shape.
type CursorShape int

const (
	CursorDefault        CursorShape = 0 // Terminal default
	CursorBlockBlink     CursorShape = 1 // Blinking block
	CursorBlock          CursorShape = 2 // Steady block
	CursorUnderlineBlink CursorShape = 3 // Blinking underline
	CursorUnderline      CursorShape = 4 // Steady underline
	CursorBarBlink       CursorShape = 5 // Blinking bar (line)
	CursorBar            CursorShape = 6 // Steady bar (line)
)

// MoveCursor moves the hardware cursor to the given position (0-indexed).
func (s *Screen) MoveCursor(x, y int) {
	// Build escape sequence without allocation: \x1b[row;colH
	var scratch [32]byte
	b := scratch[:0]
	b = append(b, "\x1b["...)
	b = appendInt(b, y+1)
	b = append(b, ';')
	b = appendInt(b, x+1)
	b = append(b, 'H')
	s.writer.Write(b)
}

// SetCursorShape changes the cursor shape.
func (s *Screen) SetCursorShape(shape CursorShape) {
	var scratch [16]byte
	b := scratch[:0]
	b = append(b, "\x1b["...)
	b = appendInt(b, int(shape))
	b = append(b, " q"...)
	s.writer.Write(b)
}

// appendInt appends an integer to a byte slice without allocation.
func appendInt(b []byte, n int) []byte {
	if n == 0 {
		return append(b, '0')
	}
	if n < 0 {
		b = append(b, '-')
		n = -n
	}
	var scratch [10]byte
	i := len(scratch)
	for n > 0 {
		i--
		scratch[i] = byte('0' + n%10)
		n /= 10
	}
	return append(b, scratch[i:]...)
}
