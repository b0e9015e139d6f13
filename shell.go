package slate

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/creack/pty"
)

// ShellElement hosts an interactive command in a pseudo-terminal. Output
// is accumulated as plain lines; escape sequences the program emits are
// stripped rather than interpreted. Keystrokes forwarded to the element
// are written to the command's stdin.
type ShellElement struct {
	BaseElement
	title string
	cmd   *exec.Cmd
	ptmx  *os.File

	// wake re-enters the window loop after the read goroutine appends
	// output.
	wake func()

	mu      sync.Mutex
	lines   []string
	partial string
	exited  bool
	closed  bool

	scrollY int
	viewH   int
	cols    int
	rows    int
}

// NewShellElement prepares a shell element running the given command.
// wake must marshal back into the window loop, typically Window.Wake.
func NewShellElement(title string, cmd *exec.Cmd, wake func()) *ShellElement {
	return &ShellElement{title: title, cmd: cmd, wake: wake}
}

// Start spawns the command in a PTY sized to the last rendered viewport
// and begins reading its output on a background goroutine.
func (s *ShellElement) Start() error {
	cols, rows := s.cols, s.rows
	if cols <= 0 {
		cols = 80
	}
	if rows <= 0 {
		rows = 24
	}
	ptmx, err := pty.StartWithSize(s.cmd, &pty.Winsize{
		Rows: uint16(rows),
		Cols: uint16(cols),
	})
	if err != nil {
		return fmt.Errorf("shell: start %q: %w", s.cmd.Path, err)
	}
	s.ptmx = ptmx
	go s.readLoop()
	return nil
}

// readLoop pumps PTY output into the line buffer and wakes the loop. It
// exits when the PTY closes, which happens when the command exits or
// Close is called.
func (s *ShellElement) readLoop() {
	buf := make([]byte, 4096)
	for {
		n, err := s.ptmx.Read(buf)
		if n > 0 {
			s.append(string(buf[:n]))
		}
		if err != nil {
			s.mu.Lock()
			s.exited = true
			s.mu.Unlock()
			s.MarkDirty()
			if s.wake != nil {
				s.wake()
			}
			return
		}
	}
}

func (s *ShellElement) append(chunk string) {
	s.mu.Lock()
	text := s.partial + stripControl(chunk)
	parts := strings.Split(text, "\n")
	s.partial = parts[len(parts)-1]
	s.lines = append(s.lines, parts[:len(parts)-1]...)
	atBottom := s.scrollY >= len(s.lines)-s.viewH-len(parts)
	if atBottom {
		s.scrollY = len(s.lines) // clamped at render
	}
	s.mu.Unlock()

	s.MarkDirty()
	if s.wake != nil {
		s.wake()
	}
}

// stripControl drops ANSI escape sequences (CSI, OSC, two-char escapes)
// and carriage returns so shell output renders as plain text.
func stripControl(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	const (
		stText = iota
		stEsc
		stCSI
		stOSC
	)
	state := stText
	for _, r := range text {
		switch state {
		case stEsc:
			switch r {
			case '[':
				state = stCSI
			case ']':
				state = stOSC
			default:
				state = stText // two-char escape, dropped whole
			}
		case stCSI:
			// Parameter bytes until a final byte.
			if r >= 0x40 && r <= 0x7e {
				state = stText
			}
		case stOSC:
			// Terminated by BEL or ESC \ (ST).
			if r == 0x07 {
				state = stText
			} else if r == 0x1b {
				state = stEsc
			}
		default:
			switch {
			case r == 0x1b:
				state = stEsc
			case r == '\r':
			case r == '\t':
				b.WriteString("    ")
			case r == '\n' || r >= ' ':
				b.WriteRune(r)
			}
		}
	}
	return b.String()
}

func (s *ShellElement) Title() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.exited {
		return s.title + " (exited)"
	}
	return s.title
}

func (s *ShellElement) Kind() string {
	return "shell"
}

func (s *ShellElement) ContextFlags() map[string]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return map[string]bool{"shellRunning": !s.exited}
}

func (s *ShellElement) Render(ctx Context, r *Region) {
	s.ClearDirty()

	s.mu.Lock()
	defer s.mu.Unlock()

	w, h := r.Size()
	if w != s.cols || h != s.rows {
		s.cols, s.rows = w, h
		if s.ptmx != nil {
			// Best effort; the command sees SIGWINCH.
			_ = pty.Setsize(s.ptmx, &pty.Winsize{Rows: uint16(h), Cols: uint16(w)})
		}
	}
	s.viewH = h

	total := len(s.lines)
	if s.partial != "" {
		total++
	}
	if s.scrollY > total-h {
		s.scrollY = total - h
	}
	if s.scrollY < 0 {
		s.scrollY = 0
	}

	for y := 0; y < h; y++ {
		idx := s.scrollY + y
		var line string
		switch {
		case idx < len(s.lines):
			line = s.lines[idx]
		case idx == len(s.lines):
			line = s.partial
		default:
			continue
		}
		r.WriteString(0, y, line, ctx.Theme.Base)
	}
}

func (s *ShellElement) HandleInput(ev Event) bool {
	if ev.Type == EventMouse && ev.Phase == MouseScroll {
		s.mu.Lock()
		if ev.Button == MouseBtnWheelUp {
			s.scrollY -= 3
		} else {
			s.scrollY += 3
		}
		s.mu.Unlock()
		s.MarkDirty()
		return true
	}

	if s.ptmx == nil {
		return false
	}

	switch ev.Type {
	case EventPaste:
		_, err := s.ptmx.WriteString(ev.Text)
		return err == nil
	case EventKey:
		seq := keyToPTY(ev)
		if seq == "" {
			return false
		}
		_, err := s.ptmx.WriteString(seq)
		return err == nil
	}
	return false
}

// keyToPTY encodes a key event back into the bytes a terminal would have
// sent for it.
func keyToPTY(ev Event) string {
	if ev.Key == KeyRune {
		if ev.Ctrl() && ev.Rune >= 'a' && ev.Rune <= 'z' {
			return string(rune(ev.Rune - 'a' + 1))
		}
		return string(ev.Rune)
	}
	switch ev.Key {
	case KeyEnter:
		return "\r"
	case KeyTab:
		return "\t"
	case KeyBackspace:
		return "\x7f"
	case KeyEscape:
		return "\x1b"
	case KeyUp:
		return "\x1b[A"
	case KeyDown:
		return "\x1b[B"
	case KeyRight:
		return "\x1b[C"
	case KeyLeft:
		return "\x1b[D"
	case KeyHome:
		return "\x1b[H"
	case KeyEnd:
		return "\x1b[F"
	case KeyDelete:
		return "\x1b[3~"
	case KeyPageUp:
		return "\x1b[5~"
	case KeyPageDown:
		return "\x1b[6~"
	}
	return ""
}

// Close terminates the PTY, which stops the read goroutine and signals
// the command. Safe to call more than once.
func (s *ShellElement) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	if s.ptmx == nil {
		return nil
	}
	err := s.ptmx.Close()
	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
		_, _ = s.cmd.Process.Wait()
	}
	return err
}
