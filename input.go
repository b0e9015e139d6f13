package slate

import (
	"bytes"
	"fmt"
	"os"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// DefaultEscTimeout is how long a lone ESC (or an unfinished escape
// sequence) is held before being flushed as a literal Escape key. There is
// no single correct value across terminals; it is a tunable, not protocol.
const DefaultEscTimeout = 50 * time.Millisecond

// maxCSIScan bounds how far the decoder will look for a CSI terminator
// before giving up on the sequence.
const maxCSIScan = 48

var (
	pasteStartSeq = []byte("\x1b[200~")
	pasteEndSeq   = []byte("\x1b[201~")
)

// Decoder turns a raw terminal byte stream into Events. It is purely
// incremental: Feed may be called with arbitrary fragments (an escape
// sequence or UTF-8 rune split across reads is held until complete) and
// FlushPending resolves the ambiguous-ESC case after a timeout.
//
// The Decoder itself has no goroutines or timers; Reader supplies those.
type Decoder struct {
	buf     []byte // pending bytes that did not yet parse to an event
	inPaste bool
	paste   []byte // accumulated bracketed-paste content
}

// Feed appends raw bytes and returns all events that became complete.
func (d *Decoder) Feed(data []byte) []Event {
	d.buf = append(d.buf, data...)
	return d.drain()
}

// Pending reports whether undecoded bytes are being held back. Paste
// accumulation does not count: bytes inside a paste region are never
// reinterpreted, so there is nothing to disambiguate.
func (d *Decoder) Pending() bool {
	return !d.inPaste && len(d.buf) > 0
}

// FlushPending resolves a held-back partial sequence by emitting its
// leading ESC as a literal Escape key and reparsing the remainder. Called
// by Reader when the escape timeout elapses. Never drops bytes.
func (d *Decoder) FlushPending() []Event {
	if d.inPaste || len(d.buf) == 0 {
		return nil
	}
	var events []Event
	for len(d.buf) > 0 {
		if d.buf[0] == 0x1b {
			events = append(events, Event{Type: EventKey, Key: KeyEscape})
			d.buf = d.buf[1:]
			events = append(events, d.drain()...)
			continue
		}
		// Non-ESC pending bytes are a partial UTF-8 rune; emit the
		// replacement character rather than holding it forever.
		events = append(events, Event{Type: EventKey, Key: KeyRune, Rune: 0xFFFD})
		d.buf = d.buf[1:]
		events = append(events, d.drain()...)
	}
	return events
}

// drain parses as much of the buffer as possible and compacts it.
func (d *Decoder) drain() []Event {
	var events []Event
	consumed := d.parse(d.buf, &events)
	if consumed > 0 {
		if consumed >= len(d.buf) {
			d.buf = d.buf[:0]
		} else {
			copy(d.buf, d.buf[consumed:])
			d.buf = d.buf[:len(d.buf)-consumed]
		}
	}
	return events
}

// parse walks data emitting events, returning the number of bytes consumed.
// It stops early on an incomplete trailing sequence.
func (d *Decoder) parse(data []byte, events *[]Event) int {
	i := 0
	n := len(data)

	for i < n {
		if d.inPaste {
			rel := bytes.Index(data[i:], pasteEndSeq)
			if rel >= 0 {
				d.paste = append(d.paste, data[i:i+rel]...)
				*events = append(*events, Event{Type: EventPaste, Text: string(d.paste)})
				d.paste = nil
				d.inPaste = false
				i += rel + len(pasteEndSeq)
				continue
			}
			// Keep any tail that could be the start of the end marker;
			// everything before it is paste content, verbatim.
			keep := markerOverlap(data[i:], pasteEndSeq)
			d.paste = append(d.paste, data[i:n-keep]...)
			return n - keep
		}

		b := data[i]

		// Fast path: printable ASCII
		if b >= 0x20 && b < 0x7f {
			*events = append(*events, Event{Type: EventKey, Key: KeyRune, Rune: rune(b)})
			i++
			continue
		}

		// Escape sequence
		if b == 0x1b {
			if i+1 >= n {
				return i // Wait for more data (or the escape timeout)
			}

			consumed, ev, emit := d.parseEscape(data[i:])
			if consumed == 0 {
				// Incomplete sequence, wait for more data
				return i
			}
			if consumed < 0 {
				// Malformed: degrade to a literal Escape key and let the
				// following bytes reparse on their own.
				*events = append(*events, Event{Type: EventKey, Key: KeyEscape})
				i++
				continue
			}
			if emit {
				*events = append(*events, ev)
			}
			i += consumed
			continue
		}

		// Control characters
		if b < 0x20 {
			*events = append(*events, parseControl(b))
			i++
			continue
		}

		// DEL
		if b == 0x7f {
			*events = append(*events, Event{Type: EventKey, Key: KeyBackspace})
			i++
			continue
		}

		// UTF-8 multibyte
		seqLen := utf8SeqLen(b)
		if seqLen == 0 {
			// Invalid start byte
			*events = append(*events, Event{Type: EventKey, Key: KeyRune, Rune: 0xFFFD})
			i++
			continue
		}
		if i+seqLen > n {
			// Incomplete UTF-8, wait for more data
			return i
		}

		rn, size := decodeRune(data[i:])
		*events = append(*events, Event{Type: EventKey, Key: KeyRune, Rune: rn})
		i += size
	}
	return i
}

// markerOverlap returns the length of the longest suffix of data that is a
// proper prefix of marker.
func markerOverlap(data, marker []byte) int {
	maxLen := len(marker) - 1
	if maxLen > len(data) {
		maxLen = len(data)
	}
	for l := maxLen; l > 0; l-- {
		if bytes.Equal(data[len(data)-l:], marker[:l]) {
			return l
		}
	}
	return 0
}

// parseEscape parses a sequence starting at an ESC byte. Returns bytes
// consumed (0 = incomplete, -1 = malformed), the event, and whether the
// event should be emitted (well-formed unknown sequences are swallowed).
func (d *Decoder) parseEscape(data []byte) (int, Event, bool) {
	if len(data) < 2 {
		return 0, Event{}, false
	}

	// ESC ESC -> Alt+Escape
	if data[1] == 0x1b {
		return 2, Event{Type: EventKey, Key: KeyEscape, Mod: ModAlt}, true
	}

	if data[1] == '[' {
		return d.parseCSI(data)
	}
	if data[1] == 'O' {
		return parseSS3(data)
	}

	// Alt+control character (ESC + 0x00-0x1F)
	if data[1] < 0x20 {
		ev := parseControl(data[1])
		ev.Mod |= ModAlt
		return 2, ev, true
	}

	// Alt+printable
	if data[1] >= 0x20 && data[1] < 0x7f {
		return 2, Event{Type: EventKey, Key: KeyRune, Rune: rune(data[1]), Mod: ModAlt}, true
	}

	return -1, Event{}, false
}

// parseCSI parses a CSI sequence without allocation.
func (d *Decoder) parseCSI(data []byte) (int, Event, bool) {
	if len(data) < 3 {
		return 0, Event{}, false
	}

	// SGR mouse: ESC [ < Btn ; X ; Y M/m
	if data[2] == '<' {
		return parseSGRMouse(data)
	}

	end := 2
	maxScan := len(data)
	if maxScan > maxCSIScan {
		maxScan = maxCSIScan
	}

	terminated := false
	for end < maxScan {
		b := data[end]
		if b >= 0x40 && b <= 0x7e {
			end++
			terminated = true
			break
		}
		// Parameter and intermediate bytes
		if b < 0x20 || b > 0x3f {
			return -1, Event{}, false
		}
		end++
	}

	if !terminated {
		if end >= maxCSIScan {
			return -1, Event{}, false // Degenerate runaway sequence
		}
		return 0, Event{}, false // Incomplete
	}

	body := data[2:end]

	// Bracketed paste markers
	if bytes.Equal(body, []byte("200~")) {
		d.inPaste = true
		return end, Event{}, false
	}
	if bytes.Equal(body, []byte("201~")) {
		// Stray end marker with no open region: drop it
		return end, Event{}, false
	}

	if key, mod, ok := lookupCSI(body); ok {
		return end, Event{Type: EventKey, Key: key, Mod: mod}, true
	}

	// Unknown but well-formed CSI - consume and swallow
	return end, Event{}, false
}

// parseSS3 parses an SS3 sequence, consuming unknown sequences silently.
func parseSS3(data []byte) (int, Event, bool) {
	if len(data) < 3 {
		return 0, Event{}, false
	}
	if key, mod, ok := lookupSS3(data[2:3]); ok {
		return 3, Event{Type: EventKey, Key: key, Mod: mod}, true
	}
	return 3, Event{}, false
}

// parseControl maps control bytes to key events. Ctrl+letter arrives as the
// letter with the ctrl modifier, matching the chord grammar.
func parseControl(b byte) Event {
	switch b {
	case 0x00: // Ctrl+Space or Ctrl+@
		return Event{Type: EventKey, Key: KeyRune, Rune: ' ', Mod: ModCtrl}
	case 0x08: // Ctrl+H, conventionally backspace
		return Event{Type: EventKey, Key: KeyBackspace}
	case 0x09:
		return Event{Type: EventKey, Key: KeyTab}
	case 0x0a, 0x0d: // LF, CR
		return Event{Type: EventKey, Key: KeyEnter}
	case 0x1b:
		return Event{Type: EventKey, Key: KeyEscape}
	case 0x1c:
		return Event{Type: EventKey, Key: KeyRune, Rune: '\\', Mod: ModCtrl}
	case 0x1d:
		return Event{Type: EventKey, Key: KeyRune, Rune: ']', Mod: ModCtrl}
	case 0x1e:
		return Event{Type: EventKey, Key: KeyRune, Rune: '^', Mod: ModCtrl}
	case 0x1f:
		return Event{Type: EventKey, Key: KeyRune, Rune: '_', Mod: ModCtrl}
	}
	if b >= 0x01 && b <= 0x1a {
		return Event{Type: EventKey, Key: KeyRune, Rune: rune('a' + b - 1), Mod: ModCtrl}
	}
	return Event{Type: EventKey, Key: KeyNone}
}

// parseSGRMouse parses SGR mouse reports: ESC [ < Btn ; X ; Y M/m
func parseSGRMouse(data []byte) (int, Event, bool) {
	// Find terminator M or m
	end := 3
	for end < len(data) && end < maxCSIScan {
		if data[end] == 'M' || data[end] == 'm' {
			break
		}
		end++
	}
	if end >= len(data) {
		if end >= maxCSIScan {
			return -1, Event{}, false
		}
		return 0, Event{}, false
	}
	if data[end] != 'M' && data[end] != 'm' {
		return -1, Event{}, false
	}

	btn, x, y, ok := parseSGRParams(data[3:end])
	if !ok {
		return -1, Event{}, false
	}

	ev := Event{Type: EventMouse, MouseX: x - 1, MouseY: y - 1} // 0-indexed

	// Bits 0-1: button (0=left, 1=middle, 2=right, 3=none)
	// Bit 5 (32): motion, bit 6 (64): scroll
	buttonID := btn & 0x03
	isMotion := btn&32 != 0
	isScroll := btn&64 != 0

	switch {
	case isScroll:
		if buttonID == 0 {
			ev.Button = MouseBtnWheelUp
		} else {
			ev.Button = MouseBtnWheelDown
		}
		ev.Phase = MouseScroll
	default:
		switch buttonID {
		case 0:
			ev.Button = MouseBtnLeft
		case 1:
			ev.Button = MouseBtnMiddle
		case 2:
			ev.Button = MouseBtnRight
		case 3:
			ev.Button = MouseBtnNone
		}

		if data[end] == 'M' {
			switch {
			case isMotion && ev.Button != MouseBtnNone:
				ev.Phase = MouseDrag
			case isMotion:
				ev.Phase = MouseMove
			default:
				ev.Phase = MousePress
			}
		} else {
			ev.Phase = MouseRelease
		}
	}

	// Modifier bits
	if btn&4 != 0 {
		ev.Mod |= ModShift
	}
	if btn&8 != 0 {
		ev.Mod |= ModAlt
	}
	if btn&16 != 0 {
		ev.Mod |= ModCtrl
	}

	return end + 1, ev, true
}

// parseSGRParams extracts btn, x, y from "Btn;X;Y" format
func parseSGRParams(data []byte) (btn, x, y int, ok bool) {
	state := 0 // 0=btn, 1=x, 2=y
	val := 0

	for _, b := range data {
		if b == ';' {
			switch state {
			case 0:
				btn = val
			case 1:
				x = val
			}
			state++
			val = 0
			if state > 2 {
				return 0, 0, 0, false
			}
		} else if b >= '0' && b <= '9' {
			val = val*10 + int(b-'0')
			if val > 9999 { // Sanity limit
				return 0, 0, 0, false
			}
		} else {
			return 0, 0, 0, false
		}
	}

	if state != 2 {
		return 0, 0, 0, false
	}
	y = val
	return btn, x, y, true
}

// utf8SeqLen returns expected UTF-8 sequence length from start byte, 0 if invalid
func utf8SeqLen(b byte) int {
	if b < 0x80 {
		return 1
	}
	if b&0xe0 == 0xc0 {
		return 2
	}
	if b&0xf0 == 0xe0 {
		return 3
	}
	if b&0xf8 == 0xf0 {
		return 4
	}
	return 0 // Invalid
}

// decodeRune decodes the first UTF-8 rune from data
func decodeRune(data []byte) (rune, int) {
	if len(data) == 0 {
		return 0, 0
	}

	b := data[0]
	if b < 0x80 {
		return rune(b), 1
	}

	var size int
	var minRune rune
	var r rune

	switch {
	case b&0xe0 == 0xc0:
		size = 2
		minRune = 0x80
		r = rune(b & 0x1f)
	case b&0xf0 == 0xe0:
		size = 3
		minRune = 0x800
		r = rune(b & 0x0f)
	case b&0xf8 == 0xf0:
		size = 4
		minRune = 0x10000
		r = rune(b & 0x07)
	default:
		return 0xFFFD, 1 // Invalid, return replacement char
	}

	if len(data) < size {
		return 0xFFFD, 1
	}

	for i := 1; i < size; i++ {
		if data[i]&0xc0 != 0x80 {
			return 0xFFFD, 1
		}
		r = r<<6 | rune(data[i]&0x3f)
	}

	if r < minRune {
		return 0xFFFD, 1 // Overlong encoding
	}

	return r, size
}

// Reader owns stdin and runs the decoder in a goroutine, emitting events on
// a channel. Reads use poll with a short timeout so the stop channel and
// the escape timeout both stay responsive.
type Reader struct {
	file    *os.File
	fd      int
	dec     Decoder
	eventCh chan Event
	stopCh  chan struct{}
	doneCh  chan struct{}
	mu      sync.Mutex
	running bool

	// EscTimeout overrides DefaultEscTimeout when set before Start.
	EscTimeout time.Duration
}

// NewReader creates a reader for the given file. Pass nil for os.Stdin.
func NewReader(f *os.File) *Reader {
	if f == nil {
		f = os.Stdin
	}
	return &Reader{
		file:       f,
		fd:         int(f.Fd()),
		eventCh:    make(chan Event, 256),
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
		EscTimeout: DefaultEscTimeout,
	}
}

// Events returns the event channel.
func (r *Reader) Events() <-chan Event {
	return r.eventCh
}

// Start begins reading input in a goroutine.
func (r *Reader) Start() {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return
	}
	r.running = true
	r.mu.Unlock()

	go r.readLoop()
}

// Stop signals the reader to stop and waits briefly for it.
func (r *Reader) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	r.mu.Unlock()

	close(r.stopCh)
	// Wait with timeout - don't block forever if the read is stuck
	select {
	case <-r.doneCh:
	case <-time.After(100 * time.Millisecond):
	}
}

// readLoop polls the fd, feeds the decoder, and enforces the escape timeout.
func (r *Reader) readLoop() {
	defer close(r.doneCh)

	defer func() {
		if rec := recover(); rec != nil {
			EmergencyRestore(os.Stdout, nil)
			fmt.Fprintf(os.Stderr, "\r\ninput reader crashed: %v\r\n%s\r\n", rec, debug.Stack())
			os.Exit(1)
		}
	}()

	buf := make([]byte, 256)
	var pendingSince time.Time

	for {
		select {
		case <-r.stopCh:
			r.send(Event{Type: EventClosed})
			return
		default:
		}

		// Poll granularity is a fraction of the escape timeout so a held
		// ESC resolves promptly.
		pollMs := int(r.EscTimeout / time.Millisecond / 2)
		if pollMs < 5 {
			pollMs = 5
		}

		fds := []unix.PollFd{{Fd: int32(r.fd), Events: unix.POLLIN}}
		n, err := unix.Poll(fds, pollMs)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			r.send(Event{Type: EventError, Err: err})
			return
		}

		if n == 0 {
			// Timeout: resolve a held partial escape if it has aged out.
			if r.dec.Pending() && !pendingSince.IsZero() && time.Since(pendingSince) >= r.EscTimeout {
				for _, ev := range r.dec.FlushPending() {
					r.send(ev)
				}
				pendingSince = time.Time{}
			}
			continue
		}

		rn, err := unix.Read(r.fd, buf)
		if err != nil {
			if err == unix.EINTR || err == unix.EAGAIN {
				continue
			}
			r.send(Event{Type: EventError, Err: err})
			return
		}
		if rn == 0 {
			r.send(Event{Type: EventClosed})
			return
		}

		for _, ev := range r.dec.Feed(buf[:rn]) {
			r.send(ev)
		}

		if r.dec.Pending() {
			if pendingSince.IsZero() {
				pendingSince = time.Now()
			}
		} else {
			pendingSince = time.Time{}
		}
	}
}

// send delivers an event without blocking the read loop.
func (r *Reader) send(ev Event) {
	select {
	case r.eventCh <- ev:
	default:
		// Channel full; drop rather than stall the decoder.
	}
}
