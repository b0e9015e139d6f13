package slate

// EventType distinguishes input event categories
type EventType uint8

const (
	EventKey EventType = iota
	EventMouse
	EventPaste
	EventResize
	EventError  // Read error
	EventClosed // Input closed
)

// MouseButton identifies which button a mouse event refers to.
type MouseButton uint8

const (
	MouseBtnNone MouseButton = iota
	MouseBtnLeft
	MouseBtnMiddle
	MouseBtnRight
	MouseBtnWheelUp
	MouseBtnWheelDown
)

// MousePhase is the lifecycle stage of a mouse event.
type MousePhase uint8

const (
	MousePress MousePhase = iota
	MouseRelease
	MouseDrag
	MouseMove
	MouseScroll
)

// Event is the tagged variant produced by the decoder. Type selects which
// fields are meaningful.
type Event struct {
	Type EventType

	// EventKey
	Key  KeyCode
	Rune rune
	Mod  Modifier

	// EventMouse (0-indexed screen coordinates)
	MouseX   int
	MouseY   int
	Button   MouseButton
	Phase    MousePhase

	// EventPaste: the verbatim pasted text
	Text string

	// EventResize
	Cols int
	Rows int

	// EventError
	Err error
}

// Ctrl reports whether the ctrl modifier is set.
func (e Event) Ctrl() bool { return e.Mod&ModCtrl != 0 }

// Alt reports whether the alt modifier is set.
func (e Event) Alt() bool { return e.Mod&ModAlt != 0 }

// Shift reports whether the shift modifier is set.
func (e Event) Shift() bool { return e.Mod&ModShift != 0 }

// Meta reports whether the meta modifier is set.
func (e Event) Meta() bool { return e.Mod&ModMeta != 0 }

// KeyEvent builds a key event. Mostly a convenience for tests and for
// elements that synthesize input.
func KeyEvent(key KeyCode, mod Modifier) Event {
	return Event{Type: EventKey, Key: key, Mod: mod}
}

// RuneEvent builds a printable-character key event.
func RuneEvent(r rune, mod Modifier) Event {
	return Event{Type: EventKey, Key: KeyRune, Rune: r, Mod: mod}
}
