package slate

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// TextElement displays scrollable read-only text. Keyboard scrolling uses
// arrows, PgUp/PgDn, Home/End; the mouse wheel scrolls three lines.
type TextElement struct {
	BaseElement
	title   string
	lines   []string
	scrollY int
	scrollX int
	wrap    bool

	viewH int // height of the last rendered viewport, for paging
}

// NewTextElement creates a text element with the given title and content.
func NewTextElement(title, content string) *TextElement {
	t := &TextElement{title: title}
	t.SetText(content)
	return t
}

func (t *TextElement) Title() string {
	return t.title
}

// SetText replaces the content and clamps the scroll position.
func (t *TextElement) SetText(content string) {
	t.lines = strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")
	t.clampScroll()
	t.MarkDirty()
}

// AppendLine adds one line to the end of the content.
func (t *TextElement) AppendLine(line string) {
	t.lines = append(t.lines, line)
	t.MarkDirty()
}

// SetWrap toggles soft wrapping. Wrapped content ignores horizontal
// scrolling.
func (t *TextElement) SetWrap(wrap bool) {
	t.wrap = wrap
	t.scrollX = 0
	t.MarkDirty()
}

// ScrollTo jumps to an absolute line, clamped to the content.
func (t *TextElement) ScrollTo(line int) {
	t.scrollY = line
	t.clampScroll()
	t.MarkDirty()
}

func (t *TextElement) clampScroll() {
	max := len(t.lines) - 1
	if t.scrollY > max {
		t.scrollY = max
	}
	if t.scrollY < 0 {
		t.scrollY = 0
	}
	if t.scrollX < 0 {
		t.scrollX = 0
	}
}

func (t *TextElement) Kind() string {
	return "text"
}

func (t *TextElement) Render(ctx Context, r *Region) {
	t.ClearDirty()
	t.viewH = r.Height()
	style := ctx.Theme.Base

	rows := t.visibleRows(r.Width())
	for y := 0; y < r.Height(); y++ {
		idx := t.scrollY + y
		if idx >= len(rows) {
			break
		}
		r.WriteString(0, y, rows[idx], style)
	}
}

// visibleRows returns the renderable rows: raw lines shifted by scrollX,
// or wrapped rows when soft wrap is on.
func (t *TextElement) visibleRows(width int) []string {
	if !t.wrap {
		if t.scrollX == 0 {
			return t.lines
		}
		rows := make([]string, len(t.lines))
		for i, line := range t.lines {
			rows[i] = runewidth.TruncateLeft(line, t.scrollX, "")
		}
		return rows
	}
	if width <= 0 {
		return nil
	}
	var rows []string
	for _, line := range t.lines {
		for runewidth.StringWidth(line) > width {
			rows = append(rows, runewidth.Truncate(line, width, ""))
			line = runewidth.TruncateLeft(line, width, "")
		}
		rows = append(rows, line)
	}
	return rows
}

func (t *TextElement) HandleInput(ev Event) bool {
	switch ev.Type {
	case EventMouse:
		if ev.Phase != MouseScroll {
			return false
		}
		if ev.Button == MouseBtnWheelUp {
			t.scrollY -= 3
		} else {
			t.scrollY += 3
		}
		t.clampScroll()
		t.MarkDirty()
		return true

	case EventKey:
		switch ev.Key {
		case KeyUp:
			t.scrollY--
		case KeyDown:
			t.scrollY++
		case KeyLeft:
			t.scrollX -= 2
		case KeyRight:
			t.scrollX += 2
		case KeyPageUp:
			t.scrollY -= t.pageSize()
		case KeyPageDown:
			t.scrollY += t.pageSize()
		case KeyHome:
			t.scrollY = 0
		case KeyEnd:
			t.scrollY = len(t.lines) - 1
		default:
			return false
		}
		t.clampScroll()
		t.MarkDirty()
		return true
	}
	return false
}

func (t *TextElement) pageSize() int {
	if t.viewH > 1 {
		return t.viewH - 1
	}
	return 10
}

// ListElement displays a vertical selection list. Enter invokes OnSelect
// with the selected index; a mouse press selects the row under the cursor
// and a second press on it invokes OnSelect.
type ListElement struct {
	BaseElement
	title    string
	items    []string
	selected int
	scrollY  int

	// OnSelect is invoked from the window loop when an item is chosen.
	OnSelect func(index int, item string)

	viewH int
}

// NewListElement creates a list with the given title and items.
func NewListElement(title string, items []string) *ListElement {
	return &ListElement{title: title, items: items}
}

func (l *ListElement) Title() string {
	return l.title
}

func (l *ListElement) Kind() string {
	return "list"
}

// ContextFlags exposes list state to keybinding predicates.
func (l *ListElement) ContextFlags() map[string]bool {
	return map[string]bool{"listEmpty": len(l.items) == 0}
}

// SetItems replaces the items and clamps the selection.
func (l *ListElement) SetItems(items []string) {
	l.items = items
	l.clamp()
	l.MarkDirty()
}

// Selected returns the selected index, or -1 when the list is empty.
func (l *ListElement) Selected() int {
	if len(l.items) == 0 {
		return -1
	}
	return l.selected
}

func (l *ListElement) clamp() {
	if l.selected >= len(l.items) {
		l.selected = len(l.items) - 1
	}
	if l.selected < 0 {
		l.selected = 0
	}
	if l.scrollY < 0 {
		l.scrollY = 0
	}
}

// ensureVisible scrolls the viewport so the selection stays on screen.
func (l *ListElement) ensureVisible() {
	if l.viewH <= 0 {
		return
	}
	if l.selected < l.scrollY {
		l.scrollY = l.selected
	}
	if l.selected >= l.scrollY+l.viewH {
		l.scrollY = l.selected - l.viewH + 1
	}
}

func (l *ListElement) Render(ctx Context, r *Region) {
	l.ClearDirty()
	l.viewH = r.Height()
	l.ensureVisible()

	for y := 0; y < r.Height(); y++ {
		idx := l.scrollY + y
		if idx >= len(l.items) {
			break
		}
		style := ctx.Theme.Base
		prefix := "  "
		if idx == l.selected {
			prefix = "> "
			if ctx.Focused {
				style = ctx.Theme.Accent
			} else {
				style = ctx.Theme.Muted
			}
		}
		r.WriteString(0, y, prefix+l.items[idx], style)
	}
}

func (l *ListElement) HandleInput(ev Event) bool {
	switch ev.Type {
	case EventMouse:
		switch ev.Phase {
		case MouseScroll:
			if ev.Button == MouseBtnWheelUp {
				l.scrollY--
			} else {
				l.scrollY++
			}
			if max := len(l.items) - l.viewH; l.scrollY > max {
				l.scrollY = max
			}
			l.clamp()
			l.MarkDirty()
			return true
		case MousePress:
			idx := l.scrollY + ev.MouseY
			if idx < 0 || idx >= len(l.items) {
				return false
			}
			if idx == l.selected {
				l.choose()
			} else {
				l.selected = idx
			}
			l.MarkDirty()
			return true
		}
		return false

	case EventKey:
		switch ev.Key {
		case KeyUp:
			l.selected--
		case KeyDown:
			l.selected++
		case KeyPageUp:
			l.selected -= l.pageSize()
		case KeyPageDown:
			l.selected += l.pageSize()
		case KeyHome:
			l.selected = 0
		case KeyEnd:
			l.selected = len(l.items) - 1
		case KeyEnter:
			l.choose()
		default:
			return false
		}
		l.clamp()
		l.ensureVisible()
		l.MarkDirty()
		return true
	}
	return false
}

func (l *ListElement) choose() {
	if l.OnSelect != nil && len(l.items) > 0 {
		l.OnSelect(l.selected, l.items[l.selected])
	}
}

func (l *ListElement) pageSize() int {
	if l.viewH > 1 {
		return l.viewH - 1
	}
	return 10
}
