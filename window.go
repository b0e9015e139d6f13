package slate

import (
	"fmt"
	"os"
	"sync"

	"github.com/mattn/go-runewidth"
)

// Window composes the decoder, screen, layout tree, and focus coordinator
// into one control flow: decode -> dispatch -> mutate -> (if dirty)
// recompute layout -> render. The tree and both cell buffers are owned by
// the window and mutated only from the loop goroutine; background work
// re-enters through Wake.
type Window struct {
	screen *Screen
	reader *Reader
	tree   *Tree
	focus  *Coordinator
	theme  Theme

	// dirty coalesces all mutations within one loop turn into exactly one
	// repaint on that turn.
	dirty bool

	// wakeCh is the queue of async completion signals, drained once per
	// loop turn.
	wakeCh chan struct{}

	quitOnce sync.Once
	quitCh   chan struct{}

	bounds map[NodeID]Rect // pane rectangles from the last layout pass
}

// NewWindow creates a window over a fresh single-pane tree, reading from
// stdin and writing to stdout.
func NewWindow() (*Window, error) {
	screen, err := NewScreen(nil)
	if err != nil {
		return nil, err
	}
	return newWindow(screen, NewReader(nil)), nil
}

func newWindow(screen *Screen, reader *Reader) *Window {
	tree := NewTree()
	w := &Window{
		screen: screen,
		reader: reader,
		tree:   tree,
		focus:  NewCoordinator(tree),
		theme:  ThemeDark,
		wakeCh: make(chan struct{}, 64),
		quitCh: make(chan struct{}),
		dirty:  true,
	}
	w.focus.OnChange(func() { w.dirty = true })
	return w
}

// Tree returns the layout tree. Mutate it only from the loop goroutine
// (commands and element handlers run there).
func (w *Window) Tree() *Tree {
	return w.tree
}

// Focus returns the focus coordinator.
func (w *Window) Focus() *Coordinator {
	return w.focus
}

// SetTheme replaces the theme threaded through render contexts.
func (w *Window) SetTheme(t Theme) {
	w.theme = t
	w.dirty = true
}

// SetKeymap replaces the keybinding set wholesale.
func (w *Window) SetKeymap(km *Keymap) {
	w.focus.SetKeymap(km)
}

// RegisterCommand binds a command id for keybinding dispatch.
func (w *Window) RegisterCommand(id string, fn func()) {
	w.focus.RegisterCommand(id, fn)
}

// Wake signals that background work completed and a repaint may be
// needed. Safe to call from any goroutine; any number of calls within one
// loop turn coalesce into a single repaint.
func (w *Window) Wake() {
	select {
	case w.wakeCh <- struct{}{}:
	default:
	}
}

// Quit stops the loop. Safe to call from any goroutine.
func (w *Window) Quit() {
	w.quitOnce.Do(func() { close(w.quitCh) })
}

// SplitPane splits the focused pane, moving focus into the new pane once
// it hosts an element.
func (w *Window) SplitPane(dir Direction) (NodeID, error) {
	id, err := w.tree.Split(dir, w.focus.FocusedPane())
	if err != nil {
		return 0, err
	}
	w.dirty = true
	return id, nil
}

// CloseFocusedPane closes the focused pane and synchronously severs event
// routing to it before the next event is processed.
func (w *Window) CloseFocusedPane() error {
	id := w.focus.FocusedPane()
	if err := w.tree.ClosePane(id); err != nil {
		return err
	}
	w.focus.PaneClosed(id)
	w.dirty = true
	return nil
}

// ShowOverlay pushes a modal overlay.
func (w *Window) ShowOverlay(o Overlay) {
	w.focus.ShowOverlay(o)
}

// DismissOverlay pops the topmost overlay.
func (w *Window) DismissOverlay() {
	w.focus.DismissOverlay()
}

// Run enters the main loop and blocks until Quit, input close, or a fatal
// render error. The terminal is restored on every exit path, including
// panic.
func (w *Window) Run() (err error) {
	if err := w.screen.Init(); err != nil {
		return err
	}
	defer w.screen.Restore()
	defer func() {
		if rec := recover(); rec != nil {
			EmergencyRestore(os.Stdout, w.screen)
			panic(rec)
		}
	}()

	w.reader.Start()
	defer w.reader.Stop()

	// First frame before any input.
	if err := w.render(); err != nil {
		return err
	}

	for {
		select {
		case <-w.quitCh:
			return nil

		case size := <-w.screen.ResizeChan():
			// Atomic: reallocation, bounds recomputation, and a full
			// repaint happen before any further input is processed.
			w.screen.Resize(size.Width, size.Height)
			w.dirty = true
			if err := w.render(); err != nil {
				return err
			}
			continue

		case ev := <-w.reader.Events():
			if done, err := w.dispatch(ev); done {
				return err
			}
			// Drain whatever else is already queued so an event burst
			// produces one repaint, not one per event.
		burst:
			for {
				select {
				case ev := <-w.reader.Events():
					if done, err := w.dispatch(ev); done {
						return err
					}
				default:
					break burst
				}
			}

		case <-w.wakeCh:
			w.dirty = true
		}

		// Drain the async completion queue once per turn; any number of
		// completions collapse into the same repaint.
	drain:
		for {
			select {
			case <-w.wakeCh:
				w.dirty = true
			default:
				break drain
			}
		}

		if w.anyElementDirty() {
			w.dirty = true
		}
		if w.dirty {
			if err := w.render(); err != nil {
				return err
			}
		}
	}
}

// dispatch routes one event. Returns done=true when the loop should exit.
func (w *Window) dispatch(ev Event) (bool, error) {
	switch ev.Type {
	case EventKey, EventPaste:
		if w.focus.HandleEvent(ev) {
			w.dirty = true
		}
	case EventMouse:
		if w.routeMouse(ev) {
			w.dirty = true
		}
	case EventError:
		return true, fmt.Errorf("input: %w", ev.Err)
	case EventClosed:
		return true, nil
	}
	return false, nil
}

// routeMouse hit-tests the event. Overlays own the pointer exclusively;
// otherwise the pane under the cursor is focused on press and the event is
// forwarded, translated into the target's region.
func (w *Window) routeMouse(ev Event) bool {
	if len(w.focus.Overlays()) > 0 {
		top := w.focus.Overlays()[len(w.focus.Overlays())-1]
		r := top.BoundsFor(w.screen.Size())
		// The element lives inside the overlay's border; clicks on the
		// border or outside the surface go nowhere.
		inner := r.Inset(1)
		if !inner.Contains(ev.MouseX, ev.MouseY) {
			return false
		}
		ev.MouseX -= inner.X
		ev.MouseY -= inner.Y
		if top.Element == nil {
			return false
		}
		return top.Element.HandleInput(ev)
	}

	if w.bounds == nil {
		return false
	}
	paneID, ok := w.tree.PaneAt(w.bounds, ev.MouseX, ev.MouseY)
	if !ok {
		return false
	}

	if ev.Phase == MousePress {
		w.focus.FocusPane(paneID)
	}

	rect := w.bounds[paneID]
	content := rect.Inset(1)

	// A press on the tab bar selects that tab.
	mode, _ := w.tree.Mode(paneID)
	if mode == PaneTabs && ev.Phase == MousePress && ev.MouseY == content.Y {
		if idx, ok := w.tabAt(paneID, content, ev.MouseX); ok {
			w.tree.SetActive(paneID, idx)
			w.focus.Focus(paneID, idx)
			return true
		}
	}

	el := w.tree.ActiveElement(paneID)
	if el == nil {
		return false
	}
	area := w.elementArea(paneID, content)
	ev.MouseX -= area.X
	ev.MouseY -= area.Y
	return el.HandleInput(ev)
}

// tabAt maps an x coordinate on the tab bar to an element index.
func (w *Window) tabAt(paneID NodeID, content Rect, x int) (int, bool) {
	els, err := w.tree.Elements(paneID)
	if err != nil {
		return 0, false
	}
	pos := content.X
	for i, el := range els {
		width := runewidth.StringWidth(el.Title()) + 2 // padding either side
		if x >= pos && x < pos+width {
			return i, true
		}
		pos += width + 1
	}
	return 0, false
}

// elementArea returns where a pane's active element content lives within
// the pane's content rectangle, accounting for mode chrome.
func (w *Window) elementArea(paneID NodeID, content Rect) Rect {
	mode, _ := w.tree.Mode(paneID)
	els, _ := w.tree.Elements(paneID)
	switch mode {
	case PaneTabs:
		return Rect{X: content.X, Y: content.Y + 1, W: content.W, H: content.H - 1}
	case PaneAccordion:
		active, _ := w.tree.Active(paneID)
		// Headers for every element; content directly under the active one.
		y := content.Y
		for i := range els {
			y++ // header line
			if i == active {
				break
			}
		}
		remaining := content.H - (y - content.Y) - (len(els) - 1 - activeIndexOr(active, els))
		if remaining < 0 {
			remaining = 0
		}
		return Rect{X: content.X, Y: y, W: content.W, H: remaining}
	default:
		return content
	}
}

func activeIndexOr(active int, els []Element) int {
	if active < 0 || active >= len(els) {
		return 0
	}
	return active
}

// anyElementDirty scans hosted elements and overlays for pending repaints.
func (w *Window) anyElementDirty() bool {
	dirty := false
	w.tree.Walk(func(paneID NodeID) {
		if dirty {
			return
		}
		els, _ := w.tree.Elements(paneID)
		for _, el := range els {
			if el.Dirty() {
				dirty = true
				return
			}
		}
	})
	if dirty {
		return true
	}
	for _, o := range w.focus.Overlays() {
		if o.Element != nil && o.Element.Dirty() {
			return true
		}
	}
	return false
}

// render recomputes layout and repaints the whole back buffer, then
// flushes the diff. A flush write failure is fatal to the loop.
func (w *Window) render() (err error) {
	defer func() { w.dirty = false }()

	size := w.screen.Size()
	buf := w.screen.Buffer()
	buf.Clear()

	w.bounds = w.tree.ComputeBounds(Rect{X: 0, Y: 0, W: size.Width, H: size.Height})

	for _, paneID := range w.tree.Panes() {
		w.renderPane(buf, paneID, w.bounds[paneID])
	}

	for _, o := range w.focus.Overlays() {
		w.renderOverlay(buf, o, size)
	}

	return w.screen.Flush()
}

// renderPane draws pane chrome (border, tab bar or accordion headers) and
// the active element.
func (w *Window) renderPane(buf *Buffer, paneID NodeID, rect Rect) {
	if rect.W < 2 || rect.H < 2 {
		return
	}

	paneFocused := w.focus.FocusedPane() == paneID && w.focus.State() == FocusIdle
	borderStyle := w.theme.Border
	if paneFocused {
		borderStyle = w.theme.BorderFocus
	}
	buf.DrawBorder(rect.X, rect.Y, rect.W, rect.H, BorderSingle, borderStyle)

	content := rect.Inset(1)
	if content.W <= 0 || content.H <= 0 {
		return
	}

	mode, _ := w.tree.Mode(paneID)
	els, _ := w.tree.Elements(paneID)
	active, _ := w.tree.Active(paneID)

	switch mode {
	case PaneTabs:
		w.renderTabBar(buf, content, els, active)
	case PaneAccordion:
		w.renderAccordion(buf, paneID, content, els, active)
		return
	default:
		// Single: title sits on the top border.
		if len(els) > 0 {
			title := " " + els[active].Title() + " "
			buf.WriteStringClipped(rect.X+2, rect.Y, title, borderStyle, rect.W-4)
		}
	}

	el := w.tree.ActiveElement(paneID)
	if el == nil {
		return
	}
	area := w.elementArea(paneID, content)
	if area.W <= 0 || area.H <= 0 {
		return
	}
	ctx := Context{Theme: w.theme, Focused: w.isElementFocused(paneID, active)}
	el.Render(ctx, buf.RegionRect(area))
}

func (w *Window) isElementFocused(paneID NodeID, index int) bool {
	return w.focus.State() == FocusIdle &&
		w.focus.FocusedPane() == paneID && w.focus.FocusedIndex() == index
}

// renderTabBar draws one row of element titles.
func (w *Window) renderTabBar(buf *Buffer, content Rect, els []Element, active int) {
	x := content.X
	for i, el := range els {
		style := w.theme.TabInactive
		if i == active {
			style = w.theme.TabActive
		}
		label := " " + el.Title() + " "
		written := buf.WriteStringClipped(x, content.Y, label, style, content.X+content.W-x)
		x += written + 1
		if x >= content.X+content.W {
			break
		}
	}
}

// renderAccordion stacks a header per element with the active element's
// content expanded beneath its header.
func (w *Window) renderAccordion(buf *Buffer, paneID NodeID, content Rect, els []Element, active int) {
	y := content.Y
	for i, el := range els {
		if y >= content.Y+content.H {
			return
		}
		style := w.theme.TabInactive
		marker := "+ "
		if i == active {
			style = w.theme.TabActive
			marker = "- "
		}
		buf.WriteStringClipped(content.X, y, marker+el.Title(), style, content.W)
		y++
		if i == active {
			area := w.elementArea(paneID, content)
			if area.W > 0 && area.H > 0 {
				ctx := Context{Theme: w.theme, Focused: w.isElementFocused(paneID, i)}
				el.Render(ctx, buf.RegionRect(area))
				y = area.Y + area.H
			}
		}
	}
}

// renderOverlay paints a modal surface above the panes.
func (w *Window) renderOverlay(buf *Buffer, o Overlay, size Size) {
	r := o.BoundsFor(size)
	if r.W < 2 || r.H < 2 {
		return
	}
	buf.FillRect(r.X, r.Y, r.W, r.H, Cell{Rune: ' ', Style: w.theme.Overlay, Width: 1})
	buf.DrawBorder(r.X, r.Y, r.W, r.H, BorderRounded, w.theme.BorderFocus)
	if o.Element != nil {
		title := " " + o.Element.Title() + " "
		buf.WriteStringClipped(r.X+2, r.Y, title, w.theme.BorderFocus, r.W-4)
		inner := r.Inset(1)
		if inner.W > 0 && inner.H > 0 {
			o.Element.Render(Context{Theme: w.theme, Focused: true}, buf.RegionRect(inner))
		}
	}
}
