package slate

// FocusState is the coordinator's dispatch state. The machine is
// Idle <-> OverlayActive; OverlayActive re-enters itself for nested
// overlays. Both states route unconsumed input to the focused element.
type FocusState uint8

const (
	FocusIdle FocusState = iota
	FocusOverlayActive
)

// Overlay is a modal element plus its placement. While any overlay is
// shown, the topmost one owns input exclusively.
type Overlay struct {
	Element Element
	// Bounds positions the overlay for a given screen size. Nil centers a
	// half-size surface.
	Bounds func(Size) Rect
}

// BoundsFor resolves the overlay's rectangle for a screen size.
func (o Overlay) BoundsFor(size Size) Rect {
	if o.Bounds != nil {
		return o.Bounds(size)
	}
	w := size.Width / 2
	h := size.Height / 2
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return Rect{X: (size.Width - w) / 2, Y: (size.Height - h) / 2, W: w, H: h}
}

// target addresses one hosted element: a pane plus an index into it.
type target struct {
	pane  NodeID
	index int
}

// Coordinator arbitrates who receives input: it tracks the focused element,
// maintains the modal overlay stack, and dispatches keybindings before
// falling through to the focused element's own handler.
type Coordinator struct {
	tree     *Tree
	keymap   *Keymap
	commands map[string]func()
	overlays []Overlay // stack; last entry is topmost
	cur      target
	onChange func() // invoked on any focus/overlay change (dirty signal)
}

// NewCoordinator creates a coordinator over the given tree, focusing the
// tree's default target (first element of the first pane in walk order).
func NewCoordinator(tree *Tree) *Coordinator {
	c := &Coordinator{
		tree:     tree,
		commands: make(map[string]func()),
	}
	c.repair()
	if el := c.baseElement(); el != nil {
		el.OnFocus()
	}
	return c
}

// OnChange registers a callback fired after every focus or overlay
// mutation. The window uses it as its dirty signal.
func (c *Coordinator) OnChange(fn func()) {
	c.onChange = fn
}

func (c *Coordinator) changed() {
	if c.onChange != nil {
		c.onChange()
	}
}

// SetKeymap replaces the keybinding set wholesale.
func (c *Coordinator) SetKeymap(km *Keymap) {
	c.keymap = km
}

// RegisterCommand binds a command id to a handler. Keybindings resolve to
// command ids, never to functions directly.
func (c *Coordinator) RegisterCommand(id string, fn func()) {
	c.commands[id] = fn
}

// State returns the dispatch state.
func (c *Coordinator) State() FocusState {
	if len(c.overlays) > 0 {
		return FocusOverlayActive
	}
	return FocusIdle
}

// targets returns every focusable element address in the tree's
// deterministic walk order.
func (c *Coordinator) targets() []target {
	var out []target
	c.tree.Walk(func(paneID NodeID) {
		els, _ := c.tree.Elements(paneID)
		for i := range els {
			out = append(out, target{pane: paneID, index: i})
		}
	})
	return out
}

// repair re-validates the base focus target, falling back to the tree's
// default (first element in walk order) when the current one is gone.
// Returns true if the target changed.
func (c *Coordinator) repair() bool {
	els, err := c.tree.Elements(c.cur.pane)
	if err == nil && c.cur.index >= 0 && c.cur.index < len(els) {
		return false
	}
	all := c.targets()
	if len(all) == 0 {
		c.cur = target{pane: c.tree.FirstPane(), index: 0}
		return true
	}
	c.cur = all[0]
	return true
}

// baseElement returns the focused element underneath any overlays.
func (c *Coordinator) baseElement() Element {
	els, err := c.tree.Elements(c.cur.pane)
	if err != nil || c.cur.index < 0 || c.cur.index >= len(els) {
		return nil
	}
	return els[c.cur.index]
}

// Focused returns the element that currently owns input: the topmost
// overlay while the stack is non-empty, otherwise the base focus target.
func (c *Coordinator) Focused() Element {
	if n := len(c.overlays); n > 0 {
		return c.overlays[n-1].Element
	}
	c.repair()
	return c.baseElement()
}

// FocusedPane returns the pane owning the base focus target.
func (c *Coordinator) FocusedPane() NodeID {
	return c.cur.pane
}

// FocusedIndex returns the element index of the base focus target.
func (c *Coordinator) FocusedIndex() int {
	return c.cur.index
}

// Focus moves base focus to a specific element. No-op while validating
// fails; never partially applied.
func (c *Coordinator) Focus(paneID NodeID, index int) error {
	els, err := c.tree.Elements(paneID)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(els) {
		return ErrNoSuchOption
	}
	if c.cur.pane == paneID && c.cur.index == index {
		return nil
	}
	if prev := c.baseElement(); prev != nil {
		prev.OnBlur()
	}
	c.cur = target{pane: paneID, index: index}
	els[index].OnFocus()
	c.changed()
	return nil
}

// FocusPane moves base focus to a pane's active element.
func (c *Coordinator) FocusPane(paneID NodeID) error {
	active, err := c.tree.Active(paneID)
	if err != nil {
		return err
	}
	els, _ := c.tree.Elements(paneID)
	if len(els) == 0 {
		return ErrNoSuchOption
	}
	return c.Focus(paneID, active)
}

// FocusNext advances focus through the tree's in-order walk. Ignored while
// an overlay is active: the overlay owns input exclusively.
func (c *Coordinator) FocusNext() {
	c.move(1)
}

// FocusPrev moves focus backwards through the walk order.
func (c *Coordinator) FocusPrev() {
	c.move(-1)
}

func (c *Coordinator) move(delta int) {
	if len(c.overlays) > 0 {
		return
	}
	all := c.targets()
	if len(all) <= 1 {
		return
	}
	cur := 0
	for i, t := range all {
		if t == c.cur {
			cur = i
			break
		}
	}
	next := all[(cur+len(all)+delta)%len(all)]
	// Keep the pane's active element in step so the focused element is the
	// one being shown.
	c.tree.SetActive(next.pane, next.index)
	c.Focus(next.pane, next.index)
}

// ShowOverlay pushes an overlay onto the stack and gives it exclusive
// input ownership.
func (c *Coordinator) ShowOverlay(o Overlay) {
	if prev := c.Focused(); prev != nil {
		prev.OnBlur()
	}
	c.overlays = append(c.overlays, o)
	if o.Element != nil {
		o.Element.OnFocus()
	}
	c.changed()
}

// DismissOverlay pops the topmost overlay and restores whatever was
// focused immediately before it: the next overlay down for nested stacks,
// the base element otherwise. Dismissing an empty stack is tolerated as a
// no-op on the tree's default focus target.
func (c *Coordinator) DismissOverlay() {
	if len(c.overlays) == 0 {
		c.repair()
		return
	}
	top := c.overlays[len(c.overlays)-1]
	c.overlays = c.overlays[:len(c.overlays)-1]
	if top.Element != nil {
		top.Element.OnBlur()
	}
	if next := c.Focused(); next != nil {
		next.OnFocus()
	}
	c.changed()
}

// Overlays returns the overlay stack, bottom first.
func (c *Coordinator) Overlays() []Overlay {
	return c.overlays
}

// PaneClosed severs routing to a removed pane. Called synchronously after
// the tree mutation, before the next event is processed.
func (c *Coordinator) PaneClosed(paneID NodeID) {
	if c.cur.pane != paneID {
		return
	}
	c.cur = target{}
	c.repair()
	if el := c.baseElement(); el != nil {
		el.OnFocus()
	}
	c.changed()
}

// Context builds the focus context "when" predicates evaluate against.
// Kind and flags come from the focused element's optional interfaces.
func (c *Coordinator) Context() FocusContext {
	fc := FocusContext{}
	el := c.Focused()
	if el == nil {
		return fc
	}
	if kp, ok := el.(KindProvider); ok {
		fc.Kind = kp.Kind()
	}
	if fp, ok := el.(FlagProvider); ok {
		fc.Flags = fp.ContextFlags()
	}
	return fc
}

// HandleEvent dispatches one event: key events try the keymap first (a
// matching binding with a passing predicate fires its command); anything
// unconsumed falls through to the focused element's own handler.
func (c *Coordinator) HandleEvent(ev Event) bool {
	if ev.Type == EventKey && c.keymap != nil {
		if cmd, ok := c.keymap.Match(ev, c.Context()); ok {
			if fn := c.commands[cmd]; fn != nil {
				fn()
				return true
			}
		}
	}
	el := c.Focused()
	if el == nil {
		return false
	}
	return el.HandleInput(ev)
}
