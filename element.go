package slate

// Context is the read-only render/input context threaded through element
// calls. Elements receive it explicitly rather than reading globals.
type Context struct {
	Theme   Theme
	Focused bool // true when this element is the current focus target
}

// Element is the contract every hosted panel implements. The core never
// inspects concrete panel types; it renders them into a clipped Region and
// forwards input. Rendering an element clears its dirty state.
type Element interface {
	// Render draws the element into its region.
	Render(ctx Context, r *Region)

	// HandleInput processes an event, returning true if it was consumed.
	HandleInput(ev Event) bool

	// Title is shown in tab bars and accordion headers.
	Title() string

	// Dirty reports whether the element needs a repaint.
	Dirty() bool

	// Focus lifecycle hooks.
	OnFocus()
	OnBlur()
}

// KindProvider is optionally implemented by elements that want keybinding
// "when" predicates to match on their kind (e.g. "editor", "tree").
type KindProvider interface {
	Kind() string
}

// FlagProvider is optionally implemented by elements exposing auxiliary
// focus-context state (e.g. "hasMultipleCursors") to "when" predicates.
type FlagProvider interface {
	ContextFlags() map[string]bool
}

// BaseElement provides default behavior for element implementations.
// Embed it and override what you need.
type BaseElement struct {
	dirty bool
}

// MarkDirty flags the element for repaint.
func (b *BaseElement) MarkDirty() { b.dirty = true }

// ClearDirty resets the repaint flag; call at the end of Render.
func (b *BaseElement) ClearDirty() { b.dirty = false }

// Dirty reports whether the element needs a repaint.
func (b *BaseElement) Dirty() bool { return b.dirty }

// HandleInput consumes nothing by default.
func (b *BaseElement) HandleInput(Event) bool { return false }

// OnFocus is a no-op by default.
func (b *BaseElement) OnFocus() {}

// OnBlur is a no-op by default.
func (b *BaseElement) OnBlur() {}
