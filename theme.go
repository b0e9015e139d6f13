package slate

// Theme provides a set of styles for consistent workspace appearance.
// A Theme travels inside the render Context; the core never reads style
// from ambient globals.
type Theme struct {
	Base        Style // default text style
	Muted       Style // de-emphasized text
	Accent      Style // highlighted/important text
	Error       Style // error messages
	Border      Style // pane border
	BorderFocus Style // border of the focused pane
	TabActive   Style // active tab / accordion header
	TabInactive Style // inactive tab / accordion header
	Overlay     Style // overlay surface background
}

// Pre-defined themes

// ThemeDark is a dark theme with light text on dark background.
var ThemeDark = Theme{
	Base:        Style{FG: White},
	Muted:       Style{FG: BrightBlack},
	Accent:      Style{FG: BrightCyan},
	Error:       Style{FG: BrightRed},
	Border:      Style{FG: BrightBlack},
	BorderFocus: Style{FG: BrightCyan},
	TabActive:   Style{FG: BrightWhite, Attr: AttrBold},
	TabInactive: Style{FG: BrightBlack},
	Overlay:     Style{FG: White, BG: Black},
}

// ThemeLight is a light theme with dark text on light background.
var ThemeLight = Theme{
	Base:        Style{FG: Black},
	Muted:       Style{FG: BrightBlack},
	Accent:      Style{FG: Blue},
	Error:       Style{FG: Red},
	Border:      Style{FG: White},
	BorderFocus: Style{FG: Blue},
	TabActive:   Style{FG: Black, Attr: AttrBold},
	TabInactive: Style{FG: BrightBlack},
	Overlay:     Style{FG: Black, BG: White},
}

// ThemeMonochrome is a minimal theme using only attributes.
var ThemeMonochrome = Theme{
	Base:        Style{},
	Muted:       Style{Attr: AttrDim},
	Accent:      Style{Attr: AttrBold},
	Error:       Style{Attr: AttrBold | AttrUnderline},
	Border:      Style{Attr: AttrDim},
	BorderFocus: Style{Attr: AttrBold},
	TabActive:   Style{Attr: AttrBold | AttrInverse},
	TabInactive: Style{Attr: AttrDim},
	Overlay:     Style{Attr: AttrInverse},
}
