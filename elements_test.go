package slate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func renderToLines(el Element, width, height int) []string {
	buf := NewBuffer(width, height)
	el.Render(Context{Theme: ThemeMonochrome}, buf.Region(0, 0, width, height))
	lines := make([]string, height)
	for y := 0; y < height; y++ {
		lines[y] = buf.GetLine(y)
	}
	return lines
}

func TestTextElementScrolling(t *testing.T) {
	var content strings.Builder
	for i := 1; i <= 20; i++ {
		content.WriteString(strings.Repeat("x", i))
		content.WriteByte('\n')
	}
	el := NewTextElement("t", content.String())

	lines := renderToLines(el, 30, 5)
	assert.Equal(t, "x", lines[0])

	require.True(t, el.HandleInput(KeyEvent(KeyDown, ModNone)))
	lines = renderToLines(el, 30, 5)
	assert.Equal(t, "xx", lines[0])

	require.True(t, el.HandleInput(KeyEvent(KeyEnd, ModNone)))
	lines = renderToLines(el, 30, 5)
	assert.Equal(t, "", lines[0], "scrolled to the trailing empty line")

	require.True(t, el.HandleInput(KeyEvent(KeyHome, ModNone)))
	lines = renderToLines(el, 30, 5)
	assert.Equal(t, "x", lines[0])

	// Scrolling past the top clamps.
	require.True(t, el.HandleInput(KeyEvent(KeyUp, ModNone)))
	lines = renderToLines(el, 30, 5)
	assert.Equal(t, "x", lines[0])
}

func TestTextElementPageKeysUseViewport(t *testing.T) {
	el := NewTextElement("t", strings.Repeat("a\n", 100))
	renderToLines(el, 30, 11) // viewport height 11 -> page of 10

	require.True(t, el.HandleInput(KeyEvent(KeyPageDown, ModNone)))
	assert.Equal(t, 10, el.scrollY)
	require.True(t, el.HandleInput(KeyEvent(KeyPageUp, ModNone)))
	assert.Equal(t, 0, el.scrollY)
}

func TestTextElementHorizontalScroll(t *testing.T) {
	el := NewTextElement("t", "abcdefghij")
	require.True(t, el.HandleInput(KeyEvent(KeyRight, ModNone)))
	lines := renderToLines(el, 5, 1)
	assert.Equal(t, "cdefg", lines[0])
}

func TestTextElementWrap(t *testing.T) {
	el := NewTextElement("t", "abcdefghij")
	el.SetWrap(true)
	lines := renderToLines(el, 4, 3)
	assert.Equal(t, "abcd", lines[0])
	assert.Equal(t, "efgh", lines[1])
	assert.Equal(t, "ij", lines[2])
}

func TestTextElementMouseScroll(t *testing.T) {
	el := NewTextElement("t", strings.Repeat("line\n", 50))
	ev := Event{Type: EventMouse, Phase: MouseScroll, Button: MouseBtnWheelDown}
	require.True(t, el.HandleInput(ev))
	assert.Equal(t, 3, el.scrollY)
}

func TestTextElementDirtyLifecycle(t *testing.T) {
	el := NewTextElement("t", "hi")
	assert.True(t, el.Dirty(), "fresh content is dirty")
	renderToLines(el, 10, 2)
	assert.False(t, el.Dirty())
	el.AppendLine("more")
	assert.True(t, el.Dirty())
}

func TestListElementSelection(t *testing.T) {
	el := NewListElement("l", []string{"alpha", "beta", "gamma"})

	var chosen string
	el.OnSelect = func(_ int, item string) { chosen = item }

	require.True(t, el.HandleInput(KeyEvent(KeyDown, ModNone)))
	assert.Equal(t, 1, el.Selected())

	require.True(t, el.HandleInput(KeyEvent(KeyEnter, ModNone)))
	assert.Equal(t, "beta", chosen)

	// Selection clamps at both ends.
	el.HandleInput(KeyEvent(KeyEnd, ModNone))
	el.HandleInput(KeyEvent(KeyDown, ModNone))
	assert.Equal(t, 2, el.Selected())
	el.HandleInput(KeyEvent(KeyHome, ModNone))
	el.HandleInput(KeyEvent(KeyUp, ModNone))
	assert.Equal(t, 0, el.Selected())
}

func TestListElementRenderMarksSelection(t *testing.T) {
	el := NewListElement("l", []string{"one", "two"})
	lines := renderToLines(el, 20, 2)
	assert.Equal(t, "> one", lines[0])
	assert.Equal(t, "  two", lines[1])
}

func TestListElementScrollsSelectionIntoView(t *testing.T) {
	items := make([]string, 30)
	for i := range items {
		items[i] = strings.Repeat("i", i+1)
	}
	el := NewListElement("l", items)
	renderToLines(el, 40, 5)

	el.HandleInput(KeyEvent(KeyEnd, ModNone))
	lines := renderToLines(el, 40, 5)
	assert.Equal(t, "> "+strings.Repeat("i", 30), lines[4])
}

func TestListElementMousePress(t *testing.T) {
	el := NewListElement("l", []string{"a", "b", "c"})
	renderToLines(el, 20, 3)

	var chosen string
	el.OnSelect = func(_ int, item string) { chosen = item }

	press := Event{Type: EventMouse, Phase: MousePress, Button: MouseBtnLeft, MouseY: 2}
	require.True(t, el.HandleInput(press))
	assert.Equal(t, 2, el.Selected())
	assert.Empty(t, chosen, "first press selects only")

	require.True(t, el.HandleInput(press))
	assert.Equal(t, "c", chosen, "second press on the selection chooses it")
}

func TestListElementEmpty(t *testing.T) {
	el := NewListElement("l", nil)
	assert.Equal(t, -1, el.Selected())
	el.OnSelect = func(int, string) { t.Fatal("OnSelect fired on empty list") }
	el.HandleInput(KeyEvent(KeyEnter, ModNone))
	assert.True(t, el.ContextFlags()["listEmpty"])
}
