package slate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripControl(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "hello", "hello"},
		{"sgr", "\x1b[31mred\x1b[0m", "red"},
		{"cursor-move", "\x1b[2;5Hx", "x"},
		{"carriage-return", "progress\rdone", "progressdone"},
		{"tab", "a\tb", "a    b"},
		{"newline-kept", "a\nb", "a\nb"},
		{"title-esc", "\x1b]0;title\x07text", "text"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, stripControl(tc.in))
		})
	}
}

func TestKeyToPTY(t *testing.T) {
	cases := []struct {
		name string
		ev   Event
		want string
	}{
		{"rune", RuneEvent('a', ModNone), "a"},
		{"ctrl-c", RuneEvent('c', ModCtrl), "\x03"},
		{"enter", KeyEvent(KeyEnter, ModNone), "\r"},
		{"backspace", KeyEvent(KeyBackspace, ModNone), "\x7f"},
		{"up", KeyEvent(KeyUp, ModNone), "\x1b[A"},
		{"delete", KeyEvent(KeyDelete, ModNone), "\x1b[3~"},
		{"unmapped", KeyEvent(KeyF7, ModNone), ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, keyToPTY(tc.ev))
		})
	}
}

func TestShellElementAppendSplitsLines(t *testing.T) {
	s := NewShellElement("sh", nil, nil)
	s.append("first\nsec")
	s.append("ond\n")

	s.mu.Lock()
	defer s.mu.Unlock()
	assert.Equal(t, []string{"first", "second"}, s.lines)
	assert.Empty(t, s.partial)
}

func TestShellElementPartialLineRenders(t *testing.T) {
	s := NewShellElement("sh", nil, nil)
	s.append("done\nprompt$ ")

	lines := renderToLines(s, 20, 3)
	assert.Equal(t, "done", lines[0])
	assert.Equal(t, "prompt$", lines[1])
}

func TestShellElementTitleReflectsExit(t *testing.T) {
	s := NewShellElement("sh", nil, nil)
	assert.Equal(t, "sh", s.Title())
	assert.True(t, s.ContextFlags()["shellRunning"])

	s.mu.Lock()
	s.exited = true
	s.mu.Unlock()
	assert.Equal(t, "sh (exited)", s.Title())
	assert.False(t, s.ContextFlags()["shellRunning"])
}
