package slate

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/BurntSushi/toml"
)

// Keybinding errors.
var (
	ErrBadChord     = errors.New("unparseable key chord")
	ErrBadPredicate = errors.New("unparseable when predicate")
)

// Chord is a normalized key combination a binding matches against.
type Chord struct {
	Key  KeyCode
	Rune rune // set when Key == KeyRune
	Mod  Modifier
}

// ParseChord parses a chord string like "ctrl+shift+p", "alt+enter", "f5",
// or "space". The final segment is the key; earlier segments are modifiers.
func ParseChord(s string) (Chord, error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(s)), "+")
	if len(parts) == 0 || parts[len(parts)-1] == "" {
		return Chord{}, fmt.Errorf("%w: %q", ErrBadChord, s)
	}

	var c Chord
	for _, m := range parts[:len(parts)-1] {
		switch m {
		case "ctrl", "control":
			c.Mod |= ModCtrl
		case "alt", "opt":
			c.Mod |= ModAlt
		case "shift":
			c.Mod |= ModShift
		case "meta", "cmd", "super":
			c.Mod |= ModMeta
		default:
			return Chord{}, fmt.Errorf("%w: unknown modifier %q in %q", ErrBadChord, m, s)
		}
	}

	last := parts[len(parts)-1]
	if key, ok := keyNames[last]; ok {
		c.Key = key
		// Terminals report shift+tab as a distinct backtab sequence.
		if c.Key == KeyTab && c.Mod&ModShift != 0 {
			c.Key = KeyBacktab
		}
		return c, nil
	}
	if last == "space" {
		c.Key = KeyRune
		c.Rune = ' '
		return c, nil
	}
	runes := []rune(last)
	if len(runes) == 1 {
		c.Key = KeyRune
		c.Rune = unicode.ToLower(runes[0])
		return c, nil
	}
	return Chord{}, fmt.Errorf("%w: unknown key %q in %q", ErrBadChord, last, s)
}

// chordOf extracts the chord a key event represents.
func chordOf(ev Event) Chord {
	c := Chord{Key: ev.Key, Mod: ev.Mod}
	if ev.Key == KeyRune {
		c.Rune = unicode.ToLower(ev.Rune)
		// An uppercase letter is its own shift signal; fold it into the
		// modifier so "shift+a" matches both representations.
		if unicode.IsUpper(ev.Rune) {
			c.Mod |= ModShift
		}
	}
	return c
}

// FocusContext is what "when" predicates evaluate against: the focused
// element's kind plus any auxiliary flags it exposes.
type FocusContext struct {
	Kind  string
	Flags map[string]bool
}

// predicate is a compiled "when" expression.
type predicate func(FocusContext) bool

// compilePredicate compiles a restricted expression grammar: terms joined
// by "&&", each term one of `kind == name`, `kind != name`, `flag`, or
// `!flag`. An empty expression always matches.
func compilePredicate(expr string) (predicate, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, nil
	}

	var terms []predicate
	for _, raw := range strings.Split(expr, "&&") {
		term := strings.TrimSpace(raw)
		switch {
		case term == "":
			return nil, fmt.Errorf("%w: empty term in %q", ErrBadPredicate, expr)
		case strings.Contains(term, "=="), strings.Contains(term, "!="):
			negate := strings.Contains(term, "!=")
			sep := "=="
			if negate {
				sep = "!="
			}
			lhs, rhs, _ := strings.Cut(term, sep)
			if strings.TrimSpace(lhs) != "kind" {
				return nil, fmt.Errorf("%w: only kind comparisons supported, got %q", ErrBadPredicate, term)
			}
			want := strings.Trim(strings.TrimSpace(rhs), `"'`)
			terms = append(terms, func(fc FocusContext) bool {
				return (fc.Kind == want) != negate
			})
		case strings.HasPrefix(term, "!"):
			flag := strings.TrimSpace(term[1:])
			terms = append(terms, func(fc FocusContext) bool {
				return !fc.Flags[flag]
			})
		default:
			flag := term
			terms = append(terms, func(fc FocusContext) bool {
				return fc.Flags[flag]
			})
		}
	}

	return func(fc FocusContext) bool {
		for _, t := range terms {
			if !t(fc) {
				return false
			}
		}
		return true
	}, nil
}

// Binding declares a single key-to-command mapping.
type Binding struct {
	Key     string `toml:"key"`
	Command string `toml:"command"`
	When    string `toml:"when,omitempty"`
}

// compiledBinding pairs the parsed chord with its predicate.
type compiledBinding struct {
	chord   Chord
	command string
	when    predicate
}

// Keymap is an immutable set of compiled bindings. Keymaps are loaded
// wholesale and swapped wholesale on reload; they are never mutated.
type Keymap struct {
	bindings []compiledBinding
}

// NewKeymap compiles a binding list. Any bad chord or predicate fails the
// whole keymap; a partially-valid keymap is never produced.
func NewKeymap(bindings []Binding) (*Keymap, error) {
	km := &Keymap{bindings: make([]compiledBinding, 0, len(bindings))}
	for _, b := range bindings {
		chord, err := ParseChord(b.Key)
		if err != nil {
			return nil, err
		}
		when, err := compilePredicate(b.When)
		if err != nil {
			return nil, err
		}
		if b.Command == "" {
			return nil, fmt.Errorf("binding %q has no command", b.Key)
		}
		km.bindings = append(km.bindings, compiledBinding{chord: chord, command: b.Command, when: when})
	}
	return km, nil
}

// Match returns the command bound to the event's chord, if any. A binding
// with a "when" predicate fires only if the predicate evaluates true
// against the current focus context.
func (km *Keymap) Match(ev Event, fc FocusContext) (string, bool) {
	if km == nil || ev.Type != EventKey {
		return "", false
	}
	c := chordOf(ev)
	for _, b := range km.bindings {
		if b.chord != c {
			continue
		}
		if b.when != nil && !b.when(fc) {
			continue
		}
		return b.command, true
	}
	return "", false
}

// keymapFile is the TOML shape of a keymap file.
type keymapFile struct {
	Binding []Binding `toml:"binding"`
}

// LoadKeymap reads a TOML keymap file:
//
//	[[binding]]
//	key = "ctrl+p"
//	command = "palette.show"
//	when = "kind == editor"
func LoadKeymap(path string) (*Keymap, error) {
	var file keymapFile
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return nil, fmt.Errorf("load keymap %s: %w", path, err)
	}
	return NewKeymap(file.Binding)
}
