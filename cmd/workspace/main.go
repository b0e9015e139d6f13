// Command workspace is a demo shell for the slate framework: a file list,
// a text viewer, and an embedded shell arranged in splits, with a command
// palette overlay on ctrl+p.
package main

import (
	"fmt"
	"os"
	"os/exec"
	"sort"

	"golang.org/x/term"

	"slate"
)

func main() {
	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Fprintln(os.Stderr, "workspace: requires a terminal")
		os.Exit(1)
	}
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "workspace:", err)
		os.Exit(1)
	}
}

func run() error {
	w, err := slate.NewWindow()
	if err != nil {
		return err
	}
	tree := w.Tree()

	// Left pane: directory listing feeding the viewer on the right.
	viewer := slate.NewTextElement("viewer", "Select a file on the left.\n\nTab cycles focus, ctrl+p opens the palette, ctrl+q quits.")
	files := slate.NewListElement("files", listDir("."))
	files.OnSelect = func(_ int, name string) {
		data, err := os.ReadFile(name)
		if err != nil {
			viewer.SetText(fmt.Sprintf("error: %v", err))
			return
		}
		viewer.SetText(string(data))
	}

	left := tree.FirstPane()
	right, err := tree.Split(slate.Horizontal, left)
	if err != nil {
		return err
	}
	if err := tree.AdjustRatios(tree.Root(), []float64{0.3, 0.7}); err != nil {
		return err
	}
	tree.AddElement(left, files)
	tree.AddElement(right, viewer)

	// Bottom of the right pane: an interactive shell.
	bottom, err := tree.Split(slate.Vertical, right)
	if err != nil {
		return err
	}
	shell := slate.NewShellElement("shell", exec.Command(shellPath()), w.Wake)
	tree.AddElement(bottom, shell)
	defer shell.Close()
	if err := shell.Start(); err != nil {
		viewer.SetText(fmt.Sprintf("shell unavailable: %v", err))
	}

	registerCommands(w, viewer)

	km, err := keymap()
	if err != nil {
		return err
	}
	w.SetKeymap(km)

	w.Focus().FocusPane(left)
	return w.Run()
}

func registerCommands(w *slate.Window, viewer *slate.TextElement) {
	w.RegisterCommand("quit", w.Quit)
	w.RegisterCommand("focus.next", w.Focus().FocusNext)
	w.RegisterCommand("focus.prev", w.Focus().FocusPrev)
	w.RegisterCommand("pane.splitH", func() { w.SplitPane(slate.Horizontal) })
	w.RegisterCommand("pane.splitV", func() { w.SplitPane(slate.Vertical) })
	w.RegisterCommand("pane.close", func() { w.CloseFocusedPane() })
	w.RegisterCommand("overlay.dismiss", w.DismissOverlay)
	w.RegisterCommand("palette.open", func() { openPalette(w, viewer) })
}

// openPalette shows a centered command palette listing every runnable
// command.
func openPalette(w *slate.Window, viewer *slate.TextElement) {
	commands := []string{
		"pane.splitH", "pane.splitV", "pane.close",
		"focus.next", "focus.prev", "quit",
	}
	palette := slate.NewListElement("commands", commands)
	palette.OnSelect = func(_ int, cmd string) {
		w.DismissOverlay()
		switch cmd {
		case "quit":
			w.Quit()
		case "focus.next":
			w.Focus().FocusNext()
		case "focus.prev":
			w.Focus().FocusPrev()
		case "pane.splitH":
			w.SplitPane(slate.Horizontal)
		case "pane.splitV":
			w.SplitPane(slate.Vertical)
		case "pane.close":
			w.CloseFocusedPane()
		}
	}
	w.ShowOverlay(slate.Overlay{
		Element: palette,
		Bounds: func(size slate.Size) slate.Rect {
			width := size.Width / 2
			height := len(commands) + 2
			return slate.Rect{
				X: (size.Width - width) / 2,
				Y: size.Height / 4,
				W: width,
				H: height,
			}
		},
	})
}

// keymap loads keymap.toml when present, otherwise the built-in defaults.
func keymap() (*slate.Keymap, error) {
	if _, err := os.Stat("keymap.toml"); err == nil {
		return slate.LoadKeymap("keymap.toml")
	}
	return slate.NewKeymap([]slate.Binding{
		{Key: "ctrl+q", Command: "quit"},
		{Key: "ctrl+p", Command: "palette.open"},
		{Key: "tab", Command: "focus.next", When: "kind != shell"},
		{Key: "shift+tab", Command: "focus.prev", When: "kind != shell"},
		{Key: `ctrl+\`, Command: "pane.splitH"},
		{Key: "ctrl+_", Command: "pane.splitV"},
		{Key: "ctrl+w", Command: "pane.close", When: "kind != shell"},
		{Key: "escape", Command: "overlay.dismiss", When: "kind == list"},
	})
}

func listDir(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || e.Name()[0] == '.' {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

func shellPath() string {
	if sh := os.Getenv("SHELL"); sh != "" {
		return sh
	}
	return "/bin/sh"
}
