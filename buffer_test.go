package slate

import "testing"

func TestBufferSetRuneWide(t *testing.T) {
	b := NewBuffer(10, 2)

	if w := b.SetRune(0, 0, '世', DefaultStyle()); w != 2 {
		t.Fatalf("width = %d, want 2", w)
	}
	if c := b.Get(0, 0); c.Rune != '世' || c.Width != 2 {
		t.Fatalf("lead cell = %+v", c)
	}
	if c := b.Get(1, 0); c.Rune != 0 {
		t.Fatalf("trailing cell = %+v, want rune 0", c)
	}
}

func TestBufferWideRuneAtRightEdge(t *testing.T) {
	b := NewBuffer(4, 1)
	if w := b.SetRune(3, 0, '界', DefaultStyle()); w != 1 {
		t.Fatalf("width = %d, want 1 (no room for trailing half)", w)
	}
	if c := b.Get(3, 0); c.Rune != ' ' {
		t.Fatalf("edge cell = %+v, want space", c)
	}
}

func TestBufferWriteStringMixedWidth(t *testing.T) {
	b := NewBuffer(20, 1)
	written := b.WriteString(0, 0, "a世b", DefaultStyle())
	if written != 4 {
		t.Fatalf("written = %d, want 4 columns", written)
	}
	if b.Get(0, 0).Rune != 'a' || b.Get(1, 0).Rune != '世' || b.Get(3, 0).Rune != 'b' {
		t.Fatalf("unexpected layout: %q", b.GetLine(0))
	}
}

func TestBufferWriteStringClipped(t *testing.T) {
	b := NewBuffer(20, 1)
	written := b.WriteStringClipped(0, 0, "hello world", DefaultStyle(), 5)
	if written != 5 {
		t.Fatalf("written = %d, want 5", written)
	}
	if b.Get(5, 0).Rune != ' ' {
		t.Fatalf("cell past clip = %+v", b.Get(5, 0))
	}
	// A wide rune that would straddle the clip boundary is dropped whole.
	b2 := NewBuffer(20, 1)
	if written := b2.WriteStringClipped(0, 0, "ab世", DefaultStyle(), 3); written != 2 {
		t.Fatalf("written = %d, want 2", written)
	}
}

func TestBufferDirtyRows(t *testing.T) {
	b := NewBuffer(10, 4)
	if b.RowDirty(2) {
		t.Fatal("fresh buffer has dirty rows")
	}
	b.SetRune(0, 2, 'x', DefaultStyle())
	if !b.RowDirty(2) || b.RowDirty(1) {
		t.Fatal("dirty tracking wrong after SetRune")
	}
	b.ClearDirtyFlags()
	if b.RowDirty(2) {
		t.Fatal("ClearDirtyFlags left row dirty")
	}
	b.MarkAllDirty()
	for y := 0; y < 4; y++ {
		if !b.RowDirty(y) {
			t.Fatalf("row %d not dirty after MarkAllDirty", y)
		}
	}
}

func TestBufferBorderMerging(t *testing.T) {
	b := NewBuffer(10, 10)
	style := DefaultStyle()

	// Two adjacent boxes sharing an edge: the shared verticals must merge
	// with the horizontal lines into tee junctions.
	b.DrawBorder(0, 0, 5, 5, BorderSingle, style)
	b.DrawBorder(4, 0, 5, 5, BorderSingle, style)

	if got := b.Get(4, 0).Rune; got != '┬' {
		t.Errorf("top junction = %q, want ┬", got)
	}
	if got := b.Get(4, 4).Rune; got != '┴' {
		t.Errorf("bottom junction = %q, want ┴", got)
	}
}

func TestBufferResizePreservesNothing(t *testing.T) {
	b := NewBuffer(5, 5)
	b.SetRune(0, 0, 'x', DefaultStyle())
	b.Resize(8, 3)
	if w, h := b.Size(); w != 8 || h != 3 {
		t.Fatalf("size = %dx%d", w, h)
	}
	if !b.RowDirty(0) {
		t.Fatal("resize must mark rows dirty")
	}
}

func TestRegionClipsWrites(t *testing.T) {
	b := NewBuffer(10, 10)
	r := b.Region(2, 2, 4, 3)

	r.WriteString(0, 0, "abcdefgh", DefaultStyle())
	if b.Get(2, 2).Rune != 'a' {
		t.Fatal("region write did not land at its origin")
	}
	if b.Get(6, 2).Rune != ' ' {
		t.Fatalf("write escaped the region: %+v", b.Get(6, 2))
	}

	// Out-of-bounds region coordinates are discarded.
	r.SetRune(-1, 0, 'z', DefaultStyle())
	r.SetRune(0, 5, 'z', DefaultStyle())
	if b.Get(1, 2).Rune == 'z' || b.Get(2, 7).Rune == 'z' {
		t.Fatal("out-of-bounds region write leaked into the buffer")
	}
}

func TestRegionNested(t *testing.T) {
	b := NewBuffer(10, 10)
	outer := b.Region(1, 1, 8, 8)
	inner := outer.Region(2, 2, 3, 3)

	inner.SetRune(0, 0, 'q', DefaultStyle())
	if b.Get(3, 3).Rune != 'q' {
		t.Fatalf("nested region origin mapped to %+v", b.Get(3, 3))
	}
	inner.SetRune(5, 0, 'w', DefaultStyle())
	if b.Get(8, 3).Rune == 'w' {
		t.Fatal("nested region write escaped its clip")
	}
}

func TestBufferBlit(t *testing.T) {
	src := NewBuffer(4, 2)
	src.WriteString(0, 0, "ab", DefaultStyle())
	src.WriteString(0, 1, "cd", DefaultStyle())

	dst := NewBuffer(10, 5)
	dst.Blit(src, 0, 0, 3, 2, 2, 2)

	if dst.Get(3, 2).Rune != 'a' || dst.Get(4, 3).Rune != 'd' {
		t.Fatalf("blit landed wrong: %q / %q", dst.GetLine(2), dst.GetLine(3))
	}
}

func TestBufferGetLineSkipsWidePlaceholders(t *testing.T) {
	b := NewBuffer(10, 1)
	b.WriteString(0, 0, "a世b", DefaultStyle())
	line := b.GetLine(0)
	if line != "a世b      " && line != "a世b" {
		t.Fatalf("line = %q", line)
	}
}
