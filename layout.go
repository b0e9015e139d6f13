package slate

import (
	"errors"
	"fmt"
	"math"
)

// Layout errors. Mutating operations either fully succeed or return one of
// these with the tree untouched.
var (
	ErrUnknownNode  = errors.New("unknown node id")
	ErrNotAPane     = errors.New("node is not a pane")
	ErrNotASplit    = errors.New("node is not a split")
	ErrRatioCount   = errors.New("ratio count does not match child count")
	ErrBadRatio     = errors.New("ratios must be positive")
	ErrLastPane     = errors.New("cannot close the last pane")
	ErrBadSnapshot  = errors.New("malformed layout snapshot")
	ErrNoSuchOption = errors.New("element index out of range")
)

// Direction is a split's partitioning axis.
type Direction uint8

const (
	// Horizontal lays children out side by side (partitions width).
	Horizontal Direction = iota
	// Vertical stacks children (partitions height).
	Vertical
)

// PaneMode controls how a pane presents multiple hosted elements.
type PaneMode uint8

const (
	PaneSingle PaneMode = iota
	PaneTabs
	PaneAccordion
)

// NodeID is a stable identifier for a tree node. IDs are never reused.
type NodeID int

type nodeKind uint8

const (
	nodePane nodeKind = iota
	nodeSplit
)

// node lives in the tree's arena. Parent linkage is by id, never by
// pointer, so the structure is cycle-free.
type node struct {
	id     NodeID
	kind   nodeKind
	parent NodeID // 0 = root

	// split fields
	dir      Direction
	children []NodeID
	ratios   []float64

	// pane fields
	mode     PaneMode
	elements []Element
	active   int
}

// Tree is the recursive split/pane layout structure. Nodes are stored in a
// flat arena keyed by id for O(1) lookup; the shape is expressed through
// child-id lists.
type Tree struct {
	nodes  map[NodeID]*node
	root   NodeID
	nextID NodeID
}

// NewTree creates a tree holding a single empty pane.
func NewTree() *Tree {
	t := &Tree{nodes: make(map[NodeID]*node)}
	root := t.newNode(nodePane)
	t.root = root.id
	return t
}

func (t *Tree) newNode(kind nodeKind) *node {
	t.nextID++
	n := &node{id: t.nextID, kind: kind}
	t.nodes[n.id] = n
	return n
}

// Root returns the id of the root node (a pane or a split).
func (t *Tree) Root() NodeID {
	return t.root
}

// IsPane reports whether the id names a pane.
func (t *Tree) IsPane(id NodeID) bool {
	n, ok := t.nodes[id]
	return ok && n.kind == nodePane
}

// IsSplit reports whether the id names a split.
func (t *Tree) IsSplit(id NodeID) bool {
	n, ok := t.nodes[id]
	return ok && n.kind == nodeSplit
}

func (t *Tree) pane(id NodeID) (*node, error) {
	n, ok := t.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownNode, id)
	}
	if n.kind != nodePane {
		return nil, fmt.Errorf("%w: %d", ErrNotAPane, id)
	}
	return n, nil
}

func (t *Tree) split(id NodeID) (*node, error) {
	n, ok := t.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownNode, id)
	}
	if n.kind != nodeSplit {
		return nil, fmt.Errorf("%w: %d", ErrNotASplit, id)
	}
	return n, nil
}

// Split replaces the target pane with a new split holding the existing pane
// and a fresh empty pane at an even ratio. Returns the new pane's id.
func (t *Tree) Split(dir Direction, paneID NodeID) (NodeID, error) {
	target, err := t.pane(paneID)
	if err != nil {
		return 0, err
	}

	sp := t.newNode(nodeSplit)
	sp.dir = dir
	fresh := t.newNode(nodePane)

	sp.children = []NodeID{target.id, fresh.id}
	sp.ratios = []float64{0.5, 0.5}

	// Take the target's place in its parent (or at the root).
	sp.parent = target.parent
	if target.parent == 0 {
		t.root = sp.id
	} else {
		parent := t.nodes[target.parent]
		for i, c := range parent.children {
			if c == target.id {
				parent.children[i] = sp.id
				break
			}
		}
	}
	target.parent = sp.id
	fresh.parent = sp.id

	return fresh.id, nil
}

// AdjustRatios replaces a split's ratio list. The list must match the child
// count and contain only positive values; it is re-normalized to sum to 1.
func (t *Tree) AdjustRatios(splitID NodeID, ratios []float64) error {
	sp, err := t.split(splitID)
	if err != nil {
		return err
	}
	if len(ratios) != len(sp.children) {
		return fmt.Errorf("%w: got %d, want %d", ErrRatioCount, len(ratios), len(sp.children))
	}
	sum := 0.0
	for _, r := range ratios {
		if r <= 0 || math.IsNaN(r) || math.IsInf(r, 0) {
			return fmt.Errorf("%w: %v", ErrBadRatio, r)
		}
		sum += r
	}
	normalized := make([]float64, len(ratios))
	for i, r := range ratios {
		normalized[i] = r / sum
	}
	sp.ratios = normalized
	return nil
}

// Ratios returns a copy of a split's ratio list.
func (t *Tree) Ratios(splitID NodeID) ([]float64, error) {
	sp, err := t.split(splitID)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(sp.ratios))
	copy(out, sp.ratios)
	return out, nil
}

// SwapChildren reverses a split's child order (and its ratios with it).
func (t *Tree) SwapChildren(splitID NodeID) error {
	sp, err := t.split(splitID)
	if err != nil {
		return err
	}
	for i, j := 0, len(sp.children)-1; i < j; i, j = i+1, j-1 {
		sp.children[i], sp.children[j] = sp.children[j], sp.children[i]
		sp.ratios[i], sp.ratios[j] = sp.ratios[j], sp.ratios[i]
	}
	return nil
}

// Children returns a copy of a split's child id list.
func (t *Tree) Children(splitID NodeID) ([]NodeID, error) {
	sp, err := t.split(splitID)
	if err != nil {
		return nil, err
	}
	out := make([]NodeID, len(sp.children))
	copy(out, sp.children)
	return out, nil
}

// Parent returns the id of a node's parent split, or 0 for the root.
func (t *Tree) Parent(id NodeID) (NodeID, error) {
	n, ok := t.nodes[id]
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrUnknownNode, id)
	}
	return n.parent, nil
}

// ClosePane removes a leaf pane. A parent split left with a single child is
// collapsed away so no single-child split ever persists.
func (t *Tree) ClosePane(paneID NodeID) error {
	target, err := t.pane(paneID)
	if err != nil {
		return err
	}
	if target.parent == 0 {
		return ErrLastPane
	}

	parent := t.nodes[target.parent]
	idx := -1
	for i, c := range parent.children {
		if c == target.id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: %d", ErrUnknownNode, paneID)
	}

	parent.children = append(parent.children[:idx], parent.children[idx+1:]...)
	parent.ratios = append(parent.ratios[:idx], parent.ratios[idx+1:]...)
	delete(t.nodes, target.id)

	if len(parent.children) == 1 {
		// Collapse: the surviving sibling takes the split's position.
		survivor := t.nodes[parent.children[0]]
		survivor.parent = parent.parent
		if parent.parent == 0 {
			t.root = survivor.id
		} else {
			grand := t.nodes[parent.parent]
			for i, c := range grand.children {
				if c == parent.id {
					grand.children[i] = survivor.id
					break
				}
			}
		}
		delete(t.nodes, parent.id)
		return nil
	}

	// Re-normalize the remaining ratios to sum to 1.
	sum := 0.0
	for _, r := range parent.ratios {
		sum += r
	}
	for i := range parent.ratios {
		parent.ratios[i] /= sum
	}
	return nil
}

// Pane element operations.

// AddElement appends a hosted element to a pane.
func (t *Tree) AddElement(paneID NodeID, el Element) error {
	p, err := t.pane(paneID)
	if err != nil {
		return err
	}
	p.elements = append(p.elements, el)
	return nil
}

// RemoveElement removes the element at the given index from a pane.
func (t *Tree) RemoveElement(paneID NodeID, index int) error {
	p, err := t.pane(paneID)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(p.elements) {
		return fmt.Errorf("%w: %d", ErrNoSuchOption, index)
	}
	p.elements = append(p.elements[:index], p.elements[index+1:]...)
	if p.active >= len(p.elements) && p.active > 0 {
		p.active = len(p.elements) - 1
	}
	return nil
}

// SetActive selects which hosted element a pane shows.
func (t *Tree) SetActive(paneID NodeID, index int) error {
	p, err := t.pane(paneID)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(p.elements) {
		return fmt.Errorf("%w: %d", ErrNoSuchOption, index)
	}
	p.active = index
	return nil
}

// Active returns a pane's active element index.
func (t *Tree) Active(paneID NodeID) (int, error) {
	p, err := t.pane(paneID)
	if err != nil {
		return 0, err
	}
	return p.active, nil
}

// Elements returns a copy of a pane's hosted element list.
func (t *Tree) Elements(paneID NodeID) ([]Element, error) {
	p, err := t.pane(paneID)
	if err != nil {
		return nil, err
	}
	out := make([]Element, len(p.elements))
	copy(out, p.elements)
	return out, nil
}

// ActiveElement returns a pane's active element, or nil if the pane is empty.
func (t *Tree) ActiveElement(paneID NodeID) Element {
	p, err := t.pane(paneID)
	if err != nil || len(p.elements) == 0 {
		return nil
	}
	return p.elements[p.active]
}

// SetMode sets how a pane presents multiple elements.
func (t *Tree) SetMode(paneID NodeID, mode PaneMode) error {
	p, err := t.pane(paneID)
	if err != nil {
		return err
	}
	p.mode = mode
	return nil
}

// Mode returns a pane's presentation mode.
func (t *Tree) Mode(paneID NodeID) (PaneMode, error) {
	p, err := t.pane(paneID)
	if err != nil {
		return PaneSingle, err
	}
	return p.mode, nil
}

// ComputeBounds partitions rootRect over the whole tree and returns the
// rectangle for every node. Each child except the last gets
// floor(ratio x size); the last child absorbs the rounding remainder, so
// children always tile their parent exactly.
func (t *Tree) ComputeBounds(rootRect Rect) map[NodeID]Rect {
	out := make(map[NodeID]Rect, len(t.nodes))
	t.computeBounds(t.root, rootRect, out)
	return out
}

func (t *Tree) computeBounds(id NodeID, rect Rect, out map[NodeID]Rect) {
	n := t.nodes[id]
	out[id] = rect
	if n.kind != nodeSplit {
		return
	}

	total := rect.W
	if n.dir == Vertical {
		total = rect.H
	}

	offset := 0
	for i, child := range n.children {
		var size int
		if i == len(n.children)-1 {
			size = total - offset
		} else {
			size = int(math.Floor(n.ratios[i] * float64(total)))
		}
		var childRect Rect
		if n.dir == Horizontal {
			childRect = Rect{X: rect.X + offset, Y: rect.Y, W: size, H: rect.H}
		} else {
			childRect = Rect{X: rect.X, Y: rect.Y + offset, W: rect.W, H: size}
		}
		t.computeBounds(child, childRect, out)
		offset += size
	}
}

// Walk visits every pane in the tree's deterministic in-order walk
// (left-to-right, top-to-bottom of the split structure).
func (t *Tree) Walk(fn func(paneID NodeID)) {
	t.walk(t.root, fn)
}

func (t *Tree) walk(id NodeID, fn func(paneID NodeID)) {
	n, ok := t.nodes[id]
	if !ok {
		return
	}
	if n.kind == nodePane {
		fn(id)
		return
	}
	for _, child := range n.children {
		t.walk(child, fn)
	}
}

// Panes returns all pane ids in walk order.
func (t *Tree) Panes() []NodeID {
	var out []NodeID
	t.Walk(func(id NodeID) { out = append(out, id) })
	return out
}

// FirstPane returns the first pane in walk order.
func (t *Tree) FirstPane() NodeID {
	var first NodeID
	t.Walk(func(id NodeID) {
		if first == 0 {
			first = id
		}
	})
	return first
}

// PaneAt returns the pane whose computed bounds contain the point.
func (t *Tree) PaneAt(bounds map[NodeID]Rect, x, y int) (NodeID, bool) {
	for _, id := range t.Panes() {
		if r, ok := bounds[id]; ok && r.Contains(x, y) {
			return id, true
		}
	}
	return 0, false
}

// Snapshot is the serialized form of a node and its descendants: enough to
// rebuild an isomorphic tree by replaying splits and element adds.
type Snapshot struct {
	Kind string `toml:"kind" json:"kind"` // "split" or "pane"

	// split
	Direction Direction  `toml:"direction,omitempty" json:"direction,omitempty"`
	Ratios    []float64  `toml:"ratios,omitempty" json:"ratios,omitempty"`
	Children  []Snapshot `toml:"children,omitempty" json:"children,omitempty"`

	// pane
	Mode     PaneMode `toml:"mode,omitempty" json:"mode,omitempty"`
	Elements []string `toml:"elements,omitempty" json:"elements,omitempty"`
	Active   int      `toml:"active,omitempty" json:"active,omitempty"`
}

// Snapshot serializes the tree. Elements are recorded through idOf, which
// must yield a stable identifier per element; element internals are not
// persisted.
func (t *Tree) Snapshot(idOf func(Element) string) Snapshot {
	return t.snapshot(t.root, idOf)
}

func (t *Tree) snapshot(id NodeID, idOf func(Element) string) Snapshot {
	n := t.nodes[id]
	if n.kind == nodeSplit {
		s := Snapshot{
			Kind:      "split",
			Direction: n.dir,
			Ratios:    append([]float64(nil), n.ratios...),
		}
		for _, c := range n.children {
			s.Children = append(s.Children, t.snapshot(c, idOf))
		}
		return s
	}
	s := Snapshot{Kind: "pane", Mode: n.mode, Active: n.active}
	for _, el := range n.elements {
		s.Elements = append(s.Elements, idOf(el))
	}
	return s
}

// Rebuild reconstructs a tree from a snapshot. Element ids resolve through
// resolve; an id it cannot satisfy fails the whole rebuild.
func Rebuild(snap Snapshot, resolve func(id string) (Element, error)) (*Tree, error) {
	t := &Tree{nodes: make(map[NodeID]*node)}
	rootID, err := t.rebuild(snap, 0, resolve)
	if err != nil {
		return nil, err
	}
	t.root = rootID
	return t, nil
}

func (t *Tree) rebuild(snap Snapshot, parent NodeID, resolve func(string) (Element, error)) (NodeID, error) {
	switch snap.Kind {
	case "split":
		if len(snap.Children) < 2 || len(snap.Ratios) != len(snap.Children) {
			return 0, fmt.Errorf("%w: split with %d children, %d ratios",
				ErrBadSnapshot, len(snap.Children), len(snap.Ratios))
		}
		sp := t.newNode(nodeSplit)
		sp.parent = parent
		sp.dir = snap.Direction
		sp.ratios = append([]float64(nil), snap.Ratios...)
		for _, child := range snap.Children {
			cid, err := t.rebuild(child, sp.id, resolve)
			if err != nil {
				return 0, err
			}
			sp.children = append(sp.children, cid)
		}
		return sp.id, nil
	case "pane":
		p := t.newNode(nodePane)
		p.parent = parent
		p.mode = snap.Mode
		for _, elID := range snap.Elements {
			el, err := resolve(elID)
			if err != nil {
				return 0, fmt.Errorf("resolve element %q: %w", elID, err)
			}
			p.elements = append(p.elements, el)
		}
		if snap.Active >= 0 && snap.Active < len(p.elements) {
			p.active = snap.Active
		}
		return p.id, nil
	default:
		return 0, fmt.Errorf("%w: kind %q", ErrBadSnapshot, snap.Kind)
	}
}
