package block

import (
	"fmt"

	"github.com/ivlev/blocktree/internal/errkind"
)

// TreeNames returns the names of the child trees of b in creation order.
func (b Block) TreeNames() []string {
	n := b.node()
	if n == nil {
		return nil
	}
	names := make([]string, len(n.trees))
	for i, t := range n.trees {
		names[i] = t.name
	}
	return names
}

// HasTree reports whether b has a child tree called name.
func (b Block) HasTree(name string) bool {
	n := b.node()
	return n != nil && n.tree(name) != nil
}

// ChildCount returns the number of children in tree, 0 when it is absent.
func (b Block) ChildCount(tree string) int {
	n := b.node()
	if n == nil {
		return 0
	}
	if t := n.tree(tree); t != nil {
		return len(t.children)
	}
	return 0
}

// Children returns the children of tree in order.
func (b Block) Children(tree string) []Block {
	n := b.node()
	if n == nil {
		return nil
	}
	t := n.tree(tree)
	if t == nil {
		return nil
	}
	out := make([]Block, len(t.children))
	for i, id := range t.children {
		out[i] = b.handle(id)
	}
	return out
}

// Child returns the i-th child of tree.
func (b Block) Child(tree string, i int) (Block, error) {
	t, err := b.lookupTree(tree)
	if err != nil {
		return Block{}, err
	}
	if i < 0 || i >= len(t.children) {
		return Block{}, fmt.Errorf("%w: index %d in tree %q of size %d", errkind.ErrDomain, i, tree, len(t.children))
	}
	return b.handle(t.children[i]), nil
}

// ChildNamed returns the first child of tree called name.
func (b Block) ChildNamed(tree, name string) (Block, error) {
	t, err := b.lookupTree(tree)
	if err != nil {
		return Block{}, err
	}
	for _, id := range t.children {
		if b.doc.nodes[id].name == name {
			return b.handle(id), nil
		}
	}
	return Block{}, fmt.Errorf("%w: no child %q in tree %q", errkind.ErrNotFound, name, tree)
}

func (b Block) lookupTree(tree string) (*childTree, error) {
	n, err := b.mustNode()
	if err != nil {
		return nil, err
	}
	t := n.tree(tree)
	if t == nil {
		return nil, fmt.Errorf("%w: no tree %q in block %q", errkind.ErrNotFound, tree, n.name)
	}
	return t, nil
}

// AddChildAbsolute appends a child to tree, clip being in source image
// coordinates. The child box is clip intersected with the box of b.
func (b Block) AddChildAbsolute(tree string, clip Rect) (Block, error) {
	return b.insert(tree, -1, clip, "", false)
}

// AddChildAbsoluteNamed is AddChildAbsolute with an explicit child name.
func (b Block) AddChildAbsoluteNamed(tree string, clip Rect, name string) (Block, error) {
	return b.insert(tree, -1, clip, name, true)
}

// AddChildAbsoluteAt inserts a child at position pos of tree. Positions past
// the end append.
func (b Block) AddChildAbsoluteAt(tree string, pos int, clip Rect, name string) (Block, error) {
	if pos < 0 {
		return Block{}, fmt.Errorf("%w: negative position %d", errkind.ErrDomain, pos)
	}
	return b.insert(tree, pos, clip, name, name != "")
}

// AddChildRelative appends a child to tree, clip being relative to the box
// of b.
func (b Block) AddChildRelative(tree string, clip Rect) (Block, error) {
	return b.insert(tree, -1, b.toAbsolute(clip), "", false)
}

// AddChildRelativeNamed is AddChildRelative with an explicit child name.
func (b Block) AddChildRelativeNamed(tree string, clip Rect, name string) (Block, error) {
	return b.insert(tree, -1, b.toAbsolute(clip), name, true)
}

// AddChildRelativeAt is AddChildAbsoluteAt with clip relative to b.
func (b Block) AddChildRelativeAt(tree string, pos int, clip Rect, name string) (Block, error) {
	if pos < 0 {
		return Block{}, fmt.Errorf("%w: negative position %d", errkind.ErrDomain, pos)
	}
	return b.insert(tree, pos, b.toAbsolute(clip), name, name != "")
}

func (b Block) toAbsolute(r Rect) Rect {
	n := b.node()
	if n == nil || !r.IsValid() {
		return r
	}
	return r.Translate(n.box.Left, n.box.Top)
}

// insert validates everything before touching the hierarchy. pos < 0 appends.
func (b Block) insert(tree string, pos int, clip Rect, name string, named bool) (Block, error) {
	n, err := b.mustNode()
	if err != nil {
		return Block{}, fmt.Errorf("%w: absent parent", errkind.ErrInvalidArgument)
	}
	if tree == "" {
		return Block{}, fmt.Errorf("%w: empty tree name", errkind.ErrInvalidArgument)
	}
	if named && name == "" {
		return Block{}, fmt.Errorf("%w: empty block name", errkind.ErrInvalidArgument)
	}
	if !clip.IsValid() {
		return Block{}, fmt.Errorf("%w: uninitialized clip rectangle", errkind.ErrInvalidArgument)
	}
	box := clip.Intersect(n.box)
	if !box.IsValid() {
		return Block{}, fmt.Errorf("%w: clip %v does not intersect %v", errkind.ErrDomain, clip, n.box)
	}

	id := b.doc.add(&node{name: name, box: box, parent: b.id})
	t := n.tree(tree)
	if t == nil {
		t = &childTree{name: tree}
		n.trees = append(n.trees, t)
	}
	if pos < 0 || pos >= len(t.children) {
		t.children = append(t.children, id)
	} else {
		t.children = append(t.children, noID)
		copy(t.children[pos+1:], t.children[pos:])
		t.children[pos] = id
	}
	return b.handle(id), nil
}

// RemoveChild removes the i-th child of tree and its whole subtree.
func (b Block) RemoveChild(tree string, i int) error {
	t, err := b.lookupTree(tree)
	if err != nil {
		return err
	}
	if i < 0 || i >= len(t.children) {
		return fmt.Errorf("%w: index %d in tree %q of size %d", errkind.ErrDomain, i, tree, len(t.children))
	}
	b.doc.drop(t.children[i])
	t.children = append(t.children[:i], t.children[i+1:]...)
	return nil
}

// RemoveChildNamed removes the first child of tree called name.
func (b Block) RemoveChildNamed(tree, name string) error {
	t, err := b.lookupTree(tree)
	if err != nil {
		return err
	}
	for i, id := range t.children {
		if b.doc.nodes[id].name == name {
			return b.RemoveChild(tree, i)
		}
	}
	return fmt.Errorf("%w: no child %q in tree %q", errkind.ErrNotFound, name, tree)
}

// RemoveChildBlock removes child from tree.
func (b Block) RemoveChildBlock(tree string, child Block) error {
	t, err := b.lookupTree(tree)
	if err != nil {
		return err
	}
	if child.doc == b.doc {
		for i, id := range t.children {
			if id == child.id {
				return b.RemoveChild(tree, i)
			}
		}
	}
	return fmt.Errorf("%w: block is not a child of tree %q", errkind.ErrNotFound, tree)
}

// RemoveChildren removes, in one pass, every child of tree for which any of
// preds returns true. All predicates see the tree as it was before the call.
// It returns the number of removed children.
func (b Block) RemoveChildren(tree string, preds ...func(Block) bool) (int, error) {
	t, err := b.lookupTree(tree)
	if err != nil {
		return 0, err
	}
	if len(preds) == 0 {
		return 0, nil
	}
	doomed := make(map[ID]bool)
	for _, id := range t.children {
		c := b.handle(id)
		for _, pred := range preds {
			if pred(c) {
				doomed[id] = true
				break
			}
		}
	}
	if len(doomed) == 0 {
		return 0, nil
	}
	kept := t.children[:0]
	for _, id := range t.children {
		if doomed[id] {
			b.doc.drop(id)
			continue
		}
		kept = append(kept, id)
	}
	t.children = kept
	return len(doomed), nil
}

// adopt moves every child of from under into, tree by tree. from is left
// without children.
func (d *document) adopt(into, from ID) {
	dst, src := d.nodes[into], d.nodes[from]
	for _, st := range src.trees {
		dt := dst.tree(st.name)
		if dt == nil {
			dt = &childTree{name: st.name}
			dst.trees = append(dst.trees, dt)
		}
		for _, cid := range st.children {
			d.nodes[cid].parent = into
		}
		dt.children = append(dt.children, st.children...)
	}
	src.trees = nil
}
