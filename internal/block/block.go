// Package block implements the region hierarchy used for page layout
// analysis.
//
// A topmost Block spans a whole source image. Every Block owns named,
// ordered collections of child blocks ("trees"), each child clipped to its
// parent's box, and lazily caches pixel buffers in four modalities derived
// from the shared source image.
//
// All blocks of one hierarchy live in a single arena and are addressed by
// integer IDs; a Block value is a handle into that arena. A hierarchy is
// not safe for concurrent use.
package block

import (
	"fmt"
	"log/slog"

	"github.com/ivlev/blocktree/internal/errkind"
	"github.com/ivlev/blocktree/internal/gradient"
	"github.com/ivlev/blocktree/internal/pixmap"
)

// ID identifies a block inside its hierarchy. The zero ID is never used.
type ID int

const noID ID = 0

// Option configures a hierarchy at creation.
type Option func(*document)

// WithLogger routes warnings of the hierarchy to l.
func WithLogger(l *slog.Logger) Option {
	return func(d *document) {
		if l != nil {
			d.log = l
		}
	}
}

// WithProjection selects how color channels are folded when gradients are
// computed. The default is gradient.Luminance.
func WithProjection(p gradient.Projection) Option {
	return func(d *document) { d.projection = p }
}

type childTree struct {
	name     string
	children []ID
}

type node struct {
	name   string
	box    Rect
	parent ID
	trees  []*childTree

	cache [len(pixmap.Modalities)]pixmap.Buffer
	// parameters the cached gradient was computed with
	grad      GradientParams
	gradKnown bool
}

func (n *node) tree(name string) *childTree {
	for _, t := range n.trees {
		if t.name == name {
			return t
		}
	}
	return nil
}

func (n *node) flush() {
	for i := range n.cache {
		n.cache[i] = pixmap.Buffer{}
	}
	n.gradKnown = false
}

// origin is the source image shared by every block of a hierarchy.
type origin struct {
	path   string
	buf    pixmap.Buffer
	opened bool
	// the topmost box came from a saved tree rather than the image header
	verify bool
}

type document struct {
	nodes      map[ID]*node
	next       ID
	root       ID
	src        origin
	log        *slog.Logger
	projection gradient.Projection
	hooks      PayloadHooks
}

func newDocument(opts []Option) *document {
	d := &document{
		nodes:      make(map[ID]*node),
		next:       1,
		log:        slog.Default(),
		projection: gradient.Luminance,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *document) add(n *node) ID {
	id := d.next
	d.next++
	d.nodes[id] = n
	return id
}

// source returns the shared source, decoding it on first use.
func (d *document) source() (pixmap.Buffer, error) {
	if d.src.opened {
		return d.src.buf, nil
	}
	buf, err := pixmap.Open(d.src.path)
	if err != nil {
		return pixmap.Buffer{}, err
	}
	if root := d.nodes[d.root]; root != nil && buf.Size() != root.box.Size() {
		if d.src.verify {
			return pixmap.Buffer{}, fmt.Errorf("%w: saved tree does not match image %s (%v vs %v)",
				errkind.ErrRuntime, d.src.path, root.box.Size(), buf.Size())
		}
		return pixmap.Buffer{}, fmt.Errorf("%w: image %s changed size since it was opened",
			errkind.ErrRuntime, d.src.path)
	}
	d.log.Debug("opened block source", "path", d.src.path, "modality", buf.Modality(), "size", buf.Size())
	d.src.buf = buf
	d.src.opened = true
	return buf, nil
}

// Block is a handle to one region of a hierarchy. The zero Block is invalid.
// Handles to removed blocks become invalid; their accessors return zero
// values and their mutators fail with errkind.ErrNotFound.
type Block struct {
	doc *document
	id  ID
}

// New creates a topmost block over an in-memory source image. The block
// spans the full image.
func New(src pixmap.Buffer, name string, opts ...Option) (Block, error) {
	if src.IsZero() || !src.Modality().Valid() {
		return Block{}, fmt.Errorf("%w: absent source image", errkind.ErrInvalidArgument)
	}
	size := src.Size()
	if size.X <= 0 || size.Y <= 0 {
		return Block{}, fmt.Errorf("%w: empty source image", errkind.ErrInvalidArgument)
	}
	d := newDocument(opts)
	d.src = origin{buf: src, opened: true}
	d.root = d.add(&node{name: name, box: NewRect(0, 0, size.X-1, size.Y-1)})
	return Block{doc: d, id: d.root}, nil
}

// Open creates a topmost block over the image file at imagePath. The image is
// decoded on the first buffer request. When treePath is not empty the saved
// hierarchy is loaded from it; its topmost box must match the image extent,
// which is checked when the image is decoded. A non-empty name overrides the
// saved topmost name.
func Open(imagePath, treePath, name string, opts ...Option) (Block, error) {
	if imagePath == "" {
		return Block{}, fmt.Errorf("%w: empty image path", errkind.ErrInvalidArgument)
	}
	if treePath == "" {
		size, err := pixmap.Dimensions(imagePath)
		if err != nil {
			return Block{}, err
		}
		if size.X <= 0 || size.Y <= 0 {
			return Block{}, fmt.Errorf("%w: empty image %s", errkind.ErrRuntime, imagePath)
		}
		d := newDocument(opts)
		d.src = origin{path: imagePath}
		d.root = d.add(&node{name: name, box: NewRect(0, 0, size.X-1, size.Y-1)})
		return Block{doc: d, id: d.root}, nil
	}

	d := newDocument(opts)
	d.src = origin{path: imagePath, verify: true}
	b, err := loadFile(d, treePath)
	if err != nil {
		return Block{}, err
	}
	if name != "" {
		d.nodes[b.id].name = name
	}
	return b, nil
}

func (b Block) node() *node {
	if b.doc == nil {
		return nil
	}
	return b.doc.nodes[b.id]
}

func (b Block) mustNode() (*node, error) {
	n := b.node()
	if n == nil {
		return nil, fmt.Errorf("%w: stale or zero block handle", errkind.ErrNotFound)
	}
	return n, nil
}

func (b Block) handle(id ID) Block { return Block{doc: b.doc, id: id} }

// Valid reports whether b refers to a live block.
func (b Block) Valid() bool { return b.node() != nil }

// ID returns the arena identifier of b.
func (b Block) ID() ID { return b.id }

// Name returns the block name.
func (b Block) Name() string {
	if n := b.node(); n != nil {
		return n.name
	}
	return ""
}

// SetName renames the block.
func (b Block) SetName(name string) {
	if n := b.node(); n != nil {
		n.name = name
	}
}

// Parent returns the parent block; ok is false for a topmost block.
func (b Block) Parent() (parent Block, ok bool) {
	n := b.node()
	if n == nil || n.parent == noID {
		return Block{}, false
	}
	return b.handle(n.parent), true
}

// IsTopmost reports whether b has no parent.
func (b Block) IsTopmost() bool {
	n := b.node()
	return n != nil && n.parent == noID
}

// Topmost returns the root of the hierarchy b belongs to.
func (b Block) Topmost() Block {
	if b.doc == nil {
		return Block{}
	}
	return b.handle(b.doc.root)
}

// IsAncestorOf reports whether b is a strict ancestor of other.
func (b Block) IsAncestorOf(other Block) bool {
	if b.doc == nil || other.doc != b.doc {
		return false
	}
	n := other.node()
	for n != nil && n.parent != noID {
		if n.parent == b.id {
			return true
		}
		n = b.doc.nodes[n.parent]
	}
	return false
}

// AbsoluteBBox returns the box of b in source image coordinates.
func (b Block) AbsoluteBBox() Rect {
	if n := b.node(); n != nil {
		return n.box
	}
	return NoRect
}

// RelativeBBox returns the box of b in its parent's coordinates.
func (b Block) RelativeBBox() Rect {
	n := b.node()
	if n == nil {
		return NoRect
	}
	if p := b.doc.nodes[n.parent]; p != nil {
		return n.box.Translate(-p.box.Left, -p.box.Top)
	}
	return n.box
}

// SetAbsoluteBBox moves b to r, clipped to its parent. Children that no
// longer intersect the new box are removed, the others are clipped, and
// trees left empty by the cascade are dropped. The buffers of b are flushed.
func (b Block) SetAbsoluteBBox(r Rect) error {
	n, err := b.mustNode()
	if err != nil {
		return err
	}
	if n.parent == noID {
		return fmt.Errorf("%w: the topmost block box is immutable", errkind.ErrLogic)
	}
	if !r.IsValid() {
		return fmt.Errorf("%w: uninitialized box", errkind.ErrInvalidArgument)
	}
	clipped := r.Intersect(b.doc.nodes[n.parent].box)
	if !clipped.IsValid() {
		return fmt.Errorf("%w: box %v does not intersect parent %v", errkind.ErrDimension, r, b.doc.nodes[n.parent].box)
	}
	old := n.box
	n.flush()
	n.box = clipped
	if !clipped.Contains(old) {
		b.doc.clipChildren(b.id)
	}
	return nil
}

// SetRelativeBBox is SetAbsoluteBBox with r in parent coordinates.
func (b Block) SetRelativeBBox(r Rect) error {
	n, err := b.mustNode()
	if err != nil {
		return err
	}
	if n.parent == noID {
		return fmt.Errorf("%w: the topmost block box is immutable", errkind.ErrLogic)
	}
	if !r.IsValid() {
		return fmt.Errorf("%w: uninitialized box", errkind.ErrInvalidArgument)
	}
	p := b.doc.nodes[n.parent]
	return b.SetAbsoluteBBox(r.Translate(p.box.Left, p.box.Top))
}

// clipChildren restores the containment invariant below id after its box
// shrank.
func (d *document) clipChildren(id ID) {
	stack := []ID{id}
	for len(stack) > 0 {
		pid := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		p := d.nodes[pid]

		trees := p.trees[:0]
		for _, t := range p.trees {
			kept := t.children[:0]
			for _, cid := range t.children {
				c := d.nodes[cid]
				nb := c.box.Intersect(p.box)
				if !nb.IsValid() {
					d.drop(cid)
					continue
				}
				if nb != c.box {
					c.box = nb
					c.flush()
					stack = append(stack, cid)
				}
				kept = append(kept, cid)
			}
			t.children = kept
			if len(kept) > 0 {
				trees = append(trees, t)
			}
		}
		p.trees = trees
	}
}

// drop deletes id and all its descendants from the arena. The caller
// unlinks id from its parent's tree.
func (d *document) drop(id ID) {
	stack := []ID{id}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := d.nodes[cur]
		if n == nil {
			continue
		}
		for _, t := range n.trees {
			stack = append(stack, t.children...)
		}
		n.parent = noID
		delete(d.nodes, cur)
	}
}
