package block

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/ivlev/blocktree/internal/errkind"
	"github.com/ivlev/blocktree/internal/filelock"
	"github.com/ivlev/blocktree/internal/pixmap"
)

// Saved hierarchies are XML:
//
//	<Block left="0" top="0" right="99" bottom="49" name="page">
//	  <BlockTree treename="line">
//	    <Block left="2" top="2" right="40" bottom="9" name="1"/>
//	  </BlockTree>
//	</Block>
//
// Boxes are absolute and inclusive. Old files name blocks with "blockname".
const (
	elemBlock    = "Block"
	elemTree     = "BlockTree"
	attrTreeName = "treename"
	attrName     = "name"
	attrLegacy   = "blockname"
	attrLeft     = "left"
	attrTop      = "top"
	attrRight    = "right"
	attrBottom   = "bottom"
)

// PayloadHooks attach user data to the Block elements of a saved hierarchy.
type PayloadHooks struct {
	// Save returns extra attributes written on the element of b.
	Save func(b Block) []xml.Attr
	// Load receives the non-geometry attributes of the element of b.
	Load func(b Block, attrs []xml.Attr) error
}

// WithPayload installs persistence hooks on the hierarchy.
func WithPayload(h PayloadHooks) Option {
	return func(d *document) { d.hooks = h }
}

// Save writes the whole hierarchy of b to path while holding the file lock
// of path.
func (b Block) Save(path string) error {
	if b.node() == nil {
		return fmt.Errorf("%w: stale or zero block handle", errkind.ErrNotFound)
	}
	release := filelock.Acquire(path)
	defer release()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: create %s: %w", errkind.ErrIO, path, err)
	}
	if err := b.Encode(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %w", errkind.ErrIO, path, err)
	}
	return nil
}

// Encode writes the whole hierarchy of b as XML.
func (b Block) Encode(w io.Writer) error {
	if b.node() == nil {
		return fmt.Errorf("%w: stale or zero block handle", errkind.ErrNotFound)
	}
	d := b.doc
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.EncodeToken(xml.ProcInst{Target: "xml", Inst: []byte(`version="1.0" encoding="UTF-8"`)}); err != nil {
		return fmt.Errorf("%w: %w", errkind.ErrIO, err)
	}

	// work items are start tokens to open or end tokens to close
	type item struct {
		id    ID
		tree  *childTree
		close *xml.EndElement
	}
	stack := []item{{id: d.root}}
	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		var tok xml.Token
		switch {
		case it.close != nil:
			tok = *it.close
		case it.tree != nil:
			tok = xml.StartElement{
				Name: xml.Name{Local: elemTree},
				Attr: []xml.Attr{{Name: xml.Name{Local: attrTreeName}, Value: it.tree.name}},
			}
			stack = append(stack, item{close: &xml.EndElement{Name: xml.Name{Local: elemTree}}})
			for i := len(it.tree.children) - 1; i >= 0; i-- {
				stack = append(stack, item{id: it.tree.children[i]})
			}
		default:
			n := d.nodes[it.id]
			tok = d.blockStart(it.id, n)
			stack = append(stack, item{close: &xml.EndElement{Name: xml.Name{Local: elemBlock}}})
			for i := len(n.trees) - 1; i >= 0; i-- {
				stack = append(stack, item{tree: n.trees[i]})
			}
		}
		if err := enc.EncodeToken(tok); err != nil {
			return fmt.Errorf("%w: encode tree: %w", errkind.ErrIO, err)
		}
	}
	if err := enc.Flush(); err != nil {
		return fmt.Errorf("%w: %w", errkind.ErrIO, err)
	}
	return nil
}

func (d *document) blockStart(id ID, n *node) xml.StartElement {
	attr := func(k string, v int) xml.Attr {
		return xml.Attr{Name: xml.Name{Local: k}, Value: strconv.Itoa(v)}
	}
	se := xml.StartElement{
		Name: xml.Name{Local: elemBlock},
		Attr: []xml.Attr{
			attr(attrLeft, n.box.Left),
			attr(attrTop, n.box.Top),
			attr(attrRight, n.box.Right),
			attr(attrBottom, n.box.Bottom),
		},
	}
	if n.name != "" {
		se.Attr = append(se.Attr, xml.Attr{Name: xml.Name{Local: attrName}, Value: n.name})
	}
	if d.hooks.Save != nil {
		se.Attr = append(se.Attr, d.hooks.Save(Block{doc: d, id: id})...)
	}
	return se
}

// Load reads a saved hierarchy from treePath over an in-memory source. The
// saved topmost box must span src exactly.
func Load(src pixmap.Buffer, treePath string, opts ...Option) (Block, error) {
	if src.IsZero() {
		return Block{}, fmt.Errorf("%w: absent source image", errkind.ErrInvalidArgument)
	}
	d := newDocument(opts)
	d.src = origin{buf: src, opened: true}
	b, err := loadFile(d, treePath)
	if err != nil {
		return Block{}, err
	}
	return b, checkExtent(d, src)
}

// Decode is Load reading from r.
func Decode(r io.Reader, src pixmap.Buffer, opts ...Option) (Block, error) {
	if src.IsZero() {
		return Block{}, fmt.Errorf("%w: absent source image", errkind.ErrInvalidArgument)
	}
	d := newDocument(opts)
	d.src = origin{buf: src, opened: true}
	b, err := decodeInto(d, r)
	if err != nil {
		return Block{}, err
	}
	return b, checkExtent(d, src)
}

func checkExtent(d *document, src pixmap.Buffer) error {
	if root := d.nodes[d.root]; root.box.Size() != src.Size() {
		return fmt.Errorf("%w: saved tree does not match image (%v vs %v)", errkind.ErrRuntime, root.box.Size(), src.Size())
	}
	return nil
}

func loadFile(d *document, path string) (Block, error) {
	release := filelock.Acquire(path)
	defer release()

	f, err := os.Open(path)
	if err != nil {
		return Block{}, fmt.Errorf("%w: open tree: %w", errkind.ErrIO, err)
	}
	defer f.Close()

	b, err := decodeInto(d, f)
	if err != nil {
		return Block{}, fmt.Errorf("%s: %w", path, err)
	}
	return b, nil
}

// decodeInto fills d from an XML stream. Unknown elements are skipped so
// that payload stored as child elements survives foreign readers.
func decodeInto(d *document, r io.Reader) (Block, error) {
	dec := xml.NewDecoder(r)

	var stack []decodeFrame

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			if d.root == noID {
				return Block{}, fmt.Errorf("%w: no %s element", errkind.ErrRuntime, elemBlock)
			}
			return Block{}, fmt.Errorf("%w: unexpected end of tree", errkind.ErrRuntime)
		}
		if err != nil {
			return Block{}, fmt.Errorf("%w: malformed tree: %w", errkind.ErrRuntime, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case elemBlock:
				id, err := d.decodeBlock(t, stack)
				if err != nil {
					return Block{}, err
				}
				stack = append(stack, decodeFrame{id: id})
			case elemTree:
				if len(stack) == 0 || stack[len(stack)-1].tree != "" {
					return Block{}, fmt.Errorf("%w: %s outside of a %s", errkind.ErrRuntime, elemTree, elemBlock)
				}
				name, ok := attrValue(t.Attr, attrTreeName)
				if !ok || name == "" {
					return Block{}, fmt.Errorf("%w: %s without %s", errkind.ErrNotFound, elemTree, attrTreeName)
				}
				top := stack[len(stack)-1]
				n := d.nodes[top.id]
				if n.tree(name) == nil {
					n.trees = append(n.trees, &childTree{name: name})
				}
				stack = append(stack, decodeFrame{id: top.id, tree: name})
			default:
				if len(stack) == 0 {
					return Block{}, fmt.Errorf("%w: unexpected root element %s", errkind.ErrRuntime, t.Name.Local)
				}
				if err := dec.Skip(); err != nil {
					return Block{}, fmt.Errorf("%w: malformed tree: %w", errkind.ErrRuntime, err)
				}
			}
		case xml.EndElement:
			if len(stack) == 0 {
				continue
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return Block{doc: d, id: d.root}, nil
			}
		}
	}
}

// decodeFrame is an open Block element, or an open BlockTree of it when
// tree is set.
type decodeFrame struct {
	id   ID
	tree string
}

func (d *document) decodeBlock(se xml.StartElement, stack []decodeFrame) (ID, error) {
	box, rest, err := parseBox(se.Attr)
	if err != nil {
		return noID, err
	}
	var (
		name    string
		payload []xml.Attr
	)
	for _, a := range rest {
		switch a.Name.Local {
		case attrName:
			name = a.Value
		case attrLegacy:
			if name == "" {
				name = a.Value
			}
		default:
			payload = append(payload, a)
		}
	}

	var id ID
	if len(stack) == 0 {
		if d.root != noID {
			return noID, fmt.Errorf("%w: several topmost blocks", errkind.ErrRuntime)
		}
		if box.Left != 0 || box.Top != 0 {
			return noID, fmt.Errorf("%w: topmost block %v is not anchored at the origin", errkind.ErrRuntime, box)
		}
		id = d.add(&node{name: name, box: box})
		d.root = id
	} else {
		top := stack[len(stack)-1]
		if top.tree == "" {
			return noID, fmt.Errorf("%w: %s nested directly in a %s", errkind.ErrRuntime, elemBlock, elemBlock)
		}
		p := d.nodes[top.id]
		clipped := box.Intersect(p.box)
		if !clipped.IsValid() {
			return noID, fmt.Errorf("%w: block %v lies outside its parent %v", errkind.ErrRuntime, box, p.box)
		}
		id = d.add(&node{name: name, box: clipped, parent: top.id})
		t := p.tree(top.tree)
		t.children = append(t.children, id)
	}

	if d.hooks.Load != nil {
		if err := d.hooks.Load(Block{doc: d, id: id}, payload); err != nil {
			return noID, err
		}
	}
	return id, nil
}

func parseBox(attrs []xml.Attr) (Rect, []xml.Attr, error) {
	var (
		vals [4]int
		seen [4]bool
		rest []xml.Attr
	)
	keys := [4]string{attrLeft, attrTop, attrRight, attrBottom}
outer:
	for _, a := range attrs {
		for i, k := range keys {
			if a.Name.Local != k {
				continue
			}
			v, err := strconv.Atoi(a.Value)
			if err != nil {
				return NoRect, nil, fmt.Errorf("%w: attribute %s=%q is not an integer", errkind.ErrRuntime, k, a.Value)
			}
			vals[i], seen[i] = v, true
			continue outer
		}
		rest = append(rest, a)
	}
	for i, ok := range seen {
		if !ok {
			return NoRect, nil, fmt.Errorf("%w: %s without %s", errkind.ErrNotFound, elemBlock, keys[i])
		}
	}
	r := NewRect(vals[0], vals[1], vals[2], vals[3])
	if !r.IsValid() {
		return NoRect, nil, fmt.Errorf("%w: invalid box %v", errkind.ErrRuntime, r)
	}
	return r, rest, nil
}

func attrValue(attrs []xml.Attr, key string) (string, bool) {
	for _, a := range attrs {
		if a.Name.Local == key {
			return a.Value, true
		}
	}
	return "", false
}
