package block

import (
	"fmt"
	"strconv"

	"github.com/ivlev/blocktree/internal/errkind"
	"github.com/ivlev/blocktree/internal/pixmap"
)

// LabelMap assigns a component label to every pixel of a block; 0 is
// background.
type LabelMap struct {
	Width, Height int
	Labels        []int
}

// NewLabelMap returns an all-background label map.
func NewLabelMap(w, h int) *LabelMap {
	return &LabelMap{Width: w, Height: h, Labels: make([]int, w*h)}
}

// At returns the label of (x, y).
func (m *LabelMap) At(x, y int) int { return m.Labels[y*m.Width+x] }

// Set assigns label l to (x, y).
func (m *LabelMap) Set(x, y, l int) { m.Labels[y*m.Width+x] = l }

// Relabel replaces every occurrence of from with to.
func (m *LabelMap) Relabel(from, to int) {
	for i, l := range m.Labels {
		if l == from {
			m.Labels[i] = to
		}
	}
}

// Component is one 8-connected group of foreground pixels.
type Component struct {
	Label int
	// Box is the tight bounding box in bitmap coordinates.
	Box Rect
}

// equivalences groups provisional labels that turned out to touch. Sets keep
// insertion order; the first member of a set is its representative.
type equivalences struct {
	sets  [][]int
	index map[int]int
}

func newEquivalences() *equivalences {
	return &equivalences{index: make(map[int]int)}
}

func (e *equivalences) add(a, b int) {
	ia, oka := e.index[a]
	ib, okb := e.index[b]
	switch {
	case oka && okb:
		if ia == ib {
			return
		}
		for _, l := range e.sets[ib] {
			e.index[l] = ia
		}
		e.sets[ia] = append(e.sets[ia], e.sets[ib]...)
		e.sets[ib] = nil
	case oka:
		e.sets[ia] = append(e.sets[ia], b)
		e.index[b] = ia
	case okb:
		e.sets[ib] = append(e.sets[ib], a)
		e.index[a] = ib
	default:
		e.sets = append(e.sets, []int{a, b})
		e.index[a] = len(e.sets) - 1
		e.index[b] = len(e.sets) - 1
	}
}

// compile maps every label that has an equivalent to its representative.
func (e *equivalences) compile() map[int]int {
	reps := make(map[int]int, len(e.index))
	for _, set := range e.sets {
		for _, l := range set {
			reps[l] = set[0]
		}
	}
	return reps
}

// LabelComponents labels the 8-connected foreground components of bm in one
// raster pass, then remaps provisional labels to their representatives. The
// components are returned in the raster order of their first pixel.
func LabelComponents(bm *pixmap.Bitmap) (*LabelMap, []Component) {
	w, h := bm.Width, bm.Height
	labels := NewLabelMap(w, h)
	eq := newEquivalences()
	next := 1

	at := func(x, y int) int {
		if x < 0 || y < 0 || x >= w {
			return 0
		}
		return labels.Labels[y*w+x]
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if !bm.Pix[y*w+x] {
				continue
			}
			// priority: left, above, above-left, above-right
			neighbours := [4]int{at(x-1, y), at(x, y-1), at(x-1, y-1), at(x+1, y-1)}
			chosen := 0
			for _, l := range neighbours {
				if l == 0 {
					continue
				}
				if chosen == 0 {
					chosen = l
				} else if l != chosen {
					eq.add(chosen, l)
				}
			}
			if chosen == 0 {
				chosen = next
				next++
			}
			labels.Labels[y*w+x] = chosen
		}
	}

	reps := eq.compile()
	var comps []Component
	slot := make(map[int]int)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			l := labels.Labels[y*w+x]
			if l == 0 {
				continue
			}
			if r, ok := reps[l]; ok {
				l = r
				labels.Labels[y*w+x] = l
			}
			i, ok := slot[l]
			if !ok {
				slot[l] = len(comps)
				comps = append(comps, Component{Label: l, Box: NewRect(x, y, x, y)})
				continue
			}
			comps[i].Box = comps[i].Box.Union(NewRect(x, y, x, y))
		}
	}
	return labels, comps
}

// ExtractComponents labels the connected components of the bi-level buffer
// of b and appends one child per component to tree, named after its label.
// The tree is created even when the buffer holds no foreground.
func (b Block) ExtractComponents(tree string) (*LabelMap, error) {
	n, err := b.mustNode()
	if err != nil {
		return nil, err
	}
	if tree == "" {
		return nil, fmt.Errorf("%w: empty tree name", errkind.ErrInvalidArgument)
	}
	buf, err := b.Resolve(pixmap.BiLevel)
	if err != nil {
		return nil, err
	}
	labels, comps := LabelComponents(buf.Bitmap())

	if n.tree(tree) == nil {
		n.trees = append(n.trees, &childTree{name: tree})
	}
	for _, c := range comps {
		box := c.Box.Translate(n.box.Left, n.box.Top)
		if _, err := b.insert(tree, -1, box, strconv.Itoa(c.Label), true); err != nil {
			return nil, err
		}
	}
	return labels, nil
}
