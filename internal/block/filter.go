package block

import (
	"fmt"
	"sort"

	"github.com/ivlev/blocktree/internal/errkind"
)

// FilterMinAnd removes the children of tree narrower than minWidth and
// shorter than minHeight.
func (b Block) FilterMinAnd(tree string, minWidth, minHeight int) (int, error) {
	return b.RemoveChildren(tree, func(c Block) bool {
		r := c.AbsoluteBBox()
		return r.Width() < minWidth && r.Height() < minHeight
	})
}

// FilterMinOr removes the children of tree narrower than minWidth or shorter
// than minHeight.
func (b Block) FilterMinOr(tree string, minWidth, minHeight int) (int, error) {
	return b.RemoveChildren(tree, func(c Block) bool {
		r := c.AbsoluteBBox()
		return r.Width() < minWidth || r.Height() < minHeight
	})
}

// FilterMaxAnd removes the children of tree wider than maxWidth and taller
// than maxHeight.
func (b Block) FilterMaxAnd(tree string, maxWidth, maxHeight int) (int, error) {
	return b.RemoveChildren(tree, func(c Block) bool {
		r := c.AbsoluteBBox()
		return r.Width() > maxWidth && r.Height() > maxHeight
	})
}

// FilterMaxOr removes the children of tree wider than maxWidth or taller
// than maxHeight.
func (b Block) FilterMaxOr(tree string, maxWidth, maxHeight int) (int, error) {
	return b.RemoveChildren(tree, func(c Block) bool {
		r := c.AbsoluteBBox()
		return r.Width() > maxWidth || r.Height() > maxHeight
	})
}

// FilterBorder removes the children of tree lying entirely within margin
// pixels of the border of b.
func (b Block) FilterBorder(tree string, margin int) (int, error) {
	if margin < 0 {
		return 0, fmt.Errorf("%w: negative margin %d", errkind.ErrDomain, margin)
	}
	inner := b.AbsoluteBBox().Inflate(-margin)
	return b.RemoveChildren(tree, func(c Block) bool {
		return !c.AbsoluteBBox().Intersect(inner).IsValid()
	})
}

// FilterWidthRatio removes the children of tree whose width exceeds ratio
// times their height.
func (b Block) FilterWidthRatio(tree string, ratio float64) (int, error) {
	if ratio <= 0 {
		return 0, fmt.Errorf("%w: ratio %v must be positive", errkind.ErrDomain, ratio)
	}
	return b.RemoveChildren(tree, func(c Block) bool {
		r := c.AbsoluteBBox()
		return float64(r.Width()) > ratio*float64(r.Height())
	})
}

// SortDirection orders the children of a tree.
type SortDirection int

const (
	// SortLeft orders by left edge, ascending.
	SortLeft SortDirection = iota
	// SortRight orders by right edge, descending.
	SortRight
	// SortTop orders by top edge, ascending.
	SortTop
	// SortBottom orders by bottom edge, descending.
	SortBottom
)

func (s SortDirection) String() string {
	switch s {
	case SortLeft:
		return "left"
	case SortRight:
		return "right"
	case SortTop:
		return "top"
	case SortBottom:
		return "bottom"
	default:
		return fmt.Sprintf("SortDirection(%d)", int(s))
	}
}

// ParseSortDirection maps "left", "right", "top" and "bottom" to a direction.
func ParseSortDirection(s string) (SortDirection, error) {
	for _, d := range []SortDirection{SortLeft, SortRight, SortTop, SortBottom} {
		if d.String() == s {
			return d, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown sort direction %q", errkind.ErrDomain, s)
}

// SortChildren stably reorders the children of tree along dir.
func (b Block) SortChildren(tree string, dir SortDirection) error {
	var less func(a, c Rect) bool
	switch dir {
	case SortLeft:
		less = func(a, c Rect) bool { return a.Left < c.Left }
	case SortRight:
		less = func(a, c Rect) bool { return a.Right > c.Right }
	case SortTop:
		less = func(a, c Rect) bool { return a.Top < c.Top }
	case SortBottom:
		less = func(a, c Rect) bool { return a.Bottom > c.Bottom }
	default:
		return fmt.Errorf("%w: unknown sort direction %v", errkind.ErrDomain, dir)
	}
	t, err := b.lookupTree(tree)
	if err != nil {
		return err
	}
	nodes := b.doc.nodes
	sort.SliceStable(t.children, func(i, j int) bool {
		return less(nodes[t.children[i]].box, nodes[t.children[j]].box)
	})
	return nil
}
