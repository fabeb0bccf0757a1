package block

import (
	"fmt"
	"strconv"

	"github.com/ivlev/blocktree/internal/errkind"
)

// MergeChildren unions overlapping children of tree. Two children overlap
// when their intersection covers at least threshold times the area of one of
// them; the smaller one is then absorbed by the larger, ties going to the
// earlier child. Absorbed children hand their own children to the survivor
// and, when labels is not nil, their label is repainted with the survivor's.
//
// Merged boxes may overlap further children, so callers loop until
// MergeChildren returns false (see MergeChildrenFixpoint).
func (b Block) MergeChildren(tree string, threshold float64, labels *LabelMap) (bool, error) {
	t, err := b.lookupTree(tree)
	if err != nil {
		return false, err
	}
	if threshold < 0 {
		return false, fmt.Errorf("%w: negative overlap threshold %v", errkind.ErrDomain, threshold)
	}
	nodes := b.doc.nodes
	ids := t.children

	// redirect[i] = j: child i goes into child j
	redirect := make(map[int]int)
	for i := 0; i < len(ids); i++ {
		bi := nodes[ids[i]].box
		for j := i + 1; j < len(ids); j++ {
			bj := nodes[ids[j]].box
			inter := bi.Intersect(bj).Area()
			if inter == 0 {
				continue
			}
			ai, aj := bi.Area(), bj.Area()
			if float64(inter) < threshold*float64(ai) && float64(inter) < threshold*float64(aj) {
				continue
			}
			src, dst := j, i
			if ai < aj {
				src, dst = i, j
			}
			if _, taken := redirect[src]; !taken {
				redirect[src] = dst
			}
		}
	}
	if len(redirect) == 0 {
		return false, nil
	}

	final := func(i int) int {
		for {
			j, ok := redirect[i]
			if !ok {
				return i
			}
			i = j
		}
	}

	for i := 0; i < len(ids); i++ {
		if _, ok := redirect[i]; !ok {
			continue
		}
		dst := final(i)
		from, into := nodes[ids[i]], nodes[ids[dst]]
		into.box = into.box.Union(from.box)
		into.flush()
		b.doc.adopt(ids[dst], ids[i])
		if labels != nil {
			repaint(labels, from.name, into.name)
		}
	}

	kept := ids[:0]
	for i, id := range ids {
		if _, ok := redirect[i]; ok {
			b.doc.drop(id)
			continue
		}
		kept = append(kept, id)
	}
	t.children = kept
	return true, nil
}

// MergeChildrenFixpoint calls MergeChildren until nothing merges and returns
// the number of rounds that merged something.
func (b Block) MergeChildrenFixpoint(tree string, threshold float64, labels *LabelMap) (int, error) {
	rounds := 0
	for {
		merged, err := b.MergeChildren(tree, threshold, labels)
		if err != nil {
			return rounds, err
		}
		if !merged {
			return rounds, nil
		}
		rounds++
	}
}

// MergeSiblings merges child i2 of tree into child i1: the box of i1 becomes
// the union of both, the children of i2 move under i1, and i2 is removed.
// When labels is not nil, pixels labelled with the name of i2 are repainted
// with the name of i1.
func (b Block) MergeSiblings(tree string, i1, i2 int, labels *LabelMap) error {
	t, err := b.lookupTree(tree)
	if err != nil {
		return err
	}
	n := len(t.children)
	if i1 < 0 || i1 >= n || i2 < 0 || i2 >= n {
		return fmt.Errorf("%w: indices %d, %d in tree %q of size %d", errkind.ErrDomain, i1, i2, tree, n)
	}
	if i1 == i2 {
		return fmt.Errorf("%w: cannot merge child %d with itself", errkind.ErrDomain, i1)
	}
	keep, gone := t.children[i1], t.children[i2]
	into, from := b.doc.nodes[keep], b.doc.nodes[gone]

	into.box = into.box.Union(from.box)
	into.flush()
	b.doc.adopt(keep, gone)
	if labels != nil {
		repaint(labels, from.name, into.name)
	}
	b.doc.drop(gone)
	t.children = append(t.children[:i2], t.children[i2+1:]...)
	return nil
}

// repaint relabels when both block names are numeric labels.
func repaint(labels *LabelMap, from, to string) {
	lf, err := strconv.Atoi(from)
	if err != nil {
		return
	}
	lt, err := strconv.Atoi(to)
	if err != nil || lf == lt {
		return
	}
	labels.Relabel(lf, lt)
}
