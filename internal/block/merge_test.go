package block

import (
	"errors"
	"testing"

	"github.com/ivlev/blocktree/internal/errkind"
	"github.com/ivlev/blocktree/internal/pixmap"
)

func TestMergeChildren(t *testing.T) {
	page := newPage(t, 30, 30)
	a := mustAdd(t, page, "cc", NewRect(0, 0, 9, 9))
	b := mustAdd(t, page, "cc", NewRect(5, 5, 14, 14))
	c := mustAdd(t, page, "cc", NewRect(20, 20, 25, 25))
	word := mustAdd(t, b, "word", NewRect(12, 12, 13, 13))

	merged, err := page.MergeChildren("cc", 0.2, nil)
	if err != nil {
		t.Fatalf("MergeChildren failed: %v", err)
	}
	if !merged {
		t.Fatal("Expected a merge")
	}
	if b.Valid() {
		t.Error("Expected the later child of an equal pair to be absorbed")
	}
	if a.AbsoluteBBox() != NewRect(0, 0, 14, 14) {
		t.Errorf("Expected the union (0,0,14,14), got %v", a.AbsoluteBBox())
	}
	if !c.Valid() || page.ChildCount("cc") != 2 {
		t.Error("Expected the distant child to survive")
	}
	if p, ok := word.Parent(); !ok || p != a {
		t.Error("Expected the survivor to adopt the absorbed children")
	}

	merged, err = page.MergeChildren("cc", 0.2, nil)
	if err != nil || merged {
		t.Errorf("Expected nothing left to merge, got %v (%v)", merged, err)
	}
	checkContainment(t, page)
}

func TestMergeChildrenThreshold(t *testing.T) {
	page := newPage(t, 30, 30)
	mustAdd(t, page, "cc", NewRect(0, 0, 9, 9))
	mustAdd(t, page, "cc", NewRect(5, 5, 14, 14))

	merged, err := page.MergeChildren("cc", 0.5, nil)
	if err != nil {
		t.Fatalf("MergeChildren failed: %v", err)
	}
	if merged {
		t.Error("A quarter overlap must not merge at threshold 0.5")
	}
	if _, err := page.MergeChildren("cc", -1, nil); !errors.Is(err, errkind.ErrDomain) {
		t.Errorf("Expected ErrDomain, got %v", err)
	}
}

func TestMergeChildrenSmallerIntoLarger(t *testing.T) {
	page := newPage(t, 30, 30)
	small := mustAdd(t, page, "cc", NewRect(8, 0, 11, 3))
	big := mustAdd(t, page, "cc", NewRect(0, 0, 9, 9))

	if _, err := page.MergeChildren("cc", 0.3, nil); err != nil {
		t.Fatalf("MergeChildren failed: %v", err)
	}
	if small.Valid() || !big.Valid() {
		t.Fatal("Expected the smaller child to be absorbed")
	}
	if big.AbsoluteBBox() != NewRect(0, 0, 11, 9) {
		t.Errorf("Unexpected union %v", big.AbsoluteBBox())
	}
}

func TestMergeChildrenFixpoint(t *testing.T) {
	page := newPage(t, 30, 30)
	// c joins a in the first round; the grown a then swallows b.
	mustAdd(t, page, "cc", NewRect(0, 0, 9, 9))
	mustAdd(t, page, "cc", NewRect(10, 5, 12, 9))
	mustAdd(t, page, "cc", NewRect(9, 0, 11, 1))

	rounds, err := page.MergeChildrenFixpoint("cc", 0.3, nil)
	if err != nil {
		t.Fatalf("MergeChildrenFixpoint failed: %v", err)
	}
	if rounds != 2 {
		t.Errorf("Expected 2 merging rounds, got %d", rounds)
	}
	want := []Rect{NewRect(0, 0, 12, 9)}
	if got := boxesOf(page, "cc"); !equalBoxes(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestMergeChildrenChains(t *testing.T) {
	page := newPage(t, 40, 20)
	mustAdd(t, page, "cc", NewRect(0, 0, 9, 9))
	mustAdd(t, page, "cc", NewRect(8, 0, 17, 9))
	mustAdd(t, page, "cc", NewRect(16, 0, 25, 9))

	merged, err := page.MergeChildren("cc", 0.2, nil)
	if err != nil || !merged {
		t.Fatalf("Expected a merge, got %v (%v)", merged, err)
	}
	want := []Rect{NewRect(0, 0, 25, 9)}
	if got := boxesOf(page, "cc"); !equalBoxes(got, want) {
		t.Errorf("Expected the chain to collapse into %v, got %v", want, got)
	}
}

func TestMergeRepaintsLabels(t *testing.T) {
	page := newPage(t, 10, 4)
	bm := bitmapOf(
		"##......##",
		"##......##",
		"..........",
		"..........",
	)
	if err := page.Substitute(pixmap.BiLevel, pixmap.FromBitmap(bm)); err != nil {
		t.Fatalf("Substitute failed: %v", err)
	}
	labels, err := page.ExtractComponents("cc")
	if err != nil {
		t.Fatalf("ExtractComponents failed: %v", err)
	}
	if labels.At(8, 0) != 2 {
		t.Fatalf("Expected the right blob to carry label 2, got %d", labels.At(8, 0))
	}

	if err := page.MergeSiblings("cc", 0, 1, labels); err != nil {
		t.Fatalf("MergeSiblings failed: %v", err)
	}
	if page.ChildCount("cc") != 1 {
		t.Fatalf("Expected one child, got %d", page.ChildCount("cc"))
	}
	only, _ := page.Child("cc", 0)
	if only.AbsoluteBBox() != NewRect(0, 0, 9, 1) || only.Name() != "1" {
		t.Errorf("Unexpected survivor %q %v", only.Name(), only.AbsoluteBBox())
	}
	for _, l := range labels.Labels {
		if l == 2 {
			t.Fatal("Expected label 2 to be repainted")
		}
	}
	if labels.At(9, 1) != 1 {
		t.Errorf("Expected label 1 at (9,1), got %d", labels.At(9, 1))
	}
}

func TestMergeSiblingsAdoptsDescendants(t *testing.T) {
	page := newPage(t, 20, 10)
	a := mustAdd(t, page, "cc", NewRect(0, 0, 4, 4))
	b := mustAdd(t, page, "cc", NewRect(10, 0, 14, 4))
	aw := mustAdd(t, a, "word", NewRect(1, 1, 2, 2))
	bw := mustAdd(t, b, "word", NewRect(11, 1, 12, 2))
	mark := mustAdd(t, b, "mark", NewRect(13, 3, 14, 4))
	glyph := mustAdd(t, bw, "glyph", NewRect(11, 1, 11, 1))

	if err := page.MergeSiblings("cc", 0, 1, nil); err != nil {
		t.Fatalf("MergeSiblings failed: %v", err)
	}
	if b.Valid() || page.ChildCount("cc") != 1 {
		t.Fatal("Expected the second sibling to be absorbed")
	}
	if a.AbsoluteBBox() != NewRect(0, 0, 14, 4) {
		t.Errorf("Expected the union (0,0,14,4), got %v", a.AbsoluteBBox())
	}

	for _, c := range []Block{bw, mark} {
		if !c.Valid() {
			t.Fatalf("Expected %q to survive the merge", c.Name())
		}
		if p, ok := c.Parent(); !ok || p != a {
			t.Errorf("Expected %q to move under the survivor", c.Name())
		}
	}
	if got := boxesOf(a, "word"); !equalBoxes(got, []Rect{aw.AbsoluteBBox(), NewRect(11, 1, 12, 2)}) {
		t.Errorf("Expected the adopted word after the own one, got %v", got)
	}
	if !a.HasTree("mark") || mark.AbsoluteBBox() != NewRect(13, 3, 14, 4) {
		t.Error("Expected the mark tree to move with its box unchanged")
	}
	if p, ok := glyph.Parent(); !ok || p != bw || !a.IsAncestorOf(glyph) {
		t.Error("Expected deeper descendants to keep their parent")
	}
	checkContainment(t, page)
}

func TestMergeSiblingsErrors(t *testing.T) {
	page := newPage(t, 10, 10)
	mustAdd(t, page, "cc", NewRect(0, 0, 1, 1))
	mustAdd(t, page, "cc", NewRect(5, 5, 6, 6))

	for _, idx := range [][2]int{{0, 0}, {0, 2}, {-1, 1}} {
		if err := page.MergeSiblings("cc", idx[0], idx[1], nil); !errors.Is(err, errkind.ErrDomain) {
			t.Errorf("MergeSiblings(%d, %d): expected ErrDomain, got %v", idx[0], idx[1], err)
		}
	}
	if err := page.MergeSiblings("none", 0, 1, nil); !errors.Is(err, errkind.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if page.ChildCount("cc") != 2 {
		t.Error("Failed merges must not change the tree")
	}
}
