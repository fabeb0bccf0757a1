package block

import (
	"errors"
	"testing"

	"github.com/ivlev/blocktree/internal/errkind"
)

func boxesOf(b Block, tree string) []Rect {
	var out []Rect
	for _, c := range b.Children(tree) {
		out = append(out, c.AbsoluteBBox())
	}
	return out
}

func equalBoxes(a, b []Rect) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestAddChildErrors(t *testing.T) {
	page := newPage(t, 10, 10)
	tests := []struct {
		name string
		add  func() (Block, error)
		want error
	}{
		{"empty tree", func() (Block, error) { return page.AddChildAbsolute("", NewRect(0, 0, 1, 1)) }, errkind.ErrInvalidArgument},
		{"uninitialized clip", func() (Block, error) { return page.AddChildAbsolute("line", NoRect) }, errkind.ErrInvalidArgument},
		{"empty name", func() (Block, error) { return page.AddChildAbsoluteNamed("line", NewRect(0, 0, 1, 1), "") }, errkind.ErrInvalidArgument},
		{"disjoint clip", func() (Block, error) { return page.AddChildAbsolute("line", NewRect(20, 20, 25, 25)) }, errkind.ErrDomain},
		{"negative position", func() (Block, error) { return page.AddChildAbsoluteAt("line", -1, NewRect(0, 0, 1, 1), "") }, errkind.ErrDomain},
		{"zero parent", func() (Block, error) { return Block{}.AddChildAbsolute("line", NewRect(0, 0, 1, 1)) }, errkind.ErrInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.add(); !errors.Is(err, tt.want) {
				t.Fatalf("Expected %v, got %v", tt.want, err)
			}
		})
	}
	if page.HasTree("line") {
		t.Error("Failed inserts must not create trees")
	}
}

func TestAddChildClipsAndOrders(t *testing.T) {
	page := newPage(t, 10, 10)
	a := mustAdd(t, page, "line", NewRect(-3, -3, 4, 4))
	if a.AbsoluteBBox() != NewRect(0, 0, 4, 4) {
		t.Errorf("Expected clip to the page, got %v", a.AbsoluteBBox())
	}
	mustAdd(t, page, "line", NewRect(5, 5, 9, 9))
	c, err := page.AddChildAbsoluteAt("line", 1, NewRect(2, 2, 3, 3), "mid")
	if err != nil {
		t.Fatalf("AddChildAbsoluteAt failed: %v", err)
	}
	if _, err := page.AddChildAbsoluteAt("line", 99, NewRect(1, 1, 1, 1), ""); err != nil {
		t.Fatalf("AddChildAbsoluteAt past the end failed: %v", err)
	}

	want := []Rect{NewRect(0, 0, 4, 4), NewRect(2, 2, 3, 3), NewRect(5, 5, 9, 9), NewRect(1, 1, 1, 1)}
	if got := boxesOf(page, "line"); !equalBoxes(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
	if got, _ := page.Child("line", 1); got != c || got.Name() != "mid" {
		t.Error("Expected the named child at position 1")
	}
	if _, err := page.Child("line", 4); !errors.Is(err, errkind.ErrDomain) {
		t.Errorf("Expected ErrDomain, got %v", err)
	}
	if _, err := page.Child("word", 0); !errors.Is(err, errkind.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if names := page.TreeNames(); len(names) != 1 || names[0] != "line" {
		t.Errorf("Unexpected tree names %v", names)
	}
	checkContainment(t, page)
}

func TestRemoveChild(t *testing.T) {
	page := newPage(t, 10, 10)
	a := mustAdd(t, page, "line", NewRect(0, 0, 4, 4))
	b, _ := page.AddChildAbsoluteNamed("line", NewRect(5, 5, 9, 9), "b")
	word := mustAdd(t, b, "word", NewRect(6, 6, 7, 7))
	c := mustAdd(t, page, "line", NewRect(0, 5, 4, 9))

	if err := page.RemoveChildNamed("line", "b"); err != nil {
		t.Fatalf("RemoveChildNamed failed: %v", err)
	}
	if b.Valid() || word.Valid() {
		t.Error("Expected the whole subtree to be removed")
	}
	if err := page.RemoveChildNamed("line", "b"); !errors.Is(err, errkind.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if err := page.RemoveChildBlock("line", c); err != nil {
		t.Fatalf("RemoveChildBlock failed: %v", err)
	}
	if err := page.RemoveChildBlock("line", c); !errors.Is(err, errkind.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if err := page.RemoveChild("line", 3); !errors.Is(err, errkind.ErrDomain) {
		t.Errorf("Expected ErrDomain, got %v", err)
	}
	if err := page.RemoveChild("line", 0); err != nil {
		t.Fatalf("RemoveChild failed: %v", err)
	}
	if a.Valid() {
		t.Error("Expected a to be removed")
	}
	if !page.HasTree("line") || page.ChildCount("line") != 0 {
		t.Error("Explicit removal keeps the emptied tree")
	}
}

func TestRemoveChildrenSeesInitialState(t *testing.T) {
	page := newPage(t, 30, 10)
	for i := 0; i < 5; i++ {
		mustAdd(t, page, "cc", NewRect(i*6, 0, i*6+4, 9))
	}
	calls := 0
	n, err := page.RemoveChildren("cc", func(c Block) bool {
		calls++
		return c.AbsoluteBBox().Left%12 == 0
	}, func(c Block) bool {
		return page.ChildCount("cc") != 5
	})
	if err != nil {
		t.Fatalf("RemoveChildren failed: %v", err)
	}
	if n != 3 || calls != 5 {
		t.Errorf("Expected 3 removals after 5 calls, got %d after %d", n, calls)
	}
	want := []Rect{NewRect(6, 0, 10, 9), NewRect(18, 0, 22, 9)}
	if got := boxesOf(page, "cc"); !equalBoxes(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestFilters(t *testing.T) {
	setup := func(t *testing.T) Block {
		page := newPage(t, 100, 100)
		mustAdd(t, page, "cc", NewRect(0, 0, 1, 1))     // 2x2 on the border
		mustAdd(t, page, "cc", NewRect(40, 40, 41, 59)) // 2x20
		mustAdd(t, page, "cc", NewRect(40, 70, 79, 71)) // 40x2
		mustAdd(t, page, "cc", NewRect(20, 20, 49, 49)) // 30x30
		return page
	}

	tests := []struct {
		name   string
		filter func(Block) (int, error)
		kept   []Rect
	}{
		{"min and", func(b Block) (int, error) { return b.FilterMinAnd("cc", 5, 5) },
			[]Rect{NewRect(40, 40, 41, 59), NewRect(40, 70, 79, 71), NewRect(20, 20, 49, 49)}},
		{"min or", func(b Block) (int, error) { return b.FilterMinOr("cc", 5, 5) },
			[]Rect{NewRect(20, 20, 49, 49)}},
		{"max and", func(b Block) (int, error) { return b.FilterMaxAnd("cc", 10, 10) },
			[]Rect{NewRect(0, 0, 1, 1), NewRect(40, 40, 41, 59), NewRect(40, 70, 79, 71)}},
		{"max or", func(b Block) (int, error) { return b.FilterMaxOr("cc", 10, 10) },
			[]Rect{NewRect(0, 0, 1, 1)}},
		{"border", func(b Block) (int, error) { return b.FilterBorder("cc", 5) },
			[]Rect{NewRect(40, 40, 41, 59), NewRect(40, 70, 79, 71), NewRect(20, 20, 49, 49)}},
		{"width ratio", func(b Block) (int, error) { return b.FilterWidthRatio("cc", 4) },
			[]Rect{NewRect(0, 0, 1, 1), NewRect(40, 40, 41, 59), NewRect(20, 20, 49, 49)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := setup(t)
			n, err := tt.filter(page)
			if err != nil {
				t.Fatalf("Filter failed: %v", err)
			}
			if n != 4-len(tt.kept) {
				t.Errorf("Expected %d removals, got %d", 4-len(tt.kept), n)
			}
			if got := boxesOf(page, "cc"); !equalBoxes(got, tt.kept) {
				t.Errorf("Expected %v, got %v", tt.kept, got)
			}

			// a second pass changes nothing
			n, err = tt.filter(page)
			if err != nil || n != 0 {
				t.Errorf("Expected an idempotent filter, got %d removals (%v)", n, err)
			}
		})
	}
}

func TestFilterErrors(t *testing.T) {
	page := newPage(t, 10, 10)
	mustAdd(t, page, "cc", NewRect(0, 0, 1, 1))
	if _, err := page.FilterBorder("cc", -1); !errors.Is(err, errkind.ErrDomain) {
		t.Errorf("Expected ErrDomain, got %v", err)
	}
	if _, err := page.FilterWidthRatio("cc", 0); !errors.Is(err, errkind.ErrDomain) {
		t.Errorf("Expected ErrDomain, got %v", err)
	}
	if _, err := page.FilterMinAnd("none", 1, 1); !errors.Is(err, errkind.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestSortChildren(t *testing.T) {
	page := newPage(t, 100, 100)
	mustAdd(t, page, "cc", NewRect(50, 10, 60, 20))
	mustAdd(t, page, "cc", NewRect(10, 30, 20, 90))
	mustAdd(t, page, "cc", NewRect(30, 5, 70, 40))

	tests := []struct {
		dir  SortDirection
		want []int // original Left values in expected order
	}{
		{SortLeft, []int{10, 30, 50}},
		{SortRight, []int{30, 50, 10}},
		{SortTop, []int{30, 50, 10}},
		{SortBottom, []int{10, 30, 50}},
	}
	for _, tt := range tests {
		t.Run(tt.dir.String(), func(t *testing.T) {
			if err := page.SortChildren("cc", tt.dir); err != nil {
				t.Fatalf("SortChildren failed: %v", err)
			}
			for i, c := range page.Children("cc") {
				if c.AbsoluteBBox().Left != tt.want[i] {
					t.Errorf("Position %d: expected left %d, got %v", i, tt.want[i], c.AbsoluteBBox())
				}
			}
		})
	}
	if err := page.SortChildren("cc", SortDirection(7)); !errors.Is(err, errkind.ErrDomain) {
		t.Errorf("Expected ErrDomain, got %v", err)
	}
	if d, err := ParseSortDirection("bottom"); err != nil || d != SortBottom {
		t.Errorf("ParseSortDirection(bottom) = %v, %v", d, err)
	}
	if _, err := ParseSortDirection("diagonal"); !errors.Is(err, errkind.ErrDomain) {
		t.Errorf("Expected ErrDomain, got %v", err)
	}
}
