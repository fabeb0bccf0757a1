package analyzer

import (
	"fmt"
	"log/slog"

	"github.com/ivlev/blocktree/internal/block"
	"github.com/ivlev/blocktree/internal/config"
	"github.com/ivlev/blocktree/internal/errkind"
)

// ComponentTree holds the connected components of a block.
const ComponentTree = "cc"

// ComponentDetector groups the ink components of a page into zones:
// components are labelled, filtered, grown by Dilation and merged until no
// two zones overlap more than MergeThreshold. Each zone keeps its components
// in its own ComponentTree.
type ComponentDetector struct {
	Tree           string
	Filters        config.Filters
	MergeThreshold float64
	Dilation       int
	Sort           block.SortDirection
	Log            *slog.Logger
}

func NewComponentDetector(cfg *config.Config) (*ComponentDetector, error) {
	dir, err := block.ParseSortDirection(cfg.SortBy)
	if err != nil {
		return nil, err
	}
	if cfg.ZoneTree == "" || cfg.ZoneTree == ComponentTree {
		return nil, fmt.Errorf("%w: zone tree %q", errkind.ErrInvalidArgument, cfg.ZoneTree)
	}
	return &ComponentDetector{
		Tree:           cfg.ZoneTree,
		Filters:        cfg.Filters,
		MergeThreshold: cfg.Merge.Threshold,
		Dilation:       cfg.Merge.Dilation,
		Sort:           dir,
		Log:            slog.Default(),
	}, nil
}

func (d *ComponentDetector) Detect(page block.Block) ([]Zone, error) {
	labels, err := page.ExtractComponents(ComponentTree)
	if err != nil {
		return nil, err
	}
	found := page.ChildCount(ComponentTree)
	removed, err := d.filter(page)
	if err != nil {
		return nil, err
	}

	for _, c := range page.Children(ComponentTree) {
		if _, err := page.AddChildAbsoluteNamed(d.Tree, c.AbsoluteBBox().Inflate(d.Dilation), c.Name()); err != nil {
			return nil, err
		}
	}
	if !page.HasTree(d.Tree) {
		d.Log.Debug("no components left", "page", page.Name(), "found", found, "filtered", removed)
		return nil, nil
	}
	rounds, err := page.MergeChildrenFixpoint(d.Tree, d.MergeThreshold, labels)
	if err != nil {
		return nil, err
	}
	if err := d.attach(page); err != nil {
		return nil, err
	}
	if err := page.SortChildren(d.Tree, d.Sort); err != nil {
		return nil, err
	}

	zones := zonesOf(page, d.Tree, 0.9)
	d.Log.Debug("components grouped",
		"page", page.Name(), "found", found, "filtered", removed, "rounds", rounds, "zones", len(zones))
	return zones, nil
}

func (d *ComponentDetector) filter(page block.Block) (int, error) {
	f := d.Filters
	total := 0
	steps := []func() (int, error){
		func() (int, error) { return page.FilterBorder(ComponentTree, f.BorderWidth) },
		func() (int, error) { return page.FilterMinAnd(ComponentTree, f.MinWidth, f.MinHeight) },
		func() (int, error) {
			if f.MaxWidth <= 0 || f.MaxHeight <= 0 {
				return 0, nil
			}
			return page.FilterMaxOr(ComponentTree, f.MaxWidth, f.MaxHeight)
		},
		func() (int, error) {
			if f.WidthRatio <= 0 {
				return 0, nil
			}
			return page.FilterWidthRatio(ComponentTree, f.WidthRatio)
		},
	}
	for _, step := range steps {
		n, err := step()
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// attach moves every component under the first zone covering it and shrinks
// the zones from their dilated boxes to the union of their components.
func (d *ComponentDetector) attach(page block.Block) error {
	zones := page.Children(d.Tree)
	tight := make([]block.Rect, len(zones))
	for i := range tight {
		tight[i] = block.NoRect
	}
	owner := make(map[block.ID]int)
	for _, c := range page.Children(ComponentTree) {
		box := c.AbsoluteBBox()
		for i, z := range zones {
			if z.AbsoluteBBox().Contains(box) {
				tight[i] = tight[i].Union(box)
				owner[c.ID()] = i
				break
			}
		}
	}

	for i, z := range zones {
		if !tight[i].IsValid() {
			if err := page.RemoveChildBlock(d.Tree, z); err != nil {
				return err
			}
			continue
		}
		if tight[i] != z.AbsoluteBBox() {
			if err := z.SetAbsoluteBBox(tight[i]); err != nil {
				return err
			}
		}
	}
	for _, c := range page.Children(ComponentTree) {
		i, ok := owner[c.ID()]
		if !ok {
			continue
		}
		if _, err := zones[i].AddChildAbsoluteNamed(ComponentTree, c.AbsoluteBBox(), c.Name()); err != nil {
			return err
		}
	}
	_, err := page.RemoveChildren(ComponentTree, func(block.Block) bool { return true })
	return err
}
