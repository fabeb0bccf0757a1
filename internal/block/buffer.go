package block

import (
	"fmt"
	"math"

	"github.com/ivlev/blocktree/internal/errkind"
	"github.com/ivlev/blocktree/internal/gradient"
	"github.com/ivlev/blocktree/internal/pixmap"
)

// gradientMargin is the extra border, in pixels, computed around a block
// whose gradient is derived from the topmost color buffer. It keeps kernel
// border effects out of the cropped result.
const gradientMargin = 10

// GradientParams are the derivation parameters of a gradient buffer.
type GradientParams struct {
	// Sigma is the Gaussian scale. Zero asks for an estimate from the stroke
	// width of the page.
	Sigma float64
	// DiffusionIterations bounds the smoothing passes; zero disables them.
	DiffusionIterations int
	// MaxDivergence stops diffusion once no pixel moves more than this.
	MaxDivergence float64
}

// Resolve returns the buffer of modality m for b. On a cache miss the buffer
// is derived, in order, from the source image when it has modality m, from
// the parent's buffer of modality m, from another buffer already cached on b,
// or from a conversion of the source. The result is cached on b and, through
// the parent step, on its ancestors: Resolve mutates the hierarchy.
//
// Resolve fails with errkind.ErrNotFound when no rule applies, and with the
// errors of pixmap.Open when the lazily opened source cannot be decoded.
// Gradient requests behave as ResolveGradient with zero parameters.
func (b Block) Resolve(m pixmap.Modality) (pixmap.Buffer, error) {
	n, err := b.mustNode()
	if err != nil {
		return pixmap.Buffer{}, err
	}
	if !m.Valid() {
		return pixmap.Buffer{}, fmt.Errorf("%w: unknown modality %v", errkind.ErrDomain, m)
	}
	if m == pixmap.Gradient {
		if buf := n.cache[m]; !buf.IsZero() {
			return buf, nil
		}
		f, err := b.ResolveGradient(GradientParams{})
		if err != nil {
			return pixmap.Buffer{}, err
		}
		return pixmap.FromGradient(f), nil
	}
	return b.doc.resolve(b.id, m)
}

// TryResolve is the best-effort form of Resolve: failures are logged as
// warnings and reported through ok.
func (b Block) TryResolve(m pixmap.Modality) (buf pixmap.Buffer, ok bool) {
	buf, err := b.Resolve(m)
	if err != nil {
		if b.doc != nil {
			b.doc.log.Warn("block buffer unavailable", "block", b.Name(), "modality", m.String(), "err", err)
		}
		return pixmap.Buffer{}, false
	}
	return buf, true
}

// Cached returns the buffer of modality m currently held by b without
// deriving anything.
func (b Block) Cached(m pixmap.Modality) (pixmap.Buffer, bool) {
	n := b.node()
	if n == nil || !m.Valid() {
		return pixmap.Buffer{}, false
	}
	buf := n.cache[m]
	return buf, !buf.IsZero()
}

func (d *document) resolve(id ID, m pixmap.Modality) (pixmap.Buffer, error) {
	n := d.nodes[id]
	if buf := n.cache[m]; !buf.IsZero() {
		return buf, nil
	}
	src, err := d.source()
	if err != nil {
		return pixmap.Buffer{}, err
	}
	if src.Modality() == m {
		buf, err := src.Crop(n.box.Image())
		if err != nil {
			return pixmap.Buffer{}, err
		}
		n.cache[m] = buf
		return buf, nil
	}

	// Climb until an ancestor already holds m, then resolve downwards. A
	// level that cannot crop from above tries its own caches and then the
	// source.
	path := []ID{id}
	for p := n.parent; p != noID; p = d.nodes[p].parent {
		path = append(path, p)
		if !d.nodes[p].cache[m].IsZero() {
			break
		}
	}

	var (
		have    pixmap.Buffer
		haveBox Rect
	)
	for i := len(path) - 1; i >= 0; i-- {
		cur := d.nodes[path[i]]
		if buf := cur.cache[m]; !buf.IsZero() {
			have, haveBox = buf, cur.box
			continue
		}
		if !have.IsZero() {
			buf, err := have.Crop(cur.box.Translate(-haveBox.Left, -haveBox.Top).Image())
			if err != nil {
				return pixmap.Buffer{}, err
			}
			cur.cache[m] = buf
			have, haveBox = buf, cur.box
			continue
		}
		if buf, ok := convertCached(cur, m); ok {
			cur.cache[m] = buf
			have, haveBox = buf, cur.box
			continue
		}
		crop, err := src.Crop(cur.box.Image())
		if err != nil {
			return pixmap.Buffer{}, err
		}
		if buf, ok := pixmap.Convert(crop, m); ok {
			cur.cache[m] = buf
			have, haveBox = buf, cur.box
		}
	}
	if have.IsZero() {
		return pixmap.Buffer{}, fmt.Errorf("%w: no way to derive a %s buffer for block %q from a %s source",
			errkind.ErrNotFound, m, n.name, src.Modality())
	}
	return n.cache[m], nil
}

// convertCached derives m from another modality already cached on n.
func convertCached(n *node, m pixmap.Modality) (pixmap.Buffer, bool) {
	var order []pixmap.Modality
	switch m {
	case pixmap.Gray:
		order = []pixmap.Modality{pixmap.Color, pixmap.BiLevel}
	case pixmap.BiLevel:
		order = []pixmap.Modality{pixmap.Gray, pixmap.Color}
	case pixmap.Color:
		order = []pixmap.Modality{pixmap.Gray, pixmap.BiLevel}
	}
	for _, from := range order {
		if buf := n.cache[from]; !buf.IsZero() {
			return pixmap.Convert(buf, m)
		}
	}
	return pixmap.Buffer{}, false
}

// ResolveGradient returns the gradient field of b computed with p. A gradient
// source image is authoritative and cropped as is, and so is a field set with
// Substitute. Otherwise the field is
// cropped from the nearest ancestor holding a gradient computed with the same
// parameters, or recomputed from the topmost color buffer over the block box
// plus a margin.
func (b Block) ResolveGradient(p GradientParams) (*gradient.Field, error) {
	n, err := b.mustNode()
	if err != nil {
		return nil, err
	}
	d := b.doc
	src, err := d.source()
	if err != nil {
		return nil, err
	}
	if src.Modality() == pixmap.Gradient {
		if buf := n.cache[pixmap.Gradient]; !buf.IsZero() {
			return buf.Gradient(), nil
		}
		buf, err := src.Crop(n.box.Image())
		if err != nil {
			return nil, err
		}
		n.cache[pixmap.Gradient] = buf
		n.gradKnown = false
		return buf.Gradient(), nil
	}

	// A substituted field stands for the block whatever p asks for.
	if buf := n.cache[pixmap.Gradient]; !buf.IsZero() && !n.gradKnown {
		return buf.Gradient(), nil
	}
	if p.Sigma <= 0 {
		if p.Sigma, err = d.estimateSigma(); err != nil {
			return nil, err
		}
	}
	if buf := n.cache[pixmap.Gradient]; !buf.IsZero() && n.gradKnown && n.grad == p {
		return buf.Gradient(), nil
	}

	if n.parent == noID {
		color, err := d.resolve(b.id, pixmap.Color)
		if err != nil {
			return nil, err
		}
		f, err := d.computeGradient(color, p)
		if err != nil {
			return nil, err
		}
		d.storeGradient(n, f, p)
		return f, nil
	}

	for aid := n.parent; aid != noID; aid = d.nodes[aid].parent {
		a := d.nodes[aid]
		if a.cache[pixmap.Gradient].IsZero() || !a.gradKnown || a.grad != p {
			continue
		}
		buf, err := a.cache[pixmap.Gradient].Crop(n.box.Translate(-a.box.Left, -a.box.Top).Image())
		if err != nil {
			return nil, err
		}
		d.storeGradient(n, buf.Gradient(), p)
		return buf.Gradient(), nil
	}

	root := d.nodes[d.root]
	color, err := d.resolve(d.root, pixmap.Color)
	if err != nil {
		return nil, err
	}
	area := n.box.Inflate(gradientMargin).Intersect(root.box)
	crop, err := color.Crop(area.Image())
	if err != nil {
		return nil, err
	}
	wide, err := d.computeGradient(crop, p)
	if err != nil {
		return nil, err
	}
	f, err := wide.Crop(n.box.Translate(-area.Left, -area.Top).Image())
	if err != nil {
		return nil, err
	}
	d.storeGradient(n, f, p)
	return f, nil
}

func (d *document) computeGradient(color pixmap.Buffer, p GradientParams) (*gradient.Field, error) {
	f, err := gradient.NewGaussianGradient(color.Color(), d.projection, p.Sigma)
	if err != nil {
		return nil, err
	}
	if p.DiffusionIterations > 0 {
		f.Diffuse(p.DiffusionIterations, p.MaxDivergence)
	}
	return f, nil
}

func (d *document) storeGradient(n *node, f *gradient.Field, p GradientParams) {
	n.cache[pixmap.Gradient] = pixmap.FromGradient(f)
	n.grad = p
	n.gradKnown = true
}

// estimateSigma derives the gradient scale from the stroke width of the
// whole page, so that every block of a hierarchy agrees on it.
func (d *document) estimateSigma() (float64, error) {
	bits, err := d.resolve(d.root, pixmap.BiLevel)
	if err != nil {
		return 0, err
	}
	sigma := pixmap.StrokeWidth(bits.Bitmap()) / 2
	if sigma < 1 || math.IsNaN(sigma) {
		sigma = 1
	}
	return sigma, nil
}

// Substitute replaces the cached buffer of modality m. buf must have the
// size of the block box. A zero buf flushes the modality.
func (b Block) Substitute(m pixmap.Modality, buf pixmap.Buffer) error {
	n, err := b.mustNode()
	if err != nil {
		return err
	}
	if !m.Valid() {
		return fmt.Errorf("%w: unknown modality %v", errkind.ErrDomain, m)
	}
	if buf.IsZero() {
		n.cache[m] = pixmap.Buffer{}
		if m == pixmap.Gradient {
			n.gradKnown = false
		}
		return nil
	}
	if buf.Modality() != m {
		return fmt.Errorf("%w: %s buffer substituted for %s", errkind.ErrInvalidArgument, buf.Modality(), m)
	}
	if buf.Size() != n.box.Size() {
		return fmt.Errorf("%w: buffer %v does not fit block %v", errkind.ErrDimension, buf.Size(), n.box.Size())
	}
	n.cache[m] = buf
	if m == pixmap.Gradient {
		n.gradKnown = false
	}
	return nil
}

// Flush drops the cached buffer of modality m, on every descendant too when
// recursive is set.
func (b Block) Flush(m pixmap.Modality, recursive bool) {
	if !m.Valid() {
		return
	}
	b.walk(recursive, func(n *node) {
		n.cache[m] = pixmap.Buffer{}
		if m == pixmap.Gradient {
			n.gradKnown = false
		}
	})
}

// FlushAll drops every cached buffer, on every descendant too when recursive
// is set.
func (b Block) FlushAll(recursive bool) {
	b.walk(recursive, (*node).flush)
}

// walk visits b, and its descendants depth-first when deep is set.
func (b Block) walk(deep bool, fn func(*node)) {
	if b.node() == nil {
		return
	}
	stack := []ID{b.id}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := b.doc.nodes[id]
		fn(n)
		if !deep {
			continue
		}
		for i := len(n.trees) - 1; i >= 0; i-- {
			c := n.trees[i].children
			for j := len(c) - 1; j >= 0; j-- {
				stack = append(stack, c[j])
			}
		}
	}
}
