package render

import (
	"strconv"

	"github.com/ehr/medletter/internal/letter/compose"
)

// block is an unbreakable strip of the content column. Ops are relative to
// the block's top-left corner.
type block struct {
	height float64
	ops    []Op
	// keepWithNext glues the block to the one after it, as for a table
	// header and its first row.
	keepWithNext bool
	// header is re-emitted at the top of a page when the group breaks
	// before this block.
	header *block
}

// group is the unit of pagination. A group that fits on one page is never
// split.
type group struct {
	kind   string
	blocks []*block
}

func (g group) height() float64 {
	var h float64
	for _, b := range g.blocks {
		h += b.height
	}
	return h
}

func spacer(h float64) *block { return &block{height: h} }

// stack joins blocks vertically into a single unbreakable block.
func stack(blocks ...*block) *block {
	out := &block{}
	for _, b := range blocks {
		if b == nil {
			continue
		}
		for _, op := range b.ops {
			out.ops = append(out.ops, op.translate(0, out.height))
		}
		out.height += b.height
	}
	return out
}

// shift moves every op of b right by dx.
func shift(b *block, dx float64) *block {
	out := &block{height: b.height, keepWithNext: b.keepWithNext, header: b.header}
	for _, op := range b.ops {
		out.ops = append(out.ops, op.translate(dx, 0))
	}
	return out
}

// boxed pads inner and draws a rectangle behind it.
func boxed(inner *block, width, pad float64, fill, stroke *Color) *block {
	out := &block{height: inner.height + 2*pad}
	out.ops = append(out.ops, RectOp{W: width, H: out.height, Fill: fill, Stroke: stroke, LineWidth: 0.3})
	for _, op := range inner.ops {
		out.ops = append(out.ops, op.translate(pad, pad))
	}
	return out
}

// paginator places groups on pages below the page header.
type paginator struct {
	style   RenderStyle
	top     float64
	bottom  float64
	left    float64
	pages   []Page
	breaks  [][]string
	y       float64
	started bool
}

func newPaginator(style RenderStyle, headerHeight float64) *paginator {
	return &paginator{
		style:  style,
		top:    style.MarginTop + headerHeight,
		bottom: style.PageHeight - style.MarginBottom - style.FooterGap,
		left:   style.MarginSide,
	}
}

func (p *paginator) newPage() {
	p.pages = append(p.pages, Page{Number: len(p.pages) + 1})
	p.breaks = append(p.breaks, nil)
	p.y = p.top
	p.started = true
}

func (p *paginator) atTop() bool { return p.y == p.top }

func (p *paginator) remaining() float64 { return p.bottom - p.y }

func (p *paginator) capacity() float64 { return p.bottom - p.top }

func (p *paginator) place(b *block) {
	page := &p.pages[len(p.pages)-1]
	for _, op := range b.ops {
		page.Ops = append(page.Ops, op.translate(p.left, p.y))
	}
	p.y += b.height
}

func (p *paginator) mark(kind string) {
	i := len(p.breaks) - 1
	p.breaks[i] = append(p.breaks[i], kind)
}

// add places g. Groups that fit move whole to a fresh page; taller groups
// break between blocks, never between a block and the one it keeps with,
// and repeat table headers after each break. A block taller than a page
// continues on the next one at a line boundary.
func (p *paginator) add(g group) {
	if !p.started {
		p.newPage()
	}
	gap := p.style.SectionGap
	if p.atTop() {
		gap = 0
	}
	h := g.height()
	switch {
	case gap+h <= p.remaining():
		p.y += gap
	case h <= p.capacity():
		p.newPage()
	default:
		if gap+p.need(g.blocks, 0) > p.remaining() && g.blocks[0].height <= p.capacity() {
			p.newPage()
		} else {
			p.y += gap
		}
	}
	p.mark(g.kind)

	for i, b := range g.blocks {
		if !p.atTop() && p.need(g.blocks, i) > p.remaining() && b.height <= p.capacity() {
			p.breakPage(g.kind, b)
		}
		p.placeSplit(g.kind, b)
	}
}

// leadHeight is the height of blocks[i] plus every block it keeps with.
func (p *paginator) leadHeight(blocks []*block, i int) float64 {
	h := blocks[i].height
	for j := i; j < len(blocks)-1 && blocks[j].keepWithNext; j++ {
		h += blocks[j+1].height
	}
	return h
}

// need is the room blocks[i] asks for before it is placed. A keep chain
// taller than a page cannot be honored and only the block itself counts.
func (p *paginator) need(blocks []*block, i int) float64 {
	if h := p.leadHeight(blocks, i); h <= p.capacity() {
		return h
	}
	return blocks[i].height
}

func (p *paginator) breakPage(kind string, b *block) {
	p.newPage()
	p.mark(kind)
	if b.header != nil && b.header != b && b.header.height < p.capacity()/2 {
		p.place(b.header)
	}
}

// placeSplit places b, cutting it across pages when it does not fit the
// room left.
func (p *paginator) placeSplit(kind string, b *block) {
	fresh := p.atTop()
	for b.height > p.remaining()+splitEps {
		if y := p.style.cutPoint(b, p.remaining(), fresh); y > 0 {
			var head *block
			head, b = p.style.splitAt(b, y)
			p.place(head)
		}
		p.breakPage(kind, b)
		fresh = true
	}
	p.place(b)
}

// finish draws the page header and the "Pagina X din Y" footer on every
// page.
func (p *paginator) finish(head *block, b *builder) {
	if !p.started {
		p.newPage()
	}
	total := strconv.Itoa(len(p.pages))
	font := Font{Size: p.style.SmallSize}
	for i := range p.pages {
		page := &p.pages[i]
		ops := make([]Op, 0, len(head.ops)+len(page.Ops)+1)
		for _, op := range head.ops {
			ops = append(ops, op.translate(p.left, p.style.MarginTop))
		}
		text := "Pagina " + strconv.Itoa(page.Number) + " din " + total
		w := b.m.Width(text, font)
		ops = append(ops, TextOp{
			X:     (p.style.PageWidth - w) / 2,
			Y:     p.style.PageHeight - p.style.MarginBottom + p.style.ascent(font.Size),
			Text:  text,
			Font:  font,
			Color: b.c.medium,
		})
		page.Ops = append(ops, page.Ops...)
	}
}

// layoutDocument runs the whole layout with m.
func layoutDocument(style RenderStyle, m Measurer, doc compose.Document) *Layout {
	b := newBuilder(style, m)
	head := b.pageHeader(doc.Header)
	p := newPaginator(style, head.height)
	for _, s := range doc.Sections {
		p.add(b.section(s))
	}
	p.finish(head, b)
	return &Layout{Style: style, Pages: p.pages, Breaks: p.breaks}
}
