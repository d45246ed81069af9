package render

import "github.com/ehr/medletter/internal/letter/compose"

// pageHeader is drawn at the top of every page: clinic identity on the
// left, the annex reference on the right, then the centered title.
func (b *builder) pageHeader(h compose.Header) *block {
	leftW := b.width * 0.62
	rightW := b.width - leftW

	left := stack(b.flowBlocks([]seg{{text: h.ClinicName, font: b.bold(b.style.ClinicNameSize), color: b.c.darkBlue}}, 0, leftW)...)
	for _, line := range h.ClinicLines {
		left = stack(left, stack(b.flowBlocks([]seg{{text: line, font: b.small(), color: b.c.medium}}, 0, leftW)...))
	}

	right := &block{}
	for _, r := range []struct {
		text string
		font Font
	}{
		{h.Annex, b.bold(b.style.BaseSize)},
		{h.Order, b.small()},
	} {
		if r.text == "" {
			continue
		}
		right = stack(right, shift(b.aligned([]seg{{text: r.text, font: r.font, color: b.c.medium}}, rightW, alignRight), leftW))
	}

	top := &block{height: left.height}
	if right.height > top.height {
		top.height = right.height
	}
	top.ops = append(top.ops, left.ops...)
	top.ops = append(top.ops, right.ops...)

	rule := func(w float64) *block {
		return &block{height: 1.2, ops: []Op{LineOp{X1: 0, Y1: 0.6, X2: b.width, Y2: 0.6, Color: b.c.primary, Width: w}}}
	}
	var title, contract *block
	if h.Title != "" {
		title = b.aligned([]seg{{text: h.Title, font: b.bold(b.style.TitleSize), color: b.c.dark}}, b.width, alignCenter)
	}
	if h.Contract != "" {
		contract = b.aligned([]seg{{text: h.Contract, font: b.small(), color: b.c.medium}}, b.width, alignCenter)
	}
	return stack(top, spacer(1.5), rule(0.6), spacer(1.5), title, contract, spacer(1), rule(0.3), spacer(2))
}

type align int

const (
	alignCenter align = iota
	alignRight
)

// aligned wraps segs in width and offsets each line within it.
func (b *builder) aligned(segs []seg, width float64, a align) *block {
	var out []*block
	for _, line := range flow(b.m, segs, width) {
		indent := width - line.width
		if a == alignCenter {
			indent /= 2
		}
		out = append(out, b.lineBlock(line, indent))
	}
	return stack(out...)
}
