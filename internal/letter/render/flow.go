package render

import (
	"strings"
	"unicode/utf8"

	"github.com/ehr/medletter/internal/letter/richtext"
)

// seg is a styled run of inline text.
type seg struct {
	text  string
	font  Font
	color Color
}

// placed is a seg positioned on a line, x relative to the line start.
type placed struct {
	x float64
	seg
}

type flowLine struct {
	segs  []placed
	size  float64
	width float64
}

// flow breaks segs into lines no wider than width. Words wider than a line
// are split between runes.
func flow(m Measurer, segs []seg, width float64) []flowLine {
	var (
		lines []flowLine
		cur   flowLine
	)
	push := func() {
		lines = append(lines, cur)
		cur = flowLine{}
	}
	add := func(text string, s seg) {
		w := m.Width(text, s.font)
		cur.segs = append(cur.segs, placed{x: cur.width, seg: seg{text: text, font: s.font, color: s.color}})
		cur.width += w
		if s.font.Size > cur.size {
			cur.size = s.font.Size
		}
	}

	for _, s := range segs {
		for i, word := range strings.Split(s.text, " ") {
			if i > 0 {
				if cur.width > 0 {
					add(" ", s)
				}
			}
			if word == "" {
				continue
			}
			ww := m.Width(word, s.font)
			if cur.width+ww > width && cur.width > 0 {
				trimTrailingSpace(m, &cur)
				push()
			}
			for ww > width {
				head := fitRunes(m, word, s.font, width-cur.width)
				if head == "" {
					if cur.width > 0 {
						push()
						continue
					}
					_, n := utf8.DecodeRuneInString(word)
					head = word[:n]
				}
				add(head, s)
				push()
				word = word[len(head):]
				ww = m.Width(word, s.font)
			}
			if word != "" {
				add(word, s)
			}
		}
	}
	if len(cur.segs) > 0 {
		trimTrailingSpace(m, &cur)
		push()
	}
	return lines
}

func trimTrailingSpace(m Measurer, l *flowLine) {
	for len(l.segs) > 0 && l.segs[len(l.segs)-1].text == " " {
		last := l.segs[len(l.segs)-1]
		l.width -= m.Width(" ", last.font)
		l.segs = l.segs[:len(l.segs)-1]
	}
}

// fitRunes returns the longest prefix of word that fits in width.
func fitRunes(m Measurer, word string, f Font, width float64) string {
	end := 0
	for i, r := range word {
		next := i + utf8.RuneLen(r)
		if m.Width(word[:next], f) > width {
			break
		}
		end = next
	}
	return word[:end]
}

// textLines wraps plain text into one block per line.
func (b *builder) textLines(text string, f Font, c Color, indent float64) []*block {
	return b.flowBlocks([]seg{{text: text, font: f, color: c}}, indent, b.width-indent)
}

// flowBlocks lays segs out at indent and returns one block per line.
func (b *builder) flowBlocks(segs []seg, indent, width float64) []*block {
	var out []*block
	for _, line := range flow(b.m, segs, width) {
		out = append(out, b.lineBlock(line, indent))
	}
	return out
}

func (b *builder) lineBlock(line flowLine, indent float64) *block {
	size := line.size
	if size == 0 {
		size = b.style.BaseSize
	}
	h := b.style.lineHeight(size)
	blk := &block{height: h}
	base := b.style.ascent(size)
	for _, p := range line.segs {
		blk.ops = append(blk.ops, TextOp{X: indent + p.x, Y: base, Text: p.text, Font: p.font, Color: p.color})
	}
	return blk
}

// richSegs converts parsed formatting lines into flow input, one entry per
// line. Markers are prepended as plain text.
func richSegs(markup string, size float64, c Color) ([][]seg, []richtext.Line) {
	lines := richtext.Parse(markup)
	out := make([][]seg, 0, len(lines))
	for _, l := range lines {
		var segs []seg
		if l.Marker != "" {
			segs = append(segs, seg{text: l.Marker + " ", font: Font{Size: size}, color: c})
		}
		for _, r := range l.Runs {
			segs = append(segs, seg{text: r.Text, font: Font{Size: size, Bold: r.Bold, Italic: r.Italic}, color: c})
		}
		out = append(out, segs)
	}
	return out, lines
}
