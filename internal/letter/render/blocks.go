package render

import (
	"strconv"
	"strings"

	"github.com/ehr/medletter/internal/letter/compose"
	"github.com/ehr/medletter/internal/letter/richtext"
)

// colors is the palette resolved once per layout.
type colors struct {
	primary, darkBlue, lightBlue       Color
	dark, medium, light, border, white Color
	red, darkRed, redTint, redBorder   Color
	green, greenTint, greenBorder      Color
	yellow, yellowTint                 Color
}

func resolve(p Palette) colors {
	return colors{
		primary: Hex(p.PrimaryBlue), darkBlue: Hex(p.DarkBlue), lightBlue: Hex(p.LightBlue),
		dark: Hex(p.DarkGray), medium: Hex(p.MediumGray), light: Hex(p.LightGray),
		border: Hex(p.BorderGray), white: Hex(p.White),
		red: Hex(p.Red), darkRed: Hex(p.DarkRed), redTint: Hex(p.RedTint), redBorder: Hex(p.RedBorder),
		green: Hex(p.Green), greenTint: Hex(p.GreenTint), greenBorder: Hex(p.GreenBorder),
		yellow: Hex(p.Yellow), yellowTint: Hex(p.YellowTint),
	}
}

// builder turns composed sections into groups of blocks.
type builder struct {
	style RenderStyle
	m     Measurer
	c     colors
	width float64
}

func newBuilder(style RenderStyle, m Measurer) *builder {
	return &builder{style: style, m: m, c: resolve(style.Palette), width: style.ContentWidth()}
}

func (b *builder) base() Font  { return Font{Size: b.style.BaseSize} }
func (b *builder) small() Font { return Font{Size: b.style.SmallSize} }
func (b *builder) tiny() Font  { return Font{Size: b.style.TinySize} }
func (b *builder) bold(size float64) Font {
	return Font{Size: size, Bold: true}
}

func ptr(c Color) *Color { return &c }

// section builds the group for s. Boxed sections draw their own title.
func (b *builder) section(s compose.Section) group {
	g := group{kind: s.Kind.String()}
	var body []*block
	switch c := s.Body.(type) {
	case compose.Banner:
		body = []*block{b.banner(c)}
	case compose.FieldGrid:
		body = []*block{b.fieldGrid(c)}
	case compose.Formatted:
		body = b.rich(c.Markup, b.base(), 0)
	case compose.OncologyBanner:
		body = []*block{b.oncology(c)}
	case compose.DiagnosisList:
		body = b.diagnoses(c)
	case compose.Subsections:
		body = b.subsections(c)
	case compose.LabResults:
		body = b.labResults(c)
	case compose.PerformedTests:
		body = b.performedTests(c)
	case compose.Table:
		body = b.table(c.Header, c.Weights, c.Rows)
	case compose.NumberedList:
		body = b.numbered(c)
	case compose.TestGrid:
		body = b.testGrid(c)
	case compose.NotesBox:
		g.blocks = []*block{b.notes(s.Title, c)}
		return g
	case compose.Checkboxes:
		g.blocks = []*block{b.checkboxGroup(s.Title, c)}
		return g
	case compose.Signature:
		g.blocks = []*block{b.signature(c)}
		return g
	}
	if s.Title != "" {
		t := b.sectionTitle(s.Title)
		t.keepWithNext = len(body) > 0
		g.blocks = append(g.blocks, t)
	}
	g.blocks = append(g.blocks, body...)
	return g
}

func (b *builder) sectionTitle(title string) *block {
	f := b.bold(b.style.SectionTitleSize)
	blk := b.lineBlock(flow(b.m, []seg{{text: title, font: f, color: b.c.primary}}, b.width)[0], 0)
	blk.height += 1
	blk.ops = append(blk.ops, LineOp{X1: 0, Y1: blk.height, X2: b.width, Y2: blk.height, Color: b.c.border, Width: 0.3})
	blk.height += 1.5
	return blk
}

// rich lays out sanitized markup, one block per line. Blank lines keep
// their height.
func (b *builder) rich(markup string, f Font, indent float64) []*block {
	lines, parsed := richSegs(markup, f.Size, b.c.dark)
	var out []*block
	for i, segs := range lines {
		for j := range segs {
			segs[j].font.Italic = segs[j].font.Italic || f.Italic
		}
		in := indent + float64(parsed[i].Depth)*4
		if strings.TrimSpace(parsed[i].Text()) == "" && parsed[i].Marker == "" {
			out = append(out, spacer(b.style.lineHeight(f.Size)))
			continue
		}
		out = append(out, b.flowBlocks(segs, in, b.width-in)...)
	}
	return out
}

func (b *builder) banner(c compose.Banner) *block {
	pad := b.style.Padding * 1.5
	segs := make([]seg, 0, len(c.Spans))
	for _, s := range c.Spans {
		segs = append(segs, seg{text: s.Text, font: Font{Size: b.style.BaseSize, Bold: s.Bold}, color: b.c.dark})
	}
	inner := stack(b.flowBlocks(segs, 0, b.width-2*pad)...)
	return boxed(inner, b.width, pad, ptr(b.c.lightBlue), ptr(b.c.primary))
}

func (b *builder) fieldGrid(c compose.FieldGrid) *block {
	cols := c.Columns
	if cols <= 0 {
		cols = 1
	}
	pad := b.style.Padding
	cellW := (b.width - 2*pad) / float64(cols)
	var rows []*block
	for start := 0; start < len(c.Fields); start += cols {
		end := start + cols
		if end > len(c.Fields) {
			end = len(c.Fields)
		}
		row := &block{}
		for i, f := range c.Fields[start:end] {
			cell := stack(b.flowBlocks([]seg{
				{text: f.Label + ": ", font: b.small(), color: b.c.medium},
				{text: f.Value, font: b.bold(b.style.BaseSize), color: b.c.dark},
			}, 0, cellW-2)...)
			for _, op := range cell.ops {
				row.ops = append(row.ops, op.translate(float64(i)*cellW, 0))
			}
			if cell.height > row.height {
				row.height = cell.height
			}
		}
		rows = append(rows, row, spacer(1))
	}
	return boxed(stack(rows...), b.width, pad, ptr(b.c.light), ptr(b.c.border))
}

func (b *builder) checkbox(checked bool) []Op {
	s := b.style.CheckSize
	ops := []Op{RectOp{W: s, H: s, Stroke: ptr(b.c.primary), LineWidth: 0.5}}
	if checked {
		ops[0] = RectOp{W: s, H: s, Fill: ptr(b.c.primary), Stroke: ptr(b.c.primary), LineWidth: 0.5}
		ops = append(ops,
			LineOp{X1: s * 0.22, Y1: s * 0.52, X2: s * 0.42, Y2: s * 0.74, Color: b.c.white, Width: 0.5},
			LineOp{X1: s * 0.42, Y1: s * 0.74, X2: s * 0.8, Y2: s * 0.26, Color: b.c.white, Width: 0.5},
		)
	}
	return ops
}

// option is a checkbox followed by its label, wrapped in width.
func (b *builder) option(label string, checked bool, width float64) *block {
	s := b.style.CheckSize
	text := stack(b.flowBlocks([]seg{{text: label, font: b.base(), color: b.c.dark}}, 0, width-s-3)...)
	h := text.height
	if s > h {
		h = s
	}
	blk := &block{height: h}
	blk.ops = append(blk.ops, b.checkbox(checked)...)
	dy := (s - b.style.lineHeight(b.style.BaseSize)) / 2
	if dy < 0 {
		dy = 0
	}
	for _, op := range text.ops {
		blk.ops = append(blk.ops, op.translate(s+3, dy))
	}
	return blk
}

func (b *builder) oncology(c compose.OncologyBanner) *block {
	pad := b.style.Padding
	inner := b.width - 2*pad
	qW := inner * 0.6
	q := stack(b.flowBlocks([]seg{{text: c.Question, font: b.bold(b.style.BaseSize), color: b.c.dark}}, 0, qW)...)
	optW := (inner - qW) / 2
	yes := b.option("DA", c.Oncologic, optW)
	no := b.option("NU", !c.Oncologic, optW)

	row := &block{height: q.height}
	row.ops = append(row.ops, q.ops...)
	for i, o := range []*block{yes, no} {
		for _, op := range o.ops {
			row.ops = append(row.ops, op.translate(qW+float64(i)*optW, 0))
		}
		if o.height > row.height {
			row.height = o.height
		}
	}
	parts := []*block{row}
	if c.Oncologic && c.Details != "" {
		parts = append(parts, spacer(1.5))
		parts = append(parts, b.richWidth(c.Details, Font{Size: b.style.SmallSize, Italic: true}, inner)...)
	}
	fill, stroke := b.c.greenTint, b.c.greenBorder
	if c.Oncologic {
		fill, stroke = b.c.redTint, b.c.redBorder
	}
	return boxed(stack(parts...), b.width, pad, &fill, &stroke)
}

// richWidth is rich constrained to width instead of the full column.
func (b *builder) richWidth(markup string, f Font, width float64) []*block {
	saved := b.width
	b.width = width
	defer func() { b.width = saved }()
	return b.rich(markup, f, 0)
}

// badge is a fixed-width filled label.
func (b *builder) badge(text string, width float64, fill, stroke, fg Color) *block {
	f := b.bold(b.style.SmallSize)
	h := b.style.lineHeight(f.Size) + 1.2
	w := b.m.Width(text, f)
	return &block{height: h, ops: []Op{
		RectOp{W: width, H: h, Fill: &fill, Stroke: &stroke, LineWidth: 0.3},
		TextOp{X: (width - w) / 2, Y: 0.6 + b.style.ascent(f.Size), Text: text, Font: f, Color: fg},
	}}
}

func (b *builder) diagnoses(c compose.DiagnosisList) []*block {
	pad := b.style.Padding
	head := boxed(b.textLines("Diagnostice Stabilite", b.bold(b.style.BaseSize), b.c.dark, 0)[0], b.width, pad*0.8, ptr(b.c.light), ptr(b.c.border))
	head.keepWithNext = true
	out := []*block{head}

	const badgeW = 22.0
	entry := func(label string, fill, stroke, fg Color, code, name, detail string) {
		kind := b.badge(label, badgeW, fill, stroke, fg)
		codeB := b.badge(orDash(code), badgeW, b.c.lightBlue, b.c.primary, b.c.primary)
		nameX := 2*badgeW + 6
		nameB := stack(b.flowBlocks([]seg{{text: name, font: b.base(), color: b.c.dark}}, 0, b.width-nameX)...)
		row := &block{height: kind.height}
		row.ops = append(row.ops, kind.ops...)
		for _, op := range codeB.ops {
			row.ops = append(row.ops, op.translate(badgeW+3, 0))
		}
		for _, op := range nameB.ops {
			row.ops = append(row.ops, op.translate(nameX, 0.4))
		}
		if nameB.height > row.height {
			row.height = nameB.height
		}
		parts := []*block{spacer(1.5), row}
		if detail != "" {
			parts = append(parts, shift(stack(b.flowBlocks([]seg{{text: detail, font: Font{Size: b.style.SmallSize, Italic: true}, color: b.c.medium}}, 0, b.width-nameX)...), nameX))
		}
		out = append(out, stack(parts...))
	}
	if p := c.Principal; p != nil {
		entry("Principal", b.c.greenTint, b.c.green, b.c.green, p.Code, p.Name, p.Detail)
	}
	for _, d := range c.Secondary {
		entry("Secundar", b.c.yellowTint, b.c.yellow, b.c.yellow, d.Code, d.Name, d.Detail)
	}
	return out
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func (b *builder) subsections(c compose.Subsections) []*block {
	var out []*block
	labelFont := b.bold(b.style.BaseSize)
	for i, it := range c.Items {
		if i > 0 {
			out = append(out, spacer(1.5))
		}
		f := Font{Size: b.style.BaseSize, Italic: it.Italic}
		switch {
		case len(it.Bullets) > 0:
			if it.Label != "" {
				lb := b.textLines(it.Label, labelFont, b.c.dark, 0)
				lb[len(lb)-1].keepWithNext = true
				out = append(out, lb...)
			}
			for _, bl := range it.Bullets {
				out = append(out, b.flowBlocks([]seg{{text: "• " + bl, font: f, color: b.c.dark}}, 4, b.width-4)...)
			}
		case it.Inline:
			lines, parsed := richSegs(it.Markup, f.Size, b.c.dark)
			label := seg{text: it.Label + " ", font: labelFont, color: b.c.dark}
			if len(lines) == 0 {
				lines = [][]seg{nil}
				parsed = []richtext.Line{{}}
			}
			lines[0] = append([]seg{label}, lines[0]...)
			for j, segs := range lines {
				in := float64(parsed[j].Depth) * 4
				if len(segs) == 0 {
					out = append(out, spacer(b.style.lineHeight(f.Size)))
					continue
				}
				out = append(out, b.flowBlocks(segs, in, b.width-in)...)
			}
		case it.Shaded:
			pad := b.style.Padding
			if it.Label != "" {
				lb := b.textLines(it.Label, labelFont, b.c.dark, 0)
				lb[len(lb)-1].keepWithNext = true
				out = append(out, lb...)
				out = append(out, spacer(1))
			}
			inner := stack(b.richWidth(it.Markup, f, b.width-2*pad)...)
			out = append(out, boxed(inner, b.width, pad, ptr(b.c.light), nil))
		default:
			if it.Label != "" {
				lb := b.textLines(it.Label, labelFont, b.c.dark, 0)
				lb[len(lb)-1].keepWithNext = true
				out = append(out, lb...)
			}
			out = append(out, b.rich(it.Markup, f, 0)...)
		}
	}
	return out
}

// labColumn is one side of the lab results summary.
type labColumn struct {
	title   string
	entries []string
	fg      Color
	fill    Color
	stroke  Color
}

func (b *builder) labResults(c compose.LabResults) []*block {
	var cols []labColumn
	if len(c.Normal) > 0 {
		col := labColumn{title: "Valori Normale", fg: b.c.green, fill: b.c.greenTint, stroke: b.c.greenBorder}
		for _, r := range c.Normal {
			col.entries = append(col.entries, strings.TrimSpace(r.Name+": "+r.Value+" "+r.Unit))
		}
		cols = append(cols, col)
	}
	if len(c.Abnormal) > 0 {
		col := labColumn{title: "Valori Patologice", fg: b.c.red, fill: b.c.redTint, stroke: b.c.redBorder}
		for _, r := range c.Abnormal {
			e := strings.TrimSpace(r.Name + ": " + r.Value + " " + r.Unit)
			if r.ReferenceRange != "" {
				e += " (" + r.ReferenceRange + ")"
			}
			col.entries = append(col.entries, e)
		}
		cols = append(cols, col)
	}
	if len(cols) == 0 {
		return nil
	}

	const gap = 3.0
	pad := b.style.Padding
	colW := (b.width - gap*float64(len(cols)-1)) / float64(len(cols))
	rows := 0
	for _, col := range cols {
		if len(col.entries) > rows {
			rows = len(col.entries)
		}
	}

	// row -1 is the title row; the last row carries the bottom padding.
	var out []*block
	for r := -1; r < rows; r++ {
		cells := make([]*block, len(cols))
		h := 0.0
		for i, col := range cols {
			var cell *block
			switch {
			case r < 0:
				cell = stack(b.flowBlocks([]seg{{text: col.title, font: b.bold(b.style.BaseSize), color: col.fg}}, 0, colW-2*pad)...)
			case r < len(col.entries):
				cell = stack(b.flowBlocks([]seg{{text: col.entries[r], font: b.small(), color: b.c.dark}}, 0, colW-2*pad)...)
			default:
				cell = &block{}
			}
			cells[i] = cell
			if cell.height > h {
				h = cell.height
			}
		}
		top, bottom := 0.6, 0.6
		if r < 0 {
			top = pad
		}
		if r == rows-1 {
			bottom = pad
		}
		row := &block{height: top + h + bottom}
		for i, col := range cols {
			x := float64(i) * (colW + gap)
			fill, stroke := col.fill, col.stroke
			row.ops = append(row.ops,
				RectOp{X: x, W: colW, H: row.height, Fill: &fill},
				LineOp{X1: x, Y1: 0, X2: x, Y2: row.height, Color: stroke, Width: 0.3},
				LineOp{X1: x + colW, Y1: 0, X2: x + colW, Y2: row.height, Color: stroke, Width: 0.3},
			)
			if r < 0 {
				row.ops = append(row.ops, LineOp{X1: x, Y1: 0, X2: x + colW, Y2: 0, Color: stroke, Width: 0.3})
			}
			if r == rows-1 {
				row.ops = append(row.ops, LineOp{X1: x, Y1: row.height, X2: x + colW, Y2: row.height, Color: stroke, Width: 0.3})
			}
			for _, op := range cells[i].ops {
				row.ops = append(row.ops, op.translate(x+pad, top))
			}
		}
		if r < 0 {
			row.keepWithNext = true
		}
		out = append(out, row)
	}
	return out
}

// cellRow lays out one table row. Widths are absolute; texts wrap inside
// their cell.
func (b *builder) cellRow(texts []string, widths []float64, fonts []Font, fgs []Color, fill *Color, stroke Color) *block {
	const pad = 1.2
	cells := make([]*block, len(texts))
	h := 0.0
	for i, t := range texts {
		cells[i] = stack(b.flowBlocks([]seg{{text: t, font: fonts[i], color: fgs[i]}}, 0, widths[i]-2*pad)...)
		if cells[i].height > h {
			h = cells[i].height
		}
	}
	row := &block{height: h + 2*pad}
	x := 0.0
	for i := range texts {
		row.ops = append(row.ops, RectOp{X: x, W: widths[i], H: row.height, Fill: fill, Stroke: &stroke, LineWidth: 0.2})
		for _, op := range cells[i].ops {
			row.ops = append(row.ops, op.translate(x+pad, pad))
		}
		x += widths[i]
	}
	return row
}

func scaleWidths(weights []float64, n int, total float64) []float64 {
	out := make([]float64, n)
	sum := 0.0
	for i := 0; i < n; i++ {
		w := 1.0
		if i < len(weights) && weights[i] > 0 {
			w = weights[i]
		}
		out[i] = w
		sum += w
	}
	for i := range out {
		out[i] = out[i] / sum * total
	}
	return out
}

func repeat[T any](v T, n int) []T {
	out := make([]T, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// table is a header row followed by body rows. The header stays with the
// first row and repeats after page breaks.
func (b *builder) table(header []string, weights []float64, rows [][]string) []*block {
	n := len(header)
	widths := scaleWidths(weights, n, b.width)
	head := b.cellRow(header, widths, repeat(b.bold(b.style.SmallSize), n), repeat(b.c.dark, n), ptr(b.c.light), b.c.border)
	head.keepWithNext = len(rows) > 0
	out := []*block{head}
	for _, r := range rows {
		cells := make([]string, n)
		copy(cells, r)
		row := b.cellRow(cells, widths, repeat(b.base(), n), repeat(b.c.dark, n), nil, b.c.border)
		row.header = head
		out = append(out, row)
	}
	return out
}

func (b *builder) performedTests(c compose.PerformedTests) []*block {
	var out []*block
	if len(c.Abnormal) > 0 {
		title := b.textLines("Valori în Afara Limitelor ("+strconv.Itoa(len(c.Abnormal))+")", b.bold(b.style.BaseSize), b.c.red, 0)
		title[len(title)-1].keepWithNext = true
		out = append(out, title...)

		n := len(c.AbnormalHeader)
		widths := scaleWidths([]float64{3, 2, 2, 1.3}, n, b.width)
		head := b.cellRow(c.AbnormalHeader, widths, repeat(b.bold(b.style.TinySize), n), repeat(b.c.dark, n), ptr(b.c.redBorder), b.c.redBorder)
		head.keepWithNext = true
		out = append(out, head)
		fonts := []Font{b.small(), b.bold(b.style.SmallSize), b.tiny(), b.tiny()}
		fgs := []Color{b.c.dark, b.c.red, b.c.medium, b.c.medium}
		for _, r := range c.Abnormal {
			cells := make([]string, n)
			copy(cells, r)
			row := b.cellRow(cells, widths, fonts[:n], fgs[:n], ptr(b.c.redTint), b.c.redBorder)
			row.header = head
			out = append(out, row)
		}
	}
	if len(c.Normal) > 0 {
		if len(out) > 0 {
			out = append(out, spacer(3))
		}
		title := b.textLines("Valori Normale ("+strconv.Itoa(len(c.Normal))+")", b.bold(b.style.BaseSize), b.c.green, 0)
		title[len(title)-1].keepWithNext = true
		out = append(out, title...)

		per := c.PerRow
		if per <= 0 {
			per = 3
		}
		cellW := b.width / float64(per)
		for start := 0; start < len(c.Normal); start += per {
			row := &block{}
			cells := make([]*block, per)
			for i := 0; i < per; i++ {
				cells[i] = &block{}
				if start+i < len(c.Normal) {
					f := c.Normal[start+i]
					cells[i] = stack(b.flowBlocks([]seg{
						{text: f.Label + ": ", font: b.small(), color: b.c.medium},
						{text: f.Value, font: b.bold(b.style.SmallSize), color: b.c.green},
					}, 0, cellW-2.4)...)
				}
				if cells[i].height > row.height {
					row.height = cells[i].height
				}
			}
			row.height += 2.4
			for i, cell := range cells {
				x := float64(i) * cellW
				row.ops = append(row.ops, RectOp{X: x, W: cellW, H: row.height, Fill: ptr(b.c.greenTint), Stroke: ptr(b.c.greenBorder), LineWidth: 0.2})
				for _, op := range cell.ops {
					row.ops = append(row.ops, op.translate(x+1.2, 1.2))
				}
			}
			out = append(out, row)
		}
	}
	return out
}

func (b *builder) numbered(c compose.NumberedList) []*block {
	var out []*block
	const indent = 6.0
	for i, it := range c.Items {
		num := strconv.Itoa(i+1) + "."
		lines := b.flowBlocks([]seg{{text: it.Text, font: b.base(), color: b.c.dark}}, indent, b.width-indent)
		if len(lines) > 0 {
			lines[0].ops = append(lines[0].ops, TextOp{Y: b.style.ascent(b.style.BaseSize), Text: num, Font: b.base(), Color: b.c.dark})
		}
		if len(it.Children) > 0 && len(lines) > 0 {
			lines[len(lines)-1].keepWithNext = true
		}
		out = append(out, lines...)
		for _, ch := range it.Children {
			out = append(out, b.flowBlocks([]seg{{text: "• " + ch, font: b.base(), color: b.c.dark}}, indent+4, b.width-indent-4)...)
		}
	}
	return out
}

func (b *builder) testGrid(c compose.TestGrid) []*block {
	n := len(c.Columns)
	if n == 0 {
		return nil
	}
	const gap = 3.0
	colW := (b.width - gap*float64(n-1)) / float64(n)
	widths := scaleWidths([]float64{3, 1}, 2, colW)

	head := &block{}
	for i := 0; i < n; i++ {
		cell := b.cellRow(c.Header, widths, repeat(b.bold(b.style.TinySize), 2), repeat(b.c.dark, 2), ptr(b.c.light), b.c.border)
		for _, op := range cell.ops {
			head.ops = append(head.ops, op.translate(float64(i)*(colW+gap), 0))
		}
		head.height = cell.height
	}
	head.keepWithNext = true
	out := []*block{head}

	rows := len(c.Columns[0])
	for r := 0; r < rows; r++ {
		row := &block{header: head}
		for i, col := range c.Columns {
			if r >= len(col) {
				continue
			}
			t := col[r]
			name := t.Name
			fill := b.c.white
			fgs := []Color{b.c.dark, b.c.medium}
			if t.Urgent {
				name += " !"
				fill = b.c.redTint
				fgs[0] = b.c.red
			}
			cell := b.cellRow([]string{name, t.Category}, widths, []Font{b.small(), b.tiny()}, fgs, &fill, b.c.border)
			for _, op := range cell.ops {
				row.ops = append(row.ops, op.translate(float64(i)*(colW+gap), 0))
			}
			if cell.height > row.height {
				row.height = cell.height
			}
		}
		out = append(out, row)
	}
	return out
}

// titledBox is a bordered box with a shaded title bar.
func (b *builder) titledBox(title string, body *block) *block {
	pad := b.style.Padding
	bar := boxed(stack(b.textLines(title, b.bold(b.style.BaseSize), b.c.primary, 0)...), b.width, pad, ptr(b.c.light), nil)
	inner := &block{height: body.height + 2*pad}
	for _, op := range body.ops {
		inner.ops = append(inner.ops, op.translate(pad*1.5, pad))
	}
	all := stack(bar, inner)
	all.ops = append([]Op{RectOp{W: b.width, H: all.height, Stroke: ptr(b.c.border), LineWidth: 0.3}}, all.ops...)
	return all
}

func (b *builder) notes(title string, c compose.NotesBox) *block {
	pad := b.style.Padding
	inner := b.width - 3*pad
	small := b.small()
	warn := stack(
		stack(b.flowBlocks([]seg{{text: c.WarningTitle, font: b.bold(b.style.BaseSize), color: b.c.red}}, 0, inner-2*pad)...),
		spacer(1),
		stack(b.flowBlocks([]seg{{text: c.Warning, font: b.tiny(), color: b.c.darkRed}}, 0, inner-2*pad)...),
	)
	body := stack(
		stack(b.flowBlocks([]seg{{text: c.Intro, font: small, color: b.c.dark}}, 0, inner)...),
		spacer(2),
		boxed(warn, inner, pad, ptr(b.c.redTint), ptr(b.c.redBorder)),
		spacer(2),
		stack(b.flowBlocks([]seg{{text: c.Validity, font: small, color: b.c.dark}}, 0, inner)...),
	)
	return b.titledBox(title, body)
}

func (b *builder) checkboxGroup(title string, c compose.Checkboxes) *block {
	inner := b.width - 3*b.style.Padding
	parts := make([]*block, 0, 2*len(c.Options))
	for i, o := range c.Options {
		if i > 0 {
			parts = append(parts, spacer(1.5))
		}
		parts = append(parts, b.option(o.Label, o.Checked, inner))
	}
	return b.titledBox(title, stack(parts...))
}

func (b *builder) signature(c compose.Signature) *block {
	half := b.width / 2
	gray := b.c.medium
	left := stack(
		stack(b.textLines(c.RoleLabel, b.bold(b.style.BaseSize), gray, 0)...),
		stack(b.textLines(c.Doctor, b.bold(b.style.BaseSize+1), b.c.dark, 0)...),
		stack(b.textLines(c.Specialty, b.base(), b.c.dark, 0)...),
		stack(b.textLines(c.StampLabel, b.small(), gray, 0)...),
		spacer(2),
		b.stampBox(c.StampBoxLabel),
	)
	rightParts := []*block{
		stack(b.textLines(c.IssuedLabel, b.bold(b.style.BaseSize), gray, 0)...),
		stack(b.textLines(c.IssuedOn, b.bold(b.style.BaseSize), b.c.dark, 0)...),
		spacer(4),
		stack(b.textLines(c.TransmitLabel, b.bold(b.style.BaseSize), gray, 0)...),
	}
	for _, t := range c.Transmission {
		rightParts = append(rightParts, spacer(1.5), b.option(t.Label, t.Checked, half-4))
	}
	right := stack(rightParts...)

	cols := &block{height: left.height}
	if right.height > cols.height {
		cols.height = right.height
	}
	cols.ops = append(cols.ops, left.ops...)
	for _, op := range right.ops {
		cols.ops = append(cols.ops, op.translate(half+4, 0))
	}

	parts := []*block{
		{height: 3, ops: []Op{LineOp{X2: b.width, Color: b.c.border, Width: 0.3}}},
		cols,
		spacer(4),
		{height: 2, ops: []Op{LineOp{X2: b.width, Color: b.c.border, Width: 0.2}}},
	}
	for i, fn := range c.Footnotes {
		segs := []seg{{text: fn, font: b.tiny(), color: gray}}
		if i == 0 && c.FootnoteMarker != "" {
			segs = append([]seg{{text: c.FootnoteMarker, font: b.bold(b.style.TinySize), color: gray}}, segs...)
		}
		if i > 0 {
			parts = append(parts, spacer(1))
		}
		parts = append(parts, stack(b.flowBlocks(segs, 0, b.width)...))
	}
	return stack(parts...)
}

func (b *builder) stampBox(label string) *block {
	const w, h = 45.0, 18.0
	f := b.small()
	tw := b.m.Width(label, f)
	return &block{height: h, ops: []Op{
		RectOp{W: w, H: h, Stroke: ptr(b.c.border), LineWidth: 0.3},
		TextOp{X: (w - tw) / 2, Y: h/2 + b.style.ascent(f.Size)/2, Text: label, Font: f, Color: b.c.medium},
	}}
}
