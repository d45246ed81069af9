package render

// Font selects a face of the style's family.
type Font struct {
	Size   float64
	Bold   bool
	Italic bool
}

func (f Font) style() string {
	switch {
	case f.Bold && f.Italic:
		return "BI"
	case f.Bold:
		return "B"
	case f.Italic:
		return "I"
	}
	return ""
}

// Op is a drawing operation in page coordinates (mm, origin top-left).
type Op interface {
	translate(dx, dy float64) Op
}

// TextOp draws Text with its baseline at Y.
type TextOp struct {
	X, Y  float64
	Text  string
	Font  Font
	Color Color
}

// RectOp draws a rectangle. Fill and Stroke are optional.
type RectOp struct {
	X, Y, W, H float64
	Fill       *Color
	Stroke     *Color
	LineWidth  float64
}

// LineOp draws a straight line.
type LineOp struct {
	X1, Y1, X2, Y2 float64
	Color          Color
	Width          float64
}

func (o TextOp) translate(dx, dy float64) Op {
	o.X += dx
	o.Y += dy
	return o
}

func (o RectOp) translate(dx, dy float64) Op {
	o.X += dx
	o.Y += dy
	return o
}

func (o LineOp) translate(dx, dy float64) Op {
	o.X1 += dx
	o.X2 += dx
	o.Y1 += dy
	o.Y2 += dy
	return o
}

// Page is one laid-out page.
type Page struct {
	Number int
	Ops    []Op
}

// Layout is the backend-independent result of pagination.
type Layout struct {
	Style RenderStyle
	Pages []Page
	// Breaks records, per page, the kinds of the sections that start on it.
	Breaks [][]string
}

// Texts returns every text drawn on page n (1-based), in drawing order.
func (l *Layout) Texts(n int) []string {
	if n < 1 || n > len(l.Pages) {
		return nil
	}
	var out []string
	for _, op := range l.Pages[n-1].Ops {
		if t, ok := op.(TextOp); ok {
			out = append(out, t.Text)
		}
	}
	return out
}
