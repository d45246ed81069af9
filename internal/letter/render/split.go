package render

const splitEps = 0.01

// textSpan is the vertical extent of the line a TextOp sits on.
func (s RenderStyle) textSpan(o TextOp) (top, bottom float64) {
	size := o.Font.Size
	if size == 0 {
		size = s.BaseSize
	}
	top = o.Y - s.ascent(size)
	return top, top + s.lineHeight(size)
}

// cutPoint picks the lowest line boundary of b at or above room. It falls
// back to room when no text line ends there, and returns 0 when only a
// fresh page can make progress.
func (s RenderStyle) cutPoint(b *block, room float64, atTop bool) float64 {
	var spans [][2]float64
	for _, op := range b.ops {
		if t, ok := op.(TextOp); ok {
			top, bottom := s.textSpan(t)
			spans = append(spans, [2]float64{top, bottom})
		}
	}
	if len(spans) == 0 {
		return room
	}
	crosses := func(y float64) bool {
		for _, sp := range spans {
			if sp[0]+splitEps < y && y < sp[1]-splitEps {
				return true
			}
		}
		return false
	}
	best := 0.0
	for _, sp := range spans {
		for _, y := range sp {
			if y > splitEps && y > best && y <= room+splitEps && !crosses(y) {
				best = y
			}
		}
	}
	if best > 0 {
		return best
	}
	if atTop {
		return room
	}
	return 0
}

// splitAt divides b at y. Rectangles and lines crossing y are clipped so
// each part draws its own piece of the frame.
func (s RenderStyle) splitAt(b *block, y float64) (head, tail *block) {
	head = &block{height: y}
	tail = &block{height: b.height - y, keepWithNext: b.keepWithNext, header: b.header}
	for _, op := range b.ops {
		switch o := op.(type) {
		case TextOp:
			if top, _ := s.textSpan(o); top < y-splitEps {
				head.ops = append(head.ops, o)
			} else {
				tail.ops = append(tail.ops, o.translate(0, -y))
			}
		case RectOp:
			switch {
			case o.Y+o.H <= y+splitEps:
				head.ops = append(head.ops, o)
			case o.Y >= y-splitEps:
				tail.ops = append(tail.ops, o.translate(0, -y))
			default:
				upper, lower := o, o
				upper.H = y - o.Y
				lower.Y, lower.H = 0, o.Y+o.H-y
				head.ops = append(head.ops, upper)
				tail.ops = append(tail.ops, lower)
			}
		case LineOp:
			lo, hi := o.Y1, o.Y2
			if lo > hi {
				lo, hi = hi, lo
			}
			switch {
			case hi <= y+splitEps:
				head.ops = append(head.ops, o)
			case lo >= y-splitEps:
				tail.ops = append(tail.ops, o.translate(0, -y))
			default:
				x := o.X1 + (o.X2-o.X1)*(y-o.Y1)/(o.Y2-o.Y1)
				upper, lower := o, o
				if o.Y1 < o.Y2 {
					upper.X2, upper.Y2 = x, y
					lower.X1, lower.Y1 = x, y
				} else {
					upper.X1, upper.Y1 = x, y
					lower.X2, lower.Y2 = x, y
				}
				head.ops = append(head.ops, upper)
				tail.ops = append(tail.ops, lower.translate(0, -y))
			}
		}
	}
	return head, tail
}
