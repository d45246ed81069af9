package richtext

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// Run is a span of text sharing one style.
type Run struct {
	Text      string
	Bold      bool
	Italic    bool
	Underline bool
}

// Line is one visual line of formatted text. List items carry a marker
// ("•" or "3.") and their nesting depth.
type Line struct {
	Runs   []Run
	Marker string
	Depth  int
}

// Text returns the concatenated text of the line.
func (l Line) Text() string {
	var b strings.Builder
	for _, r := range l.Runs {
		b.WriteString(r.Text)
	}
	return b.String()
}

type listState struct {
	ordered bool
	next    int
}

// Parse converts markup produced by SanitizeFormatting into lines of styled
// runs. Entities are decoded, whitespace inside a line is collapsed and empty
// lines between paragraphs are kept as blank lines.
func Parse(formatted string) []Line {
	if formatted == "" {
		return nil
	}
	var (
		lines  []Line
		cur    Line
		lists  []listState
		bold   int
		italic int
		under  int
	)
	flush := func(force bool) {
		if len(cur.Runs) > 0 || force {
			lines = append(lines, normalizeLine(cur))
		}
		cur = Line{}
	}

	z := html.NewTokenizer(strings.NewReader(formatted))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		raw, _ := z.TagName()
		name := string(raw)
		switch tt {
		case html.TextToken:
			text := html.UnescapeString(string(z.Raw()))
			if strings.TrimSpace(text) == "" && len(cur.Runs) == 0 {
				continue
			}
			cur.Runs = append(cur.Runs, Run{Text: text, Bold: bold > 0, Italic: italic > 0, Underline: under > 0})
		case html.StartTagToken, html.SelfClosingTagToken:
			switch name {
			case "br":
				flush(true)
			case "b", "strong":
				bold++
			case "i", "em":
				italic++
			case "u":
				under++
			case "ul", "ol":
				flush(false)
				lists = append(lists, listState{ordered: name == "ol", next: 1})
			case "li":
				flush(false)
				cur.Depth = len(lists)
				cur.Marker = "•"
				if n := len(lists); n > 0 && lists[n-1].ordered {
					cur.Marker = strconv.Itoa(lists[n-1].next) + "."
					lists[n-1].next++
				}
			}
		case html.EndTagToken:
			switch name {
			case "br":
				flush(true)
			case "b", "strong":
				bold = decr(bold)
			case "i", "em":
				italic = decr(italic)
			case "u":
				under = decr(under)
			case "li":
				flush(false)
			case "ul", "ol":
				flush(false)
				if len(lists) > 0 {
					lists = lists[:len(lists)-1]
				}
			}
		}
	}
	flush(false)

	// A trailing blank line carries nothing.
	for len(lines) > 0 && lines[len(lines)-1].Text() == "" && lines[len(lines)-1].Marker == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// PlainLines is Parse reduced to the text of each line.
func PlainLines(formatted string) []string {
	lines := Parse(formatted)
	out := make([]string, len(lines))
	for i, l := range lines {
		if l.Marker != "" {
			out[i] = l.Marker + " " + l.Text()
			continue
		}
		out[i] = l.Text()
	}
	return out
}

func normalizeLine(l Line) Line {
	runs := make([]Run, 0, len(l.Runs))
	for _, r := range l.Runs {
		r.Text = collapseSpaces(r.Text)
		if r.Text == "" {
			continue
		}
		runs = append(runs, r)
	}
	if len(runs) > 0 {
		runs[0].Text = strings.TrimLeft(runs[0].Text, " ")
		last := len(runs) - 1
		runs[last].Text = strings.TrimRight(runs[last].Text, " ")
	}
	l.Runs = runs
	return l
}

// collapseSpaces turns every whitespace run into a single space but keeps
// leading and trailing spaces so adjacent runs stay separated.
func collapseSpaces(s string) string {
	var b strings.Builder
	space := false
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\u00a0' {
			if !space {
				b.WriteByte(' ')
			}
			space = true
			continue
		}
		space = false
		b.WriteRune(r)
	}
	return b.String()
}

func decr(n int) int {
	if n > 0 {
		return n - 1
	}
	return 0
}
