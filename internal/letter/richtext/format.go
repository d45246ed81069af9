package richtext

import (
	"strings"
	"unicode"

	"golang.org/x/net/html"
)

// Break is the canonical line break emitted by SanitizeFormatting.
const Break = "<br/>"

// action is what SanitizeFormatting does with one side of a tag.
type action uint8

const (
	drop action = iota
	keep
	lineBreak
)

type tagRule struct {
	open, close action
}

// formattingRules is the complete tag policy, applied in a single tokenizer
// pass. Tags missing from the table are dropped with their content kept,
// except those in contentDropped which lose their content too.
var formattingRules = map[string]tagRule{
	"br":     {open: lineBreak, close: lineBreak},
	"p":      {open: drop, close: lineBreak},
	"div":    {open: drop, close: lineBreak},
	"span":   {open: drop, close: drop},
	"b":      {open: keep, close: keep},
	"strong": {open: keep, close: keep},
	"i":      {open: keep, close: keep},
	"em":     {open: keep, close: keep},
	"u":      {open: keep, close: keep},
	"ul":     {open: keep, close: keep},
	"ol":     {open: keep, close: keep},
	"li":     {open: keep, close: keep},
}

var contentDropped = map[string]bool{
	"script":   true,
	"style":    true,
	"head":     true,
	"title":    true,
	"iframe":   true,
	"object":   true,
	"template": true,
	"noscript": true,
}

// maxBreaks is the longest run of consecutive breaks kept after collapsing.
const maxBreaks = 2

var textEscaper = strings.NewReplacer("<", "&lt;", ">", "&gt;")

type pieceKind uint8

const (
	textPiece pieceKind = iota
	breakPiece
	tagPiece
)

type piece struct {
	kind pieceKind
	s    string
}

// SanitizeFormatting rewrites editor markup into the allow-listed subset:
//   - br tags become <br/>;
//   - closing p and div tags become <br/>, opening ones are dropped;
//   - span tags are dropped;
//   - b, strong, i, em, u, ul, ol and li are kept without attributes;
//   - every other tag is dropped, script and style with their content;
//   - runs of three or more breaks, whitespace between them included,
//     collapse to two;
//   - leading and trailing breaks and whitespace are trimmed.
//
// Stray angle brackets in text are escaped. The function is idempotent.
func SanitizeFormatting(s string) string {
	if s == "" {
		return ""
	}
	pieces := tokenize(s)
	pieces = collapseBreaks(pieces)
	pieces = trimPieces(pieces)

	var b strings.Builder
	b.Grow(len(s))
	for _, p := range pieces {
		b.WriteString(p.s)
	}
	return b.String()
}

func tokenize(s string) []piece {
	var out []piece
	add := func(p piece) {
		if p.kind == textPiece {
			if p.s == "" {
				return
			}
			if n := len(out); n > 0 && out[n-1].kind == textPiece {
				out[n-1].s += p.s
				return
			}
		}
		out = append(out, p)
	}

	z := html.NewTokenizer(strings.NewReader(s))
	skip := ""
	depth := 0
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			return out
		}
		raw, _ := z.TagName()
		name := string(raw)

		if skip != "" {
			switch {
			case tt == html.StartTagToken && name == skip:
				depth++
			case tt == html.EndTagToken && name == skip:
				depth--
				if depth == 0 {
					skip = ""
				}
			}
			continue
		}

		switch tt {
		case html.TextToken:
			add(piece{textPiece, textEscaper.Replace(string(z.Raw()))})
		case html.StartTagToken, html.SelfClosingTagToken:
			if contentDropped[name] && tt == html.StartTagToken {
				skip, depth = name, 1
				continue
			}
			rule := formattingRules[name]
			if tt == html.SelfClosingTagToken && rule.open == keep {
				// An empty formatting element carries nothing.
				continue
			}
			add(emit(name, rule.open, false))
		case html.EndTagToken:
			add(emit(name, formattingRules[name].close, true))
		}
	}
}

func emit(name string, a action, closing bool) piece {
	switch a {
	case lineBreak:
		return piece{breakPiece, Break}
	case keep:
		if closing {
			return piece{tagPiece, "</" + name + ">"}
		}
		return piece{tagPiece, "<" + name + ">"}
	}
	return piece{kind: textPiece}
}

// blank reports text that renders as nothing but space; editors emit
// "<p>&nbsp;</p>" for empty paragraphs.
func blank(p piece) bool {
	return p.kind == textPiece && strings.TrimSpace(strings.ReplaceAll(p.s, "&nbsp;", " ")) == ""
}

// collapseBreaks replaces every run of more than maxBreaks breaks, counting
// blank text between them as part of the run, with exactly maxBreaks breaks.
func collapseBreaks(in []piece) []piece {
	out := make([]piece, 0, len(in))
	for i := 0; i < len(in); {
		if in[i].kind != breakPiece {
			out = append(out, in[i])
			i++
			continue
		}
		// Extend the run over breaks and blank text, ending on a break.
		end, breaks := i, 0
		for j := i; j < len(in) && (in[j].kind == breakPiece || blank(in[j])); j++ {
			if in[j].kind == breakPiece {
				breaks++
				end = j
			}
		}
		if breaks > maxBreaks {
			for k := 0; k < maxBreaks; k++ {
				out = append(out, piece{breakPiece, Break})
			}
		} else {
			out = append(out, in[i:end+1]...)
		}
		i = end + 1
	}
	return out
}

func trimPieces(in []piece) []piece {
	for len(in) > 0 && (in[0].kind == breakPiece || blank(in[0])) {
		in = in[1:]
	}
	for len(in) > 0 && (in[len(in)-1].kind == breakPiece || blank(in[len(in)-1])) {
		in = in[:len(in)-1]
	}
	if len(in) == 0 {
		return nil
	}
	out := append([]piece(nil), in...)
	if out[0].kind == textPiece {
		out[0].s = strings.TrimLeftFunc(out[0].s, unicode.IsSpace)
	}
	if last := len(out) - 1; out[last].kind == textPiece {
		out[last].s = strings.TrimRightFunc(out[last].s, unicode.IsSpace)
	}
	return out
}
