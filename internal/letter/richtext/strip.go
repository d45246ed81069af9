// Package richtext cleans the rich text typed into consultation editors.
//
// StripToPlainText produces compact single-line text for inline fields.
// SanitizeFormatting keeps a small allow-list of formatting tags for
// narrative fields, and Parse turns that markup into styled runs for layout.
// None of the functions fail: malformed markup is cleaned on a best-effort
// basis.
package richtext

import (
	"strings"

	"golang.org/x/net/html"
)

// entityDecoder decodes the fixed entity set recognised in stored text.
// Other entities are left as typed.
var entityDecoder = strings.NewReplacer(
	"&nbsp;", " ",
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
)

// StripToPlainText removes every tag, decodes the fixed entity set and
// collapses whitespace into single spaces. Tags are removed once from the
// stored markup; brackets that only appear after decoding, as in
// "&lt;normal", are typed text and become spaces, so the result never
// contains '<' or '>'.
func StripToPlainText(s string) string {
	if s == "" {
		return ""
	}
	s = removeTags(s)
	// Decoding only shortens the text and brackets turn into spaces, so this
	// terminates.
	for {
		next := strings.Map(func(r rune) rune {
			if r == '<' || r == '>' {
				return ' '
			}
			return r
		}, entityDecoder.Replace(s))
		if next == s {
			break
		}
		s = next
	}
	return strings.Join(strings.Fields(s), " ")
}

// removeTags keeps the raw bytes of text tokens and drops everything else,
// including the content of script and style elements. Block-level tags leave
// a space behind so words from adjacent paragraphs stay apart.
func removeTags(s string) string {
	if !strings.ContainsRune(s, '<') {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	z := html.NewTokenizer(strings.NewReader(s))
	skip := ""
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return b.String()
		case html.TextToken:
			if skip == "" {
				b.Write(z.Raw())
			}
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			if skip != "" {
				continue
			}
			if tt == html.StartTagToken && dropsContent(string(name)) {
				skip = string(name)
				continue
			}
			if separatesWords(string(name)) {
				b.WriteByte(' ')
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if string(name) == skip {
				skip = ""
				continue
			}
			if skip == "" && separatesWords(string(name)) {
				b.WriteByte(' ')
			}
		}
	}
}

func separatesWords(tag string) bool {
	switch tag {
	case "br", "p", "div", "li", "ul", "ol", "tr", "td", "th", "table",
		"h1", "h2", "h3", "h4", "h5", "h6", "blockquote", "pre", "hr":
		return true
	}
	return false
}

func dropsContent(tag string) bool {
	switch tag {
	case "script", "style":
		return true
	}
	return false
}
