package ingest

import (
	"regexp"
	"strings"

	"github.com/WessleyAI/article-indexer/engine/cms"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var (
	// newlineSpace matches horizontal whitespace around a newline.
	newlineSpace = regexp.MustCompile(`[ \t]*\n[ \t]*`)
	// breakRun matches a run of line breaks with whitespace between them.
	breakRun = regexp.MustCompile(`[ \t\r]*\n[ \t\r\n]*`)
)

// blockTags end a line when stripped.
var blockTags = map[atom.Atom]bool{
	atom.Address: true, atom.Article: true, atom.Aside: true, atom.Blockquote: true,
	atom.Br: true, atom.Dd: true, atom.Div: true, atom.Dl: true, atom.Dt: true,
	atom.Figcaption: true, atom.Figure: true, atom.Footer: true, atom.H1: true,
	atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Header: true, atom.Hr: true, atom.Li: true, atom.Main: true, atom.Nav: true,
	atom.Ol: true, atom.P: true, atom.Pre: true, atom.Section: true, atom.Table: true,
	atom.Td: true, atom.Th: true, atom.Tr: true, atom.Ul: true,
}

// NormalizeText cleans one raw text fragment. Markup and entities are
// stripped only when the input contains '<' or '&'. Non-breaking spaces
// become plain spaces, whitespace around newlines is removed, and leading and
// trailing newlines are trimmed. NormalizeText(NormalizeText(s)) equals
// NormalizeText(s) for text that does not decode to new markup.
func NormalizeText(raw string) string {
	text := raw
	if strings.ContainsAny(text, "<&") {
		text = stripMarkup(text)
	}
	text = strings.ReplaceAll(text, "\u00a0", " ")
	text = newlineSpace.ReplaceAllString(text, "\n")
	return strings.Trim(text, "\n")
}

// stripMarkup returns the text content of an HTML fragment. Block elements
// and <br> become line breaks; script and style content is dropped.
func stripMarkup(s string) string {
	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(s))
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return breakRun.ReplaceAllString(b.String(), "\n")
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			a := atom.Lookup(name)
			if a == atom.Script || a == atom.Style {
				skip++
			}
			if blockTags[a] {
				b.WriteByte('\n')
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			a := atom.Lookup(name)
			if (a == atom.Script || a == atom.Style) && skip > 0 {
				skip--
			}
			if blockTags[a] {
				b.WriteByte('\n')
			}
		}
	}
}

// ExtractText joins the normalized text of every "text" element, in order,
// with single spaces. Elements that normalize to nothing are skipped.
func ExtractText(elements []cms.ContentElement) string {
	parts := make([]string, 0, len(elements))
	for _, el := range elements {
		if !el.IsText() {
			continue
		}
		if s := NormalizeText(string(el.Content)); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}
