package detect

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	nethtml "golang.org/x/net/html"
)

const (
	// MaxSnippet is the longest snippet kept before the ellipsis
	MaxSnippet = 200
	ellipsis   = "..."
)

// shorten trims s and caps it at MaxSnippet bytes without splitting a rune.
// A whitespace-only s is kept untrimmed so the snippet is never empty.
func shorten(s string) string {
	if t := strings.TrimSpace(s); t != "" {
		s = t
	}
	if len(s) <= MaxSnippet {
		return s
	}
	cut := MaxSnippet
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + ellipsis
}

// namedEscaper mirrors the named-entity escaping most server templates use,
// where html.EscapeString emits numeric references for quotes
var namedEscaper = strings.NewReplacer(
	`&`, "&amp;",
	`<`, "&lt;",
	`>`, "&gt;",
	`"`, "&quot;",
	`'`, "&#x27;",
)

// needles returns the distinct forms of token to look for in the raw body:
// the token itself, its entity-decoded form and its entity-escaped forms
func needles(token string) []string {
	out := []string{token}
	for _, v := range []string{html.UnescapeString(token), html.EscapeString(token), namedEscaper.Replace(token)} {
		if v != "" && !contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}

// searchForms is the raw token plus its decoded form, used once the body is parsed
// (the parser has already decoded entities in text and attribute values)
func searchForms(token string) []string {
	out := []string{token}
	if decoded := html.UnescapeString(token); decoded != token && decoded != "" {
		out = append(out, decoded)
	}
	return out
}

func containsAny(haystack string, forms []string) bool {
	for _, f := range forms {
		if strings.Contains(haystack, f) {
			return true
		}
	}
	return false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func lowerAll(forms []string) []string {
	out := make([]string, len(forms))
	for i, f := range forms {
		out[i] = strings.ToLower(f)
	}
	return out
}

// outerHTML renders the element and its subtree
func outerHTML(sel *goquery.Selection) string {
	out, err := goquery.OuterHtml(sel)
	if err != nil {
		return "<" + goquery.NodeName(sel) + ">"
	}
	return out
}

// skipText lists elements whose text is not rendered as page text
var skipText = map[string]bool{
	"script":   true,
	"style":    true,
	"template": true,
}

// visibleText joins the document's rendered text nodes with single spaces,
// trimming each node and dropping empty ones
func visibleText(root *nethtml.Node) string {
	var parts []string
	var walk func(n *nethtml.Node)
	walk = func(n *nethtml.Node) {
		switch n.Type {
		case nethtml.TextNode:
			if t := strings.TrimSpace(n.Data); t != "" {
				parts = append(parts, t)
			}
			return
		case nethtml.ElementNode:
			if skipText[n.Data] {
				return
			}
		case nethtml.CommentNode, nethtml.DoctypeNode:
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return strings.Join(parts, " ")
}

// rawText concatenates the direct text children of n. Script bodies are raw
// text, so this is the script source as sent by the server.
func rawText(n *nethtml.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == nethtml.TextNode {
			b.WriteString(c.Data)
		}
	}
	return b.String()
}
