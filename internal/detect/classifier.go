// Package detect classifies where an injected token is reflected in an HTML
// response: as a tag name, an attribute name, an attribute value, script
// source or page text.
package detect

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	nethtml "golang.org/x/net/html"
)

// Classify parses body and reports the most specific context token is
// reflected in. It returns nil when token does not occur in body in raw,
// entity-decoded or entity-escaped form, or when either input is empty.
//
// Rules are tried in precedence order and the first match wins:
// element name, attribute name, attribute value, script source, visible
// text. A token that is present in the raw body but cannot be attributed to
// any parsed location is reported as Unknown.
func Classify(body, token string) *Result {
	if body == "" || token == "" {
		return nil
	}

	if !containsAny(body, needles(token)) {
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return unknown(body)
	}

	forms := searchForms(token)
	elements := doc.Find("*")

	if r := matchElementName(elements, lowerAll(forms)); r != nil {
		return r
	}
	if r := matchAttributeName(elements, lowerAll(forms)); r != nil {
		return r
	}
	if r := matchAttributeValue(elements, forms); r != nil {
		return r
	}
	// script bodies are raw text, so entity-escaped reflections stay escaped there
	if r := matchScript(doc.Find("script"), needles(token)); r != nil {
		return r
	}
	if len(doc.Nodes) > 0 {
		if text := visibleText(doc.Nodes[0]); containsAny(text, forms) {
			return &Result{Context: TextNode, Snippet: shorten(text)}
		}
	}

	return unknown(body)
}

func unknown(body string) *Result {
	return &Result{Context: Unknown, Snippet: shorten(body)}
}

// matchElementName compares lower-cased forms because the parser lower-cases tag names
func matchElementName(elements *goquery.Selection, forms []string) *Result {
	var result *Result
	elements.EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		tag := goquery.NodeName(sel)
		if containsAny(tag, forms) {
			result = &Result{
				Context: ElementName,
				Snippet: shorten(outerHTML(sel)),
				Element: tag,
			}
			return false
		}
		return true
	})
	return result
}

func matchAttributeName(elements *goquery.Selection, forms []string) *Result {
	var result *Result
	elements.EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		for _, attr := range sel.Get(0).Attr {
			if containsAny(strings.ToLower(attr.Key), forms) {
				result = &Result{
					Context:   AttributeName,
					Snippet:   shorten(outerHTML(sel)),
					Element:   goquery.NodeName(sel),
					Attribute: attr.Key,
				}
				return false
			}
		}
		return true
	})
	return result
}

func matchAttributeValue(elements *goquery.Selection, forms []string) *Result {
	var result *Result
	elements.EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		for _, attr := range sel.Get(0).Attr {
			if valueMatches(attr, forms) {
				result = &Result{
					Context:   AttributeValue,
					Snippet:   shorten(outerHTML(sel)),
					Element:   goquery.NodeName(sel),
					Attribute: attr.Key,
				}
				return false
			}
		}
		return true
	})
	return result
}

// valueMatches checks one attribute value. Multi-valued attributes such as
// class or rel arrive as a single space-joined string, so any member match is
// also a match on the whole value.
func valueMatches(attr nethtml.Attribute, forms []string) bool {
	return containsAny(attr.Val, forms)
}

func matchScript(scripts *goquery.Selection, forms []string) *Result {
	var result *Result
	scripts.EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		src := rawText(sel.Get(0))
		if src != "" && containsAny(src, forms) {
			result = &Result{Context: Script, Snippet: shorten(src)}
			return false
		}
		return true
	})
	return result
}
