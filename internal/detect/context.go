package detect

import (
	"fmt"
	"strings"
)

// Context is the markup location a token was reflected in
type Context string

// Contexts in precedence order, most specific first
const (
	ElementName    Context = "element-name"
	AttributeName  Context = "attribute-name"
	AttributeValue Context = "attribute-value"
	Script         Context = "script"
	TextNode       Context = "text-node"
	Unknown        Context = "unknown"
)

var precedence = []Context{ElementName, AttributeName, AttributeValue, Script, TextNode, Unknown}

// All returns every context in precedence order
func All() []Context {
	out := make([]Context, len(precedence))
	copy(out, precedence)
	return out
}

// Rank is the position of c in the precedence order, or -1 for an unrecognized value
func (c Context) Rank() int {
	for i, p := range precedence {
		if p == c {
			return i
		}
	}
	return -1
}

// Valid reports whether c is one of the defined contexts
func (c Context) Valid() bool {
	return c.Rank() >= 0
}

// NamesElement reports whether results in this context carry an element tag
func (c Context) NamesElement() bool {
	return c == ElementName || c == AttributeName || c == AttributeValue
}

func (c Context) String() string {
	return string(c)
}

// ParseContext parses a context name, case-insensitively
func ParseContext(name string) (Context, error) {
	c := Context(strings.ToLower(strings.TrimSpace(name)))
	if !c.Valid() {
		return "", fmt.Errorf("unknown context %q", name)
	}
	return c, nil
}

// Result describes where a token was found.
// Element and Attribute are only set when Context.NamesElement() is true.
type Result struct {
	Context   Context `json:"context" yaml:"context"`
	Snippet   string  `json:"snippet" yaml:"snippet"`
	Element   string  `json:"element_tag,omitempty" yaml:"element_tag,omitempty"`
	Attribute string  `json:"attribute_name,omitempty" yaml:"attribute_name,omitempty"`
}
