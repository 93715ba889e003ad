package payload

import (
	"fmt"

	"github.com/reflectscan-tool/internal/detect"
	"github.com/reflectscan-tool/internal/token"
)

// Payload is one rendered injection string and the token embedded in it
type Payload struct {
	Value string `json:"value" yaml:"value"`
	Token string `json:"token" yaml:"token"`
}

// Template renders a payload from a token and the name of the probed parameter.
// Templates build strings with explicit formatting so a caller-controlled
// parameter name is never interpreted as a format string.
type Template func(tok, param string) string

func bare(tok, _ string) string { return tok }

func closeAttribute(tok, _ string) string {
	return fmt.Sprintf(`">%s<`, tok)
}

func imgOnerror(tok, _ string) string {
	return fmt.Sprintf(`"><img src=x onerror=alert("%s")>`, tok)
}

func scriptComment(tok, _ string) string {
	return fmt.Sprintf(`<script>/*%s*/</script>`, tok)
}

func stringBreakout(tok, _ string) string {
	return fmt.Sprintf(`";alert("%s");//`, tok)
}

func jsComment(tok, _ string) string {
	return fmt.Sprintf(`/*%s*/`, tok)
}

// DefaultTemplates maps each context hint to its templates in declaration order
func DefaultTemplates() map[detect.Context][]Template {
	return map[detect.Context][]Template{
		// used as the parameter name, so no markup that would break the request
		detect.AttributeName:  {bare},
		detect.AttributeValue: {closeAttribute, imgOnerror, bare},
		detect.TextNode:       {scriptComment, bare},
		detect.Script:         {stringBreakout, jsComment},
	}
}

// Generator renders payloads for a context hint
type Generator struct {
	tokens    *token.Generator
	src       token.Source
	randomize bool
	templates map[detect.Context][]Template
}

// Option configures a Generator
type Option func(*Generator)

// WithRandomize shuffles each template pool before truncating it
func WithRandomize(on bool) Option {
	return func(g *Generator) { g.randomize = on }
}

// WithTemplates replaces the template table
func WithTemplates(templates map[detect.Context][]Template) Option {
	return func(g *Generator) { g.templates = templates }
}

// NewGenerator creates a payload generator. src drives both token minting and shuffling.
func NewGenerator(src token.Source, opts ...Option) *Generator {
	g := &Generator{
		tokens:    token.NewGenerator(src),
		src:       src,
		templates: DefaultTemplates(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate mints one token and renders up to limit payloads for hint.
// An unrecognized hint yields the bare token alone.
func (g *Generator) Generate(hint detect.Context, param string, limit int) []Payload {
	tok := g.tokens.Next()

	templates, ok := g.templates[hint]
	if !ok || len(templates) == 0 {
		return []Payload{{Value: tok, Token: tok}}
	}

	pool := make([]Template, len(templates))
	copy(pool, templates)
	if g.randomize {
		g.src.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	}

	if limit < 0 {
		limit = 0
	}
	if limit < len(pool) {
		pool = pool[:limit]
	}

	out := make([]Payload, 0, len(pool))
	for _, render := range pool {
		out = append(out, Payload{Value: render(tok, param), Token: tok})
	}
	return out
}
