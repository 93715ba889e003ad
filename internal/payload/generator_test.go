package payload

import (
	"strings"
	"testing"

	"github.com/reflectscan-tool/internal/detect"
	"github.com/reflectscan-tool/internal/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func values(payloads []Payload) []string {
	out := make([]string, len(payloads))
	for i, p := range payloads {
		out[i] = p.Value
	}
	return out
}

func TestGenerateDeclarationOrder(t *testing.T) {
	gen := NewGenerator(token.NewSource(1))

	got := gen.Generate(detect.AttributeValue, "q", 3)
	require.Len(t, got, 3)

	tok := got[0].Token
	assert.Equal(t, []string{
		`">` + tok + `<`,
		`"><img src=x onerror=alert("` + tok + `")>`,
		tok,
	}, values(got))
}

func TestGenerateSharesOneToken(t *testing.T) {
	gen := NewGenerator(token.NewSource(1))

	got := gen.Generate(detect.TextNode, "q", 5)
	require.Len(t, got, 2)

	for _, p := range got {
		assert.Equal(t, got[0].Token, p.Token)
		assert.Contains(t, p.Value, p.Token)
	}
}

func TestGenerateFreshTokenPerCall(t *testing.T) {
	gen := NewGenerator(token.NewSource(1))

	first := gen.Generate(detect.Script, "q", 1)
	second := gen.Generate(detect.Script, "q", 1)

	assert.NotEqual(t, first[0].Token, second[0].Token)
}

func TestGenerateTemplates(t *testing.T) {
	gen := NewGenerator(token.NewSource(3))

	tests := []struct {
		hint detect.Context
		want []string
	}{
		{detect.AttributeName, []string{"%s"}},
		{detect.TextNode, []string{"<script>/*%s*/</script>", "%s"}},
		{detect.Script, []string{`";alert("%s");//`, "/*%s*/"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.hint), func(t *testing.T) {
			got := gen.Generate(tt.hint, "q", 10)
			require.Len(t, got, len(tt.want))
			for i, p := range got {
				assert.Equal(t, strings.ReplaceAll(tt.want[i], "%s", p.Token), p.Value)
			}
		})
	}
}

func TestGenerateAttributeNameIsBareToken(t *testing.T) {
	gen := NewGenerator(token.NewSource(5))

	got := gen.Generate(detect.AttributeName, "q", 3)
	require.Len(t, got, 1)
	assert.Equal(t, got[0].Token, got[0].Value)
}

func TestGenerateUnknownHint(t *testing.T) {
	gen := NewGenerator(token.NewSource(5))

	got := gen.Generate(detect.Context("css"), "q", 3)
	require.Len(t, got, 1)
	assert.Equal(t, got[0].Token, got[0].Value)
}

func TestGenerateLimit(t *testing.T) {
	gen := NewGenerator(token.NewSource(5))

	assert.Len(t, gen.Generate(detect.AttributeValue, "q", 1), 1)
	assert.Len(t, gen.Generate(detect.AttributeValue, "q", 2), 2)
	assert.Empty(t, gen.Generate(detect.AttributeValue, "q", 0))
}

func TestGenerateRandomizeIsSeeded(t *testing.T) {
	a := NewGenerator(token.NewSource(11), WithRandomize(true))
	b := NewGenerator(token.NewSource(11), WithRandomize(true))

	for i := 0; i < 5; i++ {
		assert.Equal(t,
			values(a.Generate(detect.AttributeValue, "q", 3)),
			values(b.Generate(detect.AttributeValue, "q", 3)))
	}
}

func TestGenerateRandomizeKeepsPool(t *testing.T) {
	gen := NewGenerator(token.NewSource(13), WithRandomize(true))

	got := gen.Generate(detect.AttributeValue, "q", 3)
	tok := got[0].Token

	assert.ElementsMatch(t, []string{
		`">` + tok + `<`,
		`"><img src=x onerror=alert("` + tok + `")>`,
		tok,
	}, values(got))
}

func TestParamNameIsNotAFormatString(t *testing.T) {
	withParam := func(tok, param string) string { return param + "=" + tok }
	gen := NewGenerator(token.NewSource(2), WithTemplates(map[detect.Context][]Template{
		detect.TextNode: {withParam},
	}))

	got := gen.Generate(detect.TextNode, "%s%d", 1)
	require.Len(t, got, 1)
	assert.Equal(t, "%s%d="+got[0].Token, got[0].Value)
}
