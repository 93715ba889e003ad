package detect

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tok = "PAY_abc123"

func TestClassifyContexts(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		token     string
		context   Context
		element   string
		attribute string
		snippet   string
	}{
		{
			name:      "attribute value",
			body:      `<div data-q="PAY_abc123">hello</div>`,
			token:     tok,
			context:   AttributeValue,
			element:   "div",
			attribute: "data-q",
			snippet:   `data-q="PAY_abc123"`,
		},
		{
			name:      "attribute name",
			body:      `<div PAY_abc123="1">attr-name</div>`,
			token:     tok,
			context:   AttributeName,
			element:   "div",
			attribute: "pay_abc123",
			snippet:   `<div pay_abc123="1">`,
		},
		{
			name:    "text node",
			body:    `<p>Here is PAY_abc123 inside text</p>`,
			token:   tok,
			context: TextNode,
			snippet: "Here is PAY_abc123 inside text",
		},
		{
			name:    "script",
			body:    `<script>var x = "PAY_abc123"</script>`,
			token:   tok,
			context: Script,
			snippet: `var x = "PAY_abc123"`,
		},
		{
			name:    "element name",
			body:    `<PAY_abc123>hi</PAY_abc123>`,
			token:   tok,
			context: ElementName,
			element: "pay_abc123",
			snippet: "<pay_abc123>hi</pay_abc123>",
		},
		{
			name:      "class member",
			body:      `<div class="x TOKEN y">content</div>`,
			token:     "TOKEN",
			context:   AttributeValue,
			element:   "div",
			attribute: "class",
		},
		{
			name:    "comment only",
			body:    `<p>hi</p><!-- PAY_abc123 -->`,
			token:   tok,
			context: Unknown,
			snippet: "<!-- PAY_abc123 -->",
		},
		{
			name:    "style is not visible text",
			body:    `<style>/* PAY_abc123 */</style><p>x</p>`,
			token:   tok,
			context: Unknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.body, tt.token)
			require.NotNil(t, got)

			assert.Equal(t, tt.context, got.Context)
			assert.Equal(t, tt.element, got.Element)
			assert.Equal(t, tt.attribute, got.Attribute)
			assert.NotEmpty(t, got.Snippet)
			if tt.snippet != "" {
				assert.Contains(t, got.Snippet, tt.snippet)
			}
		})
	}
}

func TestClassifyAbsent(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		token string
	}{
		{"empty body", "", tok},
		{"empty token", "<p>PAY_abc123</p>", ""},
		{"not reflected", "<p>hello world</p>", tok},
		{"different token", "<p>PAY_abc124</p>", tok},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Nil(t, Classify(tt.body, tt.token))
		})
	}
}

func TestNameBeforeValue(t *testing.T) {
	got := Classify(`<div PAY_abc123="PAY_abc123">PAY_abc123</div>`, tok)
	require.NotNil(t, got)

	assert.Equal(t, AttributeName, got.Context)
}

func TestElementNameBeforeAttributeName(t *testing.T) {
	got := Classify(`<PAY_abc123 PAY_abc123="1"></PAY_abc123>`, tok)
	require.NotNil(t, got)

	assert.Equal(t, ElementName, got.Context)
	assert.Equal(t, "pay_abc123", got.Element)
}

func TestEscapedTokenInScript(t *testing.T) {
	got := Classify(`<script>var x="&lt;b&gt;PAY_abc123"</script>`, "<b>PAY_abc123")
	require.NotNil(t, got)

	assert.Equal(t, Script, got.Context)
	assert.Contains(t, got.Snippet, "&lt;b&gt;PAY_abc123")
}

func TestWhitespaceTokenKeepsSnippet(t *testing.T) {
	got := Classify("   ", " ")
	require.NotNil(t, got)

	assert.Equal(t, Unknown, got.Context)
	assert.NotEmpty(t, got.Snippet)
}

func TestAttributeValueBeforeText(t *testing.T) {
	got := Classify(`<p>PAY_abc123</p><a href="/x?q=PAY_abc123">link</a>`, tok)
	require.NotNil(t, got)

	assert.Equal(t, AttributeValue, got.Context)
	assert.Equal(t, "a", got.Element)
	assert.Equal(t, "href", got.Attribute)
}

func TestScriptIsolation(t *testing.T) {
	body := `<script>var a="TOKEN"</script><p>TOKEN2</p>`

	first := Classify(body, "TOKEN")
	require.NotNil(t, first)
	assert.Equal(t, Script, first.Context)

	second := Classify(body, "TOKEN2")
	require.NotNil(t, second)
	assert.Equal(t, TextNode, second.Context)
}

func TestOnlyElementContextsCarryNames(t *testing.T) {
	got := Classify(`<script>var x = "PAY_abc123"</script>`, tok)
	require.NotNil(t, got)

	assert.Empty(t, got.Element)
	assert.Empty(t, got.Attribute)
}

func TestEscapedReflection(t *testing.T) {
	// the server escaped the payload; the parser decodes it back
	got := Classify(`<p>&lt;b&gt;PAY_abc123</p>`, "<b>PAY_abc123")
	require.NotNil(t, got)

	assert.Equal(t, TextNode, got.Context)
	assert.Equal(t, "<b>PAY_abc123", got.Snippet)
}

func TestEscapedAttributeBreakout(t *testing.T) {
	body := `<input value="&quot;&gt;PAY_abc123&lt;">`

	got := Classify(body, `">PAY_abc123<`)
	require.NotNil(t, got)

	assert.Equal(t, AttributeValue, got.Context)
	assert.Equal(t, "input", got.Element)
	assert.Equal(t, "value", got.Attribute)
}

func TestDecodedTokenReflection(t *testing.T) {
	// the token was sent entity-encoded and the server decoded it
	got := Classify(`<p>PAY_a&b</p>`, "PAY_a&amp;b")
	require.NotNil(t, got)

	assert.Equal(t, TextNode, got.Context)
}

func TestUnknownSnippetIsBounded(t *testing.T) {
	body := strings.Repeat("<p>filler</p>", 100) + "<!-- PAY_abc123 -->"

	got := Classify(body, tok)
	require.NotNil(t, got)

	assert.Equal(t, Unknown, got.Context)
	assert.Len(t, got.Snippet, MaxSnippet+len("..."))
	assert.True(t, strings.HasPrefix(body, strings.TrimSuffix(got.Snippet, "...")))
}

func TestTextSnippetIsTruncated(t *testing.T) {
	body := "<p>" + tok + " " + strings.Repeat("lorem ipsum ", 60) + "</p>"

	got := Classify(body, tok)
	require.NotNil(t, got)

	assert.Equal(t, TextNode, got.Context)
	assert.True(t, strings.HasSuffix(got.Snippet, "..."))
	assert.Len(t, got.Snippet, MaxSnippet+3)
}

func TestClassifyIsIdempotent(t *testing.T) {
	body := `<div class="a PAY_abc123"><script>x="PAY_abc123"</script></div>`

	assert.Equal(t, Classify(body, tok), Classify(body, tok))
}

func TestMalformedInputNeverFails(t *testing.T) {
	bodies := []string{
		`<div <p class="PAY_abc123"`,
		`<p>a < b PAY_abc123</p>`,
		"<p>PAY_abc123\x00</p>",
		`</div></div>PAY_abc123<<<>`,
		`<table><tr><td>PAY_abc123</table></b></i>`,
		`<scr<script>ipt>PAY_abc123</script>`,
		"\xff\xfePAY_abc123",
		`<!-- PAY_abc1` + `23`,
	}

	for _, body := range bodies {
		var got *Result
		assert.NotPanics(t, func() { got = Classify(body, tok) }, body)
		if assert.NotNil(t, got, body) {
			assert.True(t, got.Context.Valid(), body)
			assert.NotEmpty(t, got.Snippet, body)
		}
	}
}

func TestStrayAngleBracketKeepsText(t *testing.T) {
	got := Classify(`<p>a < b PAY_abc123</p>`, tok)
	require.NotNil(t, got)

	assert.Equal(t, TextNode, got.Context)
	assert.Equal(t, "a < b PAY_abc123", got.Snippet)
}

func TestNullByteInText(t *testing.T) {
	got := Classify("<p>PAY_abc123\x00</p>", tok)
	require.NotNil(t, got)

	assert.Equal(t, TextNode, got.Context)
}
