package content

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitize(t *testing.T) {
	s := NewSanitizer(nil)

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "braces", input: "use {name} here", want: "use &#123;name&#125; here"},
		{name: "nested braces", input: "{{a}}", want: "&#123;&#123;a&#125;&#125;"},
		{name: "less than number", input: "value is <100ms", want: "value is &lt;100ms"},
		{name: "greater than number", input: "latency >5s", want: "latency &gt;5s"},
		{name: "pseudo tag", input: "use <example> syntax", want: "use &lt;example&gt; syntax"},
		{name: "closing tag", input: "end </thinking> here", want: "end &lt;/thinking&gt; here"},
		{name: "tag with attributes", input: `<my-tag a="b">`, want: `&lt;my-tag a="b"&gt;`},
		{name: "uppercase left alone", input: "<T> generic", want: "<T> generic"},
		{name: "plain text", input: "nothing to do", want: "nothing to do"},
		{name: "unbalanced brace", input: "open { only", want: "open { only"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.Sanitize(tt.input))
		})
	}
}

func TestSanitize_EscapesNumericComparison(t *testing.T) {
	got := NewSanitizer(nil).Sanitize("value is <100ms")

	assert.Contains(t, got, "&lt;100")
	assert.NotContains(t, got, "<100")
}

func TestSanitize_Idempotent(t *testing.T) {
	s := NewSanitizer(nil)
	inputs := []string{
		"",
		"plain",
		"{a} <1 >2 <b>",
		"{{a}}",
		"<a <b>>",
		"<b>5",
		"{<c>}",
		"<x {y}>",
		"&lt;already&gt; &#123;escaped&#125;",
		"mixed 한글 {변수} <100 <tag attr='1'> </tag>",
		"```\n{code}\n```",
		"<<a>>",
		"{ {} }",
		"use `{x}` and {y}",
		"~~~\n<a>\n",
	}

	for _, in := range inputs {
		once := s.Sanitize(in)
		assert.Equal(t, once, s.Sanitize(once), "input %q", in)
	}
}

func TestSanitize_CustomRules(t *testing.T) {
	s := NewSanitizer([]Rule{{
		Name:        "dollar",
		Pattern:     regexp.MustCompile(`\$`),
		Replacement: "&#36;",
	}})

	assert.Equal(t, "costs &#36;5 {x}", s.Sanitize("costs $5 {x}"))
}

func TestSanitize_LeavesCodeUntouched(t *testing.T) {
	s := NewSanitizer(nil)

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "fenced block",
			input: "before {x}\n```go\nif a <1 { return <T>() }\n```\nafter <b>",
			want:  "before &#123;x&#125;\n```go\nif a <1 { return <T>() }\n```\nafter &lt;b&gt;",
		},
		{
			name:  "tilde fence",
			input: "~~~\n<div>{x}</div>\n~~~",
			want:  "~~~\n<div>{x}</div>\n~~~",
		},
		{
			name:  "inline code span",
			input: "call `map[string]{}` when n <5",
			want:  "call `map[string]{}` when n &lt;5",
		},
		{
			name:  "unterminated fence",
			input: "text {a}\n```\n{b}",
			want:  "text &#123;a&#125;\n```\n{b}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.Sanitize(tt.input))
		})
	}
}
