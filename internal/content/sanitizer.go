package content

import (
	"regexp"
	"strings"
)

var inlineCode = regexp.MustCompile("`[^`\n]+`")

// Rule is a single rewrite pass of the sanitizer.
type Rule struct {
	Name        string
	Pattern     *regexp.Regexp
	Replacement string
}

// DefaultRules is the ordered rewrite chain. Order matters: braces are escaped first,
// then numeric comparisons, then anything that still looks like a tag. None of the
// replacements re-introduce a character a later rule triggers on.
var DefaultRules = []Rule{
	{
		Name:        "braces",
		Pattern:     regexp.MustCompile(`\{([^{}]*)\}`),
		Replacement: "&#123;${1}&#125;",
	},
	{
		Name:        "less-than-number",
		Pattern:     regexp.MustCompile(`<([0-9])`),
		Replacement: "&lt;${1}",
	},
	{
		Name:        "greater-than-number",
		Pattern:     regexp.MustCompile(`>([0-9])`),
		Replacement: "&gt;${1}",
	},
	{
		Name:        "pseudo-tag",
		Pattern:     regexp.MustCompile(`<(/?[a-z_-]+)([^<>]*)>`),
		Replacement: "&lt;${1}${2}&gt;",
	},
}

// Sanitizer escapes text that the site renderer would otherwise treat as template
// expressions or markup.
type Sanitizer struct {
	rules []Rule
}

func NewSanitizer(rules []Rule) *Sanitizer {
	if len(rules) == 0 {
		rules = DefaultRules
	}
	return &Sanitizer{rules: rules}
}

// Sanitize applies every rule in order, each one until it stops matching.
// Fenced code blocks and inline code spans are passed through untouched.
// Every replacement removes at least one trigger character and never adds a
// backtick, so the result is a fixed point: Sanitize(Sanitize(s)) == Sanitize(s).
func (s *Sanitizer) Sanitize(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	var prose []string
	inFence := false

	flush := func() {
		if len(prose) > 0 {
			out = append(out, s.prose(strings.Join(prose, "\n")))
			prose = prose[:0]
		}
	}

	for _, line := range lines {
		if fenceLine.MatchString(line) {
			flush()
			inFence = !inFence
			out = append(out, line)
			continue
		}
		if inFence {
			out = append(out, line)
			continue
		}
		prose = append(prose, line)
	}
	flush()

	return strings.Join(out, "\n")
}

// prose sanitizes text outside fences, keeping inline code spans verbatim.
func (s *Sanitizer) prose(text string) string {
	spans := inlineCode.FindAllStringIndex(text, -1)
	if len(spans) == 0 {
		return s.apply(text)
	}

	var b strings.Builder
	last := 0
	for _, span := range spans {
		b.WriteString(s.apply(text[last:span[0]]))
		b.WriteString(text[span[0]:span[1]])
		last = span[1]
	}
	b.WriteString(s.apply(text[last:]))
	return b.String()
}

func (s *Sanitizer) apply(text string) string {
	for _, rule := range s.rules {
		for rule.Pattern.MatchString(text) {
			next := rule.Pattern.ReplaceAllString(text, rule.Replacement)
			if next == text {
				break
			}
			text = next
		}
	}
	return text
}
