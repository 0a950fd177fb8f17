package taxonomy

import (
	"regexp"
	"sort"
	"strings"

	"notion_sync/internal/domain"
)

// Rule maps a keyword set to a taxonomy path and tags.
type Rule struct {
	Name     string          `yaml:"name"`
	Keywords []string        `yaml:"keywords"`
	Taxonomy domain.Taxonomy `yaml:"taxonomy"`
	Tags     []string        `yaml:"tags"`
}

// DefaultRules are evaluated in order: collaboration/project before AI/ML.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name: "collaboration",
			Keywords: []string{
				"hackathon", "collaboration", "project", "team", "teamwork", "side project", "open source",
				"해커톤", "협업", "프로젝트", "팀",
			},
			Taxonomy: domain.Taxonomy{Primary: "Project", Secondary: "Collaboration"},
			Tags:     []string{"project", "collaboration"},
		},
		{
			Name: "ai",
			Keywords: []string{
				"ai", "llm", "gpt", "claude", "anthropic", "openai", "gemini", "machine learning", "deep learning",
				"neural", "prompt", "agent", "인공지능", "머신러닝", "딥러닝",
			},
			Taxonomy: domain.Taxonomy{Primary: "Tech", Secondary: "AI"},
			Tags:     []string{"ai", "machine-learning"},
		},
	}
}

func DefaultFallback() Rule {
	return Rule{
		Name:     "default",
		Taxonomy: domain.Taxonomy{Primary: "Tech", Secondary: "General"},
		Tags:     []string{"dev"},
	}
}

type matcher struct {
	rule     Rule
	patterns []*regexp.Regexp
	literals []string
}

// Categorizer assigns a taxonomy path and tags from keyword heuristics.
// It is a coarse classifier: the first matching rule wins.
type Categorizer struct {
	matchers []matcher
	fallback Rule
}

var asciiWord = regexp.MustCompile(`^[A-Za-z0-9 _-]+$`)

func New(rules []Rule, fallback Rule) *Categorizer {
	c := &Categorizer{fallback: fallback}
	for _, rule := range rules {
		m := matcher{rule: rule}
		for _, kw := range rule.Keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw == "" {
				continue
			}
			if asciiWord.MatchString(kw) {
				m.patterns = append(m.patterns, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(kw)+`\b`))
				continue
			}
			m.literals = append(m.literals, kw)
		}
		c.matchers = append(c.matchers, m)
	}
	return c
}

// Categorize checks every rule against the title, then every rule against the body.
func (c *Categorizer) Categorize(title, body string) (domain.Taxonomy, []string) {
	for _, text := range []string{title, body} {
		lower := strings.ToLower(text)
		for _, m := range c.matchers {
			if m.matches(text, lower) {
				return m.rule.Taxonomy, normalizeTags(m.rule.Tags)
			}
		}
	}
	return c.fallback.Taxonomy, normalizeTags(c.fallback.Tags)
}

func (m matcher) matches(text, lower string) bool {
	for _, p := range m.patterns {
		if p.MatchString(text) {
			return true
		}
	}
	for _, lit := range m.literals {
		if strings.Contains(lower, lit) {
			return true
		}
	}
	return false
}

// MergeTags returns the sorted union of the given tag lists.
func MergeTags(lists ...[]string) []string {
	var all []string
	for _, l := range lists {
		all = append(all, l...)
	}
	return normalizeTags(all)
}

func normalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
