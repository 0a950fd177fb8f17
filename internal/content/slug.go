package content

import (
	"regexp"
	"strings"
	"unicode"
)

const MaxSlugLength = 50

// DefaultStopWords are ignored when deciding whether a title carries enough ASCII content.
var DefaultStopWords = []string{
	"a", "an", "the", "and", "or", "of", "to", "in", "on", "at", "for", "with", "is", "by",
}

var (
	nonASCIIRun  = regexp.MustCompile(`[^\x00-\x7F]+`)
	nonSlugRun   = regexp.MustCompile(`[^a-z0-9]+`)
	repeatedDash = regexp.MustCompile(`-{2,}`)
)

// Slugger derives URL-safe identifiers from titles.
type Slugger struct {
	stopWords map[string]struct{}
}

func NewSlugger(stopWords []string) *Slugger {
	words := make(map[string]struct{}, len(stopWords))
	for _, w := range stopWords {
		words[strings.ToLower(strings.TrimSpace(w))] = struct{}{}
	}
	return &Slugger{stopWords: words}
}

// Slugify returns a slug matching ^[a-z0-9-]{1,50}$. Titles without at least three
// meaningful ASCII characters fall back to "post-{dateFallback}".
func (s *Slugger) Slugify(title, dateFallback string) string {
	fallback := fallbackSlug(dateFallback)

	if strings.TrimSpace(title) == "" {
		return fallback
	}

	ascii := strings.TrimSpace(nonASCIIRun.ReplaceAllString(title, " "))
	if s.meaningfulLength(ascii) < 3 {
		return fallback
	}

	slug := nonSlugRun.ReplaceAllString(strings.ToLower(ascii), "-")
	slug = repeatedDash.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")
	if len(slug) > MaxSlugLength {
		slug = strings.TrimRight(slug[:MaxSlugLength], "-")
	}
	if slug == "" {
		return fallback
	}
	return slug
}

func (s *Slugger) meaningfulLength(ascii string) int {
	n := 0
	for _, word := range strings.Fields(ascii) {
		if _, stop := s.stopWords[strings.ToLower(word)]; stop {
			continue
		}
		for _, r := range word {
			if !unicode.IsSpace(r) {
				n++
			}
		}
	}
	return n
}

func fallbackSlug(date string) string {
	clean := nonSlugRun.ReplaceAllString(strings.ToLower(date), "-")
	clean = strings.Trim(repeatedDash.ReplaceAllString(clean, "-"), "-")
	if clean == "" {
		return "post"
	}
	slug := "post-" + clean
	if len(slug) > MaxSlugLength {
		slug = strings.TrimRight(slug[:MaxSlugLength], "-")
	}
	return slug
}
