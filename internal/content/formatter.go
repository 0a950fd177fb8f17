package content

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	longLineThreshold = 800
	fragmentTarget    = 600
)

var (
	headerLine     = regexp.MustCompile(`^#{1,6}\s`)
	boldHeaderLine = regexp.MustCompile(`^\*\*[^*].*\*\*$`)
	boldOpenLine   = regexp.MustCompile(`^\*\*[^*]`)
	boldCloseLine  = regexp.MustCompile(`[^*]\*\*$`)
	listItemLine   = regexp.MustCompile(`^\s*([-*•]|\d+[.)])\s+`)
	bulletLine     = regexp.MustCompile(`^\s*[-*•]\s+`)
	fenceLine      = regexp.MustCompile("^\\s*(```|~~~)")
	sentenceBreak  = regexp.MustCompile(`([.。])\s+([A-Z\x{AC00}-\x{D7A3}\x{1100}-\x{11FF}\x{3130}-\x{318F}])`)
	excessBlank    = regexp.MustCompile(`\n{5,}`)
)

// Format normalizes paragraph structure so converted pages render consistently.
// It never fails; fenced code blocks are passed through untouched.
func Format(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	lines := strings.Split(text, "\n")
	f := &formatter{out: make([]string, 0, len(lines))}

	for i := 0; i < len(lines); i++ {
		line := lines[i]

		if f.inFence {
			f.out = append(f.out, line)
			if fenceLine.MatchString(line) {
				f.inFence = false
			}
			continue
		}
		if fenceLine.MatchString(line) {
			f.flushPendingBlank()
			f.inList = false
			f.inFence = true
			f.out = append(f.out, line)
			continue
		}

		if strings.TrimSpace(line) == "" {
			f.inList = false
			if f.blankAfter {
				continue
			}
			f.out = append(f.out, "")
			continue
		}

		switch {
		case headerLine.MatchString(line) || boldHeaderLine.MatchString(strings.TrimSpace(line)):
			f.isolate(line)
		case boldOpenLine.MatchString(strings.TrimSpace(line)) && strings.Count(line, "**") == 1:
			if end := boldBlockEnd(lines, i); end > i {
				f.isolate(lines[i : end+1]...)
				i = end
				continue
			}
			f.paragraph(line)
		case listItemLine.MatchString(line):
			f.listItem(line)
		default:
			f.paragraph(line)
		}
	}

	result := strings.Join(f.out, "\n")
	result = excessBlank.ReplaceAllString(result, "\n\n\n")
	result = strings.TrimSpace(result)
	if result == "" {
		return "\n"
	}
	return "\n" + result + "\n"
}

type formatter struct {
	out        []string
	inFence    bool
	inList     bool
	blankAfter bool
}

// isolate emits lines with exactly one blank line before and after them.
func (f *formatter) isolate(lines ...string) {
	f.trimTrailingBlank()
	if len(f.out) > 0 {
		f.out = append(f.out, "")
	}
	f.out = append(f.out, lines...)
	f.inList = false
	f.blankAfter = true
}

func (f *formatter) listItem(line string) {
	if !f.inList && bulletLine.MatchString(line) {
		f.trimTrailingBlank()
		if len(f.out) > 0 {
			f.out = append(f.out, "")
		}
		f.blankAfter = false
		f.inList = true
		f.out = append(f.out, line)
		return
	}
	f.flushPendingBlank()
	f.inList = true
	f.out = append(f.out, line)
}

func (f *formatter) paragraph(line string) {
	if f.inList {
		if strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t") {
			f.out = append(f.out, line)
			return
		}
		f.inList = false
		f.ensureBlank()
	}
	f.flushPendingBlank()
	if utf8.RuneCountInString(line) > longLineThreshold {
		f.out = append(f.out, splitLongLine(line)...)
		return
	}
	f.out = append(f.out, line)
}

func (f *formatter) flushPendingBlank() {
	if f.blankAfter {
		f.out = append(f.out, "")
		f.blankAfter = false
	}
}

func (f *formatter) ensureBlank() {
	if len(f.out) > 0 && f.out[len(f.out)-1] != "" {
		f.out = append(f.out, "")
	}
}

func (f *formatter) trimTrailingBlank() {
	for len(f.out) > 0 && f.out[len(f.out)-1] == "" {
		f.out = f.out[:len(f.out)-1]
	}
	f.blankAfter = false
}

// boldBlockEnd returns the index of the line closing a "**" block opened at start,
// or -1 when the block never closes before a blank line.
func boldBlockEnd(lines []string, start int) int {
	for j := start + 1; j < len(lines); j++ {
		trimmed := strings.TrimSpace(lines[j])
		if trimmed == "" {
			return -1
		}
		if boldCloseLine.MatchString(trimmed) {
			return j
		}
	}
	return -1
}

// splitLongLine breaks a paragraph at sentence boundaries once a fragment exceeds
// fragmentTarget runes, separating fragments with a blank line.
func splitLongLine(line string) []string {
	matches := sentenceBreak.FindAllStringSubmatchIndex(line, -1)
	if len(matches) == 0 {
		return []string{line}
	}

	var fragments []string
	start := 0
	for _, m := range matches {
		punctEnd, nextStart := m[3], m[4]
		if utf8.RuneCountInString(line[start:punctEnd]) > fragmentTarget {
			fragments = append(fragments, line[start:punctEnd])
			start = nextStart
		}
	}
	fragments = append(fragments, line[start:])

	out := make([]string, 0, len(fragments)*2)
	for i, frag := range fragments {
		if i > 0 {
			out = append(out, "")
		}
		out = append(out, frag)
	}
	return out
}
