// Package filtered turns raw message text into the cleaned form used for
// feature extraction: digits, mentions, links and punctuation are dropped and
// whitespace is collapsed.
package filtered

import (
	"regexp"
	"strings"
	"unicode"
)

// noise matches, in priority order, a mention, a single character outside
// [0-9A-Za-z \t], or a link. Alternation is leftmost-first, so a link starting
// with a non-ASCII letter loses that letter to the second branch first.
var noise = regexp.MustCompile(`(@[A-Za-z0-9]+)|([^0-9A-Za-z \t])|([\p{L}\p{N}_]+://\S+)`)

type state int

const (
	stateNormal state = iota
	stateSeparator
)

// Clean normalizes text. It never fails and Clean(Clean(s)) == Clean(s).
func Clean(text string) string {
	text = strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return -1
		}

		return r
	}, text)

	text = noise.ReplaceAllString(text, " ")

	return collapse(text)
}

// CleanAll cleans every text, keeping order.
func CleanAll(texts []string) []string {
	res := make([]string, len(texts))
	for i, t := range texts {
		res[i] = Clean(t)
	}

	return res
}

// collapse squeezes runs of whitespace into a single space and drops leading
// and trailing whitespace.
func collapse(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	// Start in separator state so leading whitespace is skipped
	s := stateSeparator
	for _, r := range text {
		if unicode.IsSpace(r) {
			s = stateSeparator
			continue
		}

		if s == stateSeparator && b.Len() > 0 {
			b.WriteByte(' ')
		}

		b.WriteRune(r)
		s = stateNormal
	}

	return b.String()
}
