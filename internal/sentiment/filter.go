package sentiment

import (
	"strings"
	"unicode/utf8"
)

const DefaultMinLength = 10

var placeholderBodies = map[string]struct{}{
	"[deleted]": {},
	"[removed]": {},
}

// Filter decides whether a comment body carries enough signal to score.
// It is a pure predicate; the aggregator owns the filtered_out counter.
type Filter struct {
	MinLength int
	// Strict also drops deleted/removed placeholders and link-only bodies.
	Strict bool
}

func NewFilter(minLength int, strict bool) Filter {
	if minLength < 0 {
		minLength = 0
	}
	return Filter{MinLength: minLength, Strict: strict}
}

func DefaultFilter() Filter {
	return NewFilter(DefaultMinLength, false)
}

func (f Filter) Keep(body string) bool {
	text := strings.TrimSpace(body)
	if text == "" {
		return false
	}
	if utf8.RuneCountInString(text) < f.MinLength {
		return false
	}

	if f.Strict {
		if _, ok := placeholderBodies[text]; ok {
			return false
		}
		if strings.TrimSpace(RemoveLinks(text)) == "" {
			return false
		}
	}

	return true
}
