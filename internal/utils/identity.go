package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

const (
	SnippetLength = 100
	commentIDLen  = 16

	// TimestampLayout matches the naive UTC ISO-8601 strings already in the store.
	TimestampLayout = "2006-01-02T15:04:05.000000"
	// DisplayLayout is the comment creation time shown next to each comment.
	DisplayLayout = "2006-01-02 15:04"
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// CommentID derives a stable identifier for a comment shown under a headline.
func CommentID(headline, text string) string {
	raw := fmt.Sprintf("%s:%s", headline, text)
	hash := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(hash[:])[:commentIDLen]
}

// HeadlineKey hashes a headline into a fixed-size cache key component.
func HeadlineKey(headline string) string {
	hash := sha256.Sum256([]byte(headline))
	return hex.EncodeToString(hash[:])
}

// Snippet returns at most SnippetLength runes of the text.
func Snippet(text string) string {
	runes := []rune(text)
	if len(runes) <= SnippetLength {
		return text
	}
	return string(runes[:SnippetLength])
}

func Timestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp accepts the timestamp shapes written by current and older writers.
// Values without a zone are read as UTC.
func ParseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", raw)
}
