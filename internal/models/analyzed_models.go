package models

import (
	"encoding/json"
	"fmt"
)

// SentimentClass is a fixed polarity bucket. Reflections is only used by the
// digest, where reflection texts are summarized as one synthetic class.
type SentimentClass int

const (
	Positive SentimentClass = iota
	Neutral
	Negative
	Reflections
)

const sentimentClassCount = 4

// CommentClasses is the display and prompt order for classified comments.
var CommentClasses = []SentimentClass{Positive, Neutral, Negative}

// AllClasses is the prompt iteration order including the digest class.
var AllClasses = []SentimentClass{Positive, Neutral, Negative, Reflections}

func (c SentimentClass) String() string {
	switch c {
	case Positive:
		return "Positive"
	case Neutral:
		return "Neutral"
	case Negative:
		return "Negative"
	case Reflections:
		return "Reflections"
	default:
		return "Unknown"
	}
}

func (c SentimentClass) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *SentimentClass) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	for _, class := range AllClasses {
		if class.String() == name {
			*c = class
			return nil
		}
	}
	return fmt.Errorf("models: unknown sentiment class %q", name)
}

// ScoredComment is immutable once built by the classifier and lives for one analysis pass.
type ScoredComment struct {
	ID        string         `json:"id"`
	Text      string         `json:"text"`
	Polarity  float64        `json:"polarity"`
	Class     SentimentClass `json:"sentiment_class"`
	Author    string         `json:"author"`
	CreatedAt string         `json:"created_at"`
}

// SentimentGroup holds the per-class ordered comments of one analysis pass.
// Counts are never capped, so Count(c) == len(Comments(c)).
type SentimentGroup struct {
	buckets [sentimentClassCount][]ScoredComment
}

func NewSentimentGroup() *SentimentGroup {
	return &SentimentGroup{}
}

// Add appends the comment to the bucket of its class, keeping insertion order.
func (g *SentimentGroup) Add(c ScoredComment) {
	if c.Class < 0 || int(c.Class) >= sentimentClassCount {
		panic("models: sentiment class out of range")
	}
	g.buckets[c.Class] = append(g.buckets[c.Class], c)
}

func (g *SentimentGroup) Comments(class SentimentClass) []ScoredComment {
	if g == nil || class < 0 || int(class) >= sentimentClassCount {
		return nil
	}
	return g.buckets[class]
}

func (g *SentimentGroup) Count(class SentimentClass) int {
	return len(g.Comments(class))
}

// Total is the number of comments across every class.
func (g *SentimentGroup) Total() int {
	if g == nil {
		return 0
	}
	total := 0
	for _, b := range g.buckets {
		total += len(b)
	}
	return total
}

// Counts returns the comment classes keyed by display name, zero counts included.
func (g *SentimentGroup) Counts() map[string]int {
	counts := make(map[string]int, len(CommentClasses))
	for _, c := range CommentClasses {
		counts[c.String()] = g.Count(c)
	}
	return counts
}
