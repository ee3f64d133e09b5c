package sentiment

import "github.com/spacesedan/agora/internal/models"

const (
	PositiveThreshold = 0.1
	NegativeThreshold = -0.1
)

// Classify buckets a polarity. Both comparisons are strict, so exactly 0.1
// and exactly -0.1 are Neutral.
func Classify(polarity float64) models.SentimentClass {
	switch {
	case polarity > PositiveThreshold:
		return models.Positive
	case polarity < NegativeThreshold:
		return models.Negative
	default:
		return models.Neutral
	}
}
