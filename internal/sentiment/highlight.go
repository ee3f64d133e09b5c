package sentiment

import (
	"math"

	"github.com/spacesedan/agora/internal/models"
)

const MaxExtras = 2

// Highlight returns the comment with the largest absolute polarity. The first
// comment reaching the maximum wins.
func Highlight(comments []models.ScoredComment) (models.ScoredComment, bool) {
	idx := highlightIndex(comments)
	if idx < 0 {
		return models.ScoredComment{}, false
	}
	return comments[idx], true
}

// Extras returns up to MaxExtras comments other than the highlight, in source order.
func Extras(comments []models.ScoredComment) []models.ScoredComment {
	idx := highlightIndex(comments)
	if idx < 0 {
		return nil
	}

	extras := make([]models.ScoredComment, 0, MaxExtras)
	for i, c := range comments {
		if i == idx {
			continue
		}
		if len(extras) == MaxExtras {
			break
		}
		extras = append(extras, c)
	}
	return extras
}

func highlightIndex(comments []models.ScoredComment) int {
	best := -1
	bestAbs := 0.0
	for i, c := range comments {
		abs := math.Abs(c.Polarity)
		if best < 0 || abs > bestAbs {
			best = i
			bestAbs = abs
		}
	}
	return best
}
