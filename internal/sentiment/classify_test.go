package sentiment_test

import (
	"fmt"
	"testing"

	"github.com/spacesedan/agora/internal/models"
	"github.com/spacesedan/agora/internal/sentiment"
	"github.com/stretchr/testify/require"
)

func TestClassifyBoundaries(t *testing.T) {
	tests := []struct {
		polarity float64
		want     models.SentimentClass
	}{
		{-1.0, models.Negative},
		{-0.101, models.Negative},
		{-0.1, models.Neutral},
		{-0.099, models.Neutral},
		{0.0, models.Neutral},
		{0.099, models.Neutral},
		{0.1, models.Neutral},
		{0.101, models.Positive},
		{1.0, models.Positive},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%v", tt.polarity), func(t *testing.T) {
			require.Equal(t, tt.want, sentiment.Classify(tt.polarity))
		})
	}
}
