package sentiment

import (
	"errors"
	"fmt"
	"html"
	"math"
	"regexp"
	"strings"

	"github.com/jonreiter/govader"
	"github.com/russross/blackfriday/v2"
)

// ErrUnscorable is returned when nothing scorable is left after cleanup.
var ErrUnscorable = errors.New("no scorable text")

var (
	linkPattern = regexp.MustCompile(`\[(.*?)\]\((https?:\/\/[^\s\)]+)\)`)
	urlPattern  = regexp.MustCompile(`https?://\S+|www\.\S+`)
	tagPattern  = regexp.MustCompile(`<[^>]*>`)
)

// Scorer turns a comment body into a polarity in [-1, 1].
type Scorer interface {
	Score(text string) (float64, error)
}

// ScorerFunc adapts a plain function to Scorer.
type ScorerFunc func(text string) (float64, error)

func (f ScorerFunc) Score(text string) (float64, error) {
	return f(text)
}

// VaderScorer scores text with the VADER lexicon compound score.
type VaderScorer struct {
	compound func(string) float64
}

func NewVaderScorer() *VaderScorer {
	analyzer := govader.NewSentimentIntensityAnalyzer()
	return &VaderScorer{
		compound: func(text string) float64 {
			return analyzer.PolarityScores(text).Compound
		},
	}
}

func (v *VaderScorer) Score(text string) (score float64, err error) {
	plainText := PlainText(text)
	if plainText == "" {
		return 0, ErrUnscorable
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("[VaderScorer] analyzer panicked: %v", r)
		}
	}()

	return Clamp(v.compound(plainText)), nil
}

func RemoveLinks(input string) string {
	input = linkPattern.ReplaceAllString(input, "$1") // keep only the link text
	return urlPattern.ReplaceAllString(input, "")
}

// PlainText renders markdown, drops markup and links, and collapses whitespace.
func PlainText(input string) string {
	output := blackfriday.Run([]byte(input), blackfriday.WithNoExtensions())
	text := html.UnescapeString(tagPattern.ReplaceAllString(string(output), " "))
	text = RemoveLinks(text)

	return strings.Join(strings.Fields(text), " ")
}

// Round3 rounds a polarity to the three decimals that are stored and compared.
func Round3(p float64) float64 {
	return math.Round(p*1000) / 1000
}

func Clamp(p float64) float64 {
	switch {
	case math.IsNaN(p):
		return 0
	case p > 1:
		return 1
	case p < -1:
		return -1
	}
	return p
}
