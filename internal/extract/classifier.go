package extract

import (
	"strings"

	"github.com/JakeFAU/academic-crawler/internal/catalog"
)

// urlKeywordBonus is added once per keyword found in the URL.
const urlKeywordBonus = 5

type scoredField struct {
	label    string
	keywords []string
}

// Classifier assigns a page to a field of the lexicon by keyword frequency.
// There is no confidence threshold: a single keyword hit beats the fallback,
// and ties go to the field listed first.
type Classifier struct {
	fields   []scoredField
	fallback string
}

// NewClassifier builds a classifier over an ordered lexicon.
func NewClassifier(lexicon catalog.Lexicon, fallback string) *Classifier {
	if fallback == "" {
		fallback = catalog.DefaultFallbackField
	}
	fields := make([]scoredField, 0, len(lexicon))
	for _, f := range lexicon {
		kws := make([]string, 0, len(f.Keywords))
		for _, kw := range f.Keywords {
			if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
				kws = append(kws, kw)
			}
		}
		fields = append(fields, scoredField{label: f.Label, keywords: kws})
	}
	return &Classifier{fields: fields, fallback: fallback}
}

// Classify returns the best-scoring field label for text fetched from rawURL.
func (c *Classifier) Classify(text, rawURL string) string {
	lowerText := strings.ToLower(text)
	lowerURL := strings.ToLower(rawURL)

	best, bestScore := c.fallback, 0
	for _, f := range c.fields {
		if score := f.score(lowerText, lowerURL); score > bestScore {
			best, bestScore = f.label, score
		}
	}
	return best
}

func (f scoredField) score(lowerText, lowerURL string) int {
	score := 0
	for _, kw := range f.keywords {
		score += strings.Count(lowerText, kw)
		if strings.Contains(lowerURL, kw) {
			score += urlKeywordBonus
		}
	}
	return score
}
