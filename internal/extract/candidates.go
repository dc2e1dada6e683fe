package extract

import "regexp"

// CandidateExtractor pulls candidate strings (names, dates) out of free text.
// Implementations are heuristics and may be swapped without touching the crawler.
type CandidateExtractor interface {
	Candidates(text string) []string
}

var (
	personPattern = regexp.MustCompile(`\b[A-Z][a-z]+ [A-Z][a-z]+\b`)
	yearPattern   = regexp.MustCompile(`\b(?:19|20)\d{2}\b`)
)

// RegexPeople matches two consecutive capitalized words. Results are unique,
// in order of first appearance.
type RegexPeople struct{}

// Candidates implements CandidateExtractor.
func (RegexPeople) Candidates(text string) []string {
	return uniqueStrings(personPattern.FindAllString(text, -1))
}

// RegexYears matches four-digit years starting with 19 or 20, in text order.
type RegexYears struct{}

// Candidates implements CandidateExtractor.
func (RegexYears) Candidates(text string) []string {
	return yearPattern.FindAllString(text, -1)
}

func uniqueStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
