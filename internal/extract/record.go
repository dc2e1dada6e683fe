package extract

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/academic-crawler/internal/catalog"
	"github.com/JakeFAU/academic-crawler/internal/crawler"
)

// Content type labels, in detection priority order.
const (
	TypeTheory     = "نظرية علمية"
	TypeExperiment = "تجربة علمية"
	TypeDiscovery  = "اكتشاف علمي"
	TypeGeneral    = "معلومة علمية"
)

// PlaceholderTitle is used when no title element yields text.
const PlaceholderTitle = "محتوى علمي"

const (
	minSummaryRunes = 50
	minFactRunes    = 20
	maxFactRunes    = 200
)

var (
	defaultTitleSelectors = []string{"h1", "title", ".title", ".page-title"}
	factMarkers           = []string{"discovered", "invented", "theory", "law", "principle"}
	typeRules             = []struct {
		label string
		words []string
	}{
		{TypeTheory, []string{"theory", "theorem"}},
		{TypeExperiment, []string{"experiment", "study"}},
		{TypeDiscovery, []string{"discovery", "invention"}},
	}
)

// RecordExtractor builds a crawler.Record from a fetched page.
type RecordExtractor struct {
	classifier *Classifier
	people     CandidateExtractor
	dates      CandidateExtractor
}

// NewRecordExtractor wires the extractor. Nil candidate extractors fall back
// to RegexPeople and RegexYears.
func NewRecordExtractor(classifier *Classifier, people, dates CandidateExtractor) *RecordExtractor {
	if people == nil {
		people = RegexPeople{}
	}
	if dates == nil {
		dates = RegexYears{}
	}
	return &RecordExtractor{classifier: classifier, people: people, dates: dates}
}

// Extract implements crawler.RecordExtractor. It returns crawler.ErrNoText when
// neither the fetched text nor the source's content selector yields anything.
func (e *RecordExtractor) Extract(page crawler.Page, hints catalog.Selectors) (crawler.Record, error) {
	text := page.Text
	if strings.TrimSpace(text) == "" {
		text = selectorText(page.Doc, hints.Content)
	}
	if strings.TrimSpace(text) == "" {
		return crawler.Record{}, crawler.ErrNoText
	}

	sentences := strings.Split(text, ".")
	record := crawler.Record{
		Type:      contentType(text),
		Title:     truncateRunes(pageTitle(page.Doc, hints.Title), crawler.MaxTitleRunes),
		Field:     e.classifier.Classify(text, page.URL),
		Date:      first(e.dates.Candidates(text)),
		Location:  "",
		People:    capStrings(e.people.Candidates(text), crawler.MaxPeople),
		Summary:   summarize(text, sentences),
		Facts:     facts(sentences),
		SourceURL: page.URL,
	}
	return record, nil
}

func pageTitle(doc *goquery.Document, hint string) string {
	if doc == nil {
		return PlaceholderTitle
	}
	selectors := defaultTitleSelectors
	if hint != "" {
		selectors = append([]string{hint}, defaultTitleSelectors...)
	}
	for _, sel := range selectors {
		if title := strings.TrimSpace(doc.Find(sel).First().Text()); title != "" {
			return title
		}
	}
	return PlaceholderTitle
}

func selectorText(doc *goquery.Document, selector string) string {
	if doc == nil || selector == "" {
		return ""
	}
	return strings.Join(strings.Fields(doc.Find(selector).Text()), " ")
}

func summarize(text string, sentences []string) string {
	for _, s := range sentences {
		s = strings.TrimSpace(s)
		if utf8.RuneCountInString(s) > minSummaryRunes &&
			!strings.HasPrefix(s, "http") && !strings.HasPrefix(s, "www") {
			return truncateRunes(s, crawler.MaxSummaryRunes)
		}
	}
	return truncateRunes(text, crawler.MaxSummaryRunes)
}

func facts(sentences []string) []string {
	out := make([]string, 0, crawler.MaxFacts)
	for _, s := range sentences {
		s = strings.TrimSpace(s)
		n := utf8.RuneCountInString(s)
		if n <= minFactRunes || n >= maxFactRunes {
			continue
		}
		if !containsAny(strings.ToLower(s), factMarkers) {
			continue
		}
		out = append(out, s)
		if len(out) == crawler.MaxFacts {
			break
		}
	}
	return out
}

func contentType(text string) string {
	lower := strings.ToLower(text)
	for _, rule := range typeRules {
		if containsAny(lower, rule.words) {
			return rule.label
		}
	}
	return TypeGeneral
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func capStrings(in []string, n int) []string {
	if len(in) > n {
		return in[:n]
	}
	if in == nil {
		return []string{}
	}
	return in
}

func first(in []string) string {
	if len(in) == 0 {
		return ""
	}
	return in[0]
}
