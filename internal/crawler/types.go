package crawler

import (
	"errors"
	"fmt"

	"github.com/PuerkitoBio/goquery"
)

// Page is the transient result of one successful fetch. It is consumed by the
// record and link extractors and never persisted.
type Page struct {
	// URL is the address that was requested.
	URL string
	// FinalURL is the address after redirects; link resolution uses it.
	FinalURL   string
	StatusCode int
	HTML       []byte
	// Doc is the parsed document; nil when the body could not be parsed.
	Doc *goquery.Document
	// Text is the extracted plain text. Empty means extraction failed.
	Text string
}

// BaseURL returns the URL links on the page resolve against.
func (p Page) BaseURL() string {
	if p.FinalURL != "" {
		return p.FinalURL
	}
	return p.URL
}

// Record is the structured unit derived from one classified page.
type Record struct {
	Type      string   `json:"type"`
	Title     string   `json:"title"`
	Field     string   `json:"field"`
	Date      string   `json:"date"`
	Location  string   `json:"location"`
	People    []string `json:"key_people"`
	Summary   string   `json:"summary"`
	Facts     []string `json:"verified_facts"`
	SourceURL string   `json:"source_url"`
	Domain    string   `json:"domain,omitempty"`
}

// Record field bounds.
const (
	MaxTitleRunes   = 200
	MaxSummaryRunes = 500
	MaxPeople       = 5
	MaxFacts        = 3
)

// Outcome is the explicit result variant of processing one URL.
type Outcome int

// Supported outcomes.
const (
	// OutcomeFetched means the page was fetched and a record was extracted.
	OutcomeFetched Outcome = iota
	// OutcomeFetchFailed means the fetch itself failed; no page is available.
	OutcomeFetchFailed
	// OutcomeExtractFailed means the page was fetched but yielded no record.
	OutcomeExtractFailed
)

// String implements fmt.Stringer for log fields and metric labels.
func (o Outcome) String() string {
	switch o {
	case OutcomeFetched:
		return "fetched"
	case OutcomeFetchFailed:
		return "fetch_failed"
	case OutcomeExtractFailed:
		return "extract_failed"
	default:
		return "unknown"
	}
}

// Result is what a worker hands back to the domain crawler after a fetch.
type Result struct {
	URL     string
	Outcome Outcome
	// Page is set for OutcomeFetched and OutcomeExtractFailed.
	Page Page
	// Record is set for OutcomeFetched.
	Record Record
	Err    error
}

// FetchError is returned by fetchers for network errors, timeouts, and non-2xx responses.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ErrNoText signals a fetched page without extractable text.
var ErrNoText = errors.New("page has no extractable text")

// DomainResult summarizes one domain crawl.
type DomainResult struct {
	Domain    string
	Records   []Record
	Attempted int
	Crawled   int
	Failed    int
}
