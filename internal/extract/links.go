package extract

import (
	"bytes"
	"net/url"
	"slices"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/academic-crawler/internal/crawler"
)

const anchorSelector = "a[href]"

// skipLinkMarkers drop account and legal pages.
var skipLinkMarkers = []string{"login", "register", "contact", "privacy", "terms"}

// LinkExtractor implements crawler.LinkExtractor over goquery documents.
type LinkExtractor struct{}

// NewLinkExtractor returns a LinkExtractor.
func NewLinkExtractor() *LinkExtractor {
	return &LinkExtractor{}
}

// ExtractLinks resolves every anchor href against the page URL and returns
// the unique http(s) links, sorted, without fragments. Links not containing
// domainFilter, or containing an account or legal marker, are dropped.
func (LinkExtractor) ExtractLinks(page crawler.Page, domainFilter string) []string {
	doc := page.Doc
	if doc == nil {
		if len(page.HTML) == 0 {
			return nil
		}
		parsed, err := goquery.NewDocumentFromReader(bytes.NewReader(page.HTML))
		if err != nil {
			return nil
		}
		doc = parsed
	}
	base, err := url.Parse(page.BaseURL())
	if err != nil {
		return nil
	}

	seen := make(map[string]struct{})
	doc.Find(anchorSelector).Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		link, ok := resolveLink(base, href)
		if !ok {
			return
		}
		if domainFilter != "" && !strings.Contains(link, domainFilter) {
			return
		}
		if containsAny(strings.ToLower(link), skipLinkMarkers) {
			return
		}
		seen[link] = struct{}{}
	})

	out := make([]string, 0, len(seen))
	for link := range seen {
		out = append(out, link)
	}
	slices.Sort(out)
	return out
}

func resolveLink(base *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	abs := base.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return "", false
	}
	if abs.Host == "" {
		return "", false
	}
	abs.Fragment = ""
	abs.RawFragment = ""
	return abs.String(), true
}
