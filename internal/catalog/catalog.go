// Package catalog holds the static crawl configuration: the known academic
// sources with their seed URLs and selector hints, the generic .edu/.org
// domains, and the ordered field lexicon used by the classifier.
package catalog

import (
	"fmt"
	"strings"
)

// DefaultFallbackField is returned by the classifier when no field scores above zero.
const DefaultFallbackField = "علوم عامة"

// Selectors carries structure-aware parser hints for a source. They are advisory.
type Selectors struct {
	Title   string `mapstructure:"title"`
	Content string `mapstructure:"content"`
}

// Source describes one known academic domain.
type Source struct {
	Domain       string            `mapstructure:"domain"`
	SeedURLs     []string          `mapstructure:"seed_urls"`
	Selectors    Selectors         `mapstructure:"selectors"`
	FieldMapping map[string]string `mapstructure:"field_mapping"`
}

// Field is one lexicon entry. Lexicon order is significant: it breaks ties.
type Field struct {
	Label    string   `mapstructure:"label"`
	Keywords []string `mapstructure:"keywords"`
}

// Lexicon is the ordered field-to-keywords table.
type Lexicon []Field

// Labels returns the field labels in lexicon order.
func (l Lexicon) Labels() []string {
	out := make([]string, 0, len(l))
	for _, f := range l {
		out = append(out, f.Label)
	}
	return out
}

// Catalog bundles everything the orchestrator iterates over.
type Catalog struct {
	Sources       []Source `mapstructure:"sources"`
	EduDomains    []string `mapstructure:"edu_domains"`
	OrgDomains    []string `mapstructure:"org_domains"`
	Lexicon       Lexicon  `mapstructure:"lexicon"`
	FallbackField string   `mapstructure:"fallback_field"`
}

// genericPaths are the conventional landing paths guessed for domains without seeds.
var genericPaths = []string{
	"/research",
	"/academics",
	"/departments",
	"/science",
	"/publications",
}

// TotalDomains counts every domain the orchestrator may visit.
func (c Catalog) TotalDomains() int {
	return len(c.Sources) + len(c.EduDomains) + len(c.OrgDomains)
}

// Source looks up a known source by domain.
func (c Catalog) Source(domain string) (Source, bool) {
	domain = strings.ToLower(strings.TrimSpace(domain))
	for _, s := range c.Sources {
		if strings.EqualFold(s.Domain, domain) {
			return s, true
		}
	}
	return Source{}, false
}

// Seeds returns the initial frontier for a domain: catalog seeds for known
// sources, conventional path guesses otherwise.
func (c Catalog) Seeds(domain string) []string {
	if src, ok := c.Source(domain); ok {
		return append([]string(nil), src.SeedURLs...)
	}
	return GenericSeeds(domain)
}

// Resolve returns the crawl target for a domain: the catalog source when known,
// otherwise a bare source carrying the generic seeds and no selector hints.
func (c Catalog) Resolve(domain string) Source {
	if src, ok := c.Source(domain); ok {
		src.SeedURLs = append([]string(nil), src.SeedURLs...)
		return src
	}
	return Source{Domain: domain, SeedURLs: GenericSeeds(domain)}
}

// GenericSeeds builds the path guesses for a bare hostname.
func GenericSeeds(domain string) []string {
	base := "https://" + strings.TrimSuffix(strings.TrimSpace(domain), "/")
	out := make([]string, 0, len(genericPaths))
	for _, p := range genericPaths {
		out = append(out, base+p)
	}
	return out
}

// Fallback returns the configured fallback field label.
func (c Catalog) Fallback() string {
	if c.FallbackField == "" {
		return DefaultFallbackField
	}
	return c.FallbackField
}

// Validate checks the catalog is usable.
func (c Catalog) Validate() error {
	if c.TotalDomains() == 0 {
		return fmt.Errorf("catalog must include at least one domain")
	}
	seen := make(map[string]struct{}, len(c.Sources))
	for _, s := range c.Sources {
		key := strings.ToLower(strings.TrimSpace(s.Domain))
		if key == "" {
			return fmt.Errorf("catalog source domain must be set")
		}
		if _, dup := seen[key]; dup {
			return fmt.Errorf("catalog source %q defined twice", s.Domain)
		}
		seen[key] = struct{}{}
		if len(s.SeedURLs) == 0 {
			return fmt.Errorf("catalog source %q has no seed urls", s.Domain)
		}
	}
	for _, f := range c.Lexicon {
		if f.Label == "" {
			return fmt.Errorf("catalog lexicon entry missing label")
		}
	}
	return nil
}
