package extract

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/academic-crawler/internal/catalog"
	"github.com/JakeFAU/academic-crawler/internal/crawler"
)

const linksHTML = `<html><body>
<a href="/science/physics#history">Physics</a>
<a href="/science/physics">Physics again</a>
<a href="https://science.nasa.gov/universe/">Universe</a>
<a href="relative/page">Relative</a>
<a href="https://www.nasa.gov/LOGIN">Login</a>
<a href="/about/Privacy-Policy">Privacy</a>
<a href="/terms">Terms</a>
<a href="mailto:webmaster@nasa.gov">Mail</a>
<a href="javascript:void(0)">JS</a>
<a href="ftp://nasa.gov/file">FTP</a>
<a href="https://www.britannica.com/science/chemistry">Elsewhere</a>
<a>No href</a>
<a href="   ">Blank</a>
</body></html>`

func TestExtractLinksFiltersAndResolves(t *testing.T) {
	t.Parallel()

	page := newPage(t, "https://www.nasa.gov/mission/index.html", linksHTML, "")
	got := NewLinkExtractor().ExtractLinks(page, "nasa.gov")

	require.Equal(t, []string{
		"https://science.nasa.gov/universe/",
		"https://www.nasa.gov/mission/relative/page",
		"https://www.nasa.gov/science/physics",
	}, got)
}

func TestExtractLinksWithoutDomainFilter(t *testing.T) {
	t.Parallel()

	page := newPage(t, "https://www.nasa.gov/mission/", linksHTML, "")
	got := NewLinkExtractor().ExtractLinks(page, "")

	require.Contains(t, got, "https://www.britannica.com/science/chemistry")
	require.Len(t, got, 4)
}

func TestExtractLinksUsesFinalURL(t *testing.T) {
	t.Parallel()

	html := `<html><body><nav><a href="/nav">Nav</a></nav>
<div class="content"><a href="article">Article</a></div></body></html>`
	page := newPage(t, "https://mit.edu/research", html, "")
	page.FinalURL = "https://www.mit.edu/research/"

	got := NewLinkExtractor().ExtractLinks(page, "mit.edu")
	require.Equal(t, []string{"https://www.mit.edu/nav", "https://www.mit.edu/research/article"}, got)
}

func TestExtractLinksKeepsRelativeLinksOnCatalogSources(t *testing.T) {
	t.Parallel()

	html := `<html><body>
<a href="/missions/artemis">Artemis</a>
<a href="https://www.nasa.gov/universe/x">Universe</a>
</body></html>`
	src, ok := catalog.Default().Source("nasa.gov")
	require.True(t, ok)
	page := newPage(t, "https://www.nasa.gov/", html, "")

	got := NewLinkExtractor().ExtractLinks(page, src.Domain)
	require.Equal(t, []string{
		"https://www.nasa.gov/missions/artemis",
		"https://www.nasa.gov/universe/x",
	}, got)
}

func TestExtractLinksParsesRawHTML(t *testing.T) {
	t.Parallel()

	page := crawler.Page{
		URL:  "https://a.org/",
		HTML: []byte(`<a href="/x">x</a><a href="/y">y</a>`),
	}
	require.Equal(t, []string{"https://a.org/x", "https://a.org/y"}, NewLinkExtractor().ExtractLinks(page, "a.org"))
	require.Empty(t, NewLinkExtractor().ExtractLinks(crawler.Page{URL: "https://a.org/"}, ""))
}
