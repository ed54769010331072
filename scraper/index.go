package scraper

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Candidate is a listing discovered on the index page, pending detail-page
// processing. The metadata fields are whatever the index row advertised;
// zero values mean the row carried no such label. Candidates live for a
// single run iteration and are never persisted.
type Candidate struct {
	URL    string
	Title  string
	Seller string
	Make   string
	Model  string
	State  string
	Slides int
	Price  float64
}

// indexLabels are the label prefixes the marketplace puts in listing rows.
var indexLabels = []string{"Seller", "Converter", "Model", "Slides", "State", "Price"}

// labelPatterns captures the value following "Label:" up to the next label
// or end of row.
var labelPatterns = func() map[string]*regexp.Regexp {
	alternation := strings.Join(indexLabels, "|")
	patterns := make(map[string]*regexp.Regexp, len(indexLabels))
	for _, label := range indexLabels {
		patterns[label] = regexp.MustCompile(
			label + `:\s*(.*?)\s*(?:(?:` + alternation + `):|$)`)
	}
	return patterns
}()

// excludeKeywords mark index rows that are not coaches.
var excludeKeywords = []string{"hauler", "stacker", "trailer"}

// IndexFetcher fetches the marketplace index and produces the candidate
// listings for a run.
type IndexFetcher struct {
	indexURL   string
	pageSuffix string
	maxPages   int
	delay      time.Duration
	client     *http.Client
}

// NewIndexFetcher creates an index fetcher. pageSuffix is the href suffix
// that identifies listing anchors (".html"). maxPages values below 1 are
// treated as 1; delay is applied once per index-page fetch.
func NewIndexFetcher(client *http.Client, indexURL, pageSuffix string, maxPages int, delay time.Duration) *IndexFetcher {
	if maxPages < 1 {
		maxPages = 1
	}
	return &IndexFetcher{
		indexURL:   indexURL,
		pageSuffix: pageSuffix,
		maxPages:   maxPages,
		delay:      delay,
		client:     client,
	}
}

// Fetch retrieves up to maxPages index pages and returns the discovered
// candidates in page order. Pagination stops early as soon as a page yields
// zero candidate links.
func (f *IndexFetcher) Fetch(ctx context.Context) ([]Candidate, error) {
	var candidates []Candidate
	seen := make(map[string]bool)

	for page := 1; page <= f.maxPages; page++ {
		pageURL := f.pageURL(page)

		doc, err := fetchDocument(ctx, f.client, pageURL)
		if err != nil {
			if page == 1 {
				return nil, fmt.Errorf("failed to fetch index page: %w", err)
			}
			log.Printf("WARN: [scraper] index page %d failed, stopping pagination: %v", page, err)
			break
		}

		pageCandidates := f.parseCandidates(doc, pageURL, seen)
		if len(pageCandidates) == 0 {
			break
		}
		candidates = append(candidates, pageCandidates...)

		if err := sleepContext(ctx, f.delay); err != nil {
			return candidates, err
		}
	}

	return candidates, nil
}

// pageURL builds the URL for an index page. Page 1 is the configured index
// URL itself.
func (f *IndexFetcher) pageURL(page int) string {
	if page == 1 {
		return f.indexURL
	}
	sep := "?"
	if strings.Contains(f.indexURL, "?") {
		sep = "&"
	}
	return f.indexURL + sep + "page=" + strconv.Itoa(page)
}

// parseCandidates extracts candidates from one index page. Anchors whose
// href doesn't end in the listing suffix, rows matching an exclusion
// keyword, and URLs already seen this run are skipped.
func (f *IndexFetcher) parseCandidates(doc *goquery.Document, pageURL string, seen map[string]bool) []Candidate {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}

	var candidates []Candidate
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || !strings.HasSuffix(strings.ToLower(stripQuery(href)), f.pageSuffix) {
			return
		}

		resolved, err := base.Parse(href)
		if err != nil {
			return
		}
		absURL := resolved.String()
		if absURL == pageURL || seen[absURL] {
			return
		}

		rowText := normalizeSpace(rowTextFor(sel))
		lowerRow := strings.ToLower(rowText)
		for _, keyword := range excludeKeywords {
			if strings.Contains(lowerRow, keyword) {
				return
			}
		}

		seen[absURL] = true
		candidates = append(candidates, candidateFromRow(absURL, sel, rowText))
	})

	return candidates
}

// candidateFromRow pulls the label-prefixed metadata out of a listing row.
func candidateFromRow(absURL string, sel *goquery.Selection, rowText string) Candidate {
	candidate := Candidate{
		URL:   absURL,
		Title: normalizeSpace(sel.Text()),
	}

	candidate.Seller = labelValue(rowText, "Seller")
	candidate.Make = labelValue(rowText, "Converter")
	candidate.Model = labelValue(rowText, "Model")
	candidate.State = labelValue(rowText, "State")

	if slides := labelValue(rowText, "Slides"); slides != "" {
		if n, err := strconv.Atoi(slides); err == nil {
			candidate.Slides = n
		}
	}
	if price := labelValue(rowText, "Price"); price != "" {
		candidate.Price = ParsePrice(price)
	}

	return candidate
}

// rowTextFor returns the text of the anchor's enclosing row: the nearest
// table row when the index uses tables, the parent element otherwise.
func rowTextFor(sel *goquery.Selection) string {
	if row := sel.Closest("tr"); row.Length() > 0 {
		return row.Text()
	}
	if parent := sel.Parent(); parent.Length() > 0 {
		return parent.Text()
	}
	return sel.Text()
}

// labelValue extracts the value following "label:" in a row, up to the next
// label. Returns "" when the label is absent.
func labelValue(rowText, label string) string {
	m := labelPatterns[label].FindStringSubmatch(rowText)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// stripQuery removes the query string from an href for suffix matching.
func stripQuery(href string) string {
	if i := strings.IndexAny(href, "?#"); i >= 0 {
		return href[:i]
	}
	return href
}

// normalizeSpace collapses all whitespace runs to single spaces.
func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// sleepContext sleeps for d unless the context ends first.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
