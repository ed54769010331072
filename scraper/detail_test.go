package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func docFromHTML(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

// TestDetailExtract_IndexMetadataWins verifies index row metadata is
// preferred over page-scraped values
func TestDetailExtract_IndexMetadataWins(t *testing.T) {
	html := `<html><body>
		<h1>2010 Prevost Conversion</h1>
		<p>Gorgeous Marathon XLII double slide priced at $999,999. Located in Dallas, Texas.</p>
	</body></html>`

	candidate := Candidate{
		URL:    "http://example.com/detail.html?id=42",
		Title:  "2018 Prevost Liberty Coach",
		Seller: "Acme RV",
		Make:   "Liberty",
		Model:  "H345",
		State:  "FL",
		Slides: 3,
		Price:  650000,
	}

	fetcher := NewDetailFetcher(http.DefaultClient)
	listing := fetcher.extract(docFromHTML(t, html), candidate)

	coach := listing.Coach
	assert.Equal(t, "2018 Prevost Liberty Coach", coach.Title)
	assert.Equal(t, 2018, coach.Year)
	assert.Equal(t, "Liberty", coach.Make)
	assert.Equal(t, "H345", coach.Model)
	assert.Equal(t, 650000.0, coach.Price)
	assert.Equal(t, 3, coach.SlideCount)
	require.NotNil(t, coach.Seller)
	assert.Equal(t, "Acme RV", *coach.Seller)
	require.NotNil(t, coach.Location)
	assert.Equal(t, "FL", *coach.Location)
	assert.Equal(t, "42", coach.SourceID)
	assert.Equal(t, candidate.URL, coach.SourceURL)
}

// TestDetailExtract_PlaceholderPrice verifies a page with no price anywhere
// stores the placeholder, never zero
func TestDetailExtract_PlaceholderPrice(t *testing.T) {
	html := `<html><body><h1>2015 Marathon Coach</h1><p>Call for details.</p></body></html>`
	candidate := Candidate{URL: "http://example.com/coach.html"}

	fetcher := NewDetailFetcher(http.DefaultClient)
	listing := fetcher.extract(docFromHTML(t, html), candidate)

	assert.Equal(t, float64(PlaceholderPrice), listing.Coach.Price)
}

// TestDetailExtract_Defaults verifies the fallback chain endpoints when a
// page yields nothing usable
func TestDetailExtract_Defaults(t *testing.T) {
	html := `<html><body><p>Nice unit.</p></body></html>`
	candidate := Candidate{URL: "http://example.com/listings/mystery-coach.html"}

	fetcher := NewDetailFetcher(http.DefaultClient)
	listing := fetcher.extract(docFromHTML(t, html), candidate)

	coach := listing.Coach
	assert.Equal(t, "mystery coach", coach.Title)
	assert.Equal(t, time.Now().Year(), coach.Year)
	assert.Equal(t, DefaultMake, coach.Make)
	assert.Equal(t, "Unknown", coach.Model)
	assert.Equal(t, float64(PlaceholderPrice), coach.Price)
	assert.Nil(t, coach.Seller)
	assert.Nil(t, coach.Location)
	assert.Equal(t, "available", coach.Status)
	assert.True(t, coach.IsNewArrival)
	assert.False(t, coach.IsFeatured)
}

// TestDetailExtract_Description verifies the first long paragraph without
// copyright text becomes the description
func TestDetailExtract_Description(t *testing.T) {
	long := strings.Repeat("A beautifully maintained coach. ", 5)
	html := fmt.Sprintf(`<html><body>
		<p>Copyright 2024 %s</p>
		<p>short blurb</p>
		<p>%s</p>
	</body></html>`, strings.Repeat("x ", 60), long)

	fetcher := NewDetailFetcher(http.DefaultClient)
	listing := fetcher.extract(docFromHTML(t, html), Candidate{URL: "http://example.com/c.html"})

	assert.Equal(t, normalizeSpace(long), listing.Coach.Description)
}

// TestDetailExtract_DescriptionSkipsWrapperDivs verifies a layout div
// enclosing the whole page does not become the description
func TestDetailExtract_DescriptionSkipsWrapperDivs(t *testing.T) {
	long := strings.Repeat("Meticulously maintained by one owner. ", 4)
	html := fmt.Sprintf(`<html><body><div id="page">
		<h1>2015 Marathon Coach</h1>
		<div>%s</div>
		<p>Call today.</p>
	</div></body></html>`, long)

	fetcher := NewDetailFetcher(http.DefaultClient)
	listing := fetcher.extract(docFromHTML(t, html), Candidate{URL: "http://example.com/c.html"})

	assert.Equal(t, normalizeSpace(long), listing.Coach.Description)
}

// TestDetailExtract_ImageCapAndHero verifies URL dedup, the hero promotion
// and the cap applied after promotion
func TestDetailExtract_ImageCapAndHero(t *testing.T) {
	var b strings.Builder
	b.WriteString("<html><body>")
	for i := 0; i < 25; i++ {
		fmt.Fprintf(&b, `<img src="/photos/coach%d.jpg">`, i)
	}
	// Duplicate of an earlier image and a hero-hinted image near the end.
	b.WriteString(`<img src="/photos/coach3.jpg">`)
	b.WriteString(`<img src="/photos/main-shot.jpg">`)
	b.WriteString(`<img src="/assets/logo.svg">`)
	b.WriteString("</body></html>")

	fetcher := NewDetailFetcher(http.DefaultClient)
	listing := fetcher.extract(docFromHTML(t, b.String()), Candidate{URL: "http://example.com/c.html"})

	require.Len(t, listing.Images, MaxImages)
	assert.Equal(t, "http://example.com/photos/main-shot.jpg", listing.Images[0],
		"hero-hinted image should be promoted to position 0")
	assert.Equal(t, "http://example.com/photos/coach0.jpg", listing.Images[1])
	assert.Equal(t, listing.Images[0], listing.Coach.FeaturedImage)

	seen := make(map[string]bool)
	for _, img := range listing.Images {
		assert.False(t, seen[img], "images should be unique")
		seen[img] = true
	}
}

// TestDetailExtract_Features verifies short labels are collected and
// boilerplate is excluded
func TestDetailExtract_Features(t *testing.T) {
	html := `<html><body><ul>
		<li>Aqua-Hot heating</li>
		<li>King bed suite</li>
		<li>ok</li>
		<li>Copyright 2024 Example Marketplace</li>
		<li>See http://example.com/terms</li>
	</ul></body></html>`

	fetcher := NewDetailFetcher(http.DefaultClient)
	listing := fetcher.extract(docFromHTML(t, html), Candidate{URL: "http://example.com/c.html"})

	assert.Equal(t, []string{"Aqua-Hot heating", "King bed suite"}, listing.Features)
}

// TestDetailFetcher_Fetch verifies the network path end to end
func TestDetailFetcher_Fetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><h1>2016 Prevost H3-45</h1><p>Asking $500,000 firm for this one owner coach kept indoors.</p></body></html>`))
	}))
	defer server.Close()

	fetcher := NewDetailFetcher(server.Client())
	listing, err := fetcher.Fetch(context.Background(), Candidate{URL: server.URL + "/detail.html?id=7"})
	require.NoError(t, err)

	assert.Equal(t, "2016 Prevost H3-45", listing.Coach.Title)
	assert.Equal(t, 2016, listing.Coach.Year)
	assert.Equal(t, "Prevost", listing.Coach.Make)
	assert.Equal(t, "H3-45", listing.Coach.Model)
	assert.Equal(t, 500000.0, listing.Coach.Price)
	assert.Equal(t, "7", listing.Coach.SourceID)
}

// TestDetailFetcher_FetchError verifies HTTP failures propagate
func TestDetailFetcher_FetchError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	fetcher := NewDetailFetcher(server.Client())
	_, err := fetcher.Fetch(context.Background(), Candidate{URL: server.URL + "/gone.html"})
	assert.Error(t, err)
}
