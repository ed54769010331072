package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	coachdata "github.com/tychase/LuxuryCoachData"
)

// MaxImages is the number of images retained per listing after URL
// deduplication.
const MaxImages = 20

// imageExtensions are the file extensions accepted as listing images.
var imageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp"}

// heroTokens in an image URL promote that image to the featured slot.
var heroTokens = []string{"main", "large", "hero"}

// copyrightMarkers exclude boilerplate from descriptions and features.
var copyrightMarkers = []string{"copyright", "©"}

// Listing is a fully extracted detail page: the normalized coach record
// plus its image URLs (featured first) and feature labels, ready for
// persistence.
type Listing struct {
	Coach    coachdata.Coach
	Images   []string
	Features []string
}

// DetailFetcher fetches a candidate's detail page and composes the
// normalized record, preferring index metadata over page-scraped values
// wherever both exist.
type DetailFetcher struct {
	client *http.Client
}

// NewDetailFetcher creates a detail fetcher using the given HTTP client.
func NewDetailFetcher(client *http.Client) *DetailFetcher {
	return &DetailFetcher{client: client}
}

// Fetch retrieves the candidate's detail page and extracts a Listing.
// Network and parse failures propagate to the caller; extraction absences
// do not, they resolve through fallback chains to documented defaults.
func (f *DetailFetcher) Fetch(ctx context.Context, candidate Candidate) (*Listing, error) {
	doc, err := fetchDocument(ctx, f.client, candidate.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch detail page: %w", err)
	}

	return f.extract(doc, candidate), nil
}

// extract composes the Listing from the parsed page and the index row
// metadata.
func (f *DetailFetcher) extract(doc *goquery.Document, candidate Candidate) *Listing {
	pageText := normalizeSpace(doc.Text())

	title := chooseTitle(doc, candidate)
	parts := ParseTitle(title)

	year := parts.Year
	if year == 0 {
		year = ExtractYear(pageText)
	}
	if year == 0 {
		year = time.Now().Year()
	}

	// Index metadata first, then the title parse, then page heuristics,
	// then the hardcoded default.
	coachMake := candidate.Make
	if coachMake == "" {
		coachMake = parts.Make
	}
	if coachMake == "" {
		coachMake = DefaultMake
	}

	model := candidate.Model
	if model == "" {
		model = parts.Model
	}
	if model == "" {
		model = ModelFromBody(pageText)
	}
	if model == "" {
		model = "Unknown"
	}

	price := candidate.Price
	if price == 0 {
		price = ExtractBodyPrice(pageText)
	}
	if price == 0 {
		price = PlaceholderPrice
	}

	slides := candidate.Slides
	if slides == 0 {
		slides = ExtractSlideCount(pageText)
	}

	seller := candidate.Seller
	if seller == "" {
		seller = ExtractSeller(pageText)
	}

	state := strings.ToUpper(candidate.State)
	if !usStateCodes[state] {
		state = ExtractState(pageText)
	}

	coach := coachdata.Coach{
		Title:         title,
		Year:          year,
		Make:          coachMake,
		Model:         model,
		Price:         price,
		Description:   extractDescription(doc),
		ExteriorColor: ExtractExteriorColor(pageText),
		InteriorColor: ExtractInteriorColor(pageText),
		Mileage:       ExtractMileage(pageText),
		Length:        ExtractLength(pageText),
		SlideCount:    slides,
		BedType:       ExtractBedType(pageText),
		Category:      ClassifyCategory(title, coachMake),
		Status:        coachdata.StatusAvailable,
		IsFeatured:    false,
		IsNewArrival:  true,
		SourceID:      SourceIDFromURL(candidate.URL),
		SourceURL:     candidate.URL,
	}
	if seller != "" {
		coach.Seller = &seller
	}
	if state != "" {
		coach.Location = &state
	}

	images := extractImages(doc, candidate.URL)
	if len(images) > 0 {
		coach.FeaturedImage = images[0]
	}

	return &Listing{
		Coach:    coach,
		Images:   images,
		Features: extractFeatures(doc),
	}
}

// chooseTitle prefers the index row title, then the longest heading or bold
// text on the page containing a brand or year token, then a filename-derived
// fallback.
func chooseTitle(doc *goquery.Document, candidate Candidate) string {
	if candidate.Title != "" {
		return candidate.Title
	}

	best := ""
	doc.Find("h1, h2, h3, b, strong, title").Each(func(_ int, sel *goquery.Selection) {
		text := normalizeSpace(sel.Text())
		if len(text) <= len(best) || !hasBrandOrYear(text) {
			return
		}
		best = text
	})
	if best != "" {
		return best
	}

	return TitleFromURL(candidate.URL)
}

// hasBrandOrYear reports whether text mentions a known make or a 4-digit
// year.
func hasBrandOrYear(text string) bool {
	if yearPattern.MatchString(text) {
		return true
	}
	for _, m := range knownMakes {
		if strings.Contains(text, m) {
			return true
		}
	}
	return false
}

// extractDescription returns the first paragraph or div with more than 100
// characters of text and no copyright marker; the scan stops at the first
// match. Wrapper divs with block children are skipped, otherwise a page's
// outer layout div would swallow the whole page text as the description.
func extractDescription(doc *goquery.Document) string {
	description := ""
	doc.Find("p, div").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if goquery.NodeName(sel) == "div" && sel.ChildrenFiltered("p, div, ul, ol, table, h1, h2, h3").Length() > 0 {
			return true
		}
		text := normalizeSpace(sel.Text())
		if len(text) <= 100 || containsAny(strings.ToLower(text), copyrightMarkers) {
			return true
		}
		description = text
		return false
	})
	return description
}

// extractImages collects every image URL on the page that resolves to an
// image file, deduplicated by exact URL in first-seen order. When a later
// image's URL contains a hero hint token it is promoted to position 0; the
// list is then capped at MaxImages.
func extractImages(doc *goquery.Document, pageURL string) []string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}

	var images []string
	seen := make(map[string]bool)
	doc.Find("img").Each(func(_ int, sel *goquery.Selection) {
		src, ok := sel.Attr("src")
		if !ok || strings.TrimSpace(src) == "" {
			src, _ = sel.Attr("data-src")
		}
		src = strings.TrimSpace(src)
		if src == "" {
			return
		}

		resolved, err := base.Parse(src)
		if err != nil || !isImageURL(resolved) {
			return
		}

		abs := resolved.String()
		if seen[abs] {
			return
		}
		seen[abs] = true
		images = append(images, abs)
	})

	promoteHero(images)

	if len(images) > MaxImages {
		images = images[:MaxImages]
	}
	return images
}

// promoteHero moves the first hero-hinted image to the front, shifting the
// images before it down one position.
func promoteHero(images []string) {
	for i, img := range images {
		if !containsAny(strings.ToLower(img), heroTokens) {
			continue
		}
		if i > 0 {
			hero := images[i]
			copy(images[1:i+1], images[0:i])
			images[0] = hero
		}
		return
	}
}

// isImageURL reports whether the URL path ends in a known image extension.
func isImageURL(u *url.URL) bool {
	ext := strings.ToLower(path.Ext(u.Path))
	for _, allowed := range imageExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// extractFeatures collects short text nodes (10-100 characters) from list,
// table and div elements, excluding copyright text and URLs, deduplicated
// by exact string within the page.
func extractFeatures(doc *goquery.Document) []string {
	var features []string
	seen := make(map[string]bool)
	doc.Find("li, td, div").Each(func(_ int, sel *goquery.Selection) {
		text := normalizeSpace(sel.Text())
		if len(text) < 10 || len(text) > 100 {
			return
		}
		lower := strings.ToLower(text)
		if containsAny(lower, copyrightMarkers) || strings.Contains(lower, "http") {
			return
		}
		if seen[text] {
			return
		}
		seen[text] = true
		features = append(features, text)
	})
	return features
}

// containsAny reports whether s contains any of the given substrings.
func containsAny(s string, substrings []string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
