// Package scraper implements the ingestion pipeline for the upstream
// marketplace: index-page discovery, per-listing detail extraction,
// deduplication against the store, and the run orchestrator.
package scraper

import (
	"net/url"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// PlaceholderPrice is stored when no price can be extracted anywhere. A
// parsed price of 0 always means "not found", never a real zero price.
const PlaceholderPrice = 500000

// DefaultMake is the dominant brand on the marketplace, used when neither
// the index row nor the page yields a make.
const DefaultMake = "Prevost"

// knownMakes are converter/chassis brands scanned for in priority order.
var knownMakes = []string{
	"Prevost", "Marathon", "Liberty", "Millennium", "Featherlite",
	"Emerald", "Newmar", "Foretravel",
}

// knownModels are model designations scanned for in priority order.
var knownModels = []string{
	"H3-45", "X3-45", "XLII", "XL II", "Executive", "VIP", "Allegiance",
	"Heritage",
}

// luxuryMakes are converters whose coaches always classify as Luxury.
var luxuryMakes = map[string]bool{
	"Marathon":    true,
	"Liberty":     true,
	"Millennium":  true,
	"Featherlite": true,
	"Emerald":     true,
}

// chassisCodes maps lower-cased chassis tokens found in page bodies to
// canonical model names.
var chassisCodes = []struct {
	token string
	model string
}{
	{"h3-45", "H3-45"},
	{"h345", "H3-45"},
	{"x3-45", "X3-45"},
	{"x345", "X3-45"},
	{"xl ii", "XLII"},
	{"xlii", "XLII"},
}

var (
	yearPattern    = regexp.MustCompile(`\b(?:19|20)\d{2}\b`)
	pricePattern   = regexp.MustCompile(`\$\s*[\d,]+(?:\.\d{2})?`)
	priceWordRe    = regexp.MustCompile(`price[^0-9$]{0,20}([\d,]+)`)
	mileageRe      = regexp.MustCompile(`([\d,]{3,})\s*miles`)
	mileageLabelRe = regexp.MustCompile(`mileage[:\s]+([\d,]+)`)
	lengthRe       = regexp.MustCompile(`(\d{2,3})\s*(?:feet|foot|ft\.?|')`)
	slideDigitRe   = regexp.MustCompile(`([0-4])\s*-?\s*slide`)
	slideWordRe    = regexp.MustCompile(`(single|double|triple|quad)\s*-?\s*slide`)
	bedTypeRe      = regexp.MustCompile(`(king|queen|full|twin|bunk)[\s-]*(?:sized?\s*)?bed`)
	extColorRe     = regexp.MustCompile(`exterior(?:\s+colors?)?[:\s-]+([a-z]+(?: [a-z]+)?)`)
	intColorRe     = regexp.MustCompile(`interior(?:\s+colors?)?[:\s-]+([a-z]+(?: [a-z]+)?)`)
	sellerRe       = regexp.MustCompile(`(?:[Cc]ontact:?|[Oo]ffered [Bb]y|[Ff]or [Ss]ale [Bb]y)\s+([A-Z][A-Za-z0-9 .&'-]{2,40})`)
	stateCodeRe    = regexp.MustCompile(`,\s*([A-Z]{2})\b`)
)

var slideWords = map[string]int{
	"single": 1,
	"double": 2,
	"triple": 3,
	"quad":   4,
}

// usStates maps lower-cased state names to their postal codes, for location
// extraction from free text.
var usStates = map[string]string{
	"alabama": "AL", "alaska": "AK", "arizona": "AZ", "arkansas": "AR",
	"california": "CA", "colorado": "CO", "connecticut": "CT",
	"delaware": "DE", "florida": "FL", "georgia": "GA", "hawaii": "HI",
	"idaho": "ID", "illinois": "IL", "indiana": "IN", "iowa": "IA",
	"kansas": "KS", "kentucky": "KY", "louisiana": "LA", "maine": "ME",
	"maryland": "MD", "massachusetts": "MA", "michigan": "MI",
	"minnesota": "MN", "mississippi": "MS", "missouri": "MO",
	"montana": "MT", "nebraska": "NE", "nevada": "NV",
	"new hampshire": "NH", "new jersey": "NJ", "new mexico": "NM",
	"new york": "NY", "north carolina": "NC", "north dakota": "ND",
	"ohio": "OH", "oklahoma": "OK", "oregon": "OR", "pennsylvania": "PA",
	"rhode island": "RI", "south carolina": "SC", "south dakota": "SD",
	"tennessee": "TN", "texas": "TX", "utah": "UT", "vermont": "VT",
	"virginia": "VA", "washington": "WA", "west virginia": "WV",
	"wisconsin": "WI", "wyoming": "WY",
}

var usStateCodes = func() map[string]bool {
	codes := make(map[string]bool, len(usStates))
	for _, code := range usStates {
		codes[code] = true
	}
	return codes
}()

// usStateNames orders the state names longest first so that compound names
// ("west virginia") match before the states they contain ("virginia"), and
// alphabetically within a length so scans are deterministic.
var usStateNames = func() []string {
	names := make([]string, 0, len(usStates))
	for name := range usStates {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})
	return names
}()

// TitleParts holds the fields recoverable from a listing title. Zero values
// mean the field was not found; callers resolve absences through their own
// fallback chains.
type TitleParts struct {
	Year  int
	Make  string
	Model string
}

// ParseTitle scans a listing title for a 4-digit year, the first known make
// token, and the first known model token.
func ParseTitle(title string) TitleParts {
	var parts TitleParts

	if m := yearPattern.FindString(title); m != "" {
		parts.Year, _ = strconv.Atoi(m)
	}

	for _, make := range knownMakes {
		if strings.Contains(title, make) {
			parts.Make = make
			break
		}
	}

	for _, model := range knownModels {
		if strings.Contains(title, model) {
			parts.Model = model
			break
		}
	}

	return parts
}

// ParsePrice strips everything but digits and the decimal point from text
// and parses the remainder. Returns 0 when nothing parseable is left;
// callers must treat 0 as "no price found" and substitute PlaceholderPrice.
func ParsePrice(text string) float64 {
	var b strings.Builder
	for _, r := range text {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}

	price, err := strconv.ParseFloat(b.String(), 64)
	if err != nil {
		return 0
	}
	return price
}

// ClassifyCategory infers a coach category from its title and make. A
// luxury-brand make or a "luxury" keyword in the title wins over an explicit
// "Class X" keyword; first matching rule wins; no match yields Unclassified.
func ClassifyCategory(title, make string) string {
	lower := strings.ToLower(title)

	if luxuryMakes[make] || strings.Contains(lower, "luxury") {
		return "Luxury"
	}
	switch {
	case strings.Contains(lower, "class a"):
		return "Class A"
	case strings.Contains(lower, "class b"):
		return "Class B"
	case strings.Contains(lower, "class c"):
		return "Class C"
	}
	return "Unclassified"
}

// ExtractYear scans free text for a 4-digit year. Returns 0 when absent.
func ExtractYear(text string) int {
	if m := yearPattern.FindString(text); m != "" {
		year, _ := strconv.Atoi(m)
		return year
	}
	return 0
}

// ExtractBodyPrice scans page text for a dollar amount, or a digit run
// following "price". Returns 0 when absent.
func ExtractBodyPrice(text string) float64 {
	if m := pricePattern.FindString(text); m != "" {
		return ParsePrice(m)
	}
	if m := priceWordRe.FindStringSubmatch(strings.ToLower(text)); m != nil {
		return ParsePrice(m[1])
	}
	return 0
}

// ExtractMileage scans page text for an odometer reading. Returns nil when
// absent.
func ExtractMileage(text string) *int {
	lower := strings.ToLower(text)

	m := mileageRe.FindStringSubmatch(lower)
	if m == nil {
		m = mileageLabelRe.FindStringSubmatch(lower)
	}
	if m == nil {
		return nil
	}

	miles, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
	if err != nil {
		return nil
	}
	return &miles
}

// ExtractLength scans page text for a coach length and normalizes it to
// "<n> feet". Returns "" when absent.
func ExtractLength(text string) string {
	m := lengthRe.FindStringSubmatch(strings.ToLower(text))
	if m == nil {
		return ""
	}
	return m[1] + " feet"
}

// ExtractSlideCount scans page text for a slide count in numeral or word
// form ("single".."quad"). The numeral form takes precedence when both
// appear. Returns 0 when absent.
func ExtractSlideCount(text string) int {
	lower := strings.ToLower(text)

	if m := slideDigitRe.FindStringSubmatch(lower); m != nil {
		count, _ := strconv.Atoi(m[1])
		return count
	}
	if m := slideWordRe.FindStringSubmatch(lower); m != nil {
		return slideWords[m[1]]
	}
	return 0
}

// ExtractBedType scans page text for a bed description. Returns "" when
// absent.
func ExtractBedType(text string) string {
	m := bedTypeRe.FindString(strings.ToLower(text))
	return m
}

// ExtractExteriorColor scans page text for an exterior color mention. The
// result is heuristic and may be wrong or empty.
func ExtractExteriorColor(text string) string {
	m := extColorRe.FindStringSubmatch(strings.ToLower(text))
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// ExtractInteriorColor scans page text for an interior color mention. The
// result is heuristic and may be wrong or empty.
func ExtractInteriorColor(text string) string {
	m := intColorRe.FindStringSubmatch(strings.ToLower(text))
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// ExtractSeller scans page text for a seller name anchored on contact
// phrasing. Returns "" when absent.
func ExtractSeller(text string) string {
	m := sellerRe.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// ExtractState scans page text for a US state, by full name first and then
// by a comma-prefixed two-letter code. Returns the postal code, or "" when
// absent.
func ExtractState(text string) string {
	lower := strings.ToLower(text)
	for _, name := range usStateNames {
		if strings.Contains(lower, name) {
			return usStates[name]
		}
	}

	for _, m := range stateCodeRe.FindAllStringSubmatch(text, -1) {
		if usStateCodes[m[1]] {
			return m[1]
		}
	}
	return ""
}

// ModelFromBody backfills a model from chassis codes present in page text.
// Returns "" when none are present.
func ModelFromBody(text string) string {
	lower := strings.ToLower(text)
	for _, c := range chassisCodes {
		if strings.Contains(lower, c.token) {
			return c.model
		}
	}
	return ""
}

// TitleFromURL derives a last-resort title from the listing URL's filename.
func TitleFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	name := path.Base(u.Path)
	name = strings.TrimSuffix(name, path.Ext(name))
	name = strings.NewReplacer("-", " ", "_", " ").Replace(name)
	return strings.TrimSpace(name)
}
