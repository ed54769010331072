package coachdata

import "time"

// Coach categories inferred by the scraper. Classification is heuristic,
// not authoritative: a luxury-brand or "luxury" keyword match wins over an
// explicit "Class X" keyword, and no match yields Unclassified.
const (
	CategoryClassA       = "Class A"
	CategoryClassB       = "Class B"
	CategoryClassC       = "Class C"
	CategoryLuxury       = "Luxury"
	CategoryUnclassified = "Unclassified"
)

// StatusAvailable is the lifecycle status assigned to every coach at
// creation. Other statuses (sold, pending) are set manually downstream.
const StatusAvailable = "available"

// Coach represents a single normalized listing extracted from the
// marketplace. SourceID is derived deterministically from the listing URL
// and is unique in the store; it is the deduplication key across runs.
type Coach struct {
	ID            int64     `json:"id"`
	Title         string    `json:"title"`
	Year          int       `json:"year"`
	Make          string    `json:"make"`
	Model         string    `json:"model"`
	Price         float64   `json:"price"`
	Description   string    `json:"description"`
	ExteriorColor string    `json:"exteriorColor"`
	InteriorColor string    `json:"interiorColor"`
	Mileage       *int      `json:"mileage,omitempty"`
	Length        string    `json:"length"`
	SlideCount    int       `json:"slideCount"`
	BedType       string    `json:"bedType"`
	Category      string    `json:"category"`
	FeaturedImage string    `json:"featuredImage"`
	Status        string    `json:"status"`
	IsFeatured    bool      `json:"isFeatured"`
	IsNewArrival  bool      `json:"isNewArrival"`
	Seller        *string   `json:"seller,omitempty"`
	Location      *string   `json:"location,omitempty"`
	SourceID      string    `json:"sourceId"`
	SourceURL     string    `json:"sourceUrl"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// CoachImage is one image of a coach, owned by exactly one coach record and
// cascade-deleted with it. Position values are dense and unique within a
// coach at write time; position 0 is the featured image.
type CoachImage struct {
	ID         int64  `json:"id"`
	CoachID    int64  `json:"coachId"`
	ImageURL   string `json:"imageUrl"`
	IsFeatured bool   `json:"isFeatured"`
	Position   int    `json:"position"`
}

// CoachFeature is a free-text amenity label owned by exactly one coach.
type CoachFeature struct {
	ID      int64  `json:"id"`
	CoachID int64  `json:"coachId"`
	Name    string `json:"name"`
}

// CoachSearch holds the filter, sort and pagination parameters for listing
// coaches. Zero values mean "no filter".
type CoachSearch struct {
	Search   string
	Make     string
	Model    string
	Year     int
	MinPrice float64
	MaxPrice float64
	Status   string
	Page     int
	Limit    int
	SortBy   string
}

// Sort orders accepted by CoachSearch.SortBy. Anything else falls back to
// newest-first by insertion order.
const (
	SortNewest       = "newest"
	SortPriceHighLow = "price_high_low"
	SortPriceLowHigh = "price_low_high"
)

// CoachPage is one page of search results plus the total number of coaches
// matching the filters (for pagination controls).
type CoachPage struct {
	Coaches []Coach `json:"coaches"`
	Total   int     `json:"total"`
}

// CoachDetail is a coach with its owned images and features, as served by
// the detail endpoint.
type CoachDetail struct {
	Coach
	Images   []CoachImage   `json:"images"`
	Features []CoachFeature `json:"features"`
}
