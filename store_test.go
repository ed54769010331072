package coachdata

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func seedCoach(t *testing.T, store *SQLiteStore, coach Coach) *Coach {
	t.Helper()
	created, err := store.CreateCoach(context.Background(), &coach)
	require.NoError(t, err)
	return created
}

// TestCreateCoach verifies insertion assigns an ID and timestamps
func TestCreateCoach(t *testing.T) {
	store := testStore(t)

	seller := "Acme RV"
	location := "FL"
	mileage := 85000
	coach := seedCoach(t, store, Coach{
		Title:      "2018 Prevost Liberty Coach",
		Year:       2018,
		Make:       "Liberty",
		Model:      "H345",
		Price:      650000,
		SlideCount: 3,
		Category:   CategoryLuxury,
		Mileage:    &mileage,
		Seller:     &seller,
		Location:   &location,
		SourceID:   "42",
		SourceURL:  "http://example.com/detail.html?id=42",
	})

	assert.NotZero(t, coach.ID)
	assert.False(t, coach.CreatedAt.IsZero())
	assert.Equal(t, StatusAvailable, coach.Status, "empty status defaults to available")

	got, err := store.GetCoachByID(context.Background(), coach.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "2018 Prevost Liberty Coach", got.Title)
	assert.Equal(t, 650000.0, got.Price)
	require.NotNil(t, got.Seller)
	assert.Equal(t, "Acme RV", *got.Seller)
	require.NotNil(t, got.Mileage)
	assert.Equal(t, 85000, *got.Mileage)
}

// TestCreateCoach_DuplicateSourceID verifies the unique constraint on
// source_id rejects a second insert
func TestCreateCoach_DuplicateSourceID(t *testing.T) {
	store := testStore(t)
	seedCoach(t, store, Coach{Title: "A", Year: 2018, Make: "Prevost", Model: "H3-45", Price: 1, SourceID: "dup", SourceURL: "http://example.com/a.html"})

	_, err := store.CreateCoach(context.Background(), &Coach{
		Title: "B", Year: 2019, Make: "Prevost", Model: "H3-45", Price: 2,
		SourceID: "dup", SourceURL: "http://example.com/b.html",
	})
	assert.Error(t, err)
}

// TestGetCoachByID_Missing verifies a missing coach returns nil, nil
func TestGetCoachByID_Missing(t *testing.T) {
	store := testStore(t)

	got, err := store.GetCoachByID(context.Background(), 999)
	require.NoError(t, err)
	assert.Nil(t, got)
}

// TestExistsBySourceID verifies the dedup check
func TestExistsBySourceID(t *testing.T) {
	store := testStore(t)
	seedCoach(t, store, Coach{Title: "A", Year: 2018, Make: "Prevost", Model: "H3-45", Price: 1, SourceID: "42", SourceURL: "http://example.com/a.html"})

	exists, err := store.ExistsBySourceID(context.Background(), "42")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = store.ExistsBySourceID(context.Background(), "43")
	require.NoError(t, err)
	assert.False(t, exists)
}

// TestGetCoaches_Filters verifies make, year and price range filtering
func TestGetCoaches_Filters(t *testing.T) {
	store := testStore(t)
	seedCoach(t, store, Coach{Title: "2018 Liberty", Year: 2018, Make: "Liberty", Model: "H3-45", Price: 650000, SourceID: "1", SourceURL: "http://example.com/1.html"})
	seedCoach(t, store, Coach{Title: "2015 Marathon", Year: 2015, Make: "Marathon", Model: "XLII", Price: 450000, SourceID: "2", SourceURL: "http://example.com/2.html"})
	seedCoach(t, store, Coach{Title: "2020 Marathon", Year: 2020, Make: "Marathon", Model: "X3-45", Price: 1200000, SourceID: "3", SourceURL: "http://example.com/3.html"})

	ctx := context.Background()

	page, err := store.GetCoaches(ctx, CoachSearch{Make: "Marathon"})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)

	page, err = store.GetCoaches(ctx, CoachSearch{Year: 2015})
	require.NoError(t, err)
	require.Len(t, page.Coaches, 1)
	assert.Equal(t, "2015 Marathon", page.Coaches[0].Title)

	page, err = store.GetCoaches(ctx, CoachSearch{MinPrice: 500000, MaxPrice: 1000000})
	require.NoError(t, err)
	require.Len(t, page.Coaches, 1)
	assert.Equal(t, "2018 Liberty", page.Coaches[0].Title)

	page, err = store.GetCoaches(ctx, CoachSearch{Search: "Marathon"})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
}

// TestGetCoaches_SortAndPaginate verifies sort orders and page math
func TestGetCoaches_SortAndPaginate(t *testing.T) {
	store := testStore(t)
	seedCoach(t, store, Coach{Title: "Cheap", Year: 2015, Make: "Prevost", Model: "H3-45", Price: 300000, SourceID: "1", SourceURL: "http://example.com/1.html"})
	seedCoach(t, store, Coach{Title: "Mid", Year: 2018, Make: "Prevost", Model: "H3-45", Price: 600000, SourceID: "2", SourceURL: "http://example.com/2.html"})
	seedCoach(t, store, Coach{Title: "Dear", Year: 2020, Make: "Prevost", Model: "H3-45", Price: 900000, SourceID: "3", SourceURL: "http://example.com/3.html"})

	ctx := context.Background()

	page, err := store.GetCoaches(ctx, CoachSearch{SortBy: SortPriceHighLow})
	require.NoError(t, err)
	require.Len(t, page.Coaches, 3)
	assert.Equal(t, "Dear", page.Coaches[0].Title)
	assert.Equal(t, "Cheap", page.Coaches[2].Title)

	page, err = store.GetCoaches(ctx, CoachSearch{SortBy: SortPriceLowHigh})
	require.NoError(t, err)
	assert.Equal(t, "Cheap", page.Coaches[0].Title)

	// Default order is newest insertion first.
	page, err = store.GetCoaches(ctx, CoachSearch{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Coaches, 2)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, "Dear", page.Coaches[0].Title)

	page, err = store.GetCoaches(ctx, CoachSearch{Limit: 2, Page: 2})
	require.NoError(t, err)
	require.Len(t, page.Coaches, 1)
	assert.Equal(t, "Cheap", page.Coaches[0].Title)
}

// TestCoachImages verifies image rows round-trip in position order and
// delete works
func TestCoachImages(t *testing.T) {
	store := testStore(t)
	coach := seedCoach(t, store, Coach{Title: "A", Year: 2018, Make: "Prevost", Model: "H3-45", Price: 1, SourceID: "1", SourceURL: "http://example.com/1.html"})

	ctx := context.Background()
	require.NoError(t, store.CreateCoachImage(ctx, CoachImage{CoachID: coach.ID, ImageURL: "http://example.com/b.jpg", Position: 1}))
	require.NoError(t, store.CreateCoachImage(ctx, CoachImage{CoachID: coach.ID, ImageURL: "http://example.com/a.jpg", IsFeatured: true, Position: 0}))

	images, err := store.GetCoachImages(ctx, coach.ID)
	require.NoError(t, err)
	require.Len(t, images, 2)
	assert.Equal(t, "http://example.com/a.jpg", images[0].ImageURL)
	assert.True(t, images[0].IsFeatured)
	assert.Equal(t, "http://example.com/b.jpg", images[1].ImageURL)

	require.NoError(t, store.DeleteCoachImages(ctx, coach.ID))
	images, err = store.GetCoachImages(ctx, coach.ID)
	require.NoError(t, err)
	assert.Empty(t, images)
}

// TestCoachFeatures verifies feature rows round-trip and delete works
func TestCoachFeatures(t *testing.T) {
	store := testStore(t)
	coach := seedCoach(t, store, Coach{Title: "A", Year: 2018, Make: "Prevost", Model: "H3-45", Price: 1, SourceID: "1", SourceURL: "http://example.com/1.html"})

	ctx := context.Background()
	require.NoError(t, store.CreateCoachFeature(ctx, CoachFeature{CoachID: coach.ID, Name: "Aqua-Hot heating"}))
	require.NoError(t, store.CreateCoachFeature(ctx, CoachFeature{CoachID: coach.ID, Name: "King bed suite"}))

	features, err := store.GetCoachFeatures(ctx, coach.ID)
	require.NoError(t, err)
	require.Len(t, features, 2)
	assert.Equal(t, "Aqua-Hot heating", features[0].Name)

	require.NoError(t, store.DeleteCoachFeatures(ctx, coach.ID))
	features, err = store.GetCoachFeatures(ctx, coach.ID)
	require.NoError(t, err)
	assert.Empty(t, features)
}

// TestDistinctLookups verifies the makes, models and years dropdowns
func TestDistinctLookups(t *testing.T) {
	store := testStore(t)
	seedCoach(t, store, Coach{Title: "A", Year: 2018, Make: "Liberty", Model: "H3-45", Price: 1, SourceID: "1", SourceURL: "http://example.com/1.html"})
	seedCoach(t, store, Coach{Title: "B", Year: 2015, Make: "Marathon", Model: "XLII", Price: 1, SourceID: "2", SourceURL: "http://example.com/2.html"})
	seedCoach(t, store, Coach{Title: "C", Year: 2018, Make: "Marathon", Model: "XLII", Price: 1, SourceID: "3", SourceURL: "http://example.com/3.html"})

	ctx := context.Background()

	makes, err := store.GetCoachMakes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Liberty", "Marathon"}, makes)

	models, err := store.GetCoachModels(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"H3-45", "XLII"}, models)

	years, err := store.GetCoachYears(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{2018, 2015}, years)
}
