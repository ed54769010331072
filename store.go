package coachdata

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the persistence facade consumed by the scraper and the HTTP API.
// The scraper needs only the existence check, the inserts, and the
// delete-before-reinsert operations; everything else serves the browsing
// front end.
type Store interface {
	GetCoaches(ctx context.Context, search CoachSearch) (*CoachPage, error)
	GetCoachByID(ctx context.Context, id int64) (*Coach, error)
	GetCoachImages(ctx context.Context, coachID int64) ([]CoachImage, error)
	GetCoachFeatures(ctx context.Context, coachID int64) ([]CoachFeature, error)
	GetCoachMakes(ctx context.Context) ([]string, error)
	GetCoachModels(ctx context.Context) ([]string, error)
	GetCoachYears(ctx context.Context) ([]int, error)

	ExistsBySourceID(ctx context.Context, sourceID string) (bool, error)
	CreateCoach(ctx context.Context, coach *Coach) (*Coach, error)
	CreateCoachImage(ctx context.Context, image CoachImage) error
	CreateCoachFeature(ctx context.Context, feature CoachFeature) error
	DeleteCoachImages(ctx context.Context, coachID int64) error
	DeleteCoachFeatures(ctx context.Context, coachID int64) error

	Close() error
}

// SQLiteStore implements Store on a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at dbPath and initializes
// the schema.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Cascade deletes from coaches to images/features need this per
	// connection.
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates the tables if they don't exist.
func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS coaches (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		year INTEGER NOT NULL,
		make TEXT NOT NULL,
		model TEXT NOT NULL,
		price REAL NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		exterior_color TEXT NOT NULL DEFAULT '',
		interior_color TEXT NOT NULL DEFAULT '',
		mileage INTEGER,
		length TEXT NOT NULL DEFAULT '',
		slide_count INTEGER NOT NULL DEFAULT 0,
		bed_type TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		featured_image TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'available',
		is_featured INTEGER NOT NULL DEFAULT 0,
		is_new_arrival INTEGER NOT NULL DEFAULT 1,
		seller TEXT,
		location TEXT,
		source_id TEXT NOT NULL UNIQUE,
		source_url TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS coach_images (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		coach_id INTEGER NOT NULL REFERENCES coaches(id) ON DELETE CASCADE,
		image_url TEXT NOT NULL,
		is_featured INTEGER NOT NULL DEFAULT 0,
		position INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS coach_features (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		coach_id INTEGER NOT NULL REFERENCES coaches(id) ON DELETE CASCADE,
		name TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_coach_images_coach ON coach_images(coach_id);
	CREATE INDEX IF NOT EXISTS idx_coach_features_coach ON coach_features(coach_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const coachColumns = `id, title, year, make, model, price, description,
	exterior_color, interior_color, mileage, length, slide_count, bed_type,
	category, featured_image, status, is_featured, is_new_arrival,
	seller, location, source_id, source_url, created_at, updated_at`

// searchClauses builds the WHERE conditions and arguments for a search.
func searchClauses(search CoachSearch) ([]string, []any) {
	var conditions []string
	var args []any

	if search.Search != "" {
		conditions = append(conditions, "title LIKE ?")
		args = append(args, "%"+search.Search+"%")
	}
	if search.Make != "" {
		conditions = append(conditions, "make = ?")
		args = append(args, search.Make)
	}
	if search.Model != "" {
		conditions = append(conditions, "model = ?")
		args = append(args, search.Model)
	}
	if search.Year != 0 {
		conditions = append(conditions, "year = ?")
		args = append(args, search.Year)
	}
	if search.MinPrice != 0 {
		conditions = append(conditions, "price >= ?")
		args = append(args, search.MinPrice)
	}
	if search.MaxPrice != 0 {
		conditions = append(conditions, "price <= ?")
		args = append(args, search.MaxPrice)
	}
	if search.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, search.Status)
	}

	return conditions, args
}

// orderClause maps a SortBy value to an ORDER BY clause. Unknown values
// fall back to newest-first by insertion order.
func orderClause(sortBy string) string {
	switch sortBy {
	case SortNewest:
		return "ORDER BY year DESC, id DESC"
	case SortPriceHighLow:
		return "ORDER BY price DESC"
	case SortPriceLowHigh:
		return "ORDER BY price ASC"
	default:
		return "ORDER BY id DESC"
	}
}

// GetCoaches returns one page of coaches matching the search filters, plus
// the total match count.
func (s *SQLiteStore) GetCoaches(ctx context.Context, search CoachSearch) (*CoachPage, error) {
	page := search.Page
	if page < 1 {
		page = 1
	}
	limit := search.Limit
	if limit < 1 {
		limit = 6
	}
	offset := (page - 1) * limit

	conditions, args := searchClauses(search)
	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM coaches %s", where)
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count coaches: %w", err)
	}

	query := fmt.Sprintf("SELECT %s FROM coaches %s %s LIMIT ? OFFSET ?",
		coachColumns, where, orderClause(search.SortBy))
	rows, err := s.db.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query coaches: %w", err)
	}
	defer rows.Close()

	result := &CoachPage{Coaches: []Coach{}, Total: total}
	for rows.Next() {
		coach, err := scanCoach(rows)
		if err != nil {
			return nil, err
		}
		result.Coaches = append(result.Coaches, *coach)
	}

	return result, rows.Err()
}

// GetCoachByID retrieves a single coach. Returns (nil, nil) when no coach
// with the given id exists.
func (s *SQLiteStore) GetCoachByID(ctx context.Context, id int64) (*Coach, error) {
	query := fmt.Sprintf("SELECT %s FROM coaches WHERE id = ?", coachColumns)
	coach, err := scanCoach(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query coach: %w", err)
	}
	return coach, nil
}

// ExistsBySourceID reports whether a coach with the given source ID has
// already been ingested. This is the scraper's deduplication check.
func (s *SQLiteStore) ExistsBySourceID(ctx context.Context, sourceID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM coaches WHERE source_id = ?", sourceID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check source_id: %w", err)
	}
	return n > 0, nil
}

// CreateCoach inserts a new coach and returns it with its assigned ID and
// timestamps populated.
func (s *SQLiteStore) CreateCoach(ctx context.Context, coach *Coach) (*Coach, error) {
	now := time.Now()
	coach.CreatedAt = now
	coach.UpdatedAt = now
	if coach.Status == "" {
		coach.Status = StatusAvailable
	}

	query := `
		INSERT INTO coaches (
			title, year, make, model, price, description,
			exterior_color, interior_color, mileage, length, slide_count,
			bed_type, category, featured_image, status, is_featured,
			is_new_arrival, seller, location, source_id, source_url,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	res, err := s.db.ExecContext(ctx, query,
		coach.Title, coach.Year, coach.Make, coach.Model, coach.Price,
		coach.Description, coach.ExteriorColor, coach.InteriorColor,
		nullableInt(coach.Mileage), coach.Length, coach.SlideCount,
		coach.BedType, coach.Category, coach.FeaturedImage, coach.Status,
		coach.IsFeatured, coach.IsNewArrival,
		nullableString(coach.Seller), nullableString(coach.Location),
		coach.SourceID, coach.SourceURL,
		formatTime(now), formatTime(now),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert coach: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read inserted coach id: %w", err)
	}
	coach.ID = id

	return coach, nil
}

// GetCoachImages returns a coach's images ordered by position.
func (s *SQLiteStore) GetCoachImages(ctx context.Context, coachID int64) ([]CoachImage, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, coach_id, image_url, is_featured, position FROM coach_images WHERE coach_id = ? ORDER BY position ASC",
		coachID)
	if err != nil {
		return nil, fmt.Errorf("failed to query coach images: %w", err)
	}
	defer rows.Close()

	images := []CoachImage{}
	for rows.Next() {
		var img CoachImage
		if err := rows.Scan(&img.ID, &img.CoachID, &img.ImageURL, &img.IsFeatured, &img.Position); err != nil {
			return nil, fmt.Errorf("failed to scan coach image: %w", err)
		}
		images = append(images, img)
	}

	return images, rows.Err()
}

// CreateCoachImage inserts one image row for a coach.
func (s *SQLiteStore) CreateCoachImage(ctx context.Context, image CoachImage) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO coach_images (coach_id, image_url, is_featured, position) VALUES (?, ?, ?, ?)",
		image.CoachID, image.ImageURL, image.IsFeatured, image.Position)
	if err != nil {
		return fmt.Errorf("failed to insert coach image: %w", err)
	}
	return nil
}

// DeleteCoachImages removes all images for a coach.
func (s *SQLiteStore) DeleteCoachImages(ctx context.Context, coachID int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM coach_images WHERE coach_id = ?", coachID)
	if err != nil {
		return fmt.Errorf("failed to delete coach images: %w", err)
	}
	return nil
}

// GetCoachFeatures returns a coach's feature labels.
func (s *SQLiteStore) GetCoachFeatures(ctx context.Context, coachID int64) ([]CoachFeature, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, coach_id, name FROM coach_features WHERE coach_id = ?", coachID)
	if err != nil {
		return nil, fmt.Errorf("failed to query coach features: %w", err)
	}
	defer rows.Close()

	features := []CoachFeature{}
	for rows.Next() {
		var f CoachFeature
		if err := rows.Scan(&f.ID, &f.CoachID, &f.Name); err != nil {
			return nil, fmt.Errorf("failed to scan coach feature: %w", err)
		}
		features = append(features, f)
	}

	return features, rows.Err()
}

// CreateCoachFeature inserts one feature row for a coach.
func (s *SQLiteStore) CreateCoachFeature(ctx context.Context, feature CoachFeature) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO coach_features (coach_id, name) VALUES (?, ?)",
		feature.CoachID, feature.Name)
	if err != nil {
		return fmt.Errorf("failed to insert coach feature: %w", err)
	}
	return nil
}

// DeleteCoachFeatures removes all features for a coach.
func (s *SQLiteStore) DeleteCoachFeatures(ctx context.Context, coachID int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM coach_features WHERE coach_id = ?", coachID)
	if err != nil {
		return fmt.Errorf("failed to delete coach features: %w", err)
	}
	return nil
}

// GetCoachMakes returns the distinct makes in the store, for filter
// dropdowns.
func (s *SQLiteStore) GetCoachMakes(ctx context.Context) ([]string, error) {
	return s.distinctStrings(ctx, "SELECT DISTINCT make FROM coaches ORDER BY make")
}

// GetCoachModels returns the distinct models in the store.
func (s *SQLiteStore) GetCoachModels(ctx context.Context) ([]string, error) {
	return s.distinctStrings(ctx, "SELECT DISTINCT model FROM coaches ORDER BY model")
}

// GetCoachYears returns the distinct years in the store, newest first.
func (s *SQLiteStore) GetCoachYears(ctx context.Context) ([]int, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT year FROM coaches ORDER BY year DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to query years: %w", err)
	}
	defer rows.Close()

	years := []int{}
	for rows.Next() {
		var year int
		if err := rows.Scan(&year); err != nil {
			return nil, fmt.Errorf("failed to scan year: %w", err)
		}
		years = append(years, year)
	}

	return years, rows.Err()
}

func (s *SQLiteStore) distinctStrings(ctx context.Context, query string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	values := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan value: %w", err)
		}
		values = append(values, v)
	}

	return values, rows.Err()
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanCoach reads one coach row in coachColumns order.
func scanCoach(row scanner) (*Coach, error) {
	var coach Coach
	var mileage sql.NullInt64
	var seller, location sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(
		&coach.ID, &coach.Title, &coach.Year, &coach.Make, &coach.Model,
		&coach.Price, &coach.Description, &coach.ExteriorColor,
		&coach.InteriorColor, &mileage, &coach.Length, &coach.SlideCount,
		&coach.BedType, &coach.Category, &coach.FeaturedImage, &coach.Status,
		&coach.IsFeatured, &coach.IsNewArrival, &seller, &location,
		&coach.SourceID, &coach.SourceURL, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if mileage.Valid {
		m := int(mileage.Int64)
		coach.Mileage = &m
	}
	if seller.Valid {
		coach.Seller = &seller.String
	}
	if location.Valid {
		coach.Location = &location.String
	}
	coach.CreatedAt = parseTime(createdAt)
	coach.UpdatedAt = parseTime(updatedAt)

	return &coach, nil
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableString(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

// formatTime serializes a timestamp for storage.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime deserializes a stored timestamp. Invalid values yield the zero
// time rather than an error.
func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
