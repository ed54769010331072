package coachdata

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store on a Postgres database via a pgx pool.
// Selected with storage type "postgres" in the configuration; the schema
// matches the SQLite backend.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to the database at the given DSN, verifies
// connectivity, and initializes the schema.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	store := &PostgresStore{pool: pool}
	if err := store.initSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *PostgresStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS coaches (
		id BIGSERIAL PRIMARY KEY,
		title TEXT NOT NULL,
		year INTEGER NOT NULL,
		make TEXT NOT NULL,
		model TEXT NOT NULL,
		price NUMERIC(12,2) NOT NULL,
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
		is_featured BOOLEAN NOT NULL DEFAULT FALSE,
		is_new_arrival BOOLEAN NOT NULL DEFAULT TRUE,
		seller TEXT,
		location TEXT,
		source_id TEXT NOT NULL UNIQUE,
		source_url TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS coach_images (
		id BIGSERIAL PRIMARY KEY,
		coach_id BIGINT NOT NULL REFERENCES coaches(id) ON DELETE CASCADE,
		image_url TEXT NOT NULL,
		is_featured BOOLEAN NOT NULL DEFAULT FALSE,
		position INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS coach_features (
		id BIGSERIAL PRIMARY KEY,
		coach_id BIGINT NOT NULL REFERENCES coaches(id) ON DELETE CASCADE,
		name TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_coach_images_coach ON coach_images(coach_id);
	CREATE INDEX IF NOT EXISTS idx_coach_features_coach ON coach_features(coach_id);
	`

	_, err := s.pool.Exec(ctx, schema)
	return err
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// pgSearchClauses builds WHERE conditions with $n placeholders.
func pgSearchClauses(search CoachSearch) ([]string, []any) {
	var conditions []string
	var args []any

	add := func(expr string, arg any) {
		args = append(args, arg)
		conditions = append(conditions, fmt.Sprintf(expr, len(args)))
	}

	if search.Search != "" {
		add("title ILIKE $%d", "%"+search.Search+"%")
	}
	if search.Make != "" {
		add("make = $%d", search.Make)
	}
	if search.Model != "" {
		add("model = $%d", search.Model)
	}
	if search.Year != 0 {
		add("year = $%d", search.Year)
	}
	if search.MinPrice != 0 {
		add("price >= $%d", search.MinPrice)
	}
	if search.MaxPrice != 0 {
		add("price <= $%d", search.MaxPrice)
	}
	if search.Status != "" {
		add("status = $%d", search.Status)
	}

	return conditions, args
}

// GetCoaches returns one page of coaches matching the search filters, plus
// the total match count.
func (s *PostgresStore) GetCoaches(ctx context.Context, search CoachSearch) (*CoachPage, error) {
	page := search.Page
	if page < 1 {
		page = 1
	}
	limit := search.Limit
	if limit < 1 {
		limit = 6
	}
	offset := (page - 1) * limit

	conditions, args := pgSearchClauses(search)
	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM coaches %s", where)
	if err := s.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count coaches: %w", err)
	}

	query := fmt.Sprintf("SELECT %s FROM coaches %s %s LIMIT $%d OFFSET $%d",
		coachColumns, where, orderClause(search.SortBy), len(args)+1, len(args)+2)
	rows, err := s.pool.Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query coaches: %w", err)
	}
	defer rows.Close()

	result := &CoachPage{Coaches: []Coach{}, Total: total}
	for rows.Next() {
		coach, err := scanPgCoach(rows)
		if err != nil {
			return nil, err
		}
		result.Coaches = append(result.Coaches, *coach)
	}

	return result, rows.Err()
}

// GetCoachByID retrieves a single coach. Returns (nil, nil) when no coach
// with the given id exists.
func (s *PostgresStore) GetCoachByID(ctx context.Context, id int64) (*Coach, error) {
	query := fmt.Sprintf("SELECT %s FROM coaches WHERE id = $1", coachColumns)
	coach, err := scanPgCoach(s.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query coach: %w", err)
	}
	return coach, nil
}

// ExistsBySourceID reports whether a coach with the given source ID has
// already been ingested.
func (s *PostgresStore) ExistsBySourceID(ctx context.Context, sourceID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM coaches WHERE source_id = $1)", sourceID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check source_id: %w", err)
	}
	return exists, nil
}

// CreateCoach inserts a new coach and returns it with its assigned ID and
// timestamps populated.
func (s *PostgresStore) CreateCoach(ctx context.Context, coach *Coach) (*Coach, error) {
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
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
			$14, $15, $16, $17, $18, $19, $20, $21, $22, $23)
		RETURNING id
	`

	err := s.pool.QueryRow(ctx, query,
		coach.Title, coach.Year, coach.Make, coach.Model, coach.Price,
		coach.Description, coach.ExteriorColor, coach.InteriorColor,
		coach.Mileage, coach.Length, coach.SlideCount,
		coach.BedType, coach.Category, coach.FeaturedImage, coach.Status,
		coach.IsFeatured, coach.IsNewArrival, coach.Seller, coach.Location,
		coach.SourceID, coach.SourceURL, now, now,
	).Scan(&coach.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert coach: %w", err)
	}

	return coach, nil
}

// GetCoachImages returns a coach's images ordered by position.
func (s *PostgresStore) GetCoachImages(ctx context.Context, coachID int64) ([]CoachImage, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT id, coach_id, image_url, is_featured, position FROM coach_images WHERE coach_id = $1 ORDER BY position ASC",
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
func (s *PostgresStore) CreateCoachImage(ctx context.Context, image CoachImage) error {
	_, err := s.pool.Exec(ctx,
		"INSERT INTO coach_images (coach_id, image_url, is_featured, position) VALUES ($1, $2, $3, $4)",
		image.CoachID, image.ImageURL, image.IsFeatured, image.Position)
	if err != nil {
		return fmt.Errorf("failed to insert coach image: %w", err)
	}
	return nil
}

// DeleteCoachImages removes all images for a coach.
func (s *PostgresStore) DeleteCoachImages(ctx context.Context, coachID int64) error {
	_, err := s.pool.Exec(ctx, "DELETE FROM coach_images WHERE coach_id = $1", coachID)
	if err != nil {
		return fmt.Errorf("failed to delete coach images: %w", err)
	}
	return nil
}

// GetCoachFeatures returns a coach's feature labels.
func (s *PostgresStore) GetCoachFeatures(ctx context.Context, coachID int64) ([]CoachFeature, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT id, coach_id, name FROM coach_features WHERE coach_id = $1", coachID)
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
func (s *PostgresStore) CreateCoachFeature(ctx context.Context, feature CoachFeature) error {
	_, err := s.pool.Exec(ctx,
		"INSERT INTO coach_features (coach_id, name) VALUES ($1, $2)",
		feature.CoachID, feature.Name)
	if err != nil {
		return fmt.Errorf("failed to insert coach feature: %w", err)
	}
	return nil
}

// DeleteCoachFeatures removes all features for a coach.
func (s *PostgresStore) DeleteCoachFeatures(ctx context.Context, coachID int64) error {
	_, err := s.pool.Exec(ctx, "DELETE FROM coach_features WHERE coach_id = $1", coachID)
	if err != nil {
		return fmt.Errorf("failed to delete coach features: %w", err)
	}
	return nil
}

// GetCoachMakes returns the distinct makes in the store.
func (s *PostgresStore) GetCoachMakes(ctx context.Context) ([]string, error) {
	return s.distinctStrings(ctx, "SELECT DISTINCT make FROM coaches ORDER BY make")
}

// GetCoachModels returns the distinct models in the store.
func (s *PostgresStore) GetCoachModels(ctx context.Context) ([]string, error) {
	return s.distinctStrings(ctx, "SELECT DISTINCT model FROM coaches ORDER BY model")
}

// GetCoachYears returns the distinct years in the store, newest first.
func (s *PostgresStore) GetCoachYears(ctx context.Context) ([]int, error) {
	rows, err := s.pool.Query(ctx, "SELECT DISTINCT year FROM coaches ORDER BY year DESC")
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

func (s *PostgresStore) distinctStrings(ctx context.Context, query string) ([]string, error) {
	rows, err := s.pool.Query(ctx, query)
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

// scanPgCoach reads one coach row in coachColumns order. pgx scans nullable
// columns directly into pointer fields.
func scanPgCoach(row pgx.Row) (*Coach, error) {
	var coach Coach
	err := row.Scan(
		&coach.ID, &coach.Title, &coach.Year, &coach.Make, &coach.Model,
		&coach.Price, &coach.Description, &coach.ExteriorColor,
		&coach.InteriorColor, &coach.Mileage, &coach.Length,
		&coach.SlideCount, &coach.BedType, &coach.Category,
		&coach.FeaturedImage, &coach.Status, &coach.IsFeatured,
		&coach.IsNewArrival, &coach.Seller, &coach.Location,
		&coach.SourceID, &coach.SourceURL, &coach.CreatedAt, &coach.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &coach, nil
}
