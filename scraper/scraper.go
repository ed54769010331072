package scraper

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	coachdata "github.com/tychase/LuxuryCoachData"
)

// Config holds the scraper settings.
type Config struct {
	// IndexURL is the marketplace index page listing coaches for sale.
	IndexURL string
	// PageSuffix identifies listing anchors on the index page.
	PageSuffix string
	// MaxPages caps index pagination. The current marketplace serves a
	// single index page.
	MaxPages int
	// Delay is the politeness delay applied once per index-page fetch.
	Delay time.Duration
	// FetchTimeout bounds each outbound HTTP request.
	FetchTimeout time.Duration
}

// DefaultConfig returns the scraper defaults.
func DefaultConfig() Config {
	return Config{
		PageSuffix:   ".html",
		MaxPages:     1,
		Delay:        1 * time.Second,
		FetchTimeout: 10 * time.Second,
	}
}

// RunReport summarizes one scrape run.
type RunReport struct {
	RunID      uuid.UUID `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Found      int       `json:"found"`
	New        int       `json:"new"`
	Skipped    int       `json:"skipped"`
	Failed     int       `json:"failed"`
}

// Service orchestrates scrape runs: it fetches the index once, then for
// each candidate in index order runs the dedup check, the detail fetch, and
// persistence. Candidates are processed strictly sequentially; a failing
// listing is logged and does not abort the run. The service tracks whether
// a run is in progress on the instance rather than in package state, but
// overlapping runs are not prevented, only logged.
type Service struct {
	store  coachdata.Store
	index  *IndexFetcher
	detail *DetailFetcher

	mu      sync.Mutex
	running bool
}

// New creates a scraper service over the given store.
func New(store coachdata.Store, cfg Config) *Service {
	if cfg.PageSuffix == "" {
		cfg.PageSuffix = ".html"
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 10 * time.Second
	}

	client := &http.Client{Timeout: cfg.FetchTimeout}

	return &Service{
		store:  store,
		index:  NewIndexFetcher(client, cfg.IndexURL, cfg.PageSuffix, cfg.MaxPages, cfg.Delay),
		detail: NewDetailFetcher(client),
	}
}

// Running reports whether a run is currently in progress.
func (s *Service) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Start launches a run in the background and returns immediately. Callers
// get acknowledgment that a run was started, not its outcome.
func (s *Service) Start() {
	go func() {
		if _, err := s.Run(context.Background()); err != nil {
			log.Printf("ERROR: [scraper] run failed: %v", err)
		}
	}()
}

// Run executes one scrape run to completion. An index fetch failure aborts
// the run; per-listing failures are logged and skipped.
func (s *Service) Run(ctx context.Context) (*RunReport, error) {
	s.mu.Lock()
	if s.running {
		log.Printf("WARN: [scraper] run started while another is in progress")
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	report := &RunReport{
		RunID:     uuid.New(),
		StartedAt: time.Now(),
	}

	log.Printf("INFO: [scraper] run %s starting", report.RunID)

	candidates, err := s.index.Fetch(ctx)
	if err != nil {
		log.Printf("ERROR: [scraper] run %s aborted, index fetch failed: %v", report.RunID, err)
		return nil, fmt.Errorf("failed to fetch index: %w", err)
	}
	report.Found = len(candidates)
	log.Printf("INFO: [scraper] run %s found %d candidate listings", report.RunID, report.Found)

	for _, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if err := s.process(ctx, candidate, report); err != nil {
			report.Failed++
			log.Printf("ERROR: [scraper] failed to process %s: %v", candidate.URL, err)
		}
	}

	report.FinishedAt = time.Now()
	log.Printf("INFO: [scraper] run %s completed in %v: %d new, %d skipped, %d failed",
		report.RunID, report.FinishedAt.Sub(report.StartedAt), report.New, report.Skipped, report.Failed)

	return report, nil
}

// process handles one candidate: dedup check, detail fetch, persistence.
// The dedup check runs before the detail fetch so already-known listings
// cost no network round-trip.
func (s *Service) process(ctx context.Context, candidate Candidate, report *RunReport) error {
	sourceID := SourceIDFromURL(candidate.URL)

	exists, err := s.store.ExistsBySourceID(ctx, sourceID)
	if err != nil {
		return fmt.Errorf("failed to check for existing listing: %w", err)
	}
	if exists {
		report.Skipped++
		log.Printf("INFO: [scraper] skipping %s, source id %s already ingested", candidate.URL, sourceID)
		return nil
	}

	log.Printf("INFO: [scraper] processing %s", candidate.URL)

	listing, err := s.detail.Fetch(ctx, candidate)
	if err != nil {
		return err
	}

	if err := s.persist(ctx, listing); err != nil {
		return err
	}
	report.New++
	return nil
}

// persist writes the coach and its images and features. Images and
// features are deleted before reinsertion so the write is repeatable within
// the creation call path; there is no rollback of partial writes if a later
// insert fails.
func (s *Service) persist(ctx context.Context, listing *Listing) error {
	coach, err := s.store.CreateCoach(ctx, &listing.Coach)
	if err != nil {
		return fmt.Errorf("failed to insert coach: %w", err)
	}

	if err := s.store.DeleteCoachImages(ctx, coach.ID); err != nil {
		return err
	}
	if err := s.store.DeleteCoachFeatures(ctx, coach.ID); err != nil {
		return err
	}

	for i, imageURL := range listing.Images {
		img := coachdata.CoachImage{
			CoachID:    coach.ID,
			ImageURL:   imageURL,
			IsFeatured: i == 0,
			Position:   i,
		}
		if err := s.store.CreateCoachImage(ctx, img); err != nil {
			return fmt.Errorf("failed to insert image %d: %w", i, err)
		}
	}

	for _, name := range listing.Features {
		feature := coachdata.CoachFeature{CoachID: coach.ID, Name: name}
		if err := s.store.CreateCoachFeature(ctx, feature); err != nil {
			return fmt.Errorf("failed to insert feature: %w", err)
		}
	}

	log.Printf("INFO: [scraper] ingested %q (%d images, %d features)",
		coach.Title, len(listing.Images), len(listing.Features))
	return nil
}
