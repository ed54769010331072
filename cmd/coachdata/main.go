package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	coachdata "github.com/tychase/LuxuryCoachData"
	"github.com/tychase/LuxuryCoachData/config"
	"github.com/tychase/LuxuryCoachData/scraper"
)

func openStore(cfg *config.Config) (coachdata.Store, error) {
	switch cfg.Storage.Type {
	case "postgres":
		log.Printf("INFO: opening postgres store")
		return coachdata.NewPostgresStore(context.Background(), cfg.Storage.DSN)
	default:
		log.Printf("INFO: opening sqlite store: %s", cfg.Storage.DSN)
		return coachdata.NewSQLiteStore(cfg.Storage.DSN)
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	store, err := openStore(cfg)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()

	service := scraper.New(store, scraper.Config{
		IndexURL:     cfg.Scraper.IndexURL,
		PageSuffix:   cfg.Scraper.PageSuffix,
		MaxPages:     cfg.Scraper.MaxPages,
		Delay:        cfg.Scraper.Delay,
		FetchTimeout: cfg.Scraper.FetchTimeout,
	})

	server := coachdata.NewAPIServer(store, service)
	handler := server.CORSMiddleware(server.Routes())

	// Give the HTTP server a head start before the first scrape so the
	// API is reachable while the run is in flight.
	startupTimer := time.AfterFunc(cfg.Scraper.StartupDelay, func() {
		log.Printf("INFO: starting initial scrape run")
		service.Start()
	})
	defer startupTimer.Stop()

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: handler,
	}

	errChan := make(chan error, 1)
	go func() {
		log.Printf("Starting coach API server on %s", cfg.ListenAddr)
		errChan <- httpServer.ListenAndServe()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigChan:
		log.Printf("Received signal: %v", sig)
		log.Println("Shutting down gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("ERROR: server shutdown: %v", err)
		}
	case err := <-errChan:
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}
}
