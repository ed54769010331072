package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Type string
	DSN  string
}

// ScraperConfig holds scrape run settings.
type ScraperConfig struct {
	IndexURL     string
	PageSuffix   string
	MaxPages     int
	Delay        time.Duration
	FetchTimeout time.Duration
	StartupDelay time.Duration
}

// Config holds all application configuration, resolved from defaults, the
// environment, and the optional config file in that order.
type Config struct {
	ListenAddr string
	Storage    StorageConfig
	Scraper    ScraperConfig
}

// Load reads configuration from the environment (with a .env file if
// present), then layers the optional YAML config file on top.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("INFO: no .env file found, using system env vars")
	}

	cfg := &Config{
		ListenAddr: getEnv("LISTEN_ADDR", ":8080"),
		Storage: StorageConfig{
			Type: getEnv("STORAGE_TYPE", "sqlite"),
			DSN:  getEnv("STORAGE_DSN", "./coachdata.db"),
		},
		Scraper: ScraperConfig{
			IndexURL:     getEnv("SCRAPER_INDEX_URL", "https://www.prevost-stuff.com/forsale/public_list_ads.php"),
			PageSuffix:   getEnv("SCRAPER_PAGE_SUFFIX", ".html"),
			MaxPages:     getEnvInt("SCRAPER_MAX_PAGES", 1),
			Delay:        getEnvDuration("SCRAPER_DELAY", time.Second),
			FetchTimeout: getEnvDuration("SCRAPER_FETCH_TIMEOUT", 10*time.Second),
			StartupDelay: getEnvDuration("SCRAPER_STARTUP_DELAY", 5*time.Second),
		},
	}

	fileCfg, err := LoadConfigFile()
	if err != nil {
		return nil, err
	}
	if fileCfg != nil {
		if err := fileCfg.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		d, err := time.ParseDuration(val)
		if err == nil {
			return d
		}
	}
	return fallback
}
