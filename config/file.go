package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// FileConfig represents the structure of ~/.coachdata/config.yaml. All
// fields are optional; unset fields leave the environment-derived value in
// place. Durations are strings in time.ParseDuration form ("2s", "500ms").
type FileConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	Storage    struct {
		Type string `yaml:"type"`
		DSN  string `yaml:"dsn"`
	} `yaml:"storage"`
	Scraper struct {
		IndexURL     string `yaml:"index_url"`
		PageSuffix   string `yaml:"page_suffix"`
		MaxPages     int    `yaml:"max_pages"`
		Delay        string `yaml:"delay"`
		FetchTimeout string `yaml:"fetch_timeout"`
		StartupDelay string `yaml:"startup_delay"`
	} `yaml:"scraper"`
}

// LoadConfigFile loads configuration from ~/.coachdata/config.yaml, or the
// path named by COACHDATA_CONFIG. Returns nil if the file doesn't exist
// (not an error). Returns error if the file exists but cannot be parsed.
func LoadConfigFile() (*FileConfig, error) {
	configPath := os.Getenv("COACHDATA_CONFIG")
	if configPath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		configPath = filepath.Join(homeDir, ".coachdata", "config.yaml")
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg FileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &cfg, nil
}

// apply overlays the file's set fields onto cfg. Malformed durations are
// reported rather than silently skipped.
func (f *FileConfig) apply(cfg *Config) error {
	if f.ListenAddr != "" {
		cfg.ListenAddr = f.ListenAddr
	}
	if f.Storage.Type != "" {
		cfg.Storage.Type = f.Storage.Type
	}
	if f.Storage.DSN != "" {
		cfg.Storage.DSN = f.Storage.DSN
	}
	if f.Scraper.IndexURL != "" {
		cfg.Scraper.IndexURL = f.Scraper.IndexURL
	}
	if f.Scraper.PageSuffix != "" {
		cfg.Scraper.PageSuffix = f.Scraper.PageSuffix
	}
	if f.Scraper.MaxPages != 0 {
		cfg.Scraper.MaxPages = f.Scraper.MaxPages
	}

	if err := applyDuration(f.Scraper.Delay, "scraper.delay", &cfg.Scraper.Delay); err != nil {
		return err
	}
	if err := applyDuration(f.Scraper.FetchTimeout, "scraper.fetch_timeout", &cfg.Scraper.FetchTimeout); err != nil {
		return err
	}
	return applyDuration(f.Scraper.StartupDelay, "scraper.startup_delay", &cfg.Scraper.StartupDelay)
}

func applyDuration(value, name string, target *time.Duration) error {
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", name, err)
	}
	*target = d
	return nil
}
