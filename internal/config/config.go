package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	Logging    LoggingConfig    `yaml:"logging"`
	Catalog    CatalogConfig    `yaml:"catalog"`
	Resolver   ResolverConfig   `yaml:"resolver"`
	Lineup     LineupConfig     `yaml:"lineup"`
	Aggregator AggregatorConfig `yaml:"aggregator"`
	Watch      WatchConfig      `yaml:"watch"`
	Backup     BackupConfig     `yaml:"backup"`
}

// DatabaseConfig holds SQLite settings.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	FilePath string `yaml:"file_path"`
}

// CatalogConfig holds music-catalog client settings.
type CatalogConfig struct {
	BaseURL      string `yaml:"base_url"`
	TokenURL     string `yaml:"token_url"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	// SearchLimit is the top-K candidate count requested per lookup.
	SearchLimit int `yaml:"search_limit"`
	// CallDelay is the fixed pause between external lookups.
	CallDelay  Duration `yaml:"call_delay"`
	MaxRetries int      `yaml:"max_retries"`
	// RequestsPerSecond caps the request rate regardless of CallDelay.
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// ResolverConfig holds identity-resolution settings.
type ResolverConfig struct {
	// MatchThreshold is the composite-score floor for accepting an
	// external candidate. A candidate scoring exactly at the threshold
	// is accepted.
	MatchThreshold float64 `yaml:"match_threshold"`
}

// LineupConfig holds parsing and segmentation settings.
type LineupConfig struct {
	// DayGap is the maximum quiet period inside one festival day.
	DayGap Duration `yaml:"day_gap"`
	// AmpersandAllowList names acts whose "&" is part of the name, not a
	// collaboration join. Extend per deployment; the defaults are known
	// to be incomplete.
	AmpersandAllowList []string `yaml:"ampersand_allow_list"`
}

// AggregatorConfig holds schedule-aggregator directory settings.
type AggregatorConfig struct {
	BaseURL string `yaml:"base_url"`
	// NameThreshold is the minimum fuzzy similarity for a directory match.
	NameThreshold float64 `yaml:"name_threshold"`
}

// BackupConfig holds database snapshot settings.
type BackupConfig struct {
	Dir string `yaml:"dir"`
	// Retention is the number of snapshots kept after pruning.
	Retention int `yaml:"retention"`
}

// WatchConfig holds inbox watch-mode settings.
type WatchConfig struct {
	InboxPath string   `yaml:"inbox_path"`
	Debounce  Duration `yaml:"debounce"`
}

// defaultAllowList covers the collisions seen in real lineups so far.
var defaultAllowList = []string{
	"Simon & Garfunkel",
	"Above & Beyond",
	"Mumford & Sons",
	"Hall & Oates",
	"Belle & Sebastian",
	"Emerson, Lake & Palmer",
	"Earth, Wind & Fire",
	"Crosby, Stills & Nash",
	"Nico & Vinz",
	"Bob Moses & ZHU",
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path: "/data/lineup.db",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Catalog: CatalogConfig{
			SearchLimit:       10,
			CallDelay:         Duration(400 * time.Millisecond),
			MaxRetries:        3,
			RequestsPerSecond: 5,
		},
		Resolver: ResolverConfig{
			MatchThreshold: 0.6,
		},
		Lineup: LineupConfig{
			DayGap:             Duration(4 * time.Hour),
			AmpersandAllowList: append([]string(nil), defaultAllowList...),
		},
		Aggregator: AggregatorConfig{
			NameThreshold: 0.8,
		},
		Watch: WatchConfig{
			InboxPath: "/data/inbox",
			Debounce:  Duration(2 * time.Second),
		},
		Backup: BackupConfig{
			Dir:       "/data/backups",
			Retention: 7,
		},
	}
}

// Load reads config from a YAML file (if it exists) and overrides with
// environment variables. Environment variables take precedence.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFromFile(path); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	cfg.loadFromEnv()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, c)
}

func (c *Config) loadFromEnv() {
	if v := os.Getenv("LINEUP_DB_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("LINEUP_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("LINEUP_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("LINEUP_LOG_FILE"); v != "" {
		c.Logging.FilePath = v
	}
	if v := os.Getenv("LINEUP_CATALOG_URL"); v != "" {
		c.Catalog.BaseURL = v
	}
	if v := os.Getenv("LINEUP_CATALOG_TOKEN_URL"); v != "" {
		c.Catalog.TokenURL = v
	}
	if v := os.Getenv("LINEUP_CATALOG_CLIENT_ID"); v != "" {
		c.Catalog.ClientID = v
	}
	if v := os.Getenv("LINEUP_CATALOG_CLIENT_SECRET"); v != "" {
		c.Catalog.ClientSecret = v
	}
	if v := os.Getenv("LINEUP_MATCH_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Resolver.MatchThreshold = f
		}
	}
	if v := os.Getenv("LINEUP_DAY_GAP"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Lineup.DayGap = Duration(d)
		}
	}
	if v := os.Getenv("LINEUP_AGGREGATOR_URL"); v != "" {
		c.Aggregator.BaseURL = v
	}
	if v := os.Getenv("LINEUP_INBOX_PATH"); v != "" {
		c.Watch.InboxPath = v
	}
	if v := os.Getenv("LINEUP_BACKUP_DIR"); v != "" {
		c.Backup.Dir = v
	}
}

func (c *Config) validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	if c.Resolver.MatchThreshold < 0 || c.Resolver.MatchThreshold > 1 {
		return fmt.Errorf("match threshold must be in [0, 1], got %v", c.Resolver.MatchThreshold)
	}
	if c.Lineup.DayGap <= 0 {
		return fmt.Errorf("day gap must be positive, got %v", c.Lineup.DayGap)
	}
	if c.Catalog.SearchLimit < 1 {
		return fmt.Errorf("catalog search limit must be at least 1, got %d", c.Catalog.SearchLimit)
	}
	return nil
}
