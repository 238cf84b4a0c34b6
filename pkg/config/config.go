package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"golang.org/x/text/language"
)

//go:embed config.toml.sample
var configTemplate string

// Config is the full configuration for chatpal-search: the search engine
// connection, the indexing/backfill knobs, the query defaults and the HTTP
// surface. One Config is loaded per gateway instance and treated as immutable
// after that; a configuration change builds a new gateway (see cmd/serve).
type Config struct {
	// Activated controls whether indexing and searching are enabled at all.
	// When false the gateway answers every call with its disabled sentinel.
	Activated bool `toml:"activated"`

	// StorageDir holds the platform SQLite database.
	StorageDir string `toml:"storage_dir"`

	// ListenAddr is the HTTP API listen address.
	ListenAddr string `toml:"listen_addr"`

	// AdminKey guards the mutating API endpoints (reindex, config, event
	// hooks). Plain search needs no key. Empty means no guard (local use).
	AdminKey string `toml:"admin_key,omitempty"`

	Engine EngineConfig `toml:"engine"`
	Index  IndexConfig  `toml:"index"`
	Search SearchConfig `toml:"search"`
}

// EngineConfig describes how to reach the search engine.
type EngineConfig struct {
	// URL is the base URL of the engine core, e.g.
	// "http://localhost:8983/solr/chatpal".
	URL string `toml:"url"`

	// ExtraHeader is an optional "Name: value" header attached to every
	// engine request (typically an auth token).
	ExtraHeader string `toml:"extra_header,omitempty"`

	Timeout Duration `toml:"timeout,omitempty"`
}

// IndexConfig holds the indexing and backfill knobs.
type IndexConfig struct {
	// Language is a BCP 47 tag selecting the language-analyzed body field
	// (text_<language>) in the engine schema.
	Language string `toml:"language"`

	// PageSize is the bulk upsert batch size during backfill.
	PageSize int `toml:"page_size"`

	// WindowHours is the duration of one backfill time window.
	WindowHours int `toml:"window_hours"`

	// BackfillDelay is the pause between two backfill windows. This is the
	// backpressure mechanism that bounds load on the engine and the message
	// store.
	BackfillDelay Duration `toml:"backfill_delay"`

	// ClearOnStart wipes the index before the bootstrap run at service start.
	ClearOnStart bool `toml:"clear_on_start"`
}

// SearchConfig holds the query-side defaults.
type SearchConfig struct {
	// PageSize is the result page size for searches.
	PageSize int `toml:"page_size"`

	// DateFormat and TimeFormat are Go time layouts used for the
	// caller-facing date strings on aligned results.
	DateFormat string `toml:"date_format"`
	TimeFormat string `toml:"time_format"`
}

// Duration wraps time.Duration for TOML round-tripping.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// GetDefaultConfig returns a Config with every knob at its default.
func GetDefaultConfig() (*Config, error) {
	storageDir, err := GetDefaultStorageDir()
	if err != nil {
		return nil, fmt.Errorf("getting default storage directory: %w", err)
	}
	cfg := &Config{
		StorageDir: storageDir,
		ListenAddr: ":8998",
		Engine: EngineConfig{
			URL:     "http://localhost:8983/solr/chatpal",
			Timeout: Duration{30 * time.Second},
		},
		Index: IndexConfig{
			Language:      "en",
			PageSize:      100,
			WindowHours:   24,
			BackfillDelay: Duration{5 * time.Second},
		},
		Search: SearchConfig{
			PageSize:   10,
			DateFormat: "2006-01-02",
			TimeFormat: "15:04",
		},
	}
	return cfg, nil
}

// LoadConfig reads the configuration from configPath, falling back to the
// defaults when the file does not exist. Missing knobs are defaulted, the
// result is validated.
func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return GetDefaultConfig()
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.StorageDir == "" {
		if storageDir, err := GetDefaultStorageDir(); err == nil {
			c.StorageDir = storageDir
		}
	}
	if c.ListenAddr == "" {
		c.ListenAddr = ":8998"
	}
	if c.Engine.Timeout.Duration == 0 {
		c.Engine.Timeout = Duration{30 * time.Second}
	}
	if c.Index.Language == "" {
		c.Index.Language = "en"
	}
	if c.Index.PageSize == 0 {
		c.Index.PageSize = 100
	}
	if c.Index.WindowHours == 0 {
		c.Index.WindowHours = 24
	}
	if c.Index.BackfillDelay.Duration == 0 {
		c.Index.BackfillDelay = Duration{5 * time.Second}
	}
	if c.Search.PageSize == 0 {
		c.Search.PageSize = 10
	}
	if c.Search.DateFormat == "" {
		c.Search.DateFormat = "2006-01-02"
	}
	if c.Search.TimeFormat == "" {
		c.Search.TimeFormat = "15:04"
	}
}

// Validate checks the configuration for values the rest of the system cannot
// work with. An activated config must name a reachable-looking engine URL and
// a parseable language tag.
func (c *Config) Validate() error {
	if c.Activated && c.Engine.URL == "" {
		return fmt.Errorf("engine.url is required when activated")
	}
	if _, err := language.Parse(c.Index.Language); err != nil {
		return fmt.Errorf("index.language: invalid language tag %q: %w", c.Index.Language, err)
	}
	if c.Index.PageSize < 1 {
		return fmt.Errorf("index.page_size must be positive, got %d", c.Index.PageSize)
	}
	if c.Index.WindowHours < 1 {
		return fmt.Errorf("index.window_hours must be positive, got %d", c.Index.WindowHours)
	}
	if c.Search.PageSize < 1 {
		return fmt.Errorf("search.page_size must be positive, got %d", c.Search.PageSize)
	}
	if c.Engine.ExtraHeader != "" && !strings.Contains(c.Engine.ExtraHeader, ":") {
		return fmt.Errorf("engine.extra_header must look like \"Name: value\", got %q", c.Engine.ExtraHeader)
	}
	return nil
}

// LanguageTag returns the canonical form of the configured language, e.g.
// "de" for "DE". Validate has already guaranteed the tag parses.
func (c *Config) LanguageTag() string {
	tag, err := language.Parse(c.Index.Language)
	if err != nil {
		return "en"
	}
	base, _ := tag.Base()
	return base.String()
}

// ExtraHeaderKV splits the configured extra header into its name and value.
// The second return is false when no extra header is configured.
func (c *EngineConfig) ExtraHeaderKV() (string, string, bool) {
	if c.ExtraHeader == "" {
		return "", "", false
	}
	parts := strings.SplitN(c.ExtraHeader, ":", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), true
}

// WindowDuration returns the backfill window size as a time.Duration.
func (c *IndexConfig) WindowDuration() time.Duration {
	return time.Duration(c.WindowHours) * time.Hour
}

func (c *Config) SaveConfig(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	return os.WriteFile(configPath, data, 0644)
}

// SaveTemplateConfig writes the annotated sample configuration, with the
// storage directory placeholder replaced by the real default.
func (c *Config) SaveTemplateConfig(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	storageDir := c.StorageDir
	if storageDir == "" {
		var err error
		storageDir, err = GetDefaultStorageDir()
		if err != nil {
			return fmt.Errorf("getting default storage directory: %w", err)
		}
	}
	template := strings.Replace(configTemplate, "/home/user/.local/share/chatpal-search", storageDir, 1)

	return os.WriteFile(configPath, []byte(template), 0644)
}

// GetDefaultStorageDir returns the default directory for the platform database
func GetDefaultStorageDir() (string, error) {
	// Use XDG_DATA_HOME if set, otherwise use ~/.local/share
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting user home directory: %w", err)
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	dir := filepath.Join(dataDir, "chatpal-search")

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating storage directory %s: %w", dir, err)
	}

	return dir, nil
}

// GetConfigDir returns the configuration directory for chatpal-search
func GetConfigDir() (string, error) {
	// Use XDG_CONFIG_HOME if set, otherwise use ~/.config
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting user home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	dir := filepath.Join(configDir, "chatpal-search")

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	return dir, nil
}

// GetDefaultConfigPath returns the default configuration file path
func GetDefaultConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.toml"), nil
}
