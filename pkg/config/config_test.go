package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Failed to load defaults: %v", err)
	}
	if cfg.ListenAddr != ":8998" {
		t.Errorf("Expected default listen address, got %q", cfg.ListenAddr)
	}
	if cfg.Index.PageSize != 100 || cfg.Index.WindowHours != 24 {
		t.Errorf("Expected default index knobs, got %+v", cfg.Index)
	}
	if cfg.Activated {
		t.Error("Expected the backend deactivated by default")
	}
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
activated = true

[engine]
url = "http://localhost:8983/solr/chatpal"

[index]
language = "de"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Index.Language != "de" {
		t.Errorf("Expected configured language, got %q", cfg.Index.Language)
	}
	if cfg.Index.PageSize != 100 {
		t.Errorf("Expected defaulted page size, got %d", cfg.Index.PageSize)
	}
	if cfg.Engine.Timeout.Duration != 30*time.Second {
		t.Errorf("Expected defaulted timeout, got %s", cfg.Engine.Timeout)
	}
	if cfg.Search.DateFormat != "2006-01-02" {
		t.Errorf("Expected defaulted date format, got %q", cfg.Search.DateFormat)
	}
}

func TestValidateActivatedNeedsURL(t *testing.T) {
	cfg, err := GetDefaultConfig()
	if err != nil {
		t.Fatalf("Failed to get defaults: %v", err)
	}
	cfg.Activated = true
	cfg.Engine.URL = ""

	if err := cfg.Validate(); err == nil {
		t.Error("Expected validation to fail for an activated config without an engine URL")
	}
}

func TestValidateLanguageTag(t *testing.T) {
	cfg, err := GetDefaultConfig()
	if err != nil {
		t.Fatalf("Failed to get defaults: %v", err)
	}

	cfg.Index.Language = "not a language"
	if err := cfg.Validate(); err == nil {
		t.Error("Expected validation to fail for a bad language tag")
	}

	cfg.Index.Language = "de-AT"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected de-AT to validate, got %v", err)
	}
	if cfg.LanguageTag() != "de" {
		t.Errorf("Expected base language de, got %q", cfg.LanguageTag())
	}
}

func TestValidateExtraHeader(t *testing.T) {
	cfg, err := GetDefaultConfig()
	if err != nil {
		t.Fatalf("Failed to get defaults: %v", err)
	}

	cfg.Engine.ExtraHeader = "no-colon-here"
	if err := cfg.Validate(); err == nil {
		t.Error("Expected validation to fail for a header without a colon")
	}
}

func TestExtraHeaderKV(t *testing.T) {
	ec := EngineConfig{ExtraHeader: "X-Api-Key:  secret "}
	name, value, ok := ec.ExtraHeaderKV()
	if !ok || name != "X-Api-Key" || value != "secret" {
		t.Errorf("Expected trimmed header pair, got %q=%q ok=%v", name, value, ok)
	}

	if _, _, ok := (&EngineConfig{}).ExtraHeaderKV(); ok {
		t.Error("Expected no header for an empty config")
	}
}

func TestWindowDuration(t *testing.T) {
	ic := IndexConfig{WindowHours: 6}
	if ic.WindowDuration() != 6*time.Hour {
		t.Errorf("Expected 6h, got %s", ic.WindowDuration())
	}
}

func TestSaveAndReloadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg, err := GetDefaultConfig()
	if err != nil {
		t.Fatalf("Failed to get defaults: %v", err)
	}
	cfg.Activated = true
	cfg.Index.BackfillDelay = Duration{2 * time.Second}

	if err := cfg.SaveConfig(path); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Failed to reload config: %v", err)
	}
	if !loaded.Activated {
		t.Error("Expected activated flag to round-trip")
	}
	if loaded.Index.BackfillDelay.Duration != 2*time.Second {
		t.Errorf("Expected backfill delay to round-trip, got %s", loaded.Index.BackfillDelay)
	}
}

func TestSaveTemplateConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg, err := GetDefaultConfig()
	if err != nil {
		t.Fatalf("Failed to get defaults: %v", err)
	}
	cfg.StorageDir = dir

	if err := cfg.SaveTemplateConfig(path); err != nil {
		t.Fatalf("Failed to save template: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Failed to load template config: %v", err)
	}
	if loaded.StorageDir != dir {
		t.Errorf("Expected storage dir placeholder replaced, got %q", loaded.StorageDir)
	}
}
