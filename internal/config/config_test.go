package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// Helper to create a temp config file.
func createTempConfigFile(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()

	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to create temp config file: %v", err)
	}

	return configPath
}

// validConfigYAML overrides a subset of the defaults.
const validConfigYAML = `
sources:
  - name: "Amazon"
    base_url: "http://127.0.0.1:9001"
    max_results: 3
    rate_per_sec: 0
    enabled: true
  - name: "flipkart"
    base_url: "http://127.0.0.1:9002"
    enabled: false
fusion:
  max_queries: 2
  weights:
    text: 0.6
    category: 0.3
    caption: 0.1
aggregation:
  round_deadline_ms: 1500
  min_sources: 1
ranking:
  similarity_threshold: 0.7
logging:
  level: "debug"
  format: "json"
`

func TestLoadConfig_Valid(t *testing.T) {
	configPath := createTempConfigFile(t, validConfigYAML)

	cfg, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if len(cfg.Sources) != 2 {
		t.Fatalf("Expected 2 sources, got %d", len(cfg.Sources))
	}

	if cfg.Sources[0].Name != SourceAmazon {
		t.Errorf("Expected source name to be normalized to %q, got %q", SourceAmazon, cfg.Sources[0].Name)
	}

	if cfg.Sources[1].MaxResults != 5 {
		t.Errorf("Expected default max_results 5, got %d", cfg.Sources[1].MaxResults)
	}

	if cfg.Fusion.MaxQueries != 2 {
		t.Errorf("Expected max_queries 2, got %d", cfg.Fusion.MaxQueries)
	}

	if cfg.Fusion.MinCategoryConfidence != 0.3 {
		t.Errorf("Expected default min_category_confidence to survive, got %v", cfg.Fusion.MinCategoryConfidence)
	}

	if cfg.Aggregation.AdapterTimeoutMs != 3500 {
		t.Errorf("Expected default adapter timeout, got %d", cfg.Aggregation.AdapterTimeoutMs)
	}

	if cfg.Aggregation.RoundDeadline() != 1500*time.Millisecond {
		t.Errorf("RoundDeadline() = %v", cfg.Aggregation.RoundDeadline())
	}
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	_, err := LoadConfig("/nonexistent/path/config.yaml")
	if err == nil {
		t.Fatal("Expected error for nonexistent file, got nil")
	}
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	configPath := createTempConfigFile(t, "invalid: yaml: content: [}")

	_, err := LoadConfig(configPath)
	if err == nil {
		t.Fatal("Expected error for invalid YAML, got nil")
	}
}

func TestLoadConfig_ValidationFailure(t *testing.T) {
	configPath := createTempConfigFile(t, "ranking:\n  similarity_threshold: 1.5\n")

	_, err := LoadConfig(configPath)
	if !errors.Is(err, ErrInvalidThreshold) {
		t.Fatalf("Expected ErrInvalidThreshold, got %v", err)
	}
}

func TestDefault_IsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default config should validate: %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr error
	}{
		{"no sources", func(c *Config) { c.Sources = nil }, ErrNoSources},
		{"missing name", func(c *Config) { c.Sources[0].Name = "" }, ErrSourceMissingName},
		{"unknown source", func(c *Config) { c.Sources[0].Name = "ebay" }, ErrUnknownSource},
		{"duplicate source", func(c *Config) { c.Sources[1].Name = SourceAmazon }, ErrDuplicateSource},
		{"missing base url", func(c *Config) { c.Sources[2].BaseURL = " " }, ErrSourceMissingBaseURL},
		{"max results", func(c *Config) { c.Sources[0].MaxResults = 0 }, ErrInvalidMaxResults},
		{"negative rate", func(c *Config) { c.Sources[0].RatePerSec = -1 }, ErrInvalidRate},
		{"no enabled sources", func(c *Config) {
			for i := range c.Sources {
				c.Sources[i].Enabled = false
			}
		}, ErrNoEnabledSources},
		{"negative weight", func(c *Config) { c.Fusion.Weights.Caption = -0.1 }, ErrInvalidWeights},
		{"zero weights", func(c *Config) { c.Fusion.Weights = WeightsConfig{} }, ErrInvalidWeights},
		{"max queries", func(c *Config) { c.Fusion.MaxQueries = 0 }, ErrInvalidMaxQueries},
		{"confidence range", func(c *Config) { c.Fusion.MinTextConfidence = 1.2 }, ErrInvalidConfidence},
		{"round deadline", func(c *Config) { c.Aggregation.RoundDeadlineMs = 0 }, ErrInvalidDeadline},
		{"adapter timeout", func(c *Config) { c.Aggregation.AdapterTimeoutMs = 0 }, ErrInvalidAdapterTimeout},
		{"min sources", func(c *Config) { c.Aggregation.MinSources = -1 }, ErrInvalidMinSources},
		{"backoff", func(c *Config) { c.Aggregation.DefaultBackoffMs = -5 }, ErrInvalidBackoff},
		{"threshold zero", func(c *Config) { c.Ranking.SimilarityThreshold = 0 }, ErrInvalidThreshold},
		{"recognizer timeout", func(c *Config) {
			c.Recognizer.Address = "localhost:50051"
			c.Recognizer.TimeoutMs = 0
		}, ErrInvalidRecognizerLimit},
		{"buffer size", func(c *Config) { c.HTTP.BufferSizeKb = 0 }, ErrInvalidBufferSize},
		{"log level", func(c *Config) { c.Logging.Level = "verbose" }, ErrInvalidLogLevel},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }, ErrInvalidLogFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_ApplyEnv(t *testing.T) {
	env := map[string]string{
		"SHOPVISION_LOG_LEVEL":         "WARN",
		"SHOPVISION_RECOGNIZER_ADDR":   "models:50051",
		"SHOPVISION_PG_DSN":            "postgres://localhost/shop",
		"SHOPVISION_ROUND_DEADLINE_MS": "2500",
		"SHOPVISION_MIN_SOURCES":       "not-a-number",
	}

	cfg := Default()
	cfg.ApplyEnv(func(key string) string { return env[key] })

	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q, want warn", cfg.Logging.Level)
	}

	if cfg.Recognizer.Address != "models:50051" {
		t.Errorf("Recognizer.Address = %q", cfg.Recognizer.Address)
	}

	if !cfg.Storage.Enabled() {
		t.Error("Storage should be enabled once a DSN is set")
	}

	if cfg.Aggregation.RoundDeadlineMs != 2500 {
		t.Errorf("RoundDeadlineMs = %d, want 2500", cfg.Aggregation.RoundDeadlineMs)
	}

	if cfg.Aggregation.MinSources != 2 {
		t.Errorf("unparseable override should be ignored, got %d", cfg.Aggregation.MinSources)
	}
}

// --- Duration accessor Tests ---

func TestDurationAccessors(t *testing.T) {
	agg := AggregationConfig{RoundDeadlineMs: 4000, AdapterTimeoutMs: 250, DefaultBackoffMs: 30000}

	if got := agg.RoundDeadline(); got != 4*time.Second {
		t.Errorf("RoundDeadline() = %v", got)
	}

	if got := agg.AdapterTimeout(); got != 250*time.Millisecond {
		t.Errorf("AdapterTimeout() = %v", got)
	}

	if got := agg.DefaultBackoff(); got != 30*time.Second {
		t.Errorf("DefaultBackoff() = %v", got)
	}

	src := SourceConfig{TimeoutMs: 1200}
	if got := src.Timeout(); got != 1200*time.Millisecond {
		t.Errorf("Timeout() = %v", got)
	}
}

// --- Config Helper Method Tests ---

func TestConfig_GetEnabledSources(t *testing.T) {
	cfg := Default()
	cfg.Sources[1].Enabled = false

	enabled := cfg.GetEnabledSources()
	if len(enabled) != 2 {
		t.Fatalf("Expected 2 enabled sources, got %d", len(enabled))
	}

	if enabled[0].Name != SourceAmazon || enabled[1].Name != SourceGoogleShopping {
		t.Errorf("Unexpected enabled order: %s, %s", enabled[0].Name, enabled[1].Name)
	}
}

func TestConfig_GetSource(t *testing.T) {
	cfg := Default()

	src, ok := cfg.GetSource(SourceFlipkart)
	if !ok {
		t.Fatal("Expected flipkart source")
	}

	if src.BaseURL != "https://www.flipkart.com" {
		t.Errorf("BaseURL = %q", src.BaseURL)
	}

	if _, ok := cfg.GetSource("ebay"); ok {
		t.Error("Unexpected source returned for unknown name")
	}
}

func TestConfig_SaveAndReload(t *testing.T) {
	cfg := Default()
	cfg.Fusion.MaxQueries = 1

	path := filepath.Join(t.TempDir(), "saved.yaml")
	if err := cfg.SaveConfig(path); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if loaded.Fusion.MaxQueries != 1 {
		t.Errorf("MaxQueries = %d, want 1", loaded.Fusion.MaxQueries)
	}

	if len(loaded.Sources) != len(cfg.Sources) {
		t.Errorf("Sources = %d, want %d", len(loaded.Sources), len(cfg.Sources))
	}
}

func TestConfig_String(t *testing.T) {
	s := Default().String()
	if !strings.Contains(s, "3 enabled of 3") {
		t.Errorf("String() = %q", s)
	}
}

func TestResolve(t *testing.T) {
	configPath := createTempConfigFile(t, validConfigYAML)

	cfg, err := Resolve(configPath)
	if err != nil {
		t.Fatalf("Resolve(path) failed: %v", err)
	}

	if cfg.Fusion.MaxQueries != 2 {
		t.Errorf("explicit file should be loaded, MaxQueries = %d", cfg.Fusion.MaxQueries)
	}

	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd failed: %v", err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatalf("Chdir failed: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err = Resolve("")
	if err != nil {
		t.Fatalf("Resolve(\"\") failed: %v", err)
	}

	if len(cfg.GetEnabledSources()) != len(KnownSources) {
		t.Errorf("defaults should enable every source, got %d", len(cfg.GetEnabledSources()))
	}
}

func TestLoadConfig_ShippedExample(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join("..", "..", "configs", "shopvision.yaml"))
	if err != nil {
		t.Fatalf("shipped config should load: %v", err)
	}

	if cfg.Storage.Enabled() && os.Getenv("SHOPVISION_PG_DSN") == "" {
		t.Error("shipped config should leave storage off")
	}
}
