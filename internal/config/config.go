// Package config provides configuration management for the shopvision search core.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Known source names.
const (
	SourceAmazon         = "amazon"
	SourceFlipkart       = "flipkart"
	SourceGoogleShopping = "googleshopping"
)

// KnownSources lists every source an adapter exists for.
var KnownSources = []string{SourceAmazon, SourceFlipkart, SourceGoogleShopping}

// Configuration validation errors.
var (
	ErrNoSources              = errors.New("at least one source is required")
	ErrSourceMissingName      = errors.New("source name is required")
	ErrUnknownSource          = errors.New("unknown source name")
	ErrDuplicateSource        = errors.New("duplicate source name")
	ErrSourceMissingBaseURL   = errors.New("source base_url is required")
	ErrNoEnabledSources       = errors.New("at least one source must be enabled")
	ErrInvalidMaxResults      = errors.New("source max_results must be at least 1")
	ErrInvalidRate            = errors.New("source rate_per_sec must be non-negative")
	ErrInvalidWeights         = errors.New("fusion.weights must be non-negative with a positive sum")
	ErrInvalidMaxQueries      = errors.New("fusion.max_queries must be at least 1")
	ErrInvalidConfidence      = errors.New("fusion minimum confidences must be within [0, 1]")
	ErrInvalidDeadline        = errors.New("aggregation.round_deadline_ms must be at least 1")
	ErrInvalidAdapterTimeout  = errors.New("aggregation.adapter_timeout_ms must be at least 1")
	ErrInvalidMinSources      = errors.New("aggregation.min_sources must be non-negative")
	ErrInvalidBackoff         = errors.New("aggregation.default_backoff_ms must be non-negative")
	ErrInvalidThreshold       = errors.New("ranking.similarity_threshold must be within (0, 1]")
	ErrInvalidRecognizerLimit = errors.New("recognizer.timeout_ms must be at least 1")
	ErrInvalidBufferSize      = errors.New("http.buffer_size_kb must be at least 1")
	ErrInvalidLogLevel        = errors.New("logging.level must be one of: debug, info, warn, error")
	ErrInvalidLogFormat       = errors.New("logging.format must be 'text' or 'json'")
)

// Config represents the complete shopvision configuration.
type Config struct {
	Sources     []SourceConfig    `yaml:"sources"`
	Ranking     RankingConfig     `yaml:"ranking"`
	Fusion      FusionConfig      `yaml:"fusion"`
	Storage     StorageConfig     `yaml:"storage"`
	Recognizer  RecognizerConfig  `yaml:"recognizer"`
	HTTP        HTTPConfig        `yaml:"http"`
	Logging     LoggingConfig     `yaml:"logging"`
	Aggregation AggregationConfig `yaml:"aggregation"`
}

// SourceConfig configures one shopping source adapter.
type SourceConfig struct {
	Name       string  `yaml:"name"`
	BaseURL    string  `yaml:"base_url"`
	MaxResults int     `yaml:"max_results"`
	RatePerSec float64 `yaml:"rate_per_sec"`
	Burst      int     `yaml:"burst"`
	TimeoutMs  int     `yaml:"timeout_ms"`
	Enabled    bool    `yaml:"enabled"`
}

// Timeout returns the adapter HTTP timeout, zero when unset.
func (s *SourceConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutMs) * time.Millisecond
}

// WeightsConfig holds the per-signal fusion weights.
type WeightsConfig struct {
	Text     float64 `yaml:"text"`
	Category float64 `yaml:"category"`
	Caption  float64 `yaml:"caption"`
}

// Total returns the sum of all weights.
func (w WeightsConfig) Total() float64 {
	return w.Text + w.Category + w.Caption
}

// FusionConfig tunes the signal fusion engine.
type FusionConfig struct {
	StopWords             []string      `yaml:"stop_words"`
	TemplatePhrases       []string      `yaml:"template_phrases"`
	Brands                []string      `yaml:"brands"`
	Vocabulary            []string      `yaml:"vocabulary"`
	Weights               WeightsConfig `yaml:"weights"`
	MinCategoryConfidence float64       `yaml:"min_category_confidence"`
	MinTextConfidence     float64       `yaml:"min_text_confidence"`
	MinCaptionConfidence  float64       `yaml:"min_caption_confidence"`
	MaxQueries            int           `yaml:"max_queries"`
	MaxCaptionKeywords    int           `yaml:"max_caption_keywords"`
	MaxTextTokens         int           `yaml:"max_text_tokens"`
}

// AggregationConfig tunes the fan-out pipeline.
type AggregationConfig struct {
	RoundDeadlineMs  int `yaml:"round_deadline_ms"`
	AdapterTimeoutMs int `yaml:"adapter_timeout_ms"`
	MinSources       int `yaml:"min_sources"`
	DefaultBackoffMs int `yaml:"default_backoff_ms"`
}

// RoundDeadline returns how long one dispatch round may run.
func (a *AggregationConfig) RoundDeadline() time.Duration {
	return time.Duration(a.RoundDeadlineMs) * time.Millisecond
}

// AdapterTimeout returns the per-adapter call bound.
func (a *AggregationConfig) AdapterTimeout() time.Duration {
	return time.Duration(a.AdapterTimeoutMs) * time.Millisecond
}

// DefaultBackoff returns the backoff applied when a RateLimited failure carries no hint.
func (a *AggregationConfig) DefaultBackoff() time.Duration {
	return time.Duration(a.DefaultBackoffMs) * time.Millisecond
}

// RankingConfig tunes deduplication and ordering.
type RankingConfig struct {
	SourcePriority      []string `yaml:"source_priority"`
	SimilarityThreshold float64  `yaml:"similarity_threshold"`
}

// RecognizerConfig points at the model server hosting the three recognizers.
type RecognizerConfig struct {
	Address   string `yaml:"address"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

// Timeout returns the per-recognizer call bound.
func (r *RecognizerConfig) Timeout() time.Duration {
	return time.Duration(r.TimeoutMs) * time.Millisecond
}

// HTTPConfig holds settings shared by the HTTP based adapters.
type HTTPConfig struct {
	UserAgent    string `yaml:"user_agent"`
	BufferSizeKb int    `yaml:"buffer_size_kb"`
}

// StorageConfig configures the optional search history store.
type StorageConfig struct {
	DSN      string `yaml:"dsn"`
	Schema   string `yaml:"schema"`
	MaxConns int    `yaml:"max_conns"`
}

// Enabled reports whether a history store is configured.
func (s *StorageConfig) Enabled() bool {
	return strings.TrimSpace(s.DSN) != ""
}

// LoggingConfig defines logging behavior.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns a complete configuration with all three sources enabled.
func Default() *Config {
	return &Config{
		Sources: []SourceConfig{
			{Name: SourceAmazon, BaseURL: "https://www.amazon.in", MaxResults: 5, RatePerSec: 1, Burst: 2, TimeoutMs: 10000, Enabled: true},
			{Name: SourceFlipkart, BaseURL: "https://www.flipkart.com", MaxResults: 5, RatePerSec: 1, Burst: 2, TimeoutMs: 10000, Enabled: true},
			{Name: SourceGoogleShopping, BaseURL: "https://shopping.google.com/feeds", MaxResults: 5, RatePerSec: 2, Burst: 2, TimeoutMs: 10000, Enabled: true},
		},
		Fusion: FusionConfig{
			Weights:               WeightsConfig{Text: 0.5, Category: 0.3, Caption: 0.2},
			MinCategoryConfidence: 0.3,
			MinTextConfidence:     0.5,
			MinCaptionConfidence:  0,
			MaxQueries:            3,
			MaxCaptionKeywords:    4,
			MaxTextTokens:         4,
		},
		Aggregation: AggregationConfig{
			RoundDeadlineMs:  4000,
			AdapterTimeoutMs: 3500,
			MinSources:       2,
			DefaultBackoffMs: 30000,
		},
		Ranking: RankingConfig{
			SimilarityThreshold: 0.6,
			SourcePriority:      []string{SourceAmazon, SourceFlipkart, SourceGoogleShopping},
		},
		Recognizer: RecognizerConfig{TimeoutMs: 5000},
		HTTP: HTTPConfig{
			UserAgent:    "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36",
			BufferSizeKb: 4096,
		},
		Storage: StorageConfig{Schema: "public", MaxConns: 2},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

// LoadConfig loads configuration from a YAML file on top of the defaults,
// applies SHOPVISION_* environment overrides and validates the result.
func LoadConfig(filepath string) (*Config, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	cfg.applySourceDefaults()
	cfg.ApplyEnv(os.Getenv)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// DefaultConfigPath is tried by Resolve when no path is given.
const DefaultConfigPath = "configs/shopvision.yaml"

// Resolve loads path when set, otherwise DefaultConfigPath when it exists,
// otherwise the built-in defaults with environment overrides.
func Resolve(path string) (*Config, error) {
	if path != "" {
		return LoadConfig(path)
	}

	if _, err := os.Stat(DefaultConfigPath); err == nil {
		return LoadConfig(DefaultConfigPath)
	}

	cfg := Default()
	cfg.ApplyEnv(os.Getenv)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves configuration to YAML file.
func (c *Config) SaveConfig(filepath string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filepath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// applySourceDefaults fills zero-valued per-source knobs.
func (c *Config) applySourceDefaults() {
	for i := range c.Sources {
		src := &c.Sources[i]
		src.Name = strings.ToLower(strings.TrimSpace(src.Name))

		if src.MaxResults == 0 {
			src.MaxResults = 5
		}

		if src.Burst == 0 {
			src.Burst = 1
		}

		if src.TimeoutMs == 0 {
			src.TimeoutMs = 10000
		}
	}
}

// ApplyEnv overrides selected fields from the environment. getenv is usually os.Getenv.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv("SHOPVISION_LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}

	if v := getenv("SHOPVISION_LOG_FORMAT"); v != "" {
		c.Logging.Format = strings.ToLower(v)
	}

	if v := getenv("SHOPVISION_RECOGNIZER_ADDR"); v != "" {
		c.Recognizer.Address = v
	}

	if v := getenv("SHOPVISION_PG_DSN"); v != "" {
		c.Storage.DSN = v
	}

	if v := getenv("SHOPVISION_USER_AGENT"); v != "" {
		c.HTTP.UserAgent = v
	}

	if v := getenv("SHOPVISION_ROUND_DEADLINE_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			c.Aggregation.RoundDeadlineMs = ms
		}
	}

	if v := getenv("SHOPVISION_MIN_SOURCES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Aggregation.MinSources = n
		}
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if len(c.Sources) == 0 {
		return ErrNoSources
	}

	seen := make(map[string]bool, len(c.Sources))
	enabledCount := 0

	for i, src := range c.Sources {
		if src.Name == "" {
			return fmt.Errorf("%w: sources[%d]", ErrSourceMissingName, i)
		}

		if !isKnownSource(src.Name) {
			return fmt.Errorf("%w: %q", ErrUnknownSource, src.Name)
		}

		if seen[src.Name] {
			return fmt.Errorf("%w: %q", ErrDuplicateSource, src.Name)
		}

		seen[src.Name] = true

		if strings.TrimSpace(src.BaseURL) == "" {
			return fmt.Errorf("%w: %s", ErrSourceMissingBaseURL, src.Name)
		}

		if src.MaxResults < 1 {
			return fmt.Errorf("%w: %s", ErrInvalidMaxResults, src.Name)
		}

		if src.RatePerSec < 0 {
			return fmt.Errorf("%w: %s", ErrInvalidRate, src.Name)
		}

		if src.Enabled {
			enabledCount++
		}
	}

	if enabledCount == 0 {
		return ErrNoEnabledSources
	}

	// Fusion
	w := c.Fusion.Weights
	if w.Text < 0 || w.Category < 0 || w.Caption < 0 || w.Total() <= 0 {
		return ErrInvalidWeights
	}

	if c.Fusion.MaxQueries < 1 {
		return ErrInvalidMaxQueries
	}

	for _, conf := range []float64{c.Fusion.MinCategoryConfidence, c.Fusion.MinTextConfidence, c.Fusion.MinCaptionConfidence} {
		if conf < 0 || conf > 1 {
			return ErrInvalidConfidence
		}
	}

	// Aggregation
	if c.Aggregation.RoundDeadlineMs < 1 {
		return ErrInvalidDeadline
	}

	if c.Aggregation.AdapterTimeoutMs < 1 {
		return ErrInvalidAdapterTimeout
	}

	if c.Aggregation.MinSources < 0 {
		return ErrInvalidMinSources
	}

	if c.Aggregation.DefaultBackoffMs < 0 {
		return ErrInvalidBackoff
	}

	// Ranking
	if c.Ranking.SimilarityThreshold <= 0 || c.Ranking.SimilarityThreshold > 1 {
		return ErrInvalidThreshold
	}

	if c.Recognizer.Address != "" && c.Recognizer.TimeoutMs < 1 {
		return ErrInvalidRecognizerLimit
	}

	if c.HTTP.BufferSizeKb < 1 {
		return ErrInvalidBufferSize
	}

	// Logging
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return ErrInvalidLogLevel
	}

	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return ErrInvalidLogFormat
	}

	return nil
}

// GetEnabledSources returns only enabled sources, in configured order.
func (c *Config) GetEnabledSources() []SourceConfig {
	var enabled []SourceConfig

	for _, src := range c.Sources {
		if src.Enabled {
			enabled = append(enabled, src)
		}
	}

	return enabled
}

// GetSource returns the named source configuration.
func (c *Config) GetSource(name string) (SourceConfig, bool) {
	for _, src := range c.Sources {
		if src.Name == name {
			return src, true
		}
	}

	return SourceConfig{}, false
}

// String returns a string representation of the config.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Sources: %d enabled of %d, MaxQueries: %d, RoundDeadline: %s, Recognizer: %q}",
		len(c.GetEnabledSources()),
		len(c.Sources),
		c.Fusion.MaxQueries,
		c.Aggregation.RoundDeadline(),
		c.Recognizer.Address,
	)
}

func isKnownSource(name string) bool {
	for _, known := range KnownSources {
		if name == known {
			return true
		}
	}

	return false
}
