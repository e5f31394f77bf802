// Package config provides configuration management for Burrow.
// Configuration is loaded from (highest to lowest priority):
// 1. Command-line flags
// 2. Environment variables (BURROW_*, XAI_API_KEY)
// 3. Project config (.burrow/config.yaml in cwd)
// 4. Home config (~/.burrow/config.yaml)
// 5. Defaults
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/burrowhq/burrow/internal/fsx"
)

// Config holds all Burrow configuration.
type Config struct {
	// Model is the friendly model alias used when no flag is given.
	Model string `yaml:"model" json:"model"`

	// BaseDir is the Burrow data directory (default: ~/.burrow).
	// Cache entries, plugin manifests, and REPL history live under it.
	BaseDir string `yaml:"base_dir" json:"base_dir"`

	// Verbose enables verbose output.
	Verbose bool `yaml:"verbose" json:"verbose"`

	// Lean trims response padding to save tokens.
	Lean bool `yaml:"lean" json:"lean"`

	// NoColor disables ANSI colour in output.
	NoColor bool `yaml:"no_color" json:"no_color"`

	// AutoYes answers write confirmations without prompting.
	AutoYes bool `yaml:"auto_yes" json:"auto_yes"`

	// API settings
	API APIConfig `yaml:"api" json:"api"`

	// Cache settings
	Cache CacheConfig `yaml:"cache" json:"cache"`

	// Compact settings
	Compact CompactConfig `yaml:"compact" json:"compact"`

	// Budget settings
	Budget BudgetConfig `yaml:"budget" json:"budget"`
}

// APIConfig holds provider endpoint settings.
type APIConfig struct {
	// Key is the API key. XAI_API_KEY overrides it and is the usual way
	// to supply it; putting keys in config files is supported but
	// discouraged.
	Key string `yaml:"key" json:"-"`

	// BaseURL is the OpenAI-compatible endpoint.
	BaseURL string `yaml:"base_url" json:"base_url"`

	// TimeoutSeconds bounds one completion request.
	TimeoutSeconds int `yaml:"timeout_seconds" json:"timeout_seconds"`
}

// CacheConfig holds response cache settings.
type CacheConfig struct {
	// Disabled turns the response cache off entirely.
	Disabled bool `yaml:"disabled" json:"disabled"`

	// MaxAgeDays is the entry expiry age.
	MaxAgeDays int `yaml:"max_age_days" json:"max_age_days"`

	// MaxSizeMB is the size ceiling enforced by prune.
	MaxSizeMB int `yaml:"max_size_mb" json:"max_size_mb"`
}

// CompactConfig holds context compaction settings.
type CompactConfig struct {
	// Mode controls when compaction passes run.
	// Values: "smart" (default, on threshold), "always", "never".
	Mode string `yaml:"mode" json:"mode"`

	// Threshold is the estimated token count that triggers a pass.
	Threshold int `yaml:"threshold" json:"threshold"`

	// HardLimit is the estimated token count a compacted context may
	// never exceed.
	HardLimit int `yaml:"hard_limit" json:"hard_limit"`
}

// BudgetConfig holds spend tracking settings.
type BudgetConfig struct {
	// Monthly is the monthly USD budget shown by /cost (0 = untracked).
	Monthly float64 `yaml:"monthly" json:"monthly"`
}

// Default config values (used in resolution and validation).
const (
	DefaultModel = "grok41_fast"

	defaultBaseURL        = "https://api.x.ai/v1"
	defaultTimeoutSeconds = 120
	defaultCacheAgeDays   = 30
	defaultCacheSizeMB    = 500
	defaultCompactMode    = "smart"
	defaultThreshold      = 12000
	defaultHardLimit      = 20000

	baseDirName    = ".burrow"
	configFileName = "config.yaml"
)

// Default returns the default configuration.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		Model:   DefaultModel,
		BaseDir: filepath.Join(homeDir, baseDirName),
		API: APIConfig{
			BaseURL:        defaultBaseURL,
			TimeoutSeconds: defaultTimeoutSeconds,
		},
		Cache: CacheConfig{
			MaxAgeDays: defaultCacheAgeDays,
			MaxSizeMB:  defaultCacheSizeMB,
		},
		Compact: CompactConfig{
			Mode:      defaultCompactMode,
			Threshold: defaultThreshold,
			HardLimit: defaultHardLimit,
		},
	}
}

// Load loads configuration with proper precedence.
// Priority: flags > env > project > home > defaults
func Load(flagOverrides *Config) (*Config, error) {
	cfg := Default()

	// Load home config
	homeConfig, _ := loadFromPath(homeConfigPath())
	if homeConfig != nil {
		cfg = merge(cfg, homeConfig)
	}

	// Load project config
	projectConfig, _ := loadFromPath(projectConfigPath())
	if projectConfig != nil {
		cfg = merge(cfg, projectConfig)
	}

	// Apply environment variables
	cfg = applyEnv(cfg)

	// Apply flag overrides
	if flagOverrides != nil {
		cfg = merge(cfg, flagOverrides)
	}

	return cfg, nil
}

// SaveDefaultModel persists a new default model alias to the home
// config file, creating the file when missing. Other keys round-trip
// untouched.
func SaveDefaultModel(name string) error {
	path := homeConfigPath()
	if path == "" {
		return fmt.Errorf("cannot locate home directory")
	}

	doc := map[string]interface{}{}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	}
	doc["model"] = name

	out, err := yaml.Marshal(doc)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return fsx.WriteFileAtomic(path, out, 0o644)
}

// CacheDir returns the response cache directory.
func (c *Config) CacheDir() string {
	return filepath.Join(c.BaseDir, "cache")
}

// PluginsDir returns the plugin manifest directory.
func (c *Config) PluginsDir() string {
	return filepath.Join(c.BaseDir, "plugins")
}

// HistoryFile returns the REPL history file path.
func (c *Config) HistoryFile() string {
	return filepath.Join(c.BaseDir, "history")
}

// SessionsDir returns the project-local session snapshot directory for
// a workspace root.
func SessionsDir(root string) string {
	return filepath.Join(root, baseDirName, "sessions")
}

// CacheMaxAge returns the cache expiry as a duration.
func (c *Config) CacheMaxAge() time.Duration {
	return time.Duration(c.Cache.MaxAgeDays) * 24 * time.Hour
}

// CacheMaxSize returns the cache size ceiling in bytes.
func (c *Config) CacheMaxSize() int64 {
	return int64(c.Cache.MaxSizeMB) << 20
}

// homeConfigPath returns the home config path.
func homeConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, baseDirName, configFileName)
}

// projectConfigPath returns the project config path.
func projectConfigPath() string {
	if override := strings.TrimSpace(os.Getenv("BURROW_CONFIG")); override != "" {
		return override
	}
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	return filepath.Join(cwd, baseDirName, configFileName)
}

// loadFromPath loads config from a YAML file.
func loadFromPath(path string) (*Config, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyEnv applies environment variable overrides.
func applyEnv(cfg *Config) *Config {
	if v := os.Getenv("BURROW_MODEL"); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv("BURROW_BASE_DIR"); v != "" {
		cfg.BaseDir = v
	}
	if envBool("BURROW_VERBOSE") {
		cfg.Verbose = true
	}
	if envBool("BURROW_LEAN") {
		cfg.Lean = true
	}
	if envBool("BURROW_NO_COLOR") || os.Getenv("NO_COLOR") != "" {
		cfg.NoColor = true
	}
	if envBool("BURROW_AUTO_YES") {
		cfg.AutoYes = true
	}
	if envBool("BURROW_NO_CACHE") {
		cfg.Cache.Disabled = true
	}
	if v := os.Getenv("BURROW_COMPACT_MODE"); v != "" {
		cfg.Compact.Mode = v
	}
	if v := os.Getenv("XAI_API_KEY"); v != "" {
		cfg.API.Key = v
	}
	if v := os.Getenv("XAI_BASE_URL"); v != "" {
		cfg.API.BaseURL = v
	}
	return cfg
}

// envBool reports whether an env var is set to a truthy value.
func envBool(key string) bool {
	v := os.Getenv(key)
	return v == "true" || v == "1"
}

// mergeStr overwrites dst with src when src is non-empty.
func mergeStr(dst *string, src string) {
	if src != "" {
		*dst = src
	}
}

// mergeInt overwrites dst with src when src is non-zero.
func mergeInt(dst *int, src int) {
	if src != 0 {
		*dst = src
	}
}

// mergeFloat overwrites dst with src when src is non-zero.
func mergeFloat(dst *float64, src float64) {
	if src != 0 {
		*dst = src
	}
}

// merge merges src into dst, with src values taking precedence.
// Booleans OR through the chain: a layer can turn a flag on, not off.
func merge(dst, src *Config) *Config {
	mergeStr(&dst.Model, src.Model)
	mergeStr(&dst.BaseDir, src.BaseDir)
	if src.Verbose {
		dst.Verbose = true
	}
	if src.Lean {
		dst.Lean = true
	}
	if src.NoColor {
		dst.NoColor = true
	}
	if src.AutoYes {
		dst.AutoYes = true
	}

	mergeAPI(&dst.API, &src.API)
	mergeCache(&dst.Cache, &src.Cache)
	mergeCompact(&dst.Compact, &src.Compact)
	mergeFloat(&dst.Budget.Monthly, src.Budget.Monthly)

	return dst
}

// mergeAPI merges API-specific config fields.
func mergeAPI(dst, src *APIConfig) {
	mergeStr(&dst.Key, src.Key)
	mergeStr(&dst.BaseURL, src.BaseURL)
	mergeInt(&dst.TimeoutSeconds, src.TimeoutSeconds)
}

// mergeCache merges cache-specific config fields.
func mergeCache(dst, src *CacheConfig) {
	if src.Disabled {
		dst.Disabled = true
	}
	mergeInt(&dst.MaxAgeDays, src.MaxAgeDays)
	mergeInt(&dst.MaxSizeMB, src.MaxSizeMB)
}

// mergeCompact merges compaction-specific config fields.
func mergeCompact(dst, src *CompactConfig) {
	mergeStr(&dst.Mode, src.Mode)
	mergeInt(&dst.Threshold, src.Threshold)
	mergeInt(&dst.HardLimit, src.HardLimit)
}

// Source represents where a config value came from.
type Source string

const (
	SourceDefault Source = "default"
	SourceHome    Source = "~/.burrow/config.yaml"
	SourceProject Source = ".burrow/config.yaml"
	SourceEnv     Source = "environment"
	SourceFlag    Source = "flag"
)

// resolved pairs a config value with where it came from.
type resolved struct {
	Value  interface{} `json:"value"`
	Source Source      `json:"source"`
}

// resolveStringField resolves a string through the precedence chain.
// Returns the resolved value and its source.
func resolveStringField(home, project, env, flag, def string) resolved {
	result := resolved{Value: def, Source: SourceDefault}
	if home != "" {
		result = resolved{Value: home, Source: SourceHome}
	}
	if project != "" {
		result = resolved{Value: project, Source: SourceProject}
	}
	if env != "" {
		result = resolved{Value: env, Source: SourceEnv}
	}
	if flag != "" {
		result = resolved{Value: flag, Source: SourceFlag}
	}
	return result
}

// ResolvedConfig shows config values with their sources. The API key
// is reported as set/unset, never echoed.
type ResolvedConfig struct {
	Model       resolved `json:"model"`
	BaseDir     resolved `json:"base_dir"`
	CompactMode resolved `json:"compact_mode"`
	APIBaseURL  resolved `json:"api_base_url"`
	APIKey      resolved `json:"api_key"`
	Verbose     resolved `json:"verbose"`
}

// Resolve returns configuration with source tracking.
// Uses precedence chain: flags > env > project > home > defaults.
func Resolve(flagModel string, flagVerbose bool) *ResolvedConfig {
	homeConfig, _ := loadFromPath(homeConfigPath())
	projectConfig, _ := loadFromPath(projectConfigPath())

	var homeModel, homeBaseDir, homeCompactMode, homeBaseURL, homeKey string
	var homeVerbose bool
	if homeConfig != nil {
		homeModel = homeConfig.Model
		homeBaseDir = homeConfig.BaseDir
		homeCompactMode = homeConfig.Compact.Mode
		homeBaseURL = homeConfig.API.BaseURL
		homeKey = homeConfig.API.Key
		homeVerbose = homeConfig.Verbose
	}

	var projectModel, projectBaseDir, projectCompactMode, projectBaseURL, projectKey string
	var projectVerbose bool
	if projectConfig != nil {
		projectModel = projectConfig.Model
		projectBaseDir = projectConfig.BaseDir
		projectCompactMode = projectConfig.Compact.Mode
		projectBaseURL = projectConfig.API.BaseURL
		projectKey = projectConfig.API.Key
		projectVerbose = projectConfig.Verbose
	}

	defaults := Default()
	rc := &ResolvedConfig{
		Model:       resolveStringField(homeModel, projectModel, os.Getenv("BURROW_MODEL"), flagModel, DefaultModel),
		BaseDir:     resolveStringField(homeBaseDir, projectBaseDir, os.Getenv("BURROW_BASE_DIR"), "", defaults.BaseDir),
		CompactMode: resolveStringField(homeCompactMode, projectCompactMode, os.Getenv("BURROW_COMPACT_MODE"), "", defaultCompactMode),
		APIBaseURL:  resolveStringField(homeBaseURL, projectBaseURL, os.Getenv("XAI_BASE_URL"), "", defaultBaseURL),
		Verbose:     resolved{Value: false, Source: SourceDefault},
	}

	keySource := resolveStringField(homeKey, projectKey, os.Getenv("XAI_API_KEY"), "", "")
	if keySource.Value == "" {
		rc.APIKey = resolved{Value: "(unset)", Source: SourceDefault}
	} else {
		rc.APIKey = resolved{Value: "(set)", Source: keySource.Source}
	}

	// Resolve verbose (boolean with OR semantics through chain)
	if homeVerbose {
		rc.Verbose = resolved{Value: true, Source: SourceHome}
	}
	if projectVerbose {
		rc.Verbose = resolved{Value: true, Source: SourceProject}
	}
	if envBool("BURROW_VERBOSE") {
		rc.Verbose = resolved{Value: true, Source: SourceEnv}
	}
	if flagVerbose {
		rc.Verbose = resolved{Value: true, Source: SourceFlag}
	}

	return rc
}
