// Package config loads application configuration from environment variables
// (prefix PANEL) merged with an optional YAML file. Environment values take
// precedence; code-level defaults fill anything left unset.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"panelpulse/internal/panel"
)

// Config is the complete application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Data      DataConfig      `yaml:"data" envconfig:"DATA"`
	Analytics AnalyticsConfig `yaml:"analytics" envconfig:"ANALYTICS"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
	RateLimitRPS    float64       `yaml:"rate_limit_rps" envconfig:"RATE_LIMIT_RPS"`
	RateLimitBurst  int           `yaml:"rate_limit_burst" envconfig:"RATE_LIMIT_BURST"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL"`
	Output   string `yaml:"output" envconfig:"OUTPUT"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// DataConfig locates the panel snapshot and bounds store access.
type DataConfig struct {
	PanelFile   string        `yaml:"panel_file" envconfig:"PANEL_FILE"`
	ScanTimeout time.Duration `yaml:"scan_timeout" envconfig:"SCAN_TIMEOUT"`
}

// AnalyticsConfig carries the policy defaults applied when a request leaves
// them unset, plus the issuer catalog and the household projection factors.
type AnalyticsConfig struct {
	K                    int     `yaml:"k" envconfig:"K"`
	MinN                 int     `yaml:"min_n" envconfig:"MIN_N"`
	CoverageThresholdPct float64 `yaml:"coverage_threshold_pct" envconfig:"COVERAGE_THRESHOLD_PCT"`
	MaxSwitchingRows     int     `yaml:"max_switching_rows" envconfig:"MAX_SWITCHING_ROWS"`
	WaterfallRuleSet     string  `yaml:"waterfall_rule_set" envconfig:"WATERFALL_RULE_SET"`
	BasketSuppression    string  `yaml:"basket_suppression" envconfig:"BASKET_SUPPRESSION"`

	// ExpansionFactors maps issuer IDs to the household projection multiplier
	// applied to monetary measures at the service layer. Absent issuers get 1.
	ExpansionFactors map[string]float64 `yaml:"expansion_factors" envconfig:"EXPANSION_FACTORS"`

	// IssuerCategories and ExtendedPeers drive peer-scope evaluation.
	// ExtendedPeers is YAML-only: it maps a retailer category to the extra
	// categories counted as market under the extended scope.
	IssuerCategories map[string]string   `yaml:"issuer_categories" envconfig:"ISSUER_CATEGORIES"`
	ExtendedPeers    map[string][]string `yaml:"extended_peers" ignored:"true"`
}

// Load reads configuration from the optional YAML file named by
// PANEL_CONFIG_FILE (default config.yaml), then overlays environment
// variables, then fills remaining zero values with defaults.
func Load() (*Config, error) {
	var cfg Config

	path := os.Getenv("PANEL_CONFIG_FILE")
	if path == "" {
		path = "config.yaml"
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}

	if err := envconfig.Process("PANEL", &cfg); err != nil {
		return nil, fmt.Errorf("load config from env: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 30 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 60 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 30 * time.Second
	}
	if c.Server.RateLimitRPS == 0 {
		c.Server.RateLimitRPS = 100
	}
	if c.Server.RateLimitBurst == 0 {
		c.Server.RateLimitBurst = 50
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}
	if c.Logging.FilePath == "" {
		c.Logging.FilePath = "logs/panelpulse.log"
	}
	if c.Data.ScanTimeout == 0 {
		c.Data.ScanTimeout = panel.DefaultScanTimeout
	}
	if c.Analytics.K == 0 {
		c.Analytics.K = panel.DefaultK
	}
	if c.Analytics.MinN == 0 {
		c.Analytics.MinN = panel.DefaultMinN
	}
	if c.Analytics.CoverageThresholdPct == 0 {
		c.Analytics.CoverageThresholdPct = panel.DefaultCoverageThresholdPct
	}
	if c.Analytics.MaxSwitchingRows == 0 {
		c.Analytics.MaxSwitchingRows = panel.DefaultMaxSwitchingRows
	}
	if c.Analytics.WaterfallRuleSet == "" {
		c.Analytics.WaterfallRuleSet = panel.RuleSetCanonical
	}
	if c.Analytics.BasketSuppression == "" {
		c.Analytics.BasketSuppression = string(panel.SuppressionSoft)
	}
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Analytics.K < 1 {
		return fmt.Errorf("analytics k must be >= 1, got %d", c.Analytics.K)
	}
	if c.Analytics.MinN < 1 {
		return fmt.Errorf("analytics min_n must be >= 1, got %d", c.Analytics.MinN)
	}
	if c.Analytics.CoverageThresholdPct < 0 || c.Analytics.CoverageThresholdPct > 100 {
		return fmt.Errorf("coverage threshold must be within [0, 100], got %.1f", c.Analytics.CoverageThresholdPct)
	}
	if _, err := panel.RuleSetByName(c.Analytics.WaterfallRuleSet); err != nil {
		return err
	}
	switch panel.SuppressionMode(c.Analytics.BasketSuppression) {
	case panel.SuppressionHard, panel.SuppressionSoft:
	default:
		return fmt.Errorf("unknown basket suppression mode %q", c.Analytics.BasketSuppression)
	}
	return nil
}

// EngineDefaults converts the analytics section into engine defaults.
func (c *Config) EngineDefaults() panel.Defaults {
	return panel.Defaults{
		K:                    c.Analytics.K,
		MinN:                 c.Analytics.MinN,
		CoverageThresholdPct: c.Analytics.CoverageThresholdPct,
		MaxSwitchingRows:     c.Analytics.MaxSwitchingRows,
		WaterfallRules:       c.Analytics.WaterfallRuleSet,
		BasketSuppression:    panel.SuppressionMode(c.Analytics.BasketSuppression),
		ScanTimeout:          c.Data.ScanTimeout,
	}
}

// IssuerCatalog converts the configured issuer metadata for the engine.
func (c *Config) IssuerCatalog() panel.IssuerCatalog {
	return panel.IssuerCatalog{
		Categories: c.Analytics.IssuerCategories,
		Extended:   c.Analytics.ExtendedPeers,
	}
}

// ExpansionFactor returns the household projection multiplier for an issuer.
func (c *Config) ExpansionFactor(issuerID string) float64 {
	if f, ok := c.Analytics.ExpansionFactors[issuerID]; ok && f > 0 {
		return f
	}
	return 1
}
