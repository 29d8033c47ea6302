// Package config loads the YAML import configuration: per-format date
// layouts, the note-import toggle, and reconciliation thresholds.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mwhitmer/bankmerge/internal/pipeline"
	"github.com/mwhitmer/bankmerge/internal/reconcile"
)

// FormatConfig is the per-parser configuration.
type FormatConfig struct {
	// DateLayout is a Go reference layout for formats with ambiguous dates.
	DateLayout string `yaml:"date_layout"`
}

// ReconcileConfig mirrors reconcile.Config in YAML.
type ReconcileConfig struct {
	DateToleranceDays int     `yaml:"date_tolerance_days"`
	PayeeThreshold    float64 `yaml:"payee_threshold"`
}

// Config is the root of the YAML configuration file.
type Config struct {
	Formats     map[string]FormatConfig `yaml:"formats"`
	ImportNotes bool                    `yaml:"import_notes"`
	Reconcile   ReconcileConfig         `yaml:"reconcile"`
}

// Default returns the configuration used when no file is supplied: US-style
// QIF dates, notes imported, same-day matching with the default payee
// threshold.
func Default() *Config {
	return &Config{
		Formats: map[string]FormatConfig{
			"qif": {DateLayout: "1/2/2006"},
		},
		ImportNotes: true,
	}
}

// LoadFromFile reads and validates a YAML configuration file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks thresholds and date layouts.
func (c *Config) Validate() error {
	if c.Reconcile.DateToleranceDays < 0 {
		return fmt.Errorf("date_tolerance_days must be >= 0, got %d", c.Reconcile.DateToleranceDays)
	}
	if c.Reconcile.PayeeThreshold < 0 || c.Reconcile.PayeeThreshold > 1 {
		return fmt.Errorf("payee_threshold must be in [0,1], got %g", c.Reconcile.PayeeThreshold)
	}
	for name, fc := range c.Formats {
		if fc.DateLayout == "" {
			continue
		}
		// A layout is valid when it round-trips a reference date. Parsing
		// alone is not enough: a layout with no date elements formats and
		// parses as a literal, so the recovered date must also match.
		ref := time.Date(2006, 1, 2, 0, 0, 0, 0, time.UTC)
		got, err := time.Parse(fc.DateLayout, ref.Format(fc.DateLayout))
		if err != nil {
			return fmt.Errorf("format %s: date_layout %q is not a valid Go layout: %w", name, fc.DateLayout, err)
		}
		if got.Year() != ref.Year() || got.Month() != ref.Month() || got.Day() != ref.Day() {
			return fmt.Errorf("format %s: date_layout %q does not carry a full calendar date", name, fc.DateLayout)
		}
	}
	return nil
}

// PipelineOptions assembles the import options for one account.
func (c *Config) PipelineOptions(accountID string) pipeline.Options {
	layouts := make(map[string]string, len(c.Formats))
	for name, fc := range c.Formats {
		if fc.DateLayout != "" {
			layouts[name] = fc.DateLayout
		}
	}
	return pipeline.Options{
		AccountID:   accountID,
		ImportNotes: c.ImportNotes,
		DateLayouts: layouts,
		Reconcile: reconcile.Config{
			DateToleranceDays: c.Reconcile.DateToleranceDays,
			PayeeThreshold:    c.Reconcile.PayeeThreshold,
		},
	}
}
