// Package config holds the engine configuration, most importantly the
// per-host profile table. Host-specific delays, font tables, and strategy
// orders are empirically tuned data, not algorithm; they live here as yaml
// so a new host is a config change, not a code change.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full engine configuration.
type Config struct {
	Logging  LoggingConfig          `yaml:"logging"`
	Timeouts TimeoutConfig          `yaml:"timeouts"`
	Hosts    map[string]HostProfile `yaml:"hosts"`
}

// LoggingConfig gates the category loggers.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Level      string          `yaml:"level"` // debug, info, warn, error
	Categories map[string]bool `yaml:"categories"`
}

// Duration wraps time.Duration so yaml files can say "250ms" or "3s".
type Duration time.Duration

// UnmarshalYAML parses Go duration syntax.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("config: bad duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML emits Go duration syntax.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// TimeoutConfig bounds foreign calls. Host-tree queries are typically
// sub-50ms but may block indefinitely; every call site enforces these.
type TimeoutConfig struct {
	Query       Duration `yaml:"query"`
	Mutation    Duration `yaml:"mutation"`
	Replacement Duration `yaml:"replacement"`
}

// HostProfile carries everything known about one host application, keyed by
// its bundle or application identifier.
type HostProfile struct {
	// StrategyOrder overrides the canonical resolution order. Names match
	// position strategy names. Empty means the default chain.
	StrategyOrder []string `yaml:"strategy_order"`

	// SkipDirectQuery marks hosts whose root-element range queries are
	// known to answer with zero-size rects (Chromium/Electron lineage).
	SkipDirectQuery bool `yaml:"skip_direct_query"`

	// Paste and selection settle delays, tuned per host.
	PasteDelayMs     int `yaml:"paste_delay_ms"`
	SelectionDelayMs int `yaml:"selection_delay_ms"`

	// Font metrics for the estimate fallbacks.
	DefaultFontSize float64            `yaml:"default_font_size"`
	FontSizes       map[string]float64 `yaml:"font_sizes"`
	CharWidthRatio  float64            `yaml:"char_width_ratio"`
	LineHeightRatio float64            `yaml:"line_height_ratio"`

	// ExclusionAttribute is the styling attribute whose presence marks
	// code/quote zones in this host (background color on most).
	ExclusionAttribute string `yaml:"exclusion_attribute"`

	// RichClipboard enables format-preserving replacement. Hosts without
	// a rich clipboard lane always take the plain-text path.
	RichClipboard bool `yaml:"rich_clipboard"`
}

// PasteDelay returns the paste settle delay as a duration.
func (p HostProfile) PasteDelay() time.Duration {
	return time.Duration(p.PasteDelayMs) * time.Millisecond
}

// SelectionDelay returns the selection settle delay as a duration.
func (p HostProfile) SelectionDelay() time.Duration {
	return time.Duration(p.SelectionDelayMs) * time.Millisecond
}

// FontSize returns the tuned font size for a host font name, or the
// profile default when the font is not in the table.
func (p HostProfile) FontSize(font string) float64 {
	if size, ok := p.FontSizes[font]; ok {
		return size
	}
	return p.DefaultFontSize
}

// Default returns the built-in configuration: conservative timeouts and a
// generic host profile.
func Default() Config {
	return Config{
		Logging: LoggingConfig{
			Level: "info",
		},
		Timeouts: TimeoutConfig{
			Query:       Duration(250 * time.Millisecond),
			Mutation:    Duration(500 * time.Millisecond),
			Replacement: Duration(3 * time.Second),
		},
		Hosts: map[string]HostProfile{
			"default": DefaultHostProfile(),
		},
	}
}

// DefaultHostProfile is the profile used for hosts with no table entry.
func DefaultHostProfile() HostProfile {
	return HostProfile{
		DefaultFontSize:    14,
		CharWidthRatio:     0.6,
		LineHeightRatio:    1.4,
		PasteDelayMs:       50,
		SelectionDelayMs:   30,
		ExclusionAttribute: "background-color",
		RichClipboard:      true,
	}
}

// Load reads a yaml file over the defaults. Profile entries from the file
// are back-filled from DefaultHostProfile where they leave fields zero.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	for id, p := range cfg.Hosts {
		cfg.Hosts[id] = fillProfile(p)
	}
	return cfg, nil
}

// ProfileFor returns the profile for a host identifier, falling back to the
// default profile.
func (c Config) ProfileFor(hostID string) HostProfile {
	if p, ok := c.Hosts[hostID]; ok {
		return p
	}
	if p, ok := c.Hosts["default"]; ok {
		return p
	}
	return DefaultHostProfile()
}

func fillProfile(p HostProfile) HostProfile {
	def := DefaultHostProfile()
	if p.DefaultFontSize == 0 {
		p.DefaultFontSize = def.DefaultFontSize
	}
	if p.CharWidthRatio == 0 {
		p.CharWidthRatio = def.CharWidthRatio
	}
	if p.LineHeightRatio == 0 {
		p.LineHeightRatio = def.LineHeightRatio
	}
	if p.PasteDelayMs == 0 {
		p.PasteDelayMs = def.PasteDelayMs
	}
	if p.SelectionDelayMs == 0 {
		p.SelectionDelayMs = def.SelectionDelayMs
	}
	if p.ExclusionAttribute == "" {
		p.ExclusionAttribute = def.ExclusionAttribute
	}
	return p
}
