// CLAUDE:SUMMARY Defines savedtabs config structs and parses YAML configuration files with defaults.
// Package config handles savedtabs configuration from YAML files.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/savedtabs/pagewatch/scan"
	"github.com/hazyhaar/savedtabs/tabregistry"
	"github.com/hazyhaar/savedtabs/tabregistry/indicator"
)

// Config is the top-level savedtabs configuration.
type Config struct {
	Browser   BrowserConfig    `yaml:"browser"`
	Route     RouteConfig      `yaml:"route"`
	Observer  ObserverConfig   `yaml:"observer"`
	Indicator indicator.Config `yaml:"indicator"`
	Registry  RegistryConfig   `yaml:"registry"`
	Sinks     []SinkConfig     `yaml:"sinks"`
}

// BrowserConfig controls Chrome lifecycle.
type BrowserConfig struct {
	Remote           string        `yaml:"remote"`
	Mode             string        `yaml:"mode"` // headless | headful
	Stealth          *bool         `yaml:"stealth"`
	MemoryLimit      int64         `yaml:"memory_limit"`
	RecycleInterval  time.Duration `yaml:"recycle_interval"`
	ResourceBlocking []string      `yaml:"resource_blocking"`
	XvfbDisplay      string        `yaml:"xvfb_display"`
	StartURLs        []string      `yaml:"start_urls"`
}

// StealthEnabled reports whether opened pages get the stealth patches.
// Default: true.
func (b BrowserConfig) StealthEnabled() bool {
	return b.Stealth == nil || *b.Stealth
}

// RouteConfig selects the page and its cards.
type RouteConfig struct {
	Prefix      string `yaml:"prefix"`
	PathPattern string `yaml:"path_pattern"`
	Main        string `yaml:"main"`
	Container   string `yaml:"container"`
	Link        string `yaml:"link"`
}

// ObserverConfig controls rescans.
type ObserverConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

// RegistryConfig controls the tab registry. With Remote set the watcher
// reports to a registry running elsewhere instead of an in-process one.
type RegistryConfig struct {
	Remote       string        `yaml:"remote"`
	Listen       string        `yaml:"listen"`
	MCP          bool          `yaml:"mcp"`
	Mailbox      int           `yaml:"mailbox"`
	ApplyTimeout time.Duration `yaml:"apply_timeout"`
	Tombstone    time.Duration `yaml:"tombstone"`
}

// SinkConfig defines an indicator applier.
type SinkConfig struct {
	Type    string `yaml:"type"`    // favicon | stdout | webhook
	URL     string `yaml:"url"`     // for webhook
	Images  bool   `yaml:"images"`  // embed PNGs (stdout, webhook)
	Retries int    `yaml:"retries"` // for webhook
	Size    int    `yaml:"size"`    // for favicon
	Title   bool   `yaml:"title"`   // for favicon: prefix the title with the label
}

// Default returns the configuration used without a file.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML configuration and applies defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Browser.MemoryLimit <= 0 {
		c.Browser.MemoryLimit = 1 << 30
	}
	if c.Browser.RecycleInterval == 0 {
		c.Browser.RecycleInterval = 4 * time.Hour
	}
	if c.Browser.Mode == "" {
		c.Browser.Mode = "headless"
	}
	if c.Route.Prefix == "" {
		c.Route.Prefix = scan.DefaultPrefix
	}
	if c.Route.PathPattern == "" {
		c.Route.PathPattern = scan.DefaultPathPattern
	}
	if c.Route.Main == "" {
		c.Route.Main = scan.DefaultMain
	}
	if c.Route.Container == "" {
		c.Route.Container = scan.DefaultContainer
	}
	if c.Route.Link == "" {
		c.Route.Link = scan.DefaultLink
	}
	if c.Observer.Debounce <= 0 {
		c.Observer.Debounce = 100 * time.Millisecond
	}
	if len(c.Sinks) == 0 {
		c.Sinks = []SinkConfig{{Type: "favicon"}}
	}
	for i := range c.Sinks {
		if c.Sinks[i].Type == "webhook" && c.Sinks[i].Retries <= 0 {
			c.Sinks[i].Retries = 3
		}
		if c.Sinks[i].Type == "favicon" && c.Sinks[i].Size <= 0 {
			c.Sinks[i].Size = 32
		}
	}
}

func (c *Config) validate() error {
	switch c.Browser.Mode {
	case "headless", "headful":
	default:
		return fmt.Errorf("config: browser.mode %q: want headless or headful", c.Browser.Mode)
	}
	for i, s := range c.Sinks {
		switch s.Type {
		case "favicon", "stdout":
		case "webhook":
			if s.URL == "" {
				return fmt.Errorf("config: sinks[%d]: webhook needs a url", i)
			}
		default:
			return fmt.Errorf("config: sinks[%d]: unknown type %q", i, s.Type)
		}
	}
	return nil
}

// ScanConfig compiles the route section.
func (c *Config) ScanConfig() (scan.Config, error) {
	route, err := scan.NewRoute(c.Route.Prefix, c.Route.PathPattern)
	if err != nil {
		return scan.Config{}, fmt.Errorf("config: route: %w", err)
	}
	out := scan.Config{Route: route}
	for _, f := range []struct {
		name string
		src  string
		dst  *scan.Selector
	}{
		{"main", c.Route.Main, &out.Main},
		{"container", c.Route.Container, &out.Container},
		{"link", c.Route.Link, &out.Link},
	} {
		sel, err := scan.Compile(f.src)
		if err != nil {
			return scan.Config{}, fmt.Errorf("config: route.%s: %w", f.name, err)
		}
		*f.dst = sel
	}
	return out, nil
}

// RegistryOptions builds the in-process registry configuration.
func (c *Config) RegistryOptions() tabregistry.Config {
	return tabregistry.Config{
		Listen:       c.Registry.Listen,
		MCP:          c.Registry.MCP,
		Mailbox:      c.Registry.Mailbox,
		ApplyTimeout: c.Registry.ApplyTimeout,
		Tombstone:    c.Registry.Tombstone,
		Indicator:    c.Indicator,
	}
}
