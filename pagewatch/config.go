package pagewatch

import (
	"github.com/hazyhaar/savedtabs/pagewatch/internal/config"
)

// Config is the top-level savedtabs configuration. Re-exported from internal.
type Config = config.Config

// BrowserConfig controls Chrome lifecycle.
type BrowserConfig = config.BrowserConfig

// RouteConfig selects the monitored page and its cards.
type RouteConfig = config.RouteConfig

// ObserverConfig controls rescans.
type ObserverConfig = config.ObserverConfig

// RegistryConfig controls the tab registry.
type RegistryConfig = config.RegistryConfig

// SinkConfig defines an indicator applier.
type SinkConfig = config.SinkConfig

// LoadConfigFile reads a YAML configuration file.
func LoadConfigFile(path string) (*Config, error) {
	return config.LoadFile(path)
}

// DefaultConfig returns the configuration used without a file.
func DefaultConfig() *Config {
	return config.Default()
}
