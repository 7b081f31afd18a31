package tabregistry

import (
	"time"

	"github.com/hazyhaar/savedtabs/tabregistry/indicator"
)

// Config controls the registry.
type Config struct {
	// Listen is the HTTP API address. Empty disables the API.
	Listen string `yaml:"listen" json:"listen"`
	// MCP exposes the read-only MCP tools over stdio.
	MCP bool `yaml:"mcp" json:"mcp"`
	// Mailbox is the operation queue depth. Default: 256.
	Mailbox int `yaml:"mailbox" json:"mailbox"`
	// ApplyTimeout bounds one applier call. Default: 5s.
	ApplyTimeout time.Duration `yaml:"apply_timeout" json:"apply_timeout"`
	// Tombstone is how long a removed tab id ignores late reports and
	// lifecycle signals. Default: 1m.
	Tombstone time.Duration `yaml:"tombstone" json:"tombstone"`
	// Indicator controls rendering.
	Indicator indicator.Config `yaml:"-" json:"-"`
}

func (c *Config) defaults() {
	if c.Mailbox <= 0 {
		c.Mailbox = 256
	}
	if c.ApplyTimeout <= 0 {
		c.ApplyTimeout = 5 * time.Second
	}
	if c.Tombstone <= 0 {
		c.Tombstone = time.Minute
	}
}
