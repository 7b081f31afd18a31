// CLAUDE:SUMMARY In-process callback applier delivering indicators via Go function calls with zero serialization.
package sink

import (
	"context"

	"github.com/hazyhaar/savedtabs/tabregistry/indicator"
)

// ApplyFunc is called for each applied indicator.
type ApplyFunc func(ctx context.Context, tabID string, ind indicator.Indicator) error

// Callback delivers indicators via Go function calls, for hosts embedding
// the registry in the same binary.
type Callback struct {
	fn ApplyFunc
}

// NewCallback creates a Callback applier. fn may be nil.
func NewCallback(fn ApplyFunc) *Callback {
	return &Callback{fn: fn}
}

func (c *Callback) Apply(ctx context.Context, tabID string, ind indicator.Indicator) error {
	if c.fn != nil {
		return c.fn(ctx, tabID, ind)
	}
	return nil
}

func (c *Callback) Close() error { return nil }
