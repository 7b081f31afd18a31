package sink

import (
	"context"
	"log/slog"

	"github.com/hazyhaar/savedtabs/tabregistry/indicator"
)

// Router fans out indicators to all configured appliers. One applier error
// does not block the others: errors are logged and the first encountered
// is returned.
type Router struct {
	appliers []Applier
	logger   *slog.Logger
}

// NewRouter creates a fan-out router delivering to all appliers.
func NewRouter(logger *slog.Logger, appliers ...Applier) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{appliers: appliers, logger: logger}
}

// Add appends an applier. Not safe to call once Apply is in use.
func (r *Router) Add(a Applier) { r.appliers = append(r.appliers, a) }

// Len returns the number of appliers.
func (r *Router) Len() int { return len(r.appliers) }

func (r *Router) Apply(ctx context.Context, tabID string, ind indicator.Indicator) error {
	var firstErr error
	for _, a := range r.appliers {
		if err := a.Apply(ctx, tabID, ind); err != nil {
			r.logger.Warn("sink: apply failed", "tab", tabID, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (r *Router) Close() error {
	var firstErr error
	for _, a := range r.appliers {
		if err := a.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
