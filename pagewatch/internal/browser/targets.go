// CLAUDE:SUMMARY Browser-level CDP target discovery: page targets created, navigated (URL change) and destroyed.
package browser

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// TargetHandler receives page-target lifecycle events. Any field may be
// nil. Calls are serialised on one goroutine, in CDP order.
type TargetHandler struct {
	Created   func(ctx context.Context, targetID, url string)
	Navigated func(ctx context.Context, targetID, url string)
	Destroyed func(ctx context.Context, targetID string)
}

type targetEvent struct {
	kind string // created, navigated, destroyed
	id   string
	url  string
}

// WatchTargets enables target discovery on b and dispatches page-target
// events to h until ctx is cancelled. Chrome replays a created event for
// every existing target when discovery is enabled.
func WatchTargets(ctx context.Context, b *rod.Browser, h TargetHandler, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	events := make(chan targetEvent, 256)
	urls := make(map[string]string) // event goroutine only

	wait := b.Context(ctx).EachEvent(
		func(e *proto.TargetTargetCreated) {
			if !isPage(e.TargetInfo) {
				return
			}
			id := string(e.TargetInfo.TargetID)
			urls[id] = e.TargetInfo.URL
			push(ctx, events, targetEvent{"created", id, e.TargetInfo.URL})
		},
		func(e *proto.TargetTargetInfoChanged) {
			if !isPage(e.TargetInfo) {
				return
			}
			id := string(e.TargetInfo.TargetID)
			old, known := urls[id]
			urls[id] = e.TargetInfo.URL
			if !known {
				push(ctx, events, targetEvent{"created", id, e.TargetInfo.URL})
				return
			}
			if old != e.TargetInfo.URL {
				push(ctx, events, targetEvent{"navigated", id, e.TargetInfo.URL})
			}
		},
		func(e *proto.TargetTargetDestroyed) {
			id := string(e.TargetID)
			if _, ok := urls[id]; !ok {
				return
			}
			delete(urls, id)
			push(ctx, events, targetEvent{"destroyed", id, ""})
		},
	)

	if err := (proto.TargetSetDiscoverTargets{Discover: true}).Call(b); err != nil {
		return fmt.Errorf("browser: discover targets: %w", err)
	}

	go wait()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-events:
				logger.Debug("browser: target event", "kind", ev.kind, "target", ev.id, "url", ev.url)
				switch ev.kind {
				case "created":
					if h.Created != nil {
						h.Created(ctx, ev.id, ev.url)
					}
				case "navigated":
					if h.Navigated != nil {
						h.Navigated(ctx, ev.id, ev.url)
					}
				case "destroyed":
					if h.Destroyed != nil {
						h.Destroyed(ctx, ev.id)
					}
				}
			}
		}
	}()
	return nil
}

func isPage(info *proto.TargetTargetInfo) bool {
	return info != nil && info.Type == proto.TargetTargetInfoTypePage
}

func push(ctx context.Context, ch chan<- targetEvent, ev targetEvent) {
	select {
	case ch <- ev:
	case <-ctx.Done():
	}
}
