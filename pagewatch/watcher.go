// Package pagewatch runs the page side of savedtabs: it drives Chrome over
// CDP, attaches an observer to every page target and forwards target
// lifecycle to a tab registry.
//
// The watcher plays the part of a browser's extension host. It owns no
// per-tab counts; those live in the registry it is started with, which may
// run in-process or behind the registry HTTP API.
package pagewatch

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/hazyhaar/savedtabs/idgen"
	"github.com/hazyhaar/savedtabs/message"
	"github.com/hazyhaar/savedtabs/pagewatch/internal/browser"
	"github.com/hazyhaar/savedtabs/pagewatch/internal/cdppage"
	"github.com/hazyhaar/savedtabs/pagewatch/internal/config"
	"github.com/hazyhaar/savedtabs/pagewatch/internal/observer"
	"github.com/hazyhaar/savedtabs/pagewatch/scan"
	"github.com/hazyhaar/savedtabs/tabregistry/sink"
)

var newRunID = idgen.Prefixed("run_", idgen.NanoID(12))

// Registry is what the watcher reports to. *tabregistry.Registry and
// *tabregistry.Client both satisfy it.
type Registry interface {
	Sender(tabID string) message.Sender
	ResetOnNavigationStart(ctx context.Context, tabID string) error
	OnActivated(ctx context.Context, tabID string) error
	OnRemoved(ctx context.Context, tabID string) error
}

type attachment struct {
	page *cdppage.Page
	obs  *observer.Observer
}

// Watcher is the top-level orchestrator. Create one per browser.
type Watcher struct {
	cfg     *config.Config
	mgr     *browser.Manager
	scanner *scan.Scanner
	runID   string
	logger  *slog.Logger

	mu          sync.Mutex
	reg         Registry
	ctx         context.Context
	watchCancel context.CancelFunc
	tabs        map[string]*attachment // keyed by target id
	opened      []*browser.Tab
	started     bool
}

// New creates a Watcher from configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Watcher, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	sc, err := cfg.ScanConfig()
	if err != nil {
		return nil, err
	}
	scanner, err := scan.NewScanner(sc)
	if err != nil {
		return nil, err
	}
	mode, err := browser.ParseMode(cfg.Browser.Mode)
	if err != nil {
		return nil, err
	}

	runID := newRunID()
	logger = logger.With("run", runID)

	mgr := browser.NewManager(browser.Config{
		RemoteURL:        cfg.Browser.Remote,
		MemoryLimit:      cfg.Browser.MemoryLimit,
		RecycleInterval:  cfg.Browser.RecycleInterval,
		ResourceBlocking: cfg.Browser.ResourceBlocking,
		Stealth:          cfg.Browser.StealthEnabled(),
		Mode:             mode,
		XvfbDisplay:      cfg.Browser.XvfbDisplay,
		Logger:           logger,
	})

	return &Watcher{
		cfg:     cfg,
		mgr:     mgr,
		scanner: scanner,
		runID:   runID,
		logger:  logger,
		tabs:    make(map[string]*attachment),
	}, nil
}

// RunID identifies this watcher in logs.
func (w *Watcher) RunID() string { return w.runID }

// Scanner returns the compiled scanner.
func (w *Watcher) Scanner() *scan.Scanner { return w.scanner }

// Applier returns an applier that shows indicators as favicons on this
// watcher's tabs. It follows the browser across recycles.
func (w *Watcher) Applier(size int, title bool) sink.Applier {
	return cdppage.NewFavicon(w.mgr.Browser, size, title)
}

// Start launches the browser, attaches to every existing and future page
// target and opens the configured start URLs.
func (w *Watcher) Start(ctx context.Context, reg Registry) error {
	if reg == nil {
		return fmt.Errorf("pagewatch: nil registry")
	}
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return fmt.Errorf("pagewatch: already started")
	}
	w.started = true
	w.reg = reg
	w.ctx = ctx
	w.mu.Unlock()

	b, err := w.mgr.Start(ctx)
	if err != nil {
		return fmt.Errorf("pagewatch: start browser: %w", err)
	}

	w.mgr.SetRecycleCallback(&browser.RecycleCallback{
		BeforeRecycle: w.detachAll,
		// The manager holds its lock during the callback; re-attaching
		// needs Browser(), so it runs once the recycle returns.
		AfterRecycle: func(nb *rod.Browser) { go w.resume(nb) },
	})

	if err := w.watch(b); err != nil {
		return err
	}
	w.openStartURLs()
	w.logger.Info("pagewatch: started", "start_urls", len(w.cfg.Browser.StartURLs))
	return nil
}

func (w *Watcher) watch(b *rod.Browser) error {
	w.mu.Lock()
	ctx, cancel := context.WithCancel(w.ctx)
	w.watchCancel = cancel
	w.mu.Unlock()

	err := browser.WatchTargets(ctx, b, browser.TargetHandler{
		Created:   func(ctx context.Context, id, url string) { w.attach(ctx, b, id) },
		Navigated: w.navigated,
		Destroyed: w.destroyed,
	}, w.logger)
	if err != nil {
		cancel()
		return fmt.Errorf("pagewatch: watch targets: %w", err)
	}
	return nil
}

func (w *Watcher) openStartURLs() {
	for _, u := range w.cfg.Browser.StartURLs {
		tab, err := browser.OpenTab(w.ctx, w.mgr, u)
		if err != nil {
			w.logger.Error("pagewatch: open start url failed", "url", u, "error", err)
			continue
		}
		w.mu.Lock()
		w.opened = append(w.opened, tab)
		w.mu.Unlock()
	}
}

func (w *Watcher) resume(b *rod.Browser) {
	if err := w.watch(b); err != nil {
		w.logger.Error("pagewatch: re-attach after recycle failed", "error", err)
		return
	}
	w.mu.Lock()
	w.opened = nil
	w.mu.Unlock()
	w.openStartURLs()
}

// attach starts observing one page target.
func (w *Watcher) attach(ctx context.Context, b *rod.Browser, targetID string) {
	w.mu.Lock()
	_, exists := w.tabs[targetID]
	reg := w.reg
	w.mu.Unlock()
	if exists {
		return
	}

	page, err := b.PageFromTarget(proto.TargetTargetID(targetID))
	if err != nil {
		w.logger.Warn("pagewatch: attach failed", "tab", targetID, "error", err)
		return
	}

	// CDP events can arrive before the observer exists; those are covered
	// by the observer's initial scan.
	var obsRef atomic.Pointer[observer.Observer]
	onTrigger := func(t observer.Trigger) {
		if t == observer.TriggerVisible {
			go w.lifecycle(ctx, "activated", targetID, reg.OnActivated)
		}
		if o := obsRef.Load(); o != nil {
			o.Trigger(t)
		}
	}

	cp, err := cdppage.Attach(ctx, cdppage.Config{
		Page:      page,
		Selectors: cdppage.SelectorsFor(w.scanner.Config()),
		OnTrigger: onTrigger,
		Logger:    w.logger.With("tab", targetID),
	})
	if err != nil {
		w.logger.Warn("pagewatch: attach failed", "tab", targetID, "error", err)
		return
	}

	obs := observer.New(observer.Config{
		TabID:   targetID,
		Page:    cp,
		Sender:  reg.Sender(targetID),
		Scanner: w.scanner,
		Delay:   w.cfg.Observer.Debounce,
		Logger:  w.logger,
	})
	obsRef.Store(obs)

	w.mu.Lock()
	if _, exists := w.tabs[targetID]; exists {
		w.mu.Unlock()
		cp.Detach()
		return
	}
	// Started before it is published so Rescan always goes through the loop.
	obs.Start(ctx)
	w.tabs[targetID] = &attachment{page: cp, obs: obs}
	w.mu.Unlock()

	w.logger.Info("pagewatch: observing tab", "tab", targetID)
}

// navigated resets the tab before its next count lands, then asks for a
// fresh scan so the reset never outlives the new page's report.
func (w *Watcher) navigated(ctx context.Context, targetID, url string) {
	w.lifecycle(ctx, "navigated", targetID, w.reg.ResetOnNavigationStart)

	w.mu.Lock()
	a := w.tabs[targetID]
	w.mu.Unlock()
	if a != nil {
		a.obs.Trigger(observer.TriggerNavigate)
	}
}

func (w *Watcher) destroyed(ctx context.Context, targetID string) {
	w.mu.Lock()
	a := w.tabs[targetID]
	delete(w.tabs, targetID)
	w.mu.Unlock()

	if a != nil {
		a.obs.Stop()
		a.page.Detach()
	}
	w.lifecycle(ctx, "removed", targetID, w.reg.OnRemoved)
	w.logger.Info("pagewatch: tab closed", "tab", targetID)
}

func (w *Watcher) lifecycle(ctx context.Context, event, targetID string, op func(context.Context, string) error) {
	if err := op(ctx, targetID); err != nil {
		w.logger.Debug("pagewatch: lifecycle signal dropped", "event", event, "tab", targetID, "error", err)
	}
}

// detachAll stops every observer and target watch. Each tab is reported
// removed: its target does not survive a browser restart.
func (w *Watcher) detachAll() {
	w.mu.Lock()
	if w.watchCancel != nil {
		w.watchCancel()
	}
	tabs := w.tabs
	w.tabs = make(map[string]*attachment)
	reg := w.reg
	ctx := w.ctx
	w.mu.Unlock()

	for id, a := range tabs {
		a.obs.Stop()
		a.page.Detach()
		if reg != nil {
			w.lifecycle(ctx, "removed", id, reg.OnRemoved)
		}
	}
}

// Tabs lists the observed target ids.
func (w *Watcher) Tabs() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(w.tabs))
	for id := range w.tabs {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Rescan forces a scan of one tab, serialised with its debounced scans,
// and reports its count.
func (w *Watcher) Rescan(ctx context.Context, targetID string) (scan.Result, error) {
	w.mu.Lock()
	a := w.tabs[targetID]
	w.mu.Unlock()
	if a == nil {
		return scan.Result{}, fmt.Errorf("pagewatch: unknown tab %q", targetID)
	}
	return a.obs.Rescan(ctx)
}

// Stop detaches every observer, closes the tabs the watcher opened and
// shuts the browser down. A remote browser is only disconnected.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.watchCancel != nil {
		w.watchCancel()
	}
	tabs := w.tabs
	w.tabs = make(map[string]*attachment)
	opened := w.opened
	w.opened = nil
	w.mu.Unlock()

	for id, a := range tabs {
		a.obs.Stop()
		a.page.Detach()
		w.logger.Debug("pagewatch: stopped observer", "tab", id)
	}
	if w.mgr.Config().RemoteURL != "" {
		for _, t := range opened {
			if err := t.Close(); err != nil {
				w.logger.Debug("pagewatch: close tab", "error", err)
			}
		}
	}
	if err := w.mgr.Close(); err != nil {
		w.logger.Warn("pagewatch: close browser", "error", err)
	}
}
