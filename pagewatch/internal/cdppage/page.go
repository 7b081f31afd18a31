// CLAUDE:SUMMARY CDP-backed observer.Page: injects the page runtime, relays in-page signals and CDP navigations as triggers, snapshots and installs handlers.
// Package cdppage connects a page observer to a live Chrome tab over CDP.
//
// The tab runs a small injected runtime (inject.js) that takes element
// snapshots, installs middle-click handlers and reports DOM and lifecycle
// signals through a Runtime binding. Same-document navigations and new
// documents come from CDP Page events instead of history patching.
package cdppage

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/hazyhaar/savedtabs/pagewatch/internal/observer"
	"github.com/hazyhaar/savedtabs/pagewatch/scan"
)

//go:embed inject.js
var injectJS string

const bindingName = "__savedtabs_binding"

// ErrNoRuntime is returned when the page runtime is missing and could not
// be re-injected (e.g. a document that forbids script evaluation).
var ErrNoRuntime = errors.New("cdppage: page runtime unavailable")

// Selectors are the CSS selectors the in-page snapshot emits.
type Selectors struct {
	Main      string `json:"main"`
	Container string `json:"container"`
	Link      string `json:"link"`
}

// SelectorsFor derives snapshot selectors from a scanner configuration.
func SelectorsFor(cfg scan.Config) Selectors {
	return Selectors{
		Main:      cfg.Main.String(),
		Container: cfg.Container.String(),
		Link:      cfg.Link.String(),
	}
}

// Config configures Attach.
type Config struct {
	Page      *rod.Page
	Selectors Selectors
	// OnTrigger receives every in-page signal and CDP navigation as an
	// observer trigger. Called from the CDP event goroutine; must not block.
	OnTrigger func(observer.Trigger)
	Logger    *slog.Logger
}

// Page implements observer.Page on a Rod page.
type Page struct {
	page      *rod.Page
	sel       Selectors
	onTrigger func(observer.Trigger)
	logger    *slog.Logger

	cancel       context.CancelFunc
	removeScript func() error
	once         sync.Once
}

var _ observer.Page = (*Page)(nil)

// Attach installs the runtime on the page and starts relaying events.
// Observation setup failures (binding, new-document script, current
// document injection) are logged; the page can still be scanned on
// explicit triggers.
func Attach(ctx context.Context, cfg Config) (*Page, error) {
	if cfg.Page == nil {
		return nil, fmt.Errorf("cdppage: nil page")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.OnTrigger == nil {
		cfg.OnTrigger = func(observer.Trigger) {}
	}
	log := cfg.Logger

	ctx, cancel := context.WithCancel(ctx)
	p := &Page{
		page:      cfg.Page,
		sel:       cfg.Selectors,
		onTrigger: cfg.OnTrigger,
		logger:    log,
		cancel:    cancel,
	}

	if err := (proto.PageEnable{}).Call(cfg.Page); err != nil {
		cancel()
		return nil, fmt.Errorf("cdppage: page enable: %w", err)
	}
	if err := (proto.RuntimeAddBinding{Name: bindingName}).Call(cfg.Page); err != nil {
		log.Warn("cdppage: add binding failed, in-page signals disabled", "error", err)
	}

	wait := cfg.Page.Context(ctx).EachEvent(
		func(e *proto.RuntimeBindingCalled) {
			if e.Name == bindingName {
				p.handleSignal(e.Payload)
			}
		},
		func(e *proto.PageNavigatedWithinDocument) {
			if e.FrameID == cfg.Page.FrameID {
				log.Debug("cdppage: same-document navigation", "url", e.URL)
				p.onTrigger(observer.TriggerNavigate)
			}
		},
		func(e *proto.PageFrameNavigated) {
			if e.Frame != nil && e.Frame.ParentID == "" {
				log.Debug("cdppage: new document", "url", e.Frame.URL)
				p.onTrigger(observer.TriggerDocument)
			}
		},
	)
	go wait()

	remove, err := cfg.Page.EvalOnNewDocument("(" + injectJS + ")()")
	if err != nil {
		log.Warn("cdppage: new-document script failed", "error", err)
	} else {
		p.removeScript = remove
	}
	if err := p.inject(ctx); err != nil {
		log.Warn("cdppage: inject into current document failed", "error", err)
	}
	return p, nil
}

// Detach stops relaying events and removes the new-document script.
// Handlers already installed stay in the page. Idempotent.
func (p *Page) Detach() {
	p.once.Do(func() {
		p.cancel()
		if p.removeScript != nil {
			if err := p.removeScript(); err != nil {
				p.logger.Debug("cdppage: remove script", "error", err)
			}
		}
	})
}

// pageSignals are the triggers the in-page runtime may raise. The binding
// is callable by any page script, so navigate and document come only from
// CDP events.
var pageSignals = map[observer.Trigger]bool{
	observer.TriggerMutation: true,
	observer.TriggerPageShow: true,
	observer.TriggerPopState: true,
	observer.TriggerVisible:  true,
	observer.TriggerFocus:    true,
}

type signalPayload struct {
	Signal string `json:"signal"`
	Error  string `json:"error"`
}

func (p *Page) handleSignal(payload string) {
	var s signalPayload
	if err := json.Unmarshal([]byte(payload), &s); err != nil {
		p.logger.Debug("cdppage: bad signal payload", "error", err)
		return
	}
	if s.Signal == "setup_failed" {
		p.logger.Warn("cdppage: in-page observation setup failed", "error", s.Error)
		return
	}
	t, ok := observer.ParseTrigger(s.Signal)
	if !ok || !pageSignals[t] {
		p.logger.Debug("cdppage: signal rejected", "signal", s.Signal)
		return
	}
	p.onTrigger(t)
}

func (p *Page) inject(ctx context.Context) error {
	_, err := p.page.Context(ctx).Eval(injectJS)
	return err
}

const snapshotJS = `(sel) => window.__savedtabs ? JSON.stringify(window.__savedtabs.snapshot(sel)) : null`

// Snapshot returns the current document's emitted elements. A document
// that lost the runtime (e.g. script injection raced a navigation) is
// re-injected once.
func (p *Page) Snapshot(ctx context.Context) (*scan.Document, error) {
	for attempt := 0; attempt < 2; attempt++ {
		res, err := p.page.Context(ctx).Eval(snapshotJS, p.sel)
		if err != nil {
			return nil, fmt.Errorf("cdppage: snapshot: %w", err)
		}
		if !res.Value.Nil() {
			return scan.DecodeSnapshot([]byte(res.Value.Str()))
		}
		if err := p.inject(ctx); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNoRuntime, err)
		}
	}
	return nil, ErrNoRuntime
}

const installJS = `(handles) => window.__savedtabs ? window.__savedtabs.install(handles) : -1`

// Install attaches middle-click handlers to the elements behind hs. The
// elements must come from the latest Snapshot.
func (p *Page) Install(ctx context.Context, hs []scan.Handle) error {
	if len(hs) == 0 {
		return nil
	}
	res, err := p.page.Context(ctx).Eval(installJS, hs)
	if err != nil {
		return fmt.Errorf("cdppage: install: %w", err)
	}
	if res.Value.Int() < 0 {
		return ErrNoRuntime
	}
	return nil
}
