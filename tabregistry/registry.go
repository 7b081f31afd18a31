// CLAUDE:SUMMARY Tab state registry actor: mailbox-serialised tab→count records, latest-wins apply worker rendering indicators through a sink.Applier.
// Package tabregistry tracks the saved-item count of every tab and keeps
// each tab's indicator in sync with it.
//
// The registry is an actor: one goroutine owns the records and every
// operation is a message on its mailbox. Indicator rendering and
// application run on a second goroutine fed by a latest-wins queue, so a
// slow applier never delays bookkeeping.
package tabregistry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hazyhaar/savedtabs/message"
	"github.com/hazyhaar/savedtabs/tabregistry/indicator"
	"github.com/hazyhaar/savedtabs/tabregistry/sink"
)

// ErrClosed is returned for operations on a stopped registry.
var ErrClosed = errors.New("registry: closed")

// Record is the stored state of one tab.
type Record struct {
	TabID     string          `json:"tab_id"`
	Count     int             `json:"count"`
	State     indicator.State `json:"state"`
	Label     string          `json:"label"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Stats counts indicator applications.
type Stats struct {
	Applied int64 `json:"applied"`
	Failed  int64 `json:"failed"`
}

// Registry owns tab id → Record.
type Registry struct {
	cfg      Config
	renderer *indicator.Renderer
	applier  sink.Applier
	logger   *slog.Logger

	mailbox chan func()
	records map[string]*Record   // loop goroutine only
	removed map[string]time.Time // loop goroutine only; tombstones
	queue   *applyQueue

	applied atomic.Int64
	failed  atomic.Int64

	closed   chan struct{}
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	started  atomic.Bool
	stopOnce sync.Once
}

// New creates a registry applying indicators through applier. A nil
// applier discards indicators (records are still kept).
func New(cfg Config, applier sink.Applier, logger *slog.Logger) (*Registry, error) {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	renderer, err := indicator.NewRenderer(cfg.Indicator, logger)
	if err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}
	if applier == nil {
		applier = sink.NewCallback(nil)
	}
	return &Registry{
		cfg:      cfg,
		renderer: renderer,
		applier:  applier,
		logger:   logger,
		mailbox:  make(chan func(), cfg.Mailbox),
		records:  make(map[string]*Record),
		removed:  make(map[string]time.Time),
		queue:    newApplyQueue(),
		closed:   make(chan struct{}),
	}, nil
}

// Start runs the mailbox loop and the apply worker until ctx is cancelled
// or Stop is called. Calling Start twice is a no-op.
func (r *Registry) Start(ctx context.Context) {
	if !r.started.CompareAndSwap(false, true) {
		return
	}
	ctx, r.cancel = context.WithCancel(ctx)
	r.wg.Add(2)
	go r.loop(ctx)
	go r.applyWorker(ctx)
	r.logger.Info("registry: started", "sizes", r.cfg.Indicator.Sizes, "mailbox", r.cfg.Mailbox)
}

// Stop halts both goroutines, waits for them and closes the applier.
// Idempotent.
func (r *Registry) Stop() error {
	var err error
	r.stopOnce.Do(func() {
		close(r.closed)
		if r.cancel != nil {
			r.cancel()
		}
		r.wg.Wait()
		err = r.applier.Close()
		r.logger.Info("registry: stopped")
	})
	return err
}

// Renderer returns the indicator renderer.
func (r *Registry) Renderer() *indicator.Renderer { return r.renderer }

// Stats returns application counters.
func (r *Registry) Stats() Stats {
	return Stats{Applied: r.applied.Load(), Failed: r.failed.Load()}
}

func (r *Registry) loop(ctx context.Context) {
	defer r.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case op := <-r.mailbox:
			op()
		}
	}
}

// do enqueues op on the mailbox.
func (r *Registry) do(ctx context.Context, op func()) error {
	select {
	case <-r.closed:
		return ErrClosed
	default:
	}
	select {
	case r.mailbox <- op:
		return nil
	case <-r.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// query runs fn on the loop goroutine and waits for it.
func query[T any](ctx context.Context, r *Registry, fn func() T) (T, error) {
	var zero T
	reply := make(chan T, 1)
	if err := r.do(ctx, func() { reply <- fn() }); err != nil {
		return zero, err
	}
	select {
	case v := <-reply:
		return v, nil
	case <-r.closed:
		return zero, ErrClosed
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Report stores count for tabID and applies it. Negative counts become 0.
func (r *Registry) Report(ctx context.Context, tabID string, count int) error {
	if tabID == "" {
		return message.ErrNoTab
	}
	if count < 0 {
		count = 0
	}
	return r.do(ctx, func() {
		if r.gone(tabID) {
			r.logger.Debug("registry: report for removed tab dropped", "tab", tabID, "count", count)
			return
		}
		r.logger.Debug("registry: report", "tab", tabID, "count", count)
		r.set(tabID, count)
	})
}

// Deliver applies a message envelope, rejecting envelopes without a tab
// or with an unknown message type.
func (r *Registry) Deliver(ctx context.Context, env message.Envelope) error {
	if err := env.Validate(); err != nil {
		r.logger.Debug("registry: message rejected", "tab", env.TabID, "error", err)
		return err
	}
	return r.Report(ctx, env.TabID, env.Message.Count)
}

// Sender returns an in-process message.Sender bound to tabID.
func (r *Registry) Sender(tabID string) message.Sender {
	return message.SenderFunc(func(ctx context.Context, m message.FoundCount) error {
		return r.Deliver(ctx, message.Envelope{TabID: tabID, Message: m})
	})
}

// ResetOnNavigationStart zeroes tabID's count when it begins loading a
// new location.
func (r *Registry) ResetOnNavigationStart(ctx context.Context, tabID string) error {
	if tabID == "" {
		return message.ErrNoTab
	}
	return r.do(ctx, func() {
		if r.gone(tabID) {
			return
		}
		r.logger.Debug("registry: navigation reset", "tab", tabID)
		r.set(tabID, 0)
	})
}

// OnActivated re-applies tabID's stored count, 0 if it has none.
func (r *Registry) OnActivated(ctx context.Context, tabID string) error {
	if tabID == "" {
		return message.ErrNoTab
	}
	return r.do(ctx, func() {
		if r.gone(tabID) {
			return
		}
		count := 0
		if rec, ok := r.records[tabID]; ok {
			count = rec.Count
		}
		r.set(tabID, count)
	})
}

// OnRemoved forgets tabID and drops any pending application for it.
func (r *Registry) OnRemoved(ctx context.Context, tabID string) error {
	if tabID == "" {
		return message.ErrNoTab
	}
	return r.do(ctx, func() {
		delete(r.records, tabID)
		r.queue.drop(tabID)
		r.bury(tabID)
		r.logger.Debug("registry: tab removed", "tab", tabID)
	})
}

// Record returns a copy of tabID's record.
func (r *Registry) Record(ctx context.Context, tabID string) (Record, bool, error) {
	type result struct {
		rec Record
		ok  bool
	}
	res, err := query(ctx, r, func() result {
		rec, ok := r.records[tabID]
		if !ok {
			return result{}
		}
		return result{*rec, true}
	})
	return res.rec, res.ok, err
}

// Records returns copies of all records sorted by tab id.
func (r *Registry) Records(ctx context.Context) ([]Record, error) {
	return query(ctx, r, func() []Record {
		out := make([]Record, 0, len(r.records))
		for _, rec := range r.records {
			out = append(out, *rec)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].TabID < out[j].TabID })
		return out
	})
}

// gone reports whether tabID was removed within the tombstone window.
// Messages from a remote watcher can arrive after the removal they raced;
// tab ids are never reused, so such messages are dropped. Loop goroutine
// only.
func (r *Registry) gone(tabID string) bool {
	at, ok := r.removed[tabID]
	if !ok {
		return false
	}
	if time.Since(at) > r.cfg.Tombstone {
		delete(r.removed, tabID)
		return false
	}
	return true
}

// bury records a removal and prunes expired tombstones. Loop goroutine only.
func (r *Registry) bury(tabID string) {
	now := time.Now()
	for id, at := range r.removed {
		if now.Sub(at) > r.cfg.Tombstone {
			delete(r.removed, id)
		}
	}
	r.removed[tabID] = now
}

// set updates the record and queues an application. Loop goroutine only.
func (r *Registry) set(tabID string, count int) {
	rec, ok := r.records[tabID]
	if !ok {
		rec = &Record{TabID: tabID}
		r.records[tabID] = rec
	}
	rec.Count = count
	rec.State = indicator.StateFor(count)
	rec.Label = indicator.Label(count, r.renderer.Cap())
	rec.UpdatedAt = time.Now().UTC()
	r.queue.push(applyJob{tabID: tabID, count: count})
}

func (r *Registry) applyWorker(ctx context.Context) {
	defer r.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.queue.wake:
		}
		for {
			j, ok := r.queue.pop()
			if !ok {
				break
			}
			r.apply(ctx, j)
			if ctx.Err() != nil {
				return
			}
		}
	}
}

func (r *Registry) apply(ctx context.Context, j applyJob) {
	ind, err := r.renderer.RenderCount(j.count)
	if err != nil {
		r.failed.Add(1)
		r.logger.Warn("registry: render failed", "tab", j.tabID, "count", j.count, "error", err)
		return
	}
	actx, cancel := context.WithTimeout(ctx, r.cfg.ApplyTimeout)
	defer cancel()
	if err := r.applier.Apply(actx, j.tabID, ind); err != nil {
		r.failed.Add(1)
		r.logger.Warn("registry: apply failed", "tab", j.tabID, "label", ind.Label, "error", err)
		return
	}
	r.applied.Add(1)
}
