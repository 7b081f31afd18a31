// CLAUDE:SUMMARY Per-tab observer actor: trigger queue, one-slot debounce, scan, idempotent handler install, change-suppressed count reports.
// Package observer keeps one tab's middle-click interception and saved-item
// count current while the page mutates, scrolls and navigates.
//
// An Observer is a single-goroutine actor. Triggers (DOM mutations,
// visibility, history and navigation signals) are queued on a channel and
// drained through a one-slot debounce gate; when the gate fires the observer
// snapshots the page, scans it, installs handlers on newly accepted nodes and
// reports the count. A scan therefore runs to completion before the next one
// can start, and handler installation for a node always precedes the report
// its count contributes to.
package observer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hazyhaar/savedtabs/message"
	"github.com/hazyhaar/savedtabs/pagewatch/scan"
)

// Page is the observer's view of one tab.
type Page interface {
	// Snapshot captures the current location and element tree.
	Snapshot(ctx context.Context) (*scan.Document, error)
	// Install attaches interception handlers to the given nodes.
	Install(ctx context.Context, handles []scan.Handle) error
}

// Config for creating an Observer.
type Config struct {
	TabID   string
	Page    Page
	Sender  message.Sender
	Scanner *scan.Scanner
	// Delay is the debounce window. Default: 100ms.
	Delay  time.Duration
	Logger *slog.Logger
}

// Observer scans one tab and reports its count.
type Observer struct {
	tabID   string
	page    Page
	sender  message.Sender
	scanner *scan.Scanner
	logger  *slog.Logger

	triggers chan Trigger
	gate     *gate
	handled  *handledSet

	// Last count the registry accepted; valid when reported is true.
	last     int
	reported bool

	invalidated atomic.Bool
	newDocument atomic.Bool

	requests chan chan scanReply
	started  atomic.Bool
	cancel   context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// New creates an Observer. Call Start to begin observing, or ScanNow for a
// one-off pass.
func New(cfg Config) *Observer {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Observer{
		tabID:    cfg.TabID,
		page:     cfg.Page,
		sender:   cfg.Sender,
		scanner:  cfg.Scanner,
		logger:   cfg.Logger.With("tab", cfg.TabID),
		triggers: make(chan Trigger, 64),
		gate:     newGate(cfg.Delay),
		handled:  newHandledSet(),
		requests: make(chan chan scanReply),
		done:     make(chan struct{}),
	}
}

// Start runs the observer loop until ctx is cancelled or Stop is called. An
// initial scan is scheduled immediately.
func (o *Observer) Start(ctx context.Context) {
	ctx, o.cancel = context.WithCancel(ctx)
	o.started.Store(true)
	o.Trigger(TriggerInitial)
	go o.loop(ctx)
}

// Stop terminates the loop and waits for it. A pending scan is dropped.
func (o *Observer) Stop() {
	o.once.Do(func() {
		if o.cancel != nil {
			o.cancel()
			<-o.done
		}
	})
}

// Trigger queues a rescan reason. It never blocks: when the queue is full a
// scan is already pending and will see the latest DOM. The route-change
// flags of hard triggers are recorded before queueing so a dropped trigger
// still invalidates the last report.
func (o *Observer) Trigger(t Trigger) {
	if t.Hard() {
		o.invalidated.Store(true)
		if t == TriggerDocument {
			o.newDocument.Store(true)
		}
	}
	select {
	case o.triggers <- t:
	default:
		o.logger.Debug("observer: trigger queue full", "trigger", t)
	}
}

func (o *Observer) loop(ctx context.Context) {
	defer close(o.done)
	defer o.gate.stop()

	for {
		select {
		case <-ctx.Done():
			return

		case t := <-o.triggers:
			o.accept(t)

		case <-o.gate.C():
			o.gate.fired()
			if _, err := o.ScanNow(ctx); err != nil && ctx.Err() == nil {
				o.logger.Warn("observer: scan failed", "error", err)
			}

		case reply := <-o.requests:
			res, err := o.ScanNow(ctx)
			reply <- scanReply{res, err}
		}
	}
}

func (o *Observer) accept(t Trigger) {
	if o.gate.schedule() {
		o.logger.Debug("observer: scan scheduled", "trigger", t)
	}
}

type scanReply struct {
	res scan.Result
	err error
}

// ErrStopped is returned by Rescan once the loop has exited.
var ErrStopped = errors.New("observer: stopped")

// Rescan runs one scan and returns its result. On a started observer the
// scan runs on the loop goroutine, serialised with debounced scans; before
// Start it runs on the caller's goroutine.
func (o *Observer) Rescan(ctx context.Context) (scan.Result, error) {
	if !o.started.Load() {
		return o.ScanNow(ctx)
	}
	reply := make(chan scanReply, 1)
	select {
	case o.requests <- reply:
	case <-o.done:
		return scan.Result{}, ErrStopped
	case <-ctx.Done():
		return scan.Result{}, ctx.Err()
	}
	select {
	case r := <-reply:
		return r.res, r.err
	case <-ctx.Done():
		return scan.Result{}, ctx.Err()
	}
}

// ScanNow performs one scan pass and reports the count. It is what the loop
// runs when the debounce gate fires; callers must not invoke it
// concurrently with a started loop. Use Rescan for that.
func (o *Observer) ScanNow(ctx context.Context) (scan.Result, error) {
	if o.invalidated.Swap(false) {
		o.reported = false
	}
	if o.newDocument.Swap(false) {
		o.handled.reset()
	}

	doc, err := o.page.Snapshot(ctx)
	if err != nil {
		return scan.Result{}, fmt.Errorf("observer: snapshot: %w", err)
	}

	res := o.scanner.Scan(doc)
	if !res.OnRoute {
		o.handled.reset()
		o.report(ctx, 0)
		return res, nil
	}

	if fresh := o.handled.fresh(res.Handles); len(fresh) > 0 {
		if err := o.page.Install(ctx, fresh); err != nil {
			// Left unmarked so the next scan retries them.
			o.logger.Warn("observer: install handlers failed", "handles", len(fresh), "error", err)
		} else {
			o.handled.mark(fresh)
			o.logger.Debug("observer: handlers installed", "handles", len(fresh))
		}
	}
	o.handled.retain(res.Handles)

	o.report(ctx, res.Count())
	return res, nil
}

// report sends the count unless it equals the last accepted one. A failed
// send is swallowed and not remembered, so the next scan reports again.
func (o *Observer) report(ctx context.Context, n int) {
	if o.reported && o.last == n {
		return
	}
	if err := o.sender.Send(ctx, message.NewFoundCount(n)); err != nil {
		if !errors.Is(err, context.Canceled) {
			o.logger.Debug("observer: report dropped", "count", n, "error", err)
		}
		return
	}
	o.last, o.reported = n, true
	o.logger.Info("observer: count reported", "count", n)
}
