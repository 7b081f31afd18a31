package observer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hazyhaar/savedtabs/message"
	"github.com/hazyhaar/savedtabs/pagewatch/scan"
)

type fakePage struct {
	mu         sync.Mutex
	doc        *scan.Document
	snapshots  int
	installs   [][]scan.Handle
	installErr error
}

func (p *fakePage) set(doc *scan.Document) {
	p.mu.Lock()
	p.doc = doc
	p.mu.Unlock()
}

func (p *fakePage) Snapshot(context.Context) (*scan.Document, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snapshots++
	return p.doc, nil
}

func (p *fakePage) Install(_ context.Context, hs []scan.Handle) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.installErr != nil {
		return p.installErr
	}
	p.installs = append(p.installs, hs)
	return nil
}

func (p *fakePage) stats() (snapshots, installs int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshots, len(p.installs)
}

type fakeSender struct {
	counts chan int
	fail   int // number of sends to fail before succeeding
	mu     sync.Mutex
}

func newFakeSender() *fakeSender {
	return &fakeSender{counts: make(chan int, 32)}
}

func (s *fakeSender) Send(_ context.Context, m message.FoundCount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail > 0 {
		s.fail--
		return errors.New("channel closed")
	}
	s.counts <- m.Count
	return nil
}

func (s *fakeSender) expect(t *testing.T, want int) {
	t.Helper()
	select {
	case got := <-s.counts:
		if got != want {
			t.Fatalf("reported count: got %d, want %d", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no report, want %d", want)
	}
}

func (s *fakeSender) expectNone(t *testing.T) {
	t.Helper()
	select {
	case got := <-s.counts:
		t.Fatalf("unexpected report %d", got)
	default:
	}
}

func doc(t *testing.T, loc string, paths ...string) *scan.Document {
	t.Helper()
	var b strings.Builder
	b.WriteString("<html><body><main>")
	for _, p := range paths {
		b.WriteString(`<div role="link" tabindex="0"><a href="` + p + `">x</a></div>`)
	}
	b.WriteString("</main></body></html>")
	d, err := scan.ParseHTML(strings.NewReader(b.String()), loc)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func newTestObserver(t *testing.T, page *fakePage, sender *fakeSender, delay time.Duration) *Observer {
	t.Helper()
	s, err := scan.NewScanner(scan.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	return New(Config{
		TabID:   "tab-1",
		Page:    page,
		Sender:  sender,
		Scanner: s,
		Delay:   delay,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

const saved = "https://bsky.app/saved"

func TestScanNow_ReportsAndInstalls(t *testing.T) {
	page := &fakePage{doc: doc(t, saved, "/profile/a/post/1", "/profile/b/post/2")}
	sender := newFakeSender()
	o := newTestObserver(t, page, sender, 0)

	res, err := o.ScanNow(context.Background())
	if err != nil {
		t.Fatalf("ScanNow: %v", err)
	}
	if res.Count() != 2 {
		t.Fatalf("Count: got %d", res.Count())
	}
	sender.expect(t, 2)
	if len(page.installs) != 1 || len(page.installs[0]) != 4 {
		t.Fatalf("installs: got %v", page.installs)
	}
}

func TestScanNow_Idempotent(t *testing.T) {
	page := &fakePage{doc: doc(t, saved, "/profile/a/post/1", "/profile/b/post/2")}
	sender := newFakeSender()
	o := newTestObserver(t, page, sender, 0)
	ctx := context.Background()

	first, _ := o.ScanNow(ctx)
	second, err := o.ScanNow(ctx)
	if err != nil {
		t.Fatalf("second ScanNow: %v", err)
	}
	if first.Count() != second.Count() {
		t.Fatalf("Count changed: %d then %d", first.Count(), second.Count())
	}
	sender.expect(t, 2)
	sender.expectNone(t)
	if _, installs := page.stats(); installs != 1 {
		t.Errorf("Install calls: got %d, want 1", installs)
	}
	if o.handled.len() != 4 {
		t.Errorf("handled entries: got %d, want 4", o.handled.len())
	}
}

func TestScanNow_RouteGating(t *testing.T) {
	page := &fakePage{doc: doc(t, saved, "/profile/a/post/1", "/profile/b/post/2", "/profile/c/post/3")}
	sender := newFakeSender()
	o := newTestObserver(t, page, sender, 0)
	ctx := context.Background()

	o.ScanNow(ctx)
	sender.expect(t, 3)

	page.set(doc(t, "https://bsky.app/profile/a", "/profile/a/post/1"))
	o.ScanNow(ctx)
	sender.expect(t, 0)
	if o.handled.len() != 0 {
		t.Errorf("handled entries off-route: got %d", o.handled.len())
	}
}

func TestScanNow_HardTriggerReasserts(t *testing.T) {
	page := &fakePage{doc: doc(t, saved, "/profile/a/post/1")}
	sender := newFakeSender()
	o := newTestObserver(t, page, sender, 0)
	ctx := context.Background()

	o.ScanNow(ctx)
	sender.expect(t, 1)
	o.ScanNow(ctx)
	sender.expectNone(t)

	o.Trigger(TriggerNavigate)
	o.ScanNow(ctx)
	sender.expect(t, 1)

	// A soft trigger does not invalidate.
	o.Trigger(TriggerMutation)
	o.ScanNow(ctx)
	sender.expectNone(t)
}

func TestScanNow_DocumentTriggerReinstalls(t *testing.T) {
	page := &fakePage{doc: doc(t, saved, "/profile/a/post/1")}
	sender := newFakeSender()
	o := newTestObserver(t, page, sender, 0)
	ctx := context.Background()

	o.ScanNow(ctx)
	o.Trigger(TriggerDocument)
	o.ScanNow(ctx)
	if _, installs := page.stats(); installs != 2 {
		t.Errorf("Install calls: got %d, want 2", installs)
	}
}

func TestScanNow_FailedSendIsRetried(t *testing.T) {
	page := &fakePage{doc: doc(t, saved, "/profile/a/post/1")}
	sender := newFakeSender()
	sender.fail = 1
	o := newTestObserver(t, page, sender, 0)
	ctx := context.Background()

	if _, err := o.ScanNow(ctx); err != nil {
		t.Fatalf("ScanNow must swallow send errors: %v", err)
	}
	sender.expectNone(t)
	o.ScanNow(ctx)
	sender.expect(t, 1)
}

func TestScanNow_FailedInstallIsRetried(t *testing.T) {
	page := &fakePage{doc: doc(t, saved, "/profile/a/post/1"), installErr: errors.New("target closed")}
	sender := newFakeSender()
	o := newTestObserver(t, page, sender, 0)
	ctx := context.Background()

	o.ScanNow(ctx)
	sender.expect(t, 1)
	if o.handled.len() != 0 {
		t.Fatalf("handled after failed install: got %d", o.handled.len())
	}

	page.mu.Lock()
	page.installErr = nil
	page.mu.Unlock()
	o.ScanNow(ctx)
	if _, installs := page.stats(); installs != 1 {
		t.Errorf("Install calls: got %d, want 1", installs)
	}
}

type errPage struct{ fakePage }

func (*errPage) Snapshot(context.Context) (*scan.Document, error) {
	return nil, errors.New("execution context destroyed")
}

func TestScanNow_SnapshotError(t *testing.T) {
	sender := newFakeSender()
	s, _ := scan.NewScanner(scan.DefaultConfig())
	o := New(Config{TabID: "t", Page: &errPage{}, Sender: sender, Scanner: s,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	if _, err := o.ScanNow(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	sender.expectNone(t)
}

func TestLoop_CoalescesBurst(t *testing.T) {
	page := &fakePage{doc: doc(t, saved, "/profile/a/post/1")}
	sender := newFakeSender()
	o := newTestObserver(t, page, sender, 50*time.Millisecond)

	o.Start(context.Background())
	defer o.Stop()
	for i := 0; i < 40; i++ {
		o.Trigger(TriggerMutation)
	}
	sender.expect(t, 1)

	time.Sleep(150 * time.Millisecond)
	if snaps, _ := page.stats(); snaps != 1 {
		t.Errorf("snapshots: got %d, want 1", snaps)
	}
}

func TestLoop_RescansAfterMutation(t *testing.T) {
	page := &fakePage{doc: doc(t, saved, "/profile/a/post/1", "/profile/b/post/2", "/profile/c/post/3")}
	sender := newFakeSender()
	o := newTestObserver(t, page, sender, 10*time.Millisecond)

	o.Start(context.Background())
	defer o.Stop()
	sender.expect(t, 3)

	page.set(doc(t, saved, "/profile/a/post/1"))
	o.Trigger(TriggerMutation)
	sender.expect(t, 1)
}

// WHAT: forced rescans and debounced scans run against one started observer.
// WHY: both touch the handled set and the last report; run with -race.
func TestRescan_SerialisedWithLoop(t *testing.T) {
	page := &fakePage{doc: doc(t, saved, "/profile/a/post/1", "/profile/b/post/2")}
	var reports atomic.Int64
	s, err := scan.NewScanner(scan.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	o := New(Config{
		TabID: "tab-1",
		Page:  page,
		Sender: message.SenderFunc(func(context.Context, message.FoundCount) error {
			reports.Add(1)
			return nil
		}),
		Scanner: s,
		Delay:   time.Millisecond,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	o.Start(context.Background())
	defer o.Stop()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			o.Trigger(TriggerNavigate)
			time.Sleep(100 * time.Microsecond)
		}
	}()
	for i := 0; i < 50; i++ {
		res, err := o.Rescan(context.Background())
		if err != nil {
			t.Fatalf("Rescan: %v", err)
		}
		if res.Count() != 2 {
			t.Fatalf("Rescan: count %d, want 2", res.Count())
		}
	}
	wg.Wait()
	if reports.Load() == 0 {
		t.Fatal("no report")
	}
}

func TestRescan_AfterStop(t *testing.T) {
	o := newTestObserver(t, &fakePage{doc: doc(t, saved)}, newFakeSender(), 0)
	o.Start(context.Background())
	o.Stop()
	if _, err := o.Rescan(context.Background()); !errors.Is(err, ErrStopped) {
		t.Fatalf("Rescan after Stop: got %v, want ErrStopped", err)
	}
}

func TestRescan_BeforeStart(t *testing.T) {
	sender := newFakeSender()
	o := newTestObserver(t, &fakePage{doc: doc(t, saved, "/profile/a/post/1")}, sender, 0)
	res, err := o.Rescan(context.Background())
	if err != nil || res.Count() != 1 {
		t.Fatalf("Rescan: count=%d err=%v", res.Count(), err)
	}
	sender.expect(t, 1)
}

func TestStop_Idempotent(t *testing.T) {
	o := newTestObserver(t, &fakePage{doc: doc(t, saved)}, newFakeSender(), 0)
	o.Start(context.Background())
	o.Stop()
	o.Stop()
}

func TestParseTrigger(t *testing.T) {
	if tr, ok := ParseTrigger("mutation"); !ok || tr != TriggerMutation {
		t.Errorf("mutation: got %q %v", tr, ok)
	}
	if _, ok := ParseTrigger("bogus"); ok {
		t.Error("bogus: accepted")
	}
}
