package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hazyhaar/savedtabs/tabregistry/indicator"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func testIndicator() indicator.Indicator {
	return indicator.Indicator{
		State: indicator.StateEnabled,
		Label: "5",
		Images: map[int]*image.RGBA{
			32: image.NewRGBA(image.Rect(0, 0, 32, 32)),
			16: image.NewRGBA(image.Rect(0, 0, 16, 16)),
		},
	}
}

func TestNewEvent(t *testing.T) {
	ev, err := NewEvent("tab-1", testIndicator(), false)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(ev.ID, "ind_") {
		t.Errorf("ID: got %q", ev.ID)
	}
	if ev.TabID != "tab-1" || ev.State != indicator.StateEnabled || ev.Label != "5" {
		t.Errorf("event: got %+v", ev)
	}
	if len(ev.Sizes) != 2 || ev.Sizes[0] != 16 {
		t.Errorf("Sizes: got %v", ev.Sizes)
	}
	if ev.Images != nil {
		t.Error("images included without request")
	}

	ev, err = NewEvent("tab-1", testIndicator(), true)
	if err != nil {
		t.Fatal(err)
	}
	if len(ev.Images) != 2 || ev.Images["16"] == "" {
		t.Errorf("Images: got %v keys", len(ev.Images))
	}
}

func TestStdout(t *testing.T) {
	var buf bytes.Buffer
	s := NewStdout(&buf, false)
	if err := s.Apply(context.Background(), "tab-1", testIndicator()); err != nil {
		t.Fatal(err)
	}
	var got struct {
		Type string `json:"type"`
		Data Event  `json:"data"`
	}
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	if got.Type != "indicator" || got.Data.TabID != "tab-1" || got.Data.Label != "5" {
		t.Errorf("got %+v", got)
	}
}

type recorder struct {
	calls int
	err   error
}

func (r *recorder) Apply(context.Context, string, indicator.Indicator) error {
	r.calls++
	return r.err
}

func (r *recorder) Close() error { return r.err }

func TestRouter_FanOutContinuesOnError(t *testing.T) {
	boom := errors.New("boom")
	a, b := &recorder{err: boom}, &recorder{}
	r := NewRouter(quiet, a, b)

	err := r.Apply(context.Background(), "tab-1", testIndicator())
	if !errors.Is(err, boom) {
		t.Errorf("Apply: got %v, want %v", err, boom)
	}
	if a.calls != 1 || b.calls != 1 {
		t.Errorf("calls: got %d, %d", a.calls, b.calls)
	}
	if err := r.Close(); !errors.Is(err, boom) {
		t.Errorf("Close: got %v", err)
	}
}

func TestCallback(t *testing.T) {
	var got string
	c := NewCallback(func(_ context.Context, tabID string, ind indicator.Indicator) error {
		got = tabID + ":" + ind.Label
		return nil
	})
	if err := c.Apply(context.Background(), "tab-9", testIndicator()); err != nil {
		t.Fatal(err)
	}
	if got != "tab-9:5" {
		t.Errorf("got %q", got)
	}
	if err := NewCallback(nil).Apply(context.Background(), "x", testIndicator()); err != nil {
		t.Errorf("nil callback: %v", err)
	}
}

func TestWebhook_RetriesThenSucceeds(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("content type: %q", r.Header.Get("Content-Type"))
		}
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		var env struct {
			Data Event `json:"data"`
		}
		if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
			t.Errorf("decode: %v", err)
		}
		if len(env.Data.Images) != 2 {
			t.Errorf("images: got %d", len(env.Data.Images))
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	w := NewWebhook(srv.URL,
		WithWebhookBackoff(time.Millisecond),
		WithWebhookImages(true),
		WithWebhookLogger(quiet))
	if err := w.Apply(context.Background(), "tab-1", testIndicator()); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if n := hits.Load(); n != 3 {
		t.Errorf("hits: got %d, want 3", n)
	}
}

func TestWebhook_Exhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	w := NewWebhook(srv.URL,
		WithWebhookRetries(1),
		WithWebhookBackoff(time.Millisecond),
		WithWebhookLogger(quiet))
	err := w.Apply(context.Background(), "tab-1", testIndicator())
	if err == nil || !strings.Contains(err.Error(), "status 500") {
		t.Errorf("got %v", err)
	}
}

func TestWebhook_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	w := NewWebhook(srv.URL, WithWebhookBackoff(time.Hour), WithWebhookLogger(quiet))
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	if err := w.Apply(ctx, "tab-1", testIndicator()); !errors.Is(err, context.Canceled) {
		t.Errorf("got %v", err)
	}
}
