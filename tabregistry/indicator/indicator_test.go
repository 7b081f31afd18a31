package indicator

import (
	"errors"
	"image/color"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestLabel(t *testing.T) {
	tests := []struct {
		count, cap int
		want       string
	}{
		{0, 99, ""},
		{-4, 99, ""},
		{1, 99, "1"},
		{99, 99, "99"},
		{100, 99, "99+"},
		{150, 99, "99+"},
		{150, 0, "99+"},
		{12, 9, "9+"},
	}
	for _, tt := range tests {
		if got := Label(tt.count, tt.cap); got != tt.want {
			t.Errorf("Label(%d, %d): got %q, want %q", tt.count, tt.cap, got, tt.want)
		}
	}
}

func TestStateFor(t *testing.T) {
	if StateFor(0) != StateDisabled || StateFor(-1) != StateDisabled {
		t.Error("zero and negative counts must be disabled")
	}
	if StateFor(1) != StateEnabled {
		t.Error("positive count must be enabled")
	}
}

func TestParsePath(t *testing.T) {
	cmds, err := parsePath("M6 2H18C19.1 2 20 2.9 20 4V22L12 17L4 22V4C4 2.9 4.9 2 6 2Z")
	if err != nil {
		t.Fatalf("parsePath: %v", err)
	}
	ops := ""
	for _, c := range cmds {
		ops += string(c.op)
	}
	if ops != "MLCLLLLCZ" {
		t.Errorf("ops: got %q", ops)
	}
	if cmds[1].pts[0] != (point{18, 2}) {
		t.Errorf("H target: got %+v", cmds[1].pts[0])
	}
}

func TestParsePath_Relative(t *testing.T) {
	cmds, err := parsePath("m1 1 2 0v2h-2z")
	if err != nil {
		t.Fatalf("parsePath: %v", err)
	}
	want := []point{{1, 1}, {3, 1}, {3, 3}, {1, 3}}
	for i, w := range want {
		if cmds[i].pts[0] != w {
			t.Errorf("cmd %d: got %+v, want %+v", i, cmds[i].pts[0], w)
		}
	}
	if cmds[len(cmds)-1].op != 'Z' {
		t.Error("missing close")
	}
}

func TestParsePath_PackedNumbers(t *testing.T) {
	cmds, err := parsePath("M1.5.5L-2-3")
	if err != nil {
		t.Fatalf("parsePath: %v", err)
	}
	if cmds[0].pts[0] != (point{1.5, 0.5}) || cmds[1].pts[0] != (point{-2, -3}) {
		t.Errorf("got %+v", cmds)
	}
}

func TestParsePath_Errors(t *testing.T) {
	for _, d := range []string{"10 10", "M1", "M0 0A1 1 0 0 1 2 2", "M0 0L1 x"} {
		if _, err := parsePath(d); err == nil {
			t.Errorf("parsePath(%q): expected error", d)
		}
	}
}

func TestParseGlyph(t *testing.T) {
	g, err := ParseGlyph([]byte(`<svg viewBox="0 0 48 48"><g><path d="M0 0H48V48Z"/></g></svg>`))
	if err != nil {
		t.Fatalf("ParseGlyph: %v", err)
	}
	if g.ViewBox != (ViewBox{0, 0, 48, 48}) {
		t.Errorf("ViewBox: got %+v", g.ViewBox)
	}
}

func TestParseGlyph_WidthHeightBound(t *testing.T) {
	g, err := ParseGlyph([]byte(`<svg width="32px" height="16"><path d="M0 0H1V1Z"/></svg>`))
	if err != nil {
		t.Fatalf("ParseGlyph: %v", err)
	}
	if g.ViewBox != (ViewBox{0, 0, 32, 16}) {
		t.Errorf("ViewBox: got %+v", g.ViewBox)
	}
}

func TestParseGlyph_Errors(t *testing.T) {
	tests := []struct {
		name string
		svg  string
		want error
	}{
		{"no path", `<svg viewBox="0 0 24 24"><circle r="4"/></svg>`, ErrNoPath},
		{"empty d", `<svg viewBox="0 0 24 24"><path d=" "/></svg>`, ErrNoPath},
		{"bad viewBox", `<svg viewBox="0 0 24"><path d="M0 0H1Z"/></svg>`, ErrBadViewBox},
		{"zero viewBox", `<svg viewBox="0 0 0 24"><path d="M0 0H1Z"/></svg>`, ErrBadViewBox},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseGlyph([]byte(tt.svg))
			if !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
	if _, err := ParseGlyph([]byte(`<svg><path d="M0 0`)); err == nil {
		t.Error("truncated xml: expected error")
	}
	if _, err := ParseGlyph([]byte(`<path d="M0 0H1Z"/>`)); err == nil {
		t.Error("no svg root: expected error")
	}
}

func TestLoadGlyph_Missing(t *testing.T) {
	_, err := LoadGlyph(fstest.MapFS{}, "glyph.svg")
	if err == nil {
		t.Fatal("expected error for missing asset")
	}
}

func TestDefaultGlyph(t *testing.T) {
	g, err := DefaultGlyph()
	if err != nil {
		t.Fatalf("DefaultGlyph: %v", err)
	}
	if len(g.cmds) == 0 {
		t.Error("no commands")
	}
}

func newRenderer(t *testing.T, cfg Config) *Renderer {
	t.Helper()
	r, err := NewRenderer(cfg, quiet)
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	return r
}

func TestRender_StateColor(t *testing.T) {
	r := newRenderer(t, Config{})
	on, err := r.RenderCount(3)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	off, err := r.RenderCount(0)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if on.State != StateEnabled || on.Label != "3" {
		t.Errorf("on: got %s %q", on.State, on.Label)
	}
	if off.State != StateDisabled || off.Label != "" {
		t.Errorf("off: got %s %q", off.State, off.Label)
	}
	if got := on.Sizes(); len(got) != 2 || got[0] != 16 || got[1] != 32 {
		t.Errorf("Sizes: got %v", got)
	}

	// The bookmark body covers the center of the 16px icon.
	want := color.RGBA{0x11, 0x85, 0xfe, 0xff}
	if got := on.Images[16].RGBAAt(8, 6); got != want {
		t.Errorf("enabled center pixel: got %v, want %v", got, want)
	}
	wantOff := color.RGBA{0x8a, 0x8f, 0x98, 0xff}
	if got := off.Images[16].RGBAAt(8, 6); got != wantOff {
		t.Errorf("disabled center pixel: got %v, want %v", got, wantOff)
	}
	// Corners stay transparent.
	if got := on.Images[16].RGBAAt(0, 0); got.A != 0 {
		t.Errorf("corner alpha: got %d", got.A)
	}
}

func TestRender_Badge(t *testing.T) {
	r := newRenderer(t, Config{})
	ind, err := r.RenderCount(7)
	if err != nil {
		t.Fatal(err)
	}
	badge := color.RGBA{0xd9, 0x30, 0x4f, 0xff}
	if got := ind.Images[32].RGBAAt(31, 31); got != badge {
		t.Errorf("32px badge corner: got %v, want %v", got, badge)
	}
	if got := ind.Images[16].RGBAAt(15, 15); got == badge {
		t.Error("16px icon must not carry a drawn badge")
	}
}

func TestRender_Cached(t *testing.T) {
	r := newRenderer(t, Config{})
	a, _ := r.RenderCount(150)
	b, _ := r.RenderCount(200)
	if a.Label != "99+" {
		t.Errorf("Label: got %q", a.Label)
	}
	if a.Images[16] != b.Images[16] {
		t.Error("same (state, label) must reuse the cached image")
	}
	if r.cache.hits != 1 {
		t.Errorf("cache hits: got %d, want 1", r.cache.hits)
	}
}

func TestRender_PNG(t *testing.T) {
	r := newRenderer(t, Config{Sizes: []int{48}})
	ind, _ := r.RenderCount(1)
	data, err := ind.PNG(48)
	if err != nil {
		t.Fatalf("PNG: %v", err)
	}
	if string(data[1:4]) != "PNG" {
		t.Errorf("not a PNG: % x", data[:8])
	}
	if _, err := ind.PNG(16); err == nil {
		t.Error("PNG at unrendered size: expected error")
	}
}

func TestRender_MissingGlyph(t *testing.T) {
	r := newRenderer(t, Config{Glyph: filepath.Join(t.TempDir(), "missing.svg")})
	if _, err := r.RenderCount(1); err == nil {
		t.Fatal("expected error for missing glyph")
	}
}

func TestRender_FallbackGlyph(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.svg")
	if err := os.WriteFile(path, []byte(`<svg viewBox="0 0 24 24"></svg>`), 0o644); err != nil {
		t.Fatal(err)
	}
	r := newRenderer(t, Config{Glyph: path, FallbackGlyph: true})
	ind, err := r.RenderCount(1)
	if err != nil {
		t.Fatalf("Render with fallback: %v", err)
	}
	if ind.Images[16].RGBAAt(8, 8).A == 0 {
		t.Error("placeholder not drawn")
	}
}

func TestNewRenderer_Validation(t *testing.T) {
	if _, err := NewRenderer(Config{EnabledColor: "blue"}, quiet); err == nil {
		t.Error("bad color: expected error")
	}
	if _, err := NewRenderer(Config{Sizes: []int{0}}, quiet); err == nil {
		t.Error("bad size: expected error")
	}
}

func TestRender_UnknownState(t *testing.T) {
	r := newRenderer(t, Config{})
	if _, err := r.Render(State("blinking"), ""); err == nil {
		t.Error("expected error")
	}
}
