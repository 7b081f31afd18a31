// CLAUDE:SUMMARY Renders (state,label) into per-size RGBA images: tinted glyph via x/image/vector, count badge via basicfont.
package indicator

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"
)

// Config controls indicator rendering.
type Config struct {
	// Sizes are the pixel sizes rendered for every indicator. Default: 16, 32.
	Sizes []int `yaml:"sizes" json:"sizes"`
	// Cap is the largest count shown verbatim. Default: 99.
	Cap int `yaml:"cap" json:"cap"`
	// Glyph is an SVG file on disk. Empty = embedded bookmark glyph.
	Glyph string `yaml:"glyph" json:"glyph"`
	// FallbackGlyph renders a square when the glyph cannot be loaded
	// instead of failing every render.
	FallbackGlyph bool `yaml:"fallback_glyph" json:"fallback_glyph"`

	EnabledColor  string `yaml:"enabled_color" json:"enabled_color"`   // default #1185fe
	DisabledColor string `yaml:"disabled_color" json:"disabled_color"` // default #8a8f98
	BadgeColor    string `yaml:"badge_color" json:"badge_color"`       // default #d9304f
	// BadgeMinSize is the smallest size that gets a drawn badge; smaller
	// sizes rely on the host drawing the text label. Default: 32.
	BadgeMinSize int `yaml:"badge_min_size" json:"badge_min_size"`
}

func (c *Config) defaults() {
	if len(c.Sizes) == 0 {
		c.Sizes = []int{16, 32}
	}
	if c.Cap <= 0 {
		c.Cap = DefaultCap
	}
	if c.EnabledColor == "" {
		c.EnabledColor = "#1185fe"
	}
	if c.DisabledColor == "" {
		c.DisabledColor = "#8a8f98"
	}
	if c.BadgeColor == "" {
		c.BadgeColor = "#d9304f"
	}
	if c.BadgeMinSize <= 0 {
		c.BadgeMinSize = 32
	}
}

// Indicator is a rendered indicator. Images are shared through the cache
// and must not be modified.
type Indicator struct {
	State  State
	Label  string
	Images map[int]*image.RGBA
}

// Sizes returns the rendered sizes in ascending order.
func (i Indicator) Sizes() []int {
	out := make([]int, 0, len(i.Images))
	for s := range i.Images {
		out = append(out, s)
	}
	sort.Ints(out)
	return out
}

// PNG encodes the image for size.
func (i Indicator) PNG(size int) ([]byte, error) {
	img, ok := i.Images[size]
	if !ok {
		return nil, fmt.Errorf("indicator: no image at size %d", size)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("indicator: encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// Renderer produces indicators. Safe for concurrent use.
type Renderer struct {
	cfg    Config
	colors map[State]color.RGBA
	badge  color.RGBA
	logger *slog.Logger

	mu    sync.Mutex
	glyph *Glyph
	cache *cache
}

// NewRenderer validates cfg. The glyph is loaded on first render, so a
// missing asset surfaces as a render error at the apply boundary.
func NewRenderer(cfg Config, logger *slog.Logger) (*Renderer, error) {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	for _, s := range cfg.Sizes {
		if s <= 0 || s > 512 {
			return nil, fmt.Errorf("indicator: invalid size %d", s)
		}
	}
	en, err := parseHex(cfg.EnabledColor)
	if err != nil {
		return nil, err
	}
	dis, err := parseHex(cfg.DisabledColor)
	if err != nil {
		return nil, err
	}
	badge, err := parseHex(cfg.BadgeColor)
	if err != nil {
		return nil, err
	}
	return &Renderer{
		cfg:    cfg,
		colors: map[State]color.RGBA{StateEnabled: en, StateDisabled: dis},
		badge:  badge,
		logger: logger,
		cache:  newCache(),
	}, nil
}

// Cap returns the label cap.
func (r *Renderer) Cap() int { return r.cfg.Cap }

// RenderCount renders the indicator for a stored count.
func (r *Renderer) RenderCount(count int) (Indicator, error) {
	return r.Render(StateFor(count), Label(count, r.cfg.Cap))
}

// Render returns the indicator for (state, label), from cache when possible.
func (r *Renderer) Render(state State, label string) (Indicator, error) {
	fill, ok := r.colors[state]
	if !ok {
		return Indicator{}, fmt.Errorf("indicator: unknown state %q", state)
	}
	key := cacheKey{state, label}

	r.mu.Lock()
	defer r.mu.Unlock()

	if ind, ok := r.cache.get(key); ok {
		return ind, nil
	}
	g, err := r.loadGlyphLocked()
	if err != nil {
		return Indicator{}, err
	}

	ind := Indicator{State: state, Label: label, Images: make(map[int]*image.RGBA, len(r.cfg.Sizes))}
	for _, size := range r.cfg.Sizes {
		ind.Images[size] = r.draw(g, size, fill, label)
	}
	r.cache.put(key, ind)
	return ind, nil
}

func (r *Renderer) loadGlyphLocked() (*Glyph, error) {
	if r.glyph != nil {
		return r.glyph, nil
	}
	var (
		g   *Glyph
		err error
	)
	if r.cfg.Glyph == "" {
		g, err = DefaultGlyph()
	} else {
		g, err = LoadGlyphFile(r.cfg.Glyph)
	}
	if err != nil {
		if !r.cfg.FallbackGlyph {
			return nil, err
		}
		r.logger.Warn("indicator: glyph unavailable, using placeholder", "error", err)
		g = placeholderGlyph()
	}
	r.glyph = g
	return g, nil
}

func (r *Renderer) draw(g *Glyph, size int, fill color.RGBA, label string) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size, size))

	z := vector.NewRasterizer(size, size)
	g.rasterize(z, size, float32(size)/16)
	z.Draw(img, img.Bounds(), image.NewUniform(fill), image.Point{})

	if label != "" && size >= r.cfg.BadgeMinSize {
		r.drawBadge(img, size, label)
	}
	return img
}

func (r *Renderer) drawBadge(img *image.RGBA, size int, label string) {
	face := basicfont.Face7x13
	textW := font.MeasureString(face, label).Ceil()
	const pad, h = 2, 13

	x0 := size - textW - 2*pad
	if x0 < 0 {
		x0 = 0
	}
	rect := image.Rect(x0, size-h, size, size)
	draw.Draw(img, rect, image.NewUniform(r.badge), image.Point{}, draw.Src)

	d := font.Drawer{
		Dst:  img,
		Src:  image.White,
		Face: face,
		Dot:  fixed.P(x0+pad, size-face.Descent),
	}
	d.DrawString(label)
}

func parseHex(s string) (color.RGBA, error) {
	h := strings.TrimPrefix(s, "#")
	if len(h) != 6 {
		return color.RGBA{}, fmt.Errorf("indicator: color %q: want #rrggbb", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("indicator: color %q: %w", s, err)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}
