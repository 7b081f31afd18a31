// CLAUDE:SUMMARY Loads the indicator glyph from an SVG asset: first path's d attribute plus optional viewBox.
package indicator

import (
	"bytes"
	"embed"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
)

//go:embed assets/glyph.svg
var assets embed.FS

// DefaultGlyphName is the embedded glyph asset.
const DefaultGlyphName = "assets/glyph.svg"

var (
	// ErrNoPath is returned when the asset holds no <path d="...">.
	ErrNoPath = errors.New("indicator: glyph has no path")
	// ErrBadViewBox is returned for a viewBox that is not four numbers with
	// positive width and height.
	ErrBadViewBox = errors.New("indicator: malformed viewBox")
)

// ViewBox is the glyph's coordinate-space bound.
type ViewBox struct {
	MinX, MinY, Width, Height float32
}

// Glyph is a parsed vector shape.
type Glyph struct {
	ViewBox ViewBox
	cmds    []pathCmd
}

// placeholderGlyph is the degraded-mode shape: a filled square.
func placeholderGlyph() *Glyph {
	g, _ := NewGlyph("M2 2H22V22H2Z", ViewBox{0, 0, 24, 24})
	return g
}

// NewGlyph builds a glyph from path data and a bound.
func NewGlyph(d string, vb ViewBox) (*Glyph, error) {
	if vb.Width <= 0 || vb.Height <= 0 {
		return nil, ErrBadViewBox
	}
	cmds, err := parsePath(d)
	if err != nil {
		return nil, err
	}
	if len(cmds) == 0 {
		return nil, ErrNoPath
	}
	return &Glyph{ViewBox: vb, cmds: cmds}, nil
}

// LoadGlyph reads and parses an SVG asset from fsys.
func LoadGlyph(fsys fs.FS, name string) (*Glyph, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("indicator: load glyph %s: %w", name, err)
	}
	g, err := ParseGlyph(data)
	if err != nil {
		return nil, fmt.Errorf("indicator: glyph %s: %w", name, err)
	}
	return g, nil
}

// LoadGlyphFile reads and parses an SVG file from disk.
func LoadGlyphFile(path string) (*Glyph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("indicator: load glyph: %w", err)
	}
	g, err := ParseGlyph(data)
	if err != nil {
		return nil, fmt.Errorf("indicator: glyph %s: %w", path, err)
	}
	return g, nil
}

// DefaultGlyph returns the embedded glyph.
func DefaultGlyph() (*Glyph, error) {
	return LoadGlyph(assets, DefaultGlyphName)
}

// ParseGlyph extracts the first path definition and the root viewBox from
// an SVG document. Without a viewBox the width/height attributes are used,
// then a 24x24 bound.
func ParseGlyph(data []byte) (*Glyph, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	vb := ViewBox{0, 0, 24, 24}
	sawRoot := false
	d := ""

	for d == "" {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("indicator: parse svg: %w", err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch se.Name.Local {
		case "svg":
			if sawRoot {
				continue
			}
			sawRoot = true
			v, err := rootBound(se)
			if err != nil {
				return nil, err
			}
			vb = v
		case "path":
			d = strings.TrimSpace(attr(se, "d"))
		}
	}
	if !sawRoot {
		return nil, fmt.Errorf("indicator: parse svg: no <svg> root")
	}
	if d == "" {
		return nil, ErrNoPath
	}
	return NewGlyph(d, vb)
}

func rootBound(se xml.StartElement) (ViewBox, error) {
	if s := attr(se, "viewBox"); s != "" {
		f := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' || r == '\n' })
		if len(f) != 4 {
			return ViewBox{}, fmt.Errorf("%w: %q", ErrBadViewBox, s)
		}
		var n [4]float32
		for i, x := range f {
			v, err := strconv.ParseFloat(x, 32)
			if err != nil {
				return ViewBox{}, fmt.Errorf("%w: %q", ErrBadViewBox, s)
			}
			n[i] = float32(v)
		}
		if n[2] <= 0 || n[3] <= 0 {
			return ViewBox{}, fmt.Errorf("%w: %q", ErrBadViewBox, s)
		}
		return ViewBox{n[0], n[1], n[2], n[3]}, nil
	}
	w, errW := strconv.ParseFloat(strings.TrimSuffix(attr(se, "width"), "px"), 32)
	h, errH := strconv.ParseFloat(strings.TrimSuffix(attr(se, "height"), "px"), 32)
	if errW == nil && errH == nil && w > 0 && h > 0 {
		return ViewBox{0, 0, float32(w), float32(h)}, nil
	}
	return ViewBox{0, 0, 24, 24}, nil
}

func attr(se xml.StartElement, name string) string {
	for _, a := range se.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}
