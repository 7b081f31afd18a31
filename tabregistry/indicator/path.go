package indicator

import (
	"fmt"
	"strconv"

	"golang.org/x/image/vector"
)

type point struct{ x, y float32 }

// pathCmd is an absolute drawing command: 'M', 'L', 'Q', 'C' or 'Z'.
type pathCmd struct {
	op  byte
	pts [3]point
}

// parsePath converts SVG path data to absolute commands. Supported:
// M L H V C S Q T Z in both cases. Arcs are rejected.
func parsePath(d string) ([]pathCmd, error) {
	p := pathLexer{s: d}
	var (
		cmds       []pathCmd
		cur, start point
		lastCtrl   point // reflected control point for S/T
		lastOp     byte
		op         byte
	)

	for {
		p.skipSep()
		if p.done() {
			break
		}
		if c := p.s[p.i]; isCommand(c) {
			op = c
			p.i++
		} else if op == 0 {
			return nil, fmt.Errorf("indicator: path data must start with a command, got %q", c)
		}

		rel := op >= 'a'
		abs := func(pt point) point {
			if rel {
				return point{cur.x + pt.x, cur.y + pt.y}
			}
			return pt
		}

		switch op {
		case 'M', 'm':
			pt, err := p.point()
			if err != nil {
				return nil, err
			}
			cur = abs(pt)
			start = cur
			cmds = append(cmds, pathCmd{op: 'M', pts: [3]point{cur}})
			// Further coordinate pairs are implicit lineto.
			if rel {
				op = 'l'
			} else {
				op = 'L'
			}
			lastOp = 'M'
			continue
		case 'L', 'l':
			pt, err := p.point()
			if err != nil {
				return nil, err
			}
			cur = abs(pt)
			cmds = append(cmds, pathCmd{op: 'L', pts: [3]point{cur}})
		case 'H', 'h':
			x, err := p.number()
			if err != nil {
				return nil, err
			}
			if rel {
				x += cur.x
			}
			cur = point{x, cur.y}
			cmds = append(cmds, pathCmd{op: 'L', pts: [3]point{cur}})
		case 'V', 'v':
			y, err := p.number()
			if err != nil {
				return nil, err
			}
			if rel {
				y += cur.y
			}
			cur = point{cur.x, y}
			cmds = append(cmds, pathCmd{op: 'L', pts: [3]point{cur}})
		case 'C', 'c':
			pts, err := p.points(3)
			if err != nil {
				return nil, err
			}
			c1, c2, end := abs(pts[0]), abs(pts[1]), abs(pts[2])
			cmds = append(cmds, pathCmd{op: 'C', pts: [3]point{c1, c2, end}})
			lastCtrl, cur = c2, end
		case 'S', 's':
			pts, err := p.points(2)
			if err != nil {
				return nil, err
			}
			c1 := cur
			if lastOp == 'C' {
				c1 = point{2*cur.x - lastCtrl.x, 2*cur.y - lastCtrl.y}
			}
			c2, end := abs(pts[0]), abs(pts[1])
			cmds = append(cmds, pathCmd{op: 'C', pts: [3]point{c1, c2, end}})
			lastCtrl, cur = c2, end
			lastOp = 'C'
			continue
		case 'Q', 'q':
			pts, err := p.points(2)
			if err != nil {
				return nil, err
			}
			c, end := abs(pts[0]), abs(pts[1])
			cmds = append(cmds, pathCmd{op: 'Q', pts: [3]point{c, end}})
			lastCtrl, cur = c, end
		case 'T', 't':
			pt, err := p.point()
			if err != nil {
				return nil, err
			}
			c := cur
			if lastOp == 'Q' {
				c = point{2*cur.x - lastCtrl.x, 2*cur.y - lastCtrl.y}
			}
			end := abs(pt)
			cmds = append(cmds, pathCmd{op: 'Q', pts: [3]point{c, end}})
			lastCtrl, cur = c, end
			lastOp = 'Q'
			continue
		case 'Z', 'z':
			cmds = append(cmds, pathCmd{op: 'Z'})
			cur = start
			// Z takes no arguments; a following number is an error.
			lastOp = 'Z'
			op = 0
			continue
		default:
			return nil, fmt.Errorf("indicator: unsupported path command %q", op)
		}
		lastOp = cmds[len(cmds)-1].op
	}
	return cmds, nil
}

func isCommand(c byte) bool {
	switch c {
	case 'M', 'm', 'L', 'l', 'H', 'h', 'V', 'v', 'C', 'c', 'S', 's',
		'Q', 'q', 'T', 't', 'Z', 'z', 'A', 'a':
		return true
	}
	return false
}

type pathLexer struct {
	s string
	i int
}

func (p *pathLexer) done() bool { return p.i >= len(p.s) }

func (p *pathLexer) skipSep() {
	for p.i < len(p.s) {
		switch p.s[p.i] {
		case ' ', ',', '\t', '\n', '\r':
			p.i++
		default:
			return
		}
	}
}

// number scans one float. "1.5.5" lexes as 1.5 then .5, and a sign starts
// a new number, as SVG allows.
func (p *pathLexer) number() (float32, error) {
	p.skipSep()
	start := p.i
	if p.i < len(p.s) && (p.s[p.i] == '+' || p.s[p.i] == '-') {
		p.i++
	}
	sawDot, sawDigit := false, false
scan:
	for p.i < len(p.s) {
		c := p.s[p.i]
		switch {
		case c >= '0' && c <= '9':
			sawDigit = true
		case c == '.' && !sawDot:
			sawDot = true
		case (c == 'e' || c == 'E') && sawDigit:
			p.i++
			if p.i < len(p.s) && (p.s[p.i] == '+' || p.s[p.i] == '-') {
				p.i++
			}
			continue
		default:
			break scan
		}
		p.i++
	}
	if !sawDigit {
		return 0, fmt.Errorf("indicator: expected number at offset %d in path data", start)
	}
	f, err := strconv.ParseFloat(p.s[start:p.i], 32)
	if err != nil {
		return 0, fmt.Errorf("indicator: bad number %q in path data", p.s[start:p.i])
	}
	return float32(f), nil
}

func (p *pathLexer) point() (point, error) {
	x, err := p.number()
	if err != nil {
		return point{}, err
	}
	y, err := p.number()
	if err != nil {
		return point{}, err
	}
	return point{x, y}, nil
}

func (p *pathLexer) points(n int) ([]point, error) {
	out := make([]point, n)
	for i := range out {
		pt, err := p.point()
		if err != nil {
			return nil, err
		}
		out[i] = pt
	}
	return out, nil
}

// rasterize fills the glyph into z, mapping the view box onto a size×size
// square with the given inset on each side.
func (g *Glyph) rasterize(z *vector.Rasterizer, size int, inset float32) {
	avail := float32(size) - 2*inset
	scale := avail / g.ViewBox.Width
	if s := avail / g.ViewBox.Height; s < scale {
		scale = s
	}
	ox := inset + (avail-g.ViewBox.Width*scale)/2
	oy := inset + (avail-g.ViewBox.Height*scale)/2
	tr := func(pt point) (float32, float32) {
		return ox + (pt.x-g.ViewBox.MinX)*scale, oy + (pt.y-g.ViewBox.MinY)*scale
	}

	open := false
	for _, c := range g.cmds {
		switch c.op {
		case 'M':
			if open {
				z.ClosePath()
			}
			z.MoveTo(tr(c.pts[0]))
			open = true
		case 'L':
			z.LineTo(tr(c.pts[0]))
		case 'Q':
			bx, by := tr(c.pts[0])
			cx, cy := tr(c.pts[1])
			z.QuadTo(bx, by, cx, cy)
		case 'C':
			bx, by := tr(c.pts[0])
			cx, cy := tr(c.pts[1])
			dx, dy := tr(c.pts[2])
			z.CubeTo(bx, by, cx, cy, dx, dy)
		case 'Z':
			z.ClosePath()
			open = false
		}
	}
	if open {
		z.ClosePath()
	}
}
