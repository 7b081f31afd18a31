// CLAUDE:SUMMARY Compound CSS selector subset (tag, #id, .class, attribute operators, comma lists) matched against scan nodes.
package scan

import (
	"fmt"
	"strings"
)

// Selector is a compiled comma-separated list of compound selectors.
//
// Supported compound parts:
//   - tag: "a", "main"
//   - #id, .class
//   - [attr], [attr=val], [attr*=val], [attr^=val], [attr$=val], [attr~=val]
//
// Combinators are not supported: the scan algorithm expresses structure
// through ancestor checks instead.
type Selector struct {
	src  string
	alts []compound
}

type compound struct {
	tag     string
	id      string
	classes []string
	attrs   []attrMatch
}

type attrMatch struct {
	key string
	op  string // "" (presence), "=", "*=", "^=", "$=", "~="
	val string
}

// Compile parses a selector list.
func Compile(src string) (Selector, error) {
	s := Selector{src: src}
	for _, part := range strings.Split(src, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			return Selector{}, fmt.Errorf("scan: selector %q: empty alternative", src)
		}
		c, err := parseCompound(part)
		if err != nil {
			return Selector{}, fmt.Errorf("scan: selector %q: %w", src, err)
		}
		s.alts = append(s.alts, c)
	}
	return s, nil
}

// MustCompile is Compile for package-level defaults. It panics on error.
func MustCompile(src string) Selector {
	s, err := Compile(src)
	if err != nil {
		panic(err)
	}
	return s
}

// String returns the selector source, suitable for querySelectorAll.
func (s Selector) String() string { return s.src }

// Empty reports whether the selector matches nothing by construction.
func (s Selector) Empty() bool { return len(s.alts) == 0 }

// Match reports whether n matches any alternative.
func (s Selector) Match(n *Node) bool {
	if n == nil {
		return false
	}
	for _, c := range s.alts {
		if c.match(n) {
			return true
		}
	}
	return false
}

func parseCompound(sel string) (compound, error) {
	var c compound
	i := 0
	readIdent := func() string {
		start := i
		for i < len(sel) && !strings.ContainsRune(".#[] \t>+~", rune(sel[i])) {
			i++
		}
		return sel[start:i]
	}

	c.tag = strings.ToLower(readIdent())
	for i < len(sel) {
		switch sel[i] {
		case '.':
			i++
			name := readIdent()
			if name == "" {
				return c, fmt.Errorf("empty class at %d", i)
			}
			c.classes = append(c.classes, name)
		case '#':
			i++
			name := readIdent()
			if name == "" {
				return c, fmt.Errorf("empty id at %d", i)
			}
			c.id = name
		case '[':
			end := strings.IndexByte(sel[i:], ']')
			if end < 0 {
				return c, fmt.Errorf("unterminated attribute selector")
			}
			a, err := parseAttr(sel[i+1 : i+end])
			if err != nil {
				return c, err
			}
			c.attrs = append(c.attrs, a)
			i += end + 1
		case ' ', '\t', '>', '+', '~':
			return c, fmt.Errorf("combinators are not supported")
		default:
			return c, fmt.Errorf("unexpected %q at %d", sel[i], i)
		}
	}
	return c, nil
}

func parseAttr(body string) (attrMatch, error) {
	body = strings.TrimSpace(body)
	eq := strings.IndexByte(body, '=')
	if eq < 0 {
		if body == "" {
			return attrMatch{}, fmt.Errorf("empty attribute selector")
		}
		return attrMatch{key: strings.ToLower(body)}, nil
	}

	key := body[:eq]
	op := "="
	if eq > 0 && strings.ContainsRune("*^$~", rune(body[eq-1])) {
		op = body[eq-1:eq+1]
		key = body[:eq-1]
	}
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		return attrMatch{}, fmt.Errorf("attribute selector %q: empty name", body)
	}
	val := strings.TrimSpace(body[eq+1:])
	if len(val) >= 2 && (val[0] == '"' || val[0] == '\'') && val[len(val)-1] == val[0] {
		val = val[1 : len(val)-1]
	}
	return attrMatch{key: key, op: op, val: val}, nil
}

func (c compound) match(n *Node) bool {
	if c.tag != "" && c.tag != "*" && n.Tag != c.tag {
		return false
	}
	if c.id != "" {
		if v, _ := n.Attr("id"); v != c.id {
			return false
		}
	}
	if len(c.classes) > 0 {
		v, _ := n.Attr("class")
		have := strings.Fields(v)
		for _, want := range c.classes {
			if !containsWord(have, want) {
				return false
			}
		}
	}
	for _, a := range c.attrs {
		if !a.match(n) {
			return false
		}
	}
	return true
}

func (a attrMatch) match(n *Node) bool {
	v, ok := n.Attr(a.key)
	if !ok {
		return false
	}
	switch a.op {
	case "":
		return true
	case "=":
		return v == a.val
	case "*=":
		return a.val != "" && strings.Contains(v, a.val)
	case "^=":
		return a.val != "" && strings.HasPrefix(v, a.val)
	case "$=":
		return a.val != "" && strings.HasSuffix(v, a.val)
	case "~=":
		return containsWord(strings.Fields(v), a.val)
	}
	return false
}

func containsWord(words []string, w string) bool {
	for _, x := range words {
		if x == w {
			return true
		}
	}
	return false
}
